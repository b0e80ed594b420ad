// Package config 提供配置加载功能
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

// DefaultConfigDir 默认配置目录
const DefaultConfigDir = "configs"

// Load 从默认目录加载配置文件
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigDir)
}

// LoadFrom 从指定目录加载配置
// 按优先级加载：默认配置 -> 环境配置 -> 环境变量
// 默认配置文件缺失时仅使用内置默认值
func LoadFrom(dir string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	// 1. 加载默认配置
	if err := loadConfigFile(v, filepath.Join(dir, "config.yaml"), true); err != nil {
		return nil, err
	}

	// 2. 加载环境特定配置
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}
	envFile := filepath.Join(dir, fmt.Sprintf("config.%s.yaml", env))
	if err := loadConfigFile(v, envFile, true); err != nil {
		return nil, err
	}

	// 3. 绑定环境变量 (直接覆盖)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 设置默认值 (兜底)
	setDefaults(v)

	// 解析配置
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate 校验枚举类配置项
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case StorageDriverBadger, StorageDriverPostgres:
	default:
		return fmt.Errorf("unsupported storage driver: %q", c.Storage.Driver)
	}
	switch c.Backup.Source {
	case BackupSourceFile, BackupSourceRedis, BackupSourceNone:
	default:
		return fmt.Errorf("unsupported backup source: %q", c.Backup.Source)
	}
	if c.Backup.Source == BackupSourceRedis && !c.Cache.Redis.Enabled {
		return fmt.Errorf("backup source redis requires cache.redis.enabled")
	}
	switch c.Reconcile.ConflictPolicy {
	case ConflictBackupWins, ConflictStoreWins:
	default:
		return fmt.Errorf("unsupported reconcile conflict policy: %q", c.Reconcile.ConflictPolicy)
	}
	if c.Retrieval.Limit < 0 {
		return fmt.Errorf("retrieval.limit must not be negative")
	}
	return nil
}

// 存储后端
const (
	StorageDriverBadger   = "badger"
	StorageDriverPostgres = "postgres"
)

// 备份来源
const (
	BackupSourceFile  = "file"
	BackupSourceRedis = "redis"
	BackupSourceNone  = "none"
)

// 对账冲突策略
const (
	ConflictBackupWins = "backup_wins"
	ConflictStoreWins  = "store_wins"
)

// loadConfigFile 读取文件，执行环境变量替换，并加载到 viper
func loadConfigFile(v *viper.Viper, path string, optional bool) error {
	content, err := os.ReadFile(path)
	if err != nil {
		if optional && os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	// 执行环境变量替换
	expanded := expandEnv(string(content))

	// 加载到 viper
	reader := strings.NewReader(expanded)
	if v.ConfigFileUsed() == "" {
		if err := v.ReadConfig(reader); err != nil {
			return fmt.Errorf("failed to read processed config %s: %w", path, err)
		}
		// 手动标记已加载文件，防止后续 ReadInConfig 报错
		v.SetConfigFile(path)
	} else {
		if err := v.MergeConfig(reader); err != nil {
			return fmt.Errorf("failed to merge processed config %s: %w", path, err)
		}
	}

	return nil
}

// envPattern 匹配 ${VAR} 或 ${VAR:default}
// g1: 变量名, g2: 默认值部分（含冒号）, g3: 默认值内容
var envPattern = regexp.MustCompile(`\${(\w+)(:([^}]*))?}`)

// expandEnv 替换字符串中的 ${VAR:default} 占位符
func expandEnv(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		submatch := envPattern.FindStringSubmatch(match)
		key := submatch[1]
		hasDefault := submatch[2] != ""
		defVal := submatch[3]

		val, ok := os.LookupEnv(key)
		if ok {
			return val
		}
		if hasDefault {
			return defVal
		}
		return match // 保留原样以便识别未定义的变量
	})
}

// MustLoad 加载配置，失败时 panic
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// setDefaults 设置配置默认值
func setDefaults(v *viper.Viper) {
	// 应用默认值
	v.SetDefault("app.name", "novel-series-rag")
	v.SetDefault("app.version", "v0.0.0")
	v.SetDefault("app.env", "development")

	// HTTP 服务器默认值
	v.SetDefault("server.http.host", "0.0.0.0")
	v.SetDefault("server.http.port", 8080)
	v.SetDefault("server.http.read_timeout", "30s")
	v.SetDefault("server.http.write_timeout", "180s")
	v.SetDefault("server.http.idle_timeout", "120s")

	// 章节存储默认值
	v.SetDefault("storage.driver", StorageDriverBadger)
	v.SetDefault("storage.badger.path", "data/stories")
	v.SetDefault("storage.badger.in_memory", false)
	v.SetDefault("storage.badger.max_retries", 8)

	// 数据库默认值
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.user", "postgres")
	v.SetDefault("database.postgres.database", "novel_series")
	v.SetDefault("database.postgres.ssl_mode", "disable")
	v.SetDefault("database.postgres.max_open_conns", 20)
	v.SetDefault("database.postgres.max_idle_conns", 5)
	v.SetDefault("database.postgres.conn_max_lifetime", "30m")
	v.SetDefault("database.postgres.conn_max_idle_time", "5m")
	v.SetDefault("database.postgres.auto_migrate", true)

	// Redis 默认值
	v.SetDefault("cache.redis.enabled", false)
	v.SetDefault("cache.redis.host", "localhost")
	v.SetDefault("cache.redis.port", 6379)
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.pool_size", 20)
	v.SetDefault("cache.redis.min_idle_conns", 2)
	v.SetDefault("cache.redis.dial_timeout", "5s")
	v.SetDefault("cache.redis.read_timeout", "3s")
	v.SetDefault("cache.redis.write_timeout", "3s")

	// LLM 默认值
	v.SetDefault("llm.default_provider", "deepseek")
	v.SetDefault("llm.providers.deepseek.api_key", "")
	v.SetDefault("llm.providers.deepseek.base_url", "https://api.deepseek.com/v1")
	v.SetDefault("llm.providers.deepseek.model", "deepseek-chat")
	v.SetDefault("llm.providers.deepseek.temperature", 0.8)
	v.SetDefault("llm.providers.deepseek.timeout", "120s")

	// Embedding 默认值
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.endpoint", "https://api.deepseek.com/v1")
	v.SetDefault("embedding.model", "deepseek-embedding")
	v.SetDefault("embedding.timeout", "30s")
	v.SetDefault("embedding.dimension", 0)
	v.SetDefault("embedding.cache_ttl", "168h")

	// 检索默认值
	v.SetDefault("retrieval.limit", 3)

	// 备份与对账默认值
	v.SetDefault("backup.source", BackupSourceFile)
	v.SetDefault("backup.path", "data/saved_stories.json")
	v.SetDefault("backup.redis_key", "saved_stories")
	v.SetDefault("reconcile.conflict_policy", ConflictBackupWins)

	// 可观测性默认值
	v.SetDefault("observability.logging.level", "info")
	v.SetDefault("observability.logging.format", "json")
	v.SetDefault("observability.tracing.enabled", false)
	v.SetDefault("observability.tracing.endpoint", "localhost:4317")
	v.SetDefault("observability.tracing.sample_rate", 1.0)
	v.SetDefault("observability.metrics.enabled", true)
	v.SetDefault("observability.metrics.path", "/metrics")

	// 安全默认值
	v.SetDefault("security.rate_limit.enabled", false)
	v.SetDefault("security.rate_limit.requests_per_minute", 20)
}
