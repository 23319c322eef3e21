package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Storage    StorageConfig    `yaml:"storage"`
	JWT        JWTConfig        `yaml:"jwt"`
	Share      ShareConfig      `yaml:"share"`
	Archive    ArchiveConfig    `yaml:"archive"`
	Hierarchy  HierarchyConfig  `yaml:"hierarchy"`
	Thumbnail  ThumbnailConfig  `yaml:"thumbnail"`
	Trash      TrashConfig      `yaml:"trash"`
	Cleanup    CleanupConfig    `yaml:"cleanup"`
	Webhook    WebhookConfig    `yaml:"webhook"`
	CORS       CORSConfig       `yaml:"cors"`
	Pagination PaginationConfig `yaml:"pagination"`
}

type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
	Mode string `yaml:"mode"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type DatabaseConfig struct {
	Driver       string `yaml:"driver"`
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	Database     string `yaml:"database"`
	Charset      string `yaml:"charset"`
	SSLMode      string `yaml:"ssl_mode"`
	Path         string `yaml:"path"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	LogLevel     string `yaml:"log_level"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type StorageConfig struct {
	BasePath    string `yaml:"base_path"`
	TempDir     string `yaml:"temp_dir"`
	MaxFileSize int64  `yaml:"max_file_size"`
}

type JWTConfig struct {
	Secret      string `yaml:"secret"`
	ExpireHours int    `yaml:"expire_hours"`
}

type ShareConfig struct {
	TokenLength           int    `yaml:"token_length"`
	GrantSecret           string `yaml:"grant_secret"`
	GrantTTLMinutes       int    `yaml:"grant_ttl_minutes"`
	MaxExpiresInDays      int    `yaml:"max_expires_in_days"`
	MinPasswordLength     int    `yaml:"min_password_length"`
	MaxPasswordLength     int    `yaml:"max_password_length"`
	MaxDownloadsLimit     int    `yaml:"max_downloads_limit"`
	PurgeExpiredAfterDays int    `yaml:"purge_expired_after_days"`
}

type ArchiveConfig struct {
	Enabled           bool  `yaml:"enabled"`
	MaxTotalBytes     int64 `yaml:"max_total_bytes"`
	StaleAfterMinutes int   `yaml:"stale_after_minutes"`
}

type HierarchyConfig struct {
	MaxNameLength     int `yaml:"max_name_length"`
	MaxDepth          int `yaml:"max_depth"`
	DisambiguateLimit int `yaml:"disambiguate_limit"`
}

type ThumbnailConfig struct {
	Width           int `yaml:"width"`
	Height          int `yaml:"height"`
	Quality         int `yaml:"quality"`
	CacheTTLSeconds int `yaml:"cache_ttl_seconds"`
}

type TrashConfig struct {
	RetentionDays int `yaml:"retention_days"`
}

// CleanupConfig intervals are in seconds.
type CleanupConfig struct {
	ShareInterval   int `yaml:"share_interval"`
	TrashInterval   int `yaml:"trash_interval"`
	ArchiveInterval int `yaml:"archive_interval"`
}

type WebhookConfig struct {
	URL          string `yaml:"url"`
	TimeoutMs    int    `yaml:"timeout_ms"`
	QueueKey     string `yaml:"queue_key"`
	MaxAttempts  int    `yaml:"max_attempts"`
	RetryDelayMs int    `yaml:"retry_delay_ms"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type PaginationConfig struct {
	DefaultPageSize int `yaml:"default_page_size"`
	MaxPageSize     int `yaml:"max_page_size"`
}

var AppConfig *Config

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	// archive packaging is on unless the file says otherwise
	cfg.Archive.Enabled = true
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	AppConfig = &cfg
	return &cfg, nil
}

// Default returns a configuration with every default applied. It does not
// touch AppConfig.
func Default() *Config {
	cfg := Config{}
	cfg.Archive.Enabled = true
	applyDefaults(&cfg)
	return &cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "mysql"
	}
	if cfg.Database.Charset == "" {
		cfg.Database.Charset = "utf8mb4"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "securedocs.db"
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 10
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 50
	}
	if cfg.Database.LogLevel == "" {
		cfg.Database.LogLevel = "warn"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Storage.BasePath == "" {
		cfg.Storage.BasePath = "./data"
	}
	if cfg.Storage.TempDir == "" {
		cfg.Storage.TempDir = filepath.Join(cfg.Storage.BasePath, "temp")
	}
	if cfg.Storage.MaxFileSize == 0 {
		cfg.Storage.MaxFileSize = 1 << 30
	}
	if cfg.JWT.ExpireHours == 0 {
		cfg.JWT.ExpireHours = 24
	}
	if cfg.Share.TokenLength < 32 {
		cfg.Share.TokenLength = 32
	}
	if cfg.Share.GrantSecret == "" {
		cfg.Share.GrantSecret = cfg.JWT.Secret
	}
	if cfg.Share.GrantTTLMinutes == 0 {
		cfg.Share.GrantTTLMinutes = 30
	}
	if cfg.Share.MaxExpiresInDays == 0 {
		cfg.Share.MaxExpiresInDays = 365
	}
	if cfg.Share.MinPasswordLength == 0 {
		cfg.Share.MinPasswordLength = 6
	}
	if cfg.Share.MaxPasswordLength == 0 {
		cfg.Share.MaxPasswordLength = 50
	}
	if cfg.Share.MaxDownloadsLimit == 0 {
		cfg.Share.MaxDownloadsLimit = 1000
	}
	if cfg.Share.PurgeExpiredAfterDays == 0 {
		cfg.Share.PurgeExpiredAfterDays = 30
	}
	if cfg.Archive.MaxTotalBytes == 0 {
		cfg.Archive.MaxTotalBytes = 500 * 1024 * 1024
	}
	if cfg.Archive.StaleAfterMinutes == 0 {
		cfg.Archive.StaleAfterMinutes = 60
	}
	if cfg.Hierarchy.MaxNameLength == 0 {
		cfg.Hierarchy.MaxNameLength = 255
	}
	if cfg.Hierarchy.MaxDepth == 0 {
		cfg.Hierarchy.MaxDepth = 20
	}
	if cfg.Hierarchy.DisambiguateLimit == 0 {
		cfg.Hierarchy.DisambiguateLimit = 10000
	}
	if cfg.Thumbnail.Width == 0 {
		cfg.Thumbnail.Width = 320
	}
	if cfg.Thumbnail.Height == 0 {
		cfg.Thumbnail.Height = 320
	}
	if cfg.Thumbnail.Quality == 0 {
		cfg.Thumbnail.Quality = 80
	}
	if cfg.Thumbnail.CacheTTLSeconds == 0 {
		cfg.Thumbnail.CacheTTLSeconds = 3600
	}
	if cfg.Trash.RetentionDays == 0 {
		cfg.Trash.RetentionDays = 30
	}
	if cfg.Cleanup.ShareInterval == 0 {
		cfg.Cleanup.ShareInterval = 3600
	}
	if cfg.Cleanup.TrashInterval == 0 {
		cfg.Cleanup.TrashInterval = 24 * 3600
	}
	if cfg.Cleanup.ArchiveInterval == 0 {
		cfg.Cleanup.ArchiveInterval = 600
	}
	if cfg.Webhook.TimeoutMs == 0 {
		cfg.Webhook.TimeoutMs = 5000
	}
	if cfg.Webhook.QueueKey == "" {
		cfg.Webhook.QueueKey = "securedocs:webhooks"
	}
	if cfg.Webhook.MaxAttempts == 0 {
		cfg.Webhook.MaxAttempts = 3
	}
	if cfg.Webhook.RetryDelayMs == 0 {
		cfg.Webhook.RetryDelayMs = 2000
	}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		cfg.CORS.AllowedOrigins = []string{"*"}
	}
	if cfg.Pagination.DefaultPageSize == 0 {
		cfg.Pagination.DefaultPageSize = 20
	}
	if cfg.Pagination.MaxPageSize == 0 {
		cfg.Pagination.MaxPageSize = 100
	}
}
