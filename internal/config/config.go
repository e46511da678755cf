package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用程序配置结构
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Discord DiscordConfig `mapstructure:"discord"`
	GitHub  GitHubConfig  `mapstructure:"github"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Health  HealthConfig  `mapstructure:"health"`
	Storage StorageConfig `mapstructure:"storage"`
	Etcd    EtcdConfig    `mapstructure:"etcd"`
	Log     LogConfig     `mapstructure:"log"`
}

// ServerConfig HTTP服务配置
type ServerConfig struct {
	ListenAddress string `mapstructure:"listen_address"`
	Port          int    `mapstructure:"port"`
	// PublicBaseURL 服务对外暴露的地址，图片链路探针通过它回环访问自身
	PublicBaseURL string `mapstructure:"public_base_url"`
	// AllowOrigins CORS允许的来源
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// DiscordConfig 聊天平台用户目录配置
type DiscordConfig struct {
	APIBaseURL string        `mapstructure:"api_base_url"`
	CDNBaseURL string        `mapstructure:"cdn_base_url"`
	Token      string        `mapstructure:"token"`
	AuthScheme string        `mapstructure:"auth_scheme"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// GitHubConfig 代码托管平台用户目录配置
type GitHubConfig struct {
	APIBaseURL string        `mapstructure:"api_base_url"`
	Token      string        `mapstructure:"token"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// CacheConfig 缓存配置
type CacheConfig struct {
	// Backend 可选 "memory" 或 "redis"
	Backend         string        `mapstructure:"backend"`
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// RedisConfig Redis缓存后端配置
type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	KeyPrefix   string        `mapstructure:"key_prefix"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// HealthConfig 健康检查配置
type HealthConfig struct {
	// TestUserID 图片链路探针使用的固定测试用户
	TestUserID      string        `mapstructure:"test_user_id"`
	GitHubProbeUser string        `mapstructure:"github_probe_user"`
	ProbeTimeout    time.Duration `mapstructure:"probe_timeout"`
	PipelineTimeout time.Duration `mapstructure:"pipeline_timeout"`
	QueueSize       int           `mapstructure:"queue_size"`
}

// StorageConfig 历史状态存储配置
type StorageConfig struct {
	// Backend 可选 "memory" 或 "etcd"
	Backend   string        `mapstructure:"backend"`
	Retention time.Duration `mapstructure:"retention"`
}

// EtcdConfig etcd配置
type EtcdConfig struct {
	Endpoints   []string      `mapstructure:"endpoints"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
	Prefix      string        `mapstructure:"prefix"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Address 返回HTTP监听地址
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.ListenAddress, s.Port)
}

// LoadConfig 从文件和环境变量加载配置
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// 设置默认值
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.avatar-gateway")
		v.AddConfigPath("/etc/avatar-gateway")
	}
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		// 找不到配置文件时使用默认值，其他错误直接返回
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件错误: %w", err)
		}
	}

	// 绑定环境变量
	v.SetEnvPrefix("AVATAR_GATEWAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvVariables(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("解析配置错误: %w", err)
	}

	return &config, nil
}

// setDefaults 设置配置默认值
func setDefaults(v *viper.Viper) {
	// HTTP服务
	v.SetDefault("server.listen_address", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.public_base_url", "http://localhost:8080")
	v.SetDefault("server.allow_origins", []string{"*"})

	// 聊天平台
	v.SetDefault("discord.api_base_url", "https://discord.com/api/v10")
	v.SetDefault("discord.cdn_base_url", "https://cdn.discordapp.com")
	v.SetDefault("discord.token", "")
	v.SetDefault("discord.auth_scheme", "Bot")
	v.SetDefault("discord.timeout", 5*time.Second)

	// 代码托管平台
	v.SetDefault("github.api_base_url", "https://api.github.com")
	v.SetDefault("github.token", "")
	v.SetDefault("github.timeout", 5*time.Second)

	// 缓存
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.ttl", 60*time.Second)
	v.SetDefault("cache.cleanup_interval", 5*time.Minute)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "avatar-gateway:")
	v.SetDefault("redis.dial_timeout", 2*time.Second)

	// 健康检查
	v.SetDefault("health.test_user_id", "80351110224678912")
	v.SetDefault("health.github_probe_user", "github")
	v.SetDefault("health.probe_timeout", 5*time.Second)
	v.SetDefault("health.pipeline_timeout", 8*time.Second)
	v.SetDefault("health.queue_size", 64)

	// 历史存储
	v.SetDefault("storage.backend", "memory")
	v.SetDefault("storage.retention", 30*24*time.Hour)

	v.SetDefault("etcd.endpoints", []string{"localhost:2379"})
	v.SetDefault("etcd.dial_timeout", 5*time.Second)
	v.SetDefault("etcd.username", "")
	v.SetDefault("etcd.password", "")
	v.SetDefault("etcd.prefix", "/avatar-gateway/status/")

	// 日志
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", true)
}

// bindEnvVariables 绑定特定的环境变量
func bindEnvVariables(v *viper.Viper) {
	v.BindEnv("discord.token", "AVATAR_GATEWAY_DISCORD_TOKEN", "DISCORD_BOT_TOKEN")
	v.BindEnv("github.token", "AVATAR_GATEWAY_GITHUB_TOKEN", "GITHUB_TOKEN")
	v.BindEnv("server.port", "AVATAR_GATEWAY_SERVER_PORT", "PORT")
	v.BindEnv("etcd.endpoints", "AVATAR_GATEWAY_ETCD_ENDPOINTS")
}
