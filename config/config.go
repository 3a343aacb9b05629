package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendBolt   = "bolt"
)

// Audit backends.
const (
	AuditLog   = "log"
	AuditMongo = "mongo"
)

// ServerConfig holds all configuration for the server.
// Tags use mapstructure for Viper unmarshalling.
type ServerConfig struct {
	HTTPPort        string `mapstructure:"HTTP_PORT"`
	LogLevel        string `mapstructure:"LOG_LEVEL"`
	LogPretty       bool   `mapstructure:"LOG_PRETTY"`
	OtelServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	StoreBackend  string `mapstructure:"STORE_BACKEND"`
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`
	BoltPath      string `mapstructure:"BOLT_PATH"`

	AuditBackend string `mapstructure:"AUDIT_BACKEND"`
	MongoURI     string `mapstructure:"MONGO_URI"`
	MongoDBName  string `mapstructure:"MONGO_DB_NAME"`

	UserIDSecret string `mapstructure:"USER_ID_SECRET"`
	AdminToken   string `mapstructure:"ADMIN_TOKEN"`

	MessagingGatewayURL string `mapstructure:"MESSAGING_GATEWAY_URL"`
	ChatGatewayURL      string `mapstructure:"CHAT_GATEWAY_URL"`
	GatewayToken        string `mapstructure:"GATEWAY_TOKEN"`

	LobbyPod     string `mapstructure:"LOBBY_POD"`
	DemoLobbyPod string `mapstructure:"DEMO_LOBBY_POD"`
	// DemoNumbers is a comma separated list of origin numbers.
	DemoNumbers string `mapstructure:"DEMO_NUMBERS"`
	// PushNumberRegions is "number=Region,..."; an empty region routes to
	// the overflow pods.
	PushNumberRegions string `mapstructure:"PUSH_NUMBER_REGIONS"`
	// RegionGroups is "Region=Group,...".
	RegionGroups         string        `mapstructure:"REGION_GROUPS"`
	DisclaimerToken      string        `mapstructure:"DISCLAIMER_TOKEN"`
	WelcomeBackAfter     time.Duration `mapstructure:"WELCOME_BACK_AFTER"`
	RegionSelectionLimit int           `mapstructure:"REGION_SELECTION_LIMIT"`
	DedupTTL             time.Duration `mapstructure:"DEDUP_TTL"`
	PodHandleTTL         time.Duration `mapstructure:"POD_HANDLE_TTL"`
}

// LoadConfig reads configuration from file, environment variables, and defaults.
func LoadConfig() (*ServerConfig, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/helpline/")
	v.AddConfigPath("$HOME/.helpline")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing file means defaults and env vars only.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	return &cfg, nil
}

// SetDefaults registers every key so env vars bind on Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", false)
	v.SetDefault("OTEL_SERVICE_NAME", "helpline")

	v.SetDefault("STORE_BACKEND", BackendMemory)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("BOLT_PATH", "./data/helpline.db")

	v.SetDefault("AUDIT_BACKEND", AuditLog)
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DB_NAME", "helpline")

	v.SetDefault("USER_ID_SECRET", "")
	v.SetDefault("ADMIN_TOKEN", "")

	v.SetDefault("MESSAGING_GATEWAY_URL", "")
	v.SetDefault("CHAT_GATEWAY_URL", "")
	v.SetDefault("GATEWAY_TOKEN", "")

	v.SetDefault("LOBBY_POD", "lobby")
	v.SetDefault("DEMO_LOBBY_POD", "")
	v.SetDefault("DEMO_NUMBERS", "")
	v.SetDefault("PUSH_NUMBER_REGIONS", "")
	v.SetDefault("REGION_GROUPS", "")
	v.SetDefault("DISCLAIMER_TOKEN", "agree")
	v.SetDefault("WELCOME_BACK_AFTER", 24*time.Hour)
	v.SetDefault("REGION_SELECTION_LIMIT", 2)
	v.SetDefault("DEDUP_TTL", time.Hour)
	v.SetDefault("POD_HANDLE_TTL", 10*time.Minute)
}

// Validate rejects configurations the server cannot run with.
func (c *ServerConfig) Validate() error {
	var problems []string

	switch c.StoreBackend {
	case BackendMemory:
	case BackendRedis:
		if c.RedisAddr == "" {
			problems = append(problems, "REDIS_ADDR is required for the redis backend")
		}
	case BackendBolt:
		if c.BoltPath == "" {
			problems = append(problems, "BOLT_PATH is required for the bolt backend")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown STORE_BACKEND %q", c.StoreBackend))
	}

	switch c.AuditBackend {
	case AuditLog:
	case AuditMongo:
		if c.MongoURI == "" || c.MongoDBName == "" {
			problems = append(problems, "MONGO_URI and MONGO_DB_NAME are required for the mongo audit backend")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown AUDIT_BACKEND %q", c.AuditBackend))
	}

	if c.UserIDSecret == "" {
		problems = append(problems, "USER_ID_SECRET is required")
	} else if len(c.UserIDSecret) > 64 {
		problems = append(problems, "USER_ID_SECRET must be at most 64 bytes")
	}
	if c.MessagingGatewayURL == "" || c.ChatGatewayURL == "" {
		problems = append(problems, "MESSAGING_GATEWAY_URL and CHAT_GATEWAY_URL are required")
	}
	if c.LobbyPod == "" {
		problems = append(problems, "LOBBY_POD is required")
	}
	if c.RegionSelectionLimit < 1 {
		problems = append(problems, "REGION_SELECTION_LIMIT must be at least 1")
	}
	if _, err := ParsePairs(c.PushNumberRegions); err != nil {
		problems = append(problems, "PUSH_NUMBER_REGIONS: "+err.Error())
	}
	if _, err := ParsePairs(c.RegionGroups); err != nil {
		problems = append(problems, "REGION_GROUPS: "+err.Error())
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// ParseList splits a comma separated list, dropping blanks.
func ParseList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// ParsePairs parses "key=value,key=value". Values may be empty; keys may not.
func ParsePairs(s string) (map[string]string, error) {
	out := make(map[string]string)
	for _, item := range ParseList(s) {
		k, v, ok := strings.Cut(item, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("malformed entry %q, want key=value", item)
		}
		out[k] = strings.TrimSpace(v)
	}
	return out, nil
}
