package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
)

// Insecure defaults that must never reach production.
var insecureDefaults = map[string]bool{
	"your-secret-key-change-in-production": true,
	"changeme": true,
	"":         true,
}

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	JWT         JWTConfig
	Hosting     HostingConfig
	Edge        EdgeConfig
	Bot         BotConfig
	Provision   ProvisionConfig
	AdminAPIKey string
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	Schema   string
	SSLMode  string
}

type JWTConfig struct {
	SecretKey string
}

// HostingConfig points at the WHM reseller endpoint used to create
// end-user cPanel accounts.
type HostingConfig struct {
	Host        string // https://server:2087
	Username    string
	APIToken    string
	Package     string
	InsecureTLS bool
}

// EdgeCredential is a single Cloudflare account entry. Either Token or
// the Email+Key pair is set, never both.
type EdgeCredential struct {
	Token string
	Email string
	Key   string
}

type EdgeConfig struct {
	Credentials []EdgeCredential
}

type BotConfig struct {
	Token       string
	AdminChatID int64
}

type ProvisionConfig struct {
	DefaultRedirectURL string
	SlotCount          int
	Cost               float64
	DailyLimit         int
}

func Load() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8007"),
			Mode: getEnv("GIN_MODE", "release"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "clssub_user"),
			Password: getEnv("DB_PASSWORD", "clssub_pass"),
			DBName:   getEnv("DB_NAME", "clssub_db"),
			Schema:   getEnv("DB_SCHEMA", "clssub"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		JWT: JWTConfig{
			SecretKey: getEnv("JWT_SECRET_KEY", ""),
		},
		Hosting: HostingConfig{
			Host:        getEnv("WHM_HOST", "https://localhost:2087"),
			Username:    getEnv("WHM_USERNAME", "root"),
			APIToken:    getEnv("WHM_API_TOKEN", ""),
			Package:     getEnv("WHM_PACKAGE", "default"),
			InsecureTLS: getEnvBool("WHM_INSECURE_TLS", true),
		},
		Edge: EdgeConfig{
			Credentials: parseEdgeCredentials(getEnv("CF_ACCOUNTS", "")),
		},
		Bot: BotConfig{
			Token:       getEnv("BOT_TOKEN", ""),
			AdminChatID: getEnvInt64("ADMIN_CHAT_ID", 0),
		},
		Provision: ProvisionConfig{
			DefaultRedirectURL: getEnv("DEFAULT_REDIRECT_URL", ""),
			SlotCount:          getEnvInt("SLOT_COUNT", 3),
			Cost:               getEnvFloat("PROVISION_COST", 0),
			DailyLimit:         getEnvInt("DAILY_LIMIT", 10),
		},
		AdminAPIKey: getEnv("ADMIN_API_KEY", ""),
	}

	// Secrets stay out of the log line.
	log.Printf("[config] loaded: port=%s db=%s/%s.%s whm=%s cf_accounts=%d slots=%d",
		cfg.Server.Port, cfg.Database.Host, cfg.Database.DBName, cfg.Database.Schema,
		cfg.Hosting.Host, len(cfg.Edge.Credentials), cfg.Provision.SlotCount)

	return cfg
}

// Validate checks that the deploy-critical settings are present.
func (c *Config) Validate() error {
	if c.Hosting.APIToken == "" {
		return fmt.Errorf("WHM_API_TOKEN must be set")
	}
	if len(c.Edge.Credentials) == 0 {
		return fmt.Errorf("CF_ACCOUNTS must contain at least one credential")
	}
	if insecureDefaults[c.JWT.SecretKey] {
		return fmt.Errorf("JWT_SECRET_KEY must be set to a secure value (current value is insecure or empty)")
	}
	if len(c.JWT.SecretKey) < 32 {
		return fmt.Errorf("JWT_SECRET_KEY must be at least 32 characters long")
	}
	if insecureDefaults[c.AdminAPIKey] {
		return fmt.Errorf("ADMIN_API_KEY must be set to a secure value (current value is insecure or empty)")
	}
	return nil
}

// parseEdgeCredentials parses CF_ACCOUNTS: a comma-separated list where
// each entry is either a bare API token or "email:globalkey".
func parseEdgeCredentials(raw string) []EdgeCredential {
	var creds []EdgeCredential
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if email, key, ok := strings.Cut(entry, ":"); ok && strings.Contains(email, "@") {
			creds = append(creds, EdgeCredential{Email: email, Key: key})
			continue
		}
		creds = append(creds, EdgeCredential{Token: entry})
	}
	return creds
}

func (c *DatabaseConfig) DSN() string {
	return "postgres://" + c.User + ":" + c.Password + "@" + c.Host + ":" + c.Port + "/" + c.DBName + "?sslmode=" + c.SSLMode
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
