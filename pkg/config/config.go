package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	Session  SessionConfig
	Roles    RoleConfig
	Access   AccessConfig
	CORS     CORSConfig
	Log      LogConfig
	Metrics  MetricsConfig
	Audit    AuditConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	URL      string
	Host     string
	Port     int
	Password string
	DB       int
}

// SessionConfig governs the session tokens handed over by the OAuth front end.
type SessionConfig struct {
	TokenSecret string
	TokenTTL    time.Duration
	CookieName  string
	InitTimeout time.Duration
	// DepartmentHeadCacheTTL bounds how long a cached department-head answer is trusted.
	DepartmentHeadCacheTTL time.Duration
}

// RoleConfig feeds the e-mail classification rules.
type RoleConfig struct {
	StaffDomain           string
	StaffExcludedMarker   string
	GeneralStaffDomain    string
	GuestDomain           string
	StudentDomain         string
	StudentGuestAddresses []string
	LecturerTitle         string
}

// AccessConfig holds redirect targets and temporary access code defaults.
type AccessConfig struct {
	LoginURL        string
	UnauthorizedURL string
	ErrorURL        string
	CodeTTL         time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// AuditConfig sizes the background audit writer.
type AuditConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		URL:      v.GetString("REDIS_URL"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Session = SessionConfig{
		TokenSecret:            v.GetString("SESSION_TOKEN_SECRET"),
		TokenTTL:               parseDuration(v.GetString("SESSION_TOKEN_TTL"), 12*time.Hour),
		CookieName:             v.GetString("SESSION_COOKIE_NAME"),
		InitTimeout:            parseDuration(v.GetString("SESSION_INIT_TIMEOUT"), 5*time.Second),
		DepartmentHeadCacheTTL: parseDuration(v.GetString("DEPARTMENT_HEAD_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Roles = RoleConfig{
		StaffDomain:           strings.ToLower(v.GetString("ROLE_STAFF_DOMAIN")),
		StaffExcludedMarker:   strings.ToLower(v.GetString("ROLE_STAFF_EXCLUDED_MARKER")),
		GeneralStaffDomain:    strings.ToLower(v.GetString("ROLE_GENERAL_STAFF_DOMAIN")),
		GuestDomain:           strings.ToLower(v.GetString("ROLE_GUEST_DOMAIN")),
		StudentDomain:         strings.ToLower(v.GetString("ROLE_STUDENT_DOMAIN")),
		StudentGuestAddresses: splitAndTrim(strings.ToLower(v.GetString("ROLE_STUDENT_GUEST_ADDRESSES"))),
		LecturerTitle:         v.GetString("ROLE_LECTURER_TITLE"),
	}

	cfg.Access = AccessConfig{
		LoginURL:        v.GetString("ACCESS_LOGIN_URL"),
		UnauthorizedURL: v.GetString("ACCESS_UNAUTHORIZED_URL"),
		ErrorURL:        v.GetString("ACCESS_ERROR_URL"),
		CodeTTL:         parseDuration(v.GetString("ACCESS_CODE_TTL"), 7*24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Metrics = MetricsConfig{Enabled: v.GetBool("ENABLE_METRICS")}

	cfg.Audit = AuditConfig{
		Workers:    v.GetInt("AUDIT_WORKERS"),
		BufferSize: v.GetInt("AUDIT_BUFFER_SIZE"),
		MaxRetries: v.GetInt("AUDIT_MAX_RETRIES"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "thesis_portal")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_ENABLED", true)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("SESSION_TOKEN_SECRET", "dev_session_secret")
	v.SetDefault("SESSION_TOKEN_TTL", "12h")
	v.SetDefault("SESSION_COOKIE_NAME", "thesis_session")
	v.SetDefault("SESSION_INIT_TIMEOUT", "5s")
	v.SetDefault("DEPARTMENT_HEAD_CACHE_TTL", "5m")

	v.SetDefault("ROLE_STAFF_DOMAIN", "example.lt")
	v.SetDefault("ROLE_STAFF_EXCLUDED_MARKER", "stud")
	v.SetDefault("ROLE_GENERAL_STAFF_DOMAIN", "teach.example.lt")
	v.SetDefault("ROLE_GUEST_DOMAIN", "guest.onmicrosoft.com")
	v.SetDefault("ROLE_STUDENT_DOMAIN", "stud.example.lt")
	v.SetDefault("ROLE_STUDENT_GUEST_ADDRESSES", "")
	v.SetDefault("ROLE_LECTURER_TITLE", "Lektorius")

	v.SetDefault("ACCESS_LOGIN_URL", "/login")
	v.SetDefault("ACCESS_UNAUTHORIZED_URL", "/unauthorized")
	v.SetDefault("ACCESS_ERROR_URL", "/error")
	v.SetDefault("ACCESS_CODE_TTL", "168h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("ENABLE_METRICS", true)

	v.SetDefault("AUDIT_WORKERS", 2)
	v.SetDefault("AUDIT_BUFFER_SIZE", 256)
	v.SetDefault("AUDIT_MAX_RETRIES", 3)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
