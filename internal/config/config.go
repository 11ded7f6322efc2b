package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Backend   BackendConfig   `mapstructure:"backend"`
	Supabase  SupabaseConfig  `mapstructure:"supabase"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Images    ImagesConfig    `mapstructure:"images"`
	Session   SessionConfig   `mapstructure:"session"`
	Log       LogConfig       `mapstructure:"log"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type ServerConfig struct {
	Addr              string        `mapstructure:"addr"`
	SessionTTL        time.Duration `mapstructure:"session_ttl"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
}

// BackendConfig picks the question source: "supabase" or "sql".
type BackendConfig struct {
	Driver string `mapstructure:"driver"`
}

type SupabaseConfig struct {
	URL               string        `mapstructure:"url"`
	AnonKey           string        `mapstructure:"anon_key"`
	RandomQuestionRPC string        `mapstructure:"random_question_rpc"`
	ResponsesTable    string        `mapstructure:"responses_table"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type StorageConfig struct {
	Driver          string        `mapstructure:"driver"`
	Bucket          string        `mapstructure:"bucket"`
	SignedURLs      bool          `mapstructure:"signed_urls"`
	SignedURLTTL    time.Duration `mapstructure:"signed_url_ttl"`
	Endpoint        string        `mapstructure:"endpoint"`
	AccessKey       string        `mapstructure:"access_key"`
	SecretKey       string        `mapstructure:"secret_key"`
	UseSSL          bool          `mapstructure:"use_ssl"`
	Region          string        `mapstructure:"region"`
	PublicBaseURL   string        `mapstructure:"public_base_url"`
	CDNDomain       string        `mapstructure:"cdn_domain"`
	CredentialsFile string        `mapstructure:"credentials_file"`
}

type ImagesConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Strategy     string        `mapstructure:"strategy"`
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
	// Wait bounds how long a terminal render waits for discovery.
	Wait time.Duration `mapstructure:"wait"`
}

type SessionConfig struct {
	SubmitMode              string   `mapstructure:"submit_mode"`
	GradingPrecedence       []string `mapstructure:"grading_precedence"`
	AllowReselectAfterGrade bool     `mapstructure:"allow_reselect_after_grade"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Exporter    string  `mapstructure:"exporter"`
	Endpoint    string  `mapstructure:"endpoint"`
	Insecure    bool    `mapstructure:"insecure"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	MaxRequests int           `mapstructure:"max_requests"`
	Window      time.Duration `mapstructure:"window"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.session_ttl", 30*time.Minute)
	v.SetDefault("server.read_header_timeout", 5*time.Second)

	v.SetDefault("backend.driver", "supabase")

	v.SetDefault("supabase.url", "")
	v.SetDefault("supabase.anon_key", "")
	v.SetDefault("supabase.random_question_rpc", "get_random_question")
	v.SetDefault("supabase.responses_table", "responses")
	v.SetDefault("supabase.timeout", 10*time.Second)

	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.dsn", "quiz.db")

	v.SetDefault("storage.driver", "supabase")
	v.SetDefault("storage.bucket", "question-images")
	v.SetDefault("storage.signed_urls", false)
	v.SetDefault("storage.signed_url_ttl", time.Hour)
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.access_key", "")
	v.SetDefault("storage.secret_key", "")
	v.SetDefault("storage.use_ssl", true)
	v.SetDefault("storage.region", "")
	v.SetDefault("storage.public_base_url", "")
	v.SetDefault("storage.cdn_domain", "")
	v.SetDefault("storage.credentials_file", "")

	v.SetDefault("images.enabled", true)
	v.SetDefault("images.strategy", "list")
	v.SetDefault("images.probe_timeout", 0)
	v.SetDefault("images.wait", 3*time.Second)

	v.SetDefault("session.submit_mode", "two_step")
	v.SetDefault("session.grading_precedence", []string{"correctAnswer", "correctanswer", "solution"})
	v.SetDefault("session.allow_reselect_after_grade", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.exporter", "stdout")
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.insecure", false)
	v.SetDefault("tracing.service_name", "quiz-app")
	v.SetDefault("tracing.sample_ratio", 1.0)

	v.SetDefault("cors.allowed_origins", []string{"*"})

	v.SetDefault("rate_limit.max_requests", 120)
	v.SetDefault("rate_limit.window", time.Minute)
}

// Load reads config.yaml from path when present, then applies QUIZ_*
// environment overrides (QUIZ_STORAGE_BUCKET for storage.bucket and so on).
// The SUPABASE_URL and SUPABASE_ANON_KEY variables are honoured as well.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if strings.TrimSpace(path) == "" {
		path = "."
	}
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("QUIZ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("supabase.url", "QUIZ_SUPABASE_URL", "SUPABASE_URL")
	_ = v.BindEnv("supabase.anon_key", "QUIZ_SUPABASE_ANON_KEY", "SUPABASE_ANON_KEY")
	_ = v.BindEnv("database.dsn", "QUIZ_DATABASE_DSN", "DATABASE_URL")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	// Comma separated env values arrive as a single element.
	cfg.Session.GradingPrecedence = splitList(cfg.Session.GradingPrecedence)
	cfg.CORS.AllowedOrigins = splitList(cfg.CORS.AllowedOrigins)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch strings.ToLower(c.Backend.Driver) {
	case "supabase":
		if strings.TrimSpace(c.Supabase.URL) == "" {
			return errors.New("supabase.url is required for the supabase backend")
		}
	case "sql":
	default:
		return fmt.Errorf("unsupported backend.driver %q", c.Backend.Driver)
	}
	if c.RateLimit.MaxRequests < 0 {
		return errors.New("rate_limit.max_requests must not be negative")
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return errors.New("tracing.sample_ratio must be within [0, 1]")
	}
	return nil
}

func splitList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
	}
	return out
}
