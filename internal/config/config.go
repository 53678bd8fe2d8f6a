package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultSystemConfigPath is the version-controlled base configuration.
	DefaultSystemConfigPath = "conf/system.yml"
	// DefaultLocalConfigPath is an optional deployment-specific overlay.
	DefaultLocalConfigPath = "conf/local.yml"

	defaultPort       = 8080
	defaultEnv        = "development"
	defaultDBHost     = "127.0.0.1"
	defaultDBPort     = 3306
	defaultDBUser     = "root"
	defaultDBName     = "codename"
	defaultDBCharset  = "utf8mb4"
	defaultRedisURL   = "redis://localhost:6379/0"
	defaultDataDir    = "data"
	defaultStaticDir  = "static"
)

// AppConfig holds runtime startup configuration loaded from YAML.
type AppConfig struct {
	Port           int            `yaml:"port"`
	Env            string         `yaml:"env"` // "development" | "production"
	DSN            string         `yaml:"dsn"`
	Database       DatabaseConfig `yaml:"database"`
	RedisURL       string         `yaml:"redis_url"`
	JWTSecret      string         `yaml:"jwt_secret"`
	DataDir        string         `yaml:"data_dir"`
	StaticDir      string         `yaml:"static_dir"`
	AllowedOrigins []string       `yaml:"allowed_origins"`
	Twitter        TwitterConfig  `yaml:"twitter"`
	S3             S3Config       `yaml:"s3"`
}

type DatabaseConfig struct {
	DSN      string `yaml:"dsn"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	Charset  string `yaml:"charset"`
}

// TwitterConfig carries the OAuth application credentials.
type TwitterConfig struct {
	ClientKey    string `yaml:"client_key"`
	ClientSecret string `yaml:"client_secret"`
	CallbackURL  string `yaml:"callback_url"`
}

// S3Config points backups at an object storage bucket.
type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	KeyPrefix       string `yaml:"key_prefix"`
}

// Load reads the cascading configuration files in order; later files override
// earlier ones field by field. Missing files are skipped, so a deployment can
// run on system.yml alone.
func Load(paths ...string) (*AppConfig, error) {
	if len(paths) == 0 {
		paths = []string{DefaultSystemConfigPath, DefaultLocalConfigPath}
	}

	cfg := &AppConfig{}
	loaded := 0
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
		loaded++
	}
	if loaded == 0 {
		return nil, fmt.Errorf("no config file found in %s", strings.Join(paths, ", "))
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *AppConfig) applyDefaults() {
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if strings.TrimSpace(c.Env) == "" {
		c.Env = defaultEnv
	}
	if strings.TrimSpace(c.RedisURL) == "" {
		c.RedisURL = defaultRedisURL
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = defaultDataDir
	}
	if strings.TrimSpace(c.StaticDir) == "" {
		c.StaticDir = defaultStaticDir
	}
	if strings.TrimSpace(c.DSN) == "" {
		c.DSN = c.Database.DSNValue()
	}
}

// IsDev reports whether the app runs in development mode.
func (c *AppConfig) IsDev() bool {
	return strings.EqualFold(strings.TrimSpace(c.Env), "development")
}

// ImageDir is where content-addressed image files live.
func (c *AppConfig) ImageDir() string {
	return filepath.Join(c.DataDir, "images")
}
