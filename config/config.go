package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"
	"video-gate/constant"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	App      App      `yaml:"app"`
	Server   Server   `yaml:"server"`
	Queue    Queue    `yaml:"queue"`
	RabbitMQ RabbitMQ `yaml:"rabbitmq"`
	Database Database `yaml:"database"`
	Storage  Storage  `yaml:"storage"`
	MinIO    MinIO    `yaml:"minio"`
	Token    Token    `yaml:"token"`
	Auth     Auth     `yaml:"auth"`
	FFmpeg   FFmpeg   `yaml:"ffmpeg"`
	Catalog  Catalog  `yaml:"catalog"`
}

type App struct {
	Environment string `yaml:"environment"`
	Host        string `yaml:"host"`
	Protocol    string `yaml:"protocol"`
}

type Server struct {
	HttpPort    string `yaml:"http_port"`
	Workers     int    `yaml:"workers"`
	QueueSize   int    `yaml:"queue_size"`
	MaxUploadMB int64  `yaml:"max_upload_mb"`
}

type Queue struct {
	Driver string `yaml:"driver"`
	// StaleAfter is how long a queued or processing record may go untouched before retry can take it over.
	StaleAfter time.Duration `yaml:"stale_after"`
}

type RabbitMQ struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	User         string `json:"user"`
	Pass         string `json:"pass"`
	ExchangeName string `json:"exchange_name"`
	Kind         string `json:"kind"`
}

type Database struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
	Debug  bool   `yaml:"debug"`
}

type Storage struct {
	Driver  string `yaml:"driver"`
	Root    string `yaml:"root"`
	RawDir  string `yaml:"raw_dir"`
	WorkDir string `yaml:"work_dir"`
}

type MinIO struct {
	URL             string `yaml:"url"`
	AccessID        string `yaml:"access_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	Secure          bool   `yaml:"secure"`
}

type Token struct {
	Secret        string        `yaml:"secret"`
	MaxTTL        time.Duration `yaml:"max_ttl"`
	FreeTTL       time.Duration `yaml:"free_ttl"`
	UnassignedTTL time.Duration `yaml:"unassigned_ttl"`
}

type Auth struct {
	Secret string `yaml:"secret"`
}

type FFmpeg struct {
	Path           string `yaml:"path"`
	SegmentSeconds int    `yaml:"segment_seconds"`
}

type Catalog struct {
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.environment", "develop")
	v.SetDefault("app.host", "localhost")
	v.SetDefault("app.protocol", "http")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.workers", 2)
	v.SetDefault("server.queue_size", 64)
	v.SetDefault("server.max_upload_mb", 2048)
	v.SetDefault("queue.driver", "memory")
	v.SetDefault("queue.stale_after", 6*time.Hour)
	v.SetDefault("rabbitmq.host", "localhost")
	v.SetDefault("rabbitmq.port", 5672)
	v.SetDefault("rabbitmq.user", "guest")
	v.SetDefault("rabbitmq.pass", "guest")
	v.SetDefault("rabbitmq.exchange_name", "video_exchange")
	v.SetDefault("rabbitmq.kind", "direct")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("storage.driver", "fs")
	v.SetDefault("storage.root", "data/videos")
	v.SetDefault("storage.raw_dir", "data/raw")
	v.SetDefault("storage.work_dir", "data/work")
	v.SetDefault("minio.bucket", "videos")
	v.SetDefault("token.max_ttl", time.Hour)
	v.SetDefault("token.free_ttl", time.Hour)
	v.SetDefault("token.unassigned_ttl", 24*time.Hour)
	v.SetDefault("ffmpeg.path", "ffmpeg")
	v.SetDefault("ffmpeg.segment_seconds", 6)
	v.SetDefault("catalog.refresh_interval", 5*time.Minute)
}

// Load reads config.yaml from path, then .env, then VIDEO_GATE_* environment variables.
// A missing config file is not an error; a missing secret is.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(filepath.Join(path, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.SetEnvPrefix("VIDEO_GATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{
		App: App{
			Environment: v.GetString("app.environment"),
			Host:        v.GetString("app.host"),
			Protocol:    v.GetString("app.protocol"),
		},
		Server: Server{
			HttpPort:    v.GetString("server.port"),
			Workers:     v.GetInt("server.workers"),
			QueueSize:   v.GetInt("server.queue_size"),
			MaxUploadMB: v.GetInt64("server.max_upload_mb"),
		},
		Queue: Queue{
			Driver:     v.GetString("queue.driver"),
			StaleAfter: v.GetDuration("queue.stale_after"),
		},
		RabbitMQ: RabbitMQ{
			Host:         v.GetString("rabbitmq.host"),
			Port:         v.GetInt("rabbitmq.port"),
			User:         v.GetString("rabbitmq.user"),
			Pass:         v.GetString("rabbitmq.pass"),
			ExchangeName: v.GetString("rabbitmq.exchange_name"),
			Kind:         v.GetString("rabbitmq.kind"),
		},
		Database: Database{
			Driver: v.GetString("database.driver"),
			DSN:    v.GetString("database.dsn"),
			Debug:  v.GetBool("database.debug"),
		},
		Storage: Storage{
			Driver:  v.GetString("storage.driver"),
			Root:    v.GetString("storage.root"),
			RawDir:  v.GetString("storage.raw_dir"),
			WorkDir: v.GetString("storage.work_dir"),
		},
		MinIO: MinIO{
			URL:             v.GetString("minio.url"),
			AccessID:        v.GetString("minio.access_id"),
			SecretAccessKey: v.GetString("minio.secret_access_key"),
			Bucket:          v.GetString("minio.bucket"),
			Prefix:          v.GetString("minio.prefix"),
			Secure:          v.GetBool("minio.secure"),
		},
		Token: Token{
			Secret:        v.GetString("token.secret"),
			MaxTTL:        v.GetDuration("token.max_ttl"),
			FreeTTL:       v.GetDuration("token.free_ttl"),
			UnassignedTTL: v.GetDuration("token.unassigned_ttl"),
		},
		Auth: Auth{
			Secret: v.GetString("auth.secret"),
		},
		FFmpeg: FFmpeg{
			Path:           v.GetString("ffmpeg.path"),
			SegmentSeconds: v.GetInt("ffmpeg.segment_seconds"),
		},
		Catalog: Catalog{
			RefreshInterval: v.GetDuration("catalog.refresh_interval"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Token.Secret == "" {
		return errors.New("token.secret is required")
	}
	if c.Auth.Secret == "" {
		return errors.New("auth.secret is required")
	}
	if c.Token.MaxTTL <= 0 {
		return errors.New("token.max_ttl must be positive")
	}
	switch c.Queue.Driver {
	case "memory", "rabbitmq":
	default:
		return fmt.Errorf("unknown queue.driver %q", c.Queue.Driver)
	}
	switch c.Storage.Driver {
	case "fs", "minio":
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unknown database.driver %q", c.Database.Driver)
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == constant.EnvironmentProduction.String()
}
