package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sefazor/ourphotos-resizer/internal/models"
	"github.com/sefazor/ourphotos-resizer/pkg/utils"
	"github.com/spf13/viper"
)

const (
	sourceBucketSuffix = "-originals"
	targetBucketSuffix = "-sized"
)

type ServerConfig struct {
	Port            string        `validate:"required"`
	RequestTimeout  time.Duration `validate:"gt=0"`
	RateLimitMax    int           `validate:"gte=0"`
	RateLimitWindow time.Duration `validate:"gt=0"`
}

type StorageConfig struct {
	// OwnerID is the account identifier bucket names are derived from
	OwnerID         string
	BucketPrefix    string
	SourceBucket    string `validate:"required"`
	TargetBucket    string `validate:"required"`
	Region          string `validate:"required"`
	Endpoint        string `validate:"omitempty,url"`
	AccessKeyID     string `validate:"required_with=SecretAccessKey"`
	SecretAccessKey string `validate:"required_with=AccessKeyID"`
	UsePathStyle    bool
	CacheControl    string
}

type ResizeConfig struct {
	// nfnt/resize interpolation, 0 nearest neighbor .. 5 Lanczos3
	Interpolation int    `validate:"gte=0,lte=5"`
	JPEGQuality   int    `validate:"gte=1,lte=100"`
	MaxDimension  uint   `validate:"gte=1"`
	MaxPixels     uint64 `validate:"gte=1"`
}

// QueueConfig is only read by the worker and is checked by ValidateQueue,
// not by LoadConfig.
type QueueConfig struct {
	URL        string `validate:"omitempty,url"`
	Exchange   string
	RoutingKey string
	QueueName  string `validate:"required"`
	Prefetch   int    `validate:"gte=1"`
	// ResolutionList is the raw PREGENERATE_RESOLUTIONS value
	ResolutionList string
	Resolutions    []models.Resolution `validate:"min=1"`
	Backfill       bool
	MetricsAddr    string
}

type LogConfig struct {
	Level       string `validate:"oneof=debug info warn error"`
	Development bool
}

type Config struct {
	// PublicURL is the base the redirect Location is built from
	PublicURL string `validate:"required,url"`
	Server    ServerConfig
	Storage   StorageConfig
	Resize    ResizeConfig
	Queue     QueueConfig `validate:"-"`
	Log       LogConfig
}

// LoadConfig reads .env (or the given files) into the environment, then
// builds and validates the configuration. Missing env files are ignored.
func LoadConfig(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading env file: %w", err)
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	return FromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("REQUEST_TIMEOUT", 30*time.Second)
	v.SetDefault("RATE_LIMIT_MAX", 0)
	v.SetDefault("RATE_LIMIT_WINDOW", time.Minute)

	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("S3_USE_PATH_STYLE", false)

	v.SetDefault("RESIZE_INTERPOLATION", 2)
	v.SetDefault("RESIZE_JPEG_QUALITY", 85)
	v.SetDefault("RESIZE_MAX_DIMENSION", 10000)
	v.SetDefault("RESIZE_MAX_PIXELS", 100_000_000)

	v.SetDefault("AMQP_QUEUE", "resizer_origin_events")
	v.SetDefault("AMQP_PREFETCH", 1)
	v.SetDefault("PREGENERATE_RESOLUTIONS", "50x50,100x100,500x500")
	v.SetDefault("WORKER_BACKFILL", false)
	v.SetDefault("WORKER_METRICS_ADDR", ":9090")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_DEVELOPMENT", false)
}

func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{}

	cfg.PublicURL = strings.TrimRight(v.GetString("PUBLIC_URL"), "/")

	// Server config
	cfg.Server.Port = v.GetString("PORT")
	cfg.Server.RequestTimeout = v.GetDuration("REQUEST_TIMEOUT")
	cfg.Server.RateLimitMax = v.GetInt("RATE_LIMIT_MAX")
	cfg.Server.RateLimitWindow = v.GetDuration("RATE_LIMIT_WINDOW")

	// Storage config
	cfg.Storage.OwnerID = v.GetString("OWNER_ID")
	cfg.Storage.BucketPrefix = v.GetString("BUCKET_PREFIX")
	cfg.Storage.SourceBucket = bucketName(v.GetString("SOURCE_BUCKET"), cfg.Storage.BucketPrefix, cfg.Storage.OwnerID, sourceBucketSuffix)
	cfg.Storage.TargetBucket = bucketName(v.GetString("TARGET_BUCKET"), cfg.Storage.BucketPrefix, cfg.Storage.OwnerID, targetBucketSuffix)
	cfg.Storage.Region = v.GetString("S3_REGION")
	cfg.Storage.Endpoint = v.GetString("S3_ENDPOINT")
	cfg.Storage.AccessKeyID = v.GetString("S3_ACCESS_KEY_ID")
	cfg.Storage.SecretAccessKey = v.GetString("S3_SECRET_ACCESS_KEY")
	cfg.Storage.UsePathStyle = v.GetBool("S3_USE_PATH_STYLE")
	cfg.Storage.CacheControl = v.GetString("TARGET_CACHE_CONTROL")

	// Resize config
	cfg.Resize.Interpolation = v.GetInt("RESIZE_INTERPOLATION")
	cfg.Resize.JPEGQuality = v.GetInt("RESIZE_JPEG_QUALITY")
	cfg.Resize.MaxDimension = v.GetUint("RESIZE_MAX_DIMENSION")
	cfg.Resize.MaxPixels = v.GetUint64("RESIZE_MAX_PIXELS")

	// Queue config
	cfg.Queue.URL = v.GetString("AMQP_URL")
	cfg.Queue.Exchange = v.GetString("AMQP_EXCHANGE")
	cfg.Queue.RoutingKey = v.GetString("AMQP_ROUTING_KEY")
	cfg.Queue.QueueName = v.GetString("AMQP_QUEUE")
	cfg.Queue.Prefetch = v.GetInt("AMQP_PREFETCH")
	cfg.Queue.Backfill = v.GetBool("WORKER_BACKFILL")
	cfg.Queue.MetricsAddr = v.GetString("WORKER_METRICS_ADDR")

	cfg.Queue.ResolutionList = v.GetString("PREGENERATE_RESOLUTIONS")

	// Log config
	cfg.Log.Level = strings.ToLower(v.GetString("LOG_LEVEL"))
	cfg.Log.Development = v.GetBool("LOG_DEVELOPMENT")

	if err := utils.NewValidator().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// ValidateQueue parses the pre-generation resolutions and checks the
// settings the worker needs on top of the shared ones.
func (c *Config) ValidateQueue() error {
	resolutions, err := parseResolutions(c.Queue.ResolutionList)
	if err != nil {
		return err
	}
	c.Queue.Resolutions = resolutions

	if err := utils.NewValidator().Struct(c.Queue); err != nil {
		return fmt.Errorf("invalid worker configuration: %w", err)
	}
	return nil
}

// bucketName prefers an explicit override, otherwise derives
// {prefix}{owner}{suffix}. Without an owner there is nothing to derive from.
func bucketName(override, prefix, owner, suffix string) string {
	if override != "" {
		return override
	}
	if owner == "" {
		return ""
	}
	return prefix + owner + suffix
}

func parseResolutions(s string) ([]models.Resolution, error) {
	var out []models.Resolution
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		res, err := models.ParseResolution(part)
		if err != nil {
			return nil, fmt.Errorf("PREGENERATE_RESOLUTIONS: %w", err)
		}
		out = append(out, res)
	}
	return out, nil
}
