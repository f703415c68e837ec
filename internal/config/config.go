package config

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kelseyhightower/envconfig"
)

var singleConfig *Config = nil

type Config struct {
	Database *dbConfig
	Service  *svcConfig
	Pipeline *pipelineConfig
	S3       *s3Config
	Nats     *natsConfig
}

type dbConfig struct {
	Type     string `envconfig:"DB_TYPE" default:"pgsql"`
	Hostname string `envconfig:"DB_HOST" default:"localhost"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	Name     string `envconfig:"DB_NAME" default:"clipforge"`
	User     string `envconfig:"DB_USER" default:"admin"`
	Password string `envconfig:"DB_PASS" default:"adminpass"`
}

type svcConfig struct {
	Address        string   `envconfig:"CLIPFORGE_ADDRESS" default:":3443"`
	MetricsAddress string   `envconfig:"CLIPFORGE_METRICS_ADDRESS" default:":8080"`
	BaseUrl        string   `envconfig:"CLIPFORGE_BASE_URL" default:"http://localhost:3443"`
	PathPrefix     string   `envconfig:"CLIPFORGE_PATH_PREFIX" default:""`
	LogLevel       string   `envconfig:"CLIPFORGE_LOG_LEVEL" default:"info"`
	AllowedOrigins []string `envconfig:"CLIPFORGE_ALLOWED_ORIGINS" default:"http://localhost:3000"`
	MaxUploadBytes int64    `envconfig:"CLIPFORGE_MAX_UPLOAD_BYTES" default:"524288000"`
	Auth           Auth
}

type Auth struct {
	AuthenticationType string `envconfig:"CLIPFORGE_AUTH" default:""`
	JwkCertURL         string `envconfig:"CLIPFORGE_JWK_URL" default:""`
}

type pipelineConfig struct {
	Workers         int           `envconfig:"CLIPFORGE_PIPELINE_WORKERS" default:"4"`
	StageDelay      time.Duration `envconfig:"CLIPFORGE_PIPELINE_STAGE_DELAY" default:"1500ms"`
	StageTimeout    time.Duration `envconfig:"CLIPFORGE_PIPELINE_STAGE_TIMEOUT" default:"30s"`
	RequeueInterval time.Duration `envconfig:"CLIPFORGE_PIPELINE_REQUEUE_INTERVAL" default:"30s"`
	ClipCount       int           `envconfig:"CLIPFORGE_CLIP_COUNT" default:"5"`
	MinClipSeconds  int           `envconfig:"CLIPFORGE_CLIP_MIN_SECONDS" default:"15"`
	MaxClipSeconds  int           `envconfig:"CLIPFORGE_CLIP_MAX_SECONDS" default:"30"`
	DefaultDuration int           `envconfig:"CLIPFORGE_DEFAULT_DURATION_SECONDS" default:"600"`
	// Deterministic seeds clip selection from the job id.
	Deterministic bool `envconfig:"CLIPFORGE_PIPELINE_DETERMINISTIC" default:"true"`
}

type s3Config struct {
	// Backend is one of minio, memory or none.
	Backend   string `envconfig:"CLIPFORGE_S3_BACKEND" default:"memory"`
	Endpoint  string `envconfig:"CLIPFORGE_S3_ENDPOINT" default:""`
	Bucket    string `envconfig:"CLIPFORGE_S3_BUCKET" default:"clipforge-uploads"`
	AccessKey string `envconfig:"CLIPFORGE_S3_ACCESS_KEY" default:""`
	SecretKey string `envconfig:"CLIPFORGE_S3_SECRET_KEY" default:""`
	UseSSL    bool   `envconfig:"CLIPFORGE_S3_USE_SSL" default:"false"`
}

type natsConfig struct {
	URL     string `envconfig:"CLIPFORGE_NATS_URL" default:""`
	Subject string `envconfig:"CLIPFORGE_NATS_SUBJECT" default:"clipforge.jobs"`
}

func New() (*Config, error) {
	if singleConfig == nil {
		singleConfig = new(Config)
		if err := envconfig.Process("", singleConfig); err != nil {
			return nil, err
		}
	}
	return singleConfig, nil
}

// NewDefault returns a configuration backed by a private in-memory sqlite
// database and a fast pipeline. It ignores the environment.
func NewDefault() *Config {
	return &Config{
		Database: &dbConfig{
			Type: "sqlite",
			Name: fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
		},
		Service: &svcConfig{
			Address:        ":3443",
			MetricsAddress: ":8080",
			BaseUrl:        "http://localhost:3443",
			LogLevel:       "debug",
			AllowedOrigins: []string{"http://localhost:3000"},
			MaxUploadBytes: 10 * 1024 * 1024,
		},
		Pipeline: &pipelineConfig{
			Workers:         2,
			StageDelay:      10 * time.Millisecond,
			StageTimeout:    2 * time.Second,
			RequeueInterval: time.Second,
			ClipCount:       5,
			MinClipSeconds:  15,
			MaxClipSeconds:  30,
			DefaultDuration: 600,
			Deterministic:   true,
		},
		S3:   &s3Config{Backend: "memory", Bucket: "clipforge-uploads"},
		Nats: &natsConfig{Subject: "clipforge.jobs"},
	}
}
