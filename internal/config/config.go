package config

import (
	"runtime"
	"time"

	"github.com/spf13/viper"
)

const (
	RoleProducer = "producer"
	RoleConsumer = "consumer"

	ModeRun    = "run"
	ModeDryRun = "dry-run"

	BackendSQS   = "sqs"
	BackendRedis = "redis"
	BackendNATS  = "nats"

	AuthIAMRole = "iam-role"
	AuthIAMKeys = "iam-keys"
	AuthStatic  = "static"

	LockLocal = "local"
	LockS3    = "s3"
	LockNone  = "none"
)

type Config struct {
	Role          string         `mapstructure:"role" yaml:"role"`
	BaseDirectory string         `mapstructure:"base_directory" yaml:"base_directory"`
	Log           LogConfig      `mapstructure:"log" yaml:"log"`
	Source        *S3Config      `mapstructure:"source" yaml:"source"`
	Target        *TargetConfig  `mapstructure:"target" yaml:"target"`
	Queue         *QueueConfig   `mapstructure:"queue" yaml:"queue"`
	Producer      ProducerConfig `mapstructure:"producer" yaml:"producer"`
	Consumer      ConsumerConfig `mapstructure:"consumer" yaml:"consumer"`
	Metrics       MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	File   string `mapstructure:"file" yaml:"file,omitempty"`
}

type S3Config struct {
	Bucket    string     `mapstructure:"bucket" yaml:"bucket"`
	Region    string     `mapstructure:"region" yaml:"region"`
	Endpoint  string     `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	Auth      string     `mapstructure:"auth" yaml:"auth"`
	Profile   string     `mapstructure:"profile" yaml:"profile,omitempty"`
	AccessKey string     `mapstructure:"access_key" yaml:"access_key,omitempty"`
	SecretKey string     `mapstructure:"secret_key" yaml:"secret_key,omitempty"`
	PathStyle bool       `mapstructure:"path_style" yaml:"path_style,omitempty"`
	TLS       *TLSConfig `mapstructure:"tls" yaml:"tls,omitempty"`
}

type TLSConfig struct {
	InsecureSkipVerify bool `mapstructure:"insecure_skip_verify" yaml:"insecure_skip_verify"`
}

// TargetConfig is the archive destination. The embedded S3Config is squashed so
// target keys sit next to bucket/region in the YAML.
type TargetConfig struct {
	S3Config     `mapstructure:",squash" yaml:",inline"`
	Folder       string `mapstructure:"folder" yaml:"folder"`
	StorageClass string `mapstructure:"storage_class" yaml:"storage_class"`
	PartSizeMB   int    `mapstructure:"part_size_mb" yaml:"part_size_mb"`
}

type QueueConfig struct {
	Backend           string        `mapstructure:"backend" yaml:"backend"`
	URL               string        `mapstructure:"url" yaml:"url"`
	Region            string        `mapstructure:"region" yaml:"region,omitempty"`
	Name              string        `mapstructure:"name" yaml:"name,omitempty"`
	VisibilityTimeout time.Duration `mapstructure:"visibility_timeout" yaml:"visibility_timeout"`
	ReceiveWait       time.Duration `mapstructure:"receive_wait" yaml:"receive_wait"`
	Auth              string        `mapstructure:"auth" yaml:"auth,omitempty"`
	Profile           string        `mapstructure:"profile" yaml:"profile,omitempty"`
	Endpoint          string        `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	AccessKey         string        `mapstructure:"access_key" yaml:"access_key,omitempty"`
	SecretKey         string        `mapstructure:"secret_key" yaml:"secret_key,omitempty"`
}

type ProducerConfig struct {
	ListingPrefix string        `mapstructure:"listing_prefix" yaml:"listing_prefix"`
	StartAfter    string        `mapstructure:"start_after" yaml:"start_after"`
	KeyFilter     string        `mapstructure:"key_filter" yaml:"key_filter"`
	Mode          string        `mapstructure:"mode" yaml:"mode"`
	Checkpoint    bool          `mapstructure:"checkpoint" yaml:"checkpoint"`
	Lock          string        `mapstructure:"lock" yaml:"lock"`
	LockTTL       time.Duration `mapstructure:"lock_ttl" yaml:"lock_ttl"`
}

type ConsumerConfig struct {
	ArchiveFilePrefix string        `mapstructure:"archive_file_prefix" yaml:"archive_file_prefix"`
	MaxConnections    int           `mapstructure:"max_connections" yaml:"max_connections"`
	Workers           int           `mapstructure:"workers" yaml:"workers"`
	FetchRetries      int           `mapstructure:"fetch_retries" yaml:"fetch_retries"`
	FetchBackoff      time.Duration `mapstructure:"fetch_backoff" yaml:"fetch_backoff"`
	FetchRateLimit    float64       `mapstructure:"fetch_rate_limit" yaml:"fetch_rate_limit"`
	WriteManifest     bool          `mapstructure:"write_manifest" yaml:"write_manifest"`
	OperationTimeout  time.Duration `mapstructure:"operation_timeout" yaml:"operation_timeout"`
}

type MetricsConfig struct {
	Listen string `mapstructure:"listen" yaml:"listen"`
}

// SetDefaults registers fallback values on v before unmarshalling.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("base_directory", DefaultBaseDirectory)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("source.auth", AuthIAMRole)
	v.SetDefault("target.auth", AuthIAMRole)
	v.SetDefault("target.storage_class", "GLACIER")
	v.SetDefault("target.part_size_mb", DefaultPartSizeMB)
	v.SetDefault("queue.backend", BackendSQS)
	v.SetDefault("queue.name", "s3archivebuilder")
	v.SetDefault("queue.visibility_timeout", 30*time.Minute)
	v.SetDefault("queue.receive_wait", 2*time.Second)
	v.SetDefault("queue.auth", AuthIAMRole)
	v.SetDefault("producer.mode", ModeDryRun)
	v.SetDefault("producer.lock", LockLocal)
	v.SetDefault("producer.lock_ttl", 6*time.Hour)
	v.SetDefault("consumer.archive_file_prefix", "archive")
	v.SetDefault("consumer.max_connections", 16)
	v.SetDefault("consumer.workers", runtime.NumCPU())
	v.SetDefault("consumer.fetch_retries", 3)
	v.SetDefault("consumer.fetch_backoff", 500*time.Millisecond)
	v.SetDefault("consumer.write_manifest", true)
}

const (
	DefaultBaseDirectory = "/var/lib/s3archivebuilder"
	DefaultPartSizeMB    = 8
)

func Unmarshal(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}
	return &c, nil
}
