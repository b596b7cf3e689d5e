package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Sample returns a config populated with the defaults and placeholder
// buckets, suitable as a starting point for operators.
func Sample() *Config {
	return &Config{
		Role:          RoleConsumer,
		BaseDirectory: DefaultBaseDirectory,
		Log:           LogConfig{Level: "info", Format: "json"},
		Source:        &S3Config{Bucket: "source-bucket", Region: "us-east-1", Auth: AuthIAMRole},
		Target: &TargetConfig{
			S3Config:     S3Config{Bucket: "archive-bucket", Region: "us-east-1", Auth: AuthIAMRole},
			Folder:       "archives",
			StorageClass: "GLACIER",
			PartSizeMB:   DefaultPartSizeMB,
		},
		Queue: &QueueConfig{
			Backend: BackendSQS,
			URL:     "https://sqs.us-east-1.amazonaws.com/123456789012/s3archivebuilder",
			Region:  "us-east-1",
			Auth:    AuthIAMRole,
		},
		Producer: ProducerConfig{Mode: ModeDryRun, Lock: LockLocal},
		Consumer: ConsumerConfig{
			ArchiveFilePrefix: "archive",
			MaxConnections:    16,
			FetchRetries:      3,
			WriteManifest:     true,
		},
	}
}

func Write(cfg *Config, path string) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir %s: %w", dir, err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}
