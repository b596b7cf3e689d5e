package config

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidRole    = errors.New("invalid role: must be exactly 'producer' or 'consumer'")
	ErrInvalidMode    = errors.New("invalid producer mode: must be exactly 'run' or 'dry-run'")
	ErrInvalidBackend = errors.New("invalid queue backend: must be 'sqs', 'redis' or 'nats'")
	ErrInvalidAuth    = errors.New("invalid auth: must be 'iam-role', 'iam-keys' or 'static'")
	ErrMissingField   = errors.New("missing required field")
)

// Validate checks the parts of cfg every role depends on. Role-specific
// requirements are checked by ValidateRole.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.Role != "" {
		if err := validateRole(cfg.Role); err != nil {
			return err
		}
	}
	if strings.TrimSpace(cfg.BaseDirectory) == "" {
		return fmt.Errorf("%w: base_directory", ErrMissingField)
	}
	if cfg.Queue == nil {
		return fmt.Errorf("%w: queue", ErrMissingField)
	}
	switch cfg.Queue.Backend {
	case BackendSQS, BackendRedis, BackendNATS:
	default:
		return fmt.Errorf("%w: got %q", ErrInvalidBackend, cfg.Queue.Backend)
	}
	if strings.TrimSpace(cfg.Queue.URL) == "" {
		return fmt.Errorf("%w: queue.url", ErrMissingField)
	}
	if cfg.Source != nil {
		if err := validateS3("source", cfg.Source); err != nil {
			return err
		}
	}
	if cfg.Target != nil {
		if err := validateS3("target", &cfg.Target.S3Config); err != nil {
			return err
		}
	}
	switch cfg.Producer.Mode {
	case ModeRun, ModeDryRun:
	case "":
		return fmt.Errorf("%w (producer.mode is required)", ErrInvalidMode)
	default:
		return fmt.Errorf("%w: got %q", ErrInvalidMode, cfg.Producer.Mode)
	}
	switch cfg.Producer.Lock {
	case "", LockLocal, LockS3, LockNone:
	default:
		return fmt.Errorf("invalid producer.lock %q", cfg.Producer.Lock)
	}
	if cfg.Consumer.MaxConnections < 0 || cfg.Consumer.Workers < 0 || cfg.Consumer.FetchRetries < 0 {
		return fmt.Errorf("consumer limits must not be negative")
	}
	return nil
}

// ValidateRole checks that cfg carries everything role needs.
func ValidateRole(cfg *Config, role string) error {
	if err := validateRole(role); err != nil {
		return err
	}
	if cfg.Source == nil || cfg.Source.Bucket == "" {
		return fmt.Errorf("%w: source.bucket", ErrMissingField)
	}
	if role == RoleConsumer {
		if cfg.Target == nil || cfg.Target.Bucket == "" {
			return fmt.Errorf("%w: target.bucket", ErrMissingField)
		}
		if cfg.Consumer.ArchiveFilePrefix == "" {
			return fmt.Errorf("%w: consumer.archive_file_prefix", ErrMissingField)
		}
	}
	if role == RoleProducer && cfg.Producer.Lock == LockS3 && (cfg.Target == nil || cfg.Target.Bucket == "") {
		return fmt.Errorf("%w: target.bucket (required by producer.lock=s3)", ErrMissingField)
	}
	return nil
}

func validateRole(role string) error {
	switch role {
	case RoleProducer, RoleConsumer:
		return nil
	case "":
		return fmt.Errorf("%w (role is required)", ErrInvalidRole)
	default:
		return fmt.Errorf("%w: got %q", ErrInvalidRole, role)
	}
}

func validateS3(name string, c *S3Config) error {
	switch c.Auth {
	case "", AuthIAMRole, AuthIAMKeys:
	case AuthStatic:
		if c.AccessKey == "" || c.SecretKey == "" {
			return fmt.Errorf("%w: %s.access_key/%s.secret_key (auth=static)", ErrMissingField, name, name)
		}
	default:
		return fmt.Errorf("%s: %w: got %q", name, ErrInvalidAuth, c.Auth)
	}
	return nil
}
