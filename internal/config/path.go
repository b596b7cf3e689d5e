package config

import (
	"os"
	"path/filepath"
)

const (
	DefaultConfigDir  = "/etc/s3archivebuilder"
	DefaultConfigName = "config.yaml"
)

const EnvConfigPath = "S3AB_CONFIG"

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir, DefaultConfigName)
}

func ResolveConfigPath() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	return DefaultConfigPath()
}

// Directory layout under base_directory.
func ControllerDir(base string) string { return filepath.Join(base, "Controller") }
func ProducerDir(base string) string   { return filepath.Join(base, "Producer") }
func ArchivesDir(base string) string   { return filepath.Join(base, "Consumer", "Archives") }
func CheckpointDir(base string) string { return filepath.Join(base, "Producer", "checkpoint") }

// EnsureDirs creates the directories the given role writes into.
func EnsureDirs(base, role string) error {
	dirs := []string{ControllerDir(base)}
	switch role {
	case RoleProducer:
		dirs = append(dirs, ProducerDir(base))
	case RoleConsumer:
		dirs = append(dirs, ArchivesDir(base))
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return err
		}
	}
	return nil
}
