package s3

import (
	"path"
	"strings"
)

const (
	ManifestSuffix = ".manifest.json"
	LocksPrefix    = "locks"
)

// ArchiveKey places an archive under the optional target folder.
func ArchiveKey(folder, name string) string {
	folder = strings.Trim(folder, "/")
	if folder == "" {
		return name
	}
	return path.Join(folder, name)
}

func ManifestKey(archiveKey string) string {
	return archiveKey + ManifestSuffix
}

func IsManifestKey(key string) bool {
	return strings.HasSuffix(key, ManifestSuffix)
}

func LockKey(name string) string {
	return path.Join(LocksPrefix, name+".lock")
}
