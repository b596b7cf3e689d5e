package archive

import (
	"fmt"
	"strings"
)

const Extension = ".tar.gz"

// Name builds "{archivePrefix}_{device}_{year}.tar.gz" where device is the
// first path segment of the context prefix.
func Name(archivePrefix, contextPrefix, year string) string {
	return fmt.Sprintf("%s_%s_%s%s", archivePrefix, FirstSegment(contextPrefix), year, Extension)
}

func FirstSegment(prefix string) string {
	prefix = strings.TrimLeft(prefix, "/")
	if i := strings.IndexByte(prefix, '/'); i >= 0 {
		return prefix[:i]
	}
	return prefix
}
