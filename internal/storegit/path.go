package storegit

import (
	"fmt"
	"path"
	"strings"
)

// NormalizePath cleans a user-supplied path and makes it relative to the
// repository root: an absolute path is treated as already rooted there,
// and any path that would escape the root (".." climbing past it) is
// rejected. The returned path never has a leading or trailing slash; the
// repository root itself normalizes to "".
func NormalizePath(p string) (string, error) {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		return "", nil
	}

	// Absolute paths are rooted at the repository root, not the host
	// filesystem root.
	trimmed = strings.TrimPrefix(trimmed, "/")

	cleaned := path.Clean(trimmed)
	if cleaned == "." {
		return "", nil
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("storegit: path %q escapes the repository root", p)
	}

	return strings.Trim(cleaned, "/"), nil
}
