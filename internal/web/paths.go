package web

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrPathOutsideRoot is returned for request paths that escape the data root.
var ErrPathOutsideRoot = errors.New("path outside data root")

// resolvePath joins the request path p onto root and rejects anything that
// leaves root, including absolute paths elsewhere and ".." traversal.
func resolvePath(root, p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", fmt.Errorf("%w: path is required", errBadRequest)
	}
	if strings.ContainsRune(p, 0) {
		return "", fmt.Errorf("%w: %q", ErrPathOutsideRoot, p)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve data root: %w", err)
	}

	var full string
	if filepath.IsAbs(p) {
		full = filepath.Clean(p)
	} else {
		full = filepath.Join(absRoot, p)
	}

	rel, err := filepath.Rel(absRoot, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrPathOutsideRoot, p)
	}
	if rel == "." {
		return "", fmt.Errorf("%w: path %q names the data root itself", errBadRequest, p)
	}
	return full, nil
}
