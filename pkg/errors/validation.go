package errors

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// ValidateFeedURI validates a 0install feed identifier.
//
// A feed is either an http(s) URL with a host, or a path to a local feed
// file that exists. Local paths are returned in absolute form so the feed's
// identity does not depend on the working directory.
func ValidateFeedURI(uri string) (string, error) {
	if uri == "" {
		return "", New(ErrCodeInvalidFeed, "feed cannot be empty")
	}

	for _, r := range uri {
		if unicode.IsControl(r) {
			return "", New(ErrCodeInvalidFeed, "feed %q contains invalid control characters", uri)
		}
	}

	if strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://") {
		u, err := url.Parse(uri)
		if err != nil {
			return "", Wrap(ErrCodeInvalidFeed, err, "invalid feed URL %q", uri)
		}
		if u.Host == "" {
			return "", New(ErrCodeInvalidFeed, "feed URL %q has no host", uri)
		}
		return uri, nil
	}

	if strings.Contains(uri, "://") {
		return "", New(ErrCodeInvalidFeed, "feed %q must be an http(s) URL or a local file", uri)
	}

	abs, err := filepath.Abs(uri)
	if err != nil {
		return "", Wrap(ErrCodeInvalidFeed, err, "invalid feed path %q", uri)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", Wrap(ErrCodeInvalidFeed, err, "local feed %q is not readable", uri)
	}
	if info.IsDir() {
		return "", New(ErrCodeInvalidFeed, "local feed %q is a directory", uri)
	}
	return abs, nil
}

// ValidateWorkspacePath validates the destination of a new workspace.
//
// The path must not exist yet and its parent directory must exist, so the
// workspace can be created with a single mkdir. The absolute path is returned.
func ValidateWorkspacePath(path string) (string, error) {
	if path == "" {
		return "", New(ErrCodeInvalidPath, "workspace path cannot be empty")
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return "", New(ErrCodeInvalidPath, "workspace path contains invalid characters")
		}
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", Wrap(ErrCodeInvalidPath, err, "invalid workspace path %q", path)
	}

	if _, err := os.Lstat(abs); err == nil {
		return "", New(ErrCodeWorkspaceExists, "workspace %q already exists", path)
	} else if !os.IsNotExist(err) {
		return "", Wrap(ErrCodeInvalidPath, err, "cannot inspect workspace path %q", path)
	}

	parent := filepath.Dir(abs)
	info, err := os.Stat(parent)
	if err != nil {
		return "", Wrap(ErrCodeInvalidPath, err, "parent of workspace %q is not accessible", path)
	}
	if !info.IsDir() {
		return "", New(ErrCodeInvalidPath, "parent of workspace %q is not a directory", path)
	}

	return abs, nil
}
