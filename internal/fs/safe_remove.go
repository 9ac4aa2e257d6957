// Package fs provides filesystem helpers for assertp4. Run working
// directories live under the system temp root; SafeRemoveAll guards their
// cleanup so it can never walk out of that root.
package fs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotUnderPrefix is returned when a removal target is not under the
// allowed prefix.
type ErrNotUnderPrefix struct {
	Target string
	Prefix string
}

func (e *ErrNotUnderPrefix) Error() string {
	return fmt.Sprintf("target %q is not under allowed prefix %q", e.Target, e.Prefix)
}

// SafeRemoveAll removes target only if it is a proper subpath of
// allowedPrefix. Both paths are cleaned and symlink-resolved before the
// check, so a link inside the temp root cannot redirect removal elsewhere.
// A target that is already gone is a no-op; any path that cannot be
// resolved fails closed with ErrNotUnderPrefix.
func SafeRemoveAll(target, allowedPrefix string) error {
	resolvedTarget, err := filepath.EvalSymlinks(filepath.Clean(target))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return &ErrNotUnderPrefix{Target: target, Prefix: allowedPrefix}
	}

	resolvedPrefix, err := filepath.EvalSymlinks(filepath.Clean(allowedPrefix))
	if err != nil || !IsSubpath(resolvedTarget, resolvedPrefix) {
		return &ErrNotUnderPrefix{Target: target, Prefix: allowedPrefix}
	}

	return os.RemoveAll(resolvedTarget)
}

// IsSubpath reports whether target is strictly below prefix: not equal to
// it and not merely sharing a name prefix. Both paths must already be
// cleaned and resolved.
func IsSubpath(target, prefix string) bool {
	sep := string(filepath.Separator)
	if !strings.HasSuffix(prefix, sep) {
		prefix += sep
	}
	return strings.HasPrefix(target, prefix) && target != prefix
}
