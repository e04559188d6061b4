// Package staging moves content between memory and local files: short-lived
// files for tools that can only upload from disk, and saved downloads.
package staging

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
)

// Pattern is the os.CreateTemp pattern for staged files.
const Pattern = "lftpcmd-put-*"

// WithTempFile writes content to a new uniquely named temp file, calls fn
// with its path and removes the file afterwards, whether fn succeeds or not.
// Errors from writing, fn and removal are combined.
func WithTempFile(ctx context.Context, content []byte, fn func(path string) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	f, err := os.CreateTemp("", Pattern)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	path := f.Name()

	defer func() {
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			err = multierror.Append(err, fmt.Errorf("failed to remove temp file: %w", rmErr)).ErrorOrNil()
		}
	}()

	if _, werr := f.Write(content); werr != nil {
		f.Close()
		return fmt.Errorf("failed to write temp file: %w", werr)
	}
	if cerr := f.Close(); cerr != nil {
		return fmt.Errorf("failed to close temp file: %w", cerr)
	}

	return fn(path)
}

// Save writes content to dir/name, creating dir if needed, and returns the
// written path. Only the last element of name is used. The file is written
// under a temporary name and renamed into place.
func Save(ctx context.Context, dir, name string, content []byte) (_ string, err error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	base := filepath.Base(filepath.FromSlash(name))
	if base == "." || base == string(filepath.Separator) {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}

	f, err := os.CreateTemp(dir, ".lftpcmd-get-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmp := f.Name()
	defer func() {
		if err != nil {
			os.Remove(tmp)
		}
	}()

	if _, err := f.Write(content); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", tmp, err)
	}

	target := filepath.Join(dir, base)
	if err := os.Rename(tmp, target); err != nil {
		return "", fmt.Errorf("failed to save %s: %w", target, err)
	}
	return target, nil
}
