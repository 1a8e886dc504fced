package launch

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// makeCleanDirectory creates dir. An existing dir is removed first when
// force is set and reported as ErrOutputExists otherwise.
func makeCleanDirectory(dir string, force bool) error {
	if _, err := os.Stat(dir); err == nil {
		if !force {
			return fmt.Errorf("%s: %w", dir, ErrOutputExists)
		}
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("removing %s: %w", dir, err)
		}
	} else if !os.IsNotExist(err) {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}

// copyFile copies src to dst, keeping the permission bits.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// copyPath copies a file or, recursively, a directory.
func copyPath(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return copyFile(src, dst)
	}
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
}

// TodaysScratch returns <scratch>/<YYYY-MM-DD>, creating it and pointing the
// symlink <scratch>/latest at it.
func TodaysScratch(scratch string, now time.Time) (string, error) {
	day := now.Format(time.DateOnly)
	dir := filepath.Join(scratch, day)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating scratch directory: %w", err)
	}
	latest := filepath.Join(scratch, "latest")
	if _, err := os.Lstat(latest); err == nil {
		if err := os.Remove(latest); err != nil {
			return "", fmt.Errorf("replacing %s: %w", latest, err)
		}
	}
	if err := os.Symlink(day, latest); err != nil {
		return "", fmt.Errorf("linking %s: %w", latest, err)
	}
	return dir, nil
}
