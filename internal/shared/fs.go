package shared

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// RenameWithFallback attempts os.Rename and falls back to copying and
// deleting when the rename fails with a link error, which is what
// crossing filesystem boundaries produces.
func RenameWithFallback(src string, dst string) error {
	if _, err := os.Lstat(src); err != nil {
		return fmt.Errorf("cannot stat %s: %w", src, err)
	}
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) {
		return fmt.Errorf("cannot rename %s to %s: %w", src, dst, err)
	}
	return renameByCopy(src, dst)
}

func renameByCopy(src string, dst string) error {
	info, err := os.Lstat(src)
	if err != nil {
		return fmt.Errorf("cannot stat %s: %w", src, err)
	}
	if info.IsDir() {
		err = CopyDir(src, dst)
	} else if info.Mode()&os.ModeSymlink != 0 {
		err = copySymlink(src, dst)
	} else {
		err = copyFile(src, dst)
	}
	if err != nil {
		return fmt.Errorf("copy fallback failed for %s: %w", src, err)
	}
	if err := os.RemoveAll(src); err != nil {
		return fmt.Errorf("cannot remove %s after copy fallback: %w", src, err)
	}
	return nil
}

// CopyDir recursively copies a directory tree, preserving permissions.
// The destination must not already exist.
func CopyDir(src string, dst string) error {
	src = filepath.Clean(src)
	dst = filepath.Clean(dst)

	info, err := os.Lstat(src)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("source %s is not a directory", src)
	}
	if _, err := os.Stat(dst); err == nil {
		return fmt.Errorf("destination %s already exists", dst)
	}
	if err := os.MkdirAll(dst, info.Mode().Perm()); err != nil {
		return err
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())

		entryInfo, err := os.Lstat(srcPath)
		if err != nil {
			return err
		}
		switch {
		case entryInfo.IsDir():
			err = CopyDir(srcPath, dstPath)
		case entryInfo.Mode()&os.ModeSymlink != 0:
			err = copySymlink(srcPath, dstPath)
		default:
			err = copyFile(srcPath, dstPath)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src string, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	dstFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dstFile, srcFile); err != nil {
		dstFile.Close()
		return err
	}
	if err := dstFile.Sync(); err != nil {
		dstFile.Close()
		return err
	}
	if err := dstFile.Close(); err != nil {
		return err
	}

	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	return os.Chmod(dst, info.Mode().Perm())
}

func copySymlink(src string, dst string) error {
	target, err := os.Readlink(src)
	if err != nil {
		return err
	}
	return os.Symlink(target, dst)
}
