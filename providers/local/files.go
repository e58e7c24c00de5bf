package local

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ruffel/redeploy"
	"github.com/ruffel/redeploy/fileutil"
)

// Upload copies a file or directory to another local path.
//
// A directory's contents are copied into remotePath, which is created if missing.
// A single file is written to remotePath itself.
func (e *Environment) Upload(ctx context.Context, localPath, remotePath string, opts ...redeploy.FileOption) error {
	if e.isClosed() {
		return fmt.Errorf("cannot upload files: %w", redeploy.ErrEnvironmentClosed)
	}

	cfg := redeploy.NewFileConfig(opts...)

	info, err := os.Stat(localPath)
	if err != nil {
		return fmt.Errorf("failed to stat upload source: %w", err)
	}

	if info.IsDir() {
		return e.copyDir(ctx, localPath, remotePath, cfg)
	}

	return e.copyFile(ctx, localPath, remotePath, fileMode(info, cfg), cfg.Progress)
}

func (e *Environment) copyDir(ctx context.Context, src, dst string, cfg redeploy.FileConfig) error {
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return err
	}

	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(src, path)
		if err != nil || relPath == "." {
			return err
		}

		if fileutil.Excluded(filepath.ToSlash(relPath), cfg.Exclude) {
			if d.IsDir() {
				return filepath.SkipDir
			}

			return nil
		}

		targetPath := filepath.Join(dst, relPath)
		if err := checkPathTraversal(dst, targetPath); err != nil {
			return err
		}

		info, err := os.Stat(path)
		if err != nil {
			return err
		}

		switch {
		case info.IsDir() && d.IsDir():
			return os.MkdirAll(targetPath, info.Mode().Perm()|0o700)
		case info.IsDir():
			// Symlinked directory: WalkDir does not descend, copy it as its own tree.
			return e.copyDir(ctx, path, targetPath, cfg)
		case info.Mode().IsRegular():
			return e.copyFile(ctx, path, targetPath, fileMode(info, cfg), cfg.Progress)
		default:
			return nil
		}
	})
}

func (e *Environment) copyFile(ctx context.Context, src, dst string, mode os.FileMode, progress redeploy.ProgressFunc) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}

	defer func() { _ = sourceFile.Close() }()

	var size int64
	if info, err := sourceFile.Stat(); err == nil {
		size = info.Size()
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	destFile, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}

	defer func() { _ = destFile.Close() }()

	// OpenFile only applies mode to new files.
	if err := destFile.Chmod(mode); err != nil && e.targetOS != redeploy.OSWindows {
		return err
	}

	var reader io.Reader = &fileutil.ContextReader{Ctx: ctx, Reader: sourceFile}
	if progress != nil {
		reader = &fileutil.ProgressReader{Reader: reader, Path: dst, Total: size, Fn: progress}
	}

	if _, err := io.Copy(destFile, reader); err != nil {
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}

	if err := destFile.Sync(); err != nil {
		return err
	}

	return destFile.Close()
}

func fileMode(info os.FileInfo, cfg redeploy.FileConfig) os.FileMode {
	if cfg.Permissions != 0 {
		return cfg.Permissions
	}

	return info.Mode().Perm()
}
