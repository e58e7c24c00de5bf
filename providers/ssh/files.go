package ssh

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	pathpkg "path"
	"path/filepath"
	"strings"

	"github.com/pkg/sftp"
	"github.com/ruffel/redeploy"
	"github.com/ruffel/redeploy/fileutil"
)

// Upload copies a local file/dir to the remote path using SFTP.
//
// A directory's contents are copied into remotePath, which is created if missing.
// A single file is written to remotePath itself.
func (e *Environment) Upload(ctx context.Context, localPath, remotePath string, opts ...redeploy.FileOption) error {
	cfg := redeploy.NewFileConfig(opts...)

	info, err := os.Stat(localPath)
	if err != nil {
		return fmt.Errorf("failed to stat upload source: %w", err)
	}

	client, release, err := e.acquire(ctx)
	if err != nil {
		return &redeploy.TransportError{Err: err}
	}

	defer release()

	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		e.forget(client)

		return &redeploy.TransportError{Err: fmt.Errorf("failed to create sftp client: %w", err)}
	}

	defer func() { _ = sftpClient.Close() }()

	remotePath = toRemoteSlash(remotePath)

	if info.IsDir() {
		return e.uploadDir(ctx, sftpClient, localPath, remotePath, cfg)
	}

	if err := sftpClient.MkdirAll(pathpkg.Dir(remotePath)); err != nil {
		return fmt.Errorf("failed to create remote directory %q: %w", pathpkg.Dir(remotePath), err)
	}

	return e.uploadFile(ctx, sftpClient, localPath, remotePath, fileMode(info, cfg), cfg.Progress)
}

func (e *Environment) uploadDir(ctx context.Context, client *sftp.Client, localBase, remoteBase string, cfg redeploy.FileConfig) error {
	if err := client.MkdirAll(remoteBase); err != nil {
		return fmt.Errorf("failed to create remote directory %q: %w", remoteBase, err)
	}

	return filepath.WalkDir(localBase, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		relPath, err := filepath.Rel(localBase, path)
		if err != nil {
			return err
		}

		if relPath == "." {
			return nil
		}

		relPath = filepath.ToSlash(relPath)

		if fileutil.Excluded(relPath, cfg.Exclude) {
			if d.IsDir() {
				return filepath.SkipDir
			}

			return nil
		}

		remotePath := pathpkg.Join(remoteBase, relPath)
		if err := fileutil.CheckRemotePathTraversal(remoteBase, remotePath); err != nil {
			return err
		}

		// Follow symlinks so the remote side receives regular files.
		info, err := os.Stat(path)
		if err != nil {
			return err
		}

		switch {
		case info.IsDir() && d.IsDir():
			if err := client.MkdirAll(remotePath); err != nil {
				return fmt.Errorf("failed to create remote directory %q: %w", remotePath, err)
			}

			if cfg.Permissions != 0 {
				_ = client.Chmod(remotePath, cfg.Permissions|0o100)
			}

			return nil
		case info.IsDir():
			// Symlinked directory: WalkDir does not descend, copy it as its own tree.
			return e.uploadDir(ctx, client, path, remotePath, cfg)
		case info.Mode().IsRegular():
			return e.uploadFile(ctx, client, path, remotePath, fileMode(info, cfg), cfg.Progress)
		default:
			return nil // sockets, devices, pipes
		}
	})
}

func (e *Environment) uploadFile(ctx context.Context, client *sftp.Client, localPath, remotePath string, mode os.FileMode, progress redeploy.ProgressFunc) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	src, err := os.Open(localPath)
	if err != nil {
		return err
	}

	defer func() { _ = src.Close() }()

	var size int64
	if info, err := src.Stat(); err == nil {
		size = info.Size()
	}

	dst, err := client.OpenFile(remotePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return fmt.Errorf("failed to create remote file %q: %w", remotePath, err)
	}

	defer func() { _ = dst.Close() }()

	if e.config.OS != redeploy.OSWindows {
		if err := client.Chmod(remotePath, mode); err != nil {
			return fmt.Errorf("failed to chmod remote file %q: %w", remotePath, err)
		}
	}

	var reader io.Reader = &fileutil.ContextReader{Ctx: ctx, Reader: src}
	if progress != nil {
		reader = &fileutil.ProgressReader{Reader: reader, Path: remotePath, Total: size, Fn: progress}
	}

	if _, err := io.Copy(dst, reader); err != nil {
		return fmt.Errorf("failed to copy %s to %q: %w", localPath, remotePath, err)
	}

	if err := dst.Close(); err != nil {
		return fmt.Errorf("failed to finalize remote file %q: %w", remotePath, err)
	}

	return nil
}

func fileMode(info os.FileInfo, cfg redeploy.FileConfig) os.FileMode {
	if cfg.Permissions != 0 {
		return cfg.Permissions
	}

	return info.Mode().Perm()
}

// toRemoteSlash converts Windows separators so SFTP sees forward slashes.
func toRemoteSlash(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}
