package docker

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	pathpkg "path"
	"path/filepath"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/ruffel/redeploy"
	"github.com/ruffel/redeploy/fileutil"
)

// Upload streams a local file or directory into the container as a tar archive.
//
// A directory's contents are copied into remotePath, which is created if missing.
// A single file is written to remotePath itself. Entries are owned by root.
func (e *Environment) Upload(ctx context.Context, localPath, remotePath string, opts ...redeploy.FileOption) error {
	if e.isClosed() {
		return fmt.Errorf("cannot upload files: %w", redeploy.ErrEnvironmentClosed)
	}

	cfg := redeploy.NewFileConfig(opts...)

	info, err := os.Stat(localPath)
	if err != nil {
		return fmt.Errorf("failed to stat upload source: %w", err)
	}

	// The archive is extracted at the container root and carries the destination as a
	// relative path, so the daemon creates missing intermediate directories.
	root, rel := splitContainerPath(remotePath, e.TargetOS())
	if rel == "" {
		return fmt.Errorf("refusing to upload onto container root %q", remotePath)
	}

	a := &archiver{ctx: ctx, cfg: cfg, root: root}

	pr, pw := io.Pipe()
	archiveDone := make(chan error, 1)

	go func() {
		err := a.write(pw, localPath, info, rel)
		_ = pw.CloseWithError(err)
		archiveDone <- err
	}()

	copyErr := e.client.CopyToContainer(ctx, e.config.Container, root, pr, container.CopyToContainerOptions{
		AllowOverwriteDirWithFile: true,
	})

	_ = pr.Close()
	archiveErr := <-archiveDone

	switch {
	case archiveErr != nil && !errors.Is(archiveErr, io.ErrClosedPipe):
		return archiveErr
	case copyErr != nil:
		return &redeploy.TransportError{Err: fmt.Errorf("failed to copy to container: %w", copyErr)}
	default:
		return nil
	}
}

// splitContainerPath separates the extraction root ("/" or a drive) from the
// slash-separated destination relative to it.
func splitContainerPath(remotePath string, targetOS redeploy.TargetOS) (string, string) {
	p := strings.ReplaceAll(remotePath, `\`, "/")

	if targetOS == redeploy.OSWindows {
		if len(p) >= 3 && p[1] == ':' && p[2] == '/' {
			return p[:3], strings.Trim(pathpkg.Clean("/"+p[3:]), "/")
		}

		return "C:/", strings.Trim(pathpkg.Clean("/"+p), "/")
	}

	return "/", strings.Trim(pathpkg.Clean("/"+p), "/")
}

// archiver writes the tar stream for one upload.
type archiver struct {
	ctx  context.Context //nolint:containedctx // Scoped to a single Upload call.
	cfg  redeploy.FileConfig
	root string
}

func (a *archiver) write(w io.Writer, localPath string, info os.FileInfo, rel string) error {
	tw := tar.NewWriter(w)

	var err error
	if info.IsDir() {
		err = a.addDir(tw, localPath, rel)
	} else {
		err = a.addFile(tw, localPath, rel, info)
	}

	if err != nil {
		return err
	}

	return tw.Close()
}

func (a *archiver) addDir(tw *tar.Writer, localBase, remoteBase string) error {
	info, err := os.Stat(localBase)
	if err != nil {
		return err
	}

	if err := a.writeDirHeader(tw, remoteBase, info); err != nil {
		return err
	}

	return filepath.WalkDir(localBase, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if a.ctx.Err() != nil {
			return a.ctx.Err()
		}

		relPath, err := filepath.Rel(localBase, path)
		if err != nil || relPath == "." {
			return err
		}

		relPath = filepath.ToSlash(relPath)

		if fileutil.Excluded(relPath, a.cfg.Exclude) {
			if d.IsDir() {
				return filepath.SkipDir
			}

			return nil
		}

		name := pathpkg.Join(remoteBase, relPath)
		if err := fileutil.CheckRemotePathTraversal(remoteBase, name); err != nil {
			return err
		}

		info, err := os.Stat(path)
		if err != nil {
			return err
		}

		switch {
		case info.IsDir() && d.IsDir():
			return a.writeDirHeader(tw, name, info)
		case info.IsDir():
			return a.addDir(tw, path, name)
		case info.Mode().IsRegular():
			return a.addFile(tw, path, name, info)
		default:
			return nil
		}
	})
}

func (a *archiver) writeDirHeader(tw *tar.Writer, name string, info os.FileInfo) error {
	mode := info.Mode().Perm()
	if a.cfg.Permissions != 0 {
		mode = a.cfg.Permissions | 0o100
	}

	return tw.WriteHeader(&tar.Header{
		Typeflag: tar.TypeDir,
		Name:     name + "/",
		Mode:     int64(mode),
		ModTime:  info.ModTime(),
	})
}

func (a *archiver) addFile(tw *tar.Writer, localPath, name string, info os.FileInfo) error {
	if a.ctx.Err() != nil {
		return a.ctx.Err()
	}

	src, err := os.Open(localPath)
	if err != nil {
		return err
	}

	defer func() { _ = src.Close() }()

	mode := info.Mode().Perm()
	if a.cfg.Permissions != 0 {
		mode = a.cfg.Permissions
	}

	if err := tw.WriteHeader(&tar.Header{
		Typeflag: tar.TypeReg,
		Name:     name,
		Mode:     int64(mode),
		Size:     info.Size(),
		ModTime:  info.ModTime(),
	}); err != nil {
		return err
	}

	var reader io.Reader = &fileutil.ContextReader{Ctx: a.ctx, Reader: src}
	if a.cfg.Progress != nil {
		reader = &fileutil.ProgressReader{Reader: reader, Path: a.root + name, Total: info.Size(), Fn: a.cfg.Progress}
	}

	// Exactly Size bytes must follow the header.
	if _, err := io.CopyN(tw, reader, info.Size()); err != nil {
		return fmt.Errorf("failed to archive %s: %w", localPath, err)
	}

	return nil
}
