//go:build integration

package docker_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/ruffel/redeploy"
	"github.com/ruffel/redeploy/invoketest"
	"github.com/ruffel/redeploy/providers/docker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testImage     = "alpine:latest"
	testContainer = "redeploy-integration-test-container"
)

func TestIntegration(t *testing.T) {
	ctx := context.Background()

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		t.Skipf("Skipping Docker integration test: failed to create client: %v", err)
	}
	defer cli.Close()

	if _, err := cli.Ping(ctx); err != nil {
		t.Skipf("Skipping Docker integration test: daemon not reachable: %v", err)
	}

	setupContainer(ctx, t, cli)
	defer teardownContainer(ctx, cli)

	newEnv := func(t invoketest.T) redeploy.Environment {
		env, err := docker.New(docker.WithContainer(testContainer))
		require.NoError(t, err)

		return env
	}

	t.Run("contract", func(t *testing.T) {
		var n atomic.Int64

		invoketest.Verify(t, invoketest.Target{
			New: newEnv,
			RemoteDir: func(t invoketest.T) string {
				dir := fmt.Sprintf("/work/contract-%d", n.Add(1))

				env := newEnv(t)
				defer func() { _ = env.Close() }()

				_, err := env.Run(t.Context(), redeploy.NewCommand("mkdir", "-p", dir))
				require.NoError(t, err)

				return dir
			},
		})
	})

	t.Run("exit code", func(t *testing.T) {
		env := newEnv(t)
		defer env.Close()

		res, err := env.Run(ctx, &redeploy.Command{Cmd: "sh", Args: []string{"-c", "exit 42"}})

		var exitErr *redeploy.ExitError
		require.ErrorAs(t, err, &exitErr)
		assert.Equal(t, 42, exitErr.ExitCode)
		assert.Equal(t, 42, res.ExitCode)
	})

	t.Run("upload replaces file", func(t *testing.T) {
		env := newEnv(t)
		defer env.Close()

		src := filepath.Join(t.TempDir(), "upload.txt")
		require.NoError(t, os.WriteFile(src, []byte("docker-transfer-test"), 0o644))
		require.NoError(t, env.Upload(ctx, src, "/work/upload/upload.txt", redeploy.WithPermissions(0o644)))

		var stdout bytes.Buffer

		_, err := env.Run(ctx, &redeploy.Command{Cmd: "cat", Args: []string{"/work/upload/upload.txt"}, Stdout: &stdout})
		require.NoError(t, err)
		assert.Equal(t, "docker-transfer-test", stdout.String())
	})
}

func setupContainer(ctx context.Context, t *testing.T, cli *client.Client) {
	t.Helper()

	_ = cli.ContainerRemove(ctx, testContainer, container.RemoveOptions{Force: true})

	reader, err := cli.ImagePull(ctx, testImage, image.PullOptions{})
	if err != nil {
		t.Fatalf("Failed to pull %s: %v", testImage, err)
	}

	_, _ = io.Copy(io.Discard, reader)
	_ = reader.Close()

	_, err = cli.ContainerCreate(ctx, &container.Config{
		Image: testImage,
		Cmd:   []string{"sleep", "infinity"},
	}, nil, nil, nil, testContainer)
	if err != nil {
		t.Fatalf("Failed to create container: %v", err)
	}

	if err := cli.ContainerStart(ctx, testContainer, container.StartOptions{}); err != nil {
		t.Fatalf("Failed to start container: %v", err)
	}
}

func teardownContainer(ctx context.Context, cli *client.Client) {
	_ = cli.ContainerRemove(ctx, testContainer, container.RemoveOptions{Force: true})
}
