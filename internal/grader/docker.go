package grader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strconv"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"go.uber.org/zap"
)

const sandboxMountTarget = "/problems"

// DockerLoader runs problem scripts inside a throwaway container: no network,
// unprivileged user, capped memory, problems root mounted read-only. Same
// stdout-JSON contract as ExecLoader.
type DockerLoader struct {
	cli         *client.Client
	root        string
	image       string
	interpreter string
	timeout     time.Duration
}

func NewDockerLoader(host, root, image, interpreter string, timeout time.Duration) (*DockerLoader, error) {
	opts := []client.Opt{client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	} else {
		opts = append(opts, client.FromEnv)
	}
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, err
	}
	return &DockerLoader{
		cli:         cli,
		root:        root,
		image:       image,
		interpreter: interpreter,
		timeout:     timeout,
	}, nil
}

func (l *DockerLoader) Grader(script string) Grader {
	return &dockerScript{loader: l, script: script}
}

func (l *DockerLoader) Generator(script string) Generator {
	return &dockerScript{loader: l, script: script}
}

type dockerScript struct {
	loader *DockerLoader
	script string
}

func (s *dockerScript) Grade(ctx context.Context, teamKey int64, flag string) (Verdict, error) {
	var verdict Verdict
	err := s.run(ctx, &verdict, "grade", strconv.FormatInt(teamKey, 10), flag)
	return verdict, err
}

func (s *dockerScript) Generate(ctx context.Context, teamKey int64) (Content, error) {
	var content Content
	err := s.run(ctx, &content, "generate", strconv.FormatInt(teamKey, 10))
	return content, err
}

func (s *dockerScript) run(ctx context.Context, out interface{}, args ...string) error {
	l := s.loader
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	cmd := append([]string{l.interpreter, path.Join(sandboxMountTarget, s.script)}, args...)

	cfg := &container.Config{
		Image:           l.image,
		Cmd:             cmd,
		User:            "1000:1000",
		NetworkDisabled: true,
	}
	hostCfg := &container.HostConfig{
		Mounts: []mount.Mount{{
			Type:     mount.TypeBind,
			Source:   l.root,
			Target:   sandboxMountTarget,
			ReadOnly: true,
		}},
		Resources: container.Resources{
			NanoCPUs: 1e9,
			Memory:   256 * 1024 * 1024,
		},
		AutoRemove: false,
	}

	resp, err := l.cli.ContainerCreate(ctx, cfg, hostCfg, nil, nil, "")
	if err != nil {
		return fmt.Errorf("create sandbox for %s: %w", s.script, err)
	}
	defer func() {
		// Cleanup runs outside the (possibly expired) request context.
		rmCtx, rmCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer rmCancel()
		if err := l.cli.ContainerRemove(rmCtx, resp.ID, container.RemoveOptions{Force: true}); err != nil {
			zap.S().Warnf("failed to remove sandbox container %s: %v", resp.ID, err)
		}
	}()

	if err := l.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return fmt.Errorf("start sandbox for %s: %w", s.script, err)
	}

	waitCh, errCh := l.cli.ContainerWait(ctx, resp.ID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("script %s timed out after %s", s.script, l.timeout)
		}
		return fmt.Errorf("wait on sandbox for %s: %w", s.script, err)
	case status := <-waitCh:
		if status.StatusCode != 0 {
			return fmt.Errorf("script %s exited with status %d", s.script, status.StatusCode)
		}
	}

	logs, err := l.cli.ContainerLogs(ctx, resp.ID, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return fmt.Errorf("read sandbox output for %s: %w", s.script, err)
	}
	defer logs.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, logs); err != nil {
		return fmt.Errorf("demux sandbox output for %s: %w", s.script, err)
	}

	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), out); err != nil {
		zap.S().Errorw("sandboxed script returned malformed output",
			"script", s.script, "stdout", stdout.String(), "stderr", stderr.String())
		return fmt.Errorf("script %s returned malformed output: %w", s.script, err)
	}
	return nil
}
