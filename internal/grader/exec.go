package grader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ExecLoader runs problem scripts as subprocesses of a configured
// interpreter. The script receives a mode ("grade" or "generate"), the team
// key, and for grading the flag, and must print a single JSON object on
// stdout.
type ExecLoader struct {
	Root        string
	Interpreter string
	Timeout     time.Duration
}

func NewExecLoader(root, interpreter string, timeout time.Duration) *ExecLoader {
	return &ExecLoader{Root: root, Interpreter: interpreter, Timeout: timeout}
}

func (l *ExecLoader) Grader(script string) Grader {
	return &execScript{loader: l, script: script}
}

func (l *ExecLoader) Generator(script string) Generator {
	return &execScript{loader: l, script: script}
}

type execScript struct {
	loader *ExecLoader
	script string
}

func (s *execScript) Grade(ctx context.Context, teamKey int64, flag string) (Verdict, error) {
	var verdict Verdict
	err := s.run(ctx, &verdict, "grade", strconv.FormatInt(teamKey, 10), flag)
	return verdict, err
}

func (s *execScript) Generate(ctx context.Context, teamKey int64) (Content, error) {
	var content Content
	err := s.run(ctx, &content, "generate", strconv.FormatInt(teamKey, 10))
	return content, err
}

func (s *execScript) run(ctx context.Context, out interface{}, args ...string) error {
	path, err := s.resolve()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.loader.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, s.loader.Interpreter, append([]string{path}, args...)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("script %s timed out after %s", s.script, s.loader.Timeout)
		}
		zap.S().Errorw("problem script failed",
			"script", s.script, "stderr", stderr.String(), "error", err)
		return fmt.Errorf("script %s failed: %w", s.script, err)
	}

	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), out); err != nil {
		zap.S().Errorw("problem script returned malformed output",
			"script", s.script, "stdout", stdout.String())
		return fmt.Errorf("script %s returned malformed output: %w", s.script, err)
	}
	return nil
}

// resolve joins the script path onto the problems root, refusing paths that
// escape it, and requires the script to exist at call time.
func (s *execScript) resolve() (string, error) {
	cleaned := filepath.Clean(s.script)
	if filepath.IsAbs(cleaned) || strings.HasPrefix(cleaned, "..") {
		return "", fmt.Errorf("invalid script path: %s", s.script)
	}
	path := filepath.Join(s.loader.Root, cleaned)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("script %s not found: %w", s.script, err)
	}
	return path, nil
}
