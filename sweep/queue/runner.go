package queue

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"
)

// Runner executes batch clients and local runs. Tests substitute a fake.
type Runner interface {
	// Output runs argv in dir to completion and returns its combined output.
	Output(ctx context.Context, dir string, env, argv []string) ([]byte, error)
	// Start launches argv in dir with output appended to logPath and returns
	// the pid without waiting for it to finish.
	Start(ctx context.Context, dir string, env, argv []string, logPath string) (int, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Output implements Runner.
func (ExecRunner) Output(ctx context.Context, dir string, env, argv []string) ([]byte, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), env...)
	logrus.WithField("dir", dir).Debugf("exec %s", strings.Join(argv, " "))
	return cmd.CombinedOutput()
}

// Start implements Runner. The child is not bound to ctx: a local run must
// outlive the sweep that launched it.
func (ExecRunner) Start(_ context.Context, dir string, env, argv []string, logPath string) (int, error) {
	if len(argv) == 0 {
		return 0, fmt.Errorf("empty command")
	}
	log, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return 0, fmt.Errorf("opening run log: %w", err)
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), env...)
	cmd.Stdout = log
	cmd.Stderr = log
	if err := cmd.Start(); err != nil {
		_ = log.Close()
		return 0, err
	}
	go func() {
		if err := cmd.Wait(); err != nil {
			logrus.WithFields(logrus.Fields{"dir": dir, "pid": cmd.Process.Pid}).Warnf("local run exited: %v", err)
		}
		_ = log.Close()
	}()
	return cmd.Process.Pid, nil
}

// shellQuote quotes s for /bin/sh unless it consists of safe characters only.
func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	safe := true
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || strings.ContainsRune("-_./=:,+@%", r)) {
			safe = false
			break
		}
	}
	if safe {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

func shellJoin(argv []string) string {
	quoted := make([]string, len(argv))
	for i, a := range argv {
		quoted[i] = shellQuote(a)
	}
	return strings.Join(quoted, " ")
}
