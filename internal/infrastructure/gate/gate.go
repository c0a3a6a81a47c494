// Package gate runs operator-configured quality gate commands.
package gate

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/branchflow/branchflow/internal/engine"
	"github.com/branchflow/branchflow/internal/errors"
)

// DefaultTimeout bounds a gate run when no timeout is configured.
const DefaultTimeout = 5 * time.Minute

// maxReasonLen caps how much command output is carried into the result.
const maxReasonLen = 2048

// CommandGate runs a shell command and treats its exit status as the
// gate verdict. A zero exit passes, non-zero fails, and the trailing
// command output becomes the failure reason.
type CommandGate struct {
	command string
	dir     string
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a CommandGate.
type Option func(*CommandGate)

// WithDir sets the working directory for the gate command.
func WithDir(dir string) Option {
	return func(g *CommandGate) { g.dir = dir }
}

// WithTimeout overrides the default gate timeout.
func WithTimeout(d time.Duration) Option {
	return func(g *CommandGate) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithLogger sets the logger for gate runs.
func WithLogger(logger *slog.Logger) Option {
	return func(g *CommandGate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// New creates a CommandGate for the given shell command.
func New(command string, opts ...Option) *CommandGate {
	g := &CommandGate{
		command: command,
		timeout: DefaultTimeout,
		logger:  slog.Default().With("component", "gate"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Run executes the gate command for the given branch. The branch name
// is exposed to the command as BRANCHFLOW_BRANCH.
func (g *CommandGate) Run(ctx context.Context, branchName string) (engine.GateResult, error) {
	const op = "gate.CommandGate.Run"

	if g.command == "" {
		return engine.GateResult{Passed: true}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", g.command) // #nosec G204 -- command comes from operator config
	if g.dir != "" {
		cmd.Dir = g.dir
	}
	cmd.Env = append(os.Environ(), "BRANCHFLOW_BRANCH="+branchName)

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	g.logger.Debug("running quality gate", "branch", branchName, "command", g.command)

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if ctx.Err() == context.DeadlineExceeded {
		return engine.GateResult{}, errors.Timeout(op,
			fmt.Sprintf("quality gate timed out after %s", g.timeout))
	}
	if err != nil {
		var exitErr *exec.ExitError
		if stderrors.As(err, &exitErr) {
			reason := trimOutput(output.String())
			g.logger.Warn("quality gate failed",
				"branch", branchName, "exit_code", exitErr.ExitCode(), "duration", elapsed)
			return engine.GateResult{Passed: false, Reason: reason}, nil
		}
		return engine.GateResult{}, errors.TimeoutWrap(err, op, "quality gate could not be run")
	}

	g.logger.Info("quality gate passed", "branch", branchName, "duration", elapsed)
	return engine.GateResult{Passed: true}, nil
}

func trimOutput(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxReasonLen {
		s = s[len(s)-maxReasonLen:]
	}
	return s
}
