package health

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultShell runs probe scripts
const DefaultShell = "bash"

// ExecChecker runs a shell script on the host. Exit code 0 is healthy.
type ExecChecker struct {
	// Script is passed to the shell with -c
	Script string

	// Shell is the interpreter (default: bash)
	Shell string

	// Sudo runs the script through sudo -S, writing Password to its stdin
	Sudo     bool
	Password string

	// Timeout is the command execution timeout (default: 60 seconds)
	Timeout time.Duration
}

// NewExecChecker creates a new exec health checker
func NewExecChecker(script string) *ExecChecker {
	return &ExecChecker{
		Script:  script,
		Shell:   DefaultShell,
		Timeout: DefaultConfig().Timeout,
	}
}

// Command builds the command that runs the script
func (e *ExecChecker) Command(ctx context.Context) *exec.Cmd {
	if e.Sudo {
		cmd := exec.CommandContext(ctx, "sudo", "-S", "-p", "", e.Shell, "-c", e.Script)
		cmd.Stdin = strings.NewReader(e.Password + "\n")
		return cmd
	}
	return exec.CommandContext(ctx, e.Shell, "-c", e.Script)
}

// Check performs the exec health check
func (e *ExecChecker) Check(ctx context.Context) Result {
	start := time.Now()

	if strings.TrimSpace(e.Script) == "" {
		return failed(start, false, "no script specified")
	}

	execCtx, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()

	cmd := e.Command(execCtx)
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	output := strings.TrimSpace(stdout.String())

	if err == nil {
		return Result{
			Healthy:   true,
			Ran:       true,
			Output:    output,
			Message:   output,
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		// The shell itself could not be started
		return failed(start, false, fmt.Sprintf("failed to run probe: %v", err))
	}

	message := strings.TrimSpace(stderr.String())
	if execCtx.Err() == context.DeadlineExceeded {
		message = fmt.Sprintf("probe timed out after %s", e.Timeout)
	} else if message == "" {
		message = exitErr.Error()
	}

	return Result{
		Healthy:   false,
		Ran:       true,
		ExitCode:  exitErr.ExitCode(),
		Output:    output,
		Message:   message,
		CheckedAt: start,
		Duration:  time.Since(start),
	}
}

// Type returns the health check type
func (e *ExecChecker) Type() CheckType {
	return CheckTypeExec
}

// WithTimeout sets the execution timeout
func (e *ExecChecker) WithTimeout(timeout time.Duration) *ExecChecker {
	e.Timeout = timeout
	return e
}

// WithSudo runs the script with elevated privilege
func (e *ExecChecker) WithSudo(password string) *ExecChecker {
	e.Sudo = true
	e.Password = password
	return e
}
