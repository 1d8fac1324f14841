package health

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"
)

// ExecChecker runs a local command per pod. Exit code 0 means healthy.
// Arguments may contain {pod}; the pod ID is also exported as GINGO_POD_ID.
type ExecChecker struct {
	Command []string
}

// NewExecChecker creates a new exec health checker
func NewExecChecker(command []string) *ExecChecker {
	return &ExecChecker{Command: command}
}

// Check runs the command. The deadline comes from ctx.
func (e *ExecChecker) Check(ctx context.Context, podID string) Result {
	start := time.Now()

	if len(e.Command) == 0 {
		return failed(start, "no command specified")
	}

	args := make([]string, len(e.Command))
	for i, arg := range e.Command {
		args[i] = Expand(arg, podID)
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Env = append(cmd.Environ(), "GINGO_POD_ID="+podID)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		message := fmt.Sprintf("command %v: %v", args, err)
		if stderr.Len() > 0 {
			message = fmt.Sprintf("%s, stderr: %s", message, truncate(stderr.String(), 100))
		}
		return failed(start, "%s", message)
	}

	message := fmt.Sprintf("command %v succeeded", args)
	if stdout.Len() > 0 {
		message = fmt.Sprintf("%s, output: %s", message, truncate(stdout.String(), 100))
	}

	return Result{
		Healthy:   true,
		Message:   message,
		CheckedAt: start,
		Duration:  time.Since(start),
	}
}

// Type returns the health check type
func (e *ExecChecker) Type() CheckType {
	return CheckTypeExec
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
