package platform

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Notification operations reported in Result.Op
const (
	OpActivated   = "activated"
	OpDeactivated = "deactivated"
)

// Notifier refreshes OS font caches and registrations after a font file is
// added to or removed from a font directory. Implementations report the
// outcome in the returned Result and never fail the caller.
type Notifier interface {
	NotifyActivated(ctx context.Context, activePath string) Result
	NotifyDeactivated(ctx context.Context, activePath string) Result
}

// Result describes one notification attempt
type Result struct {
	Platform string
	Op       string
	Command  string
	Output   string
	Duration time.Duration
	Err      error
}

// OK reports whether the notification succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// NotificationFailure describes a failed or timed out notification command.
type NotificationFailure struct {
	Platform string
	Command  string
	Output   string
	Err      error
}

func (e *NotificationFailure) Error() string {
	msg := fmt.Sprintf("%s notification %s: %v", e.Platform, e.Command, e.Err)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + out
	}
	return msg
}

func (e *NotificationFailure) Unwrap() error {
	return e.Err
}

// Timeout reports whether the command was killed by the notification bound.
func (e *NotificationFailure) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// Runner runs an external command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs commands with os/exec.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	if err != nil && ctx.Err() != nil {
		return out, ctx.Err()
	}
	return out, err
}

// commandNotifier runs a fixed command sequence per operation. Each command
// gets its own timeout; the first failing command ends the sequence.
type commandNotifier struct {
	platform string
	runner   Runner
	timeout  time.Duration
	commands func(op, activePath string) ([]command, error)
}

type command struct {
	name string
	args []string
	// label replaces name+args in diagnostics when the args are long scripts
	label string
	// fn, when set, runs in-process instead of name+args
	fn func() error
}

func (c command) String() string {
	if c.label != "" {
		return c.label
	}
	return strings.TrimSpace(c.name + " " + strings.Join(c.args, " "))
}

func (n *commandNotifier) NotifyActivated(ctx context.Context, activePath string) Result {
	return n.notify(ctx, OpActivated, activePath)
}

func (n *commandNotifier) NotifyDeactivated(ctx context.Context, activePath string) Result {
	return n.notify(ctx, OpDeactivated, activePath)
}

func (n *commandNotifier) notify(ctx context.Context, op, activePath string) (res Result) {
	start := time.Now()
	res = Result{Platform: n.platform, Op: op}
	defer func() {
		if r := recover(); r != nil {
			res.Err = &NotificationFailure{Platform: n.platform, Command: res.Command, Err: fmt.Errorf("panic: %v", r)}
		}
		res.Duration = time.Since(start)
	}()

	cmds, err := n.commands(op, activePath)
	if err != nil {
		res.Err = &NotificationFailure{Platform: n.platform, Err: err}
		return res
	}

	var names []string
	var output strings.Builder
	for _, c := range cmds {
		names = append(names, c.String())
		res.Command = strings.Join(names, "; ")

		out, err := n.run(ctx, c)
		output.Write(out)
		res.Output = output.String()
		if err != nil {
			res.Err = &NotificationFailure{
				Platform: n.platform,
				Command:  c.String(),
				Output:   string(out),
				Err:      err,
			}
			return res
		}
	}
	return res
}

func (n *commandNotifier) run(ctx context.Context, c command) ([]byte, error) {
	if c.fn != nil {
		return nil, c.fn()
	}
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()
	return n.runner(ctx, c.name, c.args...)
}
