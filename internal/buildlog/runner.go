package buildlog

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrToolFailed is returned when an external tool exits in error without
// reporting a diagnostic that explains the failure.
var ErrToolFailed = errors.New("external tool failed")

// Command describes an external command.
type Command struct {
	Name string
	Args []string
	Dir  string
	Env  []string
}

// String returns the command line, used as the timing label.
func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Runner runs a command, delivering its output line by line, and returns the
// exit code. A nonzero exit code is not an error.
type Runner interface {
	Run(ctx context.Context, cmd Command, fn LineFunc) (int, error)
}

// Measurer records the duration of labeled work.
type Measurer interface {
	Measure(ctx context.Context, label string, fn func(ctx context.Context) error) error
}

// ExecRunner runs commands with os/exec. Commands are not bound to the
// context: a build runs until it exits.
type ExecRunner struct {
	Log   *slog.Logger
	Timer Measurer
}

func (r ExecRunner) Run(ctx context.Context, cmd Command, fn LineFunc) (int, error) {
	log := r.Log
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if fn == nil {
		fn = func(s Stream, line string) error {
			log.DebugContext(ctx, line, "stream", s.String())
			return nil
		}
	}

	exitCode := -1
	run := func(ctx context.Context) error {
		log.DebugContext(ctx, "running command", "command", cmd.String(), "dir", cmd.Dir)

		c := exec.Command(cmd.Name, cmd.Args...)
		if cmd.Dir != "" {
			c.Dir = cmd.Dir
		}
		if len(cmd.Env) > 0 {
			c.Env = append(os.Environ(), cmd.Env...)
		}
		stdout, err := c.StdoutPipe()
		if err != nil {
			return errors.Wrap(err, "stdout pipe")
		}
		stderr, err := c.StderrPipe()
		if err != nil {
			return errors.Wrap(err, "stderr pipe")
		}
		if err := c.Start(); err != nil {
			return errors.Wrapf(err, "starting %s", cmd.Name)
		}

		muxErr := Multiplex(stdout, stderr, fn)
		waitErr := c.Wait()

		var exitErr *exec.ExitError
		switch {
		case waitErr == nil:
			exitCode = 0
		case errors.As(waitErr, &exitErr):
			exitCode = exitErr.ExitCode()
		default:
			return errors.Wrapf(waitErr, "waiting for %s", cmd.Name)
		}
		return muxErr
	}

	var err error
	if r.Timer != nil {
		err = r.Timer.Measure(ctx, cmd.String(), run)
	} else {
		err = run(ctx)
	}
	if err != nil {
		return exitCode, err
	}
	log.DebugContext(ctx, "command finished", "command", cmd.Name, "exit_code", exitCode)
	return exitCode, nil
}
