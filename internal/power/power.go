// Package power invokes the machine power actions fired by daily triggers.
package power

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"

	"github.com/sweeney/bell-scheduler/internal/logic"
)

// ErrPowerAction wraps any failure to run a power action.
var ErrPowerAction = errors.New("power action failed")

// Actions runs the two power actions.
type Actions interface {
	Shutdown(ctx context.Context) error
	Hibernate(ctx context.Context) error
}

// Run dispatches the action for a trigger kind.
func Run(ctx context.Context, a Actions, kind logic.TriggerKind) error {
	switch kind {
	case logic.TriggerShutdown:
		return a.Shutdown(ctx)
	case logic.TriggerHibernate:
		return a.Hibernate(ctx)
	}
	return fmt.Errorf("unknown trigger %q: %w", kind, ErrPowerAction)
}

// ExecActions runs the platform's power commands.
type ExecActions struct {
	shutdown  []string
	hibernate []string
}

// NewExecActions returns the commands for the current OS.
func NewExecActions() *ExecActions {
	return newExecActions(runtime.GOOS)
}

func newExecActions(goos string) *ExecActions {
	switch goos {
	case "windows":
		return &ExecActions{
			shutdown:  []string{"shutdown", "/s", "/t", "0"},
			hibernate: []string{"shutdown", "/h"},
		}
	case "darwin":
		return &ExecActions{
			shutdown:  []string{"shutdown", "-h", "now"},
			hibernate: []string{"pmset", "sleepnow"},
		}
	}
	return &ExecActions{
		shutdown:  []string{"systemctl", "poweroff"},
		hibernate: []string{"systemctl", "hibernate"},
	}
}

// Shutdown powers the machine off.
func (a *ExecActions) Shutdown(ctx context.Context) error {
	return start(ctx, a.shutdown)
}

// Hibernate suspends the machine to disk.
func (a *ExecActions) Hibernate(ctx context.Context) error {
	return start(ctx, a.hibernate)
}

// start launches argv without waiting for it to finish.
func start(ctx context.Context, argv []string) error {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%s: %v: %w", argv[0], err, ErrPowerAction)
	}
	go cmd.Wait()
	return nil
}
