// Package editor spawns the user's external editor (§6: external
// collaborators — "spawning of an external editor or text-merger" is
// explicitly out of scope beyond the interface this exposes).
package editor

import (
	"context"
	"os"
	"os/exec"

	"github.com/sysid/rs-env/internal/errs"
)

// Spawner launches an editor on a file and waits for it to exit.
type Spawner interface {
	Edit(ctx context.Context, command string, path string) error
}

// ExecSpawner runs the editor as a foreground subprocess, attaching the
// current process's stdio so interactive editors (vim, nano, ...) work.
type ExecSpawner struct{}

// New returns the default os/exec-backed Spawner.
func New() *ExecSpawner { return &ExecSpawner{} }

func (ExecSpawner) Edit(ctx context.Context, command string, path string) error {
	if command == "" {
		return errs.Application(errs.ExitConfigErr, "no editor configured (set RSENV_EDITOR or EDITOR)", nil)
	}
	cmd := exec.CommandContext(ctx, command, path)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return errs.Infrastructure(errs.ExitIOErr, "editor exited with an error", err)
	}
	return nil
}
