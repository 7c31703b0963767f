// Package hooks runs optional per-instance lifecycle scripts. The supervisor
// treats hook execution as an opaque external task: it waits for natural
// completion or for the hook to signal that it wants to keep running in the
// background.
package hooks

import (
	"bufio"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// PreLaunch is the hook invoked before the server process is spawned.
const PreLaunch = "prelaunch"

// DetachMarker is the stdout line a hook prints to detach from the waiting
// supervisor while it keeps running.
const DetachMarker = "@detach"

// Handle observes a running hook. Exactly one of the two channels fires
// first; Done also reports the hook's exit error, if any.
type Handle struct {
	// Done is closed when the hook process exits; it carries at most one
	// error value before closing.
	Done <-chan error
	// Detached is closed if the hook prints the detach marker.
	Detached <-chan struct{}
}

// Runner resolves and launches hooks for an instance.
type Runner interface {
	// Spawn starts the named hook for the instance rooted at dir. The
	// second return is false when no such hook exists, which is not an
	// error.
	Spawn(dir, name, instanceID string) (*Handle, bool)
}

// ScriptRunner executes hooks as executable files under <dir>/hooks/<name>.
type ScriptRunner struct{}

// Spawn implements Runner.
func (ScriptRunner) Spawn(dir, name, instanceID string) (*Handle, bool) {
	path := filepath.Join(dir, "hooks", name)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return nil, false
	}

	cmd := exec.Command(path)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "INSTANCE_ID="+instanceID)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		slog.Warn("hook stdout unavailable", "hook", name, "instance", instanceID, "error", err)
		return nil, false
	}

	if err := cmd.Start(); err != nil {
		slog.Warn("hook failed to start", "hook", name, "instance", instanceID, "error", err)
		return nil, false
	}

	done := make(chan error, 1)
	detached := make(chan struct{})

	go func() {
		scanner := bufio.NewScanner(stdout)
		signalled := false
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == DetachMarker && !signalled {
				signalled = true
				close(detached)
				continue
			}
			slog.Debug("hook output", "hook", name, "instance", instanceID, "line", line)
		}
	}()

	go func() {
		err := cmd.Wait()
		if err != nil {
			done <- err
		}
		close(done)
	}()

	return &Handle{Done: done, Detached: detached}, true
}
