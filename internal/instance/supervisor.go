package instance

import (
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/yourusername/mc-instance-manager/internal/config"
	"github.com/yourusername/mc-instance-manager/internal/events"
	"github.com/yourusername/mc-instance-manager/internal/hooks"
	"github.com/yourusername/mc-instance-manager/internal/monitor"
	"github.com/yourusername/mc-instance-manager/internal/ports"
	"github.com/yourusername/mc-instance-manager/internal/rcon"
)

// Supervisor drives the lifecycle of one game-server child process: state
// machine, console pump, player registry, optional RCON session and port
// coordination. Each instance gets its own supervisor; no lock is shared
// across instances.
//
// Lock ordering within an instance is state machine, then process/stream
// handles, then RCON. No lock is held while waiting on the event bus.
type Supervisor struct {
	id          string
	dir         string
	runtimesDir string

	machine *StateMachine
	bus     *events.Bus
	ports   *ports.Coordinator
	hooks   hooks.Runner
	rcon    *rcon.Manager
	players *PlayerRegistry

	settingsMu sync.Mutex
	settings   *config.InstanceSettings

	procMu sync.Mutex
	proc   *exec.Cmd

	stdinMu sync.Mutex
	stdin   io.WriteCloser
}

// NewSupervisor wires a supervisor for the instance rooted at dir. The
// caller keeps ownership of the port coordinator and event bus, which are
// shared across all instances.
func NewSupervisor(settings *config.InstanceSettings, dir, runtimesDir string,
	bus *events.Bus, coordinator *ports.Coordinator, hookRunner hooks.Runner) *Supervisor {
	return &Supervisor{
		id:          settings.ID,
		dir:         dir,
		runtimesDir: runtimesDir,
		machine:     NewStateMachine(),
		bus:         bus,
		ports:       coordinator,
		hooks:       hookRunner,
		rcon:        rcon.NewManager(),
		players:     NewPlayerRegistry(),
		settings:    settings,
	}
}

// ID returns the instance identity.
func (s *Supervisor) ID() string { return s.id }

// Dir returns the instance directory.
func (s *Supervisor) Dir() string { return s.dir }

// Name returns the instance display name.
func (s *Supervisor) Name() string {
	s.settingsMu.Lock()
	defer s.settingsMu.Unlock()
	return s.settings.Name
}

// State returns a point-in-time snapshot of the lifecycle state.
func (s *Supervisor) State() State {
	return s.machine.State()
}

// Settings returns a copy of the current instance settings.
func (s *Supervisor) Settings() config.InstanceSettings {
	s.settingsMu.Lock()
	defer s.settingsMu.Unlock()
	return *s.settings
}

// Players lists the currently connected players.
func (s *Supervisor) Players() []Player {
	return s.players.List()
}

// RCONActive reports whether a remote-console session is currently held.
func (s *Supervisor) RCONActive() bool {
	return s.rcon.Active()
}

// Start launches the instance process. With block set, the call suspends
// until the instance either reaches Running or falls back to Stopped (the
// latter is an error); otherwise it returns right after the spawn.
func (s *Supervisor) Start(causedBy events.CausedBy, block bool) error {
	settings := s.Settings()

	if _, err := s.machine.TryTransition(ActionUserStart, func(st State) {
		s.publishTransition(st, "Starting instance", causedBy)
	}); err != nil {
		return err
	}

	// The subscription is taken before anything slow happens so the
	// blocking wait cannot miss a transition published in the meantime.
	var sub <-chan events.Event
	if block {
		ch, cancel := s.bus.Subscribe(0)
		defer cancel()
		sub = ch
	}

	if err := s.ports.Check(settings.Port, s.id); err != nil {
		s.abortStart(causedBy, fmt.Sprintf("port %d unavailable", settings.Port))
		return wrapError(KindResourceBusy, err)
	}

	s.runPreLaunchHook()

	cmd, err := BuildLaunchCommand(&settings, s.dir, s.runtimesDir)
	if err != nil {
		s.abortStart(causedBy, "failed to resolve launch command")
		return err
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		s.abortStart(causedBy, "failed to open stdin")
		return wrapError(KindInternal, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		s.abortStart(causedBy, "failed to open stdout")
		return wrapError(KindInternal, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		s.abortStart(causedBy, "failed to open stderr")
		return wrapError(KindInternal, err)
	}

	if err := cmd.Start(); err != nil {
		s.abortStart(causedBy, fmt.Sprintf("failed to spawn process: %v", err))
		return wrapError(KindIOFailure, err)
	}

	s.procMu.Lock()
	s.proc = cmd
	s.procMu.Unlock()
	s.stdinMu.Lock()
	s.stdin = stdin
	s.stdinMu.Unlock()

	slog.Info("instance process spawned", "instance", settings.Name, "pid", cmd.Process.Pid)

	pump := &logPump{
		instanceID:   s.id,
		instanceName: settings.Name,
		machine:      s.machine,
		bus:          s.bus,
		players:      s.players,
		rcon:         s.rcon,
		rconConfig:   rconConfigFor(&settings),
		causedBy:     causedBy,
		release:      s.releaseProcess,
	}
	go pump.run(stdout, stderr)

	s.markStarted()

	if !block {
		return nil
	}
	return s.awaitStart(sub)
}

// Stop requests a graceful shutdown by writing the configured stop command
// to the process console. With block set, the call suspends until the
// Stopped transition for this instance is observed on the bus.
func (s *Supervisor) Stop(causedBy events.CausedBy, block bool) error {
	settings := s.Settings()

	var sub <-chan events.Event
	if block {
		ch, cancel := s.bus.Subscribe(0)
		defer cancel()
		sub = ch
	}

	if _, err := s.machine.TryTransition(ActionUserStop, func(st State) {
		s.publishTransition(st, "Stopping instance", causedBy)
	}); err != nil {
		return err
	}

	if err := s.writeConsole(settings.ShutdownCommand()); err != nil {
		return err
	}

	s.rcon.Discard()

	if !block {
		return nil
	}
	return s.awaitStop(sub)
}

// Restart stops then starts the instance. When blocking, the two phases run
// sequentially and the first failure is returned. When non-blocking, only
// the stop precondition is validated synchronously; the work itself runs in
// the background and failures surface as instance_error events.
func (s *Supervisor) Restart(causedBy events.CausedBy, block bool) error {
	if block {
		if err := s.Stop(causedBy, true); err != nil {
			return err
		}
		return s.Start(causedBy, true)
	}

	if st := s.machine.State(); st != StateRunning {
		return newError(KindInvalidTransition, "cannot restart while %s", st)
	}

	go func() {
		if err := s.Stop(causedBy, true); err != nil {
			s.bus.Publish(events.InstanceError(s.id, s.Name(),
				fmt.Sprintf("restart: stop failed: %v", err)))
			return
		}
		if err := s.Start(causedBy, true); err != nil {
			s.bus.Publish(events.InstanceError(s.id, s.Name(),
				fmt.Sprintf("restart: start failed: %v", err)))
		}
	}()
	return nil
}

// Kill forcibly terminates the process. If bookkeeping has lost the process
// handle, the state is forced to Stopped and the transition published, but
// the call still returns an error describing the inconsistency.
func (s *Supervisor) Kill(causedBy events.CausedBy) error {
	if st := s.machine.State(); st == StateStopped {
		return newError(KindInvalidState, "instance is already stopped")
	}

	s.procMu.Lock()
	proc := s.proc
	s.procMu.Unlock()

	if proc != nil && proc.Process != nil {
		if err := proc.Process.Kill(); err != nil {
			return wrapError(KindIOFailure, fmt.Errorf("failed to kill process: %w", err))
		}
		// The log pump observes the exit and performs cleanup.
		return nil
	}

	slog.Error("kill requested but no process handle, forcing stopped", "instance", s.id)
	s.machine.ForceStop(func(st State) {
		s.publishTransition(st, "Process handle missing, state forced to Stopped", causedBy)
	})
	s.players.Clear()
	s.rcon.Discard()
	return newError(KindInternal, "process handle missing, state forced to Stopped")
}

// SendCommand writes free-form text to the process console. The shutdown
// command is special-cased: the UserStop transition happens (and is
// published) before the write, so state and process agree.
func (s *Supervisor) SendCommand(command string, causedBy events.CausedBy) error {
	settings := s.Settings()

	if st := s.machine.State(); st == StateStopped {
		return newError(KindInvalidState, "instance is stopped")
	}

	if command == settings.ShutdownCommand() {
		if _, err := s.machine.TryTransition(ActionUserStop, func(st State) {
			s.publishTransition(st, "Stopping instance", causedBy)
		}); err != nil {
			return err
		}
		s.rcon.Discard()
	}

	return s.writeConsole(command)
}

// Monitor samples resource usage of the tracked process. The report is empty
// when no process is tracked or sampling fails.
func (s *Supervisor) Monitor() monitor.Report {
	s.procMu.Lock()
	proc := s.proc
	s.procMu.Unlock()

	if proc == nil || proc.Process == nil {
		return monitor.Report{}
	}
	return monitor.Sample(proc.Process.Pid)
}

// MarkDeleted releases the port reservation. Called by the manager when the
// instance is removed; plain stops keep the reservation.
func (s *Supervisor) MarkDeleted() {
	s.ports.Deallocate(s.Settings().Port)
}

func (s *Supervisor) publishTransition(to State, detail string, causedBy events.CausedBy) {
	s.bus.Publish(events.StateTransition(s.id, s.Name(), to.String(), detail, causedBy))
}

// abortStart rolls a failed startup back to Stopped, publishing the
// transition so observers (including a blocked Start) are released.
func (s *Supervisor) abortStart(causedBy events.CausedBy, detail string) {
	if _, err := s.machine.TryTransition(ActionInstanceStop, func(st State) {
		s.publishTransition(st, detail, causedBy)
	}); err != nil {
		slog.Error("failed to roll back aborted start", "instance", s.id, "error", err)
	}
}

func (s *Supervisor) runPreLaunchHook() {
	handle, ok := s.hooks.Spawn(s.dir, hooks.PreLaunch, s.id)
	if !ok {
		slog.Debug("no prelaunch hook found, skipping", "instance", s.id)
		return
	}
	select {
	case err := <-handle.Done:
		if err != nil {
			slog.Warn("prelaunch hook exited with error", "instance", s.id, "error", err)
		} else {
			slog.Info("prelaunch hook completed", "instance", s.id)
		}
	case <-handle.Detached:
		slog.Info("prelaunch hook detached", "instance", s.id)
	}
}

func (s *Supervisor) writeConsole(command string) error {
	s.stdinMu.Lock()
	defer s.stdinMu.Unlock()

	if s.stdin == nil {
		return newError(KindInternal, "process stdin not available")
	}
	if _, err := io.WriteString(s.stdin, command+"\n"); err != nil {
		// The stream is presumed unusable after a failed write.
		_ = s.stdin.Close()
		s.stdin = nil
		return wrapError(KindIOFailure, fmt.Errorf("failed to write to process stdin: %w", err))
	}
	return nil
}

// releaseProcess reaps the child and clears the handles. Invoked exactly
// once by the log pump after both streams reach end-of-file.
func (s *Supervisor) releaseProcess() {
	s.procMu.Lock()
	proc := s.proc
	s.proc = nil
	s.procMu.Unlock()

	s.stdinMu.Lock()
	if s.stdin != nil {
		_ = s.stdin.Close()
		s.stdin = nil
	}
	s.stdinMu.Unlock()

	if proc != nil {
		if err := proc.Wait(); err != nil {
			slog.Info("instance process exited", "instance", s.id, "error", err)
		}
	}
}

func (s *Supervisor) markStarted() {
	s.settingsMu.Lock()
	defer s.settingsMu.Unlock()
	if s.settings.HasStarted {
		return
	}
	s.settings.HasStarted = true
	if err := s.settings.Save(s.dir); err != nil {
		slog.Warn("failed to persist has_started flag", "instance", s.id, "error", err)
	}
}

func (s *Supervisor) awaitStart(sub <-chan events.Event) error {
	for ev := range sub {
		if ev.Kind != events.KindStateTransition || ev.InstanceID != s.id {
			continue
		}
		switch ev.To {
		case StateRunning.String():
			return nil
		case StateStopped.String():
			return newError(KindInternal, "instance exited before starting")
		}
	}
	return newError(KindInternal, "event bus closed")
}

func (s *Supervisor) awaitStop(sub <-chan events.Event) error {
	for ev := range sub {
		if ev.Kind != events.KindStateTransition || ev.InstanceID != s.id {
			continue
		}
		if ev.To == StateStopped.String() {
			return nil
		}
	}
	return newError(KindInternal, "event bus closed")
}

func rconConfigFor(settings *config.InstanceSettings) *rcon.Config {
	if !settings.RCON.Enabled || settings.RCON.Password == "" || settings.RCON.Port == 0 {
		return nil
	}
	return &rcon.Config{
		Address:  fmt.Sprintf("127.0.0.1:%d", settings.RCON.Port),
		Password: settings.RCON.Password,
	}
}

// Uptime returns how long the tracked process has been alive, zero when no
// process is tracked.
func (s *Supervisor) Uptime() time.Duration {
	report := s.Monitor()
	if report.StartTime == nil {
		return 0
	}
	return time.Since(*report.StartTime)
}
