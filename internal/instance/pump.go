package instance

import (
	"bufio"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/yourusername/mc-instance-manager/internal/events"
	"github.com/yourusername/mc-instance-manager/internal/rcon"
)

// logPump consumes a process's stdout and stderr for its whole lifetime.
// It holds only the shared pieces it needs (state machine, bus, players,
// rcon), never the supervisor itself, so the background task and the
// supervisor do not own each other.
type logPump struct {
	instanceID   string
	instanceName string
	machine      *StateMachine
	bus          *events.Bus
	players      *PlayerRegistry
	rcon         *rcon.Manager
	rconConfig   *rcon.Config // nil when rcon is disabled
	causedBy     events.CausedBy
	release      func()
}

type consoleLine struct {
	text   string
	stderr bool
}

// run multiplexes both streams first-ready-wins, classifies each line and
// performs the exit cleanup exactly once when both streams are drained.
// A read error on one stream only ends that stream, not the pump.
func (p *logPump) run(stdout, stderr io.Reader) {
	lines := make(chan consoleLine, 64)

	var group errgroup.Group
	group.Go(func() error { return p.readStream(stdout, false, lines) })
	group.Go(func() error { return p.readStream(stderr, true, lines) })
	go func() {
		_ = group.Wait()
		close(lines)
	}()

	didStart := false
	// uuids buffers authenticator announcements until the matching join line.
	uuids := make(map[string]string)
	for line := range lines {
		if line.stderr {
			slog.Warn("instance stderr", "instance", p.instanceName, "line", line.text)
		}

		p.bus.Publish(events.ConsoleOutput(p.instanceID, p.instanceName, line.text))

		if !didStart && ParseReady(line.text) {
			didStart = true
			p.handleReady()
		}

		if payload, ok := ParseSystemMessage(line.text); ok {
			p.bus.Publish(events.SystemMessage(p.instanceID, p.instanceName, line.text))
			if name, uuid, ok := ParsePlayerUUID(payload); ok {
				uuids[name] = uuid
			} else if name, ok := ParsePlayerJoined(payload); ok {
				p.players.Add(Player{Name: name, UUID: uuids[name]})
			} else if name, ok := ParsePlayerLeft(payload); ok {
				p.players.Remove(name)
				delete(uuids, name)
			}
		} else if player, message, ok := ParsePlayerMessage(line.text); ok {
			p.bus.Publish(events.PlayerMessage(p.instanceID, p.instanceName, player, message))
		}
	}

	// Both streams hit end-of-file: the process is gone.
	slog.Info("instance process shut down", "instance", p.instanceName)
	p.release()

	if _, err := p.machine.TryTransition(ActionInstanceStop, func(st State) {
		p.bus.Publish(events.StateTransition(p.instanceID, p.instanceName,
			st.String(), "Instance stopped, server process exited", p.causedBy))
	}); err != nil {
		slog.Error("exit transition failed", "instance", p.instanceName, "error", err)
	}
	p.players.Clear()
	p.rcon.Discard()
}

func (p *logPump) readStream(r io.Reader, isStderr bool, out chan<- consoleLine) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		out <- consoleLine{text: scanner.Text(), stderr: isStderr}
	}
	if err := scanner.Err(); err != nil {
		// Treated as this stream's end-of-file, not a pump failure.
		slog.Error("failed to read instance stream", "instance", p.instanceName,
			"stderr", isStderr, "error", err)
	}
	return nil
}

// handleReady performs the Starting->Running transition and, if configured,
// attempts the RCON session. RCON failure never blocks startup.
func (p *logPump) handleReady() {
	if _, err := p.machine.TryTransition(ActionInstanceStart, func(st State) {
		p.bus.Publish(events.StateTransition(p.instanceID, p.instanceName,
			st.String(), "Instance started", p.causedBy))
	}); err != nil {
		slog.Error("ready transition failed", "instance", p.instanceName, "error", err)
		return
	}
	slog.Info("instance reported ready", "instance", p.instanceName)

	if p.rconConfig == nil {
		slog.Warn("rcon not enabled or misconfigured, skipping", "instance", p.instanceName)
		p.rcon.Discard()
		return
	}
	if err := p.rcon.Establish(*p.rconConfig); err != nil {
		p.bus.Publish(events.InstanceError(p.instanceID, p.instanceName, err.Error()))
	}
}
