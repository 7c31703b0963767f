package instance

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/yourusername/mc-instance-manager/internal/config"
	"github.com/yourusername/mc-instance-manager/internal/events"
	"github.com/yourusername/mc-instance-manager/internal/hooks"
	"github.com/yourusername/mc-instance-manager/internal/ports"
)

// echoServer is a stand-in child process. It announces readiness, then wraps
// every stdin line in the server log envelope until it receives "stop".
const echoServer = `#!/bin/sh
echo '[12:00:00] [Server thread/INFO]: Done (0.042s)! For help, type "help"'
while read line; do
	if [ "$line" = "stop" ]; then
		echo '[12:00:01] [Server thread/INFO]: Stopping server'
		exit 0
	fi
	echo "[12:00:01] [Server thread/INFO]: $line"
done
`

// crashServer exits immediately without ever reporting ready.
const crashServer = `#!/bin/sh
echo 'failed to bind port' >&2
exit 1
`

func newTestSupervisor(t *testing.T, script string) (*Supervisor, *events.Bus) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("test relies on shell scripts")
	}

	dir := t.TempDir()
	scriptPath := filepath.Join(dir, "server.sh")
	if err := os.WriteFile(scriptPath, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	settings := &config.InstanceSettings{
		ID:        "test-instance",
		Name:      "test",
		Port:      port,
		Flavour:   config.FlavourConfig{Kind: "vanilla"},
		Version:   "1.20.1",
		CustomCmd: scriptPath,
	}

	bus := events.NewBus()
	t.Cleanup(bus.Close)
	coordinator := ports.NewCoordinator()
	if err := coordinator.Allocate(port, settings.ID); err != nil {
		t.Fatal(err)
	}

	return NewSupervisor(settings, dir, "", bus, coordinator, hooks.ScriptRunner{}), bus
}

func waitForState(t *testing.T, sup *Supervisor, want State) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if sup.State() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s, still %s", want, sup.State())
}

func TestBlockingStartReachesRunning(t *testing.T) {
	sup, bus := newTestSupervisor(t, echoServer)

	sub, cancel := bus.Subscribe(0)
	defer cancel()

	if err := sup.Start(events.System(), true); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if sup.State() != StateRunning {
		t.Fatalf("state after blocking start is %s", sup.State())
	}

	// The transition events arrive in order: Starting, then Running.
	var seen []string
	deadline := time.After(5 * time.Second)
	for len(seen) < 2 {
		select {
		case ev := <-sub:
			if ev.Kind == events.KindStateTransition {
				seen = append(seen, ev.To)
			}
		case <-deadline:
			t.Fatalf("transitions seen so far: %v", seen)
		}
	}
	if seen[0] != "Starting" || seen[1] != "Running" {
		t.Errorf("transition order %v", seen)
	}

	if err := sup.Stop(events.System(), true); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if sup.State() != StateStopped {
		t.Errorf("state after blocking stop is %s", sup.State())
	}
}

func TestStartRejectsWhileRunning(t *testing.T) {
	sup, _ := newTestSupervisor(t, echoServer)

	if err := sup.Start(events.System(), true); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer sup.Stop(events.System(), true)

	if err := sup.Start(events.System(), false); !IsKind(err, KindInvalidTransition) {
		t.Errorf("expected invalid transition, got %v", err)
	}
}

func TestStartFailsWhenPortBusy(t *testing.T) {
	sup, _ := newTestSupervisor(t, echoServer)

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", sup.Settings().Port))
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	err = sup.Start(events.System(), true)
	if !IsKind(err, KindResourceBusy) {
		t.Fatalf("expected resource busy, got %v", err)
	}
	// The failed start must roll back to Stopped so a retry is possible.
	if sup.State() != StateStopped {
		t.Errorf("state after failed start is %s", sup.State())
	}
}

func TestBlockingStartReportsEarlyExit(t *testing.T) {
	sup, _ := newTestSupervisor(t, crashServer)

	err := sup.Start(events.System(), true)
	if err == nil {
		t.Fatal("expected error when process exits before ready")
	}
	if !IsKind(err, KindInternal) {
		t.Errorf("wrong error kind: %v", err)
	}
	waitForState(t, sup, StateStopped)
}

func TestConsoleLinesDrivePlayerRegistry(t *testing.T) {
	sup, bus := newTestSupervisor(t, echoServer)

	sub, cancel := bus.Subscribe(0)
	defer cancel()

	if err := sup.Start(events.System(), true); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer sup.Stop(events.System(), true)

	// The echo server wraps stdin lines in the log envelope, so sending the
	// authenticator and join announcements makes them come back as genuine
	// system messages.
	if err := sup.SendCommand("UUID of player Steve is 069a79f4-44e3-4d8a-9744-f57f88306798", events.System()); err != nil {
		t.Fatalf("SendCommand: %v", err)
	}
	if err := sup.SendCommand("Steve joined the game", events.System()); err != nil {
		t.Fatalf("SendCommand: %v", err)
	}

	waitForEvent(t, sub, func(ev events.Event) bool {
		return ev.Kind == events.KindSystemMessage &&
			ev.Line == "[12:00:01] [Server thread/INFO]: Steve joined the game"
	})
	if players := sup.Players(); len(players) != 1 || players[0].Name != "Steve" {
		t.Errorf("players = %v", players)
	} else if players[0].UUID != "069a79f4-44e3-4d8a-9744-f57f88306798" {
		t.Errorf("player uuid = %q", players[0].UUID)
	}

	if err := sup.SendCommand("Steve left the game", events.System()); err != nil {
		t.Fatalf("SendCommand: %v", err)
	}
	waitForEvent(t, sub, func(ev events.Event) bool {
		return ev.Kind == events.KindSystemMessage &&
			ev.Line == "[12:00:01] [Server thread/INFO]: Steve left the game"
	})
	if players := sup.Players(); len(players) != 0 {
		t.Errorf("players after leave = %v", players)
	}
}

func TestChatLinesPublishPlayerMessages(t *testing.T) {
	sup, bus := newTestSupervisor(t, echoServer)

	sub, cancel := bus.Subscribe(0)
	defer cancel()

	if err := sup.Start(events.System(), true); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer sup.Stop(events.System(), true)

	if err := sup.SendCommand("<Steve> hello there", events.System()); err != nil {
		t.Fatalf("SendCommand: %v", err)
	}
	ev := waitForEvent(t, sub, func(ev events.Event) bool {
		return ev.Kind == events.KindPlayerMessage
	})
	if ev.Player != "Steve" || ev.Message != "hello there" {
		t.Errorf("chat event %+v", ev)
	}
}

func TestSendingStopCommandTransitionsState(t *testing.T) {
	sup, _ := newTestSupervisor(t, echoServer)

	if err := sup.Start(events.System(), true); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// "stop" through the console path must behave like a user stop, not a
	// surprise process exit.
	if err := sup.SendCommand("stop", events.System()); err != nil {
		t.Fatalf("SendCommand: %v", err)
	}
	if st := sup.State(); st != StateStopping && st != StateStopped {
		t.Errorf("state right after stop command is %s", st)
	}
	waitForState(t, sup, StateStopped)
}

func TestSendCommandRejectedWhileStopped(t *testing.T) {
	sup, _ := newTestSupervisor(t, echoServer)

	if err := sup.SendCommand("list", events.System()); !IsKind(err, KindInvalidState) {
		t.Errorf("expected invalid state, got %v", err)
	}
}

func TestKillTerminatesProcess(t *testing.T) {
	sup, _ := newTestSupervisor(t, echoServer)

	if err := sup.Start(events.System(), true); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := sup.Kill(events.System()); err != nil {
		t.Fatalf("Kill: %v", err)
	}
	waitForState(t, sup, StateStopped)
}

func TestKillRejectedWhileStopped(t *testing.T) {
	sup, _ := newTestSupervisor(t, echoServer)

	if err := sup.Kill(events.System()); !IsKind(err, KindInvalidState) {
		t.Errorf("expected invalid state, got %v", err)
	}
}

func TestKillWithMissingHandleForcesStopped(t *testing.T) {
	sup, bus := newTestSupervisor(t, echoServer)

	// Put the machine into Starting without a process ever spawning, the
	// bookkeeping hole the forced stop exists to repair.
	if _, err := sup.machine.TryTransition(ActionUserStart, nil); err != nil {
		t.Fatalf("TryTransition: %v", err)
	}

	sub, cancel := bus.Subscribe(0)
	defer cancel()

	err := sup.Kill(events.System())
	if !IsKind(err, KindInternal) {
		t.Fatalf("Kill error = %v, want internal kind", err)
	}
	if st := sup.State(); st != StateStopped {
		t.Errorf("state = %v, want Stopped", st)
	}

	// The forced transition is still published for observers.
	ev := waitForEvent(t, sub, func(ev events.Event) bool {
		return ev.Kind == events.KindStateTransition && ev.To == StateStopped.String()
	})
	if ev.InstanceID != sup.ID() {
		t.Errorf("transition published for %q", ev.InstanceID)
	}
}

func TestBlockingRestart(t *testing.T) {
	sup, _ := newTestSupervisor(t, echoServer)

	if err := sup.Start(events.System(), true); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := sup.Restart(events.System(), true); err != nil {
		t.Fatalf("Restart: %v", err)
	}
	if sup.State() != StateRunning {
		t.Errorf("state after restart is %s", sup.State())
	}
	sup.Stop(events.System(), true)
}

func TestNonBlockingRestartRequiresRunning(t *testing.T) {
	sup, _ := newTestSupervisor(t, echoServer)

	if err := sup.Restart(events.System(), false); !IsKind(err, KindInvalidTransition) {
		t.Errorf("expected invalid transition, got %v", err)
	}
}

func TestPreLaunchHookRunsBeforeSpawn(t *testing.T) {
	sup, _ := newTestSupervisor(t, echoServer)

	hookDir := filepath.Join(sup.Dir(), "hooks")
	if err := os.MkdirAll(hookDir, 0755); err != nil {
		t.Fatal(err)
	}
	marker := filepath.Join(sup.Dir(), "hook-ran")
	hook := fmt.Sprintf("#!/bin/sh\ntouch %s\n", marker)
	if err := os.WriteFile(filepath.Join(hookDir, hooks.PreLaunch), []byte(hook), 0755); err != nil {
		t.Fatal(err)
	}

	if err := sup.Start(events.System(), true); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer sup.Stop(events.System(), true)

	if _, err := os.Stat(marker); err != nil {
		t.Errorf("prelaunch hook did not run: %v", err)
	}
}

func TestMarkStartedPersisted(t *testing.T) {
	sup, _ := newTestSupervisor(t, echoServer)

	if sup.Settings().HasStarted {
		t.Fatal("fresh instance should not be marked started")
	}
	if err := sup.Start(events.System(), true); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer sup.Stop(events.System(), true)

	if !sup.Settings().HasStarted {
		t.Error("has_started not set after first start")
	}
	persisted, err := config.LoadInstanceSettings(sup.Dir())
	if err != nil {
		t.Fatalf("LoadInstanceSettings: %v", err)
	}
	if !persisted.HasStarted {
		t.Error("has_started not persisted to disk")
	}
}

func waitForEvent(t *testing.T, sub <-chan events.Event, match func(events.Event) bool) events.Event {
	t.Helper()
	deadline := time.After(10 * time.Second)
	for {
		select {
		case ev, ok := <-sub:
			if !ok {
				t.Fatal("event bus closed while waiting")
			}
			if match(ev) {
				return ev
			}
		case <-deadline:
			t.Fatal("timed out waiting for event")
		}
	}
}
