package instance

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/yourusername/mc-instance-manager/internal/config"
)

func baseSettings(kind string) *config.InstanceSettings {
	return &config.InstanceSettings{
		ID:       "test-id",
		Name:     "test",
		Port:     25565,
		Flavour:  config.FlavourConfig{Kind: kind},
		Version:  "1.20.1",
		MinRAMMB: 1024,
		MaxRAMMB: 2048,
		JavaCmd:  "java",
	}
}

func TestBuildLaunchCommandVanilla(t *testing.T) {
	dir := t.TempDir()
	cmd, err := BuildLaunchCommand(baseSettings("vanilla"), dir, "")
	if err != nil {
		t.Fatalf("BuildLaunchCommand: %v", err)
	}

	args := strings.Join(cmd.Args, " ")
	for _, want := range []string{"-Xmx2048M", "-Xms1024M", "-jar server.jar", "nogui"} {
		if !strings.Contains(args, want) {
			t.Errorf("args %q missing %q", args, want)
		}
	}
	if cmd.Dir != dir {
		t.Errorf("cmd dir %q, want %q", cmd.Dir, dir)
	}
}

func TestBuildLaunchCommandCustomOverride(t *testing.T) {
	s := baseSettings("vanilla")
	s.CustomCmd = "/usr/bin/run-server --flag value"

	cmd, err := BuildLaunchCommand(s, t.TempDir(), "")
	if err != nil {
		t.Fatalf("BuildLaunchCommand: %v", err)
	}
	if cmd.Args[0] != "/usr/bin/run-server" || len(cmd.Args) != 3 {
		t.Errorf("custom command not honored: %v", cmd.Args)
	}
}

func TestBuildLaunchCommandFabricFallsBackToServerJar(t *testing.T) {
	dir := t.TempDir()

	cmd, err := BuildLaunchCommand(baseSettings("fabric"), dir, "")
	if err != nil {
		t.Fatalf("BuildLaunchCommand: %v", err)
	}
	if !strings.Contains(strings.Join(cmd.Args, " "), "-jar server.jar") {
		t.Errorf("expected fallback to server.jar: %v", cmd.Args)
	}

	// With the fabric launcher present it is preferred.
	if err := os.WriteFile(filepath.Join(dir, "fabric-server-launch.jar"), nil, 0644); err != nil {
		t.Fatal(err)
	}
	cmd, err = BuildLaunchCommand(baseSettings("fabric"), dir, "")
	if err != nil {
		t.Fatalf("BuildLaunchCommand: %v", err)
	}
	if !strings.Contains(strings.Join(cmd.Args, " "), "fabric-server-launch.jar") {
		t.Errorf("expected fabric launcher: %v", cmd.Args)
	}
}

func TestBuildLaunchCommandModernForgeUsesArgsFile(t *testing.T) {
	s := baseSettings("forge")
	s.Flavour.BuildVersion = "1.20.1-47.2.0"

	cmd, err := BuildLaunchCommand(s, t.TempDir(), "")
	if err != nil {
		t.Fatalf("BuildLaunchCommand: %v", err)
	}

	argsFile := "unix_args.txt"
	if runtime.GOOS == "windows" {
		argsFile = "win_args.txt"
	}
	want := "@" + filepath.Join("libraries", "net", "minecraftforge", "forge", "1.20.1-47.2.0", argsFile)
	if !contains(cmd.Args, want) {
		t.Errorf("args %v missing %q", cmd.Args, want)
	}
}

func TestBuildLaunchCommandLegacyForgeNeedsJar(t *testing.T) {
	s := baseSettings("forge")
	s.Version = "1.12.2"
	s.Flavour.BuildVersion = "1.12.2-14.23.5.2859"
	dir := t.TempDir()

	if _, err := BuildLaunchCommand(s, dir, ""); err == nil {
		t.Fatal("expected error with no forge jar present")
	}

	jar := "forge-1.12.2-14.23.5.2859.jar"
	if err := os.WriteFile(filepath.Join(dir, jar), nil, 0644); err != nil {
		t.Fatal(err)
	}
	cmd, err := BuildLaunchCommand(s, dir, "")
	if err != nil {
		t.Fatalf("BuildLaunchCommand: %v", err)
	}
	if !contains(cmd.Args, jar) {
		t.Errorf("args %v missing %q", cmd.Args, jar)
	}
}

func TestBuildLaunchCommandNeoforge(t *testing.T) {
	s := baseSettings("neoforge")
	s.Flavour.BuildVersion = "20.4.237"

	cmd, err := BuildLaunchCommand(s, t.TempDir(), "")
	if err != nil {
		t.Fatalf("BuildLaunchCommand: %v", err)
	}
	if !strings.Contains(strings.Join(cmd.Args, " "), filepath.Join("net", "neoforged", "neoforge", "20.4.237")) {
		t.Errorf("unexpected args: %v", cmd.Args)
	}
}

func TestBuildLaunchCommandUnknownFlavour(t *testing.T) {
	if _, err := BuildLaunchCommand(baseSettings("spigot"), t.TempDir(), ""); !IsKind(err, KindInternal) {
		t.Errorf("expected internal error for unknown flavour, got %v", err)
	}
}

func TestResolveJavaPrefersManagedRuntime(t *testing.T) {
	runtimes := t.TempDir()
	binDir := "bin"
	if runtime.GOOS == "darwin" {
		binDir = filepath.Join("Contents", "Home", "bin")
	}
	managed := filepath.Join(runtimes, "java", "jre17", binDir)
	if err := os.MkdirAll(managed, 0755); err != nil {
		t.Fatal(err)
	}
	javaPath := filepath.Join(managed, "java")
	if err := os.WriteFile(javaPath, []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatal(err)
	}

	s := baseSettings("vanilla")
	s.JavaCmd = ""
	s.JreMajor = 17
	if got := resolveJava(s, runtimes); got != javaPath {
		t.Errorf("resolveJava = %q, want %q", got, javaPath)
	}

	// Explicit java command always wins.
	s.JavaCmd = "/opt/java/bin/java"
	if got := resolveJava(s, runtimes); got != "/opt/java/bin/java" {
		t.Errorf("resolveJava = %q, want explicit command", got)
	}

	// No managed runtime falls back to PATH lookup.
	s.JavaCmd = ""
	s.JreMajor = 21
	if got := resolveJava(s, runtimes); got != "java" {
		t.Errorf("resolveJava = %q, want \"java\"", got)
	}
}

func contains(args []string, want string) bool {
	for _, a := range args {
		if a == want {
			return true
		}
	}
	return false
}
