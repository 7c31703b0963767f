package instance

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/yourusername/mc-instance-manager/internal/config"
)

// BuildLaunchCommand resolves the concrete executable and argument list for
// an instance. Each server flavour has its own argument constructor; a
// non-empty custom command overrides all of it.
func BuildLaunchCommand(s *config.InstanceSettings, dir, runtimesDir string) (*exec.Cmd, error) {
	if strings.TrimSpace(s.CustomCmd) != "" {
		parts := strings.Fields(s.CustomCmd)
		cmd := exec.Command(parts[0], parts[1:]...)
		cmd.Dir = dir
		return cmd, nil
	}

	java := resolveJava(s, runtimesDir)

	args := []string{
		fmt.Sprintf("-Xmx%dM", s.MaxRAMMB),
		fmt.Sprintf("-Xms%dM", s.MinRAMMB),
	}
	for _, a := range s.CmdArgs {
		if a != "" {
			args = append(args, a)
		}
	}

	flavourArgs, err := buildFlavourArgs(s, dir)
	if err != nil {
		return nil, err
	}
	args = append(args, flavourArgs...)
	args = append(args, "nogui")

	cmd := exec.Command(java, args...)
	cmd.Dir = dir
	return cmd, nil
}

func resolveJava(s *config.InstanceSettings, runtimesDir string) string {
	if s.JavaCmd != "" {
		return s.JavaCmd
	}
	if runtimesDir != "" && s.JreMajor > 0 {
		binDir := "bin"
		if runtime.GOOS == "darwin" {
			binDir = filepath.Join("Contents", "Home", "bin")
		}
		managed := filepath.Join(runtimesDir, "java", fmt.Sprintf("jre%d", s.JreMajor), binDir, "java")
		if _, err := os.Stat(managed); err == nil {
			return managed
		}
	}
	return "java"
}

func buildFlavourArgs(s *config.InstanceSettings, dir string) ([]string, error) {
	switch s.Flavour.Kind {
	case "vanilla":
		return vanillaArgs(), nil
	case "paper":
		return paperArgs(), nil
	case "fabric":
		return fabricArgs(dir), nil
	case "forge":
		return forgeArgs(s, dir)
	case "neoforge":
		return neoforgeArgs(s)
	default:
		return nil, newError(KindInternal, "unknown flavour kind %q", s.Flavour.Kind)
	}
}

func vanillaArgs() []string {
	return []string{"-jar", "server.jar"}
}

func paperArgs() []string {
	return []string{"-jar", "server.jar"}
}

func fabricArgs(dir string) []string {
	// Fabric's installer drops its own launch jar next to the vanilla one.
	launcher := "fabric-server-launch.jar"
	if _, err := os.Stat(filepath.Join(dir, launcher)); err != nil {
		launcher = "server.jar"
	}
	return []string{"-jar", launcher}
}

func forgeArgs(s *config.InstanceSettings, dir string) ([]string, error) {
	build := s.Flavour.BuildVersion
	if build == "" {
		return nil, newError(KindInternal, "forge build version not set")
	}

	major, err := minorVersion(s.Version)
	if err != nil {
		return nil, err
	}

	// Modern forge ships an args file instead of a runnable jar.
	if major >= 17 {
		argsFile := "unix_args.txt"
		if runtime.GOOS == "windows" {
			argsFile = "win_args.txt"
		}
		ref := "@" + filepath.Join("libraries", "net", "minecraftforge", "forge", build, argsFile)
		return []string{ref}, nil
	}

	jar, err := findJar(dir, "forge-"+s.Version+"-")
	if err != nil {
		// Very old releases named the server jar differently.
		jar, err = findJar(dir, "minecraftforge")
		if err != nil {
			return nil, newError(KindInternal, "forge server jar not found in %s", dir)
		}
	}
	return []string{"-jar", jar}, nil
}

func neoforgeArgs(s *config.InstanceSettings) ([]string, error) {
	build := s.Flavour.BuildVersion
	if build == "" {
		return nil, newError(KindInternal, "neoforge build version not set")
	}
	argsFile := "unix_args.txt"
	if runtime.GOOS == "windows" {
		argsFile = "win_args.txt"
	}
	ref := "@" + filepath.Join("libraries", "net", "neoforged", "neoforge", build, argsFile)
	return []string{ref}, nil
}

// minorVersion extracts the second component of a version like "1.20.1".
func minorVersion(version string) (int, error) {
	parts := strings.Split(version, ".")
	if len(parts) < 2 {
		return 0, newError(KindInternal, "cannot parse server version %q", version)
	}
	minor, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, newError(KindInternal, "cannot parse server version %q", version)
	}
	return minor, nil
}

func findJar(dir, prefix string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".jar" {
			continue
		}
		if strings.HasPrefix(name, prefix) {
			return name, nil
		}
	}
	return "", fmt.Errorf("no jar with prefix %q", prefix)
}
