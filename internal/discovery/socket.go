package discovery

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/user"
	"path/filepath"
	"strings"
	"time"
)

// ResolveSocket implements the rootless (user-scoped) Docker socket
// resolution algorithm from §4.4: it tries each candidate path in order,
// probing with `docker version` under DOCKER_HOST=unix://<path>, and
// returns the first candidate that responds within 5s. There is no
// fallback to a system-wide socket.
func ResolveSocket(ctx context.Context) (string, error) {
	uid := effectiveUID()

	candidates := candidatePaths(uid)

	var tried []string
	for _, path := range candidates {
		if path == "" {
			continue
		}
		tried = append(tried, path)
		if !looksLikeSocket(path) {
			continue
		}
		if probeSocket(ctx, path, 5*time.Second) {
			return path, nil
		}
	}

	return "", fmt.Errorf("no rootless docker socket responded (tried: %s)", strings.Join(tried, ", "))
}

func candidatePaths(uid string) []string {
	home := os.Getenv("HOME")

	var dockerHostPath string
	if dh := os.Getenv("DOCKER_HOST"); dh != "" {
		dockerHostPath = strings.TrimPrefix(dh, "unix://")
	}

	return []string{
		os.Getenv("DOCKER_ROOTLESS_SOCKET_PATH"),
		dockerHostPath,
		fmt.Sprintf("/run/user/%s/docker.sock", uid),
		fmt.Sprintf("/tmp/docker-%s/docker.sock", uid),
		fmt.Sprintf("/var/run/user/%s/docker.sock", uid),
		filepath.Join(home, ".docker", "run", "docker.sock"),
		filepath.Join(home, ".docker", "desktop", "docker.sock"),
	}
}

// effectiveUID resolves uid per §4.4: env UID, then the process's uid via
// os/user, then an `id -u` subprocess, falling back to 1001.
func effectiveUID() string {
	if v := os.Getenv("UID"); v != "" {
		return v
	}
	if u, err := user.Current(); err == nil && u.Uid != "" {
		return u.Uid
	}
	if out, err := exec.Command("id", "-u").Output(); err == nil {
		if uid := strings.TrimSpace(string(out)); uid != "" {
			return uid
		}
	}
	return "1001"
}

func looksLikeSocket(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeSocket != 0
}

// probeSocket runs `docker version --format {{.Server.Version}}` against
// the candidate socket, bounded by timeout.
func probeSocket(ctx context.Context, path string, timeout time.Duration) bool {
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(probeCtx, "docker", "version", "--format", "{{.Server.Version}}")
	cmd.Env = append(os.Environ(), "DOCKER_HOST="+SocketURL(path))

	return cmd.Run() == nil
}

// SocketURL returns the "unix://<path>" form of a socket path, for
// callers that need a daemon host string, e.g. dockerclient.NewWithHost.
func SocketURL(path string) string {
	return "unix://" + path
}
