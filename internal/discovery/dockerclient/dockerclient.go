// Package dockerclient defines the narrow slice of the Docker Engine API
// the discovery subsystem needs: listing and inspecting containers and
// checking daemon health. Container lifecycle management (create, start,
// stop, remove, image pull) is out of scope, so those methods are
// deliberately absent from this interface.
package dockerclient

import (
	"context"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
)

//go:generate mockgen -destination=mock_dockerclient.go -package=dockerclient . DockerClient

// DockerClient is the subset of *github.com/docker/docker/client.Client
// that discovery uses to enumerate candidate agent containers.
type DockerClient interface {
	ContainerList(ctx context.Context, options container.ListOptions) ([]types.Container, error)
	ContainerInspect(ctx context.Context, containerID string) (types.ContainerJSON, error)
	Ping(ctx context.Context) (types.Ping, error)
	Close() error
}

// New connects to the Docker daemon using environment defaults
// (DOCKER_HOST, DOCKER_CERT_PATH, ...), negotiating the API version with
// the daemon.
func New() (DockerClient, error) {
	return newFromEnv()
}

// NewWithHost connects to the Docker daemon at the given host address
// (e.g. "unix:///run/user/1000/docker.sock"), used when socket resolution
// (see socket.go) finds a rootless daemon at a non-default path.
func NewWithHost(host string) (DockerClient, error) {
	return newWithHost(host)
}
