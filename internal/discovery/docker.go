package discovery

import (
	"context"
	"fmt"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/go-connections/nat"

	"github.com/mcpfleet/orchestrator/internal/discovery/dockerclient"
)

// DockerPlatform implements ContainerPlatform against a live Docker
// daemon, narrowed to listing and inspecting containers carrying the
// mcp.server=true label. Grounded on the teacher's
// ListManagedContainers/GetContainerHostPort container-query pattern,
// adapted to the mcp.server.* label set instead of gridctl.*.
type DockerPlatform struct {
	cli dockerclient.DockerClient
}

// NewDockerPlatform wraps an already-connected DockerClient.
func NewDockerPlatform(cli dockerclient.DockerClient) *DockerPlatform {
	return &DockerPlatform{cli: cli}
}

func (p *DockerPlatform) ListAgentContainers(ctx context.Context) ([]ContainerSummary, error) {
	containers, err := p.cli.ContainerList(ctx, container.ListOptions{
		All:     false,
		Filters: filters.NewArgs(filters.Arg("label", LabelMCPServer+"=true")),
	})
	if err != nil {
		return nil, fmt.Errorf("listing agent containers: %w", err)
	}

	summaries := make([]ContainerSummary, 0, len(containers))
	for _, c := range containers {
		summaries = append(summaries, ContainerSummary{
			ID:     c.ID,
			Names:  c.Names,
			Labels: c.Labels,
			Status: c.Status,
			Image:  c.Image,
		})
	}
	return summaries, nil
}

func (p *DockerPlatform) Inspect(ctx context.Context, containerID string) (ContainerDetail, error) {
	info, err := p.cli.ContainerInspect(ctx, containerID)
	if err != nil {
		return ContainerDetail{}, fmt.Errorf("inspecting container %s: %w", containerID, err)
	}

	detail := ContainerDetail{}
	if info.ContainerJSONBase != nil {
		detail.ID = info.ID
		detail.Names = []string{info.Name}
		if info.State != nil {
			detail.Status = info.State.Status
		}
	}
	if info.Config != nil {
		detail.Labels = info.Config.Labels
		detail.Image = info.Config.Image
	}
	var portMap nat.PortMap
	if info.NetworkSettings != nil {
		portMap = info.NetworkSettings.Ports
	}
	for containerPort, bindings := range portMap {
		for _, b := range bindings {
			detail.Ports = append(detail.Ports, PortMapping{
				ContainerPort: containerPort.Port(),
				Protocol:      containerPort.Proto(),
				HostIP:        b.HostIP,
				HostPort:      b.HostPort,
			})
		}
	}

	return detail, nil
}

// Ping checks daemon reachability, used once at startup after socket
// resolution succeeds.
func (p *DockerPlatform) Ping(ctx context.Context) error {
	if _, err := p.cli.Ping(ctx); err != nil {
		return fmt.Errorf("docker daemon not accessible: %w", err)
	}
	return nil
}

// Close releases the underlying client connection.
func (p *DockerPlatform) Close() error {
	return p.cli.Close()
}
