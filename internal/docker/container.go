package docker

import (
	"context"
	"fmt"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"

	"github.com/shinji-kodama/vercel-deploy/internal/model"
)

// ListManagedContainers returns every container labelled
// "vercel-deploy.managed-by=vercel-deploy", stopped ones included.
// Filtering happens server-side.
func ListManagedContainers(ctx context.Context, cli *Client) ([]model.ContainerInfo, error) {
	args := filters.NewArgs()
	for k, v := range FilterLabels() {
		args.Add("label", k+"="+v)
	}

	containers, err := cli.Inner().ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: args,
	})
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitDockerNotRunning,
			"failed to list Docker containers",
			err,
		)
	}

	result := make([]model.ContainerInfo, 0, len(containers))
	for _, c := range containers {
		result = append(result, containerToInfo(c))
	}
	return result, nil
}

// containerToInfo maps an API summary to a ContainerInfo. The API reports
// names with a leading "/", which is stripped.
func containerToInfo(c container.Summary) model.ContainerInfo {
	name := ""
	if len(c.Names) > 0 {
		name = strings.TrimPrefix(c.Names[0], "/")
	}

	return model.ContainerInfo{
		ContainerID:   c.ID,
		ContainerName: name,
		Image:         c.Image,
		Status:        c.State,
		Labels:        c.Labels,
	}
}

// FilterByProjectDir keeps the containers whose project-dir label equals
// dir. An empty dir keeps everything.
func FilterByProjectDir(containers []model.ContainerInfo, dir string) []model.ContainerInfo {
	if dir == "" {
		return containers
	}
	var out []model.ContainerInfo
	for _, c := range containers {
		if c.Labels[LabelProjectDir] == dir {
			out = append(out, c)
		}
	}
	return out
}

// RemoveContainer removes a container by ID. With force set, a running
// container is killed first.
func RemoveContainer(ctx context.Context, cli *Client, containerID string, force bool) error {
	err := cli.Inner().ContainerRemove(ctx, containerID, container.RemoveOptions{
		Force: force,
	})
	if err != nil {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to remove container %q", containerID),
			err,
		)
	}
	return nil
}
