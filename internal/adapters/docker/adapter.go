package docker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/melih/fleetctl/internal/core/domain"
)

const shortIDLen = 12

// engineAPI is the subset of the Docker client the adapter uses.
type engineAPI interface {
	Ping(ctx context.Context) (types.Ping, error)
	ContainerList(ctx context.Context, options container.ListOptions) ([]types.Container, error)
	ContainerInspect(ctx context.Context, containerID string) (types.ContainerJSON, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error
	ContainerRestart(ctx context.Context, containerID string, options container.StopOptions) error
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
	ImageList(ctx context.Context, options image.ListOptions) ([]image.Summary, error)
	Close() error
}

// Adapter implements ports.LocalEngine using Docker SDK
type Adapter struct {
	cli    engineAPI
	logger *slog.Logger
}

// NewAdapter creates a new Docker adapter instance. An empty host uses the
// environment (DOCKER_HOST and friends), falling back to the default socket.
func NewAdapter(host string, logger *slog.Logger) (*Adapter, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return newAdapter(cli, logger), nil
}

func newAdapter(cli engineAPI, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{cli: cli, logger: logger}
}

// Ping checks whether the engine answers.
func (a *Adapter) Ping(ctx context.Context) error {
	if _, err := a.cli.Ping(ctx); err != nil {
		return classify(err, "ping engine")
	}
	return nil
}

// Close releases the underlying client.
func (a *Adapter) Close() error {
	return a.cli.Close()
}

// ListContainers returns every container, stopped ones included
func (a *Adapter) ListContainers(ctx context.Context) ([]domain.ContainerRecord, error) {
	containers, err := a.cli.ContainerList(ctx, container.ListOptions{All: true})
	if err != nil {
		return nil, classify(err, "list containers")
	}

	tags := a.imageTags(ctx)

	result := make([]domain.ContainerRecord, 0, len(containers))
	for _, c := range containers {
		// Use the first name if available, remove slash
		name := ""
		if len(c.Names) > 0 {
			name = strings.TrimPrefix(c.Names[0], "/")
		}

		result = append(result, domain.ContainerRecord{
			ID:     shortID(c.ID),
			Name:   name,
			Status: c.State,
			Image:  firstTag(tags[c.ImageID]),
		})
	}
	return result, nil
}

// imageTags maps image ids to their repo tags. A failed lookup only costs
// the tag column, so it is logged and the listing goes on.
func (a *Adapter) imageTags(ctx context.Context) map[string][]string {
	images, err := a.cli.ImageList(ctx, image.ListOptions{All: true})
	if err != nil {
		a.logger.Warn("failed to list images, tags unavailable", "error", err)
		return nil
	}
	tags := make(map[string][]string, len(images))
	for _, img := range images {
		tags[img.ID] = img.RepoTags
	}
	return tags
}

// StartContainer starts an existing container
func (a *Adapter) StartContainer(ctx context.Context, id string) error {
	return a.act(ctx, id, domain.ActionStart, func(ctx context.Context, fullID string) error {
		return a.cli.ContainerStart(ctx, fullID, container.StartOptions{})
	})
}

// StopContainer stops a running container
func (a *Adapter) StopContainer(ctx context.Context, id string) error {
	return a.act(ctx, id, domain.ActionStop, func(ctx context.Context, fullID string) error {
		return a.cli.ContainerStop(ctx, fullID, container.StopOptions{})
	})
}

// RestartContainer restarts a container
func (a *Adapter) RestartContainer(ctx context.Context, id string) error {
	return a.act(ctx, id, domain.ActionRestart, func(ctx context.Context, fullID string) error {
		return a.cli.ContainerRestart(ctx, fullID, container.StopOptions{})
	})
}

// RemoveContainer removes a container, killing it first if it is running
func (a *Adapter) RemoveContainer(ctx context.Context, id string) error {
	return a.act(ctx, id, domain.ActionRemove, func(ctx context.Context, fullID string) error {
		return a.cli.ContainerRemove(ctx, fullID, container.RemoveOptions{Force: true})
	})
}

// act resolves the container first so a missing one is reported as
// domain.ErrNotFound before anything is attempted.
func (a *Adapter) act(ctx context.Context, id string, action domain.Action, fn func(context.Context, string) error) error {
	info, err := a.cli.ContainerInspect(ctx, id)
	if err != nil {
		return classify(err, "inspect container "+id)
	}
	if err := fn(ctx, info.ID); err != nil {
		return classify(err, fmt.Sprintf("%s container %s", action, id))
	}
	a.logger.Info("container action completed", "action", action.String(), "container_id", shortID(info.ID))
	return nil
}

// classify maps engine errors onto domain errors.
func classify(err error, op string) error {
	switch {
	case errdefs.IsNotFound(err):
		return fmt.Errorf("%s: %w: %w", op, domain.ErrNotFound, err)
	case client.IsErrConnectionFailed(err):
		return fmt.Errorf("%s: %w: %w", op, domain.ErrEngineUnavailable, err)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

func shortID(id string) string {
	if len(id) > shortIDLen {
		return id[:shortIDLen]
	}
	return id
}

func firstTag(tags []string) string {
	for _, t := range tags {
		if t != "" && t != "<none>:<none>" {
			return t
		}
	}
	return domain.NoImage
}
