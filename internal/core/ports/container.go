package ports

import (
	"context"

	"github.com/melih/fleetctl/internal/core/domain"
)

// LocalEngine defines the operations the fleet needs from the container
// engine running next to it. Implementations resolve the container before
// acting and report a missing one as domain.ErrNotFound.
type LocalEngine interface {
	ListContainers(ctx context.Context) ([]domain.ContainerRecord, error)
	StartContainer(ctx context.Context, id string) error
	StopContainer(ctx context.Context, id string) error
	RestartContainer(ctx context.Context, id string) error
	RemoveContainer(ctx context.Context, id string) error
}
