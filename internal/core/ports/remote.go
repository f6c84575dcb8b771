package ports

import (
	"context"

	"github.com/melih/fleetctl/internal/core/domain"
)

// CommandRunner executes one command line on a remote host and returns
// both output streams. Every call uses its own connection.
type CommandRunner interface {
	Run(ctx context.Context, host domain.HostEntry, command string) (stdout, stderr string, err error)
}
