package ports

import "github.com/melih/fleetctl/internal/core/domain"

// HostRegistry owns the durable set of remote hosts.
type HostRegistry interface {
	// List never fails; a missing or unreadable store yields an empty,
	// degraded set.
	List() domain.HostSet
	Add(entry domain.HostEntry) error
	Update(host string, patch domain.HostPatch) error
	Remove(host string) error
}
