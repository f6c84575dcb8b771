package fleet

import (
	"fmt"

	"github.com/melih/fleetctl/internal/core/domain"
)

// Hosts returns the registered hosts. A degraded registry read is returned
// as an empty set with Degraded populated, never as an error.
func (s *Service) Hosts(caller domain.Caller) (domain.HostSet, error) {
	if err := caller.Validate(); err != nil {
		return domain.HostSet{}, err
	}
	return s.registry.List(), nil
}

// AddHost registers a remote host.
func (s *Service) AddHost(caller domain.Caller, entry domain.HostEntry) error {
	if err := caller.Validate(); err != nil {
		return err
	}
	if err := s.registry.Add(entry); err != nil {
		return fmt.Errorf("add host %s: %w", entry.Host, err)
	}
	s.logger.Info("host registered", "caller", caller.ID, "host", entry.Host)
	return nil
}

// UpdateHost replaces the mutable fields of a registered host.
func (s *Service) UpdateHost(caller domain.Caller, host string, patch domain.HostPatch) error {
	if err := caller.Validate(); err != nil {
		return err
	}
	if err := s.registry.Update(host, patch); err != nil {
		return fmt.Errorf("update host %s: %w", host, err)
	}
	s.logger.Info("host updated", "caller", caller.ID, "host", host)
	return nil
}

// RemoveHost forgets a host. Unknown hosts are ignored.
func (s *Service) RemoveHost(caller domain.Caller, host string) error {
	if err := caller.Validate(); err != nil {
		return err
	}
	if err := s.registry.Remove(host); err != nil {
		return fmt.Errorf("remove host %s: %w", host, err)
	}
	s.logger.Info("host removed", "caller", caller.ID, "host", host)
	return nil
}
