// Package fleet is the control core: it resolves targets against the host
// registry, fetches inventory from the local engine and remote hosts, and
// dispatches lifecycle actions.
package fleet

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/melih/fleetctl/internal/core/domain"
	"github.com/melih/fleetctl/internal/core/inventory"
	"github.com/melih/fleetctl/internal/core/ports"
	"golang.org/x/sync/errgroup"
)

// DefaultFanOutLimit caps concurrent remote inventory fetches.
const DefaultFanOutLimit = 8

// Config tunes a Service.
type Config struct {
	// LocalName is the server name shown for the local engine.
	LocalName string
	// Elevated runs remote docker commands through sudo.
	Elevated bool
	// FanOutLimit caps concurrent fetches; zero means DefaultFanOutLimit.
	FanOutLimit int
}

// Service implements the fleet operations. It holds no per-request state
// and is safe for concurrent use.
type Service struct {
	local     ports.LocalEngine
	runner    ports.CommandRunner
	registry  ports.HostRegistry
	commands  inventory.Commands
	localName string
	limit     int
	logger    *slog.Logger
}

// NewService wires the core to its adapters.
func NewService(local ports.LocalEngine, runner ports.CommandRunner, registry ports.HostRegistry, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.LocalName == "" {
		cfg.LocalName = "local"
	}
	if cfg.FanOutLimit <= 0 {
		cfg.FanOutLimit = DefaultFanOutLimit
	}
	return &Service{
		local:     local,
		runner:    runner,
		registry:  registry,
		commands:  inventory.Commands{Elevated: cfg.Elevated},
		localName: cfg.LocalName,
		limit:     cfg.FanOutLimit,
		logger:    logger,
	}
}

// fetchTarget is one unit of inventory work; host is nil for the local
// engine.
type fetchTarget struct {
	host *domain.HostEntry
}

// Inventory returns one snapshot per resolved target, local first, then
// remotes in registry order. Per-target failures become an error record in
// that target's snapshot. The only errors returned are an unauthenticated
// caller and an unknown target host (domain.ErrHostNotFound).
func (s *Service) Inventory(ctx context.Context, caller domain.Caller, target domain.Target) ([]domain.FleetSnapshot, error) {
	if err := caller.Validate(); err != nil {
		return nil, err
	}

	targets, err := s.resolve(target)
	if err != nil {
		s.logger.Warn("inventory target not registered", "caller", caller.ID, "target", target.String())
		return nil, err
	}

	snapshots := make([]domain.FleetSnapshot, len(targets))
	g := new(errgroup.Group)
	g.SetLimit(s.limit)
	for i, t := range targets {
		i, t := i, t
		g.Go(func() error {
			snapshots[i] = s.fetch(ctx, t)
			return nil
		})
	}
	_ = g.Wait()

	s.logger.Info("inventory collected", "caller", caller.ID, "target", target.String(), "snapshots", len(snapshots))
	return snapshots, nil
}

// ListLocal is Inventory for the local engine.
func (s *Service) ListLocal(ctx context.Context, caller domain.Caller) ([]domain.FleetSnapshot, error) {
	return s.Inventory(ctx, caller, domain.Target{Mode: domain.TargetLocal})
}

// ListRemote is Inventory for one registered host.
func (s *Service) ListRemote(ctx context.Context, caller domain.Caller, host string) ([]domain.FleetSnapshot, error) {
	return s.Inventory(ctx, caller, domain.Target{Mode: domain.TargetHost, Host: host})
}

// ListAll is Inventory for the local engine plus every registered host.
func (s *Service) ListAll(ctx context.Context, caller domain.Caller) ([]domain.FleetSnapshot, error) {
	return s.Inventory(ctx, caller, domain.Target{Mode: domain.TargetAll})
}

func (s *Service) resolve(target domain.Target) ([]fetchTarget, error) {
	switch target.Mode {
	case domain.TargetLocal:
		return []fetchTarget{{}}, nil
	case domain.TargetHost:
		entry, ok := s.registry.List().Find(target.Host)
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrHostNotFound, target.Host)
		}
		return []fetchTarget{{host: &entry}}, nil
	}

	hosts := s.registry.List()
	targets := make([]fetchTarget, 0, len(hosts.Entries)+1)
	targets = append(targets, fetchTarget{})
	for _, entry := range hosts.Entries {
		entry := entry
		targets = append(targets, fetchTarget{host: &entry})
	}
	return targets, nil
}

func (s *Service) fetch(ctx context.Context, t fetchTarget) domain.FleetSnapshot {
	if t.host == nil {
		records, err := s.local.ListContainers(ctx)
		if err != nil {
			s.logger.Error("local inventory failed", "error", err)
			records = []domain.ContainerRecord{domain.ErrorRecord(err)}
		}
		return domain.FleetSnapshot{ServerName: s.localName, Containers: records}
	}

	host := t.host.Host
	return domain.FleetSnapshot{
		ServerName: t.host.Name,
		ServerHost: &host,
		Containers: s.fetchRemote(ctx, *t.host),
	}
}

func (s *Service) fetchRemote(ctx context.Context, host domain.HostEntry) []domain.ContainerRecord {
	stdout, stderr, err := s.runner.Run(ctx, host, s.commands.List())
	if err != nil {
		s.logger.Error("remote inventory failed", "host", host.Host, "error", err)
		return []domain.ContainerRecord{domain.ErrorRecord(err)}
	}

	records, dropped := inventory.Parse(stdout)
	if dropped > 0 {
		s.logger.Debug("dropped malformed inventory lines", "host", host.Host, "dropped", dropped)
	}

	// sudo and friends may warn on stderr while the listing itself worked;
	// only an empty listing with stderr output counts as a failure.
	if msg := strings.TrimSpace(stderr); msg != "" {
		if len(records) == 0 {
			err := fmt.Errorf("%w: %s", domain.ErrCommandFailed, msg)
			s.logger.Error("remote inventory failed", "host", host.Host, "error", err)
			return []domain.ContainerRecord{domain.ErrorRecord(err)}
		}
		s.logger.Warn("remote inventory wrote to stderr", "host", host.Host, "stderr", msg)
	}
	return records
}

// Act performs one lifecycle action. It never returns an error: failures
// are reported in the result with Err set for classification.
func (s *Service) Act(ctx context.Context, caller domain.Caller, req domain.ActionRequest) domain.ActionResult {
	result := domain.ActionResult{ContainerID: req.ContainerID, Action: req.Action, Host: req.Host}
	fail := func(err error) domain.ActionResult {
		result.OK = false
		result.Level = domain.LevelDanger
		result.Message = "error: " + err.Error()
		result.Err = err
		s.logger.Warn("container action failed",
			"caller", caller.ID, "action", req.Action, "container_id", req.ContainerID, "host", req.Host, "error", err)
		return result
	}

	if err := caller.Validate(); err != nil {
		return fail(err)
	}
	action, err := domain.ParseAction(req.Action)
	if err != nil {
		return fail(err)
	}
	result.Action = action.String()
	if err := domain.ValidateContainerID(req.ContainerID); err != nil {
		return fail(err)
	}

	if req.Host == "" {
		err = s.actLocal(ctx, action, req.ContainerID)
	} else {
		err = s.actRemote(ctx, action, req.ContainerID, req.Host)
	}
	if err != nil {
		return fail(err)
	}

	result.OK = true
	result.Level = action.Level()
	result.Message = fmt.Sprintf("container %s %s", req.ContainerID, action.PastTense())
	s.logger.Info("container action completed",
		"caller", caller.ID, "action", result.Action, "container_id", req.ContainerID, "host", req.Host)
	return result
}

func (s *Service) actLocal(ctx context.Context, action domain.Action, id string) error {
	switch action {
	case domain.ActionStart:
		return s.local.StartContainer(ctx, id)
	case domain.ActionStop:
		return s.local.StopContainer(ctx, id)
	case domain.ActionRestart:
		return s.local.RestartContainer(ctx, id)
	case domain.ActionRemove:
		return s.local.RemoveContainer(ctx, id)
	}
	return fmt.Errorf("%w: %s", domain.ErrUnsupportedAction, action)
}

func (s *Service) actRemote(ctx context.Context, action domain.Action, id, host string) error {
	entry, ok := s.registry.List().Find(host)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrHostNotFound, host)
	}
	command, err := s.commands.Action(action, id)
	if err != nil {
		return err
	}
	_, stderr, err := s.runner.Run(ctx, entry, command)
	if err != nil {
		return err
	}
	if msg := strings.TrimSpace(stderr); msg != "" {
		return fmt.Errorf("%w: %s", domain.ErrCommandFailed, msg)
	}
	return nil
}
