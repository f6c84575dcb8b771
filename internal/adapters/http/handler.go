package http

import (
	"context"
	"errors"
	"net/url"

	"github.com/gofiber/fiber/v2"
	"github.com/melih/fleetctl/internal/core/domain"
)

// CallerHeader carries the identity established by the upstream
// authentication layer.
const CallerHeader = "X-Fleet-Caller"

const callerKey = "caller"

// FleetService is the core surface the handlers drive.
type FleetService interface {
	Inventory(ctx context.Context, caller domain.Caller, target domain.Target) ([]domain.FleetSnapshot, error)
	Act(ctx context.Context, caller domain.Caller, req domain.ActionRequest) domain.ActionResult
	Hosts(caller domain.Caller) (domain.HostSet, error)
	AddHost(caller domain.Caller, entry domain.HostEntry) error
	UpdateHost(caller domain.Caller, host string, patch domain.HostPatch) error
	RemoveHost(caller domain.Caller, host string) error
}

type FleetHandler struct {
	service FleetService
}

func NewFleetHandler(service FleetService) *FleetHandler {
	return &FleetHandler{service: service}
}

// Routes mounts the fleet API on router.
func (h *FleetHandler) Routes(router fiber.Router) {
	router.Get("/healthz", h.Health)

	v1 := router.Group("/api/v1", h.RequireCaller)

	containers := v1.Group("/containers")
	containers.Get("/", h.ListContainers)
	containers.Post("/:id/actions", h.ContainerAction)

	hosts := v1.Group("/hosts")
	hosts.Get("/", h.ListHosts)
	hosts.Post("/", h.AddHost)
	hosts.Put("/:host", h.UpdateHost)
	hosts.Delete("/:host", h.RemoveHost)
}

func (h *FleetHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// RequireCaller rejects requests that do not carry a caller identity.
func (h *FleetHandler) RequireCaller(c *fiber.Ctx) error {
	id := c.Get(CallerHeader)
	if id == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": domain.ErrUnauthenticated.Error(),
		})
	}
	c.Locals(callerKey, domain.Caller{ID: id})
	return c.Next()
}

func caller(c *fiber.Ctx) domain.Caller {
	if v, ok := c.Locals(callerKey).(domain.Caller); ok {
		return v
	}
	return domain.Caller{}
}

func (h *FleetHandler) ListContainers(c *fiber.Ctx) error {
	target := domain.ParseTarget(c.Query("target"))
	snapshots, err := h.service.Inventory(c.UserContext(), caller(c), target)
	if err != nil {
		if errors.Is(err, domain.ErrHostNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"warning": err.Error(),
			})
		}
		return c.Status(statusFor(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(snapshots)
}

type ContainerActionRequest struct {
	Action string `json:"action"`
	Host   string `json:"host"`
}

func (h *FleetHandler) ContainerAction(c *fiber.Ctx) error {
	id, err := pathParam(c, "id")
	if err != nil || id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Container ID is required",
		})
	}

	var req ContainerActionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	result := h.service.Act(c.UserContext(), caller(c), domain.ActionRequest{
		ContainerID: id,
		Action:      req.Action,
		Host:        req.Host,
	})
	if !result.OK {
		return c.Status(statusFor(result.Err)).JSON(result)
	}
	return c.JSON(result)
}

type HostsResponse struct {
	Hosts    []domain.HostEntry `json:"hosts"`
	Degraded string             `json:"degraded,omitempty"`
}

func (h *FleetHandler) ListHosts(c *fiber.Ctx) error {
	set, err := h.service.Hosts(caller(c))
	if err != nil {
		return c.Status(statusFor(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	resp := HostsResponse{Hosts: set.Entries}
	if resp.Hosts == nil {
		resp.Hosts = []domain.HostEntry{}
	}
	if set.Degraded != nil {
		resp.Degraded = set.Degraded.Error()
	}
	return c.JSON(resp)
}

func (h *FleetHandler) AddHost(c *fiber.Ctx) error {
	var entry domain.HostEntry
	if err := c.BodyParser(&entry); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := h.service.AddHost(caller(c), entry); err != nil {
		return c.Status(statusFor(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"host": entry.Host,
	})
}

func (h *FleetHandler) UpdateHost(c *fiber.Ctx) error {
	host, err := pathParam(c, "host")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid host",
		})
	}
	var patch domain.HostPatch
	if err := c.BodyParser(&patch); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := h.service.UpdateHost(caller(c), host, patch); err != nil {
		return c.Status(statusFor(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"host": host,
	})
}

func (h *FleetHandler) RemoveHost(c *fiber.Ctx) error {
	host, err := pathParam(c, "host")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid host",
		})
	}
	if err := h.service.RemoveHost(caller(c), host); err != nil {
		return c.Status(statusFor(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func pathParam(c *fiber.Ctx, name string) (string, error) {
	return url.PathUnescape(c.Params(name))
}

// statusFor maps core errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case err == nil:
		return fiber.StatusOK
	case errors.Is(err, domain.ErrUnauthenticated):
		return fiber.StatusUnauthorized
	case errors.Is(err, domain.ErrUnsupportedAction),
		errors.Is(err, domain.ErrInvalidContainerID),
		errors.Is(err, domain.ErrInvalidHost):
		return fiber.StatusBadRequest
	case errors.Is(err, domain.ErrHostNotFound),
		errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, domain.ErrDuplicateHost):
		return fiber.StatusConflict
	case errors.Is(err, domain.ErrTransport),
		errors.Is(err, domain.ErrEngineUnavailable),
		errors.Is(err, domain.ErrCommandFailed):
		return fiber.StatusBadGateway
	}
	return fiber.StatusInternalServerError
}
