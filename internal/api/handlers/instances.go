package handlers

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/acme/broadcast-dispatch/internal/domain"
)

type createInstanceRequest struct {
	Label   string `json:"label"`
	Enabled *bool  `json:"enabled"`
}

type instanceResponse struct {
	ID        uuid.UUID `json:"id"`
	Label     string    `json:"label"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
}

type listInstancesResponse struct {
	Instances []instanceResponse `json:"instances"`
}

func (h *HandlerSet) createInstance(ctx *fiber.Ctx) error {
	orgID, err := parseUUID(ctx.Params("org_id"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid organization id")
	}

	var req createInstanceRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	if req.Label == "" {
		return fiber.NewError(http.StatusBadRequest, "label is required")
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	instance := &domain.Instance{
		ID:             uuid.New(),
		OrganizationID: orgID,
		Label:          req.Label,
		Enabled:        enabled,
		CreatedAt:      time.Now().UTC(),
	}
	if err := h.container.Repositories().Instances.Create(ctx.Context(), instance); err != nil {
		return translateError(err)
	}

	return ctx.Status(http.StatusCreated).JSON(toInstanceResponse(instance))
}

func (h *HandlerSet) listInstances(ctx *fiber.Ctx) error {
	orgID, err := parseUUID(ctx.Params("org_id"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid organization id")
	}

	instances, err := h.container.Repositories().Instances.ListByOrganization(ctx.Context(), orgID)
	if err != nil {
		return translateError(err)
	}

	resp := listInstancesResponse{Instances: make([]instanceResponse, 0, len(instances))}
	for _, instance := range instances {
		resp.Instances = append(resp.Instances, toInstanceResponse(instance))
	}

	return ctx.Status(http.StatusOK).JSON(resp)
}

func toInstanceResponse(instance *domain.Instance) instanceResponse {
	return instanceResponse{
		ID:        instance.ID,
		Label:     instance.Label,
		Enabled:   instance.Enabled,
		CreatedAt: instance.CreatedAt,
	}
}
