package handlers

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/acme/broadcast-dispatch/internal/domain"
)

type windowRuleRequest struct {
	DayOfWeek   int `json:"day_of_week"`
	StartMinute int `json:"start_minute"`
	EndMinute   int `json:"end_minute"`
}

type putWindowRequest struct {
	Name    string              `json:"name"`
	Enabled bool                `json:"enabled"`
	Rules   []windowRuleRequest `json:"rules"`
}

type windowResponse struct {
	ID      uuid.UUID           `json:"id"`
	Name    string              `json:"name"`
	Enabled bool                `json:"enabled"`
	Rules   []windowRuleRequest `json:"rules"`
}

func (h *HandlerSet) getWindow(ctx *fiber.Ctx) error {
	orgID, err := parseUUID(ctx.Params("org_id"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid organization id")
	}

	window, err := h.container.Repositories().Windows.GetActive(ctx.Context(), orgID)
	if err != nil {
		return translateError(err)
	}

	return ctx.Status(http.StatusOK).JSON(toWindowResponse(window))
}

func (h *HandlerSet) putWindow(ctx *fiber.Ctx) error {
	orgID, err := parseUUID(ctx.Params("org_id"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid organization id")
	}

	var req putWindowRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}

	rules := make([]domain.WindowRule, 0, len(req.Rules))
	for _, r := range req.Rules {
		if r.DayOfWeek < 0 || r.DayOfWeek > 6 {
			return fiber.NewError(http.StatusBadRequest, "day_of_week must be 0 through 6")
		}
		if r.StartMinute < 0 || r.StartMinute >= 24*60 || r.EndMinute < 0 || r.EndMinute > 24*60 {
			return fiber.NewError(http.StatusBadRequest, "minutes must fall within a day")
		}
		rules = append(rules, domain.WindowRule{
			DayOfWeek:   time.Weekday(r.DayOfWeek),
			StartMinute: r.StartMinute,
			EndMinute:   r.EndMinute,
		})
	}

	window := &domain.TimeWindow{
		ID:             uuid.New(),
		OrganizationID: orgID,
		Name:           req.Name,
		Enabled:        req.Enabled,
		Rules:          rules,
	}
	if err := h.container.Repositories().Windows.Replace(ctx.Context(), window); err != nil {
		return translateError(err)
	}

	return ctx.Status(http.StatusOK).JSON(toWindowResponse(window))
}

func toWindowResponse(window *domain.TimeWindow) windowResponse {
	resp := windowResponse{
		ID:      window.ID,
		Name:    window.Name,
		Enabled: window.Enabled,
		Rules:   make([]windowRuleRequest, 0, len(window.Rules)),
	}
	for _, r := range window.Rules {
		resp.Rules = append(resp.Rules, windowRuleRequest{
			DayOfWeek:   int(r.DayOfWeek),
			StartMinute: r.StartMinute,
			EndMinute:   r.EndMinute,
		})
	}
	return resp
}
