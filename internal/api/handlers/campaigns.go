package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/acme/broadcast-dispatch/internal/domain"
	"github.com/acme/broadcast-dispatch/internal/schedule"
	campaignsvc "github.com/acme/broadcast-dispatch/internal/service/campaign"
)

type createCampaignRequest struct {
	OrganizationID  string           `json:"organization_id"`
	Name            string           `json:"name"`
	SendingMode     string           `json:"sending_mode"`
	MinDelaySeconds int              `json:"min_delay_seconds"`
	MaxDelaySeconds int              `json:"max_delay_seconds"`
	InstanceIDs     []string         `json:"instance_ids"`
	Contacts        []contactRequest `json:"contacts"`
}

type contactRequest struct {
	Phone string `json:"phone"`
	Name  string `json:"name"`
	Body  string `json:"body"`
}

type startCampaignRequest struct {
	Policy          string `json:"policy"`
	MinDelaySeconds *int   `json:"min_delay_seconds"`
	MaxDelaySeconds *int   `json:"max_delay_seconds"`
}

type campaignResponse struct {
	ID              uuid.UUID             `json:"id"`
	OrganizationID  uuid.UUID             `json:"organization_id"`
	Name            string                `json:"name"`
	SendingMode     domain.SendingMode    `json:"sending_mode"`
	MinDelaySeconds int                   `json:"min_delay_seconds"`
	MaxDelaySeconds int                   `json:"max_delay_seconds"`
	Status          domain.CampaignStatus `json:"status"`
	TotalContacts   int                   `json:"total_contacts"`
	SentCount       int64                 `json:"sent_count"`
	FailedCount     int64                 `json:"failed_count"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
	StartedAt       *time.Time            `json:"started_at,omitempty"`
	CompletedAt     *time.Time            `json:"completed_at,omitempty"`
}

type previewResponse struct {
	TotalMessages       int    `json:"total_messages"`
	MessagesOutOfWindow int    `json:"messages_out_of_window"`
	FirstOutOfWindow    string `json:"first_out_of_window,omitempty"`
	NextWindowOpens     string `json:"next_window_opens,omitempty"`
}

type campaignStatsResponse struct {
	TotalMessages     int64 `json:"total_messages"`
	ScheduledMessages int64 `json:"scheduled_messages"`
	SentMessages      int64 `json:"sent_messages"`
	FailedMessages    int64 `json:"failed_messages"`
	CancelledMessages int64 `json:"cancelled_messages"`
	RetriesAttempted  int64 `json:"retries_attempted"`
}

type listCampaignsResponse struct {
	Campaigns []campaignResponse `json:"campaigns"`
}

type queueItemResponse struct {
	ID            uuid.UUID              `json:"id"`
	InstanceID    uuid.UUID              `json:"instance_id"`
	Position      int                    `json:"position"`
	Phone         string                 `json:"phone"`
	Name          string                 `json:"name,omitempty"`
	Status        domain.QueueItemStatus `json:"status"`
	ScheduledFor  *time.Time             `json:"scheduled_for,omitempty"`
	ExceptionNote string                 `json:"exception_note,omitempty"`
	DispatchedAt  *time.Time             `json:"dispatched_at,omitempty"`
	LastError     *string                `json:"last_error,omitempty"`
}

type listItemsResponse struct {
	Items []queueItemResponse `json:"items"`
}

type deliveryResponse struct {
	ID         uuid.UUID `json:"id"`
	ItemID     uuid.UUID `json:"item_id"`
	InstanceID uuid.UUID `json:"instance_id"`
	Phone      string    `json:"phone"`
	Attempt    int       `json:"attempt"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	DurationMs int64     `json:"duration_ms"`
	OccurredAt time.Time `json:"occurred_at"`
}

type listDeliveriesResponse struct {
	Deliveries []deliveryResponse `json:"deliveries"`
	NextPage   string             `json:"next_page_token,omitempty"`
}

func (h *HandlerSet) createCampaign(ctx *fiber.Ctx) error {
	var req createCampaignRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}

	orgID, err := parseUUID(req.OrganizationID)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid organization id")
	}

	instanceIDs := make([]uuid.UUID, 0, len(req.InstanceIDs))
	for _, raw := range req.InstanceIDs {
		id, err := parseUUID(raw)
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid instance id")
		}
		instanceIDs = append(instanceIDs, id)
	}

	contacts := make([]campaignsvc.ContactInput, 0, len(req.Contacts))
	for _, c := range req.Contacts {
		contacts = append(contacts, campaignsvc.ContactInput{Phone: c.Phone, Name: c.Name, Body: c.Body})
	}

	campaign, err := h.campaigns.Create(ctx.Context(), campaignsvc.CreateCampaignInput{
		OrganizationID:  orgID,
		Name:            req.Name,
		SendingMode:     domain.SendingMode(req.SendingMode),
		MinDelaySeconds: req.MinDelaySeconds,
		MaxDelaySeconds: req.MaxDelaySeconds,
		InstanceIDs:     instanceIDs,
		Contacts:        contacts,
	})
	if err != nil {
		return translateError(err)
	}

	return ctx.Status(http.StatusCreated).JSON(toCampaignResponse(campaign))
}

func (h *HandlerSet) listCampaigns(ctx *fiber.Ctx) error {
	orgID, err := parseUUID(ctx.Query("organization_id"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid organization id")
	}

	limit, _ := strconv.Atoi(ctx.Query("limit", "50"))
	var afterID *uuid.UUID
	if afterStr := ctx.Query("after_id"); afterStr != "" {
		if id, err := uuid.Parse(afterStr); err == nil {
			afterID = &id
		}
	}

	campaigns, err := h.campaigns.List(ctx.Context(), orgID, afterID, limit)
	if err != nil {
		return translateError(err)
	}

	resp := listCampaignsResponse{Campaigns: make([]campaignResponse, 0, len(campaigns))}
	for _, c := range campaigns {
		full, err := h.campaigns.Get(ctx.Context(), c.ID)
		if err != nil {
			return translateError(err)
		}
		resp.Campaigns = append(resp.Campaigns, toCampaignResponse(full))
	}

	return ctx.Status(http.StatusOK).JSON(resp)
}

func (h *HandlerSet) getCampaign(ctx *fiber.Ctx) error {
	id, err := parseUUID(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid campaign id")
	}

	campaign, err := h.campaigns.Get(ctx.Context(), id)
	if err != nil {
		return translateError(err)
	}

	return ctx.Status(http.StatusOK).JSON(toCampaignResponse(campaign))
}

func (h *HandlerSet) previewCampaign(ctx *fiber.Ctx) error {
	id, err := parseUUID(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid campaign id")
	}

	summary, err := h.campaigns.Preview(ctx.Context(), id)
	if err != nil {
		return translateError(err)
	}

	resp := previewResponse{
		TotalMessages:       summary.TotalMessages,
		MessagesOutOfWindow: summary.MessagesOutOfWindow,
	}
	if !summary.FirstOutOfWindowTime.IsZero() {
		resp.FirstOutOfWindow = summary.FirstOutOfWindowTime.Format(time.RFC3339)
	}
	if !summary.NextWindowTime.IsZero() {
		resp.NextWindowOpens = summary.NextWindowTime.Format(time.RFC3339)
	}

	return ctx.Status(http.StatusOK).JSON(resp)
}

func (h *HandlerSet) startCampaign(ctx *fiber.Ctx) error {
	id, err := parseUUID(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid campaign id")
	}

	req := startCampaignRequest{Policy: string(schedule.PolicyReschedule)}
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid request body")
		}
	}

	campaign, err := h.campaigns.Start(ctx.Context(), campaignsvc.StartInput{
		CampaignID:      id,
		Policy:          schedule.Policy(req.Policy),
		MinDelaySeconds: req.MinDelaySeconds,
		MaxDelaySeconds: req.MaxDelaySeconds,
	})
	if err != nil {
		return translateError(err)
	}

	return ctx.Status(http.StatusOK).JSON(toCampaignResponse(campaign))
}

func (h *HandlerSet) pauseCampaign(ctx *fiber.Ctx) error {
	id, err := parseUUID(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid campaign id")
	}
	if err := h.campaigns.Pause(ctx.Context(), id); err != nil {
		return translateError(err)
	}
	return ctx.SendStatus(http.StatusNoContent)
}

func (h *HandlerSet) resumeCampaign(ctx *fiber.Ctx) error {
	id, err := parseUUID(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid campaign id")
	}
	if err := h.campaigns.Resume(ctx.Context(), id); err != nil {
		return translateError(err)
	}
	return ctx.SendStatus(http.StatusNoContent)
}

func (h *HandlerSet) cancelCampaign(ctx *fiber.Ctx) error {
	id, err := parseUUID(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid campaign id")
	}
	if err := h.campaigns.Cancel(ctx.Context(), id); err != nil {
		return translateError(err)
	}
	return ctx.SendStatus(http.StatusNoContent)
}

func (h *HandlerSet) campaignStats(ctx *fiber.Ctx) error {
	id, err := parseUUID(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid campaign id")
	}

	stats, err := h.campaigns.Stats(ctx.Context(), id)
	if err != nil {
		return translateError(err)
	}

	return ctx.Status(http.StatusOK).JSON(campaignStatsResponse{
		TotalMessages:     stats.TotalMessages,
		ScheduledMessages: stats.ScheduledMessages,
		SentMessages:      stats.SentMessages,
		FailedMessages:    stats.FailedMessages,
		CancelledMessages: stats.CancelledMessages,
		RetriesAttempted:  stats.RetriesAttempted,
	})
}

func (h *HandlerSet) listCampaignItems(ctx *fiber.Ctx) error {
	id, err := parseUUID(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid campaign id")
	}

	limit, _ := strconv.Atoi(ctx.Query("limit", "100"))
	status := ctx.Query("status", "")

	items, err := h.campaigns.Items(ctx.Context(), id, limit, status)
	if err != nil {
		return translateError(err)
	}

	resp := listItemsResponse{Items: make([]queueItemResponse, 0, len(items))}
	for _, it := range items {
		resp.Items = append(resp.Items, queueItemResponse{
			ID:            it.ID,
			InstanceID:    it.InstanceID,
			Position:      it.Position,
			Phone:         it.Phone,
			Name:          it.Name,
			Status:        it.Status,
			ScheduledFor:  it.ScheduledFor,
			ExceptionNote: it.ExceptionNote,
			DispatchedAt:  it.DispatchedAt,
			LastError:     it.LastError,
		})
	}

	return ctx.Status(http.StatusOK).JSON(resp)
}

func (h *HandlerSet) listCampaignDeliveries(ctx *fiber.Ctx) error {
	id, err := parseUUID(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid campaign id")
	}

	limit, _ := strconv.Atoi(ctx.Query("limit", "100"))
	token := ctx.Query("page_token", "")

	attempts, next, err := h.campaigns.Deliveries(ctx.Context(), id, limit, token)
	if err != nil {
		return translateError(err)
	}

	resp := listDeliveriesResponse{Deliveries: make([]deliveryResponse, 0, len(attempts)), NextPage: next}
	for _, a := range attempts {
		resp.Deliveries = append(resp.Deliveries, deliveryResponse{
			ID:         a.ID,
			ItemID:     a.ItemID,
			InstanceID: a.InstanceID,
			Phone:      a.Phone,
			Attempt:    a.Attempt,
			Status:     string(a.Status),
			Error:      a.Error,
			DurationMs: int64(a.Duration / time.Millisecond),
			OccurredAt: a.OccurredAt,
		})
	}

	return ctx.Status(http.StatusOK).JSON(resp)
}

func toCampaignResponse(campaign *domain.Campaign) campaignResponse {
	return campaignResponse{
		ID:              campaign.ID,
		OrganizationID:  campaign.OrganizationID,
		Name:            campaign.Name,
		SendingMode:     campaign.SendingMode,
		MinDelaySeconds: campaign.MinDelaySeconds,
		MaxDelaySeconds: campaign.MaxDelaySeconds,
		Status:          campaign.Status,
		TotalContacts:   campaign.TotalContacts,
		SentCount:       campaign.SentCount,
		FailedCount:     campaign.FailedCount,
		CreatedAt:       campaign.CreatedAt,
		UpdatedAt:       campaign.UpdatedAt,
		StartedAt:       campaign.StartedAt,
		CompletedAt:     campaign.CompletedAt,
	}
}

func parseUUID(value string) (uuid.UUID, error) {
	return uuid.Parse(value)
}
