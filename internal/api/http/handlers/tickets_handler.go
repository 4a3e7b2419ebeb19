package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-console/internal/api/dto"
	"github.com/spec-kit/support-console/internal/auth"
	"github.com/spec-kit/support-console/internal/domain"
	"github.com/spec-kit/support-console/internal/repository"
	"github.com/spec-kit/support-console/internal/service"
	"github.com/spec-kit/support-console/internal/timeline"
	apperrors "github.com/spec-kit/support-console/pkg/util"
)

// TicketsHandler exposes the ticket lifecycle over HTTP.
type TicketsHandler struct {
	lifecycle *service.LifecycleService
	messages  *service.MessageService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(lifecycle *service.LifecycleService, messages *service.MessageService) *TicketsHandler {
	return &TicketsHandler{lifecycle: lifecycle, messages: messages}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("session required")
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	ticket, err := h.lifecycle.CreateTicket(c.UserContext(), identity.ID, service.TicketCreateInput{
		Subject:  req.Subject,
		Category: req.Category,
		Priority: req.Priority,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("session required")
	}
	filter := parseTicketQuery(c)
	if !identity.IsAdmin() {
		requesterID := identity.ID
		filter.RequesterID = &requesterID
	}
	tickets, err := h.lifecycle.ListTickets(c.UserContext(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketSummary(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	ticket, err := h.loadVisibleTicket(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket)})
}

// GetTimeline GET /tickets/:id/timeline.
func (h *TicketsHandler) GetTimeline(c *fiber.Ctx) error {
	ticket, err := h.loadVisibleTicket(c)
	if err != nil {
		return err
	}
	nodes := timeline.Reconcile(ticket)
	items := make([]dto.TimelineNodeResponse, 0, len(nodes))
	for _, node := range nodes {
		items = append(items, dto.TimelineNodeResponse{
			Kind:            string(node.Kind),
			Title:           node.Title,
			Timestamp:       node.Timestamp,
			LinkedMessageID: node.LinkedMessageID,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetThread GET /tickets/:id/thread.
func (h *TicketsHandler) GetThread(c *fiber.Ctx) error {
	ticket, err := h.loadVisibleTicket(c)
	if err != nil {
		return err
	}
	flags := timeline.GroupMessages(ticket.Messages)
	items := make([]dto.ThreadMessageResponse, 0, len(ticket.Messages))
	for i := range ticket.Messages {
		items = append(items, dto.ThreadMessageResponse{
			MessageResponse: messageResponse(&ticket.Messages[i]),
			ShowHeader:      flags[i].ShowHeader,
			ShowTimestamp:   flags[i].ShowTimestamp,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

// AcceptTicket POST /tickets/:id/accept.
func (h *TicketsHandler) AcceptTicket(c *fiber.Ctx) error {
	identity, err := requireAdmin(c)
	if err != nil {
		return err
	}
	ticket, err := h.lifecycle.Accept(c.UserContext(), identity.ID, identity.DisplayName, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket)})
}

// RejectTicket POST /tickets/:id/reject.
func (h *TicketsHandler) RejectTicket(c *fiber.Ctx) error {
	identity, err := requireAdmin(c)
	if err != nil {
		return err
	}
	var req dto.RejectTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.lifecycle.Reject(c.UserContext(), identity.ID, identity.DisplayName, c.Params("id"), req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket)})
}

// ResolveTicket POST /tickets/:id/resolve.
func (h *TicketsHandler) ResolveTicket(c *fiber.Ctx) error {
	identity, err := requireAdmin(c)
	if err != nil {
		return err
	}
	var req dto.ResolveTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.lifecycle.Resolve(c.UserContext(), identity.ID, identity.DisplayName, c.Params("id"), req.Resolution)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket)})
}

// ReopenTicket POST /tickets/:id/reopen.
func (h *TicketsHandler) ReopenTicket(c *fiber.Ctx) error {
	identity, err := requireAdmin(c)
	if err != nil {
		return err
	}
	adminID := identity.ID
	ticket, err := h.lifecycle.Reopen(c.UserContext(), &adminID, identity.DisplayName, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket)})
}

// PostMessage POST /tickets/:id/messages.
func (h *TicketsHandler) PostMessage(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("session required")
	}
	if !identity.IsAdmin() {
		// requesters may only message their own tickets
		if _, err := h.loadVisibleTicket(c); err != nil {
			return err
		}
	}
	var req dto.CreateMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	msg, err := h.messages.PostMessage(c.UserContext(), c.Params("id"),
		identity.SenderType, identity.ID, identity.DisplayName, req.Text)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": messageResponse(msg)})
}

// loadVisibleTicket fetches the snapshot and enforces requester ownership.
func (h *TicketsHandler) loadVisibleTicket(c *fiber.Ctx) (*domain.Ticket, error) {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("session required")
	}
	ticket, err := h.lifecycle.GetSnapshot(c.UserContext(), c.Params("id"))
	if err != nil {
		return nil, err
	}
	if !identity.IsAdmin() && ticket.RequesterID != identity.ID {
		// hide existence from other requesters
		return nil, apperrors.NewTicketNotFound(ticket.ID)
	}
	return ticket, nil
}

func requireAdmin(c *fiber.Ctx) (*auth.Identity, error) {
	identity, ok := auth.IdentityFromContext(c)
	if !ok || !identity.IsAdmin() {
		return nil, apperrors.NewUnauthorized("administrator session required")
	}
	return identity, nil
}

func parseTicketQuery(c *fiber.Ctx) repository.TicketFilter {
	filter := repository.TicketFilter{}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			filter.Statuses = append(filter.Statuses, domain.TicketStatus(strings.TrimSpace(part)))
		}
	}
	if priorityStr := c.Query("priority"); priorityStr != "" {
		for _, part := range strings.Split(priorityStr, ",") {
			filter.Priorities = append(filter.Priorities, domain.TicketPriority(strings.TrimSpace(part)))
		}
	}
	if admin := c.Query("assigned_admin"); admin != "" {
		filter.AssignedAdmin = &admin
	}
	if from := parseTime(c.Query("created_from")); from != nil {
		filter.CreatedFrom = from
	}
	if to := parseTime(c.Query("created_to")); to != nil {
		filter.CreatedTo = to
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter
}

func parseTime(val string) *time.Time {
	if val == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil
	}
	return &t
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func ticketSummary(ticket *domain.Ticket) dto.TicketSummary {
	return dto.TicketSummary{
		ID:            ticket.ID,
		RequesterID:   ticket.RequesterID,
		Subject:       ticket.Subject,
		Category:      ticket.Category,
		Priority:      ticket.Priority,
		Status:        ticket.Status,
		AssignedAdmin: ticket.AssignedAdmin,
		CreatedAt:     ticket.CreatedAt,
	}
}

func ticketDetail(ticket *domain.Ticket) dto.TicketDetailResponse {
	msgs := make([]dto.MessageResponse, 0, len(ticket.Messages))
	for i := range ticket.Messages {
		msgs = append(msgs, messageResponse(&ticket.Messages[i]))
	}
	history := make([]dto.StatusHistoryResponse, 0, len(ticket.StatusHistory))
	for _, entry := range ticket.StatusHistory {
		history = append(history, dto.StatusHistoryResponse{
			ID:              entry.ID,
			Status:          entry.Status,
			PerformedBy:     entry.PerformedBy,
			PerformedByName: entry.PerformedByName,
			Reason:          entry.Reason,
			Timestamp:       entry.Timestamp,
		})
	}
	return dto.TicketDetailResponse{
		ID:            ticket.ID,
		RequesterID:   ticket.RequesterID,
		Subject:       ticket.Subject,
		Category:      ticket.Category,
		Priority:      ticket.Priority,
		Status:        ticket.Status,
		AssignedAdmin: ticket.AssignedAdmin,
		CreatedAt:     ticket.CreatedAt,
		AcceptedAt:    ticket.AcceptedAt,
		Resolution:    ticket.Resolution,
		RejectReason:  ticket.RejectReason,
		Messages:      msgs,
		StatusHistory: history,
	}
}

func messageResponse(msg *domain.Message) dto.MessageResponse {
	return dto.MessageResponse{
		ID:                msg.ID,
		SenderType:        msg.SenderType,
		SenderID:          msg.SenderID,
		SenderDisplayName: msg.SenderDisplayName,
		Text:              msg.Text,
		Timestamp:         msg.Timestamp,
	}
}
