package transport

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"whatsapp-bulk-worker/internal/app"
	"whatsapp-bulk-worker/internal/domain"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Validation messages returned with 400.
const (
	errInvalidBody         = "invalid request body"
	errInvalidPhoneNumbers = "phoneNumbers must be a non-empty array of strings"
	errInvalidText         = "text is required and must be a non-empty string"
)

// Handler holds all HTTP handlers for the bulk send worker.
type Handler struct {
	svc         *app.BulkService
	log         *slog.Logger
	serviceName string
}

// NewHandler wires up a Handler with its dependencies.
func NewHandler(svc *app.BulkService, serviceName string, log *slog.Logger) *Handler {
	return &Handler{svc: svc, log: log, serviceName: serviceName}
}

// Register mounts the bulk routes. auth guards every route except /health.
func (h *Handler) Register(router fiber.Router, auth fiber.Handler) {
	router.Get("/health", h.Health)
	router.Post("/send-bulk", auth, h.SendBulk)
	router.Get("/dispatches/:id", auth, h.GetDispatch)
}

// Health answers liveness checks.
//
// GET /health
func (h *Handler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"ok": true, "service": h.serviceName})
}

// ── Bulk intake ───────────────────────────────────────────────────────────────

// sendBulkRequest keeps every field raw so each can be validated with the
// message the caller expects.
type sendBulkRequest struct {
	PhoneNumbers json.RawMessage `json:"phoneNumbers"`
	Text         json.RawMessage `json:"text"`
	GroupID      json.RawMessage `json:"groupId"`
	DelaySeconds json.RawMessage `json:"delaySeconds"`
}

type sendBulkResponse struct {
	Success    bool    `json:"success"`
	DispatchID string  `json:"dispatchId"`
	GroupID    *string `json:"groupId"`
	domain.BulkSendResult
}

type acceptedResponse struct {
	Success    bool    `json:"success"`
	Accepted   bool    `json:"accepted"`
	DispatchID string  `json:"dispatchId"`
	Count      int     `json:"count"`
	GroupID    *string `json:"groupId"`
	Message    string  `json:"message"`
}

// SendBulk validates a bulk request and dispatches it according to the
// configured mode.
//
// POST /send-bulk
// Body: { "phoneNumbers": ["..."], "text": "...", "groupId": "...", "delaySeconds": 0 }
func (h *Handler) SendBulk(c *fiber.Ctx) error {
	req, groupID, msg := parseSendBulk(c.Body())
	if msg != "" {
		h.log.Info("send-bulk validation failed", "reason", msg)
		return badRequest(c, msg)
	}

	log := h.log.With("group_id", req.GroupID, "mode", h.svc.Mode())
	log.Info("send-bulk request",
		"count", len(req.PhoneNumbers),
		"delay", req.Delay,
		"text_preview", preview(req.Text, 50),
	)

	if h.svc.Mode() == app.ModeSync {
		d, err := h.svc.Send(c.UserContext(), req)
		if err != nil {
			log.Error("send-bulk failed", "dispatch_id", d.ID, "err", err)
			return internalError(c, err)
		}
		return c.JSON(sendBulkResponse{
			Success:        true,
			DispatchID:     d.ID.String(),
			GroupID:        groupID,
			BulkSendResult: d.Result,
		})
	}

	d, err := h.svc.Accept(c.UserContext(), req)
	if err != nil {
		log.Error("send-bulk hand-off failed", "dispatch_id", d.ID, "err", err)
		return internalError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(acceptedResponse{
		Success:    true,
		Accepted:   true,
		DispatchID: d.ID.String(),
		Count:      len(req.PhoneNumbers),
		GroupID:    groupID,
		Message:    "Bulk send accepted; poll /dispatches/" + d.ID.String() + " for the result",
	})
}

// GetDispatch returns the status record of one dispatch.
//
// GET /dispatches/:id
func (h *Handler) GetDispatch(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "id must be a valid UUID")
	}

	d, err := h.svc.Status(c.UserContext(), id)
	if errors.Is(err, domain.ErrDispatchNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "error": "dispatch not found"})
	}
	if err != nil {
		h.log.Error("get dispatch", "dispatch_id", id, "err", err)
		return internalError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "dispatch": d})
}

// parseSendBulk returns the validated request, the groupId to echo (nil when
// absent) and, on failure, the validation message.
func parseSendBulk(body []byte) (app.BulkRequest, *string, string) {
	var raw sendBulkRequest
	if err := json.Unmarshal(body, &raw); err != nil {
		return app.BulkRequest{}, nil, errInvalidBody
	}

	phones, ok := parsePhoneNumbers(raw.PhoneNumbers)
	if !ok {
		return app.BulkRequest{}, nil, errInvalidPhoneNumbers
	}

	var text string
	if json.Unmarshal(raw.Text, &text) != nil || strings.TrimSpace(text) == "" {
		return app.BulkRequest{}, nil, errInvalidText
	}

	groupID := parseGroupID(raw.GroupID)
	req := app.BulkRequest{
		PhoneNumbers: phones,
		Text:         strings.TrimSpace(text),
		Delay:        parseDelay(raw.DelaySeconds),
	}
	if groupID != nil {
		req.GroupID = *groupID
	}
	return req, groupID, ""
}

// parsePhoneNumbers requires a JSON array whose every element is a string.
// A null element is rejected rather than decoded as "".
func parsePhoneNumbers(raw json.RawMessage) ([]string, bool) {
	if isNull(raw) {
		return nil, false
	}
	var elems []*string
	if err := json.Unmarshal(raw, &elems); err != nil || elems == nil {
		return nil, false
	}
	phones := make([]string, len(elems))
	for i, e := range elems {
		if e == nil {
			return nil, false
		}
		phones[i] = *e
	}
	return phones, true
}

// parseGroupID accepts a string, and echoes any other non-null JSON value as
// its literal text.
func parseGroupID(raw json.RawMessage) *string {
	if isNull(raw) {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		s = string(bytes.TrimSpace(raw))
	}
	return &s
}

// parseDelay honours delaySeconds only when it is a positive number. The cap
// is applied by the service.
func parseDelay(raw json.RawMessage) time.Duration {
	var secs float64
	if isNull(raw) || json.Unmarshal(raw, &secs) != nil || secs <= 0 {
		return 0
	}
	if secs > app.MaxPreDispatchDelay.Seconds() {
		return app.MaxPreDispatchDelay
	}
	return time.Duration(secs * float64(time.Second))
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func preview(text string, n int) string {
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return string(r[:n]) + "..."
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": msg})
}

func internalError(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": err.Error()})
}
