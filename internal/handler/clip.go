package handler

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/reelty/clipper-api/internal/client"
	"github.com/reelty/clipper-api/internal/model"
	"github.com/reelty/clipper-api/internal/service"
	"github.com/reelty/clipper-api/pkg/response"
)

type ClipHandler struct {
	service *service.ClipService
}

func NewClipHandler(svc *service.ClipService) *ClipHandler {
	return &ClipHandler{service: svc}
}

// Generate handles POST /ai/generate
func (h *ClipHandler) Generate(c *fiber.Ctx) error {
	var req model.GenerateRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	result, err := h.service.Generate(c.Context(), &req)
	if err != nil {
		var vErr *service.ValidationError
		if errors.As(err, &vErr) {
			if vErr.Code != "" {
				return response.Error(c, fiber.StatusBadRequest, vErr.Code, vErr.Message, nil)
			}
			return response.ValidationError(c, vErr.Message, nil)
		}
		var sErr *service.SubmissionError
		if errors.As(err, &sErr) {
			return response.Error(c, fiber.StatusBadGateway, response.CodeSubmission, sErr.Reason, sErr.Details)
		}
		return response.ServiceError(c, err.Error())
	}

	return response.Accepted(c, result)
}

// Webhook handles POST /ai/webhook/vizard, the provider's completion callback
func (h *ClipHandler) Webhook(c *fiber.Ctx) error {
	// fasthttp reuses request buffers after the handler returns
	body := make([]byte, len(c.Body()))
	copy(body, c.Body())

	var payload client.ProjectPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return response.OK(c, fiber.Map{"status": "failed", "error": "invalid JSON body"})
	}

	switch h.service.HandleWebhook(&payload, body) {
	case service.WebhookAccepted:
		return response.OK(c, fiber.Map{"status": service.WebhookAccepted})
	case service.WebhookCancelled:
		return response.OK(c, fiber.Map{"status": "cancelled"})
	case service.WebhookDuplicate:
		return response.OK(c, fiber.Map{"status": "ignored", "reason": "already processed"})
	case service.WebhookNotFound:
		return response.OK(c, fiber.Map{"status": "ignored", "reason": "project_not_found"})
	default:
		return response.OK(c, fiber.Map{"status": "ignored", "reason": "Invalid code or missing projectId"})
	}
}

// Cancel handles POST /ai/cancel/:projectId
func (h *ClipHandler) Cancel(c *fiber.Ctx) error {
	projectID := c.Params("projectId")
	if projectID == "" {
		return response.ValidationError(c, "Missing project id", nil)
	}

	result, err := h.service.Cancel(projectID)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			return response.NotFound(c, "No active job for project id")
		}
		return response.ServiceError(c, err.Error())
	}
	return response.OK(c, result)
}
