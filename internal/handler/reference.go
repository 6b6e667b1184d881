package handler

import (
	"path/filepath"

	"github.com/gofiber/fiber/v2"
)

// ReferenceHandler serves the static provider reference data
type ReferenceHandler struct {
	dataDir string
}

func NewReferenceHandler(dataDir string) *ReferenceHandler {
	return &ReferenceHandler{dataDir: dataDir}
}

// SupportedLanguages handles GET /ai/supported-language
func (h *ReferenceHandler) SupportedLanguages(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.SendFile(filepath.Join(h.dataDir, "language.json"))
}

// SupportedParams handles GET /ai/supported-param
func (h *ReferenceHandler) SupportedParams(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.SendFile(filepath.Join(h.dataDir, "supported_param.json"))
}
