package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/pec-cloud/server/internal/models"
	"github.com/pec-cloud/server/internal/services"
	"github.com/pec-cloud/server/pkg/utils"
)

// LogHandler exposes the audit trail. Every route here sits behind
// AdminOnly.
type LogHandler struct {
	Audit *services.AuditService
}

func NewLogHandler(audit *services.AuditService) *LogHandler {
	return &LogHandler{Audit: audit}
}

func (h *LogHandler) NodeLogsByNode(c *fiber.Ctx) error {
	nodeID, err := parseNodeID(c.Params("nodeId"))
	if err != nil {
		return utils.Failure(c, fiber.StatusBadRequest, "ERROR_INVALID_BODY", "invalid node id")
	}

	logs, err := h.Audit.FindNodeLogsByNode(c.Context(), nodeID)
	if err != nil {
		return fail(c, err)
	}
	return utils.Success(c, "Successfully got node logs.", fiber.Map{"logs": logs})
}

func (h *LogHandler) UserLogsBySubject(c *fiber.Ctx) error {
	username := c.Params("username")

	logs, err := h.Audit.FindUserLogsBySubject(c.Context(), username)
	if err != nil {
		return fail(c, err)
	}
	return utils.Success(c, "Successfully got user logs.", fiber.Map{"logs": logs})
}

func (h *LogHandler) NodeLogsByActivity(c *fiber.Ctx) error {
	activity := models.ActivityType(c.Params("activity"))

	logs, err := h.Audit.FindNodeLogsByActivityType(c.Context(), activity)
	if err != nil {
		return fail(c, err)
	}
	return utils.Success(c, "Successfully got node logs.", fiber.Map{"logs": logs})
}

func (h *LogHandler) UserLogsByActivity(c *fiber.Ctx) error {
	activity := models.ActivityType(c.Params("activity"))

	logs, err := h.Audit.FindUserLogsByActivityType(c.Context(), activity)
	if err != nil {
		return fail(c, err)
	}
	return utils.Success(c, "Successfully got user logs.", fiber.Map{"logs": logs})
}

func (h *LogHandler) NodeLogsByPerformer(c *fiber.Ctx) error {
	username := c.Params("username")

	logs, err := h.Audit.FindNodeLogsByPerformer(c.Context(), username)
	if err != nil {
		return fail(c, err)
	}
	return utils.Success(c, "Successfully got node logs.", fiber.Map{"logs": logs})
}

func (h *LogHandler) UserLogsByPerformer(c *fiber.Ctx) error {
	username := c.Params("username")

	logs, err := h.Audit.FindUserLogsByPerformer(c.Context(), username)
	if err != nil {
		return fail(c, err)
	}
	return utils.Success(c, "Successfully got user logs.", fiber.Map{"logs": logs})
}
