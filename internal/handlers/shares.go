package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/pec-cloud/server/internal/apperrors"
	"github.com/pec-cloud/server/internal/middleware"
	"github.com/pec-cloud/server/internal/models"
	"github.com/pec-cloud/server/internal/services"
	"github.com/pec-cloud/server/pkg/utils"
)

type ShareHandler struct {
	Shares     *services.ShareService
	Filesystem *services.FilesystemService
	Access     *services.AccessService
	Audit      *services.AuditService
}

func NewShareHandler(shares *services.ShareService, fs *services.FilesystemService, access *services.AccessService, audit *services.AuditService) *ShareHandler {
	return &ShareHandler{Shares: shares, Filesystem: fs, Access: access, Audit: audit}
}

type createShareRequest struct {
	NodeID         uint   `json:"nodeId"`
	Recipient      string `json:"recipient"`
	ShareKey       string `json:"shareKey"`
	ShareSignature string `json:"shareSignature"`
}

func (h *ShareHandler) CreateShare(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	session := middleware.GetCurrentSession(c)

	var req createShareRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Failure(c, fiber.StatusBadRequest, "ERROR_INVALID_BODY", "invalid request body")
	}

	node, err := h.Filesystem.FindNode(c.Context(), req.NodeID)
	if err != nil {
		return fail(c, err)
	}
	allowed, err := h.Access.CanAccess(c.Context(), node, currentUser)
	if err != nil {
		return fail(c, err)
	}
	if !allowed {
		return fail(c, apperrors.New(apperrors.CodeNotOwnerOrShared, "node is neither owned by nor shared with you"))
	}

	share, err := h.Shares.CreateShare(c.Context(), req.NodeID, currentUser, req.Recipient, req.ShareKey, req.ShareSignature)
	if err != nil {
		return fail(c, err)
	}

	activity := models.ActivityFileSharing
	if node.IsFolder() {
		activity = models.ActivityFolderSharing
	}
	h.Audit.RecordNode(models.NodeLog{
		ActivityType:      activity,
		NodeID:            &node.ID,
		OwnerUsername:     node.OwnerID,
		PerformerUsername: &currentUser.Username,
		SharedWith:        &share.RecipientUsername,
		SessionID:         &session.ID,
	})

	return utils.Created(c, "Successfully shared node.", fiber.Map{"share": share})
}

// SharesReceived lists everything shared with the caller.
func (h *ShareHandler) SharesReceived(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)

	shares, err := h.Shares.SharesReceived(c.Context(), currentUser.Username)
	if err != nil {
		return fail(c, err)
	}
	return utils.Success(c, "Successfully got shares.", fiber.Map{"shares": shares})
}

// SharesByNode lists the shares attached to one node.
func (h *ShareHandler) SharesByNode(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)

	nodeID, err := parseNodeID(c.Params("nodeId"))
	if err != nil {
		return utils.Failure(c, fiber.StatusBadRequest, "ERROR_INVALID_BODY", "invalid node id")
	}

	node, err := h.Filesystem.FindNode(c.Context(), nodeID)
	if err != nil {
		return fail(c, err)
	}
	allowed, err := h.Access.CanAccess(c.Context(), node, currentUser)
	if err != nil {
		return fail(c, err)
	}
	if !allowed {
		return fail(c, apperrors.New(apperrors.CodeNotOwnerOrShared, "node is neither owned by nor shared with you"))
	}

	shares, err := h.Shares.SharesByNode(c.Context(), nodeID)
	if err != nil {
		return fail(c, err)
	}
	return utils.Success(c, "Successfully got node shares.", fiber.Map{"shares": shares})
}
