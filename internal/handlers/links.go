package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/pec-cloud/server/internal/apperrors"
	"github.com/pec-cloud/server/internal/middleware"
	"github.com/pec-cloud/server/internal/models"
	"github.com/pec-cloud/server/internal/services"
	"github.com/pec-cloud/server/internal/storage"
	"github.com/pec-cloud/server/pkg/utils"
)

type LinkHandler struct {
	Links      *services.LinkService
	Filesystem *services.FilesystemService
	Access     *services.AccessService
	Blobs      storage.BlobStore
	Audit      *services.AuditService
}

func NewLinkHandler(links *services.LinkService, fs *services.FilesystemService, access *services.AccessService, blobs storage.BlobStore, audit *services.AuditService) *LinkHandler {
	return &LinkHandler{Links: links, Filesystem: fs, Access: access, Blobs: blobs, Audit: audit}
}

type createLinkRequest struct {
	NodeID            uint   `json:"nodeId"`
	EncryptedNodeKey  string `json:"encryptedNodeKey"`
	EncryptedShareKey string `json:"encryptedShareKey"`
	IV                string `json:"iv"`
}

func (h *LinkHandler) CreateLink(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	session := middleware.GetCurrentSession(c)

	var req createLinkRequest
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

	link, err := h.Links.CreateLink(c.Context(), req.NodeID, req.EncryptedNodeKey, req.EncryptedShareKey, req.IV)
	if err != nil {
		return fail(c, err)
	}

	h.Audit.RecordNode(models.NodeLog{
		ActivityType:      models.ActivityLinkCreation,
		NodeID:            &node.ID,
		OwnerUsername:     node.OwnerID,
		PerformerUsername: &currentUser.Username,
		LinkShareID:       &link.ShareID,
		SessionID:         &session.ID,
	})

	return utils.Created(c, "Successfully created link.", fiber.Map{"link": link})
}

// ResolveLink is anonymous: anyone holding the shareId can read the link
// record and the node it points at. Decryption still requires the key
// fragment carried in the URL hash, which never reaches the server.
func (h *LinkHandler) ResolveLink(c *fiber.Ctx) error {
	shareID := c.Params("shareId")

	link, node, err := h.Links.ResolveLink(c.Context(), shareID)
	if err != nil {
		return fail(c, err)
	}
	return utils.Success(c, "Successfully got link.", fiber.Map{"link": link, "node": node})
}

// DownloadByLink streams a linked file's blob without authentication.
func (h *LinkHandler) DownloadByLink(c *fiber.Ctx) error {
	shareID := c.Params("shareId")

	_, node, err := h.Links.ResolveLink(c.Context(), shareID)
	if err != nil {
		return fail(c, err)
	}

	reader, size, err := h.Blobs.Get(c.Context(), node.Ref)
	if err != nil {
		return fail(c, err)
	}

	h.Audit.RecordNode(models.NodeLog{
		ActivityType:  models.ActivityFileDownload,
		NodeID:        &node.ID,
		OwnerUsername: node.OwnerID,
		LinkShareID:   &shareID,
	})

	c.Set("Content-Type", "application/octet-stream")
	c.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", node.Ref))
	return c.SendStream(reader, int(size))
}
