package handlers

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/pec-cloud/server/internal/apperrors"
	"github.com/pec-cloud/server/internal/middleware"
	"github.com/pec-cloud/server/internal/models"
	"github.com/pec-cloud/server/internal/services"
	"github.com/pec-cloud/server/internal/storage"
	"github.com/pec-cloud/server/pkg/utils"
)

type FilesystemHandler struct {
	Filesystem *services.FilesystemService
	Access     *services.AccessService
	Links      *services.LinkService
	Staging    *storage.Staging
	Blobs      storage.BlobStore
	Audit      *services.AuditService
}

func NewFilesystemHandler(fs *services.FilesystemService, access *services.AccessService, links *services.LinkService, staging *storage.Staging, blobs storage.BlobStore, audit *services.AuditService) *FilesystemHandler {
	return &FilesystemHandler{Filesystem: fs, Access: access, Links: links, Staging: staging, Blobs: blobs, Audit: audit}
}

// GetTree returns the caller's whole forest under a synthetic root.
func (h *FilesystemHandler) GetTree(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)

	tree, err := h.Filesystem.GetTree(c.Context(), currentUser, nil)
	if err != nil {
		return fail(c, err)
	}
	return utils.Success(c, "Successfully got file system.", fiber.Map{"filesystem": tree})
}

// GetSubtree returns one node with its full descendant tree.
func (h *FilesystemHandler) GetSubtree(c *fiber.Ctx) error {
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

	tree, err := h.Filesystem.GetTree(c.Context(), currentUser, &nodeID)
	if err != nil {
		return fail(c, err)
	}
	return utils.Success(c, "Successfully got node's tree.", fiber.Map{"filesystem": tree})
}

// GetPath returns the breadcrumb chain from root down to the node.
func (h *FilesystemHandler) GetPath(c *fiber.Ctx) error {
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

	path, err := h.Filesystem.AncestorChain(c.Context(), nodeID)
	if err != nil {
		return fail(c, err)
	}
	return utils.Success(c, "Successfully got node's path.", fiber.Map{"path": path})
}

// GetLinks lists all sharing links attached to a node.
func (h *FilesystemHandler) GetLinks(c *fiber.Ctx) error {
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

	links, err := h.Links.LinksByNode(c.Context(), nodeID)
	if err != nil {
		return fail(c, err)
	}
	return utils.Success(c, "Successfully got all node links.", fiber.Map{"links": links})
}

// Upload stages a raw blob and returns the server-generated ref the
// client must pass to CreateFile or UpdateRef before the staging TTL
// runs out.
func (h *FilesystemHandler) Upload(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return fail(c, apperrors.New(apperrors.CodeInvalidFile, "no file sent"))
	}

	ref, err := h.Staging.Stage(fileHeader)
	if err != nil {
		return fail(c, err)
	}
	return utils.Created(c, "Successfully uploaded file.", fiber.Map{"ref": ref})
}

type createFileRequest struct {
	Ref                string `json:"ref"`
	ParentID           uint   `json:"parentId"`
	EncryptedMetadata  string `json:"encryptedMetadata"`
	EncryptedKey       string `json:"encryptedKey"`
	EncryptedParentKey string `json:"encryptedParentKey"`
	IV                 string `json:"iv"`
	Tag                string `json:"tag"`
}

func (h *FilesystemHandler) CreateFile(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	session := middleware.GetCurrentSession(c)

	var req createFileRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Failure(c, fiber.StatusBadRequest, "ERROR_INVALID_BODY", "invalid request body")
	}
	if strings.TrimSpace(req.Ref) == "" {
		return utils.Failure(c, fiber.StatusBadRequest, "ERROR_INVALID_BODY", "ref is required")
	}

	node, err := h.Filesystem.CreateFile(c.Context(), currentUser, req.ParentID, req.Ref, services.EncryptedFields{
		EncryptedMetadata:  req.EncryptedMetadata,
		EncryptedKey:       req.EncryptedKey,
		EncryptedParentKey: req.EncryptedParentKey,
		IV:                 req.IV,
		Tag:                req.Tag,
	})
	if err != nil {
		return fail(c, err)
	}

	h.Audit.RecordNode(models.NodeLog{
		ActivityType:      models.ActivityFileUpload,
		NodeID:            &node.ID,
		OwnerUsername:     node.OwnerID,
		PerformerUsername: &currentUser.Username,
		SessionID:         &session.ID,
	})

	return utils.Created(c, "Successfully created file.", fiber.Map{"node": node})
}

type createFolderRequest struct {
	ParentID           *uint  `json:"parentId"`
	EncryptedMetadata  string `json:"encryptedMetadata"`
	EncryptedKey       string `json:"encryptedKey"`
	EncryptedParentKey string `json:"encryptedParentKey"`
	IV                 string `json:"iv"`
	Tag                string `json:"tag"`
}

func (h *FilesystemHandler) CreateFolder(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	session := middleware.GetCurrentSession(c)

	var req createFolderRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Failure(c, fiber.StatusBadRequest, "ERROR_INVALID_BODY", "invalid request body")
	}

	node, err := h.Filesystem.CreateFolder(c.Context(), currentUser, req.ParentID, services.EncryptedFields{
		EncryptedMetadata:  req.EncryptedMetadata,
		EncryptedKey:       req.EncryptedKey,
		EncryptedParentKey: req.EncryptedParentKey,
		IV:                 req.IV,
		Tag:                req.Tag,
	})
	if err != nil {
		return fail(c, err)
	}

	h.Audit.RecordNode(models.NodeLog{
		ActivityType:      models.ActivityFolderCreation,
		NodeID:            &node.ID,
		OwnerUsername:     node.OwnerID,
		PerformerUsername: &currentUser.Username,
		SessionID:         &session.ID,
	})

	return utils.Created(c, "Successfully created folder.", fiber.Map{"node": node})
}

type moveNodeRequest struct {
	NewParentID        uint   `json:"newParentId"`
	EncryptedParentKey string `json:"encryptedParentKey"`
}

func (h *FilesystemHandler) Move(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	session := middleware.GetCurrentSession(c)

	nodeID, err := parseNodeID(c.Params("nodeId"))
	if err != nil {
		return utils.Failure(c, fiber.StatusBadRequest, "ERROR_INVALID_BODY", "invalid node id")
	}

	var req moveNodeRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Failure(c, fiber.StatusBadRequest, "ERROR_INVALID_BODY", "invalid request body")
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

	oldParentID := node.ParentID
	moved, err := h.Filesystem.Move(c.Context(), nodeID, req.NewParentID, req.EncryptedParentKey)
	if err != nil {
		return fail(c, err)
	}

	h.Audit.RecordNode(models.NodeLog{
		ActivityType:      models.ActivityFileMoving,
		NodeID:            &moved.ID,
		OldParentID:       oldParentID,
		NewParentID:       moved.ParentID,
		OwnerUsername:     moved.OwnerID,
		PerformerUsername: &currentUser.Username,
		SessionID:         &session.ID,
	})

	return utils.Success(c, "Successfully moved node.", fiber.Map{"node": moved})
}

type updateMetadataRequest struct {
	EncryptedMetadata string `json:"encryptedMetadata"`
}

func (h *FilesystemHandler) UpdateMetadata(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)

	nodeID, err := parseNodeID(c.Params("nodeId"))
	if err != nil {
		return utils.Failure(c, fiber.StatusBadRequest, "ERROR_INVALID_BODY", "invalid node id")
	}

	var req updateMetadataRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Failure(c, fiber.StatusBadRequest, "ERROR_INVALID_BODY", "invalid request body")
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

	updated, err := h.Filesystem.UpdateMetadata(c.Context(), nodeID, req.EncryptedMetadata)
	if err != nil {
		return fail(c, err)
	}
	return utils.Success(c, "Successfully updated node metadata.", fiber.Map{"node": updated})
}

type updateRefRequest struct {
	NewRef            string `json:"newRef"`
	EncryptedMetadata string `json:"encryptedMetadata"`
}

// UpdateRef replaces a file node's content with a newly staged blob.
func (h *FilesystemHandler) UpdateRef(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	session := middleware.GetCurrentSession(c)

	nodeID, err := parseNodeID(c.Params("nodeId"))
	if err != nil {
		return utils.Failure(c, fiber.StatusBadRequest, "ERROR_INVALID_BODY", "invalid node id")
	}

	var req updateRefRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Failure(c, fiber.StatusBadRequest, "ERROR_INVALID_BODY", "invalid request body")
	}
	if strings.TrimSpace(req.NewRef) == "" {
		return utils.Failure(c, fiber.StatusBadRequest, "ERROR_INVALID_BODY", "newRef is required")
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

	updated, err := h.Filesystem.UpdateRef(c.Context(), nodeID, req.NewRef, req.EncryptedMetadata)
	if err != nil {
		return fail(c, err)
	}

	h.Audit.RecordNode(models.NodeLog{
		ActivityType:      models.ActivityFileOverwrite,
		NodeID:            &updated.ID,
		OwnerUsername:     updated.OwnerID,
		PerformerUsername: &currentUser.Username,
		SessionID:         &session.ID,
	})

	return utils.Success(c, "Successfully overwrote file content.", fiber.Map{"node": updated})
}

// Download streams the encrypted blob of a file node.
func (h *FilesystemHandler) Download(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	session := middleware.GetCurrentSession(c)

	nodeID, err := parseNodeID(c.Params("nodeId"))
	if err != nil {
		return utils.Failure(c, fiber.StatusBadRequest, "ERROR_INVALID_BODY", "invalid node id")
	}

	node, err := h.Filesystem.FindNode(c.Context(), nodeID)
	if err != nil {
		return fail(c, err)
	}
	if node.IsFolder() {
		return fail(c, apperrors.New(apperrors.CodeInvalidNodeType, "cannot download a folder"))
	}

	allowed, err := h.Access.CanAccess(c.Context(), node, currentUser)
	if err != nil {
		return fail(c, err)
	}
	if !allowed {
		return fail(c, apperrors.New(apperrors.CodeNotOwnerOrShared, "node is neither owned by nor shared with you"))
	}

	reader, size, err := h.Blobs.Get(c.Context(), node.Ref)
	if err != nil {
		return fail(c, err)
	}

	h.Audit.RecordNode(models.NodeLog{
		ActivityType:      models.ActivityFileDownload,
		NodeID:            &node.ID,
		OwnerUsername:     node.OwnerID,
		PerformerUsername: &currentUser.Username,
		SessionID:         &session.ID,
	})

	c.Set("Content-Type", "application/octet-stream")
	c.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", node.Ref))
	return c.SendStream(reader, int(size))
}

// Delete removes a node and its whole subtree, blobs included.
func (h *FilesystemHandler) Delete(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	session := middleware.GetCurrentSession(c)

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

	ownerID := node.OwnerID
	if err := h.Filesystem.Delete(c.Context(), nodeID); err != nil {
		return fail(c, err)
	}

	h.Audit.RecordNode(models.NodeLog{
		ActivityType:      models.ActivityFileDeletion,
		OwnerUsername:     ownerID,
		PerformerUsername: &currentUser.Username,
		SessionID:         &session.ID,
	})

	return utils.Success(c, "Successfully deleted node.", nil)
}
