package services

import (
	"context"

	"github.com/pec-cloud/server/internal/apperrors"
	"github.com/pec-cloud/server/internal/models"
	"github.com/pec-cloud/server/internal/storage"
	"github.com/pec-cloud/server/pkg/logger"
	"gorm.io/gorm"
)

// FilesystemService is the node store: it owns every structural
// mutation of the encrypted tree. Each mutation runs inside a single
// transaction so a half-applied move or delete is never observable.
type FilesystemService struct {
	DB      *gorm.DB
	Blobs   storage.BlobStore
	Staging *storage.Staging
}

func NewFilesystemService(db *gorm.DB, blobs storage.BlobStore, staging *storage.Staging) *FilesystemService {
	return &FilesystemService{DB: db, Blobs: blobs, Staging: staging}
}

// EncryptedFields carries the client-side encryption envelope of a
// node. The server persists these untouched.
type EncryptedFields struct {
	EncryptedMetadata  string
	EncryptedKey       string
	EncryptedParentKey string
	IV                 string
	Tag                string
}

func (f *FilesystemService) FindNode(ctx context.Context, nodeID uint) (*models.Node, error) {
	var node models.Node
	if err := f.DB.WithContext(ctx).First(&node, "id = ?", nodeID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.New(apperrors.CodeNodeNotFound, "node not found")
		}
		return nil, err
	}
	return &node, nil
}

// resolveParent validates that parentID names an existing folder.
func (f *FilesystemService) resolveParent(ctx context.Context, parentID uint) (*models.Node, error) {
	var parent models.Node
	if err := f.DB.WithContext(ctx).First(&parent, "id = ?", parentID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.New(apperrors.CodeParentNotFound, "parent not found")
		}
		return nil, err
	}
	if !parent.IsFolder() {
		return nil, apperrors.New(apperrors.CodeInvalidParent, "parent is not a folder")
	}
	return &parent, nil
}

// CreateFolder inserts a folder node. A nil parentID creates a new
// workspace root.
func (f *FilesystemService) CreateFolder(ctx context.Context, owner *models.User, parentID *uint, enc EncryptedFields) (*models.Node, error) {
	if parentID != nil {
		if _, err := f.resolveParent(ctx, *parentID); err != nil {
			return nil, err
		}
	}

	node := models.Node{
		Type:               models.NodeTypeFolder,
		EncryptedMetadata:  enc.EncryptedMetadata,
		EncryptedKey:       enc.EncryptedKey,
		EncryptedParentKey: enc.EncryptedParentKey,
		IV:                 enc.IV,
		Tag:                enc.Tag,
		ParentID:           parentID,
		OwnerID:            &owner.Username,
	}

	if err := f.DB.WithContext(ctx).Create(&node).Error; err != nil {
		return nil, err
	}

	logger.InfoWithUser(owner.Username, "folder_created", map[string]interface{}{
		"node_id":   node.ID,
		"parent_id": parentID,
	})
	return &node, nil
}

// CreateFile promotes the staged blob named by ref into permanent
// storage, then inserts the file node. The row is only written after
// the blob is durably relocated; on insert failure the promoted blob
// is removed again.
func (f *FilesystemService) CreateFile(ctx context.Context, owner *models.User, parentID uint, ref string, enc EncryptedFields) (*models.Node, error) {
	if _, err := f.resolveParent(ctx, parentID); err != nil {
		return nil, err
	}

	if err := f.Staging.Promote(ctx, ref); err != nil {
		return nil, err
	}

	node := models.Node{
		Type:               models.NodeTypeFile,
		Ref:                ref,
		EncryptedMetadata:  enc.EncryptedMetadata,
		EncryptedKey:       enc.EncryptedKey,
		EncryptedParentKey: enc.EncryptedParentKey,
		IV:                 enc.IV,
		Tag:                enc.Tag,
		ParentID:           &parentID,
		OwnerID:            &owner.Username,
	}

	if err := f.DB.WithContext(ctx).Create(&node).Error; err != nil {
		_ = f.Blobs.Remove(ctx, ref)
		return nil, err
	}

	logger.InfoWithUser(owner.Username, "file_created", map[string]interface{}{
		"node_id":   node.ID,
		"parent_id": parentID,
		"ref":       ref,
	})
	return &node, nil
}

// Move re-parents a node. The target must be an existing folder and
// must not be the node itself or anything below it. The client hands
// over a fresh parent key so the key chain stays decryptable.
func (f *FilesystemService) Move(ctx context.Context, nodeID uint, newParentID uint, newEncryptedParentKey string) (*models.Node, error) {
	node, err := f.FindNode(ctx, nodeID)
	if err != nil {
		return nil, err
	}

	newParent, err := f.resolveParent(ctx, newParentID)
	if err != nil {
		return nil, err
	}

	if newParent.ID == node.ID {
		return nil, apperrors.New(apperrors.CodeCyclicMove, "node cannot be its own parent")
	}
	inSubtree, err := f.isDescendant(ctx, node.ID, newParent.ID)
	if err != nil {
		return nil, err
	}
	if inSubtree {
		return nil, apperrors.New(apperrors.CodeCyclicMove, "cannot move a node below itself")
	}

	oldParentID := node.ParentID
	err = f.DB.WithContext(ctx).Model(&models.Node{}).
		Where("id = ?", node.ID).
		Updates(map[string]interface{}{
			"parent_id":            newParentID,
			"encrypted_parent_key": newEncryptedParentKey,
		}).Error
	if err != nil {
		return nil, err
	}

	node.ParentID = &newParentID
	node.EncryptedParentKey = newEncryptedParentKey

	logger.Info("node_moved", map[string]interface{}{
		"node_id":       node.ID,
		"old_parent_id": oldParentID,
		"new_parent_id": newParentID,
	})
	return node, nil
}

// UpdateMetadata replaces the node's opaque metadata blob.
func (f *FilesystemService) UpdateMetadata(ctx context.Context, nodeID uint, newEncryptedMetadata string) (*models.Node, error) {
	node, err := f.FindNode(ctx, nodeID)
	if err != nil {
		return nil, err
	}

	err = f.DB.WithContext(ctx).Model(&models.Node{}).
		Where("id = ?", node.ID).
		Update("encrypted_metadata", newEncryptedMetadata).Error
	if err != nil {
		return nil, err
	}

	node.EncryptedMetadata = newEncryptedMetadata
	return node, nil
}

// UpdateRef overwrites a file node's content: the staged blob behind
// newRef becomes the node's content and the previous blob is removed.
func (f *FilesystemService) UpdateRef(ctx context.Context, nodeID uint, newRef string, newEncryptedMetadata string) (*models.Node, error) {
	node, err := f.FindNode(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	if node.IsFolder() {
		return nil, apperrors.New(apperrors.CodeInvalidNodeType, "cannot overwrite the content of a folder")
	}

	if err := f.Staging.Promote(ctx, newRef); err != nil {
		return nil, err
	}

	oldRef := node.Ref
	err = f.DB.WithContext(ctx).Model(&models.Node{}).
		Where("id = ?", node.ID).
		Updates(map[string]interface{}{
			"ref":                newRef,
			"encrypted_metadata": newEncryptedMetadata,
		}).Error
	if err != nil {
		_ = f.Blobs.Remove(ctx, newRef)
		return nil, err
	}

	if oldRef != "" {
		_ = f.Blobs.Remove(ctx, oldRef)
	}

	node.Ref = newRef
	node.EncryptedMetadata = newEncryptedMetadata

	logger.Info("node_overwritten", map[string]interface{}{
		"node_id": node.ID,
		"old_ref": oldRef,
		"new_ref": newRef,
	})
	return node, nil
}

// Delete removes a node and its whole subtree. Permanent blobs of
// file descendants are removed first; the rows go away afterwards in
// one transaction together with their shares and links.
func (f *FilesystemService) Delete(ctx context.Context, nodeID uint) error {
	node, err := f.FindNode(ctx, nodeID)
	if err != nil {
		return err
	}

	doomed, err := f.collectSubtree(ctx, node)
	if err != nil {
		return err
	}

	for _, victim := range doomed {
		if victim.Type == models.NodeTypeFile && victim.Ref != "" {
			if err := f.Blobs.Remove(ctx, victim.Ref); err != nil {
				return err
			}
		}
	}

	ids := make([]uint, len(doomed))
	for i, victim := range doomed {
		ids[i] = victim.ID
	}

	err = f.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("node_id IN ?", ids).Delete(&models.Share{}).Error; err != nil {
			return err
		}
		if err := tx.Where("node_id IN ?", ids).Delete(&models.Link{}).Error; err != nil {
			return err
		}
		return tx.Where("id IN ?", ids).Delete(&models.Node{}).Error
	})
	if err != nil {
		return err
	}

	logger.Info("node_deleted", map[string]interface{}{
		"node_id":       node.ID,
		"subtree_count": len(doomed),
	})
	return nil
}

// collectSubtree returns node plus every transitive descendant.
func (f *FilesystemService) collectSubtree(ctx context.Context, node *models.Node) ([]models.Node, error) {
	result := []models.Node{*node}

	var children []models.Node
	if err := f.DB.WithContext(ctx).Where("parent_id = ?", node.ID).Find(&children).Error; err != nil {
		return nil, err
	}
	for i := range children {
		sub, err := f.collectSubtree(ctx, &children[i])
		if err != nil {
			return nil, err
		}
		result = append(result, sub...)
	}
	return result, nil
}

// GetTree returns rootID's node with its full descendant tree
// attached. With a nil rootID it returns the owner's whole forest
// hung under a synthetic folder node with id 0.
func (f *FilesystemService) GetTree(ctx context.Context, owner *models.User, rootID *uint) (*models.Node, error) {
	if rootID == nil {
		var roots []models.Node
		if err := f.DB.WithContext(ctx).
			Where("owner_id = ? AND parent_id IS NULL", owner.Username).
			Order("id ASC").
			Find(&roots).Error; err != nil {
			return nil, err
		}
		forest := models.Node{Type: models.NodeTypeFolder, OwnerID: &owner.Username}
		for i := range roots {
			if err := f.loadChildren(ctx, &roots[i]); err != nil {
				return nil, err
			}
			forest.Children = append(forest.Children, roots[i])
		}
		return &forest, nil
	}

	node, err := f.FindNode(ctx, *rootID)
	if err != nil {
		return nil, err
	}
	if err := f.loadChildren(ctx, node); err != nil {
		return nil, err
	}
	return node, nil
}

func (f *FilesystemService) loadChildren(ctx context.Context, node *models.Node) error {
	var children []models.Node
	if err := f.DB.WithContext(ctx).
		Where("parent_id = ?", node.ID).
		Order("id ASC").
		Find(&children).Error; err != nil {
		return err
	}
	for i := range children {
		if err := f.loadChildren(ctx, &children[i]); err != nil {
			return err
		}
	}
	node.Children = children
	return nil
}

// AncestorChain returns the path from the root down to nodeID, both
// ends included.
func (f *FilesystemService) AncestorChain(ctx context.Context, nodeID uint) ([]models.Node, error) {
	chain := make([]models.Node, 0)
	current := nodeID
	for {
		var node models.Node
		if err := f.DB.WithContext(ctx).First(&node, "id = ?", current).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				if len(chain) == 0 {
					return nil, apperrors.New(apperrors.CodeNodeNotFound, "node not found")
				}
				break
			}
			return nil, err
		}

		chain = append(chain, node)
		if node.ParentID == nil {
			break
		}
		current = *node.ParentID
	}

	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// isDescendant reports whether candidate sits anywhere below ancestor.
func (f *FilesystemService) isDescendant(ctx context.Context, ancestorID, candidateID uint) (bool, error) {
	current := candidateID
	for {
		if current == ancestorID {
			return true, nil
		}

		var node models.Node
		err := f.DB.WithContext(ctx).Select("id", "parent_id").First(&node, "id = ?", current).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return false, nil
			}
			return false, err
		}
		if node.ParentID == nil {
			return false, nil
		}
		current = *node.ParentID
	}
}
