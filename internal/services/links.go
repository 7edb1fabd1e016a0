package services

import (
	"context"

	"github.com/pec-cloud/server/internal/apperrors"
	"github.com/pec-cloud/server/internal/models"
	"github.com/pec-cloud/server/pkg/utils"
	"gorm.io/gorm"
)

// LinkService issues anonymous sharing links. A link's shareId is 8
// crypto-random bytes hex-encoded; at that size a collision is a
// birthday-bound curiosity, so there is no retry logic.
type LinkService struct {
	DB         *gorm.DB
	Filesystem *FilesystemService
}

func NewLinkService(db *gorm.DB, fs *FilesystemService) *LinkService {
	return &LinkService{DB: db, Filesystem: fs}
}

// CreateLink binds a new link to an existing file node and returns
// the generated shareId.
func (l *LinkService) CreateLink(ctx context.Context, nodeID uint, encryptedNodeKey, encryptedShareKey, iv string) (*models.Link, error) {
	node, err := l.Filesystem.FindNode(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	if node.IsFolder() {
		return nil, apperrors.New(apperrors.CodeNodeNotFound, "links can only target file nodes")
	}

	shareID, err := utils.RandomHex(8)
	if err != nil {
		return nil, err
	}

	link := models.Link{
		ShareID:           shareID,
		EncryptedNodeKey:  encryptedNodeKey,
		EncryptedShareKey: encryptedShareKey,
		IV:                iv,
		NodeID:            node.ID,
	}

	if err := l.DB.WithContext(ctx).Create(&link).Error; err != nil {
		return nil, err
	}
	return &link, nil
}

// FindLink returns the link row for shareID.
func (l *LinkService) FindLink(ctx context.Context, shareID string) (*models.Link, error) {
	var link models.Link
	if err := l.DB.WithContext(ctx).First(&link, "share_id = ?", shareID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.New(apperrors.CodeLinkNotFound, "link not found")
		}
		return nil, err
	}
	return &link, nil
}

// ResolveLink returns a link together with the node it points at.
func (l *LinkService) ResolveLink(ctx context.Context, shareID string) (*models.Link, *models.Node, error) {
	link, err := l.FindLink(ctx, shareID)
	if err != nil {
		return nil, nil, err
	}
	node, err := l.Filesystem.FindNode(ctx, link.NodeID)
	if err != nil {
		return nil, nil, err
	}
	return link, node, nil
}

// LinksByNode lists every link referencing a node.
func (l *LinkService) LinksByNode(ctx context.Context, nodeID uint) ([]models.Link, error) {
	if _, err := l.Filesystem.FindNode(ctx, nodeID); err != nil {
		return nil, err
	}

	var links []models.Link
	if err := l.DB.WithContext(ctx).Where("node_id = ?", nodeID).Find(&links).Error; err != nil {
		return nil, err
	}
	return links, nil
}
