package services

import (
	"context"

	"github.com/pec-cloud/server/internal/apperrors"
	"github.com/pec-cloud/server/internal/models"
	"gorm.io/gorm"
)

// ShareService records internal grants between two accounts.
type ShareService struct {
	DB         *gorm.DB
	Filesystem *FilesystemService
}

func NewShareService(db *gorm.DB, fs *FilesystemService) *ShareService {
	return &ShareService{DB: db, Filesystem: fs}
}

// CreateShare grants recipientUsername access to a node. Self-shares
// are rejected, as is a second grant for the same (node, sender,
// recipient) triple.
func (s *ShareService) CreateShare(ctx context.Context, nodeID uint, sender *models.User, recipientUsername, shareKey, shareSignature string) (*models.Share, error) {
	node, err := s.Filesystem.FindNode(ctx, nodeID)
	if err != nil {
		return nil, err
	}

	if sender.Username == recipientUsername {
		return nil, apperrors.New(apperrors.CodeInvalidShare, "cannot share a node with yourself")
	}

	var recipient models.User
	if err := s.DB.WithContext(ctx).First(&recipient, "username = ?", recipientUsername).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.New(apperrors.CodeUserNotFound, "share recipient not found")
		}
		return nil, err
	}

	var existing int64
	err = s.DB.WithContext(ctx).Model(&models.Share{}).
		Where("node_id = ? AND sender_username = ? AND recipient_username = ?",
			node.ID, sender.Username, recipient.Username).
		Count(&existing).Error
	if err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, apperrors.New(apperrors.CodeShareAlreadyExists, "node is already shared with this user")
	}

	share := models.Share{
		ShareKey:          shareKey,
		ShareSignature:    shareSignature,
		NodeID:            node.ID,
		SenderUsername:    sender.Username,
		RecipientUsername: recipient.Username,
	}

	if err := s.DB.WithContext(ctx).Create(&share).Error; err != nil {
		return nil, err
	}
	return &share, nil
}

// SharesReceived lists every grant where username is the recipient.
func (s *ShareService) SharesReceived(ctx context.Context, username string) ([]models.Share, error) {
	var shares []models.Share
	err := s.DB.WithContext(ctx).
		Preload("Node").
		Where("recipient_username = ?", username).
		Find(&shares).Error
	if err != nil {
		return nil, err
	}
	return shares, nil
}

// SharesByNode lists every grant attached directly to a node.
func (s *ShareService) SharesByNode(ctx context.Context, nodeID uint) ([]models.Share, error) {
	if _, err := s.Filesystem.FindNode(ctx, nodeID); err != nil {
		return nil, err
	}

	var shares []models.Share
	if err := s.DB.WithContext(ctx).Where("node_id = ?", nodeID).Find(&shares).Error; err != nil {
		return nil, err
	}
	return shares, nil
}
