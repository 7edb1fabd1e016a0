package services

import (
	"context"

	"github.com/pec-cloud/server/internal/models"
	"gorm.io/gorm"
)

// AccessService answers who may see a node. Access derives from
// ownership, administrator level, and shares attached to the node or
// any of its ancestors: a share on a folder covers the whole subtree
// below it, never the other way around.
type AccessService struct {
	DB *gorm.DB
}

func NewAccessService(db *gorm.DB) *AccessService {
	return &AccessService{DB: db}
}

// CanAccess walks from node up to its root collecting shares.
func (a *AccessService) CanAccess(ctx context.Context, node *models.Node, viewer *models.User) (bool, error) {
	if viewer.IsAdministrator() {
		return true, nil
	}

	current := node
	for {
		if current.OwnerID != nil && *current.OwnerID == viewer.Username {
			return true, nil
		}

		var count int64
		err := a.DB.WithContext(ctx).Model(&models.Share{}).
			Where("node_id = ? AND recipient_username = ?", current.ID, viewer.Username).
			Count(&count).Error
		if err != nil {
			return false, err
		}
		if count > 0 {
			return true, nil
		}

		if current.ParentID == nil {
			return false, nil
		}

		var parent models.Node
		if err := a.DB.WithContext(ctx).First(&parent, "id = ?", *current.ParentID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return false, nil
			}
			return false, err
		}
		current = &parent
	}
}

// AuthorizedUsers computes everyone permitted to view node: owners
// and share recipients along the ancestor chain, plus every
// administrator account.
func (a *AccessService) AuthorizedUsers(ctx context.Context, node *models.Node) ([]models.User, error) {
	usernames := make(map[string]bool)

	current := node
	for {
		if current.OwnerID != nil {
			usernames[*current.OwnerID] = true
		}

		var shares []models.Share
		err := a.DB.WithContext(ctx).
			Where("node_id = ?", current.ID).
			Find(&shares).Error
		if err != nil {
			return nil, err
		}
		for _, share := range shares {
			usernames[share.RecipientUsername] = true
		}

		if current.ParentID == nil {
			break
		}
		var parent models.Node
		if err := a.DB.WithContext(ctx).First(&parent, "id = ?", *current.ParentID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				break
			}
			return nil, err
		}
		current = &parent
	}

	var users []models.User
	query := a.DB.WithContext(ctx).Where("access_level = ?", models.AccessLevelAdministrator)
	if len(usernames) > 0 {
		names := make([]string, 0, len(usernames))
		for name := range usernames {
			names = append(names, name)
		}
		query = query.Or("username IN ?", names)
	}
	if err := query.Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}
