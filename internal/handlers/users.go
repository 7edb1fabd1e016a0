package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/pec-cloud/server/internal/apperrors"
	"github.com/pec-cloud/server/internal/middleware"
	"github.com/pec-cloud/server/internal/models"
	"github.com/pec-cloud/server/internal/services"
	"github.com/pec-cloud/server/pkg/logger"
	"github.com/pec-cloud/server/pkg/utils"
	"gorm.io/gorm"
)

type UserHandler struct {
	DB    *gorm.DB
	Audit *services.AuditService
}

func NewUserHandler(db *gorm.DB, audit *services.AuditService) *UserHandler {
	return &UserHandler{DB: db, Audit: audit}
}

// GetPublicKey returns another user's RSA public key. Any authenticated
// user may call this: it is what makes shares possible.
func (h *UserHandler) GetPublicKey(c *fiber.Ctx) error {
	username := c.Params("username")

	var user models.User
	if err := h.DB.WithContext(c.Context()).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fail(c, apperrors.New(apperrors.CodeUserNotFound, "user not found"))
		}
		return fail(c, err)
	}

	return utils.Success(c, "Successfully got user public key.", fiber.Map{
		"username":     user.Username,
		"rsaPublicKey": user.RSAPublicKey,
	})
}

// ListUsers returns every account. Admin only.
func (h *UserHandler) ListUsers(c *fiber.Ctx) error {
	var users []models.User
	if err := h.DB.WithContext(c.Context()).Order("username").Find(&users).Error; err != nil {
		return fail(c, err)
	}

	out := make([]fiber.Map, 0, len(users))
	for _, u := range users {
		out = append(out, fiber.Map{
			"username":    u.Username,
			"email":       u.Email,
			"accessLevel": u.AccessLevel,
			"userStatus":  u.UserStatus,
		})
	}
	return utils.Success(c, "Successfully got all users.", fiber.Map{"users": out})
}

// Suspend flags an account so it can no longer log in or use its
// sessions. Admin only.
func (h *UserHandler) Suspend(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	session := middleware.GetCurrentSession(c)
	username := c.Params("username")

	var user models.User
	if err := h.DB.WithContext(c.Context()).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fail(c, apperrors.New(apperrors.CodeUserNotFound, "user not found"))
		}
		return fail(c, err)
	}
	if user.UserStatus != models.UserStatusOK {
		return fail(c, apperrors.New(apperrors.CodeInvalidUserStatus, "only active accounts can be suspended"))
	}

	if err := h.DB.WithContext(c.Context()).
		Model(&models.User{}).
		Where("username = ?", username).
		Update("user_status", models.UserStatusSuspended).Error; err != nil {
		return fail(c, err)
	}
	if err := h.DB.WithContext(c.Context()).Where("username = ?", username).Delete(&models.Session{}).Error; err != nil {
		return fail(c, err)
	}

	logger.WarnWithUser(currentUser.Username, "user_suspended", map[string]interface{}{"subject": username})
	h.Audit.RecordUser(models.UserLog{
		ActivityType:      models.ActivityUserSuspension,
		SubjectUsername:   &username,
		PerformerUsername: &currentUser.Username,
		SessionID:         &session.ID,
	})

	return utils.Success(c, "Successfully suspended user.", nil)
}

// Delete marks an account deleted, wipes its key material and kills its
// sessions. The user's nodes stay in place with their owner cleared so
// audit history and shared subtrees keep resolving. Admin only.
func (h *UserHandler) Delete(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	session := middleware.GetCurrentSession(c)
	username := c.Params("username")

	if username == currentUser.Username {
		return fail(c, apperrors.New(apperrors.CodeInvalidUserStatus, "cannot delete your own account"))
	}

	var user models.User
	if err := h.DB.WithContext(c.Context()).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fail(c, apperrors.New(apperrors.CodeUserNotFound, "user not found"))
		}
		return fail(c, err)
	}
	if user.UserStatus == models.UserStatusDeleted {
		return fail(c, apperrors.New(apperrors.CodeInvalidUserStatus, "account is already deleted"))
	}

	err := h.DB.WithContext(c.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.User{}).Where("username = ?", username).Updates(map[string]interface{}{
			"user_status":               models.UserStatusDeleted,
			"hashed_authentication_key": "",
			"encrypted_master_key":      "",
			"encrypted_rsa_private_key": "",
		}).Error; err != nil {
			return err
		}
		if err := tx.Where("username = ?", username).Delete(&models.Session{}).Error; err != nil {
			return err
		}
		if err := tx.Where("sender_username = ? OR recipient_username = ?", username, username).Delete(&models.Share{}).Error; err != nil {
			return err
		}
		return tx.Model(&models.Node{}).Where("owner_id = ?", username).Update("owner_id", nil).Error
	})
	if err != nil {
		return fail(c, err)
	}

	logger.WarnWithUser(currentUser.Username, "user_deleted", map[string]interface{}{"subject": username})
	h.Audit.RecordUser(models.UserLog{
		ActivityType:      models.ActivityUserDeletion,
		SubjectUsername:   &username,
		PerformerUsername: &currentUser.Username,
		SessionID:         &session.ID,
	})

	return utils.Success(c, "Successfully deleted user.", nil)
}
