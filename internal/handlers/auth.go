package handlers

import (
	"net/mail"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/pec-cloud/server/internal/apperrors"
	"github.com/pec-cloud/server/internal/middleware"
	"github.com/pec-cloud/server/internal/models"
	"github.com/pec-cloud/server/internal/services"
	"github.com/pec-cloud/server/pkg/logger"
	"github.com/pec-cloud/server/pkg/utils"
	"gorm.io/gorm"
)

type AuthHandler struct {
	DB       *gorm.DB
	Sessions *services.SessionService
	Mailer   services.Mailer
	Audit    *services.AuditService
}

func NewAuthHandler(db *gorm.DB, sessions *services.SessionService, mailer services.Mailer, audit *services.AuditService) *AuthHandler {
	return &AuthHandler{DB: db, Sessions: sessions, Mailer: mailer, Audit: audit}
}

type registerRequest struct {
	Username               string `json:"username"`
	Email                  string `json:"email"`
	AuthenticationKey      string `json:"authenticationKey"`
	EncryptedMasterKey     string `json:"encryptedMasterKey"`
	EncryptedRSAPrivateKey string `json:"encryptedRSAPrivateKey"`
	RSAPublicKey           string `json:"rsaPublicKey"`
}

// Register creates an account in PENDING_VALIDATION and mails the
// registration key. The account cannot log in until validated.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Failure(c, fiber.StatusBadRequest, "ERROR_INVALID_BODY", "invalid request body")
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	if req.Username == "" {
		return utils.Failure(c, fiber.StatusBadRequest, "ERROR_INVALID_BODY", "username is required")
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return utils.Failure(c, fiber.StatusBadRequest, "ERROR_INVALID_BODY", "invalid email")
	}
	if req.AuthenticationKey == "" || req.EncryptedMasterKey == "" {
		return utils.Failure(c, fiber.StatusBadRequest, "ERROR_INVALID_BODY", "authenticationKey and encryptedMasterKey are required")
	}

	var existing models.User
	if err := h.DB.First(&existing, "username = ?", req.Username).Error; err == nil {
		return fail(c, apperrors.New(apperrors.CodeUsernameTaken, "username already taken"))
	} else if err != gorm.ErrRecordNotFound {
		return fail(c, err)
	}
	if err := h.DB.First(&existing, "email = ?", req.Email).Error; err == nil {
		return fail(c, apperrors.New(apperrors.CodeEmailTaken, "email already registered"))
	} else if err != gorm.ErrRecordNotFound {
		return fail(c, err)
	}

	hashedKey, err := utils.HashAuthenticationKey(req.AuthenticationKey)
	if err != nil {
		return fail(c, err)
	}
	registrationKey, err := utils.RandomHex(16)
	if err != nil {
		return fail(c, err)
	}

	user := models.User{
		Username:                req.Username,
		Email:                   req.Email,
		HashedAuthenticationKey: hashedKey,
		EncryptedMasterKey:      req.EncryptedMasterKey,
		EncryptedRSAPrivateKey:  req.EncryptedRSAPrivateKey,
		RSAPublicKey:            req.RSAPublicKey,
		AccessLevel:             models.AccessLevelUser,
		UserStatus:              models.UserStatusPendingValidation,
		RegistrationKey:         registrationKey,
	}

	if err := h.DB.Create(&user).Error; err != nil {
		return fail(c, err)
	}

	h.Mailer.SendConfirmation(&user, registrationKey)

	logger.InfoWithUser(user.Username, "user_registered", map[string]interface{}{
		"email": user.Email,
	})
	h.Audit.RecordUser(models.UserLog{
		ActivityType:      models.ActivityUserRegistration,
		SubjectUsername:   &user.Username,
		PerformerUsername: &user.Username,
	})

	return utils.Created(c, "Successfully registered. Check your mailbox to validate the account.", fiber.Map{
		"user": user,
	})
}

type validateRequest struct {
	RegistrationKey string `json:"registrationKey"`
}

// Validate flips a pending account to OK given its registration key.
func (h *AuthHandler) Validate(c *fiber.Ctx) error {
	var req validateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Failure(c, fiber.StatusBadRequest, "ERROR_INVALID_BODY", "invalid request body")
	}
	if strings.TrimSpace(req.RegistrationKey) == "" {
		return utils.Failure(c, fiber.StatusBadRequest, "ERROR_INVALID_BODY", "registrationKey is required")
	}

	var user models.User
	err := h.DB.First(&user, "registration_key = ? AND user_status = ?",
		strings.TrimSpace(req.RegistrationKey), models.UserStatusPendingValidation).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return fail(c, apperrors.New(apperrors.CodeInvalidRegistration, "unknown or already used registration key"))
		}
		return fail(c, err)
	}

	err = h.DB.Model(&models.User{}).
		Where("username = ?", user.Username).
		Updates(map[string]interface{}{
			"user_status":      models.UserStatusOK,
			"registration_key": "",
		}).Error
	if err != nil {
		return fail(c, err)
	}

	h.Audit.RecordUser(models.UserLog{
		ActivityType:      models.ActivityUserCreation,
		SubjectUsername:   &user.Username,
		PerformerUsername: &user.Username,
	})

	return utils.Success(c, "Account successfully validated.", nil)
}

type loginRequest struct {
	Username          string `json:"username"`
	AuthenticationKey string `json:"authenticationKey"`
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Failure(c, fiber.StatusBadRequest, "ERROR_INVALID_BODY", "invalid request body")
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.AuthenticationKey == "" {
		return utils.Failure(c, fiber.StatusBadRequest, "ERROR_INVALID_BODY", "username and authenticationKey are required")
	}

	var user models.User
	if err := h.DB.First(&user, "username = ?", req.Username).Error; err != nil {
		logger.Warn("login_failed_user_not_found", map[string]interface{}{
			"username": req.Username,
			"ip":       c.IP(),
		})
		return fail(c, apperrors.New(apperrors.CodeInvalidCredentials, "invalid credentials"))
	}

	if !utils.CheckAuthenticationKey(req.AuthenticationKey, user.HashedAuthenticationKey) {
		logger.WarnWithUser(user.Username, "login_failed_bad_key", map[string]interface{}{
			"ip": c.IP(),
		})
		return fail(c, apperrors.New(apperrors.CodeInvalidCredentials, "invalid credentials"))
	}

	if user.UserStatus != models.UserStatusOK {
		return fail(c, apperrors.New(apperrors.CodeInvalidUserStatus, "account is not active"))
	}

	token, session, err := h.Sessions.Issue(c.Context(), &user)
	if err != nil {
		return fail(c, err)
	}

	logger.InfoWithUser(user.Username, "user_login", map[string]interface{}{
		"ip": c.IP(),
	})
	h.Audit.RecordUser(models.UserLog{
		ActivityType:      models.ActivityUserLogin,
		SubjectUsername:   &user.Username,
		PerformerUsername: &user.Username,
		SessionID:         &session.ID,
	})

	return utils.Success(c, "Successfully logged in.", fiber.Map{
		"token": token,
		"user":  user,
	})
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	session := middleware.GetCurrentSession(c)
	if session == nil {
		return utils.Failure(c, fiber.StatusUnauthorized, string(apperrors.CodeNoAuthToken), "unauthorized")
	}

	if err := h.Sessions.Terminate(c.Context(), session.ID); err != nil {
		return fail(c, err)
	}
	return utils.Success(c, "Successfully logged out.", nil)
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Failure(c, fiber.StatusUnauthorized, string(apperrors.CodeNoAuthToken), "unauthorized")
	}
	return utils.Success(c, "Successfully got current user.", fiber.Map{"user": user})
}
