package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pec-cloud/server/internal/apperrors"
	"github.com/pec-cloud/server/internal/models"
	"github.com/pec-cloud/server/pkg/utils"
	"gorm.io/gorm"
)

// SessionService issues and resolves bearer sessions. The bearer
// token handed to clients is a signed JWT wrapping the session row
// id; the row carries the authoritative expiry.
type SessionService struct {
	DB       *gorm.DB
	Validity time.Duration
}

func NewSessionService(db *gorm.DB, validity time.Duration) *SessionService {
	return &SessionService{DB: db, Validity: validity}
}

// Issue creates a session for user and returns the bearer token.
func (s *SessionService) Issue(ctx context.Context, user *models.User) (string, *models.Session, error) {
	now := time.Now()
	session := models.Session{
		ID:       uuid.New().String(),
		IssuedAt: now.UnixMilli(),
		Expire:   now.Add(s.Validity).UnixMilli(),
		Username: user.Username,
	}

	if err := s.DB.WithContext(ctx).Create(&session).Error; err != nil {
		return "", nil, err
	}

	token, err := utils.SignSessionToken(session.ID, now.Add(s.Validity))
	if err != nil {
		return "", nil, err
	}
	return token, &session, nil
}

// Authenticate resolves a bearer token to its non-expired session and
// owning user.
func (s *SessionService) Authenticate(ctx context.Context, token string) (*models.User, *models.Session, error) {
	sessionID, err := utils.ParseSessionToken(token)
	if err != nil {
		return nil, nil, apperrors.New(apperrors.CodeInvalidSession, "invalid session token")
	}

	var session models.Session
	if err := s.DB.WithContext(ctx).First(&session, "id = ?", sessionID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil, apperrors.New(apperrors.CodeInvalidSession, "session not found")
		}
		return nil, nil, err
	}

	if session.Expire <= time.Now().UnixMilli() {
		_ = s.DB.WithContext(ctx).Delete(&models.Session{}, "id = ?", session.ID).Error
		return nil, nil, apperrors.New(apperrors.CodeInvalidSession, "session expired")
	}

	var user models.User
	if err := s.DB.WithContext(ctx).First(&user, "username = ?", session.Username).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil, apperrors.New(apperrors.CodeInvalidSession, "session user no longer exists")
		}
		return nil, nil, err
	}

	return &user, &session, nil
}

// Extend pushes the session expiry out by the configured validity.
func (s *SessionService) Extend(ctx context.Context, sessionID string) error {
	result := s.DB.WithContext(ctx).
		Model(&models.Session{}).
		Where("id = ?", sessionID).
		Update("expire", time.Now().Add(s.Validity).UnixMilli())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.New(apperrors.CodeSessionNotFound, "session not found")
	}
	return nil
}

// Terminate deletes the session, invalidating its token immediately.
func (s *SessionService) Terminate(ctx context.Context, sessionID string) error {
	result := s.DB.WithContext(ctx).Delete(&models.Session{}, "id = ?", sessionID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.New(apperrors.CodeSessionNotFound, "session not found")
	}
	return nil
}
