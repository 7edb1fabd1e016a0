package handlers

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/pec-cloud/server/internal/apperrors"
	"github.com/pec-cloud/server/pkg/utils"
)

func parseNodeID(value string) (uint, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}

// fail translates a service error into the response envelope. Codes
// decide the HTTP status; anything without a code is a plain 500.
func fail(c *fiber.Ctx, err error) error {
	code := apperrors.CodeOf(err)
	if code == "" {
		return utils.Failure(c, fiber.StatusInternalServerError, "ERROR_INTERNAL", "internal server error")
	}

	var status int
	switch code {
	case apperrors.CodeNodeNotFound,
		apperrors.CodeParentNotFound,
		apperrors.CodeUserNotFound,
		apperrors.CodeLinkNotFound,
		apperrors.CodeShareNotFound,
		apperrors.CodeSessionNotFound:
		status = fiber.StatusNotFound
	case apperrors.CodeInvalidCredentials,
		apperrors.CodeInvalidSession,
		apperrors.CodeNoAuthToken:
		status = fiber.StatusUnauthorized
	case apperrors.CodeNotOwnerOrShared,
		apperrors.CodeInvalidAccessLevel,
		apperrors.CodeInvalidUserStatus:
		status = fiber.StatusForbidden
	case apperrors.CodeUsernameTaken,
		apperrors.CodeEmailTaken,
		apperrors.CodeShareAlreadyExists:
		status = fiber.StatusConflict
	default:
		status = fiber.StatusBadRequest
	}

	message := err.Error()
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		message = appErr.Message
	}

	return utils.Failure(c, status, string(code), message)
}
