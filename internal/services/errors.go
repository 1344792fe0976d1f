package services

import (
	"net/http"

	"github.com/safetrack/ehs-training-backend/internal/apierr"
)

// Typed failures the engine reports to callers. Every one is scoped to a
// single request; nothing here is fatal to the process.
var (
	ErrAttemptAlreadyActive = apierr.New(http.StatusConflict, "attempt_already_active", nil)
	ErrAttemptNotActive     = apierr.New(http.StatusConflict, "attempt_not_active", nil)
	ErrAttemptLimitExceeded = apierr.New(http.StatusForbidden, "attempt_limit_exceeded", nil)
	ErrComponentLocked      = apierr.New(http.StatusForbidden, "component_locked", nil)
	ErrAlreadyEnrolled      = apierr.New(http.StatusConflict, "already_enrolled", nil)
	ErrValidation           = apierr.New(http.StatusBadRequest, "validation_error", nil)
	ErrNotFound             = apierr.New(http.StatusNotFound, "not_found", nil)
	ErrNotAuthenticated     = apierr.New(http.StatusUnauthorized, "not_authenticated", nil)
)
