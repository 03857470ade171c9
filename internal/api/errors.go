// Package api provides the HTTP surface: a chi router, the result envelope
// and the handlers for communities, events, page blocks, media and admin
// moderation.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/access"
	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/community"
	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/content"
	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/media"
	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/middleware"
)

// Common error codes used throughout the API.
const (
	// ErrCodeValidation indicates input validation failure.
	ErrCodeValidation = "validation_error"

	// ErrCodeAuthFailed indicates authentication failure.
	ErrCodeAuthFailed = "auth_failed"

	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound = "not_found"

	// ErrCodeRateLimited indicates rate limit exceeded.
	ErrCodeRateLimited = "rate_limited"

	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal = "internal_error"

	// ErrCodeForbidden indicates the caller may not change the target.
	ErrCodeForbidden = "forbidden"

	// ErrCodeConflict indicates a conflict with the current state.
	ErrCodeConflict = "conflict"

	// ErrCodeBadRequest indicates a malformed request.
	ErrCodeBadRequest = "bad_request"

	// ErrCodeUnsupportedType indicates an upload with a rejected MIME type.
	ErrCodeUnsupportedType = "unsupported_type"

	// ErrCodeFileTooLarge indicates an upload over its site's ceiling.
	ErrCodeFileTooLarge = "file_too_large"
)

// Messages shown for failures whose details stay in the server log.
const (
	msgPermissionDenied = "You do not have permission to perform this action"
	msgAuthRequired     = "Authentication required"
	msgOperationFailed  = "The operation failed, please try again"
	msgUnreadableImage  = "The file is not a readable image"
)

// Response is the result envelope of every endpoint:
// {"success": true, "data": ...} or {"success": false, "error": "...", "code": "..."}.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

func writeResponse(w http.ResponseWriter, ctx context.Context, status int, resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal response", "error", err)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("Internal server error"))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.ErrorContext(ctx, "failed to write response", "error", err)
	}
}

// WriteJSON writes a successful envelope around data.
func WriteJSON(w http.ResponseWriter, ctx context.Context, status int, data any) {
	writeResponse(w, ctx, status, Response{Success: true, Data: data})
}

// WriteError writes a failed envelope and records code for the access log.
//
// Example:
//
//	WriteError(w, r.Context(), http.StatusNotFound, api.ErrCodeNotFound, "Community not found")
func WriteError(w http.ResponseWriter, ctx context.Context, status int, code, message string) {
	ctx = middleware.SetErrorCode(ctx, code)
	writeResponse(w, ctx, status, Response{Success: false, Error: message, Code: code})
}

// StatusCodeMapping returns the recommended HTTP status code for common error codes.
func StatusCodeMapping(code string) int {
	switch code {
	case ErrCodeValidation, ErrCodeBadRequest:
		return http.StatusBadRequest
	case ErrCodeAuthFailed:
		return http.StatusUnauthorized
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeConflict:
		return http.StatusConflict
	case ErrCodeUnsupportedType:
		return http.StatusUnsupportedMediaType
	case ErrCodeFileTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// classify maps a domain error to an error code and the message shown to the
// caller. ok is false for errors that are not part of any domain taxonomy.
func classify(err error) (code, message string, ok bool) {
	switch {
	case errors.Is(err, access.ErrUnauthenticated):
		return ErrCodeAuthFailed, msgAuthRequired, true
	case errors.Is(err, access.ErrForbidden):
		return ErrCodeForbidden, msgPermissionDenied, true

	case errors.Is(err, access.ErrNotFound),
		errors.Is(err, community.ErrCommunityNotFound),
		errors.Is(err, community.ErrEventNotFound),
		errors.Is(err, community.ErrCategoryNotFound),
		errors.Is(err, content.ErrBlockNotFound),
		errors.Is(err, media.ErrItemNotFound):
		return ErrCodeNotFound, "Not found", true

	case errors.Is(err, community.ErrDuplicateSlug):
		return ErrCodeConflict, "This slug is already taken", true
	case errors.Is(err, community.ErrInvalidTransition):
		return ErrCodeConflict, "This status change is not allowed", true

	case errors.Is(err, media.ErrUnsupportedType):
		return ErrCodeUnsupportedType, "Only image files are accepted", true
	case errors.Is(err, media.ErrFileTooLarge):
		return ErrCodeFileTooLarge, "File is too large", true
	case errors.Is(err, media.ErrStorage):
		return ErrCodeInternal, "Failed to upload the file", true
	case errors.Is(err, media.ErrMetadataInsert):
		return ErrCodeInternal, "Failed to save the file, the upload was cancelled", true
	case errors.Is(err, media.ErrInvalidImage):
		return ErrCodeValidation, msgUnreadableImage, true

	case errors.Is(err, community.ErrInvalidName),
		errors.Is(err, community.ErrInvalidTitle),
		errors.Is(err, community.ErrInvalidSlug),
		errors.Is(err, community.ErrInvalidSocialLink),
		errors.Is(err, community.ErrInvalidTimeRange),
		errors.Is(err, content.ErrUnknownBlockType),
		errors.Is(err, content.ErrInvalidContent),
		errors.Is(err, content.ErrDuplicateBlock),
		errors.Is(err, content.ErrBlockSetMismatch),
		errors.Is(err, content.ErrBlockTypeMismatch),
		errors.Is(err, media.ErrEmptyFile),
		errors.Is(err, media.ErrUnknownSite):
		return ErrCodeValidation, err.Error(), true
	}
	return "", "", false
}

// writeServiceError converts err into the result envelope. Errors outside the
// domain taxonomy, and internal ones, are logged with op and hidden behind a
// generic message.
func writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	ctx := r.Context()
	code, message, ok := classify(err)
	if !ok {
		code, message = ErrCodeInternal, msgOperationFailed
	}
	if code == ErrCodeInternal {
		slog.ErrorContext(ctx, "request failed", "op", op, "error", err)
	}
	WriteError(w, ctx, StatusCodeMapping(code), code, message)
}
