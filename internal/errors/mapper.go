// internal/errors/mapper.go
package errors

import (
	"context"
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Map converts service/infra errors into gRPC-friendly status errors.
// Keeps the service layer clean by centralizing error mapping.
func Map(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "request timed out")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request was canceled")
	}

	switch KindOf(err) {
	case KindValidation:
		return status.Error(codes.InvalidArgument, err.Error())
	case KindNotFound:
		return status.Error(codes.NotFound, err.Error())
	case KindUnavailable:
		return status.Error(codes.Unavailable, err.Error())
	case KindRateLimited:
		return status.Error(codes.ResourceExhausted, err.Error())
	case KindUnauthorized:
		return status.Error(codes.Unauthenticated, err.Error())
	case KindForbidden:
		return status.Error(codes.PermissionDenied, err.Error())
	default:
		// storage details stay in the logs
		return status.Error(codes.Internal, "internal storage error")
	}
}

// HTTPStatus picks the response status for err.
func HTTPStatus(err error) int {
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUnavailable:
		return http.StatusServiceUnavailable
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the text safe to return to clients.
func PublicMessage(err error) string {
	if KindOf(err) == KindStorage {
		return "server error"
	}
	var svc *Error
	if errors.As(err, &svc) {
		return svc.Message
	}
	return err.Error()
}
