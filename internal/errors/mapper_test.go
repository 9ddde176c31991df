package errors_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gorm.io/gorm"

	svcErr "github.com/oggyb/fashionjiok/internal/errors"
)

func TestMap(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code codes.Code
	}{
		{"validation", svcErr.Validation("fromUser is required"), codes.InvalidArgument},
		{"not found", svcErr.NotFound("room"), codes.NotFound},
		{"gorm not found", svcErr.Storage("get user", gorm.ErrRecordNotFound), codes.NotFound},
		{"storage", svcErr.Storage("insert like", fmt.Errorf("connection refused")), codes.Internal},
		{"foreign", fmt.Errorf("boom"), codes.Internal},
		{"deadline", fmt.Errorf("wrap: %w", context.DeadlineExceeded), codes.DeadlineExceeded},
		{"rate limited", svcErr.RateLimited("slow down"), codes.ResourceExhausted},
		{"unauthorized", svcErr.Unauthorized("bad token"), codes.Unauthenticated},
		{"unavailable", svcErr.Unavailable("ai disabled", nil), codes.Unavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, ok := status.FromError(svcErr.Map(tt.err))
			assert.True(t, ok)
			assert.Equal(t, tt.code, st.Code())
		})
	}
	assert.NoError(t, svcErr.Map(nil))
}

func TestHTTPStatusAndMessage(t *testing.T) {
	storage := svcErr.Storage("select candidates", fmt.Errorf("dial tcp: refused"))
	assert.Equal(t, http.StatusInternalServerError, svcErr.HTTPStatus(storage))
	assert.Equal(t, "server error", svcErr.PublicMessage(storage))

	v := svcErr.Validation("toUser is required")
	assert.Equal(t, http.StatusBadRequest, svcErr.HTTPStatus(v))
	assert.Equal(t, "toUser is required", svcErr.PublicMessage(v))
	assert.True(t, svcErr.IsKind(v, svcErr.KindValidation))

	assert.Equal(t, http.StatusForbidden, svcErr.HTTPStatus(svcErr.Forbidden("user mismatch")))
	assert.Equal(t, http.StatusTooManyRequests, svcErr.HTTPStatus(svcErr.RateLimited("slow down")))
}

func TestStorageKeepsServiceErrors(t *testing.T) {
	inner := svcErr.Validation("bad")
	assert.Same(t, inner, svcErr.Storage("op", inner))
	assert.Nil(t, svcErr.Storage("op", nil))
}

func TestIsDuplicate(t *testing.T) {
	assert.True(t, svcErr.IsDuplicate(gorm.ErrDuplicatedKey))
	assert.True(t, svcErr.IsDuplicate(fmt.Errorf("x: %w", svcErr.ErrConflictRace)))
	assert.False(t, svcErr.IsDuplicate(fmt.Errorf("other")))
}
