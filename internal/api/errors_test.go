package api

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vetconnect/vetconnect-server/internal/apperrors"
)

func TestFromServiceError(t *testing.T) {
	tcases := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "invalid argument", err: apperrors.InvalidArg("bad"), wantStatus: http.StatusBadRequest},
		{name: "conflict", err: apperrors.Conflict("dup"), wantStatus: http.StatusBadRequest},
		{name: "invalid state", err: apperrors.InvalidState("not pending"), wantStatus: http.StatusBadRequest},
		{name: "forbidden", err: apperrors.Forbidden("nope"), wantStatus: http.StatusForbidden},
		{name: "not found", err: apperrors.NotFound("gone"), wantStatus: http.StatusNotFound},
		{name: "internal", err: apperrors.Internal("db", errors.New("boom")), wantStatus: http.StatusInternalServerError},
		{name: "plain error", err: errors.New("boom"), wantStatus: http.StatusInternalServerError},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			apiErr := fromServiceError(tc.err)
			assert.Equal(t, tc.wantStatus, apiErr.StatusCode)
			assert.False(t, apiErr.Success)
			assert.NotEmpty(t, apiErr.Message)
		})
	}
}

func TestFromServiceErrorHidesInternalDetail(t *testing.T) {
	apiErr := fromServiceError(apperrors.Internal("db failed", errors.New("password=hunter2")))
	assert.NotContains(t, apiErr.Message, "hunter2")
}
