package httpresponse_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errors2 "live_analysis/internal/errors"
	"live_analysis/internal/httpresponse"
)

func TestWriteResponseWithStatus(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	httpresponse.WriteResponseWithStatus(rec, http.StatusCreated, map[string]int{"a": 1})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"Status":201,"Body":{"a":1}}`, rec.Body.String())
}

func TestWriteDomainError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("%w: missing model", errors2.ErrConfigValidation), http.StatusBadRequest},
		{errors2.ErrEngineAlreadyRunning, http.StatusConflict},
		{fmt.Errorf("start: %w", errors2.ErrStartFailure), http.StatusBadGateway},
		{errors2.ErrAnalysisNotFound, http.StatusNotFound},
		{errors2.ErrInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		httpresponse.WriteDomainError(rec, tt.err)
		assert.Equal(t, tt.status, rec.Code, tt.err.Error())

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.EqualValues(t, tt.status, body["Status"])
	}
}
