package core

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payhook/internal/types"
)

func TestResultBuilders(t *testing.T) {
	tests := []struct {
		name   string
		result Result
		status int
		body   string
	}{
		{"bad request", BadRequest("Request body cannot be empty"), 400, `{"code":400,"message":"Request body cannot be empty"}`},
		{"unauthorized", Unauthorized("Invalid signature"), 401, `{"code":401,"message":"Invalid signature"}`},
		{"server error", ServerError("Internal Server Error"), 500, `{"code":500,"message":"Internal Server Error"}`},
		{"success with nil data", Success("Webhook received and queued successfully", nil), 200, `{"code":200,"message":"Webhook received and queued successfully","data":null}`},
		{"success with data", Success("ok", map[string]int{"count": 2}), 200, `{"code":200,"message":"ok","data":{"count":2}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := tt.result.APIGateway()
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, "application/json", resp.Headers["Content-Type"])
			assert.JSONEq(t, tt.body, resp.Body)
			assert.Equal(t, tt.status == 200, tt.result.OK())
		})
	}
}

func TestErrorEnvelopeOmitsData(t *testing.T) {
	resp := BadRequest("Missing verification-signature header").APIGateway()
	assert.NotContains(t, resp.Body, `"data"`)
}

func TestFromError(t *testing.T) {
	t.Run("app error keeps message and status", func(t *testing.T) {
		err := fmt.Errorf("ingress: %w", types.NewAppError(types.ErrCodeMissingSignature, "Missing verification-signature header", nil))
		res := FromError(err)
		assert.Equal(t, http.StatusBadRequest, res.StatusCode)
		assert.Equal(t, "Missing verification-signature header", res.Body.Message)
	})

	t.Run("unauthorized", func(t *testing.T) {
		res := FromError(types.NewAppError(types.ErrCodeInvalidSignature, "Invalid signature", nil))
		assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	})

	t.Run("upstream failure is masked", func(t *testing.T) {
		res := FromError(types.NewAppError(types.ErrCodeUpstreamQueue, "queue send failed: AccessDenied", nil))
		assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
		assert.Equal(t, MsgInternalServerError, res.Body.Message)
	})

	t.Run("plain error is masked", func(t *testing.T) {
		res := FromError(errors.New("secret internals"))
		assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
		assert.Equal(t, MsgInternalServerError, res.Body.Message)
	})
}

func TestResultWrite(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/webhook", nil)
	r = r.WithContext(types.WithRequestID(r.Context(), "req-123"))

	Success("Webhook received and queued successfully", nil).Write(w, r)

	resp := w.Result()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, "req-123", resp.Header.Get("X-Request-Id"))
	assert.JSONEq(t, `{"code":200,"message":"Webhook received and queued successfully","data":null}`, w.Body.String())
}

func TestJSON_MarshalFailure(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	JSON(w, r, http.StatusOK, make(chan int))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"code":500,"message":"Internal Server Error"}`, w.Body.String())
}
