// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package statusapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/emiago/plugcall"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticStatus plugcall.Status

func (s staticStatus) Status() plugcall.Status {
	return plugcall.Status(s)
}

func TestStatusAPI(t *testing.T) {
	gin.SetMode(gin.TestMode)
	src := staticStatus{
		State:       plugcall.StateTimed,
		SessionID:   "sess-1",
		CallID:      "call-1",
		OutletOn:    true,
		Duration:    120,
		Remaining:   42,
		CallsServed: 3,
		UpdatedAt:   time.Unix(1700000000, 0).UTC(),
	}
	h := NewServer(src, zerolog.Nop()).Handler()

	t.Run("Healthz", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	})

	t.Run("Status", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "timed", body["state"])
		assert.Equal(t, "call-1", body["call_id"])
		assert.Equal(t, true, body["outlet_on"])
		assert.Equal(t, float64(42), body["remaining_seconds"])
		assert.Equal(t, float64(3), body["calls_served"])
		assert.NotContains(t, body, "last_invalid_code")
	})

	t.Run("NotFound", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/outlet/on", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
