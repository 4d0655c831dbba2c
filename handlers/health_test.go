package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestHealth(t *testing.T) {
	g := gin.New()
	RegisterHealth(g, nil)

	w := httptest.NewRecorder()
	g.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "healthy", w.Body.String())
}

func TestReady(t *testing.T) {
	storeErr := errors.New("down")
	probes := map[string]Probe{
		"store": func(ctx context.Context) error { return storeErr },
		"oidc":  func(ctx context.Context) error { return nil },
	}
	g := gin.New()
	RegisterHealth(g, probes)

	get := func() (int, map[string]interface{}) {
		w := httptest.NewRecorder()
		g.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		return w.Code, body
	}

	code, body := get()
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, "not_ready", body["status"])
	require.Equal(t, map[string]interface{}{"store": false, "oidc": true}, body["deps"])

	storeErr = nil
	code, body = get()
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "ready", body["status"])
}
