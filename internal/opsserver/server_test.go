package opsserver

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evidenceledger/ledgergateway/internal/metrics"
)

func get(t *testing.T, s *Server, target string) (int, string) {
	t.Helper()
	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, target, nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestHealth(t *testing.T) {
	ok := CheckFunc{Label: "profile", Fn: func(context.Context) error { return nil }}

	status, body := get(t, New("", "0", nil, ok), "/health")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"healthy"}`, body)

	broken := CheckFunc{Label: "wallet", Fn: func(context.Context) error { return errors.New("database is locked") }}
	status, body = get(t, New("", "0", nil, ok, broken), "/health")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.JSONEq(t, `{"status":"unhealthy","failed":{"wallet":"database is locked"}}`, body)
}

func TestMetrics(t *testing.T) {
	m := metrics.New()
	m.AuthFailure("expired")

	status, body := get(t, New("", "0", m), "/metrics")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `ledgergateway_auth_failures_total{reason="expired"} 1`)

	// no registry, no endpoint
	status, _ = get(t, New("", "0", nil), "/metrics")
	assert.Equal(t, http.StatusNotFound, status)
}
