// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wardstone Contributors

package observability

import (
	"context"
	"io"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTestServer(t *testing.T, ready ReadinessChecker) *Server {
	t.Helper()
	s := NewServer("127.0.0.1:0", ready)
	_, err := s.Start()
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.Stop(ctx)
	})
	return s
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url) //nolint:gosec // test-local address
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestServer_Liveness(t *testing.T) {
	s := startTestServer(t, nil)

	code, body := get(t, "http://"+s.Addr()+"/healthz/liveness")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok\n", body)
}

func TestServer_ReadinessFollowsChecker(t *testing.T) {
	var ready atomic.Bool
	s := startTestServer(t, ready.Load)

	code, _ := get(t, "http://"+s.Addr()+"/healthz/readiness")
	assert.Equal(t, http.StatusServiceUnavailable, code)

	ready.Store(true)
	code, _ = get(t, "http://"+s.Addr()+"/healthz/readiness")
	assert.Equal(t, http.StatusOK, code)
}

func TestServer_MetricsExposesLoginCounters(t *testing.T) {
	s := startTestServer(t, nil)

	s.Metrics().LoginsTotal.WithLabelValues(LoginOutcomeSuccess).Inc()
	s.Metrics().PlayersOnline.Set(3)

	code, body := get(t, "http://"+s.Addr()+"/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `wardstone_logins_total{outcome="success"} 1`)
	assert.Contains(t, body, "wardstone_players_online 3")
}

func TestServer_DoubleStartFails(t *testing.T) {
	s := startTestServer(t, nil)

	_, err := s.Start()
	assert.Error(t, err)
}
