package service

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-testfloat/metrics"
)

func get(t *testing.T, url string, header http.Header) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestServiceServesHealthzAndMetrics(t *testing.T) {
	svc := New(Config{MetricsAddr: "127.0.0.1:0", HealthzAddr: "127.0.0.1:0"}, log.NewLogger(log.DiscardHandler()))
	require.NoError(t, svc.Start())
	defer func() { require.NoError(t, svc.Shutdown(context.Background())) }()

	metrics.RecordCase("f32_add", metrics.ResultPass, 0)

	resp := get(t, "http://"+svc.HealthzAddr().String()+"/healthz", http.Header{"Origin": {"http://example.com"}})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "OK", string(body))

	resp = get(t, "http://"+svc.MetricsAddr().String()+"/metrics", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err = io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "testfloat_cases_total")
}

func TestServiceStartFailsOnBusyAddress(t *testing.T) {
	first := New(Config{MetricsAddr: "127.0.0.1:0", HealthzAddr: "127.0.0.1:0"}, log.NewLogger(log.DiscardHandler()))
	require.NoError(t, first.Start())
	defer func() { _ = first.Shutdown(context.Background()) }()

	second := New(Config{MetricsAddr: first.MetricsAddr().String(), HealthzAddr: "127.0.0.1:0"}, log.NewLogger(log.DiscardHandler()))
	err := second.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to listen for metrics")
}
