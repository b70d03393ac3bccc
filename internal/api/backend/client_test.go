package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langhaul/roadlog/internal/models"
)

func TestSubmitLogsSuccess(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]json.RawMessage

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "secret-token", time.Second)
	err := client.SubmitLogs(context.Background(), "dev-1", []json.RawMessage{
		json.RawMessage(`{"id":"log-1"}`),
	})

	require.NoError(t, err)
	assert.Equal(t, "/v1/logs", gotPath)
	assert.Equal(t, "Bearer secret-token", gotAuth)
	assert.JSONEq(t, `"dev-1"`, string(gotBody["device_id"]))
	assert.JSONEq(t, `[{"id":"log-1"}]`, string(gotBody["logs"]))
}

func TestSubmitEmptyBatchEncodesArray(t *testing.T) {
	var gotBody map[string]json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "t", time.Second)
	require.NoError(t, client.SubmitLocations(context.Background(), "dev-1", nil))

	// 空批次编码为 []，不是 null
	assert.JSONEq(t, `[]`, string(gotBody["locations"]))
}

func TestSubmitUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "expired", time.Second)
	err := client.SubmitEvents(context.Background(), "dev-1", nil)

	var authErr *models.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusUnauthorized, authErr.StatusCode)
}

func TestSubmitForbidden(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "t", time.Second)
	err := client.SubmitDvirs(context.Background(), "dev-1", nil)

	var authErr *models.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusForbidden, authErr.StatusCode)
}

func TestSubmitServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "internal", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "t", time.Second)
	err := client.SubmitLogs(context.Background(), "dev-1", nil)

	var netErr *models.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, "/v1/logs", netErr.Op)
}

func TestSubmitTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // 立即关闭，连接必然失败

	client := NewClient(srv.URL, "t", time.Second)
	err := client.SubmitLocations(context.Background(), "dev-1", nil)

	var netErr *models.NetworkError
	require.ErrorAs(t, err, &netErr)
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		assert.Equal(t, "/v1/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "t", time.Second)
	assert.True(t, client.Ping(context.Background()))
}

func TestPingServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "t", time.Second)
	assert.False(t, client.Ping(context.Background()))
}

func TestPingUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	client := NewClient(srv.URL, "t", time.Second)
	assert.False(t, client.Ping(context.Background()))
}
