package graphiti

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdplatform/graphload/graphmem"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(NewConfig(WithBaseURL(srv.URL)))
	require.NoError(t, err)
	return client
}

func TestClient_Submit(t *testing.T) {
	var received submitPayload
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/episodes", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"message":"queued"}`))
	})

	err := client.Submit(context.Background(), graphmem.SubmitRequest{
		Name:              "gene_profile_SNCA",
		Body:              `{"gene":"SNCA"}`,
		Source:            "json",
		SourceDescription: "gene profile export",
		GroupID:           "pd_target_discovery",
	})
	require.NoError(t, err)
	assert.Equal(t, "gene_profile_SNCA", received.Name)
	assert.Equal(t, `{"gene":"SNCA"}`, received.EpisodeBody)
	assert.Equal(t, "pd_target_discovery", received.GroupID)
}

func TestClient_Submit_RateLimitIsTransient(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"detail":"rate limit exceeded"}`))
	})

	err := client.Submit(context.Background(), graphmem.SubmitRequest{Name: "ep"})
	require.Error(t, err)
	assert.True(t, graphmem.IsTransient(err))
	assert.Contains(t, err.Error(), "rate limit exceeded")
}

func TestClient_Submit_ServerFaultIsTransient(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	err := client.Submit(context.Background(), graphmem.SubmitRequest{Name: "ep"})
	require.Error(t, err)
	assert.True(t, graphmem.IsTransient(err))
}

func TestClient_Submit_ValidationRejectIsPermanent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"detail":"episode_body is not valid JSON"}`))
	})

	err := client.Submit(context.Background(), graphmem.SubmitRequest{Name: "ep"})
	require.Error(t, err)
	assert.True(t, graphmem.IsPermanent(err))
	assert.Contains(t, err.Error(), "episode_body is not valid JSON")
}

func TestClient_Submit_UnreachableIsTransient(t *testing.T) {
	client, err := NewClient(NewConfig(WithBaseURL("http://127.0.0.1:1")))
	require.NoError(t, err)

	err = client.Submit(context.Background(), graphmem.SubmitRequest{Name: "ep"})
	require.Error(t, err)
	assert.True(t, graphmem.IsTransient(err))
}

func TestClient_SubjectExists(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/subjects/SNCA", r.URL.Path)
		require.Equal(t, "pd_target_discovery", r.URL.Query().Get("group_id"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"exists":true}`))
	})

	exists, err := client.SubjectExists(context.Background(), "pd_target_discovery", "SNCA")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestClient_SubjectExists_NotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	exists, err := client.SubjectExists(context.Background(), "pd_target_discovery", "LRRK2")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestClient_Counts(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/stats", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"entity_count":1204,"edge_count":5817}`))
	})

	counts, err := client.Counts(context.Background(), "pd_target_discovery")
	require.NoError(t, err)
	assert.Equal(t, int64(1204), counts.Entities)
	assert.Equal(t, int64(5817), counts.Edges)
}

func TestConfig_Validate(t *testing.T) {
	cfg := NewConfig(WithBaseURL(""))
	require.Error(t, cfg.Validate())

	cfg = NewConfig(WithBaseURL("http://localhost:8093/"))
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "http://localhost:8093", cfg.BaseURL)

	cfg = NewConfig(WithRequestTimeout(0))
	require.Error(t, cfg.Validate())
}
