package grid

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridkeeper/gridkeeper/pkg/proto"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewHTTPClient(srv.URL, "test-token")
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestHTTPClient_SendsBearerToken(t *testing.T) {
	var gotAuth string
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(proto.StatResponse{Exists: true, Kind: "object"})
	})

	_, err := c.Stat(context.Background(), "/zone/obj.bam")
	require.NoError(t, err)
	assert.Equal(t, "Bearer test-token", gotAuth)
}

func TestHTTPClient_Stat(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/stat", r.URL.Path)
		switch r.URL.Query().Get("path") {
		case "/zone/coll":
			_ = json.NewEncoder(w).Encode(proto.StatResponse{Exists: true, Kind: "collection"})
		case "/zone/obj.bam":
			_ = json.NewEncoder(w).Encode(proto.StatResponse{Exists: true, Kind: "object"})
		default:
			_ = json.NewEncoder(w).Encode(proto.StatResponse{Exists: false})
		}
	})

	kind, err := c.Stat(context.Background(), "/zone/coll")
	require.NoError(t, err)
	assert.Equal(t, KindCollection, kind)

	kind, err = c.Stat(context.Background(), "/zone/obj.bam")
	require.NoError(t, err)
	assert.Equal(t, KindDataObject, kind)

	// A missing path is an answer, not an error.
	kind, err = c.Stat(context.Background(), "/zone/absent")
	require.NoError(t, err)
	assert.Equal(t, KindNone, kind)
}

func TestHTTPClient_GetReplicas(t *testing.T) {
	created := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/replicas", r.URL.Path)
		_ = json.NewEncoder(w).Encode(proto.ReplicasResponse{
			Replicas: []proto.Replica{
				{Resource: "resc-a", Number: 0, Checksum: "abc123", Valid: true, Created: created},
				{Resource: "resc-b", Number: 1, Checksum: "", Valid: false},
			},
		})
	})

	replicas, err := c.GetReplicas(context.Background(), "/zone/obj.bam")
	require.NoError(t, err)
	require.Len(t, replicas, 2)
	assert.Equal(t, Replica{Resource: "resc-a", Number: 0, Checksum: "abc123", Valid: true, Created: created}, replicas[0])
	assert.False(t, replicas[1].Valid)
}

func TestHTTPClient_GetChecksumRecord(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(proto.MetadataResponse{
			AVUs: []proto.AVU{
				{Attribute: AttrChecksum, Value: "abc123"},
				{Attribute: "study", Value: "study-42"},
				{Attribute: AttrChecksum, Value: "def456"},
			},
		})
	})

	records, err := c.GetChecksumRecord(context.Background(), "/zone/obj.bam")
	require.NoError(t, err)
	assert.Equal(t, []string{"abc123", "def456"}, records)
}

func TestHTTPClient_PostBodies(t *testing.T) {
	var gotPath string
	var gotBody proto.CreateReplicaRequest
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	})

	err := c.CreateReplica(context.Background(), "/zone/obj.bam", "resc-b")
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/replicas/create", gotPath)
	assert.Equal(t, proto.CreateReplicaRequest{Path: "/zone/obj.bam", Resource: "resc-b"}, gotBody)
}

func TestHTTPClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"not found", http.StatusNotFound, ErrNotFound},
		{"unauthorized", http.StatusUnauthorized, ErrPermissionDenied},
		{"forbidden", http.StatusForbidden, ErrPermissionDenied},
		{"conflict", http.StatusConflict, ErrConflict},
		{"bad gateway", http.StatusBadGateway, ErrConnection},
		{"unavailable", http.StatusServiceUnavailable, ErrConnection},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_ = json.NewEncoder(w).Encode(proto.ErrorResponse{Error: tt.name})
			})

			_, err := c.GetReplicas(context.Background(), "/zone/obj.bam")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.Contains(t, err.Error(), tt.name)
		})
	}
}

func TestHTTPClient_UnreachableGateway(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // connection refused from here on

	c := NewHTTPClient(srv.URL, "test-token")
	_, err := c.GetReplicas(context.Background(), "/zone/obj.bam")
	assert.ErrorIs(t, err, ErrConnection)
}

func TestHTTPClient_UnknownErrorStatus(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusTeapot)
	})

	_, err := c.GetReplicas(context.Background(), "/zone/obj.bam")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrConnection)
}

func TestHTTPClient_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(proto.ReplicasResponse{})
	})

	_, err := c.GetReplicas(ctx, "/zone/obj.bam")
	assert.Error(t, err)
}
