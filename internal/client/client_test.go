package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pixload/internal/payload"
)

func testPayload() payload.Payload {
	return payload.Payload{Prompt: "a red balloon", Size: "512x512"}
}

func TestGenerateSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/images/generations", r.URL.Path)
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req GenerateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "a red balloon", req.Prompt)
		assert.Equal(t, 1, req.N)

		json.NewEncoder(w).Encode(GenerateResponse{
			Images: []GeneratedImage{{B64JSON: "aGVsbG8="}},
		})
	}))
	defer srv.Close()

	d := New(srv.URL, "secret", 5*time.Second, false, nil)
	out := d.Generate(context.Background(), testPayload())

	assert.True(t, out.Success)
	assert.Equal(t, http.StatusOK, out.Status)
	assert.Empty(t, out.FailureReason)
	assert.Greater(t, out.Duration, time.Duration(0))
}

func TestGenerateFailClosed(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "bad status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("not json at all"))
			},
		},
		{
			name: "empty image list",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(GenerateResponse{})
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			d := New(srv.URL, "secret", 5*time.Second, false, nil)
			out := d.Generate(context.Background(), testPayload())

			assert.False(t, out.Success)
			assert.NotEmpty(t, out.FailureReason)
			assert.Greater(t, out.Duration, time.Duration(0))
		})
	}
}

// A hung target must produce a failed outcome within the timeout bound, not
// a stuck worker.
func TestGenerateTimeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	d := New(srv.URL, "secret", 100*time.Millisecond, false, nil)

	start := time.Now()
	out := d.Generate(context.Background(), testPayload())

	assert.False(t, out.Success)
	assert.NotEmpty(t, out.FailureReason)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestCheckHealth(t *testing.T) {
	cases := []struct {
		status  string
		httpOK  bool
		wantErr bool
	}{
		{"healthy", true, false},
		{"degraded", true, false},
		{"unhealthy", true, true},
		{"healthy", false, true},
	}

	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/health", r.URL.Path)
			if !tc.httpOK {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			json.NewEncoder(w).Encode(map[string]string{"status": tc.status})
		}))

		d := New(srv.URL, "secret", time.Second, false, nil)
		err := d.CheckHealth(context.Background())
		if tc.wantErr {
			assert.Error(t, err)
		} else {
			assert.NoError(t, err)
		}
		srv.Close()
	}
}

func TestListBackends(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/backends", r.URL.Path)
		json.NewEncoder(w).Encode([]BackendInfo{
			{Name: "stable-diffusion", Healthy: true, Enabled: true},
			{Name: "flux", Healthy: false, Enabled: true},
		})
	}))
	defer srv.Close()

	d := New(srv.URL, "secret", time.Second, false, nil)
	backends, err := d.ListBackends(context.Background())
	require.NoError(t, err)
	require.Len(t, backends, 2)
	assert.Equal(t, "stable-diffusion", backends[0].Name)
	assert.True(t, backends[0].Healthy)
}
