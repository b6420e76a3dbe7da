package mock

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

// ServerConfig shapes the mock gateway's behavior. The failure knobs exist
// so every scenario can be rehearsed locally: FailureRate injects random
// errors, CapacityPerSecond makes the target break above a known rate.
type ServerConfig struct {
	Port   int
	APIKey string // empty disables auth

	MinLatency time.Duration
	MaxLatency time.Duration

	// FailureRate is the probability in [0,1] that a generation request
	// fails with a 500.
	FailureRate float64
	// CapacityPerSecond rejects generation requests with a 503 once more
	// than this many arrive within one second. Zero means unlimited.
	CapacityPerSecond int
	// Degraded makes /health report "degraded" instead of "healthy".
	Degraded bool
}

type generateRequest struct {
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size"`
	ResponseFormat string `json:"response_format"`
	Backend        string `json:"backend,omitempty"`
}

type generatedImage struct {
	B64JSON string `json:"b64_json"`
}

type generateResponse struct {
	Images []generatedImage `json:"images"`
	Model  string           `json:"model"`
}

type server struct {
	cfg ServerConfig

	// Admission window for the capacity limit: requests seen within the
	// current unix second.
	windowSec   atomic.Int64
	windowCount atomic.Int64
}

// Handler builds the gateway routes; exposed separately from Start so tests
// can mount it on an httptest server.
func Handler(cfg ServerConfig) http.Handler {
	s := &server{cfg: cfg}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/images/generations", s.handleGenerate)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/v1/backends", s.handleBackends)
	return mux
}

// Start runs the mock gateway in the background. It returns immediately;
// the caller keeps the process alive.
func Start(cfg ServerConfig) {
	addr := fmt.Sprintf(":%d", cfg.Port)
	fmt.Printf("🎨 Mock image gateway on http://localhost%s\n", addr)
	fmt.Println("   POST /v1/images/generations · GET /health · GET /v1/backends")

	srv := &http.Server{Addr: addr, Handler: Handler(cfg)}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("mock gateway failed: %v\n", err)
		}
	}()
}

func (s *server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.cfg.APIKey != "" {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != s.cfg.APIKey {
			http.Error(w, `{"error":"invalid api key"}`, http.StatusUnauthorized)
			return
		}
	}

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Prompt == "" {
		http.Error(w, `{"error":"bad request"}`, http.StatusBadRequest)
		return
	}

	if s.overCapacity() {
		http.Error(w, `{"error":"backend saturated"}`, http.StatusServiceUnavailable)
		return
	}

	s.sleepJitter()

	if s.cfg.FailureRate > 0 && rand.Float64() < s.cfg.FailureRate {
		http.Error(w, `{"error":"generation failed"}`, http.StatusInternalServerError)
		return
	}

	n := req.N
	if n <= 0 {
		n = 1
	}
	resp := generateResponse{Model: req.Backend}
	if resp.Model == "" {
		resp.Model = "stable-diffusion"
	}
	for i := 0; i < n; i++ {
		resp.Images = append(resp.Images, generatedImage{
			B64JSON: base64.StdEncoding.EncodeToString([]byte("pixload-mock-image")),
		})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	if s.cfg.Degraded {
		status = "degraded"
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}

func (s *server) handleBackends(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode([]map[string]any{
		{"name": "stable-diffusion", "healthy": true, "enabled": true},
		{"name": "flux", "healthy": !s.cfg.Degraded, "enabled": true},
	})
}

func (s *server) overCapacity() bool {
	if s.cfg.CapacityPerSecond <= 0 {
		return false
	}
	now := time.Now().Unix()
	if s.windowSec.Swap(now) != now {
		s.windowCount.Store(0)
	}
	return s.windowCount.Add(1) > int64(s.cfg.CapacityPerSecond)
}

func (s *server) sleepJitter() {
	min, max := s.cfg.MinLatency, s.cfg.MaxLatency
	if max <= 0 {
		return
	}
	d := min
	if max > min {
		d = min + time.Duration(rand.Int63n(int64(max-min)))
	}
	time.Sleep(d)
}
