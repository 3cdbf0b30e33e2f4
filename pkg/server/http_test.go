package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/go-cmp/cmp"

	"github.com/litka-chat/litka/pkg/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func doRequest(t *testing.T, h http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.RemoteAddr = "192.0.2.1:1234"
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestHealthAndStats(t *testing.T) {
	srv, _ := newTestServer(t)
	alice := joinAs(t, srv, "alice")
	joinAs(t, srv, "alice")
	say(t, srv, alice, "one")
	say(t, srv, alice, "two")
	h := srv.Handler()

	rec := doRequest(t, h, http.MethodGet, "/", "", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "Litka Chat Server is running" {
		t.Errorf("root: %d %q", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, h, http.MethodGet, "/healthz", "", nil)
	health := decodeBody(t, rec)
	if rec.Code != http.StatusOK || health["status"] != "ok" {
		t.Errorf("healthz: %d %s", rec.Code, rec.Body.String())
	}
	build, _ := health["build"].(map[string]any)
	if build["version"] != "dev" || build["goVersion"] != runtime.Version() {
		t.Errorf("healthz build: got %v", health["build"])
	}

	rec = doRequest(t, h, http.MethodGet, "/stats", "", nil)
	want := map[string]any{"online": float64(2), "users": float64(1), "messages": float64(2), "accounts": float64(1)}
	if diff := cmp.Diff(want, decodeBody(t, rec)); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}
}

func TestAdminRank(t *testing.T) {
	type tcase struct {
		secret     string
		header     string
		body       string
		wantStatus int
		wantRank   string
	}

	tcases := map[string]tcase{
		"assign": {
			secret:     "s3cret",
			header:     "s3cret",
			body:       `{"username":"bob","rank":" VIP "}`,
			wantStatus: http.StatusOK,
			wantRank:   "VIP",
		},
		"clear": {
			secret:     "s3cret",
			header:     "s3cret",
			body:       `{"username":"bob","rank":""}`,
			wantStatus: http.StatusOK,
		},
		"disabled": {
			header:     "anything",
			body:       `{"username":"bob","rank":"VIP"}`,
			wantStatus: http.StatusServiceUnavailable,
		},
		"wrong_secret": {
			secret:     "s3cret",
			header:     "guess",
			body:       `{"username":"bob","rank":"VIP"}`,
			wantStatus: http.StatusUnauthorized,
		},
		"missing_username": {
			secret:     "s3cret",
			header:     "s3cret",
			body:       `{"rank":"VIP"}`,
			wantStatus: http.StatusBadRequest,
		},
		"bad_json": {
			secret:     "s3cret",
			header:     "s3cret",
			body:       `{"username":`,
			wantStatus: http.StatusBadRequest,
		},
		"unknown_user": {
			secret:     "s3cret",
			header:     "s3cret",
			body:       `{"username":"ghost","rank":"VIP"}`,
			wantStatus: http.StatusNotFound,
		},
	}

	fn := func(tc tcase) func(*testing.T) {
		return func(t *testing.T) {
			cfg := testConfig()
			cfg.AdminSecret = tc.secret
			srv, _ := newTestServerWith(t, cfg, store.NewMemory())
			bob := joinAs(t, srv, "bob")
			srv.Profiles().SetSpecialRank("bob", "Old")

			rec := doRequest(t, srv.Handler(), http.MethodPost, "/admin/rank", tc.body,
				map[string]string{AdminSecretHeader: tc.header, "Content-Type": "application/json"})
			if rec.Code != tc.wantStatus {
				t.Fatalf("status: want %d, got %d (%s)", tc.wantStatus, rec.Code, rec.Body.String())
			}
			if tc.wantStatus != http.StatusOK {
				if srv.Profiles().SpecialRank("bob") != "Old" {
					t.Errorf("rank must not change on failure")
				}
				if len(bob.events(t)) != 0 {
					t.Errorf("no profile push on failure")
				}
				return
			}
			if got := srv.Profiles().SpecialRank("bob"); got != tc.wantRank {
				t.Errorf("rank: want %q, got %q", tc.wantRank, got)
			}
			pushed := bob.ofType(t, "profile")
			if len(pushed) != 1 || pushed[0]["specialRank"] != tc.wantRank {
				t.Errorf("profile push: got %v", pushed)
			}
		}
	}

	for name, tc := range tcases {
		t.Run(name, fn(tc))
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	alice := joinAs(t, srv, "alice")
	say(t, srv, alice, "hello")
	h := srv.Handler()

	doRequest(t, h, http.MethodGet, "/healthz", "", nil)
	rec := doRequest(t, h, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics: status %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"litka_chat_messages_total 1",
		"litka_sessions_online 1",
		`litka_http_requests_total{method="GET",path="/healthz",status="200"} 1`,
		"go_goroutines",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestHTTPRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.HTTPPerSecond = 0.001
	cfg.RateLimit.HTTPBurst = 2
	srv, _ := newTestServerWith(t, cfg, store.NewMemory())
	h := srv.Handler()

	for i := 0; i < 2; i++ {
		if rec := doRequest(t, h, http.MethodGet, "/healthz", "", nil); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status %d", i, rec.Code)
		}
	}
	rec := doRequest(t, h, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("want 429, got %d", rec.Code)
	}
	if decodeBody(t, rec)["error"] != "too many requests" {
		t.Errorf("body: %s", rec.Body.String())
	}
	// Buckets are per route.
	if rec := doRequest(t, h, http.MethodGet, "/stats", "", nil); rec.Code != http.StatusOK {
		t.Errorf("other route: status %d", rec.Code)
	}
}
