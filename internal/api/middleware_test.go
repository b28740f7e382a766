package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func get(h http.Handler, target, remoteAddr string, hdr map[string]string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", target, nil)
	if remoteAddr != "" {
		req.RemoteAddr = remoteAddr
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	h.ServeHTTP(rec, req)
	return rec
}

var passthrough = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestRequestID(t *testing.T) {
	t.Run("generates_id_when_missing", func(t *testing.T) {
		rec := get(RequestID(passthrough), "/", "", nil)
		if id := rec.Header().Get("X-Request-ID"); len(id) != 16 {
			t.Errorf("want 16-char hex id, got %q", id)
		}
	})

	t.Run("preserves_provided_id", func(t *testing.T) {
		rec := get(RequestID(passthrough), "/", "", map[string]string{"X-Request-ID": "req-42"})
		if id := rec.Header().Get("X-Request-ID"); id != "req-42" {
			t.Errorf("want req-42, got %q", id)
		}
	})
}

func TestCORSWithOrigins(t *testing.T) {
	allow := CORSWithOrigins([]string{"https://studio.example.com/"})

	t.Run("empty_list_allows_any_origin", func(t *testing.T) {
		rec := get(CORSWithOrigins(nil)(passthrough), "/", "", nil)
		if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
			t.Error("want wildcard allow-origin")
		}
	})

	t.Run("matching_origin_is_echoed", func(t *testing.T) {
		// Configured with a trailing slash; the match still works because
		// origins are normalized.
		rec := get(allow(passthrough), "/", "", map[string]string{"Origin": "https://studio.example.com"})
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://studio.example.com" {
			t.Errorf("want origin echo, got %q", got)
		}
		if rec.Header().Get("Vary") != "Origin" {
			t.Error("want Vary: Origin")
		}
	})

	t.Run("unknown_origin_served_without_cors", func(t *testing.T) {
		rec := get(allow(passthrough), "/", "", map[string]string{"Origin": "https://other.example.com"})
		if rec.Header().Get("Access-Control-Allow-Origin") != "" {
			t.Error("unknown origin must not get CORS headers")
		}
		if rec.Code != http.StatusOK {
			t.Errorf("request itself should be served, got %d", rec.Code)
		}
	})

	t.Run("unknown_origin_preflight_refused", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("OPTIONS", "/", nil)
		req.Header.Set("Origin", "https://other.example.com")
		allow(passthrough).ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("want 403 for disallowed preflight, got %d", rec.Code)
		}
	})

	t.Run("preflight_short_circuits", func(t *testing.T) {
		reached := false
		inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { reached = true })
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("OPTIONS", "/", nil)
		CORSWithOrigins(nil)(inner).ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Errorf("want 204, got %d", rec.Code)
		}
		if reached {
			t.Error("OPTIONS must not reach the inner handler")
		}
	})
}

func TestRateLimiter(t *testing.T) {
	t.Run("burst_then_429_with_retry_after", func(t *testing.T) {
		limited := RateLimiter(1, 2)(passthrough)
		for i := 0; i < 2; i++ {
			if rec := get(limited, "/", "203.0.113.5:4000", nil); rec.Code != http.StatusOK {
				t.Fatalf("request %d inside burst: want 200, got %d", i, rec.Code)
			}
		}
		rec := get(limited, "/", "203.0.113.5:4000", nil)
		if rec.Code != http.StatusTooManyRequests {
			t.Fatalf("want 429 past burst, got %d", rec.Code)
		}
		if rec.Header().Get("Retry-After") != "1" {
			t.Error("want Retry-After: 1")
		}
	})

	t.Run("buckets_are_per_ip", func(t *testing.T) {
		limited := RateLimiter(1, 1)(passthrough)
		get(limited, "/", "203.0.113.9:4000", nil)
		if rec := get(limited, "/", "203.0.113.9:4000", nil); rec.Code != http.StatusTooManyRequests {
			t.Errorf("same ip again: want 429, got %d", rec.Code)
		}
		if rec := get(limited, "/", "203.0.113.10:4000", nil); rec.Code != http.StatusOK {
			t.Errorf("fresh ip: want 200, got %d", rec.Code)
		}
	})
}

func TestBearerAuth(t *testing.T) {
	auth := BearerAuth("tok-abc")

	cases := []struct {
		name   string
		target string
		header string
		want   int
	}{
		{"valid_header", "/", "Bearer tok-abc", http.StatusOK},
		{"wrong_token", "/", "Bearer nope", http.StatusUnauthorized},
		{"missing_credentials", "/", "", http.StatusUnauthorized},
		{"basic_scheme_rejected", "/", "Basic dG9rLWFiYw==", http.StatusUnauthorized},
		{"query_token_accepted", "/?token=tok-abc", "", http.StatusOK},
		{"query_token_wrong", "/?token=nope", "", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			hdr := map[string]string{}
			if tc.header != "" {
				hdr["Authorization"] = tc.header
			}
			rec := get(auth(passthrough), tc.target, "", hdr)
			if rec.Code != tc.want {
				t.Errorf("want %d, got %d", tc.want, rec.Code)
			}
		})
	}

	t.Run("no_token_configured_disables_auth", func(t *testing.T) {
		rec := get(BearerAuth("")(passthrough), "/", "", nil)
		if rec.Code != http.StatusOK {
			t.Errorf("want 200, got %d", rec.Code)
		}
	})
}

func TestRecoverer(t *testing.T) {
	t.Run("passes_through", func(t *testing.T) {
		if rec := get(Recoverer(passthrough), "/", "", nil); rec.Code != http.StatusOK {
			t.Errorf("want 200, got %d", rec.Code)
		}
	})

	t.Run("panic_becomes_500_json", func(t *testing.T) {
		boom := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		})
		rec := get(Recoverer(boom), "/", "", nil)
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("want 500, got %d", rec.Code)
		}
		var body map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("body is not JSON: %v", err)
		}
		if body["error"] != "internal server error" {
			t.Errorf("unexpected body: %v", body)
		}
	})
}
