package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"blog.local/gee"
	"blog.local/internal/platform/auth"
	"blog.local/internal/platform/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTokenService(t *testing.T) auth.TokenService {
	t.Helper()
	ts, err := auth.NewHS256Service("test-secret", "blog", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return ts
}

func whoami(ctx *gee.Context) {
	id, ok := auth.GetIdentity(ctx.Req.Context())
	if !ok {
		ctx.String(http.StatusOK, "anonymous")
		return
	}
	ctx.String(http.StatusOK, "%s:%s", id.UserID, id.Role)
}

func TestAuthRequired(t *testing.T) {
	ts := newTokenService(t)
	token, _ := ts.Sign(auth.Claims{UserID: "1", Role: "author"})

	r := gee.New()
	r.GET("/me", AuthRequired(ts), whoami)

	cases := []struct {
		name   string
		setup  func(*http.Request)
		status int
		body   string
	}{
		{"no credentials", func(*http.Request) {}, http.StatusUnauthorized, ""},
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, http.StatusOK, "1:author"},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: SessionCookie, Value: token}) }, http.StatusOK, "1:author"},
		{"bad scheme", func(r *http.Request) { r.Header.Set("Authorization", "Basic "+token) }, http.StatusUnauthorized, ""},
		{"bad token", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, http.StatusUnauthorized, ""},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/me", nil)
			c.setup(req)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != c.status {
				t.Fatalf("status=%d want %d", w.Code, c.status)
			}
			if c.body != "" && w.Body.String() != c.body {
				t.Fatalf("body=%q", w.Body.String())
			}
		})
	}
}

func TestAuthOptional(t *testing.T) {
	ts := newTokenService(t)
	r := gee.New()
	r.GET("/me", AuthOptional(ts), whoami)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer broken")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || w.Body.String() != "anonymous" {
		t.Fatalf("status=%d body=%q", w.Code, w.Body.String())
	}
}

func TestAuthPageRedirectsToLogin(t *testing.T) {
	ts := newTokenService(t)
	r := gee.New()
	r.GET("/posts/create", AuthPage(ts, "/login"), whoami)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/posts/create", nil))
	if w.Code != http.StatusSeeOther {
		t.Fatalf("status=%d", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/login?next=%2Fposts%2Fcreate" {
		t.Fatalf("location=%q", loc)
	}
}

func TestRequireRole(t *testing.T) {
	ts := newTokenService(t)
	author, _ := ts.Sign(auth.Claims{UserID: "1", Role: "author"})
	admin, _ := ts.Sign(auth.Claims{UserID: "2", Role: "admin"})

	r := gee.New()
	r.GET("/admin", AuthRequired(ts), RequireRole("admin"), whoami)
	r.GET("/write", AuthRequired(ts), RequireRole("author", "admin"), whoami)

	check := func(path, token string, want int) {
		t.Helper()
		req := httptest.NewRequest("GET", path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != want {
			t.Errorf("%s: status=%d want %d", path, w.Code, want)
		}
	}
	check("/admin", author, http.StatusForbidden)
	check("/admin", admin, http.StatusOK)
	check("/write", author, http.StatusOK)
	check("/write", admin, http.StatusOK)
}

func TestClientIP(t *testing.T) {
	cases := []struct {
		name   string
		remote string
		header map[string]string
		want   string
	}{
		{"direct", "203.0.113.9:5555", nil, "203.0.113.9"},
		{"untrusted proxy header ignored", "203.0.113.9:5555", map[string]string{"X-Forwarded-For": "1.1.1.1"}, "203.0.113.9"},
		{"trusted xff", "127.0.0.1:5555", map[string]string{"X-Forwarded-For": "198.51.100.7, 10.0.0.1"}, "198.51.100.7"},
		{"cloudflare first", "10.0.0.2:80", map[string]string{"CF-Connecting-IP": "198.51.100.8", "X-Forwarded-For": "1.1.1.1"}, "198.51.100.8"},
		{"real ip", "192.168.1.4:80", map[string]string{"X-Real-IP": "198.51.100.9"}, "198.51.100.9"},
		{"garbage header", "172.16.0.1:80", map[string]string{"X-Forwarded-For": "not-an-ip"}, "172.16.0.1"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = c.remote
			for k, v := range c.header {
				req.Header.Set(k, v)
			}
			if got := ClientIP(req); got != c.want {
				t.Fatalf("got %q want %q", got, c.want)
			}
		})
	}
}

func TestRateLimitNilLimiterPassesThrough(t *testing.T) {
	r := gee.New()
	r.GET("/", RateLimit(nil, "test", 1, time.Minute), func(ctx *gee.Context) {
		ctx.String(http.StatusOK, "ok")
	})
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d status=%d", i, w.Code)
		}
	}
}

func TestMetricsLabelsByRoutePattern(t *testing.T) {
	r := gee.New()
	r.Use(Metrics())
	r.GET("/posts/:slugId", func(ctx *gee.Context) {
		ctx.String(http.StatusOK, "%s", ctx.Param("slugId"))
	})

	cases := []struct {
		path   string
		route  string
		status string
	}{
		{"/posts/hello-go-world-abc12345", "/posts/:slugId", "200"},
		{"/posts/another-post-zzz99999", "/posts/:slugId", "200"},
		{"/wp-login.php", unmatchedRoute, "404"},
	}
	before := map[string]float64{}
	for _, c := range cases {
		before[c.route+c.status] = testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", c.route, c.status))
	}
	for _, c := range cases {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest("GET", c.path, nil))
	}

	if got := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", "/posts/:slugId", "200")) - before["/posts/:slugId200"]; got != 2 {
		t.Fatalf("post route count=%v want 2", got)
	}
	if got := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", unmatchedRoute, "404")) - before[unmatchedRoute+"404"]; got != 1 {
		t.Fatalf("unmatched count=%v want 1", got)
	}
	if got := testutil.ToFloat64(metrics.HTTPInflightRequests); got != 0 {
		t.Fatalf("inflight=%v want 0", got)
	}
}
