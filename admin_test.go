package storefront

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPassword = "hemmelig"

// newSessionApp builds an App with the full middleware stack, so requests
// go through the real session cookie and CSRF checks.
func newSessionApp(t *testing.T) *App {
	t.Helper()
	dir := t.TempDir()
	a := New(SiteConfig{
		URL:           "https://shop.example.com",
		DatabasePath:  filepath.Join(dir, "test.db"),
		StaticDir:     filepath.Join(dir, "public"),
		AdminPassword: testPassword,
		SessionSecret: "0123456789abcdef0123456789abcdef",
	}, WithLogger(zerolog.Nop()), WithMetricsRegistry(prometheus.NewRegistry()))
	require.NoError(t, a.Init())
	a.setupMiddleware()
	a.setupRoutes()
	t.Cleanup(func() { a.Close() })
	return a
}

// browser keeps cookies and the CSRF token between requests from one IP.
type browser struct {
	t       *testing.T
	a       *App
	ip      string
	cookies map[string]*http.Cookie
	csrf    string
}

func newBrowser(t *testing.T, a *App, ip string) *browser {
	t.Helper()
	b := &browser{t: t, a: a, ip: ip, cookies: map[string]*http.Cookie{}}
	st := b.status()
	require.NotEmpty(t, st.CSRFToken)
	b.csrf = st.CSRFToken
	return b
}

func (b *browser) do(method, target, body string) (*httptest.ResponseRecorder, testEnvelope) {
	b.t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.RemoteAddr = b.ip + ":40000"
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if b.csrf != "" {
		req.Header.Set("X-CSRF-Token", b.csrf)
	}
	for _, c := range b.cookies {
		req.AddCookie(c)
	}
	rec := serve(b.a, req)
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 {
			delete(b.cookies, c.Name)
			continue
		}
		b.cookies[c.Name] = c
	}
	var env testEnvelope
	if strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		require.NoError(b.t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

type adminStatus struct {
	Authenticated bool   `json:"authenticated"`
	Actor         string `json:"actor"`
	CSRFToken     string `json:"csrf_token"`
}

func (b *browser) status() adminStatus {
	b.t.Helper()
	rec, env := b.do(http.MethodGet, "/admin/", "")
	require.Equal(b.t, http.StatusOK, rec.Code, rec.Body.String())
	var st adminStatus
	require.NoError(b.t, json.Unmarshal(env.Data, &st))
	return st
}

func (b *browser) login(password, name string) *httptest.ResponseRecorder {
	b.t.Helper()
	body, err := json.Marshal(map[string]string{"password": password, "name": name})
	require.NoError(b.t, err)
	rec, _ := b.do(http.MethodPost, "/admin/login/", string(body))
	return rec
}

func TestAdminLoginLocksOutAfterFailures(t *testing.T) {
	a := newSessionApp(t)
	b := newBrowser(t, a, "198.51.100.7")

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusUnauthorized, b.login("feil", "").Code, "attempt %d", i+1)
	}
	assert.Equal(t, http.StatusTooManyRequests, b.login(testPassword, "").Code)
	assert.False(t, b.status().Authenticated)

	other := newBrowser(t, a, "198.51.100.8")
	assert.Equal(t, http.StatusOK, other.login(testPassword, "").Code)
}

func TestAdminLoginRejectsBadRequests(t *testing.T) {
	a := newSessionApp(t)
	b := newBrowser(t, a, "198.51.100.9")

	assert.Equal(t, http.StatusBadRequest, b.login("", "Kari").Code)

	b.csrf = ""
	assert.Equal(t, http.StatusForbidden, b.login(testPassword, "Kari").Code)
}

func TestAdminLoginStartsEditorSession(t *testing.T) {
	a := newSessionApp(t)
	ip := "198.51.100.10"
	b := newBrowser(t, a, ip)

	assert.Equal(t, http.StatusUnauthorized, b.login("feil", "").Code)
	assert.Equal(t, http.StatusUnauthorized, b.login("feil", "").Code)
	require.Equal(t, http.StatusOK, b.login(testPassword, "Kari").Code)

	a.loginLimiter.mu.Lock()
	_, tracked := a.loginLimiter.failures[ip]
	a.loginLimiter.mu.Unlock()
	assert.False(t, tracked, "a successful login clears the failures")

	st := b.status()
	assert.True(t, st.Authenticated)
	assert.Equal(t, "Kari", st.Actor)

	rec, env := b.do(http.MethodPost, "/api/bands/forside", `{"band_type":"html","band_content":{"html":"<p>hei</p>"}}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		UpdatedBy string `json:"updated_by"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, "Kari", created.UpdatedBy)

	rec, _ = b.do(http.MethodPost, "/admin/logout/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, b.status().Authenticated)

	rec, _ = b.do(http.MethodPost, "/api/bands/forside", `{"band_type":"html","band_content":{"html":"<p>igjen</p>"}}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMetricsUseConfiguredRegistry(t *testing.T) {
	a := newSessionApp(t)
	newBrowser(t, a, "198.51.100.11")

	rec := serve(a, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "storefront_echo_requests_total")
}

func TestCustomRoutesAreRegistered(t *testing.T) {
	a := newTestApp(t, WithCustomRoutes(func(a *App) {
		a.Echo.GET("/ping/", func(c echo.Context) error {
			return Success(c, http.StatusOK, "pong")
		})
	}))

	rec, env := doJSON(t, a, http.MethodGet, "/ping/", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `"pong"`, string(env.Data))
}
