package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"bookfair/internal/config"
	"bookfair/internal/http/handlers"
	applog "bookfair/internal/log"
	"bookfair/internal/repos"
)

func testConfig() config.Config {
	return config.Config{
		DBDriver:    "sqlite",
		DBDSN:       ":memory:",
		AppEnv:      "test",
		TemplateDir: "../../web/templates",
		JWTSecret:   "test-secret",
		JWTTTL:      time.Hour,
	}
}

func newTestApp(t *testing.T) (*fiber.App, *sqlx.DB) {
	t.Helper()
	cfg := testConfig()
	db, err := repos.OpenDB(cfg.DBDriver, cfg.DBDSN)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return handlers.NewApp(cfg, db), db
}

// observeLogs routes the global logger into an observer for the test.
func observeLogs(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	restore := applog.Set(zap.New(core))
	t.Cleanup(restore)
	return logs
}

func cookie(resp *http.Response, name string) string {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

// browser carries the cookies a real browser would between requests.
type browser struct {
	t    *testing.T
	app  *fiber.App
	sid  string
	csrf string
}

func newBrowser(t *testing.T, app *fiber.App) *browser {
	t.Helper()
	b := &browser{t: t, app: app}
	resp := b.get("/login")
	b.csrf = cookie(resp, "csrf_")
	require.NotEmpty(t, b.csrf, "csrf cookie")
	return b
}

// signedIn binds a session for userID straight in the store, skipping bcrypt.
func signedIn(t *testing.T, app *fiber.App, db *sqlx.DB, userID string) *browser {
	t.Helper()
	b := newBrowser(t, app)
	b.sid = "sid-" + userID
	require.NoError(t, repos.NewUserRepo(db).BindSession(context.Background(), b.sid, userID))
	return b
}

func (b *browser) do(req *http.Request) *http.Response {
	b.t.Helper()
	if b.sid != "" {
		req.AddCookie(&http.Cookie{Name: "sid", Value: b.sid})
	}
	if b.csrf != "" {
		req.AddCookie(&http.Cookie{Name: "csrf_", Value: b.csrf})
	}
	resp, err := b.app.Test(req, -1)
	require.NoError(b.t, err)
	for _, c := range resp.Cookies() {
		if c.Name == "sid" {
			b.sid = c.Value
		}
	}
	return resp
}

func (b *browser) get(path string) *http.Response {
	return b.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (b *browser) post(path string, form url.Values) *http.Response {
	if form == nil {
		form = url.Values{}
	}
	form.Set("csrf", b.csrf)
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

func body(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

// api calls the JSON API with an optional bearer token.
func api(t *testing.T, app *fiber.App, method, path, token string, in any, headers ...string) (*http.Response, map[string]any) {
	t.Helper()
	var rd io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp, out
}

func apiLogin(t *testing.T, app *fiber.App, email string) string {
	t.Helper()
	resp, out := api(t, app, http.MethodPost, "/api/login", "", map[string]string{"email": email, "password": "Passw0rd!"})
	require.Equal(t, http.StatusOK, resp.StatusCode, out)
	tok, _ := out["token"].(string)
	require.NotEmpty(t, tok)
	return tok
}
