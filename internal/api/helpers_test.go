package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"budgetbee/internal/auth"
	"budgetbee/internal/classifier"
	"budgetbee/internal/database"
	"budgetbee/internal/logging"
)

type spyClassifier struct {
	mu    sync.Mutex
	calls [][]string
	label string
}

func (s *spyClassifier) Classify(texts []string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, append([]string(nil), texts...))
	out := make([]string, len(texts))
	for i := range out {
		out[i] = s.label
	}
	return out
}

func (s *spyClassifier) Calls() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]string(nil), s.calls...)
}

type testApp struct {
	e          *echo.Echo
	classifier *spyClassifier
	users      *database.UserRepo
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, database.Config{Path: filepath.Join(t.TempDir(), "budgetbee.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	users := database.NewUserRepo(db)
	svc, err := auth.NewService(users, bcrypt.MinCost, logging.Discard())
	require.NoError(t, err)

	spy := &spyClassifier{label: "Food"}
	h := NewHandler(Deps{
		Accounts: svc,
		Sessions: auth.NewSessionManager([]byte("test-secret"), time.Hour, auth.NewMemoryRevocationStore()),
		Limiter:  auth.NewRateLimiter(5, 15*time.Minute, 15*time.Minute),
		Model:    classifier.LoadResult{Classifier: spy, Source: "spy"},
		Logger:   logging.Discard(),
	})

	e, err := NewServer(h, ServerOptions{})
	require.NoError(t, err)

	return &testApp{e: e, classifier: spy, users: users}
}

var csrfField = regexp.MustCompile(`name="_csrf" value="([^"]+)"`)

// browser keeps cookies across requests the way a real client would.
type browser struct {
	t       *testing.T
	app     *testApp
	cookies map[string]*http.Cookie
	ip      string
	header  http.Header
}

func (a *testApp) browser(t *testing.T) *browser {
	return &browser{t: t, app: a, cookies: make(map[string]*http.Cookie), ip: "192.0.2.10"}
}

func (b *browser) do(method, target string, form url.Values) *httptest.ResponseRecorder {
	b.t.Helper()

	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.RemoteAddr = b.ip + ":40000"
	for k, v := range b.header {
		req.Header[k] = v
	}
	for _, c := range b.cookies {
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}

	rec := httptest.NewRecorder()
	b.app.e.ServeHTTP(rec, req)

	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 || c.Value == "" {
			delete(b.cookies, c.Name)
			continue
		}
		b.cookies[c.Name] = c
	}
	return rec
}

func (b *browser) get(target string) *httptest.ResponseRecorder {
	return b.do(http.MethodGet, target, nil)
}

// post submits form with the CSRF token scraped from a fresh GET of formPage.
func (b *browser) post(formPage, target string, form url.Values) *httptest.ResponseRecorder {
	b.t.Helper()
	form.Set("_csrf", b.csrfFrom(formPage))
	return b.do(http.MethodPost, target, form)
}

func (b *browser) csrfFrom(page string) string {
	b.t.Helper()
	rec := b.get(page)
	require.Equal(b.t, http.StatusOK, rec.Code, "GET %s", page)
	m := csrfField.FindStringSubmatch(rec.Body.String())
	require.Len(b.t, m, 2, "no csrf field on %s", page)
	return m[1]
}

func (b *browser) login(username, password string) *httptest.ResponseRecorder {
	b.t.Helper()
	return b.post("/login", "/login", url.Values{"username": {username}, "password": {password}})
}

func (b *browser) register(username, password string) *httptest.ResponseRecorder {
	b.t.Helper()
	return b.post("/register", "/register", url.Values{"username": {username}, "password": {password}})
}
