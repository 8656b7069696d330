package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsbernar/proxy-auth/internal/logging"
	"github.com/tsbernar/proxy-auth/internal/services"
	"github.com/tsbernar/proxy-auth/internal/session"
	"github.com/tsbernar/proxy-auth/internal/store"
	"github.com/tsbernar/proxy-auth/types"
	"golang.org/x/crypto/bcrypt"
)

type memoryRepo struct {
	mu     sync.Mutex
	nextID int
	users  map[int]types.User
}

func (m *memoryRepo) GetByID(_ context.Context, id int) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user, ok := m.users[id]; ok {
		return user, nil
	}
	return types.User{}, store.ErrNotFound
}

func (m *memoryRepo) GetByUsername(_ context.Context, username string) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.Username == username {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (m *memoryRepo) List(_ context.Context) ([]types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	users := make([]types.User, 0, len(m.users))
	for _, user := range m.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (m *memoryRepo) Create(_ context.Context, user types.User) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Username == user.Username {
			return types.User{}, store.ErrDuplicateUsername
		}
	}
	m.nextID++
	user.ID = m.nextID
	user.CreatedAt = time.Now().UTC()
	m.users[user.ID] = user
	return user, nil
}

func (m *memoryRepo) Delete(_ context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *memoryRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users)
}

type testEnv struct {
	server *httptest.Server
	users  *services.UserService
	repo   *memoryRepo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := logging.Discard()
	repo := &memoryRepo{users: make(map[int]types.User)}
	users := services.NewUserService(repo, services.WithHashCost(bcrypt.MinCost), services.WithLogger(logger))
	codec := session.NewCodec("test-secret", session.Options{CookieName: "proxy_session", MaxAge: time.Hour})

	requireLogin := RequireLogin(codec, logger)
	r := chi.NewRouter()
	r.Use(codec.Middleware)
	AuthRouter(r, users, codec, logger)
	r.With(requireLogin).Get("/", Home)
	r.Route("/admin", func(r chi.Router) {
		AdminRouter(r, users, codec, logger, requireLogin)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &testEnv{server: srv, users: users, repo: repo}
}

func (e *testEnv) mustCreate(t *testing.T, username, password string, isAdmin bool) types.User {
	t.Helper()
	user, err := e.users.Create(context.Background(), username, password, isAdmin)
	require.NoError(t, err)
	return user
}

type browser struct {
	t      *testing.T
	base   string
	client *http.Client
}

func (e *testEnv) newBrowser(t *testing.T) *browser {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &browser{
		t:    t,
		base: e.server.URL,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

type response struct {
	status   int
	location string
	header   http.Header
	body     string
}

func (b *browser) do(req *http.Request) response {
	b.t.Helper()
	resp, err := b.client.Do(req)
	require.NoError(b.t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(b.t, err)
	return response{
		status:   resp.StatusCode,
		location: resp.Header.Get("Location"),
		header:   resp.Header,
		body:     string(raw),
	}
}

func (b *browser) get(path string) response {
	b.t.Helper()
	req, err := http.NewRequest(http.MethodGet, b.base+path, nil)
	require.NoError(b.t, err)
	return b.do(req)
}

func (b *browser) post(path string, form url.Values) response {
	b.t.Helper()
	req, err := http.NewRequest(http.MethodPost, b.base+path, strings.NewReader(form.Encode()))
	require.NoError(b.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

func (b *browser) login(username, password string) response {
	b.t.Helper()
	return b.post("/login", url.Values{"username": {username}, "password": {password}})
}

func TestLogin_SuccessEstablishesSession(t *testing.T) {
	env := newTestEnv(t)
	env.mustCreate(t, "bob", "secret", true)
	b := env.newBrowser(t)

	assert.Equal(t, http.StatusUnauthorized, b.get("/auth").status)

	resp := b.login("bob", "secret")
	assert.Equal(t, http.StatusSeeOther, resp.status)
	assert.Equal(t, "/admin/", resp.location)

	check := b.get("/auth")
	assert.Equal(t, http.StatusOK, check.status)
	assert.Equal(t, "authorized", check.body)
	assert.Equal(t, "bob", check.header.Get(AuthUserHeader))

	page := b.get("/admin/")
	assert.Equal(t, http.StatusOK, page.status)
	assert.Contains(t, page.body, "You were logged in")
	assert.Contains(t, page.body, "Signed in as <strong>bob</strong>")

	// Flashes are shown once.
	assert.NotContains(t, b.get("/admin/").body, "You were logged in")
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	env := newTestEnv(t)
	env.mustCreate(t, "alice", "pw123", false)

	wrongPassword := env.newBrowser(t).login("alice", "nope")
	unknownUser := env.newBrowser(t).login("mallory", "pw123")

	assert.Equal(t, http.StatusOK, wrongPassword.status)
	assert.Equal(t, wrongPassword.status, unknownUser.status)
	assert.Contains(t, wrongPassword.body, "Invalid username or password")
	assert.Equal(t, wrongPassword.body, unknownUser.body)
}

func TestLogin_FailureLeavesSessionAnonymous(t *testing.T) {
	env := newTestEnv(t)
	env.mustCreate(t, "alice", "pw123", false)
	b := env.newBrowser(t)

	b.login("alice", "wrong")
	assert.Equal(t, http.StatusUnauthorized, b.get("/auth").status)
}

func TestRequireLogin_RedirectsAndReturnsToOriginalURL(t *testing.T) {
	env := newTestEnv(t)
	env.mustCreate(t, "alice", "pw123", false)
	b := env.newBrowser(t)

	resp := b.get("/admin/?sort=name")
	assert.Equal(t, http.StatusSeeOther, resp.status)
	assert.Equal(t, "/login", resp.location)

	form := b.get("/login")
	assert.Equal(t, http.StatusOK, form.status)
	assert.Contains(t, form.body, `<form method="post" action="/login">`)

	resp = b.login("alice", "pw123")
	assert.Equal(t, http.StatusSeeOther, resp.status)
	assert.Equal(t, "/admin/?sort=name", resp.location)

	// The stashed target is consumed by the first login.
	b.get("/logout")
	resp = b.login("alice", "pw123")
	assert.Equal(t, "/admin/", resp.location)
}

func TestRoot_RedirectsToAdmin(t *testing.T) {
	env := newTestEnv(t)
	env.mustCreate(t, "alice", "pw123", false)
	b := env.newBrowser(t)

	assert.Equal(t, "/login", b.get("/").location)
	b.login("alice", "pw123")

	resp := b.get("/")
	assert.Equal(t, http.StatusFound, resp.status)
	assert.Equal(t, "/admin/", resp.location)
}

func TestLogout_EndsSession(t *testing.T) {
	env := newTestEnv(t)
	env.mustCreate(t, "alice", "pw123", false)
	b := env.newBrowser(t)

	b.login("alice", "pw123")
	require.Equal(t, http.StatusOK, b.get("/auth").status)

	resp := b.get("/logout")
	assert.Equal(t, http.StatusSeeOther, resp.status)
	assert.Equal(t, "/login", resp.location)

	assert.Equal(t, http.StatusUnauthorized, b.get("/auth").status)
	assert.Equal(t, "/login", b.get("/admin/").location)
	assert.Contains(t, b.get("/login").body, "You were logged out")
}

func TestLogout_AnonymousIsNoop(t *testing.T) {
	env := newTestEnv(t)
	b := env.newBrowser(t)

	resp := b.get("/logout")
	assert.Equal(t, http.StatusSeeOther, resp.status)
	assert.Equal(t, "/login", resp.location)
}

func TestAuth_TamperedCookieIsUnauthorized(t *testing.T) {
	env := newTestEnv(t)
	req, err := http.NewRequest(http.MethodGet, env.server.URL+"/auth", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: "proxy_session", Value: "eyJhbGciOiJub25lIn0.eyJ1aWQiOjF9."})

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAdmin_NonAdminMutationsAreUnauthorized(t *testing.T) {
	env := newTestEnv(t)
	env.mustCreate(t, "alice", "pw123", false)
	bob := env.mustCreate(t, "bob", "secret", true)
	b := env.newBrowser(t)
	b.login("alice", "pw123")

	resp := b.post("/admin/add-user", url.Values{"username": {"eve"}, "password": {"x"}})
	assert.Equal(t, http.StatusUnauthorized, resp.status)
	assert.Equal(t, "not authorized", resp.body)

	resp = b.post("/admin/delete-user/"+strconv.Itoa(bob.ID), nil)
	assert.Equal(t, http.StatusUnauthorized, resp.status)
	assert.Equal(t, 2, env.repo.count())

	// Listing is still available to any authenticated user, without controls.
	page := b.get("/admin/")
	assert.Equal(t, http.StatusOK, page.status)
	assert.Contains(t, page.body, "bob")
	assert.NotContains(t, page.body, "Add user")
}

func TestAdmin_AnonymousMutationRedirectsToLogin(t *testing.T) {
	env := newTestEnv(t)
	b := env.newBrowser(t)

	resp := b.post("/admin/add-user", url.Values{"username": {"eve"}, "password": {"x"}})
	assert.Equal(t, http.StatusSeeOther, resp.status)
	assert.Equal(t, "/login", resp.location)
	assert.Equal(t, 0, env.repo.count())
}

func TestAdmin_AddUser(t *testing.T) {
	env := newTestEnv(t)
	env.mustCreate(t, "bob", "secret", true)
	b := env.newBrowser(t)
	b.login("bob", "secret")

	resp := b.post("/admin/add-user", url.Values{"username": {"dave"}, "password": {"pw"}, "is_admin": {"1"}})
	assert.Equal(t, http.StatusSeeOther, resp.status)
	assert.Equal(t, "/admin/", resp.location)
	assert.Contains(t, b.get("/admin/").body, "User dave added successfully")

	dave, err := env.users.GetByUsername(context.Background(), "dave")
	require.NoError(t, err)
	assert.True(t, dave.IsAdmin)

	other := env.newBrowser(t)
	other.login("dave", "pw")
	assert.Equal(t, http.StatusOK, other.get("/auth").status)
}

func TestAdmin_AddUserCheckboxValue(t *testing.T) {
	env := newTestEnv(t)
	env.mustCreate(t, "bob", "secret", true)
	b := env.newBrowser(t)
	b.login("bob", "secret")

	b.post("/admin/add-user", url.Values{"username": {"frank"}, "password": {"pw"}, "is_admin": {"on"}})
	frank, err := env.users.GetByUsername(context.Background(), "frank")
	require.NoError(t, err)
	assert.False(t, frank.IsAdmin)
}

func TestAdmin_AddDuplicateFlashes(t *testing.T) {
	env := newTestEnv(t)
	env.mustCreate(t, "bob", "secret", true)
	b := env.newBrowser(t)
	b.login("bob", "secret")

	resp := b.post("/admin/add-user", url.Values{"username": {"bob"}, "password": {"other"}})
	assert.Equal(t, http.StatusSeeOther, resp.status)
	assert.Contains(t, b.get("/admin/").body, "User bob already exists")
	assert.Equal(t, 1, env.repo.count())
}

func TestAdmin_AddBlankFlashes(t *testing.T) {
	env := newTestEnv(t)
	env.mustCreate(t, "bob", "secret", true)
	b := env.newBrowser(t)
	b.login("bob", "secret")

	b.post("/admin/add-user", url.Values{"username": {" "}, "password": {"pw"}})
	assert.Contains(t, b.get("/admin/").body, "Username and password are required")
	assert.Equal(t, 1, env.repo.count())
}

func TestAdmin_DeleteUnknownIsBenign(t *testing.T) {
	env := newTestEnv(t)
	env.mustCreate(t, "bob", "secret", true)
	b := env.newBrowser(t)
	b.login("bob", "secret")

	resp := b.post("/admin/delete-user/999", nil)
	assert.Equal(t, http.StatusSeeOther, resp.status)
	assert.Equal(t, "/admin/", resp.location)
	assert.Contains(t, b.get("/admin/").body, "User with id 999 not found")

	b.post("/admin/delete-user/abc", nil)
	assert.Contains(t, b.get("/admin/").body, "User with id abc not found")
	assert.Equal(t, 1, env.repo.count())
}

func TestAdmin_DeleteUser(t *testing.T) {
	env := newTestEnv(t)
	env.mustCreate(t, "bob", "secret", true)
	carol := env.mustCreate(t, "carol", "pw456", false)
	b := env.newBrowser(t)
	b.login("bob", "secret")

	resp := b.post("/admin/delete-user/"+strconv.Itoa(carol.ID), nil)
	assert.Equal(t, http.StatusSeeOther, resp.status)
	assert.Contains(t, b.get("/admin/").body, "User carol deleted successfully")
	assert.Equal(t, 1, env.repo.count())
}

func TestSession_NotRevalidatedUntilNextLogin(t *testing.T) {
	env := newTestEnv(t)
	alice := env.mustCreate(t, "alice", "pw123", false)
	b := env.newBrowser(t)
	b.login("alice", "pw123")

	require.NoError(t, env.repo.Delete(context.Background(), alice.ID))
	assert.Equal(t, http.StatusOK, b.get("/auth").status)

	b.get("/logout")
	b.login("alice", "pw123")
	assert.Equal(t, http.StatusUnauthorized, b.get("/auth").status)
}

func TestSafeNext(t *testing.T) {
	cases := map[string]string{
		"":                   "/admin/",
		"/app/dashboard?x=1": "/app/dashboard?x=1",
		"//evil.example":     "/admin/",
		"/\\evil.example":    "/admin/",
		"https://evil.test/": "/admin/",
		"relative/path":      "/admin/",
	}
	for in, want := range cases {
		assert.Equal(t, want, safeNext(in), in)
	}
}

func TestHealthz(t *testing.T) {
	rec := httptest.NewRecorder()
	Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestAdmin_AddUserLongPassword(t *testing.T) {
	env := newTestEnv(t)
	env.mustCreate(t, "bob", "secret", true)
	b := env.newBrowser(t)
	b.login("bob", "secret")

	long := strings.Repeat("x", 80)
	resp := b.post("/admin/add-user", url.Values{"username": {"dave"}, "password": {long}})
	assert.Equal(t, http.StatusSeeOther, resp.status)

	page := b.get("/admin/").body
	assert.Contains(t, page, "User dave added successfully")
	assert.NotContains(t, page, "Internal error")

	dave := env.newBrowser(t)
	assert.Equal(t, http.StatusSeeOther, dave.login("dave", long).status)
	assert.Equal(t, http.StatusOK, dave.get("/auth").status)
}

func TestAdmin_AddDuplicateFlashesTrimmedName(t *testing.T) {
	env := newTestEnv(t)
	env.mustCreate(t, "bob", "secret", true)
	b := env.newBrowser(t)
	b.login("bob", "secret")

	b.post("/admin/add-user", url.Values{"username": {"  bob  "}, "password": {"other"}})
	page := b.get("/admin/").body
	assert.Contains(t, page, "User bob already exists")
	assert.NotContains(t, page, "User   bob")
}

func TestAdmin_RedirectOnlyClientKeepsCookieSmall(t *testing.T) {
	env := newTestEnv(t)
	env.mustCreate(t, "bob", "secret", true)
	b := env.newBrowser(t)
	b.login("bob", "secret")

	for i := 0; i < 200; i++ {
		b.post("/admin/delete-user/999", nil)
	}

	base, err := url.Parse(env.server.URL)
	require.NoError(t, err)
	var size int
	for _, c := range b.client.Jar.Cookies(base) {
		if c.Name == "proxy_session" {
			size = len(c.Value)
		}
	}
	assert.Positive(t, size)
	assert.Less(t, size, 4000)
	assert.Equal(t, http.StatusOK, b.get("/auth").status)
}
