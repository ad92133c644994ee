package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"blogapi/internal/config"
	"blogapi/internal/database"
	"blogapi/internal/observability"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCookieName = "blog_session"

func testConfig() *config.Config {
	return &config.Config{
		Port:              "0",
		Env:               "test",
		DBDriver:          config.DriverSQLite,
		DBPath:            ":memory:",
		AllowedOrigins:    "http://localhost:5000",
		SessionTTL:        time.Hour,
		SessionCookieName: testCookieName,
		BcryptCost:        4,
	}
}

func newTestServer(t *testing.T, rdb *redis.Client) (*Server, *fiber.App) {
	t.Helper()
	cfg := testConfig()

	db, err := database.Connect(cfg, observability.NopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	srv, err := NewServerWithDeps(Deps{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
		Logger: observability.NopLogger(),
	})
	require.NoError(t, err)
	return srv, srv.NewApp()
}

type testResponse struct {
	status int
	header http.Header
	body   []byte
}

func (r testResponse) decode(t *testing.T, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(r.body, v), string(r.body))
}

// testClient replays the session cookie between app.Test calls, like a browser.
type testClient struct {
	t      *testing.T
	app    *fiber.App
	cookie string
}

func newClient(t *testing.T, app *fiber.App) *testClient {
	return &testClient{t: t, app: app}
}

func (tc *testClient) do(method, path, contentType string, body io.Reader) testResponse {
	tc.t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if tc.cookie != "" {
		req.Header.Set("Cookie", testCookieName+"="+tc.cookie)
	}

	resp, err := tc.app.Test(req, -1)
	require.NoError(tc.t, err)
	defer resp.Body.Close()

	for _, ck := range resp.Cookies() {
		if ck.Name != testCookieName {
			continue
		}
		if ck.Value == "" || ck.MaxAge < 0 || (!ck.Expires.IsZero() && ck.Expires.Before(time.Now())) {
			tc.cookie = ""
		} else {
			tc.cookie = ck.Value
		}
	}

	b, err := io.ReadAll(resp.Body)
	require.NoError(tc.t, err)
	return testResponse{status: resp.StatusCode, header: resp.Header, body: b}
}

func (tc *testClient) json(method, path string, payload any) testResponse {
	tc.t.Helper()
	if payload == nil {
		return tc.do(method, path, "", nil)
	}
	b, err := json.Marshal(payload)
	require.NoError(tc.t, err)
	return tc.do(method, path, fiber.MIMEApplicationJSON, bytes.NewReader(b))
}

func (tc *testClient) form(path string, values url.Values) testResponse {
	tc.t.Helper()
	return tc.do(http.MethodPost, path, fiber.MIMEApplicationForm, strings.NewReader(values.Encode()))
}

func (tc *testClient) register(username, password string) uint {
	tc.t.Helper()
	resp := tc.json(http.MethodPost, "/api/register", map[string]string{"username": username, "password": password})
	require.Equal(tc.t, fiber.StatusCreated, resp.status, string(resp.body))

	var out struct {
		Success bool `json:"success"`
		ID      uint `json:"id"`
	}
	resp.decode(tc.t, &out)
	require.True(tc.t, out.Success)
	return out.ID
}

func (tc *testClient) login(username, password string) {
	tc.t.Helper()
	resp := tc.json(http.MethodPost, "/api/login", map[string]string{"username": username, "password": password})
	require.Equal(tc.t, fiber.StatusOK, resp.status, string(resp.body))
	require.NotEmpty(tc.t, tc.cookie)
}

func (tc *testClient) createPost(payload map[string]any) uint {
	tc.t.Helper()
	resp := tc.json(http.MethodPost, "/api/blog", payload)
	require.Equal(tc.t, fiber.StatusCreated, resp.status, string(resp.body))

	var out struct {
		ID uint `json:"id"`
	}
	resp.decode(tc.t, &out)
	require.NotZero(tc.t, out.ID)
	return out.ID
}

func (tc *testClient) listPosts() []postResponse {
	tc.t.Helper()
	resp := tc.json(http.MethodGet, "/api/blog", nil)
	require.Equal(tc.t, fiber.StatusOK, resp.status, string(resp.body))

	var posts []postResponse
	resp.decode(tc.t, &posts)
	return posts
}

func TestBlogScenario_AliceAndBob(t *testing.T) {
	_, app := newTestServer(t, nil)

	alice := newClient(t, app)
	bob := newClient(t, app)
	anon := newClient(t, app)

	aliceID := alice.register("alice", "pw1")
	bob.register("bob", "pw2")

	alice.login("alice", "pw1")
	postID := alice.createPost(map[string]any{"content": "hello"})

	resp := anon.json(http.MethodGet, fmt.Sprintf("/api/blog/%d", postID), nil)
	require.Equal(t, fiber.StatusOK, resp.status)
	var got postResponse
	resp.decode(t, &got)
	assert.Equal(t, postID, got.ID)
	assert.Equal(t, aliceID, got.AuthorID)
	assert.Equal(t, "hello", got.Content)
	assert.False(t, got.CreatedAt.IsZero())

	bob.login("bob", "pw2")
	resp = bob.json(http.MethodPatch, fmt.Sprintf("/api/blog/%d", postID), map[string]string{"content": "pwned"})
	assert.Equal(t, fiber.StatusForbidden, resp.status)

	resp = bob.json(http.MethodDelete, fmt.Sprintf("/api/blog/%d", postID), nil)
	assert.Equal(t, fiber.StatusForbidden, resp.status)

	resp = anon.json(http.MethodGet, fmt.Sprintf("/api/blog/%d", postID), nil)
	resp.decode(t, &got)
	assert.Equal(t, "hello", got.Content, "rejected update must leave the post unchanged")

	resp = alice.json(http.MethodDelete, fmt.Sprintf("/api/blog/%d", postID), nil)
	require.Equal(t, fiber.StatusOK, resp.status)
	var msg map[string]string
	resp.decode(t, &msg)
	assert.Equal(t, "Blog post deleted", msg["message"])

	resp = anon.json(http.MethodGet, fmt.Sprintf("/api/blog/%d", postID), nil)
	assert.Equal(t, fiber.StatusNotFound, resp.status)
	var errBody map[string]string
	resp.decode(t, &errBody)
	assert.Equal(t, "NOT_FOUND", errBody["code"])
}

func TestRegister_DuplicateUsername(t *testing.T) {
	srv, app := newTestServer(t, nil)
	cl := newClient(t, app)

	cl.register("alice", "pw1")
	before, err := srv.userRepo.GetByUsername(context.Background(), "alice")
	require.NoError(t, err)

	resp := cl.json(http.MethodPost, "/api/register", map[string]string{"username": "alice", "password": "other"})
	assert.Equal(t, fiber.StatusConflict, resp.status)

	after, err := srv.userRepo.GetByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, before.Password, after.Password)

	// The original password still works.
	cl.login("alice", "pw1")
}

func TestRegister_Validation(t *testing.T) {
	_, app := newTestServer(t, nil)
	cl := newClient(t, app)

	resp := cl.json(http.MethodPost, "/api/register", map[string]string{"username": "alice"})
	assert.Equal(t, fiber.StatusBadRequest, resp.status)

	resp = cl.do(http.MethodPost, "/api/register", fiber.MIMEApplicationJSON, strings.NewReader("{"))
	assert.Equal(t, fiber.StatusBadRequest, resp.status)
}

func TestLoginAPI_Failure(t *testing.T) {
	_, app := newTestServer(t, nil)
	cl := newClient(t, app)
	cl.register("alice", "pw1")

	resp := cl.json(http.MethodPost, "/api/login", map[string]string{"username": "alice", "password": "wrong"})
	assert.Equal(t, fiber.StatusUnauthorized, resp.status)
	var out struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	resp.decode(t, &out)
	assert.False(t, out.Success)
	assert.NotEmpty(t, out.Message)
	assert.Empty(t, cl.cookie)

	resp = cl.json(http.MethodPost, "/api/login", map[string]string{"username": "nobody", "password": "pw1"})
	assert.Equal(t, fiber.StatusUnauthorized, resp.status)
}

func TestProtectedRoutes_RequireLogin(t *testing.T) {
	_, app := newTestServer(t, nil)
	anon := newClient(t, app)

	for _, tc := range []struct {
		method, path string
	}{
		{http.MethodGet, "/api/blog"},
		{http.MethodPost, "/api/blog"},
		{http.MethodPatch, "/api/blog/1"},
		{http.MethodDelete, "/api/blog/1"},
		{http.MethodGet, "/api/logout"},
	} {
		resp := anon.json(tc.method, tc.path, nil)
		assert.Equal(t, fiber.StatusUnauthorized, resp.status, "%s %s", tc.method, tc.path)
		var body map[string]string
		resp.decode(t, &body)
		assert.Equal(t, "AUTHENTICATION_REQUIRED", body["code"])
	}

	resp := anon.do(http.MethodGet, "/logout", "", nil)
	assert.Equal(t, fiber.StatusSeeOther, resp.status)
	assert.Equal(t, "/login", resp.header.Get("Location"))

	resp = anon.form("/create-post", url.Values{"content": {"hi"}})
	assert.Equal(t, fiber.StatusSeeOther, resp.status)
	assert.Equal(t, "/login", resp.header.Get("Location"))
}

func TestCreatePost_Validation(t *testing.T) {
	_, app := newTestServer(t, nil)
	cl := newClient(t, app)
	cl.register("alice", "pw1")
	cl.login("alice", "pw1")

	resp := cl.json(http.MethodPost, "/api/blog", map[string]string{"visible_to": "1"})
	assert.Equal(t, fiber.StatusBadRequest, resp.status)

	resp = cl.do(http.MethodPost, "/api/blog", "text/plain", strings.NewReader("hello"))
	assert.Equal(t, fiber.StatusBadRequest, resp.status)

	assert.Empty(t, cl.listPosts())

	// Only a missing content field is rejected; an empty one is stored.
	resp = cl.json(http.MethodPost, "/api/blog", map[string]string{"content": ""})
	require.Equal(t, fiber.StatusCreated, resp.status)
	var created map[string]uint
	resp.decode(t, &created)

	resp = cl.json(http.MethodGet, fmt.Sprintf("/api/blog/%d", created["id"]), nil)
	require.Equal(t, fiber.StatusOK, resp.status)
	var got postResponse
	resp.decode(t, &got)
	assert.Equal(t, "", got.Content)
}

func TestCreatePost_AuthorIsSessionUser(t *testing.T) {
	_, app := newTestServer(t, nil)
	cl := newClient(t, app)
	aliceID := cl.register("alice", "pw1")
	bobID := cl.register("bob", "pw2")
	cl.login("alice", "pw1")

	postID := cl.createPost(map[string]any{"content": "mine", "author_id": bobID, "id": 999})

	resp := cl.json(http.MethodGet, fmt.Sprintf("/api/blog/%d", postID), nil)
	var got postResponse
	resp.decode(t, &got)
	assert.Equal(t, aliceID, got.AuthorID)
	assert.NotEqual(t, uint(999), got.ID)
}

func TestListPosts_VisibilityAndOrder(t *testing.T) {
	srv, app := newTestServer(t, nil)

	alice := newClient(t, app)
	bob := newClient(t, app)
	admin := newClient(t, app)

	alice.register("alice", "pw1")
	bobID := alice.register("bob", "pw2")
	adminID := alice.register("root", "pw3")
	require.NoError(t, srv.userRepo.SetAdmin(context.Background(), adminID, true))

	alice.login("alice", "pw1")
	bob.login("bob", "pw2")
	admin.login("root", "pw3")

	bobVisible := fmt.Sprint(bobID)
	first := alice.createPost(map[string]any{"content": "first", "visible_to": bobVisible})
	hidden := alice.createPost(map[string]any{"content": "hidden", "visible_to": "9999"})
	third := alice.createPost(map[string]any{"content": "third", "visible_to": "0," + bobVisible})

	bobPosts := bob.listPosts()
	require.Len(t, bobPosts, 2)
	assert.Equal(t, third, bobPosts[0].ID)
	assert.Equal(t, first, bobPosts[1].ID)
	for _, p := range bobPosts {
		assert.NotEqual(t, hidden, p.ID)
	}

	adminPosts := admin.listPosts()
	require.Len(t, adminPosts, 3)
	assert.Equal(t, []uint{third, hidden, first}, []uint{adminPosts[0].ID, adminPosts[1].ID, adminPosts[2].ID})
	for i := 1; i < len(adminPosts); i++ {
		assert.False(t, adminPosts[i].CreatedAt.After(adminPosts[i-1].CreatedAt))
	}

	// Reading by id ignores visible_to.
	resp := bob.json(http.MethodGet, fmt.Sprintf("/api/blog/%d", hidden), nil)
	assert.Equal(t, fiber.StatusOK, resp.status)
}

func TestUpdatePost(t *testing.T) {
	srv, app := newTestServer(t, nil)

	alice := newClient(t, app)
	admin := newClient(t, app)
	alice.register("alice", "pw1")
	adminID := alice.register("root", "pw3")
	require.NoError(t, srv.userRepo.SetAdmin(context.Background(), adminID, true))
	alice.login("alice", "pw1")
	admin.login("root", "pw3")

	postID := alice.createPost(map[string]any{"content": "draft"})
	path := fmt.Sprintf("/api/blog/%d", postID)

	resp := alice.json(http.MethodPatch, path, map[string]string{"content": "final"})
	require.Equal(t, fiber.StatusOK, resp.status)
	var msg map[string]string
	resp.decode(t, &msg)
	assert.Equal(t, "Blog post updated", msg["message"])

	resp = admin.json(http.MethodPatch, path, map[string]string{"content": "moderated"})
	require.Equal(t, fiber.StatusOK, resp.status)

	resp = alice.json(http.MethodGet, path, nil)
	var got postResponse
	resp.decode(t, &got)
	assert.Equal(t, "moderated", got.Content)

	resp = alice.json(http.MethodPatch, path, map[string]string{})
	assert.Equal(t, fiber.StatusBadRequest, resp.status)

	resp = alice.json(http.MethodPatch, "/api/blog/4242", map[string]string{"content": "x"})
	assert.Equal(t, fiber.StatusNotFound, resp.status)

	resp = alice.json(http.MethodPatch, "/api/blog/abc", map[string]string{"content": "x"})
	assert.Equal(t, fiber.StatusBadRequest, resp.status)
}

func TestPostRoutes_NonPositiveIDIsNotFound(t *testing.T) {
	_, app := newTestServer(t, nil)
	cl := newClient(t, app)
	cl.register("alice", "pw1")
	cl.login("alice", "pw1")

	for _, id := range []string{"0", "-1"} {
		path := "/api/blog/" + id

		resp := cl.json(http.MethodGet, path, nil)
		assert.Equal(t, fiber.StatusNotFound, resp.status, "GET %s", path)
		var errBody map[string]string
		resp.decode(t, &errBody)
		assert.Equal(t, "NOT_FOUND", errBody["code"])

		resp = cl.json(http.MethodPatch, path, map[string]string{"content": "x"})
		assert.Equal(t, fiber.StatusNotFound, resp.status, "PATCH %s", path)

		resp = cl.json(http.MethodDelete, path, nil)
		assert.Equal(t, fiber.StatusNotFound, resp.status, "DELETE %s", path)
	}

	resp := cl.json(http.MethodGet, "/api/blog/abc", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.status)
}

func TestAdminCanDeleteAnyPost(t *testing.T) {
	srv, app := newTestServer(t, nil)

	alice := newClient(t, app)
	admin := newClient(t, app)
	alice.register("alice", "pw1")
	adminID := alice.register("root", "pw3")
	require.NoError(t, srv.userRepo.SetAdmin(context.Background(), adminID, true))
	alice.login("alice", "pw1")
	admin.login("root", "pw3")

	postID := alice.createPost(map[string]any{"content": "bye"})
	resp := admin.json(http.MethodDelete, fmt.Sprintf("/api/blog/%d", postID), nil)
	assert.Equal(t, fiber.StatusOK, resp.status)

	resp = admin.json(http.MethodDelete, fmt.Sprintf("/api/blog/%d", postID), nil)
	assert.Equal(t, fiber.StatusNotFound, resp.status)
}

func TestLogoutAPI(t *testing.T) {
	_, app := newTestServer(t, nil)
	cl := newClient(t, app)
	cl.register("alice", "pw1")
	cl.login("alice", "pw1")
	oldCookie := cl.cookie

	resp := cl.json(http.MethodGet, "/api/logout", nil)
	require.Equal(t, fiber.StatusOK, resp.status)
	assert.Empty(t, cl.cookie)

	// The old session id is dead server-side too.
	cl.cookie = oldCookie
	resp = cl.json(http.MethodGet, "/api/blog", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.status)
}

func TestHTMLFlow(t *testing.T) {
	_, app := newTestServer(t, nil)
	cl := newClient(t, app)

	resp := cl.do(http.MethodGet, "/register", "", nil)
	require.Equal(t, fiber.StatusOK, resp.status)
	assert.Contains(t, resp.header.Get("Content-Type"), "text/html")

	resp = cl.form("/register", url.Values{"username": {"alice"}, "password": {"pw1"}})
	require.Equal(t, fiber.StatusSeeOther, resp.status)
	assert.Equal(t, "/login", resp.header.Get("Location"))

	resp = cl.do(http.MethodGet, "/login", "", nil)
	require.Equal(t, fiber.StatusOK, resp.status)
	assert.Contains(t, string(resp.body), msgRegistered)

	// Flashes are shown once.
	resp = cl.do(http.MethodGet, "/login", "", nil)
	assert.NotContains(t, string(resp.body), msgRegistered)

	resp = cl.form("/register", url.Values{"username": {"alice"}, "password": {"again"}})
	assert.Equal(t, fiber.StatusConflict, resp.status)
	assert.Contains(t, string(resp.body), "Username already exists")

	resp = cl.form("/login", url.Values{"username": {"alice"}, "password": {"nope"}})
	assert.Equal(t, fiber.StatusUnauthorized, resp.status)
	assert.Contains(t, string(resp.body), "Login failed")

	resp = cl.form("/login", url.Values{"username": {"alice"}, "password": {"pw1"}})
	require.Equal(t, fiber.StatusSeeOther, resp.status)
	assert.Equal(t, "/", resp.header.Get("Location"))

	resp = cl.form("/create-post", url.Values{"content": {"<b>from the form</b>"}})
	require.Equal(t, fiber.StatusSeeOther, resp.status)

	resp = cl.form("/create-post", url.Values{"visible_to": {"1"}})
	assert.Equal(t, fiber.StatusBadRequest, resp.status)

	resp = cl.do(http.MethodGet, "/", "", nil)
	require.Equal(t, fiber.StatusOK, resp.status)
	body := string(resp.body)
	assert.Contains(t, body, "&lt;b&gt;from the form&lt;/b&gt;")
	assert.Contains(t, body, "Signed in as alice")

	resp = cl.do(http.MethodGet, "/logout", "", nil)
	assert.Equal(t, fiber.StatusSeeOther, resp.status)
	assert.Equal(t, "/", resp.header.Get("Location"))

	resp = cl.do(http.MethodGet, "/", "", nil)
	assert.NotContains(t, string(resp.body), "Signed in as")
}

func TestLoginForm_JSONBody(t *testing.T) {
	_, app := newTestServer(t, nil)
	cl := newClient(t, app)
	cl.register("alice", "pw1")

	resp := cl.json(http.MethodPost, "/login", map[string]string{"username": "alice", "password": "bad"})
	assert.Equal(t, fiber.StatusUnauthorized, resp.status)
	var body map[string]string
	resp.decode(t, &body)
	assert.Equal(t, "UNAUTHORIZED", body["code"])

	resp = cl.json(http.MethodPost, "/login", map[string]string{"username": "alice", "password": "pw1"})
	assert.Equal(t, fiber.StatusSeeOther, resp.status)
	assert.NotEmpty(t, cl.cookie)
}

func TestAboutAndHealth(t *testing.T) {
	_, app := newTestServer(t, nil)
	cl := newClient(t, app)

	resp := cl.json(http.MethodGet, "/api/about", nil)
	require.Equal(t, fiber.StatusOK, resp.status)
	var doc apiDoc
	resp.decode(t, &doc)
	assert.NotEmpty(t, doc.Description)
	assert.Len(t, doc.Endpoints, len(aboutDoc.Endpoints))

	resp = cl.json(http.MethodGet, "/health/live", nil)
	assert.Equal(t, fiber.StatusOK, resp.status)

	resp = cl.json(http.MethodGet, "/health/ready", nil)
	require.Equal(t, fiber.StatusOK, resp.status)
	var ready struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	resp.decode(t, &ready)
	assert.Equal(t, "healthy", ready.Status)
	assert.Equal(t, "disabled", ready.Checks["redis"])

	resp = cl.json(http.MethodGet, "/metrics", nil)
	require.Equal(t, fiber.StatusOK, resp.status)
	assert.Contains(t, string(resp.body), "blogapi_http_requests_total")
}

func TestRedisBackedSessions(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	_, app := newTestServer(t, rdb)
	cl := newClient(t, app)
	cl.register("alice", "pw1")
	cl.login("alice", "pw1")

	assert.True(t, mr.Exists("session:"+cl.cookie))
	ttl := mr.TTL("session:" + cl.cookie)
	assert.True(t, ttl > 0 && ttl <= time.Hour, "ttl %s", ttl)

	postID := cl.createPost(map[string]any{"content": "cached"})
	resp := cl.json(http.MethodGet, fmt.Sprintf("/api/blog/%d", postID), nil)
	require.Equal(t, fiber.StatusOK, resp.status)
	assert.True(t, mr.Exists(fmt.Sprintf("post:%d", postID)))

	resp = cl.json(http.MethodPatch, fmt.Sprintf("/api/blog/%d", postID), map[string]string{"content": "fresh"})
	require.Equal(t, fiber.StatusOK, resp.status)
	resp = cl.json(http.MethodGet, fmt.Sprintf("/api/blog/%d", postID), nil)
	var got postResponse
	resp.decode(t, &got)
	assert.Equal(t, "fresh", got.Content)

	resp = cl.json(http.MethodGet, "/health/ready", nil)
	require.Equal(t, fiber.StatusOK, resp.status)

	oldCookie := cl.cookie
	cl.json(http.MethodGet, "/api/logout", nil)
	assert.False(t, mr.Exists("session:"+oldCookie))
}
