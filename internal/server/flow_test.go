package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"socialdb/internal/auth"
	"socialdb/internal/config"
	"socialdb/internal/models"
	"socialdb/internal/repository"
	"socialdb/internal/session"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupFlowServer wires real repositories over in-memory sqlite and a
// miniredis-backed session store, then mounts the full route set.
func setupFlowServer(t *testing.T) (*Server, *fiber.App) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Post{}); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	tokens, err := auth.NewTokenService("flow-test-secret")
	if err != nil {
		t.Fatalf("token service: %v", err)
	}

	s := &Server{
		config:   &config.Config{JWTSecret: "flow-test-secret"},
		db:       db,
		redis:    rdb,
		tokens:   tokens,
		sessions: session.NewStore(rdb),
		userRepo: repository.NewUserRepository(db),
		postRepo: repository.NewPostRepository(db),
	}

	app := fiber.New()
	app.Post("/register", s.Register)
	app.Post("/login", s.Login)
	app.Get("/logout", s.Logout)
	app.Post("/post", s.AuthRequired(), s.CreatePost)
	app.Get("/posts", s.AuthRequired(), s.GetPosts)
	app.Put("/posts/:postId", s.AuthRequired(), s.UpdatePost)
	app.Delete("/posts/:postId", s.AuthRequired(), s.DeletePost)

	return s, app
}

func doJSON(t *testing.T, app *fiber.App, method, path, sid string, body map[string]any) *http.Response {
	t.Helper()

	var req *http.Request
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		req = httptest.NewRequest(method, path, bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if sid != "" {
		req.AddCookie(&http.Cookie{Name: session.CookieName, Value: sid})
	}

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test %s %s: %v", method, path, err)
	}
	return resp
}

func registerAndGetSession(t *testing.T, app *fiber.App, username, email, password string) string {
	t.Helper()

	resp := doJSON(t, app, http.MethodPost, "/register", "", map[string]any{
		"username": username,
		"email":    email,
		"password": password,
	})
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("register %s: expected 200, got %d", username, resp.StatusCode)
	}
	for _, ck := range resp.Cookies() {
		if ck.Name == session.CookieName {
			return ck.Value
		}
	}
	t.Fatalf("register %s: no session cookie set", username)
	return ""
}

func TestPostLifecycleFlow(t *testing.T) {
	_, app := setupFlowServer(t)

	alice := registerAndGetSession(t, app, "alice", "alice@example.com", "s3cret")
	bob := registerAndGetSession(t, app, "bob", "bob@example.com", "hunter2")

	// Alice creates a post.
	resp := doJSON(t, app, http.MethodPost, "/post", alice, map[string]any{"text": "first post"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create post: expected 201, got %d", resp.StatusCode)
	}
	var created struct {
		Post models.Post `json:"post"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	_ = resp.Body.Close()
	if created.Post.ID == 0 {
		t.Fatal("create post: expected a persisted ID")
	}

	// Alice sees her post; Bob sees nothing.
	resp = doJSON(t, app, http.MethodGet, "/posts", alice, nil)
	var aliceList struct {
		Posts []models.Post `json:"posts"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&aliceList); err != nil {
		t.Fatalf("decode alice posts: %v", err)
	}
	_ = resp.Body.Close()
	if len(aliceList.Posts) != 1 || aliceList.Posts[0].Text != "first post" {
		t.Fatalf("alice posts: expected her single post, got %+v", aliceList.Posts)
	}

	resp = doJSON(t, app, http.MethodGet, "/posts", bob, nil)
	var bobList struct {
		Posts []models.Post `json:"posts"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&bobList); err != nil {
		t.Fatalf("decode bob posts: %v", err)
	}
	_ = resp.Body.Close()
	if len(bobList.Posts) != 0 {
		t.Fatalf("bob posts: expected empty list, got %+v", bobList.Posts)
	}

	postPath := fmt.Sprintf("/posts/%d", created.Post.ID)

	// Bob cannot touch Alice's post, and the response does not reveal that
	// the post exists.
	resp = doJSON(t, app, http.MethodPut, postPath, bob, map[string]any{"text": "hijacked"})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("bob update: expected 404, got %d", resp.StatusCode)
	}
	_ = resp.Body.Close()

	resp = doJSON(t, app, http.MethodDelete, postPath, bob, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("bob delete: expected 404, got %d", resp.StatusCode)
	}
	_ = resp.Body.Close()

	// Alice edits and then deletes the post.
	resp = doJSON(t, app, http.MethodPut, postPath, alice, map[string]any{"text": "edited"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("alice update: expected 200, got %d", resp.StatusCode)
	}
	var updated struct {
		UpdatedPost models.Post `json:"updatedPost"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&updated); err != nil {
		t.Fatalf("decode update response: %v", err)
	}
	_ = resp.Body.Close()
	if updated.UpdatedPost.Text != "edited" {
		t.Fatalf("alice update: expected edited text, got %q", updated.UpdatedPost.Text)
	}

	resp = doJSON(t, app, http.MethodDelete, postPath, alice, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("alice delete: expected 200, got %d", resp.StatusCode)
	}
	_ = resp.Body.Close()

	// Deleting again reports not found.
	resp = doJSON(t, app, http.MethodDelete, postPath, alice, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("alice second delete: expected 404, got %d", resp.StatusCode)
	}
	_ = resp.Body.Close()
}

func TestRegisterLoginLogoutFlow(t *testing.T) {
	_, app := setupFlowServer(t)

	registerAndGetSession(t, app, "carol", "carol@example.com", "passw0rd")

	// A second registration with the same username is rejected.
	resp := doJSON(t, app, http.MethodPost, "/register", "", map[string]any{
		"username": "carol",
		"email":    "carol2@example.com",
		"password": "other",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("duplicate register: expected 400, got %d", resp.StatusCode)
	}
	_ = resp.Body.Close()

	// Login with the stored bcrypt hash.
	resp = doJSON(t, app, http.MethodPost, "/login", "", map[string]any{
		"username": "carol",
		"password": "passw0rd",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", resp.StatusCode)
	}
	var sid string
	for _, ck := range resp.Cookies() {
		if ck.Name == session.CookieName {
			sid = ck.Value
		}
	}
	_ = resp.Body.Close()
	if sid == "" {
		t.Fatal("login: no session cookie set")
	}

	resp = doJSON(t, app, http.MethodPost, "/login", "", map[string]any{
		"username": "carol",
		"password": "wrong",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad login: expected 401, got %d", resp.StatusCode)
	}
	_ = resp.Body.Close()

	// Logout invalidates the session server-side.
	resp = doJSON(t, app, http.MethodGet, "/logout", sid, nil)
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("logout: expected 302, got %d", resp.StatusCode)
	}
	_ = resp.Body.Close()

	resp = doJSON(t, app, http.MethodGet, "/posts", sid, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("posts after logout: expected 401, got %d", resp.StatusCode)
	}
	_ = resp.Body.Close()
}
