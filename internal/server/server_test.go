package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"socialfeed/internal/config"
	"socialfeed/internal/database"
	"socialfeed/internal/models"
	"socialfeed/internal/notifications"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-12345678901234567890123456789012"

func setupApp(t *testing.T, redisClient *redis.Client) (*fiber.App, *Server) {
	t.Helper()
	db, err := database.OpenInMemory()
	require.NoError(t, err)

	cfg := &config.Config{
		Env:                "test",
		JWTSecret:          testSecret,
		AllowedOrigins:     "*",
		SubscriberBacklog:  64,
		PostCacheTTL:       time.Minute,
		RateLimitPerMinute: 60,
	}
	s, err := NewServerWithDeps(cfg, db, redisClient)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })

	app := fiber.New()
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app, s
}

func bearer(t *testing.T, sub string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + signed
}

func doJSON(t *testing.T, app *fiber.App, method, path, auth string, body any) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

func registerUser(t *testing.T, app *fiber.App, name string) string {
	t.Helper()
	auth := bearer(t, "idp_"+name)
	status, body := doJSON(t, app, http.MethodPost, "/api/users/register", auth, fiber.Map{
		"username": name,
		"email":    name + "@example.com",
	})
	require.Equal(t, http.StatusCreated, status, string(body))
	return auth
}

func decodePost(t *testing.T, body []byte) models.Post {
	t.Helper()
	var post models.Post
	require.NoError(t, json.Unmarshal(body, &post), string(body))
	return post
}

func decodeError(t *testing.T, body []byte) models.ErrorResponse {
	t.Helper()
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &resp), string(body))
	return resp
}

func TestHealth(t *testing.T) {
	app, _ := setupApp(t, nil)

	status, body := doJSON(t, app, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)

	var resp struct {
		Status string         `json:"status"`
		Checks map[string]any `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "healthy", resp.Checks["database"])
	assert.Equal(t, "disabled", resp.Checks["redis"])

	status, _ = doJSON(t, app, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestMetricsEndpoint(t *testing.T) {
	app, _ := setupApp(t, nil)
	doJSON(t, app, http.MethodGet, "/api/posts", "", nil)

	status, body := doJSON(t, app, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), "socialfeed_operations_total")
}

func TestPostLifecycle(t *testing.T) {
	app, _ := setupApp(t, nil)
	alice := registerUser(t, app, "alice")
	bob := registerUser(t, app, "bob")

	status, body := doJSON(t, app, http.MethodPost, "/api/posts", alice, fiber.Map{"body": "hello feed"})
	require.Equal(t, http.StatusCreated, status, string(body))
	post := decodePost(t, body)
	assert.Equal(t, "alice", post.Username)
	assert.Empty(t, post.Comments)
	assert.Empty(t, post.Likes)

	status, body = doJSON(t, app, http.MethodGet, "/api/posts", "", nil)
	require.Equal(t, http.StatusOK, status)
	var list []models.Post
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list, 1)
	assert.Equal(t, post.ID, list[0].ID)

	status, body = doJSON(t, app, http.MethodPost, "/api/posts/"+post.ID+"/like", bob, nil)
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Equal(t, 1, decodePost(t, body).LikeCount)

	status, body = doJSON(t, app, http.MethodPost, "/api/posts/"+post.ID+"/comments", bob, fiber.Map{"body": "nice"})
	require.Equal(t, http.StatusCreated, status, string(body))
	commented := decodePost(t, body)
	require.Len(t, commented.Comments, 1)
	assert.Equal(t, 1, commented.CommentCount)
	commentID := commented.Comments[0].ID

	// Only the comment author may remove it.
	status, body = doJSON(t, app, http.MethodDelete, "/api/posts/"+post.ID+"/comments/"+commentID, alice, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, models.CodeForbidden, decodeError(t, body).Code)

	status, body = doJSON(t, app, http.MethodDelete, "/api/posts/"+post.ID+"/comments/"+commentID, bob, nil)
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Equal(t, 0, decodePost(t, body).CommentCount)

	status, _ = doJSON(t, app, http.MethodDelete, "/api/posts/"+post.ID, bob, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, body = doJSON(t, app, http.MethodDelete, "/api/posts/"+post.ID, alice, nil)
	require.Equal(t, http.StatusOK, status, string(body))
	var deleted map[string]string
	require.NoError(t, json.Unmarshal(body, &deleted))
	assert.Equal(t, post.ID, deleted["id"])

	status, body = doJSON(t, app, http.MethodGet, "/api/posts/"+post.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, models.CodeNotFound, decodeError(t, body).Code)
}

func TestCreatePost_ErrorStatuses(t *testing.T) {
	app, _ := setupApp(t, nil)

	tests := []struct {
		name           string
		auth           string
		body           any
		expectedStatus int
		expectedCode   string
	}{
		{"Anonymous", "", fiber.Map{"body": "hi"}, http.StatusUnauthorized, models.CodeUnauthenticated},
		{"Not Registered", bearer(t, "idp_ghost"), fiber.Map{"body": "hi"}, http.StatusForbidden, models.CodeNotRegistered},
		{"Invalid Body", registerUser(t, app, "carol"), fiber.Map{"body": "   "}, http.StatusBadRequest, models.CodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := doJSON(t, app, http.MethodPost, "/api/posts", tt.auth, tt.body)
			assert.Equal(t, tt.expectedStatus, status)
			assert.Equal(t, tt.expectedCode, decodeError(t, body).Code)
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/api/posts", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUserRoutes(t *testing.T) {
	app, _ := setupApp(t, nil)
	auth := registerUser(t, app, "dave")

	status, body := doJSON(t, app, http.MethodGet, "/api/users/identity/idp_dave", "", nil)
	require.Equal(t, http.StatusOK, status)
	var user models.User
	require.NoError(t, json.Unmarshal(body, &user))
	assert.Equal(t, "dave", user.Username)

	status, body = doJSON(t, app, http.MethodGet, "/api/users/"+user.ID, "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), `"identity_id":"idp_dave"`)

	status, body = doJSON(t, app, http.MethodPatch, "/api/users/me", auth, fiber.Map{"username": "david"})
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Contains(t, string(body), `"username":"david"`)

	status, _ = doJSON(t, app, http.MethodPost, "/api/users/register", auth, fiber.Map{
		"username": "dave2",
		"email":    "dave2@example.com",
	})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = doJSON(t, app, http.MethodGet, "/api/users/not-a-uuid", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestExecuteOperation(t *testing.T) {
	app, _ := setupApp(t, nil)
	auth := registerUser(t, app, "erin")

	status, body := doJSON(t, app, http.MethodPost, "/api/ops", auth, fiber.Map{
		"operation": "createPost",
		"input":     fiber.Map{"body": "via ops"},
	})
	require.Equal(t, http.StatusOK, status, string(body))
	var created struct {
		Operation string       `json:"operation"`
		Post      *models.Post `json:"post"`
	}
	require.NoError(t, json.Unmarshal(body, &created))
	assert.Equal(t, "createPost", created.Operation)
	require.NotNil(t, created.Post)
	assert.Equal(t, "via ops", created.Post.Body)

	status, body = doJSON(t, app, http.MethodPost, "/api/ops", "", fiber.Map{
		"operation": "getPost",
		"input":     fiber.Map{"post_id": created.Post.ID},
	})
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Contains(t, string(body), created.Post.ID)

	status, body = doJSON(t, app, http.MethodPost, "/api/ops", auth, fiber.Map{
		"operation": "renamePost",
		"input":     fiber.Map{},
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, models.CodeInvalidInput, decodeError(t, body).Code)

	status, _ = doJSON(t, app, http.MethodPost, "/api/ops", auth, fiber.Map{
		"operation": "createPost",
		"input":     fiber.Map{"body": "x", "title": "unexpected"},
	})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestMutationsPublishEvents(t *testing.T) {
	app, s := setupApp(t, nil)
	auth := registerUser(t, app, "frank")

	sub := s.Broker().Subscribe(notifications.TopicPostAdded)
	defer sub.Unsubscribe()

	status, body := doJSON(t, app, http.MethodPost, "/api/posts", auth, fiber.Map{"body": "evented"})
	require.Equal(t, http.StatusCreated, status)
	post := decodePost(t, body)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ev, err := sub.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, notifications.TopicPostAdded, ev.Topic)
	assert.Equal(t, post.ID, ev.PostID)
}

func TestWebsocketRoute_RejectsBadRequests(t *testing.T) {
	app, _ := setupApp(t, nil)

	status, body := doJSON(t, app, http.MethodGet, "/ws?topics=post-added,bogus", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, models.CodeInvalidInput, decodeError(t, body).Code)

	// Plain HTTP without the upgrade handshake.
	status, _ = doJSON(t, app, http.MethodGet, "/ws?topics=post-added", "", nil)
	assert.Equal(t, http.StatusUpgradeRequired, status)
}

func TestCachedReads_WithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	app, _ := setupApp(t, rdb)
	auth := registerUser(t, app, "grace")

	status, body := doJSON(t, app, http.MethodPost, "/api/posts", auth, fiber.Map{"body": "cache me"})
	require.Equal(t, http.StatusCreated, status)
	post := decodePost(t, body)

	status, _ = doJSON(t, app, http.MethodGet, "/api/posts/"+post.ID, "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, mr.Exists("post:"+post.ID))

	// A like writes the committed copy through so the next read sees it.
	status, _ = doJSON(t, app, http.MethodPost, "/api/posts/"+post.ID+"/like", auth, nil)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, mr.Exists("post:"+post.ID))

	status, body = doJSON(t, app, http.MethodGet, "/api/posts/"+post.ID, "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, decodePost(t, body).LikeCount)

	status, _ = doJSON(t, app, http.MethodDelete, "/api/posts/"+post.ID, auth, nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = doJSON(t, app, http.MethodGet, "/api/posts/"+post.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, body = doJSON(t, app, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), `"redis":"healthy"`)
}
