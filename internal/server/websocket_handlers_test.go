package server

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"socialfeed/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listen(t *testing.T, app *fiber.App, s *Server) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
		_ = app.ShutdownWithTimeout(2 * time.Second)
	})
	return ln.Addr().String()
}

func dial(t *testing.T, addr, query string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws"+query, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

type wsFrame struct {
	Type    string      `json:"type"`
	Seq     uint64      `json:"seq"`
	Payload models.Post `json:"payload"`
}

func TestWebsocket_DeliversFilteredFrames(t *testing.T) {
	app, s := setupApp(t, nil)
	addr := listen(t, app, s)
	auth := registerUser(t, app, "heidi")

	conn := dial(t, addr, "?topics=post-liked")
	require.Eventually(t, func() bool { return s.hub.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	status, body := doJSON(t, app, http.MethodPost, "/api/posts", auth, fiber.Map{"body": "watch this"})
	require.Equal(t, http.StatusCreated, status)
	post := decodePost(t, body)

	status, _ = doJSON(t, app, http.MethodPost, "/api/posts/"+post.ID+"/like", auth, nil)
	require.Equal(t, http.StatusOK, status)

	// post-added is filtered out, so the first frame is the like.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame wsFrame
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "post-liked", frame.Type)
	assert.Equal(t, post.ID, frame.Payload.ID)
	assert.Equal(t, 1, frame.Payload.LikeCount)
}

func TestWebsocket_DisconnectDetaches(t *testing.T) {
	app, s := setupApp(t, nil)
	addr := listen(t, app, s)

	conn := dial(t, addr, "")
	require.Eventually(t, func() bool { return s.hub.Count() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, 1, s.Broker().SubscriberCount())

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool {
		return s.hub.Count() == 0 && s.Broker().SubscriberCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}
