package api

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/PACTF/pactf/internal/auth"
	"github.com/PACTF/pactf/internal/config"
	"github.com/PACTF/pactf/internal/contest"
	"github.com/PACTF/pactf/internal/database"
	"github.com/PACTF/pactf/internal/database/models"
	"github.com/PACTF/pactf/internal/pubsub"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type wsFixture struct {
	server *httptest.Server
	broker *pubsub.Broker
	window *models.Window
	token  string

	// closed when the handler for the (single) test connection returns
	done chan struct{}
}

func newWsFixture(t *testing.T) *wsFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	window := &models.Window{
		Code:                  "w",
		Start:                 time.Now(),
		End:                   time.Now().Add(time.Hour),
		PersonalTimerDuration: time.Hour,
	}
	require.NoError(t, database.CreateWindow(db, window))

	cfg := &config.Config{}
	cfg.Auth.JWT.Secret = "secret"
	cfg.Auth.JWT.ExpireHours = 1

	broker := pubsub.NewBroker()
	h := NewHandler(cfg, db, nil, nil, broker)

	done := make(chan struct{})
	r := gin.New()
	r.GET("/ws/windows/:code/board", func(c *gin.Context) {
		h.handleBoardWs(c)
		close(done)
	})

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)

	token, err := auth.GenerateJWT(1, cfg.Auth.JWT.Secret, cfg.Auth.JWT.ExpireHours)
	require.NoError(t, err)

	return &wsFixture{server: server, broker: broker, window: window, token: token, done: done}
}

func (f *wsFixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws/windows/w/board?token=" + f.token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func TestBoardWsStreamsEvents(t *testing.T) {
	f := newWsFixture(t)
	conn := f.dial(t)
	defer conn.Close()

	f.broker.Publish(contest.BoardTopic(f.window.ID), []byte(`{"type":"solve"}`))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"solve"}`, string(msg))
}

func TestBoardWsReleasesHandlerOnDisconnect(t *testing.T) {
	f := newWsFixture(t)
	conn := f.dial(t)

	require.NoError(t, conn.Close())

	// The handler must return on its own; no further event is ever published
	// on the topic.
	select {
	case <-f.done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler still running after client disconnect")
	}
}

func TestBoardWsRequiresToken(t *testing.T) {
	f := newWsFixture(t)

	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws/windows/w/board"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	assert.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
