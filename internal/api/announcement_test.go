package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/PACTF/pactf/internal/config"
	"github.com/PACTF/pactf/internal/contest"
	"github.com/PACTF/pactf/internal/database"
	"github.com/PACTF/pactf/internal/database/models"
	"github.com/PACTF/pactf/internal/pubsub"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type announcementFixture struct {
	router *gin.Engine
	broker *pubsub.Broker
	window *models.Window
}

// newAnnouncementFixture routes the announcement handlers directly; middleware
// is covered elsewhere.
func newAnnouncementFixture(t *testing.T) *announcementFixture {
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

	broker := pubsub.NewBroker()
	h := NewHandler(&config.Config{}, db, nil, nil, broker)

	r := gin.New()
	r.GET("/windows/:code/announcements", h.getAnnouncements)
	r.POST("/windows/:code/announcements", h.postAnnouncement)
	r.DELETE("/windows/:code/announcements/:id", h.deleteAnnouncement)

	return &announcementFixture{router: r, broker: broker, window: window}
}

func (f *announcementFixture) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, json.RawMessage) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var resp struct {
		Code    int             `json:"code"`
		Data    json.RawMessage `json:"data"`
		Message string          `json:"message"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp.Data
}

func TestAnnouncementLifecycle(t *testing.T) {
	f := newAnnouncementFixture(t)

	events, unsubscribe := f.broker.Subscribe(contest.BoardTopic(f.window.ID))
	defer unsubscribe()

	w, data := f.do(t, http.MethodPost, "/windows/w/announcements",
		`{"title":"Downtime", "body":"Back in five minutes."}`)
	require.Equal(t, http.StatusOK, w.Code)

	var posted models.Announcement
	require.NoError(t, json.Unmarshal(data, &posted))
	assert.Equal(t, "Downtime", posted.Title)

	// Connected board viewers get the announcement pushed.
	select {
	case msg := <-events:
		assert.Contains(t, string(msg), `"announcement"`)
		assert.Contains(t, string(msg), "Downtime")
	case <-time.After(time.Second):
		t.Fatal("no announcement event published")
	}

	w, data = f.do(t, http.MethodGet, "/windows/w/announcements", "")
	require.Equal(t, http.StatusOK, w.Code)
	var listed []models.Announcement
	require.NoError(t, json.Unmarshal(data, &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, "Back in five minutes.", listed[0].Body)

	delPath := fmt.Sprintf("/windows/w/announcements/%d", posted.ID)
	w, _ = f.do(t, http.MethodDelete, delPath, "")
	require.Equal(t, http.StatusOK, w.Code)

	w, data = f.do(t, http.MethodGet, "/windows/w/announcements", "")
	require.Equal(t, http.StatusOK, w.Code)
	listed = nil
	require.NoError(t, json.Unmarshal(data, &listed))
	assert.Empty(t, listed)

	w, _ = f.do(t, http.MethodDelete, delPath, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAnnouncementsUnknownWindow(t *testing.T) {
	f := newAnnouncementFixture(t)

	w, _ := f.do(t, http.MethodGet, "/windows/nope/announcements", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
