package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/confkit/confkit/internal/api"
	"github.com/confkit/confkit/internal/db"
	"github.com/confkit/confkit/internal/model"
)

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	engine, err := db.Open(db.Options{Path: filepath.Join(t.TempDir(), "confkit.db")})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = engine.Close() })

	date := time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC)
	err = engine.ReplaceScheduleSync(&model.Schedule{
		Conference: model.Conference{Title: "GopherConf", Start: date, End: date},
		Days: []model.Day{{
			Index: 1,
			Date:  date,
			Events: []model.Event{
				{ID: 1, Track: "Go", Title: "Generics in anger", Abstract: "type parameters in production", Date: date},
				{ID: 2, Track: "Community", Title: "Lightning talks", Date: date},
			},
		}},
	})
	assert.NoError(t, err)

	r := gin.New()
	group := r.Group("/api")
	api.RegisterQueryRoutes(group, engine)
	return r
}

func get(t *testing.T, r *gin.Engine, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestListTracks(t *testing.T) {
	r := setupRouter(t)

	w := get(t, r, "/api/tracks")
	assert.Equal(t, http.StatusOK, w.Code)

	var tracks []model.Track
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &tracks))
	assert.Len(t, tracks, 2)
	assert.Equal(t, "Community", tracks[0].Name)
	assert.Equal(t, "Go", tracks[1].Name)
}

func TestGetTrack(t *testing.T) {
	r := setupRouter(t)

	w := get(t, r, "/api/tracks/Go")
	assert.Equal(t, http.StatusOK, w.Code)

	w = get(t, r, "/api/tracks/Haskell")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListTrackEvents(t *testing.T) {
	r := setupRouter(t)

	w := get(t, r, "/api/tracks/Go/events")
	assert.Equal(t, http.StatusOK, w.Code)

	var events []model.Event
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &events))
	assert.Len(t, events, 1)
	assert.Equal(t, 1, events[0].ID)
}

func TestListEventsByIDs(t *testing.T) {
	r := setupRouter(t)

	w := get(t, r, "/api/events?ids=1,2")
	assert.Equal(t, http.StatusOK, w.Code)
	var events []model.Event
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &events))
	assert.Len(t, events, 2)

	w = get(t, r, "/api/events?ids=")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())

	w = get(t, r, "/api/events?ids=one")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSearch(t *testing.T) {
	r := setupRouter(t)

	w := get(t, r, "/api/search?q=parameters")
	assert.Equal(t, http.StatusOK, w.Code)

	var events []model.Event
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &events))
	assert.Len(t, events, 1)
	assert.Equal(t, 1, events[0].ID)
}
