// Package api exposes the query operations over a local read-only HTTP
// surface. It is a thin veneer: every handler submits one operation to
// the engine and marshals the completion result, so the engine's
// asynchronous contract stays the only entry point into the core.
package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/confkit/confkit/internal/db"
	"github.com/confkit/confkit/internal/model"
)

type Controller struct {
	engine *db.Engine
}

func NewController(engine *db.Engine) *Controller {
	return &Controller{engine: engine}
}

func RegisterQueryRoutes(r gin.IRoutes, engine *db.Engine) {
	ctl := NewController(engine)
	r.GET("/tracks", ctl.listTracks)
	r.GET("/tracks/:name", ctl.getTrack)
	r.GET("/tracks/:name/events", ctl.listTrackEvents)
	r.GET("/events", ctl.listEventsByIDs)
	r.GET("/events/soon", ctl.listStartingSoon)
	r.GET("/search", ctl.searchEvents)
}

// eventsResult pairs an operation's value and error so a handler can
// block on a single channel for the completion callback.
type eventsResult struct {
	events []model.Event
	err    error
}

// GET /api/tracks
func (ctl *Controller) listTracks(c *gin.Context) {
	type result struct {
		tracks []model.Track
		err    error
	}
	done := make(chan result, 1)
	ctl.engine.AllTracks(func(tracks []model.Track, err error) {
		done <- result{tracks, err}
	})
	r := <-done
	if r.err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": r.err.Error()})
		return
	}
	c.JSON(http.StatusOK, r.tracks)
}

// GET /api/tracks/:name
func (ctl *Controller) getTrack(c *gin.Context) {
	type result struct {
		track model.Track
		err   error
	}
	done := make(chan result, 1)
	ctl.engine.TrackByName(c.Param("name"), func(track model.Track, err error) {
		done <- result{track, err}
	})
	r := <-done
	if errors.Is(r.err, db.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "track not found"})
		return
	}
	if r.err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": r.err.Error()})
		return
	}
	c.JSON(http.StatusOK, r.track)
}

// GET /api/tracks/:name/events
func (ctl *Controller) listTrackEvents(c *gin.Context) {
	done := make(chan eventsResult, 1)
	ctl.engine.EventsForTrack(c.Param("name"), func(events []model.Event, err error) {
		done <- eventsResult{events, err}
	})
	ctl.respondEvents(c, <-done)
}

// GET /api/events?ids=12,40,7
func (ctl *Controller) listEventsByIDs(c *gin.Context) {
	ids, err := parseIDs(c.Query("ids"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	done := make(chan eventsResult, 1)
	ctl.engine.EventsByIDs(ids, func(events []model.Event, err error) {
		done <- eventsResult{events, err}
	})
	ctl.respondEvents(c, <-done)
}

// GET /api/events/soon
func (ctl *Controller) listStartingSoon(c *gin.Context) {
	done := make(chan eventsResult, 1)
	ctl.engine.EventsStartingSoon(func(events []model.Event, err error) {
		done <- eventsResult{events, err}
	})
	ctl.respondEvents(c, <-done)
}

// GET /api/search?q=...
func (ctl *Controller) searchEvents(c *gin.Context) {
	done := make(chan eventsResult, 1)
	ctl.engine.SearchEvents(c.Query("q"), func(events []model.Event, err error) {
		done <- eventsResult{events, err}
	})
	ctl.respondEvents(c, <-done)
}

func (ctl *Controller) respondEvents(c *gin.Context, r eventsResult) {
	if r.err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": r.err.Error()})
		return
	}
	if r.events == nil {
		r.events = []model.Event{}
	}
	c.JSON(http.StatusOK, r.events)
}

func parseIDs(raw string) ([]int, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]int, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, errors.New("ids must be a comma-separated list of integers")
		}
		ids = append(ids, id)
	}
	return ids, nil
}
