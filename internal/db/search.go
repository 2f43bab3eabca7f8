package db

import (
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/confkit/confkit/internal/model"
)

// SearchEvents runs a full-text query across the searchable columns
// (title, subtitle, summary, abstract, track, people, links). Terms are
// matched as prefixes, so partial words find their events.
func (e *Engine) SearchEvents(query string, cb func([]model.Event, error)) {
	e.submitRead(func(rejected error) {
		if rejected != nil {
			cb(nil, rejected)
			return
		}
		cb(searchEvents(e.db, query))
	})
}

func (e *Engine) SearchEventsSync(query string) ([]model.Event, error) {
	type res struct {
		events []model.Event
		err    error
	}
	done := make(chan res, 1)
	e.SearchEvents(query, func(events []model.Event, err error) { done <- res{events, err} })
	r := <-done
	return r.events, r.err
}

func searchEvents(db *sqlx.DB, query string) ([]model.Event, error) {
	match := matchExpression(query)
	if match == "" {
		return []model.Event{}, nil
	}

	var rows []eventRow
	const q = `
	SELECT e.*
	  FROM events_fts
	  JOIN events e ON e.id = events_fts.rowid
	 WHERE events_fts MATCH ?
	 ORDER BY rank;`
	if err := db.Select(&rows, q, match); err != nil {
		log.Error().Err(err).Str("query", query).Msg("SearchEvents failed")
		return nil, err
	}
	return decodeEvents(rows)
}

// matchExpression turns free text into an FTS5 match expression: each
// whitespace-separated term becomes a quoted prefix token, so user input
// can never be parsed as FTS query syntax.
func matchExpression(query string) string {
	terms := strings.Fields(query)
	parts := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ReplaceAll(t, `"`, `""`)
		parts = append(parts, `"`+t+`"*`)
	}
	return strings.Join(parts, " ")
}
