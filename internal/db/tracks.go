package db

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/confkit/confkit/internal/model"
)

type trackRow struct {
	Name string `db:"name"`
	Day  int    `db:"day"`
	Date int64  `db:"date"`
}

func (r trackRow) decode() model.Track {
	return model.Track{Name: r.Name, Day: r.Day, Date: time.Unix(r.Date, 0).UTC()}
}

// AllTracks fetches every distinct track, alphabetically.
func (e *Engine) AllTracks(cb func([]model.Track, error)) {
	e.submitRead(func(rejected error) {
		if rejected != nil {
			cb(nil, rejected)
			return
		}
		cb(allTracks(e.db))
	})
}

func (e *Engine) AllTracksSync() ([]model.Track, error) {
	type res struct {
		tracks []model.Track
		err    error
	}
	done := make(chan res, 1)
	e.AllTracks(func(tracks []model.Track, err error) { done <- res{tracks, err} })
	r := <-done
	return r.tracks, r.err
}

// TrackByName fetches one track by exact name; absence is ErrNotFound.
func (e *Engine) TrackByName(name string, cb func(model.Track, error)) {
	e.submitRead(func(rejected error) {
		if rejected != nil {
			cb(model.Track{}, rejected)
			return
		}
		cb(trackByName(e.db, name))
	})
}

func (e *Engine) TrackByNameSync(name string) (model.Track, error) {
	type res struct {
		track model.Track
		err   error
	}
	done := make(chan res, 1)
	e.TrackByName(name, func(track model.Track, err error) { done <- res{track, err} })
	r := <-done
	return r.track, r.err
}

func allTracks(db *sqlx.DB) ([]model.Track, error) {
	var rows []trackRow
	const q = `SELECT name, day, date FROM tracks ORDER BY name;`
	if err := db.Select(&rows, q); err != nil {
		log.Error().Err(err).Msg("AllTracks failed")
		return nil, err
	}
	out := make([]model.Track, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.decode())
	}
	return out, nil
}

func trackByName(db *sqlx.DB, name string) (model.Track, error) {
	var row trackRow
	err := db.Get(&row, `SELECT name, day, date FROM tracks WHERE name = ?;`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Track{}, ErrNotFound
	}
	if err != nil {
		log.Error().Err(err).Str("track", name).Msg("TrackByName failed")
		return model.Track{}, err
	}
	return row.decode(), nil
}
