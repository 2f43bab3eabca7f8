package db

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/confkit/confkit/internal/model"
)

// startingSoonWindow bounds the EventsStartingSoon query: the window is
// [now, now+30m), the upper bound excluded.
const startingSoonWindow = 30 * time.Minute

// ReplaceSchedule repopulates the store from a parsed schedule in one
// transaction: events, tracks, people and participations are rebuilt and
// the full-text index follows through its triggers.
func (e *Engine) ReplaceSchedule(s *model.Schedule, cb func(error)) {
	e.submitWrite(func(rejected error) {
		if rejected != nil {
			if cb != nil {
				cb(rejected)
			}
			return
		}
		err := replaceSchedule(e.db, s)
		if err == nil {
			e.signalChange()
		}
		if cb != nil {
			cb(err)
		}
	})
}

// ReplaceScheduleSync blocks until the serialized write completes. Bulk
// tooling only: never call it from a foreground context or from inside a
// completion callback.
func (e *Engine) ReplaceScheduleSync(s *model.Schedule) error {
	done := make(chan error, 1)
	e.ReplaceSchedule(s, func(err error) { done <- err })
	return <-done
}

// UpsertEvent writes a single event row (and its track, people and
// participation rows). Position defaults to the event id, so incremental
// writes keep a stable persisted order.
func (e *Engine) UpsertEvent(ev model.Event, cb func(error)) {
	e.submitWrite(func(rejected error) {
		if rejected != nil {
			if cb != nil {
				cb(rejected)
			}
			return
		}
		err := upsertEvent(e.db, ev)
		if err == nil {
			e.signalChange()
		}
		if cb != nil {
			cb(err)
		}
	})
}

// UpsertEventSync carries the same foreground restriction as
// ReplaceScheduleSync.
func (e *Engine) UpsertEventSync(ev model.Event) error {
	done := make(chan error, 1)
	e.UpsertEvent(ev, func(err error) { done <- err })
	return <-done
}

// EventsForTrack fetches a track's events in persisted order.
func (e *Engine) EventsForTrack(name string, cb func([]model.Event, error)) {
	e.submitRead(func(rejected error) {
		if rejected != nil {
			cb(nil, rejected)
			return
		}
		cb(eventsForTrack(e.db, name))
	})
}

func (e *Engine) EventsForTrackSync(name string) ([]model.Event, error) {
	type res struct {
		events []model.Event
		err    error
	}
	done := make(chan res, 1)
	e.EventsForTrack(name, func(events []model.Event, err error) { done <- res{events, err} })
	r := <-done
	return r.events, r.err
}

// EventsByIDs hydrates a set of event ids (favorites hydration). An empty
// id set yields an empty result, not an error.
func (e *Engine) EventsByIDs(ids []int, cb func([]model.Event, error)) {
	e.submitRead(func(rejected error) {
		if rejected != nil {
			cb(nil, rejected)
			return
		}
		cb(eventsByIDs(e.db, ids))
	})
}

func (e *Engine) EventsByIDsSync(ids []int) ([]model.Event, error) {
	type res struct {
		events []model.Event
		err    error
	}
	done := make(chan res, 1)
	e.EventsByIDs(ids, func(events []model.Event, err error) { done <- res{events, err} })
	r := <-done
	return r.events, r.err
}

// EventsStartingSoon fetches events whose start timestamp falls within
// [now, now+30m), evaluated against the engine's injected clock.
func (e *Engine) EventsStartingSoon(cb func([]model.Event, error)) {
	e.submitRead(func(rejected error) {
		if rejected != nil {
			cb(nil, rejected)
			return
		}
		cb(eventsStartingSoon(e.db, e.now()))
	})
}

func (e *Engine) EventsStartingSoonSync() ([]model.Event, error) {
	type res struct {
		events []model.Event
		err    error
	}
	done := make(chan res, 1)
	e.EventsStartingSoon(func(events []model.Event, err error) { done <- res{events, err} })
	r := <-done
	return r.events, r.err
}

func replaceSchedule(db *sqlx.DB, s *model.Schedule) error {
	tx, err := db.Beginx()
	if err != nil {
		return fmt.Errorf("db: begin replace: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Participations first, then events: the FK cascade would handle it,
	// but explicit order keeps the statement list obvious.
	for _, q := range []string{
		`DELETE FROM participations`,
		`DELETE FROM events`,
		`DELETE FROM tracks`,
		`DELETE FROM people`,
	} {
		if _, err := tx.Exec(q); err != nil {
			return fmt.Errorf("db: clear store: %w", err)
		}
	}

	var pos int64
	for _, day := range s.Days {
		for _, ev := range day.Events {
			pos++
			track := model.Track{Name: ev.Track, Day: day.Index, Date: day.Date}
			if err := writeEvent(tx, ev, pos, track); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("db: commit replace: %w", err)
	}
	log.Info().Int64("events", pos).Msg("schedule replaced")
	return nil
}

func upsertEvent(db *sqlx.DB, ev model.Event) error {
	tx, err := db.Beginx()
	if err != nil {
		return fmt.Errorf("db: begin upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	track := model.Track{Name: ev.Track, Date: ev.Date}
	if err := writeEvent(tx, ev, int64(ev.ID), track); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("db: commit upsert: %w", err)
	}
	return nil
}

func writeEvent(tx *sqlx.Tx, ev model.Event, pos int64, track model.Track) error {
	row, err := encodeEvent(ev, pos)
	if err != nil {
		return err
	}

	// ON CONFLICT DO UPDATE (not INSERT OR REPLACE): REPLACE deletes the
	// conflicting row without firing delete triggers, which would desync
	// the full-text index.
	const insertEvent = `
	INSERT INTO events
	  (id, position, room, track, title, subtitle, summary, abstract, date, start, duration, links, people, attachments)
	VALUES
	  (:id, :position, :room, :track, :title, :subtitle, :summary, :abstract, :date, :start, :duration, :links, :people, :attachments)
	ON CONFLICT (id) DO UPDATE SET
	  position = excluded.position, room = excluded.room, track = excluded.track,
	  title = excluded.title, subtitle = excluded.subtitle, summary = excluded.summary,
	  abstract = excluded.abstract, date = excluded.date, start = excluded.start,
	  duration = excluded.duration, links = excluded.links, people = excluded.people,
	  attachments = excluded.attachments;`
	if _, err := tx.NamedExec(insertEvent, row); err != nil {
		log.Error().Err(err).Int("event_id", ev.ID).Msg("event insert failed")
		return fmt.Errorf("db: insert event %d: %w", ev.ID, err)
	}

	if track.Name != "" {
		_, err := tx.Exec(`
		INSERT INTO tracks (name, day, date) VALUES (?, ?, ?)
		ON CONFLICT (name) DO NOTHING;`, track.Name, track.Day, track.Date.Unix())
		if err != nil {
			log.Error().Err(err).Str("track", track.Name).Msg("track insert failed")
			return fmt.Errorf("db: insert track %q: %w", track.Name, err)
		}
	}

	for _, p := range ev.People {
		_, err := tx.Exec(`
		INSERT INTO people (id, name) VALUES (?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name;`, p.ID, p.Name)
		if err != nil {
			return fmt.Errorf("db: insert person %d: %w", p.ID, err)
		}
		_, err = tx.Exec(`
		INSERT OR IGNORE INTO participations (person_id, event_id) VALUES (?, ?);`, p.ID, ev.ID)
		if err != nil {
			return fmt.Errorf("db: insert participation %d/%d: %w", p.ID, ev.ID, err)
		}
	}
	return nil
}

func eventsForTrack(db *sqlx.DB, name string) ([]model.Event, error) {
	var rows []eventRow
	const q = `SELECT * FROM events WHERE track = ? ORDER BY position;`
	if err := db.Select(&rows, q, name); err != nil {
		log.Error().Err(err).Str("track", name).Msg("EventsForTrack failed")
		return nil, err
	}
	return decodeEvents(rows)
}

func eventsByIDs(db *sqlx.DB, ids []int) ([]model.Event, error) {
	if len(ids) == 0 {
		return []model.Event{}, nil
	}
	q, args, err := sqlx.In(`SELECT * FROM events WHERE id IN (?) ORDER BY position;`, ids)
	if err != nil {
		return nil, fmt.Errorf("db: build id query: %w", err)
	}
	var rows []eventRow
	if err := db.Select(&rows, db.Rebind(q), args...); err != nil {
		log.Error().Err(err).Ints("ids", ids).Msg("EventsByIDs failed")
		return nil, err
	}
	return decodeEvents(rows)
}

func eventsStartingSoon(db *sqlx.DB, now time.Time) ([]model.Event, error) {
	var rows []eventRow
	const q = `SELECT * FROM events WHERE date >= ? AND date < ? ORDER BY date, position;`
	if err := db.Select(&rows, q, now.Unix(), now.Add(startingSoonWindow).Unix()); err != nil {
		log.Error().Err(err).Time("now", now).Msg("EventsStartingSoon failed")
		return nil, err
	}
	return decodeEvents(rows)
}
