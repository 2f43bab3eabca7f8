package db

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

// schemaVersion is the version a fully migrated store reports through
// PRAGMA user_version.
const schemaVersion = 2

type migration struct {
	version    int
	statements []string
}

// migrations is the ordered schema history. Entries are append-only: a
// released version's statements never change, schema evolution adds a new
// entry with the next version number.
var migrations = []migration{
	{
		version: 1,
		statements: []string{
			`CREATE TABLE events (
				id          INTEGER PRIMARY KEY,
				position    INTEGER NOT NULL DEFAULT 0,
				room        TEXT NOT NULL DEFAULT '',
				track       TEXT NOT NULL DEFAULT '',
				title       TEXT NOT NULL DEFAULT '',
				subtitle    TEXT NOT NULL DEFAULT '',
				summary     TEXT NOT NULL DEFAULT '',
				abstract    TEXT NOT NULL DEFAULT '',
				date        INTEGER NOT NULL DEFAULT 0,
				start       TEXT,
				duration    TEXT,
				links       TEXT,
				people      TEXT,
				attachments TEXT
			)`,
			`CREATE INDEX idx_events_room ON events (room)`,
			`CREATE INDEX idx_events_track ON events (track)`,
			`CREATE INDEX idx_events_date ON events (date)`,
			`CREATE TABLE tracks (
				name TEXT PRIMARY KEY,
				day  INTEGER NOT NULL DEFAULT 0,
				date INTEGER NOT NULL DEFAULT 0
			)`,
			`CREATE TABLE people (
				id   INTEGER PRIMARY KEY,
				name TEXT NOT NULL DEFAULT ''
			)`,
			`CREATE TABLE participations (
				person_id INTEGER NOT NULL REFERENCES people (id) ON DELETE CASCADE,
				event_id  INTEGER NOT NULL REFERENCES events (id) ON DELETE CASCADE,
				PRIMARY KEY (person_id, event_id)
			)`,
		},
	},
	{
		// Full-text index over the searchable columns of events. The
		// external-content table reads row data straight out of events;
		// the triggers keep it synchronized with every change. The
		// nested people/links columns hold JSON text, which unicode61
		// tokenizes into searchable names just fine.
		version: 2,
		statements: []string{
			`CREATE VIRTUAL TABLE events_fts USING fts5(
				title, subtitle, summary, abstract, track, people, links,
				content='events', content_rowid='id',
				tokenize='unicode61'
			)`,
			`CREATE TRIGGER events_fts_insert AFTER INSERT ON events BEGIN
				INSERT INTO events_fts (rowid, title, subtitle, summary, abstract, track, people, links)
				VALUES (new.id, new.title, new.subtitle, new.summary, new.abstract, new.track, new.people, new.links);
			END`,
			`CREATE TRIGGER events_fts_delete AFTER DELETE ON events BEGIN
				INSERT INTO events_fts (events_fts, rowid, title, subtitle, summary, abstract, track, people, links)
				VALUES ('delete', old.id, old.title, old.subtitle, old.summary, old.abstract, old.track, old.people, old.links);
			END`,
			`CREATE TRIGGER events_fts_update AFTER UPDATE ON events BEGIN
				INSERT INTO events_fts (events_fts, rowid, title, subtitle, summary, abstract, track, people, links)
				VALUES ('delete', old.id, old.title, old.subtitle, old.summary, old.abstract, old.track, old.people, old.links);
				INSERT INTO events_fts (rowid, title, subtitle, summary, abstract, track, people, links)
				VALUES (new.id, new.title, new.subtitle, new.summary, new.abstract, new.track, new.people, new.links);
			END`,
		},
	},
}

// migrate applies every migration newer than the store's current version,
// each in its own transaction that also bumps PRAGMA user_version. Running
// the full list against an already migrated store is a no-op.
func migrate(db *sqlx.DB) error {
	var current int
	if err := db.Get(&current, `PRAGMA user_version`); err != nil {
		return fmt.Errorf("db: read schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		tx, err := db.Beginx()
		if err != nil {
			return fmt.Errorf("db: begin migration %d: %w", m.version, err)
		}
		for _, stmt := range m.statements {
			if _, err := tx.Exec(stmt); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("db: migration %d: %w", m.version, err)
			}
		}
		if _, err := tx.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, m.version)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("db: migration %d: set version: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("db: commit migration %d: %w", m.version, err)
		}
		log.Info().Int("version", m.version).Msg("applied schema migration")
	}
	return nil
}
