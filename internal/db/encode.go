package db

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/confkit/confkit/internal/model"
)

// eventRow is the relational shape of an Event. Scalar fields get their
// own columns; nested collections and the sparse start/duration pairs are
// serialized into JSON text columns, since the schema only has scalar
// column types. JSON (not a binary codec) keeps the blob-adjacent columns
// tokenizable by the full-text index.
type eventRow struct {
	ID          int64  `db:"id"`
	Position    int64  `db:"position"`
	Room        string `db:"room"`
	Track       string `db:"track"`
	Title       string `db:"title"`
	Subtitle    string `db:"subtitle"`
	Summary     string `db:"summary"`
	Abstract    string `db:"abstract"`
	Date        int64  `db:"date"`
	Start       []byte `db:"start"`
	Duration    []byte `db:"duration"`
	Links       []byte `db:"links"`
	People      []byte `db:"people"`
	Attachments []byte `db:"attachments"`
}

func encodeEvent(ev model.Event, position int64) (eventRow, error) {
	row := eventRow{
		ID:       int64(ev.ID),
		Position: position,
		Room:     ev.Room,
		Track:    ev.Track,
		Title:    ev.Title,
		Subtitle: ev.Subtitle,
		Summary:  ev.Summary,
		Abstract: ev.Abstract,
		Date:     ev.Date.Unix(),
	}

	var err error
	if ev.Start != nil {
		if row.Start, err = json.Marshal(ev.Start); err != nil {
			return eventRow{}, fmt.Errorf("db: encode event %d start: %w", ev.ID, err)
		}
	}
	if ev.Duration != nil {
		if row.Duration, err = json.Marshal(ev.Duration); err != nil {
			return eventRow{}, fmt.Errorf("db: encode event %d duration: %w", ev.ID, err)
		}
	}
	if len(ev.Links) > 0 {
		if row.Links, err = json.Marshal(ev.Links); err != nil {
			return eventRow{}, fmt.Errorf("db: encode event %d links: %w", ev.ID, err)
		}
	}
	if len(ev.People) > 0 {
		if row.People, err = json.Marshal(ev.People); err != nil {
			return eventRow{}, fmt.Errorf("db: encode event %d people: %w", ev.ID, err)
		}
	}
	if len(ev.Attachments) > 0 {
		if row.Attachments, err = json.Marshal(ev.Attachments); err != nil {
			return eventRow{}, fmt.Errorf("db: encode event %d attachments: %w", ev.ID, err)
		}
	}
	return row, nil
}

// decode turns a row back into an Event. A corrupted blob column surfaces
// as an error result, never a panic.
func (r eventRow) decode() (model.Event, error) {
	ev := model.Event{
		ID:       int(r.ID),
		Room:     r.Room,
		Track:    r.Track,
		Title:    r.Title,
		Subtitle: r.Subtitle,
		Summary:  r.Summary,
		Abstract: r.Abstract,
		Date:     time.Unix(r.Date, 0).UTC(),
	}

	if len(r.Start) > 0 {
		if err := json.Unmarshal(r.Start, &ev.Start); err != nil {
			return model.Event{}, fmt.Errorf("db: decode event %d start: %w", r.ID, err)
		}
	}
	if len(r.Duration) > 0 {
		if err := json.Unmarshal(r.Duration, &ev.Duration); err != nil {
			return model.Event{}, fmt.Errorf("db: decode event %d duration: %w", r.ID, err)
		}
	}
	if len(r.Links) > 0 {
		if err := json.Unmarshal(r.Links, &ev.Links); err != nil {
			return model.Event{}, fmt.Errorf("db: decode event %d links: %w", r.ID, err)
		}
	}
	if len(r.People) > 0 {
		if err := json.Unmarshal(r.People, &ev.People); err != nil {
			return model.Event{}, fmt.Errorf("db: decode event %d people: %w", r.ID, err)
		}
	}
	if len(r.Attachments) > 0 {
		if err := json.Unmarshal(r.Attachments, &ev.Attachments); err != nil {
			return model.Event{}, fmt.Errorf("db: decode event %d attachments: %w", r.ID, err)
		}
	}
	return ev, nil
}

func decodeEvents(rows []eventRow) ([]model.Event, error) {
	out := make([]model.Event, 0, len(rows))
	for _, r := range rows {
		ev, err := r.decode()
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}
