// Package schedule decodes the conference-schedule XML dialect into the
// domain model. The decoder is a hand-written stack machine over raw XML
// tokens rather than a struct unmarshaller: the dialect exists in two
// historical structurings (events nested directly under day, or grouped
// under intermediate room elements) and real archives contain partially
// malformed records that a strict unmarshal would reject wholesale.
package schedule

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/confkit/confkit/internal/model"
)

const dateLayout = "2006-01-02"

// Parser decodes schedule documents, emitting leaf-entity diagnostics
// through the injected logger. Use the package-level Parse to log through
// the global logger instead.
type Parser struct {
	log zerolog.Logger
}

func NewParser(logger zerolog.Logger) *Parser {
	return &Parser{log: logger}
}

// Parse decodes one schedule document using the package-global logger
// for leaf-entity diagnostics.
func Parse(r io.Reader) (*model.Schedule, error) {
	return NewParser(log.Logger).Parse(r)
}

func ParseBytes(b []byte) (*model.Schedule, error) {
	return Parse(bytes.NewReader(b))
}

// Parse runs the stack machine over the token stream. A leaf-entity
// failure (one malformed link, person, attachment or event) drops that
// entity with a diagnostic and keeps going; structural failures (missing
// conference, unparsable day date) abort with a descriptive error.
func (p *Parser) Parse(r io.Reader) (*model.Schedule, error) {
	st := &parseState{log: p.log}
	dec := xml.NewDecoder(r)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("schedule: malformed document: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			st.push(t)
		case xml.CharData:
			st.text(t)
		case xml.EndElement:
			if err := st.pop(t.Name.Local); err != nil {
				return nil, err
			}
		}
	}

	if st.schedule == nil {
		return nil, fmt.Errorf("schedule: document contains no schedule element")
	}
	return st.schedule, nil
}

// frame is one entry of the element stack: the element name plus its
// attribute map. Character data accumulates under the synthetic "value"
// key; child attribute elements merge their value up into this map.
type frame struct {
	name  string
	attrs map[string]string
}

type parseState struct {
	log   zerolog.Logger
	stack []frame

	conference *model.Conference
	days       []model.Day
	schedule   *model.Schedule

	// Per-day buffers. Events accumulate in events as they close; a
	// closing room element moves them into roomEvents so that both
	// dialects merge at day close (room-collected first, then direct).
	events     []model.Event
	roomEvents []model.Event

	// Per-event buffers.
	links       []model.Link
	people      []model.Person
	attachments []model.Attachment
}

func (st *parseState) push(t xml.StartElement) {
	attrs := make(map[string]string, len(t.Attr)+1)
	for _, a := range t.Attr {
		attrs[a.Name.Local] = a.Value
	}
	st.stack = append(st.stack, frame{name: t.Name.Local, attrs: attrs})
}

func (st *parseState) text(t xml.CharData) {
	if len(st.stack) == 0 {
		return
	}
	s := strings.TrimSpace(string(t))
	if s == "" {
		return
	}
	top := st.stack[len(st.stack)-1]
	if prev := top.attrs["value"]; prev != "" {
		s = prev + " " + s
	}
	top.attrs["value"] = s
}

func (st *parseState) pop(name string) error {
	if len(st.stack) == 0 {
		return fmt.Errorf("schedule: unexpected closing element %q", name)
	}
	f := st.stack[len(st.stack)-1]
	st.stack = st.stack[:len(st.stack)-1]

	switch f.name {
	case "link":
		st.endLink(f)
	case "person":
		st.endPerson(f)
	case "attachment":
		st.endAttachment(f)
	case "event":
		return st.endEvent(f)
	case "room":
		// room appears in both roles: as an attribute element inside an
		// event (its value merges up like title or track), and as the
		// later dialect's day-level wrapper grouping events.
		if len(st.stack) > 0 && st.stack[len(st.stack)-1].name == "event" {
			st.mergeUp(f)
		} else {
			st.endRoom(f)
		}
	case "day":
		return st.endDay(f)
	case "conference":
		return st.endConference(f)
	case "schedule":
		if st.conference == nil {
			return fmt.Errorf("schedule: missing conference element")
		}
		st.schedule = &model.Schedule{Conference: *st.conference, Days: st.days}
	default:
		// Attribute element (start, duration, track, title, abstract,
		// venue, ...): merge the captured value up into the parent so
		// the enclosing event or conference sees it as an attribute.
		st.mergeUp(f)
	}
	return nil
}

func (st *parseState) mergeUp(f frame) {
	if len(st.stack) == 0 {
		return
	}
	if v, ok := f.attrs["value"]; ok {
		st.stack[len(st.stack)-1].attrs[f.name] = v
	}
}

func (st *parseState) endLink(f frame) {
	href, okHref := f.attrs["href"]
	name, okName := f.attrs["value"]
	if !okHref || !okName {
		st.log.Warn().
			Str("element", "link").
			Str("href", f.attrs["href"]).
			Str("value", f.attrs["value"]).
			Msg("skipping malformed link")
		return
	}
	// Upstream data occasionally pads hrefs with whitespace.
	st.links = append(st.links, model.Link{Name: name, URL: strings.TrimSpace(href)})
}

func (st *parseState) endPerson(f frame) {
	rawID, okID := f.attrs["id"]
	name, okName := f.attrs["value"]
	id, err := strconv.Atoi(rawID)
	if !okID || !okName || err != nil {
		st.log.Warn().
			Str("element", "person").
			Str("id", rawID).
			Str("value", f.attrs["value"]).
			Msg("skipping malformed person")
		return
	}
	st.people = append(st.people, model.Person{ID: id, Name: name})
}

func (st *parseState) endAttachment(f frame) {
	href, okHref := f.attrs["href"]
	kind, okKind := f.attrs["type"]
	if !okHref || !okKind {
		st.log.Warn().
			Str("element", "attachment").
			Str("href", f.attrs["href"]).
			Str("type", f.attrs["type"]).
			Msg("skipping malformed attachment")
		return
	}
	st.attachments = append(st.attachments, model.Attachment{
		Kind: model.ParseAttachmentKind(kind),
		URL:  strings.TrimSpace(href),
		Name: f.attrs["value"],
	})
}

func (st *parseState) endEvent(f frame) error {
	date, err := st.enclosingDayDate()
	if err != nil {
		return err
	}

	ev, err := buildEvent(f.attrs, date)
	if err != nil {
		st.log.Warn().Err(err).
			Str("element", "event").
			Str("id", f.attrs["id"]).
			Msg("skipping malformed event")
		st.resetEventBuffers()
		return nil
	}

	ev.Links = st.links
	ev.People = st.people
	ev.Attachments = st.attachments
	st.events = append(st.events, ev)
	st.resetEventBuffers()
	return nil
}

func buildEvent(attrs map[string]string, date time.Time) (model.Event, error) {
	id, err := strconv.Atoi(attrs["id"])
	if err != nil {
		return model.Event{}, fmt.Errorf("invalid event id %q", attrs["id"])
	}

	var start, duration *model.TimeOfDay
	if raw, ok := attrs["start"]; ok {
		if start, err = parseTimeOfDay(raw); err != nil {
			return model.Event{}, fmt.Errorf("event %d: invalid start %q", id, raw)
		}
	}
	if raw, ok := attrs["duration"]; ok {
		if duration, err = parseTimeOfDay(raw); err != nil {
			return model.Event{}, fmt.Errorf("event %d: invalid duration %q", id, raw)
		}
	}

	ts := date
	if start != nil {
		ts = date.Add(time.Duration(start.Hour)*time.Hour + time.Duration(start.Minute)*time.Minute)
	}

	return model.Event{
		ID:       id,
		Room:     attrs["room"],
		Track:    attrs["track"],
		Title:    attrs["title"],
		Subtitle: attrs["subtitle"],
		Summary:  attrs["description"],
		Abstract: attrs["abstract"],
		Date:     ts,
		Start:    start,
		Duration: duration,
	}, nil
}

// parseTimeOfDay parses "HH:MM" (a single-digit hour is tolerated).
func parseTimeOfDay(s string) (*model.TimeOfDay, error) {
	hh, mm, ok := strings.Cut(s, ":")
	if !ok {
		return nil, fmt.Errorf("not a HH:MM value: %q", s)
	}
	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 0 || hour > 23 {
		return nil, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || minute < 0 || minute > 59 {
		return nil, fmt.Errorf("invalid minute in %q", s)
	}
	return &model.TimeOfDay{Hour: hour, Minute: minute}, nil
}

// enclosingDayDate resolves the date of the day element the cursor is
// currently inside. An event outside a day, or a day with a missing or
// unparsable date, is a structural failure.
func (st *parseState) enclosingDayDate() (time.Time, error) {
	for i := len(st.stack) - 1; i >= 0; i-- {
		if st.stack[i].name != "day" {
			continue
		}
		raw, ok := st.stack[i].attrs["date"]
		if !ok {
			return time.Time{}, fmt.Errorf("schedule: day element without date attribute")
		}
		date, err := time.Parse(dateLayout, raw)
		if err != nil {
			return time.Time{}, fmt.Errorf("schedule: invalid day date %q", raw)
		}
		return date, nil
	}
	return time.Time{}, fmt.Errorf("schedule: event outside of a day element")
}

// endRoom moves the events buffered since the room opened into the
// room-collected buffer, stamping the room name onto events that did not
// carry their own room attribute element.
func (st *parseState) endRoom(f frame) {
	name := f.attrs["name"]
	for i := range st.events {
		if st.events[i].Room == "" {
			st.events[i].Room = name
		}
	}
	st.roomEvents = append(st.roomEvents, st.events...)
	st.events = nil
}

func (st *parseState) endDay(f frame) error {
	index, err := strconv.Atoi(f.attrs["index"])
	if err != nil {
		return fmt.Errorf("schedule: invalid day index %q", f.attrs["index"])
	}
	raw, ok := f.attrs["date"]
	if !ok {
		return fmt.Errorf("schedule: day element without date attribute")
	}
	date, err := time.Parse(dateLayout, raw)
	if err != nil {
		return fmt.Errorf("schedule: invalid day date %q", raw)
	}

	// Old archives have no room wrapper; newer ones wrap every event.
	// Merging room-collected first, then direct, keeps both dialects
	// (and mixed documents) lossless in a stable order.
	events := make([]model.Event, 0, len(st.roomEvents)+len(st.events))
	events = append(events, st.roomEvents...)
	events = append(events, st.events...)

	st.days = append(st.days, model.Day{Index: index, Date: date, Events: events})
	st.events = nil
	st.roomEvents = nil
	st.resetEventBuffers()
	return nil
}

func (st *parseState) endConference(f frame) error {
	start, err := time.Parse(dateLayout, f.attrs["start"])
	if err != nil {
		return fmt.Errorf("schedule: invalid conference start %q", f.attrs["start"])
	}
	end, err := time.Parse(dateLayout, f.attrs["end"])
	if err != nil {
		return fmt.Errorf("schedule: invalid conference end %q", f.attrs["end"])
	}
	st.conference = &model.Conference{
		Title:    f.attrs["title"],
		Subtitle: f.attrs["subtitle"],
		Venue:    f.attrs["venue"],
		City:     f.attrs["city"],
		Start:    start,
		End:      end,
	}
	return nil
}

func (st *parseState) resetEventBuffers() {
	st.links = nil
	st.people = nil
	st.attachments = nil
}
