package model

import "time"

// Schedule is the complete parsed representation of one conference year:
// the conference metadata plus its ordered days. A Schedule is built once
// per ingestion run and never mutated afterwards.
type Schedule struct {
	Conference Conference `json:"conference"`
	Days       []Day      `json:"days"`
}

type Conference struct {
	Title    string    `json:"title"`
	Subtitle string    `json:"subtitle,omitempty"`
	Venue    string    `json:"venue"`
	City     string    `json:"city,omitempty"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
}

type Day struct {
	Index  int       `json:"index"`
	Date   time.Time `json:"date"`
	Events []Event   `json:"events"`
}

// Room groups events during parsing of the room-wrapped dialect. It never
// survives past the parser: its events are absorbed into the owning Day.
type Room struct {
	Name   string  `json:"name"`
	Events []Event `json:"events"`
}

// TimeOfDay is a sparse hour/minute pair used for an event's start time
// and duration, both of which may be absent from the source document.
type TimeOfDay struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

type Event struct {
	ID          int          `json:"id"`
	Room        string       `json:"room"`
	Track       string       `json:"track"`
	Title       string       `json:"title"`
	Subtitle    string       `json:"subtitle,omitempty"`
	Summary     string       `json:"summary,omitempty"`
	Abstract    string       `json:"abstract,omitempty"`
	Date        time.Time    `json:"date"`
	Start       *TimeOfDay   `json:"start,omitempty"`
	Duration    *TimeOfDay   `json:"duration,omitempty"`
	Links       []Link       `json:"links,omitempty"`
	People      []Person     `json:"people,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Equal reports event identity, which is the id alone. Two events with the
// same id compare equal regardless of any other field.
func (e Event) Equal(other Event) bool {
	return e.ID == other.ID
}

// Track identity is the name alone: the same track recorded on different
// days (or different parses) must compare equal. Favoriting and
// deduplication rely on this, so Day and Date never take part in Equal and
// any map over tracks must key by Name.
type Track struct {
	Name string    `db:"name" json:"name"`
	Day  int       `db:"day" json:"day"`
	Date time.Time `db:"date" json:"date"`
}

func (t Track) Equal(other Track) bool {
	return t.Name == other.Name
}

type Person struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func (p Person) Equal(other Person) bool {
	return p.ID == other.ID
}

type Link struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// AttachmentKind is the closed set of attachment variants. Unknown wire
// values normalize to KindOther.
type AttachmentKind string

const (
	KindSlides AttachmentKind = "slides"
	KindAudio  AttachmentKind = "audio"
	KindVideo  AttachmentKind = "video"
	KindPaper  AttachmentKind = "paper"
	KindOther  AttachmentKind = "other"
)

// ParseAttachmentKind maps a raw type string onto the closed variant set.
func ParseAttachmentKind(s string) AttachmentKind {
	switch AttachmentKind(s) {
	case KindSlides, KindAudio, KindVideo, KindPaper:
		return AttachmentKind(s)
	default:
		return KindOther
	}
}

type Attachment struct {
	Kind AttachmentKind `json:"type"`
	URL  string         `json:"url"`
	Name string         `json:"name,omitempty"`
}
