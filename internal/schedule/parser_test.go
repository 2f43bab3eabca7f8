package schedule

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/confkit/confkit/internal/model"
)

// fixtureMixedDialects nests two events under a room wrapper (the later
// dialect) and one directly under the day (the older dialect).
const fixtureMixedDialects = `<schedule>
  <conference>
    <title>GopherConf 2024</title>
    <venue>ULB Solbosch</venue>
    <city>Brussels</city>
    <start>2024-02-03</start>
    <end>2024-02-04</end>
  </conference>
  <day index="1" date="2024-02-03">
    <room name="K.1.105">
      <event id="1">
        <start>09:30</start>
        <duration>00:25</duration>
        <title>Welcome</title>
        <track>Keynotes</track>
        <abstract>Opening words and practical details</abstract>
        <person id="10">Alex Smith</person>
        <link href=" https://example.org/welcome ">Recording</link>
        <attachment type="slides" href="https://example.org/welcome.pdf">Intro slides</attachment>
      </event>
      <event id="2">
        <start>10:00</start>
        <duration>00:50</duration>
        <title>Generics in anger</title>
        <track>Go</track>
      </event>
    </room>
    <event id="3">
      <start>11:00</start>
      <title>Hallway track</title>
      <track>Community</track>
      <room>Corridor</room>
    </event>
  </day>
</schedule>`

func TestParseMergesBothDialects(t *testing.T) {
	sched, err := Parse(strings.NewReader(fixtureMixedDialects))
	assert.NoError(t, err)
	assert.Len(t, sched.Days, 1)

	day := sched.Days[0]
	assert.Equal(t, 1, day.Index)
	assert.Equal(t, time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC), day.Date)

	// Two room-wrapped plus one direct, room-collected first.
	assert.Len(t, day.Events, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{day.Events[0].ID, day.Events[1].ID, day.Events[2].ID})

	// Room comes from the wrapper unless the event carried its own.
	assert.Equal(t, "K.1.105", day.Events[0].Room)
	assert.Equal(t, "K.1.105", day.Events[1].Room)
	assert.Equal(t, "Corridor", day.Events[2].Room)
}

func TestParseEventScopedRoomElement(t *testing.T) {
	// A room element inside an event is an attribute of that event, not
	// the day-level dialect wrapper: closing it must not trigger the
	// wrapper's collect step, and the event keeps its own room name even
	// when a wrapper with a different name closes later in the day.
	const doc = `<schedule>
	  <conference><title>C</title><venue>V</venue><start>2024-02-03</start><end>2024-02-03</end></conference>
	  <day index="1" date="2024-02-03">
	    <event id="1">
	      <title>Direct first</title><track>Go</track>
	      <room>Corridor</room>
	    </event>
	    <room name="K.1.105">
	      <event id="2"><title>Wrapped</title><track>Go</track></event>
	    </room>
	  </day>
	</schedule>`
	sched, err := Parse(strings.NewReader(doc))
	assert.NoError(t, err)

	day := sched.Days[0]
	assert.Len(t, day.Events, 2)
	// The day-level wrapper collects everything buffered so far (the
	// documented dialect accommodation), so event 1 precedes event 2 —
	// but its own room name wins over the wrapper's.
	assert.Equal(t, []int{1, 2}, []int{day.Events[0].ID, day.Events[1].ID})
	assert.Equal(t, "Corridor", day.Events[0].Room)
	assert.Equal(t, "K.1.105", day.Events[1].Room)
}

func TestParseConference(t *testing.T) {
	sched, err := Parse(strings.NewReader(fixtureMixedDialects))
	assert.NoError(t, err)

	want := model.Conference{
		Title: "GopherConf 2024",
		Venue: "ULB Solbosch",
		City:  "Brussels",
		Start: time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 2, 4, 0, 0, 0, 0, time.UTC),
	}
	if diff := cmp.Diff(want, sched.Conference); diff != "" {
		t.Errorf("conference mismatch (-want +got):\n%s", diff)
	}
}

func TestParseEventFields(t *testing.T) {
	sched, err := Parse(strings.NewReader(fixtureMixedDialects))
	assert.NoError(t, err)

	ev := sched.Days[0].Events[0]
	want := model.Event{
		ID:       1,
		Room:     "K.1.105",
		Track:    "Keynotes",
		Title:    "Welcome",
		Abstract: "Opening words and practical details",
		Date:     time.Date(2024, 2, 3, 9, 30, 0, 0, time.UTC),
		Start:    &model.TimeOfDay{Hour: 9, Minute: 30},
		Duration: &model.TimeOfDay{Hour: 0, Minute: 25},
		People:   []model.Person{{ID: 10, Name: "Alex Smith"}},
		// The href in the fixture is padded with whitespace; the parser
		// trims it.
		Links: []model.Link{{Name: "Recording", URL: "https://example.org/welcome"}},
		Attachments: []model.Attachment{
			{Kind: model.KindSlides, URL: "https://example.org/welcome.pdf", Name: "Intro slides"},
		},
	}
	// assert.Equal, not cmp: Event.Equal compares ids only and cmp would
	// use it, but this test checks every field.
	assert.Equal(t, want, ev)
}

func TestParseEventWithoutStartUsesDayDate(t *testing.T) {
	const doc = `<schedule>
	  <conference><title>C</title><venue>V</venue><start>2024-02-03</start><end>2024-02-03</end></conference>
	  <day index="1" date="2024-02-03">
	    <event id="7"><title>Untimed</title><track>Misc</track></event>
	  </day>
	</schedule>`
	sched, err := Parse(strings.NewReader(doc))
	assert.NoError(t, err)
	ev := sched.Days[0].Events[0]
	assert.Nil(t, ev.Start)
	assert.Equal(t, time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC), ev.Date)
}

func TestParseSkipsMalformedPerson(t *testing.T) {
	const doc = `<schedule>
	  <conference><title>C</title><venue>V</venue><start>2024-02-03</start><end>2024-02-03</end></conference>
	  <day index="1" date="2024-02-03">
	    <event id="1">
	      <title>Panel</title><track>Go</track>
	      <person>No Identifier</person>
	      <person id="11">Kim Lee</person>
	    </event>
	  </day>
	</schedule>`
	sched, err := Parse(strings.NewReader(doc))
	assert.NoError(t, err)

	// The enclosing event survives with the malformed entry omitted.
	ev := sched.Days[0].Events[0]
	assert.Equal(t, 1, ev.ID)
	assert.Equal(t, []model.Person{{ID: 11, Name: "Kim Lee"}}, ev.People)
}

func TestParseSkipsMalformedLeafEntities(t *testing.T) {
	const doc = `<schedule>
	  <conference><title>C</title><venue>V</venue><start>2024-02-03</start><end>2024-02-03</end></conference>
	  <day index="1" date="2024-02-03">
	    <event id="1">
	      <title>Ok</title><track>Go</track>
	      <link>no href</link>
	      <attachment href="https://example.org/x.pdf">untyped</attachment>
	    </event>
	    <event id="bogus"><title>Broken id</title></event>
	    <event id="2"><start>25:00</start><title>Broken start</title></event>
	    <event id="3"><title>Fine</title><track>Go</track></event>
	  </day>
	</schedule>`
	sched, err := Parse(strings.NewReader(doc))
	assert.NoError(t, err)

	day := sched.Days[0]
	assert.Len(t, day.Events, 2, "malformed events dropped, valid ones kept")
	assert.Equal(t, 1, day.Events[0].ID)
	assert.Equal(t, 3, day.Events[1].ID)
	assert.Empty(t, day.Events[0].Links)
	assert.Empty(t, day.Events[0].Attachments)
}

func TestParseStructuralErrors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{
			name:    "missing conference",
			doc:     `<schedule><day index="1" date="2024-02-03"></day></schedule>`,
			wantErr: "missing conference",
		},
		{
			name: "invalid day date",
			doc: `<schedule>
			  <conference><title>C</title><venue>V</venue><start>2024-02-03</start><end>2024-02-03</end></conference>
			  <day index="1" date="03.02.2024"></day>
			</schedule>`,
			wantErr: "invalid day date",
		},
		{
			name: "invalid day index",
			doc: `<schedule>
			  <conference><title>C</title><venue>V</venue><start>2024-02-03</start><end>2024-02-03</end></conference>
			  <day index="one" date="2024-02-03"></day>
			</schedule>`,
			wantErr: "invalid day index",
		},
		{
			name: "invalid conference date",
			doc: `<schedule>
			  <conference><title>C</title><venue>V</venue><start>soon</start><end>2024-02-03</end></conference>
			</schedule>`,
			wantErr: "invalid conference start",
		},
		{
			name:    "truncated document",
			doc:     `<schedule><conference><title>C</title>`,
			wantErr: "malformed document",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tc.doc))
			assert.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestParseBytes(t *testing.T) {
	sched, err := ParseBytes([]byte(fixtureMixedDialects))
	assert.NoError(t, err)
	assert.Equal(t, "GopherConf 2024", sched.Conference.Title)
}

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in   string
		want *model.TimeOfDay
		ok   bool
	}{
		{"09:30", &model.TimeOfDay{Hour: 9, Minute: 30}, true},
		{"9:05", &model.TimeOfDay{Hour: 9, Minute: 5}, true},
		{"00:00", &model.TimeOfDay{}, true},
		{"23:59", &model.TimeOfDay{Hour: 23, Minute: 59}, true},
		{"24:00", nil, false},
		{"12:60", nil, false},
		{"noon", nil, false},
		{"", nil, false},
	}
	for _, tc := range tests {
		got, err := parseTimeOfDay(tc.in)
		if tc.ok {
			assert.NoError(t, err, "input %q", tc.in)
			assert.Equal(t, tc.want, got, "input %q", tc.in)
		} else {
			assert.Error(t, err, "input %q", tc.in)
		}
	}
}
