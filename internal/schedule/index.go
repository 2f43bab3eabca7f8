package schedule

import (
	"sort"

	"github.com/confkit/confkit/internal/model"
)

// Index is an in-memory aggregation over a parsed Schedule for callers
// that browse without going through the store. Building it is pure and
// deterministic; the Index itself is read-only after construction.
type Index struct {
	// TrackNames is the sorted set of distinct track names.
	TrackNames []string
	// TracksByDay maps a day index to the sorted tracks of that day.
	TracksByDay map[int][]model.Track
	// EventsByTrack keeps each track's events in encounter order.
	EventsByTrack map[string][]model.Event
	// EventsByID resolves an event id anywhere in the schedule.
	EventsByID map[int]model.Event
}

func BuildIndex(s *model.Schedule) *Index {
	idx := &Index{
		TracksByDay:   make(map[int][]model.Track),
		EventsByTrack: make(map[string][]model.Event),
		EventsByID:    make(map[int]model.Event),
	}

	// Track identity is the name, so everything below keys by name and
	// the first sighting of a name fixes its day/date.
	seen := make(map[string]model.Track)
	perDay := make(map[int]map[string]model.Track)

	for _, day := range s.Days {
		for _, ev := range day.Events {
			idx.EventsByID[ev.ID] = ev
			if ev.Track == "" {
				continue
			}
			idx.EventsByTrack[ev.Track] = append(idx.EventsByTrack[ev.Track], ev)

			track := model.Track{Name: ev.Track, Day: day.Index, Date: day.Date}
			if _, ok := seen[track.Name]; !ok {
				seen[track.Name] = track
				idx.TrackNames = append(idx.TrackNames, track.Name)
			}
			if perDay[day.Index] == nil {
				perDay[day.Index] = make(map[string]model.Track)
			}
			perDay[day.Index][track.Name] = track
		}
	}

	sort.Strings(idx.TrackNames)
	for dayIndex, tracks := range perDay {
		out := make([]model.Track, 0, len(tracks))
		for _, t := range tracks {
			out = append(out, t)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
		idx.TracksByDay[dayIndex] = out
	}
	return idx
}
