package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/confkit/confkit/internal/model"
)

func indexFixture() *model.Schedule {
	d1 := time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2024, 2, 4, 0, 0, 0, 0, time.UTC)
	return &model.Schedule{
		Conference: model.Conference{Title: "GopherConf", Start: d1, End: d2},
		Days: []model.Day{
			{
				Index: 1,
				Date:  d1,
				Events: []model.Event{
					{ID: 1, Track: "Go", Title: "One"},
					{ID: 2, Track: "Keynotes", Title: "Two"},
					{ID: 3, Track: "Go", Title: "Three"},
					{ID: 4, Title: "Untracked"},
				},
			},
			{
				Index: 2,
				Date:  d2,
				Events: []model.Event{
					{ID: 5, Track: "Go", Title: "Five"},
					{ID: 6, Track: "Community", Title: "Six"},
				},
			},
		},
	}
}

func TestBuildIndexTrackNames(t *testing.T) {
	idx := BuildIndex(indexFixture())
	assert.Equal(t, []string{"Community", "Go", "Keynotes"}, idx.TrackNames)
}

func TestBuildIndexTracksByDay(t *testing.T) {
	idx := BuildIndex(indexFixture())

	day1 := idx.TracksByDay[1]
	assert.Len(t, day1, 2)
	assert.Equal(t, "Go", day1[0].Name)
	assert.Equal(t, "Keynotes", day1[1].Name)

	day2 := idx.TracksByDay[2]
	assert.Len(t, day2, 2)
	assert.Equal(t, "Community", day2[0].Name)
	assert.Equal(t, "Go", day2[1].Name)

	// A track appearing on several days carries each day's index in the
	// per-day view, but the values still compare equal by name.
	assert.True(t, day1[0].Equal(day2[1]))
}

func TestBuildIndexEventsByTrack(t *testing.T) {
	idx := BuildIndex(indexFixture())

	goEvents := idx.EventsByTrack["Go"]
	assert.Len(t, goEvents, 3)
	// Encounter order across days is preserved.
	assert.Equal(t, []int{1, 3, 5}, []int{goEvents[0].ID, goEvents[1].ID, goEvents[2].ID})

	assert.Len(t, idx.EventsByTrack["Keynotes"], 1)
	assert.NotContains(t, idx.EventsByTrack, "")
}

func TestBuildIndexEventsByID(t *testing.T) {
	idx := BuildIndex(indexFixture())
	assert.Len(t, idx.EventsByID, 6)
	assert.Equal(t, "Untracked", idx.EventsByID[4].Title)
}

func TestBuildIndexIsDeterministic(t *testing.T) {
	a := BuildIndex(indexFixture())
	b := BuildIndex(indexFixture())
	assert.Equal(t, a.TrackNames, b.TrackNames)
	assert.Equal(t, a.TracksByDay, b.TracksByDay)
	assert.Equal(t, a.EventsByTrack, b.EventsByTrack)
}
