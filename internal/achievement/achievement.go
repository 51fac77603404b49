// Package achievement decides which lifetime milestones a runner has reached.
package achievement

import "sort"

// ID identifies a milestone. IDs are stable and stored with the runner.
type ID string

const (
	Total10km  ID = "total_10km"
	Total50km  ID = "total_50km"
	Total100km ID = "total_100km"
	Pace6min   ID = "pace_6min"
)

// Achievement is the display form of a milestone.
type Achievement struct {
	ID          ID     `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

var catalog = map[ID]Achievement{
	Total10km:  {ID: Total10km, Name: "First 10km", Description: "Ran 10km in total", Icon: "🏃"},
	Total50km:  {ID: Total50km, Name: "Half Century", Description: "Ran 50km in total", Icon: "🎯"},
	Total100km: {ID: Total100km, Name: "Centurion", Description: "Ran 100km in total", Icon: "💯"},
	Pace6min:   {ID: Pace6min, Name: "Fast Runner", Description: "Pace under 6 min/km", Icon: "💨"},
}

var distanceThresholds = []struct {
	km float64
	id ID
}{
	{10, Total10km},
	{50, Total50km},
	{100, Total100km},
}

const fastPaceMinPerKm = 6

// Evaluate returns every milestone that currently applies to the given
// lifetime totals, sorted by ID. It is not a delta: callers skip the ones
// already stored.
func Evaluate(totalDistanceKm, bestPaceMinPerKm float64) []ID {
	var ids []ID
	for _, th := range distanceThresholds {
		if totalDistanceKm >= th.km {
			ids = append(ids, th.id)
		}
	}
	if bestPaceMinPerKm <= fastPaceMinPerKm {
		ids = append(ids, Pace6min)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Lookup returns the display form of id.
func Lookup(id ID) (Achievement, bool) {
	a, ok := catalog[id]
	return a, ok
}
