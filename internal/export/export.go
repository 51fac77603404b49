// Package export renders a finished training as a downloadable track file.
package export

import (
	"errors"
	"math"
	"strings"
	"time"

	"backend-runtrainer/internal/gps"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/tkrajina/gpxgo/gpx"
)

const creator = "runtrainer"

var ErrUnsupportedFormat = errors.New("unsupported export format")

type Format string

const (
	FormatGPX     Format = "gpx"
	FormatGeoJSON Format = "geojson"
)

// ParseFormat accepts a case-insensitive format name. Empty means GPX.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatGPX:
		return FormatGPX, nil
	case FormatGeoJSON, "json":
		return FormatGeoJSON, nil
	default:
		return "", ErrUnsupportedFormat
	}
}

func (f Format) ContentType() string {
	if f == FormatGeoJSON {
		return "application/geo+json"
	}
	return "application/gpx+xml"
}

func (f Format) Extension() string {
	if f == FormatGeoJSON {
		return ".geojson"
	}
	return ".gpx"
}

// Activity is the exported view of a training.
type Activity struct {
	ID           string
	Type         string
	StartedAt    time.Time
	DistanceKm   float64
	DurationS    float64
	PaceMinPerKm float64
	Track        []gps.Fix
}

func Encode(f Format, a Activity) ([]byte, error) {
	switch f {
	case FormatGPX:
		return GPX(a)
	case FormatGeoJSON:
		return GeoJSON(a)
	default:
		return nil, ErrUnsupportedFormat
	}
}

// GPX renders the track as a single GPX 1.1 track segment.
func GPX(a Activity) ([]byte, error) {
	seg := gpx.GPXTrackSegment{}
	for _, f := range a.Track {
		p := gpx.GPXPoint{
			Point: gpx.Point{
				Latitude:  f.Latitude,
				Longitude: f.Longitude,
			},
			Timestamp: fixTime(f.Timestamp),
		}
		if f.Altitude != nil {
			p.Elevation.SetValue(*f.Altitude)
		}
		seg.Points = append(seg.Points, p)
	}

	doc := gpx.GPX{
		Version: "1.1",
		Creator: creator,
		Name:    a.ID,
		Time:    timePtr(a.StartedAt),
		Tracks: []gpx.GPXTrack{{
			Name:     a.ID,
			Type:     a.Type,
			Segments: []gpx.GPXTrackSegment{seg},
		}},
	}
	return doc.ToXml(gpx.ToXmlParams{Version: "1.1", Indent: true})
}

// GeoJSON renders the track as a FeatureCollection holding one LineString
// with the training totals as properties.
func GeoJSON(a Activity) ([]byte, error) {
	line := make(orb.LineString, 0, len(a.Track))
	for _, f := range a.Track {
		line = append(line, orb.Point{f.Longitude, f.Latitude})
	}

	feature := geojson.NewFeature(line)
	feature.Properties["id"] = a.ID
	feature.Properties["type"] = a.Type
	feature.Properties["distance_km"] = a.DistanceKm
	feature.Properties["duration_s"] = a.DurationS
	feature.Properties["pace_min_per_km"] = a.PaceMinPerKm
	if !a.StartedAt.IsZero() {
		feature.Properties["started_at"] = a.StartedAt.UTC().Format(time.RFC3339)
	}

	fc := geojson.NewFeatureCollection()
	fc.Append(feature)
	return fc.MarshalJSON()
}

func fixTime(ts float64) time.Time {
	if ts <= 0 {
		return time.Time{}
	}
	sec, frac := math.Modf(ts)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	t = t.UTC()
	return &t
}
