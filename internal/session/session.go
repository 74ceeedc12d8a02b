// Package session classifies a timestamp into the named trading-hours
// windows ("killzones") used to cohort backtest performance.
package session

import (
	"time"

	"ictbacktest/models"
)

// Quality grades how favorable a session is for entries.
type Quality string

const (
	QualityHigh   Quality = "HIGH"
	QualityMedium Quality = "MEDIUM"
	QualityLow    Quality = "LOW"
)

// Info describes the session a given instant falls into.
type Info struct {
	Session      models.Session
	Quality      Quality
	Active       bool
	MinutesToEnd int
}

// window is a session slot in minutes from UTC midnight. Times are fixed
// UTC and do not track DST.
type window struct {
	session    models.Session
	start, end int
	quality    Quality
}

var windows = []window{
	{models.SessionAsia, 0, 180, QualityMedium},     // 00:00-03:00 UTC
	{models.SessionLondon, 420, 600, QualityHigh},   // 07:00-10:00 UTC
	{models.SessionNYAM, 720, 900, QualityHigh},     // 12:00-15:00 UTC
	{models.SessionNYPM, 900, 1080, QualityMedium},  // 15:00-18:00 UTC
}

// Classify returns the session info for t.
func Classify(t time.Time) Info {
	utc := t.UTC()
	minutes := utc.Hour()*60 + utc.Minute()

	for _, w := range windows {
		if minutes >= w.start && minutes < w.end {
			return Info{
				Session:      w.session,
				Quality:      w.quality,
				Active:       true,
				MinutesToEnd: w.end - minutes,
			}
		}
	}
	return Info{Session: models.SessionOffHours, Quality: QualityLow}
}
