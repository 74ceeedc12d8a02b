package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"ictbacktest/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		time    time.Time
		session models.Session
		quality Quality
		active  bool
	}{
		{
			name:    "asia open",
			time:    time.Date(2024, 3, 1, 0, 30, 0, 0, time.UTC),
			session: models.SessionAsia,
			quality: QualityMedium,
			active:  true,
		},
		{
			name:    "london killzone",
			time:    time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC),
			session: models.SessionLondon,
			quality: QualityHigh,
			active:  true,
		},
		{
			name:    "london boundary end is exclusive",
			time:    time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
			session: models.SessionOffHours,
			quality: QualityLow,
		},
		{
			name:    "new york morning",
			time:    time.Date(2024, 3, 1, 13, 45, 0, 0, time.UTC),
			session: models.SessionNYAM,
			quality: QualityHigh,
			active:  true,
		},
		{
			name:    "new york afternoon",
			time:    time.Date(2024, 3, 1, 16, 0, 0, 0, time.UTC),
			session: models.SessionNYPM,
			quality: QualityMedium,
			active:  true,
		},
		{
			name:    "overnight gap",
			time:    time.Date(2024, 3, 1, 21, 0, 0, 0, time.UTC),
			session: models.SessionOffHours,
			quality: QualityLow,
		},
		{
			name:    "non-utc input is converted",
			time:    time.Date(2024, 3, 1, 9, 0, 0, 0, time.FixedZone("CET", 3600)), // 08:00 UTC
			session: models.SessionLondon,
			quality: QualityHigh,
			active:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := Classify(tt.time)
			assert.Equal(t, tt.session, info.Session)
			assert.Equal(t, tt.quality, info.Quality)
			assert.Equal(t, tt.active, info.Active)
		})
	}
}

func TestClassifyMinutesToEnd(t *testing.T) {
	info := Classify(time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC))
	assert.Equal(t, models.SessionLondon, info.Session)
	assert.Equal(t, 30, info.MinutesToEnd)
}
