package stopboard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Don't love this, but some internal functions are finicky and need
// testing.

func TestWhiteboxGTFSTime(t *testing.T) {
	for _, tc := range []struct {
		Offset   time.Duration
		Expected string
	}{
		{0, "000000"},
		{8*time.Hour + 5*time.Minute, "080500"},
		{23*time.Hour + 59*time.Minute + 59*time.Second, "235959"},
		{25*time.Hour + 10*time.Minute + 1*time.Second, "251001"},
	} {
		assert.Equal(t, tc.Expected, gtfsTime(tc.Offset))
	}
}

func TestWhiteboxServiceDay(t *testing.T) {
	tzET, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// Eastern daylight savings started March 12th, 2023. At 2AM
	// it became 3AM.

	// Eastern standard time started November 5th, 2023. At 2AM
	// it became 1AM.

	for _, tc := range []struct {
		Name     string
		Now      time.Time
		Expected time.Time
		Offset   time.Duration
	}{
		{
			"plain day",
			time.Date(2023, 2, 3, 6, 0, 0, 0, tzET),
			time.Date(2023, 2, 3, 0, 0, 0, 0, tzET),
			6 * time.Hour,
		},
		{
			"start of daylight savings",
			time.Date(2023, 3, 12, 6, 0, 0, 0, tzET),
			// Noon minus 12h is 23:00 the day before
			time.Date(2023, 3, 11, 23, 0, 0, 0, tzET),
			6 * time.Hour,
		},
		{
			"end of daylight savings",
			time.Date(2023, 11, 5, 6, 0, 0, 0, tzET),
			// 1AM happens twice. It's the first one.
			time.Date(2023, 11, 5, 5, 0, 0, 0, time.UTC),
			6 * time.Hour,
		},
		{
			"rounds up to whole second",
			time.Date(2023, 2, 3, 6, 0, 0, 1, tzET),
			time.Date(2023, 2, 3, 0, 0, 0, 0, tzET),
			6*time.Hour + time.Second,
		},
	} {
		t.Run(tc.Name, func(t *testing.T) {
			day := serviceDay(tc.Now)
			assert.True(t, tc.Expected.Equal(day), "got %s", day)
			assert.Equal(t, tc.Offset, serviceOffset(day, tc.Now))
		})
	}
}
