package parse

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidbyt.dev/stopboard/model"
	"tidbyt.dev/stopboard/storage"
)

func TestParseStopTimes(t *testing.T) {
	trip := &TripInfo{DirectionID: -1}

	for _, tc := range []struct {
		name      string
		content   string
		trips     map[string]*TripInfo
		stops     map[string]bool
		err       bool
		stopTimes []*model.StopTime
	}{
		{
			"minimal",
			`
trip_id,arrival_time,departure_time,stop_id,stop_sequence
t,10:00:00,10:00:01,s,1`,
			map[string]*TripInfo{"t": trip},
			map[string]bool{"s": true},
			false,
			[]*model.StopTime{
				{
					TripID:       "t",
					Arrival:      "100000",
					Departure:    "100001",
					StopID:       "s",
					StopSequence: 1,
					Row:          1,
				},
			},
		},

		{
			"all_fields_set_and_multiple_records",
			`
trip_id,arrival_time,departure_time,stop_id,stop_sequence,stop_headsign
t,10:00:00,10:00:01,s1,1,sh1
t,10:00:02,10:00:03,s2,2,sh2
`,
			map[string]*TripInfo{"t": trip},
			map[string]bool{"s1": true, "s2": true},
			false,
			[]*model.StopTime{
				{
					TripID:       "t",
					Arrival:      "100000",
					Departure:    "100001",
					StopID:       "s1",
					StopSequence: 1,
					Headsign:     "sh1",
					Direction:    "sh1",
					Row:          1,
				},
				{
					TripID:       "t",
					Arrival:      "100002",
					Departure:    "100003",
					StopID:       "s2",
					StopSequence: 2,
					Headsign:     "sh2",
					Direction:    "sh2",
					Row:          2,
				},
			},
		},

		{
			"no trips or stops to validate against",
			`
trip_id,arrival_time,departure_time,stop_id,stop_sequence
t,10:00:00,10:00:01,s,1`,
			nil,
			nil,
			false,
			[]*model.StopTime{
				{
					TripID:       "t",
					Arrival:      "100000",
					Departure:    "100001",
					StopID:       "s",
					StopSequence: 1,
					Row:          1,
				},
			},
		},

		{
			"times above 24h",
			`
trip_id,arrival_time,departure_time,stop_id,stop_sequence
t,25:00:00,25:00:01,s,1`,
			map[string]*TripInfo{"t": trip},
			map[string]bool{"s": true},
			false,
			[]*model.StopTime{
				{
					TripID:       "t",
					Arrival:      "250000",
					Departure:    "250001",
					StopID:       "s",
					StopSequence: 1,
					Row:          1,
				},
			},
		},

		{
			"single digit hour",
			`
trip_id,arrival_time,departure_time,stop_id,stop_sequence
t, 8:05:00,8:05:00,s,1`,
			nil,
			nil,
			false,
			[]*model.StopTime{
				{
					TripID:       "t",
					Arrival:      "080500",
					Departure:    "080500",
					StopID:       "s",
					StopSequence: 1,
					Row:          1,
				},
			},
		},

		{
			"one time missing",
			`
trip_id,arrival_time,departure_time,stop_id,stop_sequence
t,,10:00:01,s1,1
t,10:00:02,,s2,2`,
			nil,
			nil,
			false,
			[]*model.StopTime{
				{
					TripID:       "t",
					Arrival:      "100001",
					Departure:    "100001",
					StopID:       "s1",
					StopSequence: 1,
					Row:          1,
				},
				{
					TripID:       "t",
					Arrival:      "100002",
					Departure:    "100002",
					StopID:       "s2",
					StopSequence: 2,
					Row:          2,
				},
			},
		},

		{
			"non-timepoints skipped",
			`
trip_id,arrival_time,departure_time,stop_id,stop_sequence
t,,,s1,1
t,10:00:02,10:00:02,s2,2`,
			nil,
			nil,
			false,
			[]*model.StopTime{
				{
					TripID:       "t",
					Arrival:      "100002",
					Departure:    "100002",
					StopID:       "s2",
					StopSequence: 2,
					Row:          2,
				},
			},
		},

		{
			"directions from trips",
			`
trip_id,arrival_time,stop_id,stop_sequence,stop_headsign
a,10:00:00,s,1,
b,10:01:00,s,1,
c,10:02:00,s,1,
d,10:03:00,s,1,
a,10:04:00,s2,2,Lodi`,
			map[string]*TripInfo{
				"a": {Headsign: "Niguarda", DirectionID: 1},
				"b": {DirectionID: 0},
				"c": {DirectionID: 1},
				"d": {DirectionID: -1},
			},
			nil,
			false,
			[]*model.StopTime{
				{TripID: "a", StopID: "s", StopSequence: 1, Arrival: "100000", Departure: "100000", Direction: "Niguarda", Row: 1},
				{TripID: "b", StopID: "s", StopSequence: 1, Arrival: "100100", Departure: "100100", Direction: "Outbound", Row: 2},
				{TripID: "c", StopID: "s", StopSequence: 1, Arrival: "100200", Departure: "100200", Direction: "Inbound", Row: 3},
				{TripID: "d", StopID: "s", StopSequence: 1, Arrival: "100300", Departure: "100300", Direction: "", Row: 4},
				{TripID: "a", StopID: "s2", StopSequence: 2, Arrival: "100400", Departure: "100400", Headsign: "Lodi", Direction: "Lodi", Row: 5},
			},
		},

		{
			"missing trip_id",
			`
arrival_time,departure_time,stop_id,stop_sequence
10:00:00,10:00:01,s,1`,
			nil, nil, true, nil,
		},

		{
			"missing both times",
			`
trip_id,stop_id,stop_sequence
t,s,1`,
			nil, nil, true, nil,
		},

		{
			"missing stop_id",
			`
trip_id,arrival_time,departure_time,stop_sequence
t,10:00:00,10:00:01,1`,
			nil, nil, true, nil,
		},

		{
			"missing stop_sequence",
			`
trip_id,arrival_time,departure_time,stop_id
t,10:00:00,10:00:01,s
t,10:00:02,10:00:03,s2`,
			nil,
			nil,
			false,
			[]*model.StopTime{
				{TripID: "t", StopID: "s", Arrival: "100000", Departure: "100001", Row: 1},
				{TripID: "t", StopID: "s2", Arrival: "100002", Departure: "100003", Row: 2},
			},
		},

		{
			"duplicate stop_sequence skipped",
			`
trip_id,arrival_time,departure_time,stop_id,stop_sequence
t,10:00:00,10:00:01,s1,1
t,10:00:02,10:00:03,s2,1`,
			nil,
			nil,
			false,
			[]*model.StopTime{
				{TripID: "t", StopID: "s1", StopSequence: 1, Arrival: "100000", Departure: "100001", Row: 1},
			},
		},

		{
			"malformed rows skipped",
			`
trip_id,stop_id,stop_sequence,arrival_time,departure_time,stop_headsign
t1,S1,1,08:00:00,08:00:00,A
t2,S1,1,8h15,8h15,A
t3,S1,x,08:20:00,08:20:00,A
t4,S1,1,08:25:00,08:61:00,A
t5,S1,1,08:30:00,08:30:00,A`,
			nil,
			nil,
			false,
			[]*model.StopTime{
				{TripID: "t1", StopID: "S1", StopSequence: 1, Arrival: "080000", Departure: "080000", Headsign: "A", Direction: "A", Row: 1},
				{TripID: "t5", StopID: "S1", StopSequence: 1, Arrival: "083000", Departure: "083000", Headsign: "A", Direction: "A", Row: 5},
			},
		},

		{
			"unknown trip",
			`
trip_id,arrival_time,departure_time,stop_id,stop_sequence
t,10:00:00,10:00:01,s,1`,
			map[string]*TripInfo{"t2": trip},
			map[string]bool{"s": true},
			true,
			nil,
		},

		{
			"unknown stop",
			`
trip_id,arrival_time,departure_time,stop_id,stop_sequence
t,10:00:00,10:00:01,s,1`,
			map[string]*TripInfo{"t": trip},
			map[string]bool{"s2": true},
			true,
			nil,
		},

		{
			"invalid arrival_time",
			`
trip_id,arrival_time,departure_time,stop_id,stop_sequence
t,10:00:derp,10:00:01,s,1`,
			nil, nil, true, nil,
		},

		{
			"invalid departure_time",
			`
trip_id,arrival_time,departure_time,stop_id,stop_sequence
t,10:00:00,10:00:derp,s,1`,
			nil, nil, true, nil,
		},

		{
			"invalid minute",
			`
trip_id,arrival_time,departure_time,stop_id,stop_sequence
t,10:60:00,10:60:00,s,1`,
			nil, nil, true, nil,
		},

		{
			"time without seconds",
			`
trip_id,arrival_time,departure_time,stop_id,stop_sequence
t,8am,8am,s,1`,
			nil, nil, true, nil,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s, err := storage.NewSQLiteStorage()
			require.NoError(t, err)
			writer, err := s.GetWriter("test")
			require.NoError(t, err)

			require.NoError(t, writer.BeginStopTimes())
			maxArrival, count, err := ParseStopTimes(
				writer,
				bytes.NewBufferString(tc.content),
				tc.trips,
				tc.stops,
			)
			if tc.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NoError(t, writer.EndStopTimes())

			expectedMaxArrival := "000000"
			for _, stopTime := range tc.stopTimes {
				if stopTime.Arrival > expectedMaxArrival {
					expectedMaxArrival = stopTime.Arrival
				}
			}
			assert.Equal(t, expectedMaxArrival, maxArrival)
			assert.Equal(t, len(tc.stopTimes), count)

			reader, err := s.GetReader("test")
			require.NoError(t, err)
			stopTimes, err := reader.StopTimes()
			require.NoError(t, err)
			assert.Equal(t, tc.stopTimes, stopTimes)
		})
	}
}

func TestParseStopTimeTime(t *testing.T) {
	for _, tc := range []struct {
		in  string
		out string
		err bool
	}{
		{"00:00:00", "000000", false},
		{"23:59:59", "235959", false},
		{"25:10:00", "251000", false},
		{"99:59:59", "995959", false},
		{"7:30:00", "073000", false},
		{" 07:30:00 ", "073000", false},
		{"100:00:00", "", true},
		{"07:30", "", true},
		{"07:30:60", "", true},
		{"-1:30:00", "", true},
		{"aa:bb:cc", "", true},
		{"", "", true},
	} {
		out, err := parseStopTimeTime(tc.in)
		if tc.err {
			assert.Error(t, err, tc.in)
			continue
		}
		assert.NoError(t, err, tc.in)
		assert.Equal(t, tc.out, out, tc.in)
	}
}
