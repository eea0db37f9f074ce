package parse

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"tidbyt.dev/stopboard/model"
	"tidbyt.dev/stopboard/storage"
)

type StopTimeCSV struct {
	TripID        string `csv:"trip_id"`
	StopID        string `csv:"stop_id"`
	StopSequence  string `csv:"stop_sequence"`
	ArrivalTime   string `csv:"arrival_time"`
	DepartureTime string `csv:"departure_time"`
	Headsign      string `csv:"stop_headsign"`
}

func parseStopTimeTime(s string) (string, error) {
	split := strings.Split(strings.TrimSpace(s), ":")
	if len(split) != 3 {
		return "", fmt.Errorf("found %d parts in '%s'", len(split), s)
	}

	hms := [3]int{}
	for i, str := range split {
		j, err := strconv.Atoi(str)
		if err != nil {
			return "", fmt.Errorf("non-integer in '%s' pos %d", s, i)
		}
		hms[i] = j
	}

	if hms[0] < 0 || hms[0] > 99 {
		return "", fmt.Errorf("invalid hour in '%s'", s)
	}

	if hms[1] < 0 || hms[1] > 59 {
		return "", fmt.Errorf("invalid minute in '%s'", s)
	}

	if hms[2] < 0 || hms[2] > 59 {
		return "", fmt.Errorf("invalid second in '%s'", s)
	}

	return fmt.Sprintf("%02d%02d%02d", hms[0], hms[1], hms[2]), nil
}

// Label for the direction of travel. Stop level headsign wins over
// trip level, which wins over direction_id.
func directionLabel(stopHeadsign string, trip *TripInfo) string {
	if stopHeadsign != "" {
		return stopHeadsign
	}
	if trip == nil {
		return ""
	}
	if trip.Headsign != "" {
		return trip.Headsign
	}
	switch trip.DirectionID {
	case 0:
		return model.DirectionOutbound
	case 1:
		return model.DirectionInbound
	}
	return ""
}

// Parses stop_times.txt. If trips or stops is non-nil, every record
// must reference a known trip_id or stop_id. Rows without any times
// (non-timepoints) are skipped, as are rows with malformed times or
// stop_sequence. stop_sequence may be left out entirely.
//
// Returns the latest arrival seen and the number of records written.
func ParseStopTimes(
	writer storage.FeedWriter,
	data io.Reader,
	trips map[string]*TripInfo,
	stops map[string]bool,
) (string, int, error) {

	stopSeq := map[string]map[uint32]bool{}

	maxArrival := "000000"
	count := 0
	skipped := 0

	i := -1
	err := gocsv.UnmarshalToCallbackWithError(data, func(st *StopTimeCSV) error {
		i += 1
		row := i + 1

		if st.TripID == "" {
			return fmt.Errorf("missing trip_id (row %d)", row)
		}
		if trips != nil && trips[st.TripID] == nil {
			return fmt.Errorf("unknown trip_id: '%s' (row %d)", st.TripID, row)
		}
		if st.StopID == "" {
			return fmt.Errorf("missing stop_id (row %d)", row)
		}
		if stops != nil && !stops[st.StopID] {
			return fmt.Errorf("unknown stop_id: '%s' (row %d)", st.StopID, row)
		}

		if st.ArrivalTime == "" && st.DepartureTime == "" {
			return nil
		}

		var seq uint64
		var err error
		if s := strings.TrimSpace(st.StopSequence); s != "" {
			seq, err = strconv.ParseUint(s, 10, 32)
			if err != nil {
				log.Warn().Err(err).Int("row", row).Msg("Skipping stop_time with bad stop_sequence")
				skipped++
				return nil
			}
			if stopSeq[st.TripID] == nil {
				stopSeq[st.TripID] = map[uint32]bool{}
			}
			if stopSeq[st.TripID][uint32(seq)] {
				log.Warn().
					Int("row", row).
					Uint64("stop_sequence", seq).
					Str("trip_id", st.TripID).
					Msg("Skipping stop_time with duplicate stop_sequence")
				skipped++
				return nil
			}
			stopSeq[st.TripID][uint32(seq)] = true
		}

		var arrivalTime, departureTime string
		if st.ArrivalTime != "" {
			arrivalTime, err = parseStopTimeTime(st.ArrivalTime)
			if err != nil {
				log.Warn().Err(err).Int("row", row).Msg("Skipping stop_time with bad arrival_time")
				skipped++
				return nil
			}
		}
		if st.DepartureTime != "" {
			departureTime, err = parseStopTimeTime(st.DepartureTime)
			if err != nil {
				log.Warn().Err(err).Int("row", row).Msg("Skipping stop_time with bad departure_time")
				skipped++
				return nil
			}
		}
		if arrivalTime == "" {
			arrivalTime = departureTime
		}
		if departureTime == "" {
			departureTime = arrivalTime
		}

		if arrivalTime > maxArrival {
			maxArrival = arrivalTime
		}

		var trip *TripInfo
		if trips != nil {
			trip = trips[st.TripID]
		}

		stopTime := model.StopTime{
			TripID:       st.TripID,
			StopID:       st.StopID,
			Headsign:     st.Headsign,
			Direction:    directionLabel(st.Headsign, trip),
			StopSequence: uint32(seq),
			Arrival:      arrivalTime,
			Departure:    departureTime,
			Row:          row,
		}

		err = writer.WriteStopTime(&stopTime)
		if err != nil {
			return errors.Wrapf(err, "writing stop_time (row %d)", row)
		}
		count++

		return nil
	})

	if err != nil {
		return "", 0, errors.Wrap(err, "unmarshaling stop_times csv")
	}

	// Records, but not a single usable time among them. Most likely
	// the arrival_time and departure_time columns are missing.
	if i >= 0 && count == 0 {
		return "", 0, fmt.Errorf("no usable arrival_time or departure_time in %d records", i+1)
	}

	if skipped > 0 {
		log.Warn().Int("skipped", skipped).Int("written", count).Msg("Malformed stop_times skipped")
	}

	return maxArrival, count, nil
}
