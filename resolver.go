package stopboard

import (
	"github.com/rs/zerolog/log"

	"tidbyt.dev/stopboard/model"
)

// Picks the stops to show on the board.
//
// Resolvers are deterministic and have no side effects. There are no
// failure modes beyond an empty result.
type Resolver interface {
	Resolve(static *Static) []model.BoardStop
}

// Resolves to a fixed list of stops, in the given order.
type FixedResolver struct {
	Stops []model.BoardStop
}

// Returns the configured stops. Blank names are filled in from
// stops.txt when the timetable has one.
func (r *FixedResolver) Resolve(static *Static) []model.BoardStop {
	out := make([]model.BoardStop, 0, len(r.Stops))

	missing := []string{}
	for _, s := range r.Stops {
		if s.Name == "" {
			missing = append(missing, s.ID)
		}
	}

	names := map[string]model.Stop{}
	if len(missing) > 0 && static != nil {
		var err error
		names, err = static.Stops(missing)
		if err != nil {
			log.Warn().Err(err).Msg("Could not look up stop names")
			names = map[string]model.Stop{}
		}
	}

	for _, s := range r.Stops {
		if s.Name == "" {
			if stop, found := names[s.ID]; found {
				s.Name = stop.Name
			}
		}
		out = append(out, s)
	}

	return out
}

// Resolves to the stops within a radius of a location, nearest
// first.
type NearbyResolver struct {
	Lat          float64
	Lon          float64
	RadiusMeters float64

	// Max number of stops. 0 means no limit.
	Limit int
}

func (r *NearbyResolver) Resolve(static *Static) []model.BoardStop {
	out := []model.BoardStop{}
	if static == nil {
		return out
	}

	stops, err := static.NearbyStops(r.Lat, r.Lon, r.RadiusMeters, r.Limit)
	if err != nil {
		log.Error().Err(err).
			Float64("lat", r.Lat).
			Float64("lon", r.Lon).
			Msg("Nearby stop lookup failed")
		return out
	}

	for _, stop := range stops {
		out = append(out, model.BoardStop{
			ID:   stop.ID,
			Name: stop.Name,
		})
	}

	log.Debug().Msgf("Resolved %d stops within %.0fm", len(out), r.RadiusMeters)

	return out
}
