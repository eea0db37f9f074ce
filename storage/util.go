package storage

import (
	"math"
	"sort"

	"tidbyt.dev/stopboard/model"
)

func HaversineDistance(aLat, aLon, bLat, bLon float64) float64 {
	const earthRadiusKm = 6371

	aLatRad := aLat * math.Pi / 180
	aLonRad := aLon * math.Pi / 180
	bLatRad := bLat * math.Pi / 180
	bLonRad := bLon * math.Pi / 180
	deltaLat := aLatRad - bLatRad
	deltaLon := aLonRad - bLonRad

	a := math.Cos(aLatRad)*math.Cos(bLatRad)*math.Pow(math.Sin(deltaLon/2), 2) + math.Pow(math.Sin(deltaLat/2), 2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return c * earthRadiusKm
}

// Orders candidate stops by distance from lat,lon and applies radius
// and limit. Shared by all backends.
func nearest(stops []*model.Stop, lat float64, lng float64, radiusKm float64, limit int) []model.Stop {
	type candidate struct {
		stop     *model.Stop
		distance float64
	}

	candidates := []candidate{}
	for _, s := range stops {
		if s.ParentStation != "" {
			continue
		}
		if s.LocationType != model.LocationTypeStop && s.LocationType != model.LocationTypeStation {
			continue
		}
		d := HaversineDistance(lat, lng, s.Lat, s.Lon)
		if radiusKm > 0 && d > radiusKm {
			continue
		}
		candidates = append(candidates, candidate{s, d})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].distance == candidates[j].distance {
			return candidates[i].stop.ID < candidates[j].stop.ID
		}
		return candidates[i].distance < candidates[j].distance
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	res := []model.Stop{}
	for _, c := range candidates {
		res = append(res, *c.stop)
	}

	return res
}
