package model

import "time"

// StationStats summarizes the readings of one station.
type StationStats struct {
	StationID   string    `json:"station_id"`
	Count       int       `json:"count"`
	Min         float64   `json:"min"`
	Max         float64   `json:"max"`
	Mean        float64   `json:"mean"`
	LatestLevel float64   `json:"latest_level"`
	LatestAt    time.Time `json:"latest_at"`
	Lat         float64   `json:"lat"`
	Lon         float64   `json:"lon"`
}

// Summarize groups readings by station and computes per-station statistics.
// Stations appear in the order they are first seen. Latest values follow the
// same tie-break as Latest.
func Summarize(readings []Reading) []StationStats {
	index := make(map[string]int)
	var stats []StationStats
	var sums []float64
	var latest []Reading

	for _, r := range readings {
		i, ok := index[r.StationID]
		if !ok {
			i = len(stats)
			index[r.StationID] = i
			stats = append(stats, StationStats{
				StationID: r.StationID,
				Min:       r.WaterLevel,
				Max:       r.WaterLevel,
			})
			sums = append(sums, 0)
			latest = append(latest, r)
		}

		s := &stats[i]
		s.Count++
		sums[i] += r.WaterLevel
		if r.WaterLevel < s.Min {
			s.Min = r.WaterLevel
		}
		if r.WaterLevel > s.Max {
			s.Max = r.WaterLevel
		}
		if !r.Time.Before(latest[i].Time) {
			latest[i] = r
		}
	}

	for i := range stats {
		stats[i].Mean = sums[i] / float64(stats[i].Count)
		stats[i].LatestLevel = latest[i].WaterLevel
		stats[i].LatestAt = latest[i].Time
		stats[i].Lat = latest[i].Lat
		stats[i].Lon = latest[i].Lon
	}
	return stats
}
