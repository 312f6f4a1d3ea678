package dto

import (
	"encoding/json"
	"time"
)

// ArtifactInfo describes one stored analysis image for the results gallery.
type ArtifactInfo struct {
	Name      string    `json:"name"`
	Date      time.Time `json:"date"`
	TimeOfDay time.Time `json:"timeOfDay"`
	Camera    int       `json:"camera"`
	Size      int64     `json:"size"`
}

// MarshalJSON formats date and time-of-day the way the gallery page expects.
func (a ArtifactInfo) MarshalJSON() ([]byte, error) {
	type Alias ArtifactInfo
	return json.Marshal(&struct {
		Date      string `json:"date"`
		TimeOfDay string `json:"timeOfDay"`
		Alias
	}{
		Date:      a.Date.Format("02-01-2006"),
		TimeOfDay: a.TimeOfDay.Format("15:04:05"),
		Alias:     (Alias)(a),
	})
}
