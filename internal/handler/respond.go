package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/geongi-im/yolo-traffic-monitor/internal/dto"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	_ = writeJSON(w, status, dto.ErrorResponse{Success: false, Detail: detail})
}

// atoiDefault converts string to int or returns a default when conversion fails or value <= 0.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}
