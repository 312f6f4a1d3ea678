package dto

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestArtifactInfo_MarshalJSON(t *testing.T) {
	ts := time.Date(2026, 6, 15, 14, 30, 5, 0, time.UTC)
	info := ArtifactInfo{
		Name:      "analyzed_20260615_143005.jpg",
		Date:      ts,
		TimeOfDay: ts,
		Camera:    6301,
		Size:      2048,
	}

	data, err := json.Marshal(info)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	jsonStr := string(data)

	for _, want := range []string{`"date":"15-06-2026"`, `"timeOfDay":"14:30:05"`, `"camera":6301`, `"size":2048`} {
		if !strings.Contains(jsonStr, want) {
			t.Errorf("Expected %s in %s", want, jsonStr)
		}
	}
}
