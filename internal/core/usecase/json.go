package usecase

import (
	"encoding/json"
	"strings"
)

// decodeJSONObject parses the first {...} span of raw model output into out.
func decodeJSONObject(raw string, out any) error {
	return json.Unmarshal([]byte(extractJSONObject(raw)), out)
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
