package display

import (
	"encoding/json"
)

// MarshalJSON marshals JSON with pretty formatting for people and compact
// formatting when XALQ_OUTPUT=json asks for machine-readable output
func MarshalJSON(v interface{}) ([]byte, error) {
	if envWantsJSON() {
		return json.Marshal(v)
	}
	return json.MarshalIndent(v, "", "  ")
}
