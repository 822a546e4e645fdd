package invoker

import "strings"

// FallbackModelsV1 is tried, in order, after the requested model fails
var FallbackModelsV1 = []string{
	"gemini-3-pro-preview",
	"gemini-2.5-pro",
	"gemini-2.5-flash",
	"gemini-2.0-flash",
	"gemini-flash-latest",
}

const qualifiedPrefix = "models/"

const (
	primaryTemperature   = 0.1
	secondaryTemperature = 0.2
)

// Candidates returns the ordered, de-duplicated model list for a request:
// the requested name, its qualified or bare twin, then the fallback list.
// An empty fallback means FallbackModelsV1. The result is never empty.
func Candidates(requested string, fallback []string) []string {
	if len(fallback) == 0 {
		fallback = FallbackModelsV1
	}

	var out []string
	seen := make(map[string]bool)
	add := func(name string) {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		out = append(out, name)
	}

	requested = strings.TrimSpace(requested)
	if requested != "" {
		add(requested)
		if strings.HasPrefix(requested, qualifiedPrefix) {
			add(strings.TrimPrefix(requested, qualifiedPrefix))
		} else {
			add(qualifiedPrefix + requested)
		}
	}
	for _, name := range fallback {
		add(name)
	}

	if len(out) == 0 {
		return append([]string(nil), FallbackModelsV1...)
	}
	return out
}

// PrimaryClass reports whether model is a "pro" tier model
func PrimaryClass(model string) bool {
	return strings.Contains(strings.ToLower(model), "pro")
}

// Temperature returns the sampling temperature for model. An override wins;
// otherwise pro models get 0.1 and all others 0.2.
func Temperature(model string, override *float64) float64 {
	if override != nil {
		return *override
	}
	if PrimaryClass(model) {
		return primaryTemperature
	}
	return secondaryTemperature
}
