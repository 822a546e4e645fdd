package logger

// OutputCategory defines a category of CLI output that can be enabled/disabled.
//
// Unlike log levels (which filter by severity), output categories control
// WHAT types of information the progress printer displays.
type OutputCategory int

const (
	// Level 0 (default) - Always shown
	OutputResults    OutputCategory = iota // Generated report paths
	OutputErrors                           // Per-row failures with hints
	OutputUserStatus                       // Final success/failure summary

	// Level 1 (-v)
	OutputProgress // One line per pipeline step
	OutputStartup  // Config summary, backend selected

	// Level 2 (-vv)
	OutputTiming     // Per-row and per-call durations
	OutputConfig     // Config values loaded/applied
	OutputModelCalls // Candidate attempts

	// Level 4 (-vvvv)
	OutputPromptBody   // Full prompt text sent to the backend
	OutputResponseBody // Full model response
)

// categoryLevels maps each output category to its minimum verbosity level
var categoryLevels = map[OutputCategory]int{
	OutputResults:    VerbosityUser,
	OutputErrors:     VerbosityUser,
	OutputUserStatus: VerbosityUser,

	OutputProgress: VerbosityInfo,
	OutputStartup:  VerbosityInfo,

	OutputTiming:     VerbosityDebug,
	OutputConfig:     VerbosityDebug,
	OutputModelCalls: VerbosityDebug,

	OutputPromptBody:   VerbosityAll,
	OutputResponseBody: VerbosityAll,
}

// ShouldOutput returns true if the given category should be shown at the given verbosity
func ShouldOutput(verbosity int, category OutputCategory) bool {
	minLevel, ok := categoryLevels[category]
	if !ok {
		// Unknown category, default to highest verbosity required
		return verbosity >= VerbosityAll
	}
	return verbosity >= minLevel
}
