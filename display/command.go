package display

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// OutputEnv forces JSON output when set to "json" (for scripts and other tools)
const OutputEnv = "XALQ_OUTPUT"

// ShouldOutputJSON determines if a command should output JSON based on flags and XALQ_OUTPUT
func ShouldOutputJSON(cmd *cobra.Command) bool {
	if cmd == nil {
		return envWantsJSON()
	}

	// Check if --json flag was explicitly set
	if cmd.Flags().Changed("json") {
		jsonFlag, _ := cmd.Flags().GetBool("json")
		return jsonFlag
	}

	// Check global --json flag
	if globalFlag, _ := cmd.Root().PersistentFlags().GetBool("json"); globalFlag {
		return true
	}

	return envWantsJSON()
}

func envWantsJSON() bool {
	return strings.EqualFold(strings.TrimSpace(os.Getenv(OutputEnv)), "json")
}

// OutputJSON marshals and prints JSON using display.MarshalJSON
func OutputJSON(v interface{}) error {
	data, err := MarshalJSON(v)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
