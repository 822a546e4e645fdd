package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teranos/xalq/display"
	"github.com/teranos/xalq/prompt"
)

// PromptsCmd inspects the prompt library
var PromptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "List and inspect analysis prompts",
	Long: `List the prompt files in paths.prompts and show how an analysis type
resolves (local file, legacy label mapping, or remote library).

Examples:
  xalq prompts ls
  xalq prompts show "Análise de Receita"`,
}

var promptsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List local prompt files",
	Args:  cobra.NoArgs,
	RunE:  runPromptsLs,
}

var promptsShowCmd = &cobra.Command{
	Use:   "show <type>",
	Short: "Resolve an analysis type and print its prompt",
	Args:  cobra.ExactArgs(1),
	RunE:  runPromptsShow,
}

func init() {
	PromptsCmd.AddCommand(promptsLsCmd)
	PromptsCmd.AddCommand(promptsShowCmd)
}

func runPromptsLs(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	names := prompt.FromConfig(cfg).List()

	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(map[string]interface{}{
			"dir":     cfg.Paths.Prompts,
			"prompts": names,
		})
	}

	out := cmd.OutOrStdout()
	if len(names) == 0 {
		fmt.Fprintf(out, "No prompts in %s\n", cfg.Paths.Prompts)
		return nil
	}
	for _, name := range names {
		fmt.Fprintln(out, name)
	}
	return nil
}

func runPromptsShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	tmpl, err := prompt.FromConfig(cfg).Resolve(ctx, args[0])
	if err != nil {
		return err
	}

	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(map[string]interface{}{
			"name":       tmpl.Name,
			"provenance": tmpl.Provenance,
			"metadata":   tmpl.Metadata,
			"text":       tmpl.Text,
		})
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "# %s (%s)\n", tmpl.Name, tmpl.Provenance)
	if tmpl.Metadata.Model != "" {
		fmt.Fprintf(out, "# model: %s\n", tmpl.Metadata.Model)
	}
	if tmpl.Metadata.Temperature != nil {
		fmt.Fprintf(out, "# temperature: %g\n", *tmpl.Metadata.Temperature)
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, tmpl.Text)
	return nil
}
