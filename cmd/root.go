package cmd

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/inlay-dev/inlay/pkg/config"
	"github.com/inlay-dev/inlay/pkg/utils"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "inlay",
	Short: "In-editor AI coding assistant",
	Long: `Inlay turns /@ ... @/ prompt tags in your source files into code,
generated by a local or remote LLM and injected back into the buffer with
staleness detection, safety gating, and an optional git-style conflict
review mode.

Available commands:
  serve    - Run the assistant and the editor websocket bridge
  resolve  - Interactively resolve staged conflict regions in a file
  history  - List recorded revisions for a file
  revert   - Restore a file to the state before a revision
  version  - Print version information`,
}

var cfgPath string

// Execute runs the root command. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (default ~/.inlay/config.json)")
}

// loadConfig reads the configuration honoring the --config flag.
func loadConfig() (*config.Config, error) {
	path := cfgPath
	if path == "" {
		path = filepath.Join(utils.StateDir(), "config.json")
	}
	return config.Load(path)
}
