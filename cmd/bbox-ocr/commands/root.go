package commands

import (
	"github.com/spf13/cobra"

	"github.com/spherical/bbox-ocr/cmd/bbox-ocr/ui"
)

var (
	cfgFile string
	verbose bool
	noColor bool
)

var rootCmd = &cobra.Command{
	Use:   "bbox-ocr",
	Short: "Bounding-box OCR for PDFs with a vision language model",
	Long: `bbox-ocr renders each PDF page, asks an OpenAI compatible vision model for
its layout elements with normalized bounding boxes, and writes the assembled
document as JSON and Markdown.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		ui.InitUI(noColor, verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default $CONFIG_PATH)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// Execute runs the root command.
func Execute(version string) error {
	rootCmd.Version = version
	return rootCmd.Execute()
}
