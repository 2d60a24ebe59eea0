// Package cmd provides CLI command implementations
package cmd

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool

	// Flags for clone command
	templatePath     string
	outputDir        string
	datasetName      string
	headerBytes      int
	threads          int
	batchSize        int
	scanMode         int
	templateFrameOne bool
	schedulePath     string
	addNoise         bool
	noiseFrames      int
	noiseIntensity   float64
	noiseFraction    float64
	noiseSeed        uint64
)

var rootCmd = &cobra.Command{
	Use:   "tdfkey",
	Short: "TDFKey - TIMS-TOF raw dataset toolkit",
	Long: `TDFKey reads and writes Bruker-style TIMS-TOF raw datasets: a .d
directory holding relational metadata (analysis.tdf) and compressed frame
payloads (analysis.tdf_bin).

Supported operations:
- Dataset inspection (frame counts, acquisition ranges, DIA windows)
- Dataset rewriting through the full compression/write pipeline
- Synthetic acquisition-noise injection from real reference data`,
	Version: "1.0.0",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := zerolog.InfoLevel
		if verbose {
			level = zerolog.DebugLevel
		}
		log.Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		}).Level(level).With().Timestamp().Logger()
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(cloneCmd)

	// Clone command flags
	cloneCmd.Flags().StringVarP(&templatePath, "template", "t", "", "Template dataset directory (required)")
	cloneCmd.Flags().StringVarP(&outputDir, "out", "o", "", "Output parent directory (required)")
	cloneCmd.Flags().StringVar(&datasetName, "name", "RAW.d", "Output dataset directory name")
	cloneCmd.Flags().IntVar(&headerBytes, "header-bytes", 64, "Reserved header size of analysis.tdf_bin")
	cloneCmd.Flags().IntVar(&threads, "threads", 4, "Number of parallel compression workers")
	cloneCmd.Flags().IntVar(&batchSize, "batch-size", 256, "Frames per write batch")
	cloneCmd.Flags().IntVar(&scanMode, "scan-mode", 9, "ScanMode value recorded for written frames")
	cloneCmd.Flags().BoolVar(&templateFrameOne, "template-frame-one", false, "Copy all metadata rows from the template's first frame")
	cloneCmd.Flags().StringVar(&schedulePath, "schedule", "", "DIA window schedule TOML (defaults to the template's own DIA tables)")
	cloneCmd.Flags().BoolVar(&addNoise, "noise", false, "Inject sampled background noise before writing")
	cloneCmd.Flags().IntVar(&noiseFrames, "noise-frames", 10, "Reference frames sampled per noise draw")
	cloneCmd.Flags().Float64Var(&noiseIntensity, "noise-intensity-max", 30, "Intensity ceiling of sampled noise")
	cloneCmd.Flags().Float64Var(&noiseFraction, "noise-fraction", 0.5, "Fraction of sampled noise peaks kept")
	cloneCmd.Flags().Uint64Var(&noiseSeed, "noise-seed", 42, "Noise sampling seed")

	cloneCmd.MarkFlagRequired("template")
	cloneCmd.MarkFlagRequired("out")
}
