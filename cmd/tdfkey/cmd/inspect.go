package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/TDFKey/pkg/tdf"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [dataset.d]",
	Short: "Summarize a raw dataset",
	Long: `Print summary statistics about a raw dataset: frame counts, acquisition
ranges, cycle length and, for DIA data, the window scheme.

Examples:
  tdfkey inspect ./data/RAW.d`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func runInspect(cmd *cobra.Command, args []string) error {
	path := args[0]

	ds, err := tdf.OpenDataset(path)
	if err != nil {
		return fmt.Errorf("failed to open dataset: %w", err)
	}
	defer ds.Close()

	fmt.Printf("Dataset: %s\n", ds.Path())
	if desc := ds.Description(); desc != "" {
		fmt.Printf("Description: %s\n", desc)
	}
	fmt.Printf("Frames: %d (%d precursor, %d fragment)\n",
		ds.FrameCount(), len(ds.PrecursorFrames()), len(ds.FragmentFrames()))
	fmt.Printf("Scans per frame: %d\n", ds.NumScans())
	fmt.Printf("m/z range: %.2f - %.2f\n", ds.MzLower(), ds.MzUpper())
	fmt.Printf("1/K0 range: %.3f - %.3f\n", ds.ImLower(), ds.ImUpper())
	fmt.Printf("Average cycle length: %.3f s\n", ds.AverageCycleLength())

	hasDia, err := tdf.HasDiaTables(path)
	if err != nil {
		return err
	}
	if !hasDia {
		return nil
	}

	dia, err := tdf.OpenDatasetDIA(path)
	if err != nil {
		return fmt.Errorf("failed to open DIA tables: %w", err)
	}
	defer dia.Close()

	groups := make(map[int64]int)
	for _, info := range dia.DiaMsMsInfo() {
		groups[info.WindowGroup]++
	}
	fmt.Printf("\nDIA window groups: %d\n", len(groups))
	for _, w := range dia.DiaMsMsWindows() {
		fmt.Printf("  group %d: scans %d-%d, isolation %.2f +/- %.2f, CE %.1f (%d frames)\n",
			w.WindowGroup, w.ScanNumBegin, w.ScanNumEnd,
			w.IsolationMz, w.IsolationWidth/2, w.CollisionEnergy, groups[w.WindowGroup])
	}
	return nil
}
