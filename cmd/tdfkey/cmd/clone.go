package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/TDFKey/pkg/core"
	"github.com/ChrisMcGann/TDFKey/pkg/noise"
	"github.com/ChrisMcGann/TDFKey/pkg/reader/schedule"
	"github.com/ChrisMcGann/TDFKey/pkg/tdf"
)

var cloneCmd = &cobra.Command{
	Use:   "clone",
	Short: "Rewrite a dataset through the full write pipeline",
	Long: `Read every frame of a template dataset and write it into a new dataset
through the compression/write pipeline, optionally injecting sampled
background noise first.

Examples:
  # Plain rewrite
  tdfkey clone --template ./ref/RAW.d --out ./out

  # Rewrite with injected acquisition noise and an explicit DIA schedule
  tdfkey clone --template ./ref/RAW.d --out ./out --noise --schedule dia.toml`,
	RunE: runClone,
}

func runClone(cmd *cobra.Command, args []string) error {
	hasDia, err := tdf.HasDiaTables(templatePath)
	if err != nil {
		return err
	}

	var (
		template   *tdf.Dataset
		diaInfo    []tdf.DiaMsMsInfo
		diaWindows []tdf.DiaMsMsWindow
	)
	if hasDia {
		dia, err := tdf.OpenDatasetDIA(templatePath)
		if err != nil {
			return fmt.Errorf("failed to open template dataset: %w", err)
		}
		template = dia.Dataset
		diaInfo = dia.DiaMsMsInfo()
		diaWindows = dia.DiaMsMsWindows()
	} else {
		template, err = tdf.OpenDataset(templatePath)
		if err != nil {
			return fmt.Errorf("failed to open template dataset: %w", err)
		}
	}
	defer template.Close()

	log.Info().
		Str("template", template.Path()).
		Int("frames", template.FrameCount()).
		Bool("dia", hasDia).
		Msg("template dataset opened")

	// An explicit schedule file wins over the template's own DIA tables.
	if schedulePath != "" {
		sched, err := schedule.Load(schedulePath)
		if err != nil {
			return err
		}
		diaInfo = sched.DiaMsMsInfo()
		diaWindows = sched.DiaMsMsWindows()
		log.Info().Str("schedule", schedulePath).
			Int("windows", len(diaWindows)).
			Int("assignments", len(diaInfo)).
			Msg("DIA schedule loaded")
	}

	windowGroupOf := make(map[int64]int64, len(diaInfo))
	for _, info := range diaInfo {
		windowGroupOf[info.Frame] = info.WindowGroup
	}

	var injector *noise.Injector
	if addNoise {
		sampler := noise.NewDatasetSampler(template, windowGroupOf, noiseSeed)
		injector = noise.NewInjector(sampler, windowGroupOf, noise.Config{
			NumFrames:      noiseFrames,
			IntensityMax:   noiseIntensity,
			SampleFraction: noiseFraction,
		})
		log.Info().
			Int("frames", noiseFrames).
			Float64("intensity_max", noiseIntensity).
			Float64("fraction", noiseFraction).
			Msg("noise injection enabled")
	}

	writer, err := tdf.NewWriter(template, tdf.WriterConfig{
		Dir:                 outputDir,
		Name:                datasetName,
		HeaderBytes:         headerBytes,
		UseTemplateFrameOne: templateFrameOne,
		Threads:             threads,
	})
	if err != nil {
		return fmt.Errorf("failed to open writer: %w", err)
	}
	defer writer.Close()

	written := 0
	batch := make([]*core.Frame, 0, batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := writer.WriteFrames(batch, scanMode); err != nil {
			return err
		}
		written += len(batch)
		log.Debug().Int("written", written).Msg("batch flushed")
		batch = batch[:0]
		return nil
	}

	for {
		frame, err := template.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read template frame: %w", err)
		}
		if injector != nil {
			frame, err = injector.Inject(frame)
			if err != nil {
				return err
			}
		}
		batch = append(batch, frame)
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}

	if err := writer.WriteFrameMetaData(); err != nil {
		return fmt.Errorf("failed to finalize dataset: %w", err)
	}
	if len(diaWindows) > 0 {
		if err := writer.WriteDiaMsMsInfo(diaInfo); err != nil {
			return err
		}
		if err := writer.WriteDiaMsMsWindows(diaWindows); err != nil {
			return err
		}
	}

	log.Info().
		Str("dataset", writer.Path()).
		Int("frames", written).
		Int64("bytes", writer.Position()).
		Msg("dataset written")
	return nil
}
