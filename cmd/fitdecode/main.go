package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	fit "github.com/lucasjlepore/fit-decode"
	"github.com/lucasjlepore/fit-decode/analytics"
	"github.com/lucasjlepore/fit-decode/export"
	"github.com/lucasjlepore/fit-decode/sink"
)

func main() {
	var (
		fitPath   = flag.String("fit", "", "Path to input .fit file")
		outDir    = flag.String("out", "", "Output directory")
		ftp       = flag.Float64("ftp", 0, "FTP override in watts")
		units     = flag.String("units", "metric", "Unit system: metric|statute|raw")
		format    = flag.String("format", "parquet", "Canonical sample format: parquet|csv")
		overwrite = flag.Bool("overwrite", true, "Allow writing into non-empty output directories")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s --fit input.fit --out outdir [--ftp 223] [--units metric|statute|raw] [--format parquet|csv]\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	if strings.TrimSpace(*fitPath) == "" || strings.TrimSpace(*outDir) == "" {
		flag.Usage()
		os.Exit(2)
	}

	f, err := os.Open(*fitPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fitdecode: open input: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	cfg := fit.DefaultConfig()
	cfg.Units = *units

	mem := sink.NewInMemorySink()
	if err := fit.Decode(f, mem, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "fitdecode: decode failed: %v\n", err)
		os.Exit(1)
	}

	analysis, err := analytics.AnalyzeSink(mem, analytics.Config{FTPWatts: *ftp})
	if err != nil {
		fmt.Fprintf(os.Stderr, "fitdecode: analysis failed: %v\n", err)
		os.Exit(1)
	}

	result, err := export.Export(mem, analysis, *outDir, export.Options{
		Overwrite:     *overwrite,
		SamplesFormat: *format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "fitdecode: export failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("fitdecode complete\n")
	fmt.Printf("Output dir:          %s\n", result.OutputDir)
	fmt.Printf("records.jsonl:       %s\n", result.RecordsPath)
	fmt.Printf("manifest.json:       %s\n", result.ManifestPath)
	fmt.Printf("canonical samples:   %s (%d rows)\n", result.CanonicalSamplesPath, result.SampleCount)
	fmt.Printf("messages index:      %s\n", result.MessagesIndexPath)
	fmt.Printf("workout structure:   %s\n", result.WorkoutStructurePath)
	if result.LapSummaryPath != "" {
		fmt.Printf("lap summary:         %s\n", result.LapSummaryPath)
	}
	fmt.Printf("activity summary:    %s\n", result.ActivitySummaryPath)
	fmt.Printf("notes:               %s\n", result.NotesPath)
}
