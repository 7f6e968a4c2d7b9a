package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"microprep/pkg/config"
	"microprep/pkg/pipeline"
)

func main() {
	// Parse command line arguments
	inputDir := flag.String("input", "", "Directory containing micrographs (png, jpg, tif)")
	outputDir := flag.String("output", "filtered", "Directory for filtered micrographs")
	configPath := flag.String("config", "microprep.yaml", "YAML configuration file (defaults are used if it does not exist)")
	writeConfig := flag.Bool("write-config", false, "Write the effective configuration to -config and exit")
	maskFile := flag.String("mask", "", "Optional mask image; non-zero pixels are eligible for suppression")
	ksize := flag.Int("ksize", 0, "Base window length, odd (overrides config)")
	asympix := flag.Int("asympix", -1, "Extra horizontal window length (overrides config)")
	thresh := flag.Float64("thresh", 0, "Threshold ratio (overrides config)")
	damping := flag.Float64("damping", 0, "Damping divisor for suppressed pixels (overrides config)")
	boundary := flag.String("boundary", "", "Boundary policy: isolated, replicate or reflect (overrides config)")
	numCores := flag.Int("cores", 0, "Number of CPU cores to use (overrides config)")
	saveIntermediary := flag.Bool("save-intermediary", false, "Save mask and response fields")
	intermediaryDir := flag.String("intermediary-dir", "intermediary_results", "Directory to save intermediary results")
	quiet := flag.Bool("quiet", false, "Suppress progress output")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Command line values win over the configuration file
	if *ksize != 0 {
		cfg.ANMS.KSize = *ksize
	}
	if *asympix >= 0 {
		cfg.ANMS.AsymPix = *asympix
	}
	if *thresh != 0 {
		cfg.ANMS.ThreshRatio = *thresh
	}
	if *damping != 0 {
		cfg.ANMS.Damping = *damping
	}
	if *boundary != "" {
		cfg.ANMS.Boundary = *boundary
	}
	if *numCores != 0 {
		cfg.Processing.NumCores = *numCores
	}
	if *maskFile != "" {
		cfg.Processing.MaskFile = *maskFile
	}
	if *saveIntermediary {
		cfg.Output.SaveIntermediaryResults = true
	}
	if *quiet {
		cfg.Output.Verbose = false
	}

	if *writeConfig {
		if err := config.SaveConfig(cfg, *configPath); err != nil {
			log.Fatalf("Failed to write configuration: %v", err)
		}
		fmt.Printf("Configuration written to %s\n", *configPath)
		return
	}

	// Validate inputs
	if *inputDir == "" {
		flag.Usage()
		os.Exit(1)
	}

	anmsParams, err := cfg.Params()
	if err != nil {
		log.Fatalf("Invalid suppression parameters: %v", err)
	}

	sweepDir := cfg.Sweep.OutputDir
	if sweepDir != "" && !filepath.IsAbs(sweepDir) {
		sweepDir = filepath.Join(*outputDir, sweepDir)
	}

	params := &pipeline.Params{
		InputDir:                *inputDir,
		OutputDir:               *outputDir,
		MaskFile:                cfg.Processing.MaskFile,
		ANMS:                    anmsParams,
		NumCores:                cfg.Processing.NumCores,
		Gamma:                   cfg.Processing.Gamma,
		NoiseLineKernel:         cfg.Processing.NoiseLineKernel,
		Format:                  cfg.Output.Format,
		SweepThreshRatios:       cfg.Sweep.ThreshRatios,
		SweepDir:                sweepDir,
		SaveIntermediaryResults: cfg.Output.SaveIntermediaryResults,
		IntermediaryDir:         *intermediaryDir,
		Verbose:                 cfg.Output.Verbose,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Println("================================")
	fmt.Println("ASYMMETRIC DIRECTIONAL NON-MAXIMUM SUPPRESSION")
	fmt.Println("================================")

	processor := pipeline.NewProcessor(params)
	startTime := time.Now()
	if err := processor.Process(ctx); err != nil {
		log.Fatalf("Filtering failed: %v", err)
	}
	processingTime := time.Since(startTime)

	fmt.Printf("\nFiltering completed in %.2f seconds using %d cores\n", processingTime.Seconds(), params.NumCores)
	fmt.Printf("Output saved to: %s\n\n", *outputDir)

	fmt.Printf("%-32s %8s %10s %10s %10s\n", "File", "Thresh", "Damped %", "Mean in", "Mean out")
	for _, r := range processor.Results() {
		fmt.Printf("%-32s %8.3f %10.2f %10.2f %10.2f\n",
			r.Filename, r.ThreshRatio, r.Metrics.SuppressedFraction*100,
			r.Metrics.Input.Mean, r.Metrics.Output.Mean)
	}

	if params.SaveIntermediaryResults {
		fmt.Println("\nIntermediary results saved to:")
		fmt.Printf("%s\n", params.IntermediaryDir)
		fmt.Println("- 00_mask: Validity mask")
		fmt.Println("- 01_column_field: Vertical box sums")
		fmt.Println("- 02_row_field: Horizontal box sums")
	}
}
