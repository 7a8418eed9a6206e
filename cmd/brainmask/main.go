package main

import (
	"flag"
	"runtime"
	"time"

	log "github.com/sirupsen/logrus"

	"brainmask/internal/nifti"
	"brainmask/pkg/config"
	"brainmask/pkg/qc"
	"brainmask/pkg/refine"
	"brainmask/pkg/volume"
)

func main() {
	// Parse command line arguments
	anatPath := flag.String("anat", "", "Anatomical intensity volume (.nii or .nii.gz)")
	asegPath := flag.String("aseg", "", "Anatomical segmentation volume (.nii or .nii.gz)")
	segsPath := flag.String("segs", "", "Optional auxiliary tissue segmentation (.nii or .nii.gz)")
	outPath := flag.String("out", "mask.bin", "Output mask filename (flat uint8 voxels plus a YAML sidecar)")
	configPath := flag.String("config", "brainmask.yaml", "Configuration file (optional)")
	numCores := flag.Int("cores", 0, "Number of CPU cores to use (0: use config, default all available)")
	ballSize := flag.Int("ball", 0, "Structuring-element radius for closing/hole filling (0: use config)")
	windowHW := flag.Int("ww", 0, "Half-width of the local statistics window (0: use config)")
	zThreshold := flag.Float64("zval", 0, "Z-score inclusion threshold (0: use config)")
	dilationRadius := flag.Int("bw", -1, "Dilation radius for the boundary shell and final opening (-1: use config)")
	qcEnabled := flag.Bool("qc", false, "Write QC slice images")
	qcDir := flag.String("qc-dir", "", "Directory for QC slices (empty: use config)")
	flag.Parse()

	// Validate inputs
	if *anatPath == "" || *asegPath == "" {
		flag.Usage()
		log.Fatal("both -anat and -aseg are required")
	}

	// Load configuration; missing files fall back to defaults
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Command line overrides
	if *numCores > 0 {
		cfg.Processing.NumCores = *numCores
	}
	if *ballSize > 0 {
		cfg.Refinement.BallSize = *ballSize
	}
	if *windowHW > 0 {
		cfg.Refinement.WindowHalfWidth = *windowHW
	}
	if *zThreshold > 0 {
		cfg.Refinement.ZThreshold = *zThreshold
	}
	if *dilationRadius >= 0 {
		cfg.Refinement.DilationRadius = *dilationRadius
	}
	if *qcEnabled {
		cfg.QC.Enabled = true
	}
	if *qcDir != "" {
		cfg.QC.OutputDir = *qcDir
	}
	if cfg.Processing.NumCores < 1 {
		cfg.Processing.NumCores = runtime.NumCPU()
	}
	if !cfg.Output.Verbose {
		log.SetLevel(log.WarnLevel)
	}

	// Load the input volumes
	loadStart := time.Now()
	anat, err := nifti.LoadVolume(*anatPath)
	if err != nil {
		log.Fatalf("Failed to load anatomical volume: %v", err)
	}
	aseg, err := nifti.LoadLabels(*asegPath)
	if err != nil {
		log.Fatalf("Failed to load segmentation: %v", err)
	}

	var segs *volume.LabelVolume
	if *segsPath != "" {
		loaded, err := nifti.LoadLabels(*segsPath)
		if err != nil {
			log.Fatalf("Failed to load auxiliary segmentation: %v", err)
		}
		segs = loaded
	}

	log.WithFields(log.Fields{
		"shape":   shapeString(anat.Dims),
		"elapsed": time.Since(loadStart).Round(time.Millisecond),
	}).Info("Loaded input volumes")

	// Run the refinement
	opts := refine.GrowOptions{
		BallSize:        cfg.Refinement.BallSize,
		WindowHalfWidth: cfg.Refinement.WindowHalfWidth,
		ZThreshold:      cfg.Refinement.ZThreshold,
		DilationRadius:  cfg.Refinement.DilationRadius,
		Workers:         cfg.Processing.NumCores,
	}

	log.WithFields(log.Fields{
		"ball":    opts.BallSize,
		"ww":      opts.WindowHalfWidth,
		"zval":    opts.ZThreshold,
		"bw":      opts.DilationRadius,
		"workers": opts.Workers,
	}).Info("Growing brain mask")

	growStart := time.Now()
	mask, err := refine.GrowMask(anat, aseg, segs, opts)
	if err != nil {
		log.Fatalf("Mask refinement failed: %v", err)
	}

	segmented := 0
	for _, label := range aseg.Data {
		if label > 0 {
			segmented++
		}
	}
	log.WithFields(log.Fields{
		"segmented": segmented,
		"mask":      mask.Count(),
		"elapsed":   time.Since(growStart).Round(time.Millisecond),
	}).Info("Refinement complete")

	// Write the output mask
	if err := writeMaskVolume(*outPath, mask); err != nil {
		log.Fatalf("Failed to write mask: %v", err)
	}
	log.WithField("path", *outPath).Info("Wrote refined mask")

	// Write QC slices if requested
	if cfg.QC.Enabled {
		viewer, err := qc.NewViewer(anat, mask)
		if err != nil {
			log.Fatalf("Failed to create QC viewer: %v", err)
		}
		for _, axis := range cfg.QC.Axes {
			if err := viewer.SaveSliceSequence(axis, cfg.QC.OutputDir, cfg.QC.Overlay); err != nil {
				log.Warnf("Failed to save %s-axis QC slices: %v", axis, err)
			}
		}
		log.WithField("dir", cfg.QC.OutputDir).Info("Wrote QC slices")
	}
}
