package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/visionforge/foundry/internal/annotate"
	"github.com/visionforge/foundry/internal/config"
	"github.com/visionforge/foundry/internal/dataset"
	"github.com/visionforge/foundry/internal/dispatch"
	"github.com/visionforge/foundry/internal/home"
	"github.com/visionforge/foundry/internal/imagehash"
	"github.com/visionforge/foundry/internal/metrics"
	"github.com/visionforge/foundry/internal/providers"
	"github.com/visionforge/foundry/internal/quality"
	"github.com/visionforge/foundry/internal/refine"
	"github.com/visionforge/foundry/internal/render"
)

var (
	runLabels        []string
	runImageDir      string
	runProvider      string
	runMaxIterations int
	runValidation    string
	runConcurrency   int
	runOutput        string
)

var runCmd = &cobra.Command{
	Use:   "run [images...]",
	Short: "Annotate images and export a COCO dataset",
	Long: `Run the annotation pipeline over a set of images. Images come either
from --image-dir or as positional arguments. Each image goes through the
refinement loop: annotate, validate, and re-annotate with feedback until the
validator approves or the iteration budget runs out.`,
	RunE: runPipeline,
}

func init() {
	runCmd.Flags().StringSliceVarP(&runLabels, "labels", "l", nil, "target object labels (required)")
	runCmd.Flags().StringVarP(&runImageDir, "image-dir", "d", "", "directory of images to annotate")
	runCmd.Flags().StringVar(&runProvider, "provider", "", "inference provider (overrides config)")
	runCmd.Flags().IntVar(&runMaxIterations, "max-iterations", 0, "refinement iteration budget (overrides config)")
	runCmd.Flags().StringVar(&runValidation, "validation", "", "validation method: coordinate, visual, hybrid (overrides config)")
	runCmd.Flags().IntVar(&runConcurrency, "concurrency", 0, "parallel image loops (overrides config)")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "COCO output path (overrides config)")
	cobra.CheckErr(runCmd.MarkFlagRequired("labels"))
}

func runPipeline(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cm, err := config.NewManager(cfgFile)
	if err != nil {
		return err
	}
	cfg := cm.Get()
	applyRunOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	logger := newLogger(level)

	images, err := collectImages(args)
	if err != nil {
		return err
	}
	if len(images) == 0 {
		return fmt.Errorf("no images to annotate: pass paths or --image-dir")
	}

	registry := providers.NewRegistry(logger)
	if err := registry.LoadFromConfig(ctx, cfg.ToRegistryConfig()); err != nil {
		return err
	}
	client, err := registry.Get(cfg.Pipeline.Provider)
	if err != nil {
		return err
	}

	cache := render.NewImageCache()
	recorder := metrics.NewRecorder()

	images, err = dedupeImages(images, cache, cfg.Pipeline.DedupThreshold, logger)
	if err != nil {
		return err
	}

	worker, err := annotate.NewWorker(annotate.Config{
		Client:  client,
		Images:  cache,
		Logger:  logger,
		Metrics: recorder,
	})
	if err != nil {
		return err
	}

	method, err := quality.ParseMethod(cfg.Pipeline.ValidationMethod)
	if err != nil {
		return err
	}
	validator, err := quality.New(method, quality.Config{
		Client: client,
		Images: cache,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	loop, err := refine.NewLoop(refine.Config{
		Annotator:     worker,
		Validator:     validator,
		MaxIterations: cfg.Pipeline.MaxIterations,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	dispatcher, err := dispatch.New(dispatch.Config{
		Runner:      loop,
		Concurrency: cfg.Pipeline.Concurrency,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	outcomes := dispatcher.Dispatch(ctx, images, runLabels)

	outputPath, err := resolveOutputPath(cfg.Pipeline.OutputPath)
	if err != nil {
		return err
	}
	if err := exportDataset(outputPath, runLabels, images, outcomes, cache, recorder, logger); err != nil {
		return err
	}

	recorder.Log(logger)
	return nil
}

func applyRunOverrides(cfg *config.Config) {
	if runProvider != "" {
		cfg.Pipeline.Provider = runProvider
	}
	if runMaxIterations != 0 {
		cfg.Pipeline.MaxIterations = runMaxIterations
	}
	if runValidation != "" {
		cfg.Pipeline.ValidationMethod = runValidation
	}
	if runConcurrency != 0 {
		cfg.Pipeline.Concurrency = runConcurrency
	}
	if runOutput != "" {
		cfg.Pipeline.OutputPath = runOutput
	}
}

// resolveOutputPath anchors a relative output path in the foundry home
// directory, creating the workspace tree on first use. Absolute paths are
// used as given.
func resolveOutputPath(path string) (string, error) {
	if filepath.IsAbs(path) {
		return path, nil
	}
	hd, err := home.New(homeDir)
	if err != nil {
		return "", err
	}
	if err := hd.EnsureExists(); err != nil {
		return "", err
	}
	return filepath.Join(hd.Path(), path), nil
}

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true,
	".gif": true, ".bmp": true, ".tif": true, ".tiff": true,
}

// collectImages merges positional paths with the contents of --image-dir,
// sorted for a stable processing order.
func collectImages(args []string) ([]string, error) {
	images := append([]string(nil), args...)

	if runImageDir != "" {
		entries, err := os.ReadDir(runImageDir)
		if err != nil {
			return nil, fmt.Errorf("failed to read image dir: %w", err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			if imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
				images = append(images, filepath.Join(runImageDir, entry.Name()))
			}
		}
	}

	sort.Strings(images)
	return images, nil
}

// dedupeImages drops perceptual near-duplicates so the dataset does not pay
// inference cost for the same picture twice. Unreadable files are dropped
// here too, before they waste a refinement loop.
func dedupeImages(images []string, cache *render.ImageCache, threshold int, logger *slog.Logger) ([]string, error) {
	seen := imagehash.NewSeenSet(threshold)
	kept := images[:0]
	for _, path := range images {
		img, err := cache.Load(path)
		if err != nil {
			logger.Warn("skipping unreadable image", "image", path, "error", err)
			continue
		}
		if !seen.Add(imagehash.Difference(img)) {
			logger.Info("skipping near-duplicate image", "image", path)
			continue
		}
		kept = append(kept, path)
	}
	return kept, nil
}

// exportDataset writes approved and exhausted-but-present annotations to a
// COCO file. FAILED images contribute nothing but are still counted.
func exportDataset(path string, labels, images []string, outcomes map[string]*refine.Outcome, cache *render.ImageCache, recorder *metrics.Recorder, logger *slog.Logger) error {
	builder := dataset.NewBuilder("foundry annotation run", labels)

	for _, imageRef := range images {
		outcome, ok := outcomes[imageRef]
		if !ok {
			continue
		}
		recorder.RecordOutcome(string(outcome.FinalStatus))

		if outcome.Best == nil || len(outcome.Best.Records) == 0 {
			logger.Warn("no annotations for image",
				"image", imageRef, "status", outcome.FinalStatus)
			continue
		}

		img, err := cache.Load(imageRef)
		if err != nil {
			logger.Warn("could not reload image for export", "image", imageRef, "error", err)
			continue
		}
		bounds := img.Bounds()
		builder.AddImage(filepath.Base(imageRef), bounds.Dx(), bounds.Dy(), outcome.Best.Records)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output dir: %w", err)
		}
	}
	if err := builder.WriteFile(path); err != nil {
		return err
	}

	f := builder.File()
	logger.Info("dataset written",
		"path", path,
		"images", len(f.Images),
		"annotations", len(f.Annotations),
		"categories", len(f.Categories))
	return nil
}
