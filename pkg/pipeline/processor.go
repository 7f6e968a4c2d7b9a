// Package pipeline runs directional suppression over a directory of
// micrographs, saving the filtered images and per-image metrics.
package pipeline

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"microprep/internal/models"
	"microprep/pkg/anms"
	"microprep/pkg/grid"
	"microprep/pkg/imageio"
	"microprep/pkg/imgops"
)

// Params holds the batch processing configuration.
type Params struct {
	// InputDir is the directory containing the micrographs (PNG, JPEG or TIFF).
	// Files are processed in the numeric order of the digits in their names.
	InputDir string

	// OutputDir receives one filtered image per micrograph.
	OutputDir string

	// MaskFile optionally names an image whose non-zero pixels mark the
	// region eligible for suppression. It must match every micrograph's shape.
	MaskFile string

	// ANMS configures the suppression filter.
	ANMS anms.Params

	// NumCores bounds how many micrographs are filtered at once.
	NumCores int

	// Gamma is applied to 8-bit micrographs before filtering. 0 or 1 skips it.
	Gamma float64

	// NoiseLineKernel is the run length of the horizontal opening applied
	// before filtering. 0 skips it.
	NoiseLineKernel int

	// Format is the output file extension without the dot. Defaults to png.
	Format string

	// SweepThreshRatios lists extra thresholds evaluated against the same
	// precomputed response fields. Results go to SweepDir, named with the
	// shortest representation of each threshold. Duplicates are rejected.
	SweepThreshRatios []float64
	SweepDir          string

	// SaveIntermediaryResults writes the mask and response fields to IntermediaryDir.
	SaveIntermediaryResults bool
	IntermediaryDir         string

	// Verbose prints progress to stdout.
	Verbose bool
}

// ProgressCallback is a function that reports progress during processing
type ProgressCallback func(completed, total int, message string)

// Processor filters every micrograph of a directory.
type Processor struct {
	params      *Params
	micrographs []*models.Micrograph
	mask        *grid.Mask
	results     []models.Result

	progressCallback ProgressCallback
	progressMu       sync.Mutex
	completed        int
}

// NewProcessor creates a processor for the given parameters.
func NewProcessor(params *Params) *Processor {
	return &Processor{params: params}
}

// SetProgressCallback sets a callback that is invoked after each micrograph
// finishes. The message names the file that was completed.
func (p *Processor) SetProgressCallback(callback ProgressCallback) {
	p.progressCallback = callback
}

// Results returns the per-micrograph results of the last Process call,
// ordered by input index and then by threshold.
func (p *Processor) Results() []models.Result {
	return p.results
}

// Process runs the complete pipeline: load, filter, save.
func (p *Processor) Process(ctx context.Context) error {
	if err := p.params.ANMS.Validate(); err != nil {
		return err
	}
	seen := make(map[float64]bool, len(p.params.SweepThreshRatios))
	for _, t := range p.params.SweepThreshRatios {
		sweep := p.params.ANMS
		sweep.ThreshRatio = t
		if err := sweep.Validate(); err != nil {
			return fmt.Errorf("sweep: %w", err)
		}
		if seen[t] {
			return fmt.Errorf("sweep: %w: threshold %v listed twice", anms.ErrInvalidParameter, t)
		}
		seen[t] = true
	}

	p.logf("Step 1: Loading micrographs from %s...\n", p.params.InputDir)
	if err := p.loadMicrographs(); err != nil {
		return fmt.Errorf("failed to load micrographs: %w", err)
	}

	if p.params.MaskFile != "" {
		p.logf("Step 2: Loading mask %s...\n", p.params.MaskFile)
		img, err := imageio.Load(p.params.MaskFile)
		if err != nil {
			return fmt.Errorf("failed to load mask: %w", err)
		}
		p.mask = imageio.Mask(img)
		p.logf("Mask marks %d of %d pixels as valid\n", p.mask.Count(), len(p.mask.Data))
	}

	p.logf("Step 3: Filtering %d micrographs (ksize=%d asympix=%d thresh=%.3g damping=%.3g)...\n",
		len(p.micrographs), p.params.ANMS.KSize, p.params.ANMS.AsymPix,
		p.params.ANMS.ThreshRatio, p.params.ANMS.Damping)
	return p.filterAll(ctx)
}

// loadMicrographs reads and orders the input images.
func (p *Processor) loadMicrographs() error {
	entries, err := os.ReadDir(p.params.InputDir)
	if err != nil {
		return err
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && imageio.IsImageFile(e.Name()) {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return fmt.Errorf("no images found in %s", p.params.InputDir)
	}

	sort.SliceStable(names, func(i, j int) bool {
		ni, nj := extractNumber(names[i]), extractNumber(names[j])
		if ni != nj {
			return ni < nj
		}
		return names[i] < names[j]
	})

	p.micrographs = p.micrographs[:0]
	for i, name := range names {
		img, err := imageio.Load(filepath.Join(p.params.InputDir, name))
		if err != nil {
			return err
		}
		m := &models.Micrograph{Index: i, Filename: name}
		switch img.(type) {
		case *image.Gray16, *image.RGBA64, *image.NRGBA64:
			m.BitDepth = 16
			m.Samples = imageio.Gray16(img)
		default:
			m.BitDepth = 8
			m.Samples = grid.Convert[uint16](imageio.Gray8(img))
		}
		p.micrographs = append(p.micrographs, m)
	}

	first := p.micrographs[0].Samples
	p.logf("Loaded %d micrographs, first is %s\n", len(p.micrographs), first.Shape())
	return nil
}

// extractNumber extracts the numeric part from a filename
func extractNumber(filename string) int {
	base := filepath.Base(filename)
	var digits strings.Builder
	for _, c := range base {
		if c >= '0' && c <= '9' {
			digits.WriteRune(c)
		}
	}
	if digits.Len() == 0 {
		return 0
	}
	num, err := strconv.Atoi(digits.String())
	if err != nil {
		return 0
	}
	return num
}

// filterAll runs filterOne for every micrograph, NumCores at a time.
func (p *Processor) filterAll(ctx context.Context) error {
	perImage := make([][]models.Result, len(p.micrographs))
	p.completed = 0

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(p.params.NumCores, 1))
	for i, m := range p.micrographs {
		i, m := i, m // per-iteration copies (go directive < 1.22)
		g.Go(func() error {
			results, err := p.filterOne(ctx, m)
			if err != nil {
				return fmt.Errorf("%s: %w", m.Filename, err)
			}
			perImage[i] = results
			p.reportProgress(m.Filename)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	p.results = p.results[:0]
	for _, r := range perImage {
		p.results = append(p.results, r...)
	}
	return nil
}

// filterOne preprocesses one micrograph, aggregates it once, and runs the
// suppression for the main threshold and every sweep threshold.
func (p *Processor) filterOne(ctx context.Context, m *models.Micrograph) ([]models.Result, error) {
	img, err := p.preprocess(m)
	if err != nil {
		return nil, err
	}

	mask := p.mask
	if mask == nil {
		mask = grid.NewMask(img.Height, img.Width, true)
	}
	if err := grid.CheckShape("mask", img.Shape(), mask.Shape()); err != nil {
		return nil, err
	}

	params := p.params.ANMS
	fields, err := anms.Aggregate(img, params.KSize, params.AsymPix, params.Boundary)
	if err != nil {
		return nil, err
	}
	if p.params.SaveIntermediaryResults {
		if err := p.saveIntermediary(m, mask, fields); err != nil {
			p.logf("Warning: failed to save intermediary results for %s: %v\n", m.Filename, err)
		}
	}

	type run struct {
		thresh float64
		path   string
	}
	base := strings.TrimSuffix(m.Filename, filepath.Ext(m.Filename))
	runs := []run{{params.ThreshRatio, filepath.Join(p.params.OutputDir, base+"_anms."+p.format())}}
	for _, t := range p.params.SweepThreshRatios {
		name := fmt.Sprintf("%s_t%s.%s", base, strconv.FormatFloat(t, 'g', -1, 64), p.format())
		runs = append(runs, run{t, filepath.Join(p.sweepDir(), name)})
	}

	results := make([]models.Result, 0, len(runs))
	for _, run := range runs {
		params.ThreshRatio = run.thresh
		out, err := anms.SuppressFields(ctx, img, mask, fields, params)
		if err != nil {
			return nil, err
		}
		if err := p.save(run.path, out, m.BitDepth); err != nil {
			return nil, err
		}
		results = append(results, models.Result{
			Filename:    m.Filename,
			ThreshRatio: run.thresh,
			OutputPath:  run.path,
			Metrics:     computeMetrics(img, out),
		})
	}
	return results, nil
}

// preprocess applies the optional gamma and noise-line steps.
func (p *Processor) preprocess(m *models.Micrograph) (*grid.Grid[uint16], error) {
	img := m.Samples
	if p.params.Gamma > 0 && p.params.Gamma != 1 && m.BitDepth == 8 {
		corrected, err := imgops.GammaCorrect(grid.Convert[uint8](img), p.params.Gamma)
		if err != nil {
			return nil, err
		}
		img = grid.Convert[uint16](corrected)
	}
	if p.params.NoiseLineKernel > 0 {
		opened, err := imgops.SuppressNoiseLines(img, p.params.NoiseLineKernel)
		if err != nil {
			return nil, err
		}
		img = opened
	}
	return img, nil
}

func (p *Processor) save(path string, g *grid.Grid[uint16], bitDepth int) error {
	if bitDepth == 8 {
		return imageio.SaveGrid(path, grid.Convert[uint8](g))
	}
	return imageio.SaveGrid(path, g)
}

// saveIntermediary writes the mask and both response fields, stretched for display.
func (p *Processor) saveIntermediary(m *models.Micrograph, mask *grid.Mask, f *anms.Fields) error {
	base := strings.TrimSuffix(m.Filename, filepath.Ext(m.Filename))
	dir := p.params.IntermediaryDir
	if err := imageio.Save(filepath.Join(dir, "00_mask", base+".png"), imageio.MaskImage(mask)); err != nil {
		return err
	}
	if err := imageio.SaveGrid(filepath.Join(dir, "01_column_field", base+".png"), f.Column); err != nil {
		return err
	}
	return imageio.SaveGrid(filepath.Join(dir, "02_row_field", base+".png"), f.Row)
}

func (p *Processor) format() string {
	if p.params.Format == "" {
		return "png"
	}
	return strings.TrimPrefix(p.params.Format, ".")
}

func (p *Processor) sweepDir() string {
	if p.params.SweepDir == "" {
		return filepath.Join(p.params.OutputDir, "threshold_sweep")
	}
	return p.params.SweepDir
}

func (p *Processor) reportProgress(filename string) {
	p.progressMu.Lock()
	defer p.progressMu.Unlock()

	p.completed++
	total := len(p.micrographs)
	if p.progressCallback != nil {
		p.progressCallback(p.completed, total, filename)
	}
	p.logf("\rFiltering micrographs: %.1f%% complete", float64(p.completed)/float64(total)*100)
	if p.completed == total {
		p.logf("\n")
	}
}

func (p *Processor) logf(format string, args ...any) {
	if p.params.Verbose {
		fmt.Printf(format, args...)
	}
}
