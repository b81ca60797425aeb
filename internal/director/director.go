package director

import (
	"context"
	"fmt"
	"image"
	"math"

	"github.com/ivlev/img2video/internal/analyzer"
	"github.com/ivlev/img2video/internal/effects"
	"github.com/ivlev/img2video/internal/source"
)

// Director drafts a manifest for a set of inputs: it spreads the soundtrack
// length over the images and alternates slow zooms in and out.
type Director struct {
	MinDwell float64 // Minimum time per image (seconds)
	MaxDwell float64 // Maximum time per image (seconds)
	MaxZoom  float64

	// Detector weighs images by detected detail; nil treats all images alike.
	Detector analyzer.Detector
	DPI      int
}

// NewDirector creates a new Director with default settings
func NewDirector() *Director {
	return &Director{
		MinDwell: 2.0,
		MaxDwell: 8.0,
		MaxZoom:  1.2,
		DPI:      150,
	}
}

// GenerateManifest creates a manifest over inputs. totalDuration <= 0 uses
// the default dwell for every image.
func (d *Director) GenerateManifest(inputs []string, audio string, totalDuration float64) (*Manifest, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no inputs")
	}

	dwellTime := d.calculateDwellTime(totalDuration, len(inputs))
	zoom := d.clampZoom(d.MaxZoom)

	m := &Manifest{Version: ManifestVersion, Audio: audio}
	for i, in := range inputs {
		start, end := 1.0, zoom
		// чередуем наезд и отъезд камеры
		if i%2 == 1 {
			start, end = zoom, 1.0
		}
		m.Clips = append(m.Clips, ClipSpec{
			Input:    in,
			Duration: dwellTime,
			Effect:   string(effects.SlowZoom),
			Params: map[string]interface{}{
				"startScale": start,
				"endScale":   end,
			},
		})
	}
	return m, nil
}

// GenerateDetailedManifest expands inputs into one clip per image and runs
// the detector on each: images with more detected content are held longer,
// and the zoom closes in on the largest region. Without a detector it is
// GenerateManifest.
func (d *Director) GenerateDetailedManifest(ctx context.Context, inputs []string, audio string, totalDuration float64) (*Manifest, error) {
	if d.Detector == nil {
		return d.GenerateManifest(inputs, audio, totalDuration)
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no inputs")
	}

	var (
		specs   []ClipSpec
		weights []float64
		zooms   []float64
	)
	for _, in := range inputs {
		images, err := source.Open(in, d.DPI)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", in, err)
		}
		for _, img := range images {
			weight, zoom, err := d.analyze(ctx, img)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", img.Key(), err)
			}
			specs = append(specs, imageSpec(in, img))
			weights = append(weights, weight)
			zooms = append(zooms, zoom)
		}
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("no images in inputs")
	}

	dwell := d.weightedDwellTimes(totalDuration, weights)
	m := &Manifest{Version: ManifestVersion, Audio: audio}
	for i, spec := range specs {
		start, end := 1.0, zooms[i]
		if i%2 == 1 {
			start, end = zooms[i], 1.0
		}
		spec.Duration = dwell[i]
		spec.Effect = string(effects.SlowZoom)
		spec.Params = map[string]interface{}{
			"startScale": start,
			"endScale":   end,
		}
		m.Clips = append(m.Clips, spec)
	}
	return m, nil
}

// analyze returns the dwell weight and the zoom for one image.
func (d *Director) analyze(ctx context.Context, img source.Image) (float64, float64, error) {
	decoded, err := img.Decode(ctx)
	if err != nil {
		return 0, 0, err
	}
	blocks, err := d.Detector.Detect(decoded)
	if err != nil {
		return 0, 0, err
	}

	weight := 1 + analyzer.Coverage(blocks, decoded.Bounds())
	zoom := d.clampZoom(d.MaxZoom)
	if b, ok := analyzer.Largest(blocks); ok {
		zoom = math.Min(zoom, d.calculateZoom(b.Rect, decoded.Bounds()))
	}
	return weight, zoom, nil
}

func imageSpec(input string, img source.Image) ClipSpec {
	switch v := img.(type) {
	case *source.PDFPage:
		return ClipSpec{Input: input, Page: v.Index() + 1}
	case *source.FileImage:
		return ClipSpec{Input: v.Path()}
	}
	return ClipSpec{Input: input}
}

// calculateZoom determines the zoom that fits block into the frame
func (d *Director) calculateZoom(block, frame image.Rectangle) float64 {
	padding := 0.9 // Use 90% of the frame

	blockW := float64(block.Dx())
	blockH := float64(block.Dy())
	if blockW == 0 || blockH == 0 {
		return 1.0
	}

	scaleX := float64(frame.Dx()) * padding / blockW
	scaleY := float64(frame.Dy()) * padding / blockH

	// Use the smaller scale to ensure block fits
	return d.clampZoom(math.Min(scaleX, scaleY))
}

// calculateDwellTime determines how long to show each image
func (d *Director) calculateDwellTime(totalDuration float64, count int) float64 {
	if totalDuration <= 0 || math.IsNaN(totalDuration) {
		return (d.MinDwell + d.MaxDwell) / 2
	}
	return d.clampDwell(totalDuration / float64(count))
}

// weightedDwellTimes spreads the duration proportionally to weights.
func (d *Director) weightedDwellTimes(totalDuration float64, weights []float64) []float64 {
	mean := d.calculateDwellTime(totalDuration, len(weights))
	sum := 0.0
	for _, w := range weights {
		sum += w
	}

	out := make([]float64, len(weights))
	for i, w := range weights {
		if sum <= 0 {
			out[i] = mean
			continue
		}
		out[i] = d.clampDwell(mean * w * float64(len(weights)) / sum)
	}
	return out
}

func (d *Director) clampDwell(dwell float64) float64 {
	// Clamp to min/max
	if dwell < d.MinDwell {
		dwell = d.MinDwell
	}
	if dwell > d.MaxDwell {
		dwell = d.MaxDwell
	}
	return dwell
}

// clampZoom keeps the zoom in a reasonable range
func (d *Director) clampZoom(zoom float64) float64 {
	if zoom < 1.0 {
		return 1.0
	}
	if zoom > 3.0 {
		return 3.0
	}
	return zoom
}
