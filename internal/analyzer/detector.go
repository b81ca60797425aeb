// Package analyzer finds regions of interest in clip images. The manifest
// drafter uses them to decide how long to hold an image and how far to zoom.
package analyzer

import (
	"image"
	"sort"
)

// Block represents a detected region of interest in an image
type Block struct {
	Rect       image.Rectangle
	Confidence float64 // 0.0-1.0
}

// Detector is the interface for image analysis strategies
type Detector interface {
	Detect(img image.Image) ([]Block, error)
}

// Largest returns the block with the biggest area.
func Largest(blocks []Block) (Block, bool) {
	if len(blocks) == 0 {
		return Block{}, false
	}
	best := blocks[0]
	for _, b := range blocks[1:] {
		if area(b.Rect) > area(best.Rect) {
			best = b
		}
	}
	return best, true
}

// Coverage is the share of bounds covered by the union of block bounding
// boxes, in [0,1]. Overlaps are counted once.
func Coverage(blocks []Block, bounds image.Rectangle) float64 {
	total := area(bounds)
	if total == 0 || len(blocks) == 0 {
		return 0
	}
	// площадь объединения по строкам: для каждой полосы между границами Y
	// складываем слитые интервалы по X
	ys := make([]int, 0, 2*len(blocks))
	for _, b := range blocks {
		r := b.Rect.Intersect(bounds)
		if r.Empty() {
			continue
		}
		ys = append(ys, r.Min.Y, r.Max.Y)
	}
	sort.Ints(ys)

	covered := 0
	for i := 1; i < len(ys); i++ {
		y0, y1 := ys[i-1], ys[i]
		if y0 == y1 {
			continue
		}
		var spans [][2]int
		for _, b := range blocks {
			r := b.Rect.Intersect(bounds)
			if r.Empty() || r.Min.Y > y0 || r.Max.Y < y1 {
				continue
			}
			spans = append(spans, [2]int{r.Min.X, r.Max.X})
		}
		covered += mergedLength(spans) * (y1 - y0)
	}
	return float64(covered) / float64(total)
}

func mergedLength(spans [][2]int) int {
	if len(spans) == 0 {
		return 0
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i][0] < spans[j][0] })
	length := 0
	cur := spans[0]
	for _, s := range spans[1:] {
		if s[0] <= cur[1] {
			if s[1] > cur[1] {
				cur[1] = s[1]
			}
			continue
		}
		length += cur[1] - cur[0]
		cur = s
	}
	return length + cur[1] - cur[0]
}

func area(r image.Rectangle) int {
	if r.Empty() {
		return 0
	}
	return r.Dx() * r.Dy()
}
