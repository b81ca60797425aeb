package analyzer

import (
	"image"
	"math"

	"golang.org/x/image/draw"
)

// ContrastDetector implements edge-based region detection using Sobel operator
type ContrastDetector struct {
	MinBlockArea  int     // Minimum area in pixels² of the analysed image
	EdgeThreshold float64 // Gradient magnitude threshold
	// MaxSide downscales the image before analysis; 0 analyses at full size.
	MaxSide int
}

// NewContrastDetector creates a new contrast-based detector with default settings
func NewContrastDetector() *ContrastDetector {
	return &ContrastDetector{
		MinBlockArea:  500,  // ~22x22 pixels minimum
		EdgeThreshold: 30.0, // Moderate sensitivity
		MaxSide:       480,
	}
}

// Detect finds regions of interest using edge detection and morphology.
// Rectangles are reported in the coordinates of img.
func (d *ContrastDetector) Detect(img image.Image) ([]Block, error) {
	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, nil
	}

	gray, scale := d.prepare(img)
	edges := sobel(gray, d.EdgeThreshold)
	edges = dilate(edges, 5, 2)

	minArea := float64(d.MinBlockArea) * scale * scale
	var blocks []Block
	for _, r := range components(edges) {
		if float64(r.Dx()*r.Dy()) < minArea {
			continue
		}
		blocks = append(blocks, Block{
			Rect:       unscale(r, scale, bounds),
			Confidence: 0.7,
		})
	}
	return blocks, nil
}

// prepare returns a zero-origin grayscale copy, downscaled so the longer side
// is at most MaxSide, and the applied scale.
func (d *ContrastDetector) prepare(img image.Image) (*image.Gray, float64) {
	b := img.Bounds()
	scale := 1.0
	if side := max(b.Dx(), b.Dy()); d.MaxSide > 0 && side > d.MaxSide {
		scale = float64(d.MaxSide) / float64(side)
	}
	w := max(1, int(math.Round(float64(b.Dx())*scale)))
	h := max(1, int(math.Round(float64(b.Dy())*scale)))

	gray := image.NewGray(image.Rect(0, 0, w, h))
	if scale == 1 {
		draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	} else {
		draw.ApproxBiLinear.Scale(gray, gray.Bounds(), img, b, draw.Src, nil)
	}
	return gray, scale
}

func unscale(r image.Rectangle, scale float64, bounds image.Rectangle) image.Rectangle {
	if scale == 1 {
		return r.Add(bounds.Min)
	}
	out := image.Rect(
		int(math.Floor(float64(r.Min.X)/scale)),
		int(math.Floor(float64(r.Min.Y)/scale)),
		int(math.Ceil(float64(r.Max.X)/scale)),
		int(math.Ceil(float64(r.Max.Y)/scale)),
	)
	return out.Add(bounds.Min).Intersect(bounds)
}

// sobel marks pixels whose gradient magnitude exceeds threshold with 255.
func sobel(gray *image.Gray, threshold float64) *image.Gray {
	w, h := gray.Rect.Dx(), gray.Rect.Dy()
	edges := image.NewGray(gray.Rect)
	px := func(x, y int) float64 { return float64(gray.Pix[y*gray.Stride+x]) }

	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			gx := -px(x-1, y-1) + px(x+1, y-1) -
				2*px(x-1, y) + 2*px(x+1, y) -
				px(x-1, y+1) + px(x+1, y+1)
			gy := -px(x-1, y-1) - 2*px(x, y-1) - px(x+1, y-1) +
				px(x-1, y+1) + 2*px(x, y+1) + px(x+1, y+1)
			if math.Hypot(gx, gy) > threshold {
				edges.Pix[y*edges.Stride+x] = 255
			}
		}
	}
	return edges
}

// dilate grows marked pixels by a kernelSize square, iterations times.
func dilate(img *image.Gray, kernelSize, iterations int) *image.Gray {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	half := kernelSize / 2
	cur := img

	for iter := 0; iter < iterations; iter++ {
		next := image.NewGray(img.Rect)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				if cur.Pix[y*cur.Stride+x] == 0 {
					continue
				}
				for ky := max(0, y-half); ky <= min(h-1, y+half); ky++ {
					row := next.Pix[ky*next.Stride:]
					for kx := max(0, x-half); kx <= min(w-1, x+half); kx++ {
						row[kx] = 255
					}
				}
			}
		}
		cur = next
	}
	return cur
}

// components returns the bounding rectangles of 4-connected marked regions.
func components(img *image.Gray) []image.Rectangle {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	visited := make([]bool, w*h)
	var rects []image.Rectangle
	var stack []image.Point

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if visited[y*w+x] || img.Pix[y*img.Stride+x] <= 128 {
				continue
			}
			r := image.Rect(x, y, x+1, y+1)
			visited[y*w+x] = true
			stack = append(stack[:0], image.Pt(x, y))

			for len(stack) > 0 {
				p := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				r = r.Union(image.Rect(p.X, p.Y, p.X+1, p.Y+1))

				for _, n := range [4]image.Point{image.Pt(p.X+1, p.Y), image.Pt(p.X-1, p.Y), image.Pt(p.X, p.Y+1), image.Pt(p.X, p.Y-1)} {
					if n.X < 0 || n.X >= w || n.Y < 0 || n.Y >= h {
						continue
					}
					i := n.Y*w + n.X
					if visited[i] || img.Pix[n.Y*img.Stride+n.X] <= 128 {
						continue
					}
					visited[i] = true
					stack = append(stack, n)
				}
			}
			rects = append(rects, r)
		}
	}
	return rects
}
