// Package source provides the decodable image handles clips refer to. A
// handle holds a path or bytes, never pixels: decoding happens at render time.
package source

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Image is an opaque handle to decodable image data.
type Image interface {
	// Key identifies the underlying data; equal keys decode to equal pixels.
	Key() string
	// Size returns the intrinsic width and height without a full decode.
	Size() (width, height int, err error)
	// Decode produces the pixel surface.
	Decode(ctx context.Context) (image.Image, error)
	// Bytes returns the encoded image (used by export).
	Bytes(ctx context.Context) ([]byte, error)
}

var imageExts = []string{".jpg", ".jpeg", ".png", ".bmp", ".tif", ".tiff", ".webp"}

// IsImagePath reports whether path has a supported image extension.
func IsImagePath(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range imageExts {
		if ext == e {
			return true
		}
	}
	return false
}

// Open resolves path into image handles: a directory yields its images in
// name order, a PDF yields one handle per page, any other file a single handle.
func Open(path string, dpi int) ([]Image, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	if !fi.IsDir() {
		if strings.EqualFold(filepath.Ext(path), ".pdf") {
			return OpenPDF(path, dpi)
		}
		return []Image{NewFileImage(path)}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, entry := range entries {
		if !entry.IsDir() && IsImagePath(entry.Name()) {
			paths = append(paths, filepath.Join(path, entry.Name()))
		}
	}
	sort.Strings(paths)

	images := make([]Image, 0, len(paths))
	for _, p := range paths {
		images = append(images, NewFileImage(p))
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("no images found in %s", path)
	}
	return images, nil
}
