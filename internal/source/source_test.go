package source

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 100, A: 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestOpenDirectory(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "b.png"), 4, 3)
	writePNG(t, filepath.Join(dir, "a.png"), 8, 6)
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip me"), 0644)

	images, err := Open(dir, 0)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if len(images) != 2 {
		t.Fatalf("Expected 2 images, got %d", len(images))
	}

	w, h, err := images[0].Size()
	if err != nil {
		t.Fatalf("Size failed: %v", err)
	}
	if w != 8 || h != 6 {
		t.Errorf("Expected a.png first (8x6), got %dx%d", w, h)
	}

	img, err := images[1].Decode(context.Background())
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if img.Bounds().Dx() != 4 {
		t.Errorf("Expected width 4, got %d", img.Bounds().Dx())
	}
}

func TestOpenEmptyDirectory(t *testing.T) {
	if _, err := Open(t.TempDir(), 0); err == nil {
		t.Error("Expected error for empty directory")
	}
}

func TestBytesImage(t *testing.T) {
	var buf bytes.Buffer
	png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 5, 7)))

	b := NewBytesImage("upload-1", buf.Bytes())
	w, h, err := b.Size()
	if err != nil || w != 5 || h != 7 {
		t.Errorf("Size: %d %d %v", w, h, err)
	}

	bad := NewBytesImage("broken", []byte("not an image"))
	if _, err := bad.Decode(context.Background()); err == nil {
		t.Error("Expected decode error")
	}
}

func solidPNG(t *testing.T, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestBytesImageSameNameDifferentContent(t *testing.T) {
	red := NewBytesImage("image.png", solidPNG(t, color.RGBA{R: 255, A: 255}))
	blue := NewBytesImage("image.png", solidPNG(t, color.RGBA{B: 255, A: 255}))
	if red.Key() == blue.Key() {
		t.Fatalf("different uploads share key %q", red.Key())
	}
	if again := NewBytesImage("image.png", solidPNG(t, color.RGBA{R: 255, A: 255})); again.Key() != red.Key() {
		t.Errorf("identical uploads got keys %q and %q", red.Key(), again.Key())
	}

	cache := NewCache(4)
	ctx := context.Background()
	if _, err := cache.Decode(ctx, red); err != nil {
		t.Fatal(err)
	}
	img, err := cache.Decode(ctx, blue)
	if err != nil {
		t.Fatal(err)
	}
	r, _, b, _ := img.At(0, 0).RGBA()
	if r != 0 || b != 0xffff {
		t.Errorf("second upload decoded as r=%d b=%d, want blue", r>>8, b>>8)
	}
}

func TestIsImagePath(t *testing.T) {
	for path, want := range map[string]bool{
		"a.JPG": true, "b.webp": true, "c.tiff": true, "d.pdf": false, "e": false,
	} {
		if got := IsImagePath(path); got != want {
			t.Errorf("IsImagePath(%s) = %v", path, got)
		}
	}
}

type countingImage struct {
	key   string
	calls atomic.Int32
	gate  chan struct{}
	err   error
}

func (c *countingImage) Key() string             { return c.key }
func (c *countingImage) Size() (int, int, error) { return 1, 1, nil }
func (c *countingImage) Bytes(context.Context) ([]byte, error) {
	return nil, nil
}

func (c *countingImage) Decode(context.Context) (image.Image, error) {
	c.calls.Add(1)
	if c.gate != nil {
		<-c.gate
	}
	if c.err != nil {
		return nil, c.err
	}
	return image.NewRGBA(image.Rect(0, 0, 1, 1)), nil
}

func TestCacheCollapsesConcurrentDecodes(t *testing.T) {
	cache := NewCache(4)
	img := &countingImage{key: "k", gate: make(chan struct{})}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.Decode(context.Background(), img); err != nil {
				t.Errorf("Decode failed: %v", err)
			}
		}()
	}
	close(img.gate)
	wg.Wait()

	if _, err := cache.Decode(context.Background(), img); err != nil {
		t.Fatal(err)
	}
	if n := img.calls.Load(); n != 1 {
		t.Errorf("Expected decodes to be collapsed, got %d calls", n)
	}
}

func TestCacheEvictsOldest(t *testing.T) {
	cache := NewCache(2)
	ctx := context.Background()
	a := &countingImage{key: "a"}
	b := &countingImage{key: "b"}
	c := &countingImage{key: "c"}

	for _, img := range []*countingImage{a, b, c} {
		cache.Decode(ctx, img)
	}
	if cache.Len() != 2 {
		t.Fatalf("Expected 2 entries, got %d", cache.Len())
	}
	cache.Decode(ctx, a)
	if a.calls.Load() != 2 {
		t.Errorf("Expected a to be evicted and decoded again, calls=%d", a.calls.Load())
	}
}

func TestCacheDoesNotStoreFailures(t *testing.T) {
	cache := NewCache(2)
	img := &countingImage{key: "x", err: errors.New("corrupt")}
	if _, err := cache.Decode(context.Background(), img); err == nil {
		t.Fatal("Expected error")
	}
	if cache.Len() != 0 {
		t.Error("Failed decode must not be cached")
	}
}
