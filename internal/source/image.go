package source

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// FileImage is an image file on disk.
type FileImage struct {
	path string
}

func NewFileImage(path string) *FileImage {
	return &FileImage{path: path}
}

func (f *FileImage) Key() string  { return "file:" + f.path }
func (f *FileImage) Path() string { return f.path }

func (f *FileImage) Size() (int, int, error) {
	file, err := os.Open(f.path)
	if err != nil {
		return 0, 0, err
	}
	defer file.Close()

	cfg, _, err := image.DecodeConfig(file)
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

func (f *FileImage) Decode(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	file, err := os.Open(f.path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, err
	}
	return img, nil
}

func (f *FileImage) Bytes(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.ReadFile(f.path)
}

// BytesImage is an encoded image held in memory, e.g. an upload.
type BytesImage struct {
	name string
	sum  string
	data []byte
}

func NewBytesImage(name string, data []byte) *BytesImage {
	sum := sha256.Sum256(data)
	return &BytesImage{name: name, sum: hex.EncodeToString(sum[:]), data: data}
}

// Key includes the content hash: two uploads under one name are different images.
func (b *BytesImage) Key() string { return "bytes:" + b.name + "#" + b.sum }

func (b *BytesImage) Size() (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(b.data))
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

func (b *BytesImage) Decode(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(b.data))
	return img, err
}

func (b *BytesImage) Bytes(context.Context) ([]byte, error) {
	return b.data, nil
}
