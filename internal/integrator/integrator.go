// Package integrator turns finished result bytes into files the GIMP
// shim imports: a layer-sized PNG dropped beside the source image, or a
// standalone image file. It is the daemon-side half of the host
// integration; the shim performs the actual insert_layer/display calls.
package integrator

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/nfnt/resize"
	_ "golang.org/x/image/webp"

	"github.com/dreamtools/dream-background-remover/internal/model"
)

// MaxLayerNameLength bounds generated layer names, matching what GIMP
// displays without truncating.
const MaxLayerNameLength = 64

const layerNameSuffix = " - Background Removed"

// FileIntegrator writes results to disk. fallbackDir is used when a job's
// target path does not point at a writable directory; empty means the OS
// temp dir.
type FileIntegrator struct {
	fallbackDir string
}

func NewFileIntegrator(fallbackDir string) *FileIntegrator {
	return &FileIntegrator{fallbackDir: fallbackDir}
}

// Apply writes the result according to mode. create_layer scales the
// result to the source image's pixel size, since the API may return a
// different resolution than was uploaded; create_file keeps the result's
// own size. Any failure here is an integration error: the remote work is
// done, only the local application failed.
func (f *FileIntegrator) Apply(data []byte, mode model.Mode, target string) (*model.IntegrationRef, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode result image: %w", err)
	}
	_ = format // png or webp depending on the model; both are normalized to png below

	switch mode {
	case model.ModeCreateLayer:
		return f.applyLayer(img, target)
	case model.ModeCreateFile:
		return f.applyFile(img, target)
	default:
		return nil, fmt.Errorf("unsupported mode %q", mode)
	}
}

func (f *FileIntegrator) applyLayer(img image.Image, target string) (*model.IntegrationRef, error) {
	width, height, err := sourceSize(target)
	if err != nil {
		return nil, fmt.Errorf("read source dimensions: %w", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() != width || bounds.Dy() != height {
		img = resize.Resize(uint(width), uint(height), img, resize.Lanczos3)
	}

	path := f.outputPath(target, "-background-removed-layer")
	if err := writePNG(path, img); err != nil {
		return nil, err
	}

	return &model.IntegrationRef{
		Kind:      model.RefKindLayer,
		Path:      path,
		LayerName: LayerName(target),
		Width:     width,
		Height:    height,
	}, nil
}

func (f *FileIntegrator) applyFile(img image.Image, target string) (*model.IntegrationRef, error) {
	path := f.outputPath(target, "-background-removed")
	if err := writePNG(path, img); err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	return &model.IntegrationRef{
		Kind:   model.RefKindImage,
		Path:   path,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}, nil
}

// outputPath places the result beside the source, falling back to the
// configured directory, and bumps a counter instead of overwriting.
func (f *FileIntegrator) outputPath(target, suffix string) string {
	dir := filepath.Dir(target)
	base := strings.TrimSuffix(filepath.Base(target), filepath.Ext(target))
	if target == "" || !dirWritable(dir) {
		dir = f.fallbackDir
		if dir == "" {
			dir = os.TempDir()
		}
		if base == "" || base == "." {
			base = "untitled"
		}
	}

	path := filepath.Join(dir, base+suffix+".png")
	for i := 2; fileExists(path); i++ {
		path = filepath.Join(dir, fmt.Sprintf("%s%s-%d.png", base, suffix, i))
	}
	return path
}

// LayerName builds the new layer's display name from the source file,
// truncated the way the dialog expects.
func LayerName(target string) string {
	base := strings.TrimSuffix(filepath.Base(target), filepath.Ext(target))
	if base == "" || base == "." {
		base = "Layer"
	}
	name := base + layerNameSuffix
	if len(name) > MaxLayerNameLength {
		keep := MaxLayerNameLength - len(layerNameSuffix) - 3
		if keep < 1 {
			keep = 1
		}
		name = base[:keep] + "..." + layerNameSuffix
	}
	return name
}

func sourceSize(target string) (int, int, error) {
	file, err := os.Open(target)
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

func writePNG(path string, img image.Image) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer file.Close()

	if err := png.Encode(file, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func dirWritable(dir string) bool {
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}
