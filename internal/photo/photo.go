// Package photo maps wine entries to photo files and handles the files
// themselves: storing uploads, removing them, and decoding a downsampled
// copy for display.
//
// Path is a pure function. Library is the only part that touches the
// filesystem; the store never calls it.
package photo

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"

	"github.com/pkordes/wine-catalog/backend/internal/domain"
)

var (
	// ErrNoPhoto is returned when an entry has no photo file on disk.
	ErrNoPhoto = errors.New("no photo")
	// ErrInvalidImage is returned when an upload cannot be decoded as an image.
	ErrInvalidImage = errors.New("invalid image")
)

const (
	// MaxPixels caps the width x height an upload may declare. Larger images
	// are rejected before any pixel data is decoded.
	MaxPixels = 40_000_000
	// MaxSide bounds the stored original; larger uploads are fitted inside
	// a MaxSide x MaxSide box.
	MaxSide = 4096
)

// Path returns the location of w's photo under root. It depends only on
// w.ID and says nothing about whether the file exists.
func Path(root string, w domain.Wine) string {
	return filepath.Join(root, w.PhotoFilename())
}

// SampleFactor returns the integer factor by which a srcW x srcH image is
// shrunk to fit a destW x destH display: max(1, min(srcW/destW, srcH/destH)).
// Non-positive destination sizes mean "no limit" and yield 1.
func SampleFactor(srcW, srcH, destW, destH int) int {
	if destW <= 0 || destH <= 0 {
		return 1
	}
	return max(1, min(srcW/destW, srcH/destH))
}

// Library stores photos as JPEG files in a single directory.
type Library struct {
	Root string
}

// NewLibrary returns a Library rooted at root, creating the directory if needed.
func NewLibrary(root string) (*Library, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("photo.NewLibrary: %w", err)
	}
	return &Library{Root: root}, nil
}

// Path returns the photo location for w.
func (l *Library) Path(w domain.Wine) string {
	return Path(l.Root, w)
}

// Exists reports whether w has a photo. File existence is the only record of
// that; nothing is cached.
func (l *Library) Exists(w domain.Wine) (bool, error) {
	_, err := os.Stat(l.Path(w))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("photo.Library.Exists: %w", err)
	}
}

// Save decodes r as an image and writes it as w's photo, re-encoded as JPEG.
// Images declaring more than MaxPixels are rejected with ErrInvalidImage and
// anything wider or taller than MaxSide is shrunk to fit. The file is written
// to a temporary name and renamed into place, so readers never see a partial
// photo.
func (l *Library) Save(w domain.Wine, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("photo.Library.Save: read: %w", err)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("photo.Library.Save: %w: %w", ErrInvalidImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return fmt.Errorf("photo.Library.Save: %w: %dx%d exceeds %d pixels", ErrInvalidImage, cfg.Width, cfg.Height, MaxPixels)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("photo.Library.Save: %w: %w", ErrInvalidImage, err)
	}
	if b := img.Bounds(); b.Dx() > MaxSide || b.Dy() > MaxSide {
		img = imaging.Fit(img, MaxSide, MaxSide, imaging.Lanczos)
	}

	tmp, err := os.CreateTemp(l.Root, ".upload-*.jpg")
	if err != nil {
		return fmt.Errorf("photo.Library.Save: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op once renamed

	if err := imaging.Encode(tmp, img, imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
		tmp.Close()
		return fmt.Errorf("photo.Library.Save: encode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("photo.Library.Save: %w", err)
	}
	if err := os.Rename(tmp.Name(), l.Path(w)); err != nil {
		return fmt.Errorf("photo.Library.Save: %w", err)
	}
	return nil
}

// Remove deletes w's photo. A missing file is not an error.
func (l *Library) Remove(w domain.Wine) error {
	err := os.Remove(l.Path(w))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("photo.Library.Remove: %w", err)
	}
	return nil
}

// Open opens w's photo for reading. Returns ErrNoPhoto if there is none.
func (l *Library) Open(w domain.Wine) (*os.File, error) {
	f, err := os.Open(l.Path(w))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoPhoto
	}
	if err != nil {
		return nil, fmt.Errorf("photo.Library.Open: %w", err)
	}
	return f, nil
}

// Scaled decodes w's photo and shrinks it by SampleFactor for a destW x destH
// display. Returns ErrNoPhoto if there is none.
func (l *Library) Scaled(w domain.Wine, destW, destH int) (image.Image, error) {
	img, err := imaging.Open(l.Path(w))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoPhoto
	}
	if err != nil {
		return nil, fmt.Errorf("photo.Library.Scaled: %w", err)
	}

	b := img.Bounds()
	factor := SampleFactor(b.Dx(), b.Dy(), destW, destH)
	if factor == 1 {
		return img, nil
	}
	return imaging.Resize(img, b.Dx()/factor, b.Dy()/factor, imaging.Box), nil
}

// Encode writes img to out as JPEG.
func Encode(out io.Writer, img image.Image) error {
	return imaging.Encode(out, img, imaging.JPEG, imaging.JPEGQuality(85))
}
