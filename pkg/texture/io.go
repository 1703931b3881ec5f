package texture

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	// Decoders registered with image.Decode.
	_ "image/gif"

	"golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Format identifies an output encoding.
type Format int

// Output format constants
const (
	FormatPNG Format = iota
	FormatJPEG
	FormatBMP
)

// DefaultJPEGQuality is used when EncodeOptions.Quality is zero.
const DefaultJPEGQuality = 95

// ErrUnsupportedFormat is returned for output paths or names that do not map
// to a known encoder.
var ErrUnsupportedFormat = errors.New("unsupported output format")

// ErrImageTooLarge is returned by DecodeLimited when the image header
// declares more pixels than allowed.
var ErrImageTooLarge = errors.New("image too large")

// FormatError reports the path or name that could not be mapped to a Format.
type FormatError struct {
	Name string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("unsupported output format: %s", e.Name)
}

func (e *FormatError) Unwrap() error {
	return ErrUnsupportedFormat
}

// String returns the canonical format name.
func (f Format) String() string {
	switch f {
	case FormatPNG:
		return "png"
	case FormatJPEG:
		return "jpeg"
	case FormatBMP:
		return "bmp"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	switch f {
	case FormatJPEG:
		return "image/jpeg"
	case FormatBMP:
		return "image/bmp"
	}
	return "image/png"
}

// ParseFormat maps a format name (png, jpg, jpeg, bmp) to a Format.
// Matching is case-insensitive.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(name, ".")) {
	case "png":
		return FormatPNG, nil
	case "jpg", "jpeg":
		return FormatJPEG, nil
	case "bmp":
		return FormatBMP, nil
	}
	return 0, &FormatError{Name: name}
}

// FormatForPath selects the output format from the file extension.
func FormatForPath(path string) (Format, error) {
	ext := filepath.Ext(path)
	if ext == "" {
		return 0, &FormatError{Name: path}
	}
	f, err := ParseFormat(ext)
	if err != nil {
		return 0, &FormatError{Name: path}
	}
	return f, nil
}

// EncodeOptions tunes the encoders.
type EncodeOptions struct {
	// Quality is the JPEG quality in [1, 100]; zero selects DefaultJPEGQuality.
	Quality int
}

// Decode reads an image in any registered format and converts it to a
// Buffer. The returned string is the detected format name.
func Decode(r io.Reader) (*Buffer, string, error) {
	img, name, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	return FromImage(img), name, nil
}

// DecodeLimited is Decode with a bound on width*height. The bound is checked
// against the image header before any pixel data is decoded; maxPixels <= 0
// disables it.
func DecodeLimited(r io.Reader, maxPixels int) (*Buffer, string, error) {
	if maxPixels <= 0 {
		return Decode(r)
	}

	var header bytes.Buffer
	cfg, _, err := image.DecodeConfig(io.TeeReader(r, &header))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	if cfg.Width > 0 && cfg.Height > 0 && cfg.Width > maxPixels/cfg.Height {
		return nil, "", fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrImageTooLarge, cfg.Width, cfg.Height, maxPixels)
	}

	return Decode(io.MultiReader(&header, r))
}

// Load decodes the image stored at path.
func Load(path string) (*Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf, _, err := Decode(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return buf, nil
}

// Encode writes the buffer in the given format.
func Encode(w io.Writer, b *Buffer, f Format, opts *EncodeOptions) error {
	img := b.ToImage()
	switch f {
	case FormatPNG:
		return png.Encode(w, img)
	case FormatJPEG:
		quality := DefaultJPEGQuality
		if opts != nil && opts.Quality > 0 {
			quality = opts.Quality
		}
		return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	case FormatBMP:
		return bmp.Encode(w, img)
	}
	return &FormatError{Name: f.String()}
}

// Save encodes the buffer into path, choosing the format from the file
// extension. Missing parent directories are created.
func Save(path string, b *Buffer, opts *EncodeOptions) error {
	f, err := FormatForPath(path)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(file)
	if err := Encode(w, b, f, opts); err != nil {
		file.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
