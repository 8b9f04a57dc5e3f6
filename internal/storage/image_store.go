// Package storage keeps uploaded product images on local disk.
package storage

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"zapstock/internal/config"
	"zapstock/internal/domain"

	"github.com/disintegration/imaging"
)

// DefaultMaxPixels bounds width×height of an upload before it is decoded.
const DefaultMaxPixels = 40_000_000

// ErrInvalidImage is returned for uploads that are not a decodable image. It also matches
// domain.ErrValidation.
var ErrInvalidImage = errors.New("invalid image")

// ImageStore decodes uploaded images, scales them down and writes them as JPEG files.
type ImageStore struct {
	dir      string
	urlPath  string
	maxBytes int64
	maxWidth  int
	maxPixels int
	now       func() time.Time
}

// NewImageStore creates an ImageStore rooted at cfg.Dir whose files are served under cfg.URLPath.
func NewImageStore(cfg config.UploadConfig) *ImageStore {
	urlPath := "/" + strings.Trim(cfg.URLPath, "/")
	return &ImageStore{
		dir:       cfg.Dir,
		urlPath:   urlPath,
		maxBytes:  cfg.MaxBytes,
		maxWidth:  cfg.MaxWidth,
		maxPixels: DefaultMaxPixels,
		now:       time.Now,
	}
}

func invalidImage(format string, args ...any) error {
	return fmt.Errorf("%w: %w: %s", domain.ErrValidation, ErrInvalidImage, fmt.Sprintf(format, args...))
}

// SaveBase64 stores a base64 image, plain or as a data URL, under a file name derived from
// name. It returns the public URL of the stored file.
func (s *ImageStore) SaveBase64(name, encoded string) (string, error) {
	encoded = strings.TrimSpace(encoded)
	if strings.HasPrefix(encoded, "data:") {
		comma := strings.IndexByte(encoded, ',')
		if comma < 0 {
			return "", invalidImage("malformed data URL")
		}
		encoded = encoded[comma+1:]
	}
	if encoded == "" {
		return "", invalidImage("image is empty")
	}

	if s.maxBytes > 0 && int64(base64.StdEncoding.DecodedLen(len(encoded))) > s.maxBytes+2 {
		return "", invalidImage("image exceeds %d bytes", s.maxBytes)
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", invalidImage("image is not valid base64")
	}
	if s.maxBytes > 0 && int64(len(raw)) > s.maxBytes {
		return "", invalidImage("image exceeds %d bytes", s.maxBytes)
	}

	return s.Save(name, bytes.NewReader(raw))
}

// Save decodes an image from r, resizes it to the configured maximum width when wider and
// writes it as JPEG. The header is checked against the pixel limit before any pixels are
// decoded.
func (s *ImageStore) Save(name string, r io.Reader) (string, error) {
	if s.maxBytes > 0 {
		r = io.LimitReader(r, s.maxBytes+1)
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}
	if s.maxBytes > 0 && int64(len(raw)) > s.maxBytes {
		return "", invalidImage("image exceeds %d bytes", s.maxBytes)
	}

	header, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return "", invalidImage("image could not be decoded")
	}
	if header.Width <= 0 || header.Height <= 0 ||
		int64(header.Width)*int64(header.Height) > int64(s.maxPixels) {
		return "", invalidImage("image dimensions %dx%d exceed %d pixels", header.Width, header.Height, s.maxPixels)
	}

	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return "", invalidImage("image could not be decoded")
	}

	if s.maxWidth > 0 && img.Bounds().Dx() > s.maxWidth {
		img = imaging.Resize(img, s.maxWidth, 0, imaging.Lanczos)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}

	filename := fmt.Sprintf("%s-%d.jpg", sanitizeName(name), s.now().UnixNano())
	if err := imaging.Save(img, filepath.Join(s.dir, filename), imaging.JPEGQuality(85)); err != nil {
		return "", fmt.Errorf("failed to write image: %w", err)
	}

	return path.Join(s.urlPath, filename), nil
}

// Remove deletes the file behind a URL returned by Save. URLs outside the store are ignored.
func (s *ImageStore) Remove(url string) error {
	prefix := s.urlPath + "/"
	if !strings.HasPrefix(url, prefix) {
		return nil
	}
	filename := path.Base(url)
	if filename == "." || filename == "/" {
		return nil
	}
	if err := os.Remove(filepath.Join(s.dir, filename)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove image: %w", err)
	}
	return nil
}

// URLPath is the path prefix stored images are served under.
func (s *ImageStore) URLPath() string {
	return s.urlPath
}

// Handler serves stored images. It is meant to be mounted at URLPath.
func (s *ImageStore) Handler() http.Handler {
	return http.StripPrefix(s.urlPath, http.FileServer(http.Dir(s.dir)))
}

func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	if b.Len() == 0 {
		return "image"
	}
	return b.String()
}
