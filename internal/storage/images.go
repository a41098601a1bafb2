// Package storage keeps uploaded ticket images on the local filesystem.
package storage

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chamados-app/chamados-api/internal/config"
	apperrors "github.com/chamados-app/chamados-api/pkg/util/errorutil"
)

// PublicPrefix is the URL path the upload directory is served under.
const PublicPrefix = "/uploads"

// ImageStore writes uploads into a single flat directory.
type ImageStore struct {
	dir          string
	maxBytes     int64
	maxDimension int
	logger       *zap.Logger
	now          func() time.Time
}

// NewImageStore creates the upload directory when missing.
func NewImageStore(cfg config.UploadConfig, logger *zap.Logger) (*ImageStore, error) {
	dir := cfg.Dir
	if dir == "" {
		dir = "uploads"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 5 * 1024 * 1024
	}
	return &ImageStore{
		dir:          dir,
		maxBytes:     maxBytes,
		maxDimension: cfg.MaxDimension,
		logger:       logger,
		now:          time.Now,
	}, nil
}

// Dir is the directory files are written to.
func (s *ImageStore) Dir() string { return s.dir }

// MaxBytes is the largest accepted upload.
func (s *ImageStore) MaxBytes() int64 { return s.maxBytes }

// Save validates the upload as an image and writes it under a fresh name.
// Images wider or taller than the configured dimension are scaled down.
func (s *ImageStore) Save(fh *multipart.FileHeader) (string, error) {
	if fh.Size > s.maxBytes {
		return "", tooLarge(s.maxBytes)
	}
	f, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, s.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return "", tooLarge(s.maxBytes)
	}
	return s.SaveBytes(fh.Filename, data)
}

// SaveBytes is Save for content already in memory.
func (s *ImageStore) SaveBytes(originalName string, data []byte) (string, error) {
	_, decoded, cfgErr := image.DecodeConfig(bytes.NewReader(data))
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if cfgErr != nil || err != nil {
		return "", apperrors.NewValidationError("imagem must be a JPEG, PNG, GIF, BMP or TIFF image", map[string]any{"field": "imagem"})
	}

	ext := imageExtension(originalName, decoded)
	name := s.generateName(ext)
	dst := filepath.Join(s.dir, name)

	if !s.oversized(img) {
		if err := os.WriteFile(dst, data, 0o644); err != nil {
			return "", fmt.Errorf("write upload: %w", err)
		}
		return name, nil
	}

	format, err := imaging.FormatFromExtension(ext)
	if err != nil {
		format = imaging.JPEG
		name = s.generateName(".jpg")
		dst = filepath.Join(s.dir, name)
	}
	resized := s.fit(img)
	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("create upload: %w", err)
	}
	if err := imaging.Encode(out, resized, format); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return "", fmt.Errorf("encode upload: %w", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return "", fmt.Errorf("close upload: %w", err)
	}
	s.logger.Debug("upload downscaled",
		zap.String("file", name),
		zap.Int("width", resized.Bounds().Dx()),
		zap.Int("height", resized.Bounds().Dy()),
	)
	return name, nil
}

// formatExtensions maps image.DecodeConfig format names to file extensions.
var formatExtensions = map[string]string{
	"jpeg": ".jpg",
	"png":  ".png",
	"gif":  ".gif",
	"bmp":  ".bmp",
	"tiff": ".tif",
}

// imageExtension keeps the client's extension only when it names the decoded
// format, so the static handler never serves an upload as anything but an image.
func imageExtension(originalName, format string) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	if f, err := imaging.FormatFromExtension(ext); err == nil && strings.EqualFold(f.String(), format) {
		return ext
	}
	if ext, ok := formatExtensions[format]; ok {
		return ext
	}
	return ".jpg"
}

// Remove deletes a stored file by name. Missing files are not an error.
func (s *ImageStore) Remove(filename string) error {
	name := filepath.Base(filename)
	if name == "." || name == "/" || name == ".." || name == "" {
		return nil
	}
	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// RemoveByURL deletes the file a public URL points at. It never fails: bad
// URLs and filesystem errors are logged and ignored.
func (s *ImageStore) RemoveByURL(raw string) {
	if raw == "" {
		return
	}
	u, err := url.Parse(raw)
	if err != nil {
		s.logger.Debug("skip removal of unparsable image url", zap.String("url", raw))
		return
	}
	name := path.Base(u.Path)
	if err := s.Remove(name); err != nil {
		s.logger.Warn("failed to remove image", zap.String("file", name), zap.Error(err))
	}
}

// PublicURL joins the base URL with the public path of filename.
func PublicURL(baseURL, filename string) string {
	return strings.TrimRight(baseURL, "/") + PublicPrefix + "/" + url.PathEscape(filename)
}

func (s *ImageStore) generateName(ext string) string {
	return fmt.Sprintf("%d-%d%s", s.now().UnixMilli(), uuid.New().ID()%1_000_000_000, ext)
}

func (s *ImageStore) oversized(img image.Image) bool {
	if s.maxDimension <= 0 {
		return false
	}
	b := img.Bounds()
	return b.Dx() > s.maxDimension || b.Dy() > s.maxDimension
}

func (s *ImageStore) fit(img image.Image) *image.NRGBA {
	b := img.Bounds()
	if b.Dx() >= b.Dy() {
		return imaging.Resize(img, s.maxDimension, 0, imaging.Lanczos)
	}
	return imaging.Resize(img, 0, s.maxDimension, imaging.Lanczos)
}

func tooLarge(limit int64) error {
	return apperrors.NewDomainError("PAYLOAD_TOO_LARGE",
		fmt.Sprintf("imagem exceeds %d bytes", limit),
		http.StatusRequestEntityTooLarge,
		map[string]any{"field": "imagem", "max_bytes": limit},
	)
}
