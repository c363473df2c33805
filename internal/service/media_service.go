package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"monolith/internal/config"
	"monolith/internal/models"

	"github.com/chai2010/webp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	DefaultMediaDir             = "./storage/media"
	DefaultMediaBaseURL         = "/media"
	DefaultMediaMaxUploadSizeMB = 10
	WebPQuality                 = 80
)

// MediaKind selects the bounding box an upload is scaled into.
type MediaKind string

const (
	MediaAvatar MediaKind = "avatar"
	MediaCover  MediaKind = "cover"
)

var mediaBounds = map[MediaKind][2]int{
	MediaAvatar: {512, 512},
	MediaCover:  {1600, 900},
}

// UploadInput is a raw file part received from a client.
type UploadInput struct {
	Filename    string
	ContentType string
	Content     []byte
}

// MediaService stores profile images as WebP under a local directory.
type MediaService struct {
	dir                string
	baseURL            string
	maxUploadSizeBytes int64
}

// NewMediaService returns a MediaService configured from cfg.
func NewMediaService(cfg *config.Config) *MediaService {
	dir := DefaultMediaDir
	baseURL := DefaultMediaBaseURL
	maxUploadSizeMB := DefaultMediaMaxUploadSizeMB

	if cfg != nil {
		if cfg.MediaDir != "" {
			dir = cfg.MediaDir
		}
		if cfg.MediaBaseURL != "" {
			baseURL = cfg.MediaBaseURL
		}
		if cfg.ImageMaxUploadSizeMB > 0 {
			maxUploadSizeMB = cfg.ImageMaxUploadSizeMB
		}
	}

	return &MediaService{
		dir:                dir,
		baseURL:            strings.TrimRight(baseURL, "/"),
		maxUploadSizeBytes: int64(maxUploadSizeMB) * 1024 * 1024,
	}
}

// Dir is the directory files are written to.
func (s *MediaService) Dir() string {
	return s.dir
}

// Store validates, scales and re-encodes an upload, returning its public URL.
// Identical uploads by the same user map to the same file.
func (s *MediaService) Store(_ context.Context, userID uint, kind MediaKind, field string, in UploadInput) (string, error) {
	if len(in.Content) == 0 {
		return "", models.NewFieldValidationError(field, fmt.Sprintf("The %s field must be a file.", label(field)))
	}
	if int64(len(in.Content)) > s.maxUploadSizeBytes {
		return "", models.NewFieldValidationError(field,
			fmt.Sprintf("The %s field must not be greater than %d megabytes.", label(field), s.maxUploadSizeBytes/(1024*1024)))
	}

	detectedType := http.DetectContentType(in.Content)
	if !isAllowedImageMIME(detectedType) {
		return "", models.NewFieldValidationError(field, fmt.Sprintf("The %s field must be an image.", label(field)))
	}

	decoded, _, err := image.Decode(bytes.NewReader(in.Content))
	if err != nil {
		return "", models.NewFieldValidationError(field, fmt.Sprintf("The %s field must be an image.", label(field)))
	}

	box, ok := mediaBounds[kind]
	if !ok {
		box = mediaBounds[MediaCover]
	}
	scaled := resizeToFit(decoded, box[0], box[1])

	encoded, err := encodeWebP(scaled, WebPQuality)
	if err != nil {
		return "", models.NewInternalError(err)
	}

	hash := mediaHash(userID, kind, encoded)
	rel := path.Join(string(kind), hash[:2], hash+".webp")
	if err := writeBytesToFile(filepath.Join(s.dir, filepath.FromSlash(rel)), encoded); err != nil {
		return "", models.NewInternalError(err)
	}
	return s.baseURL + "/" + rel, nil
}

func label(field string) string {
	return strings.ReplaceAll(field, "_", " ")
}

func resizeToFit(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	if w <= 0 || h <= 0 {
		return src
	}
	if w <= maxWidth && h <= maxHeight {
		return src
	}

	scaleW := float64(maxWidth) / float64(w)
	scaleH := float64(maxHeight) / float64(h)
	scale := scaleW
	if scaleH < scale {
		scale = scaleH
	}
	newW := int(float64(w) * scale)
	newH := int(float64(h) * scale)
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

func encodeWebP(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isAllowedImageMIME(contentType string) bool {
	switch normalizeContentType(contentType) {
	case "image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

func normalizeContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

func mediaHash(userID uint, kind MediaKind, content []byte) string {
	h := sha256.New()
	_, _ = fmt.Fprintf(h, "%d:%s:", userID, kind)
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}

func writeBytesToFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
