package service

import (
	"context"
	"encoding/base64"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"example.com/popular/internal/apperr"
	"example.com/popular/internal/models"
	"go.uber.org/zap"
)

const maxImageBytes = 5 << 20

var imageExt = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// DiskImages writes base64 images (raw or data URLs) under Dir and serves them from /uploads/.
type DiskImages struct {
	Dir string
}

func (d DiskImages) Save(ctx context.Context, blob string) (string, error) {
	// already stored: clients send back the URLs they were given
	if strings.HasPrefix(blob, "/uploads/") || strings.HasPrefix(blob, "http://") || strings.HasPrefix(blob, "https://") {
		return blob, nil
	}

	data := blob
	if strings.HasPrefix(blob, "data:") {
		comma := strings.IndexByte(blob, ',')
		if comma < 0 || !strings.HasSuffix(blob[:comma], ";base64") {
			return "", apperr.BadRequest("image must be base64 encoded")
		}
		data = blob[comma+1:]
	}

	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return "", apperr.BadRequest("image is not valid base64")
	}
	if len(raw) == 0 || len(raw) > maxImageBytes {
		return "", apperr.BadRequest("image must be 1-%d bytes", maxImageBytes)
	}
	ext, ok := imageExt[http.DetectContentType(raw)]
	if !ok {
		return "", apperr.BadRequest("unsupported image type")
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return "", apperr.Internal("create upload dir", err)
	}
	name := models.NewID() + ext
	if err := os.WriteFile(filepath.Join(d.Dir, name), raw, 0o644); err != nil {
		return "", apperr.Internal("write image", err)
	}

	logg.Debug("service", "Image stored", zap.String("name", name), zap.Int("bytes", len(raw)))
	return "/uploads/" + name, nil
}
