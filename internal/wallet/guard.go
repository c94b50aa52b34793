package wallet

import (
	"fmt"
	"path/filepath"
	"strings"

	"bloomcart-be/internal/apperr"

	"github.com/gabriel-vasile/mimetype"
)

const DefaultMaxProofBytes = 5 << 20

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

var allowedTypes = []string{"image/jpeg", "image/png", "image/webp"}

// ValidateUpload checks a proof image and returns its detected content type.
// Both the extension and the sniffed content must say image.
func ValidateUpload(u Upload, maxBytes int64) (string, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxProofBytes
	}
	if strings.TrimSpace(u.Filename) == "" || len(u.Data) == 0 {
		return "", apperr.Upload(apperr.UploadMissing, "payment proof file is required")
	}
	if int64(len(u.Data)) > maxBytes {
		return "", apperr.Upload(apperr.UploadTooLarge,
			fmt.Sprintf("payment proof exceeds %d MB", maxBytes>>20))
	}

	ext := strings.ToLower(filepath.Ext(u.Filename))
	if !allowedExtensions[ext] {
		return "", apperr.Upload(apperr.UploadUnsupported, "payment proof must be a JPG, PNG or WEBP image")
	}

	mtype := mimetype.Detect(u.Data)
	for _, allowed := range allowedTypes {
		if mtype.Is(allowed) {
			return allowed, nil
		}
	}
	return "", apperr.Upload(apperr.UploadUnsupported, "payment proof content is not an image")
}
