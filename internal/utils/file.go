package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"path/filepath"
	"strings"
	"time"
)

func GetFileExtension(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}

// MediaKind returns the media kind for an accepted MIME type.
func MediaKind(mimeType string) (string, bool) {
	kind, ok := AllowedMediaTypes[strings.ToLower(mimeType)]
	return kind, ok
}

// GenerateMediaFilename builds emergency-<unix millis>-<random><ext>.
func GenerateMediaFilename(originalFilename string, now time.Time) string {
	n, err := rand.Int(rand.Reader, big.NewInt(1e9))
	suffix := int64(0)
	if err == nil {
		suffix = n.Int64()
	}
	return fmt.Sprintf("%s%d-%d%s", MediaFilePrefix, now.UnixMilli(), suffix, GetFileExtension(originalFilename))
}

// MediaObjectKey is the storage key of an uploaded emergency media file.
func MediaObjectKey(filename string) string {
	return EmergencyMediaDir + "/" + filename
}
