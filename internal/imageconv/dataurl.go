package imageconv

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const base64Marker = ";base64,"

var ErrInvalidDataURL = errors.New("invalid data URL")

// EncodeDataURL renders data as a base64 data URL. An empty mimeType is
// sniffed from the payload.
func EncodeDataURL(mimeType string, data []byte) string {
	if mimeType == "" {
		mimeType = DetectMimeType(data)
	}
	return "data:" + mimeType + base64Marker + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURL splits a base64 data URL into its payload and mime type.
func DecodeDataURL(dataURL string) ([]byte, string, error) {
	if !strings.HasPrefix(dataURL, "data:") {
		return nil, "", fmt.Errorf("%w: missing data: prefix", ErrInvalidDataURL)
	}
	idx := strings.Index(dataURL, base64Marker)
	if idx < 0 {
		return nil, "", fmt.Errorf("%w: missing base64 marker", ErrInvalidDataURL)
	}

	mimeType := strings.TrimSpace(strings.TrimPrefix(dataURL[:idx], "data:"))
	raw, err := base64.StdEncoding.DecodeString(dataURL[idx+len(base64Marker):])
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode base64 payload: %w", err)
	}
	if mimeType == "" {
		mimeType = DetectMimeType(raw)
	}
	return raw, mimeType, nil
}

// DetectMimeType sniffs the image type of data, recognising webp which
// http.DetectContentType reports as a generic RIFF container on older Go.
func DetectMimeType(data []byte) string {
	if isWEBP(data) {
		return "image/webp"
	}
	return http.DetectContentType(data)
}

// IsImage reports whether data looks like a supported image.
func IsImage(data []byte) bool {
	return strings.HasPrefix(DetectMimeType(data), "image/")
}
