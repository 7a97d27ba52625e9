// Package services holds workflows that span the studio and external
// storage.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"creative-studio-backend/internal/imageconv"
	"creative-studio-backend/internal/models"
)

var (
	ErrNothingToExport = errors.New("There is no image to export.")
	ErrInvalidFormat   = errors.New("Unsupported export format.")
)

// Uploader stores an exported file and returns its storage path and
// public URL.
type Uploader interface {
	UploadExport(ctx context.Context, userID, filename, contentType string, data []byte) (string, string, error)
}

type ExportService struct {
	uploader Uploader
}

func NewExportService(uploader Uploader) *ExportService {
	return &ExportService{uploader: uploader}
}

// Export publishes the image behind dataURL, converted to format when one
// is given.
func (s *ExportService) Export(ctx context.Context, userID, dataURL, format string) (*models.ExportResponse, error) {
	if dataURL == "" {
		return nil, ErrNothingToExport
	}
	data, mimeType, err := imageconv.DecodeDataURL(dataURL)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	target, err := targetFormat(format, mimeType)
	if err != nil {
		return nil, err
	}
	converted, err := imageconv.Convert(data, target)
	if err != nil {
		return nil, fmt.Errorf("failed to convert image: %w", err)
	}

	filename := "export-" + ulid.Make().String() + target.Extension()
	path, url, err := s.uploader.UploadExport(ctx, userID, filename, target.MimeType(), converted)
	if err != nil {
		return nil, fmt.Errorf("failed to export image: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"user_id": userID,
		"path":    path,
		"format":  target,
		"bytes":   len(converted),
	}).Info("Image exported")

	return &models.ExportResponse{
		StoragePath: path,
		PublicURL:   url,
		MimeType:    target.MimeType(),
	}, nil
}

// targetFormat keeps the source format when none is requested.
func targetFormat(requested, sourceMime string) (imageconv.Format, error) {
	if requested == "" {
		switch sourceMime {
		case "image/jpeg":
			return imageconv.FormatJPEG, nil
		case "image/webp":
			return imageconv.FormatWEBP, nil
		default:
			return imageconv.FormatPNG, nil
		}
	}
	f, err := imageconv.ParseFormat(requested)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidFormat, requested)
	}
	return f, nil
}
