package validation

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
)

const (
	// MaxUploadSize is the default hard limit for processed images
	MaxUploadSize int64 = 50 << 20 // 50MB

	// WarnUploadSize triggers a warning log, the upload still succeeds
	WarnUploadSize int64 = 25 << 20 // 25MB
)

var (
	ErrEmptyFile    = errors.New("file is empty")
	ErrFileTooLarge = errors.New("file too large")
	ErrNotPNG       = errors.New("invalid file type")
)

// ValidateImageUpload checks a processed image before it is stored.
// maxSize <= 0 falls back to MaxUploadSize.
func ValidateImageUpload(header *multipart.FileHeader, maxSize int64) error {
	if maxSize <= 0 {
		maxSize = MaxUploadSize
	}

	// Check file size first (before reading content)
	if header.Size == 0 {
		return ErrEmptyFile
	}
	if header.Size > maxSize {
		return fmt.Errorf("%w: maximum size is %d MB", ErrFileTooLarge, maxSize/(1<<20))
	}
	if header.Size > WarnUploadSize {
		slog.Warn("large image upload", "filename", header.Filename, "size", header.Size)
	}

	file, err := header.Open()
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	return ValidatePNG(file)
}

// ValidatePNG detects the content type from the first 512 bytes (magic numbers).
// This cannot be faked by just changing the Content-Type header.
func ValidatePNG(r io.Reader) error {
	buffer := make([]byte, 512)
	n, err := io.ReadFull(r, buffer)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to read file: %w", err)
	}
	if n == 0 {
		return ErrEmptyFile
	}

	detectedType := http.DetectContentType(buffer[:n])
	if detectedType != "image/png" {
		return fmt.Errorf("%w (detected: %s)", ErrNotPNG, detectedType)
	}

	return nil
}
