package validate

import (
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
)

// File validation errors
var (
	ErrInvalidMIMEType      = errors.New("invalid MIME type")
	ErrUnsupportedExtension = errors.New("unsupported file extension")
	ErrFileTooLarge         = errors.New("file too large")
	ErrFileTooSmall         = errors.New("file too small")
	ErrMissingFilename      = errors.New("filename is required")
)

// Spreadsheet MIME types. Browsers report CSV inconsistently, so the
// legacy Excel and generic binary types are accepted and the extension decides.
const (
	MIMETextCSV     = "text/csv"
	MIMEAppCSV      = "application/csv"
	MIMEExcelLegacy = "application/vnd.ms-excel"
	MIMEXLSX        = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MIMEOctetStream = "application/octet-stream"
	MIMETextPlain   = "text/plain"
)

// AllowedSpreadsheetTypes lists MIME types accepted for requirement uploads.
var AllowedSpreadsheetTypes = []string{
	MIMETextCSV,
	MIMEAppCSV,
	MIMEExcelLegacy,
	MIMEXLSX,
	MIMEOctetStream,
	MIMETextPlain,
}

// AllowedSpreadsheetExtensions lists the upload extensions the parser understands.
var AllowedSpreadsheetExtensions = []string{".csv", ".xlsx"}

// MaxUploadBytes is the default requirement upload limit.
const MaxUploadBytes int64 = 10 << 20

// FileConstraints defines validation constraints for file uploads.
type FileConstraints struct {
	AllowedTypes      []string // Allowed MIME types (empty = any)
	AllowedExtensions []string // Allowed lowercase extensions including the dot (empty = any)
	MaxSizeBytes      int64    // Maximum file size in bytes
	MinSizeBytes      int64    // Minimum file size in bytes (0 = no minimum)
}

// MIMEType validates a MIME type against allowed types. Parameters such as
// charset are ignored. Returns the bare, lowercased media type.
func MIMEType(mimeType string, allowedTypes []string) (string, error) {
	mimeType = strings.TrimSpace(mimeType)
	if mimeType == "" {
		return "", ErrEmpty
	}
	if mediaType, _, err := mime.ParseMediaType(mimeType); err == nil {
		mimeType = mediaType
	}
	mimeType = strings.ToLower(mimeType)

	for _, allowed := range allowedTypes {
		if mimeType == strings.ToLower(allowed) {
			return mimeType, nil
		}
	}
	return "", fmt.Errorf("%w: %q not in allowed types", ErrInvalidMIMEType, mimeType)
}

// Extension returns the lowercased extension of filename if it is allowed.
func Extension(filename string, allowed []string) (string, error) {
	name := strings.TrimSpace(filepath.Base(filename))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "", ErrMissingFilename
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, a := range allowed {
		if ext == a {
			return ext, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedExtension, ext)
}

// FileSize validates a file size against constraints.
func FileSize(sizeBytes int64, constraints FileConstraints) error {
	if sizeBytes <= 0 {
		return fmt.Errorf("%w: file is empty", ErrFileTooSmall)
	}
	if constraints.MinSizeBytes > 0 && sizeBytes < constraints.MinSizeBytes {
		return fmt.Errorf("%w: got %d bytes, minimum is %d", ErrFileTooSmall, sizeBytes, constraints.MinSizeBytes)
	}
	if constraints.MaxSizeBytes > 0 && sizeBytes > constraints.MaxSizeBytes {
		return fmt.Errorf("%w: got %d bytes, maximum is %d", ErrFileTooLarge, sizeBytes, constraints.MaxSizeBytes)
	}
	return nil
}

// File validates the name, MIME type and size of an upload and returns its
// extension. An empty mimeType skips the type check.
func File(filename, mimeType string, sizeBytes int64, constraints FileConstraints) (string, error) {
	ext, err := Extension(filename, constraints.AllowedExtensions)
	if len(constraints.AllowedExtensions) == 0 {
		ext, err = strings.ToLower(filepath.Ext(filename)), nil
	}
	if err != nil {
		return "", err
	}

	if mimeType != "" && len(constraints.AllowedTypes) > 0 {
		if _, err := MIMEType(mimeType, constraints.AllowedTypes); err != nil {
			return "", err
		}
	}

	if err := FileSize(sizeBytes, constraints); err != nil {
		return "", err
	}
	return ext, nil
}

// SpreadsheetFile validates a requirement upload (.csv or .xlsx). maxBytes
// of zero or less uses MaxUploadBytes.
func SpreadsheetFile(filename, mimeType string, sizeBytes, maxBytes int64) (string, error) {
	if maxBytes <= 0 {
		maxBytes = MaxUploadBytes
	}
	return File(filename, mimeType, sizeBytes, FileConstraints{
		AllowedTypes:      AllowedSpreadsheetTypes,
		AllowedExtensions: AllowedSpreadsheetExtensions,
		MaxSizeBytes:      maxBytes,
	})
}
