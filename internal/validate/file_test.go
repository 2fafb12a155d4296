package validate

import (
	"errors"
	"testing"
)

func TestMIMEType(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr error
	}{
		{input: "text/csv", want: "text/csv"},
		{input: "Text/CSV; charset=utf-8", want: "text/csv"},
		{input: MIMEXLSX, want: MIMEXLSX},
		{input: "", wantErr: ErrEmpty},
		{input: "image/png", wantErr: ErrInvalidMIMEType},
	}
	for _, tt := range tests {
		got, err := MIMEType(tt.input, AllowedSpreadsheetTypes)
		if tt.wantErr != nil {
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("MIMEType(%q) error = %v, want %v", tt.input, err, tt.wantErr)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("MIMEType(%q) = %q, %v; want %q", tt.input, got, err, tt.want)
		}
	}
}

func TestExtension(t *testing.T) {
	tests := []struct {
		filename string
		want     string
		wantErr  error
	}{
		{filename: "requirements.csv", want: ".csv"},
		{filename: "Backlog.XLSX", want: ".xlsx"},
		{filename: "../../etc/reqs.csv", want: ".csv"},
		{filename: "legacy.xls", wantErr: ErrUnsupportedExtension},
		{filename: "notes", wantErr: ErrUnsupportedExtension},
		{filename: "", wantErr: ErrMissingFilename},
	}
	for _, tt := range tests {
		got, err := Extension(tt.filename, AllowedSpreadsheetExtensions)
		if tt.wantErr != nil {
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Extension(%q) error = %v, want %v", tt.filename, err, tt.wantErr)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("Extension(%q) = %q, %v; want %q", tt.filename, got, err, tt.want)
		}
	}
}

func TestFileSize(t *testing.T) {
	c := FileConstraints{MinSizeBytes: 10, MaxSizeBytes: 100}
	if err := FileSize(50, c); err != nil {
		t.Errorf("FileSize(50) unexpected error: %v", err)
	}
	if err := FileSize(0, c); !errors.Is(err, ErrFileTooSmall) {
		t.Errorf("FileSize(0) error = %v, want %v", err, ErrFileTooSmall)
	}
	if err := FileSize(5, c); !errors.Is(err, ErrFileTooSmall) {
		t.Errorf("FileSize(5) error = %v, want %v", err, ErrFileTooSmall)
	}
	if err := FileSize(101, c); !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("FileSize(101) error = %v, want %v", err, ErrFileTooLarge)
	}
}

func TestSpreadsheetFile(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		mimeType string
		size     int64
		max      int64
		want     string
		wantErr  error
	}{
		{name: "csv", filename: "reqs.csv", mimeType: "text/csv", size: 1024, want: ".csv"},
		{name: "xlsx without mime", filename: "reqs.xlsx", size: 1024, want: ".xlsx"},
		{name: "csv reported as excel", filename: "reqs.csv", mimeType: MIMEExcelLegacy, size: 1024, want: ".csv"},
		{name: "default limit", filename: "reqs.csv", size: MaxUploadBytes + 1, wantErr: ErrFileTooLarge},
		{name: "custom limit", filename: "reqs.csv", size: 2048, max: 1024, wantErr: ErrFileTooLarge},
		{name: "wrong extension", filename: "reqs.pdf", size: 10, wantErr: ErrUnsupportedExtension},
		{name: "wrong mime", filename: "reqs.csv", mimeType: "image/png", size: 10, wantErr: ErrInvalidMIMEType},
		{name: "empty file", filename: "reqs.csv", size: 0, wantErr: ErrFileTooSmall},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SpreadsheetFile(tt.filename, tt.mimeType, tt.size, tt.max)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("SpreadsheetFile() = %q, %v; want %q", got, err, tt.want)
			}
		})
	}
}
