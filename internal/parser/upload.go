package parser

import (
	"fmt"
	"io"
	"os"
)

// SaveUpload copies an uploaded worksheet to a temporary file. The returned
// cleanup function removes it.
func SaveUpload(r io.Reader, filename string) (string, func(), error) {
	if err := ValidateFilename(filename); err != nil {
		return "", nil, err
	}
	if FormatOf(filename) == FormatUnknown {
		return "", nil, fmt.Errorf("unsupported file type: %s", filename)
	}

	tempFile, err := os.CreateTemp("", "worksheet-*-"+filename)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer tempFile.Close()

	cleanup := func() { _ = os.Remove(tempFile.Name()) }

	written, err := io.Copy(tempFile, io.LimitReader(r, MaxFileSize+1))
	if err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	if written > MaxFileSize {
		cleanup()
		return "", nil, fmt.Errorf("file too large: %d bytes (max: %d bytes)", written, MaxFileSize)
	}

	return tempFile.Name(), cleanup, nil
}
