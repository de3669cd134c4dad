package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Format is a worksheet file format
type Format int

const (
	FormatUnknown Format = iota
	FormatPDF
	FormatDOCX
	FormatText
)

// MaxFileSize is the maximum allowed worksheet size (10MB)
const MaxFileSize = 10 * 1024 * 1024

// MaxTextLength caps the extracted text forwarded to the word service.
const MaxTextLength = 8000

// FormatOf determines the worksheet format based on extension
func FormatOf(filename string) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return FormatPDF
	case ".docx":
		return FormatDOCX
	case ".txt":
		return FormatText
	default:
		return FormatUnknown
	}
}

// checkSize rejects missing files and files over MaxFileSize
func checkSize(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}
	if info.Size() > MaxFileSize {
		return fmt.Errorf("file too large: %d bytes (max: %d bytes)", info.Size(), MaxFileSize)
	}
	return nil
}

// ValidateFilename checks an uploaded name for path traversal and control
// characters
func ValidateFilename(filename string) error {
	switch {
	case strings.TrimSpace(filename) == "":
		return fmt.Errorf("filename cannot be empty")
	case strings.Contains(filename, ".."):
		return fmt.Errorf("filename contains path traversal: ..")
	case strings.HasPrefix(filename, "/") || strings.HasPrefix(filename, "\\"):
		return fmt.Errorf("filename cannot be an absolute path")
	case strings.ContainsRune(filename, '\x00'):
		return fmt.Errorf("filename contains null byte")
	case strings.ContainsAny(filename, "\r\n"):
		return fmt.Errorf("filename contains newline character")
	}
	return nil
}

// ExtractText reads a worksheet and returns its cleaned-up text
func ExtractText(path string) (string, error) {
	if err := checkSize(path); err != nil {
		return "", err
	}

	var (
		raw string
		err error
	)
	switch FormatOf(path) {
	case FormatPDF:
		raw, err = readPDF(path)
	case FormatDOCX:
		raw, err = readDOCX(path)
	case FormatText:
		var data []byte
		data, err = os.ReadFile(path)
		raw = string(data)
	default:
		return "", fmt.Errorf("unsupported file type: %s", filepath.Ext(path))
	}
	if err != nil {
		return "", err
	}

	text := cleanText(raw)
	if text == "" {
		return "", fmt.Errorf("no text content found in %s", filepath.Base(path))
	}
	return truncate(text, MaxTextLength), nil
}

// cleanText collapses runs of whitespace and drops lines without letters
func cleanText(raw string) string {
	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if strings.IndexFunc(line, unicode.IsLetter) < 0 {
			continue
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// truncate cuts s to at most n bytes without splitting a rune
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
