package parser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"
)

// TestExtractTextPlain tests the plain text path and cleanup
func TestExtractTextPlain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fruits.txt")
	content := "Fruits Worksheet\n\n  Apple    Banana \n1. 2. 3.\n----\nCherry\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	text, err := ExtractText(path)
	if err != nil {
		t.Fatalf("ExtractText failed: %v", err)
	}
	want := "Fruits Worksheet\nApple Banana\nCherry"
	if text != want {
		t.Errorf("Expected %q, got %q", want, text)
	}
}

// TestExtractTextErrors tests the failure paths
func TestExtractTextErrors(t *testing.T) {
	tmpDir := t.TempDir()

	write := func(name string, data []byte) string {
		path := filepath.Join(tmpDir, name)
		if err := os.WriteFile(path, data, 0600); err != nil {
			t.Fatalf("Failed to create test file: %v", err)
		}
		return path
	}

	tests := []struct {
		name     string
		path     string
		contains string
	}{
		{"Missing file", filepath.Join(tmpDir, "missing.pdf"), "stat"},
		{"Corrupted PDF", write("corrupted.pdf", []byte("This is not a valid PDF file")), "PDF"},
		{"Corrupted DOCX", write("corrupted.docx", []byte("not a zip")), "DOCX"},
		{"Unsupported", write("image.png", []byte("png")), "unsupported"},
		{"No letters", write("numbers.txt", []byte("1 2 3\n---\n")), "no text"},
		{"Oversized", write("oversize.pdf", make([]byte, MaxFileSize+1)), "too large"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ExtractText(tc.path)
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.contains) {
				t.Errorf("Error should mention %q, got: %v", tc.contains, err)
			}
		})
	}
}

// TestFormatOf tests format detection
func TestFormatOf(t *testing.T) {
	tests := []struct {
		filename string
		expected Format
	}{
		{"worksheet.pdf", FormatPDF},
		{"notes.PDF", FormatPDF},
		{"lesson.docx", FormatDOCX},
		{"words.txt", FormatText},
		{"no_extension", FormatUnknown},
		{"doc.pdf.bak", FormatUnknown},
	}

	for _, tc := range tests {
		if got := FormatOf(tc.filename); got != tc.expected {
			t.Errorf("FormatOf(%s) = %v, expected %v", tc.filename, got, tc.expected)
		}
	}
}

// TestValidateFilename tests path traversal prevention
func TestValidateFilename(t *testing.T) {
	tests := []struct {
		input    string
		safe     bool
		contains string
	}{
		{"normal.pdf", true, ""},
		{"my worksheet.docx", true, ""},
		{".hidden.pdf", true, ""},
		{"", false, "empty"},
		{"../../etc/passwd", false, ".."},
		{"/etc/passwd", false, "absolute"},
		{"file\x00.pdf", false, "null"},
		{"file\n.pdf", false, "newline"},
	}

	for _, tc := range tests {
		err := ValidateFilename(tc.input)
		if tc.safe && err != nil {
			t.Errorf("ValidateFilename(%q) should be safe but got error: %v", tc.input, err)
		}
		if !tc.safe {
			if err == nil {
				t.Errorf("ValidateFilename(%q) should be unsafe but got no error", tc.input)
			} else if !strings.Contains(err.Error(), tc.contains) {
				t.Errorf("ValidateFilename(%q) error should mention %q, got: %v", tc.input, tc.contains, err)
			}
		}
	}
}

// TestDocxText tests paragraph extraction from document XML
func TestDocxText(t *testing.T) {
	xml := `<w:body><w:p><w:r><w:t>Cat</w:t></w:r></w:p><w:p><w:r><w:t>Dog</w:t><w:tab/><w:t>&amp; Fish</w:t></w:r></w:p></w:body>`

	got := cleanText(docxText(xml))
	if got != "Cat\nDog & Fish" {
		t.Errorf("Unexpected text %q", got)
	}
}

// TestTruncate tests that truncation keeps runes whole
func TestTruncate(t *testing.T) {
	s := strings.Repeat("سیب ", 10)
	for n := 0; n < len(s); n++ {
		if got := truncate(s, n); !utf8.ValidString(got) || len(got) > n {
			t.Fatalf("truncate(%d) = %q", n, got)
		}
	}
	if truncate("short", 100) != "short" {
		t.Error("Short strings should be unchanged")
	}
}

// TestSaveUpload tests the temporary upload copy
func TestSaveUpload(t *testing.T) {
	path, cleanup, err := SaveUpload(strings.NewReader("Apple\nBanana"), "fruits.txt")
	if err != nil {
		t.Fatalf("SaveUpload failed: %v", err)
	}

	text, err := ExtractText(path)
	if err != nil {
		t.Fatalf("ExtractText failed: %v", err)
	}
	if text != "Apple\nBanana" {
		t.Errorf("Unexpected text %q", text)
	}

	cleanup()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Cleanup should remove the temp file")
	}

	if _, _, err := SaveUpload(strings.NewReader("x"), "../evil.txt"); err == nil {
		t.Error("Expected error for unsafe filename")
	}
	if _, _, err := SaveUpload(strings.NewReader("x"), "photo.png"); err == nil {
		t.Error("Expected error for unsupported type")
	}
}
