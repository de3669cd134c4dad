package parser

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/nguyenthenguyen/docx"
)

var xmlTag = regexp.MustCompile(`<[^>]*>`)

// readDOCX extracts paragraph text from a DOCX file
func readDOCX(path string) (string, error) {
	doc, err := docx.ReadDocxFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to open DOCX: %w", err)
	}
	defer doc.Close()

	return docxText(doc.Editable().GetContent()), nil
}

// docxText turns document.xml content into plain text, one paragraph per line
func docxText(content string) string {
	content = strings.ReplaceAll(content, "</w:p>", "\n")
	content = strings.ReplaceAll(content, "<w:tab/>", " ")
	content = xmlTag.ReplaceAllString(content, "")
	return html.UnescapeString(content)
}
