// Package pdftext extracts page-separated plain text from financial PDFs.
package pdftext

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

var (
	ErrNotPDF       = errors.New("only .pdf files are supported")
	ErrFileNotFound = errors.New("file not found")
)

var openPDF = pdf.Open

// PageHeader separates pages in the extracted report.
func PageHeader(page int) string {
	return fmt.Sprintf("----------- Page Number %d ---------------", page)
}

// Extract reads every page of the PDF at path and returns the cleaned text.
// Blank pages are skipped but still count towards page numbers.
func Extract(path string) (text string, err error) {
	if !strings.EqualFold(filepath.Ext(path), ".pdf") {
		return "", ErrNotPDF
	}
	if _, statErr := os.Stat(path); statErr != nil {
		if errors.Is(statErr, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return "", statErr
	}

	// the reader panics on some malformed files and content streams
	defer func() {
		if p := recover(); p != nil {
			text, err = "", fmt.Errorf("load pdf: %v", p)
		}
	}()

	f, r, err := openPDF(path)
	if err != nil {
		return "", fmt.Errorf("load pdf: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("read page %d: %w", i, err)
		}
		if strings.TrimSpace(content) == "" {
			continue
		}

		b.WriteString(PageHeader(i))
		b.WriteString("\n")
		b.WriteString(CleanPage(content))
		b.WriteString("\n\n")
	}

	return strings.TrimSpace(b.String()), nil
}

// CleanPage drops blank lines and tightens spacing around currency and
// percentage figures.
func CleanPage(content string) string {
	for strings.Contains(content, "\n\n") {
		content = strings.ReplaceAll(content, "\n\n", "\n")
	}

	content = strings.ReplaceAll(content, "$ ", "$")
	content = strings.ReplaceAll(content, " %", "%")
	content = strings.ReplaceAll(content, " ,", ",")

	return strings.TrimSpace(content)
}
