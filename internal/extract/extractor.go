// Package extract loads uploaded PDF and DOCX files into per-page text.
package extract

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hyperjump/scout/internal/models"
)

// Loader turns raw document bytes into pages of plain text.
type Loader struct{}

// NewLoader returns a new Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// SupportedExtensions lists the accepted upload extensions.
var SupportedExtensions = []string{".pdf", ".docx"}

// Supported reports whether fileName has an extension the loader can read.
func Supported(fileName string) bool {
	ext := strings.ToLower(filepath.Ext(fileName))
	for _, s := range SupportedExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// Load extracts pages from content, choosing the format by fileName's extension.
// PDFs yield one page per PDF page; DOCX files yield a single page.
// Unsupported extensions return models.ErrUnsupportedFormat.
func (l *Loader) Load(fileName string, content []byte) ([]models.Page, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	switch ext {
	case ".pdf":
		return loadPDF(content)
	case ".docx":
		return loadDOCX(content)
	default:
		return nil, fmt.Errorf("%w: %q (supported: %s)", models.ErrUnsupportedFormat, ext, strings.Join(SupportedExtensions, ", "))
	}
}
