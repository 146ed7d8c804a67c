package extract

import (
	"bytes"
	"fmt"

	"github.com/hyperjump/scout/internal/models"
	"github.com/ledongthuc/pdf"
)

func loadPDF(content []byte) ([]models.Page, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}
	total := r.NumPage()
	pages := make([]models.Page, 0, total)
	for i := 1; i <= total; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract page %d: %w", i, err)
		}
		pages = append(pages, models.Page{Text: text, PageNumber: i, TotalPages: total})
	}
	return pages, nil
}
