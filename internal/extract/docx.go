package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/hyperjump/scout/internal/models"
)

const docxDocumentXMLPath = "word/document.xml"

const contentTypesPath = "[Content_Types].xml"

const docxMainContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"

var (
	// paragraphRe matches <w:p>...</w:p> and <w:p attr="...">...</w:p> but not <w:pPr>.
	paragraphRe = regexp.MustCompile(`(?s)<w:p[ >].*?</w:p>`)
	textRunRe   = regexp.MustCompile(`<w:t(?:\s[^>]*)?>([^<]*)</w:t>|<w:tab/>`)

	// The main part may be declared with attributes in either order.
	partNameRe  = regexp.MustCompile(`<Override[^>]+PartName="([^"]+)"[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"`)
	partNameRe2 = regexp.MustCompile(`<Override[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"[^>]+PartName="([^"]+)"`)
)

var xmlUnescaper = strings.NewReplacer("&lt;", "<", "&gt;", ">", "&quot;", `"`, "&apos;", "'", "&amp;", "&")

func readZipFile(zr *zip.Reader, name string) ([]byte, bool, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, true, err
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		return data, true, err
	}
	return nil, false, nil
}

// mainDocumentPath returns the main part declared in [Content_Types].xml, or the default path.
func mainDocumentPath(zr *zip.Reader) string {
	data, ok, err := readZipFile(zr, contentTypesPath)
	if !ok || err != nil {
		return docxDocumentXMLPath
	}
	content := string(data)
	for _, re := range []*regexp.Regexp{partNameRe, partNameRe2} {
		if m := re.FindStringSubmatch(content); len(m) > 1 {
			return strings.TrimPrefix(m[1], "/")
		}
	}
	return docxDocumentXMLPath
}

// loadDOCX returns the document body as one page, one line per non-empty paragraph.
func loadDOCX(content []byte) ([]models.Page, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open DOCX: not a zip: %w", err)
	}
	docPath := mainDocumentPath(zr)
	docXML, ok, err := readZipFile(zr, docPath)
	if err != nil {
		return nil, fmt.Errorf("open DOCX: read %s: %w", docPath, err)
	}
	if !ok {
		return nil, fmt.Errorf("open DOCX: %s not found", docPath)
	}

	var lines []string
	for _, para := range paragraphRe.FindAllString(string(docXML), -1) {
		var b strings.Builder
		for _, run := range textRunRe.FindAllStringSubmatch(para, -1) {
			if run[0] == "<w:tab/>" {
				b.WriteByte('\t')
				continue
			}
			b.WriteString(xmlUnescaper.Replace(run[1]))
		}
		if line := strings.TrimSpace(b.String()); line != "" {
			lines = append(lines, line)
		}
	}
	return []models.Page{{Text: strings.Join(lines, "\n"), PageNumber: 1, TotalPages: 1}}, nil
}
