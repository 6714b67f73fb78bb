// Package labeltext reads the raw OCR text of a product label from the
// formats label scans are archived in: plain text, hOCR and PDF.
package labeltext

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	pdf "github.com/ledongthuc/pdf"
)

// FromFile dispatches on the file extension.
func FromFile(path string) (string, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return FromPDF(blob)
	case ".hocr", ".html", ".htm":
		return FromHOCR(string(blob))
	default:
		return string(blob), nil
	}
}

// FromHOCR joins the text of every OCR line in an hOCR document. Engines
// differ in the class they use for lines, so ocr_line, then ocrx_line, then
// plain paragraphs are tried in turn.
func FromHOCR(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse hocr: %w", err)
	}

	for _, selector := range []string{".ocr_line", ".ocrx_line", "p"} {
		lines := []string{}
		doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
			words := wordTexts(sel)
			if len(words) == 0 {
				words = strings.Fields(sel.Text())
			}
			if len(words) > 0 {
				lines = append(lines, strings.Join(words, " "))
			}
		})
		if len(lines) > 0 {
			return strings.Join(lines, "\n"), nil
		}
	}
	return strings.TrimSpace(doc.Text()), nil
}

func wordTexts(line *goquery.Selection) []string {
	words := []string{}
	line.Find(".ocrx_word").Each(func(_ int, w *goquery.Selection) {
		if text := strings.TrimSpace(w.Text()); text != "" {
			words = append(words, text)
		}
	})
	return words
}

// FromPDF extracts the plain text of every page, one page after another.
func FromPDF(content []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			pages = append(pages, text)
		}
	}
	return strings.Join(pages, "\n"), nil
}
