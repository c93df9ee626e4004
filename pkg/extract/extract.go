// Package extract converts downloaded attachment files into plain text. It is
// deliberately total: decode failures and unsupported formats are reported as
// placeholder text inside the result, never as errors, so one bad attachment
// cannot void the rest of a record.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	docx "github.com/fumiama/go-docx"
	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
)

// Kind classifies an attachment file by its extension.
type Kind int

const (
	KindUnsupported Kind = iota
	KindPDF
	KindWord
	KindSpreadsheet
)

func (k Kind) String() string {
	switch k {
	case KindPDF:
		return "pdf"
	case KindWord:
		return "word"
	case KindSpreadsheet:
		return "spreadsheet"
	default:
		return "unsupported"
	}
}

// Detect maps a file name to its document kind, case-insensitively. Legacy
// binary formats (.doc, .xls, .ppt) and archives are classified as
// unsupported: the link filter admits them, but there is no decoder.
func Detect(name string) Kind {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return KindPDF
	case ".docx":
		return KindWord
	case ".xlsx":
		return KindSpreadsheet
	default:
		return KindUnsupported
	}
}

// File extracts plain text from the document at path.
func File(path string) string {
	name := filepath.Base(path)

	var (
		text string
		err  error
	)
	switch Detect(name) {
	case KindPDF:
		text, err = pdfText(path)
	case KindWord:
		text, err = wordText(path)
	case KindSpreadsheet:
		text, err = sheetText(path)
	default:
		return fmt.Sprintf("[unsupported attachment format: %s]", name)
	}
	if err != nil {
		return fmt.Sprintf("[Error extracting text from %s: %v]", name, err)
	}
	return text
}

// pdfText concatenates per-page text, newline-separated. The pdf reader
// panics on some malformed files, so the panic is converted to an error here.
func pdfText(path string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", err
		}
		sb.WriteString(pageText)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// wordText concatenates paragraph text, newline-separated. Non-paragraph body
// items (tables, section breaks) are skipped.
func wordText(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return "", err
	}
	doc, err := docx.Parse(f, st.Size())
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, item := range doc.Document.Body.Items {
		para, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		if text := strings.TrimSpace(para.String()); text != "" {
			sb.WriteString(text)
			sb.WriteString("\n")
		}
	}
	return sb.String(), nil
}

// sheetText walks every sheet row by row: non-empty cells space-separated,
// one line per row.
func sheetText(path string) (string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var sb strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("failed to read sheet %s: %w", sheet, err)
		}
		for _, row := range rows {
			var cells []string
			for _, cell := range row {
				if cell != "" {
					cells = append(cells, cell)
				}
			}
			sb.WriteString(strings.Join(cells, " "))
			sb.WriteString("\n")
		}
	}
	return sb.String(), nil
}
