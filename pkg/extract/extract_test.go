package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		want Kind
	}{
		{"report.pdf", KindPDF},
		{"Report.PDF", KindPDF},
		{"statement.docx", KindWord},
		{"figures.xlsx", KindSpreadsheet},
		{"FIGURES.XLSX", KindSpreadsheet},
		{"legacy.doc", KindUnsupported},
		{"legacy.xls", KindUnsupported},
		{"deck.pptx", KindUnsupported},
		{"bundle.zip", KindUnsupported},
		{"noextension", KindUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Detect(tt.name); got != tt.want {
				t.Errorf("Detect(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestFilePDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.pdf")
	writePDFFixture(t, path, "Annual results exceed expectations 2024")

	got := File(path)
	if !strings.Contains(got, "Annual results exceed expectations 2024") {
		t.Errorf("File() = %q, want page text included", got)
	}
}

func TestFileWord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "statement.docx")
	writeDocxFixture(t, path, []string{
		"Board approves the dividend distribution.",
		"Payment date is set for next quarter.",
	})

	got := File(path)
	for _, want := range []string{
		"Board approves the dividend distribution.",
		"Payment date is set for next quarter.",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("File() = %q, want paragraph %q included", got, want)
		}
	}
}

func TestFileSpreadsheet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "figures.xlsx")

	f := excelize.NewFile()
	cells := map[string]interface{}{
		"A1": "Revenue",
		"B1": 1250000,
		"A2": "Net income",
		"B2": 98000,
	}
	for cell, value := range cells {
		if err := f.SetCellValue("Sheet1", cell, value); err != nil {
			t.Fatalf("failed to set cell %s: %v", cell, err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("failed to save spreadsheet fixture: %v", err)
	}

	got := File(path)
	for _, want := range []string{"Revenue 1250000", "Net income 98000"} {
		if !strings.Contains(got, want) {
			t.Errorf("File() = %q, want row %q included", got, want)
		}
	}
}

func TestFileUnsupported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bundle.zip")
	if err := os.WriteFile(path, []byte("PK"), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	got := File(path)
	want := "[unsupported attachment format: bundle.zip]"
	if got != want {
		t.Errorf("File() = %q, want %q", got, want)
	}
}

func TestFileDecodeFailure(t *testing.T) {
	tests := []string{"broken.pdf", "broken.docx", "broken.xlsx"}
	for _, name := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			if err := os.WriteFile(path, []byte("not a real document"), 0o644); err != nil {
				t.Fatalf("failed to write fixture: %v", err)
			}

			got := File(path)
			wantPrefix := fmt.Sprintf("[Error extracting text from %s:", name)
			if !strings.HasPrefix(got, wantPrefix) {
				t.Errorf("File() = %q, want placeholder starting with %q", got, wantPrefix)
			}
		})
	}
}

// writePDFFixture assembles a single-page PDF 1.4 file with an uncompressed
// content stream, computing xref offsets as it writes.
func writePDFFixture(t *testing.T, path, text string) {
	t.Helper()

	content := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects)+1)
	for i, obj := range objects {
		offsets[i+1] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xrefPos := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f\r\n")
	for _, off := range offsets[1:] {
		fmt.Fprintf(&buf, "%010d 00000 n\r\n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		len(objects)+1, xrefPos)

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("failed to write pdf fixture: %v", err)
	}
}

// writeDocxFixture zips a minimal WordprocessingML package with one run per
// paragraph.
func writeDocxFixture(t *testing.T, path string, paragraphs []string) {
	t.Helper()

	var body strings.Builder
	for _, p := range paragraphs {
		var escaped bytes.Buffer
		if err := xml.EscapeText(&escaped, []byte(p)); err != nil {
			t.Fatalf("failed to escape paragraph: %v", err)
		}
		fmt.Fprintf(&body, "<w:p><w:r><w:t>%s</w:t></w:r></w:p>", escaped.String())
	}

	parts := map[string]string{
		"[Content_Types].xml": `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
			`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
			`<Default Extension="xml" ContentType="application/xml"/>` +
			`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
			`</Types>`,
		"_rels/.rels": `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
			`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
			`</Relationships>`,
		"word/_rels/document.xml.rels": `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`,
		"word/document.xml": `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
			`<w:body>` + body.String() + `</w:body></w:document>`,
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range parts {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("failed to create zip entry %s: %v", name, err)
		}
		if _, err := w.Write([]byte(data)); err != nil {
			t.Fatalf("failed to write zip entry %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("failed to close zip: %v", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("failed to write docx fixture: %v", err)
	}
}
