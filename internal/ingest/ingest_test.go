package ingest

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"testing"
)

// buildMinimalPDF assembles a one-page PDF with an uncompressed content
// stream, computing the xref offsets from the generated bytes.
func buildMinimalPDF(t *testing.T, text string) []byte {
	t.Helper()

	content := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
	objects := []string{
		"1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n",
		"2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n",
		"3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>\nendobj\n",
		fmt.Sprintf("4 0 obj\n<< /Length %d >>\nstream\n%s\nendstream\nendobj\n", len(content), content),
		"5 0 obj\n<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>\nendobj\n",
	}

	var b strings.Builder
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, 0, len(objects))
	for _, obj := range objects {
		offsets = append(offsets, b.Len())
		b.WriteString(obj)
	}
	xrefPos := b.Len()
	b.WriteString(fmt.Sprintf("xref\n0 %d\n", len(objects)+1))
	b.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		b.WriteString(fmt.Sprintf("%010d 00000 n \n", off))
	}
	b.WriteString(fmt.Sprintf("trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xrefPos))
	return []byte(b.String())
}

func TestDocumentExtractsText(t *testing.T) {
	t.Parallel()

	data := buildMinimalPDF(t, "Hello")
	got, err := Document(data, DocumentMIME, int64(len(data)))
	if err != nil {
		t.Fatalf("Document() error = %v", err)
	}
	if !strings.Contains(got, "Hello") {
		t.Fatalf("extracted text mismatch: got %q", got)
	}
}

func TestDocumentRejectsWrongMIME(t *testing.T) {
	t.Parallel()

	_, err := Document([]byte("whatever"), "image/png", 8)
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("error mismatch: got %v want ErrUnsupportedType", err)
	}
}

func TestDocumentRejectsOversizedDeclaration(t *testing.T) {
	t.Parallel()

	_, err := Document(nil, DocumentMIME, 16*1024*1024)
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("error mismatch: got %v want ErrTooLarge", err)
	}
}

func TestDocumentGarbageBytes(t *testing.T) {
	t.Parallel()

	_, err := Document([]byte("this is not a pdf"), DocumentMIME, 17)
	if !errors.Is(err, ErrProcessing) {
		t.Fatalf("error mismatch: got %v want ErrProcessing", err)
	}
}

func TestImageEncodes(t *testing.T) {
	t.Parallel()

	raw := []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10}
	got, err := Image(raw, int64(len(raw)))
	if err != nil {
		t.Fatalf("Image() error = %v", err)
	}
	if want := base64.StdEncoding.EncodeToString(raw); got != want {
		t.Fatalf("payload mismatch: got %q want %q", got, want)
	}
}

func TestImageAcceptsArbitraryBytes(t *testing.T) {
	t.Parallel()

	// No decoding happens; anything under the ceiling passes through.
	if _, err := Image([]byte("not an image at all"), 19); err != nil {
		t.Fatalf("Image() error = %v", err)
	}
}

func TestImageRejectsOversizedDeclaration(t *testing.T) {
	t.Parallel()

	_, err := Image(nil, MaxImageBytes+1)
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("error mismatch: got %v want ErrTooLarge", err)
	}
}
