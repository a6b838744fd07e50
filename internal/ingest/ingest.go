// Package ingest converts inbound Telegram attachments into prompt context:
// documents become extracted text, photos become base64 payloads for inline
// transmission to the completion API.
package ingest

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

const (
	MaxDocumentBytes = 15 * 1024 * 1024
	MaxImageBytes    = 10 * 1024 * 1024

	DocumentMIME = "application/pdf"
)

var (
	ErrUnsupportedType = errors.New("unsupported attachment type")
	ErrTooLarge        = errors.New("attachment too large")
	ErrProcessing      = errors.New("attachment processing failed")
)

// ValidateDocument checks the declared MIME type and size. Handlers call it
// before downloading anything so oversized or non-PDF files are rejected up
// front.
func ValidateDocument(declaredMIME string, declaredSize int64) error {
	if strings.TrimSpace(declaredMIME) != DocumentMIME {
		return fmt.Errorf("%w: %s", ErrUnsupportedType, declaredMIME)
	}
	if declaredSize > MaxDocumentBytes {
		return fmt.Errorf("%w: %d bytes", ErrTooLarge, declaredSize)
	}
	return nil
}

// ValidateImage checks the declared size of the largest photo variant.
func ValidateImage(declaredSize int64) error {
	if declaredSize > MaxImageBytes {
		return fmt.Errorf("%w: %d bytes", ErrTooLarge, declaredSize)
	}
	return nil
}

// Document extracts the text of a PDF, concatenating all pages in order.
func Document(data []byte, declaredMIME string, declaredSize int64) (string, error) {
	if err := ValidateDocument(declaredMIME, declaredSize); err != nil {
		return "", err
	}
	text, err := extractPDFText(data)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProcessing, err)
	}
	return text, nil
}

func extractPDFText(data []byte) (text string, err error) {
	// The pdf package panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf decode: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		s, err := p.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		b.WriteString(s)
	}
	return b.String(), nil
}

// Image accepts any byte stream under the size ceiling and base64-encodes it
// for inline transmission. No image decoding or re-validation happens here.
func Image(data []byte, declaredSize int64) (string, error) {
	if err := ValidateImage(declaredSize); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
