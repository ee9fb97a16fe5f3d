// Package pitch reads a project description from a pitch document.
package pitch

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// MaxBytes caps how much text is taken from a document.
const MaxBytes = 64 << 10

var ErrEmpty = errors.New("document contains no text")

// ReadDescription extracts plain text from path. PDF files are decoded page
// by page; any other file is read as text. Runs of whitespace are collapsed.
func ReadDescription(path string) (string, error) {
	var (
		text string
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		text, err = readPDF(path)
	} else {
		text, err = readText(path)
	}
	if err != nil {
		return "", err
	}
	text = Collapse(text)
	if text == "" {
		return "", fmt.Errorf("%s: %w", path, ErrEmpty)
	}
	return text, nil
}

// Collapse joins whitespace runs into single spaces and trims the result.
func Collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func readText(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	b, err := io.ReadAll(io.LimitReader(f, MaxBytes))
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(b), nil
}

func readPDF(path string) (text string, err error) {
	// The decoder panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("decoding pdf %s: %v", path, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf %s: %w", path, err)
	}
	defer f.Close()

	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting text from %s: %w", path, err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(plain, MaxBytes)); err != nil {
		return "", fmt.Errorf("reading text from %s: %w", path, err)
	}
	return buf.String(), nil
}
