package services

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
)

var (
	trailingSpaceRe = regexp.MustCompile(`\s+\n`)
	blankLinesRe    = regexp.MustCompile(`\n{3,}`)
)

// PDFText is the cleaned text of a PDF and its page count.
type PDFText struct {
	Text  string
	Pages int
}

type PDFService struct{}

func NewPDFService() *PDFService {
	return &PDFService{}
}

// ExtractText reads the plain text layer of the PDF at path.
func (s *PDFService) ExtractText(path string) (*PDFText, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	plain, err := r.GetPlainText()
	if err != nil {
		return nil, fmt.Errorf("read pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return nil, fmt.Errorf("read pdf text: %w", err)
	}

	return &PDFText{Text: CleanText(buf.String()), Pages: r.NumPage()}, nil
}

// CleanText drops whitespace before line breaks and collapses runs of blank
// lines to one.
func CleanText(s string) string {
	s = trailingSpaceRe.ReplaceAllString(s, "\n")
	s = blankLinesRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
