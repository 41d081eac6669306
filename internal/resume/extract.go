// Package resume turns résumé documents into text and structured data.
package resume

import (
	"bytes"
	"context"
	"os/exec"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/candidate-profiler/internal/config"
)

// ErrUnsupportedFormat is returned for file types the extractor cannot read.
var ErrUnsupportedFormat = eris.New("resume: unsupported document format")

// TextExtractor extracts plain text from a résumé document.
type TextExtractor interface {
	ExtractText(ctx context.Context, name string, data []byte) (string, error)
}

// FileExtractor reads PDF (via pdftotext), DOCX and plain-text résumés.
type FileExtractor struct {
	binPath  string
	maxChars int
}

// NewFileExtractor creates a FileExtractor. If PdfToTextPath is empty,
// "pdftotext" is used.
func NewFileExtractor(cfg config.ResumeConfig) *FileExtractor {
	bin := cfg.PdfToTextPath
	if bin == "" {
		bin = "pdftotext"
	}
	return &FileExtractor{binPath: bin, maxChars: cfg.MaxChars}
}

// ExtractText picks a reader by file extension and returns normalized text.
func (e *FileExtractor) ExtractText(ctx context.Context, name string, data []byte) (string, error) {
	var (
		text string
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".pdf":
		text, err = e.pdfToText(ctx, name, data)
	case ".docx":
		text, err = docxText(data)
	case ".txt", ".md", ".text":
		if !utf8.Valid(data) {
			return "", eris.Errorf("resume: %s is not valid UTF-8", name)
		}
		text = string(data)
	default:
		return "", eris.Wrapf(ErrUnsupportedFormat, "%q", ext)
	}
	if err != nil {
		return "", err
	}

	text = Normalize(text)
	if text == "" {
		return "", eris.Errorf("resume: no text extracted from %s", name)
	}
	return Truncate(text, e.maxChars), nil
}

// pdfToText runs pdftotext -layout reading the PDF from stdin.
func (e *FileExtractor) pdfToText(ctx context.Context, name string, data []byte) (string, error) {
	cmd := exec.CommandContext(ctx, e.binPath, "-layout", "-", "-")
	cmd.Stdin = bytes.NewReader(data)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", eris.Wrapf(err, "resume: pdftotext failed for %s: %s", name, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// Normalize applies NFC, drops control characters except newlines and tabs,
// trims trailing spaces on each line and collapses runs of blank lines.
func Normalize(s string) string {
	s = norm.NFC.String(strings.ReplaceAll(s, "\r\n", "\n"))
	s = strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t':
			return r
		case r == '\f':
			return '\n'
		case r < 0x20 || r == 0x7f || r == utf8.RuneError:
			return -1
		}
		return r
	}, s)

	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := 0
	for _, l := range lines {
		l = strings.TrimRight(l, " \t")
		if l == "" {
			blank++
			if blank > 1 {
				continue
			}
		} else {
			blank = 0
		}
		out = append(out, l)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// Truncate cuts s to at most limit runes. Non-positive limit leaves s unchanged.
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit])
}
