package document

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/resume-ranker/internal/logger"
)

var (
	// ErrUnsupportedFormat is returned for documents whose format has no handler.
	ErrUnsupportedFormat = errors.New("unsupported document format")
	// ErrNoText is returned when a document parsed fine but contained no text.
	ErrNoText = errors.New("no text recovered from document")
)

// ExtractionError reports why a document could not be turned into text.
type ExtractionError struct {
	Name   string
	Format Format
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s (%s): %v", e.Name, e.Format, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

type handler func(data []byte) (string, error)

var handlers = map[Format]handler{
	FormatPDF:  extractPDF,
	FormatDOCX: extractDOCX,
}

// Extractor converts documents into trimmed plain text.
type Extractor struct {
	logger *zap.Logger
}

// NewExtractor creates an extractor that reports failures to logger.
func NewExtractor(log *zap.Logger) *Extractor {
	return &Extractor{logger: logger.OrNop(log)}
}

// Extract returns the text of doc or an *ExtractionError. It never panics on
// malformed input.
func (e *Extractor) Extract(doc Document) (text string, err error) {
	log := e.logger.With(zap.String(logger.FieldFile, doc.Name), zap.Stringer("format", doc.Format))

	defer func() {
		if err != nil {
			log.Warn("text extraction failed", zap.Error(err))
		}
	}()

	fail := func(cause error) (string, error) {
		return "", &ExtractionError{Name: doc.Name, Format: doc.Format, Err: cause}
	}

	extract, ok := handlers[doc.Format]
	if !ok {
		return fail(ErrUnsupportedFormat)
	}

	data, err := doc.Bytes()
	if err != nil {
		return fail(err)
	}

	log.Debug("extracting text", zap.Int("bytes", len(data)))

	raw, err := safeExtract(extract, data)
	if err != nil {
		return fail(err)
	}

	text = strings.TrimSpace(raw)
	if text == "" {
		return fail(ErrNoText)
	}

	log.Debug("text extracted", zap.Int("chars", len([]rune(text))))
	return text, nil
}

func safeExtract(extract handler, data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("parser panic: %v", r)
		}
	}()
	return extract(data)
}

// joinNonEmpty trims every part and joins the non-empty ones with newlines.
func joinNonEmpty(parts []string) string {
	var b strings.Builder
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(part)
	}
	return b.String()
}
