// Package document turns candidate files into plain text.
package document

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Format is the container format of a candidate document.
type Format int

const (
	FormatUnsupported Format = iota
	FormatPDF
	FormatDOCX
)

func (f Format) String() string {
	switch f {
	case FormatPDF:
		return "pdf"
	case FormatDOCX:
		return "docx"
	default:
		return "unsupported"
	}
}

// FormatOf detects the format from the file extension, ignoring case.
func FormatOf(name string) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return FormatPDF
	case ".docx":
		return FormatDOCX
	default:
		return FormatUnsupported
	}
}

// SupportedExtensions lists the extensions FormatOf recognizes.
func SupportedExtensions() []string {
	return []string{".pdf", ".docx"}
}

// Document is a named candidate file. Either Data or Path holds the content;
// Data wins when both are set.
type Document struct {
	Name   string
	Path   string
	Data   []byte
	Format Format
}

// FromPath describes a document stored on disk. The content is read lazily.
func FromPath(path string) Document {
	name := filepath.Base(path)
	return Document{Name: name, Path: path, Format: FormatOf(name)}
}

// FromBytes describes an in-memory document, e.g. an uploaded file.
func FromBytes(name string, data []byte) Document {
	return Document{Name: name, Data: data, Format: FormatOf(name)}
}

// Bytes returns the raw content of the document.
func (d Document) Bytes() ([]byte, error) {
	if d.Data != nil {
		return d.Data, nil
	}
	if d.Path == "" {
		return nil, fmt.Errorf("document %q has neither data nor path", d.Name)
	}
	data, err := os.ReadFile(d.Path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", d.Path, err)
	}
	return data, nil
}
