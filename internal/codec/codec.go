// Package codec serializes tree blueprints to JSON, XML and CSV documents,
// optionally gzip-compressed and base64-encoded.
//
// Node fields are written in canonical order: NodeId, PayloadType, then the
// payload (a Payload object for wrapped types, inlined properties for
// self-payload types), then Children.
package codec

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/alexanderramin/arbor/internal/tree"
)

var (
	ErrMalformed         = errors.New("malformed document")
	ErrUnsupportedFormat = errors.New("unsupported format")
)

// Format names a document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatXML  Format = "xml"
	FormatCSV  Format = "csv"
)

// ParseFormat normalizes a format name. Empty means JSON.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "xml":
		return FormatXML, nil
	case "csv":
		return FormatCSV, nil
	}
	return "", fmt.Errorf("%q: %w", s, ErrUnsupportedFormat)
}

// Document is the serialized form of a subtree plus optional view state
// and tags.
type Document struct {
	Root *tree.Blueprint
	Tags map[string][]string
	View *ViewState
}

// ViewState is the persisted part of a view.
type ViewState struct {
	DefaultExpanded bool
	Expanded        map[string]bool
	Included        []string
	Excluded        []string
}

// Options selects the encoding. Decoding with an empty Format detects it
// from the content, compression included.
type Options struct {
	Format     Format
	Compressed bool
	Compact    bool
}

// MalformedError reports where a document failed to decode. Line and
// Column are 1-based and zero when the failure has no text position, in
// which case Path names the offending element.
type MalformedError struct {
	Format string
	Line   int
	Column int
	Path   string
	Msg    string
}

// Position renders the location of the failure.
func (e *MalformedError) Position() string {
	switch {
	case e.Line > 0:
		return fmt.Sprintf("line %d, column %d", e.Line, e.Column)
	case e.Path != "":
		return e.Path
	}
	return "start of input"
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Format, e.Position(), e.Msg)
}

func (e *MalformedError) Unwrap() error { return ErrMalformed }

// Encode writes doc in the requested format. The registry supplies property
// order and whether a type is self-payload.
func Encode(reg *tree.Registry, doc Document, opts Options) ([]byte, error) {
	if doc.Root == nil {
		return nil, errors.New("document has no root")
	}
	format := opts.Format
	if format == "" {
		format = FormatJSON
	}

	var (
		out []byte
		err error
	)
	switch format {
	case FormatJSON:
		out, err = encodeJSON(reg, doc, !opts.Compact)
	case FormatXML:
		out, err = encodeXML(reg, doc, !opts.Compact)
	case FormatCSV:
		out, err = encodeCSV(reg, doc)
	default:
		return nil, fmt.Errorf("%q: %w", format, ErrUnsupportedFormat)
	}
	if err != nil {
		return nil, err
	}
	if opts.Compressed {
		return compress(out)
	}
	return out, nil
}

// Decode parses a document. Failures wrap ErrMalformed and carry a
// *MalformedError with the position.
func Decode(data []byte, opts Options) (Document, error) {
	if opts.Compressed || looksCompressed(data) {
		raw, err := decompress(data)
		if err != nil {
			return Document{}, err
		}
		data = raw
	}

	format := opts.Format
	if format == "" {
		format = Detect(data)
	}
	switch format {
	case FormatJSON:
		return decodeJSON(data)
	case FormatXML:
		return decodeXML(data)
	case FormatCSV:
		return decodeCSV(data)
	}
	return Document{}, fmt.Errorf("%q: %w", format, ErrUnsupportedFormat)
}

// Detect guesses the format of uncompressed content.
func Detect(data []byte) Format {
	trimmed := bytes.TrimLeft(data, " \t\r\n\ufeff")
	switch {
	case bytes.HasPrefix(trimmed, []byte("{")):
		return FormatJSON
	case bytes.HasPrefix(trimmed, []byte("<")):
		return FormatXML
	}
	return FormatCSV
}

// gzip output always starts with 1f 8b, which base64 renders as "H4sI".
func looksCompressed(data []byte) bool {
	return bytes.HasPrefix(bytes.TrimSpace(data), []byte("H4sI"))
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, fmt.Errorf("gzip: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("gzip: %w", err)
	}
	out := make([]byte, base64.StdEncoding.EncodedLen(buf.Len()))
	base64.StdEncoding.Encode(out, buf.Bytes())
	return out, nil
}

func decompress(data []byte) ([]byte, error) {
	text := bytes.Join(bytes.Fields(data), nil)
	raw := make([]byte, base64.StdEncoding.DecodedLen(len(text)))
	n, err := base64.StdEncoding.Decode(raw, text)
	if err != nil {
		var corrupt base64.CorruptInputError
		if errors.As(err, &corrupt) {
			return nil, &MalformedError{Format: "base64", Line: 1, Column: int(corrupt) + 1, Msg: "illegal base64 data"}
		}
		return nil, &MalformedError{Format: "base64", Msg: err.Error()}
	}
	zr, err := gzip.NewReader(bytes.NewReader(raw[:n]))
	if err != nil {
		return nil, &MalformedError{Format: "gzip", Path: "header", Msg: err.Error()}
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, &MalformedError{Format: "gzip", Path: "body", Msg: err.Error()}
	}
	return out, nil
}

// propertyOrder lists the property names of bp in declaration order, then
// any undeclared names sorted.
func propertyOrder(spec *tree.TypeSpec, props map[string]any) []string {
	var names []string
	seen := make(map[string]bool, len(props))
	if spec != nil {
		for _, name := range spec.PropertyNames() {
			if _, ok := props[name]; ok {
				names = append(names, name)
				seen[name] = true
			}
		}
	}
	var rest []string
	for name := range props {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	slices.Sort(rest)
	return append(names, rest...)
}

func lookupSpec(reg *tree.Registry, typeName string) (*tree.TypeSpec, error) {
	if reg == nil {
		return nil, nil
	}
	spec, err := reg.Lookup(typeName)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", typeName, err)
	}
	return spec, nil
}

// formatScalar renders a property value as text for XML and CSV.
func formatScalar(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	}
	return fmt.Sprint(v)
}
