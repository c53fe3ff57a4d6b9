package codec

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/alexanderramin/arbor/internal/tree"
)

// CSV documents hold one row per node in pre-order. Fixed columns come
// first; the remaining columns are the union of property names. Empty cells
// leave the property at its default. View state is not representable.
const (
	csvNodeID   = "NodeId"
	csvParentID = "ParentId"
	csvType     = "PayloadType"
	csvTags     = "Tags"
	tagSep      = ";"
)

var csvFixed = []string{csvNodeID, csvParentID, csvType, csvTags}

func encodeCSV(reg *tree.Registry, doc Document) ([]byte, error) {
	type row struct {
		bp     *tree.Blueprint
		parent string
	}
	var rows []row
	var columns []string
	seen := make(map[string]bool)

	var walk func(bp *tree.Blueprint, parent string) error
	walk = func(bp *tree.Blueprint, parent string) error {
		spec, err := lookupSpec(reg, bp.Type)
		if err != nil {
			return err
		}
		for _, name := range propertyOrder(spec, bp.Properties) {
			if !seen[name] {
				seen[name] = true
				columns = append(columns, name)
			}
		}
		rows = append(rows, row{bp: bp, parent: parent})
		for _, c := range bp.Children {
			if err := walk(c, bp.ID); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(doc.Root, ""); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := append(slices.Clone(csvFixed), columns...)
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range rows {
		rec := []string{r.bp.ID, r.parent, r.bp.Type, strings.Join(doc.Tags[r.bp.ID], tagSep)}
		for _, col := range columns {
			v, ok := r.bp.Properties[col]
			if !ok {
				rec = append(rec, "")
				continue
			}
			rec = append(rec, formatScalar(v))
		}
		if err := w.Write(rec); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("write csv: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeCSV(data []byte) (Document, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = 0

	header, err := r.Read()
	if err != nil {
		return Document{}, csvError(err, 1)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		index[header[i]] = i
	}
	for _, col := range []string{csvNodeID, csvParentID, csvType} {
		if _, ok := index[col]; !ok {
			return Document{}, &MalformedError{Format: "csv", Line: 1, Column: 1, Msg: fmt.Sprintf("missing %s column", col)}
		}
	}

	var doc Document
	nodes := make(map[string]*tree.Blueprint)
	line := 1
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return Document{}, csvError(err, line)
		}
		if l, _ := r.FieldPos(0); l > 0 {
			line = l
		}

		cell := func(col string) string {
			if i, ok := index[col]; ok && i < len(rec) {
				return rec[i]
			}
			return ""
		}
		bp := &tree.Blueprint{ID: cell(csvNodeID), Type: cell(csvType), Properties: make(map[string]any)}
		if bp.ID == "" {
			return Document{}, &MalformedError{Format: "csv", Line: line, Column: index[csvNodeID] + 1, Msg: "NodeId is required"}
		}
		if bp.Type == "" {
			return Document{}, &MalformedError{Format: "csv", Line: line, Column: index[csvType] + 1, Msg: "PayloadType is required"}
		}
		if _, dup := nodes[bp.ID]; dup {
			return Document{}, &MalformedError{Format: "csv", Line: line, Column: index[csvNodeID] + 1, Msg: fmt.Sprintf("duplicate NodeId %s", bp.ID)}
		}
		for i, name := range header {
			if slices.Contains(csvFixed, name) || i >= len(rec) || rec[i] == "" {
				continue
			}
			bp.Properties[name] = rec[i]
		}
		if tags := cell(csvTags); tags != "" {
			if doc.Tags == nil {
				doc.Tags = make(map[string][]string)
			}
			for _, t := range strings.Split(tags, tagSep) {
				if t = strings.TrimSpace(t); t != "" {
					doc.Tags[bp.ID] = append(doc.Tags[bp.ID], t)
				}
			}
		}

		parentID := cell(csvParentID)
		switch {
		case parentID == "" && doc.Root != nil:
			return Document{}, &MalformedError{Format: "csv", Line: line, Column: index[csvParentID] + 1, Msg: "second root row"}
		case parentID == "":
			doc.Root = bp
		default:
			parent, ok := nodes[parentID]
			if !ok {
				return Document{}, &MalformedError{Format: "csv", Line: line, Column: index[csvParentID] + 1, Msg: fmt.Sprintf("parent %s must precede its children", parentID)}
			}
			parent.Children = append(parent.Children, bp)
		}
		nodes[bp.ID] = bp
	}
	if doc.Root == nil {
		return Document{}, &MalformedError{Format: "csv", Line: line, Column: 1, Msg: "no root row"}
	}
	return doc, nil
}

func csvError(err error, line int) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &MalformedError{Format: "csv", Line: pe.Line, Column: pe.Column, Msg: pe.Err.Error()}
	}
	if errors.Is(err, io.EOF) {
		return &MalformedError{Format: "csv", Line: line, Column: 1, Msg: "empty document"}
	}
	return &MalformedError{Format: "csv", Line: line, Column: 1, Msg: err.Error()}
}
