package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/alexanderramin/arbor/internal/tree"
)

// Node object keys with structural meaning. Every other key of a node
// without a Payload object is an inlined property.
var structuralKeys = map[string]bool{
	tree.PropNodeID:      true,
	tree.PropPayloadType: true,
	tree.PropChildren:    true,
	tree.PropParent:      true,
	"Payload":            true,
}

func encodeJSON(reg *tree.Registry, doc Document, indent bool) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"Root":`)
	if err := writeJSONNode(&buf, reg, doc.Root); err != nil {
		return nil, err
	}
	if len(doc.Tags) > 0 {
		buf.WriteString(`,"Tags":{`)
		for i, id := range slices.Sorted(maps.Keys(doc.Tags)) {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeJSONValue(&buf, id)
			buf.WriteByte(':')
			writeJSONValue(&buf, doc.Tags[id])
		}
		buf.WriteByte('}')
	}
	if doc.View != nil {
		buf.WriteString(`,"ViewState":{"DefaultExpanded":`)
		writeJSONValue(&buf, doc.View.DefaultExpanded)
		buf.WriteString(`,"Expanded":{`)
		for i, id := range slices.Sorted(maps.Keys(doc.View.Expanded)) {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeJSONValue(&buf, id)
			buf.WriteByte(':')
			writeJSONValue(&buf, doc.View.Expanded[id])
		}
		buf.WriteString(`},"Included":`)
		writeJSONValue(&buf, nonNil(doc.View.Included))
		buf.WriteString(`,"Excluded":`)
		writeJSONValue(&buf, nonNil(doc.View.Excluded))
		buf.WriteByte('}')
	}
	buf.WriteByte('}')

	if !indent {
		return buf.Bytes(), nil
	}
	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", "  "); err != nil {
		return nil, fmt.Errorf("indent: %w", err)
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

func writeJSONNode(buf *bytes.Buffer, reg *tree.Registry, bp *tree.Blueprint) error {
	spec, err := lookupSpec(reg, bp.Type)
	if err != nil {
		return err
	}
	buf.WriteString(`{"NodeId":`)
	writeJSONValue(buf, bp.ID)
	buf.WriteString(`,"PayloadType":`)
	writeJSONValue(buf, bp.Type)

	names := propertyOrder(spec, bp.Properties)
	if spec != nil && spec.SelfPayload {
		for _, name := range names {
			buf.WriteByte(',')
			writeJSONValue(buf, name)
			buf.WriteByte(':')
			writeJSONValue(buf, bp.Properties[name])
		}
	} else {
		buf.WriteString(`,"Payload":{`)
		for i, name := range names {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeJSONValue(buf, name)
			buf.WriteByte(':')
			writeJSONValue(buf, bp.Properties[name])
		}
		buf.WriteByte('}')
	}

	buf.WriteString(`,"Children":[`)
	for i, c := range bp.Children {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeJSONNode(buf, reg, c); err != nil {
			return err
		}
	}
	buf.WriteString("]}")
	return nil
}

// writeJSONValue marshals scalars, strings and string slices, none of which
// can fail.
func writeJSONValue(buf *bytes.Buffer, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		b = []byte("null")
	}
	buf.Write(b)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func decodeJSON(data []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var top map[string]any
	if err := dec.Decode(&top); err != nil {
		return Document{}, jsonError(data, err)
	}
	if dec.More() {
		return Document{}, jsonAt(data, dec.InputOffset(), "unexpected data after document")
	}

	var doc Document
	rootObj := top
	if r, ok := top["Root"]; ok {
		m, ok := r.(map[string]any)
		if !ok {
			return Document{}, &MalformedError{Format: "json", Path: "$.Root", Msg: "expected object"}
		}
		rootObj = m
	}
	root, err := jsonNode(rootObj, "$.Root")
	if err != nil {
		return Document{}, err
	}
	doc.Root = root

	if raw, ok := top["Tags"]; ok && raw != nil {
		m, ok := raw.(map[string]any)
		if !ok {
			return Document{}, &MalformedError{Format: "json", Path: "$.Tags", Msg: "expected object"}
		}
		doc.Tags = make(map[string][]string, len(m))
		for id, v := range m {
			tags, err := jsonStrings(v, "$.Tags."+id)
			if err != nil {
				return Document{}, err
			}
			doc.Tags[id] = tags
		}
	}

	if raw, ok := top["ViewState"]; ok && raw != nil {
		vs, err := jsonViewState(raw)
		if err != nil {
			return Document{}, err
		}
		doc.View = vs
	}
	return doc, nil
}

func jsonNode(m map[string]any, path string) (*tree.Blueprint, error) {
	bp := &tree.Blueprint{Properties: make(map[string]any)}

	if raw, ok := m[tree.PropNodeID]; ok && raw != nil {
		id, ok := raw.(string)
		if !ok {
			return nil, &MalformedError{Format: "json", Path: path + ".NodeId", Msg: "expected string"}
		}
		bp.ID = id
	}
	typ, ok := m[tree.PropPayloadType].(string)
	if !ok || typ == "" {
		return nil, &MalformedError{Format: "json", Path: path + ".PayloadType", Msg: "PayloadType is required"}
	}
	bp.Type = typ

	if raw, ok := m["Payload"]; ok && raw != nil {
		props, ok := raw.(map[string]any)
		if !ok {
			return nil, &MalformedError{Format: "json", Path: path + ".Payload", Msg: "expected object"}
		}
		maps.Copy(bp.Properties, props)
	} else {
		for k, v := range m {
			if !structuralKeys[k] {
				bp.Properties[k] = v
			}
		}
	}

	if raw, ok := m[tree.PropChildren]; ok && raw != nil {
		list, ok := raw.([]any)
		if !ok {
			return nil, &MalformedError{Format: "json", Path: path + ".Children", Msg: "expected array"}
		}
		for i, item := range list {
			cpath := fmt.Sprintf("%s.Children[%d]", path, i)
			cm, ok := item.(map[string]any)
			if !ok {
				return nil, &MalformedError{Format: "json", Path: cpath, Msg: "expected object"}
			}
			c, err := jsonNode(cm, cpath)
			if err != nil {
				return nil, err
			}
			bp.Children = append(bp.Children, c)
		}
	}
	return bp, nil
}

func jsonStrings(v any, path string) ([]string, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, &MalformedError{Format: "json", Path: path, Msg: "expected array of strings"}
	}
	out := make([]string, 0, len(list))
	for i, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, &MalformedError{Format: "json", Path: fmt.Sprintf("%s[%d]", path, i), Msg: "expected string"}
		}
		out = append(out, s)
	}
	return out, nil
}

func jsonViewState(raw any) (*ViewState, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, &MalformedError{Format: "json", Path: "$.ViewState", Msg: "expected object"}
	}
	vs := &ViewState{Expanded: make(map[string]bool)}
	if v, ok := m["DefaultExpanded"]; ok {
		b, ok := v.(bool)
		if !ok {
			return nil, &MalformedError{Format: "json", Path: "$.ViewState.DefaultExpanded", Msg: "expected bool"}
		}
		vs.DefaultExpanded = b
	}
	if v, ok := m["Expanded"]; ok && v != nil {
		em, ok := v.(map[string]any)
		if !ok {
			return nil, &MalformedError{Format: "json", Path: "$.ViewState.Expanded", Msg: "expected object"}
		}
		for id, e := range em {
			b, ok := e.(bool)
			if !ok {
				return nil, &MalformedError{Format: "json", Path: "$.ViewState.Expanded." + id, Msg: "expected bool"}
			}
			vs.Expanded[id] = b
		}
	}
	var err error
	if v, ok := m["Included"]; ok && v != nil {
		if vs.Included, err = jsonStrings(v, "$.ViewState.Included"); err != nil {
			return nil, err
		}
	}
	if v, ok := m["Excluded"]; ok && v != nil {
		if vs.Excluded, err = jsonStrings(v, "$.ViewState.Excluded"); err != nil {
			return nil, err
		}
	}
	return vs, nil
}

// jsonError converts a decoder error into a positioned MalformedError.
func jsonError(data []byte, err error) error {
	var syn *json.SyntaxError
	if errors.As(err, &syn) {
		return jsonAt(data, syn.Offset, syn.Error())
	}
	var typ *json.UnmarshalTypeError
	if errors.As(err, &typ) {
		return jsonAt(data, typ.Offset, "document must be an object")
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return jsonAt(data, int64(len(data)), "unexpected end of input")
	}
	return &MalformedError{Format: "json", Msg: err.Error()}
}

func jsonAt(data []byte, offset int64, msg string) error {
	line, col := lineCol(data, offset)
	return &MalformedError{Format: "json", Line: line, Column: col, Msg: msg}
}

// lineCol maps a byte offset to a 1-based line and column.
func lineCol(data []byte, offset int64) (int, int) {
	if offset > int64(len(data)) {
		offset = int64(len(data))
	}
	if offset < 0 {
		offset = 0
	}
	prefix := data[:offset]
	line := bytes.Count(prefix, []byte("\n")) + 1
	col := int(offset) - bytes.LastIndexByte(prefix, '\n')
	return line, col
}
