package codec

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/alexanderramin/arbor/internal/tree"
)

type xmlDocument struct {
	XMLName xml.Name `xml:"Tree"`
	Root    *xmlNode `xml:"Node"`
	Tags    *xmlTags `xml:"Tags,omitempty"`
	View    *xmlView `xml:"ViewState,omitempty"`
}

type xmlNode struct {
	NodeID      string        `xml:"NodeId,attr"`
	PayloadType string        `xml:"PayloadType,attr"`
	Payload     *xmlPayload   `xml:"Payload,omitempty"`
	Properties  []xmlProperty `xml:"Property"`
	Children    *xmlChildren  `xml:"Children,omitempty"`
}

type xmlPayload struct {
	Properties []xmlProperty `xml:"Property"`
}

type xmlProperty struct {
	Name  string `xml:"Name,attr"`
	Kind  string `xml:"Kind,attr,omitempty"`
	Value string `xml:",chardata"`
}

type xmlChildren struct {
	Nodes []xmlNode `xml:"Node"`
}

type xmlTags struct {
	Entries []xmlTag `xml:"Tag"`
}

type xmlTag struct {
	NodeID string `xml:"NodeId,attr"`
	Value  string `xml:",chardata"`
}

type xmlView struct {
	DefaultExpanded bool          `xml:"DefaultExpanded,attr"`
	Expanded        []xmlExpanded `xml:"Expanded"`
	Included        []string      `xml:"Include"`
	Excluded        []string      `xml:"Exclude"`
}

type xmlExpanded struct {
	NodeID string `xml:"NodeId,attr"`
	Value  bool   `xml:"Value,attr"`
}

func encodeXML(reg *tree.Registry, doc Document, indent bool) ([]byte, error) {
	root, err := toXMLNode(reg, doc.Root)
	if err != nil {
		return nil, err
	}
	xd := xmlDocument{Root: root}
	if len(doc.Tags) > 0 {
		xd.Tags = &xmlTags{}
		for _, id := range slices.Sorted(maps.Keys(doc.Tags)) {
			for _, tag := range doc.Tags[id] {
				xd.Tags.Entries = append(xd.Tags.Entries, xmlTag{NodeID: id, Value: tag})
			}
		}
	}
	if doc.View != nil {
		xd.View = &xmlView{
			DefaultExpanded: doc.View.DefaultExpanded,
			Included:        doc.View.Included,
			Excluded:        doc.View.Excluded,
		}
		for _, id := range slices.Sorted(maps.Keys(doc.View.Expanded)) {
			xd.View.Expanded = append(xd.View.Expanded, xmlExpanded{NodeID: id, Value: doc.View.Expanded[id]})
		}
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	if indent {
		enc.Indent("", "  ")
	}
	if err := enc.Encode(xd); err != nil {
		return nil, fmt.Errorf("encode xml: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func toXMLNode(reg *tree.Registry, bp *tree.Blueprint) (*xmlNode, error) {
	spec, err := lookupSpec(reg, bp.Type)
	if err != nil {
		return nil, err
	}
	n := &xmlNode{NodeID: bp.ID, PayloadType: bp.Type}
	var props []xmlProperty
	for _, name := range propertyOrder(spec, bp.Properties) {
		p := xmlProperty{Name: name, Value: formatScalar(bp.Properties[name])}
		if spec != nil {
			if ps, ok := spec.Property(name); ok {
				p.Kind = ps.Kind.String()
			}
		}
		props = append(props, p)
	}
	if spec != nil && spec.SelfPayload {
		n.Properties = props
	} else {
		n.Payload = &xmlPayload{Properties: props}
	}
	if len(bp.Children) > 0 {
		n.Children = &xmlChildren{}
		for _, c := range bp.Children {
			xc, err := toXMLNode(reg, c)
			if err != nil {
				return nil, err
			}
			n.Children.Nodes = append(n.Children.Nodes, *xc)
		}
	}
	return n, nil
}

func decodeXML(data []byte) (Document, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var xd xmlDocument
	if err := dec.Decode(&xd); err != nil {
		line, col := dec.InputPos()
		var syn *xml.SyntaxError
		switch {
		case errors.As(err, &syn):
			return Document{}, &MalformedError{Format: "xml", Line: syn.Line, Column: col, Msg: syn.Msg}
		case errors.Is(err, io.EOF):
			return Document{}, &MalformedError{Format: "xml", Line: line, Column: col, Msg: "unexpected end of input"}
		}
		return Document{}, &MalformedError{Format: "xml", Line: line, Column: col, Msg: err.Error()}
	}
	if xd.Root == nil {
		return Document{}, &MalformedError{Format: "xml", Path: "/Tree", Msg: "missing Node element"}
	}

	root, err := fromXMLNode(xd.Root, "/Tree/Node")
	if err != nil {
		return Document{}, err
	}
	doc := Document{Root: root}
	if xd.Tags != nil {
		doc.Tags = make(map[string][]string)
		for i, t := range xd.Tags.Entries {
			if t.NodeID == "" {
				return Document{}, &MalformedError{Format: "xml", Path: fmt.Sprintf("/Tree/Tags/Tag[%d]", i+1), Msg: "NodeId is required"}
			}
			doc.Tags[t.NodeID] = append(doc.Tags[t.NodeID], t.Value)
		}
	}
	if xd.View != nil {
		doc.View = &ViewState{
			DefaultExpanded: xd.View.DefaultExpanded,
			Expanded:        make(map[string]bool, len(xd.View.Expanded)),
			Included:        xd.View.Included,
			Excluded:        xd.View.Excluded,
		}
		for _, e := range xd.View.Expanded {
			doc.View.Expanded[e.NodeID] = e.Value
		}
	}
	return doc, nil
}

func fromXMLNode(n *xmlNode, path string) (*tree.Blueprint, error) {
	if n.PayloadType == "" {
		return nil, &MalformedError{Format: "xml", Path: path, Msg: "PayloadType is required"}
	}
	bp := &tree.Blueprint{ID: n.NodeID, Type: n.PayloadType, Properties: make(map[string]any)}
	props := n.Properties
	if n.Payload != nil {
		props = n.Payload.Properties
	}
	for i, p := range props {
		if p.Name == "" {
			return nil, &MalformedError{Format: "xml", Path: fmt.Sprintf("%s/Property[%d]", path, i+1), Msg: "Name is required"}
		}
		bp.Properties[p.Name] = p.Value
	}
	if n.Children != nil {
		for i := range n.Children.Nodes {
			c, err := fromXMLNode(&n.Children.Nodes[i], fmt.Sprintf("%s/Children/Node[%d]", path, i+1))
			if err != nil {
				return nil, err
			}
			bp.Children = append(bp.Children, c)
		}
	}
	return bp, nil
}
