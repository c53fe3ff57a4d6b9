package codec

import (
	"bytes"
	"strings"
	"testing"

	"github.com/alexanderramin/arbor/internal/tree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type room struct {
	Name       string
	SquareFeet int
	Ceiling    float64
	Heated     bool
}

type folder struct{ Title string }

func testRegistry(t *testing.T) *tree.Registry {
	t.Helper()
	reg := tree.NewRegistry()
	require.NoError(t, reg.Register(tree.TypeSpec{
		Name: "Room",
		New:  func() any { return &room{} },
		Properties: []tree.PropertySpec{
			tree.StringProperty("Name", func(r *room) string { return r.Name }, func(r *room, v string) { r.Name = v }),
			tree.IntProperty("SquareFeet", func(r *room) int { return r.SquareFeet }, func(r *room, v int) { r.SquareFeet = v }),
			tree.FloatProperty("Ceiling", func(r *room) float64 { return r.Ceiling }, func(r *room, v float64) { r.Ceiling = v }),
			tree.BoolProperty("Heated", func(r *room) bool { return r.Heated }, func(r *room, v bool) { r.Heated = v }),
		},
	}))
	require.NoError(t, reg.Register(tree.TypeSpec{
		Name:        "Folder",
		SelfPayload: true,
		New:         func() any { return &folder{} },
		Properties: []tree.PropertySpec{
			tree.StringProperty("Title", func(f *folder) string { return f.Title }, func(f *folder, v string) { f.Title = v }),
		},
	}))
	return reg
}

func sampleDoc() Document {
	return Document{
		Root: &tree.Blueprint{
			ID: "root", Type: "Folder", Properties: map[string]any{"Title": "Home"},
			Children: []*tree.Blueprint{
				{ID: "k", Type: "Room", Properties: map[string]any{"Name": "Kitchen", "SquareFeet": 200, "Ceiling": 2.5, "Heated": true}},
				{ID: "up", Type: "Folder", Properties: map[string]any{"Title": "Upstairs, \"east\""}, Children: []*tree.Blueprint{
					{ID: "b", Type: "Room", Properties: map[string]any{"Name": "Bedroom", "SquareFeet": 150, "Ceiling": 2.4, "Heated": false}},
				}},
			},
		},
		Tags: map[string][]string{"k": {"food", "warm"}, "b": {"sleep"}},
		View: &ViewState{
			DefaultExpanded: true,
			Expanded:        map[string]bool{"up": false},
			Included:        []string{"Name"},
			Excluded:        []string{"Secret"},
		},
	}
}

// flatten renders a blueprint as comparable lines with textual values.
func flatten(bp *tree.Blueprint) []string {
	var out []string
	var walk func(*tree.Blueprint, int)
	walk = func(b *tree.Blueprint, depth int) {
		var props []string
		for _, k := range propertyOrder(nil, b.Properties) {
			props = append(props, k+"="+formatScalar(b.Properties[k]))
		}
		out = append(out, strings.Repeat(" ", depth)+b.ID+":"+b.Type+" "+strings.Join(props, ","))
		for _, c := range b.Children {
			walk(c, depth+1)
		}
	}
	walk(bp, 0)
	return out
}

func TestEncodeJSON_CanonicalFieldOrder(t *testing.T) {
	out, err := Encode(testRegistry(t), sampleDoc(), Options{Compact: true})
	require.NoError(t, err)
	s := string(out)

	assert.True(t, strings.HasPrefix(s, `{"Root":{"NodeId":"root","PayloadType":"Folder","Title":"Home","Children":[`), s)
	assert.Contains(t, s, `{"NodeId":"k","PayloadType":"Room","Payload":{"Name":"Kitchen","SquareFeet":200,"Ceiling":2.5,"Heated":true},"Children":[]}`)
	assert.Contains(t, s, `"Tags":{"b":["sleep"],"k":["food","warm"]}`)
	assert.Contains(t, s, `"ViewState":{"DefaultExpanded":true,"Expanded":{"up":false},"Included":["Name"],"Excluded":["Secret"]}`)
}

func TestRoundTrip(t *testing.T) {
	reg := testRegistry(t)
	doc := sampleDoc()

	for _, format := range []Format{FormatJSON, FormatXML, FormatCSV} {
		for _, compressed := range []bool{false, true} {
			t.Run(string(format), func(t *testing.T) {
				out, err := Encode(reg, doc, Options{Format: format, Compressed: compressed})
				require.NoError(t, err)
				if compressed {
					assert.True(t, bytes.HasPrefix(out, []byte("H4sI")))
				}

				got, err := Decode(out, Options{})
				require.NoError(t, err)
				assert.Equal(t, flatten(doc.Root), flatten(got.Root))
				assert.Equal(t, doc.Tags, got.Tags)
				if format == FormatCSV {
					assert.Nil(t, got.View)
				} else {
					assert.Equal(t, doc.View, got.View)
				}
			})
		}
	}
}

func TestDecodeJSON_BareNodeAndMinimalDocument(t *testing.T) {
	got, err := Decode([]byte(`{"PayloadType":"Folder","Title":"Loose","Children":[{"PayloadType":"Room","Payload":{"Name":"X"}}]}`), Options{Format: FormatJSON})
	require.NoError(t, err)
	assert.Equal(t, "", got.Root.ID)
	assert.Equal(t, map[string]any{"Title": "Loose"}, got.Root.Properties)
	require.Len(t, got.Root.Children, 1)
	assert.Equal(t, "X", got.Root.Children[0].Properties["Name"])
	assert.Nil(t, got.Tags)
	assert.Nil(t, got.View)
}

func TestDecode_MalformedCarriesPosition(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		format Format
		line   int
		path   string
	}{
		{"json syntax", "{\n  \"Root\": {\n    \"NodeId\": 5x\n  }\n}", FormatJSON, 3, ""},
		{"json truncated", "{\"Root\": {", FormatJSON, 1, ""},
		{"json not an object", "[1, 2]", FormatJSON, 1, ""},
		{"json missing type", `{"Root":{"PayloadType":"Folder","Children":[{"NodeId":"x"}]}}`, FormatJSON, 0, "$.Root.Children[0].PayloadType"},
		{"json children not array", `{"Root":{"PayloadType":"Folder","Children":{}}}`, FormatJSON, 0, "$.Root.Children"},
		{"xml mismatched tag", "<Tree>\n<Node NodeId=\"a\" PayloadType=\"Folder\">\n</Tree>", FormatXML, 3, ""},
		{"xml missing node", "<Tree></Tree>", FormatXML, 0, "/Tree"},
		{"csv bare quote", "NodeId,ParentId,PayloadType\nn1,,Fol\"der\n", FormatCSV, 2, ""},
		{"csv orphan row", "NodeId,ParentId,PayloadType\nn1,,Folder\nn2,zz,Room\n", FormatCSV, 3, ""},
		{"csv missing column", "NodeId,PayloadType\nn1,Folder\n", FormatCSV, 1, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.data), Options{Format: tt.format})
			require.ErrorIs(t, err, ErrMalformed)
			var me *MalformedError
			require.ErrorAs(t, err, &me)
			assert.Equal(t, tt.line, me.Line, me.Error())
			assert.Equal(t, tt.path, me.Path)
			assert.Equal(t, string(tt.format), me.Format)
			assert.NotEmpty(t, me.Position())
		})
	}
}

func TestDecode_BadCompression(t *testing.T) {
	_, err := Decode([]byte("H4sI!!!!"), Options{})
	var me *MalformedError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, "base64", me.Format)
	assert.Equal(t, 5, me.Column)

	_, err = Decode([]byte("aGVsbG8="), Options{Compressed: true})
	require.ErrorAs(t, err, &me)
	assert.Equal(t, "gzip", me.Format)
}

func TestEncode_UnknownTypeFails(t *testing.T) {
	doc := Document{Root: &tree.Blueprint{ID: "x", Type: "Garage"}}
	_, err := Encode(testRegistry(t), doc, Options{})
	assert.ErrorIs(t, err, tree.ErrUnknownType)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)
	f, err = ParseFormat("XML")
	require.NoError(t, err)
	assert.Equal(t, FormatXML, f)
	_, err = ParseFormat("yaml")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
