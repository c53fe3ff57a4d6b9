// Package catalog registers the payload types the arbor host works with.
package catalog

import (
	"github.com/alexanderramin/arbor/internal/tree"
)

const (
	TypeTopic      = "Topic"
	TypeAnnotation = "Annotation"
)

// Topic is a self-payload outline entry.
type Topic struct {
	Title    string
	Notes    string
	Priority int
	Done     bool
}

// Annotation is a wrapped payload attached under a topic.
type Annotation struct {
	Text   string
	Author string
	Score  float64
}

// ClonePayload implements tree.Cloner.
func (a *Annotation) ClonePayload() any {
	c := *a
	return &c
}

func TopicSpec() tree.TypeSpec {
	return tree.TypeSpec{
		Name:        TypeTopic,
		SelfPayload: true,
		New:         func() any { return &Topic{} },
		Properties: []tree.PropertySpec{
			tree.StringProperty("Title", func(t *Topic) string { return t.Title }, func(t *Topic, v string) { t.Title = v }).AsRequired(),
			tree.StringProperty("Notes", func(t *Topic) string { return t.Notes }, func(t *Topic, v string) { t.Notes = v }),
			tree.IntProperty("Priority", func(t *Topic) int { return t.Priority }, func(t *Topic, v int) { t.Priority = v }),
			tree.BoolProperty("Done", func(t *Topic) bool { return t.Done }, func(t *Topic, v bool) { t.Done = v }),
		},
	}
}

func AnnotationSpec() tree.TypeSpec {
	return tree.TypeSpec{
		Name: TypeAnnotation,
		New:  func() any { return &Annotation{} },
		Properties: []tree.PropertySpec{
			tree.StringProperty("Text", func(a *Annotation) string { return a.Text }, func(a *Annotation, v string) { a.Text = v }).AsRequired(),
			tree.StringProperty("Author", func(a *Annotation) string { return a.Author }, func(a *Annotation, v string) { a.Author = v }).AsImmutable(),
			tree.FloatProperty("Score", func(a *Annotation) float64 { return a.Score }, func(a *Annotation, v float64) { a.Score = v }),
		},
	}
}

// Registry returns a registry holding every catalog type.
func Registry() *tree.Registry {
	return tree.NewRegistry().MustRegister(TopicSpec(), AnnotationSpec())
}
