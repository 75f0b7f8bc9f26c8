package extract

import "github.com/bolpress/newsharvest/internal/pipeline"

// FieldRule locates one logical field in a document.
type FieldRule struct {
	// Selector is a CSS selector; comma-lists are allowed, the first match
	// in document order wins unless Last is set.
	Selector string `mapstructure:"selector"`
	// Attr reads an attribute instead of the element text.
	Attr string `mapstructure:"attr"`
	// Last takes the last match (e.g. an author code in the final paragraph).
	Last bool `mapstructure:"last"`
	// TrimChars is a cutset stripped from both ends after cleaning.
	TrimChars string `mapstructure:"trim_chars"`
	// JoinAll concatenates the text of every match, space separated
	// (article bodies made of many paragraphs).
	JoinAll bool `mapstructure:"join_all"`
}

// Profile is the per-source selector profile: a mapping from logical fields
// to document locators. Loaded once, never mutated during a run.
type Profile struct {
	Fields map[pipeline.Field]FieldRule
	// BodyMarker is the trailing-boilerplate heading splitting article body
	// from the related-links block ("Más noticias"). Empty disables the split.
	BodyMarker string
}
