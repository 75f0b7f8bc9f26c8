package store

import "github.com/bolpress/newsharvest/internal/pipeline"

// fieldGetters maps canonical field names to column values. Optional text
// fields persist as NULL when empty so downstream queries can distinguish
// "absent" from "empty".
var fieldGetters = map[string]func(pipeline.Article) any{
	"url":               func(a pipeline.Article) any { return a.URL },
	"headline":          func(a pipeline.Article) any { return nullable(a.Headline) },
	"subheadline":       func(a pipeline.Article) any { return nullable(a.Subheadline) },
	"author":            func(a pipeline.Article) any { return nullable(a.Author) },
	"content":           func(a pipeline.Article) any { return nullable(a.Content) },
	"suggested_related": func(a pipeline.Article) any { return nullable(a.Related) },
	"published_at":      func(a pipeline.Article) any { return a.PublishedAt },
	"section":           func(a pipeline.Article) any { return nullable(a.Section) },
	"source":            func(a pipeline.Article) any { return nullable(a.Source) },
	"city":              func(a pipeline.Article) any { return nullable(a.City) },
	"agency":            func(a pipeline.Article) any { return nullable(a.Agency) },
	"snapshot_date":     func(a pipeline.Article) any { return a.SnapshotDate },
}

// DefaultColumns is the mapping used when a source does not override it.
func DefaultColumns() []string {
	return []string{
		"url",
		"headline",
		"subheadline",
		"author",
		"content",
		"suggested_related",
		"published_at",
		"section",
		"source",
		"snapshot_date",
	}
}

func fieldValue(a pipeline.Article, col string) any {
	if get, ok := fieldGetters[col]; ok {
		return get(a)
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
