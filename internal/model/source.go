package model

import "time"

// SourceDocument is the immutable input of a pipeline run
type SourceDocument struct {
	Text        string     `json:"text" yaml:"-"`
	OriginID    string     `json:"origin_id" yaml:"origin_id"`
	PublishedAt *time.Time `json:"published_at,omitempty" yaml:"published_at,omitempty"`
}
