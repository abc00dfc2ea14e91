package models

import (
	"greendrake/negotiation/internal/utils"
)

// Product is the catalog entry a negotiation refers to. Only the title and
// slug are needed to render notification and message text.
type Product struct {
	ID    utils.SixID `bson:"_id" json:"id"`
	Title string      `bson:"title" json:"title"`
	Slug  string      `bson:"slug" json:"slug"`
}

// DisplayTitle falls back to the slug, then the id.
func (p *Product) DisplayTitle() string {
	if p.Title != "" {
		return p.Title
	}
	if p.Slug != "" {
		return p.Slug
	}
	return p.ID.String()
}

// DisplaySlug falls back to the id.
func (p *Product) DisplaySlug() string {
	if p.Slug != "" {
		return p.Slug
	}
	return p.ID.String()
}
