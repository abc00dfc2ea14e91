package services

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"greendrake/negotiation/internal/models"
	"greendrake/negotiation/internal/utils"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// NegotiationFilter narrows a listing. Zero fields are ignored.
type NegotiationFilter struct {
	SellerID      *utils.SixID
	BuyerID       *utils.SixID
	ParticipantID *utils.SixID
	ProductID     *utils.SixID
	VariantID     *utils.SixID
	Status        models.NegotiationStatus
}

// Matches applies the filter to a single record.
func (f NegotiationFilter) Matches(n *models.Negotiation) bool {
	if f.SellerID != nil && n.SoldBy != *f.SellerID {
		return false
	}
	if f.BuyerID != nil && n.CreatedBy != *f.BuyerID {
		return false
	}
	if f.ParticipantID != nil && !n.IsParticipant(*f.ParticipantID) {
		return false
	}
	if f.ProductID != nil && n.ProductID != *f.ProductID {
		return false
	}
	if f.VariantID != nil && n.VariantID != *f.VariantID {
		return false
	}
	if f.Status != "" && n.Status != f.Status {
		return false
	}
	return true
}

// PageInfo describes a page of a forward-only cursor listing.
type PageInfo struct {
	HasNextPage     bool    `json:"hasNextPage"`
	HasPreviousPage bool    `json:"hasPreviousPage"`
	StartCursor     *string `json:"startCursor"`
	EndCursor       *string `json:"endCursor"`
}

// NegotiationPage is one page of negotiations, newest update first.
type NegotiationPage struct {
	Items      []models.Negotiation `json:"items"`
	PageInfo   PageInfo             `json:"pageInfo"`
	TotalCount int64                `json:"totalCount"`
}

// PageCursor is the decoded position after which the next page starts.
type PageCursor struct {
	UpdatedAt time.Time
	ID        utils.SixID
}

// Before reports whether n sorts after the cursor position in
// updatedAt desc, _id desc order.
func (c *PageCursor) Before(n *models.Negotiation) bool {
	if c == nil {
		return true
	}
	if !n.UpdatedAt.Equal(c.UpdatedAt) {
		return n.UpdatedAt.Before(c.UpdatedAt)
	}
	return bytes.Compare(n.ID[:], c.ID[:]) < 0
}

// EncodeCursor returns the opaque cursor for n.
func EncodeCursor(n *models.Negotiation) string {
	raw := strconv.FormatInt(n.UpdatedAt.UnixNano(), 10) + "_" + n.ID.String()
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a cursor produced by EncodeCursor. An empty string
// means the first page.
func DecodeCursor(s string) (*PageCursor, error) {
	if s == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid cursor", ErrValidation)
	}
	ts, id, ok := strings.Cut(string(raw), "_")
	if !ok {
		return nil, fmt.Errorf("%w: invalid cursor", ErrValidation)
	}
	nanos, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid cursor", ErrValidation)
	}
	sixID, err := utils.ParseSixID(id)
	if err != nil || sixID.IsZero() {
		return nil, fmt.Errorf("%w: invalid cursor", ErrValidation)
	}
	return &PageCursor{UpdatedAt: time.Unix(0, nanos).UTC(), ID: sixID}, nil
}

// normalizePageSize applies the default and the 1..MaxPageSize bound.
func normalizePageSize(first *int) (int, error) {
	if first == nil {
		return DefaultPageSize, nil
	}
	if *first < 1 || *first > MaxPageSize {
		return 0, fmt.Errorf("%w: first must be between 1 and %d", ErrValidation, MaxPageSize)
	}
	return *first, nil
}

// buildPage trims a first+1 result set to a page.
func buildPage(items []models.Negotiation, first int, total int64, after *PageCursor) *NegotiationPage {
	hasNext := len(items) > first
	if hasNext {
		items = items[:first]
	}
	page := &NegotiationPage{
		Items:      items,
		TotalCount: total,
		PageInfo: PageInfo{
			HasNextPage:     hasNext,
			HasPreviousPage: after != nil,
		},
	}
	if page.Items == nil {
		page.Items = []models.Negotiation{}
	}
	if len(items) > 0 {
		start := EncodeCursor(&items[0])
		end := EncodeCursor(&items[len(items)-1])
		page.PageInfo.StartCursor = &start
		page.PageInfo.EndCursor = &end
	}
	return page
}
