package models

import (
	"greendrake/negotiation/internal/utils"
)

type Base struct {
	ID utils.SixID `bson:"_id,omitempty" json:"id,omitempty"`
}

func (m *Base) GenID() {
	m.ID = utils.NewSixID()
}

func NewBase() Base {
	return Base{
		ID: utils.NewSixID(),
	}
}
