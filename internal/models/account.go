package models

import (
	"greendrake/negotiation/internal/utils"
)

// AccountProfile holds the optional public profile of an account.
type AccountProfile struct {
	Name  string `bson:"name,omitempty" json:"name,omitempty"`
	Phone string `bson:"phone,omitempty" json:"phone,omitempty"`
}

// Account is the contact record of a marketplace party, read from the
// `accounts` collection. Only the fields used to reach the party are mapped.
type Account struct {
	Base          `bson:",inline"`
	UserID        utils.SixID     `bson:"userId" json:"userId"`
	Name          string          `bson:"name,omitempty" json:"name,omitempty"`
	ContactNumber string          `bson:"contactNumber,omitempty" json:"contactNumber,omitempty"`
	Profile       *AccountProfile `bson:"profile,omitempty" json:"profile,omitempty"`
}
