package models

import (
	"greendrake/negotiation/internal/utils"
)

// CartItem is one pending purchase line.
type CartItem struct {
	ID        utils.SixID `bson:"_id" json:"id"`
	ProductID utils.SixID `bson:"productId" json:"productId"`
	VariantID utils.SixID `bson:"variantId" json:"variantId"`
	Quantity  int         `bson:"quantity" json:"quantity"`
	Price     Money       `bson:"price" json:"price"`
	Subtotal  Money       `bson:"subtotal" json:"subtotal"`
}

// Cart holds a party's pending purchase. Stored in the `carts` collection,
// one per account.
type Cart struct {
	Base      `bson:",inline"`
	AccountID utils.SixID `bson:"accountId" json:"accountId"`
	Items     []CartItem  `bson:"items" json:"items"`
}
