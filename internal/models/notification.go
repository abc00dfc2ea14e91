package models

import (
	"time"

	"greendrake/negotiation/internal/utils"
)

// NotificationStatus tracks whether the recipient has seen a notification.
type NotificationStatus string

const (
	NotificationUnread NotificationStatus = "unread"
	NotificationRead   NotificationStatus = "read"
)

// NotificationKindOffer is the kind used for every negotiation notification.
const NotificationKindOffer = "offer"

// Notification is an in-app notification shown to a party.
// Stored in the `notifications` collection.
type Notification struct {
	Base       `bson:",inline"`
	From       utils.SixID            `bson:"from" json:"from"`
	To         utils.SixID            `bson:"to" json:"to"`
	Message    string                 `bson:"message" json:"message"`
	Status     NotificationStatus     `bson:"status" json:"status"`
	Type       string                 `bson:"type" json:"type"`
	URL        string                 `bson:"url" json:"url"`
	HasDetails bool                   `bson:"hasDetails" json:"hasDetails"`
	Details    map[string]interface{} `bson:"details" json:"details"`
	CreatedAt  time.Time              `bson:"createdAt" json:"createdAt"`
}
