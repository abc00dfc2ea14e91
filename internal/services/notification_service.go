package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"greendrake/negotiation/internal/db"
	"greendrake/negotiation/internal/models"
	"greendrake/negotiation/internal/utils"
)

const (
	defaultNotificationLimit = 50
	maxNotificationLimit     = 200
)

// INotificationService manages in-app notifications.
type INotificationService interface {
	Notify(ctx context.Context, from, to utils.SixID, message, kind, url string) error
	ListForUser(ctx context.Context, userID utils.SixID, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, userID, notificationID utils.SixID) error
}

type notificationService struct {
	db     *mongo.Database
	logger zerolog.Logger
	now    func() time.Time
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(database *mongo.Database, logger zerolog.Logger) INotificationService {
	return &notificationService{
		db:     database,
		logger: logger.With().Str("service", "notification").Logger(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Notify stores an unread notification for to. Failures are logged and
// returned as ErrDownstream; callers treat them as non-fatal.
func (s *notificationService) Notify(ctx context.Context, from, to utils.SixID, message, kind, url string) error {
	n := &models.Notification{
		From:       from,
		To:         to,
		Message:    message,
		Status:     models.NotificationUnread,
		Type:       kind,
		URL:        url,
		HasDetails: false,
		Details:    nil,
		CreatedAt:  s.now(),
	}
	if err := db.InsertOne(ctx, s.db.Collection(db.NotificationsCollection), n); err != nil {
		s.logger.Error().Err(err).
			Str("from", from.String()).
			Str("to", to.String()).
			Msg("failed to create notification")
		return fmt.Errorf("%w: failed to create notification: %v", ErrDownstream, err)
	}
	return nil
}

// ListForUser returns the newest notifications addressed to userID.
func (s *notificationService) ListForUser(ctx context.Context, userID utils.SixID, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = defaultNotificationLimit
	}
	if limit > maxNotificationLimit {
		return nil, fmt.Errorf("%w: limit must be at most %d", ErrValidation, maxNotificationLimit)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := s.db.Collection(db.NotificationsCollection).Find(ctx, bson.M{"to": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list notifications: %v", ErrUnknown, err)
	}
	defer cursor.Close(ctx)

	notifications := []models.Notification{}
	if err := cursor.All(ctx, &notifications); err != nil {
		return nil, fmt.Errorf("%w: failed to decode notifications: %v", ErrUnknown, err)
	}
	return notifications, nil
}

// MarkRead flags a notification owned by userID as read.
func (s *notificationService) MarkRead(ctx context.Context, userID, notificationID utils.SixID) error {
	res, err := s.db.Collection(db.NotificationsCollection).UpdateOne(ctx,
		bson.M{"_id": notificationID, "to": userID},
		bson.M{"$set": bson.M{"status": models.NotificationRead}},
	)
	if err != nil {
		return fmt.Errorf("%w: failed to mark notification %s read: %v", ErrUnknown, notificationID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: notification %s", ErrNotFound, notificationID)
	}
	return nil
}
