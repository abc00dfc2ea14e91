package handlers_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"greendrake/negotiation/internal/models"
	"greendrake/negotiation/internal/services"
	"greendrake/negotiation/internal/utils"
)

// --- Mocks ---

// MockNegotiationService
type MockNegotiationService struct {
	mock.Mock
}

func (m *MockNegotiationService) CreateNegotiation(ctx context.Context, in services.CreateNegotiationInput) (*models.Negotiation, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Negotiation), args.Error(1)
}

func (m *MockNegotiationService) SubmitAction(ctx context.Context, in services.ActionInput) (*services.OfferResult, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.OfferResult), args.Error(1)
}

func (m *MockNegotiationService) FindNegotiation(ctx context.Context, id, party utils.SixID) (*models.Negotiation, error) {
	args := m.Called(ctx, id, party)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Negotiation), args.Error(1)
}

func (m *MockNegotiationService) GetActiveNegotiation(ctx context.Context, buyer, productID, variantID utils.SixID) (*services.ActiveNegotiation, error) {
	args := m.Called(ctx, buyer, productID, variantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.ActiveNegotiation), args.Error(1)
}

func (m *MockNegotiationService) ListNegotiations(ctx context.Context, party utils.SixID, filter services.NegotiationFilter, first *int, after string) (*services.NegotiationPage, error) {
	args := m.Called(ctx, party, filter, first, after)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.NegotiationPage), args.Error(1)
}

// MockNotificationService
type MockNotificationService struct {
	mock.Mock
}

func (m *MockNotificationService) Notify(ctx context.Context, from, to utils.SixID, message, kind, url string) error {
	args := m.Called(ctx, from, to, message, kind, url)
	return args.Error(0)
}

func (m *MockNotificationService) ListForUser(ctx context.Context, userID utils.SixID, limit int) ([]models.Notification, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Notification), args.Error(1)
}

func (m *MockNotificationService) MarkRead(ctx context.Context, userID, notificationID utils.SixID) error {
	args := m.Called(ctx, userID, notificationID)
	return args.Error(0)
}
