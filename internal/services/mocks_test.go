package services

import (
	"context"
	"sort"
	"sync"

	"github.com/stretchr/testify/mock"

	"greendrake/negotiation/internal/events"
	"greendrake/negotiation/internal/models"
	"greendrake/negotiation/internal/utils"
)

// memoryStore is a NegotiationStore with the same guard semantics as the
// Mongo one.
type memoryStore struct {
	mu   sync.Mutex
	docs map[utils.SixID]models.Negotiation
	// failUpdate forces ApplyUpdate to report a lost race.
	failUpdate bool
}

func newMemoryStore(seed ...models.Negotiation) *memoryStore {
	s := &memoryStore{docs: make(map[utils.SixID]models.Negotiation)}
	for _, n := range seed {
		s.docs[n.ID] = n
	}
	return s
}

func cloneNegotiation(n models.Negotiation) *models.Negotiation {
	n.Offers = append([]models.Offer(nil), n.Offers...)
	return &n
}

func (s *memoryStore) FindByID(ctx context.Context, id utils.SixID) (*models.Negotiation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneNegotiation(n), nil
}

func (s *memoryStore) Insert(ctx context.Context, n *models.Negotiation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n.GenID()
	s.docs[n.ID] = *cloneNegotiation(*n)
	return nil
}

func (s *memoryStore) ApplyUpdate(ctx context.Context, guard NegotiationGuard, next *models.Negotiation, offer models.Offer) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.docs[guard.ID]
	if s.failUpdate || !ok || stored.Status != guard.Status || len(stored.Offers) != guard.OfferCount {
		return false, nil
	}
	updated := *next
	updated.Offers = append(append([]models.Offer(nil), stored.Offers...), offer)
	s.docs[guard.ID] = updated
	return true, nil
}

func (s *memoryStore) FindLatest(ctx context.Context, buyer, productID, variantID utils.SixID) (*models.Negotiation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *models.Negotiation
	for _, n := range s.docs {
		if n.CreatedBy != buyer || n.ProductID != productID || n.VariantID != variantID {
			continue
		}
		if latest == nil || n.CreatedAt.After(latest.CreatedAt) {
			latest = cloneNegotiation(n)
		}
	}
	return latest, nil
}

func (s *memoryStore) List(ctx context.Context, filter NegotiationFilter, after *PageCursor, limit int) ([]models.Negotiation, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []models.Negotiation
	for _, n := range s.docs {
		n := n
		if filter.Matches(&n) {
			matched = append(matched, n)
		}
	}
	total := int64(len(matched))
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].UpdatedAt.Equal(matched[j].UpdatedAt) {
			return matched[i].UpdatedAt.After(matched[j].UpdatedAt)
		}
		return (&PageCursor{UpdatedAt: matched[i].UpdatedAt, ID: matched[i].ID}).Before(&matched[j])
	})
	var page []models.Negotiation
	for i := range matched {
		if after.Before(&matched[i]) {
			page = append(page, matched[i])
		}
		if len(page) == limit {
			break
		}
	}
	return page, total, nil
}

func (s *memoryStore) get(id utils.SixID) models.Negotiation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *cloneNegotiation(s.docs[id])
}

type MockCartService struct {
	mock.Mock
}

func (m *MockCartService) SyncCartPrice(ctx context.Context, partyID, variantID utils.SixID, amount float64) error {
	return m.Called(ctx, partyID, variantID, amount).Error(0)
}

func (m *MockCartService) FindByAccount(ctx context.Context, partyID utils.SixID) (*models.Cart, error) {
	args := m.Called(ctx, partyID)
	if c := args.Get(0); c != nil {
		return c.(*models.Cart), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockNotificationService struct {
	mock.Mock
}

func (m *MockNotificationService) Notify(ctx context.Context, from, to utils.SixID, message, kind, url string) error {
	return m.Called(ctx, from, to, message, kind, url).Error(0)
}

func (m *MockNotificationService) ListForUser(ctx context.Context, userID utils.SixID, limit int) ([]models.Notification, error) {
	args := m.Called(ctx, userID, limit)
	if n := args.Get(0); n != nil {
		return n.([]models.Notification), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockNotificationService) MarkRead(ctx context.Context, userID, notificationID utils.SixID) error {
	return m.Called(ctx, userID, notificationID).Error(0)
}

type MockMessageGateway struct {
	mock.Mock
}

func (m *MockMessageGateway) SendMessage(ctx context.Context, partyID utils.SixID, text, explicitPhone string) error {
	return m.Called(ctx, partyID, text, explicitPhone).Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishGameStart(ctx context.Context, evt events.GameStartEvent) error {
	return m.Called(ctx, evt).Error(0)
}

func (m *MockPublisher) PublishOffer(ctx context.Context, evt events.OfferEvent) error {
	return m.Called(ctx, evt).Error(0)
}

type MockDirectoryService struct {
	mock.Mock
}

func (m *MockDirectoryService) FindAccount(ctx context.Context, partyID utils.SixID) (*models.Account, error) {
	args := m.Called(ctx, partyID)
	if a := args.Get(0); a != nil {
		return a.(*models.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDirectoryService) FindProduct(ctx context.Context, id utils.SixID) (*models.Product, error) {
	args := m.Called(ctx, id)
	if p := args.Get(0); p != nil {
		return p.(*models.Product), args.Error(1)
	}
	return nil, args.Error(1)
}
