package messaging

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"greendrake/negotiation/internal/models"
	"greendrake/negotiation/internal/utils"
)

type MockAccountFinder struct {
	mock.Mock
}

func (m *MockAccountFinder) FindAccount(ctx context.Context, partyID utils.SixID) (*models.Account, error) {
	args := m.Called(ctx, partyID)
	if acc := args.Get(0); acc != nil {
		return acc.(*models.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(ctx context.Context, phone, text string) error {
	return m.Called(ctx, phone, text).Error(0)
}

var party = utils.SixID{9, 8, 7, 6, 5, 4}

func TestGateway_ExplicitPhoneSkipsAccountLookup(t *testing.T) {
	accounts := new(MockAccountFinder)
	sender := new(MockSender)
	sender.On("Send", mock.Anything, "923001234567", "hello").Return(nil)

	g := NewGateway(accounts, sender, "92", zerolog.Nop())
	require.NoError(t, g.SendMessage(context.Background(), party, "hello", "0300 1234567"))

	sender.AssertExpectations(t)
	accounts.AssertNotCalled(t, "FindAccount", mock.Anything, mock.Anything)
}

func TestGateway_ContactNumberBeforeProfile(t *testing.T) {
	accounts := new(MockAccountFinder)
	accounts.On("FindAccount", mock.Anything, party).Return(&models.Account{
		ContactNumber: " 03111111111 ",
		Profile:       &models.AccountProfile{Phone: "03222222222"},
	}, nil)
	sender := new(MockSender)
	sender.On("Send", mock.Anything, "923111111111", "hi").Return(nil)

	g := NewGateway(accounts, sender, "92", zerolog.Nop())
	require.NoError(t, g.SendMessage(context.Background(), party, "hi", ""))
	sender.AssertExpectations(t)
}

func TestGateway_FallsBackToProfilePhone(t *testing.T) {
	accounts := new(MockAccountFinder)
	accounts.On("FindAccount", mock.Anything, party).Return(&models.Account{
		ContactNumber: "   ",
		Profile:       &models.AccountProfile{Phone: "+92 322 2222222"},
	}, nil)
	sender := new(MockSender)
	sender.On("Send", mock.Anything, "923222222222", "hi").Return(nil)

	g := NewGateway(accounts, sender, "92", zerolog.Nop())
	require.NoError(t, g.SendMessage(context.Background(), party, "hi", ""))
	sender.AssertExpectations(t)
}

func TestGateway_NoPhoneNoSend(t *testing.T) {
	accounts := new(MockAccountFinder)
	accounts.On("FindAccount", mock.Anything, party).Return(nil, errors.New("not found"))
	sender := new(MockSender)

	g := NewGateway(accounts, sender, "92", zerolog.Nop())
	require.NoError(t, g.SendMessage(context.Background(), party, "hi", ""))

	_, err := g.ResolvePhone(context.Background(), party, "")
	assert.ErrorIs(t, err, ErrNoPhone)
	sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}

func TestGateway_SenderFailureReturned(t *testing.T) {
	sender := new(MockSender)
	sender.On("Send", mock.Anything, "923001234567", "hi").Return(errors.New("timeout"))

	g := NewGateway(nil, sender, "92", zerolog.Nop())
	err := g.SendMessage(context.Background(), party, "hi", "03001234567")
	assert.ErrorContains(t, err, "timeout")
}
