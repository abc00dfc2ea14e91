package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"greendrake/negotiation/internal/models"
	"greendrake/negotiation/internal/utils"
)

// ErrNoPhone is returned when no phone number could be resolved for a party.
var ErrNoPhone = errors.New("no phone number for party")

// AccountFinder loads the account of a party.
type AccountFinder interface {
	FindAccount(ctx context.Context, partyID utils.SixID) (*models.Account, error)
}

// PhoneSource is what a PhoneResolver may draw from. Account is nil when the
// party has no account record.
type PhoneSource struct {
	Explicit string
	Account  *models.Account
}

// PhoneResolver returns a raw phone number or "".
type PhoneResolver func(src PhoneSource) string

func ExplicitPhone(src PhoneSource) string {
	return strings.TrimSpace(src.Explicit)
}

func AccountContactNumber(src PhoneSource) string {
	if src.Account == nil {
		return ""
	}
	return strings.TrimSpace(src.Account.ContactNumber)
}

func ProfilePhone(src PhoneSource) string {
	if src.Account == nil || src.Account.Profile == nil {
		return ""
	}
	return strings.TrimSpace(src.Account.Profile.Phone)
}

// DefaultPhoneResolvers is the lookup order used by NewGateway.
var DefaultPhoneResolvers = []PhoneResolver{ExplicitPhone, AccountContactNumber, ProfilePhone}

// Gateway resolves a party's phone number and hands the message to a Sender.
type Gateway struct {
	accounts    AccountFinder
	sender      Sender
	resolvers   []PhoneResolver
	countryCode string
	logger      zerolog.Logger
}

// NewGateway creates a Gateway using DefaultPhoneResolvers.
func NewGateway(accounts AccountFinder, sender Sender, countryCode string, logger zerolog.Logger) *Gateway {
	return &Gateway{
		accounts:    accounts,
		sender:      sender,
		resolvers:   DefaultPhoneResolvers,
		countryCode: countryCode,
		logger:      logger.With().Str("service", "messaging").Logger(),
	}
}

// ResolvePhone returns the normalized phone for partyID, or ErrNoPhone.
func (g *Gateway) ResolvePhone(ctx context.Context, partyID utils.SixID, explicitPhone string) (string, error) {
	src := PhoneSource{Explicit: explicitPhone}
	if strings.TrimSpace(explicitPhone) == "" && g.accounts != nil {
		account, err := g.accounts.FindAccount(ctx, partyID)
		if err != nil {
			g.logger.Info().Err(err).Str("party_id", partyID.String()).Msg("no account for party")
		}
		src.Account = account
	}
	for _, resolve := range g.resolvers {
		if raw := resolve(src); raw != "" {
			if phone := FormatPhoneNumber(raw, g.countryCode); phone != "" {
				return phone, nil
			}
		}
	}
	return "", ErrNoPhone
}

// SendMessage delivers text to partyID. A party without a phone number is
// logged and skipped. Delivery errors are logged and returned.
func (g *Gateway) SendMessage(ctx context.Context, partyID utils.SixID, text, explicitPhone string) error {
	phone, err := g.ResolvePhone(ctx, partyID, explicitPhone)
	if err != nil {
		g.logger.Info().Str("party_id", partyID.String()).Msg("no phone number available, message not sent")
		return nil
	}
	if err := g.sender.Send(ctx, phone, text); err != nil {
		g.logger.Error().Err(err).Str("phone", phone).Msg("failed to send message")
		return fmt.Errorf("send message to %s: %w", phone, err)
	}
	return nil
}
