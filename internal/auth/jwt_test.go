package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"greendrake/negotiation/internal/utils"
)

func TestGenerateAndValidateJWT(t *testing.T) {
	party := utils.NewSixID()
	token, err := GenerateJWT(party, "secret", time.Hour)
	require.NoError(t, err)

	claims, err := ValidateJWT(token, "secret")
	require.NoError(t, err)
	got, err := claims.Party()
	require.NoError(t, err)
	assert.Equal(t, party, got)
	assert.Equal(t, party.String(), claims.Subject)
}

func TestValidateJWT_Rejects(t *testing.T) {
	party := utils.NewSixID()

	token, err := GenerateJWT(party, "secret", time.Hour)
	require.NoError(t, err)
	_, err = ValidateJWT(token, "other-secret")
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := GenerateJWT(party, "secret", -time.Minute)
	require.NoError(t, err)
	_, err = ValidateJWT(expired, "secret")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = ValidateJWT("not-a-token", "secret")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestClaimsParty_BadID(t *testing.T) {
	_, err := (&Claims{PartyID: "???"}).Party()
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = (&Claims{}).Party()
	assert.ErrorIs(t, err, ErrInvalidToken)
}
