package services

import (
	"crypto/rand"
	"strings"
)

// CoinSide is one outcome of the tie-break game.
type CoinSide string

const (
	Head CoinSide = "head"
	Tail CoinSide = "tail"
)

// ParseCoinSide accepts "head" or "tail" in any case.
func ParseCoinSide(s string) (CoinSide, bool) {
	switch CoinSide(strings.ToLower(strings.TrimSpace(s))) {
	case Head:
		return Head, true
	case Tail:
		return Tail, true
	default:
		return "", false
	}
}

// Other returns the opposite side.
func (c CoinSide) Other() CoinSide {
	if c == Head {
		return Tail
	}
	return Head
}

// CoinResolver draws the tie-break outcome. Implementations must be safe for
// concurrent use.
type CoinResolver interface {
	Draw() CoinSide
}

type cryptoResolver struct{}

// NewCoinResolver returns the production resolver backed by crypto/rand.
func NewCoinResolver() CoinResolver {
	return cryptoResolver{}
}

func (cryptoResolver) Draw() CoinSide {
	var b [1]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand does not fail on supported platforms.
		panic("crypto/rand unavailable: " + err.Error())
	}
	if b[0]&1 == 0 {
		return Head
	}
	return Tail
}

// FixedResolver always draws Side.
type FixedResolver struct {
	Side CoinSide
}

func (f FixedResolver) Draw() CoinSide {
	return f.Side
}
