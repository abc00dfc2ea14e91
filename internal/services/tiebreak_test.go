package services

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCoinSide(t *testing.T) {
	side, ok := ParseCoinSide(" HEAD ")
	require.True(t, ok)
	assert.Equal(t, Head, side)

	side, ok = ParseCoinSide("Tail")
	require.True(t, ok)
	assert.Equal(t, Tail, side)

	_, ok = ParseCoinSide("heads")
	assert.False(t, ok)
	_, ok = ParseCoinSide("")
	assert.False(t, ok)

	assert.Equal(t, Tail, Head.Other())
	assert.Equal(t, Head, Tail.Other())
}

func TestCryptoResolver_Distribution(t *testing.T) {
	const trials = 20000
	resolver := NewCoinResolver()

	var mu sync.Mutex
	counts := map[CoinSide]int{}
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := map[CoinSide]int{}
			for i := 0; i < trials/4; i++ {
				local[resolver.Draw()]++
			}
			mu.Lock()
			for k, v := range local {
				counts[k] += v
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, counts, 2)
	assert.Equal(t, trials, counts[Head]+counts[Tail])
	// Standard deviation is ~71 for 20000 fair draws; 600 is more than 8 sigma.
	assert.InDelta(t, trials/2, counts[Head], 600)
}

func TestFixedResolver(t *testing.T) {
	assert.Equal(t, Tail, FixedResolver{Side: Tail}.Draw())
}
