package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouterCreatesActorPerSymbol(t *testing.T) {
	router := NewRouter(nil, nil, 16)
	defer router.Shutdown()

	btc := router.Actor("BTC-USDT")
	require.NotNil(t, btc)
	assert.Equal(t, "BTC-USDT", btc.Symbol())

	eth := router.Actor("ETH-USDT")
	require.NotNil(t, eth)
	assert.NotSame(t, btc, eth)

	assert.Same(t, btc, router.Actor("BTC-USDT"))
	assert.ElementsMatch(t, []string{"BTC-USDT", "ETH-USDT"}, router.Symbols())
}

func TestRouterConcurrentLookupSameActor(t *testing.T) {
	router := NewRouter(nil, nil, 16)
	defer router.Shutdown()

	const goroutines = 32
	actors := make([]*SymbolActor, goroutines)

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			actors[i] = router.Actor("BTC-USDT")
		}(i)
	}
	wg.Wait()

	// Every goroutine must observe the same single actor, even the ones
	// racing on first creation
	for i := 1; i < goroutines; i++ {
		assert.Same(t, actors[0], actors[i])
	}
	assert.Len(t, router.Symbols(), 1)
}

func TestRouterShutdown(t *testing.T) {
	router := NewRouter(nil, nil, 16)

	actor := router.Actor("BTC-USDT")
	require.NotNil(t, actor)

	router.Shutdown()

	assert.Nil(t, router.Actor("BTC-USDT"))
	assert.Nil(t, router.Actor("ETH-USDT"))
}
