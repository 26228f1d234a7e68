package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benilbaisil/car/internal/domain/inventory"
)

func TestReserveAndDecrement_HappyPath(t *testing.T) {
	l := NewStockLedger()
	l.SetStock(1, 10)
	l.SetStock(2, 5)

	err := l.ReserveAndDecrement(context.Background(), []inventory.Line{
		{ProductID: 1, Quantity: 3},
		{ProductID: 2, Quantity: 5},
	})
	require.NoError(t, err)

	stock1, _ := l.CurrentStock(context.Background(), 1)
	stock2, _ := l.CurrentStock(context.Background(), 2)
	assert.Equal(t, 7, stock1)
	assert.Equal(t, 0, stock2)
}

func TestReserveAndDecrement_AllOrNothing(t *testing.T) {
	l := NewStockLedger()
	l.SetStock(1, 10)
	l.SetStock(2, 1)

	err := l.ReserveAndDecrement(context.Background(), []inventory.Line{
		{ProductID: 1, Quantity: 3},
		{ProductID: 2, Quantity: 2},
	})

	var insufficient *inventory.InsufficientStockError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, int64(2), insufficient.ProductID)
	assert.Equal(t, 2, insufficient.Requested)
	assert.Equal(t, 1, insufficient.Available)

	// The passing line must not have been decremented.
	stock1, _ := l.CurrentStock(context.Background(), 1)
	stock2, _ := l.CurrentStock(context.Background(), 2)
	assert.Equal(t, 10, stock1)
	assert.Equal(t, 1, stock2)
}

func TestReserveAndDecrement_UnknownProduct(t *testing.T) {
	l := NewStockLedger()
	l.SetStock(1, 10)

	err := l.ReserveAndDecrement(context.Background(), []inventory.Line{
		{ProductID: 1, Quantity: 1},
		{ProductID: 99, Quantity: 1},
	})

	var notFound *inventory.ProductNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, int64(99), notFound.ProductID)

	stock1, _ := l.CurrentStock(context.Background(), 1)
	assert.Equal(t, 10, stock1)
}

// Two checkouts race for the last unit; exactly one wins and stock never
// goes negative.
func TestReserveAndDecrement_Contention(t *testing.T) {
	l := NewStockLedger()
	l.SetStock(1, 1)

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := range results {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = l.ReserveAndDecrement(context.Background(), []inventory.Line{
				{ProductID: 1, Quantity: 1},
			})
		}()
	}
	wg.Wait()

	var wins, losses int
	for _, err := range results {
		if err == nil {
			wins++
			continue
		}
		var insufficient *inventory.InsufficientStockError
		require.True(t, errors.As(err, &insufficient))
		losses++
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, losses)

	stock, _ := l.CurrentStock(context.Background(), 1)
	assert.Equal(t, 0, stock)
}

func TestReserveAndDecrement_ManyConcurrentDecrements(t *testing.T) {
	l := NewStockLedger()
	l.SetStock(1, 50)

	var wg sync.WaitGroup
	errs := make([]error, 100)
	for i := range errs {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = l.ReserveAndDecrement(context.Background(), []inventory.Line{
				{ProductID: 1, Quantity: 1},
			})
		}()
	}
	wg.Wait()

	var wins int
	for _, err := range errs {
		if err == nil {
			wins++
		}
	}
	assert.Equal(t, 50, wins)

	stock, _ := l.CurrentStock(context.Background(), 1)
	assert.Equal(t, 0, stock)
}

func TestRestore(t *testing.T) {
	l := NewStockLedger()
	l.SetStock(1, 2)

	require.NoError(t, l.Restore(context.Background(), 1, 3))

	stock, _ := l.CurrentStock(context.Background(), 1)
	assert.Equal(t, 5, stock)
}

func TestCurrentStock_UnknownProductIsZero(t *testing.T) {
	l := NewStockLedger()

	stock, err := l.CurrentStock(context.Background(), 404)
	require.NoError(t, err)
	assert.Equal(t, 0, stock)
}

func TestStatistics(t *testing.T) {
	l := NewStockLedger()
	l.SetStock(1, 0)
	l.SetStock(2, 3)
	l.SetStock(3, 5)
	l.SetStock(4, 20)

	stats, err := l.Statistics(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, stats.TotalProducts)
	assert.Equal(t, 28, stats.TotalStock)
	assert.Equal(t, 1, stats.OutOfStock)
	assert.Equal(t, 2, stats.LowStock)
	assert.Equal(t, 1, stats.InStock)
}
