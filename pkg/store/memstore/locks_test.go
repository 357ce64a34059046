package memstore

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"ccspot/pkg/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestRowLocksAreDropped(t *testing.T) {
	l := newRowLocks()
	ctx := context.Background()

	require.Nil(t, l.lock(ctx, "b:1:USDT"))
	require.Equal(t, 1, l.size())

	done := make(chan error)
	go func() {
		err := l.lock(ctx, "b:1:USDT")
		if err == nil {
			l.unlock("b:1:USDT")
		}
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	l.unlock("b:1:USDT")
	require.Nil(t, <-done)
	require.Zero(t, l.size())
}

func TestCanceledWaiterDropsItsRef(t *testing.T) {
	l := newRowLocks()
	require.Nil(t, l.lock(context.Background(), "o:7"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, l.lock(ctx, "o:7"), context.DeadlineExceeded)
	require.Equal(t, 1, l.size())

	l.unlock("o:7")
	require.Zero(t, l.size())
}

func TestTransactionsLeaveNoLocks(t *testing.T) {
	s := New()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(owner int64) {
			defer wg.Done()
			err := s.Transaction(ctx, func(tx store.Tx) error {
				b, err := tx.LockBalance(owner%5, fmt.Sprintf("A%d", owner%3))
				if err != nil {
					return err
				}
				b.Available = b.Available.Add(decimal.NewFromInt(1))
				return tx.SaveBalance(b)
			})
			require.Nil(t, err)
		}(int64(i))
	}
	wg.Wait()
	require.Zero(t, s.locks.size())
}
