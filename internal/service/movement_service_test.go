package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"zapstock/internal/domain"
	"zapstock/internal/repository"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestMovementService(store *memStore) (MovementService, *memMovements) {
	movements := &memMovements{store: store}
	svc := NewMovementService(store, &memProducts{store: store}, movements, 50, zap.NewNop())
	return svc, movements
}

func out(id uuid.UUID, q int) domain.MovementRequest {
	return domain.MovementRequest{ProductID: id, Type: domain.MovementOut, Quantity: q}
}

func in(id uuid.UUID, q int) domain.MovementRequest {
	return domain.MovementRequest{ProductID: id, Type: domain.MovementIn, Quantity: q}
}

func TestRecordMovement_Scenarios(t *testing.T) {
	ctx := context.Background()

	t.Run("withdrawal above threshold", func(t *testing.T) {
		store := newMemStore()
		p := store.addProduct("beans", 10, 5)
		svc, _ := newTestMovementService(store)

		result, err := svc.RecordMovement(ctx, out(p.ID, 3))
		require.NoError(t, err)
		assert.Equal(t, 7, result.NewCurrentStock)
		assert.False(t, result.LowStockWarning)
		assert.Equal(t, domain.MovementOut, result.Movement.Type)
		assert.Equal(t, 3, result.Movement.Quantity)
		assert.NotEqual(t, uuid.Nil, result.Movement.ID)
		assert.Equal(t, 7, store.stock(p.ID))
		assert.Equal(t, 2, store.movementCount(p.ID))
	})

	t.Run("withdrawal crossing threshold warns", func(t *testing.T) {
		store := newMemStore()
		p := store.addProduct("beans", 7, 5)
		svc, _ := newTestMovementService(store)

		result, err := svc.RecordMovement(ctx, out(p.ID, 3))
		require.NoError(t, err)
		assert.Equal(t, 4, result.NewCurrentStock)
		assert.True(t, result.LowStockWarning)
	})

	t.Run("insufficient stock is rejected without side effects", func(t *testing.T) {
		store := newMemStore()
		p := store.addProduct("beans", 2, 5)
		svc, _ := newTestMovementService(store)

		result, err := svc.RecordMovement(ctx, out(p.ID, 5))
		assert.ErrorIs(t, err, domain.ErrInsufficientStock)
		assert.Nil(t, result)
		assert.Equal(t, 2, store.stock(p.ID))
		assert.Equal(t, 1, store.movementCount(p.ID))
	})

	t.Run("unknown product", func(t *testing.T) {
		store := newMemStore()
		svc, _ := newTestMovementService(store)

		_, err := svc.RecordMovement(ctx, in(uuid.New(), 1))
		assert.ErrorIs(t, err, domain.ErrProductNotFound)
	})

	t.Run("receipt from empty", func(t *testing.T) {
		store := newMemStore()
		p := store.addProduct("beans", 0, 5)
		svc, _ := newTestMovementService(store)

		price := decimal.RequireFromString("12.50")
		req := in(p.ID, 10)
		req.UnitPrice = &price
		req.ReferenceNumber = "PO-1"
		req.Notes = "weekly delivery"

		result, err := svc.RecordMovement(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, 10, result.NewCurrentStock)
		assert.False(t, result.LowStockWarning)
		assert.True(t, price.Equal(*result.Movement.UnitPrice))
		assert.Equal(t, "PO-1", result.Movement.ReferenceNumber)
		assert.Equal(t, "weekly delivery", result.Movement.Notes)
	})

	t.Run("withdrawing the whole stock is allowed", func(t *testing.T) {
		store := newMemStore()
		p := store.addProduct("beans", 4, 0)
		svc, _ := newTestMovementService(store)

		result, err := svc.RecordMovement(ctx, out(p.ID, 4))
		require.NoError(t, err)
		assert.Equal(t, 0, result.NewCurrentStock)
		assert.False(t, result.LowStockWarning)
	})
}

func TestRecordMovement_RejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	p := store.addProduct("beans", 10, 5)
	svc, _ := newTestMovementService(store)
	negative := decimal.NewFromInt(-1)

	for name, req := range map[string]domain.MovementRequest{
		"zero quantity":      out(p.ID, 0),
		"negative quantity":  in(p.ID, -3),
		"unknown type":       {ProductID: p.ID, Type: "adjustment", Quantity: 1},
		"missing product":    in(uuid.Nil, 1),
		"negative price":     {ProductID: p.ID, Type: domain.MovementIn, Quantity: 1, UnitPrice: &negative},
		"reference too long": {ProductID: p.ID, Type: domain.MovementIn, Quantity: 1, ReferenceNumber: string(make([]byte, 101))},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.RecordMovement(ctx, req)
			assert.ErrorIs(t, err, domain.ErrValidation)
			assert.Equal(t, 10, store.stock(p.ID))
			assert.Equal(t, 1, store.movementCount(p.ID))
		})
	}
}

func TestRecordMovement_RollsBackOnPersistenceFailure(t *testing.T) {
	ctx := context.Background()

	t.Run("ledger insert fails", func(t *testing.T) {
		store := newMemStore()
		p := store.addProduct("beans", 10, 5)
		store.failMovementCreate = errDiskFull
		svc, _ := newTestMovementService(store)

		_, err := svc.RecordMovement(ctx, out(p.ID, 3))
		assert.ErrorIs(t, err, errDiskFull)
		assert.Equal(t, 10, store.stock(p.ID))
		assert.Equal(t, 1, store.movementCount(p.ID))
	})

	t.Run("commit fails", func(t *testing.T) {
		store := newMemStore()
		p := store.addProduct("beans", 10, 5)
		store.failCommit = errDiskFull
		svc, _ := newTestMovementService(store)

		_, err := svc.RecordMovement(ctx, in(p.ID, 3))
		assert.ErrorIs(t, err, errDiskFull)
		assert.Equal(t, 10, store.stock(p.ID))
		assert.Equal(t, 1, store.movementCount(p.ID))
	})
}

func TestRecordMovement_LockTimeout(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	p := store.addProduct("beans", 10, 5)
	store.lockWait = 50 * time.Millisecond
	svc, _ := newTestMovementService(store)

	locked := make(chan struct{})
	release := make(chan struct{})
	holderDone := make(chan error, 1)
	go func() {
		holderDone <- store.RunInTx(ctx, func(repos repository.TxRepositories) error {
			if _, err := repos.Products.FindByIDForUpdate(ctx, p.ID); err != nil {
				return err
			}
			close(locked)
			<-release
			return nil
		})
	}()
	<-locked

	_, err := svc.RecordMovement(ctx, out(p.ID, 1))
	assert.ErrorIs(t, err, domain.ErrLockTimeout)
	assert.Equal(t, 10, store.stock(p.ID))
	assert.Equal(t, 1, store.movementCount(p.ID))

	close(release)
	require.NoError(t, <-holderDone)

	result, err := svc.RecordMovement(ctx, out(p.ID, 1))
	require.NoError(t, err, "the product is usable again once the lock is released")
	assert.Equal(t, 9, result.NewCurrentStock)
}

// Two withdrawals that each fit the stock but not together: exactly one must win.
func TestRecordMovement_ConcurrentWithdrawalsSerialize(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	p := store.addProduct("beans", 5, 0)
	// Widen the window between the check and the commit so an unserialized
	// implementation would let both through.
	store.afterLock = func() { time.Sleep(5 * time.Millisecond) }
	svc, _ := newTestMovementService(store)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.RecordMovement(ctx, out(p.ID, 4))
		}(i)
	}
	wg.Wait()

	succeeded, rejected := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, domain.ErrInsufficientStock):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, rejected)
	assert.Equal(t, 1, store.stock(p.ID))
	assert.Equal(t, 2, store.movementCount(p.ID))
}

func TestRecordMovement_LogsLowStock(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	store := newMemStore()
	p := store.addProduct("beans", 6, 5)
	svc := NewMovementService(store, &memProducts{store: store}, &memMovements{store: store}, 50, zap.New(core))

	_, err := svc.RecordMovement(context.Background(), out(p.ID, 2))
	require.NoError(t, err)

	warnings := logs.FilterMessage("product below minimum stock").All()
	require.Len(t, warnings, 1)
	assert.Equal(t, zapcore.WarnLevel, warnings[0].Level)
	assert.Equal(t, int64(4), warnings[0].ContextMap()["current_stock"])
}

// Property: any sequence of movements keeps stock non-negative and equal to the
// ledger sum, and rejected movements leave no trace.
func TestProperty_MovementSequencesConserveStock(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("stock equals the ledger sum and never goes negative", prop.ForAll(
		func(initial, minStock int, deltas []int) bool {
			ctx := context.Background()
			store := newMemStore()
			p := store.addProduct("p", initial, minStock)
			svc, _ := newTestMovementService(store)

			expected := initial
			for _, d := range deltas {
				var req domain.MovementRequest
				if d < 0 {
					req = out(p.ID, -d)
				} else {
					req = in(p.ID, d)
				}
				result, err := svc.RecordMovement(ctx, req)

				switch {
				case d == 0:
					if !errors.Is(err, domain.ErrValidation) {
						t.Logf("FAIL: zero quantity accepted")
						return false
					}
				case expected+d < 0:
					if !errors.Is(err, domain.ErrInsufficientStock) {
						t.Logf("FAIL: overdraw of %d from %d returned %v", -d, expected, err)
						return false
					}
				default:
					if err != nil {
						t.Logf("FAIL: movement %d rejected: %v", d, err)
						return false
					}
					expected += d
					if result.NewCurrentStock != expected {
						t.Logf("FAIL: new stock %d, want %d", result.NewCurrentStock, expected)
						return false
					}
					if result.LowStockWarning != (expected < minStock) {
						t.Logf("FAIL: warning %v at stock %d min %d", result.LowStockWarning, expected, minStock)
						return false
					}
				}

				stock := store.stock(p.ID)
				if stock < 0 || stock != expected || stock != store.ledgerBalance(p.ID) {
					t.Logf("FAIL: stock %d, expected %d, ledger %d", stock, expected, store.ledgerBalance(p.ID))
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 50),
		gen.IntRange(0, 30),
		gen.SliceOf(gen.IntRange(-25, 25)),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Property: concurrent movements on one product behave like some serial order of them.
func TestProperty_ConcurrentMovementsSerialize(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	properties.Property("final stock is the initial stock plus every accepted delta", prop.ForAll(
		func(initial int, deltas []int) bool {
			ctx := context.Background()
			store := newMemStore()
			p := store.addProduct("p", initial, 0)
			svc, _ := newTestMovementService(store)

			var (
				wg       sync.WaitGroup
				mu       sync.Mutex
				accepted int
				failed   bool
			)
			for _, d := range deltas {
				wg.Add(1)
				go func(d int) {
					defer wg.Done()
					req := in(p.ID, d)
					if d < 0 {
						req = out(p.ID, -d)
					}
					_, err := svc.RecordMovement(ctx, req)
					mu.Lock()
					defer mu.Unlock()
					switch {
					case err == nil:
						accepted += d
					case errors.Is(err, domain.ErrInsufficientStock):
					default:
						failed = true
					}
				}(d)
			}
			wg.Wait()

			stock := store.stock(p.ID)
			return !failed && stock >= 0 && stock == initial+accepted && stock == store.ledgerBalance(p.ID)
		},
		gen.IntRange(0, 20),
		gen.SliceOf(gen.IntRange(1, 10).Map(func(v int) int {
			if v%2 == 0 {
				return -v
			}
			return v
		})),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestListForProduct(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	p := store.addProduct("beans", 10, 0)
	svc, movements := newTestMovementService(store)

	for i := 0; i < 3; i++ {
		_, err := svc.RecordMovement(ctx, out(p.ID, 1))
		require.NoError(t, err)
	}

	history, err := svc.ListForProduct(ctx, p.ID, 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.True(t, history[0].CreatedAt.After(history[1].CreatedAt), "newest first")

	_, err = svc.ListForProduct(ctx, p.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 50, movements.lastLimit)

	_, err = svc.ListForProduct(ctx, p.ID, 10_000)
	require.NoError(t, err)
	assert.Equal(t, MaxHistoryLimit, movements.lastLimit)

	_, err = svc.ListForProduct(ctx, uuid.New(), 10)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestListAllReturnsWholeLedgerNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	a := store.addProduct("a", 5, 0)
	b := store.addProduct("b", 5, 0)
	svc, movements := newTestMovementService(store)

	_, err := svc.RecordMovement(ctx, out(a.ID, 1))
	require.NoError(t, err)
	_, err = svc.RecordMovement(ctx, in(b.ID, 2))
	require.NoError(t, err)

	all, err := svc.ListAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, movements.lastLimit)
	require.Len(t, all, 4)
	assert.Equal(t, "b", all[0].ProductName)
	assert.Equal(t, 2, all[0].Quantity)

	recent, err := svc.ListRecent(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}
