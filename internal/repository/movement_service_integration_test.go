package repository_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"zapstock/internal/domain"
	"zapstock/internal/repository"
	"zapstock/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newMovementService(t *testing.T) service.MovementService {
	t.Helper()
	db := repository.SharedDB()
	return service.NewMovementService(
		repository.NewTxRunner(db, 5*time.Second),
		repository.NewProductRepository(db),
		repository.NewMovementRepository(db),
		50,
		zap.NewNop(),
	)
}

func TestRecordMovement_ConcurrentWithdrawalsSerialize(t *testing.T) {
	ctx := context.Background()
	svc := newMovementService(t)
	product := repository.SeedProduct(t, 5, 0)

	start := make(chan struct{})
	results := make([]error, 2)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, results[i] = svc.RecordMovement(ctx, domain.MovementRequest{
				ProductID: product.ID, Type: domain.MovementOut, Quantity: 4,
			})
		}(i)
	}
	close(start)
	wg.Wait()

	succeeded, refused := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, domain.ErrInsufficientStock):
			refused++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, refused)

	db := repository.SharedDB()
	stored, err := repository.NewProductRepository(db).FindByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.CurrentStock)

	history, err := repository.NewMovementRepository(db).ListForProduct(ctx, product.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 4, history[0].Quantity)

	balance, err := repository.NewMovementRepository(db).LedgerBalance(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, -4, balance)
}

func TestRecordMovement_ConcurrentMixedMovementsKeepLedgerInStep(t *testing.T) {
	ctx := context.Background()
	svc := newMovementService(t)
	product := repository.SeedProduct(t, 0, 0)

	const rounds = 10
	start := make(chan struct{})
	var wg sync.WaitGroup
	errs := make(chan error, 2*rounds)
	for i := 0; i < rounds; i++ {
		for _, kind := range []domain.MovementType{domain.MovementIn, domain.MovementOut} {
			wg.Add(1)
			go func(kind domain.MovementType) {
				defer wg.Done()
				<-start
				_, err := svc.RecordMovement(ctx, domain.MovementRequest{
					ProductID: product.ID, Type: kind, Quantity: 3,
				})
				if err != nil && !errors.Is(err, domain.ErrInsufficientStock) {
					errs <- err
				}
			}(kind)
		}
	}
	close(start)
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("unexpected error: %v", err)
	}

	db := repository.SharedDB()
	stored, err := repository.NewProductRepository(db).FindByID(ctx, product.ID)
	require.NoError(t, err)
	balance, err := repository.NewMovementRepository(db).LedgerBalance(ctx, product.ID)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, stored.CurrentStock, 0)
	assert.Equal(t, stored.CurrentStock, balance, "counter matches ledger")
}
