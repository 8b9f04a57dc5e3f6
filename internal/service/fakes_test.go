package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"zapstock/internal/domain"
	"zapstock/internal/repository"

	"github.com/google/uuid"
)

// memStore is an in-memory stand-in for the products and stock_transactions tables. Each
// transaction stages its writes and applies them on commit; FindByIDForUpdate takes a per-row
// lock held until the transaction ends, like SELECT ... FOR UPDATE.
type memStore struct {
	mu        sync.Mutex
	products  map[uuid.UUID]*domain.Product
	movements []*domain.Movement
	rowLocks  map[uuid.UUID]chan struct{}
	clock     time.Time

	// lockWait bounds how long a transaction waits for a row lock. Zero waits forever.
	lockWait time.Duration
	// failMovementCreate, when set, is returned by the next ledger insert.
	failMovementCreate error
	// failCommit, when set, is returned instead of committing.
	failCommit error
	// afterLock runs inside a transaction right after it locks a row.
	afterLock func()
}

func newMemStore() *memStore {
	return &memStore{
		products: make(map[uuid.UUID]*domain.Product),
		rowLocks: make(map[uuid.UUID]chan struct{}),
		clock:    time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC),
	}
}

// addProduct seeds a product whose stock is backed by an opening movement.
func (s *memStore) addProduct(name string, stock, minStock int) *domain.Product {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := &domain.Product{
		ID:               uuid.New(),
		Name:             name,
		CurrentStock:     stock,
		MinStockQuantity: minStock,
	}
	s.products[p.ID] = p
	if stock > 0 {
		s.movements = append(s.movements, &domain.Movement{
			ID:        uuid.New(),
			ProductID: p.ID,
			Type:      domain.MovementIn,
			Quantity:  stock,
			CreatedAt: s.tick(),
		})
	}
	return p
}

func (s *memStore) tick() time.Time {
	s.clock = s.clock.Add(time.Millisecond)
	return s.clock
}

func (s *memStore) stock(id uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[id].CurrentStock
}

func (s *memStore) movementCount(id uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.movements {
		if m.ProductID == id {
			n++
		}
	}
	return n
}

func (s *memStore) ledgerBalance(id uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, m := range s.movements {
		if m.ProductID == id {
			total += m.Type.SignedDelta(m.Quantity)
		}
	}
	return total
}

func (s *memStore) rowLock(id uuid.UUID) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.rowLocks[id]
	if !ok {
		ch = make(chan struct{}, 1)
		s.rowLocks[id] = ch
	}
	return ch
}

// RunInTx implements repository.TxRunner.
func (s *memStore) RunInTx(ctx context.Context, fn func(repos repository.TxRepositories) error) error {
	tx := &memTx{
		store:    s,
		held:     make(map[uuid.UUID]chan struct{}),
		deltas:   make(map[uuid.UUID]int),
		products: make(map[uuid.UUID]*domain.Product),
	}
	defer tx.release()

	if err := fn(repository.TxRepositories{
		Products:  &memTxProducts{tx: tx},
		Movements: &memTxMovements{tx: tx},
	}); err != nil {
		return err
	}

	if s.failCommit != nil {
		return fmt.Errorf("failed to commit transaction: %w", s.failCommit)
	}
	tx.commit()
	return nil
}

type memTx struct {
	store     *memStore
	held      map[uuid.UUID]chan struct{}
	deltas    map[uuid.UUID]int
	products  map[uuid.UUID]*domain.Product
	movements []*domain.Movement
}

func (tx *memTx) lock(ctx context.Context, id uuid.UUID) error {
	if _, ok := tx.held[id]; ok {
		return nil
	}
	ch := tx.store.rowLock(id)

	var timeout <-chan time.Time
	if tx.store.lockWait > 0 {
		timer := time.NewTimer(tx.store.lockWait)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case ch <- struct{}{}:
		tx.held[id] = ch
		if tx.store.afterLock != nil {
			tx.store.afterLock()
		}
		return nil
	case <-timeout:
		return fmt.Errorf("%w: canceling statement due to lock timeout", domain.ErrLockTimeout)
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", domain.ErrLockTimeout, ctx.Err())
	}
}

func (tx *memTx) release() {
	for id, ch := range tx.held {
		<-ch
		delete(tx.held, id)
	}
}

func (tx *memTx) commit() {
	s := tx.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range tx.products {
		s.products[id] = p
	}
	for id, delta := range tx.deltas {
		s.products[id].CurrentStock += delta
	}
	for _, m := range tx.movements {
		m.CreatedAt = s.tick()
		s.movements = append(s.movements, m)
	}
}

// view returns the product as this transaction sees it.
func (tx *memTx) view(id uuid.UUID) (*domain.Product, bool) {
	if p, ok := tx.products[id]; ok {
		cp := *p
		cp.CurrentStock += tx.deltas[id]
		return &cp, true
	}
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	p, ok := tx.store.products[id]
	if !ok {
		return nil, false
	}
	cp := *p
	cp.CurrentStock += tx.deltas[id]
	return &cp, true
}

type memTxProducts struct {
	repository.ProductRepository
	tx *memTx
}

func (r *memTxProducts) Create(ctx context.Context, product *domain.Product) error {
	cp := *product
	r.tx.products[product.ID] = &cp
	return nil
}

func (r *memTxProducts) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	if _, ok := r.tx.view(id); !ok {
		return nil, domain.ErrProductNotFound
	}
	if err := r.tx.lock(ctx, id); err != nil {
		return nil, err
	}
	p, ok := r.tx.view(id)
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return p, nil
}

func (r *memTxProducts) ApplyStockDelta(ctx context.Context, id uuid.UUID, delta int) (int, error) {
	if err := r.tx.lock(ctx, id); err != nil {
		return 0, err
	}
	p, ok := r.tx.view(id)
	if !ok {
		return 0, domain.ErrProductNotFound
	}
	if p.CurrentStock+delta < 0 {
		return 0, domain.ErrInsufficientStock
	}
	r.tx.deltas[id] += delta
	return p.CurrentStock + delta, nil
}

type memTxMovements struct {
	repository.MovementRepository
	tx *memTx
}

func (r *memTxMovements) Create(ctx context.Context, movement *domain.Movement) error {
	if err := r.tx.store.failMovementCreate; err != nil {
		return err
	}
	if _, ok := r.tx.view(movement.ProductID); !ok {
		return domain.ErrProductNotFound
	}
	if movement.ID == uuid.Nil {
		movement.ID = uuid.New()
	}
	r.tx.movements = append(r.tx.movements, movement)
	return nil
}

// memProducts reads and writes committed products outside any transaction.
type memProducts struct {
	repository.ProductRepository
	store *memStore
}

func (r *memProducts) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	p, ok := r.store.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memProducts) Update(ctx context.Context, product *domain.Product) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	existing, ok := r.store.products[product.ID]
	if !ok {
		return domain.ErrProductNotFound
	}
	product.CurrentStock = existing.CurrentStock
	product.ImageURL = existing.ImageURL
	cp := *product
	r.store.products[product.ID] = &cp
	return nil
}

func (r *memProducts) UpdateImage(ctx context.Context, id uuid.UUID, imageURL string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	p, ok := r.store.products[id]
	if !ok {
		return domain.ErrProductNotFound
	}
	p.ImageURL = imageURL
	return nil
}

func (r *memProducts) Delete(ctx context.Context, id uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.products[id]; !ok {
		return domain.ErrProductNotFound
	}
	delete(r.store.products, id)
	kept := r.store.movements[:0]
	for _, m := range r.store.movements {
		if m.ProductID != id {
			kept = append(kept, m)
		}
	}
	r.store.movements = kept
	return nil
}

func (r *memProducts) List(ctx context.Context, filter domain.ProductFilter) ([]*domain.ProductDetail, int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	out := []*domain.ProductDetail{}
	for _, p := range r.store.products {
		if filter.SupplierID != nil && (p.SupplierID == nil || *p.SupplierID != *filter.SupplierID) {
			continue
		}
		if filter.LowStock && !p.LowStock() {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(filter.Search)) {
			continue
		}
		out = append(out, &domain.ProductDetail{Product: *p})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, len(out), nil
}

func (r *memProducts) ListLowStock(ctx context.Context, limit int) ([]*domain.ProductDetail, error) {
	all, _, _ := r.List(ctx, domain.ProductFilter{LowStock: true})
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// memMovements reads the committed ledger.
type memMovements struct {
	repository.MovementRepository
	store     *memStore
	lastLimit int
}

func (r *memMovements) newestFirst(productID *uuid.UUID) []*domain.Movement {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	out := []*domain.Movement{}
	for i := len(r.store.movements) - 1; i >= 0; i-- {
		m := r.store.movements[i]
		if productID == nil || m.ProductID == *productID {
			out = append(out, m)
		}
	}
	return out
}

func (r *memMovements) ListForProduct(ctx context.Context, productID uuid.UUID, limit int) ([]*domain.Movement, error) {
	r.lastLimit = limit
	out := r.newestFirst(&productID)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memMovements) ListWithProducts(ctx context.Context, limit int) ([]*domain.MovementWithProduct, error) {
	r.lastLimit = limit
	out := []*domain.MovementWithProduct{}
	for _, m := range r.newestFirst(nil) {
		if limit > 0 && len(out) == limit {
			break
		}
		r.store.mu.Lock()
		name := r.store.products[m.ProductID].Name
		r.store.mu.Unlock()
		out = append(out, &domain.MovementWithProduct{Movement: *m, ProductName: name})
	}
	return out, nil
}

func (r *memMovements) LedgerBalance(ctx context.Context, productID uuid.UUID) (int, error) {
	return r.store.ledgerBalance(productID), nil
}

// memImages records image writes without touching the filesystem.
type memImages struct {
	saved   []string
	removed []string
	err     error
}

func (m *memImages) SaveBase64(name, encoded string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	url := fmt.Sprintf("/uploads/%s-%d.jpg", name, len(m.saved))
	m.saved = append(m.saved, url)
	return url, nil
}

func (m *memImages) Remove(url string) error {
	m.removed = append(m.removed, url)
	return nil
}

var errDiskFull = errors.New("could not extend file: No space left on device")
