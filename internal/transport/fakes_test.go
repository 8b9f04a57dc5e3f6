package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"zapstock/internal/domain"
	"zapstock/internal/i18n"
	"zapstock/internal/middleware"
	"zapstock/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testUserID = uuid.MustParse("9f1c4f7e-3b0a-4a7d-8d2a-1f5e3c7b9a01")

// asUser stands in for the auth middleware.
func asUser(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := &domain.Principal{UserID: testUserID, Role: role, SessionID: uuid.New()}
			next.ServeHTTP(w, r.WithContext(middleware.WithPrincipal(r.Context(), principal)))
		})
	}
}

func testCatalog() *i18n.Catalog {
	return i18n.NewCatalog("th")
}

// do sends a JSON request through h and returns the recorder.
func do(t *testing.T, h http.Handler, method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewBuffer(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func newRouter() chi.Router {
	return chi.NewRouter()
}

var testLogger = zap.NewNop()

type fakeMovementService struct {
	record         func(req domain.MovementRequest) (*domain.MovementResult, error)
	listAll        []*domain.MovementWithProduct
	listForProduct func(id uuid.UUID, limit int) ([]*domain.Movement, error)
	lastRequest    domain.MovementRequest
	lastLimit      int
}

func (f *fakeMovementService) RecordMovement(ctx context.Context, req domain.MovementRequest) (*domain.MovementResult, error) {
	f.lastRequest = req
	return f.record(req)
}

func (f *fakeMovementService) ListAll(ctx context.Context) ([]*domain.MovementWithProduct, error) {
	return f.listAll, nil
}

func (f *fakeMovementService) ListRecent(ctx context.Context, limit int) ([]*domain.MovementWithProduct, error) {
	f.lastLimit = limit
	if len(f.listAll) > limit {
		return f.listAll[:limit], nil
	}
	return f.listAll, nil
}

func (f *fakeMovementService) ListForProduct(ctx context.Context, id uuid.UUID, limit int) ([]*domain.Movement, error) {
	f.lastLimit = limit
	return f.listForProduct(id, limit)
}

type fakeProductService struct {
	products     map[uuid.UUID]*domain.Product
	createErr    error
	lastInitial  int
	lastFilter   domain.ProductFilter
	lastLowLimit int
	exportErr    error
}

func newFakeProductService() *fakeProductService {
	return &fakeProductService{products: map[uuid.UUID]*domain.Product{}}
}

func (f *fakeProductService) Create(ctx context.Context, p *domain.Product, initialStock int, createdBy *uuid.UUID) error {
	if f.createErr != nil {
		return f.createErr
	}
	p.ID = uuid.New()
	p.CurrentStock = initialStock
	f.lastInitial = initialStock
	f.products[p.ID] = p
	return nil
}

func (f *fakeProductService) Update(ctx context.Context, p *domain.Product) error {
	existing, ok := f.products[p.ID]
	if !ok {
		return domain.ErrProductNotFound
	}
	p.CurrentStock = existing.CurrentStock
	f.products[p.ID] = p
	return nil
}

func (f *fakeProductService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := f.products[id]; !ok {
		return domain.ErrProductNotFound
	}
	delete(f.products, id)
	return nil
}

func (f *fakeProductService) Get(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return p, nil
}

func (f *fakeProductService) List(ctx context.Context, filter domain.ProductFilter) ([]*domain.ProductDetail, int, error) {
	f.lastFilter = filter
	var out []*domain.ProductDetail
	for _, p := range f.products {
		out = append(out, &domain.ProductDetail{Product: *p})
	}
	return out, len(out), nil
}

func (f *fakeProductService) ListLowStock(ctx context.Context, limit int) ([]*domain.ProductDetail, error) {
	f.lastLowLimit = limit
	var out []*domain.ProductDetail
	for _, p := range f.products {
		if p.LowStock() {
			out = append(out, &domain.ProductDetail{Product: *p})
		}
	}
	return out, nil
}

func (f *fakeProductService) Reconcile(ctx context.Context, id uuid.UUID) (*domain.Reconciliation, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return &domain.Reconciliation{
		ProductID:     id.String(),
		CurrentStock:  p.CurrentStock,
		LedgerBalance: p.CurrentStock,
		Consistent:    true,
	}, nil
}

func (f *fakeProductService) SetImage(ctx context.Context, id uuid.UUID, encoded string) (*domain.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	if encoded == "not-an-image" {
		return nil, domain.Invalid("invalid image")
	}
	p.ImageURL = "/uploads/" + id.String() + ".jpg"
	return p, nil
}

func (f *fakeProductService) Export(ctx context.Context, w io.Writer) error {
	if f.exportErr != nil {
		return f.exportErr
	}
	_, err := w.Write([]byte("PK-workbook"))
	return err
}

type fakeUserService struct {
	users     map[string]*domain.User
	passwords map[string]string
	sessions  map[string]uuid.UUID
	expired   map[string]bool
	revoked   []string
}

func newFakeUserService() *fakeUserService {
	return &fakeUserService{
		users:     map[string]*domain.User{},
		passwords: map[string]string{},
		sessions:  map[string]uuid.UUID{},
		expired:   map[string]bool{},
	}
}

func (f *fakeUserService) Register(ctx context.Context, email, password, name string) (*domain.User, error) {
	if _, ok := f.users[email]; ok {
		return nil, domain.ErrAlreadyExists
	}
	user := &domain.User{ID: uuid.New(), Email: email, Name: name, Role: domain.RoleUser}
	f.users[email] = user
	f.passwords[email] = password
	return user, nil
}

func (f *fakeUserService) Login(ctx context.Context, email, password string) (string, string, *domain.User, error) {
	user, ok := f.users[email]
	if !ok || f.passwords[email] != password {
		return "", "", nil, service.ErrInvalidCredentials
	}
	token := "session-" + user.ID.String()
	f.sessions[token] = user.ID
	return "access-" + user.ID.String(), token, user, nil
}

func (f *fakeUserService) Logout(ctx context.Context, sessionToken string) error {
	f.revoked = append(f.revoked, sessionToken)
	delete(f.sessions, sessionToken)
	return nil
}

func (f *fakeUserService) Refresh(ctx context.Context, sessionToken string) (string, error) {
	if f.expired[sessionToken] {
		return "", service.ErrTokenExpired
	}
	userID, ok := f.sessions[sessionToken]
	if !ok {
		return "", service.ErrInvalidToken
	}
	return "access-" + userID.String(), nil
}

func (f *fakeUserService) ValidateToken(tokenString string) (*service.Claims, error) {
	return nil, service.ErrInvalidToken
}

func (f *fakeUserService) Authenticate(ctx context.Context, tokenString string) (*domain.Principal, error) {
	return nil, service.ErrInvalidToken
}

func (f *fakeUserService) GetUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	for _, u := range f.users {
		if u.ID == userID {
			return u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}
