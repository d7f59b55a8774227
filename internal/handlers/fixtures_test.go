package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/catalogsync/api/internal/domain"
	"github.com/catalogsync/api/internal/platform/auth"
	"github.com/catalogsync/api/internal/repositories"
	"github.com/catalogsync/api/internal/services"
)

type stubRepoError struct {
	notFound bool
	conflict bool
}

func (e stubRepoError) Error() string {
	switch {
	case e.notFound:
		return "not found"
	case e.conflict:
		return "conflict"
	default:
		return "unavailable"
	}
}

func (e stubRepoError) IsNotFound() bool    { return e.notFound }
func (e stubRepoError) IsConflict() bool    { return e.conflict }
func (e stubRepoError) IsUnavailable() bool { return !e.notFound && !e.conflict }

var errNotFound = stubRepoError{notFound: true}

type memoryProducts struct {
	mu       sync.Mutex
	products map[string]domain.Product
	writes   int
}

func newMemoryProducts(products ...domain.Product) *memoryProducts {
	repo := &memoryProducts{products: map[string]domain.Product{}}
	for _, p := range products {
		repo.products[p.ID] = p
	}
	return repo
}

func (r *memoryProducts) Create(_ context.Context, product domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.products[product.ID]; ok {
		return stubRepoError{conflict: true}
	}
	r.products[product.ID] = product
	r.writes++
	return nil
}

func (r *memoryProducts) Get(_ context.Context, id string) (domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return domain.Product{}, errNotFound
	}
	return p, nil
}

func (r *memoryProducts) Mutate(_ context.Context, id string, fn repositories.ProductMutation) (domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return domain.Product{}, errNotFound
	}
	p.Variations = append([]domain.Variation(nil), p.Variations...)
	p.Attributes = append([]domain.Attribute(nil), p.Attributes...)
	if err := fn(&p); err != nil {
		return domain.Product{}, err
	}
	p.SyncVariationFlag()
	r.products[id] = p
	r.writes++
	return p, nil
}

func (r *memoryProducts) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.products[id]; !ok {
		return errNotFound
	}
	delete(r.products, id)
	r.writes++
	return nil
}

func (r *memoryProducts) List(_ context.Context, filter repositories.ProductFilter) ([]domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Product, 0, len(r.products))
	for _, p := range r.products {
		if filter.Active != nil && p.Active != *filter.Active {
			continue
		}
		if filter.CategoryID != "" && p.CategoryID != filter.CategoryID {
			continue
		}
		if filter.MinPrice != nil && p.Price < *filter.MinPrice {
			continue
		}
		if filter.MaxPrice != nil && p.Price > *filter.MaxPrice {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *memoryProducts) ListPending(_ context.Context) ([]domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Product
	for _, p := range r.products {
		if p.ApprovalStatus == domain.ApprovalStatusPending {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memoryProducts) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.products)
}

func (r *memoryProducts) writeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writes
}

type memoryHistory struct {
	mu      sync.Mutex
	entries []domain.ApprovalHistoryEntry
}

func (h *memoryHistory) Append(_ context.Context, entry domain.ApprovalHistoryEntry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, entry)
	return nil
}

func (h *memoryHistory) ListByProduct(_ context.Context, productID string) ([]domain.ApprovalHistoryEntry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []domain.ApprovalHistoryEntry
	for i := len(h.entries) - 1; i >= 0; i-- {
		if h.entries[i].ProductID == productID {
			out = append(out, h.entries[i])
		}
	}
	return out, nil
}

type memoryListings struct {
	mu       sync.Mutex
	listings map[string]domain.MarketplaceListing
}

func newMemoryListings() *memoryListings {
	return &memoryListings{listings: map[string]domain.MarketplaceListing{}}
}

func (m *memoryListings) Create(_ context.Context, listing domain.MarketplaceListing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.listings {
		if existing.ProductID == listing.ProductID && existing.Marketplace == listing.Marketplace {
			return stubRepoError{conflict: true}
		}
	}
	m.listings[listing.ID] = listing
	return nil
}

func (m *memoryListings) Get(_ context.Context, id string) (domain.MarketplaceListing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.listings[id]
	if !ok {
		return domain.MarketplaceListing{}, errNotFound
	}
	return l, nil
}

func (m *memoryListings) Update(_ context.Context, listing domain.MarketplaceListing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.listings[listing.ID]; !ok {
		return errNotFound
	}
	m.listings[listing.ID] = listing
	return nil
}

func (m *memoryListings) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.listings[id]; !ok {
		return errNotFound
	}
	delete(m.listings, id)
	return nil
}

func (m *memoryListings) List(_ context.Context, filter repositories.ListingFilter) ([]domain.MarketplaceListing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.MarketplaceListing
	for _, l := range m.listings {
		if filter.Marketplace != "" && l.Marketplace != filter.Marketplace {
			continue
		}
		if filter.ProductID != "" && l.ProductID != filter.ProductID {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (m *memoryListings) ListByProduct(ctx context.Context, productID string) ([]domain.MarketplaceListing, error) {
	return m.List(ctx, repositories.ListingFilter{ProductID: productID})
}

func (m *memoryListings) ListedProductIDs(_ context.Context, marketplace string) (map[string]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]struct{}{}
	for _, l := range m.listings {
		if l.Marketplace == marketplace {
			out[l.ProductID] = struct{}{}
		}
	}
	return out, nil
}

type memoryIntegrations struct {
	items []domain.OAuthIntegration
}

func (m memoryIntegrations) ListActiveExpiringBefore(_ context.Context, cutoff time.Time) ([]domain.OAuthIntegration, error) {
	var out []domain.OAuthIntegration
	for _, item := range m.items {
		if item.Active && item.ExpiresAt.Before(cutoff) {
			out = append(out, item)
		}
	}
	return out, nil
}

type stubKeys struct {
	mu   sync.Mutex
	keys map[string]domain.APIKey
	err  error
	used int
}

func (s *stubKeys) Authenticate(_ context.Context, secret string) (domain.APIKey, bool, error) {
	if s.err != nil {
		return domain.APIKey{}, false, s.err
	}
	key, ok := s.keys[secret]
	return key, ok, nil
}

func (s *stubKeys) MarkUsed(context.Context, domain.APIKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.used++
}

type recordingRequestLog struct {
	mu      sync.Mutex
	entries []domain.RequestLogEntry
}

func (r *recordingRequestLog) Log(_ context.Context, entry domain.RequestLogEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

func (r *recordingRequestLog) Close(context.Context) error { return nil }

func (r *recordingRequestLog) all() []domain.RequestLogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.RequestLogEntry(nil), r.entries...)
}

var _ auth.KeyResolver = (*stubKeys)(nil)
var _ services.RequestLogger = (*recordingRequestLog)(nil)

const (
	fullAccessKey = "key-full"
	readOnlyKey   = "key-read"
	noAccessKey   = "key-none"
	inactiveKey   = "key-inactive"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type gatewayFixture struct {
	router       http.Handler
	products     *memoryProducts
	history      *memoryHistory
	listings     *memoryListings
	keys         *stubKeys
	requestLog   *recordingRequestLog
	integrations memoryIntegrations
}

type fixtureOption func(*gatewayFixture, *[]Option)

func withExtraRouterOptions(opts ...Option) fixtureOption {
	return func(_ *gatewayFixture, out *[]Option) {
		*out = append(*out, opts...)
	}
}

func withIntegrations(items ...domain.OAuthIntegration) fixtureOption {
	return func(f *gatewayFixture, _ *[]Option) {
		f.integrations.items = append(f.integrations.items, items...)
	}
}

func withProducts(products ...domain.Product) fixtureOption {
	return func(f *gatewayFixture, _ *[]Option) {
		for _, p := range products {
			f.products.products[p.ID] = p
		}
	}
}

func newGatewayFixture(t *testing.T, opts ...fixtureOption) *gatewayFixture {
	t.Helper()
	all := domain.PermissionSet{Read: true, Write: true}
	f := &gatewayFixture{
		products:   newMemoryProducts(),
		history:    &memoryHistory{},
		listings:   newMemoryListings(),
		requestLog: &recordingRequestLog{},
		keys: &stubKeys{keys: map[string]domain.APIKey{
			fullAccessKey: {ID: "k-full", OwnerUserID: "admin-1", Active: true, Permissions: domain.PermissionMatrix{
				domain.ResourceProducts:     all,
				domain.ResourceListings:     all,
				domain.ResourceIntegrations: all,
			}},
			readOnlyKey: {ID: "k-read", OwnerUserID: "viewer-1", Active: true, Permissions: domain.PermissionMatrix{
				domain.ResourceProducts: {Read: true},
			}},
			noAccessKey: {ID: "k-none", OwnerUserID: "nobody", Active: true, Permissions: domain.PermissionMatrix{}},
			inactiveKey: {ID: "k-off", OwnerUserID: "gone", Active: false, Permissions: domain.PermissionMatrix{
				domain.ResourceProducts: all,
			}},
		}},
	}

	var routerOpts []Option
	for _, opt := range opts {
		opt(f, &routerOpts)
	}

	clock := func() time.Time { return testNow }
	seq := 0
	ids := func() string {
		seq++
		return fmt.Sprintf("id-%d", seq)
	}

	productSvc, err := services.NewProductService(services.ProductServiceDeps{Products: f.products, Clock: clock, IDGen: ids})
	if err != nil {
		t.Fatalf("NewProductService: %v", err)
	}
	approvalSvc, err := services.NewApprovalService(services.ApprovalServiceDeps{Products: f.products, History: f.history, Clock: clock, IDGen: ids})
	if err != nil {
		t.Fatalf("NewApprovalService: %v", err)
	}
	listingSvc, err := services.NewListingService(services.ListingServiceDeps{Listings: f.listings, Products: f.products, Clock: clock, IDGen: ids})
	if err != nil {
		t.Fatalf("NewListingService: %v", err)
	}
	monitor, err := services.NewTokenMonitorService(services.TokenMonitorServiceDeps{Integrations: f.integrations, Clock: clock})
	if err != nil {
		t.Fatalf("NewTokenMonitorService: %v", err)
	}

	routerOpts = append([]Option{
		WithAuthenticator(auth.NewAuthenticator(f.keys)),
		WithRequestLogger(f.requestLog, RequestLogOptions{}),
		WithProductRoutes(NewProductHandlers(productSvc, approvalSvc).Routes),
		WithListingRoutes(NewListingHandlers(listingSvc).Routes),
		WithIntegrationRoutes(NewIntegrationHandlers(monitor).Routes),
	}, routerOpts...)
	f.router = NewRouter(routerOpts...)
	return f
}

func (f *gatewayFixture) do(t *testing.T, method, path, key, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

type envelope struct {
	Success    bool            `json:"success"`
	Data       json.RawMessage `json:"data"`
	Error      string          `json:"error"`
	Pagination json.RawMessage `json:"pagination"`
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (body %q)", err, rr.Body.String())
	}
	return env
}

func decodeData[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	env := decodeEnvelope(t, rr)
	if !env.Success {
		t.Fatalf("expected success envelope, got error %q (status %d)", env.Error, rr.Code)
	}
	var out T
	if err := json.Unmarshal(env.Data, &out); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	return out
}

func registerPanicRoute(path string) Option {
	return WithMiddlewares(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == path {
				panic(errors.New("boom"))
			}
			next.ServeHTTP(w, r)
		})
	})
}
