package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XuThi/xuthi-frontend-sub000/internal/cache"
	"github.com/XuThi/xuthi-frontend-sub000/internal/catalog"
	"github.com/XuThi/xuthi-frontend-sub000/internal/domain"
	"github.com/XuThi/xuthi-frontend-sub000/internal/pricing"
	"github.com/XuThi/xuthi-frontend-sub000/internal/repository"
)

type mockRepository struct {
	m     sync.RWMutex
	carts map[string]*domain.StoredCart
	err   error
}

func newMockRepository() *mockRepository {
	return &mockRepository{carts: make(map[string]*domain.StoredCart)}
}

func (m *mockRepository) GetCart(_ context.Context, cartID string) (*domain.StoredCart, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	cart, ok := m.carts[cartID]
	if !ok {
		return nil, repository.ErrCartNotFound
	}
	return cloneStored(cart), nil
}

func (m *mockRepository) GetCartBySession(_ context.Context, sessionID string) (*domain.StoredCart, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, cart := range m.carts {
		if cart.SessionID == sessionID && sessionID != "" {
			return cloneStored(cart), nil
		}
	}
	return nil, repository.ErrCartNotFound
}

func (m *mockRepository) CreateCart(_ context.Context, cart *domain.StoredCart) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	m.carts[cart.ID] = cloneStored(cart)
	return nil
}

func (m *mockRepository) ApplyDelta(_ context.Context, cartID string, line domain.StoredLine, delta int) (*domain.StoredCart, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	cart, ok := m.carts[cartID]
	if !ok {
		return nil, repository.ErrCartNotFound
	}
	if delta != 0 {
		found := false
		for i := range cart.Items {
			if cart.Items[i].VariantID == line.VariantID {
				found = true
				cart.Items[i].Quantity += delta
				if cart.Items[i].Quantity <= 0 {
					cart.Items = append(cart.Items[:i], cart.Items[i+1:]...)
				}
				break
			}
		}
		if !found && delta > 0 {
			line.Quantity = delta
			cart.Items = append(cart.Items, line)
		}
	}
	return cloneStored(cart), nil
}

func (m *mockRepository) DeleteCart(_ context.Context, cartID string) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.carts[cartID]; !ok {
		return repository.ErrCartNotFound
	}
	delete(m.carts, cartID)
	return nil
}

func (m *mockRepository) CreateIndexes(_ context.Context) error {
	return nil
}

func cloneStored(cart *domain.StoredCart) *domain.StoredCart {
	out := *cart
	out.Items = make([]domain.StoredLine, len(cart.Items))
	copy(out.Items, cart.Items)
	return &out
}

type mockCache struct {
	m     sync.RWMutex
	carts map[string]*domain.StoredCart
	err   error
}

func newMockCache() *mockCache {
	return &mockCache{carts: make(map[string]*domain.StoredCart)}
}

func (m *mockCache) Get(_ context.Context, cartID string) (*domain.StoredCart, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	if cart, ok := m.carts[cartID]; ok {
		return cloneStored(cart), nil
	}
	return nil, cache.ErrCacheMiss
}

func (m *mockCache) Set(_ context.Context, cartID string, cart *domain.StoredCart) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.carts[cartID] = cloneStored(cart)
	return m.err
}

func (m *mockCache) Delete(_ context.Context, cartID string) error {
	m.m.Lock()
	defer m.m.Unlock()
	delete(m.carts, cartID)
	return m.err
}

func (m *mockCache) has(cartID string) bool {
	m.m.RLock()
	defer m.m.RUnlock()
	_, ok := m.carts[cartID]
	return ok
}

type mockCatalog struct {
	m         sync.Mutex
	variants  map[string]catalog.Variant
	campaigns []domain.SaleCampaignItem
	err       error
}

func (m *mockCatalog) GetVariant(_ context.Context, variantID string) (*catalog.Variant, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if v, ok := m.variants[variantID]; ok {
		return &v, nil
	}
	return nil, catalog.ErrVariantNotFound
}

func (m *mockCatalog) GetVariants(_ context.Context, variantIDs []string) ([]catalog.Variant, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []catalog.Variant
	for _, id := range variantIDs {
		if v, ok := m.variants[id]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *mockCatalog) ListActiveCampaignItems(_ context.Context, _ []int64, _ []string, at time.Time) ([]domain.SaleCampaignItem, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []domain.SaleCampaignItem
	for _, item := range m.campaigns {
		if item.ActiveAt(at) {
			out = append(out, item)
		}
	}
	return out, nil
}

func newSut(cat *mockCatalog) (*CartService, *mockRepository, *mockCache) {
	repo := newMockRepository()
	mc := newMockCache()
	sut := NewCartService(repo, mc, cat, pricing.NewEngine(cat))
	return sut, repo, mc
}

func defaultCatalog() *mockCatalog {
	return &mockCatalog{
		variants: map[string]catalog.Variant{
			"V1": {VariantID: "V1", ProductID: 10, ProductName: "Áo thun", BasePrice: 100_000},
			"V2": {VariantID: "V2", ProductID: 20, ProductName: "Quần jean", BasePrice: 250_000},
		},
	}
}

func TestApplyDelta_CreatesCartAndLine(t *testing.T) {
	sut, _, _ := newSut(defaultCatalog())

	cart, err := sut.ApplyDelta(context.Background(), "", "", "V1", 2)
	require.NoError(t, err)
	require.NotEmpty(t, cart.ID)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, "V1", cart.Items[0].VariantID)
	assert.Equal(t, 2, cart.Items[0].Quantity)
	assert.Equal(t, int64(100_000), cart.Items[0].UnitPrice)
	assert.Equal(t, int64(200_000), cart.Subtotal)
	assert.Equal(t, 2, cart.TotalItems)
}

func TestApplyDelta_NegativeDeltaRemovesLine(t *testing.T) {
	sut, _, _ := newSut(defaultCatalog())

	cart, err := sut.ApplyDelta(context.Background(), "", "", "V1", 2)
	require.NoError(t, err)

	cart, err = sut.ApplyDelta(context.Background(), cart.ID, "", "V1", -2)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.Zero(t, cart.Subtotal)
}

func TestApplyDelta_SequenceWithPrefixClampedAtRemoval(t *testing.T) {
	sut, _, _ := newSut(defaultCatalog())

	cart, err := sut.ApplyDelta(context.Background(), "", "", "V1", 2)
	require.NoError(t, err)
	cartID := cart.ID

	// Prefix sum goes to -3: line is removed, never stored negative.
	cart, err = sut.ApplyDelta(context.Background(), cartID, "", "V1", -5)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)

	cart, err = sut.ApplyDelta(context.Background(), cartID, "", "V1", 3)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 3, cart.Items[0].Quantity)
}

func TestApplyDelta_ZeroDeltaIsReadOnly(t *testing.T) {
	sut, _, _ := newSut(defaultCatalog())

	cart, err := sut.ApplyDelta(context.Background(), "", "", "V1", 2)
	require.NoError(t, err)

	same, err := sut.ApplyDelta(context.Background(), cart.ID, "", "V1", 0)
	require.NoError(t, err)
	assert.Equal(t, cart.Items, same.Items)
	assert.Equal(t, cart.Subtotal, same.Subtotal)
}

func TestApplyDelta_StaleCartIDCreatesFreshCart(t *testing.T) {
	sut, _, _ := newSut(defaultCatalog())

	cart, err := sut.ApplyDelta(context.Background(), "gone-with-the-cookie", "", "V1", 1)
	require.NoError(t, err)
	assert.NotEqual(t, "gone-with-the-cookie", cart.ID)
	require.Len(t, cart.Items, 1)
}

func TestApplyDelta_ResolvesCartBySession(t *testing.T) {
	sut, _, _ := newSut(defaultCatalog())

	first, err := sut.ApplyDelta(context.Background(), "", "sess-1", "V1", 1)
	require.NoError(t, err)

	second, err := sut.ApplyDelta(context.Background(), "", "sess-1", "V1", 1)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	require.Len(t, second.Items, 1)
	assert.Equal(t, 2, second.Items[0].Quantity)
}

func TestApplyDelta_UnknownVariant(t *testing.T) {
	sut, _, _ := newSut(defaultCatalog())

	_, err := sut.ApplyDelta(context.Background(), "", "", "VX", 1)
	require.ErrorIs(t, err, catalog.ErrVariantNotFound)
}

func TestApplyDelta_CatalogDownAbortsMutation(t *testing.T) {
	cat := defaultCatalog()
	cat.err = fmt.Errorf("connection refused")
	sut, repo, _ := newSut(cat)

	_, err := sut.ApplyDelta(context.Background(), "", "", "V1", 1)
	require.ErrorIs(t, err, pricing.ErrPriceUnavailable)
	assert.Empty(t, repo.carts, "nothing may be committed with an unresolved price")
}

func TestApplyDelta_InvalidatesCache(t *testing.T) {
	sut, _, mc := newSut(defaultCatalog())

	cart, err := sut.ApplyDelta(context.Background(), "", "", "V1", 1)
	require.NoError(t, err)

	// Prime the cache, then mutate.
	_, err = sut.GetCart(context.Background(), cart.ID)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return mc.has(cart.ID)
	}, 100*time.Millisecond, 10*time.Millisecond, "cart was not set in cache")

	_, err = sut.ApplyDelta(context.Background(), cart.ID, "", "V1", 1)
	require.NoError(t, err)
	assert.False(t, mc.has(cart.ID), "cache was not invalidated")
}

func TestSetQuantity_TranslatesAbsoluteIntentToDelta(t *testing.T) {
	sut, _, _ := newSut(defaultCatalog())

	// Empty cart, target 3: delta computed as 3 - 0.
	cart, err := sut.SetQuantity(context.Background(), "", "", "V2", 3)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 3, cart.Items[0].Quantity)
	assert.Equal(t, int64(750_000), cart.Subtotal)

	// Lowering to 1 is a -2 delta.
	cart, err = sut.SetQuantity(context.Background(), cart.ID, "", "V2", 1)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 1, cart.Items[0].Quantity)
}

func TestSetQuantity_ZeroTargetRemovesLine(t *testing.T) {
	sut, _, _ := newSut(defaultCatalog())

	cart, err := sut.SetQuantity(context.Background(), "", "", "V1", 2)
	require.NoError(t, err)

	cart, err = sut.SetQuantity(context.Background(), cart.ID, "", "V1", 0)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)

	// Negative targets are clamped to removal as well.
	cart, err = sut.SetQuantity(context.Background(), cart.ID, "", "V1", -4)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
}

func TestGetCart_PricesAreReResolvedOnEveryRead(t *testing.T) {
	cat := defaultCatalog()
	sut, _, _ := newSut(cat)

	start := time.Now().Add(-time.Hour)

	cart, err := sut.ApplyDelta(context.Background(), "", "", "V1", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(200_000), cart.Subtotal)

	// A campaign opens after the line was added; the next read must see it.
	cat.m.Lock()
	cat.campaigns = []domain.SaleCampaignItem{{
		ID:            1,
		ProductID:     10,
		SalePrice:     80_000,
		CampaignStart: start,
		CampaignEnd:   time.Now().Add(time.Hour),
	}}
	cat.m.Unlock()

	cart, err = sut.GetCart(context.Background(), cart.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(80_000), cart.Items[0].UnitPrice)
	assert.Equal(t, int64(160_000), cart.Subtotal)
}

func TestGetCart_NotFound(t *testing.T) {
	sut, _, _ := newSut(defaultCatalog())

	_, err := sut.GetCart(context.Background(), "nope")
	require.ErrorIs(t, err, repository.ErrCartNotFound)
}

func TestGetCart_SubtotalMatchesIndependentRecompute(t *testing.T) {
	sut, _, _ := newSut(defaultCatalog())

	cart, err := sut.ApplyDelta(context.Background(), "", "", "V1", 3)
	require.NoError(t, err)
	_, err = sut.ApplyDelta(context.Background(), cart.ID, "", "V2", 2)
	require.NoError(t, err)

	got, err := sut.GetCart(context.Background(), cart.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Subtotal(got.Items), got.Subtotal)
	assert.Equal(t, domain.TotalItems(got.Items), got.TotalItems)
}

func TestClearCart(t *testing.T) {
	sut, repo, _ := newSut(defaultCatalog())

	cart, err := sut.ApplyDelta(context.Background(), "", "", "V1", 1)
	require.NoError(t, err)

	require.NoError(t, sut.ClearCart(context.Background(), cart.ID))
	assert.Empty(t, repo.carts)

	// Clearing an already-gone cart is not an error.
	require.NoError(t, sut.ClearCart(context.Background(), cart.ID))
}

// noopCache always misses, so concurrent reads hit the repository directly.
type noopCache struct{}

func (noopCache) Get(context.Context, string) (*domain.StoredCart, error) {
	return nil, cache.ErrCacheMiss
}
func (noopCache) Set(context.Context, string, *domain.StoredCart) error { return nil }
func (noopCache) Delete(context.Context, string) error                  { return nil }

func TestConcurrentDeltas_AllTakeEffect(t *testing.T) {
	cat := defaultCatalog()
	repo := newMockRepository()
	sut := NewCartService(repo, noopCache{}, cat, pricing.NewEngine(cat))

	cart, err := sut.ApplyDelta(context.Background(), "", "", "V1", 1)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := sut.ApplyDelta(context.Background(), cart.ID, "", "V1", 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := sut.GetCart(context.Background(), cart.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, 21, got.Items[0].Quantity, "concurrent deltas must compose additively")
}
