package catalog_test

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"storefront-service/catalog"
	"storefront-service/models"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// ---- fakes ----

type fakeSource struct {
	products []models.Product
	err      error
	calls    int
}

func (f *fakeSource) FetchProducts(_ context.Context) ([]models.Product, error) {
	f.calls++
	return f.products, f.err
}

type memoryCache struct {
	products    []models.Product
	present     bool
	getErr      error
	setErr      error
	sets        int
	invalidated int
}

func (m *memoryCache) GetProducts(_ context.Context) ([]models.Product, bool, error) {
	return m.products, m.present, m.getErr
}

func (m *memoryCache) SetProducts(_ context.Context, products []models.Product) error {
	m.sets++
	if m.setErr != nil {
		return m.setErr
	}
	m.products, m.present = products, true
	return nil
}

func (m *memoryCache) Invalidate(_ context.Context) error {
	m.invalidated++
	m.products, m.present = nil, false
	return nil
}

func newTestRedisClient() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: "localhost:0",
		Dialer: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return nil, errors.New("redis disabled in tests")
		},
		MaxRetries: -1,
	})
}

var chair = []models.Product{{ID: "p1", Name: "Chair", Price: 120}}

// ---- tests ----

func TestListProducts_CacheMissFillsCache(t *testing.T) {
	source := &fakeSource{products: chair}
	cache := &memoryCache{}
	svc := catalog.NewService(source, cache, nil, zap.NewNop())

	got, err := svc.ListProducts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, chair, got)
	assert.Equal(t, 1, cache.sets)

	got, err = svc.ListProducts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, chair, got)
	assert.Equal(t, 1, source.calls)
}

func TestListProducts_CacheErrorsDegradeToSource(t *testing.T) {
	source := &fakeSource{products: chair}
	cache := &memoryCache{getErr: errors.New("redis down"), setErr: errors.New("redis down")}
	svc := catalog.NewService(source, cache, nil, zap.NewNop())

	got, err := svc.ListProducts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, chair, got)
	assert.Equal(t, 1, source.calls)
}

func TestListProducts_SourceError(t *testing.T) {
	source := &fakeSource{err: errors.New("cms down")}
	cache := &memoryCache{}
	svc := catalog.NewService(source, cache, nil, zap.NewNop())

	_, err := svc.ListProducts(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 0, cache.sets)
}

func TestListProducts_NoCache(t *testing.T) {
	source := &fakeSource{products: chair}
	svc := catalog.NewService(source, nil, nil, zap.NewNop())

	_, err := svc.ListProducts(context.Background())
	require.NoError(t, err)
	_, err = svc.ListProducts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, source.calls)
	assert.NoError(t, svc.Invalidate(context.Background()))
}

func TestInvalidate_ForcesRefetch(t *testing.T) {
	source := &fakeSource{products: chair}
	cache := &memoryCache{}
	svc := catalog.NewService(source, cache, nil, zap.NewNop())

	_, _ = svc.ListProducts(context.Background())
	require.NoError(t, svc.Invalidate(context.Background()))
	_, _ = svc.ListProducts(context.Background())

	assert.Equal(t, 1, cache.invalidated)
	assert.Equal(t, 2, source.calls)
}

func TestRedisCache_UnreachableServerDegrades(t *testing.T) {
	client := newTestRedisClient()
	defer client.Close()
	cache := catalog.NewRedisCache(client, time.Minute)

	_, ok, err := cache.GetProducts(context.Background())
	assert.False(t, ok)
	assert.Error(t, err)
	assert.Error(t, cache.SetProducts(context.Background(), chair))
	assert.Error(t, cache.Invalidate(context.Background()))

	source := &fakeSource{products: chair}
	svc := catalog.NewService(source, cache, nil, zap.NewNop())
	got, err := svc.ListProducts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, chair, got)
}
