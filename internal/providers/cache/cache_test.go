package cache

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/GriffinCanCode/SitePreview/backend/internal/infrastructure/monitoring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errStoreDown = errors.New("store down")

// brokenStore fails every call.
type brokenStore struct{}

func (brokenStore) Get(context.Context, string) ([]byte, error)              { return nil, errStoreDown }
func (brokenStore) Set(context.Context, string, []byte, time.Duration) error { return errStoreDown }
func (brokenStore) Delete(context.Context, string) error                     { return errStoreDown }
func (brokenStore) Ping(context.Context) error                               { return errStoreDown }
func (brokenStore) Close() error                                             { return nil }

func newTestCache(t *testing.T, opts Options) (*Cache, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore(0)
	c, err := New(store, opts, nil, monitoring.NewMetrics())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, store
}

func TestCacheRoundTrip(t *testing.T) {
	c, _ := newTestCache(t, DefaultOptions())
	ctx := context.Background()

	key := c.DocumentKey("https://example.com", "client")
	c.Set(ctx, KindDocument, key, []byte("<html>hi</html>"))

	got, ok := c.Get(ctx, KindDocument, key)
	require.True(t, ok)
	assert.Equal(t, []byte("<html>hi</html>"), got)
}

func TestCacheCompressesLargeValues(t *testing.T) {
	c, store := newTestCache(t, DefaultOptions())
	ctx := context.Background()

	value := []byte(strings.Repeat("<p>repetitive markup</p>", 500))
	c.Set(ctx, KindDocument, "k", value)

	raw, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, frameZstd, raw[0])
	assert.Less(t, len(raw), len(value))

	got, ok := c.Get(ctx, KindDocument, "k")
	require.True(t, ok)
	assert.True(t, bytes.Equal(value, got))
}

func TestCacheSkipsCompressionForScreenshots(t *testing.T) {
	c, store := newTestCache(t, DefaultOptions())
	ctx := context.Background()

	value := bytes.Repeat([]byte{0xff, 0xd8}, 1000)
	c.Set(ctx, KindScreenshot, "shot", value)

	raw, err := store.Get(ctx, "shot")
	require.NoError(t, err)
	assert.Equal(t, frameRaw, raw[0])
}

func TestCacheKeys(t *testing.T) {
	c, _ := newTestCache(t, DefaultOptions())

	a := c.DocumentKey("https://example.com", "c1")
	assert.True(t, strings.HasPrefix(a, "proxy:"))
	assert.Equal(t, a, c.DocumentKey("https://example.com", "c1"))
	assert.NotEqual(t, a, c.DocumentKey("https://example.com", "c2"))
	assert.NotEqual(t, a, c.DocumentKey("https://example.com/", "c1"))

	s := c.ScreenshotKey("https://example.com", "c1", "mobile")
	assert.True(t, strings.HasPrefix(s, "screenshot:"))
	assert.NotEqual(t, s, c.ScreenshotKey("https://example.com", "c1", "desktop"))

	assert.True(t, strings.HasPrefix(c.ContentKey("https://example.com"), "content:"))
	assert.Equal(t, "share:tok", c.ShareKey("tok"))
}

func TestCacheTTLPerKind(t *testing.T) {
	opts := DefaultOptions()
	c, _ := newTestCache(t, opts)

	assert.Equal(t, opts.DocumentTTL, c.TTL(KindDocument))
	assert.Equal(t, opts.ScreenshotTTL, c.TTL(KindScreenshot))
	assert.Equal(t, opts.ContentTTL, c.TTL(KindContent))
	assert.Equal(t, opts.ShareTTL, c.TTL(KindShare))
}

func TestCacheEntryExpires(t *testing.T) {
	c, _ := newTestCache(t, DefaultOptions())
	ctx := context.Background()

	c.SetTTL(ctx, KindDocument, "short", []byte("v"), 20*time.Millisecond)
	_, ok := c.Get(ctx, KindDocument, "short")
	require.True(t, ok)

	time.Sleep(40 * time.Millisecond)
	_, ok = c.Get(ctx, KindDocument, "short")
	assert.False(t, ok)
}

func TestFetchHitSkipsLoader(t *testing.T) {
	c, _ := newTestCache(t, DefaultOptions())
	ctx := context.Background()

	var calls int32
	load := func(context.Context) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		return []byte("fresh"), nil
	}

	v, hit, err := c.Fetch(ctx, KindDocument, "k", false, load)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "fresh", string(v))

	v, hit, err = c.Fetch(ctx, KindDocument, "k", false, load)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "fresh", string(v))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFetchBypassOverwrites(t *testing.T) {
	c, _ := newTestCache(t, DefaultOptions())
	ctx := context.Background()

	c.Set(ctx, KindDocument, "k", []byte("stale"))

	v, hit, err := c.Fetch(ctx, KindDocument, "k", true, func(context.Context) ([]byte, error) {
		return []byte("new"), nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "new", string(v))

	got, ok := c.Get(ctx, KindDocument, "k")
	require.True(t, ok)
	assert.Equal(t, "new", string(got))
}

func TestFetchLoaderErrorNotCached(t *testing.T) {
	c, _ := newTestCache(t, DefaultOptions())
	ctx := context.Background()
	boom := errors.New("boom")

	_, _, err := c.Fetch(ctx, KindDocument, "k", false, func(context.Context) ([]byte, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)

	_, ok := c.Get(ctx, KindDocument, "k")
	assert.False(t, ok)
}

func TestFetchCoalesces(t *testing.T) {
	opts := DefaultOptions()
	opts.Coalesce = true
	c, _ := newTestCache(t, opts)
	ctx := context.Background()

	var calls int32
	release := make(chan struct{})
	load := func(context.Context) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return []byte("v"), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, _, err := c.Fetch(ctx, KindDocument, "same", true, load)
			assert.NoError(t, err)
			assert.Equal(t, "v", string(v))
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFetchCoalescedLoadSurvivesCancelledCaller(t *testing.T) {
	opts := DefaultOptions()
	opts.Coalesce = true
	c, _ := newTestCache(t, opts)

	started := make(chan struct{})
	release := make(chan struct{})
	var loadErr atomic.Value
	load := func(ctx context.Context) ([]byte, error) {
		close(started)
		<-release
		if err := ctx.Err(); err != nil {
			loadErr.Store(err)
			return nil, err
		}
		return []byte("v"), nil
	}

	first, cancel := context.WithCancel(context.Background())
	firstDone := make(chan error, 1)
	go func() {
		_, _, err := c.Fetch(first, KindDocument, "shared", true, load)
		firstDone <- err
	}()
	<-started

	secondDone := make(chan []byte, 1)
	go func() {
		v, _, err := c.Fetch(context.Background(), KindDocument, "shared", true, load)
		assert.NoError(t, err)
		secondDone <- v
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-firstDone, context.Canceled)

	close(release)
	assert.Equal(t, "v", string(<-secondDone))
	assert.Nil(t, loadErr.Load())

	v, ok := c.Get(context.Background(), KindDocument, "shared")
	require.True(t, ok)
	assert.Equal(t, "v", string(v))
}

func TestFetchCoalescedLoadTimeout(t *testing.T) {
	opts := DefaultOptions()
	opts.Coalesce = true
	opts.LoadTimeout = 20 * time.Millisecond
	c, _ := newTestCache(t, opts)

	_, _, err := c.Fetch(context.Background(), KindDocument, "slow", true, func(ctx context.Context) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCacheDegradesWhenStoreDown(t *testing.T) {
	c, err := New(brokenStore{}, DefaultOptions(), nil, nil)
	require.NoError(t, err)
	ctx := context.Background()

	_, ok := c.Get(ctx, KindDocument, "k")
	assert.False(t, ok)

	c.Set(ctx, KindDocument, "k", []byte("v"))
	c.Delete(ctx, "k")

	v, hit, err := c.Fetch(ctx, KindDocument, "k", false, func(context.Context) ([]byte, error) {
		return []byte("loaded"), nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "loaded", string(v))

	assert.ErrorIs(t, c.Ping(ctx), errStoreDown)
}

func TestCacheJSON(t *testing.T) {
	c, _ := newTestCache(t, DefaultOptions())
	ctx := context.Background()

	type record struct {
		PreviewID string `json:"preview_id"`
	}
	c.SetJSON(ctx, KindShare, "share:x", record{PreviewID: "p1"}, time.Minute)

	var got record
	require.True(t, c.GetJSON(ctx, KindShare, "share:x", &got))
	assert.Equal(t, "p1", got.PreviewID)

	assert.False(t, c.GetJSON(ctx, KindShare, "share:missing", &got))
}

func TestCacheCorruptEntryIsMiss(t *testing.T) {
	c, store := newTestCache(t, DefaultOptions())
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "bad", []byte{9, 1, 2}, time.Minute))
	_, ok := c.Get(ctx, KindDocument, "bad")
	assert.False(t, ok)
}
