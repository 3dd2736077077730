package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/arcanaland/cardwatch/internal/card"
	"github.com/arcanaland/cardwatch/internal/cardapi"
	"github.com/arcanaland/cardwatch/internal/fragment"
	"github.com/arcanaland/cardwatch/internal/snapshot"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fetchFunc adapts a function to the Fetcher interface
type fetchFunc func(ctx context.Context) (*cardapi.Result, error)

func (f fetchFunc) Fetch(ctx context.Context) (*cardapi.Result, error) {
	return f(ctx)
}

func payload(t *testing.T, raw string) *cardapi.Result {
	t.Helper()
	cards, err := card.Decode([]byte(raw))
	require.NoError(t, err)
	return &cardapi.Result{Cards: cards, Raw: []byte(raw)}
}

func builtinRefs() map[card.Status]string {
	return map[card.Status]string{
		card.StatusOne:   fragment.BuiltinScheme + "card_1.html",
		card.StatusTwo:   fragment.BuiltinScheme + "card_2.html",
		card.StatusThree: fragment.BuiltinScheme + "card_3.html",
	}
}

func newController(t *testing.T, f Fetcher, store snapshot.Store) *Controller {
	t.Helper()
	c, err := New(Options{
		Templates:   builtinRefs(),
		ContainerID: "cards-container",
		Fetcher:     f,
		Snapshots:   store,
		Interval:    10 * time.Millisecond,
		Logger:      zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	return c
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := New(Options{Templates: builtinRefs(), Snapshots: snapshot.NewFileStore(t.TempDir())})
	assert.Error(t, err)

	_, err = New(Options{Templates: builtinRefs(), Fetcher: fetchFunc(nil)})
	assert.Error(t, err)

	_, err = New(Options{Fetcher: fetchFunc(nil), Snapshots: snapshot.NewFileStore(t.TempDir())})
	assert.Error(t, err)

	// the first status is the fallback for every card
	_, err = New(Options{
		Templates: map[card.Status]string{card.StatusTwo: fragment.BuiltinScheme + "card_2.html"},
		Fetcher:   fetchFunc(nil),
		Snapshots: snapshot.NewFileStore(t.TempDir()),
	})
	assert.ErrorContains(t, err, "STATUS_1")
}

func TestInit_RendersCachedSnapshot(t *testing.T) {
	ctx := context.Background()
	store := snapshot.NewFileStore(t.TempDir())
	require.NoError(t, store.Put(ctx, snapshot.DefaultKey, []byte(`[{"status":"STATUS_2","CARD_ID":"a"},{"status":"STATUS_3","CARD_ID":"b"}]`)))

	c := newController(t, fetchFunc(func(context.Context) (*cardapi.Result, error) {
		t.Fatal("Init must not fetch")
		return nil, nil
	}), store)

	assert.Equal(t, StateUninitialized, c.State())
	require.NoError(t, c.Init(ctx))
	assert.Equal(t, StateReady, c.State())
	assert.Equal(t, 2, c.Renderer().Len())
}

func TestInit_CorruptedSnapshotIsRemoved(t *testing.T) {
	ctx := context.Background()
	store := snapshot.NewFileStore(t.TempDir())
	require.NoError(t, store.Put(ctx, snapshot.DefaultKey, []byte("definitely not json")))

	fetched := payload(t, `[{"status":"STATUS_1","CARD_ID":"fresh","CARD_COINS":"BTC"}]`)
	c := newController(t, fetchFunc(func(context.Context) (*cardapi.Result, error) {
		return fetched, nil
	}), store)

	require.NoError(t, c.Init(ctx))
	assert.Equal(t, 0, c.Renderer().Len())

	_, err := store.Get(ctx, snapshot.DefaultKey)
	assert.True(t, errors.Is(err, snapshot.ErrNotFound), "corrupted key must be removed")

	require.NoError(t, c.Refresh(ctx))
	assert.Equal(t, 1, c.Renderer().Len())

	cached, err := store.Get(ctx, snapshot.DefaultKey)
	require.NoError(t, err)
	assert.Equal(t, string(fetched.Raw), string(cached))
}

func TestRefresh_FailureKeepsViewAndSnapshot(t *testing.T) {
	ctx := context.Background()
	store := snapshot.NewFileStore(t.TempDir())

	var fail atomic.Bool
	good := payload(t, `[{"status":"STATUS_2","CARD_ID":"x"},{"status":"STATUS_2","CARD_ID":"y"}]`)
	c := newController(t, fetchFunc(func(context.Context) (*cardapi.Result, error) {
		if fail.Load() {
			return nil, &cardapi.FetchError{URL: "http://cards/api/cards", StatusCode: 503}
		}
		return good, nil
	}), store)

	require.NoError(t, c.Init(ctx))
	require.NoError(t, c.Refresh(ctx))

	before, err := c.Renderer().HTML()
	require.NoError(t, err)

	fail.Store(true)
	err = c.Refresh(ctx)
	var fetchErr *cardapi.FetchError
	require.True(t, errors.As(err, &fetchErr))

	after, err := c.Renderer().HTML()
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, 2, c.Renderer().Len())

	cached, err := store.Get(ctx, snapshot.DefaultKey)
	require.NoError(t, err)
	assert.Equal(t, string(good.Raw), string(cached))
}

func TestRun_TemplateFailureIsTerminal(t *testing.T) {
	var calls atomic.Int32
	c, err := New(Options{
		Templates: map[card.Status]string{
			card.StatusOne: fragment.BuiltinScheme + "missing.html",
		},
		Fetcher: fetchFunc(func(context.Context) (*cardapi.Result, error) {
			calls.Add(1)
			return &cardapi.Result{}, nil
		}),
		Snapshots: snapshot.NewFileStore(t.TempDir()),
		Logger:    zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	err = c.Run(context.Background())
	var loadErr *fragment.LoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, StateFailed, c.State())
	assert.Zero(t, calls.Load())

	assert.Error(t, c.Refresh(context.Background()))
	assert.Zero(t, calls.Load())
}

func TestRun_PollsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := snapshot.NewFileStore(t.TempDir())

	res := payload(t, `[{"status":"STATUS_3","CARD_ID":"z"}]`)
	var calls atomic.Int32
	c := newController(t, fetchFunc(func(context.Context) (*cardapi.Result, error) {
		calls.Add(1)
		return res, nil
	}), store)

	done := make(chan error, 1)
	go func() {
		done <- c.Run(ctx)
	}()

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	assert.Equal(t, 1, c.Renderer().Len())
}

func TestRefresh_SkipsWhileInFlight(t *testing.T) {
	ctx := context.Background()
	started := make(chan struct{})
	release := make(chan struct{})
	empty := payload(t, `[]`)

	c := newController(t, fetchFunc(func(context.Context) (*cardapi.Result, error) {
		close(started)
		<-release
		return empty, nil
	}), snapshot.NewFileStore(t.TempDir()))
	require.NoError(t, c.Init(ctx))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, c.Refresh(ctx))
	}()

	<-started
	assert.True(t, errors.Is(c.Refresh(ctx), ErrCycleInFlight))

	close(release)
	wg.Wait()
}

func TestRefresh_CancelledIsNotAnError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	core, logs := observer.New(zap.DebugLevel)

	c, err := New(Options{
		Templates: builtinRefs(),
		Fetcher: fetchFunc(func(ctx context.Context) (*cardapi.Result, error) {
			cancel()
			<-ctx.Done()
			return nil, &cardapi.FetchError{URL: "http://cards/api/cards", Err: ctx.Err()}
		}),
		Snapshots: snapshot.NewFileStore(t.TempDir()),
		Logger:    zap.New(core),
	})
	require.NoError(t, err)
	require.NoError(t, c.Init(context.Background()))

	err = c.Refresh(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Zero(t, logs.FilterMessage("Failed to load cards").Len())
	assert.Equal(t, 1, logs.FilterMessage("Refresh cancelled").Len())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "ready", StateReady.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "state(42)", State(42).String())
}
