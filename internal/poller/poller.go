// Package poller drives the card view: it loads the templates, shows the
// cached snapshot, then fetches and renders the card list on a fixed
// interval until its context is cancelled.
package poller

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/arcanaland/cardwatch/internal/card"
	"github.com/arcanaland/cardwatch/internal/cardapi"
	"github.com/arcanaland/cardwatch/internal/fragment"
	"github.com/arcanaland/cardwatch/internal/render"
	"github.com/arcanaland/cardwatch/internal/snapshot"
)

// DefaultInterval is the pause between two fetch cycles
const DefaultInterval = 5 * time.Second

// ErrCycleInFlight is returned by Refresh when another cycle is running
var ErrCycleInFlight = errors.New("a refresh is already in flight")

// State of the controller
type State int32

const (
	StateUninitialized State = iota
	StateTemplatesLoading
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateTemplatesLoading:
		return "templates-loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Fetcher returns the current card list
type Fetcher interface {
	Fetch(ctx context.Context) (*cardapi.Result, error)
}

// Options configures a Controller
type Options struct {
	// Templates maps each status to its fragment ref
	Templates   map[card.Status]string
	ContainerID string
	Fetcher     Fetcher
	Snapshots   snapshot.Store
	// SnapshotKey defaults to snapshot.DefaultKey
	SnapshotKey string
	// Interval defaults to DefaultInterval
	Interval time.Duration
	// HTTPClient is used to fetch remote fragments
	HTTPClient    *http.Client
	RenderOptions []render.Option
	Logger        *zap.Logger
}

// Controller owns the template store, the renderer and the snapshot for
// the lifetime of a view.
type Controller struct {
	templates *fragment.Store
	renderer  *render.Renderer
	fetcher   Fetcher
	snapshots snapshot.Store
	refs      map[card.Status]string
	key       string
	interval  time.Duration
	logger    *zap.Logger

	state    atomic.Int32
	inFlight atomic.Bool
}

// New creates a controller in the Uninitialized state
func New(opts Options) (*Controller, error) {
	if opts.Fetcher == nil {
		return nil, errors.New("poller: a card fetcher is required")
	}
	if opts.Snapshots == nil {
		return nil, errors.New("poller: a snapshot store is required")
	}
	if len(opts.Templates) == 0 {
		return nil, errors.New("poller: no templates configured")
	}
	if _, ok := opts.Templates[card.Statuses[0]]; !ok {
		return nil, fmt.Errorf("poller: a %s template is required as the fallback", card.Statuses[0])
	}

	c := &Controller{
		templates: fragment.NewStore(opts.HTTPClient),
		fetcher:   opts.Fetcher,
		snapshots: opts.Snapshots,
		refs:      opts.Templates,
		key:       opts.SnapshotKey,
		interval:  opts.Interval,
		logger:    opts.Logger,
	}
	c.renderer = render.New(c.templates, opts.ContainerID, opts.RenderOptions...)

	if c.key == "" {
		c.key = snapshot.DefaultKey
	}
	if c.interval <= 0 {
		c.interval = DefaultInterval
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c, nil
}

// Renderer exposes the view so it can be served
func (c *Controller) Renderer() *render.Renderer {
	return c.renderer
}

// State returns the current state
func (c *Controller) State() State {
	return State(c.state.Load())
}

func (c *Controller) setState(s State) {
	c.state.Store(int32(s))
	c.logger.Debug("Poller state changed", zap.Stringer("state", s))
}

// Init loads the templates and renders the cached snapshot if there is a
// usable one. A template failure is fatal and leaves the controller Failed.
func (c *Controller) Init(ctx context.Context) error {
	c.setState(StateTemplatesLoading)

	if err := c.templates.Load(ctx, c.refs); err != nil {
		c.setState(StateFailed)
		c.logger.Error("Failed to load card templates", zap.Error(err))
		return err
	}
	c.logger.Debug("Card templates loaded", zap.Int("count", c.templates.Len()))

	c.restoreSnapshot(ctx)
	c.setState(StateReady)
	return nil
}

// restoreSnapshot renders the cached card list as a provisional view. An
// unreadable snapshot is discarded.
func (c *Controller) restoreSnapshot(ctx context.Context) {
	raw, err := c.snapshots.Get(ctx, c.key)
	if errors.Is(err, snapshot.ErrNotFound) {
		return
	}
	if err != nil {
		c.logger.Warn("Failed to read cached snapshot", zap.String("key", c.key), zap.Error(err))
		return
	}

	cards, err := card.Decode(raw)
	if err != nil {
		c.logger.Warn("Discarding corrupted snapshot", zap.String("key", c.key), zap.Error(err))
		if err := c.snapshots.Delete(ctx, c.key); err != nil {
			c.logger.Warn("Failed to delete corrupted snapshot", zap.String("key", c.key), zap.Error(err))
		}
		return
	}

	c.renderer.Render(cards)
	c.logger.Debug("Rendered cached snapshot", zap.Int("cards", len(cards)))
}

// Refresh runs one fetch-and-render cycle. A failed fetch leaves the view
// and the snapshot untouched. Only one cycle runs at a time; a concurrent
// call returns ErrCycleInFlight without fetching.
func (c *Controller) Refresh(ctx context.Context) error {
	if c.State() != StateReady {
		return fmt.Errorf("poller is %s", c.State())
	}
	if !c.inFlight.CompareAndSwap(false, true) {
		return ErrCycleInFlight
	}
	defer c.inFlight.Store(false)

	res, err := c.fetcher.Fetch(ctx)
	if err != nil {
		if ctx.Err() != nil {
			c.logger.Debug("Refresh cancelled", zap.Error(err))
			return err
		}
		c.logger.Error("Failed to load cards", zap.Error(err))
		return err
	}

	c.renderer.Render(res.Cards)

	if err := c.snapshots.Put(ctx, c.key, res.Raw); err != nil {
		c.logger.Warn("Failed to update cached snapshot", zap.String("key", c.key), zap.Error(err))
	}

	c.logger.Debug("Cards refreshed", zap.Int("cards", len(res.Cards)))
	return nil
}

// Run initializes the controller, refreshes immediately and then on every
// interval until ctx is cancelled. It returns the template error when
// initialization fails and nil on cancellation.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.Init(ctx); err != nil {
		return err
	}

	c.tick(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Debug("Poller stopped")
			return nil
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

func (c *Controller) tick(ctx context.Context) {
	err := c.Refresh(ctx)
	if errors.Is(err, ErrCycleInFlight) {
		c.logger.Debug("Skipping tick, refresh in flight")
	}
}
