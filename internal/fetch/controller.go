package fetch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/reelx/internal/models"
	"github.com/desertthunder/reelx/internal/shared"
)

// Lookup fetches one page of results for a query. It must honour ctx cancellation.
type Lookup[T any] func(ctx context.Context, query string, page, pageSize int) (models.Page[T], error)

// Options configures a [Controller].
type Options struct {
	Debounce time.Duration
	PageSize int
	Logger   *log.Logger
}

// Controller drives a [Lookup] from query and page changes.
//
// Every dispatched request gets a new generation; a result is committed only if its generation is
// still current, so a late answer to a superseded request never overwrites newer state.
type Controller[T any] struct {
	lookup   Lookup[T]
	debounce time.Duration
	pageSize int
	logger   *log.Logger

	ctx  context.Context
	stop context.CancelFunc

	mu      sync.Mutex
	state   State[T]
	gen     uint64
	cancel  context.CancelFunc
	timer   *time.Timer
	pending chan struct{}
	updates chan State[T]
	closed  bool
}

// New creates an idle [Controller] for lookup.
func New[T any](lookup Lookup[T], opts Options) *Controller[T] {
	if opts.PageSize <= 0 {
		opts.PageSize = 20
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	ctx, stop := context.WithCancel(context.Background())
	return &Controller[T]{
		lookup:   lookup,
		debounce: opts.Debounce,
		pageSize: opts.PageSize,
		logger:   opts.Logger,
		ctx:      ctx,
		stop:     stop,
		state:    State[T]{Page: 1, Status: Idle},
		updates:  make(chan State[T], 1),
	}
}

// State returns the current snapshot.
func (c *Controller[T]) State() State[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Updates delivers the state after every change. Only the latest unread state is kept.
// The channel is closed by [Controller.Close].
func (c *Controller[T]) Updates() <-chan State[T] {
	return c.updates
}

// SetQuery records a new query and schedules a lookup after the debounce interval.
//
// Changing the query resets the page to 1 and clears results. An empty query leaves the controller
// idle and issues no lookup.
func (c *Controller[T]) SetQuery(query string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || !c.resetQueryLocked(query) {
		return
	}
	if c.state.Query == "" {
		return
	}

	c.markPendingLocked()
	token := c.gen
	c.timer = time.AfterFunc(c.debounce, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed || token != c.gen {
			return
		}
		c.timer = nil
		c.dispatchLocked()
	})
}

// Submit sets the query and looks it up immediately, skipping the debounce.
// Submitting the current query again reloads page 1.
func (c *Controller[T]) Submit(query string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("%w: controller closed", shared.ErrCancelled)
	}
	if !c.resetQueryLocked(query) && c.state.Page != 1 {
		c.state.Page = 1
		c.state.Items = nil
	}
	if c.state.Query == "" {
		return shared.ErrNoQuery
	}

	c.dispatchLocked()
	return nil
}

// SetPage looks up page for the current query.
//
// Pages outside [1, max(TotalPages, 1)] are rejected with [shared.ErrPageOutOfRange] without a
// lookup and without changing state. Setting the current page is a no-op.
func (c *Controller[T]) SetPage(page int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setPageLocked(page)
}

// NextPage moves one page forward.
func (c *Controller[T]) NextPage() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setPageLocked(c.state.Page + 1)
}

// PrevPage moves one page back.
func (c *Controller[T]) PrevPage() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setPageLocked(c.state.Page - 1)
}

// Reload repeats the lookup for the current query and page.
func (c *Controller[T]) Reload() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("%w: controller closed", shared.ErrCancelled)
	}
	if c.state.Query == "" {
		return shared.ErrNoQuery
	}
	c.stopTimerLocked()
	c.dispatchLocked()
	return nil
}

// Await blocks until no lookup is scheduled or in flight and returns the settled state.
func (c *Controller[T]) Await(ctx context.Context) (State[T], error) {
	for {
		c.mu.Lock()
		pending, state := c.pending, c.state.clone()
		c.mu.Unlock()

		if pending == nil {
			return state, nil
		}

		select {
		case <-pending:
		case <-ctx.Done():
			return state, fmt.Errorf("%w: %w", shared.ErrCancelled, ctx.Err())
		}
	}
}

// Close cancels any scheduled or in-flight lookup and closes the updates channel.
func (c *Controller[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.stopTimerLocked()
	c.gen++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.stop()
	c.settleLocked()
	close(c.updates)
}

// resetQueryLocked applies a query change, superseding any scheduled or in-flight lookup.
// It reports whether the query changed.
func (c *Controller[T]) resetQueryLocked(query string) bool {
	query = strings.TrimSpace(query)
	if query == c.state.Query {
		return false
	}

	c.stopTimerLocked()
	c.gen++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}

	c.state = State[T]{Query: query, Page: 1, Status: Idle}
	c.settleLocked()
	c.publishLocked()
	return true
}

func (c *Controller[T]) setPageLocked(page int) error {
	if c.closed {
		return fmt.Errorf("%w: controller closed", shared.ErrCancelled)
	}
	if c.state.Query == "" {
		return shared.ErrNoQuery
	}

	last := max(c.state.TotalPages, 1)
	if page < 1 || page > last {
		return fmt.Errorf("%w: page %d of %d", shared.ErrPageOutOfRange, page, last)
	}
	if page == c.state.Page {
		return nil
	}

	c.state.Page = page
	c.state.Items = nil
	c.dispatchLocked()
	return nil
}

// dispatchLocked cancels the in-flight lookup and starts a new one for the current query and page.
func (c *Controller[T]) dispatchLocked() {
	c.stopTimerLocked()
	if c.cancel != nil {
		c.cancel()
	}

	c.gen++
	gen := c.gen
	ctx, cancel := context.WithCancel(c.ctx)
	c.cancel = cancel

	query, page := c.state.Query, c.state.Page
	c.state.Status = Loading
	c.state.Err = ""
	c.markPendingLocked()
	c.publishLocked()

	go c.run(ctx, cancel, gen, query, page)
}

func (c *Controller[T]) run(ctx context.Context, cancel context.CancelFunc, gen uint64, query string, page int) {
	defer cancel()

	result, err := c.lookup(ctx, query, page, c.pageSize)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen || c.closed {
		c.logger.Debug("dropping superseded result", "query", query, "page", page)
		return
	}
	c.cancel = nil
	defer c.settleLocked()

	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, shared.ErrCancelled) {
			c.logger.Debug("lookup cancelled", "query", query, "page", page)
			c.state.Status = Idle
			c.publishLocked()
			return
		}
		c.state.Status = Error
		c.state.Err = err.Error()
		c.state.Items = nil
		c.publishLocked()
		return
	}

	c.state.Items = result.Items
	c.state.TotalPages = result.TotalPages
	c.state.TotalCount = result.TotalCount
	if c.state.TotalPages > 0 && c.state.Page > c.state.TotalPages {
		c.state.Page = c.state.TotalPages
	}
	c.state.Status = Success
	c.publishLocked()
}

func (c *Controller[T]) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Controller[T]) markPendingLocked() {
	if c.pending == nil {
		c.pending = make(chan struct{})
	}
}

func (c *Controller[T]) settleLocked() {
	if c.pending != nil {
		close(c.pending)
		c.pending = nil
	}
}

// publishLocked replaces any unread update with the current state.
func (c *Controller[T]) publishLocked() {
	if c.closed {
		return
	}
	state := c.state.clone()
	select {
	case <-c.updates:
	default:
	}
	select {
	case c.updates <- state:
	default:
	}
}
