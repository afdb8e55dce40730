package shoplist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/PascalSV/shopping-list-pwa/internal/types"
)

// Client is the offline-first shopping list client. Every edit is applied to
// the local replica and queued before any network traffic happens.
type Client struct {
	config Config
	store  *LocalStore
	queue  *Queue
	syncer *Syncer
	lock   *syncLock
	logger *slog.Logger
	now    func() time.Time
	newID  func() string

	// syncMu allows one sync at a time from this client.
	syncMu sync.Mutex
	online atomic.Bool

	mu      sync.RWMutex
	closed  bool
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New opens the local replica and prepares a client. Call Initialize to
// bootstrap and start background sync.
func New(config Config) (*Client, error) {
	if config.LocalPath == "" {
		return nil, errors.New("LocalPath is required")
	}

	if config.SyncInterval <= 0 {
		config.SyncInterval = 5 * time.Second
	}
	if config.ProbeInterval <= 0 {
		config.ProbeInterval = 15 * time.Second
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 30 * time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Timeout: config.RequestTimeout}
	}

	ctx := context.Background()
	store, err := OpenLocalStore(ctx, config.LocalPath)
	if err != nil {
		return nil, err
	}

	clientID := config.ClientID
	if clientID == "" {
		clientID, err = store.ClientID(ctx, uuid.NewString)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("load client id: %w", err)
		}
		config.ClientID = clientID
	}

	return &Client{
		config: config,
		store:  store,
		queue:  store.Queue(),
		syncer: NewSyncer(config.ServerURL, config.Token, clientID, config.HTTPClient),
		lock:   newSyncLock(config.LocalPath),
		logger: config.Logger.With("component", "shoplist"),
		now:    time.Now,
		newID:  func() string { return ulid.Make().String() },
	}, nil
}

// ClientID returns the id sent with every request.
func (c *Client) ClientID() string {
	return c.config.ClientID
}

// Store returns the local replica.
func (c *Client) Store() *LocalStore {
	return c.store
}

func (c *Client) networked() bool {
	return !c.config.OfflineMode && c.config.ServerURL != ""
}

// Initialize bootstraps from the server and starts the background loop when
// AutoSync is set. An unreachable server is not an error: the client starts
// from its local data and keeps probing.
func (c *Client) Initialize(ctx context.Context) (AppState, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return AppState{}, ErrClosed
	}
	if c.started {
		c.mu.Unlock()
		return c.State(ctx)
	}
	c.started = true

	if c.networked() {
		pending, err := c.bootstrap(ctx)
		if err != nil {
			c.logger.Warn("bootstrap failed, using local data",
				"action", "bootstrap",
				"error", err,
			)
		} else if pending > 0 {
			// Push what was queued while offline.
			c.sync(ctx)
		}
	}

	if c.config.AutoSync && c.networked() {
		loopCtx, cancel := context.WithCancel(context.Background())
		c.cancel = cancel
		c.done = make(chan struct{})
		go c.run(loopCtx)
	}
	c.mu.Unlock()

	return c.State(ctx)
}

// bootstrap fetches the server's live state and replaces the local tables
// with it. Queued edits are re-applied on top. Returns the queue length.
func (c *Client) bootstrap(ctx context.Context) (int, error) {
	c.syncMu.Lock()
	defer c.syncMu.Unlock()

	if err := c.lock.Lock(ctx); err != nil {
		return 0, err
	}
	defer c.lock.Unlock()

	resp, err := c.syncer.Bootstrap(ctx)
	if err != nil {
		c.markOnline(err)
		return 0, err
	}
	c.online.Store(true)

	pending, err := c.queue.Len(ctx)
	if err != nil {
		return 0, err
	}
	if pending == 0 {
		err = c.store.ReplaceAll(ctx, resp)
	} else {
		err = c.store.Rebase(ctx, resp)
	}
	if err != nil {
		return 0, fmt.Errorf("store bootstrap: %w", err)
	}

	c.logger.Info("bootstrap completed",
		"action", "bootstrap",
		"lists", len(resp.Lists),
		"items", len(resp.Items),
		"suggestions", len(resp.Suggestions),
		"cursor", resp.Cursor,
		"pending", pending,
	)
	return pending, nil
}

// SyncNow pushes the queue and pulls everything changed since the stored
// cursor. A failed sync leaves the queue and local data untouched.
func (c *Client) SyncNow(ctx context.Context) (*SyncStats, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, ErrClosed
	}
	if !c.networked() {
		return nil, ErrOffline
	}
	return c.sync(ctx)
}

// NotifyOnline tells the client connectivity is back and syncs right away.
func (c *Client) NotifyOnline(ctx context.Context) (*SyncStats, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, ErrClosed
	}
	if !c.networked() {
		return nil, ErrOffline
	}
	c.online.Store(true)
	return c.sync(ctx)
}

// Online reports whether the last server contact succeeded.
func (c *Client) Online() bool {
	return c.online.Load()
}

func (c *Client) sync(ctx context.Context) (*SyncStats, error) {
	c.syncMu.Lock()
	defer c.syncMu.Unlock()

	start := c.now()
	stats, err := c.syncLocked(ctx)
	if err != nil {
		c.logger.Warn("sync failed",
			"action", "sync",
			"error", err,
		)
		return nil, err
	}
	stats.Duration = c.now().Sub(start)

	c.logger.Debug("sync completed",
		"action", "sync",
		"pushed", stats.Pushed,
		"lists", stats.Lists,
		"items", stats.Items,
		"cursor", stats.Cursor,
		"duration_ms", stats.Duration.Milliseconds(),
	)
	return stats, nil
}

func (c *Client) syncLocked(ctx context.Context) (*SyncStats, error) {
	if err := c.lock.Lock(ctx); err != nil {
		return nil, err
	}
	defer c.lock.Unlock()

	pending, err := c.queue.Pending(ctx)
	if err != nil {
		return nil, err
	}
	since, err := c.store.Cursor(ctx)
	if err != nil {
		return nil, err
	}

	req := types.SyncRequest{Since: since, Mutations: make([]types.SyncMutation, 0, len(pending))}
	var through int64
	for _, pm := range pending {
		req.Mutations = append(req.Mutations, pm.Mutation)
		through = pm.Seq
	}

	resp, err := c.syncer.Sync(ctx, req)
	if err != nil {
		c.markOnline(err)
		return nil, err
	}
	c.online.Store(true)

	if err := c.store.MergeResponse(ctx, resp, through); err != nil {
		return nil, fmt.Errorf("store sync response: %w", err)
	}

	return &SyncStats{
		Pushed: len(req.Mutations),
		Lists:  len(resp.Lists),
		Items:  len(resp.Items),
		Cursor: resp.Cursor,
	}, nil
}

// markOnline records connectivity after a failed round trip: the server
// answering with an error status still counts as reachable.
func (c *Client) markOnline(err error) {
	var statusErr *StatusError
	c.online.Store(errors.As(err, &statusErr))
}

// run syncs on SyncInterval while online and probes the server on
// ProbeInterval while offline, syncing as soon as it answers.
func (c *Client) run(ctx context.Context) {
	defer close(c.done)

	syncTicker := time.NewTicker(c.config.SyncInterval)
	defer syncTicker.Stop()
	probeTicker := time.NewTicker(c.config.ProbeInterval)
	defer probeTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-syncTicker.C:
			if c.online.Load() {
				c.sync(ctx)
			}
		case <-probeTicker.C:
			if c.online.Load() {
				continue
			}
			if err := c.syncer.Ping(ctx); err != nil {
				c.logger.Debug("server still unreachable", "action", "probe", "error", err)
				continue
			}
			c.logger.Info("server reachable again", "action", "probe")
			c.online.Store(true)
			c.sync(ctx)
		}
	}
}

// Shutdown stops background sync, makes one last attempt to push queued
// edits and closes the local replica.
func (c *Client) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if c.cancel != nil {
		c.cancel()
		select {
		case <-c.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if c.networked() {
		if n, err := c.queue.Len(ctx); err == nil && n > 0 {
			c.sync(ctx)
		}
	}

	return c.store.Close()
}

// State returns the current application state. The selected list is the
// last viewed one, falling back to the first live list.
func (c *Client) State(ctx context.Context) (AppState, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return AppState{}, ErrClosed
	}
	return c.load(ctx, "")
}

func (c *Client) load(ctx context.Context, listID string) (AppState, error) {
	lists, err := c.store.Lists(ctx)
	if err != nil {
		return AppState{}, err
	}
	items, err := c.store.Items(ctx)
	if err != nil {
		return AppState{}, err
	}
	suggestions, err := c.store.Suggestions(ctx)
	if err != nil {
		return AppState{}, err
	}
	cursor, err := c.store.Cursor(ctx)
	if err != nil {
		return AppState{}, err
	}
	pending, err := c.queue.Len(ctx)
	if err != nil {
		return AppState{}, err
	}
	if listID == "" {
		if listID, err = c.store.LastViewedList(ctx); err != nil {
			return AppState{}, err
		}
	}

	state := AppState{
		Lists:       make([]List, 0, len(lists)),
		Items:       make([]Item, 0, len(items)),
		Suggestions: suggestions,
		Cursor:      cursor,
		Pending:     pending,
		Online:      c.online.Load(),
	}
	for _, l := range lists {
		if !l.IsDeleted {
			state.Lists = append(state.Lists, l)
		}
	}
	for _, it := range items {
		if !it.IsDeleted {
			state.Items = append(state.Items, it)
		}
	}

	state.CurrentListID = listID
	if _, ok := state.CurrentList(); !ok {
		state.CurrentListID = ""
		if len(state.Lists) > 0 {
			state.CurrentListID = state.Lists[0].ID
		}
	}
	return state, nil
}

// stamp returns the timestamp for an edit of a record last written at prev.
// It never goes backwards so a local edit always supersedes the version it
// was made from.
func (c *Client) stamp(prev int64) int64 {
	ts := c.now().UnixMilli()
	if ts <= prev {
		ts = prev + 1
	}
	return ts
}

// edit records m locally, attempts an immediate sync and returns the
// refreshed state with listID selected.
func (c *Client) edit(ctx context.Context, m types.SyncMutation, listID string) (AppState, error) {
	if _, err := c.store.Record(ctx, m); err != nil {
		return AppState{}, err
	}
	if c.networked() {
		// Failures are logged by sync and retried later.
		c.sync(ctx)
	}
	return c.load(ctx, listID)
}

// begin checks the client is open and reloads state with the caller's
// selection.
func (c *Client) begin(ctx context.Context, state AppState) (AppState, error) {
	if c.closed {
		return AppState{}, ErrClosed
	}
	return c.load(ctx, state.CurrentListID)
}

func (c *Client) liveList(ctx context.Context, id string) (List, error) {
	l, err := c.store.List(ctx, id)
	if err != nil {
		return List{}, err
	}
	if l.IsDeleted {
		return List{}, ErrListNotFound
	}
	return l, nil
}

func (c *Client) liveItem(ctx context.Context, id string) (Item, error) {
	it, err := c.store.Item(ctx, id)
	if err != nil {
		return Item{}, err
	}
	if it.IsDeleted {
		return Item{}, ErrItemNotFound
	}
	return it, nil
}

// AddList creates a list and selects it.
func (c *Client) AddList(ctx context.Context, state AppState, name string) (AppState, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if _, err := c.begin(ctx, state); err != nil {
		return AppState{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return AppState{}, ErrEmptyName
	}

	list := List{ID: c.newID(), Name: name, UpdatedAt: c.stamp(0)}
	if err := c.store.SetLastViewedList(ctx, list.ID); err != nil {
		return AppState{}, err
	}
	return c.edit(ctx, types.UpsertList(list), list.ID)
}

// EditList renames a list.
func (c *Client) EditList(ctx context.Context, state AppState, id, name string) (AppState, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cur, err := c.begin(ctx, state)
	if err != nil {
		return AppState{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return AppState{}, ErrEmptyName
	}
	list, err := c.liveList(ctx, id)
	if err != nil {
		return AppState{}, err
	}

	list.Name = name
	list.UpdatedAt = c.stamp(list.UpdatedAt)
	return c.edit(ctx, types.UpsertList(list), cur.CurrentListID)
}

// ToggleFavorite flips the favorite flag of a list.
func (c *Client) ToggleFavorite(ctx context.Context, state AppState, id string) (AppState, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cur, err := c.begin(ctx, state)
	if err != nil {
		return AppState{}, err
	}
	list, err := c.liveList(ctx, id)
	if err != nil {
		return AppState{}, err
	}

	list.IsFavorite = !list.IsFavorite
	list.UpdatedAt = c.stamp(list.UpdatedAt)
	return c.edit(ctx, types.UpsertList(list), cur.CurrentListID)
}

// DeleteList tombstones a list. Its items are left alone. When the deleted
// list was selected, the first remaining list is selected instead.
func (c *Client) DeleteList(ctx context.Context, state AppState, id string) (AppState, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cur, err := c.begin(ctx, state)
	if err != nil {
		return AppState{}, err
	}
	list, err := c.liveList(ctx, id)
	if err != nil {
		return AppState{}, err
	}

	list.IsDeleted = true
	list.UpdatedAt = c.stamp(list.UpdatedAt)

	selected := cur.CurrentListID
	if selected == id {
		selected = ""
		for _, l := range cur.Lists {
			if l.ID != id {
				selected = l.ID
				break
			}
		}
		if err := c.store.SetLastViewedList(ctx, selected); err != nil {
			return AppState{}, err
		}
	}
	return c.edit(ctx, types.UpsertList(list), selected)
}

// SwitchList selects a list and remembers it for the next start. No
// mutation is queued.
func (c *Client) SwitchList(ctx context.Context, state AppState, id string) (AppState, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if _, err := c.begin(ctx, state); err != nil {
		return AppState{}, err
	}
	if _, err := c.liveList(ctx, id); err != nil {
		return AppState{}, err
	}
	if err := c.store.SetLastViewedList(ctx, id); err != nil {
		return AppState{}, err
	}
	return c.load(ctx, id)
}

// AddItem adds an open item to the selected list. Labels must be unique per
// list, compared case-insensitively.
func (c *Client) AddItem(ctx context.Context, state AppState, label, remark string) (AppState, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cur, err := c.begin(ctx, state)
	if err != nil {
		return AppState{}, err
	}
	if cur.CurrentListID == "" {
		return AppState{}, ErrListNotFound
	}
	label = strings.TrimSpace(label)
	if label == "" {
		return AppState{}, ErrEmptyLabel
	}
	if cur.HasLabel(cur.CurrentListID, label, "") {
		return AppState{}, fmt.Errorf("%w: %s", ErrDuplicateItem, label)
	}

	item := Item{
		ID:        c.newID(),
		ListID:    cur.CurrentListID,
		Label:     label,
		Remark:    strings.TrimSpace(remark),
		UpdatedAt: c.stamp(0),
	}
	return c.edit(ctx, types.UpsertItem(item), cur.CurrentListID)
}

// ToggleItem flips an item between open and done.
func (c *Client) ToggleItem(ctx context.Context, state AppState, id string) (AppState, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cur, err := c.begin(ctx, state)
	if err != nil {
		return AppState{}, err
	}
	item, err := c.liveItem(ctx, id)
	if err != nil {
		return AppState{}, err
	}

	item.Done = !item.Done
	item.UpdatedAt = c.stamp(item.UpdatedAt)
	return c.edit(ctx, types.UpsertItem(item), cur.CurrentListID)
}

// EditItem replaces an item's label and remark.
func (c *Client) EditItem(ctx context.Context, state AppState, id, label, remark string) (AppState, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cur, err := c.begin(ctx, state)
	if err != nil {
		return AppState{}, err
	}
	label = strings.TrimSpace(label)
	if label == "" {
		return AppState{}, ErrEmptyLabel
	}
	item, err := c.liveItem(ctx, id)
	if err != nil {
		return AppState{}, err
	}
	if cur.HasLabel(item.ListID, label, item.ID) {
		return AppState{}, fmt.Errorf("%w: %s", ErrDuplicateItem, label)
	}

	item.Label = label
	item.Remark = strings.TrimSpace(remark)
	item.UpdatedAt = c.stamp(item.UpdatedAt)
	return c.edit(ctx, types.UpsertItem(item), cur.CurrentListID)
}

// DeleteItem tombstones an item.
func (c *Client) DeleteItem(ctx context.Context, state AppState, id string) (AppState, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cur, err := c.begin(ctx, state)
	if err != nil {
		return AppState{}, err
	}
	item, err := c.liveItem(ctx, id)
	if err != nil {
		return AppState{}, err
	}

	item.IsDeleted = true
	item.UpdatedAt = c.stamp(item.UpdatedAt)
	return c.edit(ctx, types.UpsertItem(item), cur.CurrentListID)
}
