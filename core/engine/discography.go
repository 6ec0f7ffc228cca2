package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"fmsync/core/remote"
	"fmsync/logger"
	"fmsync/model"
	"fmsync/repository"
)

var (
	// ErrFetchInProgress means another caller holds the artist's fetch
	// lock. The loser should observe the reactive state, not retry.
	ErrFetchInProgress = errors.New("discography fetch already in progress")

	// ErrAlreadyComplete means every known album row is already local.
	ErrAlreadyComplete = errors.New("discography already complete")
)

// DiscographyState is the read model for one artist's paged album fetch.
type DiscographyState struct {
	ServerTotal   *int   `json:"serverTotal,omitempty"`
	CurrentOffset int    `json:"currentOffset"`
	IsLoading     bool   `json:"isLoading"`
	LastError     string `json:"lastError,omitempty"`
}

// HasMore reports whether more pages exist. Unknown total counts as more.
func (s DiscographyState) HasMore() bool {
	return s.ServerTotal == nil || s.CurrentOffset < *s.ServerTotal
}

// RelationCache is the optional read-side mirror of the ordered relation
// rows. All calls are best-effort; failures are logged, never propagated.
type RelationCache interface {
	ReplaceRows(ctx context.Context, artistID string, rows []model.AlbumRow) error
	AppendRows(ctx context.Context, artistID string, rows []model.AlbumRow) error
	GetRows(ctx context.Context, artistID string) ([]model.AlbumRow, error)
}

// DiscographyFetcher fetches server-ordered pages of an artist's albums on
// explicit caller request. Per-artist state is held in memory and rebuilt
// per process lifetime; a dedicated per-artist lock, acquired with a
// non-blocking try, is the only mechanism keeping concurrent fetches for
// the same artist from interleaving.
type DiscographyFetcher struct {
	catalog  repository.CatalogRepository
	cache    RelationCache
	remote   remote.Client
	pageSize int

	mu    sync.Mutex
	pages map[string]*artistPages
}

// artistPages holds one artist's paging state and subscribers.
type artistPages struct {
	fetchMu sync.Mutex // serializes network fetches for this artist

	// Everything below is guarded by DiscographyFetcher.mu.
	hydrated  bool
	state     DiscographyState
	rows      []model.AlbumRow
	stateSubs []chan DiscographyState
	rowSubs   []chan []model.AlbumRow
}

// NewDiscographyFetcher creates a fetcher. cache may be nil.
func NewDiscographyFetcher(
	catalog repository.CatalogRepository,
	cache RelationCache,
	client remote.Client,
	pageSize int,
) *DiscographyFetcher {
	if pageSize <= 0 {
		pageSize = 50
	}
	return &DiscographyFetcher{
		catalog:  catalog,
		cache:    cache,
		remote:   client,
		pageSize: pageSize,
		pages:    make(map[string]*artistPages),
	}
}

// FetchFirstPage fetches the artist's first album page, replacing any
// previously cached rows so local ordering always matches the server. A
// concurrent fetch for the same artist makes this return ErrFetchInProgress
// immediately.
func (f *DiscographyFetcher) FetchFirstPage(ctx context.Context, artistID string) error {
	p := f.pagesFor(artistID)
	if !p.fetchMu.TryLock() {
		return ErrFetchInProgress
	}
	defer p.fetchMu.Unlock()

	f.setLoading(p, true)

	page, err := f.remote.FetchArtistAlbums(ctx, artistID, 0, f.pageSize)
	if err != nil {
		f.finishWithError(p, err)
		return err
	}

	rows := buildAlbumRows(artistID, 0, page.Items)
	if err := f.catalog.ReplaceArtistAlbums(ctx, artistID, rows); err != nil {
		err = fmt.Errorf("persist first discography page of %s: %w", artistID, err)
		f.finishWithError(p, err)
		return err
	}
	if f.cache != nil {
		if cacheErr := f.cache.ReplaceRows(ctx, artistID, rows); cacheErr != nil {
			logger.Warn("Failed to cache discography page",
				logger.String("artistId", artistID),
				logger.ErrorField(cacheErr))
		}
	}

	total := page.Total
	f.mu.Lock()
	p.hydrated = true
	p.state = DiscographyState{ServerTotal: &total, CurrentOffset: len(rows)}
	p.rows = rows
	f.publishLocked(p)
	f.mu.Unlock()

	logger.Debug("Discography first page fetched",
		logger.String("artistId", artistID),
		logger.Int("rows", len(rows)),
		logger.Int("total", total))
	return nil
}

// FetchMore fetches the next album page, appending rows with order indices
// continuing from the current offset. Returns ErrAlreadyComplete without a
// network call when the known total has been reached.
func (f *DiscographyFetcher) FetchMore(ctx context.Context, artistID string) error {
	p := f.pagesFor(artistID)
	if !p.fetchMu.TryLock() {
		return ErrFetchInProgress
	}
	defer p.fetchMu.Unlock()

	// An unknown offset must abort the fetch, not default to zero.
	if err := f.hydrate(ctx, artistID, p); err != nil {
		err = fmt.Errorf("load persisted discography rows of %s: %w", artistID, err)
		f.finishWithError(p, err)
		return err
	}

	f.mu.Lock()
	offset := p.state.CurrentOffset
	total := p.state.ServerTotal
	f.mu.Unlock()

	if total != nil && offset >= *total {
		return ErrAlreadyComplete
	}

	f.setLoading(p, true)

	page, err := f.remote.FetchArtistAlbums(ctx, artistID, offset, f.pageSize)
	if err != nil {
		f.finishWithError(p, err)
		return err
	}

	rows := buildAlbumRows(artistID, offset, page.Items)
	if err := f.catalog.AppendArtistAlbums(ctx, artistID, rows); err != nil {
		err = fmt.Errorf("persist discography page of %s: %w", artistID, err)
		f.finishWithError(p, err)
		return err
	}
	if f.cache != nil {
		if cacheErr := f.cache.AppendRows(ctx, artistID, rows); cacheErr != nil {
			logger.Warn("Failed to cache discography page",
				logger.String("artistId", artistID),
				logger.ErrorField(cacheErr))
		}
	}

	newTotal := page.Total
	f.mu.Lock()
	p.state = DiscographyState{ServerTotal: &newTotal, CurrentOffset: offset + len(rows)}
	p.rows = append(p.rows, rows...)
	f.publishLocked(p)
	f.mu.Unlock()

	logger.Debug("Discography page appended",
		logger.String("artistId", artistID),
		logger.Int("offset", offset),
		logger.Int("rows", len(rows)))
	return nil
}

// State returns the artist's current paging state.
func (f *DiscographyFetcher) State(artistID string) DiscographyState {
	p := f.pagesFor(artistID)
	f.mu.Lock()
	defer f.mu.Unlock()
	return p.state
}

// States snapshots every tracked artist's paging state.
func (f *DiscographyFetcher) States() map[string]DiscographyState {
	f.mu.Lock()
	defer f.mu.Unlock()

	states := make(map[string]DiscographyState, len(f.pages))
	for artistID, p := range f.pages {
		states[artistID] = p.state
	}
	return states
}

// ObserveState returns a channel of paging-state snapshots for the artist
// and a cancel function. The current state is delivered immediately; each
// later mutation by either fetch method pushes a new snapshot. The channel
// holds the latest snapshot only.
func (f *DiscographyFetcher) ObserveState(artistID string) (<-chan DiscographyState, func()) {
	p := f.pagesFor(artistID)
	ch := make(chan DiscographyState, 1)

	f.mu.Lock()
	p.stateSubs = append(p.stateSubs, ch)
	ch <- p.state
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		for i, sub := range p.stateSubs {
			if sub == ch {
				p.stateSubs = append(p.stateSubs[:i], p.stateSubs[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, cancel
}

// ObserveDiscography returns a channel of ordered album-row snapshots for
// the artist and a cancel function. Rows already persisted by a previous
// process are loaded before the first snapshot.
func (f *DiscographyFetcher) ObserveDiscography(ctx context.Context, artistID string) (<-chan []model.AlbumRow, func()) {
	p := f.pagesFor(artistID)
	f.hydrate(ctx, artistID, p)

	ch := make(chan []model.AlbumRow, 1)

	f.mu.Lock()
	p.rowSubs = append(p.rowSubs, ch)
	ch <- append([]model.AlbumRow(nil), p.rows...)
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		for i, sub := range p.rowSubs {
			if sub == ch {
				p.rowSubs = append(p.rowSubs[:i], p.rowSubs[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, cancel
}

// pagesFor returns the artist's page state, creating it on first access.
func (f *DiscographyFetcher) pagesFor(artistID string) *artistPages {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.pages[artistID]
	if !ok {
		p = &artistPages{}
		f.pages[artistID] = p
	}
	return p
}

// hydrate rebuilds in-memory paging state from rows persisted by a
// previous process: cache first, database as fallback. The server total
// stays unknown until the next fetch. hydrated is only latched once a
// load succeeds; a transient store failure must be retried on the next
// call, or a later fetch would restart at offset zero and append rows
// whose positions collide with the persisted ones.
func (f *DiscographyFetcher) hydrate(ctx context.Context, artistID string, p *artistPages) error {
	f.mu.Lock()
	if p.hydrated {
		f.mu.Unlock()
		return nil
	}
	f.mu.Unlock()

	var rows []model.AlbumRow
	var err error
	if f.cache != nil {
		rows, err = f.cache.GetRows(ctx, artistID)
		if err != nil {
			logger.Debug("Discography cache read failed, falling back to database",
				logger.String("artistId", artistID),
				logger.ErrorField(err))
			rows = nil
		}
	}
	if len(rows) == 0 {
		rows, err = f.catalog.GetArtistAlbums(ctx, artistID)
		if err != nil {
			logger.Warn("Failed to load persisted discography rows",
				logger.String("artistId", artistID),
				logger.ErrorField(err))
			return err
		}
	}

	f.mu.Lock()
	if !p.hydrated {
		p.hydrated = true
		if len(rows) > 0 && p.rows == nil {
			p.rows = rows
			p.state.CurrentOffset = len(rows)
			f.publishLocked(p)
		}
	}
	f.mu.Unlock()
	return nil
}

func (f *DiscographyFetcher) setLoading(p *artistPages, loading bool) {
	f.mu.Lock()
	p.state.IsLoading = loading
	if loading {
		p.state.LastError = ""
	}
	f.publishLocked(p)
	f.mu.Unlock()
}

func (f *DiscographyFetcher) finishWithError(p *artistPages, err error) {
	f.mu.Lock()
	p.state.IsLoading = false
	p.state.LastError = err.Error()
	f.publishLocked(p)
	f.mu.Unlock()
}

// publishLocked pushes the current state and rows to all subscribers.
// Caller holds f.mu. Sends are latest-wins: a reader that has not caught
// up misses intermediate snapshots, never the newest one.
func (f *DiscographyFetcher) publishLocked(p *artistPages) {
	for _, ch := range p.stateSubs {
		sendLatest(ch, p.state)
	}
	if len(p.rowSubs) > 0 {
		snapshot := append([]model.AlbumRow(nil), p.rows...)
		for _, ch := range p.rowSubs {
			sendLatest(ch, snapshot)
		}
	}
}

func sendLatest[T any](ch chan T, value T) {
	select {
	case ch <- value:
	default:
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- value:
		default:
		}
	}
}

func buildAlbumRows(artistID string, offset int, albums []model.Album) []model.AlbumRow {
	rows := make([]model.AlbumRow, len(albums))
	for i, album := range albums {
		rows[i] = model.AlbumRow{
			ArtistID:      artistID,
			AlbumRemoteID: album.RemoteID,
			Position:      offset + i,
			Title:         album.Title,
			ReleaseYear:   album.ReleaseYear,
			CoverURL:      album.CoverURL,
		}
	}
	return rows
}
