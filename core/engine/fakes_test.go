package engine

import (
	"context"
	"sync"
	"time"

	"fmsync/core/remote"
	"fmsync/model"
)

// eventLog records the order of cross-fake operations.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(event string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *eventLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

// fakeStateRepo is an in-memory FetchStateRepository.
type fakeStateRepo struct {
	mu      sync.Mutex
	states  map[string]model.FetchState
	upserts []model.FetchState
	deletes []string
	log     *eventLog
}

func newFakeStateRepo() *fakeStateRepo {
	return &fakeStateRepo{states: make(map[string]model.FetchState)}
}

func stateKey(itemID string, itemType model.ItemType) string {
	return itemID + "/" + string(itemType)
}

func (r *fakeStateRepo) GetIdlePastDue(_ context.Context, now time.Time) ([]model.FetchState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var due []model.FetchState
	for _, state := range r.states {
		if state.Status == model.FetchStatusIdle {
			due = append(due, state)
			continue
		}
		if state.Status == model.FetchStatusError && state.TryNextAt != nil && !state.TryNextAt.After(now) {
			due = append(due, state)
		}
	}
	return due, nil
}

func (r *fakeStateRepo) GetLoadingCount(context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, state := range r.states {
		if state.Status == model.FetchStatusLoading {
			count++
		}
	}
	return count, nil
}

func (r *fakeStateRepo) Upsert(_ context.Context, state *model.FetchState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.states[stateKey(state.ItemID, state.ItemType)] = *state
	r.upserts = append(r.upserts, *state)
	if r.log != nil {
		r.log.add("upsert:" + string(state.Status))
	}
	return nil
}

func (r *fakeStateRepo) Delete(_ context.Context, itemID string, itemType model.ItemType) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.states, stateKey(itemID, itemType))
	r.deletes = append(r.deletes, stateKey(itemID, itemType))
	if r.log != nil {
		r.log.add("delete")
	}
	return nil
}

func (r *fakeStateRepo) ResetStuckLoadingToIdle(context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var reset int64
	for key, state := range r.states {
		if state.Status == model.FetchStatusLoading {
			state.Status = model.FetchStatusIdle
			state.TryNextAt = nil
			state.ErrorReason = ""
			r.states[key] = state
			reset++
		}
	}
	return reset, nil
}

func (r *fakeStateRepo) CountByStatus(context.Context) (map[model.FetchStatus]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := make(map[model.FetchStatus]int)
	for _, state := range r.states {
		counts[state.Status]++
	}
	return counts, nil
}

func (r *fakeStateRepo) get(itemID string, itemType model.ItemType) (model.FetchState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.states[stateKey(itemID, itemType)]
	return state, ok
}

func (r *fakeStateRepo) lastUpsert() (model.FetchState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.upserts) == 0 {
		return model.FetchState{}, false
	}
	return r.upserts[len(r.upserts)-1], true
}

// fakeCatalog is an in-memory CatalogRepository.
type fakeCatalog struct {
	mu            sync.Mutex
	artists       []model.Artist
	albums        []model.Album
	tracks        []model.Track
	discographies map[string][]model.Album
	rows          map[string][]model.AlbumRow
	replaceCalls  int
	appendCalls   int
	storeErr      error
	getRowsErr    error
	log           *eventLog
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		discographies: make(map[string][]model.Album),
		rows:          make(map[string][]model.AlbumRow),
	}
}

func (c *fakeCatalog) StoreArtist(_ context.Context, artist *model.Artist) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.log != nil {
		c.log.add("store")
	}
	if c.storeErr != nil {
		return c.storeErr
	}
	c.artists = append(c.artists, *artist)
	return nil
}

func (c *fakeCatalog) StoreAlbum(_ context.Context, album *model.Album) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.storeErr != nil {
		return c.storeErr
	}
	c.albums = append(c.albums, *album)
	return nil
}

func (c *fakeCatalog) StoreTrack(_ context.Context, track *model.Track) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.storeErr != nil {
		return c.storeErr
	}
	c.tracks = append(c.tracks, *track)
	return nil
}

func (c *fakeCatalog) StoreDiscography(_ context.Context, artistID string, albums []model.Album) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.storeErr != nil {
		return c.storeErr
	}
	c.discographies[artistID] = albums
	return nil
}

func (c *fakeCatalog) ReplaceArtistAlbums(_ context.Context, artistID string, rows []model.AlbumRow) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.storeErr != nil {
		return c.storeErr
	}
	c.replaceCalls++
	c.rows[artistID] = append([]model.AlbumRow(nil), rows...)
	return nil
}

func (c *fakeCatalog) AppendArtistAlbums(_ context.Context, artistID string, rows []model.AlbumRow) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.storeErr != nil {
		return c.storeErr
	}
	c.appendCalls++
	c.rows[artistID] = append(c.rows[artistID], rows...)
	return nil
}

func (c *fakeCatalog) GetArtistAlbums(_ context.Context, artistID string) ([]model.AlbumRow, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getRowsErr != nil {
		return nil, c.getRowsErr
	}
	return append([]model.AlbumRow(nil), c.rows[artistID]...), nil
}

func (c *fakeCatalog) setGetRowsErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.getRowsErr = err
}

func (c *fakeCatalog) rowsFor(artistID string) []model.AlbumRow {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.AlbumRow(nil), c.rows[artistID]...)
}

// fakeRemote is a scriptable remote.Client.
type fakeRemote struct {
	mu         sync.Mutex
	err        error
	pageFunc   func(artistID string, offset, limit int) (*remote.AlbumPage, error)
	pageCalls  int
	fetchCalls []string
	log        *eventLog
	gate       chan struct{} // when non-nil, FetchArtistAlbums blocks on it
}

func (r *fakeRemote) record(call string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetchCalls = append(r.fetchCalls, call)
	if r.log != nil {
		r.log.add("fetch")
	}
	return r.err
}

func (r *fakeRemote) FetchArtist(_ context.Context, id string) (*model.Artist, error) {
	if err := r.record("artist:" + id); err != nil {
		return nil, err
	}
	return &model.Artist{RemoteID: id, Name: "artist " + id}, nil
}

func (r *fakeRemote) FetchAlbum(_ context.Context, id string) (*model.Album, error) {
	if err := r.record("album:" + id); err != nil {
		return nil, err
	}
	return &model.Album{RemoteID: id, Title: "album " + id}, nil
}

func (r *fakeRemote) FetchTrack(_ context.Context, id string) (*model.Track, error) {
	if err := r.record("track:" + id); err != nil {
		return nil, err
	}
	return &model.Track{RemoteID: id, Title: "track " + id}, nil
}

func (r *fakeRemote) FetchDiscography(_ context.Context, artistID string) (*remote.DiscographyPayload, error) {
	if err := r.record("discography:" + artistID); err != nil {
		return nil, err
	}
	return &remote.DiscographyPayload{
		ArtistID: artistID,
		Albums:   []model.Album{{RemoteID: artistID + "-a1"}},
	}, nil
}

func (r *fakeRemote) FetchArtistAlbums(_ context.Context, artistID string, offset, limit int) (*remote.AlbumPage, error) {
	r.mu.Lock()
	r.pageCalls++
	gate := r.gate
	pageFunc := r.pageFunc
	r.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if pageFunc != nil {
		return pageFunc(artistID, offset, limit)
	}
	return &remote.AlbumPage{}, nil
}

func (r *fakeRemote) pageCallCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pageCalls
}

// makeAlbums builds n albums with sequential remote IDs starting at from.
func makeAlbums(from, n int) []model.Album {
	albums := make([]model.Album, n)
	for i := range albums {
		albums[i] = model.Album{RemoteID: albumID(from + i), Title: "Album"}
	}
	return albums
}

func albumID(n int) string {
	return "alb-" + string(rune('a'+n))
}
