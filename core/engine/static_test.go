package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fmsync/core/remote"
	"fmsync/model"
)

func newStaticSynchronizer(states *fakeStateRepo, catalog *fakeCatalog, client *fakeRemote) *StaticItemSynchronizer {
	return NewStaticItemSynchronizer(states, catalog, client, 10*time.Millisecond, time.Second)
}

func TestClassifyRetry(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		reason model.ErrorReason
		delay  time.Duration
	}{
		{
			name:   "network failure retries after a minute",
			err:    &remote.NetworkError{Err: errors.New("dial tcp: connection refused")},
			reason: model.ErrorReasonNetwork,
			delay:  time.Minute,
		},
		{
			name:   "unauthorized retries after thirty minutes",
			err:    &remote.UnauthorizedError{Status: 401},
			reason: model.ErrorReasonClient,
			delay:  30 * time.Minute,
		},
		{
			name:   "not found retries after an hour",
			err:    &remote.NotFoundError{Resource: "artist"},
			reason: model.ErrorReasonNotFound,
			delay:  time.Hour,
		},
		{
			name:   "server error retries after five minutes",
			err:    &remote.UnknownError{Status: 500, Message: "boom"},
			reason: model.ErrorReasonUnknown,
			delay:  5 * time.Minute,
		},
		{
			name:   "local error retries after five minutes",
			err:    errors.New("store artist a1: disk full"),
			reason: model.ErrorReasonUnknown,
			delay:  5 * time.Minute,
		},
		{
			name:   "wrapped network failure is still network",
			err:    errors.Join(errors.New("outer"), &remote.NetworkError{Err: errors.New("timeout")}),
			reason: model.ErrorReasonNetwork,
			delay:  time.Minute,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reason, delay := classifyRetry(tt.err)
			assert.Equal(t, tt.reason, reason)
			assert.Equal(t, tt.delay, delay)
		})
	}
}

func TestProcessSuccessDeletesState(t *testing.T) {
	ctx := context.Background()
	log := &eventLog{}
	states := newFakeStateRepo()
	states.log = log
	catalog := newFakeCatalog()
	catalog.log = log
	client := &fakeRemote{log: log}
	s := newStaticSynchronizer(states, catalog, client)

	item := model.FetchState{ItemID: "a1", ItemType: model.ItemTypeArtist, Status: model.FetchStatusIdle}
	require.NoError(t, states.Upsert(ctx, &item))

	require.NoError(t, s.process(ctx, item))

	_, tracked := states.get("a1", model.ItemTypeArtist)
	assert.False(t, tracked, "a synced item must leave no state row behind")
	require.Len(t, catalog.artists, 1)
	assert.Equal(t, "a1", catalog.artists[0].RemoteID)

	// The loading marker must hit the store before the network call, and
	// the row must only disappear after the result is persisted.
	assert.Equal(t, []string{
		"upsert:idle",
		"upsert:loading",
		"fetch",
		"store",
		"delete",
	}, log.snapshot())
}

func TestProcessSchedulesRetryFromAttemptTime(t *testing.T) {
	ctx := context.Background()
	states := newFakeStateRepo()
	catalog := newFakeCatalog()
	client := &fakeRemote{err: &remote.NetworkError{Err: errors.New("no route to host")}}
	s := newStaticSynchronizer(states, catalog, client)

	item := model.FetchState{ItemID: "t9", ItemType: model.ItemTypeTrack, Status: model.FetchStatusIdle}
	require.NoError(t, s.process(ctx, item))

	got, ok := states.get("t9", model.ItemTypeTrack)
	require.True(t, ok)
	assert.Equal(t, model.FetchStatusError, got.Status)
	assert.Equal(t, model.ErrorReasonNetwork, got.ErrorReason)
	require.NotNil(t, got.LastAttemptAt)
	require.NotNil(t, got.TryNextAt)
	assert.Equal(t, got.LastAttemptAt.Add(time.Minute), *got.TryNextAt,
		"retry time is anchored to the attempt time, not the failure time")
}

func TestProcessRetryDelaysPerReason(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		reason model.ErrorReason
		delay  time.Duration
	}{
		{"network", &remote.NetworkError{Err: errors.New("reset")}, model.ErrorReasonNetwork, time.Minute},
		{"unauthorized", &remote.UnauthorizedError{Status: 403}, model.ErrorReasonClient, 30 * time.Minute},
		{"not found", &remote.NotFoundError{Resource: "album"}, model.ErrorReasonNotFound, time.Hour},
		{"unknown", &remote.UnknownError{Status: 502, Message: "bad gateway"}, model.ErrorReasonUnknown, 5 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			states := newFakeStateRepo()
			client := &fakeRemote{err: tt.err}
			s := newStaticSynchronizer(states, newFakeCatalog(), client)

			item := model.FetchState{ItemID: "x1", ItemType: model.ItemTypeAlbum, Status: model.FetchStatusIdle}
			require.NoError(t, s.process(ctx, item))

			got, ok := states.get("x1", model.ItemTypeAlbum)
			require.True(t, ok)
			assert.Equal(t, model.FetchStatusError, got.Status)
			assert.Equal(t, tt.reason, got.ErrorReason)
			require.NotNil(t, got.TryNextAt)
			assert.Equal(t, got.LastAttemptAt.Add(tt.delay), *got.TryNextAt)
		})
	}
}

func TestProcessPersistenceFailureIsNotASuccess(t *testing.T) {
	ctx := context.Background()
	states := newFakeStateRepo()
	catalog := newFakeCatalog()
	catalog.storeErr = errors.New("database locked")
	client := &fakeRemote{}
	s := newStaticSynchronizer(states, catalog, client)

	item := model.FetchState{ItemID: "a2", ItemType: model.ItemTypeArtist, Status: model.FetchStatusIdle}
	require.NoError(t, s.process(ctx, item))

	got, ok := states.get("a2", model.ItemTypeArtist)
	require.True(t, ok, "a fetch whose result could not be stored must stay tracked")
	assert.Equal(t, model.FetchStatusError, got.Status)
	assert.Equal(t, model.ErrorReasonUnknown, got.ErrorReason)
}

func TestProcessDiscographyStoresSummary(t *testing.T) {
	ctx := context.Background()
	states := newFakeStateRepo()
	catalog := newFakeCatalog()
	client := &fakeRemote{}
	s := newStaticSynchronizer(states, catalog, client)

	item := model.FetchState{ItemID: "ar7", ItemType: model.ItemTypeDiscography, Status: model.FetchStatusIdle}
	require.NoError(t, s.process(ctx, item))

	assert.Len(t, catalog.discographies["ar7"], 1)
	_, tracked := states.get("ar7", model.ItemTypeDiscography)
	assert.False(t, tracked)
}

func TestProcessUnknownItemTypeIsScheduledForRetry(t *testing.T) {
	ctx := context.Background()
	states := newFakeStateRepo()
	client := &fakeRemote{}
	s := newStaticSynchronizer(states, newFakeCatalog(), client)

	item := model.FetchState{ItemID: "z1", ItemType: model.ItemType("playlist"), Status: model.FetchStatusIdle}
	require.NoError(t, s.process(ctx, item))

	got, ok := states.get("z1", model.ItemType("playlist"))
	require.True(t, ok)
	assert.Equal(t, model.FetchStatusError, got.Status)
	assert.Equal(t, model.ErrorReasonUnknown, got.ErrorReason)
	assert.Empty(t, client.fetchCalls, "an unrecognized type must not reach the network")
}

func TestRequestEnqueuesIdleRow(t *testing.T) {
	ctx := context.Background()
	states := newFakeStateRepo()
	s := newStaticSynchronizer(states, newFakeCatalog(), &fakeRemote{})

	require.NoError(t, s.Request(ctx, model.ItemTypeAlbum, "al3"))

	got, ok := states.get("al3", model.ItemTypeAlbum)
	require.True(t, ok)
	assert.Equal(t, model.FetchStatusIdle, got.Status)
	assert.Nil(t, got.TryNextAt)
}

func TestRequestResetsErroredRowToIdle(t *testing.T) {
	ctx := context.Background()
	states := newFakeStateRepo()
	s := newStaticSynchronizer(states, newFakeCatalog(), &fakeRemote{})

	tryNext := time.Now().Add(time.Hour)
	require.NoError(t, states.Upsert(ctx, &model.FetchState{
		ItemID:      "al4",
		ItemType:    model.ItemTypeAlbum,
		Status:      model.FetchStatusError,
		ErrorReason: model.ErrorReasonNotFound,
		TryNextAt:   &tryNext,
	}))

	require.NoError(t, s.Request(ctx, model.ItemTypeAlbum, "al4"))

	got, ok := states.get("al4", model.ItemTypeAlbum)
	require.True(t, ok)
	assert.Equal(t, model.FetchStatusIdle, got.Status, "an explicit request overrides the backoff schedule")
}

func TestSynchronizerEndToEndDrainsQueue(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	states := newFakeStateRepo()
	catalog := newFakeCatalog()
	client := &fakeRemote{}
	s := newStaticSynchronizer(states, catalog, client)

	require.NoError(t, states.Upsert(ctx, &model.FetchState{ItemID: "a1", ItemType: model.ItemTypeArtist, Status: model.FetchStatusIdle}))
	require.NoError(t, states.Upsert(ctx, &model.FetchState{ItemID: "al1", ItemType: model.ItemTypeAlbum, Status: model.FetchStatusIdle}))
	require.NoError(t, states.Upsert(ctx, &model.FetchState{ItemID: "t1", ItemType: model.ItemTypeTrack, Status: model.FetchStatusIdle}))

	s.Start(ctx)

	require.Eventually(t, func() bool {
		counts, err := states.CountByStatus(ctx)
		return err == nil && len(counts) == 0
	}, 2*time.Second, 5*time.Millisecond, "every idle row must be fetched and cleared")

	assert.Len(t, catalog.artists, 1)
	assert.Len(t, catalog.albums, 1)
	assert.Len(t, catalog.tracks, 1)
}
