package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fmsync/core/remote"
	"fmsync/logger"
	"fmsync/model"
	"fmsync/repository"
)

// Retry delays by failure class. Each schedules tryNextAt as
// lastAttemptAt + delay.
const (
	retryNetwork      = time.Minute
	retryUnauthorized = 30 * time.Minute
	retryNotFound     = time.Hour
	retryUnknown      = 5 * time.Minute
)

// StaticItemSynchronizer keeps immutable catalog entities (artists,
// albums, tracks, discographies) in sync. It instantiates the generic
// Worker over FetchState rows: Idle rows are picked up, fetched with
// exactly one remote call, stored, and their row deleted. Failures are
// classified and rescheduled; nothing is fatal.
type StaticItemSynchronizer struct {
	states  repository.FetchStateRepository
	catalog repository.CatalogRepository
	remote  remote.Client
	worker  *Worker[model.FetchState]
}

// NewStaticItemSynchronizer wires the synchronizer. minSleep and maxSleep
// bound the worker's idle window.
func NewStaticItemSynchronizer(
	states repository.FetchStateRepository,
	catalog repository.CatalogRepository,
	client remote.Client,
	minSleep, maxSleep time.Duration,
) *StaticItemSynchronizer {
	s := &StaticItemSynchronizer{
		states:  states,
		catalog: catalog,
		remote:  client,
	}
	s.worker = NewWorker("static-items", Hooks[model.FetchState]{
		ListPending:  s.listPending,
		Process:      s.process,
		LoadingCount: s.states.GetLoadingCount,
		BeforeLoop:   s.beforeLoop,
	}, minSleep, maxSleep)
	return s
}

// Start launches the background loop. Idempotent.
func (s *StaticItemSynchronizer) Start(ctx context.Context) {
	s.worker.Start(ctx)
}

// WakeUp shortens the loop's current idle wait. Safe from any goroutine.
func (s *StaticItemSynchronizer) WakeUp() {
	s.worker.WakeUp()
}

// Request marks an item for fetching and wakes the loop. Upserting an Idle
// row is what enqueues the work; requesting an item already tracked resets
// it to Idle so it is retried promptly.
func (s *StaticItemSynchronizer) Request(ctx context.Context, itemType model.ItemType, itemID string) error {
	state := &model.FetchState{
		ItemID:   itemID,
		ItemType: itemType,
		Status:   model.FetchStatusIdle,
	}
	if err := s.states.Upsert(ctx, state); err != nil {
		return fmt.Errorf("request fetch of %s %s: %w", itemType, itemID, err)
	}
	s.worker.WakeUp()
	return nil
}

func (s *StaticItemSynchronizer) listPending(ctx context.Context) ([]model.FetchState, error) {
	return s.states.GetIdlePastDue(ctx, time.Now())
}

func (s *StaticItemSynchronizer) beforeLoop(ctx context.Context) error {
	n, err := s.states.ResetStuckLoadingToIdle(ctx)
	if err != nil {
		return fmt.Errorf("reset stuck loading items: %w", err)
	}
	if n > 0 {
		logger.Info("Reset stuck loading items from previous run", logger.Int64("count", n))
	}
	return nil
}

// process fetches one item. The Loading marker is persisted before the
// network call so a crash mid-fetch leaves a recoverable row instead of
// silently lost work.
func (s *StaticItemSynchronizer) process(ctx context.Context, item model.FetchState) error {
	now := time.Now()
	item.Status = model.FetchStatusLoading
	item.LastAttemptAt = &now
	item.TryNextAt = nil
	item.ErrorReason = ""
	if err := s.states.Upsert(ctx, &item); err != nil {
		return fmt.Errorf("mark %s %s loading: %w", item.ItemType, item.ItemID, err)
	}

	if err := s.fetchAndStore(ctx, item); err != nil {
		reason, delay := classifyRetry(err)
		tryNext := now.Add(delay)
		item.Status = model.FetchStatusError
		item.ErrorReason = reason
		item.TryNextAt = &tryNext

		if upsertErr := s.states.Upsert(ctx, &item); upsertErr != nil {
			return fmt.Errorf("schedule retry of %s %s: %w", item.ItemType, item.ItemID, upsertErr)
		}

		logger.Warn("Catalog item fetch failed, retry scheduled",
			logger.String("itemType", string(item.ItemType)),
			logger.String("itemId", item.ItemID),
			logger.String("reason", string(reason)),
			logger.Duration("retryIn", delay),
			logger.ErrorField(err))
		return nil
	}

	// Row absence is the "synced" signal.
	if err := s.states.Delete(ctx, item.ItemID, item.ItemType); err != nil {
		return fmt.Errorf("clear fetch state of %s %s: %w", item.ItemType, item.ItemID, err)
	}

	logger.Debug("Catalog item synced",
		logger.String("itemType", string(item.ItemType)),
		logger.String("itemId", item.ItemID))
	return nil
}

// fetchAndStore issues exactly one remote call for the item and persists
// the result. A persistence failure is returned as-is and classified as a
// local error, never treated as a silent success.
func (s *StaticItemSynchronizer) fetchAndStore(ctx context.Context, item model.FetchState) error {
	switch item.ItemType {
	case model.ItemTypeArtist:
		artist, err := s.remote.FetchArtist(ctx, item.ItemID)
		if err != nil {
			return err
		}
		if err := s.catalog.StoreArtist(ctx, artist); err != nil {
			return fmt.Errorf("store artist %s: %w", item.ItemID, err)
		}
	case model.ItemTypeAlbum:
		album, err := s.remote.FetchAlbum(ctx, item.ItemID)
		if err != nil {
			return err
		}
		if err := s.catalog.StoreAlbum(ctx, album); err != nil {
			return fmt.Errorf("store album %s: %w", item.ItemID, err)
		}
	case model.ItemTypeTrack:
		track, err := s.remote.FetchTrack(ctx, item.ItemID)
		if err != nil {
			return err
		}
		if err := s.catalog.StoreTrack(ctx, track); err != nil {
			return fmt.Errorf("store track %s: %w", item.ItemID, err)
		}
	case model.ItemTypeDiscography:
		payload, err := s.remote.FetchDiscography(ctx, item.ItemID)
		if err != nil {
			return err
		}
		if err := s.catalog.StoreDiscography(ctx, item.ItemID, payload.Albums); err != nil {
			return fmt.Errorf("store discography %s: %w", item.ItemID, err)
		}
	default:
		return fmt.Errorf("unknown item type %q", item.ItemType)
	}
	return nil
}

// classifyRetry maps a failure to its error reason and retry delay.
// Unclassified failures, including local persistence errors, get the
// conservative default.
func classifyRetry(err error) (model.ErrorReason, time.Duration) {
	var netErr *remote.NetworkError
	var authErr *remote.UnauthorizedError
	var notFoundErr *remote.NotFoundError

	switch {
	case errors.As(err, &netErr):
		return model.ErrorReasonNetwork, retryNetwork
	case errors.As(err, &authErr):
		return model.ErrorReasonClient, retryUnauthorized
	case errors.As(err, &notFoundErr):
		return model.ErrorReasonNotFound, retryNotFound
	default:
		return model.ErrorReasonUnknown, retryUnknown
	}
}
