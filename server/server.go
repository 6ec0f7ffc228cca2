package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"fmsync/core/engine"
	"fmsync/logger"
	"fmsync/model"
	"fmsync/repository"

	"github.com/gorilla/mux"
)

// StatusServer exposes the daemon's observable state and fetch surface on
// a local HTTP listener, for tooling and the UI process.
type StatusServer struct {
	states       repository.FetchStateRepository
	catalog      repository.CatalogRepository
	synchronizer *engine.StaticItemSynchronizer
	fetcher      *engine.DiscographyFetcher
	connState    func() model.ConnectionState

	srv *http.Server
}

// NewStatusServer wires the status server. connState supplies the current
// transport state.
func NewStatusServer(
	addr string,
	states repository.FetchStateRepository,
	catalog repository.CatalogRepository,
	synchronizer *engine.StaticItemSynchronizer,
	fetcher *engine.DiscographyFetcher,
	connState func() model.ConnectionState,
) *StatusServer {
	s := &StatusServer{
		states:       states,
		catalog:      catalog,
		synchronizer: synchronizer,
		fetcher:      fetcher,
		connState:    connState,
	}

	router := mux.NewRouter()
	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	router.HandleFunc("/api/fetch/{type}/{id}", s.handleRequestFetch).Methods(http.MethodPost)
	router.HandleFunc("/api/discography/{artist_id}", s.handleGetDiscography).Methods(http.MethodGet)
	router.HandleFunc("/api/discography/{artist_id}/first-page", s.handleFirstPage).Methods(http.MethodPost)
	router.HandleFunc("/api/discography/{artist_id}/more", s.handleMore).Methods(http.MethodPost)

	s.srv = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Start listens in a background goroutine.
func (s *StatusServer) Start() {
	go func() {
		logger.Info("Status server listening", logger.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Status server failed", logger.ErrorField(err))
		}
	}()
}

// Shutdown stops the listener.
func (s *StatusServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *StatusServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *StatusServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	counts, err := s.states.CountByStatus(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"fetchStates":   counts,
		"connection":    s.connState(),
		"discographies": s.fetcher.States(),
	})
}

func (s *StatusServer) handleRequestFetch(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	itemType := model.ItemType(vars["type"])
	itemID := vars["id"]

	switch itemType {
	case model.ItemTypeArtist, model.ItemTypeAlbum, model.ItemTypeTrack, model.ItemTypeDiscography:
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown item type"})
		return
	}

	if err := s.synchronizer.Request(r.Context(), itemType, itemID); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func (s *StatusServer) handleGetDiscography(w http.ResponseWriter, r *http.Request) {
	artistID := mux.Vars(r)["artist_id"]

	rows, err := s.catalog.GetArtistAlbums(r.Context(), artistID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"state": s.fetcher.State(artistID),
		"rows":  rows,
	})
}

func (s *StatusServer) handleFirstPage(w http.ResponseWriter, r *http.Request) {
	s.runFetch(w, func() error {
		return s.fetcher.FetchFirstPage(r.Context(), mux.Vars(r)["artist_id"])
	})
}

func (s *StatusServer) handleMore(w http.ResponseWriter, r *http.Request) {
	s.runFetch(w, func() error {
		return s.fetcher.FetchMore(r.Context(), mux.Vars(r)["artist_id"])
	})
}

func (s *StatusServer) runFetch(w http.ResponseWriter, fetch func() error) {
	err := fetch()
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": "fetched"})
	case errors.Is(err, engine.ErrFetchInProgress):
		writeJSON(w, http.StatusConflict, map[string]string{"status": "in progress"})
	case errors.Is(err, engine.ErrAlreadyComplete):
		writeJSON(w, http.StatusOK, map[string]string{"status": "complete"})
	default:
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Warn("Failed to encode status response", logger.ErrorField(err))
	}
}
