package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"log/slog"

	"feedsift/internal/config"
	"feedsift/internal/logging"
	"feedsift/internal/store"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:   bind,
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
	}

	srv.server = &http.Server{
		Handler:           srv.routes(cfg.Paths.APIToken),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) routes(token string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", authMiddleware(token, s.handleStatus))
	mux.HandleFunc("/api/items", authMiddleware(token, s.handleItems))
	mux.HandleFunc("/api/channels", authMiddleware(token, s.handleChannels))
	mux.HandleFunc("/api/channels/allow", authMiddleware(token, s.channelMutation(func(ctx context.Context, name string) error {
		return s.daemon.store.AllowChannel(ctx, name)
	})))
	mux.HandleFunc("/api/channels/block", authMiddleware(token, s.channelMutation(func(ctx context.Context, name string) error {
		return s.daemon.store.BlockChannel(ctx, name)
	})))
	mux.HandleFunc("/api/channels/remove", authMiddleware(token, s.channelMutation(func(ctx context.Context, name string) error {
		return s.daemon.store.RemoveChannel(ctx, name)
	})))
	mux.HandleFunc("/api/stats", authMiddleware(token, s.handleStats))
	mux.HandleFunc("/api/enabled", authMiddleware(token, s.handleEnabled))
	mux.HandleFunc("/api/query", authMiddleware(token, s.handleQuery))
	mux.HandleFunc("/api/source", authMiddleware(token, s.handleSource))
	mux.HandleFunc("/api/reprocess", authMiddleware(token, s.handleReprocess))
	if s.daemon.metrics != nil {
		mux.Handle("/metrics", s.daemon.metrics.Handler())
	}
	return mux
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening",
		logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, s.daemon.Status(r.Context()))
}

type itemsResponse struct {
	Items []itemPayload `json:"items"`
}

type itemPayload struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Channel string `json:"channel"`
	Hidden  bool   `json:"hidden"`
	Decided bool   `json:"decided"`
}

func (s *apiServer) handleItems(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	states := s.daemon.view.Snapshot()
	items := make([]itemPayload, 0, len(states))
	for _, state := range states {
		items = append(items, itemPayload{
			ID:      string(state.ID),
			Title:   state.Title,
			Channel: state.Channel,
			Hidden:  state.Hidden,
			Decided: state.Decided,
		})
	}
	s.writeJSON(w, http.StatusOK, itemsResponse{Items: items})
}

type channelsResponse struct {
	Channels []channelPayload `json:"channels"`
}

type channelPayload struct {
	Name      string    `json:"name"`
	State     string    `json:"state"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *apiServer) handleChannels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	channels, err := s.daemon.store.Channels(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	payload := make([]channelPayload, 0, len(channels))
	for _, ch := range channels {
		payload = append(payload, channelPayload{
			Name:      ch.Name,
			State:     ch.State,
			UpdatedAt: ch.UpdatedAt,
		})
	}
	s.writeJSON(w, http.StatusOK, channelsResponse{Channels: payload})
}

type channelRequest struct {
	Name string `json:"name"`
}

// channelMutation adapts one list operation into a POST handler. The store's
// change notification triggers the daemon's reprocess reaction, so handlers
// never touch the scheduler directly.
func (s *apiServer) channelMutation(apply func(ctx context.Context, name string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		var req channelRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if strings.TrimSpace(req.Name) == "" {
			s.writeError(w, http.StatusBadRequest, "channel name is required")
			return
		}
		if err := apply(r.Context(), req.Name); err != nil {
			if errors.Is(err, store.ErrChannelNotFound) {
				s.writeError(w, http.StatusNotFound, err.Error())
				return
			}
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]string{"name": strings.TrimSpace(req.Name)})
	}
}

type statsResponse struct {
	TotalFiltered int64 `json:"total_filtered"`
	CachedTexts   int64 `json:"cached_texts"`
}

func (s *apiServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	total, err := s.daemon.store.TotalFiltered(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	cached, err := s.daemon.store.CountDetections(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, statsResponse{TotalFiltered: total, CachedTexts: cached})
}

type enabledRequest struct {
	Enabled bool `json:"enabled"`
}

func (s *apiServer) handleEnabled(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req enabledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.daemon.store.SetEnabled(r.Context(), req.Enabled); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"enabled": req.Enabled})
}

type queryRequest struct {
	Query string `json:"query"`
}

func (s *apiServer) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.daemon.view.SetQuery(req.Query)
	s.writeJSON(w, http.StatusOK, map[string]string{"query": strings.TrimSpace(req.Query)})
}

type sourceRequest struct {
	URL string `json:"url"`
}

func (s *apiServer) handleSource(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.writeJSON(w, http.StatusOK, map[string]any{
			"active":  s.daemon.view.ActiveSource(),
			"sources": s.daemon.view.Sources(),
		})
	case http.MethodPost:
		var req sourceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if strings.TrimSpace(req.URL) == "" {
			s.writeError(w, http.StatusBadRequest, "source url is required")
			return
		}
		s.daemon.view.SetSource(req.URL)
		s.writeJSON(w, http.StatusOK, map[string]string{"active": s.daemon.view.ActiveSource()})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) handleReprocess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.daemon.sched.ReprocessAll()
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "reprocessing"})
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
