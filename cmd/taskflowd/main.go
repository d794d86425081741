// Command taskflowd is a small HTTP/websocket demo of the asynctask
// package: it exposes an external UI collaborator with a job queue backed
// by a Manager, mirroring the teacher's FrankenPHP demo server shape
// (env-driven config, tint-colored slog, graceful shutdown) but fronting
// the Task/Watcher/Manager core instead of a PHP runtime.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/johanjanssens/taskflow/asynctask"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: time.Kitchen,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	numCPU := runtime.NumCPU()
	workerLimit := numCPU * 4
	if v := os.Getenv("TASKFLOW_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			workerLimit = n
		}
	}

	mgr := asynctask.NewManager(
		asynctask.WithWorkerLimit(workerLimit),
		asynctask.WithLogger(logger.Handler()),
	)
	defer mgr.Shutdown()

	srv := newServer(logger)

	addr := ":8081"
	if port := os.Getenv("TASKFLOW_PORT"); port != "" {
		addr = ":" + port
	}

	httpServer := &http.Server{
		Addr:    addr,
		Handler: withManager(mgr, srv.routes()),
	}

	go func() {
		logger.Info("starting taskflowd", "addr", addr, "workers", workerLimit, "cpus", numCPU)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")
	mgr.CancelAllAndWait()
	if err := httpServer.Shutdown(context.Background()); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}
}

// withManager stores mgr in every inbound request's context, so handlers
// retrieve it via asynctask.FromContext(r.Context()) instead of a struct
// field -- the way a collaborator reaching into this package's Manager
// through request-scoped context, rather than direct injection, is meant
// to be done.
func withManager(mgr *asynctask.Manager, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(asynctask.WithContext(r.Context(), mgr)))
	})
}

type server struct {
	logger *slog.Logger
	up     websocket.Upgrader
}

func newServer(logger *slog.Logger) *server {
	return &server{
		logger: logger,
		up:     websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
	}
}

func (s *server) routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/tasks", s.handleSubmit).Methods(http.MethodPost)
	r.HandleFunc("/tasks/{id}", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/tasks/{id}/cancel", s.handleCancel).Methods(http.MethodPost)
	r.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.handleWS).Methods(http.MethodGet)
	return r
}

type submitRequest struct {
	Name  string `json:"name"`
	Steps int    `json:"steps"`
}

// handleSubmit starts a simulated multi-step job through RunTaskAsync and
// returns its task ID immediately; clients poll /tasks/{id} or subscribe to
// /ws to observe its progress.
func (s *server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Steps <= 0 {
		req.Steps = 5
	}
	if req.Name == "" {
		req.Name = "job"
	}

	mgr := asynctask.FromContext(r.Context())
	future := asynctask.RunTaskAsync[string](mgr, context.WithoutCancel(r.Context()), simulatedJob(req.Name, req.Steps))
	if !future.IsValid() {
		http.Error(w, "failed to start job", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"id": future.ID().String()})
}

func simulatedJob(name string, steps int) asynctask.RunnableFunc[string] {
	return func(ctx context.Context, p *asynctask.Promise[string]) (string, error) {
		if err := p.BeginProgressSubSteps(steps); err != nil {
			return "", err
		}
		defer p.EndProgressSubSteps()

		for i := 0; i < steps; i++ {
			p.SetProgressText(fmt.Sprintf("%s: step %d/%d", name, i+1, steps))
			select {
			case <-time.After(time.Duration(50+rand.Intn(150)) * time.Millisecond):
			case <-ctx.Done():
				return "", ctx.Err()
			}
			if i < steps-1 {
				p.NextProgressSubStep()
			}
		}
		return fmt.Sprintf("%s: completed %d steps", name, steps), nil
	}
}

func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	idStr := mux.Vars(r)["id"]
	id, err := parseID(idStr)
	if err != nil {
		http.Error(w, "invalid task id", http.StatusBadRequest)
		return
	}
	watcher, ok := asynctask.FromContext(r.Context()).Lookup(id)
	if !ok {
		http.Error(w, "task not found", http.StatusNotFound)
		return
	}
	writeWatcherStatus(w, id, watcher)
}

func (s *server) handleCancel(w http.ResponseWriter, r *http.Request) {
	idStr := mux.Vars(r)["id"]
	id, err := parseID(idStr)
	if err != nil {
		http.Error(w, "invalid task id", http.StatusBadRequest)
		return
	}
	watcher, ok := asynctask.FromContext(r.Context()).Lookup(id)
	if !ok {
		http.Error(w, "task not found", http.StatusNotFound)
		return
	}
	watcher.Cancel()
	w.WriteHeader(http.StatusAccepted)
}

func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(asynctask.FromContext(r.Context()).Stats())
}

// handleWS streams ManagerEvent notifications (task started/finished) to a
// connected browser client -- the observer protocol SPEC_FULL.md §6
// describes a UI bridge consuming instead of polling.
func (s *server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.up.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	mgr := asynctask.FromContext(r.Context())

	// Events() is a single shared channel; with more than one websocket
	// client connected they split the event stream rather than each
	// seeing every event. Fine for this demo, not a broadcast bus.
	for ev := range mgr.Events() {
		payload := map[string]string{
			"kind":   ev.Kind,
			"taskId": ev.TaskID.String(),
		}
		if err := conn.WriteJSON(payload); err != nil {
			s.logger.Debug("websocket client disconnected", "error", err)
			return
		}
	}
}

func parseID(s string) (asynctask.ID, error) {
	var id asynctask.ID
	if s == "" {
		return id, fmt.Errorf("empty id")
	}
	return asynctask.ParseID(s)
}

func writeWatcherStatus(w http.ResponseWriter, id asynctask.ID, watcher *asynctask.Watcher) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"id":            id.String(),
		"finished":      watcher.IsFinished(),
		"canceled":      watcher.IsCanceled(),
		"progressValue": watcher.ProgressValue(),
		"progressMax":   watcher.ProgressMaximum(),
		"progressText":  watcher.ProgressText(),
	})
}
