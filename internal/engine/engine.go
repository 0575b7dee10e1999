// Package engine wires configuration, storage, notification and the step
// runner into one servable unit.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"folio/internal/logging"
	"folio/internal/pipeline"
	"folio/internal/spec"
	"folio/notify"
	"folio/storage"
)

type Engine struct {
	file     spec.File
	runner   *pipeline.Runner
	store    storage.Client
	notifier notify.Adapter
}

// Invoke runs one transformation step.
func (e *Engine) Invoke(ctx context.Context, inv spec.Invocation) spec.Response {
	return e.runner.RunStep(ctx, inv)
}

// Finalize bundles a finished execution and updates the transfer register.
func (e *Engine) Finalize(ctx context.Context, req spec.FinalizeRequest) spec.FinalizeResult {
	return e.runner.Finalize(ctx, req)
}

// Run serves the HTTP API until the context is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /invoke", e.handleInvoke)
	mux.HandleFunc("POST /finalize", e.handleFinalize)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", e.file.ListenPort),
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logging.L().Info("engine listening", "port", e.file.ListenPort)
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	e.Close()
	return err
}

// Close releases the storage and notifier handles.
func (e *Engine) Close() {
	if e.notifier != nil {
		_ = e.notifier.Close()
	}
	_ = e.store.Close()
}

func (e *Engine) handleInvoke(w http.ResponseWriter, r *http.Request) {
	var inv spec.Invocation
	if err := json.NewDecoder(r.Body).Decode(&inv); err != nil {
		writeJSON(w, http.StatusBadRequest, spec.Response{
			StatusCode: http.StatusBadRequest,
			Error:      fmt.Sprintf("decode event: %v", err),
			ErrorType:  spec.KindConfiguration,
		})
		return
	}
	resp := e.runner.RunStep(r.Context(), inv)
	writeJSON(w, resp.StatusCode, resp)
}

func (e *Engine) handleFinalize(w http.ResponseWriter, r *http.Request) {
	var req spec.FinalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, spec.FinalizeResult{
			StatusCode: http.StatusBadRequest,
			Error:      fmt.Sprintf("decode request: %v", err),
			ErrorType:  spec.KindConfiguration,
		})
		return
	}
	res := e.runner.Finalize(r.Context(), req)
	writeJSON(w, res.StatusCode, res)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
