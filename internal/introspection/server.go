// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package introspection serves the daemon's metrics and a report of the
// distribution point's state over HTTP.
package introspection

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/juju/errors"
	"github.com/juju/worker/v4/catacomb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 5 * time.Second

// Reporter describes its own state.
type Reporter interface {
	Report() map[string]any
}

// Logger represents the methods used by the server to log.
type Logger interface {
	Errorf(string, ...interface{})
	Infof(string, ...interface{})
}

// Config defines the operation of a Server.
type Config struct {
	Listener net.Listener
	Reporter Reporter
	Gatherer prometheus.Gatherer
	Logger   Logger
}

// Validate returns an error if config cannot drive a Server.
func (config Config) Validate() error {
	if config.Listener == nil {
		return errors.NotValidf("nil Listener")
	}
	if config.Reporter == nil {
		return errors.NotValidf("nil Reporter")
	}
	if config.Gatherer == nil {
		return errors.NotValidf("nil Gatherer")
	}
	if config.Logger == nil {
		return errors.NotValidf("nil Logger")
	}
	return nil
}

// Server is a worker serving /metrics and /report on its listener.
type Server struct {
	catacomb catacomb.Catacomb

	config Config
	server *http.Server
}

// NewServer starts a Server. The server owns the listener and closes it
// when it stops.
func NewServer(config Config) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	s := &Server{config: config}
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := catacomb.Invoke(catacomb.Plan{
		Site: &s.catacomb,
		Work: s.loop,
	}); err != nil {
		return nil, errors.Trace(err)
	}
	return s, nil
}

// Handler returns the routes the server serves.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	router.HandleFunc("/report", s.serveReport).Methods(http.MethodGet)
	return router
}

// Addr returns the address the server is listening on.
func (s *Server) Addr() net.Addr {
	return s.config.Listener.Addr()
}

// Kill is part of the worker.Worker interface.
func (s *Server) Kill() {
	s.catacomb.Kill(nil)
}

// Wait is part of the worker.Worker interface.
func (s *Server) Wait() error {
	return s.catacomb.Wait()
}

func (s *Server) loop() error {
	served := make(chan error, 1)
	go func() {
		served <- s.server.Serve(s.config.Listener)
	}()
	s.config.Logger.Infof("introspection serving on %s", s.Addr())

	select {
	case <-s.catacomb.Dying():
	case err := <-served:
		return errors.Annotate(err, "serving introspection")
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		s.config.Logger.Errorf("shutting down introspection: %v", err)
	}
	if err := <-served; err != nil && err != http.ErrServerClosed {
		return errors.Trace(err)
	}
	return s.catacomb.ErrDying()
}

func (s *Server) serveReport(w http.ResponseWriter, _ *http.Request) {
	data, err := json.MarshalIndent(s.config.Reporter.Report(), "", "  ")
	if err != nil {
		s.config.Logger.Errorf("encoding report: %v", err)
		http.Error(w, "cannot encode report", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(append(data, '\n'))
}
