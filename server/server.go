// Package server exposes the admin API and lead-capture endpoints over HTTP,
// plus a WebSocket feed of live job updates for the admin dashboard.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/realtechee/platform/am"
	"github.com/realtechee/platform/dataapi"
	"github.com/realtechee/platform/dispatch"
	"github.com/realtechee/platform/enhance"
	"github.com/realtechee/platform/errors"
	"github.com/realtechee/platform/leads"
	"github.com/realtechee/platform/notify"
)

const (
	// MaxClients bounds concurrent WebSocket connections
	MaxClients = 64

	// ShutdownTimeout bounds graceful shutdown
	ShutdownTimeout = 30 * time.Second
)

// Server wires every subsystem behind one HTTP listener.
type Server struct {
	db         *sql.DB
	cfg        *am.Config
	store      *dataapi.Store
	enhancer   *enhance.Service
	notifier   *notify.Service
	leads      *leads.Service
	pool       *dispatch.WorkerPool
	queue      *dispatch.Queue
	deliveries *notify.DeliveryStore
	limiter    *ipLimiter

	// WebSocket hub state
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client

	httpServer *http.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.RWMutex
	logger *zap.SugaredLogger
}

// Deps carries the subsystems the server serves. All fields are required
// except Pool (CLI tools may run the API without workers).
type Deps struct {
	DB         *sql.DB
	Store      *dataapi.Store
	Enhancer   *enhance.Service
	Notifier   *notify.Service
	Leads      *leads.Service
	Pool       *dispatch.WorkerPool
	Queue      *dispatch.Queue
	Deliveries *notify.DeliveryStore
}

// New creates a server. Call Start to begin listening.
func New(cfg *am.Config, deps Deps, logger *zap.SugaredLogger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		db:         deps.DB,
		cfg:        cfg,
		store:      deps.Store,
		enhancer:   deps.Enhancer,
		notifier:   deps.Notifier,
		leads:      deps.Leads,
		pool:       deps.Pool,
		queue:      deps.Queue,
		deliveries: deps.Deliveries,
		limiter:    newIPLimiter(cfg.Leads),
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
		logger:     logger.Named("server"),
	}
}

// Run starts the hub event loop. Runs until the server context is cancelled.
func (s *Server) Run() {
	for {
		select {
		case <-s.ctx.Done():
			s.logger.Debugw("Hub stopping due to context cancellation")
			return
		case client := <-s.register:
			s.handleClientRegister(client)
		case client := <-s.unregister:
			s.handleClientUnregister(client)
		}
	}
}

func (s *Server) handleClientRegister(client *Client) {
	s.mu.Lock()
	if len(s.clients) >= MaxClients {
		s.mu.Unlock()
		s.logger.Warnw("Max clients reached, rejecting connection",
			"client_id", client.id,
			"max_clients", MaxClients)
		client.close()
		return
	}
	s.clients[client] = true
	totalClients := len(s.clients)
	s.mu.Unlock()

	s.logger.Infow("Client connected",
		"client_id", client.id,
		"total_clients", totalClients)
}

func (s *Server) handleClientUnregister(client *Client) {
	s.mu.Lock()
	if _, ok := s.clients[client]; ok {
		delete(s.clients, client)
		totalClients := len(s.clients)
		s.mu.Unlock()

		// Close the connection only. The send channel is never closed once
		// the client is registered; the broadcaster may still hold a
		// snapshot that includes this client.
		client.conn.Close()
		s.logger.Infow("Client disconnected",
			"client_id", client.id,
			"total_clients", totalClients)
		return
	}
	s.mu.Unlock()
}

// Start runs the hub, the job-update broadcaster, and the HTTP listener.
// Blocks until the listener exits.
func (s *Server) Start() error {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Run()
	}()

	if s.queue != nil {
		s.startJobUpdateBroadcaster()
	}

	mux := http.NewServeMux()
	s.setupRoutes(mux)

	addr := fmt.Sprintf(":%d", s.cfg.Server.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.logger.Infow("Server ready",
		"url", fmt.Sprintf("http://localhost:%d", s.cfg.Server.Port),
		"port", s.cfg.Server.Port,
		"debug_notifications", s.cfg.Notify.Debug)

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop gracefully shuts down the listener, workers, and hub goroutines.
func (s *Server) Stop() error {
	s.logger.Infow("Initiating server shutdown")

	if s.httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer shutdownCancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warnw("HTTP shutdown error", "error", err)
		}
	}

	if s.pool != nil {
		s.logger.Infow("Stopping dispatch workers")
		s.pool.Stop()
	}

	// Close client connections before cancelling the context so the
	// read pumps unblock cleanly.
	s.mu.Lock()
	clientsToClose := make([]*Client, 0, len(s.clients))
	for client := range s.clients {
		clientsToClose = append(clientsToClose, client)
		delete(s.clients, client)
	}
	s.mu.Unlock()

	for _, client := range clientsToClose {
		client.conn.Close()
	}

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Infow("All goroutines stopped cleanly")
	case <-time.After(ShutdownTimeout):
		s.logger.Warnw("Goroutine shutdown timed out, forcing exit",
			"timeout", ShutdownTimeout)
	}

	s.logger.Infow("Server shutdown complete")
	return nil
}

// clientCount returns the number of connected WebSocket clients.
func (s *Server) clientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}
