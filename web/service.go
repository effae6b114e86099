package web

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/zeptools/gw-docprint/svc"
)

const ShutdownTimeout = 10 * time.Second

type Service struct {
	Ctx    context.Context    // Service Context
	cancel context.CancelFunc // Service Context CancelFunc
	mu     sync.Mutex
	state  int        // internal service state
	done   chan error // Shutdown Error Channel
	Server *http.Server
}

func NewService(parentCtx context.Context, addr string, router http.Handler) *Service {
	svcCtx, svcCancel := context.WithCancel(parentCtx)
	return &Service{
		Ctx:    svcCtx,
		cancel: svcCancel,
		state:  svc.StateREADY,
		done:   make(chan error, 1),
		Server: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			BaseContext:       func(net.Listener) context.Context { return svcCtx },
		},
	}
}

func (s *Service) Name() string {
	return "WebService"
}

// Start binds the listen address and serves in the background.
// Bootstrapping errors are returned immediately.
// Runtime errors are pushed into Done().
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != svc.StateREADY {
		return fmt.Errorf("cannot start. state=%s", svc.StateName(s.state))
	}
	listener, err := net.Listen("tcp", s.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen(%q) failed: %w", s.Server.Addr, err)
	}
	s.state = svc.StateRUNNING
	go s.run(listener)
	return nil
}

func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != svc.StateRUNNING {
		log.Println("[ERROR][WEB] cannot stop. not running")
		return
	}
	s.state = svc.StateSTOPPED
	s.cancel()
	log.Println("[INFO][WEB] service stopped")
}

func (s *Service) Done() <-chan error {
	return s.done
}

// Addr returns the bound address once started.
func (s *Service) Addr() string {
	return s.Server.Addr
}

func (s *Service) run(listener net.Listener) {
	go func() {
		<-s.Ctx.Done()
		log.Println("[INFO][WEB] shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := s.Server.Shutdown(ctx); err != nil {
			log.Printf("[ERROR][WEB] shutdown: %v", err)
		}
	}()
	log.Printf("[INFO][WEB] listening on %s ...", listener.Addr())
	err := s.Server.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		s.done <- nil // clean shutdown
		return
	}
	s.done <- err
}
