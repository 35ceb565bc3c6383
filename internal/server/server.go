// Package server runs the livehub http server until told to stop
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/practable/livehub/internal/api"
	"github.com/practable/livehub/internal/hub"
	"github.com/practable/livehub/internal/metrics"
	"github.com/practable/livehub/internal/session"
	"github.com/practable/livehub/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

// Config represents the server configuration
type Config struct {

	// Listen is the host:port to listen on
	Listen string

	// DB is the path to the sqlite database
	DB string

	// Secret signs bearer tokens; bearer tokens are refused when empty
	Secret string

	// Audience is the aud claim required in bearer tokens
	Audience string

	CookieName string

	RoomBuffer   int
	EventsBuffer int

	// TidyEvery is how often empty rooms are pruned
	TidyEvery time.Duration

	// StaticDir holds the web pages served under /static/
	StaticDir string

	// Registry collects the metrics; a new one is made when nil
	Registry *prometheus.Registry

	// Ready, if not nil, receives the listening address once serving
	Ready chan<- string
}

const shutdownWait = 5 * time.Second

// Run serves until closed is closed, then shuts down the http server, closes
// every connection and the store. It returns early with an error if the store
// or listener cannot be opened.
func Run(closed <-chan struct{}, parentwg *sync.WaitGroup, config Config) error {

	defer parentwg.Done()

	reg := config.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	hc := hub.NewDefaultConfig()
	if config.RoomBuffer > 0 {
		hc.WithRoomBuffer(config.RoomBuffer)
	}
	if config.EventsBuffer > 0 {
		hc.WithEventsBuffer(config.EventsBuffer)
	}

	h := hub.New(*hc, metrics.New(reg))
	defer h.Close()

	s, err := store.Open(config.DB, h)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.Init(context.Background()); err != nil {
		return err
	}

	cookieName := config.CookieName
	if cookieName == "" {
		cookieName = "sid"
	}

	app := &api.App{
		Hub:       h,
		Store:     s,
		Sessions:  session.NewResolver(s, cookieName, config.Secret, config.Audience),
		Gatherer:  reg,
		StaticDir: config.StaticDir,
	}

	ln, err := net.Listen("tcp", config.Listen)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           app.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		// returns ErrServerClosed on graceful close
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			log.WithField("error", err).Error("http.Serve")
		}
		log.Debug("Exiting http.Server")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		tidy(closed, h, config.TidyEvery)
	}()

	log.WithField("listen", ln.Addr().String()).Info("Listening")

	if config.Ready != nil {
		config.Ready <- ln.Addr().String()
	}

	<-closed // wait for shutdown

	log.Debug("Starting to close http.Server")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownWait)
	defer cancel()

	srv.SetKeepAlivesEnabled(false)
	if err := srv.Shutdown(ctx); err != nil {
		log.WithField("error", err).Error("Could not gracefully shutdown http.Server")
	}

	// websocket connections are hijacked, so Shutdown does not wait for them
	h.Close()

	wg.Wait()

	log.Trace("Server done")

	return nil
}

// tidy prunes empty rooms every period until closed
func tidy(closed <-chan struct{}, h *hub.Hub, every time.Duration) {

	if every <= 0 {
		every = 5 * time.Minute
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case <-ticker.C:
			h.Prune()
		}
	}
}
