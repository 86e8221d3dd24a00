package traveloverlay

import (
	stdctx "context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/inkeliz/gowebview"

	"github.com/kelsiar/fasttravel/internal/game"
	"github.com/kelsiar/fasttravel/internal/placement"
	"github.com/kelsiar/fasttravel/internal/travel"
)

//go:embed assets/*
var overlayAssets embed.FS

const (
	overlayScale        = 2.5
	overlayRange        = 120.0
	overlayWindowWidth  = int64(760)
	overlayWindowHeight = int64(720)
)

// TravelStatus is the orchestrator surface the overlay polls.
type TravelStatus interface {
	StateName() string
	LastOutcome() (travel.Outcome, bool)
	Prober() *placement.Prober
}

// GridSource optionally exposes the active scene grid for tile rendering.
type GridSource interface {
	ActiveGrid() (*game.Grid, bool)
}

// Overlay opens a lightweight window that polls the travel core and renders
// the scene grid around the actor plus the probes of the last ground search.
// Mainly useful for placement issues: it shows where the cascade looked and
// which probe finally hit.
type Overlay struct {
	status TravelStatus
	world  game.WorldQuery
	grids  GridSource
	logger *slog.Logger

	running atomic.Bool

	mu     sync.Mutex
	server *overlayServer
	window *overlayWindow
}

func New(status TravelStatus, world game.WorldQuery, grids GridSource, logger *slog.Logger) *Overlay {
	return &Overlay{
		status: status,
		world:  world,
		grids:  grids,
		logger: logger.With(slog.String("component", "traveloverlay")),
	}
}

type overlayServer struct {
	overlay  *Overlay
	listener net.Listener
	server   *http.Server
}

type overlayWindow struct {
	view gowebview.WebView
}

func newOverlayServer(ov *Overlay) (*overlayServer, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("listen overlay: %w", err)
	}

	assetsFS, err := fs.Sub(overlayAssets, "assets")
	if err != nil {
		return nil, fmt.Errorf("load overlay assets: %w", err)
	}
	fileServer := http.FileServer(http.FS(assetsFS))

	mux := http.NewServeMux()
	srv := &overlayServer{
		overlay:  ov,
		listener: listener,
		server: &http.Server{
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
		},
	}

	mux.Handle("/", fileServer)
	mux.HandleFunc("/favicon.ico", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/data", srv.handleData)

	return srv, nil
}

func (s *overlayServer) start() error {
	if s == nil {
		return errors.New("nil overlay server")
	}

	go func() {
		if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.overlay.logger.Error("Overlay server stopped", slog.Any("error", err))
		}
	}()

	return nil
}

func (s *overlayServer) stop() {
	if s == nil {
		return
	}

	ctx, cancel := stdctx.WithTimeout(stdctx.Background(), time.Second)
	defer cancel()
	_ = s.server.Shutdown(ctx)
	_ = s.listener.Close()
}

func (s *overlayServer) url() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return fmt.Sprintf("http://%s/", s.listener.Addr().String())
}

func (s *overlayServer) handleData(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")

	payload := s.overlay.collectData()
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.overlay.logger.Debug("Failed to encode overlay payload", slog.Any("error", err))
	}
}

func newOverlayWindow(url string) (*overlayWindow, error) {
	windowSize := &gowebview.Point{X: overlayWindowWidth, Y: overlayWindowHeight}
	w, err := gowebview.New(&gowebview.Config{
		URL: url,
		WindowConfig: &gowebview.WindowConfig{
			Title: "Travel Overlay",
			Size:  windowSize,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create overlay window: %w", err)
	}

	w.SetSize(windowSize, gowebview.HintFixed)

	return &overlayWindow{view: w}, nil
}

func (w *overlayWindow) run(onClosed func()) {
	if w == nil || w.view == nil {
		return
	}

	go func() {
		defer func() {
			w.view.Destroy()
		}()

		w.view.Run()
		if onClosed != nil {
			onClosed()
		}
	}()
}

func (w *overlayWindow) close() {
	if w == nil || w.view == nil {
		return
	}
	w.view.Terminate()
}

type overlayPoint struct {
	X    float64 `json:"x"`
	Z    float64 `json:"z"`
	Size float64 `json:"size"`
	Kind string  `json:"kind"`
	Hit  bool    `json:"hit"`
}

type overlayTile struct {
	X    float64 `json:"x"`
	Z    float64 `json:"z"`
	Type int     `json:"type"`
}

type overlayPayload struct {
	Scale  float64        `json:"scale"`
	State  string         `json:"state"`
	Tiles  []overlayTile  `json:"tiles"`
	Probes []overlayPoint `json:"probes"`
	Result *overlayPoint  `json:"result,omitempty"`
	Meta   string         `json:"meta"`
}

func (ov *Overlay) Toggle() error {
	if ov.running.Load() {
		ov.Stop()
		return nil
	}
	return ov.Start()
}

func (ov *Overlay) IsRunning() bool {
	if ov == nil {
		return false
	}
	return ov.running.Load()
}

func (ov *Overlay) Start() error {
	if !ov.running.CompareAndSwap(false, true) {
		return nil
	}

	server, err := newOverlayServer(ov)
	if err != nil {
		ov.running.Store(false)
		return err
	}

	ov.mu.Lock()
	ov.server = server
	ov.mu.Unlock()

	if err := server.start(); err != nil {
		ov.running.Store(false)
		return err
	}

	window, err := newOverlayWindow(server.url())
	if err != nil {
		ov.stopServer()
		ov.running.Store(false)
		return err
	}

	ov.setWindow(window)
	window.run(ov.windowClosed)

	ov.logger.Info("Overlay window opened", slog.String("url", server.url()))
	return nil
}

func (ov *Overlay) Stop() {
	if !ov.running.CompareAndSwap(true, false) {
		return
	}

	ov.logger.Info("Stopping overlay")
	ov.stopServer()
	ov.stopWindow()
}

func (ov *Overlay) setWindow(w *overlayWindow) {
	ov.mu.Lock()
	defer ov.mu.Unlock()
	ov.window = w
}

func (ov *Overlay) stopWindow() {
	ov.mu.Lock()
	w := ov.window
	ov.window = nil
	ov.mu.Unlock()

	if w != nil {
		w.close()
	}
}

func (ov *Overlay) windowClosed() {
	if ov.running.CompareAndSwap(true, false) {
		ov.stopServer()
	}
}

func (ov *Overlay) stopServer() {
	ov.mu.Lock()
	server := ov.server
	ov.server = nil
	ov.mu.Unlock()

	if server != nil {
		server.stop()
	}
}

func (ov *Overlay) collectData() overlayPayload {
	payload := overlayPayload{
		Scale: overlayScale,
		State: ov.status.StateName(),
		Meta:  "Waiting for actor...",
	}

	actor, found := ov.world.FindControlledActor()
	if !found {
		return payload
	}
	center := actor.Position()

	payload.Tiles = ov.collectTiles(center)
	payload.Probes, payload.Result = ov.collectProbes(center)

	meta := fmt.Sprintf("state:%s tiles:%d probes:%d", payload.State, len(payload.Tiles), len(payload.Probes))
	if outcome, ok := ov.status.LastOutcome(); ok {
		if outcome.Succeeded {
			meta += " | last:ok"
			if !outcome.Charged {
				meta += " (uncharged)"
			}
		} else {
			meta += fmt.Sprintf(" | last:%s", outcome.Reason)
		}
	}
	payload.Meta = meta

	return payload
}

func (ov *Overlay) collectTiles(center game.Position) []overlayTile {
	if ov.grids == nil {
		return nil
	}
	grid, ok := ov.grids.ActiveGrid()
	if !ok {
		return nil
	}

	tiles := make([]overlayTile, 0, 5000)
	rangeSize := int(overlayRange)
	centerX := int(center.X)
	centerZ := int(center.Z)

	startX := max(centerX-rangeSize, grid.OffsetX)
	endX := min(centerX+rangeSize, grid.OffsetX+grid.Width-1)
	startZ := max(centerZ-rangeSize, grid.OffsetZ)
	endZ := min(centerZ+rangeSize, grid.OffsetZ+grid.Depth-1)

	for worldZ := startZ; worldZ <= endZ; worldZ++ {
		row := grid.Cells[worldZ-grid.OffsetZ]
		for worldX := startX; worldX <= endX; worldX++ {
			cell := row[worldX-grid.OffsetX]
			tiles = append(tiles, overlayTile{
				X:    float64(worldX) - center.X,
				Z:    float64(worldZ) - center.Z,
				Type: int(cell.Type),
			})
		}
	}

	return tiles
}

func (ov *Overlay) collectProbes(center game.Position) ([]overlayPoint, *overlayPoint) {
	trace, ok := ov.status.Prober().LastTrace()
	if !ok {
		return nil, nil
	}

	probes := make([]overlayPoint, 0, len(trace.Attempts))
	for _, attempt := range trace.Attempts {
		dx := attempt.Position.X - center.X
		dz := attempt.Position.Z - center.Z
		if !withinRange(dx, dz) {
			continue
		}

		probes = append(probes, overlayPoint{
			X:    dx,
			Z:    dz,
			Size: 2,
			Kind: attempt.Stage,
			Hit:  attempt.Hit,
		})

		if len(probes) >= 400 {
			break
		}
	}

	var result *overlayPoint
	if trace.Result != nil {
		result = &overlayPoint{
			X:    trace.Result.Position.X - center.X,
			Z:    trace.Result.Position.Z - center.Z,
			Size: 3.5,
			Kind: trace.Result.Source.String(),
			Hit:  true,
		}
	}

	return probes, result
}

func withinRange(dx, dz float64) bool {
	return math.Abs(dx) <= overlayRange && math.Abs(dz) <= overlayRange
}
