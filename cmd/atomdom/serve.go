package main

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/vango-dev/atomdom"
	"github.com/vango-dev/atomdom/el"
	"github.com/vango-dev/atomdom/internal/config"
	"github.com/vango-dev/atomdom/internal/errors"
	"github.com/vango-dev/atomdom/pkg/atom"
	"github.com/vango-dev/atomdom/pkg/metrics"
	"github.com/vango-dev/atomdom/pkg/middleware"
	"github.com/vango-dev/atomdom/pkg/patchstream"
	"github.com/vango-dev/atomdom/pkg/render"
	vdom "github.com/vango-dev/atomdom/pkg/vdom"
	"github.com/vango-dev/atomdom/pkg/vtest"
)

const pageStyle = `body{font-family:system-ui,sans-serif;margin:2rem}` +
	`ul{list-style:none;padding:0}li{padding:.25rem .5rem}`

func serveCmd() *cobra.Command {
	var (
		configDir string
		addr      string
		interval  time.Duration
		watch     bool
	)

	cmd := &cobra.Command{
		Use:   "serve [tree.json...]",
		Short: "Serve a live view and stream its patches",
		Long: `Mount a view, re-render it on every tick and publish each backend
mutation as a JSON frame over WebSocket.

Without arguments a built-in demo is served. With tree files the view
cycles through them, one per tick. --watch reloads a tree file when it
changes on disk.

Endpoints:
  /              the current target rendered as HTML
  /tree.json     the last committed tree
  /healthz       liveness
  <streamPath>   the patch stream (default /stream)
  <metricsPath>  Prometheus metrics (default /metrics)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadServeConfig(configDir, cmd.Flags().Changed("config"))
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if interval <= 0 {
				return errors.New("E500").WithDetail("--interval must be positive")
			}

			frames, err := readFrames(args)
			if err != nil {
				return err
			}
			if !watch {
				args = nil
			}
			return runServe(cmd.OutOrStdout(), cfg, frames, args, interval)
		},
	}

	cmd.Flags().StringVarP(&configDir, "config", "c", ".", "Directory containing "+config.ConfigFileName+" or "+config.YAMLConfigFileName)
	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (overrides config)")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "Re-render interval")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Reload tree files when they change")

	return cmd
}

// loadServeConfig loads the config from dir. A missing file yields the
// defaults unless the directory was given explicitly.
func loadServeConfig(dir string, explicit bool) (*config.Config, error) {
	cfg, err := config.Load(dir)
	if err == nil {
		return cfg, nil
	}
	var d *errors.Diagnostic
	if !explicit && stderrors.As(err, &d) && d.Code == "E100" {
		return config.New(), nil
	}
	return nil, err
}

// readFrames reads and validates tree files. Trees are decoded again on
// every render, since a committed tree holds bindings.
func readFrames(paths []string) ([][]byte, error) {
	frames := make([][]byte, 0, len(paths))
	dec := vdom.NewTreeDecoder()
	for _, path := range paths {
		if path == "-" {
			return nil, errors.New("E500").WithDetail("serve reads trees from files, not stdin")
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.New("E200").WithDetail(path).Wrap(err)
		}
		if _, err := readTree(dec, path, bytes.NewReader(data)); err != nil {
			return nil, err
		}
		frames = append(frames, data)
	}
	return frames, nil
}

// appConfig maps the file configuration onto the App configuration.
func appConfig(cfg *config.Config, logger *slog.Logger, collector *metrics.Collector) atomdom.Config {
	out := atomdom.Config{
		Logger:            logger,
		MaxChainedFlushes: cfg.Runtime.MaxChainedFlushes,
		MicrotaskBudget:   cfg.Runtime.MicrotaskBudget,
		Strict:            cfg.Runtime.Strict,
	}
	if collector != nil {
		out.RuntimeObserver = collector
		out.CommitObserver = collector
	}
	return out
}

// originChecker allows the listed origins, or nil for the hub default.
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// liveServer is a mounted view behind an HTTP handler.
type liveServer struct {
	cfg      *config.Config
	logger   *slog.Logger
	app      *atomdom.App
	hub      *patchstream.Hub
	stream   *patchstream.Stream
	backend  *vtest.Backend
	registry *prometheus.Registry
	renderer *render.Renderer
	decoder  *vdom.TreeDecoder
	frames   [][]byte
	interval time.Duration

	// Owned by the loop.
	view       *atomdom.View
	ticks      *atom.Atom[int]
	revision   *atom.Atom[int] // bumped when a frame is reloaded
	cancelTick func() bool

	done chan struct{}
}

func newLiveServer(cfg *config.Config, logger *slog.Logger, frames [][]byte, interval time.Duration) *liveServer {
	s := &liveServer{
		cfg:      cfg,
		logger:   logger,
		backend:  vtest.NewBackend(),
		renderer: render.New(render.Config{}),
		decoder:  vdom.NewTreeDecoder(),
		frames:   frames,
		interval: interval,
		done:     make(chan struct{}),
	}

	var collector *metrics.Collector
	hubOpts := []patchstream.HubOption{
		patchstream.WithHubLogger(logger),
		patchstream.WithWriteTimeout(cfg.WriteTimeout()),
	}
	if check := originChecker(cfg.Server.AllowedOrigins); check != nil {
		hubOpts = append(hubOpts, patchstream.WithCheckOrigin(check))
	}
	if cfg.Metrics.Enabled {
		s.registry = prometheus.NewRegistry()
		s.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		collector = metrics.New(
			metrics.WithRegistry(s.registry),
			metrics.WithNamespace(cfg.Metrics.Namespace),
		)
		hubOpts = append(hubOpts, patchstream.WithObserver(collector))
	}

	s.hub = patchstream.NewHub(hubOpts...)
	s.stream = patchstream.New(s.backend, s.hub)
	s.app = atomdom.New(appConfig(cfg, logger, collector))
	return s
}

// Handler returns the HTTP routes.
func (s *liveServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.OpenTelemetry(middleware.WithRequestFilter(func(r *http.Request) bool {
		return r.URL.Path != "/healthz"
	})))
	if s.registry != nil {
		r.Use(middleware.Prometheus(
			middleware.WithRegistry(s.registry),
			middleware.WithNamespace(s.cfg.Metrics.Namespace),
		))
	}

	r.Get("/", s.handlePage)
	r.Get("/tree.json", s.handleTree)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		io.WriteString(w, "ok\n")
	})
	r.Handle(s.cfg.Server.StreamPath, s.hub)
	if s.registry != nil {
		r.Handle(s.cfg.Metrics.Path, promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}
	return r
}

// Start runs the loop and mounts the view. The loop stops when ctx is
// done or Stop is called.
func (s *liveServer) Start(ctx context.Context) error {
	go func() {
		defer close(s.done)
		if err := s.app.Run(ctx); err != nil && !stderrors.Is(err, context.Canceled) {
			s.logger.Error("serve: loop stopped", "error", err)
		}
	}()

	var mountErr error
	err := s.app.Do(ctx, func() {
		s.ticks = atom.NewAtom(s.app.Runtime(), 0, atom.Named[int]("ticks"))
		s.revision = atom.NewAtom(s.app.Runtime(), 0, atom.Named[int]("revision"))
		s.view, mountErr = s.app.Mount(s.stream, s.stream.Wrap(s.backend.Container()), s.render)
		if mountErr == nil {
			s.cancelTick = s.app.Loop().After(s.interval, s.tick)
		}
	})
	if err != nil {
		return err
	}
	if mountErr != nil {
		return errors.New("E300").Wrap(mountErr)
	}
	return nil
}

// Stop disposes the view, closes the subscribers and stops the loop.
func (s *liveServer) Stop(ctx context.Context) error {
	_ = s.app.Do(ctx, func() {
		if s.cancelTick != nil {
			s.cancelTick()
			s.cancelTick = nil
		}
		if s.view != nil {
			if err := s.view.Dispose(); err != nil {
				s.logger.Warn("serve: dispose view", "error", err)
			}
		}
	})
	s.hub.Close()
	err := s.app.Shutdown(ctx)
	select {
	case <-s.done:
	case <-ctx.Done():
	}
	return err
}

func (s *liveServer) tick() {
	s.ticks.Update(func(n int) int { return n + 1 })
	s.cancelTick = s.app.Loop().After(s.interval, s.tick)
}

// ReplaceFrame swaps the contents of frame i and re-renders.
func (s *liveServer) ReplaceFrame(ctx context.Context, i int, data []byte) error {
	return s.app.Do(ctx, func() {
		if i < 0 || i >= len(s.frames) {
			return
		}
		s.frames[i] = data
		s.revision.Update(func(n int) int { return n + 1 })
	})
}

// Watch reloads frames from paths, which must match the frames given to
// newLiveServer, until ctx is done.
func (s *liveServer) Watch(ctx context.Context, paths []string) (<-chan struct{}, error) {
	w := &frameWatcher{
		paths:  paths,
		logger: s.logger,
		onChange: func(i int, data []byte) {
			if err := s.ReplaceFrame(ctx, i, data); err != nil && ctx.Err() == nil {
				s.logger.Warn("serve: reload frame", "error", err)
			}
		},
	}
	return w.Watch(ctx)
}

func (s *liveServer) render() *vdom.VNode {
	tick := s.ticks.Get()
	s.revision.Get()
	if len(s.frames) == 0 {
		return demoTree(s.cfg.Server.Title, tick)
	}
	tree, err := s.decoder.Decode(s.frames[tick%len(s.frames)])
	if err != nil {
		// Frames were validated at startup.
		panic(err)
	}
	return tree
}

var demoColors = []string{"red", "orange", "yellow", "green", "blue", "violet"}

// demoTree shows a counter and a keyed list that rotates on every tick.
func demoTree(title string, tick int) *vdom.VNode {
	return el.Main(el.ID("app"),
		el.H1(title),
		el.P(el.Class("tick"), el.Textf("tick %d", tick)),
		el.Ul(el.Repeat(len(demoColors), func(i int) *vdom.VNode {
			color := demoColors[(i+tick)%len(demoColors)]
			return el.Li(el.Key(color), el.ClassIf(i == 0, "first"), el.Style("color:"+color), color)
		})),
	)
}

func (s *liveServer) handlePage(w http.ResponseWriter, r *http.Request) {
	scheme := "ws"
	if r.TLS != nil {
		scheme = "wss"
	}
	page := render.Page{
		Title:     s.cfg.Server.Title,
		Styles:    []string{pageStyle},
		StreamURL: scheme + "://" + r.Host + s.cfg.Server.StreamPath,
	}

	var (
		buf       bytes.Buffer
		renderErr error
	)
	err := s.app.Do(r.Context(), func() {
		page.Target = s.backend.Tree()
		renderErr = s.renderer.RenderPage(&buf, page)
	})
	if err == nil {
		err = renderErr
	}
	if err != nil {
		s.logger.Error("serve: render page", "error", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}

func (s *liveServer) handleTree(w http.ResponseWriter, r *http.Request) {
	var (
		data    []byte
		jsonErr error
	)
	err := s.app.Do(r.Context(), func() {
		var current *vdom.VNode
		if s.view != nil {
			current = s.view.Current()
		}
		data, jsonErr = vdom.MarshalTree(current)
	})
	if err == nil {
		err = jsonErr
	}
	if err != nil {
		s.logger.Error("serve: encode tree", "error", err)
		http.Error(w, "encode failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func runServe(out io.Writer, cfg *config.Config, frames [][]byte, watch []string, interval time.Duration) error {
	logger := cfg.Logger(os.Stderr)
	s := newLiveServer(cfg, logger, frames, interval)

	// Handle signals
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	if err := s.Start(ctx); err != nil {
		return err
	}
	if len(watch) > 0 {
		if _, err := s.Watch(ctx, watch); err != nil {
			_ = s.Stop(context.Background())
			return errors.New("E400").WithDetail("watch tree files").Wrap(err)
		}
	}

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		_ = s.Stop(context.Background())
		return errors.New("E400").WithDetail("listen on " + cfg.Server.Addr).Wrap(err)
	}
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ln)
	}()

	printBanner(out)
	success(out, "Serving on http://%s", ln.Addr())
	info(out, "Stream:  ws://%s%s", ln.Addr(), cfg.Server.StreamPath)
	if cfg.Metrics.Enabled {
		info(out, "Metrics: http://%s%s", ln.Addr(), cfg.Metrics.Path)
	}
	if len(frames) > 0 {
		info(out, "Cycling %d trees every %s", len(frames), interval)
	}
	if len(watch) > 0 {
		info(out, "Watching %d tree files", len(watch))
	}
	fmt.Fprintln(out)

	var result error
	select {
	case <-sigCh:
		fmt.Fprintln(out, "\n  Shutting down...")
	case err := <-serveErr:
		if !stderrors.Is(err, http.ErrServerClosed) {
			result = errors.New("E400").Wrap(err)
		}
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	s.hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil && result == nil {
		result = errors.New("E401").Wrap(err)
	}
	if err := s.Stop(shutdownCtx); err != nil && result == nil {
		result = err
	}
	return result
}
