package web

import (
	"context"
	"crypto/rand"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	sdyn "github.com/sdyn/go-sdyn"
	"github.com/sdyn/go-sdyn/internal/config"
	"github.com/sdyn/go-sdyn/internal/session"
)

// Options are the dependencies of one portal.
type Options struct {
	App      config.App
	Config   *config.Config
	API      *sdyn.Client
	Sessions *session.Manager
	Logger   *zap.SugaredLogger
}

// Server renders one portal, member or admin, over the REST API.
type Server struct {
	app      config.App
	cfg      *config.Config
	appCfg   config.AppConfig
	api      *sdyn.Client
	sessions *session.Manager
	views    *views
	logger   *zap.SugaredLogger
	csrfKey  []byte
	now      func() time.Time
}

func New(opts Options) (*Server, error) {
	if !opts.App.Valid() {
		return nil, errors.Errorf("unknown app %q", opts.App)
	}
	if opts.Config == nil || opts.API == nil || opts.Sessions == nil {
		return nil, errors.New("config, api client and session manager are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	key := make([]byte, 32)
	if opts.Config.Session.CSRFKey != "" {
		k, err := opts.Config.CSRFKeyBytes()
		if err != nil {
			return nil, err
		}
		key = k
	} else if _, err := rand.Read(key); err != nil {
		return nil, errors.Wrap(err, "generate csrf key")
	}

	v, err := loadViews()
	if err != nil {
		return nil, err
	}

	return &Server{
		app:      opts.App,
		cfg:      opts.Config,
		appCfg:   opts.Config.For(opts.App),
		api:      opts.API,
		sessions: opts.Sessions,
		views:    v,
		logger:   logger.Named(string(opts.App)),
		csrfKey:  key,
		now:      time.Now,
	}, nil
}

func (s *Server) App() config.App {
	return s.app
}

func (s *Server) admin() bool {
	return s.app == config.AppAdmin
}

// Handler returns the portal's HTTP handler with its middleware chain.
func (s *Server) Handler() http.Handler {
	return s.newRouter()
}

// HTTPServer is the listener of one portal.
type HTTPServer struct {
	Server *http.Server
}

func NewHTTPServer(s *Server) *HTTPServer {
	return &HTTPServer{
		Server: &http.Server{
			Addr:              s.appCfg.ListenAddr,
			Handler:           s.Handler(),
			ReadHeaderTimeout: time.Second * 10,
			IdleTimeout:       time.Second * 60,
			MaxHeaderBytes:    http.DefaultMaxHeaderBytes,
			ErrorLog:          zap.NewStdLog(s.logger.Desugar()),
		},
	}
}

func (s *HTTPServer) ListenAndServe() error {
	return s.Server.ListenAndServe()
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.Server.Shutdown(ctx)
}

func (s *HTTPServer) Close() error {
	return s.Server.Close()
}
