/*
Package mockfs implements a zero-configuration HTTP mock server whose routing
table is derived entirely from the shape of a directory tree.

Dropping files and folders under a mock root turns them into endpoints:

	mocks/api/status.txt          GET /api/status
	mocks/api/users/get{id}.json  GET /api/users/{id}
	mocks/api/products/rest.json  full CRUD over an in-memory collection
	mocks/api/auth/{auth}.json    JWT login/logout plus a users collection
	mocks/{upload}{temp}-docs     multipart upload, list and download
	mocks/graphql                 POST /graphql and GET /graphiql

Directory names become URL segments, "$"-prefixed segments put everything
below them behind the auth middleware, and a filesystem watcher rebuilds the
routing table whenever the tree changes, atomically swapping it under the
feet of in-flight requests.
*/
package mockfs

import (
	"context"
	"net"
	"net/http"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// Server is the top-level struct of the mock server.
//
// It is highly recommended not to modify the value of any field of the
// `Server` after calling the `Server.Serve`, which will cause unpredictable
// problems.
type Server struct {
	// AppName is the name of the server instance.
	//
	// Default value: "mockfs"
	AppName string `mapstructure:"app_name"`

	// DebugMode indicates whether the server is in debug mode: DEBUG level
	// logging and indented JSON responses.
	//
	// Default value: false
	DebugMode bool `mapstructure:"debug_mode"`

	// Address is the TCP address that the server listens on.
	//
	// Default value: ":4520"
	Address string `mapstructure:"address"`

	// MockRoot is the directory scanned for routes.
	//
	// Default value: "./mocks"
	MockRoot string `mapstructure:"mock_root"`

	// CORSEnabled indicates whether responses carry CORS headers for the
	// `AllowedOrigin`.
	//
	// Default value: true
	CORSEnabled bool `mapstructure:"cors_enabled"`

	// AllowedOrigin is the origin the CORS layer allows.
	//
	// Default value: "*"
	AllowedOrigin string `mapstructure:"allowed_origin"`

	// DefaultDelayMS is the artificial response delay, in milliseconds,
	// that routes inherit unless a config file overrides it.
	//
	// Default value: 0
	DefaultDelayMS int `mapstructure:"delay_ms"`

	// JWTSecret is the HS256 signing secret of the token service. When
	// empty, a random secret is generated at startup, so tokens do not
	// survive restarts.
	//
	// Default value: ""
	JWTSecret string `mapstructure:"jwt_secret"`

	// LoggerEnabled indicates whether the logger feature is enabled.
	//
	// Default value: true
	LoggerEnabled bool `mapstructure:"logger_enabled"`

	// LoggerFormat is the format of the `Logger` output header.
	//
	// Default value: `{"app_name":"{{.app_name}}","time":"{{.time_rfc3339}}","level":"{{.level}}"}`
	LoggerFormat string `mapstructure:"logger_format"`

	// MinifierEnabled indicates whether the built-in HTML pages are
	// minified before writing.
	//
	// Default value: true
	MinifierEnabled bool `mapstructure:"minifier_enabled"`

	// CofferMaxMemoryBytes is the maximum number of bytes of the runtime
	// memory allowed for the mock body cache.
	//
	// Default value: 33554432
	CofferMaxMemoryBytes int `mapstructure:"coffer_max_memory_bytes"`

	// DrainTimeout bounds how long a graceful shutdown waits for in-flight
	// requests.
	//
	// Default value: 10s
	DrainTimeout time.Duration `mapstructure:"-"`

	// ConfigFile is the path to the configuration file that will be parsed
	// into the matching fields before starting the server. The ".json",
	// ".toml", ".yaml" and ".yml" extensions are supported.
	//
	// Default value: ""
	ConfigFile string `mapstructure:"-"`

	// JGD evaluates ".jgd" schemas into JSON data.
	//
	// Default value: the built-in evaluator
	JGD JGDEvaluator `mapstructure:"-"`

	// ErrorHandler is the centralized error handler.
	//
	// Default value: `DefaultErrorHandler`
	ErrorHandler func(error, *Request, *Response) `mapstructure:"-"`

	server      *http.Server
	logger      *Logger
	minifier    *minifier
	coffer      *coffer
	collections *CollectionStore
	tokens      *TokenService
	uploads     *uploadRegistry
	sql         *sqlEngine
	events      *eventHub
	reloader    *reloader

	liveTable        atomic.Value
	requestPool      *sync.Pool
	responsePool     *sync.Pool
	shutdownJobs     []func()
	shutdownJobMutex *sync.Mutex
	shutdownOnce     *sync.Once
}

// New returns a new instance of the `Server` with default field values.
//
// The `New` is the only function that creates new instances of the `Server`
// and keeps everything working.
func New() *Server {
	s := &Server{
		AppName:              "mockfs",
		Address:              ":4520",
		MockRoot:             "./mocks",
		CORSEnabled:          true,
		AllowedOrigin:        "*",
		LoggerEnabled:        true,
		LoggerFormat:         `{"app_name":"{{.app_name}}","time":"{{.time_rfc3339}}","level":"{{.level}}"}`,
		MinifierEnabled:      true,
		CofferMaxMemoryBytes: 32 << 20,
		DrainTimeout:         10 * time.Second,
		JGD:                  builtinJGD{},
		ErrorHandler:         DefaultErrorHandler,
	}

	s.server = &http.Server{}
	s.logger = newLogger(s)
	s.minifier = newMinifier()
	s.coffer = newCoffer(s)
	s.collections = newCollectionStore()
	s.tokens = newTokenService("")
	s.uploads = newUploadRegistry()
	s.sql = newSQLEngine(s.collections)
	s.events = newEventHub()
	s.reloader = newReloader(s)

	s.requestPool = &sync.Pool{
		New: func() interface{} {
			return &Request{}
		},
	}
	s.responsePool = &sync.Pool{
		New: func() interface{} {
			return &Response{}
		},
	}

	s.shutdownJobMutex = &sync.Mutex{}
	s.shutdownOnce = &sync.Once{}

	return s
}

// Logger returns the logger of the s.
func (s *Server) Logger() *Logger {
	return s.logger
}

// Collections returns the collection store of the s.
func (s *Server) Collections() *CollectionStore {
	return s.collections
}

// Tokens returns the token service of the s.
func (s *Server) Tokens() *TokenService {
	return s.tokens
}

// table returns the live routing table of the s, or nil before the first
// successful build.
func (s *Server) table() *Table {
	t, _ := s.liveTable.Load().(*Table)
	return t
}

// Build turns the mock tree into the initial routing table. It must succeed
// before serving; later rebuilds happen through the reloader and never
// replace a live table with a broken one.
func (s *Server) Build() error {
	root, err := filepath.Abs(s.MockRoot)
	if err != nil {
		return err
	}
	s.MockRoot = root

	s.tokens.SetSecret(s.JWTSecret)

	t, err := s.build()
	if err != nil {
		return err
	}

	s.liveTable.Store(t)
	s.logger.INFO(
		"mockfs: routing table built",
		map[string]interface{}{
			"routes": len(t.routes),
			"root":   s.MockRoot,
		},
	)

	return nil
}

// rebuild runs a full build pass and swaps the live table on success. On
// failure the previous table stays live and the error is logged.
func (s *Server) rebuild() {
	t, err := s.build()
	if err != nil {
		s.logger.ERROR(
			"mockfs: rebuild failed, keeping previous table",
			map[string]interface{}{
				"error": err.Error(),
			},
		)

		return
	}

	s.liveTable.Store(t)
	s.events.broadcast("reload")
	s.logger.INFO(
		"mockfs: routing table swapped",
		map[string]interface{}{
			"routes": len(t.routes),
		},
	)
}

// LoadConfig parses the configuration file of the s, when one is set, into
// the matching fields. Callers apply flag overrides after this, so explicit
// flags always win over the file.
func (s *Server) LoadConfig() error {
	return s.loadConfigFile()
}

// Serve starts the server of the s: initial build, watcher and the listener,
// in that order.
func (s *Server) Serve() error {
	if err := s.Build(); err != nil {
		return err
	}

	if err := s.reloader.start(); err != nil {
		return err
	}

	s.AddShutdownJob(func() {
		s.uploads.purgeTemporary()
		s.tokens.Reset()
		s.collections.Clear()
		s.sql.Close()
		s.events.close()
		s.reloader.close()
		s.coffer.close()
	})

	h2s := &http2.Server{}
	s.server.Addr = s.Address
	s.server.Handler = h2c.NewHandler(s, h2s)

	l, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}

	s.logger.INFO(
		"mockfs: serving",
		map[string]interface{}{
			"address": l.Addr().String(),
			"root":    s.MockRoot,
		},
	)

	return s.server.Serve(l)
}

// Close closes the server of the s immediately.
func (s *Server) Close() error {
	return s.server.Close()
}

// Shutdown gracefully shuts down the server of the s without interrupting
// any active connections: it stops accepting new ones, waits for in-flight
// handlers up to the deadline of the ctx and then runs the shutdown jobs
// (temporary upload purge, token and collection teardown). Shutdown is
// idempotent.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.server.Shutdown(ctx)

	s.shutdownOnce.Do(func() {
		s.shutdownJobMutex.Lock()
		jobs := s.shutdownJobs
		s.shutdownJobMutex.Unlock()

		for _, job := range jobs {
			if job != nil {
				job()
			}
		}
	})

	return err
}

// AddShutdownJob adds the f as a shutdown job that will run only once when
// the `Shutdown` is called. The return value is an unique ID assigned to the
// f, which can be used to remove the f from the shutdown job queue by
// calling the `RemoveShutdownJob`.
func (s *Server) AddShutdownJob(f func()) int {
	s.shutdownJobMutex.Lock()
	defer s.shutdownJobMutex.Unlock()
	s.shutdownJobs = append(s.shutdownJobs, f)
	return len(s.shutdownJobs) - 1
}

// RemoveShutdownJob removes the shutdown job targeted by the id from the
// shutdown job queue.
func (s *Server) RemoveShutdownJob(id int) {
	s.shutdownJobMutex.Lock()
	defer s.shutdownJobMutex.Unlock()
	if id >= 0 && id < len(s.shutdownJobs) {
		s.shutdownJobs[id] = nil
	}
}

// ServeHTTP implements the `http.Handler`. Handlers observing the pre-swap
// table continue using it safely until their request ends.
func (s *Server) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	req := s.requestPool.Get().(*Request)
	res := s.responsePool.Get().(*Response)

	req.reset(s, r)
	res.reset(s, rw, req)

	t := s.table()
	if t == nil {
		http.Error(
			rw,
			"mock server is still building",
			http.StatusServiceUnavailable,
		)
	} else if err := t.dispatch(req, res); err != nil {
		s.ErrorHandler(err, req, res)
	}

	s.requestPool.Put(req)
	s.responsePool.Put(res)
}

// DefaultErrorHandler is the default centralized error handler. It maps an
// `HTTPError` to its status and everything else to a 500, responding with a
// small JSON body.
func DefaultErrorHandler(err error, req *Request, res *Response) {
	if res.Written {
		return
	}

	if he, ok := err.(*HTTPError); ok {
		res.Status = he.Code
		res.WriteJSON(map[string]string{"error": he.Message})
		return
	}

	req.Server.logger.ERROR(
		"mockfs: handler error",
		map[string]interface{}{
			"method": req.Method,
			"path":   req.Path,
			"error":  err.Error(),
		},
	)

	res.Status = http.StatusInternalServerError
	res.WriteJSON(map[string]string{"error": "internal server error"})
}
