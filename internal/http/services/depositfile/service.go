// Package depositfile wires the deposition file service's engines
// (upload, download, session, locking) to an HTTP surface, grounded on
// the teacher's config-driven service construction
// (internal/http/services/dataprovider) but routed with go-chi/chi/v5
// rather than reva's internal service registry, since this is a
// standalone binary and not a reva plugin.
package depositfile

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"github.com/rcsb/depfile/pkg/auth"
	"github.com/rcsb/depfile/pkg/config"
	"github.com/rcsb/depfile/pkg/download"
	"github.com/rcsb/depfile/pkg/filelock"
	"github.com/rcsb/depfile/pkg/filelock/factory"
	"github.com/rcsb/depfile/pkg/kv"
	"github.com/rcsb/depfile/pkg/path"
	"github.com/rcsb/depfile/pkg/upload"
)

// Service hosts the chi router for every depositfile route.
type Service struct {
	cfg   *config.Config
	kv    kv.Store
	redis *redis.Client
	log   zerolog.Logger

	lockFactory upload.LockFactory
	uploadEng   *upload.Engine
	downloadEng *download.Engine
	authMgr     *auth.Manager
	resolver    *path.Resolver

	router *chi.Mux
}

// New builds a Service bound to store and, if cfg.LockType/KVMode is
// "redis", redisClient (otherwise nil).
func New(cfg *config.Config, store kv.Store, redisClient *redis.Client, log zerolog.Logger) (*Service, error) {
	authMgr, err := auth.NewManager(cfg)
	if err != nil {
		return nil, err
	}

	s := &Service{
		cfg:      cfg,
		kv:       store,
		redis:    redisClient,
		log:      log,
		authMgr:  authMgr,
		resolver: path.NewResolver(cfg),
	}
	s.lockFactory = func(targetPath string, mode filelock.Mode, isDir bool) (filelock.Lock, error) {
		return factory.New(cfg, redisClient, targetPath, mode, isDir)
	}
	s.uploadEng = upload.NewEngine(cfg, s.lockFactory, log)
	s.downloadEng = download.NewEngine(cfg)
	s.routes()
	return s, nil
}

// Handler returns the service's http.Handler.
func (s *Service) Handler() http.Handler { return s.router }

// Prefix returns the path prefix this service is mounted under.
func (s *Service) Prefix() string { return "" }

func (s *Service) routes() {
	r := chi.NewRouter()
	r.Use(s.traceMiddleware)

	r.Get("/download", s.handleDownload)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Post("/upload-parameters", s.handleUploadParameters)
		r.Post("/upload", s.handleUpload)
		r.Get("/path/resolve", s.handlePathResolve)
		r.Get("/path/filename", s.handlePathFilename)
		r.Get("/path/basefilename", s.handlePathBaseFilename)
		r.Get("/path/dirpath", s.handlePathDirPath)
		r.Post("/copy", s.handleCopy)
		r.Post("/move", s.handleMove)
		r.Post("/compress", s.handleCompress)
		r.Post("/decompress", s.handleDecompress)
		r.Get("/exists", s.handleExists)
		r.Post("/token", s.handleToken)
		r.Get("/admin/health", s.handleHealth)
	})

	s.router = r
}
