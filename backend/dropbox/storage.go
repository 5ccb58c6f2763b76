package dropbox

import (
	"context"
	"os"
	"sync"

	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox"
	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox/files"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/c2fo/filestorage"
	"github.com/c2fo/filestorage/backend"
	"github.com/c2fo/filestorage/options"
)

// Scheme is the name the default Storage is registered under.
const Scheme = "dbx"

const name = "Dropbox"

const envAccessToken = "FILESTORAGE_DROPBOX_ACCESS_TOKEN"

// Storage implements filestorage.Storage for Dropbox.
type Storage struct {
	mu      sync.Mutex
	client  Client
	options Options
	metrics *metrics
	log     *zap.Logger
}

var _ filestorage.Storage = (*Storage)(nil)

// NewStorage initializer for Storage struct.
func NewStorage(opts ...options.NewStorageOption[Storage]) *Storage {
	s := &Storage{
		options: NewOptions(),
	}

	options.ApplyOptions(s, opts...)

	s.metrics = newMetrics(s.options.Registerer)
	s.log = s.options.Logger.With(zap.String("storage", Scheme))
	if s.options.ChunkSize <= 0 {
		s.options.ChunkSize = defaultChunkSize
	}

	return s
}

// Name returns "Dropbox"
func (s *Storage) Name() string {
	return name
}

// Scheme returns "dbx"
func (s *Storage) Scheme() string {
	return Scheme
}

// Options returns a copy of the storage's configuration.
func (s *Storage) Options() Options {
	return s.options
}

// Client returns the underlying Dropbox client, creating it if necessary.
func (s *Storage) Client() (Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		ts := s.options.TokenSource
		if ts == nil {
			token := s.options.AccessToken

			// If no token in options, try environment variable
			if token == "" {
				token = os.Getenv(envAccessToken)
			}

			if token == "" {
				return nil, s.newError(filestorage.ErrAuthInvalid, "").WithCause(errAccessTokenRequired)
			}
			ts = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
		}

		// the oauth2 transport attaches (and refreshes) the bearer token
		config := dropbox.Config{
			LogLevel: dropbox.LogOff,
			Client:   oauth2.NewClient(context.Background(), ts),
		}

		s.client = files.New(config)
	}

	return s.client, nil
}

func init() {
	// Register a default Storage
	backend.Register(Scheme, NewStorage())
}
