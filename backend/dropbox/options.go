package dropbox

import (
	"mime"
	"os"
	"path"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	defaultChunkSize        = 8 * 1024 * 1024
	defaultMemoryBufferSize = 1024 * 1024
	defaultMaxUploadSize    = 350 * 1024 * 1024 * 1024
	defaultRevisionLimit    = 10
	defaultBatchThreshold   = 5
	defaultAccountName      = "Dropbox"

	defaultMIMEType = "application/octet-stream"
)

// RevisionPolicy tells GetFileMetadata what to do about its revision count lookup.
type RevisionPolicy string

const (
	// RevisionPolicyLog looks the revision count up and logs a failed lookup at warn level.
	RevisionPolicyLog = RevisionPolicy("log")
	// RevisionPolicySilent looks the revision count up and ignores a failed lookup.
	RevisionPolicySilent = RevisionPolicy("silent")
	// RevisionPolicyFlag looks the revision count up and marks the returned file as MetadataDegraded on failure.
	RevisionPolicyFlag = RevisionPolicy("flag")
	// RevisionPolicyDisabled skips the lookup; every file reports a single version.
	RevisionPolicyDisabled = RevisionPolicy("disabled")
)

// MIMEResolver returns the MIME type of a file name.
type MIMEResolver func(name string) string

// DefaultMIMEResolver resolves by extension using the system MIME table.
func DefaultMIMEResolver(name string) string {
	if t := mime.TypeByExtension(path.Ext(name)); t != "" {
		return t
	}
	return defaultMIMEType
}

// Options holds configuration options for the Dropbox Storage.
type Options struct {
	// AccessToken is the OAuth2 access token for Dropbox API authentication.
	// Falls back to the FILESTORAGE_DROPBOX_ACCESS_TOKEN environment variable.
	AccessToken string

	// TokenSource supplies (and refreshes) credentials. Takes precedence over AccessToken.
	TokenSource oauth2.TokenSource

	// ChunkSize is the single-shot threshold and the chunk size of upload sessions (default: 8MB).
	ChunkSize int64

	// TempDir is the directory for payloads of unknown size that do not fit MemoryBufferSize.
	// Defaults to os.TempDir(). "~" is expanded.
	TempDir string

	// MemoryBufferSize is how much of a payload of unknown size is held in memory before spilling to TempDir.
	MemoryBufferSize int64

	// MaxUploadSize caps payloads of unknown size (default: 350GB).
	MaxUploadSize int64

	// RevisionLimit bounds the revision count lookup of GetFileMetadata and the listing of GetVersions.
	RevisionLimit uint64

	// RevisionPolicy governs the revision count lookup of GetFileMetadata (default: log).
	RevisionPolicy RevisionPolicy

	// BatchThreshold is the minimum number of same-folder ids for which GetDocuments lists the folder
	// instead of fetching one by one.
	BatchThreshold int

	// AccountID and AccountName identify the account in errors; AccountName is also the root folder's name.
	AccountID   string
	AccountName string

	// UserID is the entity of the owner permission of every folder.
	UserID string

	// ReadOnly rejects every mutation with OPERATION_NOT_SUPPORTED before calling Dropbox.
	ReadOnly bool

	Logger       *zap.Logger
	Registerer   prometheus.Registerer
	MIMEResolver MIMEResolver

	// Fs holds temporary upload files.
	Fs afero.Fs
}

// NewOptions creates Options with default values.
func NewOptions() Options {
	return Options{
		ChunkSize:        defaultChunkSize,
		TempDir:          os.TempDir(),
		MemoryBufferSize: defaultMemoryBufferSize,
		MaxUploadSize:    defaultMaxUploadSize,
		RevisionLimit:    defaultRevisionLimit,
		RevisionPolicy:   RevisionPolicyLog,
		BatchThreshold:   defaultBatchThreshold,
		AccountName:      defaultAccountName,
		Logger:           zap.NewNop(),
		MIMEResolver:     DefaultMIMEResolver,
		Fs:               afero.NewOsFs(),
	}
}
