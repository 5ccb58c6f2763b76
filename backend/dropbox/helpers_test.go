package dropbox

import (
	"context"
	"time"

	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox"
	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox/files"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/suite"

	"github.com/c2fo/filestorage/backend/dropbox/mocks"
	"github.com/c2fo/filestorage/options"
)

const testTempDir = "/tmp/filestorage"

// baseSuite wires a Storage to a mock client, an in-memory temp file system and a private metrics registry.
type baseSuite struct {
	suite.Suite
	mockClient *mocks.Client
	registry   *prometheus.Registry
	fs         afero.Fs
	storage    *Storage
	ctx        context.Context
}

func (s *baseSuite) SetupTest() {
	s.mockClient = mocks.NewClient(s.T())
	s.fs = afero.NewMemMapFs()
	s.Require().NoError(s.fs.MkdirAll(testTempDir, 0o755))
	s.storage = s.newStorage()
	s.ctx = context.Background()
}

// newStorage returns a storage on the suite's mock client and file system; extra options are applied last.
// Every storage gets a fresh registry, s.registry always belongs to the latest one.
func (s *baseSuite) newStorage(extra ...options.NewStorageOption[Storage]) *Storage {
	s.registry = prometheus.NewRegistry()
	opts := []options.NewStorageOption[Storage]{
		WithClient(s.mockClient),
		WithFs(s.fs),
		WithTempDir(testTempDir),
		WithRegisterer(s.registry),
		WithAccount("dbid:1234", "Jane's Dropbox"),
		WithUserID("jane"),
	}
	return NewStorage(append(opts, extra...)...)
}

var modTime = time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)

func fileMD(path string, size uint64) *files.FileMetadata {
	parts := path[lastSlash(path)+1:]
	return &files.FileMetadata{
		Metadata: files.Metadata{
			Name:        parts,
			PathDisplay: path,
			PathLower:   lower(path),
		},
		Id:             "id:" + parts,
		ClientModified: modTime,
		ServerModified: modTime.Add(time.Minute),
		Rev:            "015f" + parts,
		Size:           size,
	}
}

func folderMD(path string) *files.FolderMetadata {
	return &files.FolderMetadata{
		Metadata: files.Metadata{
			Name:        path[lastSlash(path)+1:],
			PathDisplay: path,
			PathLower:   lower(path),
		},
		Id: "id:" + path,
	}
}

func deletedMD(path string) *files.DeletedMetadata {
	return &files.DeletedMetadata{
		Metadata: files.Metadata{
			Name:        path[lastSlash(path)+1:],
			PathDisplay: path,
			PathLower:   lower(path),
		},
	}
}

func lastSlash(p string) int {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '/' {
			return i
		}
	}
	return -1
}

func lower(p string) string {
	b := []byte(p)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

func tagged(tag string) dropbox.Tagged {
	return dropbox.Tagged{Tag: tag}
}

func lookupError(tag string) *files.LookupError {
	return &files.LookupError{Tagged: tagged(tag)}
}

func writeError(tag string) *files.WriteError {
	return &files.WriteError{Tagged: tagged(tag)}
}

func conflictError(conflict string) *files.WriteError {
	we := writeError(files.WriteErrorConflict)
	we.Conflict = &files.WriteConflictError{Tagged: tagged(conflict)}
	return we
}

func metadataNotFound() error {
	return files.GetMetadataAPIError{
		APIError: dropbox.APIError{ErrorSummary: "path/not_found/.."},
		EndpointError: &files.GetMetadataError{
			Tagged: tagged(files.GetMetadataErrorPath),
			Path:   lookupError(files.LookupErrorNotFound),
		},
	}
}

func deleteFailed(we *files.WriteError) error {
	return files.DeleteV2APIError{
		APIError: dropbox.APIError{ErrorSummary: "path_write/.."},
		EndpointError: &files.DeleteError{
			Tagged:    tagged(files.DeleteErrorPathWrite),
			PathWrite: we,
		},
	}
}

func moveFailed(we *files.WriteError) error {
	return files.MoveV2APIError{
		APIError: dropbox.APIError{ErrorSummary: "to/conflict/.."},
		EndpointError: &files.RelocationError{
			Tagged: tagged(files.RelocationErrorTo),
			To:     we,
		},
	}
}
