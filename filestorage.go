package filestorage

import (
	"context"
	"io"
	"time"
)

// Storage represents an account-bound file storage with any authentication accounted for.
type Storage interface {
	FileAccess
	FolderAccess

	// Name returns the name of the storage ie: Dropbox
	Name() string

	// Scheme is the short identifier used to register the storage: dbx, etc...
	Scheme() string
}

// FileAccess is the document half of the contract. Files are addressed by (folderID, id) pairs where id is the file
// name within its folder.
type FileAccess interface {
	// Exists reports whether the file exists. The only addressable version is CurrentVersion; any other version
	// yields ErrVersioningNotSupported. A missing file is (false, nil), every other failure is returned.
	Exists(ctx context.Context, folderID, id, version string) (bool, error)

	// GetFileMetadata returns the metadata of a file.
	GetFileMetadata(ctx context.Context, folderID, id, version string) (*File, error)

	// SaveFileMetadata applies a metadata-only update (rename and/or move) described by the modified fields.
	// An empty modified slice means all fields. The possibly new identifier of the file is returned.
	SaveFileMetadata(ctx context.Context, file *File, modified []Field) (IDTuple, error)

	// CopyFile copies source into destFolder. When update carries a new file name (FieldFileName or FieldTitle in
	// modified) it is used as destination name; a free name is probed for in any case. When data is non-nil, the
	// copy's content is replaced with it.
	CopyFile(ctx context.Context, source IDTuple, version, destFolder string, update *File, data io.Reader, modified []Field) (IDTuple, error)

	// MoveFile moves source into destFolder, optionally renaming it like CopyFile does.
	MoveFile(ctx context.Context, source IDTuple, destFolder string, update *File, modified []Field) (IDTuple, error)

	// GetDocument returns the content of a file. The caller closes the reader.
	GetDocument(ctx context.Context, folderID, id, version string) (io.ReadCloser, error)

	// GetThumbnail returns a fixed size thumbnail image of a file. The caller closes the reader.
	GetThumbnail(ctx context.Context, folderID, id, version string) (io.ReadCloser, error)

	// SaveDocument writes data as the content of file. size is the number of bytes data will yield, or a negative
	// value when unknown. If file.ID is empty file.FileName is used as the new file's name.
	SaveDocument(ctx context.Context, file *File, data io.Reader, size int64, modified []Field) (IDTuple, error)

	// OpenDocumentWriter returns a writer whose content is uploaded as file once it is closed. size must be the
	// exact number of bytes that will be written.
	OpenDocumentWriter(ctx context.Context, file *File, size int64) (io.WriteCloser, error)

	// RemoveDocuments deletes the given files on a best-effort basis and returns the ones it could not delete.
	RemoveDocuments(ctx context.Context, ids []IDTuple, hardDelete bool) ([]IDTuple, error)

	// RemoveVersions deletes specific versions of a file.
	RemoveVersions(ctx context.Context, folderID, id string, versions []string) ([]string, error)

	// GetDocumentsInFolder lists the files of a folder.
	GetDocumentsInFolder(ctx context.Context, folderID string, fields []Field, sort SortOrder) ([]File, error)

	// GetDocuments returns the metadata of the given files, silently skipping those that no longer exist.
	GetDocuments(ctx context.Context, ids []IDTuple, fields []Field) ([]File, error)

	// GetVersions lists the known revisions of a file, newest first unless sort says otherwise.
	GetVersions(ctx context.Context, folderID, id string, fields []Field, sort SortOrder) ([]File, error)

	// RestoreVersion makes the given revision the current content of the file.
	RestoreVersion(ctx context.Context, folderID, id, version string) (*File, error)

	// GetDelta returns what changed in a folder since updateSince.
	GetDelta(ctx context.Context, folderID string, updateSince time.Time, fields []Field, ignoreDeleted bool) (*Delta, error)

	// GetSequenceNumbers returns a "did anything change" value per folder. The values are not monotonic.
	GetSequenceNumbers(ctx context.Context, folderIDs []string) (map[string]int64, error)

	// Search finds files whose name matches pattern below folderID. An empty pattern or "*" lists every file.
	Search(ctx context.Context, req SearchRequest) ([]File, error)

	// StartTransaction, Commit, Rollback and Finish mark transaction boundaries.
	StartTransaction(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	Finish(ctx context.Context) error
}

// FolderAccess is the folder half of the contract. Folders are addressed by their identifier alone.
type FolderAccess interface {
	// FolderExists reports whether the folder exists.
	FolderExists(ctx context.Context, folderID string) (bool, error)

	// GetFolder returns the folder with the given identifier.
	GetFolder(ctx context.Context, folderID string) (*Folder, error)

	// GetRootFolder returns the root folder of the account.
	GetRootFolder(ctx context.Context) (*Folder, error)

	// GetSubfolders lists the direct subfolders of parentID.
	GetSubfolders(ctx context.Context, parentID string) ([]Folder, error)

	// GetPathToRoot returns the folder followed by all of its ancestors up to and including the root folder.
	GetPathToRoot(ctx context.Context, folderID string) ([]Folder, error)

	// CreateFolder creates folder.Name below folder.ParentID and returns the new identifier.
	CreateFolder(ctx context.Context, folder *Folder) (string, error)

	// MoveFolder moves a folder below newParentID, optionally renaming it. An empty newName keeps the name.
	MoveFolder(ctx context.Context, folderID, newParentID, newName string) (string, error)

	// RenameFolder renames a folder in place.
	RenameFolder(ctx context.Context, folderID, newName string) (string, error)

	// DeleteFolder deletes a folder and everything below it and returns the deleted identifier.
	DeleteFolder(ctx context.Context, folderID string, hardDelete bool) (string, error)

	// ClearFolder deletes everything inside a folder but not the folder itself.
	ClearFolder(ctx context.Context, folderID string, hardDelete bool) error

	// GetStorageQuota returns the storage quota applying to the folder.
	GetStorageQuota(ctx context.Context, folderID string) (Quota, error)

	// GetFileQuota returns the file count quota applying to the folder.
	GetFileQuota(ctx context.Context, folderID string) (Quota, error)
}

// SearchRequest describes a file search.
type SearchRequest struct {
	Pattern           string
	FolderID          string
	IncludeSubfolders bool
	Fields            []Field
	Sort              SortOrder
	Range             Range
}
