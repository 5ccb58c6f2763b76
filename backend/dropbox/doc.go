// Package dropbox implements filestorage.Storage for Dropbox.
//
// # Usage
//
// Rely on github.com/c2fo/filestorage/backend
//
//	import(
//	    "github.com/c2fo/filestorage/backend"
//	    "github.com/c2fo/filestorage/backend/dropbox"
//	)
//
//	func UseStorage() error {
//	    store := backend.Backend(dropbox.Scheme)
//	    ...
//	}
//
// Or call directly:
//
//	import "github.com/c2fo/filestorage/backend/dropbox"
//
//	func DoSomething(ctx context.Context) error {
//	    store := dropbox.NewStorage(
//	        dropbox.WithAccessToken("your-oauth-token"),
//	        dropbox.WithAccount("dbid:AAH4f99T0taONIb-OurWxbNQ6ywGRopQngc", "Jane's Dropbox"),
//	        dropbox.WithLogger(logger),
//	    )
//	    files, err := store.GetDocumentsInFolder(ctx, "/reports", nil, filestorage.SortOrder{})
//	    if err != nil {
//	        return err
//	    }
//	    ...
//	}
//
// # Authentication
//
// The storage needs an OAuth2 access token. It is taken from, in order:
//
// 1. A token source set with WithTokenSource (use this for refreshable tokens)
// 2. A token set with WithAccessToken
// 3. The FILESTORAGE_DROPBOX_ACCESS_TOKEN environment variable
//
// A missing token surfaces as an AUTH_INVALID error on the first operation.
//
// # Identifiers
//
// Folders are identified by their full display path ("/" is the root). Files are identified by
// (folder path, file name). Dropbox paths are case-insensitive but case-preserving; the storage
// compares identifiers case-insensitively and reports the case Dropbox returns.
//
// # Errors
//
// Every error returned by the storage is a *filestorage.Error whose Kind tells the caller what went wrong
// (NOT_FOUND, DUPLICATE_FOLDER, QUOTA_REACHED, RATE_LIMITED, AUTH_INVALID, ...). The Dropbox error it was
// translated from stays reachable through errors.As. Cancelled contexts are returned as is.
//
// # Uploads
//
// Content up to the chunk size (8MB by default) is uploaded in one request. Larger content goes through an
// upload session: the first chunk starts it, middle chunks are appended and the last chunk commits it.
// Content of unknown size is buffered in memory, then in a temporary file, before it is uploaded.
//
// # Limitations
//
// 1. Dropbox has no locks, so Lock and Unlock are not supported.
//
// 2. There is no delta listing: GetDelta reports every file as new.
//
// 3. Sequence numbers are derived from server modification times and revisions; they change when content does.
package dropbox
