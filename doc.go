/*
Package filestorage provides a backend-independent, hierarchical folder-and-file storage contract of the kind a
groupware server uses uniformly across many storage systems.

# Philosophy

A groupware server talks to every file storage the same way: folders have identifiers, files live in folders and are
addressed by (folder, id) pairs, errors fall into a small set of kinds the UI knows how to render. Remote storages
rarely look like that. Dropbox, for instance, is a flat, path-addressed namespace with cursor-paginated listing and
session based chunked uploads.

This package holds the contract (Storage, FileAccess, FolderAccess), its value objects (File, Folder, Quota, Delta) and
the error taxonomy (Kind, *Error). Backends live below backend/ and register themselves with the backend package.

# Usage

	import (
	    "github.com/c2fo/filestorage"
	    "github.com/c2fo/filestorage/backend/dropbox"
	)

	func ListRoot(ctx context.Context) ([]filestorage.File, error) {
	    store := dropbox.NewStorage(
	        dropbox.WithAccessToken(os.Getenv("FILESTORAGE_DROPBOX_ACCESS_TOKEN")),
	    )
	    return store.GetDocumentsInFolder(ctx, filestorage.RootFolderID, nil, filestorage.SortOrder{})
	}

# Errors

Every error a backend returns from a contract method is (or wraps) a *Error. Test for kinds with errors.Is:

	exists, err := store.Exists(ctx, "/docs", "report.pdf", filestorage.CurrentVersion)
	if errors.Is(err, filestorage.ErrRateLimited) {
	    // back off
	}

Backends never retry on their own. Bulk operations degrade to partial success and report what they did not process.
*/
package filestorage
