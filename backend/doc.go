/*
Package backend provides a means of allowing storage backends to self-register on load via an init() call to
backend.Register("some scheme", filestorage.Storage)

In this way, a caller can simply load the backend (and ONLY those needed) and begin using it:

	package main

	// import backend and each backend you intend to use
	import(
	    "github.com/c2fo/filestorage/backend"
	    "github.com/c2fo/filestorage/backend/dropbox"
	)

	func main() {
	    store, err := backend.Lookup(dropbox.Scheme)
	    if err != nil {
	        panic(err)
	    }

	    files, err := store.GetDocumentsInFolder(ctx, "/reports", nil, filestorage.SortOrder{})
	    ...
	}

Backends registered on load are configured from the environment only. To pass options, construct the backend
directly and register it under a name of your choosing:

	backend.Register("dbx-readonly", dropbox.NewStorage(dropbox.WithReadOnly()))
*/
package backend
