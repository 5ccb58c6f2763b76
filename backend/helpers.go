package backend

import (
	"fmt"

	"github.com/c2fo/filestorage"
)

// Lookup returns the storage registered under scheme or an OPERATION_NOT_SUPPORTED error naming the known schemes.
func Lookup(scheme string) (filestorage.Storage, error) {
	if s := Backend(scheme); s != nil {
		return s, nil
	}
	return nil, filestorage.NewError(filestorage.ErrOperationNotSupported, "").
		WithCause(fmt.Errorf("no storage registered for scheme %q (known: %v)", scheme, RegisteredBackends()))
}
