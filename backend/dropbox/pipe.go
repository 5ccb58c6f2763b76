package dropbox

import (
	"context"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/c2fo/filestorage"
	"github.com/c2fo/filestorage/utils"
)

// documentWriter streams its writes through a pipe into an upload running on a worker.
type documentWriter struct {
	ctx    context.Context
	pw     *io.PipeWriter
	group  *errgroup.Group
	cancel context.CancelFunc

	once sync.Once
	err  error
	id   filestorage.IDTuple
}

// OpenDocumentWriter returns a writer whose content is uploaded as file. size must be the exact number of bytes
// that will be written; a negative size buffers the whole content before uploading. Close waits for the upload
// and returns its error; CloseWithError aborts it. Cancelling ctx unblocks pending writes.
func (s *Storage) OpenDocumentWriter(ctx context.Context, file *filestorage.File, size int64) (io.WriteCloser, error) {
	if err := s.writable(utils.ToPath(file.FolderID)); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	group, gctx := errgroup.WithContext(ctx)
	pr, pw := io.Pipe()
	w := &documentWriter{ctx: ctx, pw: pw, group: group, cancel: cancel}

	stop := context.AfterFunc(gctx, func() {
		_ = pr.CloseWithError(context.Cause(gctx))
	})

	group.Go(func() error {
		defer stop()
		id, err := s.SaveDocument(gctx, file, pr, size, nil)
		// unblocks writes that are no longer read
		_ = pr.CloseWithError(err)
		w.id = id
		return err
	})

	return w, nil
}

// Write implements io.Writer. It fails once the upload failed.
func (w *documentWriter) Write(p []byte) (int, error) {
	return w.pw.Write(p)
}

// Close ends the content and waits for the upload. Once ctx is done the upload is aborted with its cause.
func (w *documentWriter) Close() error {
	return w.finish(context.Cause(w.ctx))
}

// CloseWithError aborts the upload with err.
func (w *documentWriter) CloseWithError(err error) error {
	if err == nil {
		err = io.ErrClosedPipe
	}
	return w.finish(err)
}

// ID returns the identifier of the uploaded file once Close returned nil.
func (w *documentWriter) ID() filestorage.IDTuple {
	return w.id
}

func (w *documentWriter) finish(cause error) error {
	w.once.Do(func() {
		_ = w.pw.CloseWithError(cause)
		w.err = w.group.Wait()
		w.cancel()
	})
	return w.err
}
