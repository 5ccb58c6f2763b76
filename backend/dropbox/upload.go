package dropbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox"
	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox/files"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/c2fo/filestorage"
	"github.com/c2fo/filestorage/utils"
)

// unknownSize is the size of a payload whose length is not known up front.
const unknownSize = -1

var errShortPayload = errors.New("payload is shorter than its declared size")

type uploadState int

const (
	stateIdle uploadState = iota
	stateSizeKnown
	stateSingleShot
	stateSessionOpen
	stateSessionAppend
	stateSessionFinish
	stateDone
	stateFailed
)

func (st uploadState) String() string {
	switch st {
	case stateIdle:
		return "IDLE"
	case stateSizeKnown:
		return "SIZE_KNOWN"
	case stateSingleShot:
		return "SINGLE_SHOT"
	case stateSessionOpen:
		return "SESSION_OPEN"
	case stateSessionAppend:
		return "SESSION_APPEND"
	case stateSessionFinish:
		return "SESSION_FINISH"
	case stateDone:
		return "DONE"
	case stateFailed:
		return "FAILED"
	}
	return fmt.Sprintf("uploadState(%d)", int(st))
}

// uploadSession is the state of one chunked upload. It belongs to a single upload call and is never retained.
type uploadSession struct {
	id        string
	offset    int64
	chunkSize int64
}

func (u uploadSession) cursor() *files.UploadSessionCursor {
	return &files.UploadSessionCursor{
		SessionId: u.id,
		Offset:    uint64(u.offset),
	}
}

// advance returns the session after n more bytes were accepted.
func (u uploadSession) advance(n int64) uploadSession {
	u.offset += n
	return u
}

// uploader drives one upload through the state machine.
type uploader struct {
	s      *Storage
	client Client
	path   string
	name   string
	// client modified time of the commit, optional
	modified *time.Time
	state    uploadState
}

func (u *uploader) transition(to uploadState) {
	u.s.log.Debug("upload state",
		zap.String("path", u.path),
		zap.Stringer("from", u.state),
		zap.Stringer("to", to),
	)
	u.state = to
}

func (u *uploader) fail(err error) error {
	u.transition(stateFailed)
	return err
}

func overwrite() *files.WriteMode {
	return &files.WriteMode{Tagged: dropbox.Tagged{Tag: files.WriteModeOverwrite}}
}

// Dropbox requires UTC with second precision
func commitTime(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	ct := t.UTC().Truncate(time.Second)
	return &ct
}

// readChunk reads exactly n bytes of r.
func readChunk(r io.Reader, n int64) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, errShortPayload
		}
		return nil, err
	}
	return buf, nil
}

// upload writes data to path, overwriting whatever is there. A size of unknownSize makes the payload
// materialize first to learn its length.
func (s *Storage) upload(ctx context.Context, path, name string, data io.Reader, size int64, modified *time.Time) (*files.FileMetadata, error) {
	client, err := s.Client()
	if err != nil {
		return nil, err
	}

	u := &uploader{s: s, client: client, path: path, name: name, modified: commitTime(modified)}
	return u.run(ctx, data, size)
}

func (u *uploader) run(ctx context.Context, data io.Reader, size int64) (*files.FileMetadata, error) {
	s := u.s
	if size < 0 {
		sink, err := utils.Materialize(s.options.Fs, data, s.options.TempDir, s.options.MemoryBufferSize, s.options.MaxUploadSize)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, u.fail(err)
		}
		if err != nil {
			kind := filestorage.ErrUnexpected
			if errors.Is(err, utils.ErrPayloadTooLarge) {
				kind = filestorage.ErrQuotaReached
			}
			return nil, u.fail(s.newError(kind, u.path).WithName(u.name).WithCause(err))
		}
		defer func() { _ = sink.Close() }()

		if data, err = sink.Reader(); err != nil {
			return nil, u.fail(s.newError(filestorage.ErrUnexpected, u.path).WithName(u.name).WithCause(err))
		}
		size = sink.Size()
	}
	u.transition(stateSizeKnown)

	if err := ctx.Err(); err != nil {
		return nil, u.fail(err)
	}

	var (
		md   *files.FileMetadata
		err  error
		mode = uploadModeSingle
	)
	if size <= s.options.ChunkSize {
		md, err = u.single(data, size)
	} else {
		mode = uploadModeSession
		md, err = u.session(ctx, data, size)
	}
	if err != nil {
		return nil, u.fail(err)
	}

	u.transition(stateDone)
	s.metrics.uploadBytes.WithLabelValues(mode).Add(float64(size))
	s.log.Debug("uploaded",
		zap.String("path", u.path),
		zap.String("mode", mode),
		zap.Int64("bytes", size),
		zap.String("size", humanize.IBytes(uint64(size))),
	)
	return md, nil
}

// single uploads the payload in one request. Conflicts surface as errors instead of being renamed.
func (u *uploader) single(data io.Reader, size int64) (*files.FileMetadata, error) {
	u.transition(stateSingleShot)

	body, err := readChunk(data, size)
	if err != nil {
		return nil, u.readError(err)
	}

	arg := files.NewUploadArg(apiPath(u.path))
	arg.Mode = overwrite()
	arg.Autorename = false
	arg.ClientModified = u.modified

	u.s.observe(opUpload, u.path)
	md, err := u.client.Upload(arg, bytes.NewReader(body))
	if err != nil {
		return nil, u.s.translate(opUpload, err, u.path, u.name)
	}
	return md, nil
}

// session uploads the payload in chunks: the first chunk opens the session, full chunks are appended while more
// than one chunk remains, and the remainder finishes the session together with the commit.
func (u *uploader) session(ctx context.Context, data io.Reader, size int64) (*files.FileMetadata, error) {
	s := u.s
	chunkSize := s.options.ChunkSize

	first, err := readChunk(data, chunkSize)
	if err != nil {
		return nil, u.readError(err)
	}

	s.observe(opSessionStart, u.path)
	res, err := u.client.UploadSessionStart(&files.UploadSessionStartArg{}, bytes.NewReader(first))
	if err != nil {
		return nil, s.translate(opSessionStart, err, u.path, u.name)
	}
	s.metrics.uploadChunks.Inc()
	sess := uploadSession{id: res.SessionId, offset: int64(len(first)), chunkSize: chunkSize}
	u.transition(stateSessionOpen)

	for size-sess.offset > sess.chunkSize {
		if err := ctx.Err(); err != nil {
			s.log.Debug("upload session abandoned", zap.String("session_id", sess.id), zap.Int64("offset", sess.offset))
			return nil, err
		}

		chunk, err := readChunk(data, sess.chunkSize)
		if err != nil {
			return nil, u.readError(err)
		}

		u.transition(stateSessionAppend)
		s.observe(opSessionAppend, u.path)
		err = u.client.UploadSessionAppendV2(&files.UploadSessionAppendArg{Cursor: sess.cursor()}, bytes.NewReader(chunk))
		if err != nil {
			return nil, s.translate(opSessionAppend, err, u.path, u.name)
		}
		s.metrics.uploadChunks.Inc()
		sess = sess.advance(int64(len(chunk)))
	}

	if err := ctx.Err(); err != nil {
		s.log.Debug("upload session abandoned", zap.String("session_id", sess.id), zap.Int64("offset", sess.offset))
		return nil, err
	}

	rest, err := readChunk(data, size-sess.offset)
	if err != nil {
		return nil, u.readError(err)
	}

	commit := files.NewCommitInfo(apiPath(u.path))
	commit.Mode = overwrite()
	commit.Autorename = false
	commit.ClientModified = u.modified

	u.transition(stateSessionFinish)
	s.observe(opSessionFinish, u.path)
	md, err := u.client.UploadSessionFinish(&files.UploadSessionFinishArg{
		Cursor: sess.cursor(),
		Commit: commit,
	}, bytes.NewReader(rest))
	if err != nil {
		return nil, s.translate(opSessionFinish, err, u.path, u.name)
	}
	s.metrics.uploadChunks.Inc()
	return md, nil
}

// readError reports a failure reading the caller's payload.
func (u *uploader) readError(err error) error {
	return u.s.newError(filestorage.ErrUnexpected, u.path).WithName(u.name).WithCause(err)
}

// relocate moves or copies from to to and returns the metadata of the result.
func (s *Storage) relocate(client Client, op, from, to string) (files.IsMetadata, error) {
	arg := files.NewRelocationArg(apiPath(from), apiPath(to))
	arg.Autorename = false

	s.observe(op, from)
	var (
		res *files.RelocationResult
		err error
	)
	if op == opCopy {
		res, err = client.CopyV2(arg)
	} else {
		res, err = client.MoveV2(arg)
	}
	if err != nil {
		return nil, s.translate(op, err, from, utils.LastSegment(to))
	}
	return res.Metadata, nil
}

// rename moves from to to. When both differ only in case the move hops over a temporary name, since Dropbox
// treats such a move as a no-op.
func (s *Storage) rename(ctx context.Context, client Client, from, to string) (files.IsMetadata, error) {
	if utils.SamePath(from, to) {
		if utils.Normalize(from) == utils.Normalize(to) {
			return s.getMetadata(client, from)
		}

		tmp := utils.ToFilePath(utils.ParentOf(to), fmt.Sprintf(".%s.%s", utils.LastSegment(to), uuid.NewString()))
		if _, err := s.relocate(client, opMove, from, tmp); err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		from = tmp
	}
	return s.relocate(client, opMove, from, to)
}

// uniqueName returns name if folderID holds no entry of that name, otherwise the first "name (n).ext" that is
// free. It probes at most once per colliding sibling plus once.
func (s *Storage) uniqueName(ctx context.Context, client Client, folderID, name string) (string, error) {
	candidate := name
	for n := 1; ; n++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		exists, err := s.pathExists(client, utils.ToFilePath(folderID, candidate))
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		candidate = utils.EnhanceName(name, n)
	}
}

func (s *Storage) getMetadata(client Client, path string) (files.IsMetadata, error) {
	arg := files.NewGetMetadataArg(apiPath(path))
	arg.IncludeMediaInfo = true

	s.observe(opGetMetadata, path)
	md, err := client.GetMetadata(arg)
	if err != nil {
		return nil, s.translate(opGetMetadata, err, path, utils.LastSegment(path))
	}
	return md, nil
}

// pathExists reports whether anything lives at path. Only NOT_FOUND means false; other failures are returned.
func (s *Storage) pathExists(client Client, path string) (bool, error) {
	md, err := s.getMetadata(client, path)
	if err != nil {
		if errors.Is(err, filestorage.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if _, deleted := md.(*files.DeletedMetadata); deleted {
		return false, nil
	}
	return md != nil, nil
}
