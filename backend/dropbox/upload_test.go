package dropbox

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox"
	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox/files"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/c2fo/filestorage"
)

const mib = 1024 * 1024

type UploadTestSuite struct {
	baseSuite
}

// recorder keeps what a session upload sent, in order.
type recorder struct {
	body    bytes.Buffer
	appends []uint64
	finish  *files.UploadSessionFinishArg
}

// expectSession expects one session upload with the given number of appends, recording it into rec.
func (s *baseSuite) expectSession(rec *recorder, sessionID string, appends int) {
	s.mockClient.EXPECT().
		UploadSessionStart(mock.Anything, mock.Anything).
		RunAndReturn(func(_ *files.UploadSessionStartArg, content io.Reader) (*files.UploadSessionStartResult, error) {
			_, err := rec.body.ReadFrom(content)
			s.Require().NoError(err)
			return &files.UploadSessionStartResult{SessionId: sessionID}, nil
		}).
		Once()

	if appends > 0 {
		s.mockClient.EXPECT().
			UploadSessionAppendV2(mock.Anything, mock.Anything).
			RunAndReturn(func(arg *files.UploadSessionAppendArg, content io.Reader) error {
				s.Equal(sessionID, arg.Cursor.SessionId)
				s.Equal(uint64(rec.body.Len()), arg.Cursor.Offset, "append starts where the accepted bytes end")
				rec.appends = append(rec.appends, arg.Cursor.Offset)
				_, err := rec.body.ReadFrom(content)
				return err
			}).
			Times(appends)
	}

	s.mockClient.EXPECT().
		UploadSessionFinish(mock.Anything, mock.Anything).
		RunAndReturn(func(arg *files.UploadSessionFinishArg, content io.Reader) (*files.FileMetadata, error) {
			s.Equal(uint64(rec.body.Len()), arg.Cursor.Offset, "finish starts where the accepted bytes end")
			rec.finish = arg
			_, err := rec.body.ReadFrom(content)
			s.Require().NoError(err)
			return fileMD(arg.Commit.Path, uint64(rec.body.Len())), nil
		}).
		Once()
}

func (s *UploadTestSuite) TestSingleShot() {
	payload := []byte("hello world")
	modified := time.Date(2024, 5, 6, 7, 8, 9, 500, time.FixedZone("CEST", 2*60*60))

	s.mockClient.EXPECT().
		Upload(mock.MatchedBy(func(arg *files.UploadArg) bool {
			return arg.Path == "/docs/hello.txt"
		}), mock.Anything).
		RunAndReturn(func(arg *files.UploadArg, content io.Reader) (*files.FileMetadata, error) {
			b, err := io.ReadAll(content)
			s.Require().NoError(err)
			s.Equal(payload, b)
			s.Equal(files.WriteModeOverwrite, arg.Mode.Tag)
			s.False(arg.Autorename)
			s.Require().NotNil(arg.ClientModified)
			s.Equal(time.Date(2024, 5, 6, 5, 8, 9, 0, time.UTC), *arg.ClientModified, "UTC, whole seconds")
			return fileMD("/docs/hello.txt", uint64(len(b))), nil
		}).
		Once()

	md, err := s.storage.upload(s.ctx, "/docs/hello.txt", "hello.txt", bytes.NewReader(payload), int64(len(payload)), &modified)
	s.Require().NoError(err)
	s.Equal(uint64(len(payload)), md.Size)
	s.InDelta(float64(len(payload)), testutil.ToFloat64(s.storage.metrics.uploadBytes.WithLabelValues(uploadModeSingle)), 0)
}

func (s *UploadTestSuite) TestExactChunkIsSingleShot() {
	s.storage = s.newStorage(WithChunkSize(4))
	s.mockClient.EXPECT().Upload(mock.Anything, mock.Anything).Return(fileMD("/a.bin", 4), nil).Once()

	_, err := s.storage.upload(s.ctx, "/a.bin", "a.bin", strings.NewReader("1234"), 4, nil)
	s.Require().NoError(err)
}

func (s *UploadTestSuite) TestSessionTwentyMiB() {
	payload := bytes.Repeat([]byte("0123456789abcdef"), 20*mib/16)
	rec := &recorder{}
	s.expectSession(rec, "sess-20", 1)

	file := &filestorage.File{ID: "big.bin", FolderID: "/docs", FileName: "big.bin"}
	id, err := s.storage.SaveDocument(s.ctx, file, bytes.NewReader(payload), int64(len(payload)), nil)
	s.Require().NoError(err)

	s.Equal(filestorage.IDTuple{FolderID: "/docs", ID: "big.bin"}, id)
	s.Equal([]uint64{8 * mib}, rec.appends, "one append at offset 8MiB")
	s.Require().NotNil(rec.finish)
	s.Equal(uint64(16*mib), rec.finish.Cursor.Offset, "finish at offset 16MiB")
	s.Equal("/docs/big.bin", rec.finish.Commit.Path)
	s.Equal(files.WriteModeOverwrite, rec.finish.Commit.Mode.Tag)
	s.False(rec.finish.Commit.Autorename)
	s.True(bytes.Equal(payload, rec.body.Bytes()), "chunks reassemble to the payload")
	s.InDelta(3, testutil.ToFloat64(s.storage.metrics.uploadChunks), 0)
}

func (s *UploadTestSuite) TestAppendCount() {
	// with a chunk size of 4, size n > 4 takes ceil((n-4)/4)-1 appends
	cases := []struct {
		size    int
		appends int
	}{
		{size: 5, appends: 0},
		{size: 8, appends: 0},
		{size: 9, appends: 1},
		{size: 12, appends: 1},
		{size: 13, appends: 2},
		{size: 16, appends: 2},
		{size: 17, appends: 3},
	}
	for _, tt := range cases {
		s.SetupTest()
		s.storage = s.newStorage(WithChunkSize(4))

		payload := bytes.Repeat([]byte("x"), tt.size)
		rec := &recorder{}
		s.expectSession(rec, "sess", tt.appends)

		_, err := s.storage.upload(s.ctx, "/a.bin", "a.bin", bytes.NewReader(payload), int64(tt.size), nil)
		s.Require().NoError(err, "size %d", tt.size)
		s.Len(rec.appends, tt.appends, "size %d", tt.size)
		s.Equal(tt.size, rec.body.Len(), "size %d", tt.size)

		remainder := uint64(tt.size) - rec.finish.Cursor.Offset
		s.True(remainder >= 1 && remainder <= 4, "finish carries 1..chunk bytes, size %d", tt.size)
	}
}

func (s *UploadTestSuite) TestFailedAppend() {
	s.storage = s.newStorage(WithChunkSize(4))

	s.mockClient.EXPECT().
		UploadSessionStart(mock.Anything, mock.Anything).
		Return(&files.UploadSessionStartResult{SessionId: "sess"}, nil).
		Once()
	s.mockClient.EXPECT().
		UploadSessionAppendV2(mock.Anything, mock.Anything).
		Return(dropbox.SDKInternalError{StatusCode: http.StatusInternalServerError, Content: "boom"}).
		Once()

	client, err := s.storage.Client()
	s.Require().NoError(err)
	u := &uploader{s: s.storage, client: client, path: "/a.bin", name: "a.bin"}
	_, err = u.run(s.ctx, bytes.NewReader(make([]byte, 13)), 13)

	s.Require().ErrorIs(err, filestorage.ErrProtocol)
	s.Equal(stateFailed, u.state)
	s.InDelta(1, testutil.ToFloat64(s.storage.metrics.uploadChunks), 0, "only the opening chunk was accepted")
}

func (s *UploadTestSuite) TestFailedFinish() {
	s.storage = s.newStorage(WithChunkSize(4))

	s.mockClient.EXPECT().
		UploadSessionStart(mock.Anything, mock.Anything).
		Return(&files.UploadSessionStartResult{SessionId: "sess"}, nil).
		Once()
	s.mockClient.EXPECT().
		UploadSessionFinish(mock.Anything, mock.Anything).
		Return(nil, writeFailures[opSessionFinish](writeError(files.WriteErrorInsufficientSpace))).
		Once()

	_, err := s.storage.upload(s.ctx, "/a.bin", "a.bin", bytes.NewReader(make([]byte, 6)), 6, nil)
	s.Require().ErrorIs(err, filestorage.ErrQuotaReached)
}

func (s *UploadTestSuite) TestCancelBetweenChunks() {
	s.storage = s.newStorage(WithChunkSize(4))
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	s.mockClient.EXPECT().
		UploadSessionStart(mock.Anything, mock.Anything).
		RunAndReturn(func(*files.UploadSessionStartArg, io.Reader) (*files.UploadSessionStartResult, error) {
			cancel()
			return &files.UploadSessionStartResult{SessionId: "sess"}, nil
		}).
		Once()

	_, err := s.storage.upload(ctx, "/a.bin", "a.bin", bytes.NewReader(make([]byte, 13)), 13, nil)
	s.Require().ErrorIs(err, context.Canceled)
	s.False(filestorage.IsStorageError(err), "cancellation is returned as is")
}

func (s *UploadTestSuite) TestCancelledBeforeStart() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()

	_, err := s.storage.upload(ctx, "/a.bin", "a.bin", strings.NewReader("abc"), 3, nil)
	s.Require().ErrorIs(err, context.Canceled)
}

func (s *UploadTestSuite) TestShortPayload() {
	_, err := s.storage.upload(s.ctx, "/a.bin", "a.bin", strings.NewReader("abc"), 10, nil)
	s.Require().ErrorIs(err, filestorage.ErrUnexpected)
	s.Require().ErrorIs(err, errShortPayload)
}

func (s *UploadTestSuite) TestUnknownSize() {
	s.Run("held in memory", func() {
		s.storage = s.newStorage(WithChunkSize(4))
		rec := &recorder{}
		s.expectSession(rec, "sess", 1)

		payload := io.MultiReader(strings.NewReader("hello "), strings.NewReader("world"))
		_, err := s.storage.upload(s.ctx, "/a.txt", "a.txt", payload, unknownSize, nil)
		s.Require().NoError(err)
		s.Equal("hello world", rec.body.String())
		s.Equal(uint64(8), rec.finish.Cursor.Offset)
	})

	s.Run("spilled to the temp dir", func() {
		s.storage = s.newStorage(WithChunkSize(4), WithMemoryBufferSize(2))
		rec := &recorder{}
		s.expectSession(rec, "sess", 1)

		_, err := s.storage.upload(s.ctx, "/a.txt", "a.txt", strings.NewReader("hello world"), unknownSize, nil)
		s.Require().NoError(err)
		s.Equal("hello world", rec.body.String())

		left, err := afero.ReadDir(s.fs, testTempDir)
		s.Require().NoError(err)
		s.Empty(left, "temp file removed after upload")
	})

	s.Run("cancelled while buffering", func() {
		for _, cause := range []error{context.Canceled, context.DeadlineExceeded} {
			s.storage = s.newStorage(WithChunkSize(4), WithMemoryBufferSize(2))

			payload := io.MultiReader(strings.NewReader("hello"), iotest.ErrReader(cause))
			_, err := s.storage.upload(s.ctx, "/a.txt", "a.txt", payload, unknownSize, nil)
			s.Require().ErrorIs(err, cause)
			s.False(filestorage.IsStorageError(err), "context errors are not translated")
		}
	})

	s.Run("too large", func() {
		s.storage = s.newStorage(WithChunkSize(4), WithMemoryBufferSize(2), WithMaxUploadSize(5))

		_, err := s.storage.upload(s.ctx, "/a.txt", "a.txt", strings.NewReader("hello world"), unknownSize, nil)
		s.Require().ErrorIs(err, filestorage.ErrQuotaReached)
	})
}

func (s *UploadTestSuite) TestUploadState() {
	s.Equal("IDLE", stateIdle.String())
	s.Equal("SESSION_APPEND", stateSessionAppend.String())
	s.Equal("FAILED", stateFailed.String())
	s.Equal("uploadState(42)", uploadState(42).String())
}

func (s *UploadTestSuite) TestUploadSession() {
	sess := uploadSession{id: "sess", offset: 8, chunkSize: 8}
	next := sess.advance(8)
	s.Equal(int64(8), sess.offset, "advance leaves the receiver alone")
	s.Equal(int64(16), next.offset)
	s.Equal(&files.UploadSessionCursor{SessionId: "sess", Offset: 16}, next.cursor())
}

func (s *UploadTestSuite) TestRename() {
	client, err := s.storage.Client()
	s.Require().NoError(err)

	s.Run("case-only change hops over a temporary name", func() {
		var moves []*files.RelocationArg
		s.mockClient.EXPECT().
			MoveV2(mock.Anything).
			RunAndReturn(func(arg *files.RelocationArg) (*files.RelocationResult, error) {
				moves = append(moves, arg)
				return &files.RelocationResult{Metadata: fileMD(arg.ToPath, 3)}, nil
			}).
			Times(2)

		md, err := s.storage.rename(s.ctx, client, "/docs/report.pdf", "/docs/Report.pdf")
		s.Require().NoError(err)
		s.Require().Len(moves, 2)

		s.Equal("/docs/report.pdf", moves[0].FromPath)
		s.True(strings.HasPrefix(moves[0].ToPath, "/docs/.Report.pdf."), moves[0].ToPath)
		s.Equal(moves[0].ToPath, moves[1].FromPath)
		s.Equal("/docs/Report.pdf", moves[1].ToPath)
		s.Equal("Report.pdf", md.(*files.FileMetadata).Name)
	})

	s.Run("identical paths only look the item up", func() {
		s.mockClient.EXPECT().
			GetMetadata(mock.MatchedBy(func(arg *files.GetMetadataArg) bool { return arg.Path == "/docs/a.txt" })).
			Return(fileMD("/docs/a.txt", 1), nil).
			Once()

		_, err := s.storage.rename(s.ctx, client, "/docs/a.txt", "/docs/a.txt/")
		s.Require().NoError(err)
	})

	s.Run("plain move", func() {
		s.mockClient.EXPECT().
			MoveV2(mock.MatchedBy(func(arg *files.RelocationArg) bool {
				return arg.FromPath == "/docs/a.txt" && arg.ToPath == "/archive/a.txt" && !arg.Autorename
			})).
			Return(&files.RelocationResult{Metadata: fileMD("/archive/a.txt", 1)}, nil).
			Once()

		_, err := s.storage.rename(s.ctx, client, "/docs/a.txt", "/archive/a.txt")
		s.Require().NoError(err)
	})

	s.Run("conflict", func() {
		s.mockClient.EXPECT().
			MoveV2(mock.Anything).
			Return(nil, moveFailed(conflictError(files.WriteConflictErrorFile))).
			Once()

		_, err := s.storage.rename(s.ctx, client, "/docs/a.txt", "/archive/a.txt")
		s.Require().ErrorIs(err, filestorage.ErrFileAlreadyExists)
	})
}

func (s *UploadTestSuite) TestUniqueName() {
	client, err := s.storage.Client()
	s.Require().NoError(err)

	existing := map[string]bool{
		"/docs/a.txt":     true,
		"/docs/a (1).txt": true,
		"/docs/a (2).txt": true,
	}
	probes := 0
	s.mockClient.EXPECT().
		GetMetadata(mock.Anything).
		RunAndReturn(func(arg *files.GetMetadataArg) (files.IsMetadata, error) {
			probes++
			if existing[arg.Path] {
				return fileMD(arg.Path, 1), nil
			}
			return nil, metadataNotFound()
		})

	name, err := s.storage.uniqueName(s.ctx, client, "/docs", "a.txt")
	s.Require().NoError(err)
	s.Equal("a (3).txt", name)
	s.False(existing["/docs/"+name])
	s.LessOrEqual(probes, len(existing)+1)

	probes = 0
	name, err = s.storage.uniqueName(s.ctx, client, "/docs", "b.txt")
	s.Require().NoError(err)
	s.Equal("b.txt", name, "a free name is kept")
	s.Equal(1, probes)
}

func (s *UploadTestSuite) TestUniqueNameFailure() {
	client, err := s.storage.Client()
	s.Require().NoError(err)

	s.mockClient.EXPECT().
		GetMetadata(mock.Anything).
		Return(nil, dropbox.SDKInternalError{StatusCode: http.StatusTooManyRequests}).
		Once()

	_, err = s.storage.uniqueName(s.ctx, client, "/docs", "a.txt")
	s.Require().ErrorIs(err, filestorage.ErrRateLimited)
}

func (s *UploadTestSuite) TestPathExists() {
	client, err := s.storage.Client()
	s.Require().NoError(err)

	s.mockClient.EXPECT().GetMetadata(mock.Anything).Return(deletedMD("/docs/gone.txt"), nil).Once()
	exists, err := s.storage.pathExists(client, "/docs/gone.txt")
	s.Require().NoError(err)
	s.False(exists, "deleted entries do not exist")

	s.mockClient.EXPECT().GetMetadata(mock.Anything).Return(folderMD("/docs/sub"), nil).Once()
	exists, err = s.storage.pathExists(client, "/docs/sub")
	s.Require().NoError(err)
	s.True(exists, "folders block a name too")

	s.mockClient.EXPECT().GetMetadata(mock.Anything).Return(nil, errors.New("boom")).Once()
	_, err = s.storage.pathExists(client, "/docs/x")
	s.Require().ErrorIs(err, filestorage.ErrUnexpected)
}

func TestUpload(t *testing.T) {
	suite.Run(t, new(UploadTestSuite))
}
