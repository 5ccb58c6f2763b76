package dropbox

import (
	"net/http"
	"strconv"
	"testing"

	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox"
	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox/files"
	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/c2fo/filestorage"
)

type FolderAccessTestSuite struct {
	baseSuite
}

func (s *FolderAccessTestSuite) TestFolderExists() {
	s.Run("root always exists", func() {
		for _, id := range []string{"", "/", filestorage.RootFolderID} {
			exists, err := s.storage.FolderExists(s.ctx, id)
			s.Require().NoError(err)
			s.True(exists)
		}
	})

	s.Run("folder", func() {
		s.mockClient.EXPECT().
			GetMetadata(mock.MatchedBy(func(arg *files.GetMetadataArg) bool { return arg.Path == "/docs" })).
			Return(folderMD("/docs"), nil).
			Once()

		exists, err := s.storage.FolderExists(s.ctx, "/docs/")
		s.Require().NoError(err)
		s.True(exists)
	})

	s.Run("file", func() {
		s.mockClient.EXPECT().GetMetadata(mock.Anything).Return(fileMD("/docs", 1), nil).Once()

		exists, err := s.storage.FolderExists(s.ctx, "/docs")
		s.Require().NoError(err)
		s.False(exists)
	})

	s.Run("missing", func() {
		s.mockClient.EXPECT().GetMetadata(mock.Anything).Return(nil, metadataNotFound()).Once()

		exists, err := s.storage.FolderExists(s.ctx, "/docs")
		s.Require().NoError(err)
		s.False(exists)
	})

	s.Run("rate limited", func() {
		s.mockClient.EXPECT().
			GetMetadata(mock.Anything).
			Return(nil, dropbox.SDKInternalError{StatusCode: http.StatusTooManyRequests}).
			Once()

		_, err := s.storage.FolderExists(s.ctx, "/docs")
		s.Require().ErrorIs(err, filestorage.ErrRateLimited)
	})
}

// expectChildren serves the listing of apiPath in pages of one entry each.
func (s *baseSuite) expectChildren(apiPath string, entries ...files.IsMetadata) {
	page := func(i int) *files.ListFolderResult {
		res := &files.ListFolderResult{Cursor: strconv.Itoa(i + 1), HasMore: i+1 < len(entries)}
		if i < len(entries) {
			res.Entries = entries[i : i+1]
		}
		return res
	}
	s.mockClient.EXPECT().
		ListFolder(mock.MatchedBy(func(arg *files.ListFolderArg) bool { return arg.Path == apiPath && !arg.Recursive })).
		Return(page(0), nil).
		Once()
	s.mockClient.EXPECT().
		ListFolderContinue(mock.Anything).
		RunAndReturn(func(arg *files.ListFolderContinueArg) (*files.ListFolderResult, error) {
			i, err := strconv.Atoi(arg.Cursor)
			s.Require().NoError(err)
			return page(i), nil
		}).
		Maybe()
}

func (s *FolderAccessTestSuite) TestGetFolder() {
	s.Run("with subfolders", func() {
		s.mockClient.EXPECT().GetMetadata(mock.Anything).Return(folderMD("/Docs/Reports"), nil).Once()
		s.expectChildren("/Docs/Reports", fileMD("/Docs/Reports/a.txt", 1), folderMD("/Docs/Reports/2024"), fileMD("/Docs/Reports/b.txt", 2))

		f, err := s.storage.GetFolder(s.ctx, "/docs/reports")
		s.Require().NoError(err)
		s.Equal("/Docs/Reports", f.ID, "the stored case wins")
		s.Equal("Reports", f.Name)
		s.True(f.HasSubfolders)
		s.mockClient.AssertNumberOfCalls(s.T(), "ListFolderContinue", 1)
	})

	s.Run("empty folder", func() {
		s.SetupTest()
		s.mockClient.EXPECT().GetMetadata(mock.Anything).Return(folderMD("/docs/empty"), nil).Once()
		s.expectChildren("/docs/empty")

		f, err := s.storage.GetFolder(s.ctx, "/docs/empty")
		s.Require().NoError(err)
		s.False(f.HasSubfolders)
	})

	s.Run("files only", func() {
		s.SetupTest()
		s.mockClient.EXPECT().GetMetadata(mock.Anything).Return(folderMD("/docs"), nil).Once()
		s.expectChildren("/docs", fileMD("/docs/a.txt", 1), fileMD("/docs/b.txt", 2))

		f, err := s.storage.GetFolder(s.ctx, "/docs")
		s.Require().NoError(err)
		s.False(f.HasSubfolders)
	})

	s.Run("not a folder", func() {
		s.SetupTest()
		s.mockClient.EXPECT().GetMetadata(mock.Anything).Return(fileMD("/docs/a.txt", 1), nil).Once()
		_, err := s.storage.GetFolder(s.ctx, "/docs/a.txt")
		s.Require().ErrorIs(err, filestorage.ErrNotAFolder)
	})

	s.Run("listing fails", func() {
		s.SetupTest()
		s.mockClient.EXPECT().GetMetadata(mock.Anything).Return(folderMD("/docs"), nil).Once()
		s.mockClient.EXPECT().ListFolder(mock.Anything).Return(nil, auth401()).Once()

		_, err := s.storage.GetFolder(s.ctx, "/docs")
		s.Require().ErrorIs(err, filestorage.ErrAuthInvalid)
	})

	s.Run("root", func() {
		s.SetupTest()
		s.expectChildren("", folderMD("/Docs"))

		root, err := s.storage.GetFolder(s.ctx, "")
		s.Require().NoError(err)
		s.True(root.Root)
		s.True(root.HasSubfolders)
	})
}

func (s *FolderAccessTestSuite) TestGetRootFolder() {
	s.expectChildren("", fileMD("/a.txt", 1))

	root, err := s.storage.GetRootFolder(s.ctx)
	s.Require().NoError(err)
	s.Equal(filestorage.RootFolderID, root.ID)
	s.Equal("Jane's Dropbox", root.Name)
	s.False(root.HasSubfolders)

	s.expectChildren("")
	root, err = NewStorage(WithClient(s.mockClient), WithRegisterer(nil)).GetRootFolder(s.ctx)
	s.Require().NoError(err)
	s.Equal(defaultAccountName, root.Name)
}

func (s *FolderAccessTestSuite) TestGetSubfolders() {
	s.mockClient.EXPECT().
		ListFolder(mock.MatchedBy(func(arg *files.ListFolderArg) bool { return arg.Path == "" && !arg.Recursive })).
		Return(&files.ListFolderResult{Entries: []files.IsMetadata{
			folderMD("/Docs"),
			fileMD("/a.txt", 1),
			folderMD("/Pictures"),
			deletedMD("/old"),
		}}, nil).
		Once()

	folders, err := s.storage.GetSubfolders(s.ctx, filestorage.RootFolderID)
	s.Require().NoError(err)
	s.Require().Len(folders, 2)
	s.Equal("/Docs", folders[0].ID)
	s.Equal(filestorage.RootFolderID, folders[0].ParentID)
	s.Equal("/Pictures", folders[1].ID)
}

func (s *FolderAccessTestSuite) TestGetPathToRoot() {
	s.mockClient.EXPECT().GetMetadata(mock.Anything).Return(folderMD("/a/b/c"), nil).Once()

	path, err := s.storage.GetPathToRoot(s.ctx, "/a/b/c")
	s.Require().NoError(err)

	ids := make([]string, 0, len(path))
	for _, f := range path {
		ids = append(ids, f.ID)
	}
	s.Equal([]string{"/a/b/c", "/a/b", "/a", filestorage.RootFolderID}, ids)
	s.True(path[1].HasSubfolders, "ancestors hold the folder below them")
	s.True(path[len(path)-1].Root)
	s.Equal("Jane's Dropbox", path[len(path)-1].Name)

	s.expectChildren("")
	rootOnly, err := s.storage.GetPathToRoot(s.ctx, filestorage.RootFolderID)
	s.Require().NoError(err)
	s.Len(rootOnly, 1)

	s.mockClient.EXPECT().GetMetadata(mock.Anything).Return(nil, metadataNotFound()).Once()
	_, err = s.storage.GetPathToRoot(s.ctx, "/gone")
	s.Require().ErrorIs(err, filestorage.ErrNotFound)
}

func createFolderFailed(we *files.WriteError) error {
	return files.CreateFolderV2APIError{
		APIError:      apiError("path/conflict/folder/.."),
		EndpointError: &files.CreateFolderError{Tagged: tagged(files.CreateFolderErrorPath), Path: we},
	}
}

func (s *FolderAccessTestSuite) TestCreateFolder() {
	s.Run("created", func() {
		s.mockClient.EXPECT().
			CreateFolderV2(mock.MatchedBy(func(arg *files.CreateFolderArg) bool {
				return arg.Path == "/docs/New" && !arg.Autorename
			})).
			Return(&files.CreateFolderResult{Metadata: folderMD("/docs/New")}, nil).
			Once()

		id, err := s.storage.CreateFolder(s.ctx, &filestorage.Folder{ParentID: "/docs", Name: "New"})
		s.Require().NoError(err)
		s.Equal("/docs/New", id)
	})

	s.Run("below root", func() {
		s.mockClient.EXPECT().
			CreateFolderV2(mock.MatchedBy(func(arg *files.CreateFolderArg) bool { return arg.Path == "/New" })).
			Return(&files.CreateFolderResult{}, nil).
			Once()

		id, err := s.storage.CreateFolder(s.ctx, &filestorage.Folder{ParentID: filestorage.RootFolderID, Name: "New"})
		s.Require().NoError(err)
		s.Equal("/New", id)
	})

	s.Run("duplicate", func() {
		s.mockClient.EXPECT().
			CreateFolderV2(mock.Anything).
			Return(nil, createFolderFailed(conflictError(files.WriteConflictErrorFolder))).
			Once()

		_, err := s.storage.CreateFolder(s.ctx, &filestorage.Folder{ParentID: "/docs", Name: "New"})
		var se *filestorage.Error
		s.Require().ErrorAs(err, &se)
		s.Equal(filestorage.ErrDuplicateFolder, se.Kind)
		s.Equal("New", se.Name)
		s.Contains(se.Message, `"docs"`)
	})

	s.Run("illegal name", func() {
		s.mockClient.EXPECT().
			CreateFolderV2(mock.Anything).
			Return(nil, createFolderFailed(writeError(files.WriteErrorDisallowedName))).
			Once()

		_, err := s.storage.CreateFolder(s.ctx, &filestorage.Folder{ParentID: "/docs", Name: "desktop.ini"})
		s.Require().ErrorIs(err, filestorage.ErrIllegalCharacters)
	})

	s.Run("name with a slash never reaches Dropbox", func() {
		_, err := s.storage.CreateFolder(s.ctx, &filestorage.Folder{ParentID: "/docs", Name: "a/b"})
		s.Require().ErrorIs(err, filestorage.ErrIllegalCharacters)

		_, err = s.storage.RenameFolder(s.ctx, "/docs/reports", "..")
		s.Require().ErrorIs(err, filestorage.ErrIllegalCharacters)
	})

	s.Run("read-only", func() {
		_, err := s.newStorage(WithReadOnly()).CreateFolder(s.ctx, &filestorage.Folder{ParentID: "/docs", Name: "New"})
		s.Require().ErrorIs(err, filestorage.ErrOperationNotSupported)
	})
}

func (s *FolderAccessTestSuite) TestMoveFolder() {
	s.Run("root is immutable", func() {
		_, err := s.storage.MoveFolder(s.ctx, filestorage.RootFolderID, "/docs", "x")
		s.Require().ErrorIs(err, filestorage.ErrOperationNotSupported)
		_, err = s.storage.RenameFolder(s.ctx, "", "x")
		s.Require().ErrorIs(err, filestorage.ErrOperationNotSupported)
	})

	s.Run("into another parent", func() {
		s.mockClient.EXPECT().
			MoveV2(mock.MatchedBy(func(arg *files.RelocationArg) bool {
				return arg.FromPath == "/docs/old" && arg.ToPath == "/archive/old"
			})).
			Return(&files.RelocationResult{Metadata: folderMD("/archive/old")}, nil).
			Once()

		id, err := s.storage.MoveFolder(s.ctx, "/docs/old", "/archive", "")
		s.Require().NoError(err)
		s.Equal("/archive/old", id)
	})

	s.Run("rename in place", func() {
		s.mockClient.EXPECT().
			MoveV2(mock.MatchedBy(func(arg *files.RelocationArg) bool {
				return arg.FromPath == "/docs/old" && arg.ToPath == "/docs/new"
			})).
			Return(&files.RelocationResult{Metadata: folderMD("/docs/new")}, nil).
			Once()

		id, err := s.storage.RenameFolder(s.ctx, "/docs/old", "new")
		s.Require().NoError(err)
		s.Equal("/docs/new", id)
	})

	s.Run("case-only rename", func() {
		s.mockClient.EXPECT().
			MoveV2(mock.Anything).
			RunAndReturn(func(arg *files.RelocationArg) (*files.RelocationResult, error) {
				return &files.RelocationResult{Metadata: folderMD(arg.ToPath)}, nil
			}).
			Times(2)

		id, err := s.storage.RenameFolder(s.ctx, "/docs/old", "Old")
		s.Require().NoError(err)
		s.Equal("/docs/Old", id)
	})

	s.Run("duplicate", func() {
		s.mockClient.EXPECT().
			MoveV2(mock.Anything).
			Return(nil, moveFailed(conflictError(files.WriteConflictErrorFolder))).
			Once()

		_, err := s.storage.RenameFolder(s.ctx, "/docs/old", "taken")
		s.Require().ErrorIs(err, filestorage.ErrDuplicateFolder)
	})
}

func (s *FolderAccessTestSuite) TestDeleteFolder() {
	s.mockClient.EXPECT().
		DeleteV2(mock.MatchedBy(func(arg *files.DeleteArg) bool { return arg.Path == "/docs/old" })).
		Return(&files.DeleteResult{Metadata: folderMD("/docs/old")}, nil).
		Once()

	id, err := s.storage.DeleteFolder(s.ctx, "/docs/old/", true)
	s.Require().NoError(err)
	s.Equal("/docs/old", id)

	_, err = s.storage.DeleteFolder(s.ctx, filestorage.RootFolderID, true)
	s.Require().ErrorIs(err, filestorage.ErrOperationNotSupported)

	s.mockClient.EXPECT().
		DeleteV2(mock.Anything).
		Return(nil, deleteFailed(writeError(files.WriteErrorNoWritePermission))).
		Once()
	_, err = s.storage.DeleteFolder(s.ctx, "/shared", false)
	s.Require().ErrorIs(err, filestorage.ErrNoCreateAccess)
}

func (s *FolderAccessTestSuite) TestClearFolder() {
	s.mockClient.EXPECT().
		ListFolder(mock.Anything).
		Return(&files.ListFolderResult{Entries: []files.IsMetadata{
			fileMD("/docs/a.txt", 1),
			folderMD("/docs/sub"),
			fileMD("/docs/b.txt", 1),
			deletedMD("/docs/old.txt"),
		}}, nil).
		Once()

	var deleted []string
	s.mockClient.EXPECT().
		DeleteV2(mock.Anything).
		RunAndReturn(func(arg *files.DeleteArg) (*files.DeleteResult, error) {
			deleted = append(deleted, arg.Path)
			switch arg.Path {
			case "/docs/sub":
				return nil, deleteFailed(writeError(files.WriteErrorNoWritePermission))
			case "/docs/b.txt":
				return nil, lookupFailures[opDelete](lookupError(files.LookupErrorNotFound))
			}
			return &files.DeleteResult{}, nil
		}).
		Times(3)

	err := s.storage.ClearFolder(s.ctx, "/docs", false)
	s.Require().Error(err)
	s.Equal([]string{"/docs/a.txt", "/docs/sub", "/docs/b.txt"}, deleted, "keeps going past failures")

	var merr *multierror.Error
	s.Require().ErrorAs(err, &merr)
	s.Len(merr.Errors, 1, "entries that are already gone are not failures")
	s.Require().ErrorIs(err, filestorage.ErrNoCreateAccess)
}

func (s *FolderAccessTestSuite) TestQuotas() {
	q, err := s.storage.GetStorageQuota(s.ctx, "/docs")
	s.Require().NoError(err)
	s.Equal(filestorage.UnlimitedQuota(filestorage.QuotaStorage), q)

	q, err = s.storage.GetFileQuota(s.ctx, "/docs")
	s.Require().NoError(err)
	s.Equal(filestorage.Unlimited, q.Limit)
	s.Equal(filestorage.QuotaFile, q.Type)
}

func TestFolderAccess(t *testing.T) {
	suite.Run(t, new(FolderAccessTestSuite))
}
