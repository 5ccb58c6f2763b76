package dropbox

import (
	"context"
	"fmt"
	"strconv"
	"testing"

	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox/files"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/c2fo/filestorage"
)

// pagingClient serves a fixed listing in pages of pageSize entries.
type pagingClient struct {
	Client
	entries  []files.IsMetadata
	pageSize int
	calls    int
	// called before every continuation
	onContinue func()
}

func (c *pagingClient) page(offset int) *files.ListFolderResult {
	end := offset + c.pageSize
	if end > len(c.entries) {
		end = len(c.entries)
	}
	return &files.ListFolderResult{
		Entries: c.entries[offset:end],
		Cursor:  strconv.Itoa(end),
		HasMore: end < len(c.entries),
	}
}

func (c *pagingClient) ListFolder(*files.ListFolderArg) (*files.ListFolderResult, error) {
	c.calls++
	return c.page(0), nil
}

func (c *pagingClient) ListFolderContinue(arg *files.ListFolderContinueArg) (*files.ListFolderResult, error) {
	c.calls++
	if c.onContinue != nil {
		c.onContinue()
	}
	offset, err := strconv.Atoi(arg.Cursor)
	if err != nil {
		return nil, err
	}
	return c.page(offset), nil
}

type ListingTestSuite struct {
	baseSuite
}

func listing(n int) []files.IsMetadata {
	entries := make([]files.IsMetadata, 0, n)
	for i := 0; i < n; i++ {
		if i%3 == 0 {
			entries = append(entries, folderMD(fmt.Sprintf("/docs/dir%02d", i)))
			continue
		}
		entries = append(entries, fileMD(fmt.Sprintf("/docs/file%02d.txt", i), uint64(i)))
	}
	return entries
}

func (s *ListingTestSuite) TestPaginationKeepsOrder() {
	entries := listing(23)
	for pageSize := 1; pageSize <= len(entries)+1; pageSize++ {
		client := &pagingClient{entries: entries, pageSize: pageSize}
		store := s.newStorage(WithClient(client))

		got, err := store.listFolder(s.ctx, "/docs", false)
		s.Require().NoError(err, "page size %d", pageSize)
		s.Equal(entries, got, "page size %d", pageSize)

		pages := (len(entries) + pageSize - 1) / pageSize
		s.Equal(pages, client.calls, "one call per page, page size %d", pageSize)
	}
}

func (s *ListingTestSuite) TestPaginationEmpty() {
	client := &pagingClient{pageSize: 5}
	store := s.newStorage(WithClient(client))

	got, err := store.getAllFiles(s.ctx, "/docs", false)
	s.Require().NoError(err)
	s.NotNil(got)
	s.Empty(got)
	s.Equal(1, client.calls)
}

func (s *ListingTestSuite) TestPaginationStopsOnCancel() {
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	client := &pagingClient{entries: listing(10), pageSize: 2}
	client.onContinue = cancel
	store := s.newStorage(WithClient(client))

	_, err := store.listFolder(ctx, "/docs", false)
	s.Require().ErrorIs(err, context.Canceled)
	s.Equal(2, client.calls, "no page is requested after cancellation")
}

func (s *ListingTestSuite) TestListFolderArgs() {
	s.mockClient.EXPECT().
		ListFolder(mock.MatchedBy(func(arg *files.ListFolderArg) bool {
			return arg.Path == "" && arg.Recursive && arg.IncludeMediaInfo
		})).
		Return(&files.ListFolderResult{Entries: listing(4)}, nil).
		Once()

	found, err := s.storage.getAllFiles(s.ctx, filestorage.RootFolderID, true)
	s.Require().NoError(err)
	s.Len(found, 2, "folders are not files")
}

func (s *ListingTestSuite) TestListFolderNotFound() {
	s.mockClient.EXPECT().
		ListFolder(mock.Anything).
		Return(nil, lookupFailures[opList](lookupError(files.LookupErrorNotFound))).
		Once()

	_, err := s.storage.listFolder(s.ctx, "/missing", false)
	s.Require().ErrorIs(err, filestorage.ErrNotFound)
}

func (s *ListingTestSuite) TestListContinueFailure() {
	s.mockClient.EXPECT().
		ListFolder(mock.Anything).
		Return(&files.ListFolderResult{Entries: listing(2), Cursor: "c1", HasMore: true}, nil).
		Once()
	s.mockClient.EXPECT().
		ListFolderContinue(mock.MatchedBy(func(arg *files.ListFolderContinueArg) bool { return arg.Cursor == "c1" })).
		Return(nil, lookupFailures[opListContinue](lookupError(files.LookupErrorNotFolder))).
		Once()

	_, err := s.storage.listFolder(s.ctx, "/docs", false)
	s.Require().ErrorIs(err, filestorage.ErrNotAFolder)
}

func (s *ListingTestSuite) TestListSubfolders() {
	s.mockClient.EXPECT().
		ListFolder(mock.Anything).
		Return(&files.ListFolderResult{Entries: listing(7)}, nil).
		Once()

	folders, err := s.storage.listSubfolders(s.ctx, "/docs")
	s.Require().NoError(err)
	s.Require().Len(folders, 3)
	s.Equal("/docs/dir00", folders[0].ID)
	s.Equal("/docs", folders[0].ParentID)
}

func match(m files.IsMetadata) *files.SearchMatchV2 {
	return &files.SearchMatchV2{Metadata: &files.MetadataV2{Tagged: tagged(files.MetadataV2Metadata), Metadata: m}}
}

func (s *ListingTestSuite) TestSearch() {
	expectSearch := func() {
		s.mockClient.EXPECT().
			SearchV2(mock.MatchedBy(func(arg *files.SearchV2Arg) bool {
				return arg.Query == "report" && arg.Options != nil && arg.Options.Path == "/docs"
			})).
			Return(&files.SearchV2Result{
				Matches: []*files.SearchMatchV2{
					match(fileMD("/docs/report.pdf", 1)),
					match(folderMD("/docs/reports")),
					match(fileMD("/docs/reports/q1 report.pdf", 2)),
					nil,
				},
				Cursor:  "s1",
				HasMore: true,
			}, nil).
			Once()
		s.mockClient.EXPECT().
			SearchContinueV2(mock.MatchedBy(func(arg *files.SearchV2ContinueArg) bool { return arg.Cursor == "s1" })).
			Return(&files.SearchV2Result{
				Matches: []*files.SearchMatchV2{match(fileMD("/Docs/Report (1).pdf", 3)), {}},
			}, nil).
			Once()
	}

	s.Run("direct children only", func() {
		expectSearch()
		found, err := s.storage.search(s.ctx, "report", "/docs", false)
		s.Require().NoError(err)
		s.Require().Len(found, 2)
		s.Equal("report.pdf", found[0].ID)
		s.Equal("Report (1).pdf", found[1].ID, "folder ids compare case-insensitively")
	})

	s.Run("whole subtree", func() {
		expectSearch()
		found, err := s.storage.search(s.ctx, "report", "/docs", true)
		s.Require().NoError(err)
		s.Len(found, 3)
	})
}

func (s *ListingTestSuite) TestSearchWildcardLists() {
	for _, pattern := range []string{"", wildcard} {
		s.mockClient.EXPECT().
			ListFolder(mock.MatchedBy(func(arg *files.ListFolderArg) bool { return arg.Path == "/docs" && !arg.Recursive })).
			Return(&files.ListFolderResult{Entries: listing(3)}, nil).
			Once()

		found, err := s.storage.search(s.ctx, pattern, "/docs", false)
		s.Require().NoError(err)
		s.Len(found, 2, "pattern %q", pattern)
	}
}

func (s *ListingTestSuite) TestSearchFailure() {
	s.mockClient.EXPECT().
		SearchV2(mock.Anything).
		Return(nil, lookupFailures[opSearch](lookupError(files.LookupErrorNotFound))).
		Once()

	_, err := s.storage.search(s.ctx, "x", "/missing", true)
	s.Require().ErrorIs(err, filestorage.ErrNotFound)
}

func TestListing(t *testing.T) {
	suite.Run(t, new(ListingTestSuite))
}
