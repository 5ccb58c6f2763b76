package dropbox

import (
	"context"

	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox/files"
	"go.uber.org/zap"

	"github.com/c2fo/filestorage"
	"github.com/c2fo/filestorage/utils"
)

// universal search pattern
const wildcard = "*"

// page is one page of a cursor-paginated listing.
type page struct {
	entries []files.IsMetadata
	cursor  string
	hasMore bool
}

// observe counts and logs a backend call.
func (s *Storage) observe(op, path string) {
	s.metrics.requests.WithLabelValues(op).Inc()
	s.log.Debug("backend call", zap.String("op", op), zap.String("path", path))
}

// paginate fetches the first page and follows its cursor until the backend reports no more pages. Entries keep the
// order the backend delivered them in.
func paginate(ctx context.Context, first func() (page, error), next func(cursor string) (page, error)) ([]files.IsMetadata, error) {
	return paginateUntil(ctx, first, next, nil)
}

// paginateUntil is paginate that stops after the first page holding an entry stop accepts. A nil stop reads every page.
func paginateUntil(ctx context.Context, first func() (page, error), next func(cursor string) (page, error), stop func(files.IsMetadata) bool) ([]files.IsMetadata, error) {
	p, err := first()
	if err != nil {
		return nil, err
	}

	entries := p.entries
	for p.hasMore && !anyEntry(p.entries, stop) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if p, err = next(p.cursor); err != nil {
			return nil, err
		}
		entries = append(entries, p.entries...)
	}

	return entries, nil
}

func anyEntry(entries []files.IsMetadata, match func(files.IsMetadata) bool) bool {
	if match == nil {
		return false
	}
	for _, e := range entries {
		if match(e) {
			return true
		}
	}
	return false
}

func isFolder(e files.IsMetadata) bool {
	_, ok := e.(*files.FolderMetadata)
	return ok
}

// listFolder returns all entries of folderID, of its whole subtree if recursive.
func (s *Storage) listFolder(ctx context.Context, folderID string, recursive bool) ([]files.IsMetadata, error) {
	client, err := s.Client()
	if err != nil {
		return nil, err
	}

	first, next := s.listPages(client, folderID, recursive)
	return paginate(ctx, first, next)
}

// hasSubfolders reports whether folderID directly holds a folder. Paging stops at the first one.
func (s *Storage) hasSubfolders(ctx context.Context, client Client, folderID string) (bool, error) {
	first, next := s.listPages(client, folderID, false)
	entries, err := paginateUntil(ctx, first, next, isFolder)
	if err != nil {
		return false, err
	}
	return anyEntry(entries, isFolder), nil
}

func (s *Storage) listPages(client Client, folderID string, recursive bool) (func() (page, error), func(string) (page, error)) {
	p := utils.ToPath(folderID)
	first := func() (page, error) {
		arg := files.NewListFolderArg(apiPath(folderID))
		arg.Recursive = recursive
		arg.IncludeMediaInfo = true

		s.observe(opList, p)
		res, err := client.ListFolder(arg)
		if err != nil {
			return page{}, s.translate(opList, err, p, "")
		}
		return page{entries: res.Entries, cursor: res.Cursor, hasMore: res.HasMore}, nil
	}
	next := func(cursor string) (page, error) {
		s.observe(opListContinue, p)
		res, err := client.ListFolderContinue(files.NewListFolderContinueArg(cursor))
		if err != nil {
			return page{}, s.translate(opListContinue, err, p, "")
		}
		return page{entries: res.Entries, cursor: res.Cursor, hasMore: res.HasMore}, nil
	}
	return first, next
}

// listSubfolders returns the folders directly inside folderID.
func (s *Storage) listSubfolders(ctx context.Context, folderID string) ([]filestorage.Folder, error) {
	entries, err := s.listFolder(ctx, folderID, false)
	if err != nil {
		return nil, err
	}

	folders := make([]filestorage.Folder, 0, len(entries))
	for _, entry := range entries {
		if m, ok := entry.(*files.FolderMetadata); ok {
			folders = append(folders, s.toFolder(m))
		}
	}
	return folders, nil
}

// getAllFiles returns the files inside folderID, or inside its whole subtree if recursive.
func (s *Storage) getAllFiles(ctx context.Context, folderID string, recursive bool) ([]filestorage.File, error) {
	entries, err := s.listFolder(ctx, folderID, recursive)
	if err != nil {
		return nil, err
	}
	return s.filesOf(entries), nil
}

func (s *Storage) filesOf(entries []files.IsMetadata) []filestorage.File {
	out := make([]filestorage.File, 0, len(entries))
	for _, entry := range entries {
		if m, ok := entry.(*files.FileMetadata); ok {
			out = append(out, s.toFile(m))
		}
	}
	return out
}

// search returns the files below folderID matching pattern. Without includeSubfolders only direct children of
// folderID are returned. An empty or universal pattern lists instead of searching.
func (s *Storage) search(ctx context.Context, pattern, folderID string, includeSubfolders bool) ([]filestorage.File, error) {
	if pattern == "" || pattern == wildcard {
		return s.getAllFiles(ctx, folderID, includeSubfolders)
	}

	client, err := s.Client()
	if err != nil {
		return nil, err
	}

	p := utils.ToPath(folderID)
	first := func() (page, error) {
		opts := files.NewSearchOptions()
		opts.Path = apiPath(folderID)
		arg := files.NewSearchV2Arg(pattern)
		arg.Options = opts

		s.observe(opSearch, p)
		res, err := client.SearchV2(arg)
		if err != nil {
			return page{}, s.translate(opSearch, err, p, "")
		}
		return searchPage(res), nil
	}
	next := func(cursor string) (page, error) {
		s.observe(opSearchContinue, p)
		res, err := client.SearchContinueV2(files.NewSearchV2ContinueArg(cursor))
		if err != nil {
			return page{}, s.translate(opSearchContinue, err, p, "")
		}
		return searchPage(res), nil
	}

	entries, err := paginate(ctx, first, next)
	if err != nil {
		return nil, err
	}

	found := s.filesOf(entries)
	if includeSubfolders {
		return found, nil
	}

	direct := found[:0]
	for i := range found {
		if utils.SamePath(found[i].FolderID, folderID) {
			direct = append(direct, found[i])
		}
	}
	return direct, nil
}

func searchPage(res *files.SearchV2Result) page {
	p := page{cursor: res.Cursor, hasMore: res.HasMore}
	for _, match := range res.Matches {
		if match == nil || match.Metadata == nil || match.Metadata.Metadata == nil {
			continue
		}
		p.entries = append(p.entries, match.Metadata.Metadata)
	}
	return p
}
