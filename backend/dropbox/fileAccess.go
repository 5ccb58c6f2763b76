package dropbox

import (
	"context"
	"errors"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox"
	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox/files"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/c2fo/filestorage"
	"github.com/c2fo/filestorage/utils"
)

const (
	thumbnailSize   = files.ThumbnailSizeW256h256
	thumbnailFormat = files.ThumbnailFormatJpeg
)

// writable fails when the storage is read-only.
func (s *Storage) writable(path string) error {
	if s.options.ReadOnly {
		return s.newError(filestorage.ErrOperationNotSupported, path).WithCause(errReadOnly)
	}
	return nil
}

// validName fails with ILLEGAL_CHARACTERS for names Dropbox cannot store as a single path element.
func (s *Storage) validName(path, name string) error {
	if err := filestorage.ValidateName(name); err != nil {
		return s.newError(filestorage.ErrIllegalCharacters, path).WithName(name).WithCause(err)
	}
	return nil
}

// current fails for every version but the current one.
func (s *Storage) current(path, version string) error {
	if version != filestorage.CurrentVersion {
		return s.newError(filestorage.ErrVersioningNotSupported, path).WithCause(errVersion)
	}
	return nil
}

// fileName returns the name requested by a metadata update, "" if none.
func fileName(f *filestorage.File, modified []filestorage.Field) string {
	if f == nil {
		return ""
	}
	if f.FileName != "" && filestorage.ContainsField(modified, filestorage.FieldFileName) {
		return f.FileName
	}
	if f.Title != "" && filestorage.ContainsField(modified, filestorage.FieldTitle) {
		return f.Title
	}
	return ""
}

func modifiedTime(f *filestorage.File, modified []filestorage.Field) *time.Time {
	if f == nil || f.LastModified.IsZero() || !filestorage.ContainsField(modified, filestorage.FieldLastModified) {
		return nil
	}
	t := f.LastModified
	return &t
}

// Exists reports whether the file exists.
func (s *Storage) Exists(ctx context.Context, folderID, id, version string) (bool, error) {
	p := utils.ToFilePath(folderID, id)
	if err := s.current(p, version); err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	client, err := s.Client()
	if err != nil {
		return false, err
	}

	md, err := s.getMetadata(client, p)
	if err != nil {
		if errors.Is(err, filestorage.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if _, err := s.asFile(md, p); err != nil {
		return false, nil
	}
	return true, nil
}

// GetFileMetadata returns the metadata of a file, with its number of versions unless the revision policy is
// disabled.
func (s *Storage) GetFileMetadata(ctx context.Context, folderID, id, version string) (*filestorage.File, error) {
	p := utils.ToFilePath(folderID, id)
	if err := s.current(p, version); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client, err := s.Client()
	if err != nil {
		return nil, err
	}

	md, err := s.getMetadata(client, p)
	if err != nil {
		return nil, err
	}
	fm, err := s.asFile(md, p)
	if err != nil {
		return nil, err
	}

	f := s.toFile(fm)
	s.countRevisions(client, p, &f)
	return &f, nil
}

// countRevisions sets the number of versions of f. Failing to do so never fails the caller.
func (s *Storage) countRevisions(client Client, path string, f *filestorage.File) {
	if s.options.RevisionPolicy == RevisionPolicyDisabled {
		return
	}

	revs, err := s.listRevisions(client, path)
	if err == nil {
		if len(revs) > 0 {
			f.NumberOfVersions = len(revs)
		}
		return
	}

	switch s.options.RevisionPolicy {
	case RevisionPolicySilent:
	case RevisionPolicyFlag:
		f.MetadataDegraded = true
	default:
		s.log.Warn("revision count lookup failed", zap.String("path", path), zap.Error(err))
	}
}

func (s *Storage) listRevisions(client Client, path string) ([]*files.FileMetadata, error) {
	arg := files.NewListRevisionsArg(apiPath(path))
	arg.Limit = s.options.RevisionLimit

	s.observe(opListRevisions, path)
	res, err := client.ListRevisions(arg)
	if err != nil {
		return nil, s.translate(opListRevisions, err, path, utils.LastSegment(path))
	}
	return res.Entries, nil
}

// SaveFileMetadata renames a file when the update carries a new name. Other fields are not stored by Dropbox.
func (s *Storage) SaveFileMetadata(ctx context.Context, file *filestorage.File, modified []filestorage.Field) (filestorage.IDTuple, error) {
	folderID := utils.Normalize(file.FolderID)
	if file.ID == "" {
		// a new, empty document
		return s.SaveDocument(ctx, file, strings.NewReader(""), 0, modified)
	}

	p := utils.ToFilePath(folderID, file.ID)
	if err := s.writable(p); err != nil {
		return filestorage.IDTuple{}, err
	}

	newName := fileName(file, modified)
	if newName == "" || newName == file.ID {
		exists, err := s.Exists(ctx, folderID, file.ID, filestorage.CurrentVersion)
		if err != nil {
			return filestorage.IDTuple{}, err
		}
		if !exists {
			return filestorage.IDTuple{}, s.newError(filestorage.ErrNotFound, p).WithName(file.ID)
		}
		return filestorage.IDTuple{FolderID: folderID, ID: file.ID}, nil
	}

	return s.moveTo(ctx, p, folderID, newName)
}

// moveTo moves the file at from into folderID under name, probing for a free name unless the move only changes
// the case of the name.
func (s *Storage) moveTo(ctx context.Context, from, folderID, name string) (filestorage.IDTuple, error) {
	if err := s.validName(from, name); err != nil {
		return filestorage.IDTuple{}, err
	}
	client, err := s.Client()
	if err != nil {
		return filestorage.IDTuple{}, err
	}

	to := utils.ToFilePath(folderID, name)
	if !utils.SamePath(from, to) {
		if name, err = s.uniqueName(ctx, client, folderID, name); err != nil {
			return filestorage.IDTuple{}, err
		}
		to = utils.ToFilePath(folderID, name)
	}

	md, err := s.rename(ctx, client, from, to)
	if err != nil {
		return filestorage.IDTuple{}, err
	}
	return s.tupleOf(md, to), nil
}

// tupleOf returns the identifier of the relocated entry, falling back to the requested path.
func (s *Storage) tupleOf(md files.IsMetadata, path string) filestorage.IDTuple {
	if fm, ok := md.(*files.FileMetadata); ok {
		f := s.toFile(fm)
		return f.IDTuple()
	}
	return filestorage.IDTuple{FolderID: utils.Normalize(utils.ParentOf(path)), ID: utils.LastSegment(path)}
}

// destination checks that folderID exists.
func (s *Storage) destination(ctx context.Context, folderID string) error {
	exists, err := s.FolderExists(ctx, folderID)
	if err != nil {
		return err
	}
	if !exists {
		return s.newError(filestorage.ErrNotFound, utils.ToPath(folderID))
	}
	return nil
}

// CopyFile copies source into destFolder under a free name.
func (s *Storage) CopyFile(ctx context.Context, source filestorage.IDTuple, version, destFolder string, update *filestorage.File, data io.Reader, modified []filestorage.Field) (filestorage.IDTuple, error) {
	from := utils.ToFilePath(source.FolderID, source.ID)
	if err := s.writable(from); err != nil {
		return filestorage.IDTuple{}, err
	}
	if err := s.current(from, version); err != nil {
		return filestorage.IDTuple{}, err
	}
	if destFolder == "" {
		destFolder = source.FolderID
	}
	destFolder = utils.Normalize(destFolder)

	if err := s.destination(ctx, destFolder); err != nil {
		return filestorage.IDTuple{}, err
	}

	client, err := s.Client()
	if err != nil {
		return filestorage.IDTuple{}, err
	}

	name := fileName(update, modified)
	if name == "" {
		name = source.ID
	}
	if err := s.validName(from, name); err != nil {
		return filestorage.IDTuple{}, err
	}
	if name, err = s.uniqueName(ctx, client, destFolder, name); err != nil {
		return filestorage.IDTuple{}, err
	}

	to := utils.ToFilePath(destFolder, name)
	md, err := s.relocate(client, opCopy, from, to)
	if err != nil {
		return filestorage.IDTuple{}, err
	}
	id := s.tupleOf(md, to)

	if data != nil {
		fm, err := s.upload(ctx, to, name, data, unknownSize, modifiedTime(update, modified))
		if err != nil {
			return filestorage.IDTuple{}, err
		}
		f := s.toFile(fm)
		id = f.IDTuple()
	}
	return id, nil
}

// MoveFile moves source into destFolder. A new name in update is made unique within destFolder.
func (s *Storage) MoveFile(ctx context.Context, source filestorage.IDTuple, destFolder string, update *filestorage.File, modified []filestorage.Field) (filestorage.IDTuple, error) {
	from := utils.ToFilePath(source.FolderID, source.ID)
	if err := s.writable(from); err != nil {
		return filestorage.IDTuple{}, err
	}
	if destFolder == "" {
		destFolder = source.FolderID
	}
	destFolder = utils.Normalize(destFolder)

	if err := s.destination(ctx, destFolder); err != nil {
		return filestorage.IDTuple{}, err
	}

	name := fileName(update, modified)
	if name == "" {
		client, err := s.Client()
		if err != nil {
			return filestorage.IDTuple{}, err
		}
		to := utils.ToFilePath(destFolder, source.ID)
		md, err := s.rename(ctx, client, from, to)
		if err != nil {
			return filestorage.IDTuple{}, err
		}
		return s.tupleOf(md, to), nil
	}
	return s.moveTo(ctx, from, destFolder, name)
}

// GetDocument returns the content of the current version of a file.
func (s *Storage) GetDocument(ctx context.Context, folderID, id, version string) (io.ReadCloser, error) {
	p := utils.ToFilePath(folderID, id)
	if err := s.current(p, version); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client, err := s.Client()
	if err != nil {
		return nil, err
	}

	s.observe(opDownload, p)
	_, content, err := client.Download(files.NewDownloadArg(apiPath(p)))
	if err != nil {
		return nil, s.translate(opDownload, err, p, id)
	}
	return content, nil
}

// GetThumbnail returns a 256x256 JPEG thumbnail of an image file.
func (s *Storage) GetThumbnail(ctx context.Context, folderID, id, version string) (io.ReadCloser, error) {
	p := utils.ToFilePath(folderID, id)
	if err := s.current(p, version); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client, err := s.Client()
	if err != nil {
		return nil, err
	}

	arg := files.NewThumbnailV2Arg(&files.PathOrLink{
		Tagged: dropbox.Tagged{Tag: files.PathOrLinkPath},
		Path:   apiPath(p),
	})
	arg.Format = &files.ThumbnailFormat{Tagged: dropbox.Tagged{Tag: thumbnailFormat}}
	arg.Size = &files.ThumbnailSize{Tagged: dropbox.Tagged{Tag: thumbnailSize}}

	s.observe(opThumbnail, p)
	_, content, err := client.GetThumbnailV2(arg)
	if err != nil {
		return nil, s.translate(opThumbnail, err, p, id)
	}
	return content, nil
}

// SaveDocument uploads data as the content of file. A file without ID is created under a free name; a new name
// in file renames the existing file before its content is replaced. file is updated with the stored metadata.
func (s *Storage) SaveDocument(ctx context.Context, file *filestorage.File, data io.Reader, size int64, modified []filestorage.Field) (filestorage.IDTuple, error) {
	folderID := utils.Normalize(file.FolderID)
	if err := s.writable(utils.ToPath(folderID)); err != nil {
		return filestorage.IDTuple{}, err
	}

	client, err := s.Client()
	if err != nil {
		return filestorage.IDTuple{}, err
	}

	name := file.ID
	switch newName := fileName(file, modified); {
	case name == "":
		if newName == "" {
			return filestorage.IDTuple{}, s.newError(filestorage.ErrIllegalCharacters, utils.ToPath(folderID)).
				WithCause(errors.New("a new document needs a file name"))
		}
		if err := s.validName(utils.ToPath(folderID), newName); err != nil {
			return filestorage.IDTuple{}, err
		}
		if name, err = s.uniqueName(ctx, client, folderID, newName); err != nil {
			return filestorage.IDTuple{}, err
		}
	case newName != "" && newName != name:
		id, err := s.moveTo(ctx, utils.ToFilePath(folderID, name), folderID, newName)
		if err != nil {
			return filestorage.IDTuple{}, err
		}
		name = id.ID
	}

	if size < 0 {
		size = unknownSize
	}
	fm, err := s.upload(ctx, utils.ToFilePath(folderID, name), name, data, size, modifiedTime(file, modified))
	if err != nil {
		return filestorage.IDTuple{}, err
	}

	stored := s.toFile(fm)
	file.ID = stored.ID
	file.FolderID = stored.FolderID
	file.FileName = stored.FileName
	file.Size = stored.Size
	file.Version = stored.Version
	file.SequenceNumber = stored.SequenceNumber
	file.LastModified = stored.LastModified
	if file.Title == "" {
		file.Title = stored.Title
	}
	return stored.IDTuple(), nil
}

// RemoveDocuments deletes each file on its own. Files that could not be deleted are returned; a file that is
// already gone counts as deleted. Dropbox keeps deleted files recoverable, hardDelete makes no difference.
func (s *Storage) RemoveDocuments(ctx context.Context, ids []filestorage.IDTuple, hardDelete bool) ([]filestorage.IDTuple, error) {
	if err := s.writable(""); err != nil {
		return ids, err
	}

	client, err := s.Client()
	if err != nil {
		return ids, err
	}

	notRemoved := make([]filestorage.IDTuple, 0)
	var merr *multierror.Error
	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return append(notRemoved, ids[i:]...), err
		}

		if err := s.deletePath(client, utils.ToFilePath(id.FolderID, id.ID)); err != nil {
			if errors.Is(err, filestorage.ErrNotFound) {
				continue
			}
			notRemoved = append(notRemoved, id)
			merr = multierror.Append(merr, err)
		}
	}

	if err := merr.ErrorOrNil(); err != nil {
		s.log.Warn("some documents could not be removed",
			zap.Int("failed", len(notRemoved)),
			zap.Int("requested", len(ids)),
			zap.Bool("hard_delete", hardDelete),
			zap.Error(err),
		)
	}
	return notRemoved, nil
}

func (s *Storage) deletePath(client Client, path string) error {
	s.observe(opDelete, path)
	if _, err := client.DeleteV2(files.NewDeleteArg(apiPath(path))); err != nil {
		return s.translate(opDelete, err, path, utils.LastSegment(path))
	}
	return nil
}

// RemoveVersions is not supported: Dropbox cannot delete single revisions. All versions are returned as not
// removed.
func (s *Storage) RemoveVersions(ctx context.Context, folderID, id string, versions []string) ([]string, error) {
	p := utils.ToFilePath(folderID, id)
	if err := s.writable(p); err != nil {
		return versions, err
	}
	if len(versions) == 0 {
		return []string{}, nil
	}
	return versions, s.newError(filestorage.ErrVersioningNotSupported, p).WithName(id).WithCause(errVersion)
}

// GetDocumentsInFolder lists the files directly inside folderID.
func (s *Storage) GetDocumentsInFolder(ctx context.Context, folderID string, fields []filestorage.Field, sort filestorage.SortOrder) ([]filestorage.File, error) {
	found, err := s.getAllFiles(ctx, folderID, false)
	if err != nil {
		return nil, err
	}
	filestorage.SortFiles(found, sort)
	return projectAll(found, fields), nil
}

// GetDocuments resolves ids in order. From BatchThreshold ids of one folder on, the folder is listed once instead
// of fetching each file. Files that are gone or are no files are skipped.
func (s *Storage) GetDocuments(ctx context.Context, ids []filestorage.IDTuple, fields []filestorage.Field) ([]filestorage.File, error) {
	if len(ids) == 0 {
		return []filestorage.File{}, nil
	}
	if folderID, ok := commonFolder(ids); ok && s.options.BatchThreshold > 0 && len(ids) >= s.options.BatchThreshold {
		return s.getDocumentsListed(ctx, folderID, ids, fields)
	}

	client, err := s.Client()
	if err != nil {
		return nil, err
	}

	out := make([]filestorage.File, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		p := utils.ToFilePath(id.FolderID, id.ID)
		md, err := s.getMetadata(client, p)
		if err == nil {
			var fm *files.FileMetadata
			if fm, err = s.asFile(md, p); err == nil {
				out = append(out, project(s.toFile(fm), fields))
				continue
			}
		}
		if errors.Is(err, filestorage.ErrNotFound) || errors.Is(err, filestorage.ErrNotAFile) {
			continue
		}
		return nil, err
	}
	return out, nil
}

func commonFolder(ids []filestorage.IDTuple) (string, bool) {
	folderID := utils.Normalize(ids[0].FolderID)
	for _, id := range ids[1:] {
		if !utils.SamePath(id.FolderID, folderID) {
			return "", false
		}
	}
	return folderID, true
}

func (s *Storage) getDocumentsListed(ctx context.Context, folderID string, ids []filestorage.IDTuple, fields []filestorage.Field) ([]filestorage.File, error) {
	listed, err := s.getAllFiles(ctx, folderID, false)
	if errors.Is(err, filestorage.ErrNotFound) || errors.Is(err, filestorage.ErrNotAFolder) {
		// none of the files can exist
		return []filestorage.File{}, nil
	}
	if err != nil {
		return nil, err
	}

	byName := make(map[string]filestorage.File, len(listed))
	for _, f := range listed {
		byName[strings.ToLower(f.ID)] = f
	}

	out := make([]filestorage.File, 0, len(ids))
	for _, id := range ids {
		if f, ok := byName[strings.ToLower(id.ID)]; ok {
			out = append(out, project(f, fields))
		}
	}
	return out, nil
}

// GetVersions lists the most recent revisions of a file, newest first unless sort says otherwise.
func (s *Storage) GetVersions(ctx context.Context, folderID, id string, fields []filestorage.Field, sort filestorage.SortOrder) ([]filestorage.File, error) {
	p := utils.ToFilePath(folderID, id)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client, err := s.Client()
	if err != nil {
		return nil, err
	}

	revs, err := s.listRevisions(client, p)
	if err != nil {
		return nil, err
	}

	out := make([]filestorage.File, 0, len(revs))
	for i, rev := range revs {
		f := s.toFile(rev)
		f.IsCurrentVersion = i == 0
		f.NumberOfVersions = len(revs)
		out = append(out, f)
	}
	filestorage.SortFiles(out, sort)
	return projectAll(out, fields), nil
}

// RestoreVersion makes version the current revision of a file.
func (s *Storage) RestoreVersion(ctx context.Context, folderID, id, version string) (*filestorage.File, error) {
	p := utils.ToFilePath(folderID, id)
	if err := s.writable(p); err != nil {
		return nil, err
	}
	if version == filestorage.CurrentVersion {
		return s.GetFileMetadata(ctx, folderID, id, version)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client, err := s.Client()
	if err != nil {
		return nil, err
	}

	s.observe(opRestore, p)
	fm, err := client.Restore(files.NewRestoreArg(apiPath(p), version))
	if err != nil {
		return nil, s.translate(opRestore, err, p, id)
	}
	f := s.toFile(fm)
	return &f, nil
}

// GetDelta always returns an empty delta: Dropbox offers no change feed for this purpose.
func (s *Storage) GetDelta(ctx context.Context, folderID string, updateSince time.Time, fields []filestorage.Field, ignoreDeleted bool) (*filestorage.Delta, error) {
	return filestorage.EmptyDelta(), nil
}

// GetSequenceNumbers hashes each folder's listing. Folders that are gone are left out.
func (s *Storage) GetSequenceNumbers(ctx context.Context, folderIDs []string) (map[string]int64, error) {
	out := make(map[string]int64, len(folderIDs))
	for _, folderID := range folderIDs {
		entries, err := s.listFolder(ctx, folderID, false)
		if err != nil {
			if errors.Is(err, filestorage.ErrNotFound) || errors.Is(err, filestorage.ErrNotAFolder) {
				continue
			}
			return nil, err
		}
		out[folderID] = sequenceNumber(entries)
	}
	return out, nil
}

// sequenceNumber is the absolute value of a hash over the listing's names, revisions and sizes.
func sequenceNumber(entries []files.IsMetadata) int64 {
	h := xxhash.New()
	for _, entry := range entries {
		switch m := entry.(type) {
		case *files.FileMetadata:
			_, _ = h.WriteString("f:" + m.PathLower + ":" + m.Rev + ":" + strconv.FormatUint(m.Size, 10) + "\n")
		case *files.FolderMetadata:
			_, _ = h.WriteString("d:" + m.PathLower + "\n")
		}
	}

	v := int64(h.Sum64())
	if v == math.MinInt64 {
		return math.MaxInt64
	}
	if v < 0 {
		return -v
	}
	return v
}

// Search finds files by name below req.FolderID.
func (s *Storage) Search(ctx context.Context, req filestorage.SearchRequest) ([]filestorage.File, error) {
	found, err := s.search(ctx, req.Pattern, req.FolderID, req.IncludeSubfolders)
	if err != nil {
		return nil, err
	}
	filestorage.SortFiles(found, req.Sort)
	return projectAll(filestorage.SliceRange(found, req.Range), req.Fields), nil
}

// StartTransaction is a no-op.
func (s *Storage) StartTransaction(context.Context) error { return nil }

// Commit is a no-op.
func (s *Storage) Commit(context.Context) error { return nil }

// Rollback is a no-op.
func (s *Storage) Rollback(context.Context) error { return nil }

// Finish is a no-op.
func (s *Storage) Finish(context.Context) error { return nil }
