package dropbox

import (
	"context"
	"errors"

	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox/files"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/c2fo/filestorage"
	"github.com/c2fo/filestorage/utils"
)

var errRootImmutable = errors.New("the root folder cannot be moved, renamed or deleted")

// FolderExists reports whether folderID is an existing folder. The root folder always exists.
func (s *Storage) FolderExists(ctx context.Context, folderID string) (bool, error) {
	if utils.IsRoot(folderID) {
		return true, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	client, err := s.Client()
	if err != nil {
		return false, err
	}

	p := utils.ToPath(folderID)
	md, err := s.getMetadata(client, p)
	if err != nil {
		if errors.Is(err, filestorage.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	_, isFolder := md.(*files.FolderMetadata)
	return isFolder, nil
}

// GetFolder returns the folder folderID. HasSubfolders is looked up with a listing of the folder.
func (s *Storage) GetFolder(ctx context.Context, folderID string) (*filestorage.Folder, error) {
	if utils.IsRoot(folderID) {
		return s.GetRootFolder(ctx)
	}

	f, client, err := s.lookupFolder(ctx, folderID)
	if err != nil {
		return nil, err
	}
	if f.HasSubfolders, err = s.hasSubfolders(ctx, client, f.ID); err != nil {
		return nil, err
	}
	return f, nil
}

// lookupFolder returns the folder at folderID without looking into it.
func (s *Storage) lookupFolder(ctx context.Context, folderID string) (*filestorage.Folder, Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	client, err := s.Client()
	if err != nil {
		return nil, nil, err
	}

	p := utils.ToPath(folderID)
	md, err := s.getMetadata(client, p)
	if err != nil {
		return nil, nil, err
	}
	fm, err := s.asFolder(md, p)
	if err != nil {
		return nil, nil, err
	}

	f := s.toFolder(fm)
	return &f, client, nil
}

// GetRootFolder returns the root folder, named after the account.
func (s *Storage) GetRootFolder(ctx context.Context) (*filestorage.Folder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	client, err := s.Client()
	if err != nil {
		return nil, err
	}

	f := s.rootFolder()
	if f.HasSubfolders, err = s.hasSubfolders(ctx, client, filestorage.RootFolderID); err != nil {
		return nil, err
	}
	return &f, nil
}

// GetSubfolders lists the folders directly inside parentID.
func (s *Storage) GetSubfolders(ctx context.Context, parentID string) ([]filestorage.Folder, error) {
	return s.listSubfolders(ctx, parentID)
}

// GetPathToRoot returns folderID and its ancestors, ending with the root folder. Only folderID is looked up;
// every ancestor holds at least one folder.
func (s *Storage) GetPathToRoot(ctx context.Context, folderID string) ([]filestorage.Folder, error) {
	if utils.IsRoot(folderID) {
		root, err := s.GetRootFolder(ctx)
		if err != nil {
			return nil, err
		}
		return []filestorage.Folder{*root}, nil
	}

	folder, _, err := s.lookupFolder(ctx, folderID)
	if err != nil {
		return nil, err
	}

	path := []filestorage.Folder{*folder}
	for id := folder.ParentID; id != ""; {
		if utils.IsRoot(id) {
			path = append(path, s.rootFolder())
			break
		}
		parent := s.folderAt(id)
		path = append(path, parent)
		id = parent.ParentID
	}
	return path, nil
}

// CreateFolder creates folder.Name inside folder.ParentID. An existing folder of that name is DUPLICATE_FOLDER.
func (s *Storage) CreateFolder(ctx context.Context, folder *filestorage.Folder) (string, error) {
	p := utils.ToFilePath(folder.ParentID, folder.Name)
	if err := s.writable(p); err != nil {
		return "", err
	}
	if err := s.validName(p, folder.Name); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	client, err := s.Client()
	if err != nil {
		return "", err
	}

	arg := files.NewCreateFolderArg(apiPath(p))
	arg.Autorename = false

	s.observe(opCreateFolder, p)
	res, err := client.CreateFolderV2(arg)
	if err != nil {
		return "", s.translate(opCreateFolder, err, p, folder.Name)
	}
	if res.Metadata == nil {
		return p, nil
	}
	return utils.Normalize(displayPath(&res.Metadata.Metadata)), nil
}

// MoveFolder moves folderID into newParentID, renaming it to newName if given. An empty newParentID keeps the
// parent.
func (s *Storage) MoveFolder(ctx context.Context, folderID, newParentID, newName string) (string, error) {
	if utils.IsRoot(folderID) {
		return "", s.newError(filestorage.ErrOperationNotSupported, utils.ToPath(folderID)).WithCause(errRootImmutable)
	}
	from := utils.ToPath(folderID)
	if err := s.writable(from); err != nil {
		return "", err
	}

	if newParentID == "" {
		newParentID = utils.ParentOf(from)
	}
	if newName == "" {
		newName = utils.LastSegment(from)
	}
	if err := s.validName(from, newName); err != nil {
		return "", err
	}
	to := utils.ToFilePath(newParentID, newName)

	client, err := s.Client()
	if err != nil {
		return "", err
	}

	md, err := s.rename(ctx, client, from, to)
	if err != nil {
		return "", err
	}
	if fm, ok := md.(*files.FolderMetadata); ok {
		return utils.Normalize(displayPath(&fm.Metadata)), nil
	}
	return to, nil
}

// RenameFolder renames folderID in place.
func (s *Storage) RenameFolder(ctx context.Context, folderID, newName string) (string, error) {
	return s.MoveFolder(ctx, folderID, "", newName)
}

// DeleteFolder deletes folderID with everything inside it.
func (s *Storage) DeleteFolder(ctx context.Context, folderID string, hardDelete bool) (string, error) {
	if utils.IsRoot(folderID) {
		return "", s.newError(filestorage.ErrOperationNotSupported, utils.ToPath(folderID)).WithCause(errRootImmutable)
	}
	p := utils.ToPath(folderID)
	if err := s.writable(p); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	client, err := s.Client()
	if err != nil {
		return "", err
	}

	if err := s.deletePath(client, p); err != nil {
		return "", err
	}
	return p, nil
}

// ClearFolder deletes every entry of folderID. It keeps going past failures and returns them all.
func (s *Storage) ClearFolder(ctx context.Context, folderID string, hardDelete bool) error {
	p := utils.ToPath(folderID)
	if err := s.writable(p); err != nil {
		return err
	}

	entries, err := s.listFolder(ctx, folderID, false)
	if err != nil {
		return err
	}

	client, err := s.Client()
	if err != nil {
		return err
	}

	var merr *multierror.Error
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return multierror.Append(merr, err).ErrorOrNil()
		}

		var child string
		switch m := entry.(type) {
		case *files.FileMetadata:
			child = displayPath(&m.Metadata)
		case *files.FolderMetadata:
			child = displayPath(&m.Metadata)
		default:
			continue
		}
		if err := s.deletePath(client, child); err != nil && !errors.Is(err, filestorage.ErrNotFound) {
			merr = multierror.Append(merr, err)
		}
	}

	if err := merr.ErrorOrNil(); err != nil {
		s.log.Warn("folder not fully cleared", zap.String("path", p), zap.Bool("hard_delete", hardDelete), zap.Error(err))
		return err
	}
	return nil
}

// GetStorageQuota is unlimited: Dropbox enforces its quota per account and reports it as QUOTA_REACHED on write.
func (s *Storage) GetStorageQuota(context.Context, string) (filestorage.Quota, error) {
	return filestorage.UnlimitedQuota(filestorage.QuotaStorage), nil
}

// GetFileQuota is unlimited.
func (s *Storage) GetFileQuota(context.Context, string) (filestorage.Quota, error) {
	return filestorage.UnlimitedQuota(filestorage.QuotaFile), nil
}
