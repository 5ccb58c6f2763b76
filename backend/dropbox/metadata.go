package dropbox

import (
	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox/files"

	"github.com/c2fo/filestorage"
	"github.com/c2fo/filestorage/utils"
)

// apiPath converts a path of the codec to the form Dropbox expects: root is "", everything else has no trailing
// slash.
func apiPath(p string) string {
	if utils.IsRoot(p) {
		return ""
	}
	return utils.Normalize(p)
}

// displayPath prefers the case-preserving path of m.
func displayPath(m *files.Metadata) string {
	switch {
	case m.PathDisplay != "":
		return m.PathDisplay
	case m.PathLower != "":
		return m.PathLower
	}
	return utils.ToFilePath(filestorage.RootFolderID, m.Name)
}

// asFile narrows entry, found at path, to a file. A deleted entry is NOT_FOUND.
func (s *Storage) asFile(entry files.IsMetadata, path string) (*files.FileMetadata, error) {
	switch m := entry.(type) {
	case *files.FileMetadata:
		return m, nil
	case *files.FolderMetadata:
		return nil, s.newError(filestorage.ErrNotAFile, path).WithName(m.Name)
	case *files.DeletedMetadata, nil:
		return nil, s.newError(filestorage.ErrNotFound, path)
	}
	return nil, s.newError(filestorage.ErrUnexpected, path)
}

// asFolder narrows entry, found at path, to a folder. A deleted entry is NOT_FOUND.
func (s *Storage) asFolder(entry files.IsMetadata, path string) (*files.FolderMetadata, error) {
	switch m := entry.(type) {
	case *files.FolderMetadata:
		return m, nil
	case *files.FileMetadata:
		return nil, s.newError(filestorage.ErrNotAFolder, path).WithName(m.Name)
	case *files.DeletedMetadata, nil:
		return nil, s.newError(filestorage.ErrNotFound, path)
	}
	return nil, s.newError(filestorage.ErrUnexpected, path)
}

func (s *Storage) toFile(m *files.FileMetadata) filestorage.File {
	modified := m.ClientModified
	if modified.IsZero() {
		modified = m.ServerModified
	}

	var seq int64
	if !m.ServerModified.IsZero() {
		seq = m.ServerModified.UnixMilli()
	}

	return filestorage.File{
		ID:               m.Name,
		FolderID:         utils.Normalize(utils.ParentOf(displayPath(&m.Metadata))),
		Title:            m.Name,
		FileName:         m.Name,
		Size:             int64(m.Size),
		MIMEType:         s.options.MIMEResolver(m.Name),
		Created:          modified,
		LastModified:     modified,
		SequenceNumber:   seq,
		Version:          m.Rev,
		IsCurrentVersion: true,
		NumberOfVersions: filestorage.DefaultVersionCount,
		Media:            toMedia(m.MediaInfo),
	}
}

func toMedia(info *files.MediaInfo) filestorage.Media {
	if info == nil {
		return filestorage.Media{Status: filestorage.MediaStatusNone}
	}

	switch info.Tag {
	case files.MediaInfoPending:
		return filestorage.Media{Status: filestorage.MediaStatusPending}
	case files.MediaInfoMetadata:
		var mm *files.MediaMetadata
		switch md := info.Metadata.(type) {
		case *files.PhotoMetadata:
			mm = &md.MediaMetadata
		case *files.VideoMetadata:
			mm = &md.MediaMetadata
		}
		if mm == nil {
			break
		}

		media := filestorage.Media{Status: filestorage.MediaStatusSuccess, CaptureDate: mm.TimeTaken}
		if mm.Dimensions != nil {
			media.Dimensions = &filestorage.Dimensions{Width: mm.Dimensions.Width, Height: mm.Dimensions.Height}
		}
		if mm.Location != nil {
			media.Location = &filestorage.GeoLocation{Latitude: mm.Location.Latitude, Longitude: mm.Location.Longitude}
		}
		return media
	}

	return filestorage.Media{Status: filestorage.MediaStatusFailure}
}

// rootFolder is named after the account.
func (s *Storage) rootFolder() filestorage.Folder {
	f := s.folderAt(filestorage.RootFolderID)
	f.Root = true
	f.ParentID = ""
	f.Name = s.options.AccountName
	return f
}

// folderAt returns the folder at path. Every folder holds files and subfolders, is subscribed and is fully owned
// by the current user. HasSubfolders is assumed until GetFolder looks into the folder.
func (s *Storage) folderAt(path string) filestorage.Folder {
	id := utils.Normalize(path)
	owner := filestorage.OwnerPermission(s.options.UserID)
	return filestorage.Folder{
		ID:                   id,
		ParentID:             utils.ParentOf(id),
		Name:                 utils.LastSegment(id),
		HasSubfolders:        true,
		SubscribedSubfolders: true,
		Subscribed:           true,
		HoldsFiles:           true,
		HoldsFolders:         true,
		Permissions:          []filestorage.Permission{owner},
		OwnPermission:        owner,
	}
}

func (s *Storage) toFolder(m *files.FolderMetadata) filestorage.Folder {
	p := displayPath(&m.Metadata)
	if utils.IsRoot(p) {
		return s.rootFolder()
	}
	return s.folderAt(p)
}

// project keeps only the requested fields of f. ID and FolderID are always kept; no fields means all of them.
func project(f filestorage.File, fields []filestorage.Field) filestorage.File {
	if len(fields) == 0 {
		return f
	}

	out := filestorage.File{ID: f.ID, FolderID: f.FolderID}
	for _, field := range fields {
		switch field {
		case filestorage.FieldTitle:
			out.Title = f.Title
		case filestorage.FieldFileName:
			out.FileName = f.FileName
		case filestorage.FieldSize:
			out.Size = f.Size
		case filestorage.FieldMIMEType:
			out.MIMEType = f.MIMEType
		case filestorage.FieldCreated:
			out.Created = f.Created
		case filestorage.FieldLastModified:
			out.LastModified = f.LastModified
		case filestorage.FieldSequenceNumber:
			out.SequenceNumber = f.SequenceNumber
		case filestorage.FieldVersion:
			out.Version = f.Version
			out.IsCurrentVersion = f.IsCurrentVersion
		case filestorage.FieldNumberOfVersions:
			out.NumberOfVersions = f.NumberOfVersions
		case filestorage.FieldMedia:
			out.Media = f.Media
		}
	}
	out.MetadataDegraded = f.MetadataDegraded
	return out
}

func projectAll(in []filestorage.File, fields []filestorage.Field) []filestorage.File {
	if len(fields) == 0 {
		return in
	}
	out := make([]filestorage.File, 0, len(in))
	for i := range in {
		out = append(out, project(in[i], fields))
	}
	return out
}
