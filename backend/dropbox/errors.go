package dropbox

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox"
	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox/auth"
	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox/files"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/c2fo/filestorage"
	"github.com/c2fo/filestorage/utils"
)

var (
	errAccessTokenRequired = errors.New("access token is required for Dropbox authentication")
	errReadOnly            = errors.New("storage is read-only")
	errVersion             = errors.New("single versions of a file cannot be addressed")
)

// Backend operations. They label metrics and log lines and select the narrowing applied to an operation's
// structured error.
const (
	opGetMetadata    = "get_metadata"
	opList           = "list_folder"
	opListContinue   = "list_folder_continue"
	opCopy           = "copy"
	opMove           = "move"
	opRestore        = "restore"
	opUpload         = "upload"
	opSessionStart   = "upload_session_start"
	opSessionAppend  = "upload_session_append"
	opSessionFinish  = "upload_session_finish"
	opDownload       = "download"
	opListRevisions  = "list_revisions"
	opSearch         = "search"
	opSearchContinue = "search_continue"
	opDelete         = "delete"
	opThumbnail      = "thumbnail"
	opCreateFolder   = "create_folder"
)

// narrowing extracts the lookup or write failure of an operation's structured error. recognized is false when err
// is not the operation's error type at all; a recognized error with neither failure set is a sub-case this
// backend does not model.
type narrowing func(err error) (lookup *files.LookupError, write *files.WriteError, recognized bool)

var narrowings = map[string]narrowing{
	opGetMetadata:    narrowGetMetadata,
	opList:           narrowList,
	opListContinue:   narrowListContinue,
	opCopy:           narrowCopy,
	opMove:           narrowMove,
	opRestore:        narrowRestore,
	opUpload:         narrowUpload,
	opSessionStart:   narrowSessionStart,
	opSessionFinish:  narrowSessionFinish,
	opDownload:       narrowDownload,
	opListRevisions:  narrowListRevisions,
	opSearch:         narrowSearch,
	opSearchContinue: narrowSearchContinue,
	opDelete:         narrowDelete,
	opThumbnail:      narrowThumbnail,
	opCreateFolder:   narrowCreateFolder,
}

// asAPIError finds an SDK error of type T in err's chain. The SDK returns its errors by value.
func asAPIError[T error](err error) (T, bool) {
	var v T
	ok := errors.As(err, &v)
	return v, ok
}

func narrowGetMetadata(err error) (*files.LookupError, *files.WriteError, bool) {
	e, ok := asAPIError[files.GetMetadataAPIError](err)
	if !ok {
		return nil, nil, false
	}
	if e.EndpointError != nil && e.EndpointError.Tag == files.GetMetadataErrorPath {
		return e.EndpointError.Path, nil, true
	}
	return nil, nil, true
}

func narrowList(err error) (*files.LookupError, *files.WriteError, bool) {
	e, ok := asAPIError[files.ListFolderAPIError](err)
	if !ok {
		return nil, nil, false
	}
	if e.EndpointError != nil && e.EndpointError.Tag == files.ListFolderErrorPath {
		return e.EndpointError.Path, nil, true
	}
	return nil, nil, true
}

func narrowListContinue(err error) (*files.LookupError, *files.WriteError, bool) {
	e, ok := asAPIError[files.ListFolderContinueAPIError](err)
	if !ok {
		return nil, nil, false
	}
	if e.EndpointError != nil && e.EndpointError.Tag == files.ListFolderContinueErrorPath {
		return e.EndpointError.Path, nil, true
	}
	return nil, nil, true
}

func narrowRelocation(re *files.RelocationError) (*files.LookupError, *files.WriteError) {
	if re == nil {
		return nil, nil
	}
	switch re.Tag {
	case files.RelocationErrorFromLookup:
		return re.FromLookup, nil
	case files.RelocationErrorFromWrite:
		return nil, re.FromWrite
	case files.RelocationErrorTo:
		return nil, re.To
	}
	return nil, nil
}

func narrowCopy(err error) (*files.LookupError, *files.WriteError, bool) {
	e, ok := asAPIError[files.CopyV2APIError](err)
	if !ok {
		return nil, nil, false
	}
	lookup, write := narrowRelocation(e.EndpointError)
	return lookup, write, true
}

func narrowMove(err error) (*files.LookupError, *files.WriteError, bool) {
	e, ok := asAPIError[files.MoveV2APIError](err)
	if !ok {
		return nil, nil, false
	}
	lookup, write := narrowRelocation(e.EndpointError)
	return lookup, write, true
}

func narrowRestore(err error) (*files.LookupError, *files.WriteError, bool) {
	e, ok := asAPIError[files.RestoreAPIError](err)
	if !ok {
		return nil, nil, false
	}
	if e.EndpointError == nil {
		return nil, nil, true
	}
	switch e.EndpointError.Tag {
	case files.RestoreErrorPathLookup:
		return e.EndpointError.PathLookup, nil, true
	case files.RestoreErrorPathWrite:
		return nil, e.EndpointError.PathWrite, true
	}
	return nil, nil, true
}

func narrowUpload(err error) (*files.LookupError, *files.WriteError, bool) {
	e, ok := asAPIError[files.UploadAPIError](err)
	if !ok {
		return nil, nil, false
	}
	if e.EndpointError != nil && e.EndpointError.Tag == files.UploadErrorPath && e.EndpointError.Path != nil {
		return nil, e.EndpointError.Path.Reason, true
	}
	return nil, nil, true
}

// a session start error never concerns a path
func narrowSessionStart(err error) (*files.LookupError, *files.WriteError, bool) {
	_, ok := asAPIError[files.UploadSessionStartAPIError](err)
	return nil, nil, ok
}

func narrowSessionFinish(err error) (*files.LookupError, *files.WriteError, bool) {
	e, ok := asAPIError[files.UploadSessionFinishAPIError](err)
	if !ok {
		return nil, nil, false
	}
	if e.EndpointError != nil && e.EndpointError.Tag == files.UploadSessionFinishErrorPath {
		return nil, e.EndpointError.Path, true
	}
	return nil, nil, true
}

func narrowDownload(err error) (*files.LookupError, *files.WriteError, bool) {
	e, ok := asAPIError[files.DownloadAPIError](err)
	if !ok {
		return nil, nil, false
	}
	if e.EndpointError != nil && e.EndpointError.Tag == files.DownloadErrorPath {
		return e.EndpointError.Path, nil, true
	}
	return nil, nil, true
}

func narrowListRevisions(err error) (*files.LookupError, *files.WriteError, bool) {
	e, ok := asAPIError[files.ListRevisionsAPIError](err)
	if !ok {
		return nil, nil, false
	}
	if e.EndpointError != nil && e.EndpointError.Tag == files.ListRevisionsErrorPath {
		return e.EndpointError.Path, nil, true
	}
	return nil, nil, true
}

func narrowSearch(err error) (*files.LookupError, *files.WriteError, bool) {
	e, ok := asAPIError[files.SearchV2APIError](err)
	if !ok {
		return nil, nil, false
	}
	if e.EndpointError != nil && e.EndpointError.Tag == files.SearchErrorPath {
		return e.EndpointError.Path, nil, true
	}
	return nil, nil, true
}

func narrowSearchContinue(err error) (*files.LookupError, *files.WriteError, bool) {
	e, ok := asAPIError[files.SearchContinueV2APIError](err)
	if !ok {
		return nil, nil, false
	}
	if e.EndpointError != nil && e.EndpointError.Tag == files.SearchErrorPath {
		return e.EndpointError.Path, nil, true
	}
	return nil, nil, true
}

func narrowDelete(err error) (*files.LookupError, *files.WriteError, bool) {
	e, ok := asAPIError[files.DeleteV2APIError](err)
	if !ok {
		return nil, nil, false
	}
	if e.EndpointError == nil {
		return nil, nil, true
	}
	switch e.EndpointError.Tag {
	case files.DeleteErrorPathLookup:
		return e.EndpointError.PathLookup, nil, true
	case files.DeleteErrorPathWrite:
		return nil, e.EndpointError.PathWrite, true
	}
	return nil, nil, true
}

func narrowThumbnail(err error) (*files.LookupError, *files.WriteError, bool) {
	e, ok := asAPIError[files.GetThumbnailV2APIError](err)
	if !ok {
		return nil, nil, false
	}
	if e.EndpointError != nil && e.EndpointError.Tag == files.ThumbnailV2ErrorPath {
		return e.EndpointError.Path, nil, true
	}
	return nil, nil, true
}

func narrowCreateFolder(err error) (*files.LookupError, *files.WriteError, bool) {
	e, ok := asAPIError[files.CreateFolderV2APIError](err)
	if !ok {
		return nil, nil, false
	}
	if e.EndpointError != nil && e.EndpointError.Tag == files.CreateFolderErrorPath {
		return nil, e.EndpointError.Path, true
	}
	return nil, nil, true
}

func lookupKind(le *files.LookupError) filestorage.Kind {
	switch le.Tag {
	case files.LookupErrorNotFound:
		return filestorage.ErrNotFound
	case files.LookupErrorNotFile:
		return filestorage.ErrNotAFile
	case files.LookupErrorNotFolder:
		return filestorage.ErrNotAFolder
	}
	return filestorage.ErrUnexpected
}

func writeKind(we *files.WriteError) filestorage.Kind {
	switch we.Tag {
	case files.WriteErrorDisallowedName, files.WriteErrorMalformedPath:
		return filestorage.ErrIllegalCharacters
	case files.WriteErrorInsufficientSpace:
		return filestorage.ErrQuotaReached
	case files.WriteErrorNoWritePermission:
		return filestorage.ErrNoCreateAccess
	case files.WriteErrorConflict:
		if we.Conflict == nil {
			return filestorage.ErrUnexpected
		}
		switch we.Conflict.Tag {
		case files.WriteConflictErrorFile:
			return filestorage.ErrFileAlreadyExists
		case files.WriteConflictErrorFolder:
			return filestorage.ErrDuplicateFolder
		}
	}
	return filestorage.ErrUnexpected
}

// malformed or unknown bearer tokens are rejected with a plain 400
func isMalformedToken(content string) bool {
	c := strings.ToLower(content)
	return strings.Contains(c, "authorization") || strings.Contains(c, "access token")
}

// classify maps err to exactly one kind. It never fails: whatever it does not recognize is ErrUnexpected.
func classify(op string, err error) filestorage.Kind {
	if k := filestorage.KindOf(err); k != "" {
		return k
	}

	if _, ok := asAPIError[auth.RateLimitAPIError](err); ok {
		return filestorage.ErrRateLimited
	}
	sdkErr, isSDKErr := asAPIError[dropbox.SDKInternalError](err)
	if isSDKErr && sdkErr.StatusCode == http.StatusTooManyRequests {
		return filestorage.ErrRateLimited
	}

	if _, ok := asAPIError[auth.AuthAPIError](err); ok {
		return filestorage.ErrAuthInvalid
	}
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return filestorage.ErrAuthInvalid
	}
	if isSDKErr {
		switch {
		case sdkErr.StatusCode == http.StatusUnauthorized:
			return filestorage.ErrAuthInvalid
		case sdkErr.StatusCode == http.StatusBadRequest && isMalformedToken(sdkErr.Content):
			return filestorage.ErrAuthInvalid
		}
		return filestorage.ErrProtocol
	}

	var urlErr *url.Error
	var netErr net.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) {
		return filestorage.ErrProtocol
	}

	if narrow, ok := narrowings[op]; ok {
		lookup, write, recognized := narrow(err)
		switch {
		case lookup != nil:
			return lookupKind(lookup)
		case write != nil:
			return writeKind(write)
		case recognized:
			return filestorage.ErrUnexpected
		}
	}

	return filestorage.ErrUnexpected
}

// newError returns a storage error carrying the account and user of s.
func (s *Storage) newError(kind filestorage.Kind, path string) *filestorage.Error {
	e := filestorage.NewError(kind, path)
	e.Account = s.accountName()
	e.User = s.options.UserID
	return e
}

func (s *Storage) accountName() string {
	if s.options.AccountID != "" {
		return s.options.AccountID
	}
	return s.options.AccountName
}

// translate converts err, returned by op on path, into a storage error. name is the display name of the item, if
// known. Storage errors pass through unchanged.
func (s *Storage) translate(op string, err error, path, name string) error {
	if err == nil {
		return nil
	}
	if filestorage.IsStorageError(err) {
		return err
	}

	kind := classify(op, err)
	e := s.newError(kind, path).WithName(name).WithCause(err)
	if kind == filestorage.ErrDuplicateFolder {
		e.Name, e.Message = s.duplicateFolder(path)
	}

	s.metrics.errors.WithLabelValues(op, string(kind)).Inc()
	s.log.Debug("backend call failed",
		zap.String("op", op),
		zap.String("path", path),
		zap.String("kind", string(kind)),
		zap.Error(err),
	)
	return e
}

// duplicateFolder names the conflicting folder and its parent; a top-level folder's parent is the account.
func (s *Storage) duplicateFolder(path string) (folder, message string) {
	parent, folder := utils.Split(path)
	parentName := utils.LastSegment(parent)
	if parentName == "" {
		parentName = s.options.AccountName
	}
	return folder, fmt.Sprintf("a folder named %q already exists in %q", folder, parentName)
}
