// Package utils holds the path codec and other helpers shared by storage backends.
//
// Backends address everything by a single slash-delimited path while the filestorage contract addresses files by
// (folderID, fileID) pairs. All (de)composition of such paths goes through the functions of this package; call
// sites never concatenate path strings themselves.
package utils

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/c2fo/filestorage"
)

// regex to test whether the last character is a '/'
var hasTrailingSlash = regexp.MustCompile("/$")

// regex to test whether the first character is a '/'
var hasLeadingSlash = regexp.MustCompile("^/")

// RemoveTrailingSlash removes trailing slashes, if any
func RemoveTrailingSlash(p string) string {
	return strings.TrimRight(p, "/")
}

// EnsureTrailingSlash adds a trailing slash if there is none.
func EnsureTrailingSlash(dir string) string {
	if hasTrailingSlash.MatchString(dir) {
		return dir
	}
	return dir + "/"
}

// EnsureLeadingSlash adds a leading slash if there is none.
func EnsureLeadingSlash(dir string) string {
	if hasLeadingSlash.MatchString(dir) {
		return dir
	}
	return "/" + dir
}

// IsRoot reports whether id denotes the root folder: the empty string, the root sentinel or "/".
func IsRoot(id string) bool {
	return id == "" || id == filestorage.RootFolderID || id == "/"
}

// Normalize returns the canonical form of a folder identifier: the root sentinel for root, otherwise the path
// without trailing slash.
func Normalize(id string) string {
	if IsRoot(id) {
		return filestorage.RootFolderID
	}
	trimmed := RemoveTrailingSlash(id)
	if trimmed == "" {
		return filestorage.RootFolderID
	}
	return trimmed
}

// ToPath returns the backend path of a folder. Root is "/", any other folder identifier already is a path.
func ToPath(folderID string) string {
	if IsRoot(folderID) {
		return "/"
	}
	return Normalize(folderID)
}

// ToFilePath returns the backend path of the file fileID inside folderID.
func ToFilePath(folderID, fileID string) string {
	if IsRoot(folderID) {
		return "/" + fileID
	}
	return EnsureTrailingSlash(ToPath(folderID)) + fileID
}

// ParentOf returns the identifier of the folder holding p. A top-level path ("/name") has the root folder as parent.
// Root itself, and anything without a slash at all, has no parent: "" is returned.
func ParentOf(p string) string {
	trimmed := RemoveTrailingSlash(p)
	idx := strings.LastIndex(trimmed, "/")
	switch {
	case idx < 0:
		return ""
	case idx == 0:
		return filestorage.RootFolderID
	default:
		return trimmed[:idx]
	}
}

// LastSegment returns the last element of p, "" for root.
func LastSegment(p string) string {
	trimmed := RemoveTrailingSlash(p)
	return trimmed[strings.LastIndex(trimmed, "/")+1:]
}

// Split returns the parent identifier and the last element of p.
func Split(p string) (parent, name string) {
	return ParentOf(p), LastSegment(p)
}

// SamePath reports whether a and b address the same item on a case-insensitive backend.
func SamePath(a, b string) bool {
	return strings.EqualFold(Normalize(a), Normalize(b))
}

// EnhanceName returns name with a counter inserted before its extension: "report.pdf", 2 → "report (2).pdf".
// Dot files keep their leading dot: ".profile", 1 → ".profile (1)".
func EnhanceName(name string, count int) string {
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	if base == "" {
		base, ext = name, ""
	}
	return fmt.Sprintf("%s (%d)%s", base, count, ext)
}

// Ptr returns a pointer to the given value.
func Ptr[T any](value T) *T {
	return &value
}
