package filestorage

import (
	"sort"
	"strings"

	"github.com/maruel/natural"
)

// SortDirection is the direction of a sort.
type SortDirection int

const (
	// Ascending sorts smallest first
	Ascending SortDirection = iota
	// Descending sorts largest first
	Descending
)

// SortOrder names the field a listing is sorted by. The zero value keeps the backend's order.
type SortOrder struct {
	Field     Field
	Direction SortDirection
}

// Range is the half-open [Start,End) window of a listing. The zero value selects everything.
type Range struct {
	Start int
	End   int
}

// IsAll reports whether r selects the whole listing.
func (r Range) IsAll() bool {
	return r.Start <= 0 && r.End <= 0
}

// SortFiles sorts files in place by order. Files that compare equal keep their relative order.
func SortFiles(files []File, order SortOrder) {
	if order.Field == "" {
		return
	}
	less := lessFunc(order.Field)
	if less == nil {
		return
	}
	sort.SliceStable(files, func(i, j int) bool {
		if order.Direction == Descending {
			return less(&files[j], &files[i])
		}
		return less(&files[i], &files[j])
	})
}

func lessFunc(field Field) func(a, b *File) bool {
	switch field {
	case FieldID:
		return func(a, b *File) bool { return a.ID < b.ID }
	case FieldFolderID:
		return func(a, b *File) bool { return a.FolderID < b.FolderID }
	case FieldTitle:
		return func(a, b *File) bool { return naturalLess(a.Title, b.Title) }
	case FieldFileName:
		return func(a, b *File) bool { return naturalLess(a.FileName, b.FileName) }
	case FieldSize:
		return func(a, b *File) bool { return a.Size < b.Size }
	case FieldMIMEType:
		return func(a, b *File) bool { return a.MIMEType < b.MIMEType }
	case FieldCreated:
		return func(a, b *File) bool { return a.Created.Before(b.Created) }
	case FieldLastModified:
		return func(a, b *File) bool { return a.LastModified.Before(b.LastModified) }
	case FieldSequenceNumber:
		return func(a, b *File) bool { return a.SequenceNumber < b.SequenceNumber }
	case FieldVersion:
		return func(a, b *File) bool { return a.Version < b.Version }
	case FieldNumberOfVersions:
		return func(a, b *File) bool { return a.NumberOfVersions < b.NumberOfVersions }
	}
	return nil
}

// names compare case-insensitively with digit runs ordered by value: "scan 2" < "scan 10"
func naturalLess(a, b string) bool {
	return natural.Less(strings.ToLower(a), strings.ToLower(b))
}

// SliceRange returns the part of files selected by r. End is clamped to len(files); a Start beyond the end yields an
// empty, non-nil slice.
func SliceRange(files []File, r Range) []File {
	if r.IsAll() {
		return files
	}
	start, end := r.Start, r.End
	if start < 0 {
		start = 0
	}
	if end <= 0 || end > len(files) {
		end = len(files)
	}
	if start >= len(files) || start >= end {
		return []File{}
	}
	return files[start:end]
}
