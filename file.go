package filestorage

import (
	"time"
)

const (
	// RootFolderID is the canonical identifier of a storage's root folder.
	RootFolderID = "/"

	// CurrentVersion addresses the current version of a file.
	CurrentVersion = ""

	// DefaultVersionCount is the version count reported when no revision listing was requested.
	DefaultVersionCount = 1
)

// IDTuple identifies a file by its folder and its identifier within that folder.
type IDTuple struct {
	FolderID string
	ID       string
}

// MediaStatus is the state of a file's media sidecar.
type MediaStatus string

const (
	// MediaStatusNone - the backend reported no media information
	MediaStatusNone = MediaStatus("none")
	// MediaStatusPending - the backend is still analysing the file
	MediaStatusPending = MediaStatus("pending")
	// MediaStatusSuccess - media information is available
	MediaStatusSuccess = MediaStatus("success")
	// MediaStatusFailure - the backend reported media information in a form that could not be used
	MediaStatusFailure = MediaStatus("failure")
)

// Dimensions of an image or video.
type Dimensions struct {
	Width  uint64
	Height uint64
}

// GeoLocation is a pair of GPS coordinates.
type GeoLocation struct {
	Latitude  float64
	Longitude float64
}

// Media is the media sidecar of a file.
type Media struct {
	Status      MediaStatus
	Dimensions  *Dimensions
	CaptureDate *time.Time
	Location    *GeoLocation
}

// File is the metadata of a document.
type File struct {
	ID               string
	FolderID         string
	Title            string
	FileName         string
	Size             int64
	MIMEType         string
	Created          time.Time
	LastModified     time.Time
	SequenceNumber   int64
	Version          string
	IsCurrentVersion bool
	NumberOfVersions int
	Media            Media

	// MetadataDegraded is set when a best-effort lookup that contributes to this metadata failed.
	MetadataDegraded bool
}

// IDTuple returns the identifier of f.
func (f *File) IDTuple() IDTuple {
	return IDTuple{FolderID: f.FolderID, ID: f.ID}
}

// Field names a File attribute. Fields select what a listing must populate, what an update changed, and what a
// listing is sorted by.
type Field string

const (
	FieldID               = Field("id")
	FieldFolderID         = Field("folder_id")
	FieldTitle            = Field("title")
	FieldFileName         = Field("filename")
	FieldSize             = Field("file_size")
	FieldMIMEType         = Field("file_mimetype")
	FieldCreated          = Field("created")
	FieldLastModified     = Field("last_modified")
	FieldSequenceNumber   = Field("sequence_number")
	FieldVersion          = Field("version")
	FieldNumberOfVersions = Field("number_of_versions")
	FieldMedia            = Field("media")
)

// AllFields lists every field.
var AllFields = []Field{
	FieldID, FieldFolderID, FieldTitle, FieldFileName, FieldSize, FieldMIMEType, FieldCreated, FieldLastModified,
	FieldSequenceNumber, FieldVersion, FieldNumberOfVersions, FieldMedia,
}

// ContainsField reports whether field is part of fields. An empty fields slice contains every field.
func ContainsField(fields []Field, field Field) bool {
	if len(fields) == 0 {
		return true
	}
	for _, f := range fields {
		if f == field {
			return true
		}
	}
	return false
}

// Delta is the change set of a folder.
type Delta struct {
	New            []File
	Modified       []File
	Deleted        []File
	SequenceNumber int64
}

// EmptyDelta returns a delta without any changes.
func EmptyDelta() *Delta {
	return &Delta{New: []File{}, Modified: []File{}, Deleted: []File{}}
}
