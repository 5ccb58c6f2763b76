package filestorage

import (
	"errors"
	"fmt"
	"strings"
)

const (
	badNameSlash = "a name may not include slashes or backslashes"
	badNameDots  = "a name may not be . or .."
	badNameEmpty = "a name may not be empty"
)

// ValidateName performs a validation check on a single file or folder name. The name must be non-empty, must not
// be a relative path element and must not include "/" or "\\" characters.
func ValidateName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return errors.New(badNameEmpty)
	case name == "." || name == "..":
		return errors.New(badNameDots)
	case strings.ContainsAny(name, `/\`):
		return errors.New(badNameSlash)
	}
	return nil
}

// URI returns the URI of a storage path: dbx:///docs/report.pdf
func URI(scheme, path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return fmt.Sprintf("%s://%s", scheme, path)
}
