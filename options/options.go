// Package options provides the functional option plumbing shared by every storage backend.
package options

// NewStorageOption interface contains function that should be implemented by any custom option to qualify as a
// storage option for the backend type T.
// Example:
// ```
//
//	type chunkSizeOpt struct{ size int64 }
//	func (o *chunkSizeOpt) Apply(s *Storage) {
//		s.options.ChunkSize = o.size
//	}
//	func (o *chunkSizeOpt) NewStorageOptionName() string {
//		return "chunkSize"
//	}
//
// ```
type NewStorageOption[T any] interface {
	// Apply applies the option to the storage.
	Apply(*T)

	// NewStorageOptionName returns the name of the option.
	NewStorageOptionName() string
}

// ApplyOptions applies the given options to target in order. Nil options are skipped.
func ApplyOptions[T any](target *T, opts ...NewStorageOption[T]) {
	for _, o := range opts {
		if o != nil {
			o.Apply(target)
		}
	}
}

// OptionNames returns the names of the given options, in order.
func OptionNames[T any](opts ...NewStorageOption[T]) []string {
	names := make([]string, 0, len(opts))
	for _, o := range opts {
		if o != nil {
			names = append(names, o.NewStorageOptionName())
		}
	}
	return names
}
