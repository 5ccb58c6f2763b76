package utils

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
)

// ErrPayloadTooLarge is returned by Materialize when the payload exceeds the allowed size.
var ErrPayloadTooLarge = errors.New("payload exceeds the maximum upload size")

// TempSink holds a fully materialized payload, either in memory or in a temporary file.
type TempSink struct {
	fs   afero.Fs
	mem  []byte
	file afero.File
	size int64
}

// Materialize reads r to its end to obtain an exact byte count. Up to memLimit bytes are kept in memory, larger
// payloads spill into a temporary file in dir on fs ("~" is expanded). Reading more than maxSize bytes fails with
// ErrPayloadTooLarge. The caller must Close the returned sink.
func Materialize(fs afero.Fs, r io.Reader, dir string, memLimit, maxSize int64) (*TempSink, error) {
	if memLimit > maxSize {
		memLimit = maxSize
	}

	buf := &bytes.Buffer{}
	n, err := io.CopyN(buf, r, memLimit+1)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if n <= memLimit {
		return &TempSink{mem: buf.Bytes(), size: n}, nil
	}

	expanded, err := homedir.Expand(dir)
	if err != nil {
		return nil, err
	}
	f, err := afero.TempFile(fs, expanded, "filestorage-upload-*")
	if err != nil {
		return nil, err
	}
	s := &TempSink{fs: fs, file: f}

	if _, err := buf.WriteTo(f); err != nil {
		_ = s.Close()
		return nil, err
	}
	rest, err := io.Copy(f, io.LimitReader(r, maxSize-n+1))
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	s.size = n + rest
	if s.size > maxSize {
		_ = s.Close()
		return nil, fmt.Errorf("%w: more than %d bytes", ErrPayloadTooLarge, maxSize)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Size returns the exact number of bytes held by the sink.
func (s *TempSink) Size() int64 {
	return s.size
}

// Reader returns a reader positioned at the start of the payload.
func (s *TempSink) Reader() (io.Reader, error) {
	if s.file == nil {
		return bytes.NewReader(s.mem), nil
	}
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return s.file, nil
}

// InMemory reports whether the payload never touched the disk.
func (s *TempSink) InMemory() bool {
	return s.file == nil
}

// Close releases the sink, removing its temporary file if one was created.
func (s *TempSink) Close() error {
	s.mem = nil
	if s.file == nil {
		return nil
	}
	name := s.file.Name()
	closeErr := s.file.Close()
	s.file = nil
	if err := s.fs.Remove(name); err != nil {
		return err
	}
	return closeErr
}
