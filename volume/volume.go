// Package volume manages a single random-access file bound to one volume
// (or pseudo-volume, for the metadata and index files) of an archive.
package volume

import (
	"fmt"
	"io"
	"os"

	"github.com/kvarch/palog/compress"
	"github.com/kvarch/palog/errs"
	"github.com/kvarch/palog/internal/shared"
	"github.com/kvarch/palog/section"
)

// Volume is a file handle bound to one volume of an archive, plus the
// label-verified state the reader engine needs to skip re-validation on
// repeat opens.
type Volume struct {
	ID    int32
	Path  string
	File  *os.File
	Label section.Label
	Codec compress.Codec

	// seen caches whether this volume's label has already been
	// validated against the archive's reference label, letting a
	// repeat open of the same volume id skip ReadLabel entirely.
	seen bool
}

// Open opens the volume file at path, reads and validates its label
// against expect (matching pid, hostname and version), and returns the
// Volume positioned just past its label.
//
// Open serializes against any concurrent open on the same path via
// internal/shared's open-path lock, modeling the source's tolerance for
// racing against a concurrent uncompressor.
func Open(path string, id int32, expect section.Label, codec compress.Codec) (*Volume, error) {
	unlock := shared.LockOpenPath()
	defer unlock()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrLogFileMissing, err)
	}

	label, err := section.ReadLabel(f, id)
	if err != nil {
		f.Close()
		return nil, err
	}

	if label.PID != expect.PID || label.Hostname != expect.Hostname || label.Version != expect.Version {
		f.Close()
		return nil, fmt.Errorf("%w: volume %d label disagrees with archive label", errs.ErrBadLabel, id)
	}

	if codec == nil {
		codec = compress.NewNoOpCompressor()
	}

	return &Volume{ID: id, Path: path, File: f, Label: label, Codec: codec, seen: true}, nil
}

// Reopen reopens an already-validated volume (the ChangeVol fast path):
// it skips ReadLabel entirely and seeks straight past the cached label
// size, matching the source's "seen" bit behavior.
func Reopen(path string, id int32, label section.Label, codec compress.Codec) (*Volume, error) {
	unlock := shared.LockOpenPath()
	defer unlock()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrLogFileMissing, err)
	}

	if _, err := f.Seek(label.Size, io.SeekStart); err != nil {
		f.Close()
		return nil, fmt.Errorf("volume: seek past cached label: %w", err)
	}

	if codec == nil {
		codec = compress.NewNoOpCompressor()
	}

	return &Volume{ID: id, Path: path, File: f, Label: label, Codec: codec, seen: true}, nil
}

// Create creates a new volume file at path and writes label to it,
// refusing to overwrite an existing file (O_EXCL), matching the source's
// new_file semantics.
func Create(path string, id int32, label section.Label) (*Volume, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("%w: %s", errs.ErrVolumeExists, path)
		}

		return nil, fmt.Errorf("volume: create %s: %w", path, err)
	}

	n, err := section.WriteLabel(f, label)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	label.Size = n

	return &Volume{ID: id, Path: path, File: f, Label: label, Codec: compress.NewNoOpCompressor(), seen: true}, nil
}

// Seen reports whether this volume's label has already been validated.
func (v *Volume) Seen() bool { return v.seen }

// Size returns the current on-disk size of the volume file.
func (v *Volume) Size() (int64, error) {
	fi, err := v.File.Stat()
	if err != nil {
		return 0, err
	}

	return fi.Size(), nil
}

// SeekEnd positions the volume's cursor at end-of-file and returns the
// resulting offset.
func (v *Volume) SeekEnd() (int64, error) {
	return v.File.Seek(0, io.SeekEnd)
}

// SeekAfterLabel positions the volume's cursor just past its label
// record, the canonical start-of-data position.
func (v *Volume) SeekAfterLabel() (int64, error) {
	return v.File.Seek(v.Label.Size, io.SeekStart)
}

// Close releases the volume's underlying file handle.
func (v *Volume) Close() error {
	if v.File == nil {
		return nil
	}

	return v.File.Close()
}
