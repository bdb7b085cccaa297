// Package archive aggregates one archive's label, metadata handle,
// temporal index, and its set of data volumes, and implements the
// single-archive read/write operations the multilog package composes
// into multi-archive traversal.
package archive

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/kvarch/palog/codec"
	"github.com/kvarch/palog/compress"
	"github.com/kvarch/palog/errs"
	"github.com/kvarch/palog/extern"
	"github.com/kvarch/palog/internal/hash"
	"github.com/kvarch/palog/internal/options"
	"github.com/kvarch/palog/internal/shared"
	"github.com/kvarch/palog/record"
	"github.com/kvarch/palog/section"
	"github.com/kvarch/palog/tindex"
	"github.com/kvarch/palog/volume"
)

// Option configures an Archive at Open time.
type Option = options.Option[*Archive]

// WithParanoidReads sets the Archive's Paranoid flag, which multilog's
// traversal passes to every ReadNext call it makes, so those reads
// validate payload structure (value-format tags, indirect offsets, PDU
// unit lengths) instead of trusting the codec, at the usual cost of a
// slower read path. Off by default, matching the fast path used by bulk
// forward/backward traversal.
func WithParanoidReads() Option {
	return options.NoError[*Archive](func(a *Archive) { a.paranoid = true })
}

// Direction is the traversal direction for ReadNext and the half of a
// multi-archive transition being resolved.
type Direction int

const (
	Forward Direction = iota
	Backward
)

func (d Direction) String() string {
	if d == Forward {
		return "forward"
	}

	return "backward"
}

// State is an Archive's lifecycle state.
type State int

const (
	StateNew State = iota
	StateInit
	StateClosed
)

var volumeFileRE = regexp.MustCompile(`^(.*)\.(\d+)$`)

// Archive is one logging session's set of files: an index, a metadata
// file, and one or more numbered data volumes sharing a base name and
// label.
type Archive struct {
	Dir  string
	Base string

	label     section.Label
	MinVolume int32
	MaxVolume int32

	volumePaths map[int32]string
	metaPath    string
	indexPath   string

	// seenVolumes tracks which volume ids have been opened at least once
	// in this archive's lifetime, so changeVolume can use the ChangeVol
	// fast path (volume.Reopen) on a repeat switch instead of
	// re-validating the label every time.
	seenVolumes map[int32]struct{}

	meta      *volume.Volume
	cur       *volume.Volume
	indexFile *os.File
	Index     *tindex.Index

	payloadCodec extern.PayloadCodec
	detector     extern.CompressionDetector

	// paranoid is the default passed to ReadNext by callers (multilog's
	// traversal) that don't have their own opinion on validation strength.
	paranoid bool

	// fingerprint identifies this archive in diagnostic log lines; it is
	// stable for a given hostname+base pair but carries no on-disk meaning.
	fingerprint uint64

	state    State
	refCount int

	// endKnown/endSec/endNsec cache the result of a previous End()
	// scan so repeated callers (set_time's archive selection, fetch's
	// origin comparisons) do not re-scan on every call.
	endKnown  bool
	endSec    int64
	endNsec   int32
}

// Open discovers and opens the archive rooted at path, per the scan
// described for archive open: split into directory/base, find
// <base>.index, <base>.meta and every <base>.<digits>, open the lowest
// volume as current, validate labels, and load the temporal index if
// present. Any error unwinds all partially-acquired handles.
func Open(path string, payloadCodec extern.PayloadCodec, detector extern.CompressionDetector, opts ...Option) (ar *Archive, err error) {
	dir, base := splitArchivePath(path)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrLogFileMissing, err)
	}

	a := &Archive{
		Dir:          dir,
		Base:         base,
		volumePaths:  make(map[int32]string),
		payloadCodec: payloadCodec,
		detector:     detector,
		MinVolume:    -1,
		MaxVolume:    -1,
	}

	if optErr := options.Apply(a, opts...); optErr != nil {
		return nil, fmt.Errorf("archive: apply option: %w", optErr)
	}

	prefix := base + "."
	for _, de := range entries {
		name := de.Name()
		if !strings.HasPrefix(name, prefix) || de.IsDir() {
			continue
		}
		suffix := name[len(prefix):]

		switch suffix {
		case "index":
			a.indexPath = filepath.Join(dir, name)
		case "meta":
			a.metaPath = filepath.Join(dir, name)
		default:
			if m := volumeFileRE.FindStringSubmatch(name); m != nil {
				id, convErr := strconv.Atoi(m[2])
				if convErr == nil {
					a.volumePaths[int32(id)] = filepath.Join(dir, name)
					if a.MinVolume == -1 || int32(id) < a.MinVolume {
						a.MinVolume = int32(id)
					}
					if int32(id) > a.MaxVolume {
						a.MaxVolume = int32(id)
					}
				}
			}
		}
	}

	defer func() {
		if err != nil {
			a.closeHandles()
		}
	}()

	if a.MinVolume == -1 {
		return nil, fmt.Errorf("%w: no data volumes under %s", errs.ErrLogFileMissing, path)
	}

	firstPath := a.volumePaths[a.MinVolume]
	f, openErr := os.Open(firstPath)
	if openErr != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrLogFileMissing, openErr)
	}
	label, readErr := section.ReadLabel(f, a.MinVolume)
	f.Close()
	if readErr != nil {
		return nil, readErr
	}
	a.label = label

	cur, openErr := volume.Open(firstPath, a.MinVolume, label, codecFor(detector, firstPath))
	if openErr != nil {
		return nil, openErr
	}
	a.cur = cur
	a.seenVolumes = map[int32]struct{}{a.MinVolume: {}}

	if a.metaPath != "" {
		mf, openErr := os.Open(a.metaPath)
		if openErr != nil {
			return nil, fmt.Errorf("%w: %v", errs.ErrLogFileMissing, openErr)
		}
		metaLabel, readErr := section.ReadLabel(mf, section.MetaVolumeID)
		mf.Close()
		if readErr != nil {
			return nil, readErr
		}
		if metaLabel.PID != label.PID || metaLabel.Hostname != label.Hostname || metaLabel.Version != label.Version {
			return nil, fmt.Errorf("%w: metadata label disagrees with volume label", errs.ErrBadLabel)
		}

		mv, openErr := volume.Open(a.metaPath, section.MetaVolumeID, metaLabel, nil)
		if openErr != nil {
			return nil, openErr
		}
		a.meta = mv
	}

	if a.indexPath != "" {
		idxFile, openErr := os.Open(a.indexPath)
		if openErr != nil {
			return nil, fmt.Errorf("%w: %v", errs.ErrLogFileMissing, openErr)
		}
		idx, loadErr := tindex.Load(idxFile)
		idxFile.Close()
		if loadErr != nil {
			return nil, loadErr
		}
		a.Index = idx
	}

	if size, sizeErr := a.cur.Size(); sizeErr == nil && size == label.Size {
		// Empty archive: file size equals the label's own on-disk
		// size, so there are no data records at all (§8: "empty
		// archive" must surface as NoData, never BadRecord).
		return nil, fmt.Errorf("%w: %s has no data records beyond its label", errs.ErrNoData, path)
	}

	a.state = StateInit
	a.refCount = 1
	a.fingerprint = hash.ID(label.Hostname + ":" + base)

	slog.Debug("archive: opened", "base", base, "hostname", label.Hostname, "fingerprint", a.fingerprint, "min_volume", a.MinVolume, "max_volume", a.MaxVolume)

	return a, nil
}

// Paranoid reports whether this Archive was opened with WithParanoidReads.
func (a *Archive) Paranoid() bool {
	return a.paranoid
}

// Fingerprint returns a stable, on-disk-meaningless identifier derived
// from this archive's hostname and base name, useful for correlating log
// lines across a multi-archive traversal.
func (a *Archive) Fingerprint() uint64 {
	return a.fingerprint
}

func codecFor(detector extern.CompressionDetector, path string) compress.Codec {
	if detector == nil {
		return nil
	}
	c, err := detector.Detect(path)
	if err != nil {
		return nil
	}

	return c
}

func splitArchivePath(path string) (dir, base string) {
	dir = filepath.Dir(path)
	name := filepath.Base(path)

	if strings.HasSuffix(name, ".index") {
		return dir, strings.TrimSuffix(name, ".index")
	}
	if strings.HasSuffix(name, ".meta") {
		return dir, strings.TrimSuffix(name, ".meta")
	}
	if m := volumeFileRE.FindStringSubmatch(name); m != nil {
		return dir, m[1]
	}

	return dir, name
}

func (a *Archive) closeHandles() {
	if a.cur != nil {
		a.cur.Close()
	}
	if a.meta != nil {
		a.meta.Close()
	}
	if a.indexFile != nil {
		a.indexFile.Close()
	}
}

// NewForWrite constructs an Archive in the NEW state for an archive that
// does not yet exist on disk at dir/base. Its first PutResult call
// performs the NEW -> INIT label-write transition: the label is written
// to the index, metadata, and first data file before any data record is
// framed.
func NewForWrite(dir, base string, label section.Label, payloadCodec extern.PayloadCodec) *Archive {
	return &Archive{
		Dir:          dir,
		Base:         base,
		label:        label,
		volumePaths:  make(map[int32]string),
		payloadCodec: payloadCodec,
		MinVolume:    -1,
		MaxVolume:    -1,
		state:        StateNew,
		refCount:     1,
	}
}

// ensureInit performs the NEW -> INIT transition on the first write to a
// brand-new archive.
func (a *Archive) ensureInit() error {
	if a.state != StateNew {
		return nil
	}

	indexPath := filepath.Join(a.Dir, a.Base+".index")
	metaPath := filepath.Join(a.Dir, a.Base+".meta")
	dataPath := filepath.Join(a.Dir, fmt.Sprintf("%s.0", a.Base))

	indexLabel := a.label
	indexLabel.Volume = section.IndexVolumeID

	idxFile, err := os.OpenFile(indexPath, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("%w: %s", errs.ErrVolumeExists, indexPath)
		}

		return fmt.Errorf("archive: create %s: %w", indexPath, err)
	}
	if _, err := section.WriteLabel(idxFile, indexLabel); err != nil {
		idxFile.Close()
		return err
	}
	a.indexFile = idxFile
	a.indexPath = indexPath
	a.Index = &tindex.Index{Version: a.label.Version}

	metaLabel := a.label
	metaLabel.Volume = section.MetaVolumeID

	mv, err := volume.Create(metaPath, section.MetaVolumeID, metaLabel)
	if err != nil {
		return err
	}
	a.meta = mv
	a.metaPath = metaPath

	dataLabel := a.label
	dataLabel.Volume = 0

	cur, err := volume.Create(dataPath, 0, dataLabel)
	if err != nil {
		return err
	}
	a.cur = cur
	a.volumePaths[0] = dataPath
	a.MinVolume, a.MaxVolume = 0, 0

	a.state = StateInit

	return nil
}

// putIndex captures the current data and metadata offsets, flushes the
// data and metadata handles, appends one temporal index entry, and
// flushes the index handle — the source's put_index ordering.
func (a *Archive) putIndex(sec int64, nsec int32, dataOff int64) error {
	if a.Index == nil {
		return nil
	}

	if err := a.cur.File.Sync(); err != nil {
		return fmt.Errorf("archive: flush data volume: %w", err)
	}

	var metaOff int64
	if a.meta != nil {
		if err := a.meta.File.Sync(); err != nil {
			return fmt.Errorf("archive: flush metadata file: %w", err)
		}

		metaOff, _ = a.meta.Size()
	}

	entry := tindex.Entry{Sec: sec, Nsec: nsec, Volume: a.cur.ID, MetaOff: metaOff, DataOff: dataOff}
	if err := a.Index.Put(a.indexFile, a.label.Version, entry); err != nil {
		return err
	}

	return tindex.Flush(a.indexFile)
}

// PutResultV1 encodes rs via the archive's PayloadCodec and writes it as
// the next data record using the source's version-1 writer API: a
// two-write strategy, with no trailer slack carried in the payload
// buffer.
func (a *Archive) PutResultV1(sec int64, nsec int32, rs extern.ResultSet) error {
	return a.putResult(sec, nsec, rs, false)
}

// PutResultV2 encodes rs the same way but builds a single buffer that
// already includes trailer space and issues one write — the source's
// version-2 writer API.
func (a *Archive) PutResultV2(sec int64, nsec int32, rs extern.ResultSet) error {
	return a.putResult(sec, nsec, rs, true)
}

// PutResult writes one data record using the version-2 (single-write)
// strategy.
func (a *Archive) PutResult(sec int64, nsec int32, rs extern.ResultSet) error {
	return a.PutResultV2(sec, nsec, rs)
}

func (a *Archive) putResult(sec int64, nsec int32, rs extern.ResultSet, oneWrite bool) error {
	if err := a.ensureInit(); err != nil {
		return err
	}

	encoded, err := a.payloadCodec.Encode(rs)
	if err != nil {
		return fmt.Errorf("archive: encode payload: %w", err)
	}

	payload := record.JoinTimestamp(sec, nsec, encoded, a.label.Version)

	if oneWrite {
		_, err = codec.WriteFrameV2(a.cur.File, payload)
	} else {
		_, err = codec.WriteFrameV1(a.cur.File, payload)
	}
	if err != nil {
		return fmt.Errorf("archive: write data record: %w", err)
	}

	// The temporal index stores the offset just past this record (its
	// end), per the index-entry-marks-record-ends convention: a seek to
	// that offset lands a reader exactly where it must back up one
	// record to re-read it forward, or can read forward directly for
	// the next one.
	dataOff, err := a.cur.File.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("archive: locate write offset: %w", err)
	}

	if err := a.putIndex(sec, nsec, dataOff); err != nil {
		return err
	}

	a.invalidateEndCache()

	return nil
}

// Label returns a deep copy of the archive's label, safe for the caller
// to retain independently of this Archive's lifetime.
func (a *Archive) Label() section.Label {
	return a.label.Clone()
}

// Acquire increments the archive's reference count.
func (a *Archive) Acquire() { a.refCount++ }

// Release decrements the archive's reference count, closing it once it
// reaches zero.
func (a *Archive) Release() error {
	a.refCount--
	if a.refCount > 0 {
		return nil
	}

	return a.Close()
}

// Close releases every file handle owned by this Archive.
func (a *Archive) Close() error {
	if a.state == StateClosed {
		return nil
	}
	a.state = StateClosed
	a.closeHandles()

	return nil
}

// sortedVolumeIDs returns this archive's volume ids in ascending order.
func (a *Archive) sortedVolumeIDs() []int32 {
	ids := make([]int32, 0, len(a.volumePaths))
	for id := range a.volumePaths {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids
}

// changeVolume switches the archive's current volume to id, using the
// ChangeVol fast path (volume.Reopen, skipping re-validation) whenever
// the volume was already opened once before in this archive's lifetime.
func (a *Archive) changeVolume(id int32) error {
	path, ok := a.volumePaths[id]
	if !ok {
		return fmt.Errorf("%w: no volume %d", errs.ErrLogFileMissing, id)
	}

	label := a.label
	label.Volume = id

	var v *volume.Volume
	var err error
	if _, seen := a.seenVolumes[id]; seen {
		v, err = volume.Reopen(path, id, label, codecFor(a.detector, path))
	} else {
		v, err = volume.Open(path, id, label, codecFor(a.detector, path))
	}
	if err != nil {
		return err
	}

	if a.seenVolumes == nil {
		a.seenVolumes = make(map[int32]struct{})
	}
	a.seenVolumes[id] = struct{}{}

	if a.cur != nil {
		a.cur.Close()
	}
	a.cur = v

	return nil
}

// SeekToStart positions the current volume at the lowest volume id,
// just past its label.
func (a *Archive) SeekToStart() error {
	if a.cur.ID != a.MinVolume {
		if err := a.changeVolume(a.MinVolume); err != nil {
			return err
		}
	}

	_, err := a.cur.SeekAfterLabel()
	return err
}

// SeekToEnd positions the current volume at the highest volume id, at
// end-of-file.
func (a *Archive) SeekToEnd() error {
	if a.cur.ID != a.MaxVolume {
		if err := a.changeVolume(a.MaxVolume); err != nil {
			return err
		}
	}

	_, err := a.cur.SeekEnd()
	return err
}

// CurrentVolume returns the id of the archive's current volume.
func (a *Archive) CurrentVolume() int32 {
	return a.cur.ID
}

// VolumeSize returns the on-disk size of volume id without disturbing
// the archive's current volume, used by the temporal index's
// truncated-last-volume fallback check.
func (a *Archive) VolumeSize(id int32) (int64, error) {
	if id == a.cur.ID {
		return a.cur.Size()
	}

	path, ok := a.volumePaths[id]
	if !ok {
		return 0, fmt.Errorf("%w: no volume %d", errs.ErrLogFileMissing, id)
	}

	fi, err := os.Stat(path)
	if err != nil {
		return 0, err
	}

	return fi.Size(), nil
}

// SeekToOffset switches to volume id (if not already current) and seeks
// to the given byte offset, the position a temporal index entry refers
// to.
func (a *Archive) SeekToOffset(id int32, offset int64) error {
	if a.cur.ID != id {
		if err := a.changeVolume(id); err != nil {
			return err
		}
	}

	_, err := a.cur.File.Seek(offset, io.SeekStart)
	return err
}

// decodedRecord bundles a freshly read record's timestamp and decoded
// payload.
type decodedRecord struct {
	Sec     int64
	Nsec    int32
	Payload extern.ResultSet
}

// ReadNext produces the next record in direction relative to the current
// cursor, trying successive volumes within this archive on exhaustion.
// errs.ErrEndOfLog means the archive itself is exhausted in that
// direction; the caller (multilog.Context) is responsible for the
// multi-archive transition. Any other failure leaves the current volume
// at the offset it had before the failed read.
func (a *Archive) ReadNext(dir Direction, paranoid bool) (decodedRecord, error) {
	for {
		pos, posErr := a.cur.File.Seek(0, io.SeekCurrent)
		rec, err := a.readOnce(dir, paranoid)
		if err == nil {
			shared.RecordRead()
			return rec, nil
		}
		if err != errVolumeExhausted {
			if posErr == nil {
				a.cur.File.Seek(pos, io.SeekStart)
			}
			return decodedRecord{}, err
		}

		if !a.tryNeighbourVolume(dir) {
			return decodedRecord{}, errs.ErrEndOfLog
		}
	}
}

var errVolumeExhausted = fmt.Errorf("archive: volume exhausted")

func (a *Archive) readOnce(dir Direction, paranoid bool) (decodedRecord, error) {
	f := a.cur.File

	if dir == Backward {
		pos, err := f.Seek(0, io.SeekCurrent)
		if err != nil {
			return decodedRecord{}, err
		}
		if pos <= a.cur.Label.Size+section.FrameOverhead {
			return decodedRecord{}, errVolumeExhausted
		}

		headerPos := pos
		recLen, err := codec.StepBackward(f)
		if err != nil {
			return decodedRecord{}, err
		}
		headerPos -= int64(recLen)

		_, payload, err := codec.ReadFrame(f)
		if err != nil {
			return decodedRecord{}, err
		}

		if _, err := f.Seek(headerPos, io.SeekStart); err != nil {
			return decodedRecord{}, err
		}

		return a.decode(payload, paranoid)
	}

	_, payload, err := codec.ReadFrame(f)
	if err != nil {
		return decodedRecord{}, errVolumeExhausted
	}

	return a.decode(payload, paranoid)
}

func (a *Archive) decode(payload []byte, paranoid bool) (decodedRecord, error) {
	if a.cur.Codec != nil {
		decompressed, err := a.cur.Codec.Decompress(payload)
		if err != nil {
			return decodedRecord{}, fmt.Errorf("%w: %v", errs.ErrBadRecord, err)
		}
		payload = decompressed
	}

	sec, nsec, tail, err := record.SplitTimestamp(payload, a.label.Version)
	if err != nil {
		return decodedRecord{}, fmt.Errorf("%w: %v", errs.ErrBadRecord, err)
	}

	var rs extern.ResultSet
	if paranoid {
		rs, err = record.ParanoidCheck(tail, 0, a.payloadCodec)
	} else {
		rs, err = a.payloadCodec.Decode(tail)
	}
	if err != nil {
		return decodedRecord{}, err
	}

	return decodedRecord{Sec: sec, Nsec: nsec, Payload: rs}, nil
}

// tryNeighbourVolume attempts to switch to the next volume in dir,
// skipping any that fail to open (diagnostic only, per the error
// handling policy's "try-next-volume fallback"). It returns false when
// no further volume exists in that direction.
func (a *Archive) tryNeighbourVolume(dir Direction) bool {
	ids := a.sortedVolumeIDs()
	cur := a.cur.ID

	idx := -1
	for i, id := range ids {
		if id == cur {
			idx = i
			break
		}
	}
	if idx == -1 {
		return false
	}

	if dir == Forward {
		for i := idx + 1; i < len(ids); i++ {
			if err := a.changeVolume(ids[i]); err == nil {
				if _, err := a.cur.SeekAfterLabel(); err == nil {
					return true
				}
			}
		}

		return false
	}

	for i := idx - 1; i >= 0; i-- {
		if err := a.changeVolume(ids[i]); err == nil {
			if _, err := a.cur.SeekEnd(); err == nil {
				return true
			}
		}
	}

	return false
}

// StartTime returns the archive's label start timestamp.
func (a *Archive) StartTime() (int64, int32) {
	return a.label.StartSec, a.label.StartNsec
}

// End returns the timestamp of the archive's last successfully decodable
// record and caches the result. It reads the last record of the highest
// volume backward in paranoid mode; when that record does not decode (a
// truncated trailing record, for instance) it scans the volume forward in
// paranoid mode and takes the last record that does, so the end is then
// the penultimate record.
func (a *Archive) End() (sec int64, nsec int32, err error) {
	if a.endKnown {
		return a.endSec, a.endNsec, nil
	}

	savedVolume := a.cur.ID
	savedPos, _ := a.cur.File.Seek(0, io.SeekCurrent)
	defer func() {
		a.changeVolume(savedVolume)
		a.cur.File.Seek(savedPos, io.SeekStart)
	}()

	if err := a.SeekToEnd(); err != nil {
		return 0, 0, err
	}

	rec, readErr := a.ReadNext(Backward, true)
	if readErr != nil {
		// The trailing record does not decode (e.g. it is truncated): scan
		// the volume forward and keep the last record that does.
		if _, err := a.cur.SeekAfterLabel(); err != nil {
			return 0, 0, readErr
		}
		found := false
		for r, err := a.readOnce(Forward, true); err == nil; r, err = a.readOnce(Forward, true) {
			rec, found = r, true
		}
		if !found {
			return 0, 0, readErr
		}
	}

	a.endKnown = true
	a.endSec, a.endNsec = rec.Sec, rec.Nsec

	return rec.Sec, rec.Nsec, nil
}

// invalidateEndCache drops a previously cached End() result; called after
// a PutResult extends the archive.
func (a *Archive) invalidateEndCache() {
	a.endKnown = false
}
