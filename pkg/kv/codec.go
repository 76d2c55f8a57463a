package kv

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/pszemraj/localpaste/pkg/types"
)

// Stored values use a fixed-schema binary encoding: big-endian integers,
// u32-length-prefixed UTF-8 strings, one presence byte for optionals, one
// byte for bools, i64 millisecond timestamps. There is no embedded version
// field; the IndexState version key governs derived-table compatibility and
// the canonical Paste format is forward-compatible via the legacy-decode
// fallback below.

type encoder struct {
	buf []byte
}

func (e *encoder) u32(v uint32) {
	e.buf = binary.BigEndian.AppendUint32(e.buf, v)
}

func (e *encoder) i64(v int64) {
	e.buf = binary.BigEndian.AppendUint64(e.buf, uint64(v))
}

func (e *encoder) boolean(v bool) {
	if v {
		e.buf = append(e.buf, 1)
	} else {
		e.buf = append(e.buf, 0)
	}
}

func (e *encoder) str(s string) {
	e.u32(uint32(len(s)))
	e.buf = append(e.buf, s...)
}

func (e *encoder) optStr(s string) {
	if s == "" {
		e.buf = append(e.buf, 0)
		return
	}
	e.buf = append(e.buf, 1)
	e.str(s)
}

func (e *encoder) strSlice(ss []string) {
	e.u32(uint32(len(ss)))
	for _, s := range ss {
		e.str(s)
	}
}

func (e *encoder) timestamp(t time.Time) {
	e.i64(t.UnixMilli())
}

type decoder struct {
	buf []byte
	off int
}

func (d *decoder) u32() (uint32, error) {
	if d.off+4 > len(d.buf) {
		return 0, types.ErrSerialization
	}
	v := binary.BigEndian.Uint32(d.buf[d.off:])
	d.off += 4
	return v, nil
}

func (d *decoder) i64() (int64, error) {
	if d.off+8 > len(d.buf) {
		return 0, types.ErrSerialization
	}
	v := int64(binary.BigEndian.Uint64(d.buf[d.off:]))
	d.off += 8
	return v, nil
}

func (d *decoder) boolean() (bool, error) {
	if d.off >= len(d.buf) {
		return false, types.ErrSerialization
	}
	b := d.buf[d.off]
	d.off++
	if b > 1 {
		return false, types.ErrSerialization
	}
	return b == 1, nil
}

func (d *decoder) str() (string, error) {
	n, err := d.u32()
	if err != nil {
		return "", err
	}
	if d.off+int(n) > len(d.buf) {
		return "", types.ErrSerialization
	}
	s := string(d.buf[d.off : d.off+int(n)])
	d.off += int(n)
	return s, nil
}

func (d *decoder) optStr() (string, error) {
	present, err := d.boolean()
	if err != nil {
		return "", err
	}
	if !present {
		return "", nil
	}
	return d.str()
}

func (d *decoder) strSlice() ([]string, error) {
	n, err := d.u32()
	if err != nil {
		return nil, err
	}
	if int(n) > len(d.buf)-d.off {
		return nil, types.ErrSerialization
	}
	var out []string
	for i := uint32(0); i < n; i++ {
		s, err := d.str()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (d *decoder) timestamp() (time.Time, error) {
	ms, err := d.i64()
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}

// finish rejects trailing bytes; exact consumption is what distinguishes the
// current schema from the legacy one during fallback decoding.
func (d *decoder) finish() error {
	if d.off != len(d.buf) {
		return types.ErrSerialization
	}
	return nil
}

// EncodePaste serializes a paste in the current schema.
func EncodePaste(p *types.Paste) []byte {
	var e encoder
	e.str(p.ID)
	e.str(p.Name)
	e.str(p.Content)
	e.optStr(p.Language)
	e.boolean(p.LanguageIsManual)
	e.optStr(p.FolderID)
	e.strSlice(p.Tags)
	e.boolean(p.IsMarkdown)
	e.timestamp(p.CreatedAt)
	e.timestamp(p.UpdatedAt)
	return e.buf
}

// DecodePaste deserializes a paste under the current schema only.
func DecodePaste(data []byte) (*types.Paste, error) {
	d := decoder{buf: data}
	p := &types.Paste{}
	var err error
	if p.ID, err = d.str(); err != nil {
		return nil, err
	}
	if p.Name, err = d.str(); err != nil {
		return nil, err
	}
	if p.Content, err = d.str(); err != nil {
		return nil, err
	}
	if p.Language, err = d.optStr(); err != nil {
		return nil, err
	}
	if p.LanguageIsManual, err = d.boolean(); err != nil {
		return nil, err
	}
	if p.FolderID, err = d.optStr(); err != nil {
		return nil, err
	}
	if p.Tags, err = d.strSlice(); err != nil {
		return nil, err
	}
	if p.IsMarkdown, err = d.boolean(); err != nil {
		return nil, err
	}
	if p.CreatedAt, err = d.timestamp(); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = d.timestamp(); err != nil {
		return nil, err
	}
	if err := d.finish(); err != nil {
		return nil, err
	}
	return p, nil
}

// decodePasteLegacy deserializes the pre-manual-flag schema.
func decodePasteLegacy(data []byte) (*types.Paste, error) {
	d := decoder{buf: data}
	p := &types.Paste{}
	var err error
	if p.ID, err = d.str(); err != nil {
		return nil, err
	}
	if p.Name, err = d.str(); err != nil {
		return nil, err
	}
	if p.Content, err = d.str(); err != nil {
		return nil, err
	}
	if p.Language, err = d.optStr(); err != nil {
		return nil, err
	}
	if p.FolderID, err = d.optStr(); err != nil {
		return nil, err
	}
	if p.Tags, err = d.strSlice(); err != nil {
		return nil, err
	}
	if p.IsMarkdown, err = d.boolean(); err != nil {
		return nil, err
	}
	if p.CreatedAt, err = d.timestamp(); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = d.timestamp(); err != nil {
		return nil, err
	}
	if err := d.finish(); err != nil {
		return nil, err
	}
	return p, nil
}

// DecodePasteWithFallback attempts the current schema, then the legacy one.
// A legacy row is upgraded in memory: the language is treated as manually
// chosen iff the detector disagrees with the stored language on the current
// content. The on-disk bytes are not rewritten; the next write path does.
func DecodePasteWithFallback(data []byte, detect func(string) string) (*types.Paste, error) {
	if p, err := DecodePaste(data); err == nil {
		return p, nil
	}
	p, err := decodePasteLegacy(data)
	if err != nil {
		return nil, fmt.Errorf("paste: %w", types.ErrSerialization)
	}
	p.LanguageIsManual = legacyLanguageIsManual(p.Content, p.Language, detect)
	return p, nil
}

// legacyLanguageIsManual infers the manual flag for a legacy row: true iff
// the stored language disagrees with heuristic detection, case-insensitive.
// A blank stored language is never manual.
func legacyLanguageIsManual(content, storedLanguage string, detect func(string) string) bool {
	if storedLanguage == "" || detect == nil {
		return false
	}
	detected := detect(content)
	return !strings.EqualFold(detected, storedLanguage)
}

// EncodePasteMeta serializes a derived metadata row.
func EncodePasteMeta(m *types.PasteMeta) []byte {
	var e encoder
	e.str(m.ID)
	e.str(m.Name)
	e.optStr(m.Language)
	e.boolean(m.LanguageIsManual)
	e.optStr(m.FolderID)
	e.strSlice(m.Tags)
	e.timestamp(m.CreatedAt)
	e.timestamp(m.UpdatedAt)
	return e.buf
}

// DecodePasteMeta deserializes a derived metadata row.
func DecodePasteMeta(data []byte) (*types.PasteMeta, error) {
	d := decoder{buf: data}
	m := &types.PasteMeta{}
	var err error
	if m.ID, err = d.str(); err != nil {
		return nil, err
	}
	if m.Name, err = d.str(); err != nil {
		return nil, err
	}
	if m.Language, err = d.optStr(); err != nil {
		return nil, err
	}
	if m.LanguageIsManual, err = d.boolean(); err != nil {
		return nil, err
	}
	if m.FolderID, err = d.optStr(); err != nil {
		return nil, err
	}
	if m.Tags, err = d.strSlice(); err != nil {
		return nil, err
	}
	if m.CreatedAt, err = d.timestamp(); err != nil {
		return nil, err
	}
	if m.UpdatedAt, err = d.timestamp(); err != nil {
		return nil, err
	}
	if err := d.finish(); err != nil {
		return nil, err
	}
	return m, nil
}

// EncodeFolder serializes a folder.
func EncodeFolder(f *types.Folder) []byte {
	var e encoder
	e.str(f.ID)
	e.str(f.Name)
	e.optStr(f.ParentID)
	e.u32(uint32(f.PasteCount))
	e.timestamp(f.CreatedAt)
	return e.buf
}

// DecodeFolder deserializes a folder.
func DecodeFolder(data []byte) (*types.Folder, error) {
	d := decoder{buf: data}
	f := &types.Folder{}
	var err error
	if f.ID, err = d.str(); err != nil {
		return nil, err
	}
	if f.Name, err = d.str(); err != nil {
		return nil, err
	}
	if f.ParentID, err = d.optStr(); err != nil {
		return nil, err
	}
	count, err := d.u32()
	if err != nil {
		return nil, err
	}
	f.PasteCount = int(count)
	if f.CreatedAt, err = d.timestamp(); err != nil {
		return nil, err
	}
	if err := d.finish(); err != nil {
		return nil, err
	}
	return f, nil
}

// EncodeRecencyKey builds the binary composite key for pastes_by_updated:
// 8 bytes big-endian (MaxUint64 - max(updatedAtMillis, 0)) followed by the
// UTF-8 id bytes, so an ascending scan yields most-recently-updated first.
func EncodeRecencyKey(updatedAt time.Time, id string) []byte {
	millis := updatedAt.UnixMilli()
	if millis < 0 {
		millis = 0
	}
	key := make([]byte, 8, 8+len(id))
	binary.BigEndian.PutUint64(key, math.MaxUint64-uint64(millis))
	return append(key, id...)
}

// DecodeRecencyKeyID returns the id portion of a recency key.
func DecodeRecencyKeyID(key []byte) (string, error) {
	if len(key) < 8 {
		return "", types.ErrSerialization
	}
	return string(key[8:]), nil
}
