package kv

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pszemraj/localpaste/pkg/types"
)

func samplePaste() *types.Paste {
	return &types.Paste{
		ID:               "d2719f0e-55b4-4b0e-9305-1b64f8f1a2a7",
		Name:             "notes",
		Content:          "SELECT * FROM users;",
		Language:         "sql",
		LanguageIsManual: true,
		FolderID:         "f-1",
		Tags:             []string{"db", "work"},
		IsMarkdown:       false,
		CreatedAt:        time.UnixMilli(1700000000000).UTC(),
		UpdatedAt:        time.UnixMilli(1700000001000).UTC(),
	}
}

func TestPasteCodecRoundTrip(t *testing.T) {
	p := samplePaste()
	decoded, err := DecodePaste(EncodePaste(p))
	require.NoError(t, err)
	assert.Equal(t, p, decoded)
}

func TestDecodePasteRejectsTrailingBytes(t *testing.T) {
	data := append(EncodePaste(samplePaste()), 0xFF)
	_, err := DecodePaste(data)
	assert.ErrorIs(t, err, types.ErrSerialization)
}

// encodeLegacyPaste writes the pre-manual-flag layout by hand.
func encodeLegacyPaste(p *types.Paste) []byte {
	var e encoder
	e.str(p.ID)
	e.str(p.Name)
	e.str(p.Content)
	e.optStr(p.Language)
	e.optStr(p.FolderID)
	e.strSlice(p.Tags)
	e.boolean(p.IsMarkdown)
	e.timestamp(p.CreatedAt)
	e.timestamp(p.UpdatedAt)
	return e.buf
}

func TestLegacyFallbackMarksDivergentLanguageAsManual(t *testing.T) {
	p := samplePaste()
	p.Language = "python"
	data := encodeLegacyPaste(p)

	detect := func(string) string { return "sql" }
	decoded, err := DecodePasteWithFallback(data, detect)
	require.NoError(t, err)
	assert.Equal(t, "python", decoded.Language)
	assert.True(t, decoded.LanguageIsManual, "stored language disagrees with detection")
}

func TestLegacyFallbackKeepsAgreeingLanguageAutomatic(t *testing.T) {
	p := samplePaste()
	data := encodeLegacyPaste(p)

	detect := func(string) string { return "SQL" } // case-insensitive compare
	decoded, err := DecodePasteWithFallback(data, detect)
	require.NoError(t, err)
	assert.False(t, decoded.LanguageIsManual)
}

func TestLegacyFallbackBlankLanguageIsNeverManual(t *testing.T) {
	p := samplePaste()
	p.Language = ""
	data := encodeLegacyPaste(p)

	decoded, err := DecodePasteWithFallback(data, func(string) string { return "go" })
	require.NoError(t, err)
	assert.False(t, decoded.LanguageIsManual)
}

func TestDecodeWithFallbackRejectsGarbage(t *testing.T) {
	_, err := DecodePasteWithFallback([]byte{1, 2, 3}, nil)
	assert.ErrorIs(t, err, types.ErrSerialization)
}

func TestRecencyKeyOrdersMostRecentFirst(t *testing.T) {
	older := EncodeRecencyKey(time.UnixMilli(1000), "a")
	newer := EncodeRecencyKey(time.UnixMilli(2000), "b")

	// Ascending byte order must yield the newer paste first.
	assert.Negative(t, bytes.Compare(newer, older))

	id, err := DecodeRecencyKeyID(newer)
	require.NoError(t, err)
	assert.Equal(t, "b", id)
}

func TestRecencyKeyClampsPreEpochTimestamps(t *testing.T) {
	key := EncodeRecencyKey(time.UnixMilli(-5), "x")
	zero := EncodeRecencyKey(time.UnixMilli(0), "x")
	assert.Equal(t, zero[:8], key[:8])
}

func TestFolderCodecRoundTrip(t *testing.T) {
	f := &types.Folder{
		ID:         "f-1",
		Name:       "projects",
		ParentID:   "",
		PasteCount: 3,
		CreatedAt:  time.UnixMilli(1700000000000).UTC(),
	}
	decoded, err := DecodeFolder(EncodeFolder(f))
	require.NoError(t, err)
	assert.Equal(t, f, decoded)
}

func TestMetaCodecPreservesID(t *testing.T) {
	m := samplePaste().Meta()
	decoded, err := DecodePasteMeta(EncodePasteMeta(m))
	require.NoError(t, err)
	assert.Equal(t, m.ID, decoded.ID)
	assert.Equal(t, m.Tags, decoded.Tags)
}
