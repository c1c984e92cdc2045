package thumbcache

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"thumbindex/internal/logging"
)

// IndexFileName is the companion index present next to the cache files.
const IndexFileName = "thumbcache_idx.db"

var indexSignature = [4]byte{'I', 'M', 'M', 'M'}

// indexMeta is the per-identifier metadata recovered from the index.
type indexMeta struct {
	lastModified *string
	flags        *int64
}

// index maps entry identifiers to their index metadata.
type index map[string]indexMeta

// lookup resolves an identifier, falling back to the byte-reversed hex
// encoding when the primary form misses. Cache entries and index slots
// disagree on identifier byte order for some container versions.
func (ix index) lookup(key string) (indexMeta, bool) {
	if meta, ok := ix[key]; ok {
		return meta, true
	}
	if alt, err := reverseHex(key); err == nil {
		if meta, ok := ix[alt]; ok {
			return meta, true
		}
	}
	return indexMeta{}, false
}

// reverseHex re-encodes a hex identifier with its byte order flipped.
func reverseHex(s string) (string, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return "", err
	}
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return hex.EncodeToString(b), nil
}

// indexOffsetCount is the number of per-cache offset slots each index
// entry carries, which grew with the number of cache files Windows keeps.
func indexOffsetCount(version uint32) int {
	switch {
	case version <= versionWin7:
		return 5
	case version < versionWin81:
		return 9
	case version < versionWin10:
		return 11
	default:
		return 14
	}
}

// loadIndex reads the IMMM index file if present. A missing or corrupt
// index yields an empty map; timestamps and flags simply stay unknown.
func loadIndex(path string) index {
	ix := make(index)

	f, err := os.Open(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logging.Warn("Could not open index file: %v", err)
		}
		return ix
	}
	defer func() { _ = f.Close() }()

	if err := readIndexEntries(f, ix); err != nil {
		logging.Warn("Could not load index data: %v", err)
	}
	logging.Debug("Loaded %d index entries", len(ix))
	return ix
}

func readIndexEntries(r io.Reader, ix index) error {
	var header struct {
		Signature    [4]byte
		Version      uint32
		Unknown1     uint32
		UsedEntries  uint32
		TotalEntries uint32
		Unknown2     uint32
	}
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return fmt.Errorf("failed to read index header: %w", err)
	}
	if header.Signature != indexSignature {
		return errors.New("bad index file signature")
	}

	offsetCount := indexOffsetCount(header.Version)
	offsets := make([]uint32, offsetCount)

	for i := uint32(0); i < header.TotalEntries; i++ {
		var slot struct {
			Hash         uint64
			LastModified uint64
			Flags        uint32
		}
		if err := binary.Read(r, binary.LittleEndian, &slot); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return fmt.Errorf("failed to read index entry %d: %w", i, err)
		}
		if err := binary.Read(r, binary.LittleEndian, &offsets); err != nil {
			return fmt.Errorf("failed to read index entry offsets %d: %w", i, err)
		}

		// Unused slots have a zero hash
		if slot.Hash == 0 {
			continue
		}

		var hashBytes [8]byte
		binary.LittleEndian.PutUint64(hashBytes[:], slot.Hash)

		meta := indexMeta{}
		if slot.LastModified != 0 {
			ts := filetimeToString(slot.LastModified)
			meta.lastModified = &ts
		}
		flags := int64(slot.Flags)
		meta.flags = &flags

		ix[hex.EncodeToString(hashBytes[:])] = meta
	}
	return nil
}

// filetimeEpoch is the Windows FILETIME epoch (1601-01-01 UTC) expressed
// as a Unix timestamp in seconds.
const filetimeEpoch = -11644473600

// filetimeToString converts a FILETIME (100ns ticks since 1601) to the
// timestamp format persisted on records.
func filetimeToString(ft uint64) string {
	secs := int64(ft/10_000_000) + filetimeEpoch
	nanos := int64(ft%10_000_000) * 100
	return time.Unix(secs, nanos).UTC().Format("2006-01-02T15:04:05.000000")
}
