package thumbcache

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"unicode/utf16"

	"thumbindex/internal/logging"
)

// Container format versions as written by Windows.
const (
	versionVista  = 0x14
	versionWin7   = 0x15
	versionWin8   = 0x1A
	versionWin8v2 = 0x1C
	versionWin8v3 = 0x1E
	versionWin81  = 0x1F
	versionWin10  = 0x20
)

var cacheSignature = [4]byte{'C', 'M', 'M', 'M'}

var errBadSignature = errors.New("bad cache file signature")

// cacheHeader is the fixed file header of a CMMM container.
type cacheHeader struct {
	version          uint32
	cacheType        uint32
	firstEntryOffset uint32
}

func readCacheHeader(r io.ReadSeeker) (*cacheHeader, error) {
	var fixed struct {
		Signature [4]byte
		Version   uint32
		CacheType uint32
	}
	if err := binary.Read(r, binary.LittleEndian, &fixed); err != nil {
		return nil, fmt.Errorf("failed to read cache header: %w", err)
	}
	if fixed.Signature != cacheSignature {
		return nil, errBadSignature
	}

	h := &cacheHeader{version: fixed.Version, cacheType: fixed.CacheType}
	switch fixed.Version {
	case versionVista, versionWin7:
		// first entry offset, available entry offset, entry count
		var rest [3]uint32
		if err := binary.Read(r, binary.LittleEndian, &rest); err != nil {
			return nil, fmt.Errorf("failed to read cache header: %w", err)
		}
		h.firstEntryOffset = rest[0]
	case versionWin8, versionWin8v2, versionWin8v3, versionWin81, versionWin10:
		// unknown, first entry offset, available entry offset
		var rest [3]uint32
		if err := binary.Read(r, binary.LittleEndian, &rest); err != nil {
			return nil, fmt.Errorf("failed to read cache header: %w", err)
		}
		h.firstEntryOffset = rest[1]
	default:
		return nil, fmt.Errorf("unsupported cache format version 0x%x", fixed.Version)
	}
	return h, nil
}

// rawEntry is one decoded cache slot before index joining.
type rawEntry struct {
	hash           uint64
	identifier     string
	extension      string
	dataChecksum   [8]byte
	headerChecksum [8]byte
	data           []byte
}

// readEntry decodes the cache entry at the reader's current position and
// returns it plus the total slot size, so the caller can advance to the
// next slot. io.EOF signals a clean end of the entry chain.
func readEntry(r io.ReadSeeker, version uint32) (*rawEntry, int64, error) {
	var head struct {
		Signature [4]byte
		Size      uint32
		Hash      uint64
	}
	if err := binary.Read(r, binary.LittleEndian, &head); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, 0, io.EOF
		}
		return nil, 0, fmt.Errorf("failed to read entry header: %w", err)
	}
	if head.Signature != cacheSignature {
		// Past the last written entry the file holds zeroed slack
		return nil, 0, io.EOF
	}
	if head.Size < 16 {
		return nil, 0, fmt.Errorf("entry size %d too small", head.Size)
	}

	e := &rawEntry{hash: head.Hash}

	// Vista entries carry a fixed-width UTF-16 extension field
	if version == versionVista {
		var ext [8]byte
		if err := binary.Read(r, binary.LittleEndian, &ext); err != nil {
			return nil, 0, fmt.Errorf("failed to read entry extension: %w", err)
		}
		e.extension = decodeUTF16(ext[:])
	}

	var identifierSize, paddingSize, dataSize uint32
	for _, field := range []*uint32{&identifierSize, &paddingSize, &dataSize} {
		if err := binary.Read(r, binary.LittleEndian, field); err != nil {
			return nil, 0, fmt.Errorf("failed to read entry sizes: %w", err)
		}
	}

	// Windows 8 and later store the pixel dimensions inline
	if version >= versionWin8 {
		var dims [2]uint32
		if err := binary.Read(r, binary.LittleEndian, &dims); err != nil {
			return nil, 0, fmt.Errorf("failed to read entry dimensions: %w", err)
		}
	}

	var unknown uint32
	if err := binary.Read(r, binary.LittleEndian, &unknown); err != nil {
		return nil, 0, fmt.Errorf("failed to read entry: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &e.dataChecksum); err != nil {
		return nil, 0, fmt.Errorf("failed to read data checksum: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &e.headerChecksum); err != nil {
		return nil, 0, fmt.Errorf("failed to read header checksum: %w", err)
	}

	if identifierSize > head.Size || dataSize > head.Size {
		return nil, 0, fmt.Errorf("entry field sizes exceed slot size %d", head.Size)
	}

	identifier := make([]byte, identifierSize)
	if _, err := io.ReadFull(r, identifier); err != nil {
		return nil, 0, fmt.Errorf("failed to read entry identifier: %w", err)
	}
	e.identifier = decodeUTF16(identifier)

	if paddingSize > 0 {
		if _, err := r.Seek(int64(paddingSize), io.SeekCurrent); err != nil {
			return nil, 0, fmt.Errorf("failed to skip entry padding: %w", err)
		}
	}

	e.data = make([]byte, dataSize)
	if _, err := io.ReadFull(r, e.data); err != nil {
		return nil, 0, fmt.Errorf("failed to read entry payload: %w", err)
	}

	return e, int64(head.Size), nil
}

// decodeUTF16 converts little-endian UTF-16 bytes to a string, stopping
// at the first NUL.
func decodeUTF16(b []byte) string {
	codes := make([]uint16, 0, len(b)/2)
	for i := 0; i+1 < len(b); i += 2 {
		c := binary.LittleEndian.Uint16(b[i:])
		if c == 0 {
			break
		}
		codes = append(codes, c)
	}
	return string(utf16.Decode(codes))
}

// parseCacheFile streams every populated entry of one cache file into fn.
// Joining against idx fills last-modified and flags. fn returning an
// error aborts the walk.
func parseCacheFile(path, name string, idx index, fn func(*Entry) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open cache file: %w", err)
	}
	defer func() { _ = f.Close() }()

	header, err := readCacheHeader(f)
	if err != nil {
		return err
	}

	offset := int64(header.firstEntryOffset)
	for {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			return fmt.Errorf("failed to seek to entry at %d: %w", offset, err)
		}

		raw, slotSize, err := readEntry(f, header.version)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		offset += slotSize

		// Deallocated slots and empty payloads are not thumbnails
		if raw.hash == 0 || len(raw.data) == 0 {
			continue
		}

		entry := &Entry{
			CacheFile: name,
			CacheKey:  raw.identifier,
			Data:      raw.data,
		}
		if entry.CacheKey == "" {
			entry.CacheKey = fmt.Sprintf("%016x", raw.hash)
		}

		entryHash := fmt.Sprintf("0x%016x", raw.hash)
		entry.EntryHash = &entryHash
		if raw.extension != "" {
			ext := raw.extension
			entry.Extension = &ext
		}
		if raw.dataChecksum != ([8]byte{}) {
			sum := hex.EncodeToString(raw.dataChecksum[:])
			entry.DataChecksum = &sum
		}
		if raw.headerChecksum != ([8]byte{}) {
			sum := hex.EncodeToString(raw.headerChecksum[:])
			entry.HeaderChecksum = &sum
		}

		if meta, ok := idx.lookup(entry.CacheKey); ok {
			entry.LastModified = meta.lastModified
			entry.Flags = meta.flags
		}

		if err := fn(entry); err != nil {
			return err
		}
	}
}

// logParseError reports a per-file parse failure without aborting a
// multi-file walk.
func logParseError(name string, err error) {
	logging.Error("Error parsing %s: %v", name, err)
}
