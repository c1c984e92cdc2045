package database

import (
	"strconv"
	"time"
)

// Record is one persisted thumbnail cache entry with all of its metadata.
// Nullable columns are pointers: a nil Width/Height pair means the payload
// could not be decoded as an image. Width and Height are always set or nil
// together.
type Record struct {
	ID             int64     `json:"id"`
	CacheFile      string    `json:"cache_file"`
	CacheKey       string    `json:"cache_key"`
	CacheSize      string    `json:"cache_size"`
	Width          *int      `json:"width"`
	Height         *int      `json:"height"`
	DataSize       int64     `json:"data_size"`
	Hash           string    `json:"hash"`
	Data           []byte    `json:"-"`
	EntryHash      *string   `json:"entry_hash"`
	Extension      *string   `json:"extension"`
	DataChecksum   *string   `json:"data_checksum"`
	HeaderChecksum *string   `json:"header_checksum"`
	ImageFormat    *string   `json:"image_format"`
	ImageMode      *string   `json:"image_mode"`
	LastModified   *string   `json:"last_modified"`
	Flags          *int64    `json:"flags"`
	IndexedAt      time.Time `json:"indexed_at"`
}

// Dimensions returns "WxH" when both dimensions are known, else "".
func (r *Record) Dimensions() string {
	if r.Width == nil || r.Height == nil {
		return ""
	}
	return strconv.Itoa(*r.Width) + "x" + strconv.Itoa(*r.Height)
}

// Summary strips the payload for list and info views.
func (r *Record) Summary() *RecordSummary {
	return &RecordSummary{
		ID:             r.ID,
		CacheFile:      r.CacheFile,
		CacheKey:       r.CacheKey,
		CacheSize:      r.CacheSize,
		Width:          r.Width,
		Height:         r.Height,
		Dimensions:     r.Dimensions(),
		DataSize:       r.DataSize,
		Hash:           r.Hash,
		EntryHash:      r.EntryHash,
		Extension:      r.Extension,
		DataChecksum:   r.DataChecksum,
		HeaderChecksum: r.HeaderChecksum,
		ImageFormat:    r.ImageFormat,
		ImageMode:      r.ImageMode,
		LastModified:   r.LastModified,
		Flags:          r.Flags,
		IndexedAt:      r.IndexedAt,
	}
}

// RecordSummary is a Record without its payload bytes, used for list views.
type RecordSummary struct {
	ID             int64     `json:"id"`
	CacheFile      string    `json:"cache_file"`
	CacheKey       string    `json:"cache_key"`
	CacheSize      string    `json:"cache_size"`
	Width          *int      `json:"width"`
	Height         *int      `json:"height"`
	Dimensions     string    `json:"dimensions,omitempty"`
	DataSize       int64     `json:"data_size"`
	Hash           string    `json:"hash"`
	EntryHash      *string   `json:"entry_hash"`
	Extension      *string   `json:"extension"`
	DataChecksum   *string   `json:"data_checksum"`
	HeaderChecksum *string   `json:"header_checksum"`
	ImageFormat    *string   `json:"image_format"`
	ImageMode      *string   `json:"image_mode"`
	LastModified   *string   `json:"last_modified"`
	Flags          *int64    `json:"flags"`
	IndexedAt      time.Time `json:"indexed_at"`
}

// Sort selects the ordering of list queries.
type Sort string

const (
	SortNewest   Sort = "newest"   // indexed_at descending
	SortOldest   Sort = "oldest"   // indexed_at ascending
	SortLargest  Sort = "largest"  // data_size descending
	SortSmallest Sort = "smallest" // data_size ascending
	SortModified Sort = "modified" // last_modified descending, NULLs last
)

// QueryOptions is the typed filter specification for List queries. All set
// filters compose with AND; Search applies an OR of substring matches over
// hash, cache_key, entry_hash, and extension.
type QueryOptions struct {
	CacheSize   string   // exact match on cache size class
	ImageFormat string   // exact match on detected image format
	Extension   string   // substring match on extension
	CacheFiles  []string // set membership on origin cache file
	Search      string
	Sort        Sort
	Page        int // 1-indexed
	PerPage     int
}

// Stats is the aggregate summary over all indexed records.
type Stats struct {
	TotalRecords   int            `json:"total_thumbnails"`
	ByCacheSize    map[string]int `json:"by_cache_size"`
	ByCacheFile    map[string]int `json:"by_cache_file"`
	ByImageFormat  map[string]int `json:"by_image_format"`
	ByExtension    map[string]int `json:"by_extension"`
	TotalDataBytes int64          `json:"total_data_size_bytes"`
	LastIndexed    string         `json:"last_indexed,omitempty"`
}

// FilterOptions lists the distinct values available for each filter,
// each sorted ascending.
type FilterOptions struct {
	CacheSizes   []string `json:"cache_sizes"`
	ImageFormats []string `json:"image_formats"`
	Extensions   []string `json:"extensions"`
	CacheFiles   []string `json:"cache_files"`
}
