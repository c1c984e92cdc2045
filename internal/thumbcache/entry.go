package thumbcache

// Entry is one thumbnail pulled out of a cache file, joined with its
// index metadata when available. Optional fields are nil when the source
// container version does not carry them or the index join missed.
type Entry struct {
	CacheFile      string
	CacheKey       string
	Data           []byte
	EntryHash      *string
	Extension      *string
	DataChecksum   *string
	HeaderChecksum *string
	LastModified   *string
	Flags          *int64
}
