// Package thumbcache reads Windows Explorer thumbnail cache files.
//
// It parses the CMMM cache container (thumbcache_*.db) and the IMMM
// companion index (thumbcache_idx.db), joining them by entry identifier
// to recover per-thumbnail timestamps and flags. Payload bytes are
// returned as-is; image decoding is left to the caller.
//
// Supported container versions span Vista (0x14) through Windows 10
// (0x20). A corrupt or truncated cache file is skipped, never fatal.
package thumbcache
