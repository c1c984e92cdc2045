package thumbcache

import "strings"

// sizeClasses maps file-name fragments to size class codes. Order matters:
// "wide_alternate" must be checked before "wide", and the numeric classes
// with shared prefixes ("256" vs "2560") are distinguished by the longer
// fragment appearing first.
var sizeClasses = []struct {
	fragment string
	class    string
}{
	{"thumbcache_2560", "2560"},
	{"thumbcache_256", "256"},
	{"thumbcache_1024", "1024"},
	{"thumbcache_32", "32"},
	{"thumbcache_96", "96"},
	{"thumbcache_16", "16"},
	{"thumbcache_48", "48"},
	{"thumbcache_sr", "sr"},
	{"thumbcache_wide_alternate", "wide_alt"},
	{"thumbcache_wide", "wide"},
	{"thumbcache_exif", "exif"},
	{"thumbcache_custom", "custom"},
}

// SizeFromFilename derives the cache size class from a cache file name,
// or "unknown" for unrecognized names.
func SizeFromFilename(name string) string {
	lower := strings.ToLower(name)
	for _, sc := range sizeClasses {
		if strings.Contains(lower, sc.fragment) {
			return sc.class
		}
	}
	return "unknown"
}
