package thumbcache

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"thumbindex/internal/logging"
)

// ErrUnavailable is returned when the cache directory cannot be read.
// Callers triggering a reindex must surface this before touching the
// store; read paths never consult it.
var ErrUnavailable = errors.New("thumbnail cache source unavailable")

// knownCacheFiles are the standard cache file names across Windows
// versions, checked before globbing for anything else.
var knownCacheFiles = []string{
	"thumbcache_16.db",
	"thumbcache_32.db",
	"thumbcache_48.db",
	"thumbcache_96.db",
	"thumbcache_256.db",
	"thumbcache_1024.db",
	"thumbcache_2560.db",
	"thumbcache_sr.db",
	"thumbcache_wide.db",
	"thumbcache_exif.db",
	"thumbcache_wide_alternate.db",
	"thumbcache_custom_stream.db",
}

// Source reads thumbnail entries from a directory of cache files.
type Source struct {
	dir string
}

// NewSource creates a Source over the given cache directory. The
// directory is not required to exist yet; Available reports that.
func NewSource(dir string) *Source {
	return &Source{dir: dir}
}

// Dir returns the cache directory path.
func (s *Source) Dir() string {
	return s.dir
}

// Available reports whether the cache directory exists and is readable.
func (s *Source) Available() bool {
	f, err := os.Open(s.dir)
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()
	info, err := f.Stat()
	return err == nil && info.IsDir()
}

// IndexAvailable reports whether the companion index file exists.
func (s *Source) IndexAvailable() bool {
	info, err := os.Stat(filepath.Join(s.dir, IndexFileName))
	return err == nil && !info.IsDir()
}

// FindCacheFiles lists the cache file names present in the directory:
// the known Windows names first, then any other thumbcache_*.db files,
// excluding the index.
func (s *Source) FindCacheFiles() []string {
	var files []string
	seen := make(map[string]bool)

	for _, name := range knownCacheFiles {
		if _, err := os.Stat(filepath.Join(s.dir, name)); err == nil {
			files = append(files, name)
			seen[name] = true
		}
	}

	matches, err := filepath.Glob(filepath.Join(s.dir, "thumbcache_*.db"))
	if err == nil {
		var extra []string
		for _, match := range matches {
			name := filepath.Base(match)
			if seen[name] || strings.Contains(strings.ToLower(name), "idx") {
				continue
			}
			extra = append(extra, name)
		}
		sort.Strings(extra)
		files = append(files, extra...)
	}

	return files
}

// Stream walks every populated entry of the directory's cache files,
// restricted to the selected file names when selected is non-empty, and
// calls fn for each. The index is loaded once up front for timestamp and
// flag joins. A cache file that fails to parse is logged and skipped;
// an error returned by fn aborts the whole walk.
func (s *Source) Stream(selected []string, fn func(*Entry) error) error {
	if !s.Available() {
		return ErrUnavailable
	}

	idx := loadIndex(filepath.Join(s.dir, IndexFileName))

	files := s.FindCacheFiles()
	if len(selected) > 0 {
		selectedSet := make(map[string]bool, len(selected))
		for _, name := range selected {
			selectedSet[name] = true
		}
		var filtered []string
		for _, name := range files {
			if selectedSet[name] {
				filtered = append(filtered, name)
			}
		}
		files = filtered
		logging.Info("Filtering to %d selected cache files", len(files))
	}

	var abort error
	for _, name := range files {
		logging.Info("Parsing %s...", name)
		err := parseCacheFile(filepath.Join(s.dir, name), name, idx, func(e *Entry) error {
			if err := fn(e); err != nil {
				abort = err
				return err
			}
			return nil
		})
		if abort != nil {
			return abort
		}
		if err != nil {
			logParseError(name, err)
		}
	}
	return nil
}

// CacheFileStat describes one on-disk cache file for the listing API.
type CacheFileStat struct {
	Name      string  `json:"name"`
	SizeBytes int64   `json:"size_bytes"`
	SizeMB    float64 `json:"size_mb"`
	Modified  string  `json:"modified"`
	CacheSize string  `json:"cache_size"`
}

// CacheFiles returns on-disk stats for every cache file in the directory.
func (s *Source) CacheFiles() ([]CacheFileStat, error) {
	if !s.Available() {
		return nil, ErrUnavailable
	}

	var stats []CacheFileStat
	for _, name := range s.FindCacheFiles() {
		info, err := os.Stat(filepath.Join(s.dir, name))
		if err != nil {
			continue
		}
		stats = append(stats, CacheFileStat{
			Name:      name,
			SizeBytes: info.Size(),
			SizeMB:    roundMB(info.Size()),
			Modified:  info.ModTime().UTC().Format(time.RFC3339),
			CacheSize: SizeFromFilename(name),
		})
	}
	return stats, nil
}

// DirStats summarizes the cache directory for the stats endpoint.
type DirStats struct {
	CachePath      string          `json:"cache_path"`
	CacheFiles     []CacheFileStat `json:"cache_files"`
	TotalSizeBytes int64           `json:"total_size_bytes"`
	TotalSizeMB    float64         `json:"total_size_mb"`
	IndexAvailable bool            `json:"index_available"`
}

// Stats collects directory-level statistics. Unlike CacheFiles it never
// fails: an unavailable directory yields an empty listing.
func (s *Source) Stats() DirStats {
	stats := DirStats{
		CachePath:      s.dir,
		CacheFiles:     []CacheFileStat{},
		IndexAvailable: s.IndexAvailable(),
	}
	files, err := s.CacheFiles()
	if err != nil {
		return stats
	}
	stats.CacheFiles = files
	for _, f := range files {
		stats.TotalSizeBytes += f.SizeBytes
	}
	stats.TotalSizeMB = roundMB(stats.TotalSizeBytes)
	return stats
}

func roundMB(bytes int64) float64 {
	mb := float64(bytes) / (1024 * 1024)
	return float64(int64(mb*100+0.5)) / 100
}
