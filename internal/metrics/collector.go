package metrics

import (
	"os"
	"time"

	"thumbindex/internal/logging"
)

// StatsProvider supplies store content statistics for the collector.
type StatsProvider interface {
	GetStats() Stats
}

// Stats holds the store statistics the collector exports as gauges.
type Stats struct {
	TotalRecords   int
	BySizeClass    map[string]int
	TotalDataBytes int64
}

// Collector periodically collects and updates metrics
type Collector struct {
	statsProvider StatsProvider
	dbPath        string
	interval      time.Duration
	stopChan      chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, dbPath string, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		dbPath:        dbPath,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection
func (c *Collector) Stop() {
	close(c.stopChan)
}

func (c *Collector) collectLoop() {
	// Collect immediately on start
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.statsProvider != nil {
		stats := c.statsProvider.GetStats()

		RecordsTotal.Set(float64(stats.TotalRecords))
		RecordDataBytes.Set(float64(stats.TotalDataBytes))
		for size, count := range stats.BySizeClass {
			RecordsBySize.WithLabelValues(size).Set(float64(count))
		}

		logging.Debug("Metrics collected: records=%d, bytes=%d",
			stats.TotalRecords, stats.TotalDataBytes)
	}

	c.collectDBSizes()
}

// collectDBSizes reports the on-disk size of the SQLite files.
func (c *Collector) collectDBSizes() {
	if c.dbPath == "" {
		return
	}

	files := map[string]string{
		"main": c.dbPath,
		"wal":  c.dbPath + "-wal",
		"shm":  c.dbPath + "-shm",
	}

	for label, path := range files {
		info, err := os.Stat(path)
		if err != nil {
			DBSizeBytes.WithLabelValues(label).Set(0)
			continue
		}
		DBSizeBytes.WithLabelValues(label).Set(float64(info.Size()))
	}
}
