package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"thumbindex/internal/database"
)

// csvHeader is the fixed column set of metadata.csv.
var csvHeader = []string{
	"id", "cache_file", "cache_key", "cache_size", "width", "height",
	"data_size", "image_format", "image_mode", "extension", "hash",
	"entry_hash", "data_checksum", "header_checksum", "last_modified",
	"indexed_at", "flags",
}

// textReport renders the human-readable metadata.txt for an export.
func textReport(records []*database.Record) string {
	var b strings.Builder
	rule := strings.Repeat("=", 70)

	b.WriteString(rule + "\n")
	b.WriteString("THUMBNAIL CACHE EXPORT\n")
	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "Exported: %s\n", time.Now().UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Total thumbnails: %d\n", len(records))
	b.WriteString("\n")
	b.WriteString("NOTE: Original file paths are not stored in the thumbnail cache.\n")
	b.WriteString("      They can be recovered from Windows Search (Windows.edb) database.\n")
	b.WriteString("\n")
	b.WriteString(rule + "\n\n")

	for i, rec := range records {
		fmt.Fprintf(&b, "[%d] Thumbnail ID: %d\n", i+1, rec.ID)
		b.WriteString(strings.Repeat("-", 50) + "\n\n")

		b.WriteString("  IMAGE INFORMATION:\n")
		fmt.Fprintf(&b, "    Dimensions:      %s\n", dimensionsOr(rec, "?x?"))
		fmt.Fprintf(&b, "    Data Size:       %d bytes\n", rec.DataSize)
		fmt.Fprintf(&b, "    Image Format:    %s\n", orUnknown(rec.ImageFormat))
		fmt.Fprintf(&b, "    Color Mode:      %s\n", orUnknown(rec.ImageMode))
		fmt.Fprintf(&b, "    File Extension:  %s\n", orUnknown(rec.Extension))
		b.WriteString("\n")

		b.WriteString("  CACHE INFORMATION:\n")
		fmt.Fprintf(&b, "    Cache File:      %s\n", rec.CacheFile)
		fmt.Fprintf(&b, "    Cache Size Type: %s\n", rec.CacheSize)
		fmt.Fprintf(&b, "    Cache Key (ID):  %s\n", rec.CacheKey)
		fmt.Fprintf(&b, "    Entry Hash:      %s\n", orUnknown(rec.EntryHash))
		b.WriteString("\n")

		b.WriteString("  CHECKSUMS & HASHES:\n")
		fmt.Fprintf(&b, "    MD5 Hash:        %s\n", rec.Hash)
		fmt.Fprintf(&b, "    Data Checksum:   %s\n", orUnknown(rec.DataChecksum))
		fmt.Fprintf(&b, "    Header Checksum: %s\n", orUnknown(rec.HeaderChecksum))
		b.WriteString("\n")

		b.WriteString("  TIMESTAMPS & FLAGS:\n")
		fmt.Fprintf(&b, "    Last Modified:   %s\n", orUnknown(rec.LastModified))
		fmt.Fprintf(&b, "    Indexed At:      %s\n", rec.IndexedAt.Format(time.RFC3339))
		fmt.Fprintf(&b, "    Flags:           %s\n", formatFlags(rec.Flags))
		b.WriteString("\n")
	}

	return b.String()
}

// writeCSVReport renders metadata.csv: the fixed header plus one row per
// record, with standard quoting handled by encoding/csv.
func writeCSVReport(w io.Writer, records []*database.Record) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, rec := range records {
		row := []string{
			strconv.FormatInt(rec.ID, 10),
			rec.CacheFile,
			rec.CacheKey,
			rec.CacheSize,
			intOrEmpty(rec.Width),
			intOrEmpty(rec.Height),
			strconv.FormatInt(rec.DataSize, 10),
			orEmpty(rec.ImageFormat),
			orEmpty(rec.ImageMode),
			orEmpty(rec.Extension),
			rec.Hash,
			orEmpty(rec.EntryHash),
			orEmpty(rec.DataChecksum),
			orEmpty(rec.HeaderChecksum),
			orEmpty(rec.LastModified),
			rec.IndexedAt.Format(time.RFC3339),
			int64OrEmpty(rec.Flags),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// formatFlags renders a flag bitmask as hex plus decimal.
func formatFlags(flags *int64) string {
	if flags == nil {
		return "Unknown"
	}
	return fmt.Sprintf("0x%08X (%d)", *flags, *flags)
}

func dimensionsOr(rec *database.Record, fallback string) string {
	if d := rec.Dimensions(); d != "" {
		return d
	}
	return fallback
}

func orUnknown(s *string) string {
	if s == nil || *s == "" {
		return "Unknown"
	}
	return *s
}

func orEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func intOrEmpty(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}

func int64OrEmpty(n *int64) string {
	if n == nil {
		return ""
	}
	return strconv.FormatInt(*n, 10)
}
