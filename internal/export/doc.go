// Package export packages indexed thumbnails for download: a single
// normalized PNG, or a zip archive of normalized images plus two
// generated report artifacts (metadata.txt and metadata.csv).
package export
