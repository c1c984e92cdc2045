// Package media normalizes thumbnail payloads into canonical PNG bytes
// and probes image properties (dimensions, format, color mode).
//
// Decoding goes through the pure-Go decoders first (jpeg, png, gif, bmp,
// tiff, webp) with an optional libvips fallback for formats they cannot
// handle. A payload that cannot be decoded is passed through unchanged.
package media
