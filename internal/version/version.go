package version

import "time"

// Version is a specific extracted snapshot of a work, primary-keyed by
// its content hash.
type Version struct {
	// Hash is the BLAKE3 hex digest of the decompressed document bytes;
	// it is the version's identity.
	Hash string
	// Length is the decompressed document size in bytes.
	Length int64
	// CRC32 is the CRC-32 checksum of the decompressed document bytes.
	CRC32 uint32
	// ExtractedAt is when extraction produced this Version.
	ExtractedAt time.Time
	Metadata
}
