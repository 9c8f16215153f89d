package storage

import (
	"fmt"
	"hash/crc32"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	// ShardCount is the fixed number of shard directories under the
	// versioned root. At 100 shards, even millions of entries per day take
	// years to approach per-directory file-count limits on constrained
	// filesystems.
	ShardCount = 100

	// structureVersion is bumped when the directory layout itself changes.
	structureVersion = 2

	contentExt = ".cnt"
	tempExt    = ".tmp"
)

// crc32cTable is pre-computed for the CRC32-Castagnoli polynomial, which is
// hardware accelerated on modern x86 and ARM.
var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// ShardIndex maps a resource id to its shard directory index.
// It is pure: insert and lookup always agree on the shard.
func ShardIndex(resourceID string) int {
	return int(crc32.Checksum([]byte(resourceID), crc32cTable) % ShardCount)
}

// versionedRootName builds the active root directory name from the structure
// version, the shard count and the caller's content format version, e.g.
// "v2.ols100.1". A cache root holds files of exactly one such name at a time.
func versionedRootName(contentVersion int) string {
	return fmt.Sprintf("v%d.ols%d.%d", structureVersion, ShardCount, contentVersion)
}

// FileKind is what a file name says the file is. It is determined solely by
// the extension.
type FileKind int

const (
	// KindContent is a durable, fully written payload (".cnt").
	KindContent FileKind = iota
	// KindTemp is an in-flight write target (".tmp").
	KindTemp
)

// FileInfo is the result of parsing a cache file name.
type FileInfo struct {
	Kind       FileKind
	ResourceID string
}

// contentFileName returns the canonical file name for a committed resource.
func contentFileName(resourceID string) string {
	return resourceID + contentExt
}

// tempFileName returns a temp file name for an in-flight insert. The random
// disambiguator keeps concurrent inserts for the same id collision-free.
func tempFileName(resourceID, disambiguator string) string {
	return resourceID + "." + disambiguator + tempExt
}

// parseFileName recognizes content and temp file names. Anything else is
// foreign and reported as not ok.
func parseFileName(name string) (FileInfo, bool) {
	switch {
	case strings.HasSuffix(name, contentExt):
		id := strings.TrimSuffix(name, contentExt)
		if id == "" {
			return FileInfo{}, false
		}
		return FileInfo{Kind: KindContent, ResourceID: id}, true

	case strings.HasSuffix(name, tempExt):
		base := strings.TrimSuffix(name, tempExt)
		// Split off the disambiguator: "{id}.{random}".
		dot := strings.LastIndexByte(base, '.')
		if dot <= 0 || dot == len(base)-1 {
			return FileInfo{}, false
		}
		return FileInfo{Kind: KindTemp, ResourceID: base[:dot]}, true

	default:
		return FileInfo{}, false
	}
}

// shardDir returns the shard directory for a resource id, relative to the
// versioned root.
func shardDir(versionedRoot, resourceID string) string {
	return filepath.Join(versionedRoot, strconv.Itoa(ShardIndex(resourceID)))
}

// inExpectedShard reports whether dir is the shard directory the parsed
// resource id hashes to. Files in any other location are foreign or corrupt.
func inExpectedShard(versionedRoot, dir, resourceID string) bool {
	return dir == shardDir(versionedRoot, resourceID)
}
