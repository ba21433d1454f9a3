// Package analyzer inspects archives and validates that they hold only
// image entries.
//
// Analysis iterates the archive's central directory without decompressing
// entry data. The first non-image entry, directory entry or nested archive
// makes the whole archive invalid. Three hard limits protect against
// hostile input: total uncompressed size, entry count, and a wall-clock
// deadline after which the analysis is abandoned and its partial results
// discarded.
//
// A successful analysis produces an immutable ArchiveInfo with entries in
// natural filename order ("img2" before "img10"). If the archive changes on
// disk, a fresh analysis supersedes the old record; ArchiveInfo values are
// never mutated.
package analyzer
