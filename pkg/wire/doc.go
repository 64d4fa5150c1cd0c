// Package wire implements the device protocol's framing layer: a
// variable-length, self-describing big-endian length prefix for words, and
// zero-byte-terminated sentences built from those words.
//
// This package is pure: it performs no I/O and holds no connection state.
// Callers feed it byte slices (from whatever transport they have) and get
// back decoded words or sentences, or a signal that more bytes are needed.
//
// # Word length prefix
//
// The length of a word is encoded in the fewest bytes that can hold it:
//
//	0xxxxxxx                              1 byte header, length 0-127
//	10xxxxxx xxxxxxxx                     2 byte header, length 128-16383
//	110xxxxx xxxxxxxx xxxxxxxx            3 byte header, length 16384-2097151
//	1110xxxx xxxxxxxx xxxxxxxx xxxxxxxx   4 byte header, length up to 268435455
//	0xF0 + 4 raw bytes                     5 byte header, for anything larger
//
// A length of 0 (a single 0x00 byte) terminates a sentence.
package wire
