// Package cursor implements the byte cursor shared by every wire format in
// mediashm: fixed-width little- and big-endian integers up to 128 bits, a
// compact variable-length integer codec, QUIC variable-length integers, and
// raw byte ranges.
//
// Two cursor types share one read surface. [Buffer] owns its storage and
// grows on write. [Reader] attaches to an external range (typically a slot in
// shared memory) and has no write or grow methods at all.
//
// A call that cannot complete returns an error and leaves the cursor position
// unspecified; callers stop at the first error.
package cursor
