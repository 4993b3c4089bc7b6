// Package item encodes one frame into a ring slot and decodes it back across
// the four on-wire slot layouts (generations 1 and 2 share a layout).
//
// Every layout starts with a fixed head followed by the sub-stream regions in
// descriptor order. A descriptor is 24 bytes little-endian:
//
//	offset u32 | length u32 | pts i64 | dts i64
//
// Generation 1/2 (legacy):
//
//	[0:4] zero marker  [4:8] generation  [8:12] total  [12:16] reserved
//	[16:160] descriptors
//
// Generation 3:
//
//	[0:4] total (non-zero)  [4:8] flags  [8:152] descriptors
//
// Generation 4:
//
//	[0:4] total  [4:8] flags  [8:72] head block  [72:216] descriptors
//	[216:224] side-channel offset u32, length u32 (only with flagSideChannel)
//
// Generation 4 starts video and audio regions on a 16-byte boundary relative
// to the slot base and appends the key-value side channel last. Offsets are
// relative to the slot base. A slot is valid only when walking its
// descriptors from the end of the head reproduces the declared total.
package item
