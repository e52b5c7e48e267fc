// Package pagefile manages the on-disk page file: the fixed-offset
// header on page 0, raw page I/O, and the LIFO free-list allocator.
//
// Every page is 4096 bytes. Pages numbered >= 1 start with a 16-byte
// header (type, reserved checksum, free-list link); the remainder is
// payload. The file-level header tracks the page count, the next unused
// page number, and the free-list head, and is buffered in memory for
// the lifetime of an open File. Callers decide when it becomes durable
// via PersistHeader.
//
// All on-disk values are encoded and decoded field by field at fixed
// little-endian offsets; no structure is ever overlaid on a raw buffer.
package pagefile
