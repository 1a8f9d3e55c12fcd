package file

import (
	"encoding/binary"
	"errors"
	"io"
)

// maxBytesLength is one more than the largest length a length-prefixed
// byte string may have: the prefix is a 16-bit little-endian count (spec
// §4.1).
const maxBytesLength = 1 << 16

// ErrBytesTooLong is returned by SetBytes when the payload would not fit in
// the 16-bit length prefix.
var ErrBytesTooLong = errors.New("file: byte slice too long for length-prefixed encoding")

// Page is a fixed-size in-memory image of one block, with typed accessors.
// Integers are little-endian; length-prefixed byte strings carry a 16-bit
// little-endian length header. Grounded on
// _examples/original_source/src/page.rs, sized per file.Manager's
// configured block size rather than a compile-time array (the teacher's
// btree.Page uses a fixed [PageSize]byte; here the block size is runtime
// configuration per spec §6).
type Page struct {
	buf []byte
}

// NewPage allocates a zeroed page of the given block size.
func NewPage(blockSize int) *Page {
	return &Page{buf: make([]byte, blockSize)}
}

// NewPageFromBytes wraps an existing byte slice as a page without copying.
func NewPageFromBytes(buf []byte) *Page {
	return &Page{buf: buf}
}

// Len returns the page's block size.
func (p *Page) Len() int {
	return len(p.buf)
}

// Bytes returns the page's underlying buffer.
func (p *Page) Bytes() []byte {
	return p.buf
}

// GetInt32 reads a little-endian i32 at offset.
func (p *Page) GetInt32(offset int) int32 {
	return int32(binary.LittleEndian.Uint32(p.buf[offset : offset+4]))
}

// SetInt32 writes a little-endian i32 at offset.
func (p *Page) SetInt32(offset int, v int32) {
	binary.LittleEndian.PutUint32(p.buf[offset:offset+4], uint32(v))
}

// SetBytes writes a 16-bit length prefix followed by b, and returns the
// total number of bytes occupied (2+len(b)).
func (p *Page) SetBytes(offset int, b []byte) (int, error) {
	if len(b) >= maxBytesLength {
		return 0, ErrBytesTooLong
	}
	binary.LittleEndian.PutUint16(p.buf[offset:offset+2], uint16(len(b)))
	copy(p.buf[offset+2:offset+2+len(b)], b)
	return len(b) + 2, nil
}

// GetBytes reads a length-prefixed byte string written by SetBytes,
// returning the payload and the total number of bytes it occupied.
func (p *Page) GetBytes(offset int) ([]byte, int) {
	n := int(binary.LittleEndian.Uint16(p.buf[offset : offset+2]))
	return p.buf[offset+2 : offset+2+n], n + 2
}

// SetString is SetBytes over the string's UTF-8 encoding.
func (p *Page) SetString(offset int, s string) (int, error) {
	return p.SetBytes(offset, []byte(s))
}

// GetString is GetBytes decoded as UTF-8.
func (p *Page) GetString(offset int) (string, int) {
	b, n := p.GetBytes(offset)
	return string(b), n
}

// RequiredBytesSize returns the number of bytes SetBytes(offset, b) would
// occupy, without writing.
func RequiredBytesSize(b []byte) int {
	return len(b) + 2
}

// WriteTo writes the full page contents to w.
func (p *Page) WriteTo(w io.WriterAt, off int64) (int, error) {
	return w.WriteAt(p.buf, off)
}

// ReadFrom reads the full page contents from r, overwriting the buffer.
func (p *Page) ReadFrom(r io.ReaderAt, off int64) (int, error) {
	return io.ReadFull(&sectionReaderAt{r: r, off: off}, p.buf)
}

// sectionReaderAt adapts an io.ReaderAt positioned at a fixed offset to
// io.Reader, so ReadFrom can use io.ReadFull's short-read handling.
type sectionReaderAt struct {
	r   io.ReaderAt
	off int64
}

func (s *sectionReaderAt) Read(p []byte) (int, error) {
	n, err := s.r.ReadAt(p, s.off)
	s.off += int64(n)
	return n, err
}
