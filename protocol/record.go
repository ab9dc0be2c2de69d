package protocol

// RecordFifo is a circular byte buffer that hands out whole fixed-size
// records. Serial transports deliver bytes in arbitrary chunks; the packet
// task feeds them in with Write and pulls complete records with Next.
type RecordFifo struct {
	buf   []byte
	read  int
	write int
	size  int
}

// NewRecordFifo creates a RecordFifo with room for capacity-1 bytes
func NewRecordFifo(capacity int) *RecordFifo {
	return &RecordFifo{
		buf:  make([]byte, capacity),
		size: capacity,
	}
}

// Write appends data and returns how many bytes fit
func (f *RecordFifo) Write(data []byte) int {
	written := 0
	for _, b := range data {
		nextWrite := (f.write + 1) % f.size
		if nextWrite == f.read {
			// Buffer full
			break
		}
		f.buf[f.write] = b
		f.write = nextWrite
		written++
	}
	return written
}

// WriteByte appends a single byte. It reports ErrFifoFull when the
// buffer has no room.
func (f *RecordFifo) WriteByte(b byte) error {
	nextWrite := (f.write + 1) % f.size
	if nextWrite == f.read {
		return ErrFifoFull
	}
	f.buf[f.write] = b
	f.write = nextWrite
	return nil
}

// Next copies one record of len(dst) bytes out of the buffer. It returns
// false, consuming nothing, until a whole record is buffered.
func (f *RecordFifo) Next(dst []byte) bool {
	if f.Available() < len(dst) {
		return false
	}
	for i := range dst {
		dst[i] = f.buf[f.read]
		f.read = (f.read + 1) % f.size
	}
	return true
}

// DropPartial discards the trailing bytes that do not complete a record of
// size bytes and returns how many were dropped. Records carry no start
// marker, so after a line glitch this is the only way back onto a record
// boundary.
func (f *RecordFifo) DropPartial(size int) int {
	extra := f.Available() % size
	f.write = (f.write - extra + f.size) % f.size
	return extra
}

// Available returns the number of bytes available for reading
func (f *RecordFifo) Available() int {
	if f.write >= f.read {
		return f.write - f.read
	}
	return f.size - f.read + f.write
}

// Free returns the number of bytes available for writing
func (f *RecordFifo) Free() int {
	return f.size - f.Available() - 1
}

// Reset clears the buffer
func (f *RecordFifo) Reset() {
	f.read = 0
	f.write = 0
}
