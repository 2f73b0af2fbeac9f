package xeventq

func put16(buf []byte, v uint16) {
	buf[0] = byte(v)
	buf[1] = byte(v >> 8)
}

func put32(buf []byte, v uint32) {
	buf[0] = byte(v)
	buf[1] = byte(v >> 8)
	buf[2] = byte(v >> 16)
	buf[3] = byte(v >> 24)
}

func get16(buf []byte) uint16 {
	v := uint16(buf[0])
	v |= uint16(buf[1]) << 8
	return v
}

func get32(buf []byte) uint32 {
	v := uint32(buf[0])
	v |= uint32(buf[1]) << 8
	v |= uint32(buf[2]) << 16
	v |= uint32(buf[3]) << 24
	return v
}

// field16 and field32 read a little endian value at off, returning 0 when
// the buffer is too short. Events arriving from a wire are not trusted to be
// well formed.
func field16(buf []byte, off int) uint16 {
	if len(buf) < off+2 {
		return 0
	}
	return get16(buf[off:])
}

func field32(buf []byte, off int) uint32 {
	if len(buf) < off+4 {
		return 0
	}
	return get32(buf[off:])
}
