package store

import (
	"encoding/binary"
	"fmt"
	"math"

	"carspire/internal/domain"
)

// encodeVector stores v as little-endian IEEE 754 float32 values without a
// length prefix; the dimension is derived from the value size on decode.
func encodeVector(v domain.Vector) []byte {
	b := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(f))
	}
	return b
}

func decodeVector(b []byte) (domain.Vector, error) {
	if len(b) == 0 {
		return nil, domain.ErrEmptyVector
	}
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid vector blob length %d (not multiple of 4)", len(b))
	}
	v := make(domain.Vector, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

// seqKey encodes a sequence index big-endian so bolt's byte ordering matches
// insertion order.
func seqKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}

func keySeq(k []byte) (uint64, bool) {
	if len(k) != 8 {
		return 0, false
	}
	return binary.BigEndian.Uint64(k), true
}
