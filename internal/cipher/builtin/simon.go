package builtin

import (
	stdcipher "crypto/cipher"
	"encoding/binary"
	"math/bits"
)

const (
	simonName   = "Simon-64/128 (NSA Lightweight)"
	simonRounds = 44
)

// simon runs the Simon 64/128 round function over a counter key schedule
// derived from key bytes 4..7 instead of the standard LFSR schedule.
type simon struct {
	roundKeys [simonRounds]uint32
}

func newSimon(key []byte) (stdcipher.Block, error) {
	k := fitKey(key, 16)
	base := binary.BigEndian.Uint32(k[4:8])
	s := &simon{}
	for i := range s.roundKeys {
		s.roundKeys[i] = base + uint32(i)
	}
	return s, nil
}

func simonF(x uint32) uint32 {
	return (bits.RotateLeft32(x, 1) & bits.RotateLeft32(x, 8)) ^ bits.RotateLeft32(x, 2)
}

func (s *simon) BlockSize() int { return 8 }

func (s *simon) Encrypt(dst, src []byte) {
	x := binary.BigEndian.Uint32(src[0:4])
	y := binary.BigEndian.Uint32(src[4:8])
	for _, k := range s.roundKeys {
		x, y = y^simonF(x)^k, x
	}
	binary.BigEndian.PutUint32(dst[0:4], x)
	binary.BigEndian.PutUint32(dst[4:8], y)
}

func (s *simon) Decrypt(dst, src []byte) {
	x := binary.BigEndian.Uint32(src[0:4])
	y := binary.BigEndian.Uint32(src[4:8])
	for i := simonRounds - 1; i >= 0; i-- {
		x, y = y, x^simonF(y)^s.roundKeys[i]
	}
	binary.BigEndian.PutUint32(dst[0:4], x)
	binary.BigEndian.PutUint32(dst[4:8], y)
}
