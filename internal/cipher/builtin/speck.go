package builtin

import (
	stdcipher "crypto/cipher"
	"encoding/binary"
	"math/bits"
)

const (
	speckName   = "Speck-64/128 (Software Optimized)"
	speckRounds = 27
)

// speck is Speck64/128 with little-endian word loading.
type speck struct {
	roundKeys [speckRounds]uint32
}

func newSpeck(key []byte) (stdcipher.Block, error) {
	k := fitKey(key, 16)
	var words [4]uint32
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(k[i*4:])
	}

	s := &speck{}
	a := words[0]
	l := [3]uint32{words[1], words[2], words[3]}
	s.roundKeys[0] = a
	for i := 0; i < speckRounds-1; i++ {
		j := i % 3
		l[j] = (bits.RotateLeft32(l[j], -8) + a) ^ uint32(i)
		a = bits.RotateLeft32(a, 3) ^ l[j]
		s.roundKeys[i+1] = a
	}
	return s, nil
}

func (s *speck) BlockSize() int { return 8 }

func (s *speck) Encrypt(dst, src []byte) {
	x := binary.LittleEndian.Uint32(src[4:8])
	y := binary.LittleEndian.Uint32(src[0:4])
	for _, k := range s.roundKeys {
		x = (bits.RotateLeft32(x, -8) + y) ^ k
		y = bits.RotateLeft32(y, 3) ^ x
	}
	binary.LittleEndian.PutUint32(dst[4:8], x)
	binary.LittleEndian.PutUint32(dst[0:4], y)
}

func (s *speck) Decrypt(dst, src []byte) {
	x := binary.LittleEndian.Uint32(src[4:8])
	y := binary.LittleEndian.Uint32(src[0:4])
	for i := speckRounds - 1; i >= 0; i-- {
		y = bits.RotateLeft32(y^x, -3)
		x = bits.RotateLeft32((x^s.roundKeys[i])-y, 8)
	}
	binary.LittleEndian.PutUint32(dst[4:8], x)
	binary.LittleEndian.PutUint32(dst[0:4], y)
}
