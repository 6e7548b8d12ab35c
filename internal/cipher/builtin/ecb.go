package builtin

import (
	stdcipher "crypto/cipher"
	"fmt"
)

type blockFactory func(key []byte) (stdcipher.Block, error)

// ecb adapts a fixed-width block primitive to the variable-length cipher
// contract. Input is zero-padded to a whole number of blocks and an empty
// input encrypts as one zero block.
type ecb struct {
	name      string
	blockSize int
	newBlock  blockFactory
}

func newECB(name string, blockSize int, f blockFactory) *ecb {
	return &ecb{name: name, blockSize: blockSize, newBlock: f}
}

func (e *ecb) Name() string { return e.name }

func (e *ecb) Encrypt(plaintext, key []byte) ([]byte, error) {
	return e.apply(plaintext, key, true)
}

func (e *ecb) Decrypt(ciphertext, key []byte) ([]byte, error) {
	return e.apply(ciphertext, key, false)
}

func (e *ecb) apply(input, key []byte, encrypt bool) ([]byte, error) {
	block, err := e.newBlock(key)
	if err != nil {
		return nil, fmt.Errorf("%s key setup: %w", e.name, err)
	}
	buf := pad(input, e.blockSize)
	out := make([]byte, len(buf))
	for off := 0; off < len(buf); off += e.blockSize {
		if encrypt {
			block.Encrypt(out[off:off+e.blockSize], buf[off:off+e.blockSize])
		} else {
			block.Decrypt(out[off:off+e.blockSize], buf[off:off+e.blockSize])
		}
	}
	return out, nil
}

func pad(input []byte, blockSize int) []byte {
	n := len(input)
	if n == 0 || n%blockSize != 0 {
		n += blockSize - n%blockSize
	}
	buf := make([]byte, n)
	copy(buf, input)
	return buf
}

// fitKey zero-pads or truncates key to size bytes.
func fitKey(key []byte, size int) []byte {
	out := make([]byte, size)
	copy(out, key)
	return out
}
