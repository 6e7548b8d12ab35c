package roundfn

import "fmt"

// Cipher runs a compiled Type over zero-padded blocks, one block at a time.
type Cipher struct {
	t *Type
}

// New returns a cipher backed by t.
func New(t *Type) *Cipher {
	return &Cipher{t: t}
}

func (c *Cipher) Name() string { return c.t.Name }

// Type returns the compiled declaration behind c.
func (c *Cipher) Type() *Type { return c.t }

// Encrypt pads plaintext with zeros to a whole number of blocks. An empty
// plaintext encrypts as a single zero block.
func (c *Cipher) Encrypt(plaintext, key []byte) ([]byte, error) {
	size := c.t.BlockSize()
	n := len(plaintext)
	if n == 0 || n%size != 0 {
		n += size - n%size
	}
	buf := make([]byte, n)
	copy(buf, plaintext)
	c.run(buf, key, true)
	return buf, nil
}

func (c *Cipher) Decrypt(ciphertext, key []byte) ([]byte, error) {
	size := c.t.BlockSize()
	if len(ciphertext) == 0 || len(ciphertext)%size != 0 {
		return nil, fmt.Errorf("ciphertext length %d is not a multiple of the %d-byte block", len(ciphertext), size)
	}
	buf := append([]byte(nil), ciphertext...)
	c.run(buf, key, false)
	return buf, nil
}

func (c *Cipher) run(buf, key []byte, encrypt bool) {
	t := c.t
	keys := t.roundKeys(key)
	size := t.BlockSize()
	wordBytes := t.Word / 8

	var regs [4]uint64
	for off := 0; off < len(buf); off += size {
		block := buf[off : off+size]
		for i := 0; i < t.Words; i++ {
			regs[i] = loadWord(block[i*wordBytes : (i+1)*wordBytes])
		}
		if encrypt {
			for r := 0; r < t.Rounds; r++ {
				t.exec(&regs, t.encrypt, &keys, r)
			}
		} else {
			for r := t.Rounds - 1; r >= 0; r-- {
				t.exec(&regs, t.decrypt, &keys, r)
			}
		}
		for i := 0; i < t.Words; i++ {
			storeWord(block[i*wordBytes:(i+1)*wordBytes], regs[i])
		}
	}
}
