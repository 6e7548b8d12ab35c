package builtin

const xorName = "Simple XOR (Weak)"

// XOR combines plaintext and key byte by byte. Output stops at the shorter
// of the two inputs, so an empty key yields an empty ciphertext.
type XOR struct{}

func (XOR) Name() string { return xorName }

func (XOR) Encrypt(plaintext, key []byte) ([]byte, error) {
	n := min(len(plaintext), len(key))
	out := make([]byte, n)
	for i := range n {
		out[i] = plaintext[i] ^ key[i]
	}
	return out, nil
}

func (x XOR) Decrypt(ciphertext, key []byte) ([]byte, error) {
	return x.Encrypt(ciphertext, key)
}
