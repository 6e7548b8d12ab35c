// Package builtin ships the example cipher implementations that are resolvable
// by id. Several of them are simplified simulations of the algorithms they are
// named after and exist to exercise the audit engine, not to protect data.
package builtin

import "github.com/RowanDark/cipherscore/internal/cipher"

// Entries returns the built-in cipher entries in listing order.
func Entries() []cipher.Entry {
	return []cipher.Entry{
		{
			ID:          "xor",
			DisplayName: xorName,
			Description: "Byte-wise XOR with the key; output is truncated to the shorter input",
			New:         func() (cipher.Cipher, error) { return XOR{}, nil },
		},
		{
			ID:          "simon",
			DisplayName: simonName,
			Description: "Simon 64/128 round function with a simplified counter key schedule",
			New:         func() (cipher.Cipher, error) { return newECB(simonName, 8, newSimon), nil },
		},
		{
			ID:          "speck",
			DisplayName: speckName,
			Description: "Speck 64/128, 27 rounds",
			New:         func() (cipher.Cipher, error) { return newECB(speckName, 8, newSpeck), nil },
		},
		{
			ID:          "present",
			DisplayName: presentName,
			Description: "31-round xor/add/rotate mixing standing in for PRESENT-80",
			New:         func() (cipher.Cipher, error) { return newECB(presentName, 8, newPresent), nil },
		},
		{
			ID:          "aead",
			DisplayName: aeadName,
			Description: "ChaCha20-Poly1305 with a fixed nonce",
			New:         func() (cipher.Cipher, error) { return AEAD{}, nil },
		},
		{
			ID:          "xtea",
			DisplayName: "XTEA-64/128",
			Description: "XTEA in ECB mode with zero padding",
			New:         func() (cipher.Cipher, error) { return newECB("XTEA-64/128", 8, newXTEA), nil },
		},
		{
			ID:          "blowfish",
			DisplayName: "Blowfish-64",
			Description: "Blowfish in ECB mode with zero padding",
			New:         func() (cipher.Cipher, error) { return newECB("Blowfish-64", 8, newBlowfish), nil },
		},
		{
			ID:          "aes",
			DisplayName: "AES-128",
			Description: "AES-128 in ECB mode with zero padding",
			New:         func() (cipher.Cipher, error) { return newECB("AES-128", 16, newAES), nil },
		},
	}
}

// Register adds every built-in entry to reg.
func Register(reg *cipher.Registry) error {
	for _, e := range Entries() {
		if err := reg.Register(e); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry returns a registry holding the built-in ciphers.
func NewRegistry() *cipher.Registry {
	reg := cipher.NewRegistry()
	for _, e := range Entries() {
		reg.MustRegister(e)
	}
	return reg
}
