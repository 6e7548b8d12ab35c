package cipher

// Cipher is the capability contract consumed by the audit engine.
type Cipher interface {
	// Name returns the display name of the cipher.
	Name() string

	// Encrypt transforms plaintext under key.
	Encrypt(plaintext, key []byte) ([]byte, error)

	// Decrypt inverts Encrypt. The current analyses only exercise Encrypt.
	Decrypt(ciphertext, key []byte) ([]byte, error)
}

// Constructor builds a fresh cipher instance with no arguments.
type Constructor func() (Cipher, error)

// Op names the contract method that was being invoked.
type Op string

const (
	OpEncrypt Op = "encrypt"
	OpDecrypt Op = "decrypt"
)
