// Package cipher defines the capability contract every auditable cipher
// satisfies, the error taxonomy shared by the audit engine, and the static
// registry of built-in implementations.
//
// # Contract
//
// A cipher exposes a stable display name and two byte-slice transforms:
//
//	type Cipher interface {
//	    Name() string
//	    Encrypt(plaintext, key []byte) ([]byte, error)
//	    Decrypt(ciphertext, key []byte) ([]byte, error)
//	}
//
// Block size is not part of the contract. Implementations may accept and
// return slices of any length, and analysis code normalises against the
// observed output length.
//
// Encrypt must be a pure function of its inputs for the statistical tests to
// be meaningful. The engine documents this precondition but does not verify
// it.
//
// # Faults
//
// Ciphers report failures through returned errors. Guard wraps a handle so
// that both returned errors and recovered panics surface as *RuntimeFault,
// which the orchestrator treats as a failed run rather than a weak cipher.
//
// # Registry
//
// Registry maps ids to constructors in registration order:
//
//	reg := cipher.NewRegistry()
//	_ = reg.Register(cipher.Entry{ID: "xor", DisplayName: "Simple XOR", New: newXOR})
//	c, err := reg.Resolve("xor")
//
// Resolve fails with *UnknownCipherError for ids that were never registered.
// Registries are explicit values; there is no package-level registry that a
// loaded plugin could reach.
package cipher
