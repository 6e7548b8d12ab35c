package builtin

import (
	"crypto/aes"
	stdcipher "crypto/cipher"

	"golang.org/x/crypto/blowfish"
	"golang.org/x/crypto/xtea"
)

func newXTEA(key []byte) (stdcipher.Block, error) {
	return xtea.NewCipher(fitKey(key, 16))
}

func newBlowfish(key []byte) (stdcipher.Block, error) {
	size := min(max(len(key), 4), 56)
	return blowfish.NewCipher(fitKey(key, size))
}

func newAES(key []byte) (stdcipher.Block, error) {
	return aes.NewCipher(fitKey(key, 16))
}
