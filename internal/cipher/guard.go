package cipher

import (
	"errors"
	"fmt"
)

// Guard wraps c so that every call either returns output or a *RuntimeFault.
// Panics raised by the wrapped implementation are recovered and reported as
// faults. Guarding an already guarded cipher returns it unchanged.
func Guard(c Cipher) Cipher {
	if c == nil {
		return nil
	}
	if g, ok := c.(*guarded); ok {
		return g
	}
	return &guarded{inner: c, name: safeName(c)}
}

// Unwrap returns the cipher wrapped by Guard, or c itself.
func Unwrap(c Cipher) Cipher {
	if g, ok := c.(*guarded); ok {
		return g.inner
	}
	return c
}

type guarded struct {
	inner Cipher
	name  string
}

func (g *guarded) Name() string { return g.name }

func (g *guarded) Encrypt(plaintext, key []byte) ([]byte, error) {
	return g.call(OpEncrypt, plaintext, key, g.inner.Encrypt)
}

func (g *guarded) Decrypt(ciphertext, key []byte) ([]byte, error) {
	return g.call(OpDecrypt, ciphertext, key, g.inner.Decrypt)
}

func (g *guarded) call(op Op, input, key []byte, fn func([]byte, []byte) ([]byte, error)) (out []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = &RuntimeFault{Cipher: g.name, Op: op, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	out, err = fn(input, key)
	if err != nil {
		var fault *RuntimeFault
		if errors.As(err, &fault) {
			return nil, err
		}
		return nil, &RuntimeFault{Cipher: g.name, Op: op, Err: err}
	}
	return out, nil
}

func safeName(c Cipher) (name string) {
	defer func() {
		if r := recover(); r != nil {
			name = fmt.Sprintf("%T", c)
		}
	}()
	name = c.Name()
	if name == "" {
		name = fmt.Sprintf("%T", c)
	}
	return name
}
