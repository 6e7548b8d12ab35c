package roundfn

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rotMix = `
RotMix:
  name: Rotation Mixer
  word: 32
  words: 2
  rounds: 22
  capabilities: [CAP_ARITH, CAP_ROTATE, CAP_XOR]
  encrypt:
    - rotr: [x, 8]
    - add:  [x, y]
    - xor:  [x, key]
    - rotl: [y, 3]
    - xor:  [y, x]
  decrypt:
    - xor:  [y, x]
    - rotr: [y, 3]
    - xor:  [x, key]
    - sub:  [x, y]
    - rotl: [x, 8]
`

func compileFirst(t *testing.T, src string) *Cipher {
	t.Helper()
	prog, err := Compile(src, DefaultPolicy())
	require.NoError(t, err)
	typ, err := prog.First()
	require.NoError(t, err)
	return New(typ)
}

func TestCompileRoundTrip(t *testing.T) {
	c := compileFirst(t, rotMix)
	assert.Equal(t, "Rotation Mixer", c.Name())
	assert.Equal(t, 8, c.Type().BlockSize())

	key := []byte("0123456789abcdef")
	pt := []byte("Hello World Data")
	ct, err := c.Encrypt(pt, key)
	require.NoError(t, err)
	require.Len(t, ct, 16)
	assert.NotEqual(t, pt, ct)

	again, err := c.Encrypt(pt, key)
	require.NoError(t, err)
	assert.Equal(t, ct, again)

	back, err := c.Decrypt(ct, key)
	require.NoError(t, err)
	assert.Equal(t, pt, back)
}

func TestEmptyStepsActAsIdentity(t *testing.T) {
	c := compileFirst(t, `
Identity:
  word: 8
  words: 4
  rounds: 1
  encrypt: []
  decrypt: []
`)
	assert.Equal(t, "Identity", c.Name())

	ct, err := c.Encrypt([]byte{1, 2, 3, 4, 5}, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 0, 0, 0}, ct)

	ct, err = c.Encrypt(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 0}, ct)
}

func TestSelectsFirstConformingTypeInDeclarationOrder(t *testing.T) {
	src := `
Helper:
  word: 16
  encrypt: []
Zeta:
  name: first
  rounds: 1
  encrypt: []
  decrypt: []
Alpha:
  name: second
  rounds: 1
  encrypt: []
  decrypt: []
`
	for range 20 {
		prog, err := Compile(src, DefaultPolicy())
		require.NoError(t, err)
		require.Len(t, prog.Types, 2)
		assert.Equal(t, []string{"Helper"}, prog.Skipped)
		typ, err := prog.First()
		require.NoError(t, err)
		assert.Equal(t, "first", typ.Name)
	}
}

func TestNoConformingType(t *testing.T) {
	for _, src := range []string{"", "VERSION: 3\n", "Half:\n  encrypt: []\n"} {
		prog, err := Compile(src, DefaultPolicy())
		require.NoError(t, err)
		_, err = prog.First()
		assert.ErrorIs(t, err, ErrNoConformingType)
	}
}

func TestCompileErrors(t *testing.T) {
	cases := map[string]string{
		"syntax":       "Broken: [unclosed",
		"not mapping":  "- a\n- b\n",
		"unknown op":   "T:\n  rounds: 1\n  encrypt:\n    - spin: [x, 1]\n  decrypt: []\n",
		"bad word":     "T:\n  word: 12\n  rounds: 1\n  encrypt: []\n  decrypt: []\n",
		"bad words":    "T:\n  words: 5\n  rounds: 1\n  encrypt: []\n  decrypt: []\n",
		"zero rounds":  "T:\n  encrypt: []\n  decrypt: []\n",
		"unknown cap":  "T:\n  rounds: 1\n  capabilities: [CAP_NET]\n  encrypt: []\n  decrypt: []\n",
		"dup cap":      "T:\n  rounds: 1\n  capabilities: [CAP_XOR, cap_xor]\n  encrypt: []\n  decrypt: []\n",
		"bad register": "T:\n  words: 1\n  rounds: 1\n  capabilities: [CAP_XOR]\n  encrypt:\n    - xor: [x, y]\n  decrypt: []\n",
		"wide const":   "T:\n  word: 8\n  rounds: 1\n  capabilities: [CAP_XOR]\n  encrypt:\n    - xor: [x, 0x1ff]\n  decrypt: []\n",
		"arity":        "T:\n  rounds: 1\n  capabilities: [CAP_XOR]\n  encrypt:\n    - xor: [x]\n  decrypt: []\n",
		"const dst":    "T:\n  rounds: 1\n  capabilities: [CAP_XOR]\n  encrypt:\n    - xor: [1, x]\n  decrypt: []\n",
		"unknown key":  "T:\n  rounds: 1\n  exec: rm\n  encrypt: []\n  decrypt: []\n",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Compile(src, DefaultPolicy())
			var srcErr *SourceError
			require.True(t, errors.As(err, &srcErr), "expected SourceError, got %v", err)
		})
	}
}

func TestStepsNeedDeclaredCapability(t *testing.T) {
	_, err := Compile("T:\n  rounds: 1\n  capabilities: [CAP_XOR]\n  encrypt:\n    - add: [x, y]\n  decrypt: []\n", DefaultPolicy())
	var capErr *CapabilityError
	require.True(t, errors.As(err, &capErr))
	assert.Equal(t, CapArith, capErr.Capability)
	assert.False(t, capErr.Denied)
}

func TestPolicyLimits(t *testing.T) {
	policy := DefaultPolicy()
	policy.Capabilities = []string{"CAP_XOR"}
	_, err := Compile(rotMix, policy)
	var capErr *CapabilityError
	require.True(t, errors.As(err, &capErr))
	assert.True(t, capErr.Denied)

	policy = DefaultPolicy()
	policy.MaxRounds = 10
	_, err = Compile(rotMix, policy)
	assert.ErrorContains(t, err, "rounds must be between 1 and 10")

	policy = DefaultPolicy()
	policy.MaxSteps = 50
	_, err = Compile(rotMix, policy)
	assert.ErrorContains(t, err, "step budget")

	policy = DefaultPolicy()
	policy.MaxSourceBytes = 16
	_, err = Compile(rotMix, policy)
	assert.ErrorContains(t, err, "source exceeds 16 bytes")

	assert.Error(t, Policy{Capabilities: []string{"CAP_FS"}}.Validate())
	assert.NoError(t, Policy{Capabilities: AllowedCapabilities()}.Validate())
}

func TestWordArithmeticWraps(t *testing.T) {
	c := compileFirst(t, `
Wrap:
  word: 8
  words: 2
  rounds: 1
  capabilities: [CAP_ARITH, CAP_ROTATE, CAP_SHIFT, CAP_LOGIC, CAP_PERMUTE]
  encrypt:
    - add: [x, 0x10]
    - rotl: [y, 9]
    - shl: [x, 8]
    - not: x
    - swap: [x, y]
  decrypt:
    - swap: [x, y]
`)
	ct, err := c.Encrypt([]byte{0xf8, 0x81}, nil)
	require.NoError(t, err)
	// x: 0xf8+0x10 wraps to 0x08, shl 8 clears it, not gives 0xff.
	// y: rotl by 9 is rotl by 1, 0x81 becomes 0x03. Then swapped.
	assert.Equal(t, []byte{0x03, 0xff}, ct)
}

func TestRoundKeysCycle(t *testing.T) {
	c := compileFirst(t, `
Keys:
  word: 16
  words: 1
  rounds: 4
  capabilities: [CAP_XOR]
  encrypt:
    - xor: [x, key]
  decrypt:
    - xor: [x, key]
`)
	key := []byte{0x00, 0x01, 0x00, 0x02, 0x00, 0x04, 0x00, 0x08}
	ct, err := c.Encrypt([]byte{0, 0}, key)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x0f}, ct)

	_, err = c.Decrypt([]byte{1, 2, 3}, key)
	assert.Error(t, err)
}

func TestAllowedCapabilitiesSorted(t *testing.T) {
	caps := AllowedCapabilities()
	assert.True(t, strings.Join(caps, ",") == "CAP_ARITH,CAP_LOGIC,CAP_PERMUTE,CAP_ROTATE,CAP_SHIFT,CAP_XOR")
}
