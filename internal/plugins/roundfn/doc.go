// Package roundfn compiles and runs plugin ciphers described as round
// functions over fixed-width words.
//
// A plugin source is a YAML mapping of type names to declarations:
//
//	RotMix:
//	  name: Rotation Mixer
//	  word: 32
//	  words: 2
//	  rounds: 22
//	  capabilities: [CAP_ARITH, CAP_ROTATE, CAP_XOR]
//	  encrypt:
//	    - rotr: [x, 8]
//	    - add:  [x, y]
//	    - xor:  [x, key]
//	  decrypt:
//	    - xor:  [x, key]
//	    - sub:  [x, y]
//	    - rotl: [x, 8]
//
// Only fixed-width arithmetic on the block registers is available. There is
// no I/O and no looping beyond the declared round count, and every step must
// be covered by a declared capability that the loading Policy permits.
package roundfn
