package roundfn

import "math/bits"

func wordMask(width int) uint64 {
	if width == 64 {
		return ^uint64(0)
	}
	return 1<<uint(width) - 1
}

func rotl(x, n uint64, width int) uint64 {
	k := int(n % uint64(width))
	switch width {
	case 8:
		return uint64(bits.RotateLeft8(uint8(x), k))
	case 16:
		return uint64(bits.RotateLeft16(uint16(x), k))
	case 32:
		return uint64(bits.RotateLeft32(uint32(x), k))
	default:
		return bits.RotateLeft64(x, k)
	}
}

// roundKeys splits key, zero-padded or truncated to four words, into
// big-endian words.
func (t *Type) roundKeys(key []byte) [4]uint64 {
	size := t.Word / 8
	buf := make([]byte, 4*size)
	copy(buf, key)
	var out [4]uint64
	for i := range out {
		out[i] = loadWord(buf[i*size : (i+1)*size])
	}
	return out
}

func (t *Type) value(regs *[4]uint64, o operand, keys *[4]uint64, round int) uint64 {
	switch o.kind {
	case operandRegister:
		return regs[o.value]
	case operandKey:
		return keys[round%len(keys)]
	case operandRound:
		return uint64(round) & wordMask(t.Word)
	default:
		return o.value
	}
}

func (t *Type) exec(regs *[4]uint64, steps []step, keys *[4]uint64, round int) {
	mask := wordMask(t.Word)
	width := uint64(t.Word)
	for _, s := range steps {
		d := &regs[s.dst]
		v := t.value(regs, s.src, keys, round)
		switch s.op {
		case opXor:
			*d ^= v
		case opAnd:
			*d &= v
		case opOr:
			*d |= v
		case opNot:
			*d = ^*d & mask
		case opAdd:
			*d = (*d + v) & mask
		case opSub:
			*d = (*d - v) & mask
		case opMul:
			*d = (*d * v) & mask
		case opRotl:
			*d = rotl(*d, v, t.Word)
		case opRotr:
			*d = rotl(*d, width-v%width, t.Word)
		case opShl:
			if v >= width {
				*d = 0
			} else {
				*d = (*d << v) & mask
			}
		case opShr:
			if v >= width {
				*d = 0
			} else {
				*d >>= v
			}
		case opSwap:
			regs[s.dst], regs[s.src.value] = regs[s.src.value], regs[s.dst]
		}
	}
}

func loadWord(b []byte) uint64 {
	var v uint64
	for _, x := range b {
		v = v<<8 | uint64(x)
	}
	return v
}

func storeWord(b []byte, v uint64) {
	for i := len(b) - 1; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
}
