package roundfn

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type opcode uint8

const (
	opXor opcode = iota
	opAnd
	opOr
	opAdd
	opSub
	opMul
	opRotl
	opRotr
	opShl
	opShr
	opNot
	opSwap
)

type opSpec struct {
	code  opcode
	cap   Capability
	arity int
}

var opTable = map[string]opSpec{
	"xor":  {opXor, CapXOR, 2},
	"and":  {opAnd, CapLogic, 2},
	"or":   {opOr, CapLogic, 2},
	"not":  {opNot, CapLogic, 1},
	"add":  {opAdd, CapArith, 2},
	"sub":  {opSub, CapArith, 2},
	"mul":  {opMul, CapArith, 2},
	"rotl": {opRotl, CapRotate, 2},
	"rotr": {opRotr, CapRotate, 2},
	"shl":  {opShl, CapShift, 2},
	"shr":  {opShr, CapShift, 2},
	"swap": {opSwap, CapPermute, 2},
}

type operandKind uint8

const (
	operandRegister operandKind = iota
	operandConst
	operandKey
	operandRound
)

type operand struct {
	kind  operandKind
	value uint64
}

type step struct {
	op  opcode
	dst int
	src operand
}

var registerNames = []string{"x", "y", "z", "w"}

// Type is a compiled, conforming declaration.
type Type struct {
	// Ident is the declaration key in the source document.
	Ident        string
	Name         string
	Word         int
	Words        int
	Rounds       int
	Capabilities []Capability

	encrypt []step
	decrypt []step
}

// BlockSize is the number of bytes processed per block.
func (t *Type) BlockSize() int { return t.Words * t.Word / 8 }

// Program is the result of compiling one source document.
type Program struct {
	// Types holds every conforming declaration in declaration order.
	Types []*Type
	// Skipped names mapping declarations that lack encrypt or decrypt.
	Skipped []string
}

// First returns the first conforming declaration.
func (p *Program) First() (*Type, error) {
	if p == nil || len(p.Types) == 0 {
		return nil, ErrNoConformingType
	}
	return p.Types[0], nil
}

// Compile parses src in a fresh scope and compiles every conforming
// declaration under policy.
func Compile(src string, policy Policy) (*Program, error) {
	policy = policy.normalized()
	if len(src) > policy.MaxSourceBytes {
		return nil, &SourceError{Message: fmt.Sprintf("source exceeds %d bytes", policy.MaxSourceBytes)}
	}

	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(src), &doc); err != nil {
		return nil, &SourceError{Message: fmt.Sprintf("parse source: %v", err)}
	}
	prog := &Program{}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return prog, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, &SourceError{Line: root.Line, Message: "source must be a mapping of type declarations"}
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		keyNode, body := root.Content[i], root.Content[i+1]
		if body.Kind != yaml.MappingNode {
			continue
		}
		if !conforms(body) {
			prog.Skipped = append(prog.Skipped, keyNode.Value)
			continue
		}
		t, err := compileType(keyNode.Value, body, policy)
		if err != nil {
			return nil, err
		}
		prog.Types = append(prog.Types, t)
	}
	return prog, nil
}

func conforms(body *yaml.Node) bool {
	var enc, dec bool
	for i := 0; i+1 < len(body.Content); i += 2 {
		switch body.Content[i].Value {
		case "encrypt":
			enc = true
		case "decrypt":
			dec = true
		}
	}
	return enc && dec
}

func compileType(ident string, body *yaml.Node, policy Policy) (*Type, error) {
	t := &Type{Ident: ident, Name: ident, Word: 32, Words: 2}
	fail := func(n *yaml.Node, format string, args ...any) error {
		return &SourceError{Type: ident, Line: n.Line, Message: fmt.Sprintf(format, args...)}
	}

	var encNode, decNode, capsNode *yaml.Node
	seen := make(map[string]struct{})
	for i := 0; i+1 < len(body.Content); i += 2 {
		k, v := body.Content[i], body.Content[i+1]
		if _, dup := seen[k.Value]; dup {
			return nil, fail(k, "duplicate field %q", k.Value)
		}
		seen[k.Value] = struct{}{}

		var err error
		switch k.Value {
		case "name":
			err = v.Decode(&t.Name)
		case "word":
			err = v.Decode(&t.Word)
		case "words":
			err = v.Decode(&t.Words)
		case "rounds":
			err = v.Decode(&t.Rounds)
		case "capabilities":
			capsNode = v
		case "encrypt":
			encNode = v
		case "decrypt":
			decNode = v
		default:
			return nil, fail(k, "unknown field %q", k.Value)
		}
		if err != nil {
			return nil, fail(v, "invalid %s: %v", k.Value, err)
		}
	}

	switch t.Word {
	case 8, 16, 32, 64:
	default:
		return nil, fail(body, "word must be 8, 16, 32 or 64 bits, got %d", t.Word)
	}
	if t.Words < 1 || t.Words > len(registerNames) {
		return nil, fail(body, "words must be between 1 and %d, got %d", len(registerNames), t.Words)
	}
	if t.Rounds < 1 || t.Rounds > policy.MaxRounds {
		return nil, fail(body, "rounds must be between 1 and %d, got %d", policy.MaxRounds, t.Rounds)
	}
	if strings.TrimSpace(t.Name) == "" {
		t.Name = ident
	}

	if err := t.compileCapabilities(capsNode, policy); err != nil {
		return nil, err
	}

	var err error
	if t.encrypt, err = t.compileSteps(encNode, policy); err != nil {
		return nil, err
	}
	if t.decrypt, err = t.compileSteps(decNode, policy); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Type) compileCapabilities(n *yaml.Node, policy Policy) error {
	if n == nil {
		return nil
	}
	var raw []string
	if err := n.Decode(&raw); err != nil {
		return &SourceError{Type: t.Ident, Line: n.Line, Message: fmt.Sprintf("invalid capabilities: %v", err)}
	}
	seen := make(map[Capability]struct{}, len(raw))
	for _, r := range raw {
		c := Capability(strings.ToUpper(strings.TrimSpace(r)))
		if c == "" {
			return &SourceError{Type: t.Ident, Line: n.Line, Message: "capability cannot be empty"}
		}
		if _, ok := allowedCaps[c]; !ok {
			return &SourceError{Type: t.Ident, Line: n.Line, Message: fmt.Sprintf("unknown capability: %s", r)}
		}
		if _, dup := seen[c]; dup {
			return &SourceError{Type: t.Ident, Line: n.Line, Message: fmt.Sprintf("duplicate capability: %s", c)}
		}
		if !policy.permits(c) {
			return &CapabilityError{Type: t.Ident, Capability: c, Denied: true}
		}
		seen[c] = struct{}{}
		t.Capabilities = append(t.Capabilities, c)
	}
	return nil
}

func (t *Type) hasCapability(c Capability) bool {
	for _, have := range t.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

func (t *Type) compileSteps(n *yaml.Node, policy Policy) ([]step, error) {
	fail := func(n *yaml.Node, format string, args ...any) error {
		return &SourceError{Type: t.Ident, Line: n.Line, Message: fmt.Sprintf(format, args...)}
	}
	if n.Kind == yaml.ScalarNode && n.Tag == "!!null" {
		return nil, nil
	}
	if n.Kind != yaml.SequenceNode {
		return nil, fail(n, "steps must be a list")
	}
	if len(n.Content)*t.Rounds > policy.MaxSteps {
		return nil, fail(n, "%d steps over %d rounds exceeds the step budget of %d", len(n.Content), t.Rounds, policy.MaxSteps)
	}

	steps := make([]step, 0, len(n.Content))
	for _, item := range n.Content {
		if item.Kind != yaml.MappingNode || len(item.Content) != 2 {
			return nil, fail(item, "each step must be a single-key mapping")
		}
		name, args := item.Content[0], item.Content[1]
		spec, ok := opTable[strings.ToLower(name.Value)]
		if !ok {
			return nil, fail(name, "unknown step %q", name.Value)
		}
		if !t.hasCapability(spec.cap) {
			return nil, &CapabilityError{Type: t.Ident, Capability: spec.cap}
		}

		var operands []*yaml.Node
		switch args.Kind {
		case yaml.SequenceNode:
			operands = args.Content
		case yaml.ScalarNode:
			operands = []*yaml.Node{args}
		default:
			return nil, fail(args, "%s operands must be a list", name.Value)
		}
		if len(operands) != spec.arity {
			return nil, fail(args, "%s takes %d operands, got %d", name.Value, spec.arity, len(operands))
		}

		dst, err := t.parseOperand(operands[0])
		if err != nil {
			return nil, err
		}
		if dst.kind != operandRegister {
			return nil, fail(operands[0], "%s destination must be a register", name.Value)
		}
		s := step{op: spec.code, dst: int(dst.value)}
		if spec.arity == 2 {
			if s.src, err = t.parseOperand(operands[1]); err != nil {
				return nil, err
			}
			if spec.code == opSwap && s.src.kind != operandRegister {
				return nil, fail(operands[1], "swap operands must be registers")
			}
		}
		steps = append(steps, s)
	}
	return steps, nil
}

func (t *Type) parseOperand(n *yaml.Node) (operand, error) {
	if n.Kind != yaml.ScalarNode {
		return operand{}, &SourceError{Type: t.Ident, Line: n.Line, Message: "operand must be a scalar"}
	}
	v := strings.ToLower(strings.TrimSpace(n.Value))
	switch v {
	case "key":
		return operand{kind: operandKey}, nil
	case "round":
		return operand{kind: operandRound}, nil
	}
	for i, r := range registerNames[:t.Words] {
		if v == r {
			return operand{kind: operandRegister, value: uint64(i)}, nil
		}
	}
	c, err := strconv.ParseUint(v, 0, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return operand{}, &SourceError{Type: t.Ident, Line: n.Line, Message: fmt.Sprintf("constant %s out of range", n.Value)}
		}
		return operand{}, &SourceError{Type: t.Ident, Line: n.Line, Message: fmt.Sprintf("unknown operand %q", n.Value)}
	}
	if c&^wordMask(t.Word) != 0 {
		return operand{}, &SourceError{Type: t.Ident, Line: n.Line, Message: fmt.Sprintf("constant %s exceeds %d-bit word", n.Value, t.Word)}
	}
	return operand{kind: operandConst, value: c}, nil
}
