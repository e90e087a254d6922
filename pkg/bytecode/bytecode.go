// Package bytecode defines the instruction set executed by pkg/vmbc.
//
// A compiled method or block body is a Bytecode: a flat instruction
// sequence plus a literal pool. Instructions are stack-based — operations
// pop their operands off the top of the value stack and push their
// result back — and every variable access (local, argument, field,
// global) is resolved at compile time to a fixed slot, so the VM never
// does a name lookup at dispatch time outside of an actual message send.
//
// Lexical addressing
//
// Blocks close over their defining method's locals, arguments, and
// fields. A block nested k levels deep from the frame that owns a given
// local addresses it as (up, index): up is the number of enclosing
// frames to walk outward (0 means "my own frame"), index is the slot
// within that frame. PushLocal, PopLocal, PushArg and PopArg all carry
// this pair; the common up=0 case also gets its own fast opcode so the
// overwhelmingly common case (a method or block touching its own
// frame) skips the frame-walk entirely.
//
// Instruction format
//
// Instruction is a fixed three-field struct rather than a family of Go
// types, in the same spirit as the teacher's original single-Operand
// design: Go has no compact sum type, and a fixed shape keeps the
// instruction stream a flat, cache-friendly []Instruction. Most opcodes
// use only A; the (up, index) opcodes use both A and B; most opcodes
// ignore B entirely.
package bytecode

// Opcode identifies a bytecode operation. Opcodes are single bytes.
type Opcode byte

const (
	// --- literal pushes ---

	// OpPushNil pushes nil.
	OpPushNil Opcode = iota
	// OpPushSelf pushes the frame's receiver (argument 0 of frame 0).
	OpPushSelf
	// OpPush0 and OpPush1 push the integers 0 and 1 without a literal
	// pool lookup; they're by far the most common small integers in
	// loop and arithmetic code.
	OpPush0
	OpPush1
	// OpPushConstant pushes Literals[A].
	OpPushConstant
	// OpPushConstant0/1/2 push Literals[0], Literals[1], Literals[2]
	// without encoding an index, shrinking the common small-method case.
	OpPushConstant0
	OpPushConstant1
	OpPushConstant2
	// OpPushGlobal pushes the current value of the global named by the
	// interned id A, sending #unknownGlobal: to self if unbound.
	OpPushGlobal
	// OpPushBlock materializes a non-inlined block literal: Literals[A] is
	// a LitBlock entry naming the block's CodeTable id, and the VM
	// allocates a fresh object.Block capturing the current frame as its
	// home. Inlined control-flow blocks (spec §4.5) never reach this
	// opcode — their bodies are compiled straight into the enclosing
	// instruction stream instead.
	OpPushBlock

	// --- locals / arguments / fields ---

	// OpPushLocal pushes local slot B of the frame A levels out.
	OpPushLocal
	// OpPushLocal0 is OpPushLocal with up=0 hardcoded; A is the slot.
	OpPushLocal0
	// OpPopLocal pops the stack top into local slot B of the frame A
	// levels out.
	OpPopLocal
	OpPopLocal0
	// OpPushArg / OpPopArg mirror the Local forms for arguments
	// (argument 0 is always the receiver).
	OpPushArg
	OpPushArg0
	OpPopArg
	OpPopArg0
	// OpPushField / OpPopField address self's own fields directly; a
	// block's self is always the enclosing method's self; spec.md,
	// there is no up-count.
	OpPushField
	OpPopField

	// --- stack shuffling ---

	OpPop
	OpDup

	// --- control flow ---

	// OpJump and OpJumpBackward add/subtract A to the instruction
	// pointer unconditionally; JumpBackward exists so loop back-edges
	// can use an unsigned encoding if the operand width is ever
	// narrowed, and so disassembly reads "backward" instead of a
	// negative offset.
	OpJump
	OpJumpBackward
	// OpJumpOnTruePop / OpJumpOnFalsePop pop a boolean and jump by A if
	// it matches; used for compiled-out ifTrue:/ifFalse: and the
	// non-inlined boolean sends.
	OpJumpOnTruePop
	OpJumpOnFalsePop
	// OpJumpOnTrueTopNil / OpJumpOnFalseTopNil peek (never pop) the
	// stack top and jump by A if it is nil / is not nil, respectively,
	// leaving the peeked value in place either way. Meant for a future
	// ifNil:/ifNotNil: inlining pass; the current compiler doesn't emit
	// them yet (ifNil:/ifNotNil: still compile to an ordinary send), but
	// pkg/vmbc implements them so that pass has somewhere to land.
	OpJumpOnTrueTopNil
	OpJumpOnFalseTopNil

	// --- sends ---

	// OpSend0/1/2/3 send the selector interned as Literals[A].Symbol to a
	// receiver with 0/1/2/3 arguments already on the stack above it (argc
	// is implied by the fixed opcode, not encoded) — unary, binary, and
	// one- to three-part keyword sends are by far the most common sends,
	// so each gets its own opcode rather than an encoded count. OpSendN
	// carries an explicit argument count in B for longer keyword
	// selectors.
	OpSend0
	OpSend1
	OpSend2
	OpSend3
	OpSendN
	// OpSuperSend0/1/2/3/N mirror the Send family but begin method
	// lookup at the holder's superclass instead of the receiver's class.
	OpSuperSend0
	OpSuperSend1
	OpSuperSend2
	OpSuperSend3
	OpSuperSendN

	// --- returns ---

	// OpReturnLocal returns the stack top from the current frame to its
	// immediate caller (the common, non-escaping case).
	OpReturnLocal
	// OpReturnSelf returns self without needing a prior PushSelf; most
	// methods end with an implicit `^self`.
	OpReturnSelf
	// OpReturnNonLocal returns the stack top from the method frame A
	// levels out, unwinding every frame in between (spec's ^-from-block
	// semantics). If that frame has already returned, the VM sends
	// #escapedBlock: to the block's home receiver instead of unwinding.
	OpReturnNonLocal

	// --- fused arithmetic ---

	// OpInc and OpDec add/subtract 1 from the stack top in place,
	// avoiding a full Send1 dispatch through Integer>>+ for the
	// overwhelmingly common `i := i + 1` / `i := i - 1` shape that a
	// peephole pass recognizes after assignment compilation.
	OpInc
	OpDec
)

// opcodeNames is indexed by Opcode; kept as a simple slice (rather than
// a switch) since adding an opcode is then one line in two fixed-size
// lists that the compiler itself will flag as out of sync.
var opcodeNames = [...]string{
	OpPushNil:          "PushNil",
	OpPushSelf:         "PushSelf",
	OpPush0:            "Push0",
	OpPush1:            "Push1",
	OpPushConstant:     "PushConstant",
	OpPushConstant0:    "PushConstant0",
	OpPushConstant1:    "PushConstant1",
	OpPushConstant2:    "PushConstant2",
	OpPushGlobal:       "PushGlobal",
	OpPushBlock:        "PushBlock",
	OpPushLocal:        "PushLocal",
	OpPushLocal0:       "PushLocal0",
	OpPopLocal:         "PopLocal",
	OpPopLocal0:        "PopLocal0",
	OpPushArg:          "PushArg",
	OpPushArg0:         "PushArg0",
	OpPopArg:           "PopArg",
	OpPopArg0:          "PopArg0",
	OpPushField:        "PushField",
	OpPopField:         "PopField",
	OpPop:              "Pop",
	OpDup:              "Dup",
	OpJump:             "Jump",
	OpJumpBackward:     "JumpBackward",
	OpJumpOnTruePop:    "JumpOnTruePop",
	OpJumpOnFalsePop:   "JumpOnFalsePop",
	OpJumpOnTrueTopNil: "JumpOnTrueTopNil",
	OpJumpOnFalseTopNil: "JumpOnFalseTopNil",
	OpSend0:            "Send0",
	OpSend1:            "Send1",
	OpSend2:            "Send2",
	OpSend3:            "Send3",
	OpSendN:            "SendN",
	OpSuperSend0:       "SuperSend0",
	OpSuperSend1:       "SuperSend1",
	OpSuperSend2:       "SuperSend2",
	OpSuperSend3:       "SuperSend3",
	OpSuperSendN:       "SuperSendN",
	OpReturnLocal:      "ReturnLocal",
	OpReturnSelf:       "ReturnSelf",
	OpReturnNonLocal:   "ReturnNonLocal",
	OpInc:              "Inc",
	OpDec:              "Dec",
}

// String returns the opcode's disassembly mnemonic.
func (op Opcode) String() string {
	if int(op) < len(opcodeNames) && opcodeNames[op] != "" {
		return opcodeNames[op]
	}
	return "Unknown"
}

// IsSend reports whether op is one of the Send/SuperSend family, i.e.
// whether it carries a literal-pool selector index in A and is a valid
// inline-cache site.
func (op Opcode) IsSend() bool {
	switch op {
	case OpSend0, OpSend1, OpSend2, OpSend3, OpSendN, OpSuperSend0, OpSuperSend1, OpSuperSend2, OpSuperSend3, OpSuperSendN:
		return true
	default:
		return false
	}
}

// IsSuperSend reports whether op begins lookup at the holder's
// superclass rather than the receiver's class.
func (op Opcode) IsSuperSend() bool {
	switch op {
	case OpSuperSend0, OpSuperSend1, OpSuperSend2, OpSuperSend3, OpSuperSendN:
		return true
	default:
		return false
	}
}

// SendArgCount returns the number of message arguments (not counting the
// receiver) a fixed-arity send opcode carries. OpSendN/OpSuperSendN have
// no fixed arity; callers must read Instruction.B instead.
func (op Opcode) SendArgCount() int {
	switch op {
	case OpSend0, OpSuperSend0:
		return 0
	case OpSend1, OpSuperSend1:
		return 1
	case OpSend2, OpSuperSend2:
		return 2
	case OpSend3, OpSuperSend3:
		return 3
	default:
		return -1
	}
}

// Instruction is one bytecode operation. A is the primary operand
// (literal index, jump offset, up-count, slot index, or argument count
// depending on Op); B holds the slot index for the (up, index)-addressed
// local/argument opcodes, and the explicit argument count for OpSendN /
// OpSuperSendN. Unused fields are zero.
type Instruction struct {
	Op Opcode
	A  int32
	B  int32
}

// Literal is one entry of a Bytecode's literal pool. Kind distinguishes
// which field is meaningful, since a pool holds a mix of plain values,
// interned selectors/globals, and nested code.
type Literal struct {
	Kind LiteralKind
	// Value holds the literal's runtime Value for LitValue entries
	// (integers, doubles, strings, symbols, nil, booleans, boxed at
	// compile time and interned into the heap once at load time).
	Value uint64 // value.Value.Bits(), kept as a raw word to avoid an import cycle with package value
	// Symbol holds the interned name id for LitSelector/LitGlobal
	// entries (see package interner).
	Symbol uint32
	// Block holds the CodeTable id of a nested block literal's compiled
	// body, for LitBlock entries.
	Block uint64
}

// LiteralKind tags a Literal's meaning.
type LiteralKind uint8

const (
	// LitValue is an ordinary boxed constant (integer, double, string,
	// symbol, boolean, nil) materialized once and reused on every push.
	LitValue LiteralKind = iota
	// LitSelector is an interned message selector, used by Send/SuperSend
	// instructions and as the inline cache's key.
	LitSelector
	// LitGlobal is an interned global name, used by PushGlobal.
	LitGlobal
	// LitBlock is a nested block literal: its compiled body lives in the
	// method's CodeTable entry, addressed by Block.
	LitBlock
)

// Bytecode is the compiled body of one method or block.
type Bytecode struct {
	Instructions []Instruction
	Literals     []Literal

	// NumLocals and NumArgs size the frame this code needs when it's
	// dispatched (spec's Frame layout: argCount + localCount slots plus
	// the implicit receiver at argument 0).
	NumArgs   int
	NumLocals int
}
