package bytecode

import (
	"fmt"
	"io"
	"strings"
)

// SymbolResolver turns an interned id back into its source text, for
// disassembly. Package bytecode has no dependency on package interner
// (that would go the wrong way: interner is a leaf package, the
// interpreter owns the actual table) so disassembly takes the resolver
// as a parameter instead.
type SymbolResolver func(id uint32) string

// Disassemble writes bc's instructions to w, one per line, in the
// format the "-d"/"-disassemble" CLI flag prints (spec.md §6). Jump
// targets are printed as absolute instruction indices, computed from
// each jump's relative offset, since that's what a reader tracing
// control flow by eye wants rather than the raw signed delta.
func (bc *Bytecode) Disassemble(w io.Writer, resolve SymbolResolver) error {
	for i, instr := range bc.Instructions {
		line, err := formatInstruction(bc, i, instr, resolve)
		if err != nil {
			return err
		}
		if _, err := io.WriteString(w, line+"\n"); err != nil {
			return err
		}
	}
	return nil
}

// String renders bc without resolving any symbol literal to its name,
// printing bare interned ids instead. Useful in tests and logging where
// pulling in an interner just to stringify a Bytecode would be overkill.
func (bc *Bytecode) String() string {
	var sb strings.Builder
	_ = bc.Disassemble(&sb, nil)
	return sb.String()
}

func formatInstruction(bc *Bytecode, index int, instr Instruction, resolve SymbolResolver) (string, error) {
	mnemonic := instr.Op.String()
	switch instr.Op {
	case OpPushNil, OpPushSelf, OpPush0, OpPush1, OpPop, OpDup,
		OpReturnLocal, OpReturnSelf, OpInc, OpDec:
		return fmt.Sprintf("%4d: %s", index, mnemonic), nil

	case OpPushConstant0, OpPushConstant1, OpPushConstant2:
		litIndex := map[Opcode]int32{OpPushConstant0: 0, OpPushConstant1: 1, OpPushConstant2: 2}[instr.Op]
		return fmt.Sprintf("%4d: %s  %s", index, mnemonic, describeLiteral(bc, litIndex, resolve)), nil

	case OpPushConstant:
		return fmt.Sprintf("%4d: %s  %d  %s", index, mnemonic, instr.A, describeLiteral(bc, instr.A, resolve)), nil

	case OpPushGlobal:
		return fmt.Sprintf("%4d: %s  %s", index, mnemonic, resolveOrIndex(resolve, uint32(instr.A))), nil

	case OpPushBlock:
		return fmt.Sprintf("%4d: %s  %s", index, mnemonic, describeLiteral(bc, instr.A, resolve)), nil

	case OpPushLocal0, OpPopLocal0, OpPushArg0, OpPopArg0:
		return fmt.Sprintf("%4d: %s  %d", index, mnemonic, instr.A), nil

	case OpPushLocal, OpPopLocal, OpPushArg, OpPopArg:
		return fmt.Sprintf("%4d: %s  up=%d slot=%d", index, mnemonic, instr.A, instr.B), nil

	case OpPushField, OpPopField:
		return fmt.Sprintf("%4d: %s  %d", index, mnemonic, instr.A), nil

	case OpJump, OpJumpOnTruePop, OpJumpOnFalsePop, OpJumpOnTrueTopNil, OpJumpOnFalseTopNil:
		return fmt.Sprintf("%4d: %s  -> %d", index, mnemonic, index+1+int(instr.A)), nil
	case OpJumpBackward:
		return fmt.Sprintf("%4d: %s  -> %d", index, mnemonic, index-int(instr.A)), nil

	case OpSend0, OpSend1, OpSend2, OpSend3, OpSuperSend0, OpSuperSend1, OpSuperSend2, OpSuperSend3:
		return fmt.Sprintf("%4d: %s  %s", index, mnemonic, describeLiteral(bc, instr.A, resolve)), nil
	case OpSendN, OpSuperSendN:
		return fmt.Sprintf("%4d: %s  %s argc=%d", index, mnemonic, describeLiteral(bc, instr.A, resolve), instr.B), nil

	case OpReturnNonLocal:
		return fmt.Sprintf("%4d: %s  up=%d", index, mnemonic, instr.A), nil

	default:
		return "", fmt.Errorf("bytecode: cannot disassemble unknown opcode %d at instruction %d", instr.Op, index)
	}
}

func resolveOrIndex(resolve SymbolResolver, id uint32) string {
	if resolve == nil {
		return fmt.Sprintf("#%d", id)
	}
	return resolve(id)
}

func describeLiteral(bc *Bytecode, index int32, resolve SymbolResolver) string {
	if index < 0 || int(index) >= len(bc.Literals) {
		return fmt.Sprintf("<bad literal %d>", index)
	}
	lit := bc.Literals[index]
	switch lit.Kind {
	case LitSelector:
		return resolveOrIndex(resolve, lit.Symbol)
	case LitGlobal:
		return resolveOrIndex(resolve, lit.Symbol)
	case LitBlock:
		return fmt.Sprintf("<block code=%d>", lit.Block)
	default:
		return fmt.Sprintf("<value 0x%016x>", lit.Value)
	}
}
