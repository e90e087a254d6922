package vmbc

import (
	"fmt"

	"github.com/kristofer/smog/pkg/bytecode"
	"github.com/kristofer/smog/pkg/gc"
	"github.com/kristofer/smog/pkg/interner"
	"github.com/kristofer/smog/pkg/object"
	"github.com/kristofer/smog/pkg/value"
	"github.com/kristofer/smog/pkg/vmerrors"
)

// runFrame executes code's instruction stream against frame, returning
// the value the active return opcode produced (or an error: a
// vmerrors.RuntimeError, a *vmerrors.NonLocalReturn still unwinding, or
// a primitive/send failure).
//
// pc is managed explicitly rather than through a for-loop's post
// statement: sequential opcodes and not-taken conditional jumps advance
// it by exactly one, while OpJump/OpJumpOnXPop (taken) land on
// pc+1+A — reproducing the compiler's patchJump formula
// (A = target-at-1) — and OpJumpBackward lands on pc-A directly, with no
// +1, matching how the compiler computes that operand
// (A = at-loopStart) for a landing target that is itself the first
// instruction to re-execute, not one past it.
func (vm *VM) runFrame(frame object.Frame, code *bytecode.Bytecode) (value.Value, error) {
	h := vm.U.Heap
	instrs := code.Instructions
	pc := 0

	for pc < len(instrs) {
		inst := instrs[pc]

		switch inst.Op {
		case bytecode.OpPushNil:
			frame.Push(value.Nil)
			pc++
		case bytecode.OpPushSelf:
			frame.Push(object.FrameSelf(h, frame.Ref))
			pc++
		case bytecode.OpPush0:
			frame.Push(value.NewInteger(0))
			pc++
		case bytecode.OpPush1:
			frame.Push(value.NewInteger(1))
			pc++
		case bytecode.OpPushConstant:
			frame.Push(value.FromBits(code.Literals[inst.A].Value))
			pc++
		case bytecode.OpPushConstant0:
			frame.Push(value.FromBits(code.Literals[0].Value))
			pc++
		case bytecode.OpPushConstant1:
			frame.Push(value.FromBits(code.Literals[1].Value))
			pc++
		case bytecode.OpPushConstant2:
			frame.Push(value.FromBits(code.Literals[2].Value))
			pc++
		case bytecode.OpPushGlobal:
			name, ok := vm.U.Interner.Lookup(interner.Id(code.Literals[inst.A].Symbol))
			if !ok {
				return value.Nil, fmt.Errorf("vmbc: push global: unresolvable name id")
			}
			v, ok := vm.U.Global(name)
			if !ok {
				self := object.FrameSelf(h, frame.Ref)
				result, err := vm.send(self, "unknownGlobal:", []value.Value{vm.NewString(name)})
				if err != nil {
					return value.Nil, err
				}
				v = result
			}
			frame.Push(v)
			pc++
		case bytecode.OpPushBlock:
			lit := code.Literals[inst.A]
			blk := object.NewBlock(h, frame.Ref, uint32(lit.Block))
			frame.Push(blk.AsValue())
			pc++

		case bytecode.OpPushLocal:
			frame.Push(lexicalFrame(h, frame, int(inst.A)).Local(int(inst.B)))
			pc++
		case bytecode.OpPushLocal0:
			frame.Push(frame.Local(int(inst.A)))
			pc++
		case bytecode.OpPopLocal:
			v := frame.Pop()
			lexicalFrame(h, frame, int(inst.A)).SetLocal(int(inst.B), v)
			pc++
		case bytecode.OpPopLocal0:
			v := frame.Pop()
			frame.SetLocal(int(inst.A), v)
			pc++
		case bytecode.OpPushArg:
			frame.Push(lexicalFrame(h, frame, int(inst.A)).Argument(int(inst.B)))
			pc++
		case bytecode.OpPushArg0:
			frame.Push(frame.Argument(int(inst.A)))
			pc++
		case bytecode.OpPopArg:
			v := frame.Pop()
			lexicalFrame(h, frame, int(inst.A)).SetArgument(int(inst.B), v)
			pc++
		case bytecode.OpPopArg0:
			v := frame.Pop()
			frame.SetArgument(int(inst.A), v)
			pc++
		case bytecode.OpPushField:
			self := object.FrameSelf(h, frame.Ref)
			in, ok := asInstance(h, self)
			if !ok {
				return value.Nil, fmt.Errorf("vmbc: push field: self is not an Instance")
			}
			frame.Push(in.Field(int(inst.A)))
			pc++
		case bytecode.OpPopField:
			self := object.FrameSelf(h, frame.Ref)
			in, ok := asInstance(h, self)
			if !ok {
				return value.Nil, fmt.Errorf("vmbc: pop field: self is not an Instance")
			}
			in.SetField(int(inst.A), frame.Pop())
			pc++

		case bytecode.OpPop:
			frame.Pop()
			pc++
		case bytecode.OpDup:
			frame.Push(frame.PeekAt(0))
			pc++

		case bytecode.OpJump:
			pc = pc + 1 + int(inst.A)
		case bytecode.OpJumpBackward:
			pc = pc - int(inst.A)
		case bytecode.OpJumpOnTruePop:
			v := frame.Pop()
			b, _ := v.AsBoolean()
			if b {
				pc = pc + 1 + int(inst.A)
			} else {
				pc++
			}
		case bytecode.OpJumpOnFalsePop:
			v := frame.Pop()
			b, _ := v.AsBoolean()
			if !b {
				pc = pc + 1 + int(inst.A)
			} else {
				pc++
			}
		case bytecode.OpJumpOnTrueTopNil:
			if frame.PeekAt(0).IsNil() {
				pc = pc + 1 + int(inst.A)
			} else {
				pc++
			}
		case bytecode.OpJumpOnFalseTopNil:
			if !frame.PeekAt(0).IsNil() {
				pc = pc + 1 + int(inst.A)
			} else {
				pc++
			}

		case bytecode.OpSend0, bytecode.OpSend1, bytecode.OpSend2, bytecode.OpSend3, bytecode.OpSendN,
			bytecode.OpSuperSend0, bytecode.OpSuperSend1, bytecode.OpSuperSend2, bytecode.OpSuperSend3, bytecode.OpSuperSendN:
			argc := inst.Op.SendArgCount()
			if argc < 0 {
				argc = int(inst.B)
			}
			result, err := vm.evalSend(frame, code, pc, argc, inst.A, inst.Op.IsSuperSend())
			if err != nil {
				return value.Nil, err
			}
			frame.Push(result)
			pc++

		case bytecode.OpReturnLocal:
			return frame.Pop(), nil
		case bytecode.OpReturnSelf:
			return object.FrameSelf(h, frame.Ref), nil
		case bytecode.OpReturnNonLocal:
			v := frame.Pop()
			target := lexicalFrame(h, frame, int(inst.A))
			if !frameIsLive(frame, target.Ref) {
				blockVal := frame.Argument(0)
				homeSelf := object.FrameSelf(h, target.Ref)
				return vm.send(homeSelf, "escapedBlock:", []value.Value{blockVal})
			}
			return value.Nil, &vmerrors.NonLocalReturn{Value: v.Bits(), Target: target.Ref}

		case bytecode.OpInc:
			v := frame.Pop()
			i, ok := v.AsInteger()
			if !ok {
				return value.Nil, fmt.Errorf("vmbc: Inc on a non-Integer value")
			}
			frame.Push(value.NewInteger(i + 1))
			pc++
		case bytecode.OpDec:
			v := frame.Pop()
			i, ok := v.AsInteger()
			if !ok {
				return value.Nil, fmt.Errorf("vmbc: Dec on a non-Integer value")
			}
			frame.Push(value.NewInteger(i - 1))
			pc++

		default:
			return value.Nil, fmt.Errorf("vmbc: unimplemented opcode %s", inst.Op)
		}
	}

	return value.Nil, fmt.Errorf("vmbc: fell off the end of a compiled body without a return")
}

// frameIsLive reports whether target is still on from's dynamic Prev
// chain — whether a non-local return targeting it would land on a live
// activation rather than one that has already returned (spec §4.4's
// escapedBlock: condition).
func frameIsLive(from object.Frame, target gc.Ref) bool {
	for cur, ok := from, true; ok; cur, ok = cur.Prev() {
		if cur.Ref == target {
			return true
		}
	}
	return false
}

// evalSend pops the receiver and argc arguments off frame's stack,
// resolves selector litIdx's method starting from the receiver's class
// (or, for a super send, the executing method's holder's superclass),
// and runs it. Each send site gets its own monomorphic inline cache,
// keyed by (code, pc): re-dispatching the same selector against the same
// receiver class skips the method-table walk entirely.
func (vm *VM) evalSend(frame object.Frame, code *bytecode.Bytecode, pc int, argc int, litIdx int32, isSuper bool) (value.Value, error) {
	args := make([]value.Value, argc)
	for i := argc - 1; i >= 0; i-- {
		args[i] = frame.Pop()
	}
	receiver := frame.Pop()
	selID := code.Literals[litIdx].Symbol

	var lookupClass object.Class
	if isSuper {
		holder := frame.Method().Holder()
		super, ok := holder.Superclass()
		if !ok {
			return value.Nil, fmt.Errorf("vmbc: super send from a method on Object, which has no superclass")
		}
		lookupClass = super
	} else {
		lookupClass = vm.U.ClassOf(receiver)
	}

	key := cacheKey{code: code, pc: pc}
	var methodRef gc.Ref
	if entry, ok := vm.caches[key]; ok && entry.class == lookupClass.Ref {
		methodRef = entry.method
	} else {
		ref, ok := lookupClass.LookupInstanceMethod(selID)
		if !ok {
			return vm.doesNotUnderstand(receiver, selID, args)
		}
		methodRef = ref
		vm.caches[key] = cacheEntry{class: lookupClass.Ref, method: methodRef}
	}

	return vm.runMethod(object.Method{H: vm.U.Heap, Ref: methodRef}, receiver, args)
}
