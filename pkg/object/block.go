package object

import (
	"github.com/kristofer/smog/pkg/gc"
	"github.com/kristofer/smog/pkg/value"
)

// Block body layout:
//
//	0: homeFrameRef (Ordinary) — the frame lexically enclosing this block
//	   literal, captured at the moment the block was evaluated
//	1: codeId — index into the owning backend's CodeTable for this
//	   block's body (shared compiled code/AST plus its literal pool,
//	   parameter count, and local count; identical for every Block
//	   instance created from the same literal, so it lives once in the
//	   CodeTable rather than once per activation)
const (
	blockOffHomeFrame = 0
	blockOffCodeID    = 1
	blockBodyWords    = 2
)

func registerBlock(h *gc.Heap) {
	h.RegisterType(TypeBlock, gc.TypeInfo{
		Name: "Block",
		Size: func(h *gc.Heap, ref gc.Ref) int { return blockBodyWords },
		Scan: func(h *gc.Heap, ref gc.Ref) []gc.Slot {
			return []gc.Slot{{Offset: blockOffHomeFrame, Kind: gc.SlotOrdinary}}
		},
	})
}

// Block is an accessor over a TypeBlock heap object.
type Block struct {
	H   *gc.Heap
	Ref gc.Ref
}

func NewBlock(h *gc.Heap, homeFrame gc.Ref, codeID uint32) Block {
	ref := h.AllocWithPostInit(TypeBlock, blockBodyWords, func(ref gc.Ref) {
		h.SetWord(ref, blockOffHomeFrame, uint64(homeFrame))
		h.SetWord(ref, blockOffCodeID, uint64(codeID))
	})
	return Block{H: h, Ref: ref}
}

func (b Block) HomeFrame() gc.Ref { return gc.Ref(b.H.Word(b.Ref, blockOffHomeFrame)) }
func (b Block) CodeID() uint32    { return uint32(b.H.Word(b.Ref, blockOffCodeID)) }

// HomeFrameLive reports whether this block's captured frame is still on
// the dynamic call stack, i.e. whether a non-local return targeting it
// would succeed rather than raise #escapedBlock: (spec §4.4, §7). current
// is the frame at the top of the caller's active chain at the moment the
// block is invoked or returned through.
func (b Block) HomeFrameLive(current Frame) bool {
	home := b.HomeFrame()
	for cur, ok := current, true; ok; cur, ok = cur.Prev() {
		if cur.Ref == home {
			return true
		}
	}
	return false
}

func (b Block) AsValue() value.Value { return value.NewPointer(toValueRef(b.Ref)) }
