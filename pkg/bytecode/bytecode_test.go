package bytecode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOpcodeStringKnownAndUnknown(t *testing.T) {
	assert.Equal(t, "PushSelf", OpPushSelf.String())
	assert.Equal(t, "ReturnNonLocal", OpReturnNonLocal.String())
	assert.Equal(t, "Unknown", Opcode(255).String())
}

func TestIsSendAndIsSuperSend(t *testing.T) {
	assert.True(t, OpSend1.IsSend())
	assert.True(t, OpSuperSendN.IsSend())
	assert.False(t, OpPushLocal.IsSend())

	assert.True(t, OpSuperSend2.IsSuperSend())
	assert.False(t, OpSend2.IsSuperSend())
}

func TestSendArgCount(t *testing.T) {
	assert.Equal(t, 1, OpSend1.SendArgCount())
	assert.Equal(t, 3, OpSuperSend3.SendArgCount())
	assert.Equal(t, -1, OpSendN.SendArgCount())
	assert.Equal(t, -1, OpPush0.SendArgCount())
}

func TestInstructionFieldsCarryUpAndSlot(t *testing.T) {
	// PushLocal(up=2, slot=5): a block nested two lexical levels inside a
	// method, reading slot 5 of that method's frame.
	instr := Instruction{Op: OpPushLocal, A: 2, B: 5}
	assert.Equal(t, int32(2), instr.A)
	assert.Equal(t, int32(5), instr.B)
}
