package lyd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileSimpleArithmetic(t *testing.T) {
	prog, err := Compile("1 + 2 * 3")
	require.NoError(t, err)
	assert.Equal(t, 0, prog.VarCount())
	assert.Greater(t, prog.CommandCount(), 0)
}

func TestCompileUnaryMinusNeverProducesNegativeLiteral(t *testing.T) {
	prog, err := Compile("-440")
	require.NoError(t, err)
	for _, c := range prog.cmds {
		for i := 0; i < c.Arity; i++ {
			if !isRef(c.Arg[i]) {
				assert.GreaterOrEqual(t, c.Arg[i], 0.0, "inlined literal must never be negative")
			}
		}
	}
}

func TestCompileVariablePrelude(t *testing.T) {
	prog, err := Compile("sin(freq=220) + sin(freq)")
	require.NoError(t, err)
	require.Equal(t, 1, prog.VarCount())
	assert.Equal(t, []string{"freq"}, prog.VarNames())
	// the prelude nop's default must be the first occurrence's init value
	assert.Equal(t, 220.0, prog.cmds[0].Arg[0])
}

func TestCompileUnknownOpFails(t *testing.T) {
	_, err := Compile("frobnicate(1)")
	require.Error(t, err)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
}

func TestCompileArityMismatchFails(t *testing.T) {
	_, err := Compile("sin(1, 2)")
	require.Error(t, err)
}

func TestCompileTrailingInputFails(t *testing.T) {
	_, err := Compile("1 + 2 3")
	require.Error(t, err)
}

func TestOutputIndexIsCommandBeforeEnd(t *testing.T) {
	prog, err := Compile("440")
	require.NoError(t, err)
	require.Equal(t, OpEnd, prog.cmds[len(prog.cmds)-1].Op)
	out := prog.outputIndex()
	assert.NotEqual(t, OpEnd, prog.cmds[out].Op)
}

func TestStr2FloatIsStableForSameName(t *testing.T) {
	assert.Equal(t, str2float("freq"), str2float("freq"))
	assert.NotEqual(t, str2float("freq"), str2float("gain"))
}

func TestNamedConstantsCompileAsLiteralsNotVariables(t *testing.T) {
	prog, err := Compile("pi + phi + iphi")
	require.NoError(t, err)
	assert.Equal(t, 0, prog.VarCount(), "pi/phi/iphi must never be treated as variables")
}

func TestNamedConstantValue(t *testing.T) {
	prog, err := Compile("pi")
	require.NoError(t, err)
	out := prog.outputIndex()
	assert.InDelta(t, 3.141592653589793, prog.cmds[out].Arg[0], 1e-12)
}
