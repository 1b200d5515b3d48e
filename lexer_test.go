package lyd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLexNumbersOperatorsAndIdents(t *testing.T) {
	toks, err := lex("sin(440) + gain=0.5")
	require.NoError(t, err)

	var kinds []tokenKind
	for _, tk := range toks {
		kinds = append(kinds, tk.kind)
	}
	assert.Equal(t, []tokenKind{
		tIdent, tLParen, tNumber, tRParen, tOp, tIdent, tEOF,
	}, kinds)
}

func TestLexUnaryMinusIsAlwaysAnOperatorToken(t *testing.T) {
	toks, err := lex("-440")
	require.NoError(t, err)
	require.Equal(t, tOp, toks[0].kind)
	require.Equal(t, tNumber, toks[1].kind)
	assert.Equal(t, 440.0, toks[1].num)
}

func TestLexVariableInitializer(t *testing.T) {
	toks, err := lex("freq=220")
	require.NoError(t, err)
	require.True(t, toks[0].hasInit)
	assert.Equal(t, "220", toks[0].init)
}

func TestLexCommentIsIgnored(t *testing.T) {
	toks, err := lex("1 # a trailing comment\n+ 2")
	require.NoError(t, err)
	var kinds []tokenKind
	for _, tk := range toks {
		kinds = append(kinds, tk.kind)
	}
	assert.Equal(t, []tokenKind{tNumber, tOp, tNumber, tEOF}, kinds)
}

func TestLexUnterminatedStringFails(t *testing.T) {
	_, err := lex(`"abc`)
	require.Error(t, err)
}

func TestLexSingleQuotedStringMatchesDoubleQuoted(t *testing.T) {
	toks, err := lex(`'kick'`)
	require.NoError(t, err)
	require.Equal(t, tString, toks[0].kind)
	assert.Equal(t, "kick", toks[0].text)
}

func TestLexUnexpectedCharacterFails(t *testing.T) {
	_, err := lex("1 @ 2")
	require.Error(t, err)
}
