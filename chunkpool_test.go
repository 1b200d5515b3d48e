package lyd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunkPoolGetReturnsZeroedBuffer(t *testing.T) {
	p := newChunkPool()
	buf, tok := p.get()
	buf[0] = 1.5
	p.release(tok)

	buf2, _ := p.get()
	assert.Equal(t, 0.0, buf2[0], "a freshly loaned buffer must be zeroed even if reused")
}

func TestChunkPoolGrowsPastOnePage(t *testing.T) {
	p := newChunkPool()
	var toks []chunkToken
	for i := 0; i < chunkBuffersPerPage+1; i++ {
		_, tok := p.get()
		toks = append(toks, tok)
	}
	assert.Len(t, p.pages, 2)
}

func TestChunkPoolDoubleReleaseIsHarmless(t *testing.T) {
	p := newChunkPool()
	_, tok := p.get()
	p.release(tok)
	assert.NotPanics(t, func() { p.release(tok) })
}
