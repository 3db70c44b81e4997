package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pmscope/internal/wire"
)

func TestSequentialIDs(t *testing.T) {
	g := NewSequentialIDs("")
	assert.Equal(t, "rec-1", g.Generate())
	assert.Equal(t, "rec-2", g.Generate())

	m := NewSequentialIDs("m")
	assert.Equal(t, "m-1", m.Generate())
}

func TestBuilders_ProduceValidMessages(t *testing.T) {
	v, err := wire.NewValidator()
	require.NoError(t, err)

	msgs := []wire.Message{
		Message("m-1", 1, Target(1, "doc-B", "b"), WindowSource(wire.SourceParent, "w-A", "a")),
		Message("m-2", 1, Target(0, "doc-A", "a"), ChildSource("w-B", "b", "body > iframe")),
		Message("m-3", 1, Target(1, "doc-B", "b"), ParentSource("doc-A", 0, "w-A", "a")),
		Handshake("m-4", 1, Target(0, "doc-A", "a"), ChildSource("w-B", "b", "body > iframe"), 1, 1, "doc-B"),
	}
	for _, m := range msgs {
		assert.NoError(t, v.ValidateMessage(m), m.ID)
	}

	reg := Registration(msgs[3])
	assert.Equal(t, "doc-B", reg.DocumentID)
	assert.Equal(t, "w-B", reg.WindowID)
	assert.Panics(t, func() { Registration(msgs[0]) })
}
