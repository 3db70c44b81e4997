package capture

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pmscope/internal/wire"
)

func TestDecodeHookPayload(t *testing.T) {
	raw := `{"messageType":"message","timestamp":1712.5,"url":"https://b.test/w",` +
		`"origin":"https://b.test","documentTitle":"Widget","sourceType":"parent",` +
		`"sourceOrigin":"https://a.test","windowId":"wx-1","data":"{\"hello\":1}",` +
		`"dataPreview":"{\"hello\":1}","dataSize":11}`

	p, err := decodeHookPayload(raw)
	require.NoError(t, err)
	assert.Equal(t, wire.SourceParent, p.SourceType)
	assert.Equal(t, "wx-1", p.WindowID)
	assert.Equal(t, 11, p.DataSize)

	_, err = decodeHookPayload("not json")
	assert.Error(t, err)
}

func TestDecodeHookPayload_NullWindow(t *testing.T) {
	p, err := decodeHookPayload(`{"sourceType":"self","windowId":null}`)
	require.NoError(t, err)
	assert.Empty(t, p.WindowID)
}

func TestHookPayload_ParentSenderResolved(t *testing.T) {
	p := hookPayload{
		MessageType:  "message",
		SourceType:   wire.SourceParent,
		SourceOrigin: "https://a.test",
		WindowID:     "wx-1",
		Data:         `{"k":"v"}`,
	}
	parent := frameRef{FrameID: 0, DocumentID: "L-top"}
	m := p.message(2, frameRef{FrameID: 1, DocumentID: "L-b"}, senders{Parent: &parent})

	assert.Equal(t, 2, m.TabID)
	assert.Equal(t, 1, m.Target.FrameID)
	assert.Equal(t, "L-b", m.Target.DocumentID)
	assert.Equal(t, "L-top", m.Source.DocumentID)
	require.NotNil(t, m.Source.FrameID)
	assert.Equal(t, 0, *m.Source.FrameID)
	assert.Equal(t, "wx-1", m.Source.WindowID)
	assert.JSONEq(t, `{"k":"v"}`, string(m.Data))
}

func TestHookPayload_ChildSenderKnownByTokenOnly(t *testing.T) {
	p := hookPayload{
		SourceType:    wire.SourceChild,
		WindowID:      "wx-2",
		IframeDomPath: "body > iframe:nth-of-type(1)",
		IframeSrc:     "https://b.test/w",
	}
	top := frameRef{FrameID: 0, DocumentID: "L-top"}
	m := p.message(1, frameRef{FrameID: 0, DocumentID: "L-top"}, senders{Top: &top})

	assert.Empty(t, m.Source.DocumentID)
	assert.Nil(t, m.Source.FrameID)
	assert.Equal(t, "wx-2", m.Source.WindowID)
	assert.True(t, m.Source.HasEmbedding())
}

func TestHookPayload_TopSender(t *testing.T) {
	p := hookPayload{SourceType: wire.SourceTop}
	top := frameRef{FrameID: 0, DocumentID: "L-top"}
	m := p.message(1, frameRef{FrameID: 3, DocumentID: "L-c"}, senders{Top: &top})
	assert.Equal(t, "L-top", m.Source.DocumentID)
}

func TestHookPayload_UnknownSourceType(t *testing.T) {
	m := hookPayload{SourceType: "sibling"}.message(1, frameRef{DocumentID: "L"}, senders{})
	assert.Equal(t, wire.SourceUnknown, m.Source.Type)
}

func TestHookPayload_MessagesPassValidation(t *testing.T) {
	v, err := wire.NewValidator()
	require.NoError(t, err)

	parent := frameRef{FrameID: 0, DocumentID: "L-top"}
	for _, st := range wire.SourceTypes {
		p := hookPayload{MessageType: "message", SourceType: st, Data: `"x"`}
		m := p.message(1, frameRef{FrameID: 1, DocumentID: "L-b"}, senders{Parent: &parent, Top: &parent})
		assert.NoError(t, v.ValidateMessage(m), string(st))
	}
}

func TestPayloadData(t *testing.T) {
	assert.Nil(t, payloadData(""))
	assert.Equal(t, json.RawMessage(`[1,2]`), payloadData(`[1,2]`))
	assert.Equal(t, json.RawMessage(`"not json"`), payloadData(`not json`))
}

func TestRegistrationScript(t *testing.T) {
	s := registrationScript("", 1, 2, "L-b")
	assert.True(t, strings.HasPrefix(s, "window.__pmscopeRegister && window.__pmscopeRegister({"))
	assert.Contains(t, s, `"type":"`+wire.DefaultRegistrationMarker+`"`)
	assert.Contains(t, s, `"documentId":"L-b"`)
}

func TestHookScript_WrapsBindingName(t *testing.T) {
	s := hookScript()
	assert.True(t, strings.HasPrefix(s, "(function (bindingName)"))
	assert.True(t, strings.HasSuffix(s, `)("__pmscope_capture");`))
	assert.Contains(t, s, "__pmscopeRegister")
}
