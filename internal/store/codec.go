package store

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"

	"github.com/roach88/pmscope/internal/wire"
)

// encMode uses core deterministic encoding: the same event always encodes
// to the same bytes.
var encMode cbor.EncMode

var decMode cbor.DecMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("store: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("store: CBOR decoder initialization failed: " + err.Error())
	}
}

// payload is the stored form of a log event. Exactly one field is set.
type payload struct {
	Message  *wire.Message  `cbor:"1,keyasint,omitempty"`
	Topology *wire.Topology `cbor:"2,keyasint,omitempty"`
}

func encodeEvent(ev wire.Event) ([]byte, error) {
	return encMode.Marshal(payload{Message: ev.Message, Topology: ev.Topology})
}

func decodeEvent(kind wire.Kind, data []byte) (wire.Event, error) {
	var p payload
	if err := decMode.Unmarshal(data, &p); err != nil {
		return wire.Event{}, err
	}
	return wire.Event{Kind: kind, Message: p.Message, Topology: p.Topology}, nil
}
