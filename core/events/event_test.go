package events

import (
	"bytes"
	"testing"
)

func TestTransferEventAttributes(t *testing.T) {
	var from, to [20]byte
	copy(from[:], bytes.Repeat([]byte{0x01}, 20))
	copy(to[:], bytes.Repeat([]byte{0x02}, 20))

	evt := Transfer{Asset: "usdc", From: from, To: to, Amount: 950, Authorization: AuthorizationEscrow}.Event()
	if evt.Type != TypeTransfer {
		t.Fatalf("unexpected type: %s", evt.Type)
	}
	if evt.Attributes["asset"] != "USDC" {
		t.Fatalf("asset not normalised: %s", evt.Attributes["asset"])
	}
	if evt.Attributes["amount"] != "950" {
		t.Fatalf("unexpected amount: %s", evt.Attributes["amount"])
	}
	if evt.Attributes["authorization"] != AuthorizationEscrow {
		t.Fatalf("unexpected authorization: %s", evt.Attributes["authorization"])
	}
}

type untyped struct{}

func (untyped) EventType() string { return "untyped" }

func TestBufferDrainAndRender(t *testing.T) {
	var buf Buffer
	buf.Emit(Mint{Asset: "sol", Amount: 1})
	buf.Emit(untyped{})
	buf.Emit(nil)

	drained := buf.Drain()
	if len(drained) != 2 {
		t.Fatalf("expected 2 buffered events, got %d", len(drained))
	}
	if len(buf.Drain()) != 0 {
		t.Fatalf("drain must empty the buffer")
	}
	rendered := Render(drained)
	if len(rendered) != 1 || rendered[0].Type != TypeMint {
		t.Fatalf("unexpected rendered events: %+v", rendered)
	}

	buf.Emit(Mint{Asset: "sol", Amount: 2})
	buf.Reset()
	if len(buf.Drain()) != 0 {
		t.Fatalf("reset must drop buffered events")
	}
}
