package session

import (
	"bytes"
	"testing"

	"github.com/aemnet/aemnode/internal/store"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	const bodyLen, dirLen = 16, 4

	body := padBody([]byte("hello"), bodyLen)
	m := store.Message{
		Sender:                 9990,
		Recipient:              9991,
		CreatedAt:              1700000000,
		Body:                   body,
		Transmitted:            true,
		TransmittedDevices:     []bool{true, false, true, false},
		TransmittedToRecipient: false,
	}

	wire := Encode(m, bodyLen, dirLen)
	if len(wire) != SerializedLen(bodyLen, dirLen) {
		t.Fatalf("encoded length %d != SerializedLen %d", len(wire), SerializedLen(bodyLen, dirLen))
	}

	got, err := Decode(wire, bodyLen, dirLen)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if got.Sender != m.Sender || got.Recipient != m.Recipient || got.CreatedAt != m.CreatedAt {
		t.Errorf("scalar fields mismatch: got %+v", got)
	}
	if !bytes.Equal(got.Body, m.Body) {
		t.Errorf("body mismatch: got %q want %q", got.Body, m.Body)
	}
	if got.Transmitted != m.Transmitted || got.TransmittedToRecipient != m.TransmittedToRecipient {
		t.Errorf("flag mismatch: got %+v", got)
	}
	for i := range m.TransmittedDevices {
		if got.TransmittedDevices[i] != m.TransmittedDevices[i] {
			t.Errorf("transmitted_devices[%d] mismatch: got %v want %v", i, got.TransmittedDevices[i], m.TransmittedDevices[i])
		}
	}
}

func TestDecodeRejectsWrongLength(t *testing.T) {
	if _, err := Decode([]byte("short"), 16, 4); err == nil {
		t.Error("expected error for a record of the wrong length")
	}
}

func TestDecodeRejectsMissingSeparator(t *testing.T) {
	wire := Encode(store.Message{
		Sender: 1, Recipient: 2, CreatedAt: 3,
		Body:               padBody(nil, 8),
		TransmittedDevices: make([]bool, 2),
	}, 8, 2)
	wire[AEMWidth] = 'x' // corrupt the separator after the sender field
	if _, err := Decode(wire, 8, 2); err == nil {
		t.Error("expected error for a corrupted separator byte")
	}
}
