// Package session implements the Pairwise Session Protocol (§2 #7,
// §4.3): the fixed-width wire codec and the receiver/transmitter
// sub-protocols run once per contact.
package session

import (
	"fmt"
	"strconv"

	"github.com/aemnet/aemnode/internal/identity"
	"github.com/aemnet/aemnode/internal/store"
)

// Field widths for the §6.1 wire format. Numeric fields are
// zero-padded decimal; AEMWidth matches the canonical four-digit AEM
// form, TimestampWidth is wide enough for any uint64 second count.
const (
	AEMWidth       = 4
	TimestampWidth = 20
	FlagWidth      = 1
)

// fieldWidths lists, in wire order, the width of every '_'-joined
// field: sender, recipient, created_at, body, transmitted,
// transmitted_devices, transmitted_to_recipient.
func fieldWidths(bodyLen, directoryLen int) [7]int {
	return [7]int{AEMWidth, AEMWidth, TimestampWidth, bodyLen, FlagWidth, directoryLen, FlagWidth}
}

// offsets precomputes each field's [start,end) byte range plus the
// total record length, including the interleaving '_' separators.
func offsets(bodyLen, directoryLen int) (ranges [7][2]int, total int) {
	widths := fieldWidths(bodyLen, directoryLen)
	pos := 0
	for i, w := range widths {
		ranges[i] = [2]int{pos, pos + w}
		pos += w
		if i != len(widths)-1 {
			pos++ // '_' separator
		}
	}
	return ranges, pos
}

// SerializedLen returns SER_LEN for the given body width and directory
// size - the total on-wire record length (§6.1).
func SerializedLen(bodyLen, directoryLen int) int {
	_, total := offsets(bodyLen, directoryLen)
	return total
}

func padDecimal(v uint64, width int) string {
	s := strconv.FormatUint(v, 10)
	if len(s) >= width {
		return s[len(s)-width:]
	}
	return fmt.Sprintf("%0*d", width, v)
}

func boolDigit(b bool) byte {
	if b {
		return '1'
	}
	return '0'
}

func deviceString(bits []bool, directoryLen int) []byte {
	out := make([]byte, directoryLen)
	for i := range out {
		if i < len(bits) && bits[i] {
			out[i] = '1'
		} else {
			out[i] = '0'
		}
	}
	return out
}

func padBody(body []byte, bodyLen int) []byte {
	out := make([]byte, bodyLen)
	copy(out, body)
	for i := len(body); i < bodyLen; i++ {
		out[i] = ' '
	}
	return out
}

// Encode serializes m into its fixed-width wire record (§6.1).
func Encode(m store.Message, bodyLen, directoryLen int) []byte {
	ranges, total := offsets(bodyLen, directoryLen)
	buf := make([]byte, total)
	for i := range buf {
		buf[i] = '_'
	}

	copy(buf[ranges[0][0]:ranges[0][1]], padDecimal(uint64(m.Sender), AEMWidth))
	copy(buf[ranges[1][0]:ranges[1][1]], padDecimal(uint64(m.Recipient), AEMWidth))
	copy(buf[ranges[2][0]:ranges[2][1]], padDecimal(m.CreatedAt, TimestampWidth))
	copy(buf[ranges[3][0]:ranges[3][1]], padBody(m.Body, bodyLen))
	buf[ranges[4][0]] = boolDigit(m.Transmitted)
	copy(buf[ranges[5][0]:ranges[5][1]], deviceString(m.TransmittedDevices, directoryLen))
	buf[ranges[6][0]] = boolDigit(m.TransmittedToRecipient)

	return buf
}

// Decode parses a fixed-width wire record back into a Message. It is
// a strict-width parser (§9): any length mismatch is rejected without
// attempting a partial parse.
func Decode(buf []byte, bodyLen, directoryLen int) (store.Message, error) {
	ranges, total := offsets(bodyLen, directoryLen)
	if len(buf) != total {
		return store.Message{}, fmt.Errorf("session: wire record has length %d, want %d", len(buf), total)
	}
	for i := 0; i < len(ranges)-1; i++ {
		if buf[ranges[i][1]] != '_' {
			return store.Message{}, fmt.Errorf("session: malformed record, expected '_' at offset %d", ranges[i][1])
		}
	}

	sender, err := strconv.ParseUint(string(buf[ranges[0][0]:ranges[0][1]]), 10, 32)
	if err != nil {
		return store.Message{}, fmt.Errorf("session: bad sender field: %w", err)
	}
	recipient, err := strconv.ParseUint(string(buf[ranges[1][0]:ranges[1][1]]), 10, 32)
	if err != nil {
		return store.Message{}, fmt.Errorf("session: bad recipient field: %w", err)
	}
	createdAt, err := strconv.ParseUint(string(buf[ranges[2][0]:ranges[2][1]]), 10, 64)
	if err != nil {
		return store.Message{}, fmt.Errorf("session: bad created_at field: %w", err)
	}

	body := append([]byte(nil), buf[ranges[3][0]:ranges[3][1]]...)

	transmitted := buf[ranges[4][0]] == '1'

	devBytes := buf[ranges[5][0]:ranges[5][1]]
	devices := make([]bool, directoryLen)
	for i, c := range devBytes {
		devices[i] = c == '1'
	}

	transmittedToRecipient := buf[ranges[6][0]] == '1'

	return store.Message{
		Sender:                 identity.AEM(sender),
		Recipient:              identity.AEM(recipient),
		CreatedAt:              createdAt,
		Body:                   body,
		Transmitted:            transmitted,
		TransmittedDevices:     devices,
		TransmittedToRecipient: transmittedToRecipient,
	}, nil
}
