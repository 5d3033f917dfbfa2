package collab

import "testing"

func TestReverseBitsKnownValues(t *testing.T) {
	cases := map[byte]byte{
		0x00: 0x00,
		0xFF: 0xFF,
		0x01: 0x80,
		0x80: 0x01,
		0b00001111: 0b11110000,
	}
	for in, want := range cases {
		if got := ReverseBits(in); got != want {
			t.Errorf("ReverseBits(%08b) = %08b, want %08b", in, got, want)
		}
	}
}

func TestPackWordOrdersMSBFirst(t *testing.T) {
	got := PackWord(0x01, 0x02, 0x03, 0x04)
	want := uint32(0x01020304)
	if got != want {
		t.Errorf("PackWord = %#08x, want %#08x", got, want)
	}
}
