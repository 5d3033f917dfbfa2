package nco

var onesLookup = func() [256]byte {
	var t [256]byte
	for i := 0; i < 256; i++ {
		for j := 0; j < 8; j++ {
			if i&(1<<j) != 0 {
				t[i]++
			}
		}
	}
	return t
}()

// Popcount returns the number of set bits in a, via a 256-entry byte-wise
// lookup table (the inner-loop correlator kernel).
func Popcount(a uint32) uint32 {
	return uint32(onesLookup[a&0xFF]) +
		uint32(onesLookup[(a>>8)&0xFF]) +
		uint32(onesLookup[(a>>16)&0xFF]) +
		uint32(onesLookup[(a>>24)&0xFF])
}
