package device

// bytesToInt16 decodes little-endian S16 samples, ignoring a trailing odd byte.
func bytesToInt16(b []byte) []int16 {
	n := len(b) / 2
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(b[2*i]) | int16(b[2*i+1])<<8
	}
	return out
}

// int16ToBytes writes samples into dst and zero-fills whatever is left.
func int16ToBytes(dst []byte, samples []int16) {
	i := 0
	for _, v := range samples {
		if i+1 >= len(dst) {
			break
		}
		dst[i] = byte(v)
		dst[i+1] = byte(v >> 8)
		i += 2
	}
	clear(dst[i:])
}
