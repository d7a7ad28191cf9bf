package core

// itoa converts an integer to a string without the fmt package, which is
// too heavy for the firmware image.
func itoa(n int) string {
	if n < 0 {
		return "-" + utoa(uint32(-n))
	}
	return utoa(uint32(n))
}

func utoa(n uint32) string {
	if n == 0 {
		return "0"
	}
	var buf [10]byte
	pos := len(buf)
	for n > 0 {
		pos--
		buf[pos] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[pos:])
}

// ftoa formats x with a fixed number of decimals, rounding half away from
// zero. Values beyond the uint32 range are not expected in debug output.
func ftoa(x float32, decimals int) string {
	sign := ""
	if x < 0 {
		sign = "-"
		x = -x
	}
	scale := uint32(1)
	for i := 0; i < decimals; i++ {
		scale *= 10
	}
	v := uint32(x*float32(scale) + 0.5)
	s := sign + utoa(v/scale)
	if decimals == 0 {
		return s
	}
	frac := utoa(v % scale)
	for len(frac) < decimals {
		frac = "0" + frac
	}
	return s + "." + frac
}
