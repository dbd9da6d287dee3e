package common

// LinearInterpolate evaluates data at a fractional index using linear
// interpolation. Indices outside [0, len-1] clamp to the end values.
func LinearInterpolate(data []float64, index float64) float64 {
	if len(data) == 0 {
		return 0.0
	}

	if index <= 0 {
		return data[0]
	}
	if index >= float64(len(data)-1) {
		return data[len(data)-1]
	}

	i := int(index)
	frac := index - float64(i)

	return data[i] + frac*(data[i+1]-data[i])
}

// Upsample resamples data onto a grid factor times denser over the index
// axis: output[j] = data evaluated at j/factor, for j in [0, len*factor).
// Points past the last sample hold the last value.
func Upsample(data []float64, factor int, dst []float64) []float64 {
	if factor < 1 {
		factor = 1
	}
	n := len(data) * factor
	if cap(dst) < n {
		dst = make([]float64, n)
	}
	dst = dst[:n]
	if len(data) == 0 {
		return dst
	}

	last := len(data) - 1
	for i := range last {
		left := data[i]
		slope := data[i+1] - left
		base := i * factor
		for k := range factor {
			dst[base+k] = left + slope*float64(k)/float64(factor)
		}
	}
	for j := last * factor; j < n; j++ {
		dst[j] = data[last]
	}

	return dst
}
