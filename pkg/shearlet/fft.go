package shearlet

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// fft2D computes the full 2D spectrum of a real image. Rows go through the
// gonum real FFT and are expanded by conjugate symmetry, columns through a
// radix-2 complex pass. Width and height must be powers of two.
func fft2D(data []float64, width, height int) []complex128 {
	fft := fourier.NewFFT(width)
	spec := make([]complex128, width*height)

	row := make([]float64, width)
	half := make([]complex128, width/2+1)
	for y := 0; y < height; y++ {
		copy(row, data[y*width:(y+1)*width])
		fft.Coefficients(half, row)
		out := spec[y*width : (y+1)*width]
		copy(out, half)
		for x := len(half); x < width; x++ {
			out[x] = conj(half[width-x])
		}
	}

	col := make([]complex128, height)
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			col[y] = spec[y*width+x]
		}
		res := complexFFT(col)
		for y := 0; y < height; y++ {
			spec[y*width+x] = res[y]
		}
	}
	return spec
}

// ifft2D inverts a 2D spectrum through the conjugation identity
// ifft(x) = conj(fft(conj(x))) / n. The result stays complex because the
// directional windows are one sided and break conjugate symmetry.
func ifft2D(spec []complex128, width, height int) []complex128 {
	tmp := make([]complex128, len(spec))
	for i, c := range spec {
		tmp[i] = conj(c)
	}

	row := make([]complex128, width)
	for y := 0; y < height; y++ {
		copy(row, tmp[y*width:(y+1)*width])
		copy(tmp[y*width:(y+1)*width], complexFFT(row))
	}
	col := make([]complex128, height)
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			col[y] = tmp[y*width+x]
		}
		res := complexFFT(col)
		for y := 0; y < height; y++ {
			tmp[y*width+x] = res[y]
		}
	}

	n := float64(width * height)
	for i, c := range tmp {
		tmp[i] = complex(real(c)/n, -imag(c)/n)
	}
	return tmp
}

// complexFFT is a recursive Cooley-Tukey transform for power-of-two input.
func complexFFT(x []complex128) []complex128 {
	n := len(x)
	if n <= 1 {
		return x
	}

	even := make([]complex128, n/2)
	odd := make([]complex128, n/2)
	for i := 0; i < n/2; i++ {
		even[i] = x[2*i]
		odd[i] = x[2*i+1]
	}
	even = complexFFT(even)
	odd = complexFFT(odd)

	res := make([]complex128, n)
	for k := 0; k < n/2; k++ {
		phi := -2 * math.Pi * float64(k) / float64(n)
		t := complex(math.Cos(phi), math.Sin(phi)) * odd[k]
		res[k] = even[k] + t
		res[k+n/2] = even[k] - t
	}
	return res
}

func conj(c complex128) complex128 {
	return complex(real(c), -imag(c))
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
