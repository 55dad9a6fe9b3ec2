package evaluation

import "math"

// infDist stands in for infinity inside the distance transform. Keeping it
// finite avoids NaN when two unreachable parabolas meet in the envelope,
// and it dwarfs any real squared distance a scan can produce.
const infDist = 1e20

// distanceTransform returns the exact squared euclidean distance from every
// voxel to the closest marked voxel, honoring anisotropic spacing. It runs
// the Felzenszwalb-Huttenlocher lower envelope scan once per axis, which
// keeps the transform exact because squared distances separate per axis.
func distanceTransform(src []bool, w, h, d int, spacing [3]float64) []float64 {
	dist := make([]float64, w*h*d)
	for i, on := range src {
		if on {
			dist[i] = 0
		} else {
			dist[i] = infDist
		}
	}

	maxN := w
	if h > maxN {
		maxN = h
	}
	if d > maxN {
		maxN = d
	}
	f := make([]float64, maxN)
	out := make([]float64, maxN)
	pos := make([]float64, maxN)
	v := make([]int, maxN)
	env := make([]float64, maxN+1)

	plane := w * h

	// Along x.
	for q := 0; q < w; q++ {
		pos[q] = float64(q) * spacing[0]
	}
	for z := 0; z < d; z++ {
		for y := 0; y < h; y++ {
			base := z*plane + y*w
			copy(f[:w], dist[base:base+w])
			dt1D(f[:w], pos[:w], out[:w], v, env)
			copy(dist[base:base+w], out[:w])
		}
	}

	// Along y.
	for q := 0; q < h; q++ {
		pos[q] = float64(q) * spacing[1]
	}
	for z := 0; z < d; z++ {
		for x := 0; x < w; x++ {
			base := z*plane + x
			for q := 0; q < h; q++ {
				f[q] = dist[base+q*w]
			}
			dt1D(f[:h], pos[:h], out[:h], v, env)
			for q := 0; q < h; q++ {
				dist[base+q*w] = out[q]
			}
		}
	}

	// Along z.
	for q := 0; q < d; q++ {
		pos[q] = float64(q) * spacing[2]
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			base := y*w + x
			for q := 0; q < d; q++ {
				f[q] = dist[base+q*plane]
			}
			dt1D(f[:d], pos[:d], out[:d], v, env)
			for q := 0; q < d; q++ {
				dist[base+q*plane] = out[q]
			}
		}
	}

	return dist
}

// dt1D computes the one dimensional squared distance transform of sampled
// function f at the given sample positions. v and env are scratch space for
// the parabola envelope, sized len(f) and len(f)+1.
func dt1D(f, pos, out []float64, v []int, env []float64) {
	n := len(f)
	if n == 1 {
		out[0] = f[0]
		return
	}

	k := 0
	v[0] = 0
	env[0] = math.Inf(-1)
	env[1] = math.Inf(1)
	for q := 1; q < n; q++ {
		var s float64
		for {
			p := v[k]
			s = ((f[q] + pos[q]*pos[q]) - (f[p] + pos[p]*pos[p])) / (2*pos[q] - 2*pos[p])
			if s > env[k] {
				break
			}
			k--
		}
		k++
		v[k] = q
		env[k] = s
		env[k+1] = math.Inf(1)
	}

	k = 0
	for q := 0; q < n; q++ {
		for env[k+1] < pos[q] {
			k++
		}
		p := v[k]
		dq := pos[q] - pos[p]
		out[q] = dq*dq + f[p]
	}
}
