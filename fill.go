package demmosaic

import "math"

// FillMissing estimates intra-tile missing cells from their valid
// 8-neighborhood, in up to passes passes. A cell is filled only when it
// lies inside a covered block and at least three of its neighbors hold
// valid values, so the fill smooths small holes without extrapolating
// across inter-tile gaps, which stay NaN. Each pass reads the previous
// pass's values only.
func FillMissing(m *Mosaic, passes int) int {
	filled := 0
	for range passes {
		next := make([]float32, len(m.Data))
		copy(next, m.Data)
		changed := 0
		for y := range m.Height {
			for x := range m.Width {
				v := m.At(x, y)
				if !math.IsNaN(float64(v)) || !m.Covered(x, y) {
					continue
				}
				sum, n := 0.0, 0
				for dy := -1; dy <= 1; dy++ {
					for dx := -1; dx <= 1; dx++ {
						if dx == 0 && dy == 0 {
							continue
						}
						nx, ny := x+dx, y+dy
						if nx < 0 || m.Width <= nx || ny < 0 || m.Height <= ny {
							continue
						}
						if nv := float64(m.At(nx, ny)); !math.IsNaN(nv) {
							sum += nv
							n++
						}
					}
				}
				if n >= 3 {
					next[y*m.Width+x] = float32(sum / float64(n))
					changed++
				}
			}
		}
		m.Data = next
		filled += changed
		if changed == 0 {
			break
		}
	}
	return filled
}
