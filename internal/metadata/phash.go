package metadata

import (
	"fmt"
	"image"
)

const hashSide = 8

// averageHash is the 64 bit average hash of img as 16 hex digits. The image is
// reduced to an 8x8 grid of mean luminance and each bit tells whether a cell
// is brighter than the mean of the grid.
func averageHash(img image.Image) string {
	b := img.Bounds()
	if b.Empty() {
		return ""
	}

	var sums [hashSide * hashSide]float64
	var counts [hashSide * hashSide]int

	w, h := b.Dx(), b.Dy()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		cy := (y - b.Min.Y) * hashSide / h
		for x := b.Min.X; x < b.Max.X; x++ {
			cx := (x - b.Min.X) * hashSide / w
			r, g, bl, _ := img.At(x, y).RGBA()
			// ITU-R BT.601 luma
			sums[cy*hashSide+cx] += 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(bl)
			counts[cy*hashSide+cx]++
		}
	}

	var cells [hashSide * hashSide]float64
	var total float64
	for i := range cells {
		if counts[i] > 0 {
			cells[i] = sums[i] / float64(counts[i])
		}
		total += cells[i]
	}
	mean := total / float64(len(cells))

	var hash uint64
	for i, v := range cells {
		if v > mean {
			hash |= 1 << uint(len(cells)-1-i)
		}
	}
	return fmt.Sprintf("%016x", hash)
}
