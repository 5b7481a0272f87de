// Package imagehash provides a perceptual difference hash for near-duplicate
// image detection during dataset curation.
package imagehash

import (
	"image"
	"math/bits"

	"github.com/anthonynsimon/bild/effect"
	"github.com/disintegration/imaging"
)

// Hash is a 64-bit difference hash. Perceptually similar images produce
// hashes with a small Hamming distance; exact re-encodes usually collide.
type Hash uint64

// Difference computes the 8x8 dHash: grayscale, shrink to 9x8, then set one
// bit per adjacent-pixel pair depending on which side is brighter. Resizing
// throws away everything but coarse structure, which is exactly what makes
// the hash robust to re-encoding and small crops.
func Difference(img image.Image) Hash {
	gray := effect.Grayscale(img)
	small := imaging.Resize(gray, 9, 8, imaging.Lanczos)

	var h Hash
	bit := 0
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			left, _, _, _ := small.At(x, y).RGBA()
			right, _, _, _ := small.At(x+1, y).RGBA()
			if left < right {
				h |= 1 << uint(63-bit)
			}
			bit++
		}
	}
	return h
}

// Distance is the Hamming distance between two hashes.
func Distance(a, b Hash) int {
	return bits.OnesCount64(uint64(a ^ b))
}
