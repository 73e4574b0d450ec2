// Package signal provides the sample block type moved between nodes and
// a small set of block manipulation helpers.
package signal

import "math"

// Block is a fixed-size run of mono samples processed as one unit of work.
// Multi-channel signals are carried as one block per port.
type Block []float64

// Make returns a zeroed block of requested size.
func Make(size int) Block {
	return make(Block, size)
}

// Zero sets all samples to silence.
func (b Block) Zero() {
	for i := range b {
		b[i] = 0
	}
}

// Copy copies samples from source block. Blocks are expected to have
// equal size, shorter of two is used otherwise.
func (b Block) Copy(source Block) {
	copy(b, source)
}

// Add accumulates source samples into the block.
func (b Block) Add(source Block) {
	for i := range b {
		if i == len(source) {
			break
		}
		b[i] += source[i]
	}
}

// Gain scales all samples by level.
func (b Block) Gain(level float64) {
	for i := range b {
		b[i] *= level
	}
}

// Peak returns the maximum absolute sample value.
func (b Block) Peak() float64 {
	var peak float64
	for _, s := range b {
		if abs := math.Abs(s); abs > peak {
			peak = abs
		}
	}
	return peak
}

// RMS returns the root mean square of the block.
func (b Block) RMS() float64 {
	if len(b) == 0 {
		return 0
	}
	var sum float64
	for _, s := range b {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(b)))
}
