package nnue

import "github.com/pauxav06/ChePP/internal/board"

// Network holds the quantised weights: the feature transformer with its
// PSQT head, two small dense layers, and the output neuron. The arrays are
// flat and laid out exactly as in the weight blob.
type Network struct {
	FTWeights [NumFeatures * FTOut]int16
	FTBiases  [FTOut]int16

	PsqtWeights [NumFeatures * PsqtOut]int16
	PsqtBiases  [PsqtOut]int16

	// L1 rows cover both perspectives: side to move first, opponent second.
	L1Weights [L1Size * 2 * FTOut]int16
	L1Biases  [L1Size]int32

	L2Weights [L2Size * L1Size]int16
	L2Biases  [L2Size]int32

	OutWeights [L2Size]int16
	OutBias    int32
}

// NewNetwork returns a zero-weight network.
func NewNetwork() *Network {
	return &Network{}
}

// Evaluate runs the layered multiply-accumulate chain over the accumulator
// and returns a centipawn-scale score from the given perspective.
func (net *Network) Evaluate(acc *Accumulator, view board.Color) int32 {
	our, ourPsqt := acc.vectors(view)
	their, theirPsqt := acc.vectors(view.Other())

	var l1Out [L1Size]int32
	for i := 0; i < L1Size; i++ {
		sum := net.L1Biases[i]
		row := net.L1Weights[i*2*FTOut : (i+1)*2*FTOut]
		for j := 0; j < FTOut; j++ {
			sum += creluFT(our[j]) * int32(row[j])
		}
		for j := 0; j < FTOut; j++ {
			sum += creluFT(their[j]) * int32(row[FTOut+j])
		}
		// dividing once at the end keeps more precision than per-term shifts
		l1Out[i] = sum >> 16
	}

	var l2Out [L2Size]int32
	for i := 0; i < L2Size; i++ {
		sum := net.L2Biases[i]
		row := net.L2Weights[i*L1Size : (i+1)*L1Size]
		for j := 0; j < L1Size; j++ {
			sum += relu32(l1Out[j]) * int32(row[j])
		}
		l2Out[i] = sum
	}

	out := net.OutBias
	for j := 0; j < L2Size; j++ {
		out += relu32(l2Out[j]) * int32(net.OutWeights[j])
	}
	out >>= 16

	psqt := ourPsqt[acc.Bucket]/2 - theirPsqt[acc.Bucket]/2
	psqt = psqt * 100 >> 8

	return out + psqt
}

// InitRandom fills the network with small deterministic pseudo-random
// weights, for tests and for the binary's fallback when no weight file is
// given. The magnitudes are kept tiny so the integer accumulation chain
// cannot overflow.
func (net *Network) InitRandom(seed uint64) {
	state := seed
	next := func() int16 {
		state = state*6364136223846793005 + 1442695040888963407
		return int16((state>>48)&0xFF) - 128
	}

	for i := range net.FTWeights {
		net.FTWeights[i] = next() >> 5
	}
	for i := range net.FTBiases {
		net.FTBiases[i] = next() >> 3
	}
	for i := range net.PsqtWeights {
		net.PsqtWeights[i] = next() >> 4
	}
	for i := range net.PsqtBiases {
		net.PsqtBiases[i] = next() >> 3
	}
	for i := range net.L1Weights {
		net.L1Weights[i] = next() >> 5
	}
	for i := range net.L1Biases {
		net.L1Biases[i] = int32(next())
	}
	for i := range net.L2Weights {
		net.L2Weights[i] = next() >> 5
	}
	for i := range net.L2Biases {
		net.L2Biases[i] = int32(next())
	}
	for i := range net.OutWeights {
		net.OutWeights[i] = next() >> 4
	}
	net.OutBias = int32(next())
}
