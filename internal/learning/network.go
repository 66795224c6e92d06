package learning

import (
	"math"
	"math/rand"
)

// Network is a two layer feed forward classifier: input -> hidden (ReLU) ->
// output (softmax).
type Network struct {
	W1 [][]float64 `json:"w1"` // input x hidden
	B1 []float64   `json:"b1"`
	W2 [][]float64 `json:"w2"` // hidden x output
	B2 []float64   `json:"b2"`
}

func NewNetwork(inputSize, hiddenSize, outputSize int, rng *rand.Rand) *Network {
	n := &Network{
		W1: make([][]float64, inputSize),
		B1: make([]float64, hiddenSize),
		W2: make([][]float64, hiddenSize),
		B2: make([]float64, outputSize),
	}
	for i := range n.W1 {
		row := make([]float64, hiddenSize)
		for j := range row {
			row[j] = rng.NormFloat64() * 0.01
		}
		n.W1[i] = row
	}
	for i := range n.W2 {
		row := make([]float64, outputSize)
		for j := range row {
			row[j] = rng.NormFloat64() * 0.01
		}
		n.W2[i] = row
	}
	return n
}

func (n *Network) InputSize() int  { return len(n.W1) }
func (n *Network) HiddenSize() int { return len(n.B1) }
func (n *Network) OutputSize() int { return len(n.B2) }

// forward computes the pre-activation hidden layer, the ReLU activations, and
// the softmax output for a single sample.
func (n *Network) forward(x []float64) (z1, a1, probs []float64) {
	hidden, output := n.HiddenSize(), n.OutputSize()

	z1 = make([]float64, hidden)
	copy(z1, n.B1)
	for i, xi := range x {
		if xi == 0 {
			continue
		}
		row := n.W1[i]
		for j := range z1 {
			z1[j] += xi * row[j]
		}
	}

	a1 = make([]float64, hidden)
	for j, v := range z1 {
		if v > 0 {
			a1[j] = v
		}
	}

	z2 := make([]float64, output)
	copy(z2, n.B2)
	for j, aj := range a1 {
		if aj == 0 {
			continue
		}
		row := n.W2[j]
		for k := range z2 {
			z2[k] += aj * row[k]
		}
	}

	return z1, a1, softmax(z2)
}

func softmax(z []float64) []float64 {
	maxZ := z[0]
	for _, v := range z[1:] {
		if v > maxZ {
			maxZ = v
		}
	}
	probs := make([]float64, len(z))
	var sum float64
	for k, v := range z {
		probs[k] = math.Exp(v - maxZ)
		sum += probs[k]
	}
	for k := range probs {
		probs[k] /= sum
	}
	return probs
}

func (n *Network) Predict(x []float64) int {
	_, _, probs := n.forward(x)
	best := 0
	for k, p := range probs {
		if p > probs[best] {
			best = k
		}
	}
	return best
}

// Evaluate returns the fraction of samples classified correctly.
func (n *Network) Evaluate(x [][]float64, y []int) float64 {
	if len(x) == 0 {
		return 0
	}
	correct := 0
	for i, xi := range x {
		if n.Predict(xi) == y[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(x))
}

// TrainEpoch runs one stochastic gradient descent pass over the training set
// and returns the mean cross entropy loss. The gradient is the exact
// backpropagated cross entropy gradient for the softmax output.
func (n *Network) TrainEpoch(x [][]float64, y []int, lr float64) float64 {
	var totalLoss float64

	for i, xi := range x {
		z1, a1, probs := n.forward(xi)
		label := y[i]
		totalLoss += -math.Log(probs[label] + 1e-8)

		// dL/dz2 = probs - onehot(label)
		dz2 := probs
		dz2[label] -= 1

		// Hidden layer gradient through ReLU.
		dz1 := make([]float64, len(a1))
		for j := range dz1 {
			if z1[j] <= 0 {
				continue
			}
			var g float64
			row := n.W2[j]
			for k, d := range dz2 {
				g += row[k] * d
			}
			dz1[j] = g
		}

		for j, aj := range a1 {
			if aj == 0 {
				continue
			}
			row := n.W2[j]
			for k, d := range dz2 {
				row[k] -= lr * aj * d
			}
		}
		for k, d := range dz2 {
			n.B2[k] -= lr * d
		}

		for i2, xv := range xi {
			if xv == 0 {
				continue
			}
			row := n.W1[i2]
			for j, d := range dz1 {
				row[j] -= lr * xv * d
			}
		}
		for j, d := range dz1 {
			n.B1[j] -= lr * d
		}
	}

	if len(x) == 0 {
		return 0
	}
	return totalLoss / float64(len(x))
}
