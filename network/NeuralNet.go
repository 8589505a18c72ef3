// Package network implements feedforward neural networks on gorgonia
// computational graphs
package network

import (
	G "gorgonia.org/gorgonia"
)

// NeuralNet implements a neural network which is run forward on
// batches of input data. A network holds its own computational graph,
// and copies of a network can be made on fresh graphs with Clone and
// CloneWithBatch, for example to hold a target network or to run a
// network trained on batches over single observations.
type NeuralNet interface {
	// Graph returns the computational graph holding the network
	Graph() *G.ExprGraph

	// Clone clones the network to a new computational graph
	Clone() (NeuralNet, error)

	// CloneWithBatch clones the network to a new computational graph,
	// changing the batch size of inputs to the network
	CloneWithBatch(int) (NeuralNet, error)

	// BatchSize returns the number of input vectors the network
	// expects in each forward pass
	BatchSize() int

	// Features returns the number of features in a single input
	// vector to the network
	Features() int

	// Outputs returns the number of values predicted by the network
	// for each input vector
	Outputs() int

	// OutputLayers returns the number of layers producing predictions
	OutputLayers() int

	// SetInput sets the input to the network for the next forward
	// pass
	SetInput([]float64) error

	// Set sets the weights of the network to be equal to those of
	// another network
	Set(NeuralNet) error

	// Polyak sets the weights of the network to a polyak average
	// between its own weights and those of another network
	Polyak(NeuralNet, float64) error

	// Learnables returns the nodes of the network that are learned
	Learnables() G.Nodes

	// Model returns the learnable nodes with their gradients
	Model() []G.ValueGrad

	// Output returns the values predicted by each output layer after
	// the last forward pass
	Output() []G.Value

	// Prediction returns the nodes of the computational graph storing
	// the predictions of each output layer
	Prediction() []*G.Node
}
