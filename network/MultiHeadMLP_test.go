package network

import (
	"testing"

	G "gorgonia.org/gorgonia"
)

func newTestNet(t *testing.T, init G.InitWFn) NeuralNet {
	t.Helper()

	net, err := NewMultiHeadMLP(4, 2, 3, G.NewGraph(), []int{5},
		[]bool{true}, init, []*Activation{ReLU()})
	if err != nil {
		t.Fatalf("could not create network: %v", err)
	}
	return net
}

// values returns the backing data of each learnable node of a network
func values(net NeuralNet) [][]float64 {
	learnables := net.Learnables()
	data := make([][]float64, len(learnables))
	for i, learnable := range learnables {
		data[i] = learnable.Value().Data().([]float64)
	}
	return data
}

func TestNewMultiHeadMLP(t *testing.T) {
	net := newTestNet(t, G.Zeroes())

	if net.Features() != 4 {
		t.Errorf("got %d features, want 4", net.Features())
	}
	if net.BatchSize() != 2 {
		t.Errorf("got batch size %d, want 2", net.BatchSize())
	}
	if net.Outputs() != 3 {
		t.Errorf("got %d outputs, want 3", net.Outputs())
	}
	if net.OutputLayers() != 1 {
		t.Errorf("got %d output layers, want 1", net.OutputLayers())
	}

	// One hidden layer and the added output layer, each with a weight
	// matrix and a bias
	if n := len(net.Learnables()); n != 4 {
		t.Errorf("got %d learnables, want 4", n)
	}

	shape := net.Prediction()[0].Shape()
	if shape[0] != 2 || shape[1] != 3 {
		t.Errorf("got prediction shape %v, want (2, 3)", shape)
	}
}

func TestNewMultiHeadMLPInvalidArguments(t *testing.T) {
	_, err := NewMultiHeadMLP(4, 2, 3, G.NewGraph(), []int{5, 5},
		[]bool{true, true}, G.Zeroes(), []*Activation{ReLU()})
	if err == nil {
		t.Error("expected an error for mismatched activations")
	}

	_, err = NewMultiHeadMLP(4, 2, 3, G.NewGraph(), []int{5, 5},
		[]bool{true}, G.Zeroes(), []*Activation{ReLU(), ReLU()})
	if err == nil {
		t.Error("expected an error for mismatched biases")
	}
}

func TestSet(t *testing.T) {
	dest := newTestNet(t, G.Zeroes())
	source := newTestNet(t, G.Ones())

	if err := dest.Set(source); err != nil {
		t.Fatalf("could not set weights: %v", err)
	}

	destValues := values(dest)
	sourceValues := values(source)
	for i := range destValues {
		for j := range destValues[i] {
			if destValues[i][j] != sourceValues[i][j] {
				t.Fatalf("learnable %d element %d: got %v, want %v", i, j,
					destValues[i][j], sourceValues[i][j])
			}
		}
	}
}

func TestSetDoesNotAlias(t *testing.T) {
	dest := newTestNet(t, G.Zeroes())
	source := newTestNet(t, G.Ones())

	if err := dest.Set(source); err != nil {
		t.Fatalf("could not set weights: %v", err)
	}

	// Changing the source weights afterwards must not change the
	// destination weights
	if err := source.Set(newTestNet(t, G.Zeroes())); err != nil {
		t.Fatalf("could not set weights: %v", err)
	}

	destValues := values(dest)
	if destValues[0][0] != 1.0 {
		t.Errorf("destination aliases its source: got %v, want 1",
			destValues[0][0])
	}
}

func TestPolyak(t *testing.T) {
	dest := newTestNet(t, G.Zeroes())
	source := newTestNet(t, G.Ones())
	tau := 0.25

	if err := dest.Polyak(source, tau); err != nil {
		t.Fatalf("could not polyak average weights: %v", err)
	}

	// Weight matrices started at 0 and move toward 1 by a factor of
	// tau. Biases are initialized to 0 in both networks and stay 0.
	destValues := values(dest)
	learnables := dest.Learnables()
	for i := range destValues {
		want := tau
		if learnables[i].Shape().Dims() == 1 {
			want = 0.0
		}

		for j := range destValues[i] {
			if destValues[i][j] != want {
				t.Fatalf("learnable %d element %d: got %v, want %v", i, j,
					destValues[i][j], want)
			}
		}
	}
}

func TestCloneWithBatch(t *testing.T) {
	net := newTestNet(t, G.Ones())

	clone, err := net.CloneWithBatch(10)
	if err != nil {
		t.Fatalf("could not clone network: %v", err)
	}

	if clone.BatchSize() != 10 {
		t.Errorf("got batch size %d, want 10", clone.BatchSize())
	}
	if clone.Features() != net.Features() {
		t.Errorf("got %d features, want %d", clone.Features(),
			net.Features())
	}
	if clone.Graph() == net.Graph() {
		t.Error("clone shares its source's computational graph")
	}

	cloneValues := values(clone)
	netValues := values(net)
	for i := range cloneValues {
		for j := range cloneValues[i] {
			if cloneValues[i][j] != netValues[i][j] {
				t.Fatalf("learnable %d element %d: got %v, want %v", i, j,
					cloneValues[i][j], netValues[i][j])
			}
		}
	}
}

func TestGob(t *testing.T) {
	net := newTestNet(t, G.Ones())

	encoded, err := net.(*multiHeadMLP).GobEncode()
	if err != nil {
		t.Fatalf("could not encode network: %v", err)
	}

	decoded := new(multiHeadMLP)
	if err := decoded.GobDecode(encoded); err != nil {
		t.Fatalf("could not decode network: %v", err)
	}

	if decoded.Features() != net.Features() {
		t.Errorf("got %d features, want %d", decoded.Features(),
			net.Features())
	}
	if decoded.BatchSize() != net.BatchSize() {
		t.Errorf("got batch size %d, want %d", decoded.BatchSize(),
			net.BatchSize())
	}
	if decoded.Outputs() != net.Outputs() {
		t.Errorf("got %d outputs, want %d", decoded.Outputs(), net.Outputs())
	}

	decodedValues := values(decoded)
	netValues := values(net)
	if len(decodedValues) != len(netValues) {
		t.Fatalf("got %d learnables, want %d", len(decodedValues),
			len(netValues))
	}
	for i := range decodedValues {
		for j := range decodedValues[i] {
			if decodedValues[i][j] != netValues[i][j] {
				t.Fatalf("learnable %d element %d: got %v, want %v", i, j,
					decodedValues[i][j], netValues[i][j])
			}
		}
	}
}
