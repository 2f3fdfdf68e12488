package nnet

import (
	"fmt"

	exprand "golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// The editor functions below build a new layer sequence for training or
// deployment from a base network. The input slice is never modified so
// several network variants can safely be derived from one base.

// InsertDropout returns a new sequence with a dropout layer of the given
// rate (0.5 if zero) inserted immediately before each of the last two fully
// connected equivalent conv layers: the hidden fc layer and the classifier.
// The sequence must have the usual late stage shape of conv/relu pairs
// followed by the classifier and loss, so at least 6 layers.
func InsertDropout(layers []LayerConfig, rate float64) ([]LayerConfig, error) {
	if len(layers) < 6 {
		return nil, fmt.Errorf("insert dropout: need at least 6 layers, have %d", len(layers))
	}
	var convIx []int
	for i, l := range layers {
		if l.Type == "conv" {
			convIx = append(convIx, i)
		}
	}
	if len(convIx) < 2 {
		return nil, fmt.Errorf("insert dropout: need at least 2 conv layers, have %d", len(convIx))
	}
	anchor := convIx[len(convIx)-2:]
	out := make([]LayerConfig, 0, len(layers)+2)
	next := 0
	for i, l := range layers {
		if next < 2 && i == anchor[next] {
			out = append(out, Named(fmt.Sprintf("drop%d", next+1), Dropout{Rate: rate}))
			next++
		}
		out = append(out, l)
	}
	return out, nil
}

// InsertViewPool returns a new sequence with the view pooling layer
// inserted immediately after the layer named after. A LayerNotFoundError is
// returned if no layer carries that name.
func InsertViewPool(layers []LayerConfig, after string, vp ViewPool) ([]LayerConfig, error) {
	pos := -1
	for i, l := range layers {
		if l.Name == after {
			pos = i
			break
		}
	}
	if pos < 0 {
		return nil, LayerNotFoundError{Name: after}
	}
	out := make([]LayerConfig, 0, len(layers)+1)
	out = append(out, layers[:pos+1]...)
	out = append(out, Named("viewpool", vp))
	out = append(out, layers[pos+1:]...)
	return out, nil
}

// ReplaceClassifier returns a new sequence where the second to last layer,
// the classifier of a pretrained network, is replaced by a freshly
// initialised one sized to classes and the final layer is replaced by a
// softmax loss. Weights are drawn from a zero mean gaussian scaled by scale
// with biases zero. All other layers pass through unchanged, learned
// weights included: this is the fine tuning contract.
func ReplaceClassifier(layers []LayerConfig, classes int, scale float64, src exprand.Source) ([]LayerConfig, error) {
	if len(layers) < 2 {
		return nil, fmt.Errorf("replace classifier: need at least 2 layers, have %d", len(layers))
	}
	head := layers[len(layers)-2]
	if head.Type != "conv" {
		return nil, fmt.Errorf("replace classifier: expected conv layer before the loss, have %s", head.Type)
	}
	var old Conv
	unmarshal(head.Data, &old)
	if old.Size == 0 || old.Nfeats == 0 || len(old.Filters) == 0 {
		return nil, fmt.Errorf("replace classifier: pretrained head has no weights")
	}
	cin := len(old.Filters) / (old.Size * old.Size * old.Nfeats)
	dist := distuv.Normal{Mu: 0, Sigma: 1, Src: src}
	cfg := Conv{
		Nfeats: classes, Size: old.Size, Stride: old.Stride, Pad: old.Pad,
		LRMult: old.LRMult, WDMult: old.WDMult,
		Filters: make([]float32, old.Size*old.Size*cin*classes),
		Bias:    make([]float32, classes),
	}
	for i := range cfg.Filters {
		cfg.Filters[i] = float32(dist.Rand() * scale)
	}
	lossName := layers[len(layers)-1].Name
	if lossName == "" {
		lossName = "loss"
	}
	out := append([]LayerConfig{}, layers...)
	out[len(out)-2] = LayerConfig{Type: "conv", Name: head.Name, Data: marshal(cfg)}
	out[len(out)-1] = Named(lossName, SoftmaxLoss{})
	return out, nil
}

// Strip returns the inference time version of a trained sequence: dropout
// layers are removed, momentum accumulators and learning rate and weight
// decay multipliers are cleared from every layer and a terminal softmax
// loss becomes a plain softmax. Stripping an already stripped sequence is a
// no-op.
func Strip(layers []LayerConfig) []LayerConfig {
	out := make([]LayerConfig, 0, len(layers))
	for _, l := range layers {
		if l.Type == "dropout" {
			continue
		}
		if l.Type == "conv" {
			var cfg Conv
			unmarshal(l.Data, &cfg)
			cfg.VFilters = nil
			cfg.VBias = nil
			cfg.LRMult = [2]float64{}
			cfg.WDMult = [2]float64{}
			l = LayerConfig{Type: "conv", Name: l.Name, Data: marshal(cfg)}
		}
		out = append(out, l)
	}
	if n := len(out); n > 0 && out[n-1].Type == "softmaxloss" {
		out[n-1] = Named(out[n-1].Name, Softmax{})
	}
	return out
}
