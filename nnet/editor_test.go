package nnet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	exprand "golang.org/x/exp/rand"
)

// late stage of a typical pretrained stack: conv features then two fc
// equivalent layers and the loss
func baseLayers() []LayerConfig {
	return []LayerConfig{
		Named("conv1", Conv{Nfeats: 8, Size: 3, Filters: ones(3 * 3 * 1 * 8), Bias: make([]float32, 8)}),
		Named("relu1", Activation{Atype: "relu"}),
		Named("pool1", MaxPool{Size: 2}),
		Named("fc7", Conv{Nfeats: 16, Size: 3, Filters: ones(3 * 3 * 8 * 16), Bias: make([]float32, 16)}),
		Named("relu7", Activation{Atype: "relu"}),
		Named("fc8", Conv{Nfeats: 10, Size: 1, Filters: ones(1 * 1 * 16 * 10), Bias: make([]float32, 10)}),
		Named("loss", SoftmaxLoss{}),
	}
}

func ones(n int) []float32 {
	v := make([]float32, n)
	for i := range v {
		v[i] = 1
	}
	return v
}

func names(layers []LayerConfig) []string {
	s := make([]string, len(layers))
	for i, l := range layers {
		s[i] = l.Name
		if s[i] == "" {
			s[i] = l.Type
		}
	}
	return s
}

func TestInsertDropout(t *testing.T) {
	base := baseLayers()
	out, err := InsertDropout(base, 0.4)
	assert.NoError(t, err)
	assert.Equal(t, []string{"conv1", "relu1", "pool1", "drop1", "fc7", "relu7", "drop2", "fc8", "loss"}, names(out))
	// input sequence is not modified
	assert.Equal(t, 7, len(base))

	var cfg Dropout
	unmarshal(out[3].Data, &cfg)
	assert.Equal(t, 0.4, cfg.Rate)

	_, err = InsertDropout(base[:4], 0.5)
	assert.Error(t, err)
}

func TestInsertViewPool(t *testing.T) {
	base := baseLayers()
	out, err := InsertViewPool(base, "relu7", ViewPool{Stride: 12, Method: PoolMax})
	assert.NoError(t, err)
	assert.Equal(t, []string{"conv1", "relu1", "pool1", "fc7", "relu7", "viewpool", "fc8", "loss"}, names(out))
	assert.Equal(t, "viewPool", out[5].Type)
	assert.Equal(t, 7, len(base))

	_, err = InsertViewPool(base, "relu9", ViewPool{Stride: 12})
	var nerr LayerNotFoundError
	assert.ErrorAs(t, err, &nerr)
	assert.Equal(t, "relu9", nerr.Name)
}

func TestReplaceClassifier(t *testing.T) {
	base := baseLayers()
	src := exprand.NewSource(42)
	out, err := ReplaceClassifier(base, 5, 0.01, src)
	assert.NoError(t, err)
	assert.Equal(t, len(base), len(out))

	// layers other than the head keep their weights
	for i := 0; i < len(base)-2; i++ {
		assert.Equal(t, base[i], out[i])
	}
	var head Conv
	unmarshal(out[len(out)-2].Data, &head)
	assert.Equal(t, 5, head.Nfeats)
	assert.Equal(t, 1*1*16*5, len(head.Filters))
	assert.Equal(t, make([]float32, 5), head.Bias)
	assert.Equal(t, "fc8", out[len(out)-2].Name)
	nonzero := 0
	for _, w := range head.Filters {
		assert.InDelta(t, 0, w, 0.1)
		if w != 0 {
			nonzero++
		}
	}
	assert.Greater(t, nonzero, 0)
	assert.Equal(t, "softmaxloss", out[len(out)-1].Type)
	assert.Equal(t, "loss", out[len(out)-1].Name)
}

func TestStrip(t *testing.T) {
	base := baseLayers()
	layers, err := InsertDropout(base, 0.5)
	assert.NoError(t, err)
	// simulate training state on the first conv
	var cfg Conv
	unmarshal(layers[0].Data, &cfg)
	cfg.VFilters = ones(len(cfg.Filters))
	cfg.VBias = ones(len(cfg.Bias))
	cfg.LRMult = [2]float64{10, 20}
	cfg.WDMult = [2]float64{1, 0}
	layers[0] = Named(layers[0].Name, cfg)

	stripped := Strip(layers)
	assert.Equal(t, []string{"conv1", "relu1", "pool1", "fc7", "relu7", "fc8", "loss"}, names(stripped))
	assert.Equal(t, "softmax", stripped[len(stripped)-1].Type)

	var out Conv
	unmarshal(stripped[0].Data, &out)
	assert.Nil(t, out.VFilters)
	assert.Nil(t, out.VBias)
	assert.Equal(t, [2]float64{}, out.LRMult)
	assert.Equal(t, cfg.Filters, out.Filters)

	// stripping is idempotent
	assert.Equal(t, stripped, Strip(stripped))

	// the input sequence keeps its dropout and training state
	assert.Equal(t, 9, len(layers))
}
