package nnet

import (
	"path"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLearningRate(t *testing.T) {
	conf := Config{Eta: 0.1}
	assert.Equal(t, 0.1, conf.LearningRate(1))
	assert.Equal(t, 0.1, conf.LearningRate(100))

	conf.EtaSchedule = []float64{0.01, 0.005, 0.001}
	assert.Equal(t, 0.01, conf.LearningRate(1))
	assert.Equal(t, 0.005, conf.LearningRate(2))
	// the last entry applies to all later epochs
	assert.Equal(t, 0.001, conf.LearningRate(3))
	assert.Equal(t, 0.001, conf.LearningRate(20))
}

func TestRunDir(t *testing.T) {
	conf := Config{Model: "modelnet_mv", Views: 12, Lambda: 0.0005}
	assert.Equal(t, "modelnet_mv-v12-wd0.0005", path.Base(conf.RunDir()))
	assert.True(t, strings.HasPrefix(conf.RunDir(), DataDir))
	conf = Config{Model: "mnist"}
	assert.Equal(t, "mnist", path.Base(conf.RunDir()))
}

func TestConfigSet(t *testing.T) {
	conf := Config{Eta: 0.1}
	conf, err := conf.SetString("Eta", "0.05")
	assert.NoError(t, err)
	assert.Equal(t, 0.05, conf.Eta)

	conf, err = conf.SetString("MaxEpoch", "25")
	assert.NoError(t, err)
	assert.Equal(t, 25, conf.MaxEpoch)

	_, err = conf.SetString("MaxEpoch", "xyz")
	assert.Error(t, err)

	conf, err = conf.SetBool("Shuffle", true)
	assert.NoError(t, err)
	assert.True(t, conf.Shuffle)

	fields := conf.Fields()
	assert.Equal(t, "Model", fields[0])
	assert.NotContains(t, fields, "Layers")
}

func TestConfigSaveLoad(t *testing.T) {
	DataDir = t.TempDir()
	conf := Config{Model: "test", Eta: 0.1, Views: 12}.AddLayers(
		Named("fc", Conv{Nfeats: 2, Size: 1}),
		Named("loss", SoftmaxLoss{}),
	)
	err := conf.Save("test.net")
	assert.NoError(t, err)

	loaded, err := LoadConfig("test.net")
	assert.NoError(t, err)
	assert.Equal(t, conf.Eta, loaded.Eta)
	assert.Equal(t, conf.Views, loaded.Views)
	assert.Equal(t, 2, len(loaded.Layers))
	assert.Equal(t, "fc", loaded.Layers[0].Name)
}
