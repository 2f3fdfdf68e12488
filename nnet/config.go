package nnet

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"reflect"
	"strconv"
	"strings"
)

// DataDir is the root directory for config files, cached datasets and
// training runs.
var DataDir = defaultDataDir()

func defaultDataDir() string {
	if dir := os.Getenv("MVCNN_DATA"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return path.Join(home, ".mvcnn")
}

// Training configuration settings
type Config struct {
	Model       string
	DataSet     string
	Views       int
	Eta         float64
	EtaSchedule []float64 `json:",omitempty"`
	Lambda      float64
	Momentum    float64
	Shuffle     bool
	TrainBatch  int
	TestBatch   int
	MaxEpoch    int
	MaxSamples  int
	LogEvery    int
	StopAfter   int
	SaveEvery   int
	MinLoss     float64
	RandSeed    int64
	DebugLevel  int
	Layers      []LayerConfig
}

func (c Config) views() int {
	if c.Views < 1 {
		return 1
	}
	return c.Views
}

// Learning rate for the given 1 based epoch: the schedule overrides Eta
// and its last entry applies to all later epochs.
func (c Config) LearningRate(epoch int) float64 {
	if len(c.EtaSchedule) == 0 {
		return c.Eta
	}
	if epoch > len(c.EtaSchedule) {
		epoch = len(c.EtaSchedule)
	}
	return c.EtaSchedule[epoch-1]
}

// RunDir is the experiment directory where checkpoints for this model and
// option set are stored.
func (c Config) RunDir() string {
	name := c.Model
	if c.Views > 1 {
		name += fmt.Sprintf("-v%d", c.Views)
	}
	if c.Lambda != 0 {
		name += fmt.Sprintf("-wd%g", c.Lambda)
	}
	return path.Join(DataDir, "run", name)
}

// Load network from json file under DataDir
func LoadConfig(name string) (c Config, err error) {
	filePath := path.Join(DataDir, name)
	var f *os.File
	if f, err = os.Open(filePath); err != nil {
		return
	}
	defer f.Close()
	fmt.Println("loading network config from", name)
	dec := json.NewDecoder(f)
	err = dec.Decode(&c)
	return
}

// Append layers to the config struct
func (c Config) AddLayers(layers ...LayerConfig) Config {
	c.Layers = append(c.Layers, layers...)
	return c
}

// Save default network definition and overwrite current config
func (c Config) SaveDefault(name string) error {
	err := c.Save(name + ".default")
	if err != nil {
		return err
	}
	return c.Save(name + ".net")
}

// Save config to JSON file under DataDir
func (c Config) Save(name string) error {
	if err := os.MkdirAll(DataDir, 0755); err != nil {
		return err
	}
	filePath := path.Join(DataDir, "."+name)
	f, err := os.Create(filePath)
	if err != nil {
		return err
	}
	fmt.Println("saving network config to", name)
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err = enc.Encode(c); err != nil {
		f.Close()
		return err
	}
	f.Close()
	return os.Rename(filePath, path.Join(DataDir, name))
}

func (c Config) Fields() []string {
	st := reflect.TypeOf(c)
	fld := make([]string, st.NumField()-1)
	for i := range fld {
		fld[i] = st.Field(i).Name
	}
	return fld
}

func (c Config) Get(key string) interface{} {
	s := reflect.ValueOf(c)
	return s.FieldByName(key).Interface()
}

func (c Config) String() string {
	str := []string{"== Config =="}
	for _, key := range c.Fields() {
		str = append(str, fmt.Sprintf("%-12s: %v", key, c.Get(key)))
	}
	return strings.Join(str, "\n")
}

func (c Config) SetString(key, val string) (Config, error) {
	s := reflect.ValueOf(&c).Elem()
	f := s.FieldByName(key)
	var err error
	switch f.Type().Kind() {
	case reflect.Int, reflect.Int64:
		var x int64
		if x, err = strconv.ParseInt(val, 10, 64); err == nil {
			f.SetInt(x)
		}
	case reflect.Float64:
		var x float64
		if x, err = strconv.ParseFloat(val, 64); err == nil {
			f.SetFloat(x)
		}
	case reflect.String:
		f.SetString(val)
	default:
		return c, fmt.Errorf("invalid type for SetString: %v", f.Type().Kind())
	}
	return c, err
}

func (c Config) SetBool(key string, val bool) (Config, error) {
	s := reflect.ValueOf(&c).Elem()
	f := s.FieldByName(key)
	if f.Type().Kind() == reflect.Bool {
		f.SetBool(val)
		return c, nil
	}
	return c, fmt.Errorf("invalid type for SetBool: %v", f.Type().Kind())
}
