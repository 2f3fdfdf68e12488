package stats

import (
	"math"
	"testing"
)

func TestEMA(t *testing.T) {
	avg := EMA(0).Add(10, 9)
	if avg != 10 {
		t.Error("first sample: got", avg)
	}
	avg = EMA(avg).Add(20, 9)
	expect := 20*0.2 + 10*0.8
	if math.Abs(avg-expect) > 1e-12 {
		t.Error("got", avg, "expect", expect)
	}
}

func TestAverage(t *testing.T) {
	var s Average
	for _, x := range []float64{2, 4, 4, 4, 5, 5, 7, 9} {
		s.Add(x)
	}
	if s.Mean != 5 {
		t.Error("mean: got", s.Mean)
	}
	expect := math.Sqrt(32.0 / 7.0)
	if math.Abs(s.StdDev-expect) > 1e-12 {
		t.Error("stddev: got", s.StdDev, "expect", expect)
	}
}
