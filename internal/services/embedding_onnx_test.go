package services

import (
	"math"
	"testing"
)

func TestMeanPoolingIgnoresPadding(t *testing.T) {
	// seqLen 3, dim 2; the third token is padding
	output := []float32{1, 2, 3, 4, 100, 100}
	mask := []int64{1, 1, 0}

	got := meanPooling(output, mask, 3, 2)
	if got[0] != 2 || got[1] != 3 {
		t.Fatalf("got %v, want [2 3]", got)
	}
}

func TestMeanPoolingEmptyMask(t *testing.T) {
	got := meanPooling([]float32{1, 2}, []int64{0}, 1, 2)
	if got[0] != 0 || got[1] != 0 {
		t.Fatalf("got %v", got)
	}
}

func TestCLSPoolingTakesFirstToken(t *testing.T) {
	got := clsPooling([]float32{5, 6, 7, 8}, 2)
	if len(got) != 2 || got[0] != 5 || got[1] != 6 {
		t.Fatalf("got %v", got)
	}
}

func TestNormalize(t *testing.T) {
	v := []float32{3, 4}
	normalize(v)
	if math.Abs(float64(v[0])-0.6) > 1e-6 || math.Abs(float64(v[1])-0.8) > 1e-6 {
		t.Fatalf("got %v", v)
	}

	zero := []float32{0, 0}
	normalize(zero)
	if zero[0] != 0 || zero[1] != 0 {
		t.Fatalf("zero vector changed: %v", zero)
	}
}
