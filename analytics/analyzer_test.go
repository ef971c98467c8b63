package analytics

import (
	"math"
	"testing"
)

func TestNormalizedPowerFlatPowerEqualsAverage(t *testing.T) {
	samples := make([]float64, 40)
	for i := range samples {
		samples[i] = 200
	}
	if got := normalizedPower(samples); got != 200 {
		t.Fatalf("normalizedPower() = %v, want 200", got)
	}
}

func TestNormalizedPowerShortSeriesFallsBackToAverage(t *testing.T) {
	samples := []float64{100, 200, 300}
	if got := normalizedPower(samples); got != average(samples) {
		t.Fatalf("normalizedPower() = %v, want average %v", got, average(samples))
	}
}

func TestEstimateFTPIsNinetyFivePercentOfBest20Min(t *testing.T) {
	samples := make([]float64, 25*60)
	for i := range samples {
		samples[i] = 250
	}
	got := estimateFTP(samples)
	want := 250 * 0.95
	if got != want {
		t.Fatalf("estimateFTP() = %v, want %v", got, want)
	}
}

func TestBuildPowerZonesBucketsByPercentFTP(t *testing.T) {
	ftp := 200.0
	samples := []float64{100, 150, 180, 220}
	zones := buildPowerZones(samples, ftp)
	if len(zones) == 0 {
		t.Fatal("expected non-empty power zones")
	}
	var total float64
	for _, z := range zones {
		total += z.Seconds
	}
	if total != float64(len(samples)) {
		t.Fatalf("zone seconds sum = %v, want %v", total, len(samples))
	}
}

func TestAverageIgnoresNonFiniteSamples(t *testing.T) {
	samples := []float64{10, 20, math.NaN()}
	if got := average(samples); got != 15 {
		t.Fatalf("average() = %v, want 15", got)
	}
}
