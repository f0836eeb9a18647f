package models

import (
	"math"
	"reflect"
	"strings"
	"testing"
)

func sampleReadings() ReadingSet {
	return ReadingSet{
		DistanceToSolarNoon:    0.0,
		Temperature:            60,
		WindSpeed:              5.0,
		SkyCover:               2,
		Humidity:               40,
		AverageWindSpeedPeriod: 10.0,
		AveragePressurePeriod:  30.0,
		WindDirection:          16,
	}
}

// TestBuildFeatures_Scenario covers the reference reading set end to end
func TestBuildFeatures_Scenario(t *testing.T) {
	fv := BuildFeatures(sampleReadings())

	// 16 degrees
	if math.Abs(fv.WindDirSin-0.2756) > 1e-4 {
		t.Errorf("WindDirSin = %v, want ~0.2756", fv.WindDirSin)
	}
	if math.Abs(fv.WindDirCos-0.9613) > 1e-4 {
		t.Errorf("WindDirCos = %v, want ~0.9613", fv.WindDirCos)
	}

	want := []float64{0.0, 60, 5.0, 2, 40, 10.0, 30.0}
	got := fv.Values()
	for i, w := range want {
		if got[i] != w {
			t.Errorf("Values()[%d] (%s) = %v, want %v", i, FeatureNames[i], got[i], w)
		}
	}
}

func TestWindDirectionComponents_UnitCircle(t *testing.T) {
	for w := 1; w <= 32; w++ {
		sin, cos := WindDirectionComponents(w)
		if norm := sin*sin + cos*cos; math.Abs(norm-1) > 1e-12 {
			t.Errorf("direction %d: sin^2+cos^2 = %v, want 1", w, norm)
		}
	}
}

func TestWindDirectionComponents_Periodic(t *testing.T) {
	tests := []struct {
		name string
		a, b int
	}{
		{name: "one and a full turn later", a: 1, b: 361},
		{name: "domain maximum", a: 32, b: 392},
		{name: "two turns", a: 16, b: 736},
		{name: "negative turn", a: 5, b: -355},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sinA, cosA := WindDirectionComponents(tt.a)
			sinB, cosB := WindDirectionComponents(tt.b)
			if math.Abs(sinA-sinB) > 1e-12 || math.Abs(cosA-cosB) > 1e-12 {
				t.Errorf("(%v,%v) != (%v,%v)", sinA, cosA, sinB, cosB)
			}
		})
	}
}

func TestBuildFeatures_OutOfDomainWindDirection(t *testing.T) {
	a := sampleReadings()
	a.WindDirection = 1
	b := sampleReadings()
	b.WindDirection = 361

	fa, fb := BuildFeatures(a), BuildFeatures(b)
	if fa.WindDirSin != fb.WindDirSin || fa.WindDirCos != fb.WindDirCos {
		t.Errorf("direction 1 = (%v,%v), direction 361 = (%v,%v)",
			fa.WindDirSin, fa.WindDirCos, fb.WindDirSin, fb.WindDirCos)
	}
}

func TestBuildFeatures_Idempotent(t *testing.T) {
	r := sampleReadings()
	r.WindDirection = 23
	r.DistanceToSolarNoon = 0.3712

	first := BuildFeatures(r)
	second := BuildFeatures(r)

	for i, v := range first.Values() {
		if math.Float64bits(v) != math.Float64bits(second.Values()[i]) {
			t.Errorf("feature %s differs between calls: %v vs %v", FeatureNames[i], v, second.Values()[i])
		}
	}
}

func TestBuildFeatures_NoRangeChecks(t *testing.T) {
	r := ReadingSet{
		DistanceToSolarNoon:    -4,
		Temperature:            500,
		WindSpeed:              -1,
		SkyCover:               99,
		Humidity:               -20,
		AverageWindSpeedPeriod: 1e6,
		AveragePressurePeriod:  0,
		WindDirection:          -90,
	}

	fv := BuildFeatures(r)
	if fv.Temperature != 500 || fv.SkyCover != 99 || fv.Humidity != -20 {
		t.Errorf("out of range values were altered: %+v", fv)
	}
	if math.Abs(fv.WindDirSin-(-1)) > 1e-12 {
		t.Errorf("WindDirSin(-90) = %v, want -1", fv.WindDirSin)
	}
}

// TestFeatureVector_Schema pins field order and names to the trained schema
func TestFeatureVector_Schema(t *testing.T) {
	typ := reflect.TypeOf(FeatureVector{})
	if typ.NumField() != FeatureCount {
		t.Fatalf("FeatureVector has %d fields, want %d", typ.NumField(), FeatureCount)
	}

	for i := 0; i < typ.NumField(); i++ {
		name := strings.Split(typ.Field(i).Tag.Get("json"), ",")[0]
		if name != FeatureNames[i] {
			t.Errorf("field %d (%s) json name = %q, want %q", i, typ.Field(i).Name, name, FeatureNames[i])
		}
	}

	if got := len(BuildFeatures(sampleReadings()).Values()); got != FeatureCount {
		t.Errorf("len(Values()) = %d, want %d", got, FeatureCount)
	}
}

func TestFeatureVector_Named(t *testing.T) {
	fv := BuildFeatures(sampleReadings())
	named := fv.Named()

	if len(named) != FeatureCount {
		t.Fatalf("len(Named()) = %d, want %d", len(named), FeatureCount)
	}
	if named["temperature"] != 60 {
		t.Errorf("named[temperature] = %v, want 60", named["temperature"])
	}
	if named["wind_dir_cos"] != fv.WindDirCos {
		t.Errorf("named[wind_dir_cos] = %v, want %v", named["wind_dir_cos"], fv.WindDirCos)
	}
}
