package regressor

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testFeatureNames = []string{
	"distance-to-solar-noon",
	"temperature",
	"wind-speed",
	"sky-cover",
	"humidity",
	"average-wind-speed-(period)",
	"average-pressure-(period)",
	"wind_dir_sin",
	"wind_dir_cos",
}

// row builds an input row with the given distance, sky cover and wind_dir_cos
func row(distance, skyCover, windDirCos float64) []float64 {
	return []float64{distance, 60, 5, skyCover, 40, 10, 30, 0.5, windDirCos}
}

func loadTestModel(t *testing.T) *Ensemble {
	t.Helper()
	ensemble, err := Load(filepath.Join("testdata", "model.json"))
	require.NoError(t, err)
	return ensemble
}

func stumpArtifact() Artifact {
	return Artifact{
		Format:       FormatGBTree,
		Objective:    ObjectiveSquaredError,
		FeatureNames: []string{"a", "b"},
		Trees: []Tree{{Nodes: []Node{
			{Feature: 1, Threshold: 0, Left: 1, Right: 2},
			{IsLeaf: true, Leaf: -1},
			{IsLeaf: true, Leaf: 1},
		}}},
	}
}

func TestLoad_TestdataModel(t *testing.T) {
	ensemble := loadTestModel(t)

	assert.Equal(t, "test-1", ensemble.Version())
	assert.Equal(t, 2, ensemble.NumTrees())
	assert.Equal(t, testFeatureNames, ensemble.FeatureNames())
}

func TestEnsemble_Predict(t *testing.T) {
	ensemble := loadTestModel(t)

	tests := []struct {
		name string
		row  []float64
		want float64
	}{
		{name: "near noon, easterly wind", row: row(0, 2, -0.1045), want: 1 + 10 + 0.25},
		{name: "far from noon, overcast", row: row(1.0, 3, 0.9998), want: 1 - 30 - 0.5},
		{name: "far from noon, clear", row: row(1.0, 1, 0.9998), want: 1 - 20 - 0.5},
		{name: "threshold goes right", row: row(0.5, 2, 0), want: 1 - 30 - 0.5},
		{name: "missing distance follows default branch", row: row(math.NaN(), 4, -1), want: 1 + 10 + 0.25},
		{name: "missing cos without default goes right", row: row(0, 0, math.NaN()), want: 1 + 10 - 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ensemble.Predict([][]float64{tt.row})
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.InDelta(t, tt.want, got[0], 1e-12)
		})
	}
}

func TestEnsemble_PredictBatch(t *testing.T) {
	ensemble := loadTestModel(t)

	got, err := ensemble.Predict([][]float64{row(0, 2, -1), row(1, 3, 1)})
	require.NoError(t, err)
	assert.Equal(t, []float64{11.25, -29.5}, got)

	empty, err := ensemble.Predict(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestEnsemble_Predict_WrongWidth(t *testing.T) {
	ensemble := loadTestModel(t)

	_, err := ensemble.Predict([][]float64{{0.1, 60, 5}})
	require.Error(t, err)

	var schemaErr *SchemaMismatchError
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, 3, schemaErr.Width)
	assert.Len(t, schemaErr.Expected, 9)
	assert.False(t, schemaErr.IsTransient())
	assert.Contains(t, err.Error(), "expects 9 features, got 3")
}

func TestEnsemble_FeatureNamesIsCopy(t *testing.T) {
	ensemble := loadTestModel(t)

	names := ensemble.FeatureNames()
	names[0] = "tampered"

	assert.Equal(t, "distance-to-solar-noon", ensemble.FeatureNames()[0])
}

func TestNew_CopiesArtifact(t *testing.T) {
	artifact := stumpArtifact()
	ensemble, err := New(artifact)
	require.NoError(t, err)

	artifact.Trees[0].Nodes[1].Leaf = 100

	got, err := ensemble.Predict([][]float64{{0, -1}})
	require.NoError(t, err)
	assert.Equal(t, []float64{-1}, got)
}

func TestNew_InvalidArtifacts(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(a *Artifact)
		wantMsg string
	}{
		{name: "unknown format", mutate: func(a *Artifact) { a.Format = "pickle" }, wantMsg: "unsupported format"},
		{name: "unknown objective", mutate: func(a *Artifact) { a.Objective = "binary:logistic" }, wantMsg: "unsupported objective"},
		{name: "no features", mutate: func(a *Artifact) { a.FeatureNames = nil }, wantMsg: "feature_names is empty"},
		{name: "duplicate feature", mutate: func(a *Artifact) { a.FeatureNames = []string{"a", "a"} }, wantMsg: "duplicate feature name"},
		{name: "empty feature name", mutate: func(a *Artifact) { a.FeatureNames = []string{"a", ""} }, wantMsg: "empty name"},
		{name: "no trees", mutate: func(a *Artifact) { a.Trees = nil }, wantMsg: "no trees"},
		{name: "empty tree", mutate: func(a *Artifact) { a.Trees = append(a.Trees, Tree{}) }, wantMsg: "tree 1: tree has no nodes"},
		{name: "feature out of range", mutate: func(a *Artifact) { a.Trees[0].Nodes[0].Feature = 2 }, wantMsg: "feature index 2 out of range"},
		{name: "backward child", mutate: func(a *Artifact) { a.Trees[0].Nodes[0].Left = 0 }, wantMsg: "child index 0 out of range"},
		{name: "child past end", mutate: func(a *Artifact) { a.Trees[0].Nodes[0].Right = 3 }, wantMsg: "child index 3 out of range"},
		{name: "NaN threshold", mutate: func(a *Artifact) { a.Trees[0].Nodes[0].Threshold = math.NaN() }, wantMsg: "threshold is not finite"},
		{name: "infinite leaf", mutate: func(a *Artifact) { a.Trees[0].Nodes[2].Leaf = math.Inf(1) }, wantMsg: "leaf value is not finite"},
		{name: "NaN base score", mutate: func(a *Artifact) { a.BaseScore = math.NaN() }, wantMsg: "base_score is not finite"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			artifact := stumpArtifact()
			tt.mutate(&artifact)

			_, err := New(artifact)
			var loadErr *ArtifactLoadError
			require.True(t, errors.As(err, &loadErr), "got %v", err)
			assert.Contains(t, err.Error(), tt.wantMsg)
			assert.False(t, loadErr.IsTransient())
		})
	}
}

func TestNew_LegacyObjective(t *testing.T) {
	artifact := stumpArtifact()
	artifact.Objective = "reg:linear"

	_, err := New(artifact)
	assert.NoError(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.json")

	_, err := Load(path)
	var loadErr *ArtifactLoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, path, loadErr.Path)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLoad_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"format": "gbtree", "trees": [`), 0o600))

	_, err := Load(path)
	var loadErr *ArtifactLoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, path, loadErr.Path)
	assert.Contains(t, err.Error(), "malformed artifact")
}

func TestParse_ReportsReaderLocation(t *testing.T) {
	_, err := Parse(strings.NewReader(`{"format": "onnx"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "<reader>")
}

func TestEnsemble_ConcurrentPredict(t *testing.T) {
	ensemble := loadTestModel(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				got, err := ensemble.Predict([][]float64{row(0, 2, -1)})
				assert.NoError(t, err)
				assert.Equal(t, []float64{11.25}, got)
			}
		}()
	}
	wg.Wait()
}

func TestLoad_ShippedModel(t *testing.T) {
	ensemble, err := Load(filepath.Join("..", "..", "models", "solar_power_generation_xgbr_model.json"))
	require.NoError(t, err)

	assert.Equal(t, testFeatureNames, ensemble.FeatureNames())
	assert.Equal(t, 10, ensemble.NumTrees())

	// sin and cos of 16 degrees close the row
	got, err := ensemble.Predict([][]float64{{0, 60, 5, 2, 40, 10, 30, 0.27563735581699916, 0.9612616959383189}})
	require.NoError(t, err)
	assert.Equal(t, []float64{18072.75}, got)
}
