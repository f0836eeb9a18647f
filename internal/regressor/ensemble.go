// Package regressor evaluates gradient-boosted regression tree ensembles
// exported as JSON. An Ensemble is immutable once constructed and safe for
// concurrent use by any number of goroutines.
package regressor

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/goccy/go-json"
)

const (
	// FormatGBTree identifies the JSON tree-ensemble artifact layout
	FormatGBTree = "gbtree"

	// ObjectiveSquaredError is the only supported objective; its link is the identity
	ObjectiveSquaredError = "reg:squarederror"

	// objectiveLinear is the legacy name of reg:squarederror
	objectiveLinear = "reg:linear"
)

// Node is one split or leaf of a regression tree
// Children are addressed by index and always lie after their parent
type Node struct {
	Feature     int     `json:"feature"`
	Threshold   float64 `json:"threshold"`
	Left        int     `json:"left"`
	Right       int     `json:"right"`
	DefaultLeft bool    `json:"default_left"`
	IsLeaf      bool    `json:"is_leaf"`
	Leaf        float64 `json:"leaf"`
}

// Tree is a regression tree stored as a flat node array rooted at index 0
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Artifact is the serialized form of an Ensemble
type Artifact struct {
	Format       string   `json:"format"`
	Version      string   `json:"version"`
	Objective    string   `json:"objective"`
	BaseScore    float64  `json:"base_score"`
	FeatureNames []string `json:"feature_names"`
	Trees        []Tree   `json:"trees"`
}

// Ensemble is a loaded, validated tree ensemble
type Ensemble struct {
	version      string
	baseScore    float64
	featureNames []string
	trees        []Tree
}

// Load reads and validates the artifact at path
func Load(path string) (*Ensemble, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &ArtifactLoadError{Path: path, Message: "cannot open file", Err: err}
	}
	defer file.Close()

	ensemble, err := Parse(file)
	if err != nil {
		var loadErr *ArtifactLoadError
		if errors.As(err, &loadErr) {
			loadErr.Path = path
		}
		return nil, err
	}

	return ensemble, nil
}

// Parse decodes and validates an artifact from r
func Parse(r io.Reader) (*Ensemble, error) {
	var artifact Artifact
	if err := json.NewDecoder(r).Decode(&artifact); err != nil {
		return nil, &ArtifactLoadError{Message: "malformed artifact", Err: err}
	}
	return New(artifact)
}

// New validates an artifact and builds an Ensemble from it
// The artifact's slices are copied; later changes to it do not affect the Ensemble
func New(artifact Artifact) (*Ensemble, error) {
	if err := validateArtifact(artifact); err != nil {
		return nil, &ArtifactLoadError{Message: "invalid artifact", Err: err}
	}

	trees := make([]Tree, len(artifact.Trees))
	for i, tree := range artifact.Trees {
		trees[i] = Tree{Nodes: append([]Node(nil), tree.Nodes...)}
	}

	return &Ensemble{
		version:      artifact.Version,
		baseScore:    artifact.BaseScore,
		featureNames: append([]string(nil), artifact.FeatureNames...),
		trees:        trees,
	}, nil
}

func validateArtifact(a Artifact) error {
	if a.Format != FormatGBTree {
		return fmt.Errorf("unsupported format %q", a.Format)
	}

	switch a.Objective {
	case "", ObjectiveSquaredError, objectiveLinear:
	default:
		return fmt.Errorf("unsupported objective %q", a.Objective)
	}

	if !isFinite(a.BaseScore) {
		return errors.New("base_score is not finite")
	}

	if len(a.FeatureNames) == 0 {
		return errors.New("feature_names is empty")
	}
	seen := make(map[string]bool, len(a.FeatureNames))
	for _, name := range a.FeatureNames {
		if name == "" {
			return errors.New("feature_names contains an empty name")
		}
		if seen[name] {
			return fmt.Errorf("duplicate feature name %q", name)
		}
		seen[name] = true
	}

	if len(a.Trees) == 0 {
		return errors.New("ensemble has no trees")
	}
	for i, tree := range a.Trees {
		if err := validateTree(tree, len(a.FeatureNames)); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}

	return nil
}

func validateTree(tree Tree, numFeatures int) error {
	if len(tree.Nodes) == 0 {
		return errors.New("tree has no nodes")
	}

	for i, node := range tree.Nodes {
		if node.IsLeaf {
			if !isFinite(node.Leaf) {
				return fmt.Errorf("node %d: leaf value is not finite", i)
			}
			continue
		}
		if node.Feature < 0 || node.Feature >= numFeatures {
			return fmt.Errorf("node %d: feature index %d out of range", i, node.Feature)
		}
		if !isFinite(node.Threshold) {
			return fmt.Errorf("node %d: threshold is not finite", i)
		}
		// Forward-only children rule out cycles, so traversal always reaches a leaf
		for _, child := range []int{node.Left, node.Right} {
			if child <= i || child >= len(tree.Nodes) {
				return fmt.Errorf("node %d: child index %d out of range", i, child)
			}
		}
	}

	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Predict evaluates the ensemble on each row
// Every row must hold exactly one value per feature, in FeatureNames order
func (e *Ensemble) Predict(rows [][]float64) ([]float64, error) {
	predictions := make([]float64, len(rows))

	for i, row := range rows {
		if len(row) != len(e.featureNames) {
			return nil, &SchemaMismatchError{
				Expected: e.FeatureNames(),
				Width:    len(row),
			}
		}

		sum := e.baseScore
		for _, tree := range e.trees {
			sum += tree.eval(row)
		}
		predictions[i] = sum
	}

	return predictions, nil
}

// eval walks the tree from the root; a value below the threshold goes left
// and a missing (NaN) value follows the node's default branch
func (t Tree) eval(row []float64) float64 {
	idx := 0
	for {
		node := t.Nodes[idx]
		if node.IsLeaf {
			return node.Leaf
		}

		value := row[node.Feature]
		switch {
		case math.IsNaN(value):
			if node.DefaultLeft {
				idx = node.Left
			} else {
				idx = node.Right
			}
		case value < node.Threshold:
			idx = node.Left
		default:
			idx = node.Right
		}
	}
}

// FeatureNames returns a copy of the trained feature schema
func (e *Ensemble) FeatureNames() []string {
	return append([]string(nil), e.featureNames...)
}

// Version returns the artifact's version label
func (e *Ensemble) Version() string {
	return e.version
}

// NumTrees returns the number of trees in the ensemble
func (e *Ensemble) NumTrees() int {
	return len(e.trees)
}
