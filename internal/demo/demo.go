// Package demo writes a synthetic dataset in the artifact formats the server
// reads, so the viewer can be tried without upstream activations.
package demo

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/bubblemap/server/internal/activation"
	"github.com/bubblemap/server/internal/bubble"
	"github.com/bubblemap/server/internal/data/artifacts"
)

// Options controls the generated dataset.
type Options struct {
	Features int
	Examples int
	Seed     int64
	// Dim is the size of the latent feature vectors projected to 2D.
	Dim int
	// Spread is the half-width of the coordinate square.
	Spread float64
	// Aggregate must match the server's aggregation so coordinates are written
	// in bubble order.
	Aggregate bubble.Options
}

// DefaultOptions returns a dataset large enough to survive the default aggregation.
func DefaultOptions() Options {
	return Options{
		Features:  400,
		Examples:  2000,
		Seed:      1,
		Dim:       16,
		Spread:    20,
		Aggregate: bubble.DefaultOptions(),
	}
}

// Result summarizes what Generate wrote.
type Result struct {
	Features int
	Examples int
	Nonzeros int
	Labels   int
	Bubbles  int
}

var topics = []string{
	"cooking and recipes",
	"python exceptions",
	"football tactics",
	"tax filing deadlines",
	"houseplant care",
	"jazz history",
	"linear algebra",
	"travel visas",
	"sleep hygiene",
	"kubernetes networking",
	"medieval castles",
	"marathon training",
	"coffee brewing",
	"quantum computing basics",
	"job interview tips",
	"climate policy",
	"dog training",
	"sql query tuning",
	"budget travel",
	"renaissance painting",
	"electric vehicles",
	"baking bread at home",
	"chess openings",
	"personal finance for students",
}

var templates = []string{
	"How do I get started with %s?",
	"What is the most common mistake in %s?",
	"Can you explain %s to a beginner?",
	"Why is %s so hard?",
	"Best resources for %s?",
	"Is there a quick guide to %s?",
}

// Generate writes a synthetic dataset to the given paths.
func Generate(p artifacts.Paths, opts Options) (Result, error) {
	if opts.Features < 2 || opts.Examples < 1 {
		return Result{}, fmt.Errorf("need at least 2 features and 1 example, got %d and %d", opts.Features, opts.Examples)
	}
	if opts.Dim < 2 {
		return Result{}, fmt.Errorf("latent dimension must be at least 2, got %d", opts.Dim)
	}

	rng := rand.New(rand.NewSource(opts.Seed))

	featureTopic := make([]int, opts.Features)
	popularity := make([]float64, opts.Features)
	labels := make(map[int]string)
	for f := range featureTopic {
		featureTopic[f] = rng.Intn(len(topics))
		// Skewed so a few features dominate, as in real dictionaries.
		popularity[f] = math.Pow(rng.Float64(), 2) * 0.25
		if rng.Float64() < 0.85 {
			labels[f] = topics[featureTopic[f]]
		}
	}
	// The largest labeled index bounds the counted range, so label the last feature.
	labels[opts.Features-1] = topics[featureTopic[opts.Features-1]]

	texts := make([]string, opts.Examples)
	indptr := make([]int, 1, opts.Examples+1)
	var indices []int
	var data []float64
	for r := range texts {
		topic := rng.Intn(len(topics))
		texts[r] = fmt.Sprintf(templates[rng.Intn(len(templates))], topics[topic])

		for f := 0; f < opts.Features; f++ {
			p := popularity[f]
			if featureTopic[f] == topic {
				p = math.Min(1, p*3)
			}
			if rng.Float64() >= p {
				continue
			}
			v := 0.02 + rng.Float64()
			indices = append(indices, f)
			data = append(data, float64(float32(v)))
		}
		indptr = append(indptr, len(indices))
	}

	m, err := activation.FromCSR(opts.Examples, opts.Features, indptr, indices, data)
	if err != nil {
		return Result{}, fmt.Errorf("build activations: %w", err)
	}
	bubbles, err := bubble.Aggregate(m, labels, bubble.MapTexts(indexTexts(texts)), opts.Aggregate)
	if err != nil {
		return Result{}, fmt.Errorf("aggregate: %w", err)
	}

	coords, features := bubbleCoords(bubbles, featureVectors(rng, featureTopic, opts.Dim), opts.Spread)

	if err := artifacts.WriteTexts(p.Questions, texts); err != nil {
		return Result{}, err
	}
	if err := artifacts.WriteLabels(p.Labels, labels); err != nil {
		return Result{}, err
	}
	if err := artifacts.WriteActivations(p.Activations, opts.Examples, opts.Features, indptr, indices, data); err != nil {
		return Result{}, err
	}
	if err := artifacts.WriteCoords(p.Coords, coords, features); err != nil {
		return Result{}, err
	}

	return Result{
		Features: opts.Features,
		Examples: opts.Examples,
		Nonzeros: len(data),
		Labels:   len(labels),
		Bubbles:  len(bubbles),
	}, nil
}

func indexTexts(texts []string) map[int]string {
	out := make(map[int]string, len(texts))
	for i, t := range texts {
		out[i] = t
	}
	return out
}

// featureVectors places every feature near the centroid of its topic.
func featureVectors(rng *rand.Rand, featureTopic []int, dim int) [][]float64 {
	centroids := make([][]float64, len(topics))
	for i := range centroids {
		centroids[i] = make([]float64, dim)
		for j := range centroids[i] {
			centroids[i][j] = rng.NormFloat64() * 3
		}
	}

	vecs := make([][]float64, len(featureTopic))
	for f, topic := range featureTopic {
		vecs[f] = make([]float64, dim)
		for j := range vecs[f] {
			vecs[f][j] = centroids[topic][j] + rng.NormFloat64()*0.5
		}
	}
	return vecs
}

// bubbleCoords projects the vectors of the bubbles' features and returns the
// coordinates in bubble order together with their feature indices.
func bubbleCoords(bubbles []bubble.Bubble, vecs [][]float64, spread float64) ([][2]float64, []int) {
	features := make([]int, len(bubbles))
	rows := make([][]float64, len(bubbles))
	for i, b := range bubbles {
		features[i] = b.Feature
		rows[i] = vecs[b.Feature]
	}
	return scaleTo(Project(rows), spread), features
}

// Project reduces vectors to their first two principal components.
// Fewer than two vectors, or a failed factorization, project to the origin.
func Project(vectors [][]float64) [][2]float64 {
	out := make([][2]float64, len(vectors))
	if len(vectors) < 2 {
		return out
	}

	n, dim := len(vectors), len(vectors[0])
	if dim < 2 {
		return out
	}
	X := mat.NewDense(n, dim, nil)
	for i, v := range vectors {
		X.SetRow(i, v)
	}

	for j := 0; j < dim; j++ {
		col := mat.Col(nil, j, X)
		mean := stat.Mean(col, nil)
		for i := 0; i < n; i++ {
			X.Set(i, j, X.At(i, j)-mean)
		}
	}

	var svd mat.SVD
	if ok := svd.Factorize(X, mat.SVDThin); !ok {
		return out
	}
	var v mat.Dense
	svd.VTo(&v)
	if _, c := v.Dims(); c < 2 {
		return out
	}

	var projected mat.Dense
	projected.Mul(X, v.Slice(0, dim, 0, 2))
	for i := range out {
		out[i] = [2]float64{projected.At(i, 0), projected.At(i, 1)}
	}
	return out
}

// scaleTo fits the points into [-spread, spread] on both axes, keeping aspect ratio.
func scaleTo(points [][2]float64, spread float64) [][2]float64 {
	maxAbs := 0.0
	for _, p := range points {
		maxAbs = math.Max(maxAbs, math.Max(math.Abs(p[0]), math.Abs(p[1])))
	}
	if maxAbs == 0 {
		return points
	}
	k := spread / maxAbs
	out := make([][2]float64, len(points))
	for i, p := range points {
		out[i] = [2]float64{p[0] * k, p[1] * k}
	}
	return out
}
