package learning

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"learning-backend/internal/datasets"
	"learning-backend/pkg/models"
)

// UnsupervisedStrategy runs k-means clustering plus a principal component
// analysis of the training features. It produces no accuracy figure.
type UnsupervisedStrategy struct {
	Rounds      int
	MaxClusters int
	Components  int

	Seed int64
}

func (s *UnsupervisedStrategy) Mode() models.LearningMode { return models.Unsupervised }

func (s *UnsupervisedStrategy) Run(ctx context.Context, split *datasets.Split, params Params) (*Artifact, error) {
	if len(split.TrainX) == 0 {
		return nil, fmt.Errorf("dataset '%s' has no training samples to cluster", split.Info.Name)
	}

	seed := s.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	k := s.MaxClusters
	if split.Info.Classes < k {
		k = split.Info.Classes
	}
	if len(split.TrainX) < k {
		k = len(split.TrainX)
	}

	centroids, err := kmeans(ctx, split.TrainX, k, s.Rounds, rng)
	if err != nil {
		return nil, err
	}

	components := s.Components
	if split.Info.Features < components {
		components = split.Info.Features
	}
	axes, err := principalComponents(ctx, split.TrainX, components)
	if err != nil {
		return nil, err
	}

	slog.Info("unsupervised learning finished",
		"dataset", split.Info.Name, "clusters", k, "components", components)

	return &Artifact{
		Kind:       ArtifactClustering,
		Centroids:  centroids,
		Components: axes,
	}, nil
}

// kmeans iterates assign-to-nearest-centroid / recompute-centroid-as-mean for
// a fixed number of rounds.
func kmeans(ctx context.Context, x [][]float64, k, rounds int, rng *rand.Rand) ([][]float64, error) {
	dims := len(x[0])

	centroids := make([][]float64, k)
	for i, idx := range rng.Perm(len(x))[:k] {
		centroids[i] = append([]float64(nil), x[idx]...)
	}

	assignments := make([]int, len(x))
	for round := 0; round < rounds; round++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		for i, xi := range x {
			best, bestDist := 0, math.MaxFloat64
			for c, centroid := range centroids {
				var dist float64
				for j, v := range xi {
					d := v - centroid[j]
					dist += d * d
				}
				if dist < bestDist {
					best, bestDist = c, dist
				}
			}
			assignments[i] = best
		}

		counts := make([]int, k)
		sums := make([][]float64, k)
		for c := range sums {
			sums[c] = make([]float64, dims)
		}
		for i, xi := range x {
			c := assignments[i]
			counts[c]++
			for j, v := range xi {
				sums[c][j] += v
			}
		}
		for c := range centroids {
			if counts[c] == 0 {
				continue // empty cluster keeps its previous centroid
			}
			for j := range centroids[c] {
				centroids[c][j] = sums[c][j] / float64(counts[c])
			}
		}
	}

	return centroids, nil
}

// principalComponents returns the top k principal axes of the centered data,
// one row per axis, sorted by descending eigenvalue. The eigen decomposition
// of the covariance matrix uses cyclic Jacobi rotations, which suffice for the
// symmetric matrices produced here.
func principalComponents(ctx context.Context, x [][]float64, k int) ([][]float64, error) {
	if len(x) == 0 {
		return nil, fmt.Errorf("no samples to decompose")
	}
	n, d := len(x), len(x[0])

	mean := make([]float64, d)
	for _, xi := range x {
		for j, v := range xi {
			mean[j] += v
		}
	}
	for j := range mean {
		mean[j] /= float64(n)
	}

	centered := make([][]float64, n)
	for i, xi := range x {
		row := make([]float64, d)
		for j, v := range xi {
			row[j] = v - mean[j]
		}
		centered[i] = row
	}

	cov := make([][]float64, d)
	for i := range cov {
		cov[i] = make([]float64, d)
	}
	denom := float64(n - 1)
	if n <= 1 {
		denom = 1
	}
	for _, row := range centered {
		for i, vi := range row {
			if vi == 0 {
				continue
			}
			ci := cov[i]
			for j := i; j < d; j++ {
				ci[j] += vi * row[j] / denom
			}
		}
	}
	for i := 0; i < d; i++ {
		for j := 0; j < i; j++ {
			cov[i][j] = cov[j][i]
		}
	}

	values, vectors, err := jacobiEigen(ctx, cov)
	if err != nil {
		return nil, err
	}

	order := make([]int, d)
	for i := range order {
		order[i] = i
	}
	for i := 0; i < len(order); i++ {
		for j := i + 1; j < len(order); j++ {
			if values[order[j]] > values[order[i]] {
				order[i], order[j] = order[j], order[i]
			}
		}
	}

	axes := make([][]float64, k)
	for c := 0; c < k; c++ {
		axis := make([]float64, d)
		col := order[c]
		for r := 0; r < d; r++ {
			axis[r] = vectors[r][col]
		}
		axes[c] = axis
	}
	return axes, nil
}

const (
	jacobiSweeps    = 30
	jacobiTolerance = 1e-10
)

func jacobiEigen(ctx context.Context, a [][]float64) ([]float64, [][]float64, error) {
	d := len(a)

	// Work on a copy; a is rotated in place below.
	m := make([][]float64, d)
	for i := range m {
		m[i] = append([]float64(nil), a[i]...)
	}

	vectors := make([][]float64, d)
	for i := range vectors {
		vectors[i] = make([]float64, d)
		vectors[i][i] = 1
	}

	for sweep := 0; sweep < jacobiSweeps; sweep++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		var off float64
		for i := 0; i < d; i++ {
			for j := i + 1; j < d; j++ {
				off += m[i][j] * m[i][j]
			}
		}
		if off < jacobiTolerance {
			break
		}

		for p := 0; p < d; p++ {
			for q := p + 1; q < d; q++ {
				if math.Abs(m[p][q]) < jacobiTolerance {
					continue
				}

				theta := (m[q][q] - m[p][p]) / (2 * m[p][q])
				t := 1 / (math.Abs(theta) + math.Sqrt(theta*theta+1))
				if theta < 0 {
					t = -t
				}
				c := 1 / math.Sqrt(t*t+1)
				s := t * c

				for i := 0; i < d; i++ {
					mip, miq := m[i][p], m[i][q]
					m[i][p] = c*mip - s*miq
					m[i][q] = s*mip + c*miq
				}
				for j := 0; j < d; j++ {
					mpj, mqj := m[p][j], m[q][j]
					m[p][j] = c*mpj - s*mqj
					m[q][j] = s*mpj + c*mqj
				}
				for i := 0; i < d; i++ {
					vip, viq := vectors[i][p], vectors[i][q]
					vectors[i][p] = c*vip - s*viq
					vectors[i][q] = s*vip + c*viq
				}
			}
		}
	}

	values := make([]float64, d)
	for i := 0; i < d; i++ {
		values[i] = m[i][i]
	}
	return values, vectors, nil
}
