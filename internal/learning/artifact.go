package learning

import (
	"encoding/json"
	"fmt"
)

type ArtifactKind string

const (
	ArtifactNetwork    ArtifactKind = "network"
	ArtifactClustering ArtifactKind = "clustering"
	ArtifactQTable     ArtifactKind = "qtable"
)

// Artifact is the self-describing output of a strategy run. The Kind
// discriminator says which payload fields are populated, so a serialized
// artifact round-trips through the object store after a restart.
type Artifact struct {
	Kind ArtifactKind `json:"kind"`

	// Kind == ArtifactNetwork. SourceTaskId is set for transferred networks.
	Network      *Network `json:"network,omitempty"`
	SourceTaskId string   `json:"source_task_id,omitempty"`

	// Kind == ArtifactClustering. Components holds the principal axes, one row
	// per component, sorted by descending eigenvalue.
	Centroids  [][]float64 `json:"centroids,omitempty"`
	Components [][]float64 `json:"components,omitempty"`

	// Kind == ArtifactQTable.
	QTable [][]float64 `json:"q_table,omitempty"`

	// Held-out accuracy in [0,1], nil for strategies that do not produce one.
	Accuracy *float64 `json:"accuracy,omitempty"`
}

func (a *Artifact) Encode() ([]byte, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("failed to encode artifact: %w", err)
	}
	return data, nil
}

func DecodeArtifact(data []byte) (*Artifact, error) {
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to decode artifact: %w", err)
	}
	if a.Kind == "" {
		return nil, fmt.Errorf("artifact is missing kind discriminator")
	}
	return &a, nil
}
