// Package provenance records tamper-evident edges between resources, such as
// a snapshot captured from a dataset or a validation run over a snapshot.
package provenance

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

type Edge struct {
	OccurredAt  time.Time
	Actor       string
	RequestID   string
	SubjectType string
	SubjectID   string
	Predicate   string
	ObjectType  string
	ObjectID    string
	Metadata    any
}

type QueryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (e Edge) Validate() error {
	if e.OccurredAt.IsZero() {
		return errors.New("OccurredAt is required")
	}
	if strings.TrimSpace(e.Actor) == "" {
		return errors.New("Actor is required")
	}
	if strings.TrimSpace(e.SubjectType) == "" {
		return errors.New("SubjectType is required")
	}
	if strings.TrimSpace(e.SubjectID) == "" {
		return errors.New("SubjectID is required")
	}
	if strings.TrimSpace(e.Predicate) == "" {
		return errors.New("Predicate is required")
	}
	if strings.TrimSpace(e.ObjectType) == "" {
		return errors.New("ObjectType is required")
	}
	if strings.TrimSpace(e.ObjectID) == "" {
		return errors.New("ObjectID is required")
	}
	return nil
}

func Insert(ctx context.Context, q QueryRower, edge Edge) (int64, error) {
	if q == nil {
		return 0, errors.New("queryer is required")
	}
	if edge.OccurredAt.IsZero() {
		edge.OccurredAt = time.Now().UTC()
	}
	if err := edge.Validate(); err != nil {
		return 0, err
	}

	metadata := edge.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return 0, fmt.Errorf("marshal metadata: %w", err)
	}

	integrity, err := ComputeIntegritySHA256(edge, metadataJSON)
	if err != nil {
		return 0, err
	}

	var requestID sql.NullString
	if strings.TrimSpace(edge.RequestID) != "" {
		requestID = sql.NullString{String: strings.TrimSpace(edge.RequestID), Valid: true}
	}

	var id int64
	err = q.QueryRowContext(
		ctx,
		`INSERT INTO provenance_edges (
			occurred_at,
			actor,
			request_id,
			subject_type,
			subject_id,
			predicate,
			object_type,
			object_id,
			metadata,
			integrity_sha256
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING edge_id`,
		edge.OccurredAt.UTC(),
		strings.TrimSpace(edge.Actor),
		requestID,
		strings.TrimSpace(edge.SubjectType),
		strings.TrimSpace(edge.SubjectID),
		strings.TrimSpace(edge.Predicate),
		strings.TrimSpace(edge.ObjectType),
		strings.TrimSpace(edge.ObjectID),
		metadataJSON,
		integrity,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert provenance edge: %w", err)
	}
	return id, nil
}

func ComputeIntegritySHA256(edge Edge, metadataJSON []byte) (string, error) {
	type integrityInput struct {
		OccurredAt  time.Time       `json:"occurred_at"`
		Actor       string          `json:"actor"`
		RequestID   string          `json:"request_id,omitempty"`
		SubjectType string          `json:"subject_type"`
		SubjectID   string          `json:"subject_id"`
		Predicate   string          `json:"predicate"`
		ObjectType  string          `json:"object_type"`
		ObjectID    string          `json:"object_id"`
		Metadata    json.RawMessage `json:"metadata"`
	}

	in := integrityInput{
		OccurredAt:  edge.OccurredAt.UTC(),
		Actor:       strings.TrimSpace(edge.Actor),
		RequestID:   strings.TrimSpace(edge.RequestID),
		SubjectType: strings.TrimSpace(edge.SubjectType),
		SubjectID:   strings.TrimSpace(edge.SubjectID),
		Predicate:   strings.TrimSpace(edge.Predicate),
		ObjectType:  strings.TrimSpace(edge.ObjectType),
		ObjectID:    strings.TrimSpace(edge.ObjectID),
		Metadata:    metadataJSON,
	}

	blob, err := json.Marshal(in)
	if err != nil {
		return "", fmt.Errorf("marshal integrity: %w", err)
	}
	sum := sha256.Sum256(blob)
	return hex.EncodeToString(sum[:]), nil
}
