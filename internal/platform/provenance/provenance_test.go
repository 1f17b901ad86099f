package provenance

import (
	"testing"
	"time"
)

func TestComputeIntegritySHA256_Deterministic(t *testing.T) {
	occurredAt := time.Unix(1700000000, 0).UTC()
	edge := Edge{
		OccurredAt:  occurredAt,
		Actor:       "alice",
		RequestID:   "req-123",
		SubjectType: "validation",
		SubjectID:   "val-1",
		Predicate:   "validated",
		ObjectType:  "snapshot",
		ObjectID:    "snap-1",
	}
	metadataJSON := []byte(`{"a":1,"b":"x"}`)

	a, err := ComputeIntegritySHA256(edge, metadataJSON)
	if err != nil {
		t.Fatalf("ComputeIntegritySHA256() err=%v", err)
	}
	b, err := ComputeIntegritySHA256(edge, metadataJSON)
	if err != nil {
		t.Fatalf("ComputeIntegritySHA256() err=%v", err)
	}
	if a != b {
		t.Fatalf("integrity mismatch: %q vs %q", a, b)
	}
}

func TestComputeIntegritySHA256_ChangesOnMetadata(t *testing.T) {
	occurredAt := time.Unix(1700000000, 0).UTC()
	edge := Edge{
		OccurredAt:  occurredAt,
		Actor:       "alice",
		SubjectType: "snapshot",
		SubjectID:   "snap-1",
		Predicate:   "snapshot_of",
		ObjectType:  "dataset",
		ObjectID:    "ds-1",
	}

	a, err := ComputeIntegritySHA256(edge, []byte(`{"a":1}`))
	if err != nil {
		t.Fatalf("ComputeIntegritySHA256() err=%v", err)
	}
	b, err := ComputeIntegritySHA256(edge, []byte(`{"a":2}`))
	if err != nil {
		t.Fatalf("ComputeIntegritySHA256() err=%v", err)
	}
	if a == b {
		t.Fatalf("expected integrity to differ")
	}
}

func TestEdgeValidate(t *testing.T) {
	edge := Edge{
		OccurredAt:  time.Now().UTC(),
		Actor:       "alice",
		SubjectType: "snapshot",
		SubjectID:   "snap-1",
		Predicate:   "snapshot_of",
		ObjectType:  "dataset",
		ObjectID:    "ds-1",
	}
	if err := edge.Validate(); err != nil {
		t.Fatalf("Validate() err=%v", err)
	}

	missing := edge
	missing.Predicate = " "
	if err := missing.Validate(); err == nil {
		t.Fatalf("Validate() expected error for blank predicate")
	}
}
