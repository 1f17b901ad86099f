package main

import (
	"bytes"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/minio/minio-go/v7"
	"github.com/neurotab-labs/neurotab-go/internal/platform/auditlog"
	"github.com/neurotab-labs/neurotab-go/internal/platform/auth"
	"github.com/neurotab-labs/neurotab-go/internal/platform/objectstore"
	"github.com/neurotab-labs/neurotab-go/internal/platform/provenance"
	"github.com/neurotab-labs/neurotab-go/internal/severity"
)

type validatorAPI struct {
	logger   *slog.Logger
	db       *sql.DB
	store    *minio.Client
	storeCfg objectstore.Config
}

func newValidatorAPI(logger *slog.Logger, db *sql.DB, store *minio.Client, storeCfg objectstore.Config) *validatorAPI {
	return &validatorAPI{
		logger:   logger,
		db:       db,
		store:    store,
		storeCfg: storeCfg,
	}
}

func (api *validatorAPI) register(mux *http.ServeMux) {
	mux.HandleFunc("GET /profiles", api.handleListProfiles)
	mux.HandleFunc("POST /profiles", api.handleCreateProfile)
	mux.HandleFunc("GET /profiles/{profile_id}", api.handleGetProfile)

	mux.HandleFunc("POST /validations", api.handleCreateValidation)
	mux.HandleFunc("GET /validations", api.handleListValidations)
	mux.HandleFunc("GET /validations/{validation_id}", api.handleGetValidation)

	mux.HandleFunc("GET /gates/snapshots/{snapshot_id}", api.handleGateStatus)
}

type severityProfile struct {
	ProfileID   string    `json:"profile_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Spec        string    `json:"spec"`
	CreatedAt   time.Time `json:"created_at"`
	CreatedBy   string    `json:"created_by"`
}

type createProfileRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Spec        string `json:"spec"`
}

func (api *validatorAPI) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok || strings.TrimSpace(identity.Subject) == "" {
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}

	var req createProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		api.writeError(w, r, http.StatusBadRequest, "name_required")
		return
	}
	description := strings.TrimSpace(req.Description)
	if strings.TrimSpace(req.Spec) == "" {
		api.writeError(w, r, http.StatusBadRequest, "spec_required")
		return
	}

	profile, err := severity.ParseProfile([]byte(req.Spec))
	if err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_spec")
		return
	}

	now := time.Now().UTC()
	profileID := uuid.NewString()

	type integrityInput struct {
		ProfileID   string    `json:"profile_id"`
		Name        string    `json:"name"`
		Description string    `json:"description,omitempty"`
		Spec        string    `json:"spec"`
		CreatedAt   time.Time `json:"created_at"`
		CreatedBy   string    `json:"created_by"`
	}
	integrity, err := integritySHA256(integrityInput{
		ProfileID:   profileID,
		Name:        name,
		Description: description,
		Spec:        req.Spec,
		CreatedAt:   now,
		CreatedBy:   identity.Subject,
	})
	if err != nil {
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}

	tx, err := api.db.BeginTx(r.Context(), nil)
	if err != nil {
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(
		r.Context(),
		`INSERT INTO profiles (
			profile_id,
			name,
			description,
			spec,
			created_at,
			created_by,
			integrity_sha256
		) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		profileID,
		name,
		nullString(description),
		req.Spec,
		now,
		identity.Subject,
		integrity,
	)
	if err != nil {
		if isUniqueViolation(err) {
			api.writeError(w, r, http.StatusConflict, "profile_name_exists")
			return
		}
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}

	_, err = auditlog.Insert(r.Context(), tx, auditlog.Event{
		OccurredAt:   now,
		Actor:        identity.Subject,
		Action:       "profile.create",
		ResourceType: "profile",
		ResourceID:   profileID,
		RequestID:    r.Header.Get("X-Request-Id"),
		IP:           requestIP(r.RemoteAddr),
		UserAgent:    r.UserAgent(),
		Payload: map[string]any{
			"service":         "validator",
			"profile_id":      profileID,
			"name":            name,
			"description":     description,
			"spec_schema":     profile.Schema,
			"overrides_count": len(profile.Overrides),
		},
	})
	if err != nil {
		api.writeError(w, r, http.StatusInternalServerError, "audit_failed")
		return
	}

	if err := tx.Commit(); err != nil {
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}

	w.Header().Set("Location", "/profiles/"+profileID)
	api.writeJSON(w, http.StatusCreated, severityProfile{
		ProfileID:   profileID,
		Name:        name,
		Description: description,
		Spec:        req.Spec,
		CreatedAt:   now,
		CreatedBy:   identity.Subject,
	})
}

func (api *validatorAPI) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	limit := clampInt(parseIntQuery(r, "limit", 100), 1, 500)

	rows, err := api.db.QueryContext(
		r.Context(),
		`SELECT profile_id, name, description, spec, created_at, created_by
		 FROM profiles
		 ORDER BY created_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}
	defer rows.Close()

	out := make([]severityProfile, 0, limit)
	for rows.Next() {
		var (
			profileID   string
			name        string
			description sql.NullString
			spec        string
			createdAt   time.Time
			createdBy   string
		)
		if err := rows.Scan(&profileID, &name, &description, &spec, &createdAt, &createdBy); err != nil {
			api.writeError(w, r, http.StatusInternalServerError, "internal_error")
			return
		}
		out = append(out, severityProfile{
			ProfileID:   profileID,
			Name:        name,
			Description: description.String,
			Spec:        spec,
			CreatedAt:   createdAt,
			CreatedBy:   createdBy,
		})
	}
	if err := rows.Err(); err != nil {
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}

	api.writeJSON(w, http.StatusOK, map[string]any{"profiles": out})
}

func (api *validatorAPI) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	profileID := strings.TrimSpace(r.PathValue("profile_id"))
	if profileID == "" {
		api.writeError(w, r, http.StatusBadRequest, "profile_id_required")
		return
	}

	var (
		name        string
		description sql.NullString
		spec        string
		createdAt   time.Time
		createdBy   string
	)
	err := api.db.QueryRowContext(
		r.Context(),
		`SELECT name, description, spec, created_at, created_by
		 FROM profiles
		 WHERE profile_id = $1`,
		profileID,
	).Scan(&name, &description, &spec, &createdAt, &createdBy)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			api.writeError(w, r, http.StatusNotFound, "not_found")
			return
		}
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}

	api.writeJSON(w, http.StatusOK, severityProfile{
		ProfileID:   profileID,
		Name:        name,
		Description: description.String,
		Spec:        spec,
		CreatedAt:   createdAt,
		CreatedBy:   createdBy,
	})
}

type createValidationRequest struct {
	SnapshotID string `json:"snapshot_id"`
	ProfileID  string `json:"profile_id,omitempty"`
}

type validation struct {
	ValidationID    string          `json:"validation_id"`
	SnapshotID      string          `json:"snapshot_id"`
	ProfileID       string          `json:"profile_id,omitempty"`
	Status          string          `json:"status"`
	ValidatedAt     time.Time       `json:"validated_at"`
	ValidatedBy     string          `json:"validated_by"`
	Summary         json.RawMessage `json:"summary"`
	ReportObjectKey string          `json:"report_object_key"`
	ReportSHA256    string          `json:"report_sha256"`
	ReportSizeBytes int64           `json:"report_size_bytes"`
}

func (api *validatorAPI) handleCreateValidation(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok || strings.TrimSpace(identity.Subject) == "" {
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}

	var req createValidationRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}

	snapshotID := strings.TrimSpace(req.SnapshotID)
	if snapshotID == "" {
		api.writeError(w, r, http.StatusBadRequest, "snapshot_id_required")
		return
	}

	var (
		datasetID     string
		ordinal       int64
		contentSHA256 string
		objectKey     string
		sizeBytes     int64
		fileCount     int
		tabularCount  int
		inventoryRaw  []byte
	)
	err := api.db.QueryRowContext(
		r.Context(),
		`SELECT dataset_id, ordinal, content_sha256, object_key, size_bytes, file_count, tabular_count, file_inventory
		 FROM snapshots
		 WHERE snapshot_id = $1`,
		snapshotID,
	).Scan(&datasetID, &ordinal, &contentSHA256, &objectKey, &sizeBytes, &fileCount, &tabularCount, &inventoryRaw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			api.writeError(w, r, http.StatusNotFound, "not_found")
			return
		}
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}

	var inventory []string
	if err := json.Unmarshal(normalizeJSONArray(inventoryRaw), &inventory); err != nil {
		api.writeError(w, r, http.StatusInternalServerError, "invalid_inventory")
		return
	}

	profileID := strings.TrimSpace(req.ProfileID)
	profileName := ""
	profileYAML := ""
	profile := severity.DefaultProfile()
	if profileID != "" {
		var spec string
		err = api.db.QueryRowContext(
			r.Context(),
			`SELECT name, spec
			 FROM profiles
			 WHERE profile_id = $1`,
			profileID,
		).Scan(&profileName, &spec)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				api.writeError(w, r, http.StatusNotFound, "profile_not_found")
				return
			}
			api.writeError(w, r, http.StatusInternalServerError, "internal_error")
			return
		}
		profile, err = severity.ParseProfile([]byte(spec))
		if err != nil {
			api.writeError(w, r, http.StatusInternalServerError, "invalid_profile_spec")
			return
		}
		profileYAML = spec
	}

	now := time.Now().UTC()
	validationID := uuid.NewString()

	inputs := validationInputs{
		Snapshot: snapshotInfo{
			SnapshotID:    snapshotID,
			DatasetID:     datasetID,
			Ordinal:       ordinal,
			ObjectKey:     objectKey,
			ContentSHA256: contentSHA256,
			SizeBytes:     sizeBytes,
			FileCount:     fileCount,
			TabularCount:  tabularCount,
		},
		ProfileID:   profileID,
		ProfileName: profileName,
		Profile:     profile,
		ProfileYAML: profileYAML,
		Inventory:   inventory,
	}
	report := validate(r.Context(), now, identity.Subject, validationID, inputs, func(ctx context.Context, key string) (io.ReadCloser, error) {
		obj, err := api.store.GetObject(ctx, api.storeCfg.BucketSnapshots, key, minio.GetObjectOptions{})
		if err != nil {
			return nil, err
		}
		if _, err := obj.Stat(); err != nil {
			_ = obj.Close()
			return nil, err
		}
		return obj, nil
	})

	reportBytes, err := json.Marshal(report)
	if err != nil {
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}
	reportObjectKey := "validations/snapshots/" + snapshotID + "/" + validationID + ".json"
	reportSHA := sha256.Sum256(reportBytes)
	reportSHA256 := hex.EncodeToString(reportSHA[:])

	putCtx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	_, err = api.store.PutObject(
		putCtx,
		api.storeCfg.BucketReports,
		reportObjectKey,
		bytes.NewReader(reportBytes),
		int64(len(reportBytes)),
		minio.PutObjectOptions{ContentType: "application/json"},
	)
	cancel()
	if err != nil {
		api.writeError(w, r, http.StatusBadGateway, "report_store_failed")
		return
	}

	summaryJSON, err := json.Marshal(report.Summary)
	if err != nil {
		_ = api.store.RemoveObject(r.Context(), api.storeCfg.BucketReports, reportObjectKey, minio.RemoveObjectOptions{})
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}

	type validationIntegrityInput struct {
		ValidationID    string          `json:"validation_id"`
		SnapshotID      string          `json:"snapshot_id"`
		ProfileID       string          `json:"profile_id,omitempty"`
		Status          string          `json:"status"`
		ValidatedAt     time.Time       `json:"validated_at"`
		ValidatedBy     string          `json:"validated_by"`
		Summary         json.RawMessage `json:"summary"`
		ReportObjectKey string          `json:"report_object_key"`
		ReportSHA256    string          `json:"report_sha256"`
		ReportSizeBytes int64           `json:"report_size_bytes"`
	}
	integrity, err := integritySHA256(validationIntegrityInput{
		ValidationID:    validationID,
		SnapshotID:      snapshotID,
		ProfileID:       profileID,
		Status:          report.Status,
		ValidatedAt:     now,
		ValidatedBy:     identity.Subject,
		Summary:         summaryJSON,
		ReportObjectKey: reportObjectKey,
		ReportSHA256:    reportSHA256,
		ReportSizeBytes: int64(len(reportBytes)),
	})
	if err != nil {
		_ = api.store.RemoveObject(r.Context(), api.storeCfg.BucketReports, reportObjectKey, minio.RemoveObjectOptions{})
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}

	tx, err := api.db.BeginTx(r.Context(), nil)
	if err != nil {
		_ = api.store.RemoveObject(r.Context(), api.storeCfg.BucketReports, reportObjectKey, minio.RemoveObjectOptions{})
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(
		r.Context(),
		`INSERT INTO validations (
			validation_id,
			snapshot_id,
			profile_id,
			status,
			validated_at,
			validated_by,
			summary,
			report_object_key,
			report_sha256,
			report_size_bytes,
			integrity_sha256
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		validationID,
		snapshotID,
		nullString(profileID),
		report.Status,
		now,
		identity.Subject,
		summaryJSON,
		reportObjectKey,
		reportSHA256,
		int64(len(reportBytes)),
		integrity,
	)
	if err != nil {
		_ = api.store.RemoveObject(r.Context(), api.storeCfg.BucketReports, reportObjectKey, minio.RemoveObjectOptions{})
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}

	_, err = auditlog.Insert(r.Context(), tx, auditlog.Event{
		OccurredAt:   now,
		Actor:        identity.Subject,
		Action:       "validation.create",
		ResourceType: "validation",
		ResourceID:   validationID,
		RequestID:    r.Header.Get("X-Request-Id"),
		IP:           requestIP(r.RemoteAddr),
		UserAgent:    r.UserAgent(),
		Payload: map[string]any{
			"service":           "validator",
			"validation_id":     validationID,
			"snapshot_id":       snapshotID,
			"dataset_id":        datasetID,
			"profile_id":        profileID,
			"status":            report.Status,
			"report_object_key": reportObjectKey,
			"report_sha256":     reportSHA256,
		},
	})
	if err != nil {
		_ = api.store.RemoveObject(r.Context(), api.storeCfg.BucketReports, reportObjectKey, minio.RemoveObjectOptions{})
		api.writeError(w, r, http.StatusInternalServerError, "audit_failed")
		return
	}

	_, err = provenance.Insert(r.Context(), tx, provenance.Edge{
		OccurredAt:  now,
		Actor:       identity.Subject,
		RequestID:   r.Header.Get("X-Request-Id"),
		SubjectType: "validation",
		SubjectID:   validationID,
		Predicate:   "validated",
		ObjectType:  "snapshot",
		ObjectID:    snapshotID,
		Metadata: map[string]any{
			"status":     report.Status,
			"profile_id": profileID,
		},
	})
	if err != nil {
		_ = api.store.RemoveObject(r.Context(), api.storeCfg.BucketReports, reportObjectKey, minio.RemoveObjectOptions{})
		api.writeError(w, r, http.StatusInternalServerError, "provenance_failed")
		return
	}

	if err := tx.Commit(); err != nil {
		_ = api.store.RemoveObject(r.Context(), api.storeCfg.BucketReports, reportObjectKey, minio.RemoveObjectOptions{})
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}

	w.Header().Set("Location", "/validations/"+validationID)
	api.writeJSON(w, http.StatusCreated, validation{
		ValidationID:    validationID,
		SnapshotID:      snapshotID,
		ProfileID:       profileID,
		Status:          report.Status,
		ValidatedAt:     now,
		ValidatedBy:     identity.Subject,
		Summary:         summaryJSON,
		ReportObjectKey: reportObjectKey,
		ReportSHA256:    reportSHA256,
		ReportSizeBytes: int64(len(reportBytes)),
	})
}

func (api *validatorAPI) handleListValidations(w http.ResponseWriter, r *http.Request) {
	snapshotID := strings.TrimSpace(r.URL.Query().Get("snapshot_id"))
	if snapshotID == "" {
		api.writeError(w, r, http.StatusBadRequest, "snapshot_id_required")
		return
	}
	limit := clampInt(parseIntQuery(r, "limit", 100), 1, 500)

	rows, err := api.db.QueryContext(
		r.Context(),
		`SELECT validation_id, profile_id, status, validated_at, validated_by, summary, report_object_key, report_sha256, report_size_bytes
		 FROM validations
		 WHERE snapshot_id = $1
		 ORDER BY validated_at DESC
		 LIMIT $2`,
		snapshotID,
		limit,
	)
	if err != nil {
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}
	defer rows.Close()

	out := make([]validation, 0, limit)
	for rows.Next() {
		var (
			validationID    string
			profileID       sql.NullString
			status          string
			validatedAt     time.Time
			validatedBy     string
			summaryRaw      []byte
			reportObjectKey string
			reportSHA256    string
			reportSizeBytes int64
		)
		if err := rows.Scan(&validationID, &profileID, &status, &validatedAt, &validatedBy, &summaryRaw, &reportObjectKey, &reportSHA256, &reportSizeBytes); err != nil {
			api.writeError(w, r, http.StatusInternalServerError, "internal_error")
			return
		}
		out = append(out, validation{
			ValidationID:    validationID,
			SnapshotID:      snapshotID,
			ProfileID:       profileID.String,
			Status:          status,
			ValidatedAt:     validatedAt,
			ValidatedBy:     validatedBy,
			Summary:         normalizeJSON(summaryRaw),
			ReportObjectKey: reportObjectKey,
			ReportSHA256:    reportSHA256,
			ReportSizeBytes: reportSizeBytes,
		})
	}
	if err := rows.Err(); err != nil {
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}

	api.writeJSON(w, http.StatusOK, map[string]any{"validations": out})
}

func (api *validatorAPI) handleGetValidation(w http.ResponseWriter, r *http.Request) {
	validationID := strings.TrimSpace(r.PathValue("validation_id"))
	if validationID == "" {
		api.writeError(w, r, http.StatusBadRequest, "validation_id_required")
		return
	}

	var (
		snapshotID      string
		profileID       sql.NullString
		status          string
		validatedAt     time.Time
		validatedBy     string
		summaryRaw      []byte
		reportObjectKey string
		reportSHA256    string
		reportSizeBytes int64
	)
	err := api.db.QueryRowContext(
		r.Context(),
		`SELECT snapshot_id, profile_id, status, validated_at, validated_by, summary, report_object_key, report_sha256, report_size_bytes
		 FROM validations
		 WHERE validation_id = $1`,
		validationID,
	).Scan(&snapshotID, &profileID, &status, &validatedAt, &validatedBy, &summaryRaw, &reportObjectKey, &reportSHA256, &reportSizeBytes)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			api.writeError(w, r, http.StatusNotFound, "not_found")
			return
		}
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}

	api.writeJSON(w, http.StatusOK, validation{
		ValidationID:    validationID,
		SnapshotID:      snapshotID,
		ProfileID:       profileID.String,
		Status:          status,
		ValidatedAt:     validatedAt,
		ValidatedBy:     validatedBy,
		Summary:         normalizeJSON(summaryRaw),
		ReportObjectKey: reportObjectKey,
		ReportSHA256:    reportSHA256,
		ReportSizeBytes: reportSizeBytes,
	})
}

type gateStatus struct {
	SnapshotID   string    `json:"snapshot_id"`
	Status       string    `json:"status"`
	ValidationID string    `json:"validation_id,omitempty"`
	ValidatedAt  time.Time `json:"validated_at,omitempty"`
}

func (api *validatorAPI) handleGateStatus(w http.ResponseWriter, r *http.Request) {
	snapshotID := strings.TrimSpace(r.PathValue("snapshot_id"))
	if snapshotID == "" {
		api.writeError(w, r, http.StatusBadRequest, "snapshot_id_required")
		return
	}

	var exists bool
	if err := api.db.QueryRowContext(
		r.Context(),
		`SELECT EXISTS (SELECT 1 FROM snapshots WHERE snapshot_id = $1)`,
		snapshotID,
	).Scan(&exists); err != nil {
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}
	if !exists {
		api.writeError(w, r, http.StatusNotFound, "not_found")
		return
	}

	var (
		validationID string
		status       string
		validatedAt  time.Time
	)
	err := api.db.QueryRowContext(
		r.Context(),
		`SELECT validation_id, status, validated_at
		 FROM validations
		 WHERE snapshot_id = $1
		 ORDER BY validated_at DESC
		 LIMIT 1`,
		snapshotID,
	).Scan(&validationID, &status, &validatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			api.writeJSON(w, http.StatusOK, gateStatus{
				SnapshotID: snapshotID,
				Status:     "not_validated",
			})
			return
		}
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}

	api.writeJSON(w, http.StatusOK, gateStatus{
		SnapshotID:   snapshotID,
		Status:       status,
		ValidationID: validationID,
		ValidatedAt:  validatedAt,
	})
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 4<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("multiple JSON values")
	}
	return nil
}

func (api *validatorAPI) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(body)
}

func (api *validatorAPI) writeError(w http.ResponseWriter, r *http.Request, status int, code string) {
	api.writeJSON(w, status, map[string]any{
		"error":      code,
		"request_id": r.Header.Get("X-Request-Id"),
	})
}

func integritySHA256(v any) (string, error) {
	encoded, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:]), nil
}

func normalizeJSON(raw []byte) json.RawMessage {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return []byte("{}")
	}
	return raw
}

func normalizeJSONArray(raw []byte) json.RawMessage {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return []byte("[]")
	}
	return raw
}

func requestIP(remoteAddr string) net.IP {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return nil
	}
	return net.ParseIP(host)
}

func parseIntQuery(r *http.Request, key string, def int) int {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return parsed
}

func clampInt(v int, min int, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func nullString(value string) sql.NullString {
	value = strings.TrimSpace(value)
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
