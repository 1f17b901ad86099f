package main

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path"
	"sort"
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
)

type registryAPI struct {
	logger         *slog.Logger
	db             *sql.DB
	store          *minio.Client
	storeCfg       objectstore.Config
	uploadMaxBytes int64
}

func newRegistryAPI(logger *slog.Logger, db *sql.DB, store *minio.Client, storeCfg objectstore.Config) *registryAPI {
	return &registryAPI{
		logger:         logger,
		db:             db,
		store:          store,
		storeCfg:       storeCfg,
		uploadMaxBytes: 250 << 20, // 250 MiB
	}
}

func (api *registryAPI) register(mux *http.ServeMux) {
	mux.HandleFunc("GET /datasets", api.handleListDatasets)
	mux.HandleFunc("POST /datasets", api.handleCreateDataset)
	mux.HandleFunc("GET /datasets/{dataset_id}", api.handleGetDataset)

	mux.HandleFunc("GET /datasets/{dataset_id}/snapshots", api.handleListSnapshots)
	mux.HandleFunc("POST /datasets/{dataset_id}/snapshots/upload", api.handleUploadSnapshot)

	mux.HandleFunc("GET /snapshots/{snapshot_id}", api.handleGetSnapshot)
	mux.HandleFunc("GET /snapshots/{snapshot_id}/download", api.handleDownloadSnapshot)
}

type dataset struct {
	DatasetID   string          `json:"dataset_id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Metadata    json.RawMessage `json:"metadata"`
	CreatedAt   time.Time       `json:"created_at"`
	CreatedBy   string          `json:"created_by"`
}

type snapshot struct {
	SnapshotID    string          `json:"snapshot_id"`
	DatasetID     string          `json:"dataset_id"`
	Ordinal       int64           `json:"ordinal"`
	ContentSHA256 string          `json:"content_sha256"`
	ObjectKey     string          `json:"object_key"`
	SizeBytes     int64           `json:"size_bytes,omitempty"`
	FileCount     int             `json:"file_count"`
	TabularCount  int             `json:"tabular_count"`
	Files         []string        `json:"files,omitempty"`
	Metadata      json.RawMessage `json:"metadata"`
	CreatedAt     time.Time       `json:"created_at"`
	CreatedBy     string          `json:"created_by"`
}

type createDatasetRequest struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

func (api *registryAPI) handleCreateDataset(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok || strings.TrimSpace(identity.Subject) == "" {
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}

	var req createDatasetRequest
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

	metadataMap := req.Metadata
	if metadataMap == nil {
		metadataMap = map[string]any{}
	}
	metadataJSON, err := json.Marshal(metadataMap)
	if err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_metadata")
		return
	}

	now := time.Now().UTC()
	datasetID := uuid.NewString()

	type integrityInput struct {
		DatasetID   string          `json:"dataset_id"`
		Name        string          `json:"name"`
		Description string          `json:"description,omitempty"`
		Metadata    json.RawMessage `json:"metadata"`
		CreatedAt   time.Time       `json:"created_at"`
		CreatedBy   string          `json:"created_by"`
	}
	integrity, err := integritySHA256(integrityInput{
		DatasetID:   datasetID,
		Name:        name,
		Description: description,
		Metadata:    metadataJSON,
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
		`INSERT INTO datasets (
			dataset_id,
			name,
			description,
			metadata,
			created_at,
			created_by,
			integrity_sha256
		) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		datasetID,
		name,
		nullString(description),
		metadataJSON,
		now,
		identity.Subject,
		integrity,
	)
	if err != nil {
		if isUniqueViolation(err) {
			api.writeError(w, r, http.StatusConflict, "dataset_name_exists")
			return
		}
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}

	_, err = auditlog.Insert(r.Context(), tx, auditlog.Event{
		OccurredAt:   now,
		Actor:        identity.Subject,
		Action:       "dataset.create",
		ResourceType: "dataset",
		ResourceID:   datasetID,
		RequestID:    r.Header.Get("X-Request-Id"),
		IP:           requestIP(r.RemoteAddr),
		UserAgent:    r.UserAgent(),
		Payload: map[string]any{
			"service":      "registry",
			"dataset_id":   datasetID,
			"name":         name,
			"description":  description,
			"metadata":     metadataMap,
			"created_by":   identity.Subject,
			"request_path": r.URL.Path,
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

	w.Header().Set("Location", "/datasets/"+datasetID)
	api.writeJSON(w, http.StatusCreated, dataset{
		DatasetID:   datasetID,
		Name:        name,
		Description: description,
		Metadata:    metadataJSON,
		CreatedAt:   now,
		CreatedBy:   identity.Subject,
	})
}

func (api *registryAPI) handleListDatasets(w http.ResponseWriter, r *http.Request) {
	limit := clampInt(parseIntQuery(r, "limit", 100), 1, 500)

	rows, err := api.db.QueryContext(
		r.Context(),
		`SELECT dataset_id, name, description, metadata, created_at, created_by
		 FROM datasets
		 ORDER BY created_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}
	defer rows.Close()

	out := make([]dataset, 0, limit)
	for rows.Next() {
		var (
			datasetID   string
			name        string
			description sql.NullString
			metadata    []byte
			createdAt   time.Time
			createdBy   string
		)
		if err := rows.Scan(&datasetID, &name, &description, &metadata, &createdAt, &createdBy); err != nil {
			api.writeError(w, r, http.StatusInternalServerError, "internal_error")
			return
		}
		out = append(out, dataset{
			DatasetID:   datasetID,
			Name:        name,
			Description: description.String,
			Metadata:    normalizeJSON(metadata),
			CreatedAt:   createdAt,
			CreatedBy:   createdBy,
		})
	}
	if err := rows.Err(); err != nil {
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}

	api.writeJSON(w, http.StatusOK, map[string]any{"datasets": out})
}

func (api *registryAPI) handleGetDataset(w http.ResponseWriter, r *http.Request) {
	datasetID := strings.TrimSpace(r.PathValue("dataset_id"))
	if datasetID == "" {
		api.writeError(w, r, http.StatusBadRequest, "dataset_id_required")
		return
	}

	var (
		name        string
		description sql.NullString
		metadata    []byte
		createdAt   time.Time
		createdBy   string
	)
	err := api.db.QueryRowContext(
		r.Context(),
		`SELECT name, description, metadata, created_at, created_by
		 FROM datasets
		 WHERE dataset_id = $1`,
		datasetID,
	).Scan(&name, &description, &metadata, &createdAt, &createdBy)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			api.writeError(w, r, http.StatusNotFound, "not_found")
			return
		}
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}

	api.writeJSON(w, http.StatusOK, dataset{
		DatasetID:   datasetID,
		Name:        name,
		Description: description.String,
		Metadata:    normalizeJSON(metadata),
		CreatedAt:   createdAt,
		CreatedBy:   createdBy,
	})
}

func (api *registryAPI) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	datasetID := strings.TrimSpace(r.PathValue("dataset_id"))
	if datasetID == "" {
		api.writeError(w, r, http.StatusBadRequest, "dataset_id_required")
		return
	}

	limit := clampInt(parseIntQuery(r, "limit", 100), 1, 500)

	rows, err := api.db.QueryContext(
		r.Context(),
		`SELECT snapshot_id, ordinal, content_sha256, object_key, size_bytes, file_count, tabular_count, metadata, created_at, created_by
		 FROM snapshots
		 WHERE dataset_id = $1
		 ORDER BY ordinal DESC
		 LIMIT $2`,
		datasetID,
		limit,
	)
	if err != nil {
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}
	defer rows.Close()

	out := make([]snapshot, 0, limit)
	for rows.Next() {
		var (
			snapshotID    string
			ordinal       int64
			contentSHA256 string
			objectKey     string
			sizeBytes     sql.NullInt64
			fileCount     int
			tabularCount  int
			metadata      []byte
			createdAt     time.Time
			createdBy     string
		)
		if err := rows.Scan(&snapshotID, &ordinal, &contentSHA256, &objectKey, &sizeBytes, &fileCount, &tabularCount, &metadata, &createdAt, &createdBy); err != nil {
			api.writeError(w, r, http.StatusInternalServerError, "internal_error")
			return
		}
		out = append(out, snapshot{
			SnapshotID:    snapshotID,
			DatasetID:     datasetID,
			Ordinal:       ordinal,
			ContentSHA256: contentSHA256,
			ObjectKey:     objectKey,
			SizeBytes:     sizeBytes.Int64,
			FileCount:     fileCount,
			TabularCount:  tabularCount,
			Metadata:      normalizeJSON(metadata),
			CreatedAt:     createdAt,
			CreatedBy:     createdBy,
		})
	}
	if err := rows.Err(); err != nil {
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}

	api.writeJSON(w, http.StatusOK, map[string]any{"snapshots": out})
}

func (api *registryAPI) handleUploadSnapshot(w http.ResponseWriter, r *http.Request) {
	datasetID := strings.TrimSpace(r.PathValue("dataset_id"))
	if datasetID == "" {
		api.writeError(w, r, http.StatusBadRequest, "dataset_id_required")
		return
	}

	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok || strings.TrimSpace(identity.Subject) == "" {
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}

	now := time.Now().UTC()
	snapshotID := uuid.NewString()

	r.Body = http.MaxBytesReader(w, r.Body, api.uploadMaxBytes)
	mr, err := r.MultipartReader()
	if err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_multipart")
		return
	}

	metadataMap := map[string]any{}
	var (
		spool         *os.File
		contentSHA256 string
		sizeBytes     int64
		filename      string
	)
	defer func() {
		if spool != nil {
			name := spool.Name()
			_ = spool.Close()
			_ = os.Remove(name)
		}
	}()

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			api.writeError(w, r, http.StatusBadRequest, "invalid_multipart")
			return
		}
		switch part.FormName() {
		case "metadata":
			raw, err := io.ReadAll(io.LimitReader(part, 1<<20))
			_ = part.Close()
			if err != nil {
				api.writeError(w, r, http.StatusBadRequest, "invalid_metadata")
				return
			}
			raw = bytesTrimSpace(raw)
			if len(raw) == 0 {
				continue
			}
			if err := json.Unmarshal(raw, &metadataMap); err != nil {
				api.writeError(w, r, http.StatusBadRequest, "invalid_metadata")
				return
			}
		case "file":
			if spool != nil {
				_ = part.Close()
				api.writeError(w, r, http.StatusBadRequest, "multiple_files_not_supported")
				return
			}

			filename = sanitizeFilename(part.FileName())
			tmp, err := os.CreateTemp("", "neurotab-snapshot-*.tar.gz")
			if err != nil {
				_ = part.Close()
				api.writeError(w, r, http.StatusInternalServerError, "internal_error")
				return
			}
			spool = tmp

			hasher := sha256.New()
			n, copyErr := io.Copy(io.MultiWriter(tmp, hasher), part)
			_ = part.Close()
			if copyErr != nil {
				api.writeError(w, r, http.StatusBadRequest, "upload_failed")
				return
			}
			contentSHA256 = hex.EncodeToString(hasher.Sum(nil))
			sizeBytes = n
		default:
			_ = part.Close()
		}
	}

	if spool == nil {
		api.writeError(w, r, http.StatusBadRequest, "file_required")
		return
	}

	if _, err := spool.Seek(0, io.SeekStart); err != nil {
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}
	inventory, err := scanSnapshotArchive(spool)
	if err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_archive")
		return
	}
	if len(inventory.Files) == 0 {
		api.writeError(w, r, http.StatusBadRequest, "empty_archive")
		return
	}

	objectKey := fmt.Sprintf("%s/%s/%s", datasetID, snapshotID, filename)
	if _, err := spool.Seek(0, io.SeekStart); err != nil {
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}
	uploadCtx, cancel := context.WithTimeout(r.Context(), 10*time.Minute)
	_, putErr := api.store.PutObject(
		uploadCtx,
		api.storeCfg.BucketSnapshots,
		objectKey,
		spool,
		sizeBytes,
		minio.PutObjectOptions{ContentType: "application/gzip"},
	)
	cancel()
	if putErr != nil {
		api.writeError(w, r, http.StatusBadGateway, "upload_failed")
		return
	}

	metadataMap["filename"] = filename
	metadataMap["content_sha256"] = contentSHA256
	metadataJSON, err := json.Marshal(metadataMap)
	if err != nil {
		_ = api.store.RemoveObject(r.Context(), api.storeCfg.BucketSnapshots, objectKey, minio.RemoveObjectOptions{})
		api.writeError(w, r, http.StatusBadRequest, "invalid_metadata")
		return
	}
	inventoryJSON, err := json.Marshal(inventory.Files)
	if err != nil {
		_ = api.store.RemoveObject(r.Context(), api.storeCfg.BucketSnapshots, objectKey, minio.RemoveObjectOptions{})
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}

	type integrityInput struct {
		SnapshotID    string          `json:"snapshot_id"`
		DatasetID     string          `json:"dataset_id"`
		Ordinal       int64           `json:"ordinal"`
		ContentSHA256 string          `json:"content_sha256"`
		ObjectKey     string          `json:"object_key"`
		SizeBytes     int64           `json:"size_bytes"`
		FileCount     int             `json:"file_count"`
		TabularCount  int             `json:"tabular_count"`
		Metadata      json.RawMessage `json:"metadata"`
		CreatedAt     time.Time       `json:"created_at"`
		CreatedBy     string          `json:"created_by"`
	}

	tx, err := api.db.BeginTx(r.Context(), &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		_ = api.store.RemoveObject(r.Context(), api.storeCfg.BucketSnapshots, objectKey, minio.RemoveObjectOptions{})
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}
	defer func() { _ = tx.Rollback() }()

	var locked string
	if err := tx.QueryRowContext(
		r.Context(),
		`SELECT dataset_id FROM datasets WHERE dataset_id = $1 FOR UPDATE`,
		datasetID,
	).Scan(&locked); err != nil {
		_ = api.store.RemoveObject(r.Context(), api.storeCfg.BucketSnapshots, objectKey, minio.RemoveObjectOptions{})
		if errors.Is(err, sql.ErrNoRows) {
			api.writeError(w, r, http.StatusNotFound, "not_found")
			return
		}
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}

	var ordinal int64
	if err := tx.QueryRowContext(
		r.Context(),
		`SELECT COALESCE(MAX(ordinal), 0) FROM snapshots WHERE dataset_id = $1`,
		datasetID,
	).Scan(&ordinal); err != nil {
		_ = api.store.RemoveObject(r.Context(), api.storeCfg.BucketSnapshots, objectKey, minio.RemoveObjectOptions{})
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}
	ordinal++

	integrity, err := integritySHA256(integrityInput{
		SnapshotID:    snapshotID,
		DatasetID:     datasetID,
		Ordinal:       ordinal,
		ContentSHA256: contentSHA256,
		ObjectKey:     objectKey,
		SizeBytes:     sizeBytes,
		FileCount:     len(inventory.Files),
		TabularCount:  inventory.TabularCount,
		Metadata:      metadataJSON,
		CreatedAt:     now,
		CreatedBy:     identity.Subject,
	})
	if err != nil {
		_ = api.store.RemoveObject(r.Context(), api.storeCfg.BucketSnapshots, objectKey, minio.RemoveObjectOptions{})
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}

	_, err = tx.ExecContext(
		r.Context(),
		`INSERT INTO snapshots (
			snapshot_id,
			dataset_id,
			ordinal,
			content_sha256,
			object_key,
			size_bytes,
			file_count,
			tabular_count,
			file_inventory,
			metadata,
			created_at,
			created_by,
			integrity_sha256
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		snapshotID,
		datasetID,
		ordinal,
		contentSHA256,
		objectKey,
		sizeBytes,
		len(inventory.Files),
		inventory.TabularCount,
		inventoryJSON,
		metadataJSON,
		now,
		identity.Subject,
		integrity,
	)
	if err != nil {
		_ = api.store.RemoveObject(r.Context(), api.storeCfg.BucketSnapshots, objectKey, minio.RemoveObjectOptions{})
		if isUniqueViolation(err) {
			api.writeError(w, r, http.StatusConflict, "duplicate_content")
			return
		}
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}

	_, err = auditlog.Insert(r.Context(), tx, auditlog.Event{
		OccurredAt:   now,
		Actor:        identity.Subject,
		Action:       "snapshot.create",
		ResourceType: "snapshot",
		ResourceID:   snapshotID,
		RequestID:    r.Header.Get("X-Request-Id"),
		IP:           requestIP(r.RemoteAddr),
		UserAgent:    r.UserAgent(),
		Payload: map[string]any{
			"service":        "registry",
			"dataset_id":     datasetID,
			"snapshot_id":    snapshotID,
			"ordinal":        ordinal,
			"content_sha256": contentSHA256,
			"size_bytes":     sizeBytes,
			"file_count":     len(inventory.Files),
			"tabular_count":  inventory.TabularCount,
			"object_key":     objectKey,
		},
	})
	if err != nil {
		_ = api.store.RemoveObject(r.Context(), api.storeCfg.BucketSnapshots, objectKey, minio.RemoveObjectOptions{})
		api.writeError(w, r, http.StatusInternalServerError, "audit_failed")
		return
	}

	_, err = provenance.Insert(r.Context(), tx, provenance.Edge{
		OccurredAt:  now,
		Actor:       identity.Subject,
		RequestID:   r.Header.Get("X-Request-Id"),
		SubjectType: "snapshot",
		SubjectID:   snapshotID,
		Predicate:   "snapshot_of",
		ObjectType:  "dataset",
		ObjectID:    datasetID,
		Metadata: map[string]any{
			"ordinal":        ordinal,
			"content_sha256": contentSHA256,
			"size_bytes":     sizeBytes,
			"object_key":     objectKey,
		},
	})
	if err != nil {
		_ = api.store.RemoveObject(r.Context(), api.storeCfg.BucketSnapshots, objectKey, minio.RemoveObjectOptions{})
		api.writeError(w, r, http.StatusInternalServerError, "provenance_write_failed")
		return
	}

	if err := tx.Commit(); err != nil {
		_ = api.store.RemoveObject(r.Context(), api.storeCfg.BucketSnapshots, objectKey, minio.RemoveObjectOptions{})
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}

	w.Header().Set("Location", "/snapshots/"+snapshotID)
	api.writeJSON(w, http.StatusCreated, snapshot{
		SnapshotID:    snapshotID,
		DatasetID:     datasetID,
		Ordinal:       ordinal,
		ContentSHA256: contentSHA256,
		ObjectKey:     objectKey,
		SizeBytes:     sizeBytes,
		FileCount:     len(inventory.Files),
		TabularCount:  inventory.TabularCount,
		Files:         inventory.Files,
		Metadata:      metadataJSON,
		CreatedAt:     now,
		CreatedBy:     identity.Subject,
	})
}

func (api *registryAPI) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	snapshotID := strings.TrimSpace(r.PathValue("snapshot_id"))
	if snapshotID == "" {
		api.writeError(w, r, http.StatusBadRequest, "snapshot_id_required")
		return
	}

	var (
		datasetID     string
		ordinal       int64
		contentSHA256 string
		objectKey     string
		sizeBytes     sql.NullInt64
		fileCount     int
		tabularCount  int
		inventory     []byte
		metadata      []byte
		createdAt     time.Time
		createdBy     string
	)
	err := api.db.QueryRowContext(
		r.Context(),
		`SELECT dataset_id, ordinal, content_sha256, object_key, size_bytes, file_count, tabular_count, file_inventory, metadata, created_at, created_by
		 FROM snapshots
		 WHERE snapshot_id = $1`,
		snapshotID,
	).Scan(&datasetID, &ordinal, &contentSHA256, &objectKey, &sizeBytes, &fileCount, &tabularCount, &inventory, &metadata, &createdAt, &createdBy)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			api.writeError(w, r, http.StatusNotFound, "not_found")
			return
		}
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}

	var files []string
	if err := json.Unmarshal(normalizeJSONArray(inventory), &files); err != nil {
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}

	api.writeJSON(w, http.StatusOK, snapshot{
		SnapshotID:    snapshotID,
		DatasetID:     datasetID,
		Ordinal:       ordinal,
		ContentSHA256: contentSHA256,
		ObjectKey:     objectKey,
		SizeBytes:     sizeBytes.Int64,
		FileCount:     fileCount,
		TabularCount:  tabularCount,
		Files:         files,
		Metadata:      normalizeJSON(metadata),
		CreatedAt:     createdAt,
		CreatedBy:     createdBy,
	})
}

func (api *registryAPI) handleDownloadSnapshot(w http.ResponseWriter, r *http.Request) {
	snapshotID := strings.TrimSpace(r.PathValue("snapshot_id"))
	if snapshotID == "" {
		api.writeError(w, r, http.StatusBadRequest, "snapshot_id_required")
		return
	}

	var (
		datasetID string
		objectKey string
		sizeBytes sql.NullInt64
		metadata  []byte
	)
	err := api.db.QueryRowContext(
		r.Context(),
		`SELECT dataset_id, object_key, size_bytes, metadata
		 FROM snapshots
		 WHERE snapshot_id = $1`,
		snapshotID,
	).Scan(&datasetID, &objectKey, &sizeBytes, &metadata)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			api.writeError(w, r, http.StatusNotFound, "not_found")
			return
		}
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}

	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok || strings.TrimSpace(identity.Subject) == "" {
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}

	now := time.Now().UTC()
	var (
		validationID string
		status       string
	)
	err = api.db.QueryRowContext(
		r.Context(),
		`SELECT validation_id, status
		 FROM validations
		 WHERE snapshot_id = $1
		 ORDER BY validated_at DESC
		 LIMIT 1`,
		snapshotID,
	).Scan(&validationID, &status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			_, _ = auditlog.Insert(r.Context(), api.db, auditlog.Event{
				OccurredAt:   now,
				Actor:        identity.Subject,
				Action:       "validation_gate.block",
				ResourceType: "snapshot",
				ResourceID:   snapshotID,
				RequestID:    r.Header.Get("X-Request-Id"),
				IP:           requestIP(r.RemoteAddr),
				UserAgent:    r.UserAgent(),
				Payload: map[string]any{
					"service":     "registry",
					"dataset_id":  datasetID,
					"snapshot_id": snapshotID,
					"reason":      "not_validated",
				},
			})
			api.writeError(w, r, http.StatusConflict, "snapshot_not_validated")
			return
		}
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}

	if strings.ToLower(strings.TrimSpace(status)) != "pass" {
		_, _ = auditlog.Insert(r.Context(), api.db, auditlog.Event{
			OccurredAt:   now,
			Actor:        identity.Subject,
			Action:       "validation_gate.block",
			ResourceType: "snapshot",
			ResourceID:   snapshotID,
			RequestID:    r.Header.Get("X-Request-Id"),
			IP:           requestIP(r.RemoteAddr),
			UserAgent:    r.UserAgent(),
			Payload: map[string]any{
				"service":       "registry",
				"dataset_id":    datasetID,
				"snapshot_id":   snapshotID,
				"validation_id": validationID,
				"status":        status,
				"reason":        "not_pass",
			},
		})
		api.writeError(w, r, http.StatusConflict, "validation_gate_failed")
		return
	}

	_, _ = auditlog.Insert(r.Context(), api.db, auditlog.Event{
		OccurredAt:   now,
		Actor:        identity.Subject,
		Action:       "validation_gate.allow",
		ResourceType: "snapshot",
		ResourceID:   snapshotID,
		RequestID:    r.Header.Get("X-Request-Id"),
		IP:           requestIP(r.RemoteAddr),
		UserAgent:    r.UserAgent(),
		Payload: map[string]any{
			"service":       "registry",
			"dataset_id":    datasetID,
			"snapshot_id":   snapshotID,
			"validation_id": validationID,
			"status":        status,
		},
	})

	obj, err := api.store.GetObject(r.Context(), api.storeCfg.BucketSnapshots, objectKey, minio.GetObjectOptions{})
	if err != nil {
		api.writeError(w, r, http.StatusBadGateway, "object_store_error")
		return
	}
	defer obj.Close()

	if _, err := obj.Stat(); err != nil {
		api.writeError(w, r, http.StatusNotFound, "not_found")
		return
	}

	filename := jsonFieldString(normalizeJSON(metadata), "filename")
	if filename == "" {
		filename = "snapshot.tar.gz"
	}

	w.Header().Set("Content-Type", "application/gzip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if sizeBytes.Valid && sizeBytes.Int64 > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(sizeBytes.Int64, 10))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, obj)
}

type archiveInventory struct {
	Files        []string
	TabularCount int
}

// scanSnapshotArchive walks a gzipped tar and returns the normalized paths of
// its regular files, rooted at "/". Entries escaping the archive root are
// rejected.
func scanSnapshotArchive(r io.Reader) (archiveInventory, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return archiveInventory{}, fmt.Errorf("gzip: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	var inventory archiveInventory
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return archiveInventory{}, fmt.Errorf("tar: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		rel, err := normalizeArchivePath(hdr.Name)
		if err != nil {
			return archiveInventory{}, err
		}
		inventory.Files = append(inventory.Files, rel)
		if strings.HasSuffix(rel, ".tsv") {
			inventory.TabularCount++
		}
	}
	sort.Strings(inventory.Files)
	return inventory, nil
}

func normalizeArchivePath(name string) (string, error) {
	cleaned := path.Clean(strings.TrimPrefix(strings.TrimSpace(name), "./"))
	if cleaned == "" || cleaned == "." {
		return "", fmt.Errorf("invalid archive entry: %q", name)
	}
	if path.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("archive entry escapes root: %q", name)
	}
	return "/" + cleaned, nil
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("multiple JSON values")
	}
	return nil
}

func integritySHA256(in any) (string, error) {
	blob, err := json.Marshal(in)
	if err != nil {
		return "", fmt.Errorf("marshal integrity: %w", err)
	}
	sum := sha256.Sum256(blob)
	return hex.EncodeToString(sum[:]), nil
}

func (api *registryAPI) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(body)
}

func (api *registryAPI) writeError(w http.ResponseWriter, r *http.Request, status int, code string) {
	api.writeJSON(w, status, map[string]any{
		"error":      code,
		"request_id": r.Header.Get("X-Request-Id"),
	})
}

func requestIP(remoteAddr string) net.IP {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return nil
	}
	return net.ParseIP(host)
}

func jsonFieldString(raw json.RawMessage, key string) string {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return ""
	}
	v, ok := obj[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func normalizeJSON(raw []byte) json.RawMessage {
	raw = bytesTrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return []byte("{}")
	}
	return raw
}

func normalizeJSONArray(raw []byte) json.RawMessage {
	raw = bytesTrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return []byte("[]")
	}
	return raw
}

func bytesTrimSpace(in []byte) []byte {
	return []byte(strings.TrimSpace(string(in)))
}

func sanitizeFilename(name string) string {
	base := path.Base(strings.TrimSpace(name))
	if base == "" || base == "." || base == "/" {
		return "snapshot.tar.gz"
	}
	return base
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
