package documents

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// PGRepo implements Repo on Postgres. Transitions are single guarded UPDATE
// statements so concurrent workers race on the row, not in Go.
type PGRepo struct {
	DB *sql.DB
}

func NewPGRepo(db *sql.DB) *PGRepo {
	return &PGRepo{DB: db}
}

const documentColumns = `id, user_id, file_name, document_type, mime_type, size_bytes,
	storage_provider, storage_key, status, failure_code, failure_message, attempts,
	extracted_chars, extraction_method, extraction_confidence,
	summary, key_findings, next_steps, model_id, token_count,
	created_at, processing_started_at, completed_at, deleted_at`

func (r *PGRepo) Create(ctx context.Context, d Document) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO documents (id, user_id, file_name, document_type, mime_type,
			size_bytes, storage_provider, storage_key, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		d.ID, d.UserID, d.FileName, d.DocumentType, d.MimeType,
		d.SizeBytes, d.StorageProvider, d.StorageKey, StatusPending,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *PGRepo) Get(ctx context.Context, documentID string) (Document, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT `+documentColumns+`
		FROM documents
		WHERE id = $1 AND deleted_at IS NULL`,
		documentID,
	)
	return scanDocument(row)
}

func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Document, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+documentColumns+`
		FROM documents
		WHERE user_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *PGRepo) Claim(ctx context.Context, documentID string) (Document, error) {
	row := r.DB.QueryRowContext(ctx, `
		UPDATE documents
		SET status = $2, attempts = attempts + 1, processing_started_at = now()
		WHERE id = $1 AND status = $3 AND deleted_at IS NULL
		RETURNING `+documentColumns,
		documentID, StatusProcessing, StatusPending,
	)
	d, err := scanDocument(row)
	if err == ErrNotFound {
		return Document{}, r.conflictOrMissing(ctx, documentID)
	}
	return d, err
}

func (r *PGRepo) MarkAnalyzing(ctx context.Context, documentID string, ext Extraction) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE documents
		SET status = $2, extracted_chars = $3, extraction_method = $4, extraction_confidence = $5
		WHERE id = $1 AND status = $6 AND deleted_at IS NULL`,
		documentID, StatusAnalyzing, ext.Chars, ext.Method, ext.Confidence, StatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("mark analyzing: %w", err)
	}
	return r.requireUpdated(ctx, res, documentID)
}

func (r *PGRepo) Complete(ctx context.Context, documentID string, a Analysis) error {
	findings, err := json.Marshal(a.KeyFindings)
	if err != nil {
		return fmt.Errorf("encode key findings: %w", err)
	}
	steps, err := json.Marshal(a.NextSteps)
	if err != nil {
		return fmt.Errorf("encode next steps: %w", err)
	}
	res, err := r.DB.ExecContext(ctx, `
		UPDATE documents
		SET status = $2, summary = $3, key_findings = $4, next_steps = $5,
			model_id = $6, token_count = $7, failure_code = NULL,
			failure_message = NULL, completed_at = now()
		WHERE id = $1 AND status = $8 AND deleted_at IS NULL`,
		documentID, StatusCompleted, a.Summary, findings, steps,
		a.ModelID, a.TokenCount, StatusAnalyzing,
	)
	if err != nil {
		return fmt.Errorf("complete document: %w", err)
	}
	return r.requireUpdated(ctx, res, documentID)
}

func (r *PGRepo) Fail(ctx context.Context, documentID, code, message string) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE documents
		SET status = $2, failure_code = $3, failure_message = $4, completed_at = now()
		WHERE id = $1 AND status IN ($5, $6) AND deleted_at IS NULL`,
		documentID, StatusFailed, code, message, StatusProcessing, StatusAnalyzing,
	)
	if err != nil {
		return fmt.Errorf("fail document: %w", err)
	}
	return r.requireUpdated(ctx, res, documentID)
}

func (r *PGRepo) UpdateMetadata(ctx context.Context, userID, documentID, fileName, documentType string) (Document, error) {
	row := r.DB.QueryRowContext(ctx, `
		UPDATE documents
		SET file_name = COALESCE(NULLIF($3, ''), file_name),
			document_type = COALESCE(NULLIF($4, ''), document_type)
		WHERE id = $1 AND user_id = $2 AND status = $5 AND deleted_at IS NULL
		RETURNING `+documentColumns,
		documentID, userID, fileName, documentType, StatusPending,
	)
	d, err := scanDocument(row)
	if err != ErrNotFound {
		return d, err
	}
	cur, gerr := r.Get(ctx, documentID)
	if gerr != nil {
		return Document{}, gerr
	}
	if cur.UserID != userID {
		return Document{}, ErrForbidden
	}
	return Document{}, ErrConflict
}

func (r *PGRepo) ResetForRetry(ctx context.Context, userID, documentID string, maxAttempts int) (Document, error) {
	row := r.DB.QueryRowContext(ctx, `
		UPDATE documents
		SET status = $3, failure_code = NULL, failure_message = NULL,
			processing_started_at = NULL, completed_at = NULL
		WHERE id = $1 AND user_id = $2 AND status = $4
			AND attempts <= $5 AND deleted_at IS NULL
		RETURNING `+documentColumns,
		documentID, userID, StatusPending, StatusFailed, maxAttempts,
	)
	d, err := scanDocument(row)
	if err != ErrNotFound {
		return d, err
	}
	// The guarded update matched nothing; work out which refusal applies.
	cur, gerr := r.Get(ctx, documentID)
	if gerr != nil {
		return Document{}, gerr
	}
	switch {
	case cur.UserID != userID:
		return Document{}, ErrForbidden
	case cur.Status != StatusFailed:
		return Document{}, ErrConflict
	default:
		return Document{}, ErrRetryLimit
	}
}

func (r *PGRepo) SoftDelete(ctx context.Context, userID, documentID string) (Document, error) {
	row := r.DB.QueryRowContext(ctx, `
		UPDATE documents
		SET deleted_at = now()
		WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL
		RETURNING `+documentColumns,
		documentID, userID,
	)
	d, err := scanDocument(row)
	if err != ErrNotFound {
		return d, err
	}
	cur, gerr := r.Get(ctx, documentID)
	if gerr != nil {
		return Document{}, gerr
	}
	if cur.UserID != userID {
		return Document{}, ErrForbidden
	}
	return Document{}, ErrNotFound
}

func (r *PGRepo) ReclaimStale(ctx context.Context, cutoff time.Time) ([]Reclaimed, error) {
	rows, err := r.DB.QueryContext(ctx, `
		UPDATE documents
		SET status = $1, processing_started_at = NULL,
		    extracted_chars = 0, extraction_method = NULL, extraction_confidence = NULL
		WHERE status IN ($2, $3) AND deleted_at IS NULL AND processing_started_at < $4
		RETURNING id, attempts`,
		StatusPending, StatusProcessing, StatusAnalyzing, cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("reclaim stale documents: %w", err)
	}
	defer rows.Close()

	var reclaimed []Reclaimed
	for rows.Next() {
		var rec Reclaimed
		if err := rows.Scan(&rec.ID, &rec.Attempts); err != nil {
			return nil, err
		}
		reclaimed = append(reclaimed, rec)
	}
	return reclaimed, rows.Err()
}

// conflictOrMissing distinguishes a lost claim race from a missing document.
func (r *PGRepo) conflictOrMissing(ctx context.Context, documentID string) error {
	if _, err := r.Get(ctx, documentID); err != nil {
		return err
	}
	return ErrConflict
}

func (r *PGRepo) requireUpdated(ctx context.Context, res sql.Result, documentID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return r.conflictOrMissing(ctx, documentID)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (Document, error) {
	var (
		d              Document
		failureCode    sql.NullString
		failureMessage sql.NullString
		method         sql.NullString
		confidence     sql.NullFloat64
		summary        sql.NullString
		findings       []byte
		steps          []byte
		modelID        sql.NullString
		started        sql.NullTime
		completed      sql.NullTime
		deleted        sql.NullTime
	)
	err := row.Scan(
		&d.ID, &d.UserID, &d.FileName, &d.DocumentType, &d.MimeType, &d.SizeBytes,
		&d.StorageProvider, &d.StorageKey, &d.Status, &failureCode, &failureMessage, &d.Attempts,
		&d.ExtractedChars, &method, &confidence,
		&summary, &findings, &steps, &modelID, &d.TokenCount,
		&d.CreatedAt, &started, &completed, &deleted,
	)
	if err == sql.ErrNoRows {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("scan document: %w", err)
	}
	d.FailureCode = failureCode.String
	d.FailureMessage = failureMessage.String
	d.ExtractionMethod = method.String
	d.ExtractionConfidence = confidence.Float64
	d.Summary = summary.String
	d.ModelID = modelID.String
	if len(findings) > 0 {
		if err := json.Unmarshal(findings, &d.KeyFindings); err != nil {
			return Document{}, fmt.Errorf("decode key findings: %w", err)
		}
	}
	if len(steps) > 0 {
		if err := json.Unmarshal(steps, &d.NextSteps); err != nil {
			return Document{}, fmt.Errorf("decode next steps: %w", err)
		}
	}
	if started.Valid {
		d.ProcessingStartedAt = &started.Time
	}
	if completed.Valid {
		d.CompletedAt = &completed.Time
	}
	if deleted.Valid {
		d.DeletedAt = &deleted.Time
	}
	return d, nil
}
