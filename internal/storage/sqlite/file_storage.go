package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/mediaparser/internal/interfaces"
	"github.com/ternarybob/mediaparser/internal/models"
)

// FileStorage implements SQLite persistence for per-file records
type FileStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
}

// NewFileStorage creates a new file storage instance
func NewFileStorage(db *SQLiteDB, logger arbor.ILogger) interfaces.FileStorage {
	return &FileStorage{
		db:     db,
		logger: logger,
	}
}

const fileColumns = `id, job_id, source_path, file_name, extension, file_size, mime_type, is_video,
	content_hash, perceptual_hash, final_timestamp, confidence, timestamp_source, candidates,
	exact_group_id, similar_group_id, similar_kind, similar_confidence,
	width, height, quality_score, reviewed, discarded, thumbnail_path,
	output_path, exported_at, export_error, process_error, created_at, processed_at`

// InsertFiles inserts discovered files in one transaction
func (s *FileStorage) InsertFiles(ctx context.Context, files []*models.MediaFile) error {
	if len(files) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO files (id, job_id, source_path, file_name, extension, file_size, mime_type, is_video, confidence, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(job_id, source_path) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, f := range files {
		isVideo := 0
		if f.IsVideo {
			isVideo = 1
		}
		_, err := stmt.ExecContext(ctx,
			f.ID, f.JobID, f.SourcePath, f.FileName, f.Extension,
			f.FileSize, f.MimeType, isVideo, string(models.ConfidenceNone),
			f.CreatedAt.Unix())
		if err != nil {
			return fmt.Errorf("failed to insert file %s: %w", f.SourcePath, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit file inserts: %w", err)
	}

	s.logger.Debug().Int("count", len(files)).Msg("Files inserted")
	return nil
}

// GetFile retrieves one file by ID
func (s *FileStorage) GetFile(ctx context.Context, fileID string) (*models.MediaFile, error) {
	row := s.db.db.QueryRowContext(ctx,
		"SELECT "+fileColumns+" FROM files WHERE id = ?", fileID)
	return scanFile(row)
}

// ListFiles returns a filtered, sorted, paginated slice of a job's
// files along with the total count matching the filter.
func (s *FileStorage) ListFiles(ctx context.Context, jobID string, opts *interfaces.ListFilesOptions) ([]*models.MediaFile, int, error) {
	if opts == nil {
		opts = &interfaces.ListFilesOptions{Mode: interfaces.ReviewModeAll}
	}

	where := "WHERE job_id = ?"
	args := []interface{}{jobID}

	switch opts.Mode {
	case interfaces.ReviewModeAll, "":
		// no extra filter
	case interfaces.ReviewModeDuplicates:
		where += " AND exact_group_id != '' AND discarded = 0"
	case interfaces.ReviewModeSimilar:
		where += " AND similar_group_id != '' AND discarded = 0"
	case interfaces.ReviewModeUnreviewed:
		where += " AND reviewed = 0 AND discarded = 0"
	case interfaces.ReviewModeReviewed:
		where += " AND reviewed = 1 AND discarded = 0"
	case interfaces.ReviewModeDiscarded:
		where += " AND discarded = 1"
	case interfaces.ReviewModeFailed:
		where += " AND process_error != ''"
	default:
		return nil, 0, fmt.Errorf("%w: unknown review mode %q", models.ErrValidation, opts.Mode)
	}

	if opts.Confidence != "" {
		where += " AND confidence = ?"
		args = append(args, string(opts.Confidence))
	}

	var total int
	if err := s.db.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM files "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count files: %w", err)
	}

	orderBy, err := fileOrderClause(opts.SortBy, opts.SortDesc)
	if err != nil {
		return nil, 0, err
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}

	query := "SELECT " + fileColumns + " FROM files " + where + " " + orderBy + " LIMIT ? OFFSET ?"
	args = append(args, limit, opts.Offset)

	rows, err := s.db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list files: %w", err)
	}
	defer rows.Close()

	var files []*models.MediaFile
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, 0, err
		}
		files = append(files, f)
	}
	return files, total, rows.Err()
}

// fileOrderClause maps the sort field to a stable ORDER BY. Confidence
// sorts by tier rank rather than alphabetically.
func fileOrderClause(sortBy string, desc bool) (string, error) {
	dir := "ASC"
	if desc {
		dir = "DESC"
	}

	switch sortBy {
	case "", "timestamp":
		return fmt.Sprintf("ORDER BY final_timestamp %s NULLS LAST, source_path ASC", dir), nil
	case "file_name":
		return fmt.Sprintf("ORDER BY file_name %s, source_path ASC", dir), nil
	case "file_size":
		return fmt.Sprintf("ORDER BY file_size %s, source_path ASC", dir), nil
	case "confidence":
		return fmt.Sprintf(`ORDER BY CASE confidence
			WHEN 'high' THEN 3 WHEN 'medium' THEN 2 WHEN 'low' THEN 1 ELSE 0
		END %s, source_path ASC`, dir), nil
	default:
		return "", fmt.Errorf("%w: unknown sort field %q", models.ErrValidation, sortBy)
	}
}

// PendingFiles returns unprocessed files in lexicographic filename
// order, source path breaking ties between same-named files from
// different directories. A NULL processed_at marks a file processing
// never reached; failed files carry their error but do not come back
// as pending.
func (s *FileStorage) PendingFiles(ctx context.Context, jobID string) ([]*models.MediaFile, error) {
	rows, err := s.db.db.QueryContext(ctx,
		"SELECT "+fileColumns+" FROM files WHERE job_id = ? AND processed_at IS NULL ORDER BY file_name ASC, source_path ASC",
		jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending files: %w", err)
	}
	defer rows.Close()

	var files []*models.MediaFile
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// ProcessedFiles returns every successfully hashed, non-discarded file
// of a job in lexicographic source path order. Discarded files stay
// out so a re-detection pass cannot pull them back into groups.
func (s *FileStorage) ProcessedFiles(ctx context.Context, jobID string) ([]*models.MediaFile, error) {
	rows, err := s.db.db.QueryContext(ctx,
		"SELECT "+fileColumns+" FROM files WHERE job_id = ? AND content_hash IS NOT NULL AND discarded = 0 ORDER BY source_path ASC",
		jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to query processed files: %w", err)
	}
	defer rows.Close()

	var files []*models.MediaFile
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// ApplyResults commits a batch of processing results in a single
// transaction. Either the whole batch lands or none of it does.
func (s *FileStorage) ApplyResults(ctx context.Context, results []*models.ProcessResult) error {
	if len(results) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		UPDATE files SET
			content_hash = ?,
			perceptual_hash = ?,
			final_timestamp = ?,
			confidence = ?,
			timestamp_source = ?,
			candidates = ?,
			mime_type = CASE WHEN ? != '' THEN ? ELSE mime_type END,
			width = ?,
			height = ?,
			quality_score = ?,
			thumbnail_path = ?,
			process_error = ?,
			processed_at = ?
		WHERE id = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare result update: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Unix()
	for _, r := range results {
		var contentHash, perceptualHash sql.NullString
		if r.ContentHash != "" {
			contentHash = sql.NullString{Valid: true, String: r.ContentHash}
		}
		if r.PerceptualHash != "" {
			perceptualHash = sql.NullString{Valid: true, String: r.PerceptualHash}
		}

		var ts sql.NullInt64
		if r.Timestamp != nil {
			ts = sql.NullInt64{Valid: true, Int64: r.Timestamp.Unix()}
		}

		confidence := r.Confidence
		if confidence == "" {
			confidence = models.ConfidenceNone
		}

		candidates := "[]"
		if len(r.Candidates) > 0 {
			encoded, err := json.Marshal(r.Candidates)
			if err != nil {
				return fmt.Errorf("failed to encode candidates for file %s: %w", r.FileID, err)
			}
			candidates = string(encoded)
		}

		_, err := stmt.ExecContext(ctx,
			contentHash, perceptualHash, ts, string(confidence), r.Source, candidates,
			r.MimeType, r.MimeType, r.Width, r.Height, r.QualityScore,
			r.ThumbnailPath, r.Err, now, r.FileID)
		if err != nil {
			return fmt.Errorf("failed to apply result for file %s: %w", r.FileID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit result batch: %w", err)
	}

	s.logger.Debug().Int("count", len(results)).Msg("Result batch committed")
	return nil
}

// SetExactGroup assigns files to an exact duplicate group
func (s *FileStorage) SetExactGroup(ctx context.Context, fileIDs []string, groupID string) error {
	return s.setGroupColumn(ctx, fileIDs, "exact_group_id = ?", []interface{}{groupID})
}

// SetSimilarGroup assigns files to a similarity group with its kind
// and the confidence of the weakest joining pair
func (s *FileStorage) SetSimilarGroup(ctx context.Context, fileIDs []string, groupID string, kind models.GroupKind, confidence models.ConfidenceLevel) error {
	return s.setGroupColumn(ctx, fileIDs,
		"similar_group_id = ?, similar_kind = ?, similar_confidence = ?",
		[]interface{}{groupID, string(kind), string(confidence)})
}

func (s *FileStorage) setGroupColumn(ctx context.Context, fileIDs []string, setClause string, setArgs []interface{}) error {
	if len(fileIDs) == 0 {
		return nil
	}

	placeholders := strings.Repeat("?,", len(fileIDs))
	placeholders = placeholders[:len(placeholders)-1]

	args := append([]interface{}{}, setArgs...)
	for _, id := range fileIDs {
		args = append(args, id)
	}

	_, err := s.db.db.ExecContext(ctx,
		"UPDATE files SET "+setClause+" WHERE id IN ("+placeholders+")", args...)
	if err != nil {
		return fmt.Errorf("failed to set group: %w", err)
	}
	return nil
}

// ClearGroups wipes group assignments for a job before a re-detection pass
func (s *FileStorage) ClearGroups(ctx context.Context, jobID string) error {
	_, err := s.db.db.ExecContext(ctx, `
		UPDATE files SET exact_group_id = '', similar_group_id = '',
			similar_kind = '', similar_confidence = ''
		WHERE job_id = ?`, jobID)
	if err != nil {
		return fmt.Errorf("failed to clear groups: %w", err)
	}
	return nil
}

// MarkReviewed flags a file as reviewed
func (s *FileStorage) MarkReviewed(ctx context.Context, fileID string) error {
	return s.setFlag(ctx, fileID, "reviewed = 1")
}

// Unreview clears the reviewed flag
func (s *FileStorage) Unreview(ctx context.Context, fileID string) error {
	return s.setFlag(ctx, fileID, "reviewed = 0")
}

// Discard marks a file discarded and pulls it out of its groups. A
// discarded file no longer participates in duplicate review or export.
func (s *FileStorage) Discard(ctx context.Context, fileID string) error {
	return s.setFlag(ctx, fileID,
		"discarded = 1, exact_group_id = '', similar_group_id = '', similar_kind = '', similar_confidence = ''")
}

// Undiscard restores a discarded file. Group membership is not
// restored; re-running duplicate detection rebuilds it.
func (s *FileStorage) Undiscard(ctx context.Context, fileID string) error {
	return s.setFlag(ctx, fileID, "discarded = 0")
}

// OverrideTimestamp records a reviewer-supplied capture time. The user
// saw the file, so the override is high confidence and reviewed.
func (s *FileStorage) OverrideTimestamp(ctx context.Context, fileID string, ts time.Time) error {
	result, err := s.db.db.ExecContext(ctx, `
		UPDATE files SET final_timestamp = ?, timestamp_source = ?, confidence = ?, reviewed = 1
		WHERE id = ?`,
		ts.UTC().Unix(), models.SourceUserOverride, string(models.ConfidenceHigh), fileID)
	if err != nil {
		return fmt.Errorf("failed to override timestamp: %w", err)
	}
	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return fmt.Errorf("file %s: %w", fileID, models.ErrNotFound)
	}
	return nil
}

func (s *FileStorage) setFlag(ctx context.Context, fileID, setClause string) error {
	result, err := s.db.db.ExecContext(ctx,
		"UPDATE files SET "+setClause+" WHERE id = ?", fileID)
	if err != nil {
		return fmt.Errorf("failed to update file: %w", err)
	}
	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return fmt.Errorf("file %s: %w", fileID, models.ErrNotFound)
	}
	return nil
}

// ExactGroups returns exact duplicate groups with members, skipping
// discarded files. Groups reduced below two members drop out.
func (s *FileStorage) ExactGroups(ctx context.Context, jobID string) ([]*models.ExactGroup, error) {
	rows, err := s.db.db.QueryContext(ctx,
		"SELECT "+fileColumns+` FROM files
		WHERE job_id = ? AND exact_group_id != '' AND discarded = 0
		ORDER BY exact_group_id, source_path`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to query exact groups: %w", err)
	}
	defer rows.Close()

	byGroup := make(map[string][]models.MediaFile)
	var order []string
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		if _, seen := byGroup[f.ExactGroupID]; !seen {
			order = append(order, f.ExactGroupID)
		}
		byGroup[f.ExactGroupID] = append(byGroup[f.ExactGroupID], *f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var groups []*models.ExactGroup
	for _, id := range order {
		members := byGroup[id]
		if len(members) < 2 {
			continue
		}
		groups = append(groups, &models.ExactGroup{
			GroupID:     id,
			Files:       members,
			RecommendID: recommendKeeper(members),
		})
	}
	return groups, nil
}

// SimilarGroups returns similarity groups with members, skipping
// discarded files
func (s *FileStorage) SimilarGroups(ctx context.Context, jobID string) ([]*models.SimilarGroup, error) {
	rows, err := s.db.db.QueryContext(ctx,
		"SELECT "+fileColumns+` FROM files
		WHERE job_id = ? AND similar_group_id != '' AND discarded = 0
		ORDER BY similar_group_id, final_timestamp, source_path`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to query similar groups: %w", err)
	}
	defer rows.Close()

	byGroup := make(map[string][]models.MediaFile)
	var order []string
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		if _, seen := byGroup[f.SimilarGroupID]; !seen {
			order = append(order, f.SimilarGroupID)
		}
		byGroup[f.SimilarGroupID] = append(byGroup[f.SimilarGroupID], *f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var groups []*models.SimilarGroup
	for _, id := range order {
		members := byGroup[id]
		if len(members) < 2 {
			continue
		}
		groups = append(groups, &models.SimilarGroup{
			GroupID:     id,
			Kind:        members[0].SimilarKind,
			Confidence:  members[0].SimilarConfidence,
			Files:       members,
			RecommendID: recommendKeeper(members),
		})
	}
	return groups, nil
}

// recommendKeeper picks the group member with the highest quality
// score, breaking ties by file size then path.
func recommendKeeper(members []models.MediaFile) string {
	if len(members) == 0 {
		return ""
	}
	best := members[0]
	for _, m := range members[1:] {
		if m.QualityScore > best.QualityScore ||
			(m.QualityScore == best.QualityScore && m.FileSize > best.FileSize) {
			best = m
		}
	}
	return best.ID
}

// ResolveGroup keeps one file from a group and discards the rest. The
// group id is cleared from every member so the group disappears from
// review listings. Works for both exact and similar groups.
func (s *FileStorage) ResolveGroup(ctx context.Context, groupID, keepFileID string) error {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Verify the keeper belongs to the group.
	var count int
	err = tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM files WHERE id = ? AND (exact_group_id = ? OR similar_group_id = ?)",
		keepFileID, groupID, groupID).Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to verify keeper: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("%w: file %s is not a member of group %s", models.ErrValidation, keepFileID, groupID)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE files SET discarded = 1, reviewed = 1
		WHERE (exact_group_id = ? OR similar_group_id = ?) AND id != ?`,
		groupID, groupID, keepFileID)
	if err != nil {
		return fmt.Errorf("failed to discard group members: %w", err)
	}

	// The keeper's review state is the user's call, not ours; only the
	// group assignment comes off.
	_, err = tx.ExecContext(ctx, `
		UPDATE files SET
			exact_group_id = CASE WHEN exact_group_id = ? THEN '' ELSE exact_group_id END,
			similar_group_id = CASE WHEN similar_group_id = ? THEN '' ELSE similar_group_id END,
			similar_kind = CASE WHEN similar_group_id = ? THEN '' ELSE similar_kind END,
			similar_confidence = CASE WHEN similar_group_id = ? THEN '' ELSE similar_confidence END
		WHERE exact_group_id = ? OR similar_group_id = ?`,
		groupID, groupID, groupID, groupID, groupID, groupID)
	if err != nil {
		return fmt.Errorf("failed to clear group: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit group resolution: %w", err)
	}

	s.logger.Info().Str("group_id", groupID).Str("keep", keepFileID).Msg("Group resolved")
	return nil
}

// KeepAllSimilar dissolves a similarity group, keeping every member
func (s *FileStorage) KeepAllSimilar(ctx context.Context, groupID string) error {
	_, err := s.db.db.ExecContext(ctx, `
		UPDATE files SET similar_group_id = '', similar_kind = '', similar_confidence = '', reviewed = 1
		WHERE similar_group_id = ?`, groupID)
	if err != nil {
		return fmt.Errorf("failed to keep all: %w", err)
	}
	return nil
}

// RemoveFromSimilarGroup pulls one file out of its similarity group
func (s *FileStorage) RemoveFromSimilarGroup(ctx context.Context, fileID string) error {
	return s.setFlag(ctx, fileID,
		"similar_group_id = '', similar_kind = '', similar_confidence = ''")
}

// ExportableFiles returns processed, non-discarded files for export,
// ordered by timestamp so output naming stays deterministic.
func (s *FileStorage) ExportableFiles(ctx context.Context, jobID string) ([]*models.MediaFile, error) {
	rows, err := s.db.db.QueryContext(ctx,
		"SELECT "+fileColumns+` FROM files
		WHERE job_id = ? AND discarded = 0 AND content_hash IS NOT NULL AND process_error = ''
		ORDER BY final_timestamp NULLS LAST, source_path`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to query exportable files: %w", err)
	}
	defer rows.Close()

	var files []*models.MediaFile
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// SetExported records where a file landed in the output tree
func (s *FileStorage) SetExported(ctx context.Context, fileID, outputPath string) error {
	result, err := s.db.db.ExecContext(ctx,
		"UPDATE files SET output_path = ?, exported_at = ? WHERE id = ?",
		outputPath, time.Now().UTC().Unix(), fileID)
	if err != nil {
		return fmt.Errorf("failed to set exported: %w", err)
	}
	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return fmt.Errorf("file %s: %w", fileID, models.ErrNotFound)
	}
	return nil
}

// SetExportError records a non-fatal problem with a file's exported
// copy, such as a failed metadata rewrite. The copy itself exists.
func (s *FileStorage) SetExportError(ctx context.Context, fileID, message string) error {
	result, err := s.db.db.ExecContext(ctx,
		"UPDATE files SET export_error = ? WHERE id = ?", message, fileID)
	if err != nil {
		return fmt.Errorf("failed to set export error: %w", err)
	}
	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return fmt.Errorf("file %s: %w", fileID, models.ErrNotFound)
	}
	return nil
}

// Summary aggregates library state for a job
func (s *FileStorage) Summary(ctx context.Context, jobID string) (*models.Summary, error) {
	summary := &models.Summary{
		JobID:        jobID,
		ByConfidence: make(map[models.ConfidenceLevel]int),
	}

	err := s.db.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COUNT(content_hash),
			COALESCE(SUM(CASE WHEN process_error != '' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN reviewed = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN discarded = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN output_path != '' THEN 1 ELSE 0 END), 0)
		FROM files WHERE job_id = ?`, jobID).Scan(
		&summary.TotalFiles,
		&summary.ProcessedFiles,
		&summary.ErrorFiles,
		&summary.Reviewed,
		&summary.Discarded,
		&summary.Exported,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate summary: %w", err)
	}

	rows, err := s.db.db.QueryContext(ctx,
		"SELECT confidence, COUNT(*) FROM files WHERE job_id = ? GROUP BY confidence", jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate confidence: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var level string
		var count int
		if err := rows.Scan(&level, &count); err != nil {
			return nil, err
		}
		summary.ByConfidence[models.ConfidenceLevel(level)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = s.db.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT exact_group_id),
			COALESCE(SUM(CASE WHEN exact_group_id != '' THEN 1 ELSE 0 END), 0)
		FROM files WHERE job_id = ? AND exact_group_id != '' AND discarded = 0`, jobID).Scan(
		&summary.ExactGroups, &summary.ExactFiles)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate exact groups: %w", err)
	}

	err = s.db.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT similar_group_id),
			COALESCE(SUM(CASE WHEN similar_group_id != '' THEN 1 ELSE 0 END), 0)
		FROM files WHERE job_id = ? AND similar_group_id != '' AND discarded = 0`, jobID).Scan(
		&summary.SimilarGroups, &summary.SimilarFiles)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate similar groups: %w", err)
	}

	return summary, nil
}

func scanFile(row rowScanner) (*models.MediaFile, error) {
	var f models.MediaFile
	var isVideo, reviewed, discarded int
	var contentHash, perceptualHash sql.NullString
	var finalTimestamp, exportedAt, processedAt sql.NullInt64
	var confidence, similarKind, similarConfidence, candidates string
	var createdAt int64

	err := row.Scan(
		&f.ID, &f.JobID, &f.SourcePath, &f.FileName, &f.Extension,
		&f.FileSize, &f.MimeType, &isVideo,
		&contentHash, &perceptualHash, &finalTimestamp, &confidence, &f.TimestampSource, &candidates,
		&f.ExactGroupID, &f.SimilarGroupID, &similarKind, &similarConfidence,
		&f.Width, &f.Height, &f.QualityScore, &reviewed, &discarded, &f.ThumbnailPath,
		&f.OutputPath, &exportedAt, &f.ExportError, &f.ProcessError, &createdAt, &processedAt,
	)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan file: %w", err)
	}

	if candidates != "" && candidates != "[]" {
		if err := json.Unmarshal([]byte(candidates), &f.Candidates); err != nil {
			return nil, fmt.Errorf("failed to decode candidates for file %s: %w", f.ID, err)
		}
	}

	f.IsVideo = isVideo == 1
	f.Reviewed = reviewed == 1
	f.Discarded = discarded == 1
	f.ContentHash = contentHash.String
	f.PerceptualHash = perceptualHash.String
	f.Confidence = models.ConfidenceLevel(confidence)
	f.SimilarKind = models.GroupKind(similarKind)
	f.SimilarConfidence = models.ConfidenceLevel(similarConfidence)
	f.CreatedAt = time.Unix(createdAt, 0).UTC()
	f.FinalTimestamp = timeFromNull(finalTimestamp)
	f.ExportedAt = timeFromNull(exportedAt)
	f.ProcessedAt = timeFromNull(processedAt)
	return &f, nil
}
