package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	sqlitedrv "modernc.org/sqlite"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/logger"
)

// distanceFunc is the SQL name of the cosine distance function.
const distanceFunc = "vec_distance_cosine"

var (
	registerOnce sync.Once
	registerErr  error
)

// registerFunctions installs the vector scalar functions with the driver.
func registerFunctions() error {
	registerOnce.Do(func() {
		registerErr = sqlitedrv.RegisterDeterministicScalarFunction(distanceFunc, 2, cosineDistanceSQL)
	})
	return registerErr
}

// cosineDistanceSQL adapts cosineDistance to the driver's calling convention.
func cosineDistanceSQL(_ *sqlitedrv.FunctionContext, args []driver.Value) (driver.Value, error) {
	a, ok := args[0].([]byte)
	if !ok {
		return nil, fmt.Errorf("%s: first argument must be a blob", distanceFunc)
	}
	b, ok := args[1].([]byte)
	if !ok {
		return nil, fmt.Errorf("%s: second argument must be a blob", distanceFunc)
	}
	return cosineDistance(bytesToFloat32Slice(a), bytesToFloat32Slice(b))
}

// cosineDistance returns 1 - cos(a, b). A zero vector is treated as
// maximally distant.
func cosineDistance(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", domain.ErrDimensionMismatch, len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 1, nil
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb)), nil
}

// float32SliceToBytes encodes a vector as a little-endian blob.
func float32SliceToBytes(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice decodes a little-endian blob.
func bytesToFloat32Slice(b []byte) []float32 {
	if len(b) == 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}

// ==================== Vector Index ====================

// vectorIndex implements driven.VectorIndex.
type vectorIndex struct {
	store     *Store
	dims      int
	available atomic.Bool
}

var _ driven.VectorIndex = (*vectorIndex)(nil)

// Available reports the result of the last probe.
func (v *vectorIndex) Available() bool {
	return v.available.Load()
}

// Probe checks that the distance function is callable on this database.
func (v *vectorIndex) Probe(ctx context.Context) bool {
	ok := v.probe(ctx)
	prev := v.available.Swap(ok)
	switch {
	case !ok:
		logger.Warn("vector index unavailable; semantic retrieval disabled")
	case !prev:
		logger.Info("vector index available (%d dimensions)", v.dims)
	}
	return ok
}

func (v *vectorIndex) probe(ctx context.Context) bool {
	if err := registerFunctions(); err != nil {
		logger.Debug("vector function registration: %v", err)
		return false
	}
	unit := float32SliceToBytes([]float32{1, 0})
	var d float64
	if err := v.store.db.QueryRowContext(ctx, "SELECT "+distanceFunc+"(?, ?)", unit, unit).Scan(&d); err != nil {
		logger.Debug("vector probe: %v", err)
		return false
	}
	return true
}

// Dimensions returns the accepted vector size.
func (v *vectorIndex) Dimensions() int {
	return v.dims
}

// Replace swaps a document's chunk set in one transaction.
func (v *vectorIndex) Replace(ctx context.Context, documentID string, chunks []domain.Chunk, embeddings [][]float32) ([]domain.Chunk, error) {
	if len(chunks) != len(embeddings) {
		return nil, fmt.Errorf("%w: %d chunks, %d embeddings",
			domain.ErrChunkEmbeddingMismatch, len(chunks), len(embeddings))
	}
	for i, e := range embeddings {
		if len(e) != v.dims {
			return nil, fmt.Errorf("%w: embedding %d has %d dimensions, index expects %d",
				domain.ErrDimensionMismatch, i, len(e), v.dims)
		}
	}
	if !v.Available() {
		return nil, domain.ErrVectorIndexUnavailable
	}

	tx, err := v.store.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := deleteDocumentTx(ctx, tx, documentID); err != nil {
		return nil, err
	}

	chunkStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (transcript_id, chunk_index, content, start_char, end_char)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return nil, fmt.Errorf("preparing chunk statement: %w", err)
	}
	defer chunkStmt.Close()

	vecStmt, err := tx.PrepareContext(ctx, "INSERT INTO chunk_vectors (chunk_id, embedding) VALUES (?, ?)")
	if err != nil {
		return nil, fmt.Errorf("preparing vector statement: %w", err)
	}
	defer vecStmt.Close()

	stored := make([]domain.Chunk, len(chunks))
	for i, c := range chunks {
		c.DocumentID = documentID
		result, err := chunkStmt.ExecContext(ctx, documentID, c.ChunkIndex, c.Content, c.StartChar, c.EndChar)
		if err != nil {
			return nil, fmt.Errorf("saving chunk %d: %w", c.ChunkIndex, err)
		}
		if c.ID, err = result.LastInsertId(); err != nil {
			return nil, fmt.Errorf("reading chunk id: %w", err)
		}
		if _, err := vecStmt.ExecContext(ctx, c.ID, float32SliceToBytes(embeddings[i])); err != nil {
			return nil, fmt.Errorf("saving embedding %d: %w", c.ChunkIndex, err)
		}
		stored[i] = c
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return stored, nil
}

// Search ranks a document's chunks by cosine distance to query.
func (v *vectorIndex) Search(ctx context.Context, documentID string, query []float32, topK int) ([]domain.Chunk, error) {
	if !v.Available() || topK <= 0 {
		return nil, nil
	}
	if len(query) != v.dims {
		return nil, fmt.Errorf("%w: query has %d dimensions, index expects %d",
			domain.ErrDimensionMismatch, len(query), v.dims)
	}

	rows, err := v.store.db.QueryContext(ctx, `
		SELECT c.id, c.transcript_id, c.chunk_index, c.content, c.start_char, c.end_char,
			`+distanceFunc+`(cv.embedding, ?) AS distance
		FROM chunk_vectors cv
		JOIN chunks c ON c.id = cv.chunk_id
		WHERE c.transcript_id = ?
		ORDER BY distance ASC, c.chunk_index ASC
		LIMIT ?
	`, float32SliceToBytes(query), documentID, topK)
	if err != nil {
		return nil, fmt.Errorf("searching vectors: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		var c domain.Chunk
		var distance float64
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.ChunkIndex, &c.Content, &c.StartChar, &c.EndChar, &distance); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return chunks, nil
}

// Chunks lists a document's chunks in order.
func (v *vectorIndex) Chunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	rows, err := v.store.db.QueryContext(ctx, `
		SELECT id, transcript_id, chunk_index, content, start_char, end_char
		FROM chunks WHERE transcript_id = ?
		ORDER BY chunk_index ASC
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		var c domain.Chunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.ChunkIndex, &c.Content, &c.StartChar, &c.EndChar); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return chunks, nil
}

// DeleteDocument removes a document's chunks and embeddings together.
func (v *vectorIndex) DeleteDocument(ctx context.Context, documentID string) error {
	tx, err := v.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := deleteDocumentTx(ctx, tx, documentID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func deleteDocumentTx(ctx context.Context, tx *sql.Tx, documentID string) error {
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM chunk_vectors
		WHERE chunk_id IN (SELECT id FROM chunks WHERE transcript_id = ?)
	`, documentID); err != nil {
		return fmt.Errorf("deleting embeddings: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE transcript_id = ?", documentID); err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}
	return nil
}
