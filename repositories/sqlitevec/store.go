// Package sqlitevec implements repositories.VectorStore on top of an on-disk
// SQLite index. Similarity search is brute force: every stored embedding is
// compared against the query embedding, which is fine for the corpus sizes
// this assistant handles (hundreds to low thousands of documents).
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"go.uber.org/zap"

	"github.com/upb/rag-chat/models"
	"github.com/upb/rag-chat/repositories"
)

// Store is a persisted vector index backed by SQLite. Documents are embedded
// on Add via the injected Embedder; the query text is embedded on Search.
//
// Distance convention: distance = 1 - cosine similarity, so 0 is an exact
// match and lower is always better. Results are returned ascending.
type Store struct {
	mu       sync.RWMutex
	db       *sql.DB
	embedder repositories.Embedder
	logger   *zap.Logger
}

// New opens (or creates) the index under persistDir and prepares the schema.
func New(persistDir string, embedder repositories.Embedder, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(persistDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating persist directory: %w", err)
	}

	db, err := sql.Open("sqlite3", filepath.Join(persistDir, "vectors.db"))
	if err != nil {
		return nil, fmt.Errorf("opening vector index: %w", err)
	}

	s := &Store{db: db, embedder: embedder, logger: logger}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return s, nil
}

// NewWithDB wires the store onto an existing database handle. Used by tests.
func NewWithDB(db *sql.DB, embedder repositories.Embedder, logger *zap.Logger) *Store {
	return &Store{db: db, embedder: embedder, logger: logger}
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		content TEXT NOT NULL,
		metadata TEXT NOT NULL,
		embedding BLOB NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Add embeds and persists the given documents.
func (s *Store) Add(ctx context.Context, docs []models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO documents (id, content, metadata, embedding)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, doc := range docs {
		embedding, err := s.embedder.Embed(ctx, doc.Content)
		if err != nil {
			return fmt.Errorf("embedding document %s: %w", doc.Source(), err)
		}

		embeddingJSON, err := json.Marshal(embedding)
		if err != nil {
			return fmt.Errorf("encoding embedding: %w", err)
		}
		metadataJSON, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("encoding metadata: %w", err)
		}

		if _, err := stmt.ExecContext(ctx, uuid.NewString(), doc.Content, metadataJSON, embeddingJSON); err != nil {
			return fmt.Errorf("inserting document: %w", err)
		}
	}

	return tx.Commit()
}

// Search embeds the query and returns the k nearest documents, ascending by
// distance. An empty index yields an empty slice, not an error.
func (s *Store) Search(ctx context.Context, query string, k int) ([]models.ScoredDocument, error) {
	queryEmbedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT content, metadata, embedding FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var results []models.ScoredDocument
	for rows.Next() {
		var content string
		var metadataJSON, embeddingJSON []byte

		if err := rows.Scan(&content, &metadataJSON, &embeddingJSON); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		var embedding []float32
		if err := json.Unmarshal(embeddingJSON, &embedding); err != nil {
			s.logger.Warn("skipping document with corrupt embedding", zap.Error(err))
			continue
		}
		var metadata map[string]string
		if err := json.Unmarshal(metadataJSON, &metadata); err != nil {
			metadata = nil
		}

		results = append(results, models.ScoredDocument{
			Document: models.Document{Content: content, Metadata: metadata},
			Distance: 1 - cosineSimilarity(queryEmbedding, embedding),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})

	if len(results) > k {
		results = results[:k]
	}

	return results, nil
}

// DeleteAll removes every document from the index.
func (s *Store) DeleteAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM documents")
	return err
}

// Count returns the number of stored documents.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&count)
	return count, err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// cosineSimilarity calculates cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
