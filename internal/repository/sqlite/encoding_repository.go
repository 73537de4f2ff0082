package sqlite

import (
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"facecam/internal/models"
)

var errCorruptEncoding = errors.New("stored encoding has an invalid length")

// EncodingRepository implements repository.EncodingCache for SQLite.
type EncodingRepository struct {
	db *DB
}

// NewEncodingRepository creates a new SQLite reference encoding cache.
func NewEncodingRepository(db *DB) *EncodingRepository {
	return &EncodingRepository{db: db}
}

func marshalEncoding(enc []float32) []byte {
	buf := make([]byte, 4*len(enc))
	for i, v := range enc {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

func unmarshalEncoding(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, errCorruptEncoding
	}
	enc := make([]float32, len(buf)/4)
	for i := range enc {
		enc[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return enc, nil
}

// Get returns the cached encoding of path for engine, or nil when there is none.
func (r *EncodingRepository) Get(path, engine string) (*models.CachedEncoding, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var (
		enc   models.CachedEncoding
		mtime int64
		blob  []byte
	)
	err := r.db.Conn().QueryRow(`
		SELECT path, engine, size, mtime, label, encoding
		FROM reference_encodings WHERE path = ? AND engine = ?
	`, path, engine).Scan(&enc.Path, &enc.Engine, &enc.Size, &mtime, &enc.Label, &blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached encoding: %w", err)
	}

	enc.ModTime = time.Unix(0, mtime)
	if enc.Encoding, err = unmarshalEncoding(blob); err != nil {
		return nil, fmt.Errorf("failed to decode cached encoding for %s: %w", path, err)
	}
	return &enc, nil
}

// Put inserts or replaces the cached encoding of enc.Path for enc.Engine.
func (r *EncodingRepository) Put(enc *models.CachedEncoding) error {
	r.db.Lock()
	defer r.db.Unlock()

	_, err := r.db.Conn().Exec(`
		INSERT INTO reference_encodings (path, engine, size, mtime, label, encoding)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(path, engine) DO UPDATE SET
			size = excluded.size,
			mtime = excluded.mtime,
			label = excluded.label,
			encoding = excluded.encoding
	`, enc.Path, enc.Engine, enc.Size, enc.ModTime.UnixNano(), enc.Label, marshalEncoding(enc.Encoding))
	if err != nil {
		return fmt.Errorf("failed to store encoding: %w", err)
	}
	return nil
}

// Prune removes rows of engine whose path is not in keep and reports how many went.
func (r *EncodingRepository) Prune(engine string, keep []string) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	rows, err := r.db.Conn().Query(`SELECT path FROM reference_encodings WHERE engine = ?`, engine)
	if err != nil {
		return 0, fmt.Errorf("failed to list cached encodings: %w", err)
	}

	wanted := make(map[string]bool, len(keep))
	for _, p := range keep {
		wanted[p] = true
	}

	var stale []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan cached path: %w", err)
		}
		if !wanted[path] {
			stale = append(stale, path)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	var removed int64
	for _, path := range stale {
		res, err := r.db.Conn().Exec(`DELETE FROM reference_encodings WHERE path = ? AND engine = ?`, path, engine)
		if err != nil {
			return removed, fmt.Errorf("failed to prune %s: %w", path, err)
		}
		n, _ := res.RowsAffected()
		removed += n
	}
	return removed, nil
}
