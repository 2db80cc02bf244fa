package anyrec

import (
	"bytes"
	"database/sql"
	"image"
	"image/png"
	"sync"

	"github.com/unixpickle/essentials"

	_ "modernc.org/sqlite"
)

// SQLite records into a SQLite database with a scalars
// table and an images table of PNG blobs.
//
// Write errors do not interrupt training; the first one is
// kept and returned by Err.
type SQLite struct {
	db *sql.DB

	lock     sync.Mutex
	firstErr error
}

// OpenSQLite opens or creates a database file.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, essentials.AddCtx("open recorder", err)
	}
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS scalars(
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tag TEXT NOT NULL,
			step INTEGER NOT NULL,
			value REAL NOT NULL
		)`)
	if err == nil {
		_, err = db.Exec(`
			CREATE TABLE IF NOT EXISTS images(
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				tag TEXT NOT NULL,
				step INTEGER NOT NULL,
				png BLOB NOT NULL
			)`)
	}
	if err != nil {
		db.Close()
		return nil, essentials.AddCtx("open recorder", err)
	}
	return &SQLite{db: db}, nil
}

// Scalar inserts a row into the scalars table.
func (s *SQLite) Scalar(tag string, value float64, step int) {
	_, err := s.db.Exec("INSERT INTO scalars(tag, step, value) VALUES(?, ?, ?)",
		tag, step, value)
	s.keep(err)
}

// Image inserts a PNG into the images table.
func (s *SQLite) Image(tag string, img image.Image, step int) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		s.keep(err)
		return
	}
	_, err := s.db.Exec("INSERT INTO images(tag, step, png) VALUES(?, ?, ?)",
		tag, step, buf.Bytes())
	s.keep(err)
}

// Scalars reads back the points for a tag in step order.
func (s *SQLite) Scalars(tag string) ([]Point, error) {
	rows, err := s.db.Query("SELECT step, value FROM scalars WHERE tag = ? ORDER BY step, id",
		tag)
	if err != nil {
		return nil, essentials.AddCtx("read scalars", err)
	}
	defer rows.Close()
	var res []Point
	for rows.Next() {
		var p Point
		if err := rows.Scan(&p.Step, &p.Value); err != nil {
			return nil, essentials.AddCtx("read scalars", err)
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// ImageCount counts the stored images for a tag.
func (s *SQLite) ImageCount(tag string) (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM images WHERE tag = ?", tag).Scan(&n)
	return n, err
}

// Err returns the first write error.
func (s *SQLite) Err() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.firstErr
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) keep(err error) {
	if err == nil {
		return
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.firstErr == nil {
		s.firstErr = essentials.AddCtx("record", err)
	}
}
