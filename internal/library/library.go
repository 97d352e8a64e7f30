// Package library stores the owned-book shelf in SQLite. The gap
// analyzer reads owned series positions from here.
package library

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/lepinkainen/bookstor/internal/metadata"
)

const schema = `
CREATE TABLE IF NOT EXISTS books (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	isbn TEXT NOT NULL UNIQUE,
	title TEXT NOT NULL DEFAULT '',
	subtitle TEXT NOT NULL DEFAULT '',
	authors TEXT NOT NULL DEFAULT '[]',
	description TEXT NOT NULL DEFAULT '',
	publisher TEXT NOT NULL DEFAULT '',
	published_date TEXT NOT NULL DEFAULT '',
	page_count INTEGER NOT NULL DEFAULT 0,
	categories TEXT NOT NULL DEFAULT '[]',
	thumbnail TEXT NOT NULL DEFAULT '',
	series_name TEXT NOT NULL DEFAULT '',
	series_key TEXT NOT NULL DEFAULT '',
	series_position TEXT NOT NULL DEFAULT '',
	added_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_books_series_key ON books(series_key);
`

// Store is the SQLite-backed shelf of owned books.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) the library database.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open library database: %w", err)
	}
	if err := db.Ping(); err != nil {
		closeErr := db.Close()
		return nil, errors.Join(fmt.Errorf("failed to connect to library database: %w", err), closeErr)
	}
	if _, err := db.Exec(schema); err != nil {
		closeErr := db.Close()
		return nil, errors.Join(fmt.Errorf("failed to create library schema: %w", err), closeErr)
	}
	return &Store{db: db, path: dbPath}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Add stores a book on the shelf. Adding the same ISBN again replaces
// the stored metadata.
func (s *Store) Add(ctx context.Context, book *metadata.BookMetadata) error {
	if book == nil || book.ISBN == "" {
		return errors.New("book with ISBN is required")
	}

	authors, err := json.Marshal(book.Authors)
	if err != nil {
		return fmt.Errorf("failed to encode authors: %w", err)
	}
	categories, err := json.Marshal(book.Categories)
	if err != nil {
		return fmt.Errorf("failed to encode categories: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO books
			(isbn, title, subtitle, authors, description, publisher, published_date,
			 page_count, categories, thumbnail, series_name, series_key, series_position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(isbn) DO UPDATE SET
			title = excluded.title,
			subtitle = excluded.subtitle,
			authors = excluded.authors,
			description = excluded.description,
			publisher = excluded.publisher,
			published_date = excluded.published_date,
			page_count = excluded.page_count,
			categories = excluded.categories,
			thumbnail = excluded.thumbnail,
			series_name = excluded.series_name,
			series_key = excluded.series_key,
			series_position = excluded.series_position
	`, book.ISBN, book.Title, book.Subtitle, string(authors), book.Description,
		book.Publisher, book.PublishedDate, book.PageCount, string(categories),
		book.Thumbnail, book.SeriesName, seriesKey(book.SeriesName), book.SeriesPosition)
	if err != nil {
		return fmt.Errorf("failed to store book %s: %w", book.ISBN, err)
	}
	return nil
}

// GetByISBN returns the stored book for an ISBN, or nil when the shelf
// does not have it.
func (s *Store) GetByISBN(ctx context.Context, isbn string) (*metadata.BookMetadata, error) {
	row := s.db.QueryRowContext(ctx, selectQuery+" WHERE isbn = ?", isbn)
	book, err := scanBook(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query book %s: %w", isbn, err)
	}
	return book, nil
}

// BySeries returns owned books belonging to the named series. Matching
// uses the same folded series key the analyzer uses, so "The Expanse"
// and "Expanse series" land in the same bucket.
func (s *Store) BySeries(ctx context.Context, seriesName string) ([]*metadata.BookMetadata, error) {
	rows, err := s.db.QueryContext(ctx, selectQuery+" WHERE series_key = ? ORDER BY series_position, id", seriesKey(seriesName))
	if err != nil {
		return nil, fmt.Errorf("failed to query series %s: %w", seriesName, err)
	}
	defer func() { _ = rows.Close() }()

	return scanBooks(rows)
}

// All returns every owned book, newest first.
func (s *Store) All(ctx context.Context) ([]*metadata.BookMetadata, error) {
	rows, err := s.db.QueryContext(ctx, selectQuery+" ORDER BY added_at DESC, id DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query books: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanBooks(rows)
}

const selectQuery = `
	SELECT isbn, title, subtitle, authors, description, publisher, published_date,
	       page_count, categories, thumbnail, series_name, series_position
	FROM books
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBook(row rowScanner) (*metadata.BookMetadata, error) {
	var book metadata.BookMetadata
	var authors, categories string
	err := row.Scan(&book.ISBN, &book.Title, &book.Subtitle, &authors,
		&book.Description, &book.Publisher, &book.PublishedDate, &book.PageCount,
		&categories, &book.Thumbnail, &book.SeriesName, &book.SeriesPosition)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(authors), &book.Authors); err != nil {
		return nil, fmt.Errorf("failed to decode authors for %s: %w", book.ISBN, err)
	}
	if err := json.Unmarshal([]byte(categories), &book.Categories); err != nil {
		return nil, fmt.Errorf("failed to decode categories for %s: %w", book.ISBN, err)
	}
	return &book, nil
}

func scanBooks(rows *sql.Rows) ([]*metadata.BookMetadata, error) {
	var books []*metadata.BookMetadata
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan book row: %w", err)
		}
		books = append(books, book)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate book rows: %w", err)
	}
	return books, nil
}

func seriesKey(name string) string {
	return strings.ToLower(strings.TrimSpace(metadata.CleanSeriesName(name)))
}
