package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Options configures how the store is opened.
type Options struct {
	Driver       string
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
	MaxIdleTime  time.Duration
}

// Database provides high-level helpers around a SQLite or PostgreSQL
// connection pool.
type Database struct {
	db     *sql.DB
	driver string

	insertSellerStmt *sql.Stmt
	insertBookStmt   *sql.Stmt
}

// NewDatabase opens (or creates) the SQLite database at dbPath.
func NewDatabase(dbPath string) (*Database, error) {
	return Open(context.Background(), Options{Driver: DriverSQLite, DSN: dbPath})
}

// Open connects to the store described by opts, applies schema migrations,
// and prepares common statements.
func Open(ctx context.Context, opts Options) (*Database, error) {
	var dsn string
	switch opts.Driver {
	case DriverSQLite, "":
		opts.Driver = DriverSQLite
		dsn = sqliteDSN(opts.DSN)
		// Ensure directory exists so first-run succeeds.
		if dir := filepath.Dir(opts.DSN); dir != "." && !strings.HasPrefix(opts.DSN, "file:") {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create db dir: %w", err)
			}
		}
	case DriverPostgres:
		dsn = opts.DSN
	default:
		return nil, fmt.Errorf("unsupported driver %q", opts.Driver)
	}

	db, err := sql.Open(opts.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", opts.Driver, err)
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.MaxIdleTime > 0 {
		db.SetConnMaxIdleTime(opts.MaxIdleTime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	database := &Database{db: db, driver: opts.Driver}
	if err := database.applyMigrations(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if err := database.prepareStatements(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return database, nil
}

// sqliteDSN enables busy_timeout and foreign keys on every pooled connection.
func sqliteDSN(path string) string {
	if strings.HasPrefix(path, "file:") {
		return path
	}
	return fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=1", path)
}

// Close releases prepared statements and closes the DB.
func (d *Database) Close() error {
	if d.insertSellerStmt != nil {
		d.insertSellerStmt.Close()
	}
	if d.insertBookStmt != nil {
		d.insertBookStmt.Close()
	}
	return d.db.Close()
}

// Driver reports which SQL driver backs the store.
func (d *Database) Driver() string { return d.driver }

// Ping checks that the store is reachable.
func (d *Database) Ping(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return nil
}

// rebind rewrites ? placeholders into $N for PostgreSQL.
func (d *Database) rebind(query string) string {
	if d.driver != DriverPostgres {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// ---------------------------------------------------------------------------
// Schema migration
// ---------------------------------------------------------------------------

const schemaVersion = 1

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS sellers (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        first_name VARCHAR(50) NOT NULL,
        last_name VARCHAR(50) NOT NULL,
        email VARCHAR(50) NOT NULL UNIQUE,
        password TEXT NOT NULL
    );`,
	`CREATE TABLE IF NOT EXISTS books (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        author TEXT NOT NULL,
        title TEXT NOT NULL,
        year INTEGER NOT NULL,
        count_pages INTEGER NOT NULL,
        seller_id INTEGER NOT NULL REFERENCES sellers(id) ON DELETE CASCADE
    );`,
	`CREATE INDEX IF NOT EXISTS idx_books_seller_id ON books(seller_id);`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS sellers (
        id BIGSERIAL PRIMARY KEY,
        first_name VARCHAR(50) NOT NULL,
        last_name VARCHAR(50) NOT NULL,
        email VARCHAR(50) NOT NULL UNIQUE,
        password TEXT NOT NULL
    );`,
	`CREATE TABLE IF NOT EXISTS books (
        id BIGSERIAL PRIMARY KEY,
        author TEXT NOT NULL,
        title TEXT NOT NULL,
        year INTEGER NOT NULL,
        count_pages INTEGER NOT NULL,
        seller_id BIGINT NOT NULL REFERENCES sellers(id) ON DELETE CASCADE
    );`,
	`CREATE INDEX IF NOT EXISTS idx_books_seller_id ON books(seller_id);`,
}

func (d *Database) applyMigrations(ctx context.Context) error {
	if d.driver == DriverSQLite {
		// WAL improves write concurrency.
		if _, err := d.db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
			return fmt.Errorf("enable WAL: %w", err)
		}
	}

	if _, err := d.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);`); err != nil {
		return err
	}

	var current int
	_ = d.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key='schema_version';`).Scan(&current)
	if current >= schemaVersion {
		return nil
	}

	stmts := sqliteSchema
	if d.driver == DriverPostgres {
		stmts = postgresSchema
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, d.rebind(`INSERT INTO meta(key,value) VALUES('schema_version',?)
        ON CONFLICT(key) DO UPDATE SET value=excluded.value;`), strconv.Itoa(schemaVersion)); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}

	return tx.Commit()
}

// ---------------------------------------------------------------------------
// Prepared statements
// ---------------------------------------------------------------------------

func (d *Database) prepareStatements(ctx context.Context) error {
	var err error
	if d.insertSellerStmt, err = d.db.PrepareContext(ctx, d.rebind(
		`INSERT INTO sellers(first_name,last_name,email,password) VALUES(?,?,?,?) RETURNING id`)); err != nil {
		return err
	}
	if d.insertBookStmt, err = d.db.PrepareContext(ctx, d.rebind(
		`INSERT INTO books(author,title,year,count_pages,seller_id) VALUES(?,?,?,?,?) RETURNING id`)); err != nil {
		return err
	}
	return nil
}

// ---------------------------------------------------------------------------
// Unit of work
// ---------------------------------------------------------------------------

// withTx runs fn inside a single transaction. The transaction commits when fn
// returns nil and rolls back on every other exit path, panics included.
func (d *Database) withTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()
	return fn(tx)
}

// ---------------------------------------------------------------------------
// Sellers
// ---------------------------------------------------------------------------

// InsertSeller stores s and fills in its generated ID.
func (d *Database) InsertSeller(ctx context.Context, s *Seller) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.StmtContext(ctx, d.insertSellerStmt).
			QueryRowContext(ctx, s.FirstName, s.LastName, s.Email, s.Password).
			Scan(&s.ID)
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return err
	})
}

// GetSeller fetches a single seller, password included, without books.
func (d *Database) GetSeller(ctx context.Context, id int64) (*Seller, error) {
	var s Seller
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		return scanSeller(ctx, tx, d.rebind(`SELECT id,first_name,last_name,email,password FROM sellers WHERE id=?`), id, &s)
	})
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetSellerWithBooks loads a seller and every book it owns in one
// transaction. Books are ordered by id.
func (d *Database) GetSellerWithBooks(ctx context.Context, id int64) (*Seller, error) {
	var s Seller
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		if err := scanSeller(ctx, tx, d.rebind(`SELECT id,first_name,last_name,email,password FROM sellers WHERE id=?`), id, &s); err != nil {
			return err
		}
		books, err := d.queryBooks(ctx, tx, d.rebind(`SELECT id,author,title,year,count_pages,seller_id FROM books WHERE seller_id=? ORDER BY id`), id)
		if err != nil {
			return err
		}
		s.Books = books
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func scanSeller(ctx context.Context, tx *sql.Tx, query string, id int64, s *Seller) error {
	err := tx.QueryRowContext(ctx, query, id).Scan(&s.ID, &s.FirstName, &s.LastName, &s.Email, &s.Password)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrRecordNotFound
	}
	return err
}

// GetAllSellers returns every seller ordered by id, without books.
func (d *Database) GetAllSellers(ctx context.Context) ([]*Seller, error) {
	sellers := []*Seller{}
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `SELECT id,first_name,last_name,email FROM sellers ORDER BY id`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var s Seller
			if err := rows.Scan(&s.ID, &s.FirstName, &s.LastName, &s.Email); err != nil {
				return err
			}
			sellers = append(sellers, &s)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return sellers, nil
}

// UpdateSeller overwrites the name and email of the seller with s.ID. The
// password column is never touched. s is refreshed from the stored row.
func (d *Database) UpdateSeller(ctx context.Context, s *Seller) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			d.rebind(`UPDATE sellers SET first_name=?, last_name=?, email=? WHERE id=? RETURNING id,first_name,last_name,email`),
			s.FirstName, s.LastName, s.Email, s.ID).
			Scan(&s.ID, &s.FirstName, &s.LastName, &s.Email)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return ErrRecordNotFound
		case isUniqueViolation(err):
			return ErrDuplicateEmail
		}
		return err
	})
}

// DeleteSeller removes a seller and all of its books in one transaction.
// Deleting an unknown id is not an error. It reports whether a seller row
// was removed.
func (d *Database) DeleteSeller(ctx context.Context, id int64) (bool, error) {
	var deleted bool
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, d.rebind(`DELETE FROM books WHERE seller_id=?`), id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, d.rebind(`DELETE FROM sellers WHERE id=?`), id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		deleted = n > 0
		return nil
	})
	return deleted, err
}

// ---------------------------------------------------------------------------
// Books
// ---------------------------------------------------------------------------

// AddBook inserts a book for an existing seller and returns its id.
func (d *Database) AddBook(ctx context.Context, b *Book) (int64, error) {
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.StmtContext(ctx, d.insertBookStmt).
			QueryRowContext(ctx, b.Author, b.Title, b.Year, b.CountPages, b.SellerID).
			Scan(&b.ID)
		if isForeignKeyViolation(err) {
			return fmt.Errorf("seller %d: %w", b.SellerID, ErrRecordNotFound)
		}
		return err
	})
	if err != nil {
		return 0, err
	}
	return b.ID, nil
}

func (d *Database) GetBook(ctx context.Context, id int64) (*Book, error) {
	var b Book
	err := d.db.QueryRowContext(ctx, d.rebind(`SELECT id,author,title,year,count_pages,seller_id FROM books WHERE id=?`), id).
		Scan(&b.ID, &b.Author, &b.Title, &b.Year, &b.CountPages, &b.SellerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// GetBooksBySeller returns a seller's books ordered by id.
func (d *Database) GetBooksBySeller(ctx context.Context, sellerID int64) ([]*Book, error) {
	var books []*Book
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		books, err = d.queryBooks(ctx, tx, d.rebind(`SELECT id,author,title,year,count_pages,seller_id FROM books WHERE seller_id=? ORDER BY id`), sellerID)
		return err
	})
	return books, err
}

func (d *Database) queryBooks(ctx context.Context, tx *sql.Tx, query string, args ...any) ([]*Book, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	books := []*Book{}
	for rows.Next() {
		var b Book
		if err := rows.Scan(&b.ID, &b.Author, &b.Title, &b.Year, &b.CountPages, &b.SellerID); err != nil {
			return nil, err
		}
		books = append(books, &b)
	}
	return books, rows.Err()
}
