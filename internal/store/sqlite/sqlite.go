package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/vovakirdan/linechat-server/internal/store"
	"github.com/vovakirdan/linechat-server/internal/store/migrations"
)

// defaultBirthday is reported for rows stored without a birthday.
var defaultBirthday = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New opens the SQLite database at dbPath and applies migrations.
func New(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	db, err := open(dbPath)
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if err := migrations.Up(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

// NewWithSetup creates a new SQLite store and runs a setup function instead of migrations.
// Useful for tests that need a custom schema.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := open(dbPath)
	if err != nil {
		return nil, err
	}

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// NewFromDB wraps an already opened database handle.
func NewFromDB(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func open(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; :memory: databases also need it
	// so every query sees the same schema.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return db, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== UserStore implementation ====

// CreateUser inserts a user and returns the stored row.
func (s *SQLiteStore) CreateUser(ctx context.Context, u store.NewUser) (*store.User, error) {
	query := `
		INSERT INTO users (login, password_hash, username, birthday, city, description)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	var birthday sql.NullString
	if !u.Birthday.IsZero() {
		birthday = sql.NullString{String: u.Birthday.Format(store.DateLayout), Valid: true}
	}

	result, err := s.db.ExecContext(ctx, query, u.Login, u.PasswordHash, u.Username, birthday, u.City, u.Description)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("insert user %q: %w", u.Login, store.ErrConflict)
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

const userColumns = `id, login, password_hash, username, birthday, city, description, created_at`

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*store.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// GetUserByLogin retrieves a user by login.
func (s *SQLiteStore) GetUserByLogin(ctx context.Context, login string) (*store.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE login = ?`, login)
	return scanUser(row)
}

// ListUsers returns every registered user ordered by ID.
func (s *SQLiteStore) ListUsers(ctx context.Context) ([]*store.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []*store.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}

	return users, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*store.User, error) {
	var user store.User
	var birthday sql.NullString
	err := row.Scan(
		&user.ID,
		&user.Login,
		&user.PasswordHash,
		&user.Username,
		&birthday,
		&user.City,
		&user.Description,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user not found: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	user.Birthday = defaultBirthday
	if birthday.Valid && birthday.String != "" {
		parsed, err := time.Parse(store.DateLayout, birthday.String)
		if err != nil {
			return nil, fmt.Errorf("parse birthday %q: %w", birthday.String, err)
		}
		user.Birthday = parsed
	}

	return &user, nil
}

// ==== FriendStore implementation ====

// AddFriendEdge records a directed edge; duplicates are ignored.
func (s *SQLiteStore) AddFriendEdge(ctx context.Context, fromID, toID int64) error {
	query := `INSERT OR IGNORE INTO friends (id1, id2) VALUES (?, ?)`
	if _, err := s.db.ExecContext(ctx, query, fromID, toID); err != nil {
		return fmt.Errorf("insert friend edge: %w", err)
	}
	return nil
}

// ListMutualFriendIDs returns ids with edges in both directions to userID.
func (s *SQLiteStore) ListMutualFriendIDs(ctx context.Context, userID int64) ([]int64, error) {
	query := `
		SELECT f.id2
		FROM friends f
		JOIN friends r ON r.id1 = f.id2 AND r.id2 = f.id1
		WHERE f.id1 = ?
		ORDER BY f.id2
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query mutual friends: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan friend id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
