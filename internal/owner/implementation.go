// internal/owner/implementation.go
package owner

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"shelfboard/internal/sqlutil"
)

const minPasswordLen = 8

// service implements the Service interface.
type service struct {
	db          *sql.DB
	dialect     sqlutil.Dialect
	rateLimiter *rate.Limiter
}

// NewService creates an owner service. limiter throttles registration and
// login; nil means 5 requests per minute.
func NewService(db *sql.DB, d sqlutil.Dialect, limiter *rate.Limiter) Service {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Every(1*time.Minute), 5)
	}
	return &service{
		db:          db,
		dialect:     d,
		rateLimiter: limiter,
	}
}

// Migrate creates the owner tables.
func Migrate(ctx context.Context, db *sql.DB, d sqlutil.Dialect) error {
	ts := "DATETIME"
	if d == sqlutil.Postgres {
		ts = "TIMESTAMPTZ"
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS owners (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			created_at ` + ts + ` NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS credentials (
			owner_id TEXT PRIMARY KEY REFERENCES owners(id),
			password_hash TEXT NOT NULL,
			salt TEXT NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply owner schema: %w", err)
		}
	}
	return nil
}

// Register creates a new owner.
func (s *service) Register(ctx context.Context, email, name, password string) (*Owner, error) {
	if !s.rateLimiter.Allow() {
		return nil, ErrRateLimited
	}

	email = normalizeEmail(email)
	name = strings.TrimSpace(name)
	if !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: email is required", ErrInvalidOwner)
	}
	if len(password) < minPasswordLen {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidOwner, minPasswordLen)
	}
	if name == "" {
		name = email[:strings.Index(email, "@")]
	}

	passwordHash, salt, err := hashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	owner := &Owner{
		ID:        uuid.New(),
		Email:     email,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	credential := &Credential{
		OwnerID:      owner.ID,
		PasswordHash: passwordHash,
		Salt:         salt,
	}

	if err := s.insertOwner(ctx, owner, credential); err != nil {
		return nil, err
	}
	return owner, nil
}

func (s *service) insertOwner(ctx context.Context, owner *Owner, credential *Credential) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, s.dialect.Rebind(`
		INSERT INTO owners (id, email, name, created_at)
		VALUES (?, ?, ?, ?)
	`), owner.ID.String(), owner.Email, owner.Name, owner.CreatedAt)
	if err != nil {
		if sqlutil.IsUniqueViolation(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("insert owner: %w", err)
	}

	_, err = tx.ExecContext(ctx, s.dialect.Rebind(`
		INSERT INTO credentials (owner_id, password_hash, salt)
		VALUES (?, ?, ?)
	`), credential.OwnerID.String(), credential.PasswordHash, credential.Salt)
	if err != nil {
		return fmt.Errorf("insert credential: %w", err)
	}

	return tx.Commit()
}

// Authenticate verifies an owner's credentials. Unknown emails and wrong
// passwords both yield ErrInvalidCredentials.
func (s *service) Authenticate(ctx context.Context, email, password string) (*Owner, error) {
	if !s.rateLimiter.Allow() {
		return nil, ErrRateLimited
	}

	owner, err := s.scanOwner(ctx, `WHERE email = ?`, normalizeEmail(email))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("authentication failed: %w", err)
	}

	credential := &Credential{OwnerID: owner.ID}
	err = s.db.QueryRowContext(ctx, s.dialect.Rebind(`
		SELECT password_hash, salt FROM credentials WHERE owner_id = ?
	`), owner.ID.String()).Scan(&credential.PasswordHash, &credential.Salt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("authentication failed: %w", err)
	}

	ok, err := verifyPassword(password, credential.Salt, credential.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("authentication failed: %w", err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	return owner, nil
}

// Get retrieves an owner by id.
func (s *service) Get(ctx context.Context, id uuid.UUID) (*Owner, error) {
	return s.scanOwner(ctx, `WHERE id = ?`, id.String())
}

func (s *service) scanOwner(ctx context.Context, where string, arg any) (*Owner, error) {
	owner := &Owner{}
	var id string
	err := s.db.QueryRowContext(ctx, s.dialect.Rebind(`
		SELECT id, email, name, created_at FROM owners `+where), arg).Scan(
		&id,
		&owner.Email,
		&owner.Name,
		&owner.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query owner: %w", err)
	}
	if owner.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse owner id: %w", err)
	}
	return owner, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
