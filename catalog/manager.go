package catalog

import (
	"context"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Manager is a thin façade over the Database, shared by the HTTP API and the
// CLI. Each call validates its input and then performs exactly one unit of
// work against the store.
type Manager struct {
	db            *Database
	hashPasswords bool
}

// ManagerOption customises a Manager.
type ManagerOption func(*Manager)

// WithPasswordHashing stores bcrypt hashes instead of the submitted password.
func WithPasswordHashing(enabled bool) ManagerOption {
	return func(m *Manager) { m.hashPasswords = enabled }
}

func NewManager(db *Database, opts ...ManagerOption) *Manager {
	m := &Manager{db: db}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// OpenManager opens the store described by opts and wraps it in a Manager.
func OpenManager(ctx context.Context, opts Options, mopts ...ManagerOption) (*Manager, error) {
	db, err := Open(ctx, opts)
	if err != nil {
		return nil, err
	}
	return NewManager(db, mopts...), nil
}

// Close closes the underlying database.
func (m *Manager) Close() error { return m.db.Close() }

func (m *Manager) Ping(ctx context.Context) error { return m.db.Ping(ctx) }

// ------------------ Seller operations ------------------

// CreateSeller registers a new seller. A duplicate email yields
// ErrDuplicateEmail.
func (m *Manager) CreateSeller(ctx context.Context, in IncomingSeller) (ReturnedSeller, error) {
	if err := in.Validate(); err != nil {
		return ReturnedSeller{}, err
	}

	password := in.Password
	if m.hashPasswords {
		hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
		if err != nil {
			return ReturnedSeller{}, fmt.Errorf("hash password: %w", err)
		}
		password = string(hash)
	}

	s := &Seller{
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Email:     in.Email,
		Password:  password,
	}
	if err := m.db.InsertSeller(ctx, s); err != nil {
		return ReturnedSeller{}, err
	}
	return toReturnedSeller(s), nil
}

// ListSellers returns the seller-lite view of every seller, ordered by id.
func (m *Manager) ListSellers(ctx context.Context) (ReturnedAllSellers, error) {
	sellers, err := m.db.GetAllSellers(ctx)
	if err != nil {
		return ReturnedAllSellers{}, err
	}
	out := ReturnedAllSellers{Sellers: make([]ReturnedSeller, 0, len(sellers))}
	for _, s := range sellers {
		out.Sellers = append(out.Sellers, toReturnedSeller(s))
	}
	return out, nil
}

// GetSellerWithBooks returns ErrRecordNotFound when id does not exist.
func (m *Manager) GetSellerWithBooks(ctx context.Context, id int64) (ReturnedSellerBooks, error) {
	if id < 1 {
		return ReturnedSellerBooks{}, ErrRecordNotFound
	}
	s, err := m.db.GetSellerWithBooks(ctx, id)
	if err != nil {
		return ReturnedSellerBooks{}, err
	}
	return toReturnedSellerBooks(s), nil
}

// UpdateSeller replaces first name, last name and email. The password is
// left as it is.
func (m *Manager) UpdateSeller(ctx context.Context, id int64, in UpdatedSeller) (ReturnedSeller, error) {
	if err := in.Validate(); err != nil {
		return ReturnedSeller{}, err
	}
	if id < 1 {
		return ReturnedSeller{}, ErrRecordNotFound
	}
	s := &Seller{ID: id, FirstName: in.FirstName, LastName: in.LastName, Email: in.Email}
	if err := m.db.UpdateSeller(ctx, s); err != nil {
		return ReturnedSeller{}, err
	}
	return toReturnedSeller(s), nil
}

// DeleteSeller removes the seller and its books. Unknown ids are a no-op.
func (m *Manager) DeleteSeller(ctx context.Context, id int64) error {
	if id < 1 {
		return nil
	}
	_, err := m.db.DeleteSeller(ctx, id)
	return err
}

// CheckSellerPassword reports ErrInvalidCredentials unless password matches
// the stored one, whether it was stored verbatim or as a bcrypt hash.
func (m *Manager) CheckSellerPassword(ctx context.Context, id int64, password string) error {
	s, err := m.db.GetSeller(ctx, id)
	if err != nil {
		return err
	}
	if _, err := bcrypt.Cost([]byte(s.Password)); err == nil {
		if bcrypt.CompareHashAndPassword([]byte(s.Password), []byte(password)) == nil {
			return nil
		}
	}
	if subtle.ConstantTimeCompare([]byte(s.Password), []byte(password)) == 1 {
		return nil
	}
	return ErrInvalidCredentials
}

// ------------------ Book helpers ------------------

// AddBook lists a book under an existing seller.
func (m *Manager) AddBook(ctx context.Context, b Book) (int64, error) {
	return m.db.AddBook(ctx, &b)
}

func (m *Manager) GetBook(ctx context.Context, id int64) (*Book, error) { return m.db.GetBook(ctx, id) }

// ------------------ Utilities ------------------

// PrettySeller formats a seller for lists.
func PrettySeller(s ReturnedSeller) string {
	return fmt.Sprintf("%-5d %-20s %-20s %-30s", s.ID, s.FirstName, s.LastName, s.Email)
}

// PrettyBook formats a nested book for lists.
func PrettyBook(b ReturnedBookInfo) string {
	return fmt.Sprintf("%-5d %-30s %-25s %-6d %-6d", b.ID, b.Title, b.Author, b.Year, b.CountPages)
}
