package domain

import "time"

// User is a customer account.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Phone        string
	Address      *Address
	IsBlocked    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Admin is a back-office account. Role is either "admin" or "staff".
type Admin struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Cart holds the mutable pre-checkout state for one user. A user has at most
// one cart; the document identifier is the user identifier.
type Cart struct {
	UserID    string
	Items     []CartItem
	UpdatedAt time.Time
}

// CartItem is one product entry in a cart. Quantity stays within [1, 99] and
// a product appears at most once per cart.
type CartItem struct {
	ProductID string
	Quantity  int64
	AddedAt   time.Time
}

// Favourite is a (user, product) membership pair.
type Favourite struct {
	UserID    string
	ProductID string
	CreatedAt time.Time
}

// ActivityLog is an append-only audit record of an administrative action.
type ActivityLog struct {
	ID         string
	ActorID    string
	ActorRole  string
	Action     string
	EntityType string
	EntityID   string
	Changes    map[string]any
	IPHash     string
	CreatedAt  time.Time
}
