package auth

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// MinPasswordLength is the shortest password accepted on register and change
const MinPasswordLength = 6

// Account is the persisted credential record
type Account struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	Name          string     `bun:"name" json:"name"`
	Email         string     `bun:"email,notnull,unique" json:"email"`
	PasswordHash  string     `bun:"password_hash,notnull" json:"-"`
	Role          UserRole   `bun:"role,notnull" json:"role"`
	Phone         string     `bun:"phone" json:"phone,omitempty"`
	Address       string     `bun:"address" json:"address,omitempty"`
	City          string     `bun:"city" json:"city,omitempty"`
	Country       string     `bun:"country" json:"country,omitempty"`
	PostalCode    string     `bun:"postal_code" json:"postalCode,omitempty"`
	AvatarURL     string     `bun:"avatar_url" json:"avatarUrl,omitempty"`
	IsActive      bool       `bun:"is_active,notnull" json:"isActive"`
	EmailVerified bool       `bun:"email_verified,notnull" json:"emailVerified"`
	LastLoginAt   *time.Time `bun:"last_login_at,nullzero" json:"lastLoginAt,omitempty"`
	CreatedAt     time.Time  `bun:"created_at,nullzero,notnull" json:"createdAt"`
	UpdatedAt     time.Time  `bun:"updated_at,nullzero,notnull" json:"updatedAt"`
}

// IsAdmin reports whether the account carries the admin role
func (a *Account) IsAdmin() bool {
	return a != nil && a.Role == RoleAdmin
}

// PublicAccount is the user object returned by register and login
type PublicAccount struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Email string   `json:"email"`
	Role  UserRole `json:"role"`
}

// Public returns the view of the account that is safe to send to clients
func (a *Account) Public() PublicAccount {
	return PublicAccount{
		ID:    a.ID.String(),
		Name:  a.Name,
		Email: a.Email,
		Role:  a.Role,
	}
}

// AccountProfile is the extended view used by the profile and admin endpoints
type AccountProfile struct {
	PublicAccount
	Phone         string     `json:"phone,omitempty"`
	Address       string     `json:"address,omitempty"`
	City          string     `json:"city,omitempty"`
	Country       string     `json:"country,omitempty"`
	PostalCode    string     `json:"postalCode,omitempty"`
	AvatarURL     string     `json:"avatarUrl,omitempty"`
	IsActive      bool       `json:"isActive"`
	EmailVerified bool       `json:"emailVerified"`
	LastLoginAt   *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// Profile returns the extended client view
func (a *Account) Profile() AccountProfile {
	return AccountProfile{
		PublicAccount: a.Public(),
		Phone:         a.Phone,
		Address:       a.Address,
		City:          a.City,
		Country:       a.Country,
		PostalCode:    a.PostalCode,
		AvatarURL:     a.AvatarURL,
		IsActive:      a.IsActive,
		EmailVerified: a.EmailVerified,
		LastLoginAt:   a.LastLoginAt,
		CreatedAt:     a.CreatedAt,
	}
}

// ProfileUpdate lists the fields a user may change on their own account.
// A nil field is left untouched.
type ProfileUpdate struct {
	Name       *string `json:"name,omitempty"`
	Phone      *string `json:"phone,omitempty"`
	Address    *string `json:"address,omitempty"`
	City       *string `json:"city,omitempty"`
	Country    *string `json:"country,omitempty"`
	PostalCode *string `json:"postalCode,omitempty"`
}

// IsEmpty reports whether no field is set
func (p ProfileUpdate) IsEmpty() bool {
	return p.Name == nil && p.Phone == nil && p.Address == nil &&
		p.City == nil && p.Country == nil && p.PostalCode == nil
}

func (p ProfileUpdate) fields() []string {
	fields := make([]string, 0, 6)
	for name, v := range map[string]*string{
		"name":        p.Name,
		"phone":       p.Phone,
		"address":     p.Address,
		"city":        p.City,
		"country":     p.Country,
		"postal_code": p.PostalCode,
	} {
		if v != nil {
			fields = append(fields, name)
		}
	}
	sort.Strings(fields)
	return fields
}

// AuthResult is returned by the register and login flows
type AuthResult struct {
	Token       string        `json:"token"`
	ExpiresAt   time.Time     `json:"-"`
	User        PublicAccount `json:"user"`
	Permissions []string      `json:"permissions,omitempty"`
}

// ListOptions filters the admin account listing
type ListOptions struct {
	Page   int
	Limit  int
	Role   UserRole
	Search string
}

const (
	defaultListLimit = 10
	maxListLimit     = 100
)

func (o ListOptions) normalize() ListOptions {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.Limit < 1 {
		o.Limit = defaultListLimit
	}
	if o.Limit > maxListLimit {
		o.Limit = maxListLimit
	}
	return o
}

func (o ListOptions) offset() int {
	return (o.Page - 1) * o.Limit
}

// AccountPage is one page of the admin listing
type AccountPage struct {
	Accounts   []AccountProfile `json:"users"`
	Total      int              `json:"total"`
	Page       int              `json:"page"`
	Limit      int              `json:"limit"`
	TotalPages int              `json:"totalPages"`
}

func newAccountPage(accounts []*Account, total int, opts ListOptions) AccountPage {
	page := AccountPage{
		Accounts: make([]AccountProfile, 0, len(accounts)),
		Total:    total,
		Page:     opts.Page,
		Limit:    opts.Limit,
	}
	for _, a := range accounts {
		page.Accounts = append(page.Accounts, a.Profile())
	}
	if opts.Limit > 0 {
		page.TotalPages = (total + opts.Limit - 1) / opts.Limit
	}
	return page
}
