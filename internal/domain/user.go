package domain

import (
	"fmt"
	"strings"
)

type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
)

func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleBuyer, RoleSeller:
		return r, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

// Dashboard is the landing page for a role.
func (r Role) Dashboard() string {
	switch r {
	case RoleBuyer:
		return "/buyer"
	case RoleSeller:
		return "/seller"
	}
	return "/login"
}

type User struct {
	ID        string `db:"id" json:"id"`
	Email     string `db:"email" json:"email"`
	Name      string `db:"name" json:"name"`
	Hash      string `db:"password_hash" json:"-"`
	Role      Role   `db:"role" json:"role"`
	ShopName  string `db:"shop_name" json:"shopName,omitempty"`
	Address   string `db:"address" json:"address,omitempty"`
	CreatedAt string `db:"created_at" json:"createdAt,omitempty"`
}

func (u *User) UserID() string { return u.ID }

func (u *User) IsSeller() bool { return u != nil && u.Role == RoleSeller }
