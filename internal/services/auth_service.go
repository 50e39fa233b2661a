package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"bookfair/internal/domain"
	"bookfair/internal/repos"
	"bookfair/internal/validate"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Registration is the sign-up form, shared by the page and the API.
type Registration struct {
	Name     string `json:"name" validate:"required,max=50"`
	Email    string `json:"email" validate:"required,email,max=100"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Role     string `json:"role" validate:"required,oneof=buyer seller"`
	ShopName string `json:"shopName" validate:"required_if=Role seller,max=80"`
	Address  string `json:"address" validate:"required_if=Role seller,max=300"`
}

type AuthService struct {
	Users  *repos.UserRepo
	Tokens *Tokens
}

// Register creates the account. Invalid input comes back as
// validate.FieldErrors; a taken email as domain.ErrEmailTaken.
func (s *AuthService) Register(ctx context.Context, in Registration) (*domain.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Role = strings.ToLower(strings.TrimSpace(in.Role))
	in.ShopName = strings.TrimSpace(in.ShopName)
	in.Address = strings.TrimSpace(in.Address)
	if fe := validate.Struct(in); fe != nil {
		return nil, fe
	}
	role, err := domain.ParseRole(in.Role)
	if err != nil {
		return nil, err
	}
	if _, err := s.Users.ByEmail(ctx, in.Email); err == nil {
		return nil, domain.ErrEmailTaken
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u := &domain.User{
		ID:    uuid.NewString(),
		Email: in.Email,
		Name:  in.Name,
		Hash:  string(hash),
		Role:  role,
	}
	if role == domain.RoleSeller {
		u.ShopName = in.ShopName
		u.Address = in.Address
	}
	if err := s.Users.Create(ctx, u); err != nil {
		// lost a race on the unique email index
		if _, lookup := s.Users.ByEmail(ctx, in.Email); lookup == nil {
			return nil, domain.ErrEmailTaken
		}
		return nil, err
	}
	return u, nil
}

// Authenticate checks credentials without touching any session.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	u, err := s.Users.ByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, domain.ErrBadCreds
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Hash), []byte(password)) != nil {
		return nil, domain.ErrBadCreds
	}
	return u, nil
}

// Login authenticates and binds the cookie session sid to the user.
func (s *AuthService) Login(ctx context.Context, sid, email, password string) (*domain.User, error) {
	u, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if err := s.Users.BindSession(ctx, sid, u.ID); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *AuthService) Logout(ctx context.Context, sid string) error {
	return s.Users.UnbindSession(ctx, sid)
}

func (s *AuthService) CurrentUser(ctx context.Context, sid string) (*domain.User, error) {
	return s.Users.SessionUser(ctx, sid)
}

func (s *AuthService) IssueToken(u *domain.User) (string, error) {
	return s.Tokens.Issue(u)
}

// TokenUser resolves a bearer token to a live account.
func (s *AuthService) TokenUser(ctx context.Context, raw string) (*domain.User, error) {
	claims, err := s.Tokens.Parse(raw)
	if err != nil {
		return nil, err
	}
	u, err := s.Users.ByID(ctx, claims.UserID)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return u, nil
}
