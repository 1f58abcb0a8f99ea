// Package accounts handles signup, login and the user listing.
package accounts

import (
	"context"
	"errors"
	"strings"

	"github.com/qconnect/qconnect/internal/apperr"
	"github.com/qconnect/qconnect/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

const (
	invalidLoginMessage = "Invalid email or password"

	// DefaultHashConcurrency bounds simultaneous password hash operations.
	// Each one holds the hasher's full memory cost.
	DefaultHashConcurrency = 4
)

// Store is the persistence the directory needs. InsertUser must report a
// taken email as apperr.ErrDuplicateEmail and GetUserByEmail a miss as apperr.ErrNotFound.
type Store interface {
	InsertUser(ctx context.Context, u *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	UpdateUserPassword(ctx context.Context, id int64, hash string) error
}

// Hasher is satisfied by *auth.Hasher.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
	VerifyDummy(password string)
	NeedsRehash(encodedHash string) bool
}

type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
	Role     string `json:"role"`
}

type SignupResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// LoginResult is either a session description or a generic failure.
type LoginResult struct {
	Success  bool   `json:"success"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role,omitempty"`
	Username string `json:"username,omitempty"`
	Message  string `json:"message,omitempty"`
}

// Directory owns user accounts.
type Directory struct {
	store     Store
	hasher    Hasher
	hashSlots *semaphore.Weighted
	admins    map[string]struct{}
	logger    *logrus.Logger
}

type Option func(*Directory)

// WithHashConcurrency caps how many hash or verify calls run at once. Callers
// beyond the cap wait for a slot or for their context to end.
func WithHashConcurrency(n int) Option {
	return func(d *Directory) {
		if n < 1 {
			n = 1
		}
		d.hashSlots = semaphore.NewWeighted(int64(n))
	}
}

// NewDirectory returns a Directory that grants the admin role to adminEmails.
func NewDirectory(store Store, hasher Hasher, adminEmails []string, logger *logrus.Logger, opts ...Option) *Directory {
	admins := make(map[string]struct{}, len(adminEmails))
	for _, e := range adminEmails {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			admins[e] = struct{}{}
		}
	}
	d := &Directory{
		store:     store,
		hasher:    hasher,
		hashSlots: semaphore.NewWeighted(DefaultHashConcurrency),
		admins:    admins,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// withHashSlot runs fn while holding one hashing slot.
func (d *Directory) withHashSlot(ctx context.Context, fn func()) error {
	if err := d.hashSlots.Acquire(ctx, 1); err != nil {
		return err
	}
	defer d.hashSlots.Release(1)
	fn()
	return nil
}

// Signup hashes the password and stores a new account.
func (d *Directory) Signup(ctx context.Context, req SignupRequest) (SignupResult, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Phone = strings.TrimSpace(req.Phone)
	if req.Name == "" || req.Email == "" || req.Password == "" || req.Phone == "" {
		return SignupResult{}, apperr.Invalid("", "Missing fields")
	}

	role := strings.TrimSpace(req.Role)
	if role == "" {
		role = models.RoleUser
	}

	var hash string
	var err error
	if slotErr := d.withHashSlot(ctx, func() { hash, err = d.hasher.Hash(req.Password) }); slotErr != nil {
		return SignupResult{}, apperr.Persistence("signup", slotErr)
	}
	if err != nil {
		return SignupResult{}, apperr.Persistence("hash password", err)
	}

	user := &models.User{
		Name:     req.Name,
		Email:    req.Email,
		Password: hash,
		Phone:    req.Phone,
		Role:     role,
	}
	if err := d.store.InsertUser(ctx, user); err != nil {
		return SignupResult{}, apperr.Persistence("signup", err)
	}

	d.logger.WithFields(logrus.Fields{"user_id": user.ID, "email": user.Email}).Info("user signed up")
	return SignupResult{Success: true, Message: "signup successful"}, nil
}

// Login checks the credentials. Bad credentials are a failed result, not an
// error, and the message never says which of the two was wrong.
func (d *Directory) Login(ctx context.Context, email, password string) (LoginResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return LoginResult{}, apperr.Invalid("", "Missing fields")
	}

	user, err := d.store.GetUserByEmail(ctx, email)
	if errors.Is(err, apperr.ErrNotFound) {
		if slotErr := d.withHashSlot(ctx, func() { d.hasher.VerifyDummy(password) }); slotErr != nil {
			return LoginResult{}, apperr.Persistence("login", slotErr)
		}
		return failedLogin(), nil
	}
	if err != nil {
		return LoginResult{}, apperr.Persistence("login", err)
	}

	var ok bool
	if slotErr := d.withHashSlot(ctx, func() { ok, err = d.hasher.Verify(password, user.Password) }); slotErr != nil {
		return LoginResult{}, apperr.Persistence("login", slotErr)
	}
	if err != nil {
		d.logger.WithField("user_id", user.ID).Warnf("stored password hash unreadable: %v", err)
		return failedLogin(), nil
	}
	if !ok {
		return failedLogin(), nil
	}
	if d.hasher.NeedsRehash(user.Password) {
		d.rehash(ctx, user, password)
	}

	return LoginResult{
		Success:  true,
		Email:    user.Email,
		Role:     d.RoleFor(user.Email),
		Username: user.Name,
	}, nil
}

// rehash upgrades a stored hash left by older parameters or the previous
// backend's werkzeug format. Failure is logged and the login still succeeds.
func (d *Directory) rehash(ctx context.Context, user *models.User, password string) {
	var hash string
	var err error
	if slotErr := d.withHashSlot(ctx, func() { hash, err = d.hasher.Hash(password) }); slotErr != nil {
		return
	}
	if err == nil {
		err = d.store.UpdateUserPassword(ctx, user.ID, hash)
	}
	if err != nil {
		d.logger.WithField("user_id", user.ID).Warnf("password rehash failed: %v", err)
		return
	}
	d.logger.WithField("user_id", user.ID).Info("password hash upgraded")
}

// RoleFor derives the effective role from the configured admin list. The
// stored role column is not consulted.
func (d *Directory) RoleFor(email string) string {
	if _, ok := d.admins[strings.ToLower(strings.TrimSpace(email))]; ok {
		return models.RoleAdmin
	}
	return models.RoleUser
}

// Users lists every account without credentials.
func (d *Directory) Users(ctx context.Context) ([]models.UserSummary, error) {
	users, err := d.store.ListUsers(ctx)
	if err != nil {
		return nil, apperr.Persistence("list users", err)
	}
	out := make([]models.UserSummary, 0, len(users))
	for _, u := range users {
		out = append(out, models.UserSummary{ID: u.ID, Name: u.Name, Email: u.Email, Phone: u.Phone})
	}
	return out, nil
}

func failedLogin() LoginResult {
	return LoginResult{Success: false, Message: invalidLoginMessage}
}
