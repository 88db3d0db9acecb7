package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/exp/slices"
)

// TokenLifetime is how long a token minted by FakeBackend is valid for. It matches the
// retention window of the persisted session token.
const TokenLifetime = 7 * 24 * time.Hour

const fakeIssuer = "contentai-fake"

// DemoAccount is a seeded FakeBackend account.
type DemoAccount struct {
	User     User
	Password string
}

// DemoAccounts are the accounts every FakeBackend starts with.
var DemoAccounts = []DemoAccount{
	{
		User:     User{ID: "1", Name: "John Doe", Email: "admin@contentai.com", Company: "ContentAI Pro", Website: "https://contentai.com"},
		Password: "password123",
	},
	{
		User:     User{ID: "2", Name: "Jane Smith", Email: "demo@contentai.com", Company: "Demo Company", Website: "https://demo.com"},
		Password: "demo123",
	},
	{
		User:     User{ID: "3", Name: "Test User", Email: "test@test.com", Company: "Test Company", Website: "https://test.com"},
		Password: "test123",
	},
}

type fakeAccount struct {
	user         User
	passwordHash []byte
}

// FakeBackend is an in-process Backend holding accounts in memory. Tokens are HS256 JWTs
// whose subject is the user ID. Use it for development and tests; it is never used as a
// fallback for a failing HTTPBackend.
type FakeBackend struct {
	mu          sync.Mutex
	accounts    []*fakeAccount
	revoked     map[string]struct{} // jti
	resetTokens map[string]string   // reset token -> user ID
	nextID      int

	secret  []byte
	latency time.Duration
	cost    int
	Now     func() time.Time
	logger  zerolog.Logger
}

// NewFakeBackend returns a FakeBackend seeded with DemoAccounts. Every call waits for
// latency before answering, to mimic a network round trip.
func NewFakeBackend(secret string, latency time.Duration, logger zerolog.Logger) *FakeBackend {
	f := &FakeBackend{
		revoked:     make(map[string]struct{}),
		resetTokens: make(map[string]string),
		nextID:      len(DemoAccounts) + 1,
		secret:      []byte(secret),
		latency:     latency,
		cost:        bcrypt.MinCost,
		Now:         time.Now,
		logger:      logger.With().Str("backend", "fake").Logger(),
	}
	for _, acc := range DemoAccounts {
		hash, err := bcrypt.GenerateFromPassword([]byte(acc.Password), f.cost)
		if err != nil {
			panic("auth.NewFakeBackend: " + err.Error())
		}
		f.accounts = append(f.accounts, &fakeAccount{
			user:         acc.User,
			passwordHash: hash,
		})
	}
	return f
}

func (f *FakeBackend) Login(ctx context.Context, email, password string) (*Response, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	acc := f.byEmail(email)
	if acc == nil || bcrypt.CompareHashAndPassword(acc.passwordHash, []byte(password)) != nil {
		f.logger.Debug().Str("email", email).Msg("login failed: invalid credentials")
		return nil, newError(ErrInvalidCredentials, "", nil)
	}
	token, err := f.mint(acc.user.ID)
	if err != nil {
		return nil, err
	}
	return &Response{User: acc.user, Token: token}, nil
}

func (f *FakeBackend) Register(ctx context.Context, profile Profile) (*Response, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.byEmail(profile.Email) != nil {
		return nil, newError(ErrEmailAlreadyExists, "", nil)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(profile.Password), f.cost)
	if err != nil {
		return nil, err
	}
	acc := &fakeAccount{
		user: User{
			ID:      strconv.Itoa(f.nextID),
			Name:    profile.Name,
			Email:   profile.Email,
			Company: profile.Company,
			Website: profile.Website,
		},
		passwordHash: hash,
	}
	f.nextID++
	f.accounts = append(f.accounts, acc)
	token, err := f.mint(acc.user.ID)
	if err != nil {
		return nil, err
	}
	f.logger.Info().Str("user", acc.user.ID).Msg("registered new account")
	return &Response{User: acc.user, Token: token}, nil
}

func (f *FakeBackend) CurrentUser(ctx context.Context, token string) (*User, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	acc, err := f.verify(token)
	if err != nil {
		return nil, err
	}
	u := acc.user
	return &u, nil
}

func (f *FakeBackend) UpdateProfile(ctx context.Context, token string, update UserUpdate) (*User, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	acc, err := f.verify(token)
	if err != nil {
		return nil, err
	}
	if update.Email != "" && !strings.EqualFold(update.Email, acc.user.Email) && f.byEmail(update.Email) != nil {
		return nil, newError(ErrEmailAlreadyExists, "", nil)
	}
	acc.user = update.Apply(acc.user)
	u := acc.user
	return &u, nil
}

func (f *FakeBackend) ChangePassword(ctx context.Context, token, oldPassword, newPassword string) error {
	if err := f.wait(ctx); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	acc, err := f.verify(token)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword(acc.passwordHash, []byte(oldPassword)) != nil {
		return newError(ErrInvalidCredentials, "Current password is incorrect", nil)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), f.cost)
	if err != nil {
		return err
	}
	acc.passwordHash = hash
	return nil
}

// ForgotPassword issues a reset token for the account, if there is one. It succeeds either
// way so callers cannot probe which emails exist.
func (f *FakeBackend) ForgotPassword(ctx context.Context, email string) error {
	if err := f.wait(ctx); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	acc := f.byEmail(email)
	if acc == nil {
		return nil
	}
	resetToken := randomHex(16)
	f.resetTokens[resetToken] = acc.user.ID
	f.logger.Info().Str("user", acc.user.ID).Str("reset_token", resetToken).Msg("password reset requested")
	return nil
}

func (f *FakeBackend) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	if err := f.wait(ctx); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	userID, ok := f.resetTokens[resetToken]
	if !ok {
		return newError(ErrInvalidToken, "Reset link is invalid or has expired", nil)
	}
	acc := f.byID(userID)
	if acc == nil {
		return newError(ErrUserNotFound, "", nil)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), f.cost)
	if err != nil {
		return err
	}
	acc.passwordHash = hash
	delete(f.resetTokens, resetToken)
	return nil
}

// Logout revokes the token. Revoking an invalid token is not an error.
func (f *FakeBackend) Logout(ctx context.Context, token string) error {
	if err := f.wait(ctx); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	claims, err := f.parse(token)
	if err != nil {
		return nil
	}
	f.revoked[claims.ID] = struct{}{}
	return nil
}

// ResetTokenFor returns the outstanding reset token for email, if any.
func (f *FakeBackend) ResetTokenFor(email string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	acc := f.byEmail(email)
	if acc == nil {
		return "", false
	}
	for tok, userID := range f.resetTokens {
		if userID == acc.user.ID {
			return tok, true
		}
	}
	return "", false
}

// wait simulates network latency. Returns a network failure if ctx ends first.
func (f *FakeBackend) wait(ctx context.Context) error {
	if f.latency <= 0 {
		if err := ctx.Err(); err != nil {
			return newError(ErrNetworkFailure, "The server took too long to respond", err)
		}
		return nil
	}
	t := time.NewTimer(f.latency)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return newError(ErrNetworkFailure, "The server took too long to respond", ctx.Err())
	case <-t.C:
		return nil
	}
}

func (f *FakeBackend) byEmail(email string) *fakeAccount {
	i := slices.IndexFunc(f.accounts, func(a *fakeAccount) bool {
		return strings.EqualFold(a.user.Email, email)
	})
	if i < 0 {
		return nil
	}
	return f.accounts[i]
}

func (f *FakeBackend) byID(userID string) *fakeAccount {
	i := slices.IndexFunc(f.accounts, func(a *fakeAccount) bool {
		return a.user.ID == userID
	})
	if i < 0 {
		return nil
	}
	return f.accounts[i]
}

func (f *FakeBackend) mint(userID string) (string, error) {
	now := f.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    fakeIssuer,
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(TokenLifetime)),
		ID:        randomHex(8),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(f.secret)
}

func (f *FakeBackend) parse(token string) (*jwt.RegisteredClaims, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return f.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(fakeIssuer),
		jwt.WithTimeFunc(f.Now),
	)
	if err != nil {
		return nil, newError(ErrInvalidToken, "", err)
	}
	return &claims, nil
}

func (f *FakeBackend) verify(token string) (*fakeAccount, error) {
	claims, err := f.parse(token)
	if err != nil {
		return nil, err
	}
	if _, ok := f.revoked[claims.ID]; ok {
		return nil, newError(ErrInvalidToken, "", nil)
	}
	acc := f.byID(claims.Subject)
	if acc == nil {
		return nil, newError(ErrUserNotFound, "", nil)
	}
	return acc, nil
}

func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic("auth: crypto/rand failed: " + err.Error())
	}
	return hex.EncodeToString(b)
}
