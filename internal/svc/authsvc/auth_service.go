package authsvc

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mkrupp/homecase-lending/internal/domain"
	"github.com/mkrupp/homecase-lending/internal/infra/logging"
	"github.com/mkrupp/homecase-lending/internal/repo/lending"
	"github.com/mkrupp/homecase-lending/internal/svc/authsvc/authclient"
	"github.com/mkrupp/homecase-lending/internal/util/encoding"
)

// tokenBytes is the amount of randomness in a session token.
const tokenBytes = 32

// AuthConfig contains configuration parameters for the authentication service.
type AuthConfig struct {
	// BcryptCost is the work factor of credential verifiers
	BcryptCost int `env:"BCRYPT_COST" default:"10"`

	// SessionTTL is the lifetime of a session from authentication on
	SessionTTL time.Duration `env:"SESSION_TTL" default:"24h"`

	// SweepInterval is how often expired sessions are purged
	SweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" default:"10m"`

	// AdminName and AdminSecret bootstrap an administrator account at startup
	AdminName   string `env:"ADMIN_NAME" default:""`
	AdminSecret string `env:"ADMIN_SECRET" default:""`
}

// Repository is the part of the lending store the auth service needs.
type Repository interface {
	lending.AccountRepository
	lending.SessionRepository
}

// AuthService owns accounts, credentials and sessions.
type AuthService struct {
	Config AuthConfig
	Repo   Repository
	Log    logging.Logger

	dummyOnce     sync.Once
	dummyVerifier []byte
}

var _ authclient.AuthClient = (*AuthService)(nil)

// NewAuthService creates a new AuthService backed by repo.
func NewAuthService(repo Repository, cfg AuthConfig) *AuthService {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}

	return &AuthService{
		Config: cfg,
		Repo:   repo,
		Log:    logging.GetLogger("svc.authsvc.auth_service"),
	}
}

func hashToken(token string) []byte {
	sum := sha256.Sum256([]byte(encoding.NormalizeCrockfordB32LC(token)))

	return sum[:]
}

func newToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}

	return encoding.EncodeCrockfordB32LC(buf), nil
}

// dummy returns a verifier that no secret matches. Verify compares against it
// for unknown names so that both failure paths take as long as a real check.
func (s *AuthService) dummy() []byte {
	s.dummyOnce.Do(func() {
		verifier, err := bcrypt.GenerateFromPassword([]byte("no account has this secret"), s.Config.BcryptCost)
		if err != nil {
			s.Log.Error("generate dummy verifier failed", "error", err)
		}

		s.dummyVerifier = verifier
	})

	return s.dummyVerifier
}

// Register creates an ordinary account.
// Returns domain.ErrInvalidInput for an empty name or secret and
// domain.ErrDuplicateIdentity if the name is taken.
func (s *AuthService) Register(ctx context.Context, name, secret string) (domain.AccountID, error) {
	return s.CreateAccount(ctx, name, secret, domain.RoleMember)
}

// CreateAccount creates an account with an explicit role.
func (s *AuthService) CreateAccount(
	ctx context.Context,
	name, secret string,
	role domain.Role,
) (_ domain.AccountID, err error) {
	name = strings.TrimSpace(name)
	log := s.Log.With(logging.Group("account", "name", name, "role", role))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "create account failed", "error", err)
		} else {
			log.DebugContext(ctx, "account created")
		}
	}()

	if name == "" || secret == "" || !role.Valid() {
		return 0, fmt.Errorf("name, secret and role are required: %w", domain.ErrInvalidInput)
	}

	verifier, err := bcrypt.GenerateFromPassword([]byte(secret), s.Config.BcryptCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return 0, errors.Join(domain.ErrInvalidInput, err)
		}

		return 0, fmt.Errorf("generate verifier: %w", err)
	}

	id, err := s.Repo.CreateAccount(ctx, name, verifier, role)
	if err != nil {
		return 0, fmt.Errorf("create account: %w", err)
	}

	return id, nil
}

// EnsureAdmin creates the configured bootstrap administrator if it does not exist.
// It does nothing if no administrator name is configured.
func (s *AuthService) EnsureAdmin(ctx context.Context) error {
	if s.Config.AdminName == "" {
		return nil
	}

	account, ok, err := s.Repo.GetAccountByName(ctx, s.Config.AdminName)
	if err != nil {
		return fmt.Errorf("get account: %w", err)
	}

	if ok {
		if !account.IsAdmin() {
			s.Log.WarnContext(ctx, "bootstrap administrator name belongs to a member account",
				"name", s.Config.AdminName)
		}

		return nil
	}

	if _, err := s.CreateAccount(ctx, s.Config.AdminName, s.Config.AdminSecret, domain.RoleAdmin); err != nil {
		return fmt.Errorf("create administrator: %w", err)
	}

	s.Log.InfoContext(ctx, "bootstrap administrator created", "name", s.Config.AdminName)

	return nil
}

// Verify checks a name/secret pair and returns the matching account.
// Unknown names and wrong secrets both return domain.ErrInvalidCredential.
func (s *AuthService) Verify(ctx context.Context, name, secret string) (*domain.Account, error) {
	account, ok, err := s.Repo.GetAccountByName(ctx, strings.TrimSpace(name))
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}

	if !ok {
		_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(secret))

		return nil, domain.ErrInvalidCredential
	}

	if err := bcrypt.CompareHashAndPassword(account.Verifier, []byte(secret)); err != nil {
		return nil, domain.ErrInvalidCredential
	}

	return account, nil
}

// Authenticate verifies the credentials and opens a session.
// Deactivated accounts may authenticate so they can still return items.
func (s *AuthService) Authenticate(ctx context.Context, name, secret string) (_ domain.SessionGrant, err error) {
	log := s.Log.With(logging.Group("account", "name", name))

	defer func() {
		if err != nil {
			log.WarnContext(ctx, "authenticate failed", "error", err)
		} else {
			log.DebugContext(ctx, "session opened")
		}
	}()

	account, err := s.Verify(ctx, name, secret)
	if err != nil {
		return domain.SessionGrant{}, err
	}

	token, err := newToken()
	if err != nil {
		return domain.SessionGrant{}, err
	}

	now := time.Now()
	expiry := now.Add(s.Config.SessionTTL)

	if err := s.Repo.CreateSession(ctx, domain.Session{
		TokenHash: hashToken(token),
		AccountID: account.ID,
		CreatedAt: now.Unix(),
		ExpiresAt: expiry.Unix(),
	}); err != nil {
		return domain.SessionGrant{}, fmt.Errorf("create session: %w", err)
	}

	log = log.With(logging.Group("session",
		"account", account.ID,
		"exp", expiry.UTC().Format(time.RFC3339),
	))

	return domain.SessionGrant{
		Token:     token,
		AccountID: account.ID,
		Name:      account.Name,
		Role:      account.Role,
		ExpiresAt: expiry.Unix(),
	}, nil
}

// EndSession revokes the session of token. Unknown tokens are ignored.
func (s *AuthService) EndSession(ctx context.Context, token string) error {
	if token == "" {
		return domain.ErrNoSessionToken
	}

	if err := s.Repo.DeleteSession(ctx, hashToken(token)); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	s.Log.DebugContext(ctx, "session ended")

	return nil
}

// Validate implements authclient.AuthClient. The account is read on every call
// so a role or active flag change applies to the next request.
func (s *AuthService) Validate(ctx context.Context, token string) (domain.Principal, bool, error) {
	// malformed tokens cannot match a session
	if !encoding.IsCrockfordB32LC(encoding.NormalizeCrockfordB32LC(token), tokenBytes) {
		return domain.Principal{}, false, nil
	}

	session, ok, err := s.Repo.GetSession(ctx, hashToken(token))
	if err != nil {
		return domain.Principal{}, false, fmt.Errorf("get session: %w", err)
	}

	if !ok || session.ExpiresAt <= time.Now().Unix() {
		return domain.Principal{}, false, nil
	}

	account, ok, err := s.Repo.GetAccountByID(ctx, session.AccountID)
	if err != nil {
		return domain.Principal{}, false, fmt.Errorf("get account: %w", err)
	}

	if !ok {
		return domain.Principal{}, false, nil
	}

	return domain.PrincipalFromAccount(*account), true, nil
}

// Deactivate blocks the account from borrowing. Open loans are kept.
// Only administrators may call it.
func (s *AuthService) Deactivate(ctx context.Context, id domain.AccountID) (err error) {
	log := s.Log.With(logging.Group("account", "id", id))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "deactivate account failed", "error", err)
		} else {
			log.InfoContext(ctx, "account deactivated")
		}
	}()

	if _, err := RequireAdmin(ctx); err != nil {
		return err
	}

	if err := s.Repo.DeactivateAccount(ctx, id); err != nil {
		return fmt.Errorf("deactivate account: %w", err)
	}

	return nil
}

// IsActive reports whether the account exists and is active.
func (s *AuthService) IsActive(ctx context.Context, id domain.AccountID) (bool, error) {
	account, ok, err := s.Repo.GetAccountByID(ctx, id)
	if err != nil {
		return false, fmt.Errorf("get account: %w", err)
	}

	return ok && account.Active, nil
}

// ListActiveAccounts returns every active account. Only administrators may call it.
func (s *AuthService) ListActiveAccounts(ctx context.Context) ([]domain.Account, error) {
	if _, err := RequireAdmin(ctx); err != nil {
		return nil, err
	}

	accounts, err := s.Repo.ListActiveAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	return accounts, nil
}

// SweepExpiredSessions deletes every expired session once.
func (s *AuthService) SweepExpiredSessions(ctx context.Context) (int64, error) {
	n, err := s.Repo.DeleteExpiredSessions(ctx, time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}

	return n, nil
}

// SweepSessions deletes expired sessions every Config.SweepInterval until ctx
// is cancelled. Failures are logged and retried on the next tick.
func (s *AuthService) SweepSessions(ctx context.Context) {
	if s.Config.SweepInterval <= 0 {
		return
	}

	ticker := time.NewTicker(s.Config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.SweepExpiredSessions(ctx)
			if err != nil {
				s.Log.ErrorContext(ctx, "sweep sessions failed", "error", err)

				continue
			}

			if n > 0 {
				s.Log.DebugContext(ctx, "expired sessions swept", "count", n)
			}
		}
	}
}
