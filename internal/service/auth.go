package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/templui/cutout/internal/model"
	"github.com/templui/cutout/internal/repository"
	"github.com/templui/cutout/internal/validation"
	"golang.org/x/crypto/bcrypt"
)

const AuthCookieName = "auth_token"

// Signed-in requests look up their account on every call
const (
	accountCacheSize = 1024
	accountCacheTTL  = 30 * time.Second
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailAlreadyExists = errors.New("email already exists")
	ErrEmailNotVerified   = errors.New("email not verified")
	ErrPasswordless       = errors.New("this account uses passwordless login, use the magic link option")
)

type AuthService struct {
	accountRepository    repository.AccountRepository
	tokenRepository      repository.TokenRepository
	emailService         *EmailService
	jwtSecret            string
	secureCookies        bool
	jwtExpiry            time.Duration
	tokenMagicLinkExpiry time.Duration
	accountCache         *expirable.LRU[string, model.Account]
}

func NewAuthService(
	accountRepository repository.AccountRepository,
	tokenRepository repository.TokenRepository,
	emailService *EmailService,
	jwtSecret string,
	secureCookies bool,
	jwtExpiry time.Duration,
	tokenMagicLinkExpiry time.Duration,
) *AuthService {
	return &AuthService{
		accountRepository:    accountRepository,
		tokenRepository:      tokenRepository,
		emailService:         emailService,
		jwtSecret:            jwtSecret,
		secureCookies:        secureCookies,
		jwtExpiry:            jwtExpiry,
		tokenMagicLinkExpiry: tokenMagicLinkExpiry,
		accountCache:         expirable.NewLRU[string, model.Account](accountCacheSize, nil, accountCacheTTL),
	}
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

// SignUp creates a password account and sends a magic link to verify the email.
// The account cannot log in with its password before the link is used.
func (s *AuthService) SignUp(ctx context.Context, email, password, sessionID string) (*model.Account, error) {
	email = normalizeEmail(email)

	err := validation.ValidateEmail(email)
	if err != nil {
		return nil, ErrInvalidEmail
	}

	err = validation.ValidatePassword(password)
	if err != nil {
		return nil, err
	}

	_, err = s.accountRepository.ByEmail(ctx, email)
	if err == nil {
		return nil, ErrEmailAlreadyExists
	}
	if !errors.Is(err, repository.ErrAccountNotFound) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}

	hash, err := s.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	account := &model.Account{Email: email, PasswordHash: &hash}
	err = s.accountRepository.Create(ctx, account)
	if errors.Is(err, repository.ErrDuplicateAccountEmail) {
		return nil, ErrEmailAlreadyExists
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	slog.Info("new password account created", "account_id", account.ID)

	err = s.sendMagicLink(ctx, account, sessionID)
	if err != nil {
		return nil, err
	}

	return account, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*model.Account, error) {
	email = normalizeEmail(email)

	account, err := s.accountRepository.ByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, fmt.Errorf("invalid credentials: %w", ErrInvalidCredentials)
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	if !account.HasPassword() {
		return nil, ErrPasswordless
	}

	err = s.ComparePassword(password, *account.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("invalid credentials: %w", ErrInvalidCredentials)
	}

	if !account.IsVerified() {
		return nil, fmt.Errorf("email not verified: %w", ErrEmailNotVerified)
	}

	return account, nil
}

// SendMagicLink handles the combined login/signup flow.
// A passwordless account is created for unknown emails. sessionID is the
// anonymous session of the requesting browser, carried by the token so the
// sign-in can merge it even when the link is opened elsewhere.
func (s *AuthService) SendMagicLink(ctx context.Context, email, sessionID string) error {
	email = normalizeEmail(email)

	err := validation.ValidateEmail(email)
	if err != nil {
		return ErrInvalidEmail
	}

	account, err := s.accountRepository.ByEmail(ctx, email)
	if errors.Is(err, repository.ErrAccountNotFound) {
		account = &model.Account{Email: email}
		err = s.accountRepository.Create(ctx, account)
		if err != nil {
			return fmt.Errorf("failed to create account: %w", err)
		}
		slog.Info("new passwordless account created", "account_id", account.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to get account: %w", err)
	}

	return s.sendMagicLink(ctx, account, sessionID)
}

func (s *AuthService) sendMagicLink(ctx context.Context, account *model.Account, sessionID string) error {
	err := s.tokenRepository.DeleteUnusedByEmailAndType(ctx, account.Email, model.TokenTypeMagicLink)
	if err != nil {
		slog.Warn("failed to delete old magic link tokens", "error", err, "account_id", account.ID)
	}

	token, err := model.NewToken(model.TokenTypeMagicLink, account.Email, sessionID, s.tokenMagicLinkExpiry)
	if err != nil {
		return err
	}
	token.AccountID = &account.ID

	err = s.tokenRepository.Create(ctx, token)
	if err != nil {
		return fmt.Errorf("failed to create token: %w", err)
	}

	err = s.emailService.SendMagicLinkEmail(ctx, account.Email, token.Token)
	if err != nil {
		slog.Error("failed to send magic link email", "error", err, "account_id", account.ID)
		return fmt.Errorf("failed to send email: %w", err)
	}

	slog.Info("magic link sent", "account_id", account.ID)
	return nil
}

// VerifyMagicLink consumes the token and returns the signed-in account
// together with the anonymous session id captured when the link was requested.
func (s *AuthService) VerifyMagicLink(ctx context.Context, token string) (*model.Account, string, error) {
	tokenModel, err := s.tokenRepository.ConsumeToken(ctx, token, model.TokenTypeMagicLink)
	if err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			return nil, "", ErrInvalidToken
		}
		return nil, "", err
	}
	if tokenModel.AccountID == nil {
		return nil, "", ErrInvalidToken
	}

	account, err := s.accountRepository.ByID(ctx, *tokenModel.AccountID)
	if err != nil {
		return nil, "", fmt.Errorf("account not found: %w", err)
	}

	// Using the link proves ownership of the address
	if !account.IsVerified() {
		now := time.Now().UTC()
		account.EmailVerifiedAt = &now
		err = s.accountRepository.Update(ctx, account)
		if err != nil {
			return nil, "", fmt.Errorf("failed to verify email: %w", err)
		}
		s.accountCache.Remove(account.ID)
	}

	slog.Info("account authenticated via magic link", "account_id", account.ID)
	return account, tokenModel.SessionID, nil
}

// AuthenticateOAuth returns the account for a provider-verified email,
// creating it on first sign-in.
func (s *AuthService) AuthenticateOAuth(ctx context.Context, email, provider string) (*model.Account, error) {
	email = normalizeEmail(email)

	err := validation.ValidateEmail(email)
	if err != nil {
		return nil, ErrInvalidEmail
	}

	now := time.Now().UTC()

	account, err := s.accountRepository.ByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, repository.ErrAccountNotFound) {
			return nil, fmt.Errorf("failed to lookup account: %w", err)
		}

		account = &model.Account{Email: email, EmailVerifiedAt: &now}
		err = s.accountRepository.Create(ctx, account)
		if err != nil {
			return nil, fmt.Errorf("failed to create account: %w", err)
		}

		slog.Info("new OAuth account created", "account_id", account.ID, "provider", provider)
		return account, nil
	}

	if !account.IsVerified() {
		account.EmailVerifiedAt = &now
		err = s.accountRepository.Update(ctx, account)
		if err != nil {
			slog.Warn("failed to mark email as verified", "error", err, "account_id", account.ID)
		}
		s.accountCache.Remove(account.ID)
	}

	slog.Info("account authenticated via OAuth", "account_id", account.ID, "provider", provider)
	return account, nil
}

// AccountByID returns the account without its password hash. Results are
// cached briefly and dropped whenever the account is updated.
func (s *AuthService) AccountByID(ctx context.Context, id string) (*model.Account, error) {
	if cached, ok := s.accountCache.Get(id); ok {
		return &cached, nil
	}

	account, err := s.accountRepository.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	account.PasswordHash = nil

	s.accountCache.Add(id, *account)
	return account, nil
}

func (s *AuthService) HashPassword(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

func (s *AuthService) ComparePassword(password, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

func (s *AuthService) GenerateJWT(account *model.Account) (string, error) {
	claims := jwt.MapClaims{
		"account_id": account.ID,
		"email":      account.Email,
		"exp":        time.Now().Add(s.jwtExpiry).Unix(),
		"iat":        time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	return token.SignedString([]byte(s.jwtSecret))
}

func (s *AuthService) VerifyJWT(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if ok && token.Valid {
		return claims, nil
	}

	return nil, fmt.Errorf("invalid token")
}

func (s *AuthService) JWTExpiry() time.Duration {
	return s.jwtExpiry
}

func (s *AuthService) SetJWTCookie(w http.ResponseWriter, token string, expiry time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     AuthCookieName,
		Value:    token,
		Expires:  expiry,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *AuthService) ClearJWTCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     AuthCookieName,
		Value:    "",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}
