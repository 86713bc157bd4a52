package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/templui/cutout/internal/db"
	"github.com/templui/cutout/internal/model"
	"github.com/templui/cutout/internal/repository"
	"github.com/templui/cutout/internal/validation"
)

const RecoverMessage = "Check your email for a sign-in link"

// IdentityService joins anonymous identities with verified ones.
type IdentityService struct {
	db               *sqlx.DB
	userRepository   repository.UserRepository
	imageRepository  repository.ImageRepository
	tokenRepository  repository.TokenRepository
	authService      *AuthService
	emailService     *EmailService
	tokenClaimExpiry time.Duration
}

func NewIdentityService(
	database *sqlx.DB,
	userRepository repository.UserRepository,
	imageRepository repository.ImageRepository,
	tokenRepository repository.TokenRepository,
	authService *AuthService,
	emailService *EmailService,
	tokenClaimExpiry time.Duration,
) *IdentityService {
	return &IdentityService{
		db:               database,
		userRepository:   userRepository,
		imageRepository:  imageRepository,
		tokenRepository:  tokenRepository,
		authService:      authService,
		emailService:     emailService,
		tokenClaimExpiry: tokenClaimExpiry,
	}
}

// Merge folds the anonymous identity of anonSessionID into the user owning
// email, stamps that user with accountID and makes all its images permanent.
// Everything happens in one transaction and every step is idempotent, so a
// repeated sign-in converges on the same state.
func (s *IdentityService) Merge(ctx context.Context, anonSessionID, accountID, email string) (*model.User, error) {
	email = normalizeEmail(email)
	if accountID == "" {
		return nil, ErrInvalidSession
	}
	if err := validation.ValidateEmail(email); err != nil {
		return nil, ErrInvalidEmail
	}

	var merged *model.User
	var moved int64

	err := db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		users := s.userRepository.WithTx(tx)
		images := s.imageRepository.WithTx(tx)

		var anon *model.User
		if anonSessionID != "" && anonSessionID != accountID {
			u, err := optionalUser(users.BySessionID(ctx, anonSessionID))
			if err != nil {
				return fmt.Errorf("lookup anonymous user: %w", err)
			}
			// A verified user behind the cookie is another account, not ours to fold in.
			if u != nil && !u.EmailVerified {
				anon = u
			}
		}

		authUser, err := optionalUser(users.ByEmail(ctx, email))
		if err != nil {
			return fmt.Errorf("lookup user by email: %w", err)
		}

		// A row already stamped with the account id but holding another
		// email (or none) is folded in like a second anonymous identity.
		stamped, err := optionalUser(users.BySessionID(ctx, accountID))
		if err != nil {
			return fmt.Errorf("lookup stamped user: %w", err)
		}

		if authUser == nil {
			if stamped != nil {
				authUser, stamped = stamped, nil
			} else {
				authUser = &model.User{SessionID: accountID, Email: &email, EmailVerified: true}
				if err := users.Create(ctx, authUser); err != nil {
					return fmt.Errorf("create user: %w", err)
				}
			}
		}

		for _, other := range []*model.User{anon, stamped} {
			if other == nil || other.ID == authUser.ID {
				continue
			}
			n, err := images.Reassign(ctx, other.ID, authUser.ID)
			if err != nil {
				return fmt.Errorf("move images: %w", err)
			}
			moved += n
			if err := users.Delete(ctx, other.ID); err != nil {
				return fmt.Errorf("delete merged user: %w", err)
			}
		}

		authUser.Email = &email
		authUser.EmailVerified = true
		authUser.SessionID = accountID
		if err := users.Update(ctx, authUser); err != nil {
			return fmt.Errorf("update user: %w", err)
		}

		if _, err := images.ClearExpiration(ctx, authUser.ID); err != nil {
			return fmt.Errorf("clear expiration: %w", err)
		}

		merged = authUser
		return nil
	})
	if err != nil {
		mergesTotal.WithLabelValues("error").Inc()
		slog.Error("identity merge failed", "error", err, "account_id", accountID)
		return nil, fmt.Errorf("merge identities: %w", err)
	}

	mergesTotal.WithLabelValues("ok").Inc()
	imagesReassignedTotal.Add(float64(moved))
	slog.Info("identities merged", "user_id", merged.ID, "account_id", accountID, "images_moved", moved)
	return merged, nil
}

// LinkEmail verifies email for the user of sessionID and makes its images permanent.
func (s *IdentityService) LinkEmail(ctx context.Context, sessionID, email string) (*model.User, error) {
	email = normalizeEmail(email)
	if err := validation.ValidateEmail(email); err != nil {
		return nil, ErrInvalidEmail
	}

	var linked *model.User

	err := db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		users := s.userRepository.WithTx(tx)
		images := s.imageRepository.WithTx(tx)

		user, err := users.BySessionID(ctx, sessionID)
		if err != nil {
			return err
		}

		owner, err := optionalUser(users.ByEmail(ctx, email))
		if err != nil {
			return err
		}
		if owner != nil && owner.SessionID != sessionID {
			return ErrEmailInUse
		}

		user.Email = &email
		user.EmailVerified = true
		err = users.Update(ctx, user)
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return ErrEmailInUse
		}
		if err != nil {
			return err
		}

		if _, err := images.ClearExpiration(ctx, user.ID); err != nil {
			return err
		}

		linked = user
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("link email: %w", err)
	}

	slog.Info("email linked", "user_id", linked.ID)
	return linked, nil
}

// RequestClaim sends a single-use link that calls LinkEmail once opened.
func (s *IdentityService) RequestClaim(ctx context.Context, sessionID, email string) error {
	email = normalizeEmail(email)
	if err := validation.ValidateEmail(email); err != nil {
		return ErrInvalidEmail
	}

	user, err := s.userRepository.BySessionID(ctx, sessionID)
	if err != nil {
		return err
	}

	owner, err := optionalUser(s.userRepository.ByEmail(ctx, email))
	if err != nil {
		return err
	}
	if owner != nil && owner.ID != user.ID {
		return ErrEmailInUse
	}

	err = s.tokenRepository.DeleteUnusedByEmailAndType(ctx, email, model.TokenTypeClaimEmail)
	if err != nil {
		slog.Warn("failed to delete old claim tokens", "error", err, "user_id", user.ID)
	}

	token, err := model.NewToken(model.TokenTypeClaimEmail, email, sessionID, s.tokenClaimExpiry)
	if err != nil {
		return err
	}

	err = s.tokenRepository.Create(ctx, token)
	if err != nil {
		return fmt.Errorf("failed to create token: %w", err)
	}

	err = s.emailService.SendClaimEmail(ctx, email, token.Token)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	slog.Info("claim link sent", "user_id", user.ID)
	return nil
}

// VerifyClaim consumes a claim token and links its email.
func (s *IdentityService) VerifyClaim(ctx context.Context, token string) (*model.User, error) {
	t, err := s.tokenRepository.ConsumeToken(ctx, token, model.TokenTypeClaimEmail)
	if errors.Is(err, repository.ErrTokenNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}

	return s.LinkEmail(ctx, t.SessionID, t.Email)
}

// RecoverByEmail succeeds only for an email held by a verified user and
// then mails a sign-in link that re-attaches that identity.
func (s *IdentityService) RecoverByEmail(ctx context.Context, email string) (string, error) {
	email = normalizeEmail(email)
	if err := validation.ValidateEmail(email); err != nil {
		return "", ErrInvalidEmail
	}

	user, err := optionalUser(s.userRepository.ByEmail(ctx, email))
	if err != nil {
		return "", err
	}
	if user == nil || !user.EmailVerified {
		return "", ErrNoVerifiedAccount
	}

	err = s.authService.SendMagicLink(ctx, email, "")
	if err != nil {
		return "", err
	}

	return RecoverMessage, nil
}

// optionalUser turns ErrUserNotFound into a nil user.
func optionalUser(user *model.User, err error) (*model.User, error) {
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, nil
	}
	return user, err
}
