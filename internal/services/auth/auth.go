// Package services содержит логику бизнес-уровня для работы с пользователями и аутентификацией.
package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/magabrotheeeer/billdesk/internal/lib/apperr"
	"github.com/magabrotheeeer/billdesk/internal/lib/jwt"
	"github.com/magabrotheeeer/billdesk/internal/lib/metrics"
	"github.com/magabrotheeeer/billdesk/internal/lib/password"
	"github.com/magabrotheeeer/billdesk/internal/lib/sl"
	"github.com/magabrotheeeer/billdesk/internal/models"
	"github.com/magabrotheeeer/billdesk/internal/storage/repository"
)

// Метки пути перехеширования для metrics.LegacyPasswordUpgrades.
const (
	UpgradePathLogin = "login"
	UpgradePathBatch = "batch"
)

// UserRepository описывает контракт для работы с пользователями в базе данных.
type UserRepository interface {
	// RegisterUser сохраняет нового пользователя и возвращает его ID.
	RegisterUser(ctx context.Context, user models.User) (string, error)
	// GetUserByEmail возвращает пользователя по email.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	// UpdatePasswordHash заменяет верификатор пароля.
	UpdatePasswordHash(ctx context.Context, userUID, hash string) error
	// ListLegacyPasswordUsers возвращает пользователей с паролем открытым текстом.
	ListLegacyPasswordUsers(ctx context.Context) ([]*models.User, error)
}

// AuthService отвечает за регистрацию, вход и проверку сессионных токенов.
type AuthService struct {
	users    UserRepository
	jwtMaker jwt.Maker
	log      *slog.Logger

	// plaintextFallback разрешает вход по паролю, сохраненному без хэширования.
	plaintextFallback bool
}

// NewAuthService создает новый экземпляр AuthService.
func NewAuthService(users UserRepository, jwtMaker jwt.Maker, log *slog.Logger, plaintextFallback bool) *AuthService {
	return &AuthService{
		users:             users,
		jwtMaker:          jwtMaker,
		log:               log,
		plaintextFallback: plaintextFallback,
	}
}

// Register создает пользователя с bcrypt-хэшем пароля и сразу выдает сессию.
func (s *AuthService) Register(ctx context.Context, name, email, rawPassword string) (*models.Session, error) {
	const op = "services.AuthService.Register"

	if strings.TrimSpace(name) == "" || strings.TrimSpace(email) == "" || rawPassword == "" {
		return nil, apperr.New(apperr.ErrValidation, "name, email and password are required")
	}
	if password.TooLong(rawPassword) {
		return nil, apperr.New(apperr.ErrValidation, fmt.Sprintf("password must be at most %d bytes", password.MaxLength))
	}

	_, err := s.users.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, apperr.New(apperr.ErrConflict, "user already exists")
	case !errors.Is(err, repository.ErrNotFound):
		return nil, apperr.Wrap(apperr.ErrDependency, "storage unavailable", fmt.Errorf("%s: %w", op, err))
	}

	hashed, err := password.GetHash(rawPassword)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	user := models.User{
		Name:         name,
		Email:        email,
		PasswordHash: hashed,
	}
	user.UUID, err = s.users.RegisterUser(ctx, user)
	if err != nil {
		// Между проверкой и вставкой email мог занять параллельный запрос.
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil, apperr.New(apperr.ErrConflict, "user already exists")
		}
		return nil, apperr.Wrap(apperr.ErrDependency, "storage unavailable", fmt.Errorf("%s: %w", op, err))
	}

	return s.issue(&user)
}

// Login проверяет пароль и выдает сессию.
//
// Если сохранено не хэшированное значение и оно совпадает с паролем, вход
// считается успешным, а пароль тут же перехешируется. Такой путь можно
// отключить настройкой, каждое срабатывание пишется в аудит.
func (s *AuthService) Login(ctx context.Context, email, rawPassword string) (*models.Session, error) {
	const op = "services.AuthService.Login"

	if email == "" || rawPassword == "" {
		return nil, apperr.New(apperr.ErrValidation, "email and password are required")
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.New(apperr.ErrNotFound, "user not found")
		}
		return nil, apperr.Wrap(apperr.ErrDependency, "storage unavailable", fmt.Errorf("%s: %w", op, err))
	}

	if err := s.verify(ctx, user, rawPassword); err != nil {
		return nil, err
	}
	return s.issue(user)
}

func (s *AuthService) verify(ctx context.Context, user *models.User, rawPassword string) error {
	const op = "services.AuthService.verify"

	if password.IsHash(user.PasswordHash) {
		err := password.CompareHash(user.PasswordHash, rawPassword)
		if err == nil {
			return nil
		}
		if !password.IsMismatch(err) {
			s.log.Error("stored password hash is unreadable", slog.String("op", op),
				slog.String("user_uid", user.UUID), sl.Err(err))
		}
		return apperr.New(apperr.ErrAuth, "invalid credentials")
	}

	if !s.plaintextFallback ||
		subtle.ConstantTimeCompare([]byte(user.PasswordHash), []byte(rawPassword)) != 1 {
		return apperr.New(apperr.ErrAuth, "invalid credentials")
	}

	s.log.Warn("legacy plaintext password matched", slog.String("op", op),
		slog.String("user_uid", user.UUID), sl.Audit())

	// Такое значение останется открытым текстом, пока включен fallback.
	if password.TooLong(rawPassword) {
		metrics.LegacyPasswordsSkipped.WithLabelValues(UpgradePathLogin).Inc()
		s.log.Warn("legacy password exceeds bcrypt limit, upgrade skipped", slog.String("op", op),
			slog.String("user_uid", user.UUID), sl.Audit())
		return nil
	}

	hashed, err := password.GetHash(rawPassword)
	if err != nil {
		s.log.Error("failed to hash legacy password", slog.String("op", op), sl.Err(err))
		return nil
	}
	if err := s.users.UpdatePasswordHash(ctx, user.UUID, hashed); err != nil {
		s.log.Error("failed to upgrade legacy password", slog.String("op", op),
			slog.String("user_uid", user.UUID), sl.Err(err))
		return nil
	}
	user.PasswordHash = hashed
	metrics.LegacyPasswordUpgrades.WithLabelValues(UpgradePathLogin).Inc()
	s.log.Info("legacy password upgraded", slog.String("user_uid", user.UUID), sl.Audit())
	return nil
}

func (s *AuthService) issue(user *models.User) (*models.Session, error) {
	token, err := s.jwtMaker.GenerateToken(user.UUID, user.Name, user.Email)
	if err != nil {
		return nil, fmt.Errorf("services.AuthService.issue: %w", err)
	}
	return &models.Session{Token: token, User: user.Info()}, nil
}

// ValidateToken проверяет JWT и возвращает вложенные claims.
func (s *AuthService) ValidateToken(_ context.Context, token string) (*jwt.CustomClaims, error) {
	if token == "" {
		return nil, apperr.New(apperr.ErrAuth, "token missing")
	}
	claims, err := s.jwtMaker.ParseToken(token)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrAuth, "invalid or expired token", err)
	}
	return claims, nil
}

// MigrationResult: итог перехеширования паролей.
type MigrationResult struct {
	Migrated int
	// Skipped: UUID пользователей, чей пароль нельзя перехешировать.
	// Пока список не пуст, fallback на открытый текст отключать нельзя.
	Skipped []string
}

// MigrateLegacyPasswords перехеширует все пароли, сохраненные открытым текстом.
//
// Значения, которые bcrypt не принимает, пропускаются и попадают в
// MigrationResult.Skipped. Ошибка хранилища останавливает проход.
func (s *AuthService) MigrateLegacyPasswords(ctx context.Context) (MigrationResult, error) {
	const op = "services.AuthService.MigrateLegacyPasswords"

	var res MigrationResult
	users, err := s.users.ListLegacyPasswordUsers(ctx)
	if err != nil {
		return res, fmt.Errorf("%s: %w", op, err)
	}

	for _, u := range users {
		if password.IsHash(u.PasswordHash) {
			continue
		}
		hashed, err := password.GetHash(u.PasswordHash)
		if err != nil {
			res.Skipped = append(res.Skipped, u.UUID)
			metrics.LegacyPasswordsSkipped.WithLabelValues(UpgradePathBatch).Inc()
			s.log.Warn("legacy password cannot be hashed, skipped", slog.String("op", op),
				slog.String("user_uid", u.UUID), sl.Err(err), sl.Audit())
			continue
		}
		if err := s.users.UpdatePasswordHash(ctx, u.UUID, hashed); err != nil {
			return res, fmt.Errorf("%s: user %s: %w", op, u.UUID, err)
		}
		res.Migrated++
		metrics.LegacyPasswordUpgrades.WithLabelValues(UpgradePathBatch).Inc()
		s.log.Info("legacy password upgraded", slog.String("user_uid", u.UUID), sl.Audit())
	}
	return res, nil
}
