package repository

import (
	"context"

	"github.com/magabrotheeeer/billdesk/internal/models"
)

const userColumns = `uid, name, email, password_hash, created_at`

// RegisterUser сохраняет нового пользователя в базу данных и возвращает его ID.
// Повторный email дает ErrAlreadyExists.
func (s *Storage) RegisterUser(ctx context.Context, user models.User) (string, error) {
	const op = "storage.RegisterUser"
	if err := checkCtx(ctx, op); err != nil {
		return "", err
	}

	var newID string
	query := `INSERT INTO users (name, email, password_hash)
			  VALUES ($1, $2, $3)
			  RETURNING uid;`
	if err := s.DB.QueryRowContext(ctx, query,
		user.Name, user.Email, user.PasswordHash).Scan(&newID); err != nil {
		return "", wrapErr(op, err)
	}
	return newID, nil
}

// GetUserByEmail возвращает пользователя по email (сравнение с учетом регистра).
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.GetUserByEmail"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	u := &models.User{}
	if err := s.DB.QueryRowContext(ctx, query, email).Scan(
		&u.UUID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
		return nil, wrapErr(op, err)
	}
	return u, nil
}

// GetUser возвращает пользователя по его UID.
func (s *Storage) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	const op = "storage.GetUser"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE uid = $1`
	u := &models.User{}
	if err := s.DB.QueryRowContext(ctx, query, userUID).Scan(
		&u.UUID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
		return nil, wrapErr(op, err)
	}
	return u, nil
}

// UpdatePasswordHash заменяет верификатор пароля пользователя.
func (s *Storage) UpdatePasswordHash(ctx context.Context, userUID, hash string) error {
	const op = "storage.UpdatePasswordHash"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	res, err := s.DB.ExecContext(ctx, `UPDATE users SET password_hash = $1 WHERE uid = $2`, hash, userUID)
	if err != nil {
		return wrapErr(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapErr(op, err)
	}
	if n == 0 {
		return wrapErr(op, ErrNotFound)
	}
	return nil
}

// ListLegacyPasswordUsers возвращает пользователей, чей верификатор не похож на bcrypt-хэш.
func (s *Storage) ListLegacyPasswordUsers(ctx context.Context) ([]*models.User, error) {
	const op = "storage.ListLegacyPasswordUsers"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT ` + userColumns + `
			  FROM users
			  WHERE password_hash !~ '^\$2[aby]?\$[0-9]{2}\$'
			  ORDER BY created_at`
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.User
	for rows.Next() {
		var u models.User
		if err = rows.Scan(&u.UUID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
			return nil, wrapErr(op, err)
		}
		result = append(result, &u)
	}
	if err = rows.Err(); err != nil {
		return nil, wrapErr(op, err)
	}
	return result, nil
}
