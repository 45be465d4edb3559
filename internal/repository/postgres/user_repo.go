package postgres

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/iamasit07/pingline/backend/internal/domain"
	"github.com/iamasit07/pingline/backend/internal/errs"
	"github.com/lib/pq"
)

type UserRepo struct {
	DB *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{DB: db}
}

type User struct {
	ID           int64
	Username     string
	Fullname     string
	Email        sql.NullString
	GoogleID     sql.NullString
	AvatarURL    string
	PasswordHash string
	RefreshToken sql.NullString
	Status       string
	CreatedAt    time.Time
}

// Public returns the client-facing view of the user.
func (u *User) Public() domain.PublicUser {
	email := ""
	if u.Email.Valid {
		email = u.Email.String
	}
	return domain.PublicUser{
		ID:        u.ID,
		Username:  u.Username,
		Fullname:  u.Fullname,
		Email:     email,
		AvatarURL: u.AvatarURL,
		Status:    domain.UserStatus(u.Status),
	}
}

const userSelectFields = `id, username, COALESCE(fullname, '') as fullname, email, google_id, COALESCE(avatar_url, '') as avatar_url, password_hash, refresh_token, status, created_at`

// scanUser is a helper that scans a row into a User struct
func scanUser(row interface{ Scan(dest ...any) error }) (*User, error) {
	var user User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Fullname,
		&user.Email,
		&user.GoogleID,
		&user.AvatarURL,
		&user.PasswordHash,
		&user.RefreshToken,
		&user.Status,
		&user.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateUser creates a new user with hashed password and optional email/google_id/avatar
func (r *UserRepo) CreateUser(username, fullname, passwordHash, email, googleID, avatarURL string) (int64, error) {
	var emailParam, googleIDParam interface{}
	if email != "" {
		emailParam = email
	}
	if googleID != "" {
		googleIDParam = googleID
	}

	query := `
	INSERT INTO users (username, fullname, password_hash, email, google_id, avatar_url, status)
	VALUES ($1, $2, $3, $4, $5, $6, 'Offline')
	RETURNING id;
	`
	var userID int64
	err := r.DB.QueryRow(query, username, fullname, passwordHash, emailParam, googleIDParam, avatarURL).Scan(&userID)
	if err != nil {
		// 23505 = unique_violation: username or email already taken.
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return 0, fmt.Errorf("%w: %v", errs.ErrAlreadyExists, err)
		}
		return 0, fmt.Errorf("failed to create user: %v", err)
	}
	return userID, nil
}

// GetUserByID retrieves a user by ID
func (r *UserRepo) GetUserByID(userID int64) (*User, error) {
	query := `SELECT ` + userSelectFields + ` FROM users WHERE id = $1;`
	user, err := scanUser(r.DB.QueryRow(query, userID))
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %v", err)
	}
	return user, nil
}

// GetUserByIdentifier retrieves a user by username OR email
func (r *UserRepo) GetUserByIdentifier(identifier string) (*User, error) {
	query := `SELECT ` + userSelectFields + ` FROM users WHERE username = $1 OR email = $1;`
	user, err := scanUser(r.DB.QueryRow(query, identifier))
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %v", err)
	}
	return user, nil
}

// GetUserByEmail retrieves a user by email
func (r *UserRepo) GetUserByEmail(email string) (*User, error) {
	query := `SELECT ` + userSelectFields + ` FROM users WHERE email = $1;`
	user, err := scanUser(r.DB.QueryRow(query, email))
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %v", err)
	}
	return user, nil
}

// GetUsersByIDs retrieves users for a set of ids, in no particular order.
func (r *UserRepo) GetUsersByIDs(userIDs []int64) ([]User, error) {
	if len(userIDs) == 0 {
		return []User{}, nil
	}
	query := `SELECT ` + userSelectFields + ` FROM users WHERE id = ANY($1);`
	rows, err := r.DB.Query(query, pq.Array(userIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %v", err)
	}
	defer rows.Close()

	users := make([]User, 0, len(userIDs))
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user row: %v", err)
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate user rows: %v", err)
	}
	return users, nil
}

// UpdateUserGoogleID links a Google identity to an existing account by email
func (r *UserRepo) UpdateUserGoogleID(email, googleID string) error {
	query := `UPDATE users SET google_id = $2 WHERE email = $1;`
	_, err := r.DB.Exec(query, email, googleID)
	if err != nil {
		return fmt.Errorf("failed to update google id: %v", err)
	}
	return nil
}

// UpdateStatus persists the presence status on the user record
func (r *UserRepo) UpdateStatus(userID int64, status domain.UserStatus) error {
	query := `UPDATE users SET status = $2 WHERE id = $1;`
	_, err := r.DB.Exec(query, userID, string(status))
	if err != nil {
		return fmt.Errorf("failed to update status: %v", err)
	}
	return nil
}

// SetRefreshToken overwrites the stored refresh token for the user. At most
// one refresh token is valid per user at a time.
func (r *UserRepo) SetRefreshToken(userID int64, token string) error {
	query := `UPDATE users SET refresh_token = $2 WHERE id = $1;`
	_, err := r.DB.Exec(query, userID, token)
	if err != nil {
		return fmt.Errorf("failed to store refresh token: %v", err)
	}
	return nil
}

// SwapRefreshToken replaces the stored refresh token only if the presented
// token is still the current one. Returns false when the stored value no
// longer matches, i.e. a concurrent or replayed rotation already won.
func (r *UserRepo) SwapRefreshToken(userID int64, oldToken, newToken string) (bool, error) {
	query := `UPDATE users SET refresh_token = $3 WHERE id = $1 AND refresh_token = $2;`
	result, err := r.DB.Exec(query, userID, oldToken, newToken)
	if err != nil {
		return false, fmt.Errorf("failed to swap refresh token: %v", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %v", err)
	}
	return rows == 1, nil
}

// ClearRefreshToken removes the stored refresh token (logout/revoke)
func (r *UserRepo) ClearRefreshToken(userID int64) error {
	query := `UPDATE users SET refresh_token = NULL WHERE id = $1;`
	_, err := r.DB.Exec(query, userID)
	if err != nil {
		return fmt.Errorf("failed to clear refresh token: %v", err)
	}
	return nil
}
