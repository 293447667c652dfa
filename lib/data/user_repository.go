package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"portal/lib/models"

	"github.com/sirupsen/logrus"
)

// UserRepository defines the interface for user data operations
type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) (*models.User, error)
	GetUser(ctx context.Context, userID int64) (*models.User, error)
	GetUserByCognitoID(ctx context.Context, cognitoID string) (*models.User, error)
	GetUsersByOrg(ctx context.Context, orgID int64) ([]models.User, error)
	GetActiveClientsByOrg(ctx context.Context, orgID int64) ([]models.User, error)
	GetAllActiveClients(ctx context.Context) ([]models.User, error)
	GetStaffAndAdmins(ctx context.Context) ([]models.User, error)
	UpdateUser(ctx context.Context, user *models.User) (*models.User, error)
	UpdateUserStatus(ctx context.Context, userID int64, status string) error
	ActivateByCognitoID(ctx context.Context, cognitoID string) error
}

// UserDao implements the UserRepository interface for PostgreSQL
type UserDao struct {
	DB     *sql.DB
	Logger *logrus.Logger
}

const userColumns = `id, cognito_id, email, first_name, last_name, role, org_id, onboarding_complete, status, created_at, updated_at`

func scanUser(row interface{ Scan(...interface{}) error }) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.UserID,
		&user.CognitoID,
		&user.Email,
		&user.FirstName,
		&user.LastName,
		&user.Role,
		&user.OrgID,
		&user.OnboardingComplete,
		&user.Status,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateUser inserts a new user record. Role is fixed at creation.
func (dao *UserDao) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	query := `
		INSERT INTO portal.users (cognito_id, email, first_name, last_name, role, org_id, onboarding_complete, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		RETURNING id, created_at, updated_at
	`

	now := time.Now()
	err := dao.DB.QueryRowContext(ctx, query,
		user.CognitoID,
		user.Email,
		user.FirstName,
		user.LastName,
		user.Role,
		user.OrgID,
		user.OnboardingComplete,
		user.Status,
		now,
	).Scan(&user.UserID, &user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		dao.Logger.WithError(err).WithFields(logrus.Fields{
			"operation": "CreateUser",
			"email":     user.Email,
			"role":      user.Role,
		}).Error("Failed to create user")
		return nil, err
	}

	dao.Logger.WithFields(logrus.Fields{
		"user_id": user.UserID,
		"email":   user.Email,
		"role":    user.Role,
	}).Info("User created successfully")

	return user, nil
}

// GetUser retrieves a user by id
func (dao *UserDao) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM portal.users WHERE id = $1`

	user, err := scanUser(dao.DB.QueryRowContext(ctx, query, userID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("user not found")
		}
		dao.Logger.WithError(err).WithField("user_id", userID).Error("Failed to get user")
		return nil, err
	}
	return user, nil
}

// GetUserByCognitoID retrieves a user by their Cognito sub UUID
func (dao *UserDao) GetUserByCognitoID(ctx context.Context, cognitoID string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM portal.users WHERE cognito_id = $1`

	user, err := scanUser(dao.DB.QueryRowContext(ctx, query, cognitoID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("user not found")
		}
		dao.Logger.WithError(err).WithField("cognito_id", cognitoID).Error("Failed to get user by cognito id")
		return nil, err
	}
	return user, nil
}

func (dao *UserDao) queryUsers(ctx context.Context, query string, args ...interface{}) ([]models.User, error) {
	rows, err := dao.DB.QueryContext(ctx, query, args...)
	if err != nil {
		dao.Logger.WithError(err).Error("Failed to query users")
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			dao.Logger.WithError(err).Error("Failed to scan user row")
			return nil, err
		}
		users = append(users, *user)
	}

	if err = rows.Err(); err != nil {
		dao.Logger.WithError(err).Error("Row iteration error")
		return nil, err
	}

	return users, nil
}

// GetUsersByOrg lists all users belonging to an organization
func (dao *UserDao) GetUsersByOrg(ctx context.Context, orgID int64) ([]models.User, error) {
	query := `SELECT ` + userColumns + ` FROM portal.users WHERE org_id = $1 ORDER BY created_at`
	return dao.queryUsers(ctx, query, orgID)
}

// GetActiveClientsByOrg lists active client users of an organization,
// the recipient set for org-scoped notification fan-out
func (dao *UserDao) GetActiveClientsByOrg(ctx context.Context, orgID int64) ([]models.User, error) {
	query := `SELECT ` + userColumns + ` FROM portal.users WHERE org_id = $1 AND role = $2 AND status = $3 ORDER BY id`
	return dao.queryUsers(ctx, query, orgID, models.RoleClient, models.UserStatusActive)
}

// GetAllActiveClients lists every active client user, the recipient set for
// published announcements
func (dao *UserDao) GetAllActiveClients(ctx context.Context) ([]models.User, error) {
	query := `SELECT ` + userColumns + ` FROM portal.users WHERE role = $1 AND status = $2 ORDER BY id`
	return dao.queryUsers(ctx, query, models.RoleClient, models.UserStatusActive)
}

// GetStaffAndAdmins lists firm-side users, the recipient set for admin-facing
// notifications such as new document uploads
func (dao *UserDao) GetStaffAndAdmins(ctx context.Context) ([]models.User, error) {
	query := `SELECT ` + userColumns + ` FROM portal.users WHERE role IN ($1, $2) AND status = $3 ORDER BY id`
	return dao.queryUsers(ctx, query, models.RoleAdmin, models.RoleStaff, models.UserStatusActive)
}

// UpdateUser updates the mutable user fields (never role)
func (dao *UserDao) UpdateUser(ctx context.Context, user *models.User) (*models.User, error) {
	query := `
		UPDATE portal.users
		SET first_name = $1, last_name = $2, org_id = $3, onboarding_complete = $4, status = $5, updated_at = $6
		WHERE id = $7
		RETURNING cognito_id, email, role, created_at, updated_at
	`

	err := dao.DB.QueryRowContext(ctx, query,
		user.FirstName,
		user.LastName,
		user.OrgID,
		user.OnboardingComplete,
		user.Status,
		time.Now(),
		user.UserID,
	).Scan(&user.CognitoID, &user.Email, &user.Role, &user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("user not found")
		}
		dao.Logger.WithError(err).WithField("user_id", user.UserID).Error("Failed to update user")
		return nil, err
	}

	return user, nil
}

// UpdateUserStatus changes a user's account status
func (dao *UserDao) UpdateUserStatus(ctx context.Context, userID int64, status string) error {
	query := `UPDATE portal.users SET status = $1, updated_at = $2 WHERE id = $3`

	result, err := dao.DB.ExecContext(ctx, query, status, time.Now(), userID)
	if err != nil {
		dao.Logger.WithError(err).WithFields(logrus.Fields{
			"user_id": userID,
			"status":  status,
		}).Error("Failed to update user status")
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user not found")
	}

	dao.Logger.WithFields(logrus.Fields{
		"user_id": userID,
		"status":  status,
	}).Info("User status updated")

	return nil
}

// ActivateByCognitoID flips an invited user from pending to active on first sign-in
func (dao *UserDao) ActivateByCognitoID(ctx context.Context, cognitoID string) error {
	query := `UPDATE portal.users SET status = $1, updated_at = $2 WHERE cognito_id = $3 AND status = $4`

	result, err := dao.DB.ExecContext(ctx, query, models.UserStatusActive, time.Now(), cognitoID, models.UserStatusPending)
	if err != nil {
		dao.Logger.WithError(err).WithField("cognito_id", cognitoID).Error("Failed to activate user")
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("no pending user for cognito id")
	}

	return nil
}
