package services

import (
	"context"
	"errors"
	"log"
	"time"

	"ChatRelay/server/internal/db"
	"ChatRelay/server/internal/models"
	"ChatRelay/server/internal/utils"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
)

type UserService interface {
	CheckUserExists(ctx context.Context, username, email string) (bool, error)
	CreateUser(ctx context.Context, user *models.User) (int, error)
	GetUserByIdentity(ctx context.Context, identity string) (*models.User, error)
	GetUserById(ctx context.Context, id int) (*models.User, error)
	SearchUsers(ctx context.Context, term string, excludeID int) ([]models.UserSummary, error)
	UpdateUser(ctx context.Context, id int, updated *models.User) error
	SetPresence(ctx context.Context, userID int, online bool) error
	BlockUser(ctx context.Context, userID, blockedID int) error
	UnblockUser(ctx context.Context, userID, blockedID int) error
	IsBlockedEitherWay(ctx context.Context, userA, userB int) (bool, error)
}

type userService struct{}

func NewUserService() *userService {
	return &userService{}
}

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (us *userService) CheckUserExists(ctx context.Context, username, email string) (bool, error) {
	query := psql.
		Select("COUNT(*)").
		From("users").
		Where(squirrel.Or{
			squirrel.Eq{"username": username},
			squirrel.Eq{"email": email},
		})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return false, err
	}

	var count int
	err = db.Pool.QueryRow(ctx, sqlStr, args...).Scan(&count)
	if err != nil {
		log.Printf("Error executing query: %v", err)
		return false, err
	}

	return count > 0, nil
}

func (us *userService) CreateUser(ctx context.Context, user *models.User) (int, error) {
	hashedPassword, err := utils.HashPassword(user.PasswordHash)
	if err != nil {
		log.Printf("Failed to hash password: %v", err)
		return 0, err
	}

	query := psql.
		Insert("users").
		Columns("username", "email", "password_hash").
		Values(user.Username, user.Email, hashedPassword).
		Suffix("RETURNING id")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return 0, err
	}

	var userID int
	err = db.Pool.QueryRow(ctx, sqlStr, args...).Scan(&userID)
	if err != nil {
		// the unique indexes on username/email are the backstop for two
		// registrations racing past CheckUserExists
		if isUniqueViolation(err) {
			return 0, models.ErrDuplicateIdentity
		}
		log.Printf("Error creating user: %v", err)
		return 0, err
	}

	log.Printf("User created: %s (ID: %d)", user.Username, userID)
	return userID, nil
}

// GetUserByIdentity resolves a user by email or username, whichever matches.
func (us *userService) GetUserByIdentity(ctx context.Context, identity string) (*models.User, error) {
	query := psql.
		Select("id", "username", "email", "password_hash", "avatar_url", "status", "last_seen_at", "created_at").
		From("users").
		Where(squirrel.Or{
			squirrel.Eq{"email": identity},
			squirrel.Eq{"username": identity},
		})

	return us.fetchOne(ctx, query)
}

func (us *userService) GetUserById(ctx context.Context, id int) (*models.User, error) {
	query := psql.
		Select("id", "username", "email", "password_hash", "avatar_url", "status", "last_seen_at", "created_at").
		From("users").
		Where(squirrel.Eq{"id": id})

	return us.fetchOne(ctx, query)
}

func (us *userService) fetchOne(ctx context.Context, query squirrel.SelectBuilder) (*models.User, error) {
	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return nil, err
	}

	var user models.User
	err = db.Pool.QueryRow(ctx, sqlStr, args...).Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash,
		&user.AvatarURL, &user.Status, &user.LastSeenAt, &user.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, models.ErrUserNotFound
		}
		log.Printf("Error fetching user: %v", err)
		return nil, err
	}

	return &user, nil
}

func (us *userService) SearchUsers(ctx context.Context, term string, excludeID int) ([]models.UserSummary, error) {
	pattern := "%" + term + "%"
	query := psql.
		Select("id", "username", "email", "avatar_url", "status").
		From("users").
		Where(squirrel.And{
			squirrel.Or{
				squirrel.ILike{"username": pattern},
				squirrel.ILike{"email": pattern},
			},
			squirrel.NotEq{"id": excludeID},
		}).
		OrderBy("username ASC")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return nil, err
	}

	rows, err := db.Pool.Query(ctx, sqlStr, args...)
	if err != nil {
		log.Printf("Error searching users by %q: %v", term, err)
		return nil, err
	}
	defer rows.Close()

	var users []models.UserSummary
	for rows.Next() {
		var u models.UserSummary
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.AvatarURL, &u.Status); err != nil {
			log.Printf("Error scanning user row: %v", err)
			continue
		}
		users = append(users, u)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	log.Printf("Search %q returned %d users", term, len(users))
	return users, nil
}

func (us *userService) UpdateUser(ctx context.Context, id int, updated *models.User) error {
	setClause := squirrel.Eq{}
	if updated.Username != "" {
		setClause["username"] = updated.Username
	}
	if updated.AvatarURL != nil {
		setClause["avatar_url"] = *updated.AvatarURL
	}
	if updated.PasswordHash != "" {
		hashedPassword, err := utils.HashPassword(updated.PasswordHash)
		if err != nil {
			log.Printf("Failed to hash password: %v", err)
			return err
		}
		setClause["password_hash"] = hashedPassword
	}

	if len(setClause) == 0 {
		return models.ErrValidation
	}

	query := psql.
		Update("users").
		SetMap(setClause).
		Where(squirrel.Eq{"id": id})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return err
	}

	result, err := db.Pool.Exec(ctx, sqlStr, args...)
	if err != nil {
		log.Printf("Error updating user %d: %v", id, err)
		return err
	}

	if result.RowsAffected() == 0 {
		return models.ErrUserNotFound
	}

	log.Printf("User updated: ID %d", id)
	return nil
}

func (us *userService) SetPresence(ctx context.Context, userID int, online bool) error {
	status := models.StatusOffline
	setClause := squirrel.Eq{"last_seen_at": time.Now()}
	if online {
		status = models.StatusOnline
	}
	setClause["status"] = status

	query := psql.
		Update("users").
		SetMap(setClause).
		Where(squirrel.Eq{"id": userID})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return err
	}

	_, err = db.Pool.Exec(ctx, sqlStr, args...)
	if err != nil {
		log.Printf("Error setting presence %s for user %d: %v", status, userID, err)
		return err
	}

	log.Printf("User %d is now %s", userID, status)
	return nil
}

func (us *userService) BlockUser(ctx context.Context, userID, blockedID int) error {
	query := psql.
		Insert("blocked_users").
		Columns("user_id", "blocked_user_id").
		Values(userID, blockedID).
		Suffix("ON CONFLICT (user_id, blocked_user_id) DO NOTHING")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return err
	}

	_, err = db.Pool.Exec(ctx, sqlStr, args...)
	if err != nil {
		log.Printf("Error blocking user %d by %d: %v", blockedID, userID, err)
		return err
	}

	log.Printf("User %d blocked user %d", userID, blockedID)
	return nil
}

func (us *userService) UnblockUser(ctx context.Context, userID, blockedID int) error {
	query := psql.
		Delete("blocked_users").
		Where(squirrel.And{
			squirrel.Eq{"user_id": userID},
			squirrel.Eq{"blocked_user_id": blockedID},
		})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return err
	}

	_, err = db.Pool.Exec(ctx, sqlStr, args...)
	if err != nil {
		log.Printf("Error unblocking user %d by %d: %v", blockedID, userID, err)
		return err
	}

	log.Printf("User %d unblocked user %d", userID, blockedID)
	return nil
}

func (us *userService) IsBlockedEitherWay(ctx context.Context, userA, userB int) (bool, error) {
	query := `
        SELECT EXISTS (
            SELECT 1
            FROM blocked_users
            WHERE (user_id = $1 AND blocked_user_id = $2)
               OR (user_id = $2 AND blocked_user_id = $1)
        )
    `

	var exists bool
	err := db.Pool.QueryRow(ctx, query, userA, userB).Scan(&exists)
	if err != nil {
		log.Printf("Error checking block between users %d and %d: %v", userA, userB, err)
		return false, err
	}

	return exists, nil
}
