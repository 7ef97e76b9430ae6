package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/silabo/core/user"
)

const uniqueViolation = "23505"

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *sql.DB) user.Repository {
	return &userRepository{db: sqlx.NewDb(db, "postgres")}
}

// dbUser mirrors the "user" table; roles are stored as a text array.
type dbUser struct {
	ID           string         `db:"id"`
	FirstName    string         `db:"first_name"`
	LastName     string         `db:"last_name"`
	Email        string         `db:"email"`
	PhonePrefix  string         `db:"phone_prefix"`
	PhoneNumber  string         `db:"phone_number"`
	IsActive     bool           `db:"is_active"`
	Roles        pq.StringArray `db:"roles"`
	PasswordHash []byte         `db:"password_hash"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	LastLogin    time.Time      `db:"last_login"`
}

func (du dbUser) toUser() user.User {
	roles := make([]user.Role, 0, len(du.Roles))
	for _, r := range du.Roles {
		roles = append(roles, user.Role(r))
	}
	usr := user.User{
		ID:           du.ID,
		FirstName:    du.FirstName,
		LastName:     du.LastName,
		Email:        du.Email,
		PhonePrefix:  du.PhonePrefix,
		PhoneNumber:  du.PhoneNumber,
		Roles:        roles,
		PasswordHash: du.PasswordHash,
		CreatedAt:    du.CreatedAt.UTC(),
		UpdatedAt:    du.UpdatedAt.UTC(),
		LastLogin:    du.LastLogin.UTC(),
	}
	usr.SetActive(du.IsActive)
	return usr
}

func fromUser(usr user.User) dbUser {
	roles := make(pq.StringArray, 0, len(usr.Roles))
	for _, r := range usr.Roles {
		roles = append(roles, string(r))
	}
	du := dbUser{
		ID:           usr.ID,
		FirstName:    usr.FirstName,
		LastName:     usr.LastName,
		Email:        usr.Email,
		PhonePrefix:  usr.PhonePrefix,
		PhoneNumber:  usr.PhoneNumber,
		IsActive:     true,
		Roles:        roles,
		PasswordHash: usr.PasswordHash,
		CreatedAt:    usr.CreatedAt,
		UpdatedAt:    usr.UpdatedAt,
		LastLogin:    usr.LastLogin,
	}
	if usr.IsActive != nil {
		du.IsActive = *usr.IsActive
	}
	return du
}

func toUsers(dbUsers []dbUser) []user.User {
	users := make([]user.User, 0, len(dbUsers))
	for _, du := range dbUsers {
		users = append(users, du.toUser())
	}
	return users
}

func (repo *userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...user.User) error {
	exclIDs := make([]string, 0, len(excludedUsers))
	for _, usr := range excludedUsers {
		exclIDs = append(exclIDs, usr.ID)
	}

	var exists bool
	q := `SELECT EXISTS(SELECT 1 FROM "user" WHERE email = $1 AND id <> ALL($2))`
	if err := repo.db.GetContext(ctx, &exists, q, email, pq.Array(exclIDs)); err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if exists {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	if usr.ID == "" {
		usr.ID = uuid.New().String()
	}
	du := fromUser(usr)

	q := `INSERT INTO "user" (id, first_name, last_name, email, phone_prefix, phone_number, is_active, roles, password_hash, created_at, updated_at, last_login)
	      VALUES (:id, :first_name, :last_name, :email, :phone_prefix, :phone_number, :is_active, :roles, :password_hash, :created_at, :updated_at, :last_login)`
	if _, err := repo.db.NamedExecContext(ctx, q, du); err != nil {
		if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code == uniqueViolation {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var (
		q   string
		arg string
	)
	switch {
	case filter.ID != "":
		q, arg = `SELECT * FROM "user" WHERE id = $1`, filter.ID
	case filter.Email != "":
		q, arg = `SELECT * FROM "user" WHERE email = $1`, filter.Email
	default:
		return user.User{}, user.ErrNotFound
	}

	var du dbUser
	if err := repo.db.GetContext(ctx, &du, q, arg); err != nil {
		if err == sql.ErrNoRows {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "getting user")
	}
	return du.toUser(), nil
}

func (repo *userRepository) QueryAllUsers(ctx context.Context) ([]user.User, error) {
	var dbUsers []dbUser
	if err := repo.db.SelectContext(ctx, &dbUsers, `SELECT * FROM "user" ORDER BY created_at`); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	return toUsers(dbUsers), nil
}

func (repo *userRepository) FilterUsers(ctx context.Context, filter user.QueryFilter) ([]user.User, error) {
	var (
		clauses []string
		args    []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Search != "" {
		p := arg("%" + filter.Search + "%")
		clauses = append(clauses, fmt.Sprintf("(first_name ILIKE %[1]s OR last_name ILIKE %[1]s OR email ILIKE %[1]s)", p))
	}
	if filter.Roles != nil {
		roles := make(pq.StringArray, 0, len(filter.Roles))
		for _, r := range filter.Roles {
			roles = append(roles, string(r))
		}
		clauses = append(clauses, fmt.Sprintf("roles && %s", arg(roles)))
	}
	if filter.IsActive != nil {
		clauses = append(clauses, fmt.Sprintf("is_active = %s", arg(*filter.IsActive)))
	}

	q := `SELECT * FROM "user"`
	if len(clauses) > 0 {
		q += " WHERE " + strings.Join(clauses, " AND ")
	}
	q += " ORDER BY created_at"

	var dbUsers []dbUser
	if err := repo.db.SelectContext(ctx, &dbUsers, q, args...); err != nil {
		return nil, errors.Wrap(err, "filtering users")
	}
	return toUsers(dbUsers), nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User, isActive *bool) (user.User, error) {
	// only save set fields
	sets := []string{
		"first_name = :first_name",
		"last_name = :last_name",
		"email = :email",
		"phone_prefix = :phone_prefix",
		"phone_number = :phone_number",
		"updated_at = :updated_at",
	}
	if usr.Roles != nil {
		sets = append(sets, "roles = :roles")
	}
	if usr.PasswordHash != nil {
		sets = append(sets, "password_hash = :password_hash")
	}
	if isActive != nil {
		usr.SetActive(*isActive)
		sets = append(sets, "is_active = :is_active")
	}
	if !usr.LastLogin.IsZero() {
		sets = append(sets, "last_login = :last_login")
	}

	q := fmt.Sprintf(`UPDATE "user" SET %s WHERE id = :id`, strings.Join(sets, ", "))
	res, err := repo.db.NamedExecContext(ctx, q, fromUser(usr))
	if err != nil {
		if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code == uniqueViolation {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return repo.GetUser(ctx, user.GetFilter{ID: usr.ID})
}

func (repo *userRepository) UpdateOrCreateUser(ctx context.Context, usr user.User) (user.User, error) {
	if usr.ID == "" {
		return repo.CreateUser(ctx, usr)
	}
	if _, err := repo.GetUser(ctx, user.GetFilter{ID: usr.ID}); err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return repo.CreateUser(ctx, usr)
		}
		return user.User{}, err
	}
	return repo.UpdateUser(ctx, usr, usr.IsActive)
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids ...string) error {
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM "user" WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return nil
}
