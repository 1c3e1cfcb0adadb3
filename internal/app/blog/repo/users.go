package repo

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

var ErrUserNotFound = errors.New("user not found")
var ErrUserAlreadyExists = errors.New("Username already exists")
var ErrInvalidUsername = errors.New("Username is not allowed")
var ErrInvalidPassword = errors.New("Password is not allowed")
var ErrBadCredentials = errors.New("invalid credentials")

const (
	RoleAuthor = "author"
	RoleAdmin  = "admin"
)

// UsersRepo 管理可以登录写文章的作者账号
type UsersRepo struct {
	db *pgxpool.Pool
}

func NewUsersRepo(db *pgxpool.Pool) *UsersRepo {
	return &UsersRepo{db: db}
}

type User struct {
	ID           int64
	Username     string
	DisplayName  string
	PasswordHash string
	Role         string
}

func (u *UsersRepo) FindByUsername(ctx context.Context, username string) (User, error) {
	username = strings.TrimSpace(username)
	dbctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	row := u.db.QueryRow(dbctx, "SELECT id, username, display_name, password_hash, role FROM users WHERE username=$1 LIMIT 1", username)
	var user User
	if err := row.Scan(&user.ID, &user.Username, &user.DisplayName, &user.PasswordHash, &user.Role); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		slog.Error(err.Error())
		return User{}, err
	}
	return user, nil
}

// Authenticate 校验用户名密码。用户不存在和密码错误都返回 ErrBadCredentials。
func (u *UsersRepo) Authenticate(ctx context.Context, username, password string) (User, error) {
	user, err := u.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return User{}, ErrBadCredentials
		}
		return User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return User{}, ErrBadCredentials
	}
	return user, nil
}

// RegistUser 注册作者。displayName 为空时使用用户名，role 为空时是 author。
func (u *UsersRepo) RegistUser(ctx context.Context, name, displayName, password, role string) (int64, error) {
	name = strings.TrimSpace(name)
	if len(name) < 3 || len(name) > 32 {
		return -1, ErrInvalidUsername
	}
	if len(password) < 8 || len(password) > 72 {
		return -1, ErrInvalidPassword
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = name
	}
	switch role {
	case "":
		role = RoleAuthor
	case RoleAuthor, RoleAdmin:
	default:
		return -1, errors.New("unknown role: " + role)
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		slog.Error(err.Error())
		return -1, err
	}
	dbctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var id int64
	if err := u.db.
		QueryRow(dbctx, "INSERT INTO users (username,display_name,password_hash,role) VALUES ($1,$2,$3,$4) ON CONFLICT (username) DO NOTHING RETURNING id",
			name, displayName, string(passwordHash), role).
		Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return -1, ErrUserAlreadyExists
		}
		slog.Error(err.Error())
		return -1, err
	}

	return id, nil
}
