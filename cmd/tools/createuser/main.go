package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"blog.local/internal/app/blog/repo"
	"blog.local/internal/platform/config"
	"blog.local/internal/platform/db"
	flag "github.com/spf13/pflag"
)

func main() {
	username := flag.StringP("username", "u", "", "login name (3-32 chars)")
	displayName := flag.StringP("name", "n", "", "display name, defaults to username")
	role := flag.StringP("role", "r", repo.RoleAuthor, "author or admin")
	password := flag.StringP("password", "p", "", "password (8-72 chars), or set BLOG_PASSWORD")
	flag.Parse()

	if *password == "" {
		*password = os.Getenv("BLOG_PASSWORD")
	}
	if *username == "" || *password == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.Load()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.New(ctx, cfg.DBDSN)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	id, err := repo.NewUsersRepo(pool).RegistUser(ctx, *username, *displayName, *password, *role)
	switch {
	case errors.Is(err, repo.ErrUserAlreadyExists):
		log.Fatalf("user %q already exists", *username)
	case err != nil:
		log.Fatal(err)
	}
	fmt.Printf("created %s %q (id=%d)\n", *role, *username, id)
}
