// ABOUTME: User administration commands that work directly against the database
// ABOUTME: adduser registers users, disable deactivates, delete soft-deletes, token issues a JWT

package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"

	"github.com/2389/support-gateway/internal/auth"
	"github.com/2389/support-gateway/internal/config"
	"github.com/2389/support-gateway/internal/store"
)

// openStore loads the config and opens the SQLite store it points at.
func openStore() (*config.Config, *store.SQLiteStore, error) {
	cfg, err := config.Load(config.Path())
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	return cfg, s, nil
}

func runAddUser(ctx context.Context, args []string) error {
	p, err := parseArgs(args, []string{"email", "first", "last", "lang"}, []string{"support"})
	if err != nil {
		return err
	}

	user, err := userFromArgs(p)
	if err != nil {
		return err
	}

	_, s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicateUser) {
			return fmt.Errorf("a user with email %s already exists", user.Email)
		}
		return fmt.Errorf("creating user: %w", err)
	}

	role := "client"
	if user.IsSupport {
		role = "support"
	}
	color.New(color.FgGreen).Printf("  ✓ Created %s user %d: %s %s <%s>\n",
		role, user.ID, user.FirstName, user.LastName, user.Email)
	return nil
}

// userFromArgs validates adduser flags into an active user record.
func userFromArgs(p *parsedArgs) (*store.User, error) {
	email, err := p.require("email")
	if err != nil {
		return nil, err
	}
	first, err := p.require("first")
	if err != nil {
		return nil, err
	}
	last, err := p.require("last")
	if err != nil {
		return nil, err
	}
	if len(first) > 100 || len(last) > 100 {
		return nil, fmt.Errorf("names exceed maximum length of 100 characters")
	}

	return &store.User{
		Email:             email,
		FirstName:         first,
		LastName:          last,
		PreferredLanguage: p.values["lang"],
		IsSupport:         p.bools["support"],
		IsActive:          true,
	}, nil
}

func runDisable(ctx context.Context, args []string) error {
	p, err := parseArgs(args, []string{"id"}, nil)
	if err != nil {
		return err
	}
	id, err := p.requireID("id")
	if err != nil {
		return err
	}

	_, s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.SetUserActive(ctx, id, false); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("user %d not found", id)
		}
		return err
	}

	// Open sockets keep their identity until they reconnect
	color.New(color.FgYellow).Printf("  ✓ Disabled user %d (existing connections stay open until they drop)\n", id)
	return nil
}

func runDelete(ctx context.Context, args []string) error {
	p, err := parseArgs(args, []string{"id"}, nil)
	if err != nil {
		return err
	}
	id, err := p.requireID("id")
	if err != nil {
		return err
	}

	_, s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	if err := deleteUser(ctx, s, id); err != nil {
		return err
	}
	color.New(color.FgYellow).Printf("  ✓ Deleted user %d (messages keep their sender)\n", id)
	return nil
}

// deleteUser soft-deletes a user so it can no longer resolve to an identity.
func deleteUser(ctx context.Context, users store.UserStore, id int64) error {
	if err := users.DeleteUser(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("user %d not found", id)
		}
		return fmt.Errorf("deleting user: %w", err)
	}
	return nil
}

func runToken(ctx context.Context, args []string) error {
	p, err := parseArgs(args, []string{"id", "ttl"}, nil)
	if err != nil {
		return err
	}
	id, err := p.requireID("id")
	if err != nil {
		return err
	}

	cfg, s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	ttl := cfg.Auth.TokenTTL
	if raw := p.values["ttl"]; raw != "" {
		ttl, err = time.ParseDuration(raw)
		if err != nil || ttl <= 0 {
			return fmt.Errorf("--ttl must be a positive duration")
		}
	}

	token, err := issueToken(ctx, s, cfg.Auth.JWTSecret, id, ttl)
	if err != nil {
		return err
	}

	fmt.Println(token)
	return nil
}

// issueToken signs a token for an active user.
func issueToken(ctx context.Context, users auth.UserLookup, secret string, id int64, ttl time.Duration) (string, error) {
	if _, err := users.GetActiveUser(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", fmt.Errorf("no active user with id %d", id)
		}
		return "", fmt.Errorf("looking up user: %w", err)
	}

	verifier, err := auth.NewJWTVerifier([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("creating JWT verifier: %w", err)
	}

	token, err := verifier.Generate(id, ttl)
	if err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}
	return token, nil
}
