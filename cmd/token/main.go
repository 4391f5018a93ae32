// Command token issues an access token for a device, signed with the
// backend's JWT_SECRET_KEY. Put the printed token in the device's API_TOKEN.
//
//	token [-env .env] -user EMP001 [-email asha@example.com]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cmlabs-hris/site-visit-go/internal/config"
	"github.com/cmlabs-hris/site-visit-go/internal/pkg/jwt"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(stderr)
	envFile := fs.String("env", ".env", "env file to load")
	userID := fs.String("user", "", "user id the token is issued to")
	email := fs.String("email", "", "email claim")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	if err := issue(ctx, *envFile, *userID, *email, stdout); err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	return 0
}

func issue(ctx context.Context, envFile, userID, email string, stdout io.Writer) error {
	if userID == "" {
		return errors.New("-user is required")
	}

	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}
	if cfg.JWT.Secret == "" {
		return errors.New("JWT_SECRET_KEY is required")
	}

	token, expiresAt, err := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiration).GenerateAccessToken(userID, email)
	if err != nil {
		return fmt.Errorf("generate token: %w", err)
	}

	fmt.Fprintln(stdout, token)
	fmt.Fprintf(stdout, "# expires %s\n", time.Unix(expiresAt, 0).UTC().Format(time.RFC3339))
	return ctx.Err()
}
