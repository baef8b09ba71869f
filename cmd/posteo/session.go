// ABOUTME: Session commands: login, register, and the stats summary
// ABOUTME: Credentials come from flags, with an interactive password fallback

package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/pflag"

	"github.com/posteo/posteo-client/internal/auth"
	"github.com/posteo/posteo-client/internal/forum"
	"github.com/posteo/posteo-client/internal/policy"
)

func (a *app) cmdLogin(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("login", pflag.ContinueOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password (prompted when omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *password == "" {
		pw, err := promptLine("Password: ")
		if err != nil {
			return err
		}
		*password = pw
	}

	if err := a.session.Login(ctx, *email, *password); err != nil {
		return err
	}

	id := a.session.Identity()
	color.Green("Logged in as subject %d (%s).", id.SubjectID, id.Role)
	return nil
}

func (a *app) cmdRegister(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("register", pflag.ContinueOnError)
	username := fs.String("username", "", "display name")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password (prompted when omitted)")
	role := fs.String("role", string(auth.RoleUser), "requested role (user, moderator, admin)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *password == "" {
		pw, err := promptLine("Password: ")
		if err != nil {
			return err
		}
		*password = pw
	}

	params := auth.RegisterParams{
		Username: *username,
		Email:    *email,
		Password: *password,
		Role:     auth.Role(*role),
	}
	if err := a.session.Register(ctx, params); err != nil {
		return err
	}

	id := a.session.Identity()
	color.Green("Registered and logged in as subject %d (%s).", id.SubjectID, id.Role)
	return nil
}

func (a *app) cmdStats(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("stats", pflag.ContinueOnError)
	output := fs.String("output", "table", "output format (table, yaml)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if !policy.Allowed(a.session.Identity(), policy.ActionViewStats, policy.NoOwner) {
		return fmt.Errorf("%w: view stats", forum.ErrDenied)
	}

	stats, err := a.client.Stats(ctx)
	if err != nil {
		return err
	}

	if *output == "yaml" {
		return writeYAML(os.Stdout, stats)
	}

	fmt.Printf("Users:           %d\n", stats.TotalUsers)
	fmt.Printf("Posts:           %d\n", stats.TotalPosts)
	fmt.Printf("Comments:        %d\n", stats.TotalComments)
	fmt.Printf("Posts last week: %d\n", stats.PostsLastWeek)
	return nil
}

func promptLine(prompt string) (string, error) {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimSpace(line), nil
}
