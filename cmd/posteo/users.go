// ABOUTME: User administration commands: list, show, role, status, deactivate
// ABOUTME: Deactivating your own account logs the session out

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/pflag"

	"github.com/posteo/posteo-client/internal/auth"
	"github.com/posteo/posteo-client/internal/forum"
)

func (a *app) cmdUsers(ctx context.Context, args []string) error {
	if len(args) == 0 {
		args = []string{"list"}
	}

	switch args[0] {
	case "list":
		return a.usersList(ctx, args[1:])
	case "show":
		return a.usersShow(ctx, args[1:])
	case "role":
		return a.usersRole(ctx, args[1:])
	case "status":
		return a.usersStatus(ctx, args[1:])
	case "deactivate":
		return a.usersDeactivate(ctx, args[1:])
	default:
		return fmt.Errorf("unknown users subcommand: %s", args[0])
	}
}

func (a *app) usersList(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("users list", pflag.ContinueOnError)
	output := fs.String("output", "table", "output format (table, yaml)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	service := forum.NewUsers(a.client, a.session, nil, a.logger)
	defer service.Close()

	if err := service.Refresh(ctx); err != nil {
		return err
	}
	users := service.Snapshot()
	if *output == "yaml" {
		return writeYAML(os.Stdout, users)
	}
	printUsers(os.Stdout, users)
	return nil
}

func (a *app) usersShow(ctx context.Context, args []string) error {
	id, err := argID(args, "user id")
	if err != nil {
		return err
	}

	user, err := a.client.GetUser(ctx, id)
	if err != nil {
		return err
	}

	status := "active"
	if !user.IsActive {
		status = "inactive"
	}
	fmt.Printf("ID:       %d\n", user.ID)
	fmt.Printf("Username: %s\n", user.Username)
	fmt.Printf("Email:    %s\n", user.Email)
	fmt.Printf("Role:     %s\n", user.Role)
	fmt.Printf("Status:   %s\n", status)
	fmt.Printf("Created:  %s\n", user.CreatedAt)
	return nil
}

func (a *app) usersRole(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: users role <id> <user|moderator|admin>")
	}
	id, err := argID(args, "user id")
	if err != nil {
		return err
	}

	service := forum.NewUsers(a.client, a.session, nil, a.logger)
	defer service.Close()

	if err := service.Refresh(ctx); err != nil {
		return err
	}
	if err := service.SetRole(ctx, id, auth.Role(args[1])); err != nil {
		return err
	}
	color.Green("User %d is now %s.", id, args[1])
	return nil
}

func (a *app) usersStatus(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("users status", pflag.ContinueOnError)
	yes := fs.Bool("yes", false, "skip the confirmation prompt")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) < 2 {
		return fmt.Errorf("usage: users status <id> <active|inactive>")
	}
	id, err := argID(rest, "user id")
	if err != nil {
		return err
	}

	var active bool
	switch rest[1] {
	case "active":
		active = true
	case "inactive":
		active = false
	default:
		return fmt.Errorf("status must be active or inactive, got %q", rest[1])
	}

	service := forum.NewUsers(a.client, a.session, a.confirmer(*yes), a.logger)
	defer service.Close()

	if err := service.Refresh(ctx); err != nil {
		return err
	}
	if err := service.SetStatus(ctx, id, active); err != nil {
		return err
	}
	color.Green("User %d is now %s.", id, rest[1])
	return nil
}

func (a *app) usersDeactivate(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("users deactivate", pflag.ContinueOnError)
	yes := fs.Bool("yes", false, "skip the confirmation prompt")
	if err := fs.Parse(args); err != nil {
		return err
	}
	id, err := argID(fs.Args(), "user id")
	if err != nil {
		return err
	}

	service := forum.NewUsers(a.client, a.session, a.confirmer(*yes), a.logger)
	defer service.Close()

	if err := service.Refresh(ctx); err != nil {
		return err
	}
	if err := service.Deactivate(ctx, id); err != nil {
		return err
	}

	if !a.session.Authenticated() {
		color.Yellow("You deactivated your own account; the session has been logged out.")
	}
	color.Green("User %d deactivated.", id)
	return nil
}
