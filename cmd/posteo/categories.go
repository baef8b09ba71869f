// ABOUTME: Category management commands for moderators and admins
// ABOUTME: Delete is a soft delete; the server hides the category

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/pflag"

	"github.com/posteo/posteo-client/internal/forum"
)

func (a *app) cmdCategories(ctx context.Context, args []string) error {
	if len(args) == 0 {
		args = []string{"list"}
	}

	switch args[0] {
	case "list":
		return a.categoriesList(ctx, args[1:])
	case "create":
		return a.categoriesCreate(ctx, args[1:])
	case "rename":
		return a.categoriesRename(ctx, args[1:])
	case "delete":
		return a.categoriesDelete(ctx, args[1:])
	default:
		return fmt.Errorf("unknown categories subcommand: %s", args[0])
	}
}

func (a *app) categoriesList(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("categories list", pflag.ContinueOnError)
	output := fs.String("output", "table", "output format (table, yaml)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	service := forum.NewCategories(a.client, a.session, nil, a.logger)
	defer service.Close()

	if err := service.Refresh(ctx); err != nil {
		return err
	}
	categories := service.Snapshot()
	if *output == "yaml" {
		return writeYAML(os.Stdout, categories)
	}
	printCategories(os.Stdout, categories)
	return nil
}

func (a *app) categoriesCreate(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: categories create <name>")
	}

	service := forum.NewCategories(a.client, a.session, nil, a.logger)
	defer service.Close()

	if err := service.Create(ctx, args[0]); err != nil {
		return err
	}
	color.Green("Category %q created.", args[0])
	return nil
}

func (a *app) categoriesRename(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: categories rename <id> <name>")
	}
	id, err := argID(args, "category id")
	if err != nil {
		return err
	}

	service := forum.NewCategories(a.client, a.session, nil, a.logger)
	defer service.Close()

	if err := service.Refresh(ctx); err != nil {
		return err
	}
	if err := service.Rename(ctx, id, args[1]); err != nil {
		return err
	}
	color.Green("Category %d renamed to %q.", id, args[1])
	return nil
}

func (a *app) categoriesDelete(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("categories delete", pflag.ContinueOnError)
	yes := fs.Bool("yes", false, "skip the confirmation prompt")
	if err := fs.Parse(args); err != nil {
		return err
	}
	id, err := argID(fs.Args(), "category id")
	if err != nil {
		return err
	}

	service := forum.NewCategories(a.client, a.session, a.confirmer(*yes), a.logger)
	defer service.Close()

	if err := service.Refresh(ctx); err != nil {
		return err
	}
	if err := service.Delete(ctx, id); err != nil {
		return err
	}
	color.Green("Category %d hidden.", id)
	return nil
}
