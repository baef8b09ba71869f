// ABOUTME: Comment commands scoped to a single post
// ABOUTME: Edit goes through the inline edit cursor: start, draft, save

package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/pflag"

	"github.com/posteo/posteo-client/internal/forum"
)

func (a *app) cmdComments(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: comments <post-id> [list|add|edit|delete]")
	}
	postID, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid post id: %q", args[0])
	}
	args = args[1:]
	if len(args) == 0 {
		args = []string{"list"}
	}

	switch args[0] {
	case "list":
		return a.commentsList(ctx, postID, args[1:])
	case "add":
		return a.commentsAdd(ctx, postID, args[1:])
	case "edit":
		return a.commentsEdit(ctx, postID, args[1:])
	case "delete":
		return a.commentsDelete(ctx, postID, args[1:])
	default:
		return fmt.Errorf("unknown comments subcommand: %s", args[0])
	}
}

func (a *app) commentsList(ctx context.Context, postID int, args []string) error {
	fs := pflag.NewFlagSet("comments list", pflag.ContinueOnError)
	output := fs.String("output", "table", "output format (table, yaml)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	service := forum.NewComments(postID, a.client, a.session, nil, a.logger)
	defer service.Close()

	if err := service.Refresh(ctx); err != nil {
		return err
	}
	comments := service.Snapshot()
	if *output == "yaml" {
		return writeYAML(os.Stdout, comments)
	}
	printComments(os.Stdout, comments)
	return nil
}

func (a *app) commentsAdd(ctx context.Context, postID int, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: comments %d add <text>", postID)
	}

	service := forum.NewComments(postID, a.client, a.session, nil, a.logger)
	defer service.Close()

	if err := service.Add(ctx, args[0]); err != nil {
		return err
	}
	color.Green("Comment added.")
	return nil
}

func (a *app) commentsEdit(ctx context.Context, postID int, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: comments %d edit <comment-id> <text>", postID)
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid comment id: %q", args[0])
	}

	service := forum.NewComments(postID, a.client, a.session, nil, a.logger)
	defer service.Close()

	// The cursor needs the comment in the snapshot before the edit can start.
	if err := service.Refresh(ctx); err != nil {
		return err
	}
	if err := service.StartEdit(id); err != nil {
		return err
	}
	service.SetDraft(args[1])
	if err := service.SaveEdit(ctx); err != nil {
		service.CancelEdit()
		return err
	}
	color.Green("Comment %d updated.", id)
	return nil
}

func (a *app) commentsDelete(ctx context.Context, postID int, args []string) error {
	fs := pflag.NewFlagSet("comments delete", pflag.ContinueOnError)
	yes := fs.Bool("yes", false, "skip the confirmation prompt")
	if err := fs.Parse(args); err != nil {
		return err
	}
	id, err := argID(fs.Args(), "comment id")
	if err != nil {
		return err
	}

	service := forum.NewComments(postID, a.client, a.session, a.confirmer(*yes), a.logger)
	defer service.Close()

	if err := service.Refresh(ctx); err != nil {
		return err
	}
	if err := service.Delete(ctx, id); err != nil {
		return err
	}
	color.Green("Comment %d deleted.", id)
	return nil
}
