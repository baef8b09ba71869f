// ABOUTME: Post feed commands: list, create, edit, delete, and HTML export
// ABOUTME: Listing falls back to the local snapshot cache when offline

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/pflag"
	"github.com/yuin/goldmark"

	"github.com/posteo/posteo-client/internal/api"
	"github.com/posteo/posteo-client/internal/forum"
)

func (a *app) cmdPosts(ctx context.Context, args []string) error {
	if len(args) == 0 {
		args = []string{"list"}
	}

	switch args[0] {
	case "list":
		return a.postsList(ctx, args[1:])
	case "create":
		return a.postsCreate(ctx, args[1:])
	case "edit":
		return a.postsEdit(ctx, args[1:])
	case "delete":
		return a.postsDelete(ctx, args[1:])
	case "export":
		return a.postsExport(ctx, args[1:])
	default:
		return fmt.Errorf("unknown posts subcommand: %s", args[0])
	}
}

func (a *app) postsList(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("posts list", pflag.ContinueOnError)
	output := fs.String("output", "table", "output format (table, yaml)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	service := forum.NewPosts(a.client, a.session, nil, a.logger)
	defer service.Close()

	if err := service.Refresh(ctx); err != nil {
		if errors.Is(err, api.ErrUnauthorized) || errors.Is(err, api.ErrRateLimited) {
			return err
		}
		if posts, fetchedAt, ok := a.cachedPosts(ctx); ok {
			warnStale(fetchedAt)
			if *output == "yaml" {
				return writeYAML(os.Stdout, posts)
			}
			printPosts(os.Stdout, posts)
			return nil
		}
		return err
	}

	posts := service.Snapshot()
	a.cachePosts(ctx, posts)

	if *output == "yaml" {
		return writeYAML(os.Stdout, posts)
	}
	printPosts(os.Stdout, posts)
	return nil
}

func (a *app) postsCreate(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("posts create", pflag.ContinueOnError)
	title := fs.String("title", "", "post title")
	content := fs.String("content", "", "post body (markdown)")
	categories := fs.IntSlice("categories", nil, "category ids, comma separated")
	if err := fs.Parse(args); err != nil {
		return err
	}

	service := forum.NewPosts(a.client, a.session, nil, a.logger)
	defer service.Close()

	err := service.Create(ctx, api.CreatePostParams{
		Title:      *title,
		Content:    *content,
		Categories: *categories,
	})
	if err != nil {
		return err
	}
	color.Green("Post created.")
	return nil
}

func (a *app) postsEdit(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("posts edit", pflag.ContinueOnError)
	title := fs.String("title", "", "new title (keeps current when omitted)")
	content := fs.String("content", "", "new body (keeps current when omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	id, err := argID(fs.Args(), "post id")
	if err != nil {
		return err
	}

	service := forum.NewPosts(a.client, a.session, nil, a.logger)
	defer service.Close()

	// Edits go against the current snapshot, so fetch it first.
	if err := service.Refresh(ctx); err != nil {
		return err
	}
	post, ok := service.Get(id)
	if !ok {
		return fmt.Errorf("post %d not found", id)
	}

	params := api.CreatePostParams{Title: post.Title, Content: post.Content}
	for _, c := range post.Categories {
		params.Categories = append(params.Categories, c.ID)
	}
	if *title != "" {
		params.Title = *title
	}
	if *content != "" {
		params.Content = *content
	}

	if err := service.Update(ctx, id, params); err != nil {
		return err
	}
	color.Green("Post %d updated.", id)
	return nil
}

func (a *app) postsDelete(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("posts delete", pflag.ContinueOnError)
	yes := fs.Bool("yes", false, "skip the confirmation prompt")
	if err := fs.Parse(args); err != nil {
		return err
	}
	id, err := argID(fs.Args(), "post id")
	if err != nil {
		return err
	}

	service := forum.NewPosts(a.client, a.session, a.confirmer(*yes), a.logger)
	defer service.Close()

	if err := service.Refresh(ctx); err != nil {
		return err
	}
	if err := service.Delete(ctx, id); err != nil {
		return err
	}
	color.Green("Post %d deleted.", id)
	return nil
}

// postsExport renders every post's markdown body to a standalone HTML file.
func (a *app) postsExport(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("posts export", pflag.ContinueOnError)
	out := fs.String("out", "posts.html", "output file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	service := forum.NewPosts(a.client, a.session, nil, a.logger)
	defer service.Close()

	if err := service.Refresh(ctx); err != nil {
		return err
	}
	posts := service.Snapshot()

	var buf bytes.Buffer
	buf.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	buf.WriteString("<title>Posteo feed</title>\n</head>\n<body>\n")
	for _, p := range posts {
		fmt.Fprintf(&buf, "<article>\n<h1>%s</h1>\n", html.EscapeString(p.Title))
		fmt.Fprintf(&buf, "<p><em>%s — %s</em></p>\n",
			html.EscapeString(p.User.Username), html.EscapeString(p.DateCreated))
		if err := goldmark.Convert([]byte(p.Content), &buf); err != nil {
			return fmt.Errorf("rendering post %d: %w", p.ID, err)
		}
		buf.WriteString("</article>\n<hr>\n")
	}
	buf.WriteString("</body>\n</html>\n")

	if err := os.WriteFile(*out, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing export: %w", err)
	}
	color.Green("Exported %d posts to %s.", len(posts), *out)
	return nil
}

func argID(args []string, what string) (int, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("missing %s", what)
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", what, args[0])
	}
	return id, nil
}
