// ABOUTME: Output helpers shared by the command handlers
// ABOUTME: Tabwriter tables, YAML dumps, and the snapshot cache round trip

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/posteo/posteo-client/internal/api"
	"github.com/posteo/posteo-client/internal/cache"
)

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding yaml: %w", err)
	}
	return enc.Close()
}

func printPosts(w io.Writer, posts []api.Post) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tAUTHOR\tCATEGORIES\tCOMMENTS\tCREATED")
	for _, p := range posts {
		names := make([]string, 0, len(p.Categories))
		for _, c := range p.Categories {
			names = append(names, c.Name)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\n",
			p.ID, truncate(p.Title, 40), p.User.Username,
			joinOrDash(names), len(p.Comments), p.DateCreated)
	}
	tw.Flush()
}

func printComments(w io.Writer, comments []api.Comment) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tAUTHOR\tCONTENT")
	for _, c := range comments {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", c.ID, c.User.Username, truncate(c.Content, 60))
	}
	tw.Flush()
}

func printCategories(w io.Writer, categories []api.Category) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME")
	for _, c := range categories {
		fmt.Fprintf(tw, "%d\t%s\n", c.ID, c.Name)
	}
	tw.Flush()
}

func printUsers(w io.Writer, users []api.User) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUSERNAME\tEMAIL\tROLE\tSTATUS\tCREATED")
	for _, u := range users {
		status := "active"
		if !u.IsActive {
			status = "inactive"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			u.ID, u.Username, u.Email, u.Role, status, u.CreatedAt)
	}
	tw.Flush()
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}

func joinOrDash(names []string) string {
	if len(names) == 0 {
		return "-"
	}
	out := names[0]
	for _, n := range names[1:] {
		out += ", " + n
	}
	return out
}

// cachePosts stores the freshly fetched feed for offline listing. Cache
// failures are logged, never surfaced.
func (a *app) cachePosts(ctx context.Context, posts []api.Post) {
	if a.cache == nil {
		return
	}
	payload, err := json.Marshal(posts)
	if err != nil {
		a.logger.Warn("encoding post snapshot", "error", err)
		return
	}
	if err := a.cache.Put(ctx, cache.KindPosts, payload); err != nil {
		a.logger.Warn("caching post snapshot", "error", err)
	}
}

// cachedPosts loads the last stored feed, along with when it was fetched.
func (a *app) cachedPosts(ctx context.Context) ([]api.Post, time.Time, bool) {
	if a.cache == nil {
		return nil, time.Time{}, false
	}
	payload, fetchedAt, err := a.cache.Get(ctx, cache.KindPosts)
	if err != nil {
		return nil, time.Time{}, false
	}
	var posts []api.Post
	if err := json.Unmarshal(payload, &posts); err != nil {
		a.logger.Warn("decoding cached posts", "error", err)
		return nil, time.Time{}, false
	}
	return posts, fetchedAt, true
}

func warnStale(fetchedAt time.Time) {
	color.Yellow("Server unreachable; showing cached feed from %s.",
		fetchedAt.Format("2006-01-02 15:04"))
}
