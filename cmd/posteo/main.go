// ABOUTME: Command-line client for the Posteo discussion board
// ABOUTME: Wires session, API client, policy-gated services, and snapshot cache

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/posteo/posteo-client/internal/api"
	"github.com/posteo/posteo-client/internal/auth"
	"github.com/posteo/posteo-client/internal/cache"
	"github.com/posteo/posteo-client/internal/config"
	"github.com/posteo/posteo-client/internal/forum"
)

var version = "dev"

const banner = `
                     _
 _ __   ___  ___ ___| |_ ___  ___
| '_ \ / _ \/ __|  _  _ \/ _ \/ _ \
| |_) | (_) \__ \ |_|  __/ (_) |
| .__/ \___/|___/\__|\___|\___/
|_|
`

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load(config.DefaultPath())
	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}

	app, err := newApp(cfg)
	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
	defer app.close()

	cmd := os.Args[1]
	args := os.Args[2:]
	ctx := context.Background()

	switch cmd {
	case "login":
		err = app.cmdLogin(ctx, args)
	case "register":
		err = app.cmdRegister(ctx, args)
	case "logout":
		err = app.cmdLogout()
	case "me":
		err = app.cmdMe(ctx)
	case "stats":
		err = app.cmdStats(ctx, args)
	case "posts":
		err = app.cmdPosts(ctx, args)
	case "comments":
		err = app.cmdComments(ctx, args)
	case "categories":
		err = app.cmdCategories(ctx, args)
	case "users":
		err = app.cmdUsers(ctx, args)
	case "version":
		fmt.Println("posteo", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		// A rejected credential means the stored session is dead; drop it
		// so the next command starts clean.
		if errors.Is(err, api.ErrUnauthorized) {
			app.session.Logout()
			color.Red("Error: session rejected by the server, logged out\n")
			os.Exit(1)
		}
		if errors.Is(err, forum.ErrConfirmDeclined) {
			fmt.Println("Cancelled.")
			return
		}
		if errors.Is(err, api.ErrRateLimited) {
			color.Red("Error: rate limited by the server, try again later\n")
			os.Exit(1)
		}
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

// app bundles the wired-up client stack for command handlers.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	client  *api.Client
	session *auth.Session
	cache   *cache.Store
}

// sessionTokens breaks the session/client construction cycle: the client
// needs a token source before the session exists.
type sessionTokens struct {
	s *auth.Session
}

func (st *sessionTokens) Token() string {
	if st.s == nil {
		return ""
	}
	return st.s.Token()
}

func newApp(cfg *config.Config) (*app, error) {
	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	tokens := &sessionTokens{}
	client := api.NewClient(cfg.Server.URL, tokens, logger)
	session := auth.NewSession(client, cfg.Auth.TokenPath, logger)
	tokens.s = session
	session.Restore()

	a := &app{
		cfg:     cfg,
		logger:  logger,
		client:  client,
		session: session,
	}

	if cfg.Cache.Enabled {
		store, err := cache.Open(cfg.Cache.Path, logger)
		if err != nil {
			// The cache is an offline convenience, not a dependency.
			logger.Warn("snapshot cache unavailable", "error", err)
		} else {
			a.cache = store
		}
	}

	return a, nil
}

func (a *app) close() {
	if a.cache != nil {
		a.cache.Close()
	}
}

// confirmer builds the destructive-action gate: an interactive y/N prompt,
// or auto-accept when --yes was given.
func (a *app) confirmer(assumeYes bool) forum.Confirmer {
	return forum.ConfirmFunc(func(c forum.Consequence) bool {
		if assumeYes {
			return true
		}
		if c.Irreversible {
			color.Yellow("This action cannot be undone.")
		}
		fmt.Printf("%s [y/N]: ", c.Prompt)
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil {
			return false
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes"
	})
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()
	fmt.Println("Usage: posteo <command> [args]")
	fmt.Println()
	yellow.Println("Session:")
	fmt.Println("  login --email <e> [--password <p>]      Sign in and store the token")
	fmt.Println("  register --username <u> --email <e>     Create an account (implies login)")
	fmt.Println("  logout                                  Drop the stored token")
	fmt.Println("  me                                      Show your identity and profile")
	fmt.Println()
	yellow.Println("Content:")
	fmt.Println("  posts list [--output yaml]              List the post feed")
	fmt.Println("  posts create --title --content --categories")
	fmt.Println("  posts edit <id> [--title] [--content]   Edit a post you own")
	fmt.Println("  posts delete <id> [--yes]               Delete a post (permanent)")
	fmt.Println("  posts export [--out posts.html]         Render the feed to HTML")
	fmt.Println("  comments <post-id> list                 List a post's comments")
	fmt.Println("  comments <post-id> add <text>           Comment on a post")
	fmt.Println("  comments <post-id> edit <id> <text>     Edit your comment")
	fmt.Println("  comments <post-id> delete <id> [--yes]  Delete a comment (permanent)")
	fmt.Println()
	yellow.Println("Moderation & admin:")
	fmt.Println("  categories list|create|rename|delete    Manage categories (delete hides)")
	fmt.Println("  users list|show|role|status|deactivate  Administer accounts")
	fmt.Println("  stats                                   Show forum statistics")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  POSTEO_CONFIG    Config file (default ~/.config/posteo/config.toml)")
}

// cmdLogout drops the session; running it while logged out is fine.
func (a *app) cmdLogout() error {
	a.session.Logout()
	color.Green("Logged out.")
	return nil
}

// cmdMe prints the decoded identity and, when the server is reachable, the
// full profile record.
func (a *app) cmdMe(ctx context.Context) error {
	id := a.session.Identity()
	if id == nil {
		fmt.Println("Not logged in.")
		return nil
	}

	fmt.Printf("Subject ID: %d\n", id.SubjectID)
	fmt.Printf("Role:       %s\n", id.Role)
	if !id.ExpiresAt.IsZero() {
		fmt.Printf("Expires:    %s\n", id.ExpiresAt.Format("2006-01-02 15:04:05"))
	}

	user, err := a.client.GetUser(ctx, id.SubjectID)
	if err != nil {
		return fmt.Errorf("loading profile: %w", err)
	}
	fmt.Printf("Username:   %s\n", user.Username)
	fmt.Printf("Email:      %s\n", user.Email)
	status := "active"
	if !user.IsActive {
		status = "inactive"
	}
	fmt.Printf("Status:     %s\n", status)
	return nil
}
