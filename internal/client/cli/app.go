package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/dmitrijs2005/credkeeper/internal/client/client"
	"github.com/dmitrijs2005/credkeeper/internal/client/config"
	"github.com/dmitrijs2005/credkeeper/internal/client/session"
)

type App struct {
	config   *config.Config
	api      client.Client
	sessions session.Store
	reader   *bufio.Reader
	out      io.Writer

	email  string
	userID string
}

func NewApp(c *config.Config) (*App, error) {

	ctx := context.Background()

	db, err := session.InitDatabase(ctx, c.SessionDBPath)
	if err != nil {
		log.Printf("error initializing session database: %s", err.Error())
		return nil, err
	}

	api := client.NewHTTPClient(c.ServerURL, c.RequestTimeout)
	app := &App{
		config:   c,
		api:      api,
		sessions: session.NewSQLiteStore(db),
		reader:   bufio.NewReader(os.Stdin),
		out:      os.Stdout,
	}
	api.OnTokens = app.persist

	return app, nil
}

// restore loads a saved session, if any, into the API client.
func (a *App) restore(ctx context.Context) {
	s, err := a.sessions.Load(ctx)
	if err != nil {
		if !errors.Is(err, session.ErrNoSession) {
			log.Printf("error loading session: %v", err)
		}
		return
	}
	a.email, a.userID = s.Email, s.UserID
	a.api.SetTokens(client.Tokens{
		AccessToken:          s.AccessToken,
		AccessTokenExpiresAt: s.AccessExpiresAt,
		RefreshToken:         s.RefreshToken,
	})
	fmt.Fprintf(a.out, "Resumed session of %s\n", s.Email)
}

// persist mirrors the client's tokens into the session database. Empty
// tokens end the session.
func (a *App) persist(t client.Tokens) {
	ctx := context.Background()
	if t.RefreshToken == "" {
		a.email, a.userID = "", ""
		if err := a.sessions.Clear(ctx); err != nil {
			log.Printf("error clearing session: %v", err)
		}
		return
	}
	err := a.sessions.Save(ctx, &session.Session{
		Email:           a.email,
		UserID:          a.userID,
		AccessToken:     t.AccessToken,
		AccessExpiresAt: t.AccessTokenExpiresAt,
		RefreshToken:    t.RefreshToken,
	})
	if err != nil {
		log.Printf("error saving session: %v", err)
	}
}

func (a *App) isLoggedIn() bool {
	return a.api.Tokens().RefreshToken != ""
}

func (a *App) status() string {
	if a.isLoggedIn() && a.email != "" {
		return a.email
	}
	return "anonymous"
}

func (a *App) Run(ctx context.Context) {
	fmt.Fprintln(a.out, "Welcome to authctl (type 'help' for commands)")
	a.restore(ctx)

	runREPL(ctx, a, a.status, a.reader)
}
