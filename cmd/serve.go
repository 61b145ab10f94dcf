package main

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/desertthunder/spm/internal/formatter"
	"github.com/desertthunder/spm/internal/models"
	"github.com/desertthunder/spm/internal/repositories"
	"github.com/desertthunder/spm/internal/server"
	"github.com/desertthunder/spm/internal/services"
	"github.com/desertthunder/spm/internal/shared"
	"github.com/urfave/cli/v3"
)

// Serve runs the HTTP API until the process is interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	srv, closeDB, err := r.newServer()
	if err != nil {
		return err
	}
	defer closeDB()

	addr := cmd.String("addr")
	if addr == "" {
		addr = net.JoinHostPort(r.config.Server.Host, strconv.Itoa(r.config.Server.Port))
	}

	r.writePlain("→ Serving on http://%s (Ctrl+C to stop)\n", addr)
	return srv.ListenAndServe(ctx, addr)
}

// newServer wires the API server from the config. Each request builds its own Web API client
// from the token it carries.
func (r *Runner) newServer() (*server.Server, func(), error) {
	auth, err := r.authService()
	if err != nil {
		return nil, nil, err
	}

	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	opts := r.clientOptions()

	srv, err := server.New(server.Options{
		Auth:   auth,
		Engine: r.engine,
		Client: func(ctx context.Context, accessToken string) services.PlaylistService {
			return services.NewSpotifyClientFromToken(ctx, accessToken, opts...)
		},
		Runs:         repositories.NewRunRepository(db),
		Logger:       r.logger,
		CookieSecure: r.config.Server.CookieSecure,
	})
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return srv, func() { db.Close() }, nil
}

// History lists recorded export and import runs, newest first.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	useJSON := cmd.Bool("json")
	pretty := cmd.Bool("pretty")

	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	runs, err := repositories.NewRunRepository(db).List(cmd.String("user"), cmd.Int("limit"))
	if err != nil {
		return err
	}

	if useJSON {
		return r.writeJSON(runs, pretty)
	}

	list := make([]models.Run, 0, len(runs))
	for _, run := range runs {
		list = append(list, *run)
	}
	return r.writePlain("%s", formatter.RenderRuns(list))
}
