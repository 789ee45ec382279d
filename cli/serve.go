package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatdash/auth"
	"chatdash/countries"
	"chatdash/handlers/account"
	"chatdash/handlers/api/dialcodes"
	"chatdash/handlers/api/rooms"
	"chatdash/handlers/websocket"
	authMiddleware "chatdash/middleware"
	"chatdash/session"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	socketio "github.com/zishang520/socket.io/v2/socket"
)

func newServeCommand(opts *options) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and Socket.IO server.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if listen != "" {
				opts.cfg.ListenAddr = listen
			}
			return runServe(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "The address to listen on. Overrides LISTEN_ADDR.")
	return cmd
}

func runServe(ctx context.Context, opts *options) error {
	a, err := openApp(ctx, opts.cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	secret := opts.cfg.Auth.JWTSecret
	if secret == "" {
		secret = uuid.NewString()
		logrus.Warn("JWT_SECRET is not set, using a random secret; tokens will not survive a restart")
	}
	tokens, err := auth.NewTokens(secret, opts.cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}

	r := setupRouter(a, tokens, countries.NewClient(opts.cfg.CountriesURL))
	ioo := websocket.SetupSocketIO(websocket.Deps{
		Tokens: tokens,
		Rooms:  a.rooms,
		Open: func(roomID string) *session.Session {
			return session.New(roomID, a.sessionOptions())
		},
	})
	r.Mount("/socket.io/", ioo.ServeHandler(nil))

	srv := &http.Server{Addr: opts.cfg.ListenAddr, Handler: r}
	logrus.WithField("addr", opts.cfg.ListenAddr).Info("starting server")
	errC := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errC <- err
		}
	}()

	logrus.Debug("Server is running in the background")
	return waitForShutdown(srv, ioo, errC)
}

func setupRouter(a *app, tokens *auth.Tokens, lister dialcodes.Lister) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Length", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", account.HandleRegister(a.directory))
		r.Post("/signin", account.HandleSignIn(a.directory, tokens))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/countries", dialcodes.HandleListCountries(lister))

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.AuthJWT(tokens))
			r.Route("/chatrooms", func(r chi.Router) {
				r.Get("/", rooms.HandleListChatrooms(a.rooms))
				r.Post("/", rooms.HandleCreateChatroom(a.rooms))
				r.Route("/{id}", func(r chi.Router) {
					r.Patch("/", rooms.HandleUpdateChatroom(a.rooms))
					r.Delete("/", rooms.HandleDeleteChatroom(a.rooms))
				})
			})
		})
	})

	return r
}

func waitForShutdown(srv *http.Server, ioo *socketio.Server, errC <-chan error) error {
	signalC := make(chan os.Signal, 1)
	signal.Notify(signalC, os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer signal.Stop(signalC)

	var serveErr error
	select {
	case s := <-signalC:
		logrus.WithField("signal", s.String()).Info("Shutting down...")
	case serveErr = <-errC:
		logrus.WithError(serveErr).Error("Server stopped")
	}

	ioo.Close(nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logrus.WithError(err).Warn("Graceful shutdown failed")
	}
	return serveErr
}
