// Command server runs the zkauth authentication service: the three
// protocol HTTP endpoints (register/challenge/verify), a health
// check, and an admin audit live-tail.
package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caddyserver/certmagic"

	"github.com/zkid-sh/zkauth/internal/audit"
	"github.com/zkid-sh/zkauth/internal/challengestore"
	"github.com/zkid-sh/zkauth/internal/config"
	"github.com/zkid-sh/zkauth/internal/database"
	"github.com/zkid-sh/zkauth/internal/debug"
	"github.com/zkid-sh/zkauth/internal/facade"
	"github.com/zkid-sh/zkauth/internal/listener"
	"github.com/zkid-sh/zkauth/internal/middleware"
	"github.com/zkid-sh/zkauth/internal/token"
	"github.com/zkid-sh/zkauth/internal/userdirectory"
	"github.com/zkid-sh/zkauth/internal/worker"
	"github.com/zkid-sh/zkauth/internal/zkp"
)

func main() {
	flags := config.ParseFlags()
	cfg, err := config.Load(flags)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	dbPath := database.ResolvePath(cfg.Database.Path)
	db, err := database.Open(dbPath, config.Migrate)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	pool := worker.NewPool(worker.PoolConfig{
		Workers:       cfg.Worker.Workers,
		QueueCapacity: cfg.Worker.QueueCapacity,
	})
	defer pool.Close()

	store := challengestore.New(db)
	defer store.Close()

	engine := zkp.Engine{
		Group:    zkp.Standard,
		Random:   zkp.NewRandomSource(zkp.Standard),
		Store:    store,
		Exponent: facade.ExponentFromPool(pool),
	}

	directory := userdirectory.New(db, zkp.Standard)
	issuer, err := token.New(db, cfg.SessionTTL())
	if err != nil {
		log.Fatalf("token: %v", err)
	}
	auditBus := audit.New(db)

	authFacade := facade.New(engine, directory, issuer, auditBus)
	authHandler := facade.NewHandler(authFacade)

	rateLimiter := middleware.NewRateLimiter(map[string]middleware.RouteLimit{
		"register":  middleware.DefaultRegisterLimit,
		"challenge": middleware.DefaultChallengeLimit,
		"verify":    middleware.DefaultVerifyLimit,
	}, middleware.DefaultFallbackLimit)
	connLimiter := middleware.NewConnectionLimiter(middleware.DefaultMaxConnectionsPerIP)

	mux := http.NewServeMux()
	mux.Handle("POST /api/v1/auth/register", rateLimiter.Middleware("register")(http.HandlerFunc(authHandler.Register)))
	mux.Handle("POST /api/v1/auth/challenge", rateLimiter.Middleware("challenge")(http.HandlerFunc(authHandler.Challenge)))
	mux.Handle("POST /api/v1/auth/verify", rateLimiter.Middleware("verify")(http.HandlerFunc(authHandler.Verify)))
	mux.HandleFunc("GET /healthz", healthzHandler(db, pool))

	if cfg.Admin.Token != "" {
		mux.Handle("GET /api/v1/admin/audit/stream", middleware.StaticAdminAuth(cfg.Admin.Token)(auditBus.Hub()))
	} else {
		debug.Warn("admin", "ZKAUTH_ADMIN_TOKEN not set; audit stream endpoint disabled")
	}

	handler := middleware.RequestTracing(
		middleware.AccessLog(
			middleware.BodySizeLimit(middleware.MaxBodySize)(
				middleware.SecurityHeaders(
					connLimiter.Middleware(
						middleware.Recover(mux),
					),
				),
			),
		),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go runServer(cfg, srv)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("forced shutdown: %v", err)
	}
}

// runServer starts srv, using tcplisten-tuned listeners and, if
// configured, CertMagic automatic HTTPS. It blocks until the server
// stops, logging a fatal error only on an unexpected failure — a
// clean Shutdown from main's signal handler surfaces as
// http.ErrServerClosed and is not an error.
func runServer(cfg *config.Config, srv *http.Server) {
	if cfg.HTTPS.Enabled {
		log.Printf("https enabled via certmagic for %s", cfg.HTTPS.Domain)
		certmagic.DefaultACME.Email = cfg.HTTPS.Email
		if cfg.HTTPS.Staging {
			certmagic.DefaultACME.CA = certmagic.LetsEncryptStagingCA
		}

		tlsConfig, err := certmagic.TLS([]string{cfg.HTTPS.Domain})
		if err != nil {
			log.Fatalf("certmagic: %v", err)
		}
		tlsConfig.NextProtos = append([]string{"h2", "http/1.1"}, tlsConfig.NextProtos...)
		srv.TLSConfig = tlsConfig

		ln, err := listenWithLimits(srv.Addr)
		if err != nil {
			log.Fatalf("listen: %v", err)
		}
		tlsLn := tls.NewListener(ln, srv.TLSConfig)
		if err := srv.Serve(tlsLn); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
		return
	}

	ln, err := listenWithLimits(srv.Addr)
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	log.Printf("listening on %s", srv.Addr)
	if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server: %v", err)
	}
}

// listenWithLimits opens a tcplisten-tuned listener and wraps it with a
// per-IP/total connection cap, rejecting excess connections at Accept
// time rather than letting them pile up in net/http's goroutine pool.
func listenWithLimits(addr string) (net.Listener, error) {
	ln, err := listener.ListenTCP("tcp", addr)
	if err != nil {
		return nil, err
	}
	return listener.NewConnLimiter(ln, listener.ConnLimiterConfig{
		OnReject: listener.LoggingOnReject,
	}), nil
}

// healthzHandler reports database reachability and worker pool
// occupancy so an operator can see verify traffic backing up before
// it starts timing out.
func healthzHandler(db *sql.DB, pool *worker.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		dbOK := true
		if err := db.PingContext(ctx); err != nil {
			dbOK = false
			status = http.StatusServiceUnavailable
			debug.Warn("healthz", "database ping failed: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"database": dbOK,
			"worker":   pool.Stats(),
		})
	}
}
