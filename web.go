/*
Copyright © 2025 WildSphee <wildsphee@proton.me>
*/

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/redis/go-redis/v9"
)

const (
	logDate string        = `2006-01-02T15:04:05.000-07:00`
	timeout time.Duration = 10 * time.Second
)

func securityHeaders(cfg *Config, w http.ResponseWriter) {
	w.Header().Set("Cross-Origin-Resource-Policy", "same-site")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("X-Content-Type-Options", "nosniff")

	if cfg.scheme() == "https" {
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
	}
}

func realIP(r *http.Request) string {
	host, port, _ := net.SplitHostPort(r.RemoteAddr)
	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		if net.ParseIP(ip) != nil {
			host = ip
		}
	} else if ip := r.Header.Get("X-Real-IP"); ip != "" {
		if net.ParseIP(ip) != nil {
			host = ip
		}
	}
	if net.ParseIP(host) != nil && strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port != "" {
		return host + ":" + port
	}
	return host
}

// countryFromRequest resolves the caller's country tag from the
// fronting proxy. "DEV" for loopback, "IDK" when nothing is known.
func countryFromRequest(r *http.Request) string {
	if c := r.Header.Get("CF-IPCountry"); c != "" && c != "XX" {
		return strings.ToUpper(c)
	}
	if c := r.Header.Get("X-Country"); c != "" {
		return strings.ToUpper(c)
	}

	host, _, _ := net.SplitHostPort(r.RemoteAddr)
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return "DEV"
	}
	return "IDK"
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(v)
}

// serveMe is the profile read-through: fetch-or-create and return.
func serveMe(cfg *Config, auth *Auth, store PlayerStore) httprouter.Handle {
	return auth.Protected(func(w http.ResponseWriter, r *http.Request, _ httprouter.Params, user AuthedUser) {
		securityHeaders(cfg, w)

		profile, err := store.GetOrCreate(r.Context(), user.UID, user.Name, countryFromRequest(r))
		if err != nil {
			http.Error(w, "profile unavailable", http.StatusBadGateway)
			return
		}
		writeJSON(w, profile)
	})
}

// serveType rotates the caller's cosmetic type to a different random
// one. The change takes effect in live play on their next connection.
func serveType(cfg *Config, auth *Auth, store PlayerStore) httprouter.Handle {
	return auth.Protected(func(w http.ResponseWriter, r *http.Request, _ httprouter.Params, user AuthedUser) {
		securityHeaders(cfg, w)

		profile, err := store.GetOrCreate(r.Context(), user.UID, user.Name, countryFromRequest(r))
		if err != nil {
			http.Error(w, "profile unavailable", http.StatusBadGateway)
			return
		}

		choices := make([]string, 0, len(playerKinds)-1)
		for _, k := range playerKinds {
			if k != profile.Kind {
				choices = append(choices, k)
			}
		}
		kind := choices[rand.Intn(len(choices))]

		if err := store.Update(r.Context(), user.UID, map[string]any{"type": kind}); err != nil {
			http.Error(w, "update failed", http.StatusBadGateway)
			return
		}
		writeJSON(w, map[string]string{"message": kind})
	})
}

func serveLeaderboard(cfg *Config, auth *Auth, board *Leaderboard) httprouter.Handle {
	return auth.Protected(func(w http.ResponseWriter, r *http.Request, _ httprouter.Params, user AuthedUser) {
		securityHeaders(cfg, w)
		writeJSON(w, board.Response(user.UID, countryFromRequest(r)))
	})
}

func serveInGameCount(cfg *Config, auth *Auth, players *PlayerRegistry) httprouter.Handle {
	return auth.Protected(func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params, _ AuthedUser) {
		securityHeaders(cfg, w)
		writeJSON(w, map[string]int{"total": players.Count()})
	})
}

func serveHealthCheck(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(cfg, w)

		_, _ = w.Write([]byte("Ok\n"))
	}
}

func serveVersion(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(cfg, w)
		w.WriteHeader(http.StatusOK)

		_, _ = w.Write([]byte("trividuel v" + releaseVersion + "\n"))

		logf(cfg, "SERVE: Version page to %s in %s",
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

func newPlayerStore(ctx context.Context, cfg *Config) (PlayerStore, error) {
	if cfg.dev {
		logf(cfg, "STORE: using in-memory player store")
		return newMemoryStore(), nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.redisAddress,
		Password: cfg.redisPassword,
		DB:       cfg.redisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis at %s: %w", cfg.redisAddress, err)
	}

	logf(cfg, "STORE: using redis player store at %s", cfg.redisAddress)
	return NewRedisPlayerStore(rdb), nil
}

func ServePage(ctx context.Context, cfg *Config) error {
	var err error

	timeZone := os.Getenv("TZ")
	if timeZone != "" {
		time.Local, err = time.LoadLocation(timeZone)
		if err != nil {
			return err
		}
	}

	logf(cfg, "START: trividuel v%s", releaseVersion)

	store, err := newPlayerStore(ctx, cfg)
	if err != nil {
		return err
	}

	bank := &QuestionBank{}
	loaded, err := bank.LoadQuestionsCSV(cfg.questionsPath)
	if err != nil {
		return err
	}
	logf(cfg, "START: loaded %d questions from %s", loaded, cfg.questionsPath)

	auth, err := NewAuth(cfg.dataDir, cfg.tokenTTL)
	if err != nil {
		return err
	}

	players := NewPlayerRegistry()
	sessions := NewSessionRegistry()
	queue := NewMatchQueue(cfg.recentOpponents, cfg.fallbackDepth)
	board := NewLeaderboard(cfg, store)
	matchmaker := NewMatchmaker(cfg, cfg.ratingPolicy(), store, bank, queue, players, sessions)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go matchmaker.Run(runCtx)
	go matchmaker.Sweep(runCtx)
	go board.Run(runCtx)

	mux := httprouter.New()

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.bind, strconv.Itoa(cfg.port)),
		Handler:           mux,
		IdleTimeout:       10 * time.Minute,
		ReadTimeout:       timeout,
		ReadHeaderTimeout: timeout,
	}

	mux.PanicHandler = func(w http.ResponseWriter, r *http.Request, i any) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(cfg, w)
		w.WriteHeader(http.StatusInternalServerError)

		io.WriteString(w, "An error has occurred. Please try again.\n")
	}

	cfg.prefix = strings.TrimSuffix(cfg.prefix, "/")

	mux.POST(cfg.prefix+"/register", auth.HandleRegister)
	mux.POST(cfg.prefix+"/login", auth.HandleLogin)

	mux.GET(cfg.prefix+"/ws", serveWS(cfg, auth, store, players, sessions, queue))

	mux.GET(cfg.prefix+"/me", serveMe(cfg, auth, store))
	mux.POST(cfg.prefix+"/type", serveType(cfg, auth, store))
	mux.GET(cfg.prefix+"/leaderboard", serveLeaderboard(cfg, auth, board))
	mux.GET(cfg.prefix+"/ingamecount", serveInGameCount(cfg, auth, players))

	mux.GET(cfg.prefix+"/healthz", serveHealthCheck(cfg))
	mux.GET(cfg.prefix+"/version", serveVersion(cfg))

	if cfg.profile {
		registerProfileHandlers(cfg, mux)
	}

	go func() {
		var err error
		logf(cfg, "SERVE: Listening on %s://%s%s/", cfg.scheme(), srv.Addr, cfg.prefix)
		if cfg.tlsKey != "" && cfg.tlsCert != "" {
			err = srv.ListenAndServeTLS(cfg.tlsCert, cfg.tlsKey)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Printf("%s | ERROR: %v\n", time.Now().Format(logDate), err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)

	return nil
}
