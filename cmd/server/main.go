package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/redis/go-redis/v9"

	"github.com/carelink/authgate/auth"
	"github.com/carelink/authgate/identity"
	"github.com/carelink/authgate/internal/config"
	"github.com/carelink/authgate/server"
	"github.com/carelink/authgate/server/oauthflow"
	"github.com/carelink/authgate/session/redisstore"
	"github.com/carelink/authgate/token"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Fatalf("Error running server: %s\n", err)
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Printf("Server stopped\n")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	displayAppname(c.GetAppName())

	redisClient := redis.NewClient(&redis.Options{
		Addr:     c.GetRedisAddr(),
		Password: c.GetRedisPassword(),
	})
	defer redisClient.Close()

	store := redisstore.New(redisClient, redisstore.WithSessionLifetime(c.GetSessionLifetime()))
	backend := identity.NewHTTPClient(c.GetIdentityBaseURL())

	tokens := token.NewManager(store, backend,
		token.WithRefreshMargin(c.GetRefreshMargin()),
		token.WithCheckInterval(c.GetRefreshCheckInterval()),
	)
	tokens.Start(context.Background())
	defer tokens.Stop()

	authService, err := auth.NewService(store, backend, tokens)
	if err != nil {
		return fmt.Errorf("auth.NewService %w", err)
	}

	providers := identity.NewProviders(c.GetOAuthProviders())

	handler, err := server.New(c, store, authService, tokens, providers, oauthflow.NewInMemoryRepo())
	if err != nil {
		return fmt.Errorf("server.New %w", err)
	}

	httpServer := &http.Server{Addr: c.GetPort(), Handler: handler}
	go listenAndServe(httpServer)
	waitForStopSignal()
	returnError = shutdown(httpServer)
	return returnError
}

func listenAndServe(server *http.Server) error {
	log.Printf("Server listening on %s\n", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
