// Command czn-server runs the calculator's HTTP API without the desktop shell.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"
	"go.uber.org/zap"

	"github.com/MJE43/czn-savedata-calc/internal/api"
	"github.com/MJE43/czn-savedata-calc/internal/config"
	"github.com/MJE43/czn-savedata-calc/internal/livehttp"
	"github.com/MJE43/czn-savedata-calc/internal/logging"
	"github.com/MJE43/czn-savedata-calc/internal/secrets"
	"github.com/MJE43/czn-savedata-calc/internal/session"
)

func main() {
	var setToken string
	var deleteToken bool
	flag.StringVar(&setToken, "set-token", "", "store the API token in the OS keyring and exit")
	flag.BoolVar(&deleteToken, "delete-token", false, "remove the stored API token and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Must("error", false).Fatal("load config", zap.Error(err))
	}

	log := logging.Must(cfg.LogLevel, cfg.LogDevelopment)
	defer log.Sync()

	rules, err := cfg.Rules()
	if err != nil {
		log.Fatal("load rule set", zap.Error(err))
	}
	sess := session.New(cfg.RunConfig(), rules, log.Named("session"))

	store := secrets.NewStore(cfg.KeyringService, cfg.SecretsFallback)
	switch {
	case setToken != "":
		if err := store.SetAPIToken(setToken); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("API token stored")
		return
	case deleteToken:
		if err := store.DeleteAPIToken(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("API token removed")
		return
	}

	token, err := cfg.ResolveAPIToken(store)
	if err != nil {
		log.Warn("api token unavailable; mutating routes are unauthenticated", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mod := livehttp.NewModule(cfg.HTTPAddr, sess, log, token)
	if err := mod.Startup(ctx); err != nil {
		log.Fatal("start http server", zap.String("addr", cfg.HTTPAddr), zap.Error(err))
	}

	info := mod.Info()
	log.Info("czn-server ready",
		zap.String("url", info.URL),
		zap.Bool("token_enabled", info.TokenEnabled),
		zap.String("rule_set", rules.Name()),
		zap.String("engine_version", api.EngineVersion),
	)

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := mod.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", zap.Error(err))
	}
}
