// Command sqlnexusd is the process entrypoint: it loads configuration,
// starts the rotating file logger, builds the appctx.Context, and re-reads
// configuration on SIGHUP so an operator can rotate credentials or tune
// retry/timeout knobs without a restart. There is no CLI-flag library here —
// flag.String names only the config storage directory, a JSON-file-with-no-
// flag-surface convention rather than cobra/viper.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"sqlnexus/appctx"
	"sqlnexus/config"
	"sqlnexus/logger"
)

func main() {
	storageDir := flag.String("config-dir", "", "directory holding config.json (defaults to ~/.sqlnexus)")
	flag.Parse()

	log := logger.NewLogger()

	cfgService := config.NewService(log.Log)
	if *storageDir != "" {
		cfgService.SetStorageDir(*storageDir)
	}

	cfg, err := cfgService.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "sqlnexusd: load config: %v\n", err)
		os.Exit(1)
	}

	logDir := cfg.LogDir
	if logDir == "" {
		dir, err := cfgService.StorageDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "sqlnexusd: resolve log dir: %v\n", err)
			os.Exit(1)
		}
		logDir = dir
	}
	if cfg.DetailedLog {
		if err := log.Init(logDir); err != nil {
			fmt.Fprintf(os.Stderr, "sqlnexusd: init logger: %v\n", err)
			os.Exit(1)
		}
		defer log.Close()
	} else {
		log.SetLogDir(logDir)
	}

	ctx := context.Background()
	app, err := appctx.New(ctx, cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sqlnexusd: build app context: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	cfgService.OnChange(func(newCfg config.Config) {
		if err := app.Reload(ctx, newCfg); err != nil {
			log.Logf("sqlnexusd: config reload failed: %v", err)
			return
		}
		log.Log("sqlnexusd: config reload applied")
	})

	log.Log("sqlnexusd: started")
	waitForReloadOrShutdown(cfgService, log)
	log.Log("sqlnexusd: shutting down")
}

// waitForReloadOrShutdown blocks handling SIGHUP (re-read config.json and
// notify every OnChange subscriber, i.e. appctx.Context.Reload) until
// SIGINT/SIGTERM requests shutdown.
func waitForReloadOrShutdown(cfgService *config.Service, log *logger.Logger) {
	reload := make(chan os.Signal, 1)
	signal.Notify(reload, syscall.SIGHUP)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-reload:
			cfg, err := cfgService.Load()
			if err != nil {
				log.Logf("sqlnexusd: reload: could not read config.json: %v", err)
				continue
			}
			if err := cfgService.Save(cfg); err != nil {
				log.Logf("sqlnexusd: reload: could not notify subscribers: %v", err)
			}
		case <-shutdown:
			return
		}
	}
}
