// Command standalone runs the indexer against an embedded SQLite database:
// one follower, one wallet indexer, one GraphQL façade, no network-shared
// storage.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"midnight-indexer/internal/chain"
	"midnight-indexer/internal/config"
	"midnight-indexer/internal/domain"
	"midnight-indexer/internal/graphqlapi"
	"midnight-indexer/internal/query"
	"midnight-indexer/internal/storage/sqlite"
	"midnight-indexer/internal/subscription"
	"midnight-indexer/internal/wallet"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "standalone",
		Short: "run the indexer against an embedded SQLite database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serve() error {
	log := logrus.NewEntry(logrus.StandardLogger())

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("load config")
	}
	if level, parseErr := logrus.ParseLevel(cfg.LogLevel); parseErr == nil {
		logrus.SetLevel(level)
	}

	store, err := sqlite.Open(cfg.SqlitePath)
	if err != nil {
		log.WithError(err).Fatal("open sqlite store")
	}
	defer store.Close()

	masterKey, err := cfg.WalletMasterKey()
	if err != nil {
		log.WithError(err).Fatal("load wallet master key")
	}
	sessions, err := wallet.NewSessionManager(store, masterKey)
	if err != nil {
		log.WithError(err).Fatal("init session manager")
	}

	scheduler := wallet.NewScheduler(4, 64)
	defer scheduler.Close()
	scanner := wallet.NewScanner(wallet.DecryptorFunc(unimplementedDecryptor))
	indexer := wallet.NewIndexer(store, sessions, scheduler, scanner, log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go indexer.Run(ctx, sessions.ActiveSessionIds)

	follower := chain.NewFollower(unconnectedNodeClient{}, chain.DecoderFunc(unimplementedDecoder), log)
	latest, err := store.GetLatestBlock(ctx)
	if err != nil {
		log.WithError(err).Fatal("read latest block")
	}
	var fromHeight uint32
	if latest != nil {
		fromHeight = latest.Height + 1
	}
	go func() {
		if err := follower.Run(ctx, fromHeight); err != nil && ctx.Err() == nil {
			log.WithError(err).Error("chain follower stopped")
		}
	}()
	go func() {
		bo := backoff.NewExponentialBackOff()
		bo.MaxInterval = 30 * time.Second
		bo.MaxElapsedTime = 0
		for blk := range follower.Blocks {
			for {
				err := store.AppendBlock(ctx, blk)
				if err == nil {
					bo.Reset()
					break
				}
				if domain.IsKind(err, domain.KindConstraintViolated) {
					log.WithError(err).WithField("height", blk.Height).Error("block append violated a chain invariant, pausing ingestion")
					follower.Fail()
					return
				}
				wait := bo.NextBackOff()
				log.WithError(err).WithFields(logrus.Fields{"height": blk.Height, "wait": wait}).Warn("retrying block append")
				select {
				case <-ctx.Done():
					return
				case <-time.After(wait):
				}
			}
		}
	}()

	queries := query.NewEngine(store)
	subs := subscription.NewEngine(store, sessions, indexer)
	root := graphqlapi.NewRoot(queries, subs, sessions)
	schema, err := graphqlapi.NewSchema(root)
	if err != nil {
		log.WithError(err).Fatal("parse graphql schema")
	}

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: graphqlapi.NewHandler(schema, follower.Healthy)}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.WithField("addr", cfg.HTTPAddr).Info("standalone indexer listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Fatal("http server")
	}
	return nil
}
