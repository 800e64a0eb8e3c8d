package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/tkasperczyk/chatvault/pkg/importer"
	"github.com/tkasperczyk/chatvault/pkg/util"
)

// dryRunNamePreviewRunes bounds how much of a long conversation folder/thread
// name the dry-run log line shows.
const dryRunNamePreviewRunes = 60

var (
	dbPath  = flag.String("db", "messenger.db", "Path to output SQLite database")
	verbose = flag.Bool("v", false, "Verbose output")
	dryRun  = flag.Bool("dry-run", false, "List conversations that would be imported, without writing to the database")
	dropDB  = flag.Bool("drop-db", false, "Remove the database file before importing")
)

func main() {
	flag.Parse()
	paths := flag.Args()

	logLevel := zerolog.InfoLevel
	if *verbose {
		logLevel = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger().Level(logLevel)

	if len(paths) == 0 {
		log.Fatal().Msg("Usage: import-export [-db messenger.db] [-dry-run] <export.zip|export.json> ...")
	}

	if *dryRun {
		runDryRun(log, paths)
		return
	}

	if err := prepareDB(*dbPath, *dropDB); err != nil {
		log.Fatal().Err(err).Str("db", *dbPath).Msg("Failed to prepare database path")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	status, err := importer.Import(ctx, log, paths, *dbPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Import failed")
	}

	switch status {
	case importer.StatusOK:
		log.Info().Str("db", *dbPath).Msg("Import complete")
	case importer.StatusCancelled:
		log.Warn().Msg("Import cancelled")
		os.Exit(130)
	default:
		log.Fatal().Str("status", status.String()).Msg("Import reported an error status")
	}
}

// prepareDB removes the database file at path when dropDB is set. A missing
// file is not an error: there is nothing to drop.
func prepareDB(path string, dropDB bool) error {
	if !dropDB {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func runDryRun(log zerolog.Logger, paths []string) {
	summaries, err := importer.DiscoverConversations(paths)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to discover conversations")
	}
	for _, s := range summaries {
		log.Info().
			Str("format", s.Format.String()).
			Str("conversation", util.Truncate(s.FolderName, dryRunNamePreviewRunes)).
			Int("participants", s.ParticipantCount).
			Int("messages", s.MessageCount).
			Str("source", s.SourcePath).
			Msg("would import")
	}
	log.Info().Int("conversations", len(summaries)).Msg("dry run complete")
}
