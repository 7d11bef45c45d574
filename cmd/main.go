package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/money"

	httpapi "github.com/tinoosan/bankrecon/internal/httpapi/v1"
	"github.com/tinoosan/bankrecon/internal/recon"
	"github.com/tinoosan/bankrecon/internal/storage/memory"
	pgstore "github.com/tinoosan/bankrecon/internal/storage/postgres"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Logger (slog to stdout). Level via LOG_LEVEL; format via LOG_FORMAT (json|text, default json)
	logger := buildLoggerFromEnv()
	slog.SetDefault(logger)

	var srvMux http.Handler
	var closeFn func()

	if dsn := strings.TrimSpace(os.Getenv("DATABASE_URL")); dsn != "" {
		// Use Postgres store when DATABASE_URL is provided
		pg, err := pgstore.Open(ctx, dsn)
		if err != nil {
			logger.Error("failed to connect to postgres", "err", err)
			os.Exit(1)
		}
		closeFn = func() { pg.Close() }
		// Optional dev seed for compose/local
		if dev := strings.ToLower(strings.TrimSpace(os.Getenv("DEV_SEED"))); dev == "1" || dev == "true" || dev == "yes" {
			acc, err := pg.SeedDev(ctx)
			if err != nil {
				logger.Error("dev seed failed", "err", err)
			} else {
				logDevSeed(logger, "postgres", acc)
				printDevSeedBanner(acc)
			}
		}
		srvMux = httpapi.New(pg, pg, pg, pg, pg, pg, logger).Handler()
		logger.Info("storage backend: postgres")
	} else {
		// Default to in-memory store with a small dev seed
		store := memory.New()
		acc := seedMemory(store)
		logDevSeed(logger, "memory", acc)
		printDevSeedBanner(acc)
		srvMux = httpapi.New(store, store, store, store, store, store, logger).Handler()
		logger.Info("storage backend: memory")
	}

	addr := strings.TrimSpace(os.Getenv("ADDR"))
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           srvMux,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("reconciliation service listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctxShutdown); err != nil {
			logger.Error("server shutdown error", "err", err)
		}
	case err := <-errCh:
		logger.Error("server error", "err", err)
	}
	if closeFn != nil {
		closeFn()
	}
}

// seedMemory loads a bank account, an opening book balance and a few
// unreconciled statement/system transactions for local testing.
func seedMemory(store *memory.Store) recon.BankAccount {
	acc := recon.BankAccount{
		ID:          uuid.New(),
		Name:        "Operating Account",
		Currency:    "USD",
		GLAccountID: uuid.New(),
		Active:      true,
	}
	store.SeedBankAccount(acc)

	now := time.Now().UTC()
	monthAgo := now.AddDate(0, -1, 0)

	opening := recon.JournalEntry{
		ID: uuid.New(), Date: monthAgo, Currency: acc.Currency,
		Memo: "opening balance", CreatedBy: "seed",
	}
	amt := mustAmount(acc.Currency, 100000)
	opening.Lines = []recon.JournalLine{
		{ID: uuid.New(), EntryID: opening.ID, AccountID: acc.GLAccountID, Side: recon.SideDebit, Amount: amt},
		{ID: uuid.New(), EntryID: opening.ID, AccountID: uuid.New(), Side: recon.SideCredit, Amount: amt},
	}
	store.SeedJournalEntry(opening)
	store.SeedTransaction(recon.BankTransaction{
		ID: uuid.New(), BankAccountID: acc.ID, Date: monthAgo,
		Amount: amt, Description: "opening balance", Type: recon.TypeDeposit, FromStatement: true,
	})

	// A matched-looking pair plus a statement-only fee.
	pair := mustAmount(acc.Currency, -2500)
	store.SeedTransaction(recon.BankTransaction{
		ID: uuid.New(), BankAccountID: acc.ID, Date: now.AddDate(0, 0, -3),
		Amount: pair, Description: "supplier payment", Reference: "chq-104",
		Type: recon.TypeWithdrawal, FromStatement: true,
	})
	store.SeedTransaction(recon.BankTransaction{
		ID: uuid.New(), BankAccountID: acc.ID, Date: now.AddDate(0, 0, -4),
		Amount: pair, Description: "supplier payment", Reference: "chq-104",
		Type: recon.TypeWithdrawal, FromStatement: false,
	})
	store.SeedTransaction(recon.BankTransaction{
		ID: uuid.New(), BankAccountID: acc.ID, Date: now.AddDate(0, 0, -1),
		Amount: mustAmount(acc.Currency, -500), Description: "monthly service fee",
		Type: recon.TypeFee, FromStatement: true,
	})
	return acc
}

func mustAmount(currency string, minor int64) money.Amount {
	a, _ := money.NewAmountFromMinorUnits(currency, minor)
	return a
}

// logDevSeed emits structured logs with useful IDs
func logDevSeed(l *slog.Logger, backend string, acc recon.BankAccount) {
	l.Info("DEV seed ("+backend+")",
		"bank_account_id", acc.ID.String(),
		"gl_account_id", acc.GLAccountID.String(),
		"currency", acc.Currency,
	)
}

// printDevSeedBanner prints a simple banner to stdout for easy copy/paste of IDs
func printDevSeedBanner(acc recon.BankAccount) {
	fmt.Println("==================== DEV SEED ====================")
	fmt.Printf("bank_account_id: %s\n", acc.ID.String())
	fmt.Printf("gl_account_id: %s\n", acc.GLAccountID.String())
	fmt.Println("==================================================")
}

// parseLogLevel maps env values to slog.Leveler
func parseLogLevel(s string) slog.Leveler {
	switch s {
	case "DEBUG", "debug":
		return slog.LevelDebug
	case "WARN", "WARNING", "warn", "warning":
		return slog.LevelWarn
	case "ERROR", "ERR", "error", "err":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func buildLoggerFromEnv() *slog.Logger {
	level := parseLogLevel(os.Getenv("LOG_LEVEL"))
	format := strings.ToLower(strings.TrimSpace(os.Getenv("LOG_FORMAT")))
	if format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	}
	// default to JSON
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
