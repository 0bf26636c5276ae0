// Command surveysync is the operator CLI for the sync engine: run one
// drain, print the result, seed fixture rows, or run cleanup by hand.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/mdfalcon104/survey-response-sync/cleanup"
	"github.com/mdfalcon104/survey-response-sync/clock"
	"github.com/mdfalcon104/survey-response-sync/config"
	"github.com/mdfalcon104/survey-response-sync/engine"
	"github.com/mdfalcon104/survey-response-sync/filesink"
	"github.com/mdfalcon104/survey-response-sync/model"
	utillog "github.com/mdfalcon104/survey-response-sync/pkg/util/log"
	"github.com/mdfalcon104/survey-response-sync/store"
	"github.com/mdfalcon104/survey-response-sync/upload"
)

var cli struct {
	DB     string `help:"path to the sqlite store" default:"surveysync.db"`
	Config string `help:"path to a YAML config file; defaults are used if omitted"`

	Sync struct {
		Endpoint string        `help:"survey intake endpoint" required:""`
		Timeout  time.Duration `help:"per-attempt upload timeout" default:"10s"`
		Hedges   int           `help:"number of hedged requests per attempt" default:"1"`
	} `cmd:"" help:"run one drain against the store and print the result"`

	Seed struct {
		Count    int    `help:"number of fixture rows to insert" default:"10"`
		FarmerID string `help:"farmer id to attribute the rows to" default:"demo-farmer"`
	} `cmd:"" help:"insert random pending rows for local testing"`

	Cleanup struct {
		Retention time.Duration `help:"override the configured retention window" default:"0s"`
	} `cmd:"" help:"delete synced rows older than the retention window"`
}

func main() {
	kctx := kong.Parse(&cli,
		kong.Name("surveysync"),
		kong.Description("Operator CLI for the survey response sync engine."),
		kong.UsageOnError(),
	)

	logger := utillog.NewLogger()

	cfg := config.DefaultConfig()
	if cli.Config != "" {
		loaded, err := config.Load(cli.Config)
		kctx.FatalIfErrorf(err)
		cfg = loaded
	}

	s, err := store.OpenSQLiteStore(cli.DB)
	if err != nil {
		kctx.FatalIfErrorf(fmt.Errorf("open store: %w", err))
	}
	defer s.Close()

	switch kctx.Command() {
	case "sync":
		err = runSync(cfg, s, logger)
	case "seed":
		err = runSeed(s)
	case "cleanup":
		err = runCleanup(cfg, s, logger)
	default:
		err = fmt.Errorf("unknown command %q", kctx.Command())
	}

	kctx.FatalIfErrorf(err)
}

func runSync(cfg config.Config, s store.ResponseStore, logger log.Logger) error {
	uploader, err := upload.NewHTTPUploader(cli.Sync.Endpoint, cli.Sync.Timeout, cli.Sync.Hedges)
	if err != nil {
		return fmt.Errorf("build uploader: %w", err)
	}

	sink := &filesink.OSFileSink{
		OnError: func(err error) {
			level.Warn(logger).Log("msg", "media delete failed", "err", err)
		},
	}

	eng := engine.New(cfg, s, uploader, sink, clock.System{}, logger)

	result, err := eng.Sync(context.Background())
	if err != nil {
		return fmt.Errorf("sync: %w", err)
	}

	printResult(result)
	return nil
}

func runSeed(s store.ResponseStore) error {
	ctx := context.Background()
	now := clock.System{}.NowMillis()

	for i := 0; i < cli.Seed.Count; i++ {
		id := uuid.NewString()
		rec := &model.ResponseRecord{
			ID:          id,
			FarmerID:    cli.Seed.FarmerID,
			CreatedAt:   now + int64(i),
			AnswersJSON: `{"seeded":true}`,
			Status:      model.StatusPending,
		}
		if err := s.InsertOrReplace(ctx, rec); err != nil {
			return fmt.Errorf("insert seed row %d: %w", i, err)
		}
	}

	fmt.Printf("seeded %d pending rows for farmer %q\n", cli.Seed.Count, cli.Seed.FarmerID)
	return nil
}

func runCleanup(cfg config.Config, s store.ResponseStore, logger log.Logger) error {
	if cli.Cleanup.Retention > 0 {
		cfg.RetentionWindow = cli.Cleanup.Retention
	}

	policy := cleanup.New(cfg, s, clock.System{}, logger)
	return policy.CleanupOldSynced(context.Background())
}

func printResult(result engine.SyncResult) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"succeeded", "failed", "pending", "stop reason"})
	t.AppendRow(table.Row{len(result.Succeeded), len(result.Failed), len(result.Pending), result.Stop.String()})
	t.Render()
}
