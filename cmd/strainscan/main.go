package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"strainscan/internal"
	"strainscan/internal/catalog"
	"strainscan/internal/config"
	"strainscan/internal/connectors"
	"strainscan/internal/labeltext"
	"strainscan/internal/listener"
	"strainscan/internal/logging"
	"strainscan/internal/pipeline"
	"strainscan/internal/resolver"
	"strainscan/internal/server"
	"strainscan/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	must(err)
	defer func() { _ = logger.Sync() }()

	res, err := newResolver(cfg)
	must(err)

	cmd := os.Args[1]
	switch cmd {
	case "run":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", "", "scan file: JSON object, JSON array or NDJSON")
		output := fs.String("output", "", "output path (.json or .xlsx)")
		_ = fs.Parse(os.Args[2:])
		if *input == "" || *output == "" {
			must(fmt.Errorf("--input and --output are required"))
		}
		readModels, err := pipeline.NormalizeFile(res, *input)
		must(err)
		if strings.EqualFold(filepath.Ext(*output), ".xlsx") {
			rows := make([]internal.ScanExportRow, 0, len(readModels))
			for _, rm := range readModels {
				rows = append(rows, pipeline.ExportRowFromReadModel(rm, resolver.ScanKind(rm)))
			}
			must(pipeline.ExportRowsToXLSX(rows, *output))
		} else {
			must(pipeline.WriteJSON(readModels, *output))
		}
		fmt.Printf("run done scans=%d output=%s\n", len(readModels), *output)
		return
	case "label:mine":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", "", "label text file (.txt, .hocr/.html or .pdf)")
		_ = fs.Parse(os.Args[2:])
		if *input == "" {
			must(fmt.Errorf("--input is required"))
		}
		text, err := labeltext.FromFile(*input)
		must(err)
		out := map[string]any{"name": nil, "facts": resolver.ExtractLabelFacts(text)}
		if name, ok := res.ExtractName(text); ok {
			out["name"] = name
		}
		blob, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(blob))
		return
	}

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	switch cmd {
	case "catalog:sync":
		svc := catalog.NewSyncService(db, cfg, logger)
		count, err := svc.Sync(context.Background())
		must(err)
		fmt.Printf("catalog sync complete: %d strains\n", count)
	case "scans:fetch":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		source := fs.String("source", cfg.ScanSource, "supabase|localfs")
		max := fs.Int("max", cfg.ListenerFetchMax, "max scans")
		_ = fs.Parse(os.Args[2:])
		cfg.ScanSource = *source
		src, err := listener.NewScanSource(cfg, db, logger)
		must(err)
		fetch := connectors.NewFetchService(db, cfg.RawScanDir, src, logger)
		result, err := fetch.FetchAndStore(context.Background(), *max)
		must(err)
		fmt.Printf("scan fetch done source=%s fetched=%d stored=%d\n", src.Name(), result.Fetched, result.Stored)
	case "scans:process":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		source := fs.String("source", cfg.ScanSource, "source of --externalId")
		externalID := fs.String("externalId", "", "specific scan id")
		batch := fs.Int("batch", cfg.ListenerProcessBatch, "batch size")
		_ = fs.Parse(os.Args[2:])
		processor := pipeline.NewProcessingService(db, cfg, res, logger)
		if strings.TrimSpace(*externalID) != "" {
			out, err := processor.ProcessBySourceExternalID(context.Background(), *source, *externalID)
			must(err)
			fmt.Printf("processed scan id=%d status=%s kind=%s\n", out.ScanID, out.Status, out.ScanKind)
			return
		}
		summary, err := processor.ProcessPending(context.Background(), *batch)
		must(err)
		fmt.Printf("processed pending scans=%d normalized=%d awaiting=%d failed=%d trace=%s\n",
			summary.Processed, summary.Normalized, summary.Awaiting, summary.Failed, summary.TraceID)
	case "export:xlsx":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		out := fs.String("out", "", "output xlsx path")
		status := fs.String("status", "", "only scans with this status (normalized|exported)")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*out) == "" {
			must(fmt.Errorf("--out is required"))
		}
		rows, err := db.GetExportRows(internal.ScanStatus(*status))
		must(err)
		if len(rows) == 0 {
			must(fmt.Errorf("no normalized scans to export"))
		}
		must(pipeline.ExportRowsToXLSX(rows, *out))
		fmt.Printf("exported %d rows to %s\n", len(rows), *out)
	case "scans:listen":
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		s := listener.NewService(db, cfg, res, logger)
		must(s.Run(ctx))
	case "serve":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		addr := fs.String("addr", cfg.HTTPAddr, "listen address")
		withListener := fs.Bool("with-listener", false, "also run the scan listener")
		_ = fs.Parse(os.Args[2:])
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		loadIndex := func() (*catalog.Index, error) {
			return catalog.LoadIndex(db, cfg.CatalogFuzzyThreshold)
		}
		index, err := loadIndex()
		must(err)
		router := server.NewRouter(res, index, server.NewMetrics(), logger)
		reload := time.Duration(cfg.CatalogReloadSec) * time.Second
		background := []func(context.Context) error{
			func(ctx context.Context) error { return router.ReloadIndex(ctx, reload, loadIndex) },
		}
		if *withListener {
			background = append(background, listener.NewService(db, cfg, res, logger).Run)
		}
		must(serve(ctx, *addr, router.Handler(), logger, background...))
	default:
		usage()
		os.Exit(1)
	}
}

// serve runs the HTTP server alongside the background loops until ctx is
// done or any of them fails.
func serve(ctx context.Context, addr string, handler http.Handler, logger *zap.Logger, background ...func(context.Context) error) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	for _, run := range background {
		g.Go(func() error { return run(gctx) })
	}
	return g.Wait()
}

func newResolver(cfg config.Config) (*resolver.Resolver, error) {
	if strings.TrimSpace(cfg.BlocklistPath) == "" {
		return resolver.Default(), nil
	}
	lists, err := resolver.LoadBlocklistsFile(cfg.BlocklistPath)
	if err != nil {
		return nil, err
	}
	return resolver.New(lists), nil
}

func usage() {
	fmt.Println("usage: strainscan <command>")
	fmt.Println("commands:")
	fmt.Println("  catalog:sync")
	fmt.Println("  scans:fetch [--source=supabase|localfs] [--max=50]")
	fmt.Println("  scans:process [--source=... --externalId=...] [--batch=50]")
	fmt.Println("  scans:listen")
	fmt.Println("  export:xlsx --out=./out/scans.xlsx [--status=normalized]")
	fmt.Println("  run --input=scans.ndjson --output=./out/scans.json|.xlsx")
	fmt.Println("  label:mine --input=label.txt|.hocr|.pdf")
	fmt.Println("  serve [--addr=:8080] [--with-listener]")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
