package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"mediadex/internal"
	"mediadex/internal/config"
	"mediadex/internal/logger"
	"mediadex/internal/pipeline"
	"mediadex/internal/storage"
	"mediadex/internal/watch"
)

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogMode)
	must(err)
	defer log.Sync()

	cmd := os.Args[1]
	switch cmd {
	case "db:load":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		animePath := fs.String("anime", cfg.AnimeCSVPath, "anime input csv")
		mangaPath := fs.String("manga", cfg.MangaCSVPath, "manga input csv")
		_ = fs.Parse(os.Args[2:])

		db, err := storage.Open(cfg.DBPath)
		must(err)
		defer db.Close()

		sink := pipeline.NewDBSink(db)
		reports, err := ingestAll(context.Background(), sink, log, *animePath, *mangaPath)
		must(err)
		must(sink.Finish(context.Background()))
		for _, report := range reports {
			fmt.Printf("db load done medium=%s loaded=%d skipped=%d links=%d titles=%d\n",
				report.Medium, report.Loaded, len(report.Skipped), report.Links, report.Titles)
		}
	case "csv:export":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		animePath := fs.String("anime", cfg.AnimeCSVPath, "anime input csv")
		mangaPath := fs.String("manga", cfg.MangaCSVPath, "manga input csv")
		out := fs.String("out", filepath.Join(cfg.OutputDir, "csv"), "output directory")
		_ = fs.Parse(os.Args[2:])

		sink := pipeline.NewFileSink(*out)
		reports, err := ingestAll(context.Background(), sink, log, *animePath, *mangaPath)
		must(err)
		must(sink.Finish(context.Background()))
		for _, report := range reports {
			fmt.Printf("csv export done medium=%s loaded=%d skipped=%d links=%d titles=%d\n",
				report.Medium, report.Loaded, len(report.Skipped), report.Links, report.Titles)
		}
		fmt.Printf("csv files written to %s\n", *out)
	case "xlsx:export":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		out := fs.String("out", filepath.Join(cfg.OutputDir, "mediadex.xlsx"), "output xlsx path")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*out) == "" {
			must(fmt.Errorf("--out is required"))
		}

		db, err := storage.Open(cfg.DBPath)
		must(err)
		defer db.Close()

		must(pipeline.ExportWorkbook(context.Background(), db, *out))
		fmt.Printf("workbook written to %s\n", *out)
	case "watch":
		db, err := storage.Open(cfg.DBPath)
		must(err)
		defer db.Close()

		s := watch.NewService(db, cfg, log)
		must(s.Run(context.Background()))
	default:
		usage()
		os.Exit(1)
	}
}

// ingestAll runs both families through one sink so the lookup namespaces
// shared across media (genres, themes, languages) resolve to the same ids.
func ingestAll(ctx context.Context, sink pipeline.Sink, log *logger.Logger, animePath, mangaPath string) ([]pipeline.MediumReport, error) {
	svc := pipeline.NewService(sink, log)

	inputs := []struct {
		medium internal.Medium
		path   string
	}{
		{internal.MediumAnime, animePath},
		{internal.MediumManga, mangaPath},
	}

	var reports []pipeline.MediumReport
	for _, in := range inputs {
		if strings.TrimSpace(in.path) == "" {
			continue
		}
		if _, err := os.Stat(in.path); err != nil {
			log.Warn("input missing, skipping medium", "medium", in.medium, "path", in.path)
			continue
		}
		report, err := svc.IngestFile(ctx, in.medium, in.path)
		if err != nil {
			return reports, err
		}
		reports = append(reports, report)
	}
	if len(reports) == 0 {
		return nil, fmt.Errorf("no input files found")
	}
	return reports, nil
}

func usage() {
	fmt.Println("usage: mediadex <command>")
	fmt.Println("commands:")
	fmt.Println("  db:load     [--anime=path] [--manga=path]")
	fmt.Println("  csv:export  [--anime=path] [--manga=path] [--out=dir]")
	fmt.Println("  xlsx:export [--out=path.xlsx]")
	fmt.Println("  watch")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
