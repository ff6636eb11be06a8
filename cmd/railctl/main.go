// Command railctl maintains text-index snapshots and rail files offline:
//
//	railctl index    [-append] [-lines] [-field text] FILE|DIR...
//	railctl build    [-force] [-field name]...
//	railctl inspect  [-field name] [-top 20]
//	railctl announce
//
// Every subcommand reads the service config given with -config.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/internal/generation"
	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/internal/rail"
	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/internal/textindex"
	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/internal/textindex/segment"
	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/logger"
)

// maxLine bounds one document read in -lines mode.
const maxLine = 16 << 20

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, cfg *config.Config, args []string) error
}

var commands = []command{
	{"index", "tokenize text files into the configured snapshot", runIndex},
	{"build", "build the rail files of the snapshot", runBuild},
	{"inspect", "print snapshot and rail statistics", runInspect},
	{"announce", "publish the snapshot generation on kafka", runAnnounce},
}

func main() {
	global := flag.NewFlagSet("railctl", flag.ExitOnError)
	configPath := global.String("config", "configs/development.yaml", "path to config file")
	global.Usage = func() {
		fmt.Fprintf(global.Output(), "usage: railctl [-config FILE] COMMAND [flags]\n\ncommands:\n")
		for _, c := range commands {
			fmt.Fprintf(global.Output(), "  %-9s %s\n", c.name, c.usage)
		}
	}
	global.Parse(os.Args[1:])
	if global.NArg() == 0 {
		global.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	name := global.Arg(0)
	for _, c := range commands {
		if c.name != name {
			continue
		}
		if err := c.run(ctx, cfg, global.Args()[1:]); err != nil {
			slog.Error("command failed", "command", name, "error", err)
			os.Exit(1)
		}
		return
	}
	fmt.Fprintf(os.Stderr, "unknown command %q\n", name)
	global.Usage()
	os.Exit(2)
}

// fieldList collects a repeatable -field flag.
type fieldList []string

func (f *fieldList) String() string     { return strings.Join(*f, ",") }
func (f *fieldList) Set(v string) error { *f = append(*f, v); return nil }

func runIndex(ctx context.Context, cfg *config.Config, args []string) error {
	fset := flag.NewFlagSet("index", flag.ExitOnError)
	appendMode := fset.Bool("append", false, "add to the existing snapshot instead of replacing it")
	lines := fset.Bool("lines", false, "index every non-empty line as its own document")
	field := fset.String("field", "text", "field receiving the text")
	fset.Parse(args)
	if fset.NArg() == 0 {
		return errors.New("no input files")
	}
	path := cfg.Index.SnapshotPath
	if path == "" {
		return errors.New("index.snapshotPath is not configured")
	}

	var idx *textindex.Index
	if *appendMode {
		var err error
		if idx, err = generation.LoadSnapshot(ctx, path); err != nil {
			return err
		}
	} else {
		fields := cfg.Index.Fields
		if len(fields) == 0 {
			fields = []string{*field}
		}
		specs := make([]textindex.FieldSpec, len(fields))
		for i, name := range fields {
			specs[i] = textindex.FieldSpec{Name: name, Positions: true, Analyzer: textindex.DefaultAnalyzer()}
		}
		idx = textindex.NewIndex(specs...)
	}

	before := idx.MaxDoc()
	add := func(text string) error {
		_, err := idx.AddDocument(map[string]string{*field: text})
		return err
	}
	for _, root := range fset.Args() {
		err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if *lines {
				return eachLine(p, add)
			}
			data, err := os.ReadFile(p)
			if err != nil {
				return err
			}
			return add(string(data))
		})
		if err != nil {
			return fmt.Errorf("indexing %s: %w", root, err)
		}
	}

	if err := segment.Write(path, idx.Snapshot()); err != nil {
		return err
	}
	slog.Info("snapshot written",
		"path", path,
		"added", idx.MaxDoc()-before,
		"max_doc", idx.MaxDoc(),
		"generation", idx.Generation(),
	)
	return nil
}

func eachLine(path string, fn func(string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), maxLine)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			if err := fn(line); err != nil {
				return err
			}
		}
	}
	return sc.Err()
}

func railOptions(cfg *config.Config) rail.Options {
	return rail.Options{Dir: cfg.Rail.DataDir, LockTimeout: cfg.Rail.BuildLockTimeout}
}

// targetFields returns the flagged fields, else the configured ones, else
// every field of idx.
func targetFields(flagged fieldList, cfg *config.Config, idx *textindex.Index) []string {
	switch {
	case len(flagged) > 0:
		return flagged
	case len(cfg.Index.Fields) > 0:
		return cfg.Index.Fields
	}
	return idx.Fields()
}

func runBuild(ctx context.Context, cfg *config.Config, args []string) error {
	fset := flag.NewFlagSet("build", flag.ExitOnError)
	force := fset.Bool("force", false, "rewrite rails that are already current")
	var fields fieldList
	fset.Var(&fields, "field", "field to build (repeatable)")
	fset.Parse(args)

	idx, err := generation.LoadSnapshot(ctx, cfg.Index.SnapshotPath)
	if err != nil {
		return err
	}
	opts := railOptions(cfg)
	if !*force {
		reg := rail.NewRegistry(idx, opts)
		defer reg.Close()
		return reg.Warm(ctx, cfg.Rail.BuildParallelism, targetFields(fields, cfg, idx)...)
	}
	var errs []error
	for _, field := range targetFields(fields, cfg, idx) {
		if err := rail.Build(ctx, idx, field, opts, true); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func runInspect(ctx context.Context, cfg *config.Config, args []string) error {
	fset := flag.NewFlagSet("inspect", flag.ExitOnError)
	top := fset.Int("top", 20, "number of most frequent terms to list per field")
	var fields fieldList
	fset.Var(&fields, "field", "field to inspect (repeatable)")
	fset.Parse(args)

	h, err := segment.ReadHeader(cfg.Index.SnapshotPath)
	if err != nil {
		return err
	}
	idx, err := generation.LoadSnapshot(ctx, cfg.Index.SnapshotPath)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()
	fmt.Fprintf(w, "snapshot\t%s\n", cfg.Index.SnapshotPath)
	fmt.Fprintf(w, "generation\t%d\n", h.Generation)
	fmt.Fprintf(w, "documents\t%d (%d live)\n", h.MaxDoc, idx.LiveDocs().GetCardinality())

	reg := rail.NewRegistry(idx, railOptions(cfg))
	defer reg.Close()
	for _, field := range targetFields(fields, cfg, idx) {
		lex, err := idx.Lexicon(field)
		if err != nil {
			return err
		}
		store, err := reg.Get(ctx, field)
		if err != nil {
			return err
		}
		freqs, err := store.Freqs(ctx, nil, lex.Size())
		store.Close()
		if err != nil {
			return err
		}
		ids := make([]uint32, 0, len(freqs))
		var occs int64
		for id, f := range freqs {
			if f > 0 {
				ids = append(ids, uint32(id))
				occs += f
			}
		}
		sort.Slice(ids, func(i, j int) bool {
			if freqs[ids[i]] != freqs[ids[j]] {
				return freqs[ids[i]] > freqs[ids[j]]
			}
			return ids[i] < ids[j]
		})
		fmt.Fprintf(w, "\nfield\t%s\n", field)
		fmt.Fprintf(w, "rail\t%s\n", filepath.Join(cfg.Rail.DataDir, rail.FileName(field)))
		fmt.Fprintf(w, "terms\t%d (%d occurring)\n", lex.Size()-1, len(ids))
		fmt.Fprintf(w, "occurrences\t%d\n", occs)
		for _, id := range ids[:min(*top, len(ids))] {
			fmt.Fprintf(w, "  %s\t%d\t%s\n", lex.Form(id), freqs[id], lex.Tag(id))
		}
	}
	return nil
}

func runAnnounce(ctx context.Context, cfg *config.Config, args []string) error {
	fset := flag.NewFlagSet("announce", flag.ExitOnError)
	fset.Parse(args)

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexGeneration)
	defer producer.Close()
	ev, err := generation.NewPublisher(producer).Announce(ctx, cfg.Index.SnapshotPath, cfg.Index.Fields)
	if err != nil {
		return err
	}
	fmt.Printf("announced generation %d on %s\n", ev.Generation, cfg.Kafka.Topics.IndexGeneration)
	return nil
}
