package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"example.com/kmgate/internal/common"
	"example.com/kmgate/internal/indexcache"
	"example.com/kmgate/internal/kmall"
	"example.com/kmgate/internal/kmfile"
	"example.com/kmgate/internal/manifest"
	"example.com/kmgate/internal/report"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// errUsage marks a command line problem; the message is already specific.
var errUsage = errors.New("usage")

type config struct {
	Cache indexcache.Options `yaml:"cache"`
	Logs  common.LogRotation `yaml:"logs"`
}

func loadConfig(path string) (config, error) {
	var cfg config
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.Cache.Codec == "" {
		cfg.Cache.Codec = indexcache.DefaultCodec
	}
	if _, _, err := indexcache.CodecByName(cfg.Cache.Codec); err != nil {
		return cfg, err
	}
	if cfg.Cache.Dir != "" && !filepath.IsAbs(cfg.Cache.Dir) {
		cfg.Cache.Dir = filepath.Join(filepath.Dir(path), cfg.Cache.Dir)
	}
	if cfg.Logs.Path != "" && !filepath.IsAbs(cfg.Logs.Path) {
		cfg.Logs.Path = filepath.Join(filepath.Dir(path), cfg.Logs.Path)
	}
	return cfg, nil
}

type command struct {
	name string
	help string
	run  func(args []string, stdout io.Writer) error
}

var commands = []command{
	{"index", "--in <file> [--where <expr>] [--progress] [--cache] [--json <out.json>]", indexCmd},
	{"dump", "--in <file> [--where <expr>] [--limit <n>] [--sorted]", dumpCmd},
	{"extract", "--in <file> --what <" + strings.Join(kmfile.Extractions(), "|") + "> [--source <tag|bs_1|bs_2>] [--out <file.json>]", extractCmd},
	{"svp", "--in <file>", svpCmd},
	{"install", "--in <file>", installCmd},
	{"report", "--in <file> --out <summary.pdf> [--json <summary.json>]", reportCmd},
	{"manifest", "--inputs <comma-separated> --out <manifest.json> [--sign-key <key.pem>] | --verify <manifest.json> [--pubkey <pub.pem>]", manifestCmd},
	{"batch", "--in <dir> --out-dir <dir>", batchCmd},
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		usage(stderr)
		return 2
	}
	if args[0] == "version" {
		fmt.Fprintf(stdout, "kmallctl %s (built %s)\n", version, buildDate)
		return 0
	}
	for _, c := range commands {
		if c.name != args[0] {
			continue
		}
		if err := c.run(args[1:], stdout); err != nil {
			fmt.Fprintf(stderr, "%s: %v\n", c.name, err)
			if errors.Is(err, errUsage) {
				return 2
			}
			return 1
		}
		return 0
	}
	usage(stderr)
	return 2
}

func usage(w io.Writer) {
	fmt.Fprintf(w, "kmallctl %s (built %s) <command> [options]\n\nCommands:\n", version, buildDate)
	for _, c := range commands {
		fmt.Fprintf(w, "  %-9s %s\n", c.name, c.help)
	}
	fmt.Fprintf(w, "\nEvery command also accepts --config <kmallctl.yaml>.\n")
}

// flagSet returns a flag set with the shared --config flag.
func flagSet(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	cfg := fs.String("config", "", "yaml configuration file")
	return fs, cfg
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	return nil
}

func required(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: required: --%s", errUsage, name)
	}
	return nil
}

// setupLogging sends log output to the rotating file from the config.
func setupLogging(cfg config) func() {
	if cfg.Logs.Path == "" {
		return func() {}
	}
	w := common.RotatingWriter(cfg.Logs)
	common.SetLogOutput(io.MultiWriter(os.Stderr, w))
	return func() {
		common.SetLogOutput(os.Stderr)
		w.Close()
	}
}

func openFile(path string, cfg config, useCache bool, opts ...kmfile.Option) (*kmfile.File, error) {
	if useCache {
		f, _, err := kmfile.OpenCached(path, cfg.Cache, opts...)
		return f, err
	}
	return kmfile.Open(path, opts...)
}

func writeJSONFile(v any, out string, stdout io.Writer) error {
	if out == "" || out == "-" {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(out, b, 0644)
}

func indexCmd(args []string, stdout io.Writer) error {
	fs, cfgPath := flagSet("index")
	in := fs.String("in", "", "input .kmall or .kmwcd")
	where := fs.String("where", "", "CEL filter over map entries")
	progress := fs.Bool("progress", false, "display indexing progress")
	useCache := fs.Bool("cache", false, "reuse and refresh the index sidecar")
	jsonOut := fs.String("json", "", "write the index as JSON")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := required("in", *in); err != nil {
		return err
	}
	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	defer setupLogging(cfg)()

	var filter *kmfile.EntryFilter
	if *where != "" {
		if filter, err = kmfile.NewEntryFilter(*where); err != nil {
			return err
		}
	}

	opts := []kmfile.Option{kmfile.Quiet()}
	var stopProgress func()
	var metrics *common.Metrics
	if *progress {
		metrics = common.NewMetrics()
		opts = append(opts, kmfile.WithMetrics(metrics))
		stopProgress = common.StartProgressPrinter(os.Stderr, metrics, 500*time.Millisecond)
	}
	f, err := openFile(*in, cfg, *useCache, opts...)
	if stopProgress != nil {
		stopProgress()
	}
	if err != nil {
		return err
	}
	idx := f.Index()
	if filter != nil {
		filtered := *idx
		filtered.Entries = make(map[string][]kmfile.MapEntry)
		filtered.NumberOfRecords = 0
		for tag, entries := range idx.Entries {
			kept, err := filter.Apply(entries)
			if err != nil {
				return err
			}
			if len(kept) > 0 {
				filtered.Entries[tag] = kept
				filtered.NumberOfRecords += len(kept)
			}
		}
		idx = &filtered
	}
	if *jsonOut != "" {
		if err := writeJSONFile(idx, *jsonOut, stdout); err != nil {
			return err
		}
	}
	sum, err := report.Summarize(idx)
	if err != nil {
		return err
	}
	if err := report.WriteText(stdout, sum); err != nil {
		return err
	}
	if metrics != nil {
		snap := metrics.Snapshot()
		fmt.Fprintf(stdout, "scanned %s in %s (%.2f MiB/s), %d kinds re-sorted\n",
			common.FormatBytes(snap.Bytes), snap.Duration.Round(time.Millisecond),
			snap.ThroughputBytesPerSecond()/(1<<20), snap.Reorders)
	}
	return nil
}

func dumpCmd(args []string, stdout io.Writer) error {
	fs, cfgPath := flagSet("dump")
	in := fs.String("in", "", "input .kmall or .kmwcd")
	where := fs.String("where", "", "CEL filter over map entries")
	limit := fs.Int("limit", 0, "stop after n records (0 = all)")
	sorted := fs.Bool("sorted", false, "merge all kinds in time order")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := required("in", *in); err != nil {
		return err
	}
	if *limit < 0 {
		return fmt.Errorf("%w: --limit must not be negative", errUsage)
	}
	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	defer setupLogging(cfg)()

	opts := kmfile.WalkOptions{Sorted: *sorted, Limit: *limit}
	if *where != "" {
		if opts.Filter, err = kmfile.NewEntryFilter(*where); err != nil {
			return err
		}
	}
	opts.OnSkip = func(e kmfile.MapEntry, err error) {
		common.Logf("skip %s at offset %d: %v", e.Tag, e.Offset, err)
	}
	f, err := openFile(*in, cfg, cfg.Cache.Dir != "", kmfile.Quiet())
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	enc := json.NewEncoder(stdout)
	return f.Walk(ctx, opts, func(e kmfile.MapEntry, rec kmall.Record) error {
		return enc.Encode(dumpLine{Entry: e, Kind: rec.Kind().String(), Record: rec})
	})
}

type dumpLine struct {
	Entry  kmfile.MapEntry `json:"entry"`
	Kind   string          `json:"kind"`
	Record kmall.Record    `json:"record"`
}

func extractCmd(args []string, stdout io.Writer) error {
	fs, cfgPath := flagSet("extract")
	in := fs.String("in", "", "input .kmall or .kmwcd")
	what := fs.String("what", "", "aggregation: "+strings.Join(kmfile.Extractions(), ", "))
	source := fs.String("source", "", "position record tag or backscatter field")
	out := fs.String("out", "", "output JSON (stdout when empty)")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := required("in", *in); err != nil {
		return err
	}
	if err := required("what", *what); err != nil {
		return err
	}
	return withFile(*cfgPath, *in, func(f *kmfile.File) error {
		v, err := f.Extract(*what, *source)
		if err != nil {
			return err
		}
		return writeJSONFile(v, *out, stdout)
	})
}

func svpCmd(args []string, stdout io.Writer) error {
	fs, cfgPath := flagSet("svp")
	in := fs.String("in", "", "input .kmall")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := required("in", *in); err != nil {
		return err
	}
	return withFile(*cfgPath, *in, func(f *kmfile.File) error {
		profiles, err := f.SVP()
		if err != nil {
			return err
		}
		return writeJSONFile(profiles, "", stdout)
	})
}

func installCmd(args []string, stdout io.Writer) error {
	fs, cfgPath := flagSet("install")
	in := fs.String("in", "", "input .kmall")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := required("in", *in); err != nil {
		return err
	}
	return withFile(*cfgPath, *in, func(f *kmfile.File) error {
		inst, err := f.Installation()
		if err != nil {
			return err
		}
		return writeJSONFile(inst, "", stdout)
	})
}

func withFile(cfgPath, in string, fn func(*kmfile.File) error) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}
	defer setupLogging(cfg)()
	f, err := openFile(in, cfg, cfg.Cache.Dir != "", kmfile.Quiet())
	if err != nil {
		return err
	}
	return fn(f)
}

func reportCmd(args []string, stdout io.Writer) error {
	fs, cfgPath := flagSet("report")
	in := fs.String("in", "", "input .kmall or .kmwcd")
	out := fs.String("out", "summary.pdf", "PDF output")
	jsonOut := fs.String("json", "", "JSON summary output")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := required("in", *in); err != nil {
		return err
	}
	return withFile(*cfgPath, *in, func(f *kmfile.File) error {
		sum, err := report.Summarize(f.Index())
		if err != nil {
			return err
		}
		if err := report.SaveSummaryPDF(sum, *out); err != nil {
			return fmt.Errorf("write pdf: %w", err)
		}
		fmt.Fprintf(stdout, "Wrote %s\n", *out)
		if *jsonOut != "" {
			if err := report.SaveSummaryJSON(sum, *jsonOut); err != nil {
				return fmt.Errorf("write json: %w", err)
			}
			fmt.Fprintf(stdout, "Wrote %s\n", *jsonOut)
		}
		return nil
	})
}

func manifestCmd(args []string, stdout io.Writer) error {
	fs, _ := flagSet("manifest")
	inputs := fs.String("inputs", "", "comma separated files")
	out := fs.String("out", "manifest.json", "manifest output")
	signKey := fs.String("sign-key", "", "RSA private key (PEM); writes <out>.jws")
	verify := fs.String("verify", "", "check files against an existing manifest")
	pubKey := fs.String("pubkey", "", "RSA public key or certificate (PEM) checking <manifest>.jws")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *verify != "" {
		m, err := manifest.Load(*verify)
		if err != nil {
			return err
		}
		if *pubKey != "" {
			pub, err := os.ReadFile(*pubKey)
			if err != nil {
				return err
			}
			sig, err := os.ReadFile(*verify + ".jws")
			if err != nil {
				return err
			}
			if err := manifest.VerifySignature(m, string(sig), pub); err != nil {
				return fmt.Errorf("signature: %w", err)
			}
			fmt.Fprintf(stdout, "signature OK\n")
		}
		changed, err := manifest.Verify(m)
		if err != nil {
			return err
		}
		if len(changed) > 0 {
			return fmt.Errorf("%d files changed: %s", len(changed), strings.Join(changed, ", "))
		}
		fmt.Fprintf(stdout, "%d files match %s\n", len(m.Items), *verify)
		return nil
	}
	if err := required("inputs", *inputs); err != nil {
		return err
	}
	var paths []string
	for _, p := range strings.Split(*inputs, ",") {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}
	m, err := manifest.Build(paths)
	if err != nil {
		return err
	}
	if err := manifest.Save(m, *out); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Wrote %s (%d items)\n", *out, len(m.Items))
	if *signKey != "" {
		key, err := os.ReadFile(*signKey)
		if err != nil {
			return err
		}
		sig, err := manifest.Sign(m, key)
		if err != nil {
			return err
		}
		if err := os.WriteFile(*out+".jws", []byte(sig+"\n"), 0644); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Wrote %s.jws\n", *out)
	}
	return nil
}

// batchCmd writes a JSON summary per survey file of a directory. A file
// that fails to index is reported and does not stop the batch.
func batchCmd(args []string, stdout io.Writer) error {
	fs, cfgPath := flagSet("batch")
	inDir := fs.String("in", ".", "input directory")
	outDir := fs.String("out-dir", "out", "results directory")
	if err := parse(fs, args); err != nil {
		return err
	}
	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	defer setupLogging(cfg)()
	files, err := common.SurveyFiles(*inDir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return err
	}
	failed := 0
	for _, p := range files {
		f, err := openFile(p, cfg, cfg.Cache.Dir != "", kmfile.Quiet())
		if err != nil {
			fmt.Fprintf(stdout, "FAIL %s: %v\n", filepath.Base(p), err)
			failed++
			continue
		}
		sum, err := report.Summarize(f.Index())
		if err != nil {
			return err
		}
		out := filepath.Join(*outDir, filepath.Base(p)+".summary.json")
		if err := report.SaveSummaryJSON(sum, out); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "OK   %s: %d records, %d pings\n", filepath.Base(p), sum.NumberOfRecords, sum.NumberOfPings)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(files))
	}
	return nil
}
