// assetfs inspects and serves a mount table of asset directories and ZIP
// containers.
//
// The table is described either by a manifest file or by repeated --mount
// flags, in priority order:
//
//	assetfs ls -l --mount patch.zip --mount assets --mount game.zip=data data/levels
//	assetfs cat --manifest assets.yaml data/levels/01.json
//	assetfs mount --manifest assets.yaml /mnt/assets
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/meigma/assetfs"
)

type config struct {
	command     string
	args        []string
	manifest    string
	mounts      []string
	prepend     []string
	root        string
	verify      bool
	noMmap      bool
	maxFileSize uint64
	limitSet    bool
	logLevel    slog.Level
	long        bool
	jobs        int
	algorithm   string
	allowOther  bool
	iterations  int
	duration    time.Duration
	readRandom  bool
	randomSeed  int64
	cpuProfile  string
	memProfile  string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: cfg.logLevel}))

	cmd, ok := commands[cfg.command]
	if !ok {
		return fmt.Errorf("unknown command %q (want one of %s)", cfg.command, strings.Join(commandNames(), ", "))
	}

	fsys, err := buildFS(&cfg, logger)
	if err != nil {
		return err
	}
	defer fsys.Close()

	return cmd(ctx, &env{cfg: &cfg, fsys: fsys, out: stdout, logger: logger})
}

func parseFlags(args []string, stderr io.Writer) (config, error) {
	var cfg config
	var maxFileSize string
	var logLevel string

	flagSet := pflag.NewFlagSet("assetfs", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVar(&cfg.manifest, "manifest", "", "YAML or JSONC manifest describing the mount table")
	flagSet.StringArrayVar(&cfg.mounts, "mount", nil, "append source[=mountpoint] to the mount table (repeatable)")
	flagSet.StringArrayVar(&cfg.prepend, "prepend", nil, "prepend source[=mountpoint] to the mount table (repeatable)")
	flagSet.StringVar(&cfg.root, "root", "", "serve only this subtree of every --mount and --prepend source")
	flagSet.BoolVar(&cfg.verify, "verify-checksums", false, "check full container reads against their CRC-32")
	flagSet.BoolVar(&cfg.noMmap, "no-mmap", false, "read containers into memory instead of mapping them")
	flagSet.StringVar(&maxFileSize, "max-file-size", "", "largest read allowed (e.g. 64MiB, 0 disables)")
	flagSet.StringVar(&logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	flagSet.BoolVarP(&cfg.long, "long", "l", false, "ls: show type, size and modification time")
	flagSet.IntVarP(&cfg.jobs, "jobs", "j", 8, "verify: concurrent reads")
	flagSet.StringVar(&cfg.algorithm, "algorithm", "sha256", "sum: digest algorithm (sha256, sha384, sha512)")
	flagSet.BoolVar(&cfg.allowOther, "allow-other", false, "mount: let other users access the filesystem")
	flagSet.IntVar(&cfg.iterations, "iterations", 0, "bench: number of reads (overrides --duration)")
	flagSet.DurationVar(&cfg.duration, "duration", 5*time.Second, "bench: how long to read")
	flagSet.BoolVar(&cfg.readRandom, "read-random", true, "bench: randomize path selection")
	flagSet.Int64Var(&cfg.randomSeed, "seed", 1, "bench: random seed")
	flagSet.StringVar(&cfg.cpuProfile, "cpuprofile", "", "bench: write CPU profile to file")
	flagSet.StringVar(&cfg.memProfile, "memprofile", "", "bench: write heap profile to file")
	flagSet.Usage = func() { printUsage(stderr, flagSet) }

	if err := flagSet.Parse(args); err != nil {
		return config{}, err
	}

	rest := flagSet.Args()
	if len(rest) == 0 {
		printUsage(stderr, flagSet)
		return config{}, errors.New("missing command")
	}
	cfg.command, cfg.args = rest[0], rest[1:]
	if cfg.command == "verify" {
		cfg.verify = true
	}

	if maxFileSize != "" {
		n, err := humanize.ParseBytes(maxFileSize)
		if err != nil {
			return config{}, fmt.Errorf("--max-file-size: %w", err)
		}
		cfg.maxFileSize, cfg.limitSet = n, true
	}
	if err := cfg.logLevel.UnmarshalText([]byte(logLevel)); err != nil {
		return config{}, fmt.Errorf("--log-level: %w", err)
	}
	if cfg.jobs < 1 {
		return config{}, fmt.Errorf("--jobs must be positive, got %d", cfg.jobs)
	}
	if cfg.manifest == "" && len(cfg.mounts) == 0 && len(cfg.prepend) == 0 {
		return config{}, errors.New("nothing to mount: pass --manifest or --mount")
	}
	return cfg, nil
}

// parseMountSpec splits "source[=mountpoint]". The last "=" separates the
// mountpoint so sources may contain one.
func parseMountSpec(spec string) (source, mountpoint string, err error) {
	source = spec
	if i := strings.LastIndexByte(spec, '='); i >= 0 {
		source, mountpoint = spec[:i], spec[i+1:]
	}
	if source == "" {
		return "", "", fmt.Errorf("invalid mount %q: empty source", spec)
	}
	return source, mountpoint, nil
}

// buildFS mounts the manifest first, then --mount and --prepend flags in
// the order given. Each --prepend lands in front of everything mounted so
// far, so the last one has the highest priority.
func buildFS(cfg *config, logger *slog.Logger) (*assetfs.FS, error) {
	var opts []assetfs.Option
	opts = append(opts, assetfs.WithLogger(logger))
	if cfg.verify {
		opts = append(opts, assetfs.WithVerifyChecksums(true))
	}
	if cfg.noMmap {
		opts = append(opts, assetfs.WithMemoryMap(false))
	}
	if cfg.limitSet {
		opts = append(opts, assetfs.WithMaxFileSize(cfg.maxFileSize))
	}

	var fsys *assetfs.FS
	if cfg.manifest != "" {
		m, err := assetfs.LoadManifest(cfg.manifest)
		if err != nil {
			return nil, err
		}
		fsys, err = assetfs.FromManifest(m, opts...)
		if err != nil {
			return nil, err
		}
	} else {
		fsys = assetfs.New(opts...)
	}

	add := func(specs []string, extra ...assetfs.MountOption) error {
		for _, spec := range specs {
			source, mountpoint, err := parseMountSpec(spec)
			if err != nil {
				return err
			}
			mopts := append([]assetfs.MountOption{assetfs.MountAt(mountpoint), assetfs.MountRoot(cfg.root)}, extra...)
			if err := fsys.Mount(source, mopts...); err != nil {
				return err
			}
		}
		return nil
	}
	if err := add(cfg.mounts); err != nil {
		_ = fsys.Close()
		return nil, err
	}
	if err := add(cfg.prepend, assetfs.MountPrepend()); err != nil {
		_ = fsys.Close()
		return nil, err
	}
	return fsys, nil
}

func printUsage(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(w, `assetfs: inspect and serve asset mount tables.

Usage:
  assetfs <command> [flags] [args]

Commands:
  ls [path...]       list directory entries
  stat path...       describe paths and the mount serving them
  cat path...        write file contents to stdout
  tree [path]        print the directory tree
  sum path...        print content digests
  verify [path]      read every file and report failures
  mount mountpoint   serve the table over FUSE until interrupted
  bench [prefix]     measure read throughput

Flags:
`)
	flagSet.SetOutput(w)
	flagSet.PrintDefaults()
}
