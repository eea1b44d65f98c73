package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/opencontainers/go-digest"
	"golang.org/x/sync/errgroup"

	"github.com/meigma/assetfs"
	"github.com/meigma/assetfs/fuse"
)

// env carries what every command needs.
type env struct {
	cfg    *config
	fsys   *assetfs.FS
	out    io.Writer
	logger *slog.Logger
}

type command func(ctx context.Context, e *env) error

var commands = map[string]command{
	"ls":     runList,
	"stat":   runStat,
	"cat":    runCat,
	"tree":   runTree,
	"sum":    runSum,
	"verify": runVerify,
	"mount":  runMount,
	"bench":  runBench,
}

func commandNames() []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// errVerifyFailed is returned by verify when any file could not be read.
var errVerifyFailed = errors.New("verification failed")

func runList(_ context.Context, e *env) error {
	paths := e.cfg.args
	if len(paths) == 0 {
		paths = []string{""}
	}
	for _, dir := range paths {
		info, err := e.fsys.Stat(dir)
		if err != nil {
			return err
		}
		if !info.IsDir() {
			printEntry(e, dir, info)
			continue
		}
		names := e.fsys.Names(dir)
		slices.Sort(names)
		if len(paths) > 1 {
			fmt.Fprintf(e.out, "%s:\n", displayPath(dir))
		}
		for _, name := range names {
			info, err := e.fsys.Stat(joinPath(dir, name))
			if err != nil {
				return err
			}
			printEntry(e, name, info)
		}
	}
	return nil
}

func printEntry(e *env, name string, info assetfs.FileInfo) {
	if !e.cfg.long {
		if info.IsDir() {
			name += "/"
		}
		fmt.Fprintln(e.out, name)
		return
	}
	size := "-"
	if !info.IsDir() {
		size = humanize.IBytes(info.Size)
	}
	fmt.Fprintf(e.out, "%-9s %10s  %s  %s\n",
		info.Type, size, info.ModTime().UTC().Format("2006-01-02 15:04:05"), name)
}

func runStat(_ context.Context, e *env) error {
	if len(e.cfg.args) == 0 {
		return errors.New("stat: path required")
	}
	for _, p := range e.cfg.args {
		info, err := e.fsys.Stat(p)
		if err != nil {
			return err
		}
		source, err := e.fsys.RealDirectory(p)
		if err != nil {
			return err
		}
		fmt.Fprintf(e.out, "path:     %s\n", displayPath(p))
		fmt.Fprintf(e.out, "type:     %s\n", info.Type)
		fmt.Fprintf(e.out, "size:     %d (%s)\n", info.Size, humanize.IBytes(info.Size))
		fmt.Fprintf(e.out, "modified: %s (%s)\n",
			info.ModTime().UTC().Format("2006-01-02 15:04:05 MST"), humanize.Time(info.ModTime()))
		fmt.Fprintf(e.out, "source:   %s\n", source)
	}
	return nil
}

func runCat(_ context.Context, e *env) error {
	if len(e.cfg.args) == 0 {
		return errors.New("cat: path required")
	}
	for _, p := range e.cfg.args {
		data, err := e.fsys.ReadFile(p)
		if err != nil {
			return err
		}
		if _, err := e.out.Write(data); err != nil {
			return err
		}
	}
	return nil
}

func runTree(_ context.Context, e *env) error {
	root := ""
	if len(e.cfg.args) > 0 {
		root = e.cfg.args[0]
	}
	if !e.fsys.IsDirectory(root) {
		return fmt.Errorf("tree %s: not a directory", displayPath(root))
	}
	fmt.Fprintln(e.out, displayPath(root))
	var dirs, files int
	var walk func(dir, indent string)
	walk = func(dir, indent string) {
		names := e.fsys.Names(dir)
		slices.Sort(names)
		for i, name := range names {
			branch, next := "├── ", "│   "
			if i == len(names)-1 {
				branch, next = "└── ", "    "
			}
			child := joinPath(dir, name)
			if e.fsys.IsDirectory(child) {
				dirs++
				fmt.Fprintf(e.out, "%s%s%s/\n", indent, branch, name)
				walk(child, indent+next)
				continue
			}
			files++
			fmt.Fprintf(e.out, "%s%s%s\n", indent, branch, name)
		}
	}
	walk(root, "")
	fmt.Fprintf(e.out, "\n%d directories, %d files\n", dirs, files)
	return nil
}

func runSum(_ context.Context, e *env) error {
	if len(e.cfg.args) == 0 {
		return errors.New("sum: path required")
	}
	alg := digest.Algorithm(e.cfg.algorithm)
	if !alg.Available() {
		return fmt.Errorf("sum: unsupported algorithm %q", e.cfg.algorithm)
	}
	for _, p := range e.cfg.args {
		data, err := e.fsys.ReadFile(p)
		if err != nil {
			return err
		}
		fmt.Fprintf(e.out, "%s  %s\n", alg.FromBytes(data), p)
	}
	return nil
}

// runVerify reads every file under the given directory with up to
// cfg.jobs reads in flight. Failures are reported and counted rather than
// stopping the walk.
func runVerify(ctx context.Context, e *env) error {
	root := "."
	if len(e.cfg.args) > 0 && e.cfg.args[0] != "" {
		root = strings.Trim(e.cfg.args[0], "/")
	}

	var files, failed atomic.Int64
	var bytes atomic.Uint64
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.jobs)
	walkErr := fs.WalkDir(e.fsys.IOFS(), root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		g.Go(func() error {
			data, err := e.fsys.ReadFile(p)
			files.Add(1)
			if err != nil {
				failed.Add(1)
				mu.Lock()
				fmt.Fprintf(e.out, "FAIL %s: %v\n", p, err)
				mu.Unlock()
				return nil
			}
			bytes.Add(uint64(len(data)))
			return nil
		})
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	if walkErr != nil {
		return walkErr
	}

	fmt.Fprintf(e.out, "%d files, %s read, %d failed\n",
		files.Load(), humanize.IBytes(bytes.Load()), failed.Load())
	if failed.Load() > 0 {
		return fmt.Errorf("%w: %d of %d files", errVerifyFailed, failed.Load(), files.Load())
	}
	return nil
}

func runMount(ctx context.Context, e *env) error {
	if len(e.cfg.args) != 1 {
		return errors.New("mount: exactly one mountpoint required")
	}
	server, err := fuse.Mount(fuse.Options{
		Mountpoint: e.cfg.args[0],
		FS:         e.fsys,
		AllowOther: e.cfg.allowOther,
		Logger:     e.logger,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "mounted at %s; interrupt to unmount\n", e.cfg.args[0])
	<-ctx.Done()
	return server.Unmount()
}

func joinPath(dir, name string) string {
	if dir == "" {
		return name
	}
	return strings.TrimSuffix(dir, "/") + "/" + name
}

func displayPath(p string) string {
	if p == "" {
		return "."
	}
	return p
}
