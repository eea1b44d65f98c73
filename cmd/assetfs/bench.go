package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math/rand" //nolint:gosec // intentional use for reproducible benchmarks
	"os"
	"runtime"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

//nolint:unused // sink variable prevents compiler optimizations in benchmarks
var sinkBytes []byte

type benchStats struct {
	ops     int
	bytes   uint64
	elapsed time.Duration
}

// runBench reads files under a prefix repeatedly and reports throughput.
func runBench(ctx context.Context, e *env) error {
	prefix := "."
	if len(e.cfg.args) > 0 && e.cfg.args[0] != "" {
		prefix = strings.Trim(e.cfg.args[0], "/")
	}

	var paths []string
	err := fs.WalkDir(e.fsys.IOFS(), prefix, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			paths = append(paths, p)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("bench: no files under %s", prefix)
	}

	if e.cfg.cpuProfile != "" {
		cpuFile, err := os.Create(e.cfg.cpuProfile)
		if err != nil {
			return err
		}
		if err := pprof.StartCPUProfile(cpuFile); err != nil {
			_ = cpuFile.Close()
			return err
		}
		defer func() {
			pprof.StopCPUProfile()
			_ = cpuFile.Close()
		}()
	}

	stats, err := benchReads(ctx, e, paths)
	if err != nil {
		return err
	}

	if e.cfg.memProfile != "" {
		runtime.GC()
		f, err := os.Create(e.cfg.memProfile)
		if err != nil {
			return err
		}
		if err := pprof.WriteHeapProfile(f); err != nil {
			_ = f.Close()
			return err
		}
		_ = f.Close()
	}

	perSecond := uint64(float64(stats.bytes) / stats.elapsed.Seconds())
	fmt.Fprintf(e.out, "files=%d ops=%d bytes=%s elapsed=%s throughput=%s/s\n",
		len(paths),
		stats.ops,
		humanize.IBytes(stats.bytes),
		stats.elapsed.Round(time.Millisecond),
		humanize.IBytes(perSecond),
	)
	return nil
}

func benchReads(ctx context.Context, e *env, paths []string) (benchStats, error) {
	start := time.Now()
	var stats benchStats

	shouldContinue := func() bool {
		if ctx.Err() != nil {
			return false
		}
		if e.cfg.iterations > 0 {
			return stats.ops < e.cfg.iterations
		}
		return time.Since(start) < e.cfg.duration
	}

	rng := rand.New(rand.NewSource(e.cfg.randomSeed)) //nolint:gosec // intentional for reproducible benchmarks
	for shouldContinue() {
		path := pickPath(paths, stats.ops, rng, e.cfg.readRandom)
		content, err := e.fsys.ReadFile(path)
		if err != nil {
			return benchStats{}, err
		}
		sinkBytes = content
		stats.bytes += uint64(len(content))
		stats.ops++
	}
	stats.elapsed = time.Since(start)
	if stats.ops == 0 {
		return benchStats{}, errors.New("bench: interrupted before the first read")
	}
	return stats, nil
}

func pickPath(paths []string, idx int, rng *rand.Rand, random bool) string {
	if random {
		return paths[rng.Intn(len(paths))]
	}
	return paths[idx%len(paths)]
}
