// Copyright 2021 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Command ikv builds and queries an on-disk index from the command
// line, for manual inspection and small scripted pipelines.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/bpowers/ikv"
)

func main() {
	app := &cli.Command{
		Name:  "ikv",
		Usage: "build and query bit-packed fixed-width integer indexes",
		Commands: []*cli.Command{
			{
				Name:      "build",
				Usage:     "build an index from newline-delimited key<sep>value pairs",
				ArgsUsage: "<input> <output>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "compress",
						Usage: "emit a key-compressed image",
					},
					&cli.UintFlag{
						Name:  "page-size",
						Value: ikv.DefaultPageSize,
						Usage: "page size used to size the bucket directory",
					},
					&cli.StringFlag{
						Name:  "width",
						Value: "64",
						Usage: "integer width for keys and values: 32 or 64",
					},
				},
				Action: runBuild,
			},
			{
				Name:      "get",
				Usage:     "look up a single key in an index file",
				ArgsUsage: "<index> <key>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "compress",
						Usage: "the image at <index> is key-compressed",
					},
					&cli.StringFlag{
						Name:  "width",
						Value: "64",
						Usage: "integer width for keys and values: 32 or 64",
					},
				},
				Action: runGet,
			},
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func runBuild(ctx context.Context, cmd *cli.Command) error {
	args := cmd.Args()
	if args.Len() != 2 {
		return fmt.Errorf("usage: ikv build [flags] <input> <output>")
	}
	inputPath, outputPath := args.Get(0), args.Get(1)

	f, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("os.Open: %w", err)
	}
	defer func() { _ = f.Close() }()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	opts := []ikv.Option{
		ikv.WithLogger(logger),
		ikv.WithPageSize(int(cmd.Uint("page-size"))),
	}

	switch cmd.String("width") {
	case "32":
		return buildWidth[uint32](f, outputPath, cmd.Bool("compress"), opts)
	case "64":
		return buildWidth[uint64](f, outputPath, cmd.Bool("compress"), opts)
	default:
		return fmt.Errorf("unsupported -width %q: want 32 or 64", cmd.String("width"))
	}
}

func buildWidth[T ikv.Uint](f *os.File, outputPath string, compress bool, opts []ikv.Option) error {
	if compress {
		b := ikv.NewCompressedBuilder[T, T](0, opts...)
		if err := scanPairsInto(f, func(k, v T) { b.Add(k, v) }); err != nil {
			return err
		}
		return b.WriteFile(outputPath)
	}
	b := ikv.NewBuilder[T, T](0, opts...)
	if err := scanPairsInto(f, func(k, v T) { b.Add(k, v) }); err != nil {
		return err
	}
	return b.WriteFile(outputPath)
}

func scanPairsInto[T ikv.Uint](f *os.File, add func(k, v T)) error {
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		key, value, ok := splitPair(line)
		if !ok {
			return fmt.Errorf("line %d: expected <key>:<value>, got %q", lineNo, line)
		}
		k, err := parseUint[T](key)
		if err != nil {
			return fmt.Errorf("line %d: key: %w", lineNo, err)
		}
		v, err := parseUint[T](value)
		if err != nil {
			return fmt.Errorf("line %d: value: %w", lineNo, err)
		}
		add(k, v)
	}
	return scanner.Err()
}

func splitPair(line string) (string, string, bool) {
	i := strings.IndexByte(line, ':')
	if i < 0 {
		return "", "", false
	}
	return line[:i], line[i+1:], true
}

func parseUint[T ikv.Uint](s string) (T, error) {
	var zero T
	bitSize := 64
	if any(zero) != any(uint64(0)) {
		bitSize = 32
	}
	n, err := strconv.ParseUint(s, 10, bitSize)
	if err != nil {
		return zero, err
	}
	return T(n), nil
}

func runGet(ctx context.Context, cmd *cli.Command) error {
	args := cmd.Args()
	if args.Len() != 2 {
		return fmt.Errorf("usage: ikv get [flags] <index> <key>")
	}
	indexPath, keyStr := args.Get(0), args.Get(1)

	switch cmd.String("width") {
	case "32":
		return getWidth[uint32](indexPath, keyStr, cmd.Bool("compress"))
	case "64":
		return getWidth[uint64](indexPath, keyStr, cmd.Bool("compress"))
	default:
		return fmt.Errorf("unsupported -width %q: want 32 or 64", cmd.String("width"))
	}
}

func getWidth[T ikv.Uint](indexPath, keyStr string, compress bool) error {
	k, err := parseUint[T](keyStr)
	if err != nil {
		return fmt.Errorf("key: %w", err)
	}

	if compress {
		s, err := ikv.NewCompressedSearcherFromFile[T, T](indexPath)
		if err != nil {
			return fmt.Errorf("NewCompressedSearcherFromFile: %w", err)
		}
		defer func() { _ = s.Close() }()
		v, ok := s.Search(k)
		if !ok {
			return fmt.Errorf("key %v not found", k)
		}
		fmt.Println(v)
		return nil
	}

	s, err := ikv.NewSearcherFromFile[T, T](indexPath)
	if err != nil {
		return fmt.Errorf("NewSearcherFromFile: %w", err)
	}
	defer func() { _ = s.Close() }()
	v, ok := s.Search(k)
	if !ok {
		return fmt.Errorf("key %v not found", k)
	}
	fmt.Println(v)
	return nil
}
