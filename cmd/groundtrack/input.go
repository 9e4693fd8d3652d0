package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/star/groundtrack/internal/tle"
)

// loadElementSet reads a TLE from an http(s) URL, "-" for stdin, or a file.
func loadElementSet(ctx context.Context, input string, g tle.Gravity) (*tle.ElementSet, error) {
	if strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://") {
		return tle.NewFetcher(input, logger).FetchElementSet(ctx, g)
	}

	var r io.Reader
	if input == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(input)
		if err != nil {
			return nil, fmt.Errorf("opening TLE: %w", err)
		}
		defer f.Close()
		r = f
	}
	return tle.ReadElementSet(r, g)
}

// openOutput returns stdout for "" and "-", otherwise a created file.
func openOutput(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopCloser{os.Stdout}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating output: %w", err)
	}
	return f, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
