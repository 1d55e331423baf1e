// Copyright (c) 2021 Siemens AG
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of
// the Software, and to permit persons to whom the Software is furnished to do so,
// subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS
// FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR
// COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
// IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
// CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
//
// Author(s): Jonas Plum

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/forensicanalysis/browserartifacts"
	"github.com/forensicanalysis/browserartifacts/extractor"
	"github.com/forensicanalysis/browserartifacts/record"
	"github.com/forensicanalysis/browserartifacts/schema"
	"github.com/forensicanalysis/browserartifacts/store"
)

func extractCommand(a *app) *cobra.Command {
	var family, from string
	extractCmd := &cobra.Command{
		Use:   "extract <file or directory>...",
		Short: "Extract browser artifacts into a forensicstore",
		Long: `Extract reads browser history, bookmark, download, favicon, form and
cache databases, normalizes their timestamps, merges duplicates and writes
the records into a forensicstore. Directories are searched for known
browser files. With --from the sources archived in another forensicstore
are extracted again.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if from == "" {
				if len(args) == 0 {
					return errors.New("requires at least one file or directory")
				}
				return a.extract(cmd.Context(), cmd.OutOrStdout(), afero.NewReadOnlyFs(afero.NewOsFs()), args, family)
			}

			fsys, err := archiveFs(from)
			if err != nil {
				return err
			}
			if len(args) == 0 {
				args = []string{"/"}
			}
			return a.extract(cmd.Context(), cmd.OutOrStdout(), fsys, args, family)
		},
	}
	flags := extractCmd.Flags()
	flags.StringP("output", "o", "", "output forensicstore (default: browser.forensicstore)")
	flags.IntP("workers", "w", 0, "number of concurrent extractions")
	flags.Bool("archive", false, "copy the source files into the forensicstore")
	flags.String("metrics-file", "", "write prometheus metrics in text format to this file")
	flags.String("temp-dir", "", "directory for working copies")
	flags.StringVar(&family, "family", "", "browser family of all sources, e.g. chromium (default: inferred)")
	flags.StringVar(&from, "from", "", "read the sources archived in this forensicstore")
	bind(a.v, flags, map[string]string{
		"output":       "output",
		"workers":      "workers",
		"archive":      "archive",
		"metrics_file": "metrics-file",
		"temp_dir":     "temp-dir",
	})
	return extractCmd
}

func (a *app) extract(ctx context.Context, out io.Writer, fsys afero.Fs, args []string, familyName string) error { // nolint:funlen,gocyclo
	if ctx == nil {
		ctx = context.Background()
	}
	var family record.Family
	if familyName != "" {
		var err error
		if family, err = record.ParseFamily(familyName); err != nil {
			return err
		}
	}

	sources, err := collectSources(fsys, args, family)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		return errors.New("no browser artifact sources found")
	}

	normalizer, err := a.cfg.Normalizer()
	if err != nil {
		return err
	}
	var registry *prometheus.Registry
	var metrics *browserartifacts.Metrics
	if a.cfg.MetricsFile != "" {
		registry = prometheus.NewRegistry()
		metrics = browserartifacts.NewMetrics(registry)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	p := &browserartifacts.Pipeline{
		Fs:      fsys,
		Workers: a.cfg.Workers,
		Logger:  a.logger,
		Metrics: metrics,
		Extractor: extractor.Options{
			Mapper:    schema.New(normalizer),
			Logger:    a.logger,
			TempDir:   a.cfg.TempDir,
			MaxMemory: a.cfg.MaxMemory,
		},
	}
	result, runErr := p.Run(ctx, sources)
	if runErr != nil && !errors.Is(runErr, context.Canceled) && !errors.Is(runErr, browserartifacts.ErrNoData) {
		return runErr
	}

	s, err := store.New(a.cfg.Output)
	if err != nil {
		return errors.Wrapf(err, "could not create %s", a.cfg.Output)
	}
	if err := a.write(s, fsys, result); err != nil {
		s.Close() // nolint:errcheck
		return err
	}
	if err := s.Close(); err != nil {
		return err
	}

	if registry != nil {
		if err := browserartifacts.WriteMetrics(a.cfg.MetricsFile, registry); err != nil {
			return errors.Wrap(err, "could not write metrics")
		}
	}

	for _, failure := range result.Stats.Failures {
		a.logger.Warn("extraction failure", zap.Stringer("kind", failure.Kind),
			zap.String("source", failure.SourcePath), zap.String("query", failure.Query), zap.String("reason", failure.Reason))
	}
	fmt.Fprintf(out, "%d records from %d of %d sources written to %s\n",
		len(result.Records), result.Readable, len(sources), a.cfg.Output)
	return runErr
}

func (a *app) write(s *store.Store, fsys afero.Fs, result *browserartifacts.Result) error {
	if err := browserartifacts.Publish(result, s); err != nil {
		return err
	}
	for _, status := range result.Sources {
		source := store.Source{Path: status.Path, Readable: status.Readable}
		if a.cfg.Archive && status.Ran {
			archived, err := s.Archive(fsys, status.Path)
			if err != nil {
				a.logger.Warn("could not archive source", zap.String("path", status.Path), zap.Error(err))
			} else {
				source = archived
				source.Readable = status.Readable
			}
		}
		if status.Family.Valid() {
			source.Family = status.Family.String()
		}
		if _, err := s.AddSource(source); err != nil {
			return err
		}
	}
	return nil
}

func archiveFs(storeName string) (afero.Fs, error) {
	s, err := store.Open(storeName)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	return s.ArchiveFs()
}

// collectSources turns the arguments into sources. Directories are searched
// for known browser files.
func collectSources(fsys afero.Fs, args []string, family record.Family) ([]browserartifacts.Source, error) {
	var sources []browserartifacts.Source
	for _, arg := range args {
		info, err := fsys.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			sources = append(sources, browserartifacts.Source{Path: arg, Family: family})
			continue
		}
		found, err := browserartifacts.Discover(fsys, arg)
		if err != nil {
			return nil, err
		}
		for _, source := range found {
			if family != 0 {
				source.Family = family
			}
			sources = append(sources, source)
		}
	}
	return sources, nil
}
