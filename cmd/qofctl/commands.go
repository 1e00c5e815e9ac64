package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	qof "github.com/goliatone/go-qof"
	"github.com/goliatone/go-qof/backends/memory"
	"github.com/goliatone/go-qof/kvp"
)

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "qofctl",
		Short:         "Inspect and drive qof storage backends",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newProvidersCommand(a),
		newOptionsCommand(a),
		newConfigCommand(a),
		newLoadCommand(a),
		newCopyCommand(a),
		newQueryCommand(a),
	)
	return root
}

func newProvidersCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List registered backend providers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ACCESS\tNAME\tPARTIAL")
			for _, p := range a.registry.Providers() {
				fmt.Fprintf(w, "%s\t%s\t%t\n", p.AccessMethod, p.Name, p.PartialBook)
			}
			return w.Flush()
		},
	}
}

func newOptionsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "options <access>",
		Short: "Show the options a backend exposes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			be, err := a.backend(args[0])
			if err != nil {
				return err
			}
			if !be.ConfigExists() {
				return fmt.Errorf("%s exposes no options", be.Name())
			}
			return printOptions(cmd.OutOrStdout(), be.GetConfig())
		},
	}
}

func newConfigCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Move backend option trees to and from TOML files",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "export <access> <file>",
			Short: "Write a backend's current options to a TOML file",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				be, err := a.backend(args[0])
				if err != nil {
					return err
				}
				frame := be.GetConfig()
				if frame == nil {
					return fmt.Errorf("%s exposes no options", be.Name())
				}
				f, err := os.Create(args[1])
				if err != nil {
					return err
				}
				if err := kvp.EncodeTOML(f, frame); err != nil {
					_ = f.Close()
					return fmt.Errorf("encode %s: %w", args[1], err)
				}
				return f.Close()
			},
		},
		&cobra.Command{
			Use:   "import <access> <file>...",
			Short: "Apply TOML option files to a backend and show the result",
			Long:  "Import layers the files over the backend's current options. Later files override earlier ones.",
			Args:  cobra.MinimumNArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				be, err := a.backend(args[0])
				if err != nil {
					return err
				}
				layers := []*kvp.Frame{be.GetConfig()}
				for _, path := range args[1:] {
					frame, err := readTOML(path)
					if err != nil {
						return err
					}
					layers = append(layers, frame)
				}
				slices.Reverse(layers)
				be.LoadConfig(kvp.MergeFrames(layers...))
				if err := be.Err(); err != nil {
					return err
				}
				return printOptions(cmd.OutOrStdout(), be.GetConfig())
			},
		},
	)
	return cmd
}

func newLoadCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "load [dir] <name> <symbol>",
		Short: "Load a backend module and list the providers afterwards",
		Long:  "Load opens dir/name as a backend module and calls symbol. Without dir, QOF_BACKEND_DIR is searched.",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := a.cfg.BackendDir
			if len(args) == 3 {
				dir, args = args[0], args[1:]
			}
			if err := a.loader.Load(dir, args[0], args[1]); err != nil {
				return err
			}
			a.logger.Info("module loaded", "path", qof.BuildModulePath(dir, args[0]))
			return newProvidersCommand(a).RunE(cmd, nil)
		},
	}
}

func newCopyCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "copy <from-uri> <to-uri>",
		Short: "Load a book from one store and sync it into another",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			src, book, err := a.openBook(ctx, args[0])
			if err != nil {
				return err
			}
			defer src.SessionEnd(ctx)

			dst, err := a.open(ctx, args[1], book, true)
			if err != nil {
				return err
			}
			defer dst.SessionEnd(ctx)
			if !dst.SyncExists() {
				return fmt.Errorf("%s cannot sync", dst.Name())
			}
			dst.RunSync(ctx, book)
			if err := dst.Err(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "copied %d instances\n", book.Len(""))
			return nil
		},
	}
}

func newQueryCommand(a *app) *cobra.Command {
	var (
		language string
		limit    int
	)
	cmd := &cobra.Command{
		Use:   "query <uri> <type> [predicate]",
		Short: "Load a book and list the instances matching a predicate",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			src, book, err := a.openBook(ctx, args[0])
			if err != nil {
				return err
			}
			defer src.SessionEnd(ctx)

			query := &qof.Query{SearchFor: args[1], Language: language, Book: book, MaxResults: limit}
			if len(args) == 3 {
				query.Predicate = args[2]
			}
			searcher := memory.New(qof.WithLogger(qof.NewSlogLogger(a.logger)))
			compiled := searcher.CompileQuery(query)
			if err := searcher.Err(); err != nil {
				return err
			}
			defer searcher.FreeQuery(compiled)
			results := searcher.RunQuery(ctx, compiled)
			if err := searcher.Err(); err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, inst := range results {
				fmt.Fprintf(w, "%s\t%s\t%v\n", inst.Type, inst.GUID, inst.Slots.ToMap())
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVarP(&language, "language", "l", "", "predicate language (expr, cel, js)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum results, 0 for all")
	return cmd
}

// open starts a session on uri for book.
func (a *app) open(ctx context.Context, uri string, book *qof.Book, create bool) (*qof.Backend, error) {
	p, err := a.registry.ForURI(uri)
	if err != nil {
		return nil, err
	}
	be, err := a.backend(p.AccessMethod)
	if err != nil {
		return nil, err
	}
	be.SessionBegin(ctx, book, uri, false, create)
	if err := be.Err(); err != nil {
		return nil, err
	}
	return be, nil
}

// openBook starts a session on uri and loads a fresh book from it.
func (a *app) openBook(ctx context.Context, uri string) (*qof.Backend, *qof.Book, error) {
	book := qof.NewBook(nil)
	be, err := a.open(ctx, uri, book, false)
	if err != nil {
		return nil, nil, err
	}
	book.SetBackend(be)
	be.SetPercentage(func(message string, percent float64) {
		a.logger.Debug("load progress", "uri", uri, "step", message, "percent", percent)
	})
	be.RunLoad(ctx, book)
	if err := be.Err(); err != nil {
		be.SessionEnd(ctx)
		return nil, nil, err
	}
	return be, book, nil
}

func readTOML(path string) (*kvp.Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	frame, err := kvp.DecodeTOML(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return frame, nil
}

func printOptions(out io.Writer, frame *kvp.Frame) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTYPE\tVALUE\tDESCRIPTION")
	qof.OptionForEach(frame, func(opt qof.ConfigOption) {
		fmt.Fprintf(w, "%s\t%s\t%v\t%s\n", opt.Name, opt.Type, opt.Value, opt.Description)
	})
	return w.Flush()
}
