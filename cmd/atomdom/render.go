package main

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vango-dev/atomdom/internal/errors"
	"github.com/vango-dev/atomdom/pkg/publish"
	"github.com/vango-dev/atomdom/pkg/render"
	vdom "github.com/vango-dev/atomdom/pkg/vdom"
)

type renderOptions struct {
	pretty  bool
	keys    bool
	page    bool
	title   string
	output  string
	publish string
	name    string
	maxSize int64
}

func renderCmd() *cobra.Command {
	var opts renderOptions

	cmd := &cobra.Command{
		Use:   "render <tree.json>",
		Short: "Render a tree as HTML",
		Long: `Render a JSON tree as HTML. Component nodes render their children
without a wrapper. Use --page to wrap the result in a complete document.

Use "-" to read the tree from stdin.

--publish stores the result instead of printing it. The destination is a
directory or an s3://bucket/prefix URL; S3 credentials and region come from
the standard AWS_* environment variables.`,
		Example: `  atomdom render tree.json
  atomdom render --page -t Home -o index.html tree.json
  atomdom render --page --publish s3://my-site/pages/ tree.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), args[0], opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.pretty, "pretty", "p", false, "Indent the output")
	cmd.Flags().BoolVar(&opts.keys, "keys", false, "Write data-key attributes on keyed nodes")
	cmd.Flags().BoolVar(&opts.page, "page", false, "Wrap the output in an HTML document")
	cmd.Flags().StringVarP(&opts.title, "title", "t", "", "Document title (with --page)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Write to a file instead of stdout")
	cmd.Flags().StringVar(&opts.publish, "publish", "", "Store the result in a directory or s3://bucket/prefix")
	cmd.Flags().StringVar(&opts.name, "name", "", "Object name when publishing (default: tree file name with .html)")
	cmd.Flags().Int64Var(&opts.maxSize, "max-size", 10<<20, "Largest object to publish in bytes (0 = no limit)")

	return cmd
}

func runRender(ctx context.Context, stdin io.Reader, stdout io.Writer, path string, opts renderOptions) (err error) {
	if opts.output != "" && opts.publish != "" {
		return errors.New("E500").WithDetail("--output and --publish cannot be combined")
	}

	tree, err := readTree(vdom.NewTreeDecoder(), path, stdin)
	if err != nil {
		return err
	}

	if opts.publish != "" {
		var buf bytes.Buffer
		if err := renderTree(&buf, tree, opts); err != nil {
			return err
		}
		return publishPage(ctx, stdout, &buf, path, opts)
	}

	w := stdout
	if opts.output != "" {
		f, ferr := os.Create(opts.output)
		if ferr != nil {
			return errors.New("E500").WithDetail("cannot create " + opts.output).Wrap(ferr)
		}
		defer func() {
			if cerr := f.Close(); err == nil {
				err = cerr
			}
		}()
		w = f
	}
	bw := bufio.NewWriter(w)
	if err := renderTree(bw, tree, opts); err != nil {
		return err
	}
	return bw.Flush()
}

func renderTree(w io.Writer, tree *vdom.VNode, opts renderOptions) error {
	r := render.New(render.Config{Pretty: opts.pretty, Keys: opts.keys})
	var err error
	if opts.page {
		err = r.RenderPage(w, render.Page{Title: opts.title, Body: tree})
	} else {
		err = r.RenderToWriter(w, tree)
	}
	if err != nil {
		return errors.New("E202").Wrap(err)
	}
	return nil
}

func publishPage(ctx context.Context, w io.Writer, body io.Reader, path string, opts renderOptions) error {
	name := opts.name
	if name == "" {
		name = publishName(path)
	}

	store, err := publish.Open(opts.publish, opts.maxSize)
	if err != nil {
		return errors.New("E502").WithDetail("cannot open " + opts.publish).Wrap(err)
	}
	obj, err := store.Put(ctx, name, publish.ContentTypeHTML, body)
	if err != nil {
		return errors.New("E502").WithDetail("cannot publish " + name).Wrap(err)
	}
	success(w, "published %s (%d bytes)", obj.Location, obj.Size)
	return nil
}

// publishName derives an object name from the tree path.
func publishName(path string) string {
	if path == "-" {
		return "index.html"
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".html"
}
