package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vango-dev/atomdom/internal/errors"
	vdom "github.com/vango-dev/atomdom/pkg/vdom"
	"github.com/vango-dev/atomdom/pkg/vtest"
)

func diffCmd() *cobra.Command {
	var (
		asJSON   bool
		showTree bool
	)

	cmd := &cobra.Command{
		Use:   "diff <prev.json> <next.json>",
		Short: "Print the patch script between two trees",
		Long: `Mount prev into an in-memory target, reconcile it against next and
print the patches that were applied. The resulting target is checked
against a fresh build of next.

Use "-" for either path to read it from stdin.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), args[0], args[1], asJSON, showTree)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print patches as JSON")
	cmd.Flags().BoolVar(&showTree, "tree", false, "Print the resulting target tree")

	return cmd
}

func runDiff(ctx context.Context, stdin io.Reader, w io.Writer, prevPath, nextPath string, asJSON, showTree bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if prevPath == "-" && nextPath == "-" {
		return errors.New("E500").WithDetail("only one tree can be read from stdin")
	}

	dec := vdom.NewTreeDecoder()
	prev, err := readTree(dec, prevPath, stdin)
	if err != nil {
		return err
	}
	next, err := readTree(dec, nextPath, stdin)
	if err != nil {
		return err
	}

	var duplicates []error
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	reconciler := vdom.NewReconciler(
		vdom.WithDiffLogger(quiet),
		vdom.WithDiffErrorHandler(func(err error) { duplicates = append(duplicates, err) }),
	)
	backend := vtest.NewBackend()
	root := vdom.NewRoot(backend, backend.Container(),
		vdom.WithReconciler(reconciler),
		vdom.WithRootLogger(quiet),
	)

	if _, err := root.Commit(ctx, prev); err != nil {
		return errors.New("E300").WithDetail("mounting " + prevPath).Wrap(err)
	}
	duplicates = duplicates[:0]

	patches, err := root.Commit(ctx, next)
	if err != nil {
		return errors.New("E300").Wrap(err)
	}
	for _, dup := range duplicates {
		warn(w, "%s", errors.New("E203").Wrap(dup).Error())
	}

	if asJSON {
		out := make([]patchJSON, 0, len(patches))
		for _, p := range patches {
			pj, err := toPatchJSON(p)
			if err != nil {
				return errors.New("E202").Wrap(err)
			}
			out = append(out, pj)
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return err
		}
	} else {
		for _, p := range patches {
			fmt.Fprintln(w, describePatch(p))
		}
	}

	if mismatch := vtest.Mismatch(backend.Tree(), vtest.Build(next)); mismatch != "" {
		return errors.New("E300").WithDetail("target does not match next: " + mismatch)
	}

	if !asJSON {
		success(w, "%d patches (%s)", len(patches), summarizeOps(vdom.CountOps(patches)))
	}
	if showTree {
		fmt.Fprintln(w, backend.Tree())
	}
	return nil
}

// summarizeOps formats per-op counts in op order.
func summarizeOps(counts map[vdom.PatchOp]int) string {
	if len(counts) == 0 {
		return "none"
	}
	ops := make([]vdom.PatchOp, 0, len(counts))
	for op := range counts {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })

	parts := make([]string, len(ops))
	for i, op := range ops {
		parts[i] = fmt.Sprintf("%s %d", op, counts[op])
	}
	return strings.Join(parts, ", ")
}
