package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"xdao.co/matreg/registry"
	"xdao.co/matreg/rpc"
	"xdao.co/matreg/storage/bundle"
)

func bundleCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bundle",
		Short: "Export or import material payload bundles",
	}
	cmd.AddCommand(bundleExportCmd(g), bundleImportCmd(g))
	return cmd
}

func bundleExportCmd(g *globals) *cobra.Command {
	var (
		noIndex     bool
		skipMissing bool
	)
	cmd := &cobra.Command{
		Use:   "export <out.tar>",
		Short: "Write every registered material's payload to a TAR bundle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var materials []registry.Material
			err := g.client(cmd, func(ctx context.Context, c *rpc.Client) error {
				n, err := c.MaterialCount(ctx)
				if err != nil {
					return err
				}
				for id := uint64(0); id < n; id++ {
					m, ok, err := c.GetMaterial(ctx, id)
					if err != nil {
						return err
					}
					if ok {
						materials = append(materials, m)
					}
				}
				return nil
			})
			if err != nil {
				return &exitError{code: 1, err: err}
			}

			store, closeFn, err := g.openArchive()
			if err != nil {
				return &exitError{code: 1, err: err}
			}
			if closeFn != nil {
				defer closeFn()
			}

			f, err := os.Create(args[0])
			if err != nil {
				return &exitError{code: 1, err: err}
			}
			err = bundle.Export(f, store, materials, bundle.ExportOptions{IncludeIndex: !noIndex, SkipMissing: skipMissing})
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return &exitError{code: 1, err: err}
			}
			return emit(cmd, map[string]any{"path": args[0], "materials": len(materials)})
		},
	}
	cmd.Flags().BoolVar(&noIndex, "no-index", false, "omit index.json")
	cmd.Flags().BoolVar(&skipMissing, "skip-missing", false, "skip materials whose payload is not archived")
	return cmd
}

func bundleImportCmd(g *globals) *cobra.Command {
	var ignoreUnknown bool
	cmd := &cobra.Command{
		Use:   "import <in.tar>",
		Short: "Store the payloads of a TAR bundle in the archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeFn, err := g.openArchive()
			if err != nil {
				return &exitError{code: 1, err: err}
			}
			if closeFn != nil {
				defer closeFn()
			}

			f, err := os.Open(args[0])
			if err != nil {
				return &exitError{code: 1, err: err}
			}
			defer f.Close()

			idx, err := bundle.Import(f, store, bundle.ImportOptions{IgnoreUnknown: ignoreUnknown})
			if err != nil {
				return &exitError{code: 1, err: err}
			}
			return emit(cmd, map[string]any{"indexedPayloads": len(idx.Payloads), "indexedMaterials": len(idx.Materials)})
		},
	}
	cmd.Flags().BoolVar(&ignoreUnknown, "ignore-unknown", false, "skip unrecognized entries")
	return cmd
}
