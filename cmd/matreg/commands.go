package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"xdao.co/matreg/cidutil"
	"xdao.co/matreg/model"
	"xdao.co/matreg/registry"
	"xdao.co/matreg/rpc"
)

func hashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash <file>",
		Short: "Print the content hash and CID of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := os.ReadFile(args[0])
			if err != nil {
				return &exitError{code: 1, err: err}
			}
			return emit(cmd, model.FromHash(cidutil.Sum(b), len(b)))
		},
	}
}

func cidCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cid <hex|cid>",
		Short: "Convert between hex content hashes and CIDs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := cidutil.Parse(args[0])
			if err != nil {
				return &exitError{code: 1, err: err}
			}
			return emit(cmd, model.FromHash(h, 0))
		},
	}
}

func setAuthorityCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "set-authority <principal>",
		Short: "Set the registry authority (once)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := g.requireCaller(); err != nil {
				return err
			}
			return g.client(cmd, func(ctx context.Context, c *rpc.Client) error {
				err := c.SetAuthority(ctx, registry.Principal(args[0]))
				return result(cmd, map[string]string{"authority": args[0]}, err)
			})
		},
	}
}

func setFeeCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "set-fee <amount>",
		Short: "Set the registration fee (authority only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fee, err := parseUint("fee", args[0])
			if err != nil {
				return err
			}
			if err := g.requireCaller(); err != nil {
				return err
			}
			return g.client(cmd, func(ctx context.Context, c *rpc.Client) error {
				return result(cmd, map[string]uint64{"registrationFee": fee}, c.SetRegistrationFee(ctx, fee))
			})
		},
	}
}

func setMaxCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "set-max <count>",
		Short: "Set the material capacity (authority only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, err := parseUint("count", args[0])
			if err != nil {
				return err
			}
			if err := g.requireCaller(); err != nil {
				return err
			}
			return g.client(cmd, func(ctx context.Context, c *rpc.Client) error {
				return result(cmd, map[string]uint64{"maxMaterials": limit}, c.SetMaxMaterials(ctx, limit))
			})
		},
	}
}

func registerCmd(g *globals) *cobra.Command {
	var (
		req      model.RegisterRequest
		file     string
		jsonPath string
		upload   bool
	)
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a material",
		Long: "Register a material by --hash, by the hash of --file, or from a JSON request (--json).\n" +
			"With --upload the daemon archives the file in the same commit that registers it.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := g.requireCaller(); err != nil {
				return err
			}
			if jsonPath != "" {
				b, err := os.ReadFile(jsonPath)
				if err != nil {
					return &exitError{code: 1, err: err}
				}
				if err := json.Unmarshal(b, &req); err != nil {
					return fmt.Errorf("--json: %w", err)
				}
			}

			var payload []byte
			if file != "" {
				b, err := os.ReadFile(file)
				if err != nil {
					return &exitError{code: 1, err: err}
				}
				payload = b
				if req.Hash == "" {
					req.Hash = cidutil.Sum(b).String()
				}
			}
			if upload && payload == nil {
				return errors.New("--upload needs --file")
			}
			reg, err := req.Registration()
			if err != nil {
				return err
			}

			return g.client(cmd, func(ctx context.Context, c *rpc.Client) error {
				if upload {
					rcpt, err := c.ArchiveAndRegister(ctx, payload, reg)
					return result(cmd, model.FromReceipt(rcpt), err)
				}
				rcpt, err := c.RegisterMaterial(ctx, reg)
				return result(cmd, model.FromReceipt(rcpt), err)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.Hash, "hash", "", "content hash (64 hex chars)")
	f.StringVar(&file, "file", "", "payload file; its SHA-256 is the content hash")
	f.StringVar(&jsonPath, "json", "", "read the registration from a JSON file")
	f.BoolVar(&upload, "upload", false, "send --file to the daemon, which archives it with the registration")
	f.StringVar(&req.Title, "title", "", "title (1-100 characters)")
	f.StringVar(&req.Description, "description", "", "description (up to 500 characters)")
	f.StringVar(&req.Category, "category", "", "category (1-50 characters)")
	f.StringVar(&req.Language, "language", "", "language (1-20 characters)")
	f.StringVar(&req.Format, "format", "", "PDF, VIDEO, TEXT or AUDIO")
	return cmd
}

func getCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a material by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUint("id", args[0])
			if err != nil {
				return err
			}
			return g.client(cmd, func(ctx context.Context, c *rpc.Client) error {
				m, ok, err := c.GetMaterial(ctx, id)
				return result(cmd, model.FromLookup(m, ok), err)
			})
		},
	}
}

func getByHashCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "get-by-hash <hex|cid>",
		Short: "Show a material by content hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := cidutil.Parse(args[0])
			if err != nil {
				return err
			}
			return g.client(cmd, func(ctx context.Context, c *rpc.Client) error {
				m, ok, err := c.GetMaterialByHash(ctx, h)
				return result(cmd, model.FromLookup(m, ok), err)
			})
		},
	}
}

func verifyCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <hex|cid>",
		Short: "Verify that a content hash is registered",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := cidutil.Parse(args[0])
			if err != nil {
				return err
			}
			return g.client(cmd, func(ctx context.Context, c *rpc.Client) error {
				m, err := c.VerifyMaterial(ctx, h)
				return result(cmd, model.FromMaterial(m), err)
			})
		},
	}
}

func updateCmd(g *globals) *cobra.Command {
	var title, description string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Replace the title and description of a material (author only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUint("id", args[0])
			if err != nil {
				return err
			}
			if err := g.requireCaller(); err != nil {
				return err
			}
			return g.client(cmd, func(ctx context.Context, c *rpc.Client) error {
				return result(cmd, map[string]uint64{"id": id}, c.UpdateMaterial(ctx, id, title, description))
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&description, "description", "", "new description")
	return cmd
}

func deactivateCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate <id>",
		Short: "Deactivate a material (author only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUint("id", args[0])
			if err != nil {
				return err
			}
			if err := g.requireCaller(); err != nil {
				return err
			}
			return g.client(cmd, func(ctx context.Context, c *rpc.Client) error {
				return result(cmd, map[string]uint64{"id": id}, c.DeactivateMaterial(ctx, id))
			})
		},
	}
}

func countCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print the number of materials ever registered",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.client(cmd, func(ctx context.Context, c *rpc.Client) error {
				n, err := c.MaterialCount(ctx)
				return result(cmd, map[string]uint64{"count": n}, err)
			})
		},
	}
}

func configCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the registry configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.client(cmd, func(ctx context.Context, c *rpc.Client) error {
				cfg, err := c.Config(ctx)
				return result(cmd, model.FromConfig(cfg), err)
			})
		},
	}
}
