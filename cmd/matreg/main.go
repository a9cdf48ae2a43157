// Command matreg is the material registry client.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"xdao.co/matreg/model"
	"xdao.co/matreg/registry"
	"xdao.co/matreg/rpc"
	"xdao.co/matreg/storage"
	"xdao.co/matreg/storage/backends"
	"xdao.co/matreg/storage/grpcstore"

	_ "xdao.co/matreg/storage/ipfs"
	_ "xdao.co/matreg/storage/localfs"
	_ "xdao.co/matreg/storage/memstore"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// exitError carries a process exit code. A nil err means the failure was
// already reported on stdout.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit %d", e.code)
	}
	return e.err.Error()
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	root := newRootCmd(out, errOut)
	root.SetArgs(args)
	err := root.Execute()
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintln(errOut, ee.err)
		}
		return ee.code
	}
	fmt.Fprintln(errOut, err)
	return 2
}

type globals struct {
	addr    string
	caller  string
	timeout time.Duration
	archive string
}

func newRootCmd(out io.Writer, errOut io.Writer) *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:           "matreg",
		Short:         "Material registry client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&g.addr, "addr", "127.0.0.1:7070", "matregd gRPC address")
	pf.StringVar(&g.caller, "caller", os.Getenv("MATREG_CALLER"), "caller principal for mutating calls (default $MATREG_CALLER)")
	pf.DurationVar(&g.timeout, "timeout", 10*time.Second, "per-command timeout")
	pf.StringVar(&g.archive, "archive", "", "archive backend for payload commands (default: the daemon's archive at --addr)")
	backends.RegisterFlags(pf, backends.UsageCLI)

	root.AddCommand(
		hashCmd(),
		cidCmd(),
		setAuthorityCmd(g),
		setFeeCmd(g),
		setMaxCmd(g),
		registerCmd(g),
		getCmd(g),
		getByHashCmd(g),
		verifyCmd(g),
		updateCmd(g),
		deactivateCmd(g),
		countCmd(g),
		configCmd(g),
		bundleCmd(g),
		backendsCmd(),
	)
	return root
}

func emit(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// result prints the outcome of a registry call. Registry rejections are
// printed as a failed response and exit 1; other errors go to stderr.
func result(cmd *cobra.Command, v any, err error) error {
	if err == nil {
		return emit(cmd, model.OK(v))
	}
	var re *registry.Error
	if errors.As(err, &re) {
		if perr := emit(cmd, model.Failed(err)); perr != nil {
			return perr
		}
		return &exitError{code: 1}
	}
	return &exitError{code: 1, err: err}
}

func (g *globals) client(cmd *cobra.Command, fn func(ctx context.Context, c *rpc.Client) error) error {
	c, err := rpc.Dial(g.addr, registry.Principal(g.caller))
	if err != nil {
		return &exitError{code: 1, err: err}
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), g.timeout)
	defer cancel()
	return fn(ctx, c)
}

func (g *globals) requireCaller() error {
	if g.caller == "" {
		return errors.New("--caller is required")
	}
	return nil
}

// openArchive opens the --archive backend, or the daemon's archive service.
func (g *globals) openArchive() (storage.Store, func() error, error) {
	if g.archive != "" {
		return backends.Open(g.archive, backends.UsageCLI)
	}
	c, err := grpcstore.Dial(g.addr, grpcstore.DialOptions{})
	if err != nil {
		return nil, nil, err
	}
	c.Timeout = g.timeout
	return c, c.Close, nil
}

func parseUint(name, s string) (uint64, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, s)
	}
	return n, nil
}

func backendsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List archive backends linked into this binary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, b := range backends.List(backends.UsageCLI) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", b.Name, b.Description)
			}
			return nil
		},
	}
}
