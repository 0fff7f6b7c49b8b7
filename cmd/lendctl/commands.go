package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mkrupp/homecase-lending/internal/domain"
	context_ "github.com/mkrupp/homecase-lending/internal/infra/context"
	"github.com/mkrupp/homecase-lending/internal/repo/lending"
	"github.com/mkrupp/homecase-lending/internal/svc/authsvc"
	"github.com/mkrupp/homecase-lending/internal/svc/catalogsvc"
	"github.com/mkrupp/homecase-lending/internal/svc/ledgersvc"
)

// ErrPasswordMismatch is returned when the password confirmation differs.
var ErrPasswordMismatch = errors.New("passwords do not match")

// operator is the principal every command runs as.
//
//nolint:gochecknoglobals
var operator = domain.Principal{Name: "lendctl", Role: domain.RoleAdmin, Active: true}

type configLoader func(ctx context.Context) (Config, error)

// app holds what the commands share. It is populated before any subcommand runs.
type app struct {
	in   io.Reader
	out  io.Writer
	json bool

	repo    lending.Repository
	auth    *authsvc.AuthService
	catalog *catalogsvc.CatalogService
	ledger  *ledgersvc.LedgerService
}

// run executes lendctl with args and releases the store afterwards, whether
// or not the command succeeded.
func run(ctx context.Context, load configLoader, args []string, in io.Reader, out io.Writer) error {
	a := &app{in: in, out: out}
	root := a.rootCommand(load)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if cerr := a.close(); cerr != nil {
		err = errors.Join(err, cerr)
	}

	return err
}

func (a *app) rootCommand(load configLoader) *cobra.Command {
	//nolint:exhaustruct
	root := &cobra.Command{
		Use:           "lendctl",
		Short:         "Operate the lending store directly",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.open(cmd.Context(), load)
		},
	}

	root.SetIn(a.in)
	root.SetOut(a.out)
	root.PersistentFlags().BoolVar(&a.json, "json", false, "print results as JSON")

	root.AddCommand(
		a.accountCommand(),
		a.itemCommand(),
		a.loanCommand(),
	)

	return root
}

func (a *app) open(ctx context.Context, load configLoader) error {
	cfg, err := load(ctx)
	if err != nil {
		return err
	}

	factory, err := lending.NewRepositoryFactory(cfg.Store)
	if err != nil {
		return fmt.Errorf("new repository factory: %w", err)
	}

	a.repo, err = factory(ctx)
	if err != nil {
		return fmt.Errorf("open repository: %w", err)
	}

	a.auth = authsvc.NewAuthService(a.repo, cfg.Auth)
	a.ledger = ledgersvc.NewLedgerService(a.repo)
	a.catalog = catalogsvc.NewCatalogService(a.repo, a.ledger)

	return nil
}

func (a *app) close() error {
	if a.repo == nil {
		return nil
	}

	err := a.repo.Close()
	a.repo = nil

	if err != nil {
		return fmt.Errorf("close repository: %w", err)
	}

	return nil
}

func operatorContext(cmd *cobra.Command) context.Context {
	return context_.WithPrincipal(cmd.Context(), operator)
}

// print writes v as JSON or, in table mode, as the rows returned by table.
func (a *app) print(v any, header string, rows func(w io.Writer)) error {
	if a.json {
		enc := jsoniter.NewEncoder(a.out)
		enc.SetIndent("", "  ")

		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode: %w", err)
		}

		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, header)
	rows(tw)

	if err := tw.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}

	return nil
}

// readPassword prompts on a terminal without echo, or reads one line when
// stdin is not a terminal.
func (a *app) readPassword(prompt string) (string, error) {
	if f, ok := a.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(a.out, prompt)

		secret, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(a.out)

		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}

		return string(secret), nil
	}

	line, err := bufio.NewReader(a.in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}

	return strings.TrimRight(line, "\r\n"), nil
}

func formatTime(unix int64) string {
	return time.Unix(unix, 0).UTC().Format(time.RFC3339)
}

func (a *app) accountCommand() *cobra.Command {
	//nolint:exhaustruct
	cmd := &cobra.Command{Use: "account", Short: "Manage accounts"}

	var (
		name  string
		admin bool
	)

	//nolint:exhaustruct
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an account, reading the password from the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret, err := a.readPassword("Password: ")
			if err != nil {
				return err
			}

			if f, ok := a.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
				confirm, err := a.readPassword("Repeat password: ")
				if err != nil {
					return err
				}

				if confirm != secret {
					return ErrPasswordMismatch
				}
			}

			role := domain.RoleMember
			if admin {
				role = domain.RoleAdmin
			}

			id, err := a.auth.CreateAccount(cmd.Context(), name, secret, role)
			if err != nil {
				return err //nolint:wrapcheck
			}

			return a.print(domain.AccountIDResponse{AccountID: id}, "ID", func(w io.Writer) {
				fmt.Fprintln(w, id)
			})
		},
	}
	create.Flags().StringVar(&name, "name", "", "account name")
	create.Flags().BoolVar(&admin, "admin", false, "grant the administrator role")
	_ = create.MarkFlagRequired("name")

	//nolint:exhaustruct
	list := &cobra.Command{
		Use:   "list",
		Short: "List active accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			accounts, err := a.auth.ListActiveAccounts(operatorContext(cmd))
			if err != nil {
				return err //nolint:wrapcheck
			}

			return a.print(accounts, "ID\tNAME\tROLE\tCREATED", func(w io.Writer) {
				for _, acc := range accounts {
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", acc.ID, acc.Name, acc.Role, formatTime(acc.CreatedAt))
				}
			})
		},
	}

	//nolint:exhaustruct
	deactivate := &cobra.Command{
		Use:   "deactivate ID",
		Short: "Deactivate an account; its open loans stay open",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := domain.ParseAccountID(args[0])
			if err != nil {
				return fmt.Errorf("account id %q: %w", args[0], err)
			}

			if err := a.auth.Deactivate(operatorContext(cmd), id); err != nil {
				return err //nolint:wrapcheck
			}

			fmt.Fprintf(a.out, "account %d deactivated\n", id)

			return nil
		},
	}

	cmd.AddCommand(create, list, deactivate)

	return cmd
}

func (a *app) itemCommand() *cobra.Command {
	//nolint:exhaustruct
	cmd := &cobra.Command{Use: "item", Short: "Manage the catalog"}

	var (
		title   string
		creator string
		all     bool
	)

	//nolint:exhaustruct
	add := &cobra.Command{
		Use:   "add",
		Short: "Add an item to the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := a.catalog.AddItem(operatorContext(cmd), title, creator)
			if err != nil {
				return err //nolint:wrapcheck
			}

			return a.print(domain.ItemIDResponse{ItemID: id}, "ID", func(w io.Writer) {
				fmt.Fprintln(w, id)
			})
		},
	}
	add.Flags().StringVar(&title, "title", "", "item title")
	add.Flags().StringVar(&creator, "creator", "", "item creator")
	_ = add.MarkFlagRequired("title")
	_ = add.MarkFlagRequired("creator")

	//nolint:exhaustruct
	list := &cobra.Command{
		Use:   "list",
		Short: "List items in circulation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				items []domain.Item
				err   error
			)

			if all {
				items, err = a.catalog.ListAll(operatorContext(cmd))
			} else {
				items, err = a.catalog.ListActive(cmd.Context())
			}

			if err != nil {
				return err //nolint:wrapcheck
			}

			return a.print(items, "ID\tTITLE\tCREATOR\tBORROWED\tWITHDRAWN", func(w io.Writer) {
				for _, item := range items {
					fmt.Fprintf(w, "%d\t%s\t%s\t%t\t%t\n", item.ID, item.Title, item.Creator, item.Borrowed, item.Withdrawn)
				}
			})
		},
	}
	list.Flags().BoolVar(&all, "all", false, "include withdrawn items")

	//nolint:exhaustruct
	withdraw := &cobra.Command{
		Use:   "withdraw ID",
		Short: "Withdraw an item from circulation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := domain.ParseItemID(args[0])
			if err != nil {
				return fmt.Errorf("item id %q: %w", args[0], err)
			}

			if err := a.catalog.Withdraw(operatorContext(cmd), id); err != nil {
				return err //nolint:wrapcheck
			}

			fmt.Fprintf(a.out, "item %d withdrawn\n", id)

			return nil
		},
	}

	cmd.AddCommand(add, list, withdraw)

	return cmd
}

func (a *app) loanCommand() *cobra.Command {
	//nolint:exhaustruct
	cmd := &cobra.Command{Use: "loan", Short: "Inspect loans"}

	//nolint:exhaustruct
	list := &cobra.Command{
		Use:   "list",
		Short: "List open loans with their holders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loans, err := a.ledger.ListOpenAll(operatorContext(cmd))
			if err != nil {
				return err //nolint:wrapcheck
			}

			return a.print(loans, "LOAN\tITEM\tTITLE\tHOLDER\tSINCE", func(w io.Writer) {
				for _, loan := range loans {
					fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\n",
						loan.LoanID, loan.ItemID, loan.Title, loan.HolderName, formatTime(loan.OpenedAt))
				}
			})
		},
	}

	cmd.AddCommand(list)

	return cmd
}
