package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/five82/licdesk/internal/app"
	"github.com/five82/licdesk/internal/audit"
	"github.com/five82/licdesk/internal/licensing"
	"github.com/five82/licdesk/internal/listview"
	"github.com/five82/licdesk/internal/session"
)

// withEnv bootstraps the shared services for a one-shot command.
func withEnv(flags *globalFlags, fn func(env *app.Env) error) error {
	env, err := app.Bootstrap(flags.options())
	if err != nil {
		return err
	}
	defer env.Close()
	return fn(env)
}

// requireSession fails early with a hint when nobody is logged in.
func requireSession(env *app.Env) error {
	if _, err := env.Sessions.Status(); err != nil {
		if errors.Is(err, session.ErrExpired) {
			return fmt.Errorf("%s Run 'licdesk login'", session.ExpiredMessage)
		}
		return fmt.Errorf("not logged in, run 'licdesk login'")
	}
	return nil
}

func newLoginCmd(flags *globalFlags) *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(flags, func(env *app.Env) error {
				return runLogin(cmd, env, username)
			})
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "admin username (prompted when empty)")
	return cmd
}

func runLogin(cmd *cobra.Command, env *app.Env, username string) error {
	out := cmd.OutOrStdout()
	reader := bufio.NewReader(cmd.InOrStdin())

	if strings.TrimSpace(username) == "" {
		value, err := prompt(out, reader, "Username: ")
		if err != nil {
			return err
		}
		username = value
	}
	password, err := prompt(out, reader, "Password: ")
	if err != nil {
		return err
	}
	if username == "" || password == "" {
		return fmt.Errorf("username and password are required")
	}

	resp, err := env.Client.Login(cmd.Context(), username, password)
	if err != nil {
		return fmt.Errorf("login: %s", licensing.Message(err))
	}
	if !resp.Success {
		msg := strings.TrimSpace(resp.Message)
		if msg == "" {
			msg = "Invalid credentials"
		}
		return fmt.Errorf("login: %s", msg)
	}
	name := resp.Username
	if name == "" {
		name = username
	}
	if err := env.Sessions.Set(session.Identity{AdminID: resp.AdminID, Username: name, Token: resp.Token}); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	env.Logger.Info().Str("username", name).Msg("logged in from cli")
	fmt.Fprintf(out, "Logged in as %s\n", name)
	return nil
}

func prompt(out io.Writer, reader *bufio.Reader, label string) (string, error) {
	fmt.Fprint(out, label)
	line, err := reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func newLogoutCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(flags, func(env *app.Env) error {
				if err := env.Sessions.Clear(); err != nil {
					return fmt.Errorf("clear session: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
				return nil
			})
		},
	}
}

func newWhoamiCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in admin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(flags, func(env *app.Env) error {
				if err := requireSession(env); err != nil {
					return err
				}
				id, _ := env.Sessions.Get()
				fmt.Fprintf(cmd.OutOrStdout(), "%s (admin %s) since %s\n",
					id.Username, id.AdminID, id.LoggedInAt.Local().Format("2006-01-02 15:04"))
				return nil
			})
		},
	}
}

type listFlags struct {
	search   string
	status   string
	sort     string
	page     int
	pageSize int
}

func newListCmd(flags *globalFlags) *cobra.Command {
	lf := &listFlags{}
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List licenses",
		Long: `List licenses with the same filtering, search, sorting and paging
the console uses. Sorting is ascending and compares values as text.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(flags, func(env *app.Env) error {
				return runList(cmd, env, lf)
			})
		},
	}
	f := cmd.Flags()
	f.StringVarP(&lf.search, "search", "s", "", "match domain or customer name")
	f.StringVar(&lf.status, "status", "all", "all, active or inactive")
	f.StringVar(&lf.sort, "sort", "", "id, serialNumber, domain, customerName or active")
	f.IntVarP(&lf.page, "page", "p", 1, "page to show")
	f.IntVar(&lf.pageSize, "page-size", 0, "rows per page (default from config)")
	return cmd
}

func runList(cmd *cobra.Command, env *app.Env, lf *listFlags) error {
	if err := requireSession(env); err != nil {
		return err
	}
	items, err := env.Client.FetchLicenseSummaries(cmd.Context())
	if err != nil {
		return fmt.Errorf("fetch licenses: %s", licensing.Message(err))
	}

	pageSize := lf.pageSize
	if pageSize <= 0 {
		pageSize = env.Config.PageSize
	}
	view := listview.New(pageSize)
	view.SetAll(items)
	view.SetFilter(listview.ParseStatusFilter(lf.status))
	view.SetSearch(lf.search)
	if key := listview.ParseSortKey(lf.sort); key != listview.SortNone {
		view.SetSort(key)
	} else if strings.TrimSpace(lf.sort) != "" {
		return fmt.Errorf("unknown sort field %q", lf.sort)
	}
	if lf.page != 1 {
		if lf.page < 1 || lf.page > view.TotalPages() {
			return fmt.Errorf("page %d out of range (1-%d)", lf.page, view.TotalPages())
		}
		view.GoToPage(lf.page)
	}

	out := cmd.OutOrStdout()
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSERIAL\tDOMAIN\tCUSTOMER\tSTATUS")
	for _, item := range view.Page() {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\n",
			item.ID, item.SerialNumber, item.Domain, item.CustomerName, activeLabel(item.Active))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if view.FilteredCount() == 0 {
		fmt.Fprintln(out, "No licenses match")
		return nil
	}
	fmt.Fprintf(out, "\nPage %d of %d · %d of %d licenses\n",
		view.PageIndex(), view.TotalPages(), view.FilteredCount(), len(view.All()))
	return nil
}

func activeLabel(active bool) string {
	if active {
		return "active"
	}
	return "inactive"
}

func newShowCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one license with its modules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid license id %q", args[0])
			}
			return withEnv(flags, func(env *app.Env) error {
				if err := requireSession(env); err != nil {
					return err
				}
				detail, err := env.Client.FetchLicenseDetail(cmd.Context(), id)
				if err != nil {
					return fmt.Errorf("fetch license %d: %s", id, licensing.Message(err))
				}
				printDetail(cmd.OutOrStdout(), detail)
				return nil
			})
		},
	}
}

func printDetail(out io.Writer, detail licensing.LicenseDetail) {
	h := detail.Header
	serial := "-"
	if h.SerialNumber != nil {
		serial = strconv.FormatInt(*h.SerialNumber, 10)
	}
	fmt.Fprintf(out, "Domain:   %s\n", h.Domain)
	fmt.Fprintf(out, "Customer: %s\n", h.CustomerName)
	fmt.Fprintf(out, "Serial:   %s\n", serial)
	fmt.Fprintf(out, "Status:   %s\n\n", activeLabel(h.Active))

	if len(detail.Modules) == 0 {
		fmt.Fprintln(out, "No modules")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MODULE\tUSERS\tSTART\tEND")
	for _, m := range detail.Modules {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", m.Module, m.NumberOfUsers, m.StartDate, m.EndDate)
	}
	_ = tw.Flush()
}

func newAuditCmd(flags *globalFlags) *cobra.Command {
	var noDiff bool
	cmd := &cobra.Command{
		Use:   "audit <domain>",
		Short: "Show the audit trail of a domain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			domain := strings.TrimSpace(args[0])
			return withEnv(flags, func(env *app.Env) error {
				if err := requireSession(env); err != nil {
					return err
				}
				records, err := env.Client.FetchAuditTrail(cmd.Context(), domain)
				if err != nil {
					env.Logger.Warn().Err(err).Str("domain", domain).Msg("audit load failed")
					return errors.New(audit.LoadErrorMessage)
				}
				return printAudit(cmd.OutOrStdout(), audit.ParseAll(records), !noDiff)
			})
		},
	}
	cmd.Flags().BoolVar(&noDiff, "no-diff", false, "only print one line per entry")
	return cmd
}

func printAudit(out io.Writer, entries []audit.Entry, withDiff bool) error {
	if len(entries) == 0 {
		fmt.Fprintln(out, "No audit records")
		return nil
	}
	for i, e := range entries {
		if withDiff && i > 0 {
			fmt.Fprintln(out)
		}
		when := e.Record.Timestamp
		if !e.When.IsZero() {
			when = e.When.Local().Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(out, "%-6s %s  %s\n", strings.ToUpper(e.Record.Action), when, audit.Summarize(e))
		if !withDiff {
			continue
		}
		diff, err := audit.Diff(e)
		if err != nil {
			return err
		}
		fmt.Fprint(out, diff)
	}
	return nil
}
