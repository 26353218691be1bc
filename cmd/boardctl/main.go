// Package main provides boardctl, the operational tool for the boards
// behind the gift redemption app: bulk-loading users, removing test users,
// and reconciling duplicate claims.
//
// boardctl shares the server's MONDAY_* environment, so board and column
// ids only need flags when they differ from the serving configuration.
package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/talmor/giftdesk/internal/repository/monday"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type clientFlags struct {
	apiURL   string
	retries  int
	minDelay time.Duration
	maxDelay time.Duration
	jitter   time.Duration
}

func (f *clientFlags) register(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&f.apiURL, "api-url", envOr("MONDAY_API_URL", "https://api.monday.com/v2"), "Board API endpoint")
	cmd.PersistentFlags().IntVar(&f.retries, "retries", 7, "Retries per request")
	cmd.PersistentFlags().DurationVar(&f.minDelay, "min-delay", 250*time.Millisecond, "Minimum backoff delay")
	cmd.PersistentFlags().DurationVar(&f.maxDelay, "max-delay", 5*time.Second, "Maximum backoff delay")
	cmd.PersistentFlags().DurationVar(&f.jitter, "jitter", 250*time.Millisecond, "Backoff jitter")
}

func (f *clientFlags) client(logger *slog.Logger) (*monday.Client, error) {
	apiKey := os.Getenv("MONDAY_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("MONDAY_API_KEY is required")
	}
	return monday.NewClient(monday.Config{
		URL:      f.apiURL,
		APIKey:   apiKey,
		Retries:  f.retries,
		MinDelay: f.minDelay,
		MaxDelay: f.maxDelay,
		Jitter:   f.jitter,
	}, logger), nil
}

func rootCmd() *cobra.Command {
	flags := &clientFlags{}

	cmd := &cobra.Command{
		Use:   "boardctl",
		Short: "Operational tooling for the gift redemption boards",
		Long: `boardctl manages the monday.com boards behind the gift redemption app.

It can bulk-load users from a CSV export, remove test users, and archive
duplicate claim rows left behind by the claim flow's known race windows.`,
		SilenceUsage: true,
	}
	flags.register(cmd)

	cmd.AddCommand(seedUsersCmd(flags))
	cmd.AddCommand(removeUsersCmd(flags))
	cmd.AddCommand(reconcileClaimsCmd(flags))
	return cmd
}

// signalContext returns a context cancelled by Ctrl+C, so a long batch run
// stops between calls instead of mid-request.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

// userRow is one CSV row from the HR export: id, optional name, optional
// department used for filtering.
type userRow struct {
	ID   string
	Name string
}

// readUsers parses the CSV export. Rows are deduplicated by id, keeping the
// first occurrence; when department is non-empty only rows whose department
// column matches are kept.
func readUsers(path string, skipHeader bool, deptCol int, department string) ([]userRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // exports have ragged rows

	seen := make(map[string]bool)
	var users []userRow
	line := 0
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		line++
		if skipHeader && line == 1 {
			continue
		}

		id := strings.TrimSpace(field(record, 0))
		if id == "" || seen[id] {
			continue
		}
		if department != "" && strings.TrimSpace(field(record, deptCol)) != department {
			continue
		}
		seen[id] = true
		users = append(users, userRow{ID: id, Name: strings.TrimSpace(field(record, 1))})
	}
	return users, nil
}

func field(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return record[i]
}

func seedUsersCmd(flags *clientFlags) *cobra.Command {
	var (
		file       string
		boardID    string
		idCol      string
		nameCol    string
		department string
		deptCol    int
		noHeader   bool
		dry        bool
		limit      int
		batch      int
		delay      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "seed-users",
		Short: "Bulk-load users from a CSV export onto the user board",
		RunE: func(cmd *cobra.Command, args []string) error {
			if boardID == "" || idCol == "" {
				return fmt.Errorf("board id and user-id column are required (flags or MONDAY_USER_BOARD_* env)")
			}

			users, err := readUsers(file, !noHeader, deptCol, department)
			if err != nil {
				return err
			}
			if limit > 0 && len(users) > limit {
				users = users[:limit]
			}
			if len(users) == 0 {
				fmt.Println("No user rows found to process.")
				return nil
			}

			fmt.Printf("Preparing to upload %d user(s) to board %s\n", len(users), boardID)
			if dry {
				for i, u := range users {
					if i == 10 {
						fmt.Printf("... and %d more\n", len(users)-10)
						break
					}
					fmt.Printf(" - id: %s\tname: %s\n", u.ID, u.Name)
				}
				fmt.Println("Dry run — pass --dry=false to execute.")
				return nil
			}

			logger := newLogger()
			client, err := flags.client(logger)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			created, failed := 0, 0
			for i, u := range users {
				if ctx.Err() != nil {
					break
				}
				values := map[string]string{idCol: u.ID}
				if nameCol != "" && u.Name != "" {
					values[nameCol] = u.Name
				}
				itemName := u.Name
				if itemName == "" {
					itemName = u.ID
				}
				if _, err := client.CreateItem(ctx, boardID, itemName, values); err != nil {
					failed++
					logger.Error("create failed", slog.String("id", u.ID), slog.String("error", err.Error()))
				} else {
					created++
				}
				if batch > 0 && (i+1)%batch == 0 && delay > 0 {
					time.Sleep(delay)
				}
				fmt.Printf("\rCreated: %d/%d (failed: %d)", created, len(users), failed)
			}
			fmt.Println("\nDone.")
			if failed > 0 {
				return fmt.Errorf("%d creation(s) failed", failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Path to the users CSV (required)")
	cmd.Flags().StringVar(&boardID, "board", os.Getenv("MONDAY_USER_BOARD_ID"), "User board id")
	cmd.Flags().StringVar(&idCol, "id-col", os.Getenv("MONDAY_USER_BOARD_USER_ID_COLUMN_ID"), "User-id column id")
	cmd.Flags().StringVar(&nameCol, "name-col", os.Getenv("MONDAY_USER_BOARD_USER_NAME_COLUMN_ID"), "Display-name column id")
	cmd.Flags().StringVar(&department, "department", "", "Only load rows whose department column matches")
	cmd.Flags().IntVar(&deptCol, "dept-col", 3, "Zero-based CSV column index of the department")
	cmd.Flags().BoolVar(&noHeader, "no-header", false, "Treat the first row as data")
	cmd.Flags().BoolVar(&dry, "dry", false, "Preview without writing")
	cmd.Flags().IntVar(&limit, "limit", 0, "Max rows to process (0 = no limit)")
	cmd.Flags().IntVar(&batch, "batch", 10, "Rows per batch before pausing")
	cmd.Flags().DurationVar(&delay, "delay", 100*time.Millisecond, "Pause between batches")
	cmd.MarkFlagRequired("file")
	return cmd
}

func removeUsersCmd(flags *clientFlags) *cobra.Command {
	var (
		file    string
		boardID string
		idCol   string
		dry     bool
	)

	cmd := &cobra.Command{
		Use:   "remove-users",
		Short: "Delete user rows whose ids appear in a CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			if boardID == "" || idCol == "" {
				return fmt.Errorf("board id and user-id column are required")
			}
			users, err := readUsers(file, true, -1, "")
			if err != nil {
				return err
			}

			logger := newLogger()
			client, err := flags.client(logger)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			removed := 0
			for _, u := range users {
				if ctx.Err() != nil {
					break
				}
				items, err := client.ItemsByColumnValue(ctx, boardID, idCol, u.ID, 10)
				if err != nil {
					logger.Error("lookup failed", slog.String("id", u.ID), slog.String("error", err.Error()))
					continue
				}
				for _, item := range items {
					if dry {
						fmt.Printf("would delete item %s (user %s)\n", item.ID, u.ID)
						continue
					}
					if err := client.DeleteItem(ctx, item.ID); err != nil {
						logger.Error("delete failed", slog.String("item", item.ID), slog.String("error", err.Error()))
						continue
					}
					removed++
				}
			}
			fmt.Printf("Removed %d row(s).\n", removed)
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Path to a CSV of user ids (required)")
	cmd.Flags().StringVar(&boardID, "board", os.Getenv("MONDAY_USER_BOARD_ID"), "User board id")
	cmd.Flags().StringVar(&idCol, "id-col", os.Getenv("MONDAY_USER_BOARD_USER_ID_COLUMN_ID"), "User-id column id")
	cmd.Flags().BoolVar(&dry, "dry", true, "Preview without deleting (pass --dry=false to delete)")
	cmd.MarkFlagRequired("file")
	return cmd
}

func reconcileClaimsCmd(flags *clientFlags) *cobra.Command {
	var (
		boardID string
		idCol   string
		dry     bool
	)

	cmd := &cobra.Command{
		Use:   "reconcile-claims",
		Short: "Archive duplicate claim rows, keeping the first per user",
		Long: `The claim flow prevents duplicates best-effort only: two concurrent
submissions from the same user can slip past the duplicate check. This
command scans the claims board, groups rows by user id, and archives every
row beyond the first for each user.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if boardID == "" || idCol == "" {
				return fmt.Errorf("claims board id and user-id column are required")
			}

			logger := newLogger()
			client, err := flags.client(logger)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			// Full scan: duplicates are what we're hunting, so the
			// exact-match query is no shortcut here.
			seen := make(map[string]string) // user id -> first item id
			var extras []monday.Item
			cursor := ""
			for {
				page, err := client.ItemsPage(ctx, boardID, []string{idCol}, cursor, 500)
				if err != nil {
					return err
				}
				for _, item := range page.Items {
					uid := item.Text(idCol)
					if uid == "" {
						continue
					}
					if _, ok := seen[uid]; ok {
						extras = append(extras, item)
					} else {
						seen[uid] = item.ID
					}
				}
				if page.Cursor == "" {
					break
				}
				cursor = page.Cursor
			}

			if len(extras) == 0 {
				fmt.Println("No duplicate claims found.")
				return nil
			}

			fmt.Printf("Found %d duplicate claim row(s) across %d user(s).\n", len(extras), len(seen))
			archived := 0
			for _, item := range extras {
				if dry {
					fmt.Printf("would archive item %s (user %s)\n", item.ID, item.Text(idCol))
					continue
				}
				if err := client.ArchiveItem(ctx, item.ID); err != nil {
					logger.Error("archive failed", slog.String("item", item.ID), slog.String("error", err.Error()))
					continue
				}
				archived++
			}
			if !dry {
				fmt.Printf("Archived %d row(s).\n", archived)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&boardID, "board", os.Getenv("MONDAY_CLAIMS_BOARD_ID"), "Claims board id")
	cmd.Flags().StringVar(&idCol, "id-col", os.Getenv("MONDAY_CLAIMS_BOARD_USER_ID_COLUMN_ID"), "User-id column id")
	cmd.Flags().BoolVar(&dry, "dry", true, "Preview without archiving (pass --dry=false to archive)")
	return cmd
}
