package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mr-tron/base58"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/tez-capital/trialbot/bot"
	"github.com/tez-capital/trialbot/keystore"
)

var (
	labelStyle = lipgloss.NewStyle().Bold(true).Width(16)
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#0099FF"))
)

// openKeystore opens the on-disk state for an offline command. Run these while
// the bot is stopped; both processes would otherwise overwrite each other.
func openKeystore(cmd *cli.Command) (*keystore.Keystore, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	l, closeLog := newLogger(cfg.DataDir, false)
	return keystore.Open(cfg.DataDir, cfg.BackupDir, l), closeLog, nil
}

func out(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

// keysAction wraps an action that needs the keystore.
func keysAction(fn func(ctx context.Context, cmd *cli.Command, ks *keystore.Keystore) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		ks, done, err := openKeystore(cmd)
		if err != nil {
			return err
		}
		defer done()
		return fn(ctx, cmd, ks)
	}
}

func keysCommand() *cli.Command {
	return &cli.Command{
		Name:  "keys",
		Usage: "inspect and edit the trial code pool offline",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "print unused codes, one per line",
				Action: keysAction(func(_ context.Context, cmd *cli.Command, ks *keystore.Keystore) error {
					for _, code := range ks.Codes.ListUnused() {
						fmt.Fprintln(out(cmd), code)
					}
					return nil
				}),
			},
			{
				Name:  "stats",
				Usage: "show pool counts",
				Action: keysAction(func(_ context.Context, cmd *cli.Command, ks *keystore.Keystore) error {
					row := func(label string, n int) string {
						return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), valueStyle.Render(fmt.Sprint(n)))
					}
					fmt.Fprintln(out(cmd), lipgloss.JoinVertical(lipgloss.Left,
						row("Available Keys", ks.Codes.CountUnused()),
						row("Used Keys", ks.Codes.CountIssued()),
						row("Second Chances", len(ks.SecondChances.Users())),
					))
					return nil
				}),
			},
			{
				Name:      "add",
				Usage:     "add codes one by one, skipping duplicates",
				ArgsUsage: "CODE...",
				Action: keysAction(func(_ context.Context, cmd *cli.Command, ks *keystore.Keystore) error {
					if cmd.NArg() == 0 {
						return errors.New("no codes given")
					}
					for _, code := range cmd.Args().Slice() {
						code = strings.TrimSpace(code)
						if ks.Codes.AddOne(code) {
							fmt.Fprintf(out(cmd), "added %s\n", code)
						} else {
							fmt.Fprintf(out(cmd), "exists %s\n", code)
						}
					}
					return nil
				}),
			},
			{
				Name:      "import",
				Usage:     "bulk add codes from a file (comma or newline separated); - reads stdin",
				ArgsUsage: "FILE",
				Action: keysAction(func(_ context.Context, cmd *cli.Command, ks *keystore.Keystore) error {
					name := cmd.Args().First()
					if name == "" {
						return errors.New("no file given")
					}
					var (
						data []byte
						err  error
					)
					if name == "-" {
						data, err = io.ReadAll(os.Stdin)
					} else {
						data, err = os.ReadFile(name)
					}
					if err != nil {
						return fmt.Errorf("read keys: %w", err)
					}
					keys := bot.ParseKeys(string(data))
					if len(keys) == 0 {
						return errors.New("no valid keys provided")
					}
					fmt.Fprintf(out(cmd), "added %d keys\n", ks.Codes.AddMany(keys))
					return nil
				}),
			},
			{
				Name:      "delete",
				Usage:     "remove a code from the pool",
				ArgsUsage: "CODE",
				Action: keysAction(func(_ context.Context, cmd *cli.Command, ks *keystore.Keystore) error {
					code := strings.TrimSpace(cmd.Args().First())
					if !ks.Codes.Delete(code) {
						return fmt.Errorf("key not found: %q", code)
					}
					fmt.Fprintf(out(cmd), "deleted %s\n", code)
					return nil
				}),
			},
			{
				Name:  "wipe",
				Usage: "remove every unused code",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "skip the confirmation prompt"},
				},
				Action: keysAction(func(_ context.Context, cmd *cli.Command, ks *keystore.Keystore) error {
					if !cmd.Bool("yes") {
						ok, err := confirmWipe(os.Stdin, out(cmd))
						if err != nil {
							return err
						}
						if !ok {
							fmt.Fprintln(out(cmd), "Operation cancelled - confirmation text did not match.")
							return nil
						}
					}
					fmt.Fprintf(out(cmd), "wiped %d unused keys\n", ks.Codes.WipeUnused())
					return nil
				}),
			},
			{
				Name:  "generate",
				Usage: "mint random codes",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "count", Aliases: []string{"n"}, Value: 10, Usage: "number of codes"},
					&cli.StringFlag{Name: "prefix", Value: "TRIAL-", Usage: "prefix for every code"},
					&cli.BoolFlag{Name: "add", Usage: "also add the codes to the pool"},
				},
				Action: keysAction(func(_ context.Context, cmd *cli.Command, ks *keystore.Keystore) error {
					codes, err := generateCodes(rand.Reader, int(cmd.Int("count")), cmd.String("prefix"))
					if err != nil {
						return err
					}
					for _, c := range codes {
						fmt.Fprintln(out(cmd), c)
					}
					if cmd.Bool("add") {
						fmt.Fprintf(out(cmd), "added %d keys\n", ks.Codes.AddMany(codes))
					}
					return nil
				}),
			},
			{
				Name:  "browse",
				Usage: "page through unused codes in the terminal",
				Action: keysAction(func(ctx context.Context, cmd *cli.Command, ks *keystore.Keystore) error {
					_, err := tea.NewProgram(newBrowser("Available Keys", ks.Codes.ListUnused()),
						tea.WithContext(ctx), tea.WithOutput(out(cmd))).Run()
					return err
				}),
			},
			{
				Name:      "second-chance",
				Usage:     "allow a user one more code",
				ArgsUsage: "USER_ID",
				Action: keysAction(func(_ context.Context, cmd *cli.Command, ks *keystore.Keystore) error {
					user := strings.TrimSpace(cmd.Args().First())
					if user == "" {
						return errors.New("no user id given")
					}
					if !ks.SecondChances.Grant(user) {
						fmt.Fprintf(out(cmd), "%s already has a second chance\n", user)
						return nil
					}
					fmt.Fprintf(out(cmd), "granted second chance to %s\n", user)
					return nil
				}),
			},
		},
	}
}

func backupCommand() *cli.Command {
	return &cli.Command{
		Name:  "backup",
		Usage: "inspect backup snapshots",
		Commands: []*cli.Command{
			{
				Name:  "latest",
				Usage: "summarise the newest snapshot",
				Action: keysAction(func(_ context.Context, cmd *cli.Command, ks *keystore.Keystore) error {
					s, ok := ks.Backups.Latest()
					if !ok {
						return errors.New("no readable backup found")
					}
					fmt.Fprintf(out(cmd), "taken %s: %d unused, %d used, %d second chances\n",
						s.Timestamp.Format(time.RFC3339), len(s.UnusedKeys), len(s.UsedKeys), len(s.SecondChances))
					return nil
				}),
			},
		},
	}
}

// confirmWipe asks for the confirmation word on an interactive terminal.
func confirmWipe(in *os.File, w io.Writer) (bool, error) {
	if !term.IsTerminal(int(in.Fd())) {
		return false, errors.New("refusing to wipe without --yes on a non-interactive terminal")
	}
	fmt.Fprintf(w, "Type %q to wipe all unused keys: ", bot.WipeConfirmation)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	return strings.TrimSpace(line) == bot.WipeConfirmation, nil
}

// generateCodes draws 10 random bytes per code and base58-encodes them.
func generateCodes(r io.Reader, n int, prefix string) ([]string, error) {
	if n <= 0 {
		return nil, fmt.Errorf("count must be positive, got %d", n)
	}
	codes := make([]string, 0, n)
	buf := make([]byte, 10)
	for range n {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("read random bytes: %w", err)
		}
		codes = append(codes, prefix+base58.Encode(buf))
	}
	return codes, nil
}
