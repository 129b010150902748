package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/turnero/internal/bots"
	"github.com/nextlevelbuilder/turnero/internal/config"
)

func botsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bots",
		Short: "Manage bot registrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List registered bots",
		Run: func(cmd *cobra.Command, args []string) {
			withBotRepo(func(ctx context.Context, repo bots.Repository) error {
				all, err := repo.List(ctx)
				if err != nil {
					return err
				}
				if len(all) == 0 {
					fmt.Println("no bots registered")
					return nil
				}
				fmt.Printf("%-38s %-20s %-18s %-8s\n", "ID", "NAME", "PHONE", "STATUS")
				for _, b := range all {
					status := b.Status
					if status == "" {
						status = "active"
					}
					fmt.Printf("%-38s %-20s %-18s %-8s\n", b.ID, b.Name, b.PhoneNumber, status)
				}
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Show a bot's full configuration",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			withBotRepo(func(ctx context.Context, repo bots.Repository) error {
				b, err := repo.Get(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Printf("  ID:         %s\n", b.ID)
				fmt.Printf("  Name:       %s\n", b.Name)
				fmt.Printf("  Phone:      %s\n", b.PhoneNumber)
				fmt.Printf("  Assistant:  %s\n", b.AssistantID)
				fmt.Printf("  Status:     %s\n", b.Status)
				if len(b.Functions) > 0 {
					fmt.Printf("  Functions:  %v\n", b.Functions)
				}
				for _, a := range b.Actions {
					fmt.Printf("  Action:     %s (%s %s)\n", a.Name, a.Method, a.Path)
				}
				return nil
			})
		},
	})

	var (
		name      string
		phone     string
		assistant string
		clientID  string
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Register a new bot",
		Run: func(cmd *cobra.Command, args []string) {
			withBotRepo(func(ctx context.Context, repo bots.Repository) error {
				b := &bots.Bot{
					Name:        name,
					PhoneNumber: phone,
					AssistantID: assistant,
					ClientID:    clientID,
					Status:      "active",
				}
				if err := repo.Put(ctx, b); err != nil {
					return err
				}
				fmt.Printf("created bot %s\n", b.ID)
				return nil
			})
		},
	}
	create.Flags().StringVar(&name, "name", "", "bot display name")
	create.Flags().StringVar(&phone, "phone", "", "WhatsApp number, e.g. +56911112222")
	create.Flags().StringVar(&assistant, "assistant", "", "assistant id")
	create.Flags().StringVar(&clientID, "client", "", "owning client id")
	create.MarkFlagRequired("name")
	create.MarkFlagRequired("phone")
	cmd.AddCommand(create)

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a bot registration",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			withBotRepo(func(ctx context.Context, repo bots.Repository) error {
				if err := repo.Delete(ctx, args[0]); err != nil {
					return err
				}
				fmt.Printf("deleted bot %s\n", args[0])
				return nil
			})
		},
	})

	return cmd
}

// withBotRepo loads config, opens the registry, runs fn and exits non-zero on
// error. The embedded store cannot be opened while the gateway holds it; point
// the CLI at Postgres or stop the gateway first.
func withBotRepo(fn func(context.Context, bots.Repository) error) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %s\n", err)
		os.Exit(1)
	}

	var repo bots.Repository
	if cfg.Database.DSN != "" {
		pool, err := sql.Open("pgx", cfg.Database.DSN)
		if err != nil {
			fmt.Fprintf(os.Stderr, "open database: %s\n", err)
			os.Exit(1)
		}
		defer pool.Close()
		repo = bots.NewPGRepository(pool)
	} else {
		db, err := openStore(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "open store: %s\n", err)
			os.Exit(1)
		}
		defer db.Close()
		repo = db.Bots()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := fn(ctx, repo); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}
