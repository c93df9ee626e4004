// Package db holds the store-facing CLI actions: schema provisioning and the
// operator view of the analysis queue.
package db

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/dtnitsch/tadawul-harvest/models"
	dbpkg "github.com/dtnitsch/tadawul-harvest/pkg/db"
)

// SetupAction provisions the article store. Safe to re-run; the schema only
// creates what is missing.
func SetupAction(c *cli.Context) error {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{}))

	path := databasePath(c)
	store, err := dbpkg.Create(path)
	if err != nil {
		logger.Error("Failed to provision database", "path", path, "error", err)
		os.Exit(2)
	}
	defer store.Close()

	fmt.Printf("Database ready at %s\n", path)
	return nil
}

// PendingAction lists the records awaiting the analysis collaborator.
func PendingAction(c *cli.Context) error {
	store, err := dbpkg.Open(databasePath(c))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	pending, err := store.FetchPending(c.Int("limit"))
	if err != nil {
		return fmt.Errorf("failed to fetch pending records: %w", err)
	}

	if len(pending) == 0 {
		fmt.Println("No pending records")
	} else {
		fmt.Printf("%-6s %-12s %-24s %-50s %-5s %-8s\n",
			"ID", "Date", "Company", "Title", "Lang", "Attached")
		fmt.Println(strings.Repeat("-", 110))
		for _, a := range pending {
			attached := "no"
			if a.AttachmentsText != "" {
				attached = "yes"
			}
			fmt.Printf("%-6d %-12s %-24s %-50s %-5s %-8s\n",
				a.ID, a.PublicationDate, truncate(a.CompanyName, 24),
				truncate(a.Title, 50), a.Language, attached)
		}
	}

	counts, err := store.CountByStatus()
	if err != nil {
		return fmt.Errorf("failed to count records: %w", err)
	}
	fmt.Printf("\n%d pending, %d processed\n",
		counts[models.StatusPending], counts[models.StatusProcessed])
	return nil
}

func databasePath(c *cli.Context) string {
	if path := c.String("db"); path != "" {
		return path
	}
	return models.DefaultConfig().DatabasePath
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
