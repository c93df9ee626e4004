package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/dtnitsch/tadawul-harvest/internal/crawl"
	"github.com/dtnitsch/tadawul-harvest/internal/db"
)

func main() {
	app := &cli.App{
		Name:  "tadawul-harvest",
		Usage: "harvest exchange announcements into a local article store",
		Commands: []*cli.Command{
			{
				Name:      "crawl",
				Usage:     "walk a listing page and record unseen announcements",
				ArgsUsage: "<listing-url>",
				Action:    crawl.CrawlAction,
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "show", Usage: "run the browser headed"},
					&cli.BoolFlag{Name: "keep", Usage: "hold the browser open until Enter after the run"},
					&cli.StringFlag{Name: "db", Usage: "article store path (default from profile)"},
					&cli.StringFlag{Name: "downloads", Usage: "attachment directory (default from profile)"},
					&cli.StringFlag{Name: "config", Usage: "YAML profile overriding the built-in defaults"},
					&cli.StringFlag{Name: "filter", Usage: "time window control id (default from profile)"},
					&cli.BoolFlag{Name: "quiet", Usage: "log errors only"},
				},
			},
			{
				Name:   "setup",
				Usage:  "provision the article store schema",
				Action: db.SetupAction,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "db", Usage: "article store path"},
				},
			},
			{
				Name:   "pending",
				Usage:  "list records awaiting analysis",
				Action: db.PendingAction,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "db", Usage: "article store path"},
					&cli.IntFlag{Name: "limit", Usage: "max records to list (0 = all)"},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
