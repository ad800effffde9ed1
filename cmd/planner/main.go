// Command planner replays a YAML list of placements through the timeline
// engine without a database and prints what each placement changed.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/marquee/internal/timeline"
)

func main() {
	planPath := flag.String("plan", "", "YAML file listing items to place (required)")
	date := flag.String("date", "", "only show items playing on this YYYY-MM-DD date")
	verbose := flag.Bool("v", false, "log each placement")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s -plan items.yaml [-date 2025-06-02]\n\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if *planPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	var day *timeline.Date
	if *date != "" {
		d, err := timeline.ParseDate(*date)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid -date")
		}
		day = &d
	}

	pf, err := loadPlan(*planPath)
	if err != nil {
		log.Fatal().Err(err).Msg("could not load plan")
	}

	steps, final, err := simulate(context.Background(), pf)
	if err != nil {
		log.Fatal().Err(err).Msg("placement rejected")
	}

	if err := render(os.Stdout, steps, final, day); err != nil {
		log.Fatal().Err(err).Msg("could not write output")
	}
}
