package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/Nixie-Tech-LLC/marquee/internal/timeline"
)

const plannerSchedule = 1

// planFile lists placements in the order they are applied.
type planFile struct {
	Items []plannedItem `yaml:"items"`
}

// plannedItem mirrors the admin item request. Omitting days plays every day.
type plannedItem struct {
	Video    int    `yaml:"video"`
	Start    string `yaml:"start"`
	Duration int    `yaml:"duration"`
	Days     []int  `yaml:"days"`
	From     string `yaml:"from"`
	Until    string `yaml:"until"`
	Order    int    `yaml:"order"`
}

func loadPlan(path string) (planFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return planFile{}, fmt.Errorf("error reading plan file: %w", err)
	}
	return parsePlan(data)
}

func parsePlan(data []byte) (planFile, error) {
	var pf planFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return planFile{}, fmt.Errorf("error parsing plan file: %w", err)
	}
	if len(pf.Items) == 0 {
		return planFile{}, fmt.Errorf("plan file has no items")
	}
	return pf, nil
}

func (p plannedItem) candidate() (timeline.Candidate, error) {
	start, err := timeline.ParseTimeOfDay(p.Start)
	if err != nil {
		return timeline.Candidate{}, err
	}
	days, err := timeline.NewDaySet(p.Days)
	if err != nil {
		return timeline.Candidate{}, err
	}
	lo, err := optionalDate("from", p.From)
	if err != nil {
		return timeline.Candidate{}, err
	}
	hi, err := optionalDate("until", p.Until)
	if err != nil {
		return timeline.Candidate{}, err
	}
	dates, err := timeline.Between(lo, hi)
	if err != nil {
		return timeline.Candidate{}, err
	}
	return timeline.Candidate{
		VideoID: p.Video,
		Order:   p.Order,
		Slot:    timeline.Slot{Start: start, Duration: p.Duration, Days: days, Dates: dates},
	}, nil
}

func optionalDate(field, s string) (*timeline.Date, error) {
	if s == "" {
		return nil, nil
	}
	d, err := timeline.ParseDate(s)
	if err != nil {
		return nil, &timeline.InputError{Field: field, Reason: err.Error()}
	}
	return &d, nil
}

// simulate places every item on an empty in-memory schedule and returns each
// placement plus the final active timeline.
func simulate(ctx context.Context, pf planFile) ([]timeline.Placement, []timeline.Item, error) {
	repo := timeline.NewMemoryRepository()
	repo.PutSchedule(plannerSchedule, true)
	coord := timeline.NewCoordinator(repo)

	steps := make([]timeline.Placement, 0, len(pf.Items))
	for i, it := range pf.Items {
		cand, err := it.candidate()
		if err != nil {
			return nil, nil, fmt.Errorf("item %d: %w", i+1, err)
		}
		p, err := coord.PlaceItem(ctx, plannerSchedule, cand)
		if err != nil {
			return nil, nil, fmt.Errorf("item %d: %w", i+1, err)
		}
		steps = append(steps, p)
	}
	return steps, repo.ActiveItems(plannerSchedule), nil
}

func render(w io.Writer, steps []timeline.Placement, final []timeline.Item, day *timeline.Date) error {
	for i, p := range steps {
		fmt.Fprintf(w, "step %d: placed item %d at %s for %ds\n", i+1, p.Item.ID, p.Item.Start, p.Item.Duration)
		for _, a := range p.Adjusted {
			fmt.Fprintf(w, "  %-10s item %d: %s+%ds -> %s+%ds\n", a.Action, a.ItemID, a.OldStart, a.OldDuration, a.NewStart, a.NewDuration)
		}
		for _, id := range p.Removed {
			fmt.Fprintf(w, "  %-10s item %d\n", timeline.ActionRemove, id)
		}
	}

	title := "final timeline"
	if day != nil {
		title = fmt.Sprintf("timeline on %s (%s)", day, day.Weekday())
	}
	fmt.Fprintf(w, "\n%s:\n", title)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTART\tEND\tVIDEO\tDAYS\tDATES")
	for _, it := range final {
		if day != nil && !it.PlaysOn(*day) {
			continue
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%s\n", it.ID, it.Start, it.End(), it.VideoID, it.Days, it.Dates)
	}
	return tw.Flush()
}
