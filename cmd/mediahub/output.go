package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/varoOP/mediahub/internal/domain"
)

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func printRecords(records []domain.Record) error {
	if asJSON {
		return printJSON(records)
	}

	tw := newTable(os.Stdout)
	fmt.Fprintln(tw, "SOURCE\tID\tTYPE\tTITLE\tYEAR\tDOUBAN\tIMDB\tBANGUMI\t")
	for _, r := range records {
		title := r.Title()
		if r.Collected {
			title = "★ " + title
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			r.SourceType, r.SourceID, r.MediaType, title, r.Year,
			r.RatingDouban, r.RatingIMDb, r.RatingBangumi)
	}
	return tw.Flush()
}

func printQuick(hits map[domain.SourceType]domain.Record) error {
	if asJSON {
		return printJSON(hits)
	}

	sources := make([]domain.SourceType, 0, len(hits))
	for st := range hits {
		sources = append(sources, st)
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i] < sources[j] })

	records := make([]domain.Record, 0, len(sources))
	for _, st := range sources {
		records = append(records, hits[st])
	}
	return printRecords(records)
}

func printSchedule(s domain.WeeklySchedule) error {
	if asJSON {
		return printJSON(s)
	}

	for _, day := range s.Days {
		fmt.Printf("%s (%d)\n", day.Label, len(day.Records))
		for _, r := range day.Records {
			fmt.Printf("  %-8s %s %s\n", r.SourceID, r.Title(), r.RatingBangumi)
		}
	}
	return nil
}

func printCollection(items []domain.CollectedItem) error {
	if asJSON {
		return printJSON(items)
	}

	tw := newTable(os.Stdout)
	fmt.Fprintln(tw, "SOURCE\tID\tTYPE\tTITLE\tSTATUS\tADDED\t")
	for _, it := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t\n",
			it.SourceType, it.SourceID, it.MediaType, it.Title, it.WatchStatus,
			it.AddedAt.Local().Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}
