package output

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/August26/proxyscout/internal/geo"
	"github.com/August26/proxyscout/internal/model"
)

// SortByCountry returns the host:port of every working outcome, grouped by
// ascending country name. Order inside a group follows the input and each
// host:port appears once.
//
// The country stored on the outcome wins. relookup is only asked for
// outcomes that carry none; when nil those go to geo.Unknown.
func SortByCountry(ctx context.Context, outcomes []model.CheckOutcome, relookup geo.Locator) []string {
	groups := make(map[string][]string)
	seen := make(map[string]struct{})

	for _, o := range outcomes {
		if !o.IsWorking() {
			continue
		}
		key := o.Candidate.String()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		country := o.Country
		if country == "" {
			country = geo.Unknown
			if relookup != nil {
				country = relookup.Lookup(ctx, o.Candidate.Host)
			}
		}
		groups[country] = append(groups[country], key)
	}

	countries := make([]string, 0, len(groups))
	for c := range groups {
		countries = append(countries, c)
	}
	slices.Sort(countries)

	out := make([]string, 0, len(seen))
	for _, c := range countries {
		out = append(out, groups[c]...)
	}
	return out
}

// WriteSorted writes list to path, one entry per line.
func WriteSorted(path string, list []string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	if err := writeLines(f, list); err != nil {
		f.Close()
		return fmt.Errorf("write export file: %w", err)
	}
	return f.Close()
}

func writeLines(w io.Writer, list []string) error {
	bw := bufio.NewWriter(w)
	for _, s := range list {
		if _, err := bw.WriteString(s + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}
