package service

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"

	"election-backend/storage"
)

// ExportCSV writes the live standings for real candidates (NOTA rows
// excluded) grouped by position, best-ranked first within each group.
// Only counter totals leave the system; ballot content stays sealed.
func (vs *VotingService) ExportCSV(w io.Writer) error {
	candidates, err := vs.store.Candidates(storage.CandidateFilter{ExcludeNota: true})
	if err != nil {
		return err
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.PositionID != b.PositionID {
			return a.PositionID < b.PositionID
		}
		if a.TotalPoints != b.TotalPoints {
			return a.TotalPoints > b.TotalPoints
		}
		if a.Pref1Count != b.Pref1Count {
			return a.Pref1Count > b.Pref1Count
		}
		return a.ID < b.ID
	})

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Position", "Candidate ID", "Name", "House", "Pref1 Count", "Pref2 Count", "Total Points"}); err != nil {
		return err
	}
	for _, c := range candidates {
		record := []string{
			c.PositionID,
			c.ID,
			c.Name,
			c.House,
			fmt.Sprintf("%d", c.Pref1Count),
			fmt.Sprintf("%d", c.Pref2Count),
			fmt.Sprintf("%d", c.TotalPoints),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
