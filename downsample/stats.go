package downsample

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/carbocation/pfx"
	"github.com/montanaflynn/stats"
)

// Stats summarizes the call quality of a table.
type Stats struct {
	TotalLoci    int
	MissingLoci  int
	HetLoci      int
	Missingness  float64 // percent of loci with no call
	CallRate     float64 // percent of loci with a call
	Heterozygous float64 // percent of called loci that are heterozygous
}

// Stats computes call counts and rates over the table as it
// currently stands.
func (t *Table) Stats() Stats {
	s := Stats{TotalLoci: len(t.Loci)}
	if s.TotalLoci == 0 {
		return s
	}

	missing := make([]float64, len(t.Loci))
	het := make([]float64, 0, len(t.Loci))
	for i, l := range t.Loci {
		if l.IsMissing() {
			s.MissingLoci++
			missing[i] = 1
			continue
		}
		if l.IsHet() {
			s.HetLoci++
			het = append(het, 1)
		} else {
			het = append(het, 0)
		}
	}

	missFrac, _ := stats.Mean(missing)
	s.Missingness = missFrac * 100
	s.CallRate = (1 - missFrac) * 100

	if len(het) > 0 {
		hetFrac, _ := stats.Mean(het)
		s.Heterozygous = hetFrac * 100
	}

	return s
}

func (s Stats) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Total number of loci: %d\n", s.TotalLoci)
	fmt.Fprintf(&b, "Number of missing loci: %d\n", s.MissingLoci)
	fmt.Fprintf(&b, "Missingness level: %.2f%%\n", s.Missingness)
	fmt.Fprintf(&b, "Call rate: %.2f%%\n", s.CallRate)
	fmt.Fprintf(&b, "Heterozygous calls: %d (%.2f%% of called loci)", s.HetLoci, s.Heterozygous)
	return b.String()
}

func logPath(outputFile string) string {
	return strings.TrimSuffix(outputFile, filepath.Ext(outputFile)) + ".log"
}

// writeLog records the command line, the operation performed,
// and the before/after statistics next to the output file.
func writeLog(r *Report, command, operation string) error {
	f, err := os.Create(r.LogFile)
	if err != nil {
		return pfx.Err(err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "# Log generated on %s\n\n", time.Now().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "## Command used\n%s\n\n", command)
	fmt.Fprintf(w, "## Operation details\n%s\n\n", operation)
	fmt.Fprintf(w, "## Original file statistics\n%s\n\n", r.Before)
	fmt.Fprintf(w, "## Processed file statistics\n%s\n", r.After)
	if err := w.Flush(); err != nil {
		return pfx.Err(err)
	}

	return nil
}
