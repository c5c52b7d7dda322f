// Package report renders scan findings: a startup banner/splash line (spec
// SUPPLEMENTED FEATURES, ported from chlorophyte-mass-finder/src/main.rs's
// FIGlet banner minus the FIGlet rendering itself — no font library exists
// anywhere in the retrieved pack), a tablewriter summary for the abort/
// completion path, and the plain result file spec §6 describes.
package report

import (
	"fmt"
	"io"
	"math/rand"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/terrafind/sporefinder/internal/result"
)

const banner = `
   _____ ____   ____  _____ ______ _______ _____ _   _ _____  ______ _____
  / ____|  _ \ / __ \|  __ \|  ____|__   __|_   _| \ | |  __ \|  ____|  __ \
 | (___ | |_) | |  | | |__) | |__     | |    | | |  \| | |  | | |__  | |__) |
  \___ \|  __/| |  | |  _  /|  __|    | |    | | | . \ | |  | |  __| |  _  /
  ____) | |   | |__| | | \ \| |____   | |   _| |_| |\  | |__| | |____| | \ \
 |_____/|_|    \____/|_|  \_\______|  |_|  |_____|_| \_|_____/|______|_|  \_\
`

var splashes = []string{
	"now scanning the mushroom biome",
	"chlorophyte mass detected",
	"probing the underground jungle",
	"hardmode ore incoming",
	"don't dig straight down",
}

// PrintBanner writes the banner and a randomly chosen splash line to w,
// mirroring the teacher's own stderr startup message
// (fmt.Fprintf(os.Stderr, "Starting fbtracert with ...")) but with the
// original tool's banner/splash flavor instead of a one-line summary.
func PrintBanner(w io.Writer) {
	fmt.Fprintln(w, banner)
	fmt.Fprintf(w, "  %s\n\n", splashes[rand.Intn(len(splashes))])
}

// RenderTable writes findings as a three-column table (address, port,
// outcome), grounded on printLossyPaths in
// _examples/virtuallynathan-fbtracert/main.go — same tablewriter.NewWriter/
// SetHeader/Append/Render shape, applied to findings instead of per-TTL loss
// rows.
func RenderTable(w io.Writer, findings []result.Finding) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Address", "Port", "Outcome"})
	for _, f := range findings {
		table.Append([]string{f.Address.Addr.String(), fmt.Sprintf("%d", f.Address.Port), f.Outcome.String()})
	}
	table.Render()
}

// ResultsFileName builds the spec §6 output filename for a given timestamp.
func ResultsFileName(t time.Time) string {
	return fmt.Sprintf("chlorophyte_mass_finder_results-%s.txt", t.Format("06-01-02_15_04_05"))
}

// WriteResultsFile writes one "<addr>:<port> <Outcome>" line per finding to
// a fresh file named per spec §6, returning the path written.
func WriteResultsFile(dir string, t time.Time, findings []result.Finding) (string, error) {
	path := ResultsFileName(t)
	if dir != "" {
		path = dir + string(os.PathSeparator) + path
	}
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("report: create results file: %w", err)
	}
	defer f.Close()

	for _, finding := range findings {
		if _, err := fmt.Fprintf(f, "%s:%d %s\n", finding.Address.Addr, finding.Address.Port, finding.Outcome); err != nil {
			return "", fmt.Errorf("report: write results file: %w", err)
		}
	}
	return path, nil
}
