package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/cellsim/pkg/cell"
	"github.com/charlie0129/cellsim/pkg/stats"
)

func parseMix(names []string) ([]cell.Chemistry, error) {
	mix := make([]cell.Chemistry, 0, len(names))
	for _, n := range names {
		n = strings.ToUpper(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		c, err := cell.ParseChemistry(n)
		if err != nil {
			return nil, err
		}
		mix = append(mix, c)
	}
	return mix, nil
}

// writeOutput writes b to path, or to stdout when path is empty or "-".
func writeOutput(stdout io.Writer, path string, b []byte) error {
	if path == "" || path == "-" {
		_, err := stdout.Write(b)
		return err
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	logrus.WithField("file", path).Info("file written")
	return nil
}

// extension returns the lower-cased extension of path without the dot.
func extension(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}

func printSummary(w io.Writer, total int, sum stats.Summary, byType map[cell.Chemistry]stats.Summary) {
	fmt.Fprintln(w, bold("Cells:"))
	fmt.Fprintf(w, "  Shown: %s of %d\n", bold("%d", sum.Cells), total)
	for _, chem := range cell.Chemistries {
		fmt.Fprintf(w, "  %s: %s\n", chemColor(chem).Sprint(chem), bold("%d", byType[chem].Cells))
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, bold("Averages:"))
	if sum.Cells == 0 {
		fmt.Fprintln(w, "  "+color.YellowString("no data, generate cells or adjust filters"))
		return
	}
	fmt.Fprintf(w, "  Nominal voltage: %s\n", bold("%.3f V", sum.AvgNominalV))
	fmt.Fprintf(w, "  Capacitance: %s\n", bold("%.3f F", sum.AvgCapacitanceF))
	fmt.Fprintf(w, "  Temperature: %s\n", bold("%.3f °C", sum.AvgTempC))
}

func chemColor(c cell.Chemistry) *color.Color {
	if c == cell.LFP {
		return color.New(color.Bold, color.FgBlue)
	}
	return color.New(color.Bold, color.FgYellow)
}

func bold(format string, a ...interface{}) string {
	return color.New(color.Bold).Sprintf(format, a...)
}
