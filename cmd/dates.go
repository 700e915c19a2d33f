package cmd

import (
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/simforcing/forcing/forcing"
)

var (
	datesRefDate    string // Reference date for converting dates to simulation seconds
	datesTStart     float64
	datesPeriod     string // Calendar period of the repeated window
	datesRepeatDate string // Date inside the repeated window
)

var datesCmd = &cobra.Command{
	Use:          "dates FILE",
	Short:        "List the dates available in a data file",
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if forcing.OpenSourceFunc == nil {
			return fmt.Errorf("no data file reader registered")
		}
		src, err := forcing.OpenSourceFunc(args[0])
		if err != nil {
			return err
		}
		defer func() {
			if err := src.Close(); err != nil {
				logrus.Warnf("closing %s: %v", args[0], err)
			}
		}()
		return listDates(os.Stdout, src.AvailableDates())
	},
}

// listDates writes one line per date, with simulation seconds when a reference date is
// set, followed by the bounding dates of the repeated window when a period is set.
func listDates(w io.Writer, dates []time.Time) error {
	if len(dates) == 0 {
		_, err := fmt.Fprintln(w, "static (no time axis)")
		return err
	}

	var ref time.Time
	if datesRefDate != "" {
		var err error
		if ref, err = forcing.ParseDate(datesRefDate); err != nil {
			return err
		}
	}
	for _, d := range dates {
		line := d.Format(time.RFC3339)
		if !ref.IsZero() {
			line += "\t" + strconv.FormatFloat(d.Sub(ref).Seconds()-datesTStart, 'f', -1, 64)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}

	period, err := forcing.ParsePeriod(datesPeriod)
	if err != nil {
		return err
	}
	if period == forcing.NoPeriod {
		return nil
	}
	target := dates[0]
	if datesRepeatDate != "" {
		if target, err = forcing.ParseDate(datesRepeatDate); err != nil {
			return err
		}
	}
	first, last, err := forcing.BoundingDates(dates, target, period)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "repeated %s window: %s .. %s\n", period, first.Format(time.RFC3339), last.Format(time.RFC3339))
	return err
}

// secondsToDuration converts seconds to a Duration rounded to the millisecond.
func secondsToDuration(s float64) time.Duration {
	return time.Duration(math.Round(s*1e3)) * time.Millisecond
}

func init() {
	datesCmd.Flags().StringVar(&datesRefDate, "reference-date", "", "Also print simulation seconds relative to this date")
	datesCmd.Flags().Float64Var(&datesTStart, "t-start", 0, "Simulation start time in seconds after the reference date")
	datesCmd.Flags().StringVar(&datesPeriod, "period", "", "Calendar period of a repeated window (1Y, 1M, 1W, 1D)")
	datesCmd.Flags().StringVar(&datesRepeatDate, "repeat-date", "", "Date inside the repeated window (default: first date)")
}
