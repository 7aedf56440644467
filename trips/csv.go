/*
csv.go - CSV intake for bulk trip imports

FORMAT:
  Header row required. Recognized columns (order-independent):

    date           "YYYY-MM-DD", required
    locations      route addresses separated by ";", at least two, required
    distance       kilometers, decimal, required
    project_id     optional
    reason         optional
    special_origin HOME | CONTINUATION | END_OF_CONTINUATION, optional
    passengers     optional non-negative integer

  Unknown columns are ignored so exports from other tools can be fed in
  unchanged. All rows are parsed before anything is written: one bad row
  rejects the whole file, and the import lands as a single batch.
*/
package trips

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/driveline/trip-ledger/ledger"
)

// ImportCSV parses trips from r and records them as one CSV_IMPORT batch.
func (s *Service) ImportCSV(ctx context.Context, r io.Reader) (*ledger.ImportResult, error) {
	data, err := ParseTripsCSV(r)
	if err != nil {
		return nil, err
	}
	return s.Ledger.ImportTripsBatch(ctx, data, ledger.SourceCSVImport, nil)
}

// ParseTripsCSV reads the whole CSV into trip data without writing anything.
func ParseTripsCSV(r io.Reader) ([]ledger.TripData, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, &ledger.ValidationError{Field: "csv", Message: fmt.Sprintf("cannot read header: %v", err)}
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"date", "locations", "distance"} {
		if _, ok := cols[required]; !ok {
			return nil, &ledger.ValidationError{Field: "csv", Message: fmt.Sprintf("missing required column %q", required)}
		}
	}

	var trips []ledger.TripData
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, &ledger.ValidationError{Field: "csv", Message: fmt.Sprintf("line %d: %v", line, err)}
		}

		data, err := parseTripRow(cols, record)
		if err != nil {
			return nil, &ledger.ValidationError{Field: "csv", Message: fmt.Sprintf("line %d: %v", line, err)}
		}
		trips = append(trips, data)
	}

	if len(trips) == 0 {
		return nil, &ledger.ValidationError{Field: "csv", Message: "no trip rows found"}
	}
	return trips, nil
}

func parseTripRow(cols map[string]int, record []string) (ledger.TripData, error) {
	cell := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	date, err := ledger.ParseDate(cell("date"))
	if err != nil {
		return ledger.TripData{}, err
	}

	var locations []string
	for _, loc := range strings.Split(cell("locations"), ";") {
		if trimmed := strings.TrimSpace(loc); trimmed != "" {
			locations = append(locations, trimmed)
		}
	}
	if len(locations) < 2 {
		return ledger.TripData{}, fmt.Errorf("locations needs at least two addresses separated by \";\"")
	}

	distance, err := decimal.NewFromString(cell("distance"))
	if err != nil {
		return ledger.TripData{}, fmt.Errorf("invalid distance %q", cell("distance"))
	}

	data := ledger.TripData{
		Date:          date,
		Locations:     locations,
		Distance:      distance,
		ProjectID:     ledger.ProjectID(cell("project_id")),
		Reason:        cell("reason"),
		SpecialOrigin: ledger.SpecialOrigin(cell("special_origin")),
	}

	if p := cell("passengers"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return ledger.TripData{}, fmt.Errorf("invalid passengers %q", p)
		}
		data.Passengers = &n
	}

	return data, nil
}
