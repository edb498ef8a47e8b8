package proxy

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

var (
	// ErrMissingColumn is returned when the CSV header lacks a required column.
	ErrMissingColumn = errors.New("missing column")

	// ErrDuplicateService is returned when two rows share a name.
	ErrDuplicateService = errors.New("duplicate service")
)

// CSV column names.
const (
	ColumnName     = "Name"
	ColumnSource   = "Source"
	ColumnProtocol = "Protocol"
	ColumnIP       = "IP"
	ColumnPort     = "Port"
)

var columns = []string{ColumnName, ColumnSource, ColumnProtocol, ColumnIP, ColumnPort}

// ParseCSV reads services from CSV. The first record is the header; columns
// may appear in any order and extra columns are ignored. Lines starting with
// '#' and blank lines are skipped. Every row is validated and all row errors
// are returned together.
func ParseCSV(r io.Reader) ([]Service, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return []Service{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, col := range header {
		index[strings.TrimSpace(col)] = i
	}

	for _, col := range columns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingColumn, col)
		}
	}

	var (
		services []Service
		errs     []error
	)

	seen := map[string]int{}

	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}

		line, _ := cr.FieldPos(0)
		svc, err := parseRecord(record, index, line)
		if err != nil {
			errs = append(errs, fmt.Errorf("line %d: %w", line, err))

			continue
		}

		if prev, ok := seen[svc.Name]; ok {
			errs = append(errs, fmt.Errorf("line %d: %w %q, first defined on line %d",
				line, ErrDuplicateService, svc.Name, prev))

			continue
		}

		seen[svc.Name] = line
		services = append(services, svc)
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	if services == nil {
		services = []Service{}
	}

	return services, nil
}

func parseRecord(record []string, index map[string]int, line int) (Service, error) {
	get := func(col string) string {
		return strings.TrimSpace(record[index[col]])
	}

	svc := Service{
		Name:     get(ColumnName),
		Host:     get(ColumnSource),
		Protocol: Protocol(strings.ToLower(get(ColumnProtocol))),
		IP:       get(ColumnIP),
		Line:     line,
	}

	port := get(ColumnPort)
	if port != "" {
		n, err := strconv.Atoi(port)
		if err != nil {
			return svc, fmt.Errorf("%w %q: port %q is not a number", ErrInvalidService, svc.Name, port)
		}

		svc.Port = n
	}

	if err := svc.Validate(); err != nil {
		return svc, err
	}

	return svc, nil
}
