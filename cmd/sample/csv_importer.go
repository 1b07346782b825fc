package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"
)

// ImportError represents an error that occurred while importing a single CSV row.
type ImportError struct {
	RowNumber int    // CSV row number (1-based, including header)
	Column    string // CSV column name that caused the error
	RawValue  string // Original CSV value
	Reason    string // Error description
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("row %d, column %q: value %q - %s",
		e.RowNumber, e.Column, e.RawValue, e.Reason)
}

// ImportResult contains the results of a CSV import operation.
type ImportResult struct {
	TotalRows    int
	SuccessCount int
	FailedCount  int
	Errors       []*ImportError
	Duration     time.Duration
}

// Summary returns a human-readable summary of the import result.
func (r *ImportResult) Summary() string {
	return fmt.Sprintf("Import completed: %d/%d rows successful, %d failed, duration: %v",
		r.SuccessCount, r.TotalRows, r.FailedCount, r.Duration)
}

// employeeColumns is the expected CSV header, in order.
var employeeColumns = []string{"id", "org_id", "name", "squad", "active", "salary", "hired_at", "dept_id"}

// ImportEmployeesFromFile loads employee rows from a CSV file into the
// employees table. Rows that fail to parse are skipped and reported; insert
// failures abort the import.
func ImportEmployeesFromFile(ctx context.Context, db *sql.DB, filePath string) (*ImportResult, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	return ImportEmployeesFromReader(ctx, db, file)
}

// ImportEmployeesFromReader is ImportEmployeesFromFile over any reader.
func ImportEmployeesFromReader(ctx context.Context, db *sql.DB, r io.Reader) (*ImportResult, error) {
	start := time.Now()
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	if err := validateHeader(header); err != nil {
		return nil, err
	}

	result := &ImportResult{}
	rowNumber := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		rowNumber++
		if err != nil {
			result.TotalRows++
			result.FailedCount++
			result.Errors = append(result.Errors, &ImportError{
				RowNumber: rowNumber,
				Reason:    err.Error(),
			})
			continue
		}

		result.TotalRows++
		values, importErr := parseEmployeeRow(rowNumber, record)
		if importErr != nil {
			result.FailedCount++
			result.Errors = append(result.Errors, importErr)
			continue
		}

		_, err = db.ExecContext(ctx,
			`INSERT INTO employees (id, org_id, name, squad, active, salary, hired_at, dept_id)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, values...)
		if err != nil {
			return nil, fmt.Errorf("insert failed at row %d: %w", rowNumber, err)
		}
		result.SuccessCount++
	}

	result.Duration = time.Since(start)
	return result, nil
}

func validateHeader(header []string) error {
	if len(header) != len(employeeColumns) {
		return fmt.Errorf("expected %d columns, got %d", len(employeeColumns), len(header))
	}
	for i, name := range employeeColumns {
		if header[i] != name {
			return fmt.Errorf("expected column %d to be %q, got %q", i, name, header[i])
		}
	}
	return nil
}

// parseEmployeeRow converts one CSV record into insert parameters.
func parseEmployeeRow(rowNumber int, record []string) ([]any, *ImportError) {
	if len(record) != len(employeeColumns) {
		return nil, &ImportError{
			RowNumber: rowNumber,
			Reason:    fmt.Sprintf("expected %d fields, got %d", len(employeeColumns), len(record)),
		}
	}

	id, err := strconv.ParseInt(record[0], 10, 64)
	if err != nil {
		return nil, &ImportError{RowNumber: rowNumber, Column: "id", RawValue: record[0], Reason: "not an integer"}
	}
	orgID, err := strconv.ParseInt(record[1], 10, 64)
	if err != nil {
		return nil, &ImportError{RowNumber: rowNumber, Column: "org_id", RawValue: record[1], Reason: "not an integer"}
	}
	active, err := strconv.ParseBool(record[4])
	if err != nil {
		return nil, &ImportError{RowNumber: rowNumber, Column: "active", RawValue: record[4], Reason: "not a boolean"}
	}
	salary, err := strconv.ParseFloat(record[5], 64)
	if err != nil {
		return nil, &ImportError{RowNumber: rowNumber, Column: "salary", RawValue: record[5], Reason: "not a number"}
	}
	hiredAt, err := time.Parse("2006-01-02 15:04:05", record[6])
	if err != nil {
		// Date-only values are common in exports.
		hiredAt, err = time.Parse("2006-01-02", record[6])
		if err != nil {
			return nil, &ImportError{RowNumber: rowNumber, Column: "hired_at", RawValue: record[6], Reason: "not a timestamp"}
		}
	}
	deptID, err := strconv.ParseInt(record[7], 10, 64)
	if err != nil {
		return nil, &ImportError{RowNumber: rowNumber, Column: "dept_id", RawValue: record[7], Reason: "not an integer"}
	}

	return []any{id, orgID, record[2], record[3], active, salary, hiredAt, deptID}, nil
}
