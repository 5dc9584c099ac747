/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
)

// outputRecords displays decoded records
func outputRecords(out io.Writer, format string, records []recordView) error {
	if format == "json" {
		return outputJSON(out, records)
	}
	return outputRecordsTable(out, records)
}

// outputRecordsTable displays records in table format
func outputRecordsTable(out io.Writer, records []recordView) error {
	if len(records) == 0 {
		fmt.Fprintln(out, "No records found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "USO\tTYPE\tSIZE\tTXN\tSP_HANDLE\tTABLE\tVALUES")
	for _, r := range records {
		table := r.Table
		if table == "" {
			table = r.Signature
		}
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\t%s\t%s\n",
			r.USO,
			r.Type,
			r.Size,
			optional(r.TxnID),
			optional(r.SpHandle),
			table,
			formatValues(r.Values))
	}
	return nil
}

// outputVerify displays verification results
func outputVerify(out io.Writer, format string, results []segmentResult) error {
	if format == "json" {
		return outputJSON(out, results)
	}
	if len(results) == 0 {
		fmt.Fprintln(out, "No segments found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "PARTITION\tSTART_USO\tSIZE\tRECORDS\tTXNS\tCHANGES\tSTATUS")
	for _, r := range results {
		status := "ok"
		switch {
		case r.Error != "":
			status = "FAILED: " + r.Error
		case r.Gap:
			status = "ok (offset gap)"
		}
		fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%d\t%d\t%s\n",
			r.Partition, r.StartUSO, r.Size, r.Records, r.Transactions, r.Changes, status)
	}
	return nil
}

// outputJSON displays v in JSON format
func outputJSON(out io.Writer, v any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func optional(v int64) string {
	if v == 0 {
		return "-"
	}
	return fmt.Sprint(v)
}

// formatValues renders column values as "name=value" sorted by name
func formatValues(values map[string]any) string {
	if len(values) == 0 {
		return ""
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v := values[k]
		if v == nil {
			v = "NULL"
		}
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	return strings.Join(parts, " ")
}
