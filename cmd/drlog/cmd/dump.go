/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/ssargent/drlog/pkg/catalog"
	"github.com/ssargent/drlog/pkg/codec"
	"github.com/ssargent/drlog/pkg/sink"
	"github.com/ssargent/drlog/pkg/tuple"
)

// dumpCmd represents the dump command
var dumpCmd = &cobra.Command{
	Use:   "dump <segment>",
	Short: "Print the records of a segment file",
	Long: `Decode a file sink segment and print its records. Rows of tables in the
configuration are decoded column by column.

Examples:
  drlog dump data/0/00000000000000000000-2M9JZ1dJkZ6qgkuQBN8lNqh9Q2P.drlog
  drlog dump --format json <segment>`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		if format != "table" && format != "json" {
			return fmt.Errorf("unknown format %q", format)
		}

		cfg, err := loadConfig(cmd, true)
		if err != nil {
			return err
		}
		tables, err := cfg.Registry()
		if err != nil {
			return err
		}

		records, err := readSegment(args[0], tables)
		if err != nil {
			return err
		}
		return outputRecords(cmd.OutOrStdout(), format, records)
	},
}

func init() {
	rootCmd.AddCommand(dumpCmd)
	dumpCmd.Flags().StringP("format", "f", "table", "Output format (table, json)")
}

// recordView is the printable form of a decoded record
type recordView struct {
	USO       int64          `json:"uso"`
	Type      string         `json:"type"`
	Size      int            `json:"size"`
	TxnID     int64          `json:"txn_id,omitempty"`
	SpHandle  int64          `json:"sp_handle,omitempty"`
	Table     string         `json:"table,omitempty"`
	Signature string         `json:"signature,omitempty"`
	Values    map[string]any `json:"values,omitempty"`
}

// readSegment decodes every record of the segment at path
func readSegment(path string, tables *catalog.Registry) ([]recordView, error) {
	startUSO, _, err := sink.ParseSegmentName(path)
	if err != nil {
		return nil, err
	}

	r, err := sink.OpenSegment(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var views []recordView
	for {
		uso := startUSO + r.Offset()
		rec, err := r.ReadNext()
		if errors.Is(err, io.EOF) {
			return views, nil
		}
		if err != nil {
			return views, err
		}
		views = append(views, viewRecord(uso, rec, tables))
	}
}

func viewRecord(uso int64, rec *codec.Record, tables *catalog.Registry) recordView {
	v := recordView{USO: uso, Type: rec.Type.String(), Size: rec.Size}
	switch {
	case rec.Type == codec.TypeBeginTxn:
		v.TxnID = rec.TxnID
		v.SpHandle = rec.SpHandle
	case rec.Type == codec.TypeEndTxn:
		v.SpHandle = rec.SpHandle
	default:
		v.Signature = strconv.FormatUint(rec.TableSignature, 16)
		table, err := tables.BySignature(rec.TableSignature)
		if err != nil {
			return v
		}
		v.Table = table.Name()
		row, err := tuple.Decode(table.Schema(), rec.Row)
		if err != nil {
			return v
		}
		v.Values = make(map[string]any, row.ColumnCount())
		for i, col := range table.Schema().Columns() {
			v.Values[col.Name] = printable(row.Value(i))
		}
	}
	return v
}

func printable(v any) any {
	switch val := v.(type) {
	case []byte:
		return hex.EncodeToString(val)
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	default:
		return val
	}
}
