package codec_test

import (
	"errors"
	"fmt"
	"log"

	"github.com/ssargent/drlog/pkg/codec"
)

// ExampleBeginTxn demonstrates writing and reading a transaction marker
func ExampleBeginTxn() {
	buf := make([]byte, codec.BeginTxnSize)
	n := codec.BeginTxn{TxnID: 100, SpHandle: 5000}.Put(buf)
	fmt.Printf("Encoded %d bytes\n", n)

	record, err := codec.Decode(buf)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Type: %s\n", record.Type)
	fmt.Printf("TxnID: %d\n", record.TxnID)
	fmt.Printf("SpHandle: %d\n", record.SpHandle)

	// Output:
	// Encoded 22 bytes
	// Type: BEGIN_TXN
	// TxnID: 100
	// SpHandle: 5000
}

// ExampleEncodeRow demonstrates building a change record
func ExampleEncodeRow() {
	// null mask for one non-null column followed by a BIGINT
	row := []byte{0x00, 0x2A, 0, 0, 0, 0, 0, 0, 0}

	encoded, err := codec.EncodeRow(codec.TypeInsert, 42, row)
	if err != nil {
		log.Fatal(err)
	}

	record, err := codec.Decode(encoded)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Encoded %d bytes\n", len(encoded))
	fmt.Printf("Type: %s\n", record.Type)
	fmt.Printf("Table: %d\n", record.TableSignature)
	fmt.Printf("Row: %x\n", record.Row)

	// Output:
	// Encoded 27 bytes
	// Type: INSERT
	// Table: 42
	// Row: 002a00000000000000
}

// ExampleDecode_errorHandling demonstrates detecting a truncated record
func ExampleDecode_errorHandling() {
	buf := make([]byte, codec.EndTxnSize)
	codec.EndTxn{SpHandle: 7}.Put(buf)

	_, err := codec.Decode(buf[:10])
	fmt.Printf("Truncated: %t\n", errors.Is(err, codec.ErrTruncated))

	buf[3] ^= 0xFF
	_, err = codec.Decode(buf)
	fmt.Printf("Corrupted: %t\n", errors.Is(err, codec.ErrChecksumMismatch))

	// Output:
	// Truncated: true
	// Corrupted: true
}
