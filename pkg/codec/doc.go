// Package codec defines the binary record format of the DR change log.
//
// A DR stream is a sequence of back-to-back records. Every record starts
// with a one byte format version and a one byte record type, and ends with
// a CRC-32C (Castagnoli) checksum over all of its preceding bytes. All
// integers are little-endian.
//
// # Record Formats
//
// Transaction markers:
//
//	BEGIN_TXN: [Version(1)][Type(1)][TxnID(8)][SpHandle(8)][CRC32C(4)]   22 bytes
//	END_TXN:   [Version(1)][Type(1)][SpHandle(8)][CRC32C(4)]             14 bytes
//
// Change records (INSERT, DELETE, UPDATE):
//
//	[Version(1)][Type(1)][TableSignature(8)][RowLength(4)][NullMask][ColumnData][CRC32C(4)]
//
// RowLength counts the null mask and the column data but not itself. The
// null mask holds one bit per column, rounded up to whole bytes. The row
// header (RowLength plus NullMask) is therefore 4 + ceil(columns/8) bytes
// and a change record takes 14 bytes plus the row header plus column data.
//
// # Record Types
//
//	INSERT=0  DELETE=1  UPDATE=2  BEGIN_TXN=3  END_TXN=4
//
// # Framing
//
// Change records only appear between a BEGIN_TXN and the END_TXN that
// closes it, transactions never nest, and END_TXN repeats the spHandle of
// its BEGIN_TXN. FramingChecker validates these rules on the read side.
//
// # Usage
//
//	sc := codec.NewScanner(block)
//	for sc.Next() {
//	    r := sc.Record()
//	    fmt.Println(r.Type, r.SpHandle)
//	}
//	if err := sc.Err(); err != nil {
//	    return err // truncated or corrupted
//	}
//
// Decode never returns a record whose checksum does not match.
package codec
