// Package dbf reads and appends the fixed-width record tables exchanged
// with the broker terminal. Every table starts with a 32-byte header
// (record count, header length, record length) followed by records of
// fixed-width string fields.
package dbf

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
)

const headerSize = 32

// Column describes one fixed-width field. The last byte of each field is
// a separator, so Width-1 bytes carry content.
type Column struct {
	Name  string
	Width int
}

// Layout names a table and its column widths.
type Layout struct {
	Name    string
	Columns []Column
}

// RecordLen returns the on-disk length of one record.
func (l Layout) RecordLen() int {
	total := 0
	for _, c := range l.Columns {
		total += c.Width
	}
	return total
}

// Row is one decoded record, keyed by column name. Values are trimmed.
type Row map[string]string

// Field returns the trimmed value of a column, empty when absent.
func (r Row) Field(name string) string {
	return r[name]
}

type header struct {
	count     uint32
	headerLen uint16
	recordLen uint16
}

func parseHeader(b []byte) (header, error) {
	if len(b) < headerSize {
		return header{}, fmt.Errorf("short table header: %d bytes", len(b))
	}
	h := header{
		count:     binary.LittleEndian.Uint32(b[4:8]),
		headerLen: binary.LittleEndian.Uint16(b[8:10]),
		recordLen: binary.LittleEndian.Uint16(b[10:12]),
	}
	if h.headerLen < headerSize || h.recordLen == 0 {
		return header{}, fmt.Errorf("invalid table header: headerLen=%d recordLen=%d", h.headerLen, h.recordLen)
	}
	return h, nil
}

func encodeHeader(h header) []byte {
	b := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(b[4:8], h.count)
	binary.LittleEndian.PutUint16(b[8:10], h.headerLen)
	binary.LittleEndian.PutUint16(b[10:12], h.recordLen)
	return b
}

// ReadTable returns the rows of a table starting at row index sinceRow.
// A missing or locked file, or one with no rows past sinceRow, yields
// (nil, nil): the broker terminal holds tables exclusively while writing
// and the next poll will catch up.
func ReadTable(path string, layout Layout, sinceRow int) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) || errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, headerSize)
	if _, err := io.ReadFull(f, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, nil
		}
		return nil, err
	}
	h, err := parseHeader(buf)
	if err != nil {
		return nil, err
	}
	if sinceRow < 0 {
		sinceRow = 0
	}
	if sinceRow >= int(h.count) {
		return nil, nil
	}

	offset := int64(h.headerLen) + int64(sinceRow)*int64(h.recordLen)
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, err
	}

	rows := make([]Row, 0, int(h.count)-sinceRow)
	record := make([]byte, h.recordLen)
	for i := sinceRow; i < int(h.count); i++ {
		if _, err := io.ReadFull(f, record); err != nil {
			// Truncated tail: the writer is mid-append, take what we have.
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return nil, err
		}
		rows = append(rows, decodeRecord(layout, record))
	}
	return rows, nil
}

func decodeRecord(layout Layout, record []byte) Row {
	row := make(Row, len(layout.Columns))
	start := 0
	for i, col := range layout.Columns {
		if start >= len(record) {
			row[col.Name] = ""
			continue
		}
		end := start + col.Width - 1
		if i == len(layout.Columns)-1 || end > len(record) {
			end = len(record)
		}
		row[col.Name] = strings.TrimSpace(string(record[start:end]))
		start += col.Width
	}
	return row
}

// AppendRecords appends positional records to a table, creating the file
// with a fresh header when needed. Values beyond the layout's column count
// are ignored; missing trailing values become empty fields.
func AppendRecords(path string, layout Layout, records [][]string) error {
	if len(records) == 0 {
		return nil
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	h := header{count: 0, headerLen: headerSize, recordLen: uint16(layout.RecordLen())}
	if info.Size() >= headerSize {
		buf := make([]byte, headerSize)
		if _, err := io.ReadFull(f, buf); err != nil {
			return err
		}
		if h, err = parseHeader(buf); err != nil {
			return err
		}
	}

	end := int64(h.headerLen) + int64(h.count)*int64(h.recordLen)
	if _, err := f.Seek(end, io.SeekStart); err != nil {
		return err
	}
	for _, values := range records {
		if _, err := f.Write(encodeRecord(layout, int(h.recordLen), values)); err != nil {
			return err
		}
		h.count++
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if _, err := f.Write(encodeHeader(h)); err != nil {
		return err
	}
	return f.Sync()
}

func encodeRecord(layout Layout, recordLen int, values []string) []byte {
	record := make([]byte, recordLen)
	for i := range record {
		record[i] = ' '
	}
	start := 0
	for i, col := range layout.Columns {
		if start >= recordLen {
			break
		}
		width := col.Width - 1
		if i == len(layout.Columns)-1 {
			width = recordLen - start
		}
		if i < len(values) {
			v := values[i]
			if len(v) > width {
				v = v[:width]
			}
			copy(record[start:start+width], v)
		}
		start += col.Width
	}
	return record
}

// RowCount returns the number of records a table currently holds. Missing
// and locked files count as empty.
func RowCount(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) || errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	defer f.Close()
	buf := make([]byte, headerSize)
	if _, err := io.ReadFull(f, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return 0, nil
		}
		return 0, err
	}
	h, err := parseHeader(buf)
	if err != nil {
		return 0, err
	}
	return int(h.count), nil
}
