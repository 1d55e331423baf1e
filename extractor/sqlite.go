/*
 * Copyright (c) 2021 Siemens AG
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy of
 * this software and associated documentation files (the "Software"), to deal in
 * the Software without restriction, including without limitation the rights to
 * use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of
 * the Software, and to permit persons to whom the Software is furnished to do so,
 * subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS
 * FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR
 * COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
 * IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
 * CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
 *
 * Author(s): Jonas Plum
 */

package extractor

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite" // registers the sqlite driver

	"github.com/forensicanalysis/browserartifacts/record"
	"github.com/forensicanalysis/browserartifacts/schema"
	"github.com/forensicanalysis/browserartifacts/workcopy"
)

var sqliteMagic = []byte("SQLite format 3\x00")

func isSQLite(header []byte) bool {
	return bytes.HasPrefix(header, sqliteMagic)
}

type database struct {
	db      *sql.DB
	copy    *workcopy.Copy
	columns map[string]map[string]bool
}

// openDatabase opens a working copy of the source, including its journals.
func (s *session) openDatabase(ctx context.Context) (*database, bool) {
	c, ok := s.stage()
	if !ok {
		return nil, false
	}
	db, err := openCopy(ctx, s, c)
	if err != nil {
		c.Close() // nolint:errcheck
		s.fail(record.UnreadableSource, "", err)
		return nil, false
	}
	return db, true
}

func openCopy(ctx context.Context, s *session, c *workcopy.Copy) (*database, error) {
	name, err := c.Path()
	if err != nil {
		return nil, err
	}
	if err := c.StageSidecars(s.fsys, "-wal", "-journal"); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", name)
	if err != nil {
		return nil, errors.Wrap(err, "could not open database")
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close() // nolint:errcheck
		return nil, errors.Wrap(err, "could not open database")
	}
	d := &database{db: db, copy: c, columns: map[string]map[string]bool{}}
	if _, err := d.tables(ctx); err != nil {
		d.Close() // nolint:errcheck
		return nil, errors.Wrap(err, "database is not readable")
	}
	return d, nil
}

func (d *database) Close() error {
	err := d.db.Close()
	if cerr := d.copy.Close(); err == nil {
		err = cerr
	}
	return err
}

// tables returns the names of all tables and views.
func (d *database) tables(ctx context.Context) (map[string]bool, error) {
	rows, err := d.db.QueryContext(ctx, "SELECT name FROM sqlite_master WHERE type IN ('table', 'view')")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tables := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables[name] = true
	}
	return tables, rows.Err()
}

func (d *database) tableColumns(ctx context.Context, table string) (map[string]bool, error) {
	if columns, ok := d.columns[table]; ok {
		return columns, nil
	}
	rows, err := d.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(\"%s\")", table)) // #nosec
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	columns := map[string]bool{}
	for rows.Next() {
		values := make([]interface{}, len(names))
		pointers := make([]interface{}, len(names))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, err
		}
		for i, n := range names {
			if n == "name" {
				columns[stringOf(values[i])] = true
			}
		}
	}
	d.columns[table] = columns
	return columns, rows.Err()
}

func stringOf(v interface{}) string {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return fmt.Sprint(v)
}

// missing lists the required columns that the database lacks.
func (d *database) missing(ctx context.Context, requires map[string][]string) []string {
	var missing []string
	for table, columns := range requires {
		have, err := d.tableColumns(ctx, table)
		if err != nil || len(have) == 0 {
			missing = append(missing, table)
			continue
		}
		for _, column := range columns {
			if !have[column] {
				missing = append(missing, table+"."+column)
			}
		}
	}
	sort.Strings(missing)
	return missing
}

// query runs q and returns all rows.
func (d *database) query(ctx context.Context, q string) ([]schema.Row, error) {
	rows, err := d.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var result []schema.Row
	for rows.Next() {
		values := make([]interface{}, len(names))
		pointers := make([]interface{}, len(names))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return result, err
		}
		row := make(schema.Row, len(names))
		for i, n := range names {
			row[n] = values[i]
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// A variant is one way to query a structure in a specific schema version.
type variant struct {
	query    string
	sql      string
	requires map[string][]string
}

// runVariants runs the first variant whose columns exist. A variant failing
// at runtime is recorded as a schema mismatch and the next one is tried.
func (s *session) runVariants(ctx context.Context, db *database, variants ...variant) {
	var mismatches []string
	for _, v := range variants {
		if missing := db.missing(ctx, v.requires); len(missing) > 0 {
			mismatches = append(mismatches, v.query+": missing "+strings.Join(missing, ", "))
			continue
		}
		rows, err := db.query(ctx, v.sql)
		if err != nil {
			s.fail(record.SchemaMismatch, v.query, err)
			continue
		}
		for _, row := range rows {
			s.add(v.query, row)
		}
		return
	}
	s.fail(record.SchemaMismatch, variants[0].query,
		fmt.Errorf("no known schema version (%s)", strings.Join(mismatches, "; ")))
}
