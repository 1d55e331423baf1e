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

// Package store writes browser artifacts into a forensicstore: a SQLite
// database holding JSON elements in a full text indexed table, one view per
// element type and an optional SQLite archive of the source files.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"
	"github.com/fatih/structs"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	forensicstoreVersion    = 2
	elementaryApplicationID = 1701602669
	discriminator           = "type"
)

// ErrStoreExists is returned by New if the file already exists.
var ErrStoreExists = errors.New("store already exists")

// ErrStoreNotExists is returned by Open if the file does not exist.
var ErrStoreNotExists = errors.New("store does not exist")

var errElementNotFound = errors.New("element does not exist")

// JSONElement is a single element encoded as JSON.
type JSONElement []byte

// Element is a decoded element.
type Element map[string]interface{}

// Store is a forensicstore database. It is not safe for concurrent use.
type Store struct {
	cursor  *sqlite.Conn
	types   *typeMap
	schemas *schemaMap
}

// New creates a new store at url, which may be ":memory:".
func New(url string) (*Store, error) {
	return open(url, true)
}

// Open opens an existing store.
func Open(url string) (*Store, error) {
	return open(url, false)
}

func open(url string, create bool) (*Store, error) { // nolint:gocyclo,funlen
	if url != ":memory:" {
		exists := true
		if _, err := os.Stat(url); err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
			exists = false
		}
		if create && exists {
			return nil, ErrStoreExists
		}
		if !create && !exists {
			return nil, ErrStoreNotExists
		}
		if create {
			if err := os.MkdirAll(filepath.Dir(url), 0750); err != nil {
				return nil, err
			}
			zap.L().Info("creating store", zap.String("url", url))
		}
	}

	cursor, err := sqlite.OpenConn(url, 0)
	if err != nil {
		return nil, errors.Wrap(err, "could not open store")
	}
	store := &Store{cursor: cursor, types: newTypeMap(), schemas: newSchemaMap()}

	if create {
		err = store.initialize()
	} else {
		err = store.checkFormat()
	}
	if err == nil {
		err = store.setupTypes()
	}
	if err == nil {
		err = store.loadSchemas()
	}
	if err != nil {
		cursor.Close() // nolint:errcheck
		return nil, err
	}
	return store, nil
}

func (store *Store) initialize() error {
	if err := setPragma(store.cursor, "application_id", elementaryApplicationID); err != nil {
		return err
	}
	if err := setPragma(store.cursor, "user_version", forensicstoreVersion); err != nil {
		return err
	}
	if err := store.exec("CREATE VIRTUAL TABLE `elements` " +
		"USING fts5(id UNINDEXED, json, insert_time UNINDEXED, tokenize=\"unicode61 tokenchars '/.'\")"); err != nil {
		return errors.Wrap(err, "could not create elements table")
	}
	return store.exec(sqlarTable)
}

func (store *Store) checkFormat() error {
	applicationID, err := pragma(store.cursor, "application_id")
	if err != nil {
		return err
	}
	if applicationID != elementaryApplicationID {
		return fmt.Errorf("wrong file format (application_id is %d, requires %d)", applicationID, elementaryApplicationID)
	}
	version, err := pragma(store.cursor, "user_version")
	if err != nil {
		return err
	}
	if version != forensicstoreVersion {
		return fmt.Errorf("wrong file format (user_version is %d, requires %d)", version, forensicstoreVersion)
	}
	return nil
}

func pragma(conn *sqlite.Conn, name string) (int64, error) {
	stmt, err := conn.Prepare("PRAGMA " + name)
	if err != nil {
		return 0, err
	}
	if _, err = stmt.Step(); err != nil {
		return 0, err
	}
	i := stmt.GetInt64(name)
	return i, stmt.Finalize()
}

func setPragma(conn *sqlite.Conn, name string, i int64) error {
	stmt, err := conn.Prepare("PRAGMA " + name + " = " + fmt.Sprint(i))
	if err != nil {
		return err
	}
	if _, err = stmt.Step(); err != nil {
		return err
	}
	return stmt.Finalize()
}

/* ################################
#   API
################################ */

// Insert validates and adds a single element. Elements without id get one.
func (store *Store) Insert(element JSONElement) (string, error) {
	flaws, err := store.validateElementSchema(element)
	if err != nil {
		return "", errors.Wrap(err, "validation failed")
	}
	if len(flaws) > 0 {
		return "", fmt.Errorf("element could not be validated [%s]", strings.Join(flaws, ","))
	}

	nestedElement := map[string]interface{}{}
	if err := json.Unmarshal(element, &nestedElement); err != nil {
		return "", err
	}
	flatElement := flatten(nestedElement)

	elementType, ok := flatElement[discriminator].(string)
	if !ok || elementType == "" {
		return "", errors.New("element requires type")
	}
	if _, ok := flatElement[elementType]; ok {
		return "", fmt.Errorf("element must not contain a field '%s'", elementType)
	}
	id, ok := flatElement["id"].(string)
	if !ok {
		id = elementType + "--" + uuid.New().String()
		nestedElement["id"] = id
		flatElement["id"] = id
		if element, err = json.Marshal(nestedElement); err != nil {
			return "", err
		}
	}

	store.types.addAll(elementType, flatElement)

	stmt, err := store.cursor.Prepare("INSERT INTO `elements` (id, json, insert_time) VALUES ($id, $json, $time)")
	if err != nil {
		return "", errors.Wrap(err, "could not prepare insert")
	}
	stmt.SetText("$id", id)
	stmt.SetText("$json", string(element))
	stmt.SetText("$time", time.Now().UTC().Format("2006-01-02T15:04:05.000Z"))
	if _, err := stmt.Step(); err != nil {
		return "", errors.Wrap(err, "could not insert element")
	}
	return id, stmt.Reset()
}

// InsertBatch adds a set of elements in one transaction.
func (store *Store) InsertBatch(elements []JSONElement) (ids []string, err error) {
	if len(elements) == 0 {
		return nil, nil
	}
	defer sqlitex.Save(store.cursor)(&err)
	for _, element := range elements {
		id, err := store.Insert(element)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// InsertStruct converts a Go struct to an element with snake case keys and inserts it.
func (store *Store) InsertStruct(element interface{}) (string, error) {
	ids, err := store.InsertStructBatch([]interface{}{element})
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

// InsertStructBatch adds a list of structs.
func (store *Store) InsertStructBatch(elements []interface{}) ([]string, error) {
	var ms []JSONElement
	for _, element := range elements {
		m := lower(structs.Map(element)).(map[string]interface{})
		b, err := json.Marshal(m)
		if err != nil {
			return nil, err
		}
		ms = append(ms, b)
	}
	return store.InsertBatch(ms)
}

// Get retrieves a single element.
func (store *Store) Get(id string) (JSONElement, error) {
	stmt, err := store.cursor.Prepare("SELECT json FROM `elements` WHERE id = $id")
	if err != nil {
		return nil, err
	}
	stmt.SetText("$id", id)

	elements, err := rowsToElements(stmt)
	if err != nil {
		return nil, err
	}
	if len(elements) == 0 {
		return nil, errElementNotFound
	}
	return elements[0], nil
}

// Query executes a sql query that returns a json column.
func (store *Store) Query(query string) ([]JSONElement, error) {
	stmt, err := store.cursor.Prepare(query)
	if err != nil {
		return nil, err
	}
	return rowsToElements(stmt)
}

var selectKey = regexp.MustCompile(`^[A-Za-z0-9_.]+$`)

// Select retrieves all elements matching one of the conditions. The keys of
// a condition are flattened attribute names, the values LIKE patterns.
func (store *Store) Select(conditions []map[string]string) ([]JSONElement, error) {
	var ors []string
	var values []string
	for _, condition := range conditions {
		keys := make([]string, 0, len(condition))
		for key := range condition {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		var ands []string
		for _, key := range keys {
			if !selectKey.MatchString(key) {
				return nil, fmt.Errorf("invalid attribute name %q", key)
			}
			ands = append(ands, fmt.Sprintf("json_extract(json, '%s') LIKE ?", jsonPath(key)))
			values = append(values, condition[key])
		}
		if len(ands) > 0 {
			ors = append(ors, "("+strings.Join(ands, " AND ")+")")
		}
	}

	query := "SELECT json FROM `elements`"
	if len(ors) > 0 {
		query += " WHERE " + strings.Join(ors, " OR ") // #nosec
	}
	stmt, err := store.cursor.Prepare(query)
	if err != nil {
		return nil, err
	}
	for i, value := range values {
		stmt.BindText(i+1, value)
	}
	return rowsToElements(stmt)
}

// Search runs a full text query over all elements.
func (store *Store) Search(q string) ([]JSONElement, error) {
	stmt, err := store.cursor.Prepare("SELECT json FROM `elements` WHERE elements = $query")
	if err != nil {
		return nil, err
	}
	stmt.SetText("$query", q)
	return rowsToElements(stmt)
}

// All returns every element.
func (store *Store) All() ([]JSONElement, error) {
	return store.Select(nil)
}

// Close creates the views of new element types and closes the database.
func (store *Store) Close() error {
	if store.types.changed {
		if err := store.createViews(); err != nil {
			zap.L().Warn("could not create views", zap.Error(err))
		}
	}
	return store.cursor.Close()
}

/* ################################
#   Intern
################################ */

func (store *Store) createViews() error {
	for typeName, fields := range store.types.all() {
		if !selectKey.MatchString(strings.ReplaceAll(typeName, "-", "_")) {
			continue
		}
		if err := store.exec(fmt.Sprintf("DROP VIEW IF EXISTS '%s'", typeName)); err != nil {
			return err
		}
		var columns []string
		for field := range fields {
			if !selectKey.MatchString(field) {
				continue
			}
			columns = append(columns, fmt.Sprintf("json_extract(json, '%s') as '%s'", jsonPath(field), field))
		}
		sort.Strings(columns)
		err := store.exec(fmt.Sprintf("CREATE VIEW '%s' AS SELECT %s FROM elements WHERE json_extract(json, '$.%s') = '%s'",
			typeName, strings.Join(columns, ", "), discriminator, typeName))
		if err != nil {
			return err
		}
	}
	return nil
}

// jsonPath converts a flattened attribute name like audit.0.source_path
// into the SQLite JSON path $.audit[0].source_path.
func jsonPath(field string) string {
	var b strings.Builder
	b.WriteString("$")
	for _, part := range strings.Split(field, ".") {
		if _, err := strconv.Atoi(part); err == nil {
			b.WriteString("[" + part + "]")
		} else {
			b.WriteString("." + part)
		}
	}
	return b.String()
}

func rowsToElements(stmt *sqlite.Stmt) ([]JSONElement, error) {
	elements := []JSONElement{}
	for {
		hasRow, err := stmt.Step()
		if err != nil {
			stmt.Finalize() // nolint:errcheck
			return nil, err
		}
		if !hasRow {
			break
		}
		elements = append(elements, JSONElement(stmt.GetText("json")))
	}
	return elements, stmt.Finalize()
}

func isElementTable(name string) bool {
	if strings.HasPrefix(name, "sqlite") || strings.HasPrefix(name, "_") {
		return false
	}
	if name == "sqlar" || name == "elements" {
		return false
	}
	for _, suffix := range []string{"_data", "_idx", "_content", "_docsize", "_config"} {
		if strings.HasSuffix(name, suffix) {
			return false
		}
	}
	return true
}

// setupTypes loads the columns of existing views so that Close recreates
// them with the union of old and new fields.
func (store *Store) setupTypes() error {
	stmt, err := store.cursor.Prepare("SELECT name FROM sqlite_master WHERE type = 'view'")
	if err != nil {
		return err
	}
	var names []string
	for {
		hasRow, err := stmt.Step()
		if err != nil {
			return err
		}
		if !hasRow {
			break
		}
		if name := stmt.GetText("name"); isElementTable(name) {
			names = append(names, name)
		}
	}
	if err := stmt.Finalize(); err != nil {
		return err
	}

	for _, name := range names {
		pragmaStmt, err := store.cursor.Prepare(fmt.Sprintf("PRAGMA table_info (\"%s\")", name))
		if err != nil {
			return err
		}
		for {
			hasRow, err := pragmaStmt.Step()
			if err != nil {
				return err
			}
			if !hasRow {
				break
			}
			store.types.add(name, pragmaStmt.GetText("name"))
		}
		if err := pragmaStmt.Finalize(); err != nil {
			return err
		}
	}
	store.types.changed = false
	return nil
}

func (store *Store) exec(query string) error {
	stmt, err := store.cursor.Prepare(query)
	if err != nil {
		return err
	}
	if _, err = stmt.Step(); err != nil {
		return err
	}
	return stmt.Finalize()
}
