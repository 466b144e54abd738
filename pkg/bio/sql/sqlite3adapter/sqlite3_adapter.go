/*
Package sqlite3adapter provides an implementation of the
Adapter interface in the bio/sql package that works
over an SQLite3 database file.
*/
package sqlite3adapter

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strings"

	// Import of sqlite3 driver
	_ "github.com/mattn/go-sqlite3"
	biosql "github.com/pbanos/arboretum/pkg/bio/sql"
	"github.com/pkg/errors"
)

const (
	levelTableCreateStmt = `CREATE TABLE IF NOT EXISTS levels (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		value TEXT UNIQUE NOT NULL)`
	/*
		MaxLevelInsertionsPerStatement is the maximum number
		of levels that are allowed to be added with a single
		insert command with the AddLevels method of the adapter.
		Trying to add more will result in making more insertion commands
	*/
	MaxLevelInsertionsPerStatement = 10
	/*
		MaxObservationInsertionsPerStatement is the maximum number
		of observations that are allowed to be added with a single
		insert command with the AddObservations method of the adapter.
		Trying to add more will result in making more insertion commands
	*/
	MaxObservationInsertionsPerStatement = 10
)

type adapter struct {
	db *sql.DB
}

/*
New takes a path to an SQLite3 database file and returns an Adapter that works
on the file's database or an error if it fails to open as an sqlite3 database.
*/
func New(path string) (biosql.Adapter, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	return &adapter{db}, nil
}

func (a *adapter) ColumnName(featureName string) (string, error) {
	if featureName == "id" {
		return "", errors.Errorf(`'%s' is reserved and cannot be used as feature name`, featureName)
	}
	if strings.ContainsAny(featureName, `"`) {
		return "", errors.Errorf(`feature name '%s' contains invalid character '"'`, featureName)
	}
	return featureName, nil
}

func (a *adapter) CreateLevelsTable(ctx context.Context) error {
	_, err := a.db.ExecContext(ctx, levelTableCreateStmt)
	if err != nil {
		return errors.Wrap(err, "running levels creation statement")
	}
	return nil
}

func (a *adapter) CreateObservationTable(ctx context.Context, discreteColumns, continuousColumns []string) error {
	var createStmtBuf bytes.Buffer
	_, err := a.db.ExecContext(ctx, "PRAGMA foreign_keys=ON")
	if err != nil {
		return err
	}
	createStmtBuf.WriteString("CREATE TABLE IF NOT EXISTS observations(")
	for _, c := range discreteColumns {
		createStmtBuf.WriteString(fmt.Sprintf(`"%s" INTEGER NULL REFERENCES levels(id), `, c))
	}
	for _, c := range continuousColumns {
		createStmtBuf.WriteString(fmt.Sprintf(`"%s" REAL NULL, `, c))
	}
	createStmtBuf.WriteString(`"id" INTEGER PRIMARY KEY AUTOINCREMENT)`)
	_, err = a.db.ExecContext(ctx, createStmtBuf.String())
	if err != nil {
		return errors.Wrap(err, "ensuring observations table exists")
	}
	return nil
}

func (a *adapter) AddLevels(ctx context.Context, levels []string) (int, error) {
	values := make([][]interface{}, len(levels))
	for i, l := range levels {
		values[i] = []interface{}{l}
	}
	return a.insertChunks(ctx, `INSERT INTO levels (value) VALUES `, values, MaxLevelInsertionsPerStatement)
}

func (a *adapter) ListLevels(ctx context.Context) (map[int]string, error) {
	rows, err := a.db.QueryContext(ctx, `SELECT id, value FROM levels`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := make(map[int]string)
	for rows.Next() {
		var id int
		var value string
		err = rows.Scan(&id, &value)
		if err != nil {
			return nil, err
		}
		result[id] = value
	}
	return result, rows.Err()
}

func (a *adapter) AddObservations(ctx context.Context, rawRows []map[string]interface{}, discreteColumns, continuousColumns []string) (int, error) {
	if len(rawRows) == 0 {
		return 0, nil
	}
	columns := append(append([]string(nil), discreteColumns...), continuousColumns...)
	if len(columns) == 0 {
		return 0, errors.New("no features to store")
	}
	values := make([][]interface{}, len(rawRows))
	for i, rr := range rawRows {
		for _, c := range columns {
			values[i] = append(values[i], rr[c])
		}
	}
	stmt := `INSERT INTO observations ("` + strings.Join(columns, `", "`) + `") VALUES `
	return a.insertChunks(ctx, stmt, values, MaxObservationInsertionsPerStatement)
}

/*
insertChunks inserts the value tuples with at most chunk tuples per
statement inside one transaction, returning how many were inserted.
*/
func (a *adapter) insertChunks(ctx context.Context, stmtStart string, values [][]interface{}, chunk int) (int, error) {
	if len(values) == 0 {
		return 0, nil
	}
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "starting insertion")
	}
	for start := 0; start < len(values); start += chunk {
		end := start + chunk
		if end > len(values) {
			end = len(values)
		}
		var stmtBuf bytes.Buffer
		stmtBuf.WriteString(stmtStart)
		var args []interface{}
		for i, tuple := range values[start:end] {
			if i > 0 {
				stmtBuf.WriteString(", ")
			}
			stmtBuf.WriteString("(?" + strings.Repeat(", ?", len(tuple)-1) + ")")
			args = append(args, tuple...)
		}
		if _, err = tx.ExecContext(ctx, stmtBuf.String(), args...); err != nil {
			tx.Rollback()
			return 0, errors.Wrapf(err, "inserting tuples %d to %d", start, end)
		}
	}
	if err = tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "committing insertion")
	}
	return len(values), nil
}

func (a *adapter) IterateOnObservations(ctx context.Context, discreteColumns, continuousColumns []string, lambda func(int, map[string]interface{}) (bool, error)) error {
	var queryBuffer bytes.Buffer
	queryBuffer.WriteString(`SELECT "`)
	queryBuffer.WriteString(strings.Join(append(append([]string(nil), discreteColumns...), continuousColumns...), `", "`))
	queryBuffer.WriteString(`" FROM observations ORDER BY "id"`)
	rows, err := a.db.QueryContext(ctx, queryBuffer.String())
	if err != nil {
		return err
	}
	defer rows.Close()
	for j := 0; rows.Next(); j++ {
		rawRow := make(map[string]interface{})
		discreteValues := make([]sql.NullInt64, len(discreteColumns))
		continuousValues := make([]sql.NullFloat64, len(continuousColumns))
		values := make([]interface{}, 0, len(discreteColumns)+len(continuousColumns))
		for i := range discreteValues {
			values = append(values, &discreteValues[i])
		}
		for i := range continuousValues {
			values = append(values, &continuousValues[i])
		}
		err = rows.Scan(values...)
		if err != nil {
			return err
		}
		for i, c := range discreteColumns {
			if discreteValues[i].Valid {
				rawRow[c] = int(discreteValues[i].Int64)
			}
		}
		for i, c := range continuousColumns {
			if continuousValues[i].Valid {
				rawRow[c] = continuousValues[i].Float64
			}
		}
		ok, err := lambda(j, rawRow)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
	}
	return rows.Err()
}

func (a *adapter) CountObservations(ctx context.Context) (int, error) {
	var count int
	err := a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM observations`).Scan(&count)
	return count, err
}

func (a *adapter) Close() error {
	return a.db.Close()
}
