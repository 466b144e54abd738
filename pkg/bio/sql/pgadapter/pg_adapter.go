/*
Package pgadapter provides an implementation of the
Adapter interface in the bio/sql package that works
over a PostgreSQL database.
*/
package pgadapter

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strings"

	// Import of PostgreSQL driver
	_ "github.com/lib/pq"
	biosql "github.com/pbanos/arboretum/pkg/bio/sql"
	"github.com/pkg/errors"
)

const (
	levelTableCreateStmt = `CREATE TABLE IF NOT EXISTS levels (
		id SERIAL PRIMARY KEY,
		value TEXT UNIQUE NOT NULL)`

	// MaxLevelInsertionsPerStatement is the maximum number
	// of levels that are allowed to be added with a single
	// insert command with the AddLevels method of the adapter.
	// Trying to add more will result in making more insertion commands
	MaxLevelInsertionsPerStatement = 10

	// MaxObservationInsertionsPerStatement is the maximum number
	// of observations that are allowed to be added with a single
	// insert command with the AddObservations method of the adapter.
	// Trying to add more will result in making more insertion commands
	MaxObservationInsertionsPerStatement = 10
)

type adapter struct {
	db *sql.DB
}

/*
New takes a PostgreSQL database connection URL and returns
an Adapter that works on the database or an error if it fails to connect to it.
*/
func New(url string) (biosql.Adapter, error) {
	db, err := sql.Open("postgres", url)
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
	createStmt, err := a.db.PrepareContext(ctx, levelTableCreateStmt)
	if err != nil {
		return errors.Wrap(err, "preparing levels creation statement")
	}
	defer createStmt.Close()
	_, err = createStmt.ExecContext(ctx)
	if err != nil {
		return errors.Wrap(err, "running levels creation statement")
	}
	return nil
}

func (a *adapter) CreateObservationTable(ctx context.Context, discreteColumns, continuousColumns []string) error {
	var createStmtBuf bytes.Buffer
	createStmtBuf.WriteString("CREATE TABLE IF NOT EXISTS observations(")
	for _, c := range discreteColumns {
		createStmtBuf.WriteString(fmt.Sprintf(`"%s" INTEGER NULL REFERENCES levels(id), `, c))
	}
	for _, c := range continuousColumns {
		createStmtBuf.WriteString(fmt.Sprintf(`"%s" DOUBLE PRECISION NULL, `, c))
	}
	createStmtBuf.WriteString(`"id" SERIAL PRIMARY KEY)`)
	_, err := a.db.ExecContext(ctx, createStmtBuf.String())
	if err != nil {
		return errors.Wrap(err, "ensuring observations table exists")
	}
	return nil
}

func (a *adapter) AddLevels(ctx context.Context, levels []string) (int, error) {
	tuples := make([][]interface{}, len(levels))
	for i, l := range levels {
		tuples[i] = []interface{}{l}
	}
	return a.insert(ctx, `INSERT INTO levels (value) VALUES `, tuples, MaxLevelInsertionsPerStatement)
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
	tuples := make([][]interface{}, len(rawRows))
	for i, rr := range rawRows {
		tuples[i] = make([]interface{}, 0, len(columns))
		for _, c := range columns {
			tuples[i] = append(tuples[i], rr[c])
		}
	}
	stmt := `INSERT INTO observations ("` + strings.Join(columns, `", "`) + `") VALUES `
	return a.insert(ctx, stmt, tuples, MaxObservationInsertionsPerStatement)
}

/*
insert adds the tuples with statements of at most chunk tuples each, numbering
the placeholders $1 onwards. It returns the number of tuples inserted before
the first failure.
*/
func (a *adapter) insert(ctx context.Context, stmtStart string, tuples [][]interface{}, chunk int) (int, error) {
	for chunkStart := 0; chunkStart < len(tuples); chunkStart += chunk {
		chunkEnd := chunkStart + chunk
		if chunkEnd > len(tuples) {
			chunkEnd = len(tuples)
		}
		var insertStmtBuffer bytes.Buffer
		insertStmtBuffer.WriteString(stmtStart)
		var args []interface{}
		for i, t := range tuples[chunkStart:chunkEnd] {
			if i > 0 {
				insertStmtBuffer.WriteString(", ")
			}
			insertStmtBuffer.WriteString("(")
			for j, v := range t {
				if j > 0 {
					insertStmtBuffer.WriteString(", ")
				}
				args = append(args, v)
				insertStmtBuffer.WriteString(fmt.Sprintf("$%d", len(args)))
			}
			insertStmtBuffer.WriteString(")")
		}
		_, err := a.db.ExecContext(ctx, insertStmtBuffer.String(), args...)
		if err != nil {
			return chunkStart, errors.Wrapf(err, "inserting tuples %d to %d", chunkStart, chunkEnd)
		}
	}
	return len(tuples), nil
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
