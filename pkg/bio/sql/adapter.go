package sql

import "context"

/*
Adapter is an interface providing the methods
needed to keep observation sets in a database backend.

Discrete values are stored once in a levels table and referenced from the
observations table by id. Observation rows are exchanged as maps from column
name to value: nil for an undefined value, an int level id for a discrete
column, and a float64 for a continuous column.
*/
type Adapter interface {
	ColumnName(string) (string, error)

	CreateLevelsTable(ctx context.Context) error
	CreateObservationTable(ctx context.Context, discreteColumns, continuousColumns []string) error

	AddLevels(ctx context.Context, levels []string) (int, error)
	ListLevels(ctx context.Context) (map[int]string, error)

	AddObservations(ctx context.Context, rows []map[string]interface{}, discreteColumns, continuousColumns []string) (int, error)
	IterateOnObservations(ctx context.Context, discreteColumns, continuousColumns []string, lambda func(int, map[string]interface{}) (bool, error)) error
	CountObservations(ctx context.Context) (int, error)

	Close() error
}
