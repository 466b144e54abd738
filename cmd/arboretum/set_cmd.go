package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/pbanos/arboretum/pkg/bio"
	"github.com/pbanos/arboretum/pkg/bio/mongo"
	biosql "github.com/pbanos/arboretum/pkg/bio/sql"
	"github.com/pbanos/arboretum/pkg/bio/sql/pgadapter"
	"github.com/pbanos/arboretum/pkg/bio/sql/sqlite3adapter"
	"github.com/pbanos/arboretum/pkg/frame"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	mgo "gopkg.in/mgo.v2"
)

// setBatch is the number of rows written to the output set at a time.
const setBatch = 100

type setCmdConfig struct {
	*rootCmdConfig
	setInput      string
	metadataInput string
	setOutput     string
}

type rowWriter interface {
	Write(context.Context, []map[string]interface{}) (int, error)
}

func setCmd(rootConfig *rootCmdConfig) *cobra.Command {
	config := &setCmdConfig{rootCmdConfig: rootConfig}
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Load a CSV set of data into a database",
		Long:  `Load a CSV set of data into an SQLite3, PostgreSQL or MongoDB database from which forests can be trained and tested`,
		Run: func(cmd *cobra.Command, args []string) {
			err := config.Validate()
			if err != nil {
				fail(1, err)
			}
			features, _, err := config.readSchema(config.metadataInput, "")
			if err != nil {
				fail(2, err)
			}
			output, closeOutput, err := config.outputWriter(features)
			if err != nil {
				fail(3, err)
			}
			defer closeOutput()
			f := os.Stdin
			if config.setInput != "" {
				config.Logf("Opening %s to read input set...", config.setInput)
				if f, err = os.Open(config.setInput); err != nil {
					fail(4, errors.Wrap(err, "opening input set"))
				}
				defer f.Close()
			}
			var batch []map[string]interface{}
			written := 0
			flush := func() error {
				n, err := output.Write(config.Context(), batch)
				written += n
				batch = batch[:0]
				return err
			}
			err = bio.ReadCSV(f, features, func(row map[string]interface{}) error {
				batch = append(batch, row)
				if len(batch) < setBatch {
					return nil
				}
				return flush()
			})
			if err == nil {
				err = flush()
			}
			if err != nil {
				fail(5, err)
			}
			config.Logf("Done: %d observations written", written)
		},
	}
	cmd.PersistentFlags().StringVarP(&(config.setInput), "input", "i", "", "path to an input CSV file (defaults to STDIN)")
	cmd.PersistentFlags().StringVarP(&(config.metadataInput), "metadata", "m", "", "path to a YML file with metadata describing the different features available on the input file (required)")
	cmd.PersistentFlags().StringVarP(&(config.setOutput), "output", "o", "", "path to an SQLite3 (.db) file, or a PostgreSQL (postgresql://) or MongoDB (mongodb://) connection URL to load the set into (required)")
	return cmd
}

func (scc *setCmdConfig) Validate() error {
	if scc.metadataInput == "" {
		return fmt.Errorf("required metadata flag was not set")
	}
	if scc.setOutput == "" {
		return fmt.Errorf("required output flag was not set")
	}
	return nil
}

func (scc *setCmdConfig) outputWriter(features []frame.Feature) (rowWriter, func(), error) {
	if isMongoDB(scc.setOutput) {
		scc.Logf("Dialing MongoDB at %s to dump output set...", scc.setOutput)
		session, err := mgo.Dial(scc.setOutput)
		if err != nil {
			return nil, nil, errors.Wrap(err, "dialing MongoDB")
		}
		set, err := mongo.Open(scc.Context(), session, "", features)
		if err != nil {
			session.Close()
			return nil, nil, err
		}
		return set, session.Close, nil
	}
	var adapter biosql.Adapter
	var err error
	switch {
	case isPostgreSQL(scc.setOutput):
		scc.Logf("Creating PostgreSQL adapter for url %s to dump output set...", scc.setOutput)
		adapter, err = pgadapter.New(scc.setOutput)
	case strings.HasSuffix(scc.setOutput, ".db"):
		scc.Logf("Creating SQLite3 adapter for file %s to dump output set...", scc.setOutput)
		adapter, err = sqlite3adapter.New(scc.setOutput)
	default:
		err = errors.Errorf("unsupported output %s", scc.setOutput)
	}
	if err != nil {
		return nil, nil, err
	}
	set, err := biosql.CreateSet(scc.Context(), adapter, features)
	if err != nil {
		adapter.Close()
		return nil, nil, err
	}
	return set, func() { adapter.Close() }, nil
}
