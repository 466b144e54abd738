package bio

import (
	"encoding/json"
	"io"
	"os"

	"github.com/pbanos/arboretum/pkg/predict"
	"github.com/pkg/errors"
)

/*
WriteJSONValidation takes an io.Writer and a validation report and prints
a JSON representation of it onto the writer.
*/
func WriteJSONValidation(w io.Writer, v *predict.Validation) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return errors.Wrap(err, "serializing validation as JSON")
	}
	return nil
}

/*
WriteJSONValidationToFile creates a file on the given filepath and uses
WriteJSONValidation to write the report on it.
*/
func WriteJSONValidationToFile(filepath string, v *predict.Validation) error {
	f, err := os.Create(filepath)
	if err != nil {
		return err
	}
	if err = WriteJSONValidation(f, v); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
