package app

import (
	"encoding/json"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ErrNoFileID is returned by operations that need a file id when none is
// configured.
var ErrNoFileID = errors.New("no file id configured; set --file-id or CHIDORI_FILE_ID")

// print writes v to the app's output in the configured format. YAML output
// goes through the JSON encoding first so that types with custom JSON
// marshalling render the same way in both formats.
func (a *App) print(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}

	switch a.config.Output {
	case "yaml":
		var native any
		if err := json.Unmarshal(data, &native); err != nil {
			return fmt.Errorf("encoding output: %w", err)
		}
		out, err := yaml.Marshal(native)
		if err != nil {
			return fmt.Errorf("encoding output: %w", err)
		}
		_, err = a.outW.Write(out)
		return err
	default:
		_, err = fmt.Fprintln(a.outW, string(data))
		return err
	}
}
