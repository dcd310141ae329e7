package stress

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pierrec/lz4/v4"
)

// Export writes every outcome as one JSON line. A path ending in .lz4
// gets frame-compressed on the way out.
func Export(path string, outcomes []Outcome) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}

	defer f.Close()

	var w io.Writer = f

	if strings.HasSuffix(path, ".lz4") {
		zw := lz4.NewWriter(f)
		defer zw.Close()

		w = zw
	}

	enc := json.NewEncoder(w)

	for _, outcome := range outcomes {
		err = enc.Encode(outcome)
		if err != nil {
			return fmt.Errorf("encode outcome: %w", err)
		}
	}

	return nil
}

// ReadExport loads an NDJSON export, transparently decompressing .lz4
// files. Used to inspect past runs.
func ReadExport(path string) ([]Outcome, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open export file: %w", err)
	}

	defer f.Close()

	var r io.Reader = f

	if strings.HasSuffix(path, ".lz4") {
		r = lz4.NewReader(f)
	}

	var outcomes []Outcome

	dec := json.NewDecoder(r)

	for dec.More() {
		var outcome Outcome

		err = dec.Decode(&outcome)
		if err != nil {
			return nil, fmt.Errorf("decode outcome: %w", err)
		}

		outcomes = append(outcomes, outcome)
	}

	return outcomes, nil
}
