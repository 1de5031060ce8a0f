package logging

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Gobusters/ectologger"
)

// New builds the application logger writing one JSON object per line to
// stdout. appName is attached to every entry so aggregated logs can be
// filtered per binary.
func New(appName string, pretty bool) ectologger.Logger {
	logger := ectologger.NewEctoLogger(func(msg ectologger.EctoLogMessage) {
		var (
			b   []byte
			err error
		)
		if pretty {
			b, err = json.MarshalIndent(msg, "", "  ")
		} else {
			b, err = json.Marshal(msg)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to marshal log message: %v\n", err)
			return
		}
		fmt.Fprintln(os.Stdout, string(b))
	})

	return logger.WithField("app", appName)
}

// NewNop returns a logger that discards everything. Used in tests.
func NewNop() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}
