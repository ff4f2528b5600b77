package main

import (
	"context"
	"errors"
	"io"

	"github.com/spf13/viper"

	"garnet-sweep/internal/driver"
	"garnet-sweep/internal/logging"
	"garnet-sweep/internal/results"
	"garnet-sweep/internal/sweep"
)

// sinkSettings selects the optional result sinks.
type sinkSettings struct {
	SQLitePath string
	Greptime   results.GreptimeConfig
}

func sinkSettingsFrom(v *viper.Viper) sinkSettings {
	return sinkSettings{
		SQLitePath: v.GetString("sqlite"),
		Greptime: results.GreptimeConfig{
			Endpoint: v.GetString("greptimedb.endpoint"),
			Database: v.GetString("greptimedb.database"),
			Table:    v.GetString("greptimedb.table"),
		},
	}
}

// newWriters returns a factory for the configured sinks, or nil when none
// is configured. The CSV archive is always written by the driver itself.
func newWriters(s sinkSettings) driver.WritersFunc {
	if s.SQLitePath == "" && s.Greptime.Endpoint == "" {
		return nil
	}
	return func(ctx context.Context, run results.Run, schema sweep.Schema) ([]results.Writer, error) {
		var ws []results.Writer
		if s.SQLitePath != "" {
			w, err := results.OpenSQLite(ctx, s.SQLitePath, run, schema)
			if err != nil {
				return nil, err
			}
			ws = append(ws, w)
		}
		if s.Greptime.Endpoint != "" {
			w, err := results.NewGreptimeWriter(s.Greptime, run, schema, logging.FromContext(ctx))
			if err != nil {
				return nil, errors.Join(err, closeAll(ws))
			}
			ws = append(ws, w)
		}
		return ws, nil
	}
}

func closeAll(ws []results.Writer) error {
	var errs []error
	for _, w := range ws {
		if c, ok := w.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}
