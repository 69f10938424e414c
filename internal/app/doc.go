// Package app wires the usage EDA web service together and manages its
// lifecycle.
//
// # Initialization Flow
//
//	1. Load configuration (defaults, YAML file, TELCO_* environment)
//	2. Initialize logging and OpenTelemetry
//	3. Resolve paths and open the SQLite run history when configured
//	4. Build the analyzer and the usage and health services
//	5. Set up the chi router, middleware and handlers
//	6. Serve until the context is cancelled or a signal arrives
//
// # Usage
//
//	a, err := app.NewApplication(ctx, nil, app.Options{})
//	if err != nil {
//	    return err
//	}
//	return a.Run(ctx)
package app
