// Package app wires the license panel together and manages its lifecycle.
//
// # Initialization Flow
//
//  1. Load configuration from .env, environment and the optional YAML file
//  2. Initialize logging and OpenTelemetry
//  3. Open the JSON document store
//  4. Build the services: licenses, validation engine, blacklist, vouchers,
//     settings, marketplace and the Discord notifier
//  5. Build the Discord bot when enabled
//  6. Set up the router and the HTTP server
//
// # Usage
//
//	application, err := app.NewApplication()
//	if err != nil {
//	    return err
//	}
//	return application.Run()
//
// # Graceful Shutdown
//
// Run stops on SIGINT or SIGTERM. Shutdown drains HTTP requests, disconnects
// the bot, closes the live log feed, waits for queued webhook notifications
// and flushes telemetry.
//
// Initialization errors are returned to the caller; the package never calls
// os.Exit.
package app
