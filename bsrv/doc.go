// Package bsrv runs bbody handlers as a service: environment parsing, zap logging, OpenTelemetry tracing and an HTTP
// server wired together with fx.
//
// The service exposes three ingestion endpoints besides the health check:
//
//   - POST /forms decodes an urlencoded or multipart form and describes values and files
//   - POST /sections scans any multipart body and describes its sections
//   - POST /echo writes the request body back twice, replayed from the spool
//
// A minimal service:
//
//	bsrv.NewApp[bsrv.BaseEnvironment](bsrv.Routing).Run()
//
// Configuration is read from BB_* environment variables, see [BaseEnvironment].
package bsrv
