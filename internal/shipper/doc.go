// Package shipper writes a finished run to its destinations.
//
// ToExport (convert.go) turns board reports into the closed-sprint export:
// a JSON object mapping board name to the board's closed sprints, each with
// name, url, dates, committed, delivered, diff and attainment. Boards keep
// report order.
//
// Shipper.Ship writes the export to stdout or to a file; files are replaced
// atomically (temp file + rename) so a consumer such as an Airflow xcom
// sidecar never reads a partial document. When a textfile path is set, the
// same reports are also rendered as Prometheus gauges (textfile.go) for the
// node exporter textfile collector.
package shipper
