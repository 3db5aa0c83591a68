package main

var usage = `<options>

Export a MongoDB collection to CSV without loading it into memory.

Documents are read in bounded pages keyed on _id; large results are
streamed through server-side cursors that are re-opened every page.`

// ConnectionOptions selects the deployment and configuration file.
type ConnectionOptions struct {
	Config   string `long:"config" short:"c" description:"YAML configuration file"`
	URI      string `long:"uri" description:"MongoDB connection string (overrides mongo.uri)"`
	Database string `long:"db" short:"d" description:"database to export from (overrides mongo.database)"`
}

// InputOptions defines how documents are selected.
type InputOptions struct {
	Collection string `long:"collection" required:"true" description:"collection to export"`
	Query      string `long:"query" short:"q" description:"query filter as extended JSON, e.g. '{\"status\": \"paid\"}'"`
	From       string `long:"from" description:"only documents with createdAt >= from (RFC 3339 or YYYY-MM-DD)"`
	To         string `long:"to" description:"only documents with createdAt < to (RFC 3339 or YYYY-MM-DD)"`
	Ascending  bool   `long:"ascending" description:"export in ascending _id order (default descending)"`

	ArrayPageSize   int64 `long:"arrayPageSize" description:"documents held in memory per page (overrides traversal.array_page_size)"`
	CursorThreshold int64 `long:"cursorThreshold" description:"result count above which cursors are used, -1 for always (overrides traversal.cursor_threshold)"`
	CursorPageSize  int64 `long:"cursorPageSize" description:"documents read per cursor (overrides traversal.cursor_page_size)"`
}

// OutputOptions defines the shape of the CSV output.
type OutputOptions struct {
	Fields    string `long:"fields" short:"f" required:"true" description:"comma separated list of field names, dotted paths allowed"`
	OutFile   string `long:"out" short:"o" description:"output file; if not specified, stdout is used"`
	Delimiter string `long:"delimiter" default:";" description:"field delimiter"`
	NoHeader  bool   `long:"noHeaderLine" description:"do not write the field names as the first line"`
	NoBOM     bool   `long:"noBOM" description:"do not start the output with a UTF-8 byte order mark"`
}

// LogOptions controls logging verbosity.
type LogOptions struct {
	Verbose  bool `long:"verbose" short:"v" description:"log at debug level"`
	JSONLogs bool `long:"jsonLogs" description:"log as JSON (overrides log.format)"`
}

// Options groups every command line option of mgoexport.
type Options struct {
	Connection ConnectionOptions `group:"connection"`
	Input      InputOptions      `group:"querying"`
	Output     OutputOptions     `group:"output"`
	Log        LogOptions        `group:"logging"`
}
