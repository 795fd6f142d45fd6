package cli

import (
	"context"
	"io"

	"github.com/bigdatavik/databricks-struct-demo/pkg/fileutil"
	"github.com/bigdatavik/databricks-struct-demo/pkg/report"
	"github.com/bigdatavik/databricks-struct-demo/pkg/s3fetch"
	"github.com/bigdatavik/databricks-struct-demo/pkg/source"
)

// newS3Client is replaced in tests.
var newS3Client = s3fetch.NewClient

// openInput opens a local file or an s3:// object. An empty format is
// detected from the name.
func openInput(ctx context.Context, in, format string) (source.Reader, error) {
	var f source.Format
	if format != "" {
		var err error
		if f, err = source.ParseFormat(format); err != nil {
			return nil, err
		}
	}

	if s3fetch.IsS3URI(in) {
		client, err := newS3Client(ctx)
		if err != nil {
			return nil, err
		}
		return client.OpenClaims(ctx, in, f)
	}

	return source.OpenFile(in, f)
}

// outputFormat resolves --out-format, falling back to the --out extension
// and then to JSON.
func outputFormat(outFormat, out string) (report.Format, error) {
	if outFormat != "" {
		return report.ParseFormat(outFormat)
	}
	if out != "" && out != "-" {
		return report.DetectFormat(out)
	}
	return report.FormatJSON, nil
}

// writeOutput runs write against the file at out, or stdout when out is
// empty or "-". A failed write leaves an existing file at out untouched.
func writeOutput(out string, stdout io.Writer, write func(io.Writer) error) error {
	if out == "" || out == "-" {
		return write(stdout)
	}

	return fileutil.WriteAtomic(out, write)
}
