// Package sheets fetches the lead rows from the Google Sheets values API.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/JonMunkholm/leaddesk/internal/observability"
	"github.com/JonMunkholm/leaddesk/internal/schema"
	"github.com/JonMunkholm/leaddesk/internal/table"
)

var (
	// ErrFetch marks a failed request to the values endpoint.
	ErrFetch = errors.New("sheet fetch failed")
	// ErrDecode marks a response whose rows could not be mapped to records.
	ErrDecode = errors.New("sheet decode failed")
)

// FirstDataRow is the zero-based index of the first data row. From there
// every second row holds data; the rows in between are discarded.
const FirstDataRow = 3

// Options configures a Client.
type Options struct {
	SpreadsheetID string
	SheetName     string
	Range         string // A1 range within the sheet, e.g. "A1:Z"
	APIKey        string
	Timeout       time.Duration

	// Endpoint overrides the API base URL. Used by tests.
	Endpoint string
}

// Client reads the lead sheet.
type Client struct {
	srv    *sheets.Service
	opts   Options
	schema *schema.Schema
}

// NewClient creates a client authenticated with an API key.
func NewClient(ctx context.Context, opts Options, s *schema.Schema) (*Client, error) {
	clientOpts := []option.ClientOption{option.WithAPIKey(opts.APIKey)}
	if opts.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(opts.Endpoint))
	}

	srv, err := sheets.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	if opts.Range == "" {
		opts.Range = "A1:Z"
	}

	return &Client{srv: srv, opts: opts, schema: s}, nil
}

// ReadRange is the A1 range requested from the API.
func (c *Client) ReadRange() string {
	return c.opts.SheetName + "!" + c.opts.Range
}

// Fetch downloads the sheet and decodes its data rows.
func (c *Client) Fetch(ctx context.Context) ([]table.Record, error) {
	ctx, span := observability.StartSpan(ctx, "sheets.fetch")
	defer span.End()

	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	resp, err := c.srv.Spreadsheets.Values.Get(c.opts.SpreadsheetID, c.ReadRange()).Context(ctx).Do()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	if resp.MajorDimension != "" && resp.MajorDimension != "ROWS" {
		return nil, fmt.Errorf("%w: unexpected major dimension %q", ErrDecode, resp.MajorDimension)
	}

	return DecodeRows(resp.Values, c.schema)
}

// DecodeRows keeps rows FirstDataRow, FirstDataRow+2, ... and maps each
// positionally onto the schema. A record's id is its 1-based sheet row.
func DecodeRows(values [][]interface{}, s *schema.Schema) ([]table.Record, error) {
	var out []table.Record
	for i := FirstDataRow; i < len(values); i += 2 {
		cells := make([]string, len(values[i]))
		for j, v := range values[i] {
			str, err := cellString(v)
			if err != nil {
				return nil, fmt.Errorf("%w: row %d column %d: %v", ErrDecode, i+1, j+1, err)
			}
			cells[j] = str
		}
		out = append(out, s.Record(strconv.Itoa(i+1), cells))
	}
	return out, nil
}

func cellString(v interface{}) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(x), nil
	default:
		return "", fmt.Errorf("unsupported cell type %T", v)
	}
}
