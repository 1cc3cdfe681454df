package roster

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/oauth2/google"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetsSource reads roster tabs from a Google spreadsheet. Each range is
// fetched separately and must start with its own header row.
type SheetsSource struct {
	service       *sheets.Service
	spreadsheetID string
	ranges        []string
	limiter       *rate.Limiter
}

// NewSheetsSource authenticates with a service-account JSON key file.
func NewSheetsSource(ctx context.Context, credentialsFile, spreadsheetID string, ranges []string) (*SheetsSource, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	creds, err := google.CredentialsFromJSON(ctx, data, sheets.SpreadsheetsReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	return NewSheetsSourceWithOptions(ctx, spreadsheetID, ranges, option.WithCredentials(creds))
}

// NewSheetsSourceWithOptions builds the source from raw client options.
func NewSheetsSourceWithOptions(ctx context.Context, spreadsheetID string, ranges []string, opts ...option.ClientOption) (*SheetsSource, error) {
	if spreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id is required")
	}
	if len(ranges) == 0 {
		ranges = []string{"Sheet1"}
	}
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &SheetsSource{
		service:       svc,
		spreadsheetID: spreadsheetID,
		ranges:        ranges,
		// read quota is 60 requests per minute per user
		limiter: rate.NewLimiter(rate.Every(time.Second), 5),
	}, nil
}

func (s *SheetsSource) Rows(ctx context.Context) ([]Row, error) {
	var rows []Row
	for _, rng := range s.ranges {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, rng).Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("get range %s: %w", rng, err)
		}
		rows = append(rows, tableRows(cellStrings(resp.Values))...)
	}
	return rows, nil
}

func cellStrings(values [][]interface{}) [][]string {
	out := make([][]string, len(values))
	for i, row := range values {
		out[i] = make([]string, len(row))
		for j, v := range row {
			out[i][j] = fmt.Sprint(v)
		}
	}
	return out
}
