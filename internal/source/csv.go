package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"routeplan/internal/opt"
)

// CSV reads "id,x,y" rows. A first row whose id column is not an integer
// is treated as a header. Blank lines are skipped.
type CSV struct {
	R io.Reader
	// MaxRows caps the number of data rows; 0 means no cap.
	MaxRows int
}

func (c CSV) Name() string { return "csv" }

func (c CSV) Points(ctx context.Context) ([]opt.Point, error) {
	r := csv.NewReader(c.R)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.Comment = '#'
	var pts []opt.Point
	for row := 1; ; row++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if len(rec) != 3 {
			return nil, fmt.Errorf("%w: row %d: want 3 fields, got %d", ErrMalformed, row, len(rec))
		}
		id, err := strconv.Atoi(strings.TrimSpace(rec[0]))
		if err != nil {
			if row == 1 {
				continue
			}
			return nil, fmt.Errorf("%w: row %d: id %q", ErrMalformed, row, rec[0])
		}
		x, errX := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		y, errY := strconv.ParseFloat(strings.TrimSpace(rec[2]), 64)
		if errX != nil || errY != nil {
			return nil, fmt.Errorf("%w: row %d: coordinates %q,%q", ErrMalformed, row, rec[1], rec[2])
		}
		if c.MaxRows > 0 && len(pts) == c.MaxRows {
			return nil, fmt.Errorf("%w: more than %d rows", ErrMalformed, c.MaxRows)
		}
		pts = append(pts, opt.Point{ID: id, X: x, Y: y})
	}
	if pts == nil {
		pts = []opt.Point{}
	}
	return pts, nil
}
