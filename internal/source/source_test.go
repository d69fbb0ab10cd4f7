package source

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"routeplan/internal/opt"
)

func TestUniform_WithinMargins(t *testing.T) {
	u := NewUniform(500, opt.MapWidth, opt.MapHeight, 10, 7)
	pts, err := u.Points(context.Background())
	require.NoError(t, err)
	require.Len(t, pts, 500)
	for i, p := range pts {
		assert.Equal(t, i, p.ID)
		assert.GreaterOrEqual(t, p.X, 10.0)
		assert.Less(t, p.X, opt.MapWidth-10)
		assert.GreaterOrEqual(t, p.Y, 10.0)
		assert.Less(t, p.Y, opt.MapHeight-10)
	}
	require.NoError(t, opt.ValidatePoints(pts))
}

func TestUniform_SeedIsDeterministic(t *testing.T) {
	a, _ := NewUniform(20, 800, 600, 10, 99).Points(context.Background())
	b, _ := NewUniform(20, 800, 600, 10, 99).Points(context.Background())
	assert.Equal(t, a, b)
}

func TestUniform_Errors(t *testing.T) {
	_, err := NewUniform(5, 15, 600, 10, 1).Points(context.Background())
	assert.ErrorIs(t, err, ErrMalformed)
	_, err = NewUniform(-1, 800, 600, 10, 1).Points(context.Background())
	assert.ErrorIs(t, err, ErrMalformed)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewUniform(5, 800, 600, 10, 1).Points(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	pts, err := NewUniform(0, 800, 600, 10, 1).Points(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pts)
}

func TestCSV(t *testing.T) {
	in := "id,x,y\n1, 10.5, 20\n\n# depot excluded\n2,30,40.25\n"
	pts, err := CSV{R: strings.NewReader(in)}.Points(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []opt.Point{{ID: 1, X: 10.5, Y: 20}, {ID: 2, X: 30, Y: 40.25}}, pts)

	pts, err = CSV{R: strings.NewReader("")}.Points(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pts)
}

func TestCSV_Malformed(t *testing.T) {
	cases := []string{
		"1,2\n",
		"1,2,3\nx,2,3\n",
		"1,a,3\n",
		"1,2,3,4\n",
	}
	for _, in := range cases {
		_, err := CSV{R: strings.NewReader(in)}.Points(context.Background())
		assert.ErrorIs(t, err, ErrMalformed, in)
	}
	_, err := CSV{R: strings.NewReader("1,1,1\n2,2,2\n3,3,3\n"), MaxRows: 2}.Points(context.Background())
	assert.ErrorIs(t, err, ErrMalformed)
}
