package bigquery

import (
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pathwise/funnel-cli/internal/funnel"
)

func TestScanPlaceholders(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want []string
	}{
		{
			name: "simple",
			sql:  "SELECT * FROM t WHERE a = @a AND b = @b",
			want: []string{"a", "b"},
		},
		{
			name: "repeated reference reported once",
			sql:  "SELECT @d, x FROM t WHERE created >= @d",
			want: []string{"d"},
		},
		{
			name: "inside single quotes ignored",
			sql:  "SELECT * FROM t WHERE email = 'user@example.com' AND id = @id",
			want: []string{"id"},
		},
		{
			name: "inside double quotes ignored",
			sql:  `SELECT "@not_a_param" FROM t WHERE id = @id`,
			want: []string{"id"},
		},
		{
			name: "escaped quote does not end the literal",
			sql:  `SELECT * FROM t WHERE note = 'it\'s @fake' AND id = @id`,
			want: []string{"id"},
		},
		{
			name: "line comment ignored",
			sql:  "SELECT * FROM t -- uses @old\nWHERE id = @id",
			want: []string{"id"},
		},
		{
			name: "block comment ignored",
			sql:  "SELECT * FROM t /* @old @stale */ WHERE id = @id",
			want: []string{"id"},
		},
		{
			name: "system variables skipped",
			sql:  "SELECT @@error.message, @id FROM t",
			want: []string{"id"},
		},
		{
			name: "no placeholders",
			sql:  "SELECT 1",
			want: nil,
		},
		{
			name: "bare at sign",
			sql:  "SELECT 'a' @ 'b', @id",
			want: []string{"id"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, scanPlaceholders(tt.sql))
		})
	}
}

func TestBindParams(t *testing.T) {
	sql := "SELECT * FROM t WHERE d BETWEEN @start AND @end AND n = @n"

	qp, err := bindParams(sql, map[string]any{
		"start": civil.Date{Year: 2024, Month: time.January, Day: 1},
		"end":   civil.Date{Year: 2024, Month: time.January, Day: 31},
		"n":     int64(5),
		"spare": "never referenced",
	})
	require.NoError(t, err)

	require.Len(t, qp, 3)
	assert.Equal(t, "start", qp[0].Name)
	assert.Equal(t, "end", qp[1].Name)
	assert.Equal(t, "n", qp[2].Name)
	assert.Equal(t, int64(5), qp[2].Value)
}

func TestBindParams_Missing(t *testing.T) {
	_, err := bindParams("SELECT * FROM t WHERE a = @a AND b = @b", map[string]any{
		"a": "x",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, funnel.ErrMissingParameter))
	assert.Contains(t, err.Error(), "@b")
}

func TestBindParams_UnsupportedType(t *testing.T) {
	_, err := bindParams("SELECT @v", map[string]any{
		"v": map[string]int{"nope": 1},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, funnel.ErrValidation))
	assert.Contains(t, err.Error(), "parameter v")
}

func TestCheckParamType(t *testing.T) {
	for _, v := range []any{
		true, 1, int64(2), 3.5, "s", []byte("b"),
		[]string{"a"}, []int64{1}, []float64{1.5},
		time.Now(), civil.Date{Year: 2024, Month: time.March, Day: 9},
	} {
		assert.NoError(t, checkParamType(v), "%T", v)
	}

	for _, v := range []any{nil, struct{}{}, []any{"mixed"}, int32(1)} {
		assert.Error(t, checkParamType(v), "%T", v)
	}
}
