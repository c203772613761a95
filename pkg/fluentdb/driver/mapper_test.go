package driver

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type legoSet struct {
	ID       int64
	Name     string
	BoxImage string         `db:"image_url"`
	Manual   sql.NullString `db:"manual"`
	internal string         //nolint:unused // verifies unexported fields are skipped
	Skipped  string         `db:"-"`
}

func TestReflectMapper_MapRow(t *testing.T) {
	mapper := ReflectMapper{}

	t.Run("maps by tag and snake_case", func(t *testing.T) {
		row := NewRow(
			[]Column{{Name: "id"}, {Name: "name"}, {Name: "image_url"}, {Name: "manual"}},
			[]any{int64(42), "Castle", "castle.png", "manual.pdf"},
		)

		var set legoSet
		require.NoError(t, mapper.MapRow(row, &set))

		assert.Equal(t, int64(42), set.ID)
		assert.Equal(t, "Castle", set.Name)
		assert.Equal(t, "castle.png", set.BoxImage)
		assert.Equal(t, sql.NullString{String: "manual.pdf", Valid: true}, set.Manual)
	})

	t.Run("nil column value leaves the zero value", func(t *testing.T) {
		row := NewRow(
			[]Column{{Name: "id"}, {Name: "name"}, {Name: "image_url"}, {Name: "manual"}},
			[]any{int64(1), "Ship", nil, nil},
		)

		var set legoSet
		require.NoError(t, mapper.MapRow(row, &set))

		assert.Empty(t, set.BoxImage)
		assert.False(t, set.Manual.Valid)
	})

	t.Run("byte slices scan into strings", func(t *testing.T) {
		row := NewRow(
			[]Column{{Name: "id"}, {Name: "name"}, {Name: "image_url"}, {Name: "manual"}},
			[]any{int64(1), []byte("Ship"), []byte("ship.png"), nil},
		)

		var set legoSet
		require.NoError(t, mapper.MapRow(row, &set))

		assert.Equal(t, "Ship", set.Name)
	})

	t.Run("missing column fails", func(t *testing.T) {
		row := NewRow([]Column{{Name: "id"}}, []any{int64(1)})

		var set legoSet
		err := mapper.MapRow(row, &set)
		assert.ErrorIs(t, err, ErrMappingFailed)
	})

	t.Run("type mismatch fails", func(t *testing.T) {
		row := NewRow(
			[]Column{{Name: "id"}, {Name: "name"}, {Name: "image_url"}, {Name: "manual"}},
			[]any{"not a number", "Ship", "s.png", nil},
		)

		var set legoSet
		assert.ErrorIs(t, mapper.MapRow(row, &set), ErrMappingFailed)
	})

	t.Run("non-pointer destination fails", func(t *testing.T) {
		row := NewRow([]Column{{Name: "id"}}, []any{int64(1)})

		var set legoSet
		assert.ErrorIs(t, mapper.MapRow(row, set), ErrMappingFailed)
	})

	t.Run("non-struct destination fails", func(t *testing.T) {
		row := NewRow([]Column{{Name: "id"}}, []any{int64(1)})

		var n int
		assert.ErrorIs(t, mapper.MapRow(row, &n), ErrMappingFailed)
	})
}

func TestToSnakeCase(t *testing.T) {
	cases := map[string]string{
		"ID":        "id",
		"Name":      "name",
		"BoxImage":  "box_image",
		"HTTPCode":  "http_code",
		"UserID2":   "user_id2",
		"CreatedAt": "created_at",
	}

	for in, want := range cases {
		assert.Equal(t, want, ToSnakeCase(in))
	}
}

func TestEntityValues(t *testing.T) {
	t.Run("emits columns in declaration order", func(t *testing.T) {
		set := legoSet{ID: 7, Name: "Tower", BoxImage: "tower.png"}

		columns, values, err := EntityValues(&set)
		require.NoError(t, err)

		assert.Equal(t, []string{"id", "name", "image_url", "manual"}, columns)
		assert.Equal(t, []any{int64(7), "Tower", "tower.png", sql.NullString{}}, values)
	})

	t.Run("nil entity fails", func(t *testing.T) {
		_, _, err := EntityValues((*legoSet)(nil))
		assert.ErrorIs(t, err, ErrMappingFailed)
	})

	t.Run("non-struct entity fails", func(t *testing.T) {
		_, _, err := EntityValues(42)
		assert.ErrorIs(t, err, ErrMappingFailed)
	})
}

func TestRow(t *testing.T) {
	row := NewRow([]Column{{Name: "a"}, {Name: "b"}}, []any{1, "two"})

	assert.Equal(t, 2, row.Len())

	v, ok := row.Get("b")
	assert.True(t, ok)
	assert.Equal(t, "two", v)

	_, ok = row.Get("missing")
	assert.False(t, ok)

	assert.Equal(t, 1, row.Value(0))
	assert.Equal(t, []Column{{Name: "a"}, {Name: "b"}}, row.Columns())
	assert.Equal(t, []any{1, "two"}, row.Values())
}
