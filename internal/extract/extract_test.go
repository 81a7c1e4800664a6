package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haskel/cplxfox/internal/schema"
)

var ctf = schema.TaskSchema{
	{Name: "gridSize", Kind: schema.KindInteger},
	{Name: "numBlueAgents", Kind: schema.KindInteger},
	{Name: "numRedAgents", Kind: schema.KindInteger},
	{Name: "flagPlacementType", Kind: schema.KindCategorical},
}

var gol = schema.TaskSchema{
	{Name: "iterations", Kind: schema.KindInteger},
	{Name: "mapFilename", Kind: schema.KindIdentifier},
}

func TestExtract_AllFields(t *testing.T) {
	fields, err := Extract("flagPlacementType=B#gridSize=20#numBlueAgents=15#numRedAgents=16", ctf)
	require.NoError(t, err)

	assert.Len(t, fields, 4)
	assert.Equal(t, Value{Kind: schema.KindInteger, Int: 20}, fields["gridSize"])
	assert.Equal(t, Value{Kind: schema.KindInteger, Int: 15}, fields["numBlueAgents"])
	assert.Equal(t, Value{Kind: schema.KindInteger, Int: 16}, fields["numRedAgents"])
	assert.Equal(t, Value{Kind: schema.KindCategorical, Text: "B"}, fields["flagPlacementType"])
}

func TestExtract_MissingFieldOmitted(t *testing.T) {
	fields, err := Extract("gridSize=20#numRedAgents=16#flagPlacementType=C", ctf)
	require.NoError(t, err)

	assert.Len(t, fields, 3)
	_, ok := fields["numBlueAgents"]
	assert.False(t, ok, "missing field must be omitted, not defaulted")
	assert.Equal(t, []string{"numBlueAgents"}, fields.Missing(ctf.FeatureFields()...))
	assert.False(t, fields.Has("numBlueAgents"))
}

func TestExtract_Identifier(t *testing.T) {
	fields, err := Extract("iterations=1000#mapFilename=glider-10-10.json", gol)
	require.NoError(t, err)
	assert.Equal(t, "glider-10-10.json", fields["mapFilename"].Text)
	assert.Equal(t, int64(1000), fields["iterations"].Int)

	fields, err = Extract("mapFilename=glider 10.json#iterations=5", gol)
	require.NoError(t, err)
	assert.Equal(t, "glider 10.json", fields["mapFilename"].Text)
}

func TestExtract_NameBoundary(t *testing.T) {
	s := schema.TaskSchema{{Name: "size", Kind: schema.KindInteger}}

	fields, err := Extract("gridSize=20#shuffles=3", s)
	require.NoError(t, err)
	assert.Empty(t, fields)

	fields, err = Extract("gridsize=20#size=7", s)
	require.NoError(t, err)
	assert.Equal(t, int64(7), fields["size"].Int)
}

func TestExtract_CategoricalNeedsUppercase(t *testing.T) {
	fields, err := Extract("flagPlacementType=b#gridSize=1", ctf)
	require.NoError(t, err)
	_, ok := fields["flagPlacementType"]
	assert.False(t, ok)
}

func TestExtract_Empty(t *testing.T) {
	_, err := Extract("", ctf)
	assert.ErrorIs(t, err, ErrEmptyParameters)

	_, err = Extract("   ", ctf)
	assert.ErrorIs(t, err, ErrEmptyParameters)
}

func TestNew_UnsupportedKind(t *testing.T) {
	_, err := New(schema.TaskSchema{{Name: "x", Kind: "float"}})
	assert.Error(t, err)
}

func TestSerialize(t *testing.T) {
	raw := Serialize(map[string]string{"size": "10", "shuffles": "70"})
	assert.Equal(t, "shuffles=70#size=10", raw)
	assert.Equal(t, "", Serialize(nil))

	fields, err := Extract(raw, schema.TaskSchema{
		{Name: "shuffles", Kind: schema.KindInteger},
		{Name: "size", Kind: schema.KindInteger},
	})
	require.NoError(t, err)
	assert.Equal(t, "70", fields["shuffles"].String())
	assert.Equal(t, "10", fields["size"].String())
}

func TestValidateParams(t *testing.T) {
	require.NoError(t, ValidateParams(map[string]string{"size": "4", "mapFilename": "glider-10-10.json"}))
	require.NoError(t, ValidateParams(nil))

	tests := []struct {
		name   string
		params map[string]string
	}{
		{"delimiter in value", map[string]string{"size": "4#shuffles=1"}},
		{"ampersand in value", map[string]string{"mapFilename": "a&b"}},
		{"equals in value", map[string]string{"size": "=4"}},
		{"equals in name", map[string]string{"size=4": "1"}},
		{"empty name", map[string]string{"": "1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, ValidateParams(tt.params), ErrReservedCharacter)
		})
	}
}
