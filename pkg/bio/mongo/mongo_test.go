package mongo

import (
	"math"
	"testing"

	"github.com/pbanos/arboretum/pkg/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/mgo.v2/bson"
)

var features = []frame.Feature{
	{Name: "x"},
	{Name: "color", Levels: []string{"red", "blue"}},
}

func TestDocumentSkipsUndefined(t *testing.T) {
	doc, err := document(features, map[string]interface{}{"x": "1.5", "color": "?"})
	require.NoError(t, err)
	assert.Equal(t, bson.M{"x": 1.5}, doc)

	doc, err = document(features, map[string]interface{}{"x": "", "color": "blue"})
	require.NoError(t, err)
	assert.Equal(t, bson.M{"color": "blue"}, doc)

	_, err = document(features, map[string]interface{}{"color": "green"})
	assert.Error(t, err)
	_, err = document(features, map[string]interface{}{"color": 3})
	assert.Error(t, err)
}

func TestRowFeedsBuilder(t *testing.T) {
	s, err := frame.NewSchema(features, "")
	require.NoError(t, err)
	b := frame.NewBuilder(s, false)
	require.NoError(t, b.Add(row(features, bson.M{"_id": bson.NewObjectId(), "x": 2.0, "color": "red"})))
	require.NoError(t, b.Add(row(features, bson.M{"color": "blue"})))
	fr, _ := b.Frame()
	assert.Equal(t, 2.0, fr.Numeric[0][0])
	assert.True(t, math.IsNaN(fr.Numeric[0][1]))
	assert.Equal(t, []uint32{0, 1}, fr.Factor[0])
}

func TestValidName(t *testing.T) {
	assert.Error(t, validName("_id"))
	assert.Error(t, validName("a.b"))
	assert.Error(t, validName("$x"))
	assert.NoError(t, validName("petal_length"))
}
