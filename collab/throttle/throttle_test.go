package throttle

import (
	"testing"

	"github.com/drpcorg/objgraph"
	"github.com/drpcorg/objgraph/op"
	"github.com/drpcorg/objgraph/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type change struct {
	kind  op.Kind
	name  string
	value any
}

func TestThrottle_Coalesce(t *testing.T) {
	g := objgraph.New(objgraph.Options{
		HostID: "a",
		Logger: utils.NewDiscardLogger(),
		Clock:  &op.LogicalClock{},
	})
	var seen []change
	g.OnChange(func(o op.Op) {
		seen = append(seen, change{o.Kind, o.Name, o.Value})
	})

	th := New(g)
	a, err := th.NewObject()
	require.NoError(t, err)
	require.NoError(t, th.CreateProperty(a, "x", 100))

	th.Pause()
	assert.True(t, th.Paused())
	for _, v := range []int{101, 102, 103} {
		require.NoError(t, th.SetProperty(a, "x", v))
	}
	require.NoError(t, th.SetProperty(a, "y", "gone"))
	assert.Equal(t, 2, th.Pending())

	// y was never created, so its write is rejected; x still goes through
	err = th.Unpause()
	assert.ErrorIs(t, err, objgraph.ErrPropertyUnknown)
	assert.False(t, th.Paused())
	assert.Zero(t, th.Pending())

	assert.Equal(t, []change{
		{op.CreateObject, "", nil},
		{op.CreateProperty, "x", int64(100)},
		{op.SetProperty, "x", int64(103)},
	}, seen)

	require.NoError(t, th.SetProperty(a, "x", 104))
	v, err := g.PropertyValue(a, "x")
	require.NoError(t, err)
	assert.Equal(t, int64(104), v)
}
