package itinerary

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinks(t *testing.T) {
	it := &Itinerary{
		Title: "x",
		Stops: []Stop{
			{ID: "a", Name: "Joe's Pizza", Location: Location{Address: "7 Carmine St, New York"}},
			{ID: "b", Name: "Washington Square", Location: Location{Address: "Washington Square"}},
		},
	}

	links := Links(it)
	require.Len(t, links, 2)

	first, err := url.Parse(links[0].URL)
	require.NoError(t, err)
	assert.Equal(t, "/maps/search/", first.Path)
	assert.Equal(t, "Joe's Pizza, 7 Carmine St, New York", first.Query().Get("query"))

	second, err := url.Parse(links[1].URL)
	require.NoError(t, err)
	assert.Equal(t, "/maps/dir/", second.Path)
	q := second.Query()
	assert.Equal(t, "Joe's Pizza, 7 Carmine St, New York", q.Get("origin"))
	assert.Equal(t, "Washington Square", q.Get("destination"))
	assert.Equal(t, "transit", q.Get("travelmode"))
	assert.Equal(t, "b", links[1].StopID)
}
