package main

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gamevault/internal/catalog"
)

func newSearchFlags(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "search"}
	f := cmd.Flags()
	f.IntSlice("genre", nil, "")
	f.IntSlice("platform", nil, "")
	f.IntSlice("mode", nil, "")
	f.IntSlice("perspective", nil, "")
	f.Int("rating-min", catalog.DefaultRatingRange.From, "")
	f.Int("rating-max", catalog.DefaultRatingRange.To, "")
	f.Int("year-from", catalog.DefaultYearRange.From, "")
	f.Int("year-to", catalog.DefaultYearRange.To, "")
	f.String("sort", "", "")
	f.String("dir", "", "")
	require.NoError(t, f.Parse(args))
	return cmd
}

func TestSpecFromFlags(t *testing.T) {
	cmd := newSearchFlags(t,
		"--genre", "12", "--genre", "5", "--genre", "12",
		"--year-from", "2020", "--year-to", "2010",
		"--sort", "Rating", "--dir", "asc",
	)
	spec, err := specFromFlags(cmd, "zelda")
	require.NoError(t, err)

	assert.Equal(t, "zelda", spec.Query)
	assert.Equal(t, []int{5, 12}, spec.GenreIDs)
	assert.Equal(t, catalog.Range{From: 2010, To: 2020}, spec.Years)
	assert.Equal(t, catalog.DefaultRatingRange, spec.Rating)
	assert.Equal(t, catalog.SortRating, spec.Sort)
	assert.Equal(t, catalog.SortAsc, spec.Direction)
}

func TestSpecFromFlagsDefaults(t *testing.T) {
	spec, err := specFromFlags(newSearchFlags(t), "")
	require.NoError(t, err)
	assert.True(t, spec.Equal(catalog.DefaultFilterSpec()))
}

func TestSpecFromFlagsRejectsUnknownSort(t *testing.T) {
	_, err := specFromFlags(newSearchFlags(t, "--sort", "price"), "")
	assert.Error(t, err)

	_, err = specFromFlags(newSearchFlags(t, "--dir", "sideways"), "")
	assert.Error(t, err)
}

func TestParseGameID(t *testing.T) {
	id, err := parseGameID("1942")
	require.NoError(t, err)
	assert.Equal(t, int64(1942), id)

	for _, bad := range []string{"", "0", "-3", "abc"} {
		_, err := parseGameID(bad)
		assert.Error(t, err, bad)
	}
}
