package library

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gamevault/pkg/models"
)

func TestCSVRoundTrip(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	games := []models.OwnedGame{
		{GameID: 1942, Name: "The Witcher 3, Wild Hunt", Status: models.PlayStateCompleted, CoverURL: strPtr("https://img/1.jpg"), UpdatedAt: at},
		{GameID: 7, Name: "Hades", Status: models.PlayStatePlaying},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, games))
	assert.True(t, strings.HasPrefix(buf.String(), "game_id,name,status,cover_url,updated_at\n"))

	back, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, games, back)
}

func TestReadCSVByHeaderName(t *testing.T) {
	in := "Status, Name ,GAME_ID,extra\n" +
		"wishlist,Celeste,504,x\n" +
		",,,\n" +
		"bogus,Tunic,23733,\n"

	games, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, games, 2)
	assert.Equal(t, models.OwnedGame{GameID: 504, Name: "Celeste", Status: models.PlayStateWantToPlay}, games[0])
	assert.Equal(t, models.PlayStateUnspecified, games[1].Status)
}

func TestReadCSVErrors(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""))
	assert.Error(t, err)

	_, err = ReadCSV(strings.NewReader("name,status\nHades,PLAYING\n"))
	assert.ErrorContains(t, err, "game_id")

	_, err = ReadCSV(strings.NewReader("game_id\nabc\n"))
	assert.ErrorContains(t, err, "line 2")
}
