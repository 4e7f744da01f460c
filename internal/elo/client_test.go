package elo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"BetOracle/internal/config"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

const sampleCSV = `Rank,Club,Country,Level,Elo,From,To
1,Man City,ENG,1,2048.33,2026-08-29,2026-08-30
2,Arsenal,ENG,1,1990.12,2026-08-29,2026-08-30
None,Liverpool,ENG,1,notanumber,2026-08-29,2026-08-30
`

func TestRatingsParsesCSV(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(sampleCSV))
	}))
	defer srv.Close()

	c := NewClient(&config.FeedConfig{BaseURL: srv.URL, Timeout: 5}, quietLogger())
	day := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	ratings, err := c.Ratings(context.Background(), day)
	require.NoError(t, err)

	assert.Equal(t, "/2026-08-30", gotPath)
	require.Len(t, ratings, 2, "unparsable elo rows are skipped")
	assert.Equal(t, "Man City", ratings[0].Club)
	assert.Equal(t, 2048.33, ratings[0].Elo)
	assert.Equal(t, "Arsenal", ratings[1].Club)
}

func TestRatingsRejectsBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(&config.FeedConfig{BaseURL: srv.URL, Timeout: 5}, quietLogger())
	_, err := c.Ratings(context.Background(), time.Now().UTC())
	assert.Error(t, err)
}

func TestRatingsRejectsMissingColumns(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("Rank,Name,Score\n1,X,2000\n"))
	}))
	defer srv.Close()

	c := NewClient(&config.FeedConfig{BaseURL: srv.URL, Timeout: 5}, quietLogger())
	_, err := c.Ratings(context.Background(), time.Now().UTC())
	assert.Error(t, err)
}
