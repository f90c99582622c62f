package orchestrator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func date(s string) time.Time {
	t, err := time.Parse("20060102", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestGenerateChunks_CoversSpanExactly(t *testing.T) {
	chunks := GenerateChunks(date("20240401"), date("20240930"), 3)
	require.Len(t, chunks, 2)

	require.Equal(t, "202406", chunks[0].EndMonth)
	require.Equal(t, date("20240401"), chunks[0].From)
	require.Equal(t, date("20240630"), chunks[0].To)

	require.Equal(t, "202409", chunks[1].EndMonth)
	require.Equal(t, date("20240701"), chunks[1].From)
	require.Equal(t, date("20240930"), chunks[1].To)
}

func TestGenerateChunks_LastChunkEndsAtTo(t *testing.T) {
	chunks := GenerateChunks(date("20240401"), date("20240815"), 3)
	last := chunks[len(chunks)-1]
	require.Equal(t, date("20240815"), last.To)
}

func TestGenerateChunks_SingleMonthSpan(t *testing.T) {
	chunks := GenerateChunks(date("20240401"), date("20240401"), 3)
	require.Len(t, chunks, 1)
	require.Equal(t, date("20240401"), chunks[0].From)
	require.Equal(t, date("20240401"), chunks[0].To)
}
