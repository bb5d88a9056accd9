package draw

import (
	"fmt"
	"strings"
	"testing"

	"github.com/alanyoungcy/prizedraw/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectWinnerRange(t *testing.T) {
	for _, total := range []int{1, 2, 5, 97, 1000, 1 << 20} {
		for i := 0; i < 200; i++ {
			n, err := SelectWinner(fmt.Sprintf("seed-%d", i), "0xabc", total)
			require.NoError(t, err)
			require.GreaterOrEqual(t, n, 1)
			require.LessOrEqual(t, n, total)
		}
	}
}

func TestSelectWinnerRejectsNonPositiveTotal(t *testing.T) {
	for _, total := range []int{0, -1} {
		_, err := SelectWinner("a", "b", total)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	}
}

func TestSelectWinnerDeterministic(t *testing.T) {
	a, err := SelectWinner("abc", "def0", 1000)
	require.NoError(t, err)
	b, err := SelectWinner("abc", "def0", 1000)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestPickTicketLeadingBits(t *testing.T) {
	// 439041101 mod 5 = 1, so ticket 2 wins.
	assert.Equal(t, 2, pickTicket(439041101, 5))
	assert.Equal(t, 1, pickTicket(0, 7))
	assert.Equal(t, 1, pickTicket(^uint32(0), 1))
	assert.Equal(t, int(^uint32(0)%10)+1, pickTicket(^uint32(0), 10))
}

func TestDigestMatchesSeparatedInput(t *testing.T) {
	// The separator is part of the hashed input: moving characters across it
	// must change the digest.
	assert.NotEqual(t, Digest("ab", "c"), Digest("a", "bc"))
}

func TestDigestAvalanche(t *testing.T) {
	changed := 0
	const rounds = 256
	for i := 0; i < rounds; i++ {
		seed := fmt.Sprintf("seed-%d", i)
		base := Digest(seed, "0000")
		if Digest(seed, "0001") != base {
			changed++
		}
	}
	assert.Equal(t, rounds, changed)
}

func TestNewSeed(t *testing.T) {
	a, err := NewSeed()
	require.NoError(t, err)
	b, err := NewSeed()
	require.NoError(t, err)
	assert.Len(t, a, SeedBytes*2)
	assert.NotEqual(t, a, b)
}

func TestCommitmentAndVerify(t *testing.T) {
	c := Commitment("abc")
	assert.True(t, strings.HasPrefix(c, "0x"))
	assert.Len(t, c, 66)
	assert.Equal(t, c, Commitment("abc"))
	assert.NotEqual(t, c, Commitment("abd"))

	n, err := SelectWinner("abc", "def0", 50)
	require.NoError(t, err)
	ok, err := Verify("abc", "def0", 50, n)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = Verify("abc", "def0", 50, n%50+1)
	require.NoError(t, err)
	assert.False(t, ok)
}
