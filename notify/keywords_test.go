package notify

import (
	"testing"

	"github.com/stretchr/testify/require"

	"convosync/errors"
)

func TestMatcher_Basic_Match(t *testing.T) {
	req := require.New(t)
	matcher, err := NewMatcher([]string{"release", "incident"})
	req.NoError(err)

	hits := matcher.Match("the release is blocked by an incident")
	req.ElementsMatch([]string{"release", "incident"}, hits)
}

func TestMatcher_Case_And_Punctuation_Insensitive(t *testing.T) {
	req := require.New(t)
	matcher, err := NewMatcher([]string{"vip"})
	req.NoError(err)

	req.Equal([]string{"vip"}, matcher.Match("our V.I.P arrives tomorrow"))
	req.Equal([]string{"vip"}, matcher.Match("VIP treatment"))
}

func TestMatcher_Character_Substitutions(t *testing.T) {
	req := require.New(t)
	matcher, err := NewMatcher([]string{"sale"})
	req.NoError(err)

	req.Equal([]string{"sale"}, matcher.Match("big $4LE today"))
}

func TestMatcher_No_Match(t *testing.T) {
	req := require.New(t)
	matcher, err := NewMatcher([]string{"budget"})
	req.NoError(err)

	req.Empty(matcher.Match("nothing relevant here"))
	req.Empty(matcher.Match(""))
}

func TestMatcher_Deduplicates_Hits(t *testing.T) {
	req := require.New(t)
	matcher, err := NewMatcher([]string{"ping"})
	req.NoError(err)

	req.Equal([]string{"ping"}, matcher.Match("ping ping ping"))
}

func TestMatcher_Empty_Terms_Rejected(t *testing.T) {
	req := require.New(t)
	_, err := NewMatcher(nil)
	req.ErrorIs(err, errors.ErrEmptyWatchTerms)
}
