package normalize

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFold(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"diacritics", "Orléans", "orleans"},
		{"hyphens", "Aix-en-Provence", "aix en provence"},
		{"apostrophe", "L'Haÿ-les-Roses", "l hay les roses"},
		{"typographic apostrophe", "L’Isle-Adam", "l isle adam"},
		{"sainte before saint", "Sainte-Marie", "ste marie"},
		{"saint", "Saint-Denis", "st denis"},
		{"midword fold", "Toussaint", "tousst"},
		{"whitespace", "  Paris  ", "paris"},
		{"empty", "", ""},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, Fold(tc.in))
		})
	}
}

func TestFoldIdempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"Saint-Étienne", "Sainte-Geneviève-des-Bois", "L'Haÿ-les-Roses",
		"Besançon", "  Châteauroux  ", "", "PARIS (75)",
	}
	for _, in := range inputs {
		once := Fold(in)
		require.Equal(t, once, Fold(once), "Fold must be idempotent for %q", in)
	}
}

func TestTitleKeepsPunctuation(t *testing.T) {
	t.Parallel()

	require.Equal(t, "agression a paris (75)", Title("Agression à Paris (75)"))
}
