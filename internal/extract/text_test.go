package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "terminators",
			in:   "Create a function. Call it!  Print the result?",
			want: []string{"Create a function.", "Call it!", "Print the result?"},
		},
		{
			name: "decimals",
			in:   "Set x to 2.5. Print x.",
			want: []string{"Set x to 2.5.", "Print x."},
		},
		{
			name: "quoted",
			in:   `Print "Done. Bye!" now. Stop.`,
			want: []string{`Print "Done. Bye!" now.`, "Stop."},
		},
		{
			name: "blank lines",
			in:   "Print 1\n\nPrint 2\n   \nPrint 3",
			want: []string{"Print 1", "Print 2", "Print 3"},
		},
		{
			name: "wrapped lines",
			in:   "Create a function\nthat adds two numbers.",
			want: []string{"Create a function that adds two numbers."},
		},
		{
			name: "empty",
			in:   " \n\t ",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitSentences(tt.in))
		})
	}
}

func TestNormalize(t *testing.T) {
	// "e" followed by a combining acute accent composes to a single rune.
	got, err := Normalize("Print \"cafe\u0301\".\r\nStop\x07.")
	require.NoError(t, err)
	assert.Equal(t, "Print \"caf\u00e9\".\nStop.", got)

	_, err = Normalize("bad \xc3\x28")
	var ie *IntentError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, Ambiguous, ie.Kind)
}

func TestIntentErrorMessage(t *testing.T) {
	err := &IntentError{Kind: UnsupportedConstruct, Sentence: 2, Text: "Dance.", Msg: "no rule"}
	assert.Equal(t, `UnsupportedConstruct at sentence 2 ("Dance."): no rule`, err.Error())
	assert.Equal(t, "OracleUnavailable: down", (&IntentError{Kind: OracleUnavailable, Msg: "down"}).Error())
}
