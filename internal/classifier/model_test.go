package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"coffee", "at", "café", "2x"}, Tokenize("Coffee at CAFÉ, 2x!"))
	assert.Empty(t, Tokenize("  ...  "))
}

func TestNaiveBayes_PreservesLengthAndOrder(t *testing.T) {
	m, err := DecodeNaiveBayes([]byte(`{
		"version": 1,
		"labels": ["Food", "Transport"],
		"priors": {"Food": -0.7, "Transport": -0.7},
		"likelihoods": {
			"Food": {"coffee": -1},
			"Transport": {"taxi": -1}
		},
		"unknown": {"Food": -5, "Transport": -5},
		"default": "Transport"
	}`))
	require.NoError(t, err)

	got := m.Classify([]string{"taxi", "coffee", "taxi home", "coffee"})
	assert.Equal(t, []string{"Transport", "Food", "Transport", "Food"}, got)

	assert.Empty(t, m.Classify(nil))
	assert.Empty(t, m.Classify([]string{}))
}

func TestNaiveBayes_TiesAndUnknownInput(t *testing.T) {
	tests := []struct {
		name     string
		artifact string
		input    string
		want     string
	}{
		{
			name: "unknown tokens pick highest prior",
			artifact: `{"version":1,"labels":["A","B"],"priors":{"A":-2,"B":-1},
				"likelihoods":{"A":{"x":-1},"B":{"y":-1}},"unknown":{"A":-3,"B":-3},"default":"A"}`,
			input: "zzz",
			want:  "B",
		},
		{
			name: "equal priors pick default",
			artifact: `{"version":1,"labels":["A","B"],"priors":{"A":-1,"B":-1},
				"likelihoods":{"A":{"x":-1},"B":{"y":-1}},"unknown":{"A":-3,"B":-3},"default":"B"}`,
			input: "",
			want:  "B",
		},
		{
			name: "tied score picks default",
			artifact: `{"version":1,"labels":["A","B"],"priors":{"A":-1,"B":-1},
				"likelihoods":{"A":{"x":-1},"B":{"x":-1}},"unknown":{"A":-3,"B":-3},"default":"B"}`,
			input: "x",
			want:  "B",
		},
		{
			name: "no default keeps artifact order",
			artifact: `{"version":1,"labels":["A","B"],"priors":{"A":-1,"B":-1},
				"likelihoods":{"A":{"x":-1},"B":{"x":-1}},"unknown":{"A":-3,"B":-3}}`,
			input: "x",
			want:  "A",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := DecodeNaiveBayes([]byte(tt.artifact))
			require.NoError(t, err)
			assert.Equal(t, []string{tt.want}, m.Classify([]string{tt.input}))
		})
	}
}

func TestNaiveBayes_Labels(t *testing.T) {
	m, err := DecodeNaiveBayes([]byte(`{"version":1,"labels":["A","B"],"priors":{"A":-1,"B":-1},"unknown":{"A":-1,"B":-1}}`))
	require.NoError(t, err)

	labels := m.Labels()
	assert.Equal(t, []string{"A", "B"}, labels)
	labels[0] = "mutated"
	assert.Equal(t, []string{"A", "B"}, m.Labels())
}
