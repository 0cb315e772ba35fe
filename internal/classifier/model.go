package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ArtifactVersion is the only artifact format version DecodeNaiveBayes accepts.
const ArtifactVersion = 1

// artifact is the on-disk model. All probabilities are natural logs.
type artifact struct {
	Version     int                           `json:"version"`
	Labels      []string                      `json:"labels"`
	Priors      map[string]float64            `json:"priors"`
	Likelihoods map[string]map[string]float64 `json:"likelihoods"`
	Unknown     map[string]float64            `json:"unknown"`
	Default     string                        `json:"default"`
}

// NaiveBayes is a multinomial naive Bayes text model over word tokens.
// It is immutable after decoding.
type NaiveBayes struct {
	labels      []string
	priors      []float64
	likelihoods []map[string]float64
	unknown     []float64
	vocab       map[string]struct{}
	// ranked is the label order used when scores tie or no token is known:
	// highest prior first, then the default label, then artifact order.
	ranked []int
}

// DecodeNaiveBayes parses and validates a JSON artifact.
func DecodeNaiveBayes(data []byte) (*NaiveBayes, error) {
	var a artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	if a.Version != ArtifactVersion {
		return nil, fmt.Errorf("unsupported artifact version %d", a.Version)
	}
	if len(a.Labels) == 0 {
		return nil, errors.New("artifact has no labels")
	}

	m := &NaiveBayes{
		labels:      make([]string, len(a.Labels)),
		priors:      make([]float64, len(a.Labels)),
		likelihoods: make([]map[string]float64, len(a.Labels)),
		unknown:     make([]float64, len(a.Labels)),
		vocab:       make(map[string]struct{}),
	}

	seen := make(map[string]bool, len(a.Labels))
	for i, label := range a.Labels {
		if label == "" {
			return nil, fmt.Errorf("label %d is empty", i)
		}
		if seen[label] {
			return nil, fmt.Errorf("duplicate label %q", label)
		}
		seen[label] = true

		prior, ok := a.Priors[label]
		if !ok {
			return nil, fmt.Errorf("label %q has no prior", label)
		}
		unk, ok := a.Unknown[label]
		if !ok {
			return nil, fmt.Errorf("label %q has no unknown-token probability", label)
		}

		m.labels[i] = label
		m.priors[i] = prior
		m.unknown[i] = unk
		m.likelihoods[i] = a.Likelihoods[label]
		for token := range a.Likelihoods[label] {
			m.vocab[token] = struct{}{}
		}
	}

	defaultIdx := -1
	for i, label := range m.labels {
		if label == a.Default {
			defaultIdx = i
		}
	}

	m.ranked = make([]int, len(m.labels))
	for i := range m.ranked {
		m.ranked[i] = i
	}
	// insertion sort keeps artifact order among equals
	for i := 1; i < len(m.ranked); i++ {
		for j := i; j > 0 && m.ranksBefore(m.ranked[j], m.ranked[j-1], defaultIdx); j-- {
			m.ranked[j], m.ranked[j-1] = m.ranked[j-1], m.ranked[j]
		}
	}

	return m, nil
}

func (m *NaiveBayes) ranksBefore(a, b, defaultIdx int) bool {
	if m.priors[a] != m.priors[b] {
		return m.priors[a] > m.priors[b]
	}
	return a == defaultIdx && b != defaultIdx
}

// Labels returns the model's categories in artifact order.
func (m *NaiveBayes) Labels() []string {
	out := make([]string, len(m.labels))
	copy(out, m.labels)
	return out
}

func (m *NaiveBayes) Classify(texts []string) []string {
	out := make([]string, len(texts))
	for i, text := range texts {
		out[i] = m.classifyOne(Tokenize(text))
	}
	return out
}

func (m *NaiveBayes) classifyOne(tokens []string) string {
	known := false
	for _, t := range tokens {
		if _, ok := m.vocab[t]; ok {
			known = true
			break
		}
	}
	if !known {
		return m.labels[m.ranked[0]]
	}

	best := m.ranked[0]
	bestScore := m.score(best, tokens)
	for _, idx := range m.ranked[1:] {
		// strict comparison: on a tie the better-ranked label stays
		if s := m.score(idx, tokens); s > bestScore {
			best, bestScore = idx, s
		}
	}
	return m.labels[best]
}

func (m *NaiveBayes) score(idx int, tokens []string) float64 {
	s := m.priors[idx]
	for _, t := range tokens {
		if p, ok := m.likelihoods[idx][t]; ok {
			s += p
		} else {
			s += m.unknown[idx]
		}
	}
	return s
}

// Tokenize lowercases text and splits it into runs of letters and digits.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
