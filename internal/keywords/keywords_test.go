package keywords

import (
	"context"
	"errors"
	"testing"

	"github.com/spigell/resume-ranker/internal/embedding"
	"github.com/spigell/resume-ranker/internal/tokenize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jobDescription = `We are looking for a Data Scientist with strong Python skills,
experience in machine learning, SQL databases and data visualization.
Python and machine learning are essential.`

func TestMissing(t *testing.T) {
	tests := []struct {
		name     string
		keywords []string
		text     string
		want     []string
	}{
		{
			name:     "one absent",
			keywords: []string{"python", "sql"},
			text:     "Experienced in Python and data visualization",
			want:     []string{"sql"},
		},
		{
			name:     "all present",
			keywords: []string{"machine learning", "SQL"},
			text:     "machine learning engineer, sql",
			want:     []string{},
		},
		{
			name:     "keeps keyword order",
			keywords: []string{"docker", "go", "aws"},
			text:     "",
			want:     []string{"docker", "go", "aws"},
		},
		{
			name:     "substring match",
			keywords: []string{"java"},
			text:     "JavaScript developer",
			want:     []string{},
		},
		{
			name:     "no keywords",
			keywords: nil,
			text:     "anything",
			want:     []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Missing(tt.keywords, tt.text))
		})
	}
}

func TestSemanticRespectsCount(t *testing.T) {
	ctx := context.Background()
	s := NewSemantic(embedding.NewLexical(0))

	for _, count := range []int{1, 3, 8} {
		got, err := s.Extract(ctx, jobDescription, count)
		require.NoError(t, err)
		assert.Len(t, got, count)
		assert.Len(t, unique(got), len(got))
	}

	all, err := s.Extract(ctx, "Python SQL", 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"python", "sql", "python sql"}, all)
}

func TestSemanticRanksByDocumentSimilarity(t *testing.T) {
	s := NewSemantic(newVocabProvider("python", "sql", "kafka", "redis"))

	got, err := s.Extract(context.Background(), "Python SQL. Python", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"python sql", "python"}, got)

	got, err = s.Extract(context.Background(), "Kafka Redis", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"kafka redis", "kafka", "redis"}, got)
}

func TestKeywordsStayInsideOnePhrase(t *testing.T) {
	jd := "Required skills:\n- Python\n- SQL and data visualization\n- Machine learning"

	for name, extractor := range map[string]Extractor{
		"semantic":  NewSemantic(embedding.NewLexical(0)),
		"frequency": NewFrequency(),
	} {
		t.Run(name, func(t *testing.T) {
			got, err := extractor.Extract(context.Background(), jd, 8)
			require.NoError(t, err)
			require.NotEmpty(t, got)
			assert.Empty(t, Missing(got, jd), "keywords %v", got)
		})
	}
}

func TestSemanticEmptyInput(t *testing.T) {
	s := NewSemantic(failingProvider{})

	for _, text := range []string{"", "   ", "the and of"} {
		got, err := s.Extract(context.Background(), text, 5)
		require.NoError(t, err)
		assert.Empty(t, got)
	}

	got, err := s.Extract(context.Background(), jobDescription, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSemanticPropagatesEmbedError(t *testing.T) {
	_, err := NewSemantic(failingProvider{}).Extract(context.Background(), jobDescription, 5)
	assert.ErrorIs(t, err, errEmbed)
}

func TestFrequency(t *testing.T) {
	got, err := NewFrequency().Extract(context.Background(), jobDescription, 3)
	require.NoError(t, err)

	assert.Equal(t, []string{"machine learning", "data", "python"}, got)
}

func TestFrequencyTiesKeepFirstSeenOrder(t *testing.T) {
	got, err := NewFrequency().Extract(context.Background(), "kafka redis", 2)
	require.NoError(t, err)

	assert.Equal(t, []string{"kafka redis", "kafka"}, got)
}

func TestFrequencyFewerCandidatesThanCount(t *testing.T) {
	got, err := NewFrequency().Extract(context.Background(), "Golang", 8)
	require.NoError(t, err)
	assert.Equal(t, []string{"golang"}, got)
}

var errEmbed = errors.New("embed failed")

type failingProvider struct{}

func (failingProvider) Name() string   { return "failing" }
func (failingProvider) Dimension() int { return 1 }
func (failingProvider) Embed(context.Context, string) (embedding.Vector, error) {
	return nil, errEmbed
}
func (failingProvider) EmbedBatch(context.Context, []string) ([]embedding.Vector, error) {
	return nil, errEmbed
}

// vocabProvider embeds text as word counts over a fixed vocabulary.
type vocabProvider struct {
	index map[string]int
}

func newVocabProvider(words ...string) *vocabProvider {
	p := &vocabProvider{index: make(map[string]int, len(words))}
	for i, w := range words {
		p.index[w] = i
	}
	return p
}

func (p *vocabProvider) Name() string   { return "vocab" }
func (p *vocabProvider) Dimension() int { return len(p.index) }

func (p *vocabProvider) Embed(_ context.Context, text string) (embedding.Vector, error) {
	v := embedding.Zero(len(p.index))
	for _, w := range tokenize.Words(text) {
		if i, ok := p.index[w]; ok {
			v[i]++
		}
	}
	return v, nil
}

func (p *vocabProvider) EmbedBatch(ctx context.Context, texts []string) ([]embedding.Vector, error) {
	out := make([]embedding.Vector, len(texts))
	for i, text := range texts {
		out[i], _ = p.Embed(ctx, text)
	}
	return out, nil
}

func unique(items []string) map[string]struct{} {
	out := make(map[string]struct{}, len(items))
	for _, item := range items {
		out[item] = struct{}{}
	}
	return out
}
