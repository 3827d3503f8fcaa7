// Package ranking scores a batch of candidate documents against one target
// description and orders them by similarity.
package ranking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/spigell/resume-ranker/internal/document"
	"github.com/spigell/resume-ranker/internal/embedding"
	"github.com/spigell/resume-ranker/internal/keywords"
	"github.com/spigell/resume-ranker/internal/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers is the number of candidates processed concurrently.
const DefaultWorkers = 4

// ErrEmptyTarget is returned when the target description is blank.
var ErrEmptyTarget = errors.New("target description is empty")

// Stage names the pipeline step a candidate failed in.
type Stage string

const (
	StageExtract Stage = "extract"
	StageEmbed   Stage = "embed"
)

// ModelContext holds the model handles shared by every ranking pass. It is
// built once per process.
type ModelContext struct {
	Embedder embedding.Provider
	Keywords keywords.Extractor
}

// TextExtractor turns a document into plain text.
type TextExtractor interface {
	Extract(doc document.Document) (string, error)
}

// Candidate is a successfully scored document.
type Candidate struct {
	Filename string
	// Index is the position of the document in the input batch.
	Index int
	// Score is the cosine similarity to the target, in [-1, 1].
	Score float64
	// Missing lists target keywords absent from the text, in keyword order.
	Missing  []string
	Document document.Document
	Text     string
}

// Failure describes a candidate that could not be scored.
type Failure struct {
	Filename string
	Stage    Stage
	Err      error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s: %s: %v", f.Filename, f.Stage, f.Err)
}

func (f Failure) Unwrap() error { return f.Err }

// Result is the outcome of one ranking pass.
type Result struct {
	RunID string
	// Keywords are the salient phrases extracted from the target.
	Keywords []string
	// Ranked is sorted by descending score; equal scores keep input order.
	Ranked []Candidate
	// Failed keeps input order.
	Failed []Failure
}

// FailedFilenames returns the names of the failed candidates in input order.
func (r *Result) FailedFilenames() []string {
	names := make([]string, len(r.Failed))
	for i, f := range r.Failed {
		names[i] = f.Filename
	}
	return names
}

type Option func(*Ranker)

// WithWorkers bounds the number of candidates processed at once.
func WithWorkers(n int) Option {
	return func(r *Ranker) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithKeywordCount sets how many keywords are extracted from the target.
func WithKeywordCount(n int) Option {
	return func(r *Ranker) {
		if n >= 0 {
			r.keywordCount = n
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Ranker) {
		r.logger = logger.OrNop(l)
	}
}

// WithExtractor replaces the default document.Extractor.
func WithExtractor(e TextExtractor) Option {
	return func(r *Ranker) {
		r.extractor = e
	}
}

// Ranker runs ranking passes. It is safe for concurrent use when its models
// are.
type Ranker struct {
	models       ModelContext
	extractor    TextExtractor
	workers      int
	keywordCount int
	logger       *zap.Logger
}

func New(models ModelContext, opts ...Option) *Ranker {
	r := &Ranker{
		models:       models,
		workers:      DefaultWorkers,
		keywordCount: keywords.DefaultCount,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.extractor == nil {
		r.extractor = document.NewExtractor(r.logger)
	}
	return r
}

type targetArtifacts struct {
	vector   embedding.Vector
	keywords []string
}

type slot struct {
	candidate *Candidate
	failure   *Failure
}

// Rank scores every candidate against target. A candidate that fails to
// extract or embed is reported in Result.Failed and never stops the others.
// Errors preparing the target itself end the pass.
func (r *Ranker) Rank(ctx context.Context, target string, candidates []document.Document) (*Result, error) {
	if strings.TrimSpace(target) == "" {
		return nil, ErrEmptyTarget
	}

	runID := uuid.NewString()
	log := r.logger.With(zap.String(logger.FieldRunID, runID))
	result := &Result{RunID: runID, Ranked: []Candidate{}, Failed: []Failure{}}

	if len(candidates) == 0 {
		log.Info("nothing to rank")
		return result, nil
	}

	prepareTarget := sync.OnceValues(func() (targetArtifacts, error) {
		return r.prepareTarget(ctx, target)
	})

	slots := make([]slot, len(candidates))

	var g errgroup.Group
	g.SetLimit(r.workers)
	for i, doc := range candidates {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			slots[i] = r.score(ctx, log, i, doc, prepareTarget)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	artifacts, err := prepareTarget()
	if err != nil {
		return nil, err
	}
	result.Keywords = artifacts.keywords

	for _, s := range slots {
		switch {
		case s.failure != nil:
			result.Failed = append(result.Failed, *s.failure)
		case s.candidate != nil:
			result.Ranked = append(result.Ranked, *s.candidate)
		}
	}

	sort.SliceStable(result.Ranked, func(i, j int) bool {
		return result.Ranked[i].Score > result.Ranked[j].Score
	})

	log.Info("ranking finished",
		zap.Int("initial", len(candidates)),
		zap.Int("failed", len(result.Failed)),
		zap.Int("ranked", len(result.Ranked)),
	)

	return result, nil
}

func (r *Ranker) prepareTarget(ctx context.Context, target string) (targetArtifacts, error) {
	vector, err := r.models.Embedder.Embed(ctx, target)
	if err != nil {
		return targetArtifacts{}, fmt.Errorf("embed target: %w", err)
	}

	var kws []string
	if r.models.Keywords != nil && r.keywordCount > 0 {
		kws, err = r.models.Keywords.Extract(ctx, target, r.keywordCount)
		if err != nil {
			return targetArtifacts{}, fmt.Errorf("extract target keywords: %w", err)
		}
		if len(kws) > r.keywordCount {
			kws = kws[:r.keywordCount]
		}
	}

	r.logger.Debug("target prepared",
		zap.Int("dimension", len(vector)),
		zap.Strings("keywords", kws),
	)
	return targetArtifacts{vector: vector, keywords: kws}, nil
}

func (r *Ranker) score(ctx context.Context, log *zap.Logger, index int, doc document.Document, prepareTarget func() (targetArtifacts, error)) slot {
	log = log.With(zap.String(logger.FieldFile, doc.Name))

	fail := func(stage Stage, err error) slot {
		log.Warn("skipping candidate", zap.String("stage", string(stage)), zap.Error(err))
		return slot{failure: &Failure{Filename: doc.Name, Stage: stage, Err: err}}
	}

	text, err := r.extractor.Extract(doc)
	if err != nil {
		return fail(StageExtract, err)
	}

	target, err := prepareTarget()
	if err != nil {
		// Reported once by Rank.
		return slot{}
	}

	vector, err := r.models.Embedder.Embed(ctx, text)
	if err != nil {
		return fail(StageEmbed, err)
	}

	score, err := embedding.Cosine(target.vector, vector)
	if err != nil {
		return fail(StageEmbed, err)
	}

	missing := keywords.Missing(target.keywords, text)

	log.Debug("candidate scored",
		zap.Float64("score", score),
		zap.Int("missing_keywords", len(missing)),
	)

	return slot{candidate: &Candidate{
		Filename: doc.Name,
		Index:    index,
		Score:    score,
		Missing:  missing,
		Document: doc,
		Text:     text,
	}}
}
