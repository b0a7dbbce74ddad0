package tryon

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"mycloset/internal/domain"
	"mycloset/internal/infra"
	"mycloset/internal/prompt"
	"mycloset/internal/providers/genai"
	"mycloset/internal/retry"
	"mycloset/internal/sqlinline"
)

// Generator produces one try-on image per call. *genai.Client satisfies it;
// tests inject fakes.
type Generator interface {
	GenerateTryOn(ctx context.Context, req genai.TryOnRequest) ([]byte, string, error)
}

// Downloader fetches source images by URL.
type Downloader interface {
	Fetch(ctx context.Context, url string) ([]byte, string, error)
}

// ResultPublisher uploads a generated image and returns its access URL.
type ResultPublisher interface {
	Publish(ctx context.Context, userID, sessionID string, data []byte, mime string) (string, error)
}

// Options wires a Processor.
type Options struct {
	SQL           infra.SQLExecutor
	Generator     Generator
	Downloader    Downloader
	Publisher     ResultPublisher
	MaxRetries    int
	BaseDelay     time.Duration
	Sleep         retry.SleepFunc
	PendingTTL    time.Duration
	ProcessingTTL time.Duration
	Logger        zerolog.Logger
}

// Processor drives a claimed session through download, generation and
// publication, and owns the status transitions out of processing. It is the
// only writer of result/error columns.
type Processor struct {
	sql           infra.SQLExecutor
	generator     Generator
	downloader    Downloader
	publisher     ResultPublisher
	maxRetries    int
	baseDelay     time.Duration
	sleep         retry.SleepFunc
	pendingTTL    time.Duration
	processingTTL time.Duration
	logger        zerolog.Logger
}

func NewProcessor(opts Options) *Processor {
	maxRetries := opts.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	baseDelay := opts.BaseDelay
	if baseDelay <= 0 {
		baseDelay = 5 * time.Second
	}
	pendingTTL := opts.PendingTTL
	if pendingTTL <= 0 {
		pendingTTL = 30 * time.Minute
	}
	processingTTL := opts.ProcessingTTL
	if processingTTL <= 0 {
		processingTTL = 10 * time.Minute
	}
	return &Processor{
		sql:           opts.SQL,
		generator:     opts.Generator,
		downloader:    opts.Downloader,
		publisher:     opts.Publisher,
		maxRetries:    maxRetries,
		baseDelay:     baseDelay,
		sleep:         opts.Sleep,
		pendingTTL:    pendingTTL,
		processingTTL: processingTTL,
		logger:        opts.Logger,
	}
}

type claimedSession struct {
	ID        string
	UserID    string
	CreatedAt time.Time
}

// Process claims the given pending session and runs it to a terminal state.
// Returns ErrNotClaimable when the session is absent or no longer pending.
func (p *Processor) Process(ctx context.Context, sessionID string) (*domain.TryOnSession, error) {
	row := p.sql.QueryRow(ctx, sqlinline.QClaimSession, sessionID)
	var c claimedSession
	if err := row.Scan(&c.ID, &c.UserID, &c.CreatedAt); err != nil {
		if infra.IsNoRows(err) {
			return nil, fmt.Errorf("session %s: %w", sessionID, domain.ErrNotClaimable)
		}
		return nil, fmt.Errorf("claim session %s: %w", sessionID, err)
	}
	return p.run(ctx, c)
}

// ProcessNext claims the oldest pending session older than grace and runs it.
// Returns ErrNotClaimable when nothing qualifies.
func (p *Processor) ProcessNext(ctx context.Context, grace time.Duration) (*domain.TryOnSession, error) {
	row := p.sql.QueryRow(ctx, sqlinline.QClaimNextPending, int(grace.Seconds()))
	var c claimedSession
	if err := row.Scan(&c.ID, &c.UserID, &c.CreatedAt); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotClaimable
		}
		return nil, fmt.Errorf("claim next session: %w", err)
	}
	return p.run(ctx, c)
}

func (p *Processor) run(ctx context.Context, c claimedSession) (*domain.TryOnSession, error) {
	start := time.Now()
	logger := p.logger.With().Str("session_id", c.ID).Str("user_id", c.UserID).Logger()
	logger.Info().Msg("tryon: session claimed")
	p.recordUsage(ctx, c, "try_on_started", true, 0)

	req, refs, err := p.assembleRequest(ctx, c)
	if err != nil {
		logger.Warn().Err(err).Msg("tryon: request assembly failed")
		return p.fail(ctx, c, start, err)
	}
	req.Instruction = prompt.BuildTryOnInstruction(refs)

	policy := retry.Policy{MaxRetries: p.maxRetries, BaseDelay: p.baseDelay, Sleep: p.sleep}
	result := policy.Do(ctx, func(ctx context.Context) ([]byte, string, error) {
		return p.generator.GenerateTryOn(ctx, *req)
	})
	if !result.OK {
		logger.Warn().Err(result.Err).Int("retries", result.RetryCount).Msg("tryon: generation exhausted")
		return p.fail(ctx, c, start, result.Err)
	}
	logger.Info().Int("retries", result.RetryCount).Dur("elapsed", result.Elapsed).Msg("tryon: image generated")

	url, err := p.publisher.Publish(ctx, c.UserID, c.ID, result.Data, result.MIME)
	if err != nil {
		logger.Error().Err(err).Msg("tryon: publish failed")
		return p.fail(ctx, c, start, err)
	}

	elapsed := time.Since(start).Milliseconds()
	tag, err := p.sql.Exec(ctx, sqlinline.QCompleteSession, c.ID, url, elapsed)
	if err != nil {
		return nil, fmt.Errorf("complete session %s: %w", c.ID, err)
	}
	if tag.RowsAffected() == 0 {
		// Cleanup terminalized the session while we were generating.
		logger.Warn().Msg("tryon: completion lost, session already terminal")
		return nil, fmt.Errorf("session %s: %w", c.ID, domain.ErrBadTransition)
	}
	p.recordUsage(ctx, c, "try_on_completed", true, elapsed)

	now := time.Now()
	return &domain.TryOnSession{
		ID:               c.ID,
		UserID:           c.UserID,
		Status:           domain.StatusCompleted,
		ResultImageURL:   url,
		ProcessingTimeMs: elapsed,
		CreatedAt:        c.CreatedAt,
		CompletedAt:      &now,
	}, nil
}

// fail records a visible failure on the session. Generation failures are
// session state, not transport errors, so the caller still gets the session.
func (p *Processor) fail(ctx context.Context, c claimedSession, start time.Time, cause error) (*domain.TryOnSession, error) {
	elapsed := time.Since(start).Milliseconds()
	msg := cause.Error()
	tag, err := p.sql.Exec(ctx, sqlinline.QFailSession, c.ID, msg, elapsed)
	if err != nil {
		return nil, fmt.Errorf("fail session %s: %w", c.ID, err)
	}
	if tag.RowsAffected() == 0 {
		// Cleanup terminalized the session while we were generating; the
		// row no longer says failed, so neither should the return value.
		p.logger.Warn().Str("session_id", c.ID).Msg("tryon: failure lost, session already terminal")
		return nil, fmt.Errorf("session %s: %w", c.ID, domain.ErrBadTransition)
	}
	p.recordUsage(ctx, c, "try_on_failed", false, elapsed)

	now := time.Now()
	return &domain.TryOnSession{
		ID:               c.ID,
		UserID:           c.UserID,
		Status:           domain.StatusFailed,
		ErrorMessage:     msg,
		ProcessingTimeMs: elapsed,
		CreatedAt:        c.CreatedAt,
		CompletedAt:      &now,
	}, nil
}

// assembleRequest loads the session's clothing and the user's active base
// photo, and downloads every source image.
func (p *Processor) assembleRequest(ctx context.Context, c claimedSession) (*genai.TryOnRequest, []prompt.ClothingRef, error) {
	rows, err := p.sql.Query(ctx, sqlinline.QSelectSessionItems, c.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("load session items: %w", err)
	}
	defer rows.Close()

	type sessionItem struct {
		ID       string
		Category domain.ClothingCategory
		Name     string
		ImageURL string
	}
	var items []sessionItem
	for rows.Next() {
		var it sessionItem
		if err := rows.Scan(&it.ID, &it.Category, &it.Name, &it.ImageURL); err != nil {
			return nil, nil, fmt.Errorf("scan session item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate session items: %w", err)
	}
	if len(items) == 0 {
		return nil, nil, fmt.Errorf("session %s has no clothing items: %w", c.ID, domain.ErrValidation)
	}

	var basePhotoURL string
	row := p.sql.QueryRow(ctx, sqlinline.QSelectActiveBasePhoto, c.UserID)
	var basePhotoID string
	if err := row.Scan(&basePhotoID, &basePhotoURL); err != nil {
		if infra.IsNoRows(err) {
			return nil, nil, fmt.Errorf("no active base photo: %w", domain.ErrValidation)
		}
		return nil, nil, fmt.Errorf("load base photo: %w", err)
	}

	baseData, baseMIME, err := p.downloader.Fetch(ctx, basePhotoURL)
	if err != nil {
		return nil, nil, err
	}

	req := &genai.TryOnRequest{
		BasePhoto:      genai.ImagePart{Data: baseData, MIME: baseMIME},
		ClothingImages: make([]genai.ImagePart, 0, len(items)),
	}
	refs := make([]prompt.ClothingRef, 0, len(items))
	for _, it := range items {
		data, mime, err := p.downloader.Fetch(ctx, it.ImageURL)
		if err != nil {
			return nil, nil, err
		}
		req.ClothingImages = append(req.ClothingImages, genai.ImagePart{Data: data, MIME: mime})
		refs = append(refs, prompt.ClothingRef{Category: it.Category, Name: it.Name})
	}
	return req, refs, nil
}

// Cleanup terminalizes stale pending sessions (cancelled) and stuck
// processing ones (timeout), releasing their concurrency slots.
func (p *Processor) Cleanup(ctx context.Context) (cancelled, timedOut int64, err error) {
	tag, err := p.sql.Exec(ctx, sqlinline.QCancelStaleSessions, int(p.pendingTTL.Seconds()))
	if err != nil {
		return 0, 0, fmt.Errorf("cancel stale sessions: %w", err)
	}
	cancelled = tag.RowsAffected()

	tag, err = p.sql.Exec(ctx, sqlinline.QTimeoutStuckSessions, int(p.processingTTL.Seconds()))
	if err != nil {
		return cancelled, 0, fmt.Errorf("timeout stuck sessions: %w", err)
	}
	timedOut = tag.RowsAffected()

	if cancelled > 0 || timedOut > 0 {
		p.logger.Info().Int64("cancelled", cancelled).Int64("timed_out", timedOut).Msg("tryon: cleanup pass")
	}
	return cancelled, timedOut, nil
}

// recordUsage emits a usage event; failures are logged, never propagated.
func (p *Processor) recordUsage(ctx context.Context, c claimedSession, event string, success bool, latencyMs int64) {
	if _, err := p.sql.Exec(ctx, sqlinline.QInsertUsageEvent, c.UserID, c.ID, event, success, latencyMs, nil); err != nil {
		p.logger.Warn().Err(err).Str("event", event).Msg("tryon: usage event dropped")
	}
}
