package dictations

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"scribe-backend/internal/extract"
	"scribe-backend/internal/llm"
	"scribe-backend/internal/queue"
	"scribe-backend/internal/shared/metrics"
	"scribe-backend/internal/shared/storage/object"
	"scribe-backend/internal/shared/telemetry"
	"scribe-backend/internal/shared/util"
)

const (
	StatusUploaded   = "uploaded"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

// DefaultScope is used when a request carries no scope of its own. Guest
// records are pollable by ID but never appear in history listings.
const DefaultScope = "guest"

const (
	defaultMinPasswordLen = 4
	defaultHistoryTTL     = 24 * time.Hour
	defaultHistoryMax     = 10
	defaultProcessTimeout = 300 * time.Second

	uploadPrefix = "dictations/uploads/"
)

// Service contains business logic for dictations.
type Service struct {
	Repo           Repo
	Store          object.ObjectStore
	LLM            llm.Client
	Queue          queue.Client
	AudioPrompt    string
	DocumentPrompt string
	MinPasswordLen int
	HistoryTTL     time.Duration
	HistoryMax     int
	SignedURLTTL   time.Duration
	ProcessTimeout time.Duration

	now func() time.Time
}

// SubmitFile is one uploaded asset within a submission.
type SubmitFile struct {
	FileName    string
	ContentType string
	Body        io.Reader
}

// SubmitInput captures a new dictation submission.
type SubmitInput struct {
	Scope       string
	DisplayName string
	Password    string
	Files       []SubmitFile
}

// HistoryItem is the listing projection of a dictation. Result fields and
// the password hash never leave through history.
type HistoryItem struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"displayName"`
	Status      string    `json:"status"`
	HasPassword bool      `json:"hasPassword"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Submit stores the uploaded assets, creates the record in the uploaded
// state, and kicks off asynchronous processing.
func (s *Service) Submit(ctx context.Context, input SubmitInput) (Dictation, error) {
	scope, err := normalizeScope(input.Scope)
	if err != nil {
		return Dictation{}, err
	}
	if len(input.Files) == 0 {
		return Dictation{}, ErrNoAssets
	}
	if input.Password != "" && len(input.Password) < s.minPasswordLen() {
		return Dictation{}, ErrPasswordTooShort
	}

	now := s.nowUTC()
	id := newDictationID(now)

	keys := make([]string, 0, len(input.Files))
	mimes := make([]string, 0, len(input.Files))
	for _, f := range input.Files {
		mimeType := extract.NormalizeMimeType(f.ContentType, f.FileName)
		if !extract.Supported(mimeType) {
			s.cleanupKeys(ctx, keys)
			return Dictation{}, fmt.Errorf("%w: %s", ErrUnsupportedMedia, mimeType)
		}

		body := f.Body
		if extract.IsDocument(mimeType) {
			data, err := io.ReadAll(f.Body)
			if err != nil {
				s.cleanupKeys(ctx, keys)
				return Dictation{}, fmt.Errorf("read upload %s: %w", f.FileName, err)
			}
			if err := extract.ValidatePDF(data); err != nil {
				s.cleanupKeys(ctx, keys)
				return Dictation{}, fmt.Errorf("%w: %s: %s", ErrUnsupportedMedia, f.FileName, sanitizeError(err))
			}
			body = strings.NewReader(string(data))
		}

		key := uploadPrefix + scope + "/" + id + "/" + uuid.NewString() + uploadExt(f.FileName)
		if _, err := s.Store.Save(ctx, key, mimeType, body); err != nil {
			s.cleanupKeys(ctx, keys)
			return Dictation{}, fmt.Errorf("store upload %s: %w", f.FileName, err)
		}
		keys = append(keys, key)
		mimes = append(mimes, mimeType)
	}

	displayName := strings.TrimSpace(input.DisplayName)
	if displayName == "" {
		displayName = now.Format("2006-01-02 15:04")
	}

	d := Dictation{
		ID:           id,
		Scope:        scope,
		DisplayName:  displayName,
		PasswordHash: util.HashSecret(input.Password),
		AudioKeys:    keys,
		MimeTypes:    mimes,
		Status:       StatusUploaded,
		CreatedAt:    now,
	}
	if err := s.Repo.Create(ctx, d); err != nil {
		s.cleanupKeys(ctx, keys)
		return Dictation{}, err
	}

	s.dispatch(ctx, d)
	return d, nil
}

func (s *Service) dispatch(ctx context.Context, d Dictation) {
	if s.Queue != nil {
		msg := queue.Message{
			DictationID: d.ID,
			Scope:       d.Scope,
			RequestID:   requestIDFromContext(ctx),
			EnqueuedAt:  s.nowUTC().Format(time.RFC3339),
			Version:     1,
		}
		err := s.Queue.Send(ctx, msg)
		if err == nil {
			return
		}
		telemetry.Error("dictation.enqueue.failed", map[string]any{
			"request_id":   requestIDFromContext(ctx),
			"scope":        d.Scope,
			"dictation_id": d.ID,
			"error":        sanitizeError(err),
		})
	}
	go s.Process(backgroundWithRequestID(ctx), d.Scope, d.ID)
}

// Get returns a dictation by scope and ID, enforcing the password gate when
// the record carries one.
func (s *Service) Get(ctx context.Context, scope, id, password string) (Dictation, error) {
	scope, err := normalizeScope(scope)
	if err != nil {
		return Dictation{}, err
	}
	if id == "" {
		return Dictation{}, ErrNotFound
	}

	d, err := s.Repo.GetByID(ctx, scope, id)
	if err != nil {
		return Dictation{}, err
	}
	if !util.SecretMatches(d.PasswordHash, password) {
		return Dictation{}, ErrUnauthorized
	}
	return d, nil
}

// SaveCorrection stores an edited summary alongside the generated one. The
// operation is deliberately not password gated: whoever can see the result
// may refine it.
func (s *Service) SaveCorrection(ctx context.Context, scope, id, corrected string) (Dictation, error) {
	scope, err := normalizeScope(scope)
	if err != nil {
		return Dictation{}, err
	}
	d, err := s.Repo.GetByID(ctx, scope, id)
	if err != nil {
		return Dictation{}, err
	}
	d.CorrectedSummary = corrected
	if err := s.Repo.Overwrite(ctx, d); err != nil {
		return Dictation{}, err
	}
	return d, nil
}

// List returns the recent history for a scope, newest first. Guest scope
// always yields an empty history. Unless showAll is set, records older than
// the history TTL are dropped and the list is capped.
func (s *Service) List(ctx context.Context, scope string, showAll bool) ([]HistoryItem, error) {
	scope, err := normalizeScope(scope)
	if err != nil {
		return nil, err
	}
	if scope == DefaultScope {
		return []HistoryItem{}, nil
	}

	records, err := s.Repo.ListByScope(ctx, scope)
	if err != nil {
		return nil, err
	}

	cutoff := s.nowUTC().Add(-s.historyTTL())
	items := make([]HistoryItem, 0, len(records))
	for _, d := range records {
		if !showAll && d.CreatedAt.Before(cutoff) {
			continue
		}
		items = append(items, HistoryItem{
			ID:          d.ID,
			DisplayName: d.DisplayName,
			Status:      d.Status,
			HasPassword: d.HasPassword(),
			CreatedAt:   d.CreatedAt,
		})
		if !showAll && len(items) >= s.historyMax() {
			break
		}
	}
	return items, nil
}

// Delete removes the record and every stored asset belonging to it. The
// record goes first so a half-finished delete cannot resurrect in history
// with dangling asset keys.
func (s *Service) Delete(ctx context.Context, scope, id, password string) error {
	scope, err := normalizeScope(scope)
	if err != nil {
		return err
	}
	d, err := s.Repo.GetByID(ctx, scope, id)
	if err != nil {
		return err
	}
	if !util.SecretMatches(d.PasswordHash, password) {
		return ErrUnauthorized
	}

	if err := s.Repo.Delete(ctx, scope, id); err != nil {
		return err
	}
	s.deleteAssets(ctx, d)
	return nil
}

// CleanupExpired eagerly removes every record older than the history TTL
// together with its assets. Returns the number of records removed.
func (s *Service) CleanupExpired(ctx context.Context) (int, error) {
	cutoff := s.nowUTC().Add(-s.historyTTL())
	expired, err := s.Repo.ListOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, d := range expired {
		if err := s.Repo.Delete(ctx, d.Scope, d.ID); err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			telemetry.Warn("dictation.cleanup.skip", map[string]any{
				"scope":        d.Scope,
				"dictation_id": d.ID,
				"error":        sanitizeError(err),
			})
			continue
		}
		s.deleteAssets(ctx, d)
		removed++
	}
	return removed, nil
}

// AudioURLs returns time-limited download URLs for the record's assets, in
// the same order as the stored keys. Backends without URL signing yield an
// empty slice.
func (s *Service) AudioURLs(ctx context.Context, d Dictation) []string {
	if s.Store == nil {
		return nil
	}
	urls := make([]string, 0, len(d.AudioKeys))
	for _, key := range d.AudioKeys {
		url, err := s.Store.SignedURL(ctx, key, s.signedURLTTL())
		if err != nil {
			if !errors.Is(err, object.ErrSignedURLUnsupported) {
				telemetry.Warn("dictation.signedurl.failed", map[string]any{
					"scope":        d.Scope,
					"dictation_id": d.ID,
					"error":        sanitizeError(err),
				})
			}
			return nil
		}
		urls = append(urls, url)
	}
	return urls
}

// Process runs the inference pipeline for one record: uploaded ->
// processing -> completed or error. Safe to call twice; terminal records
// are left untouched.
func (s *Service) Process(ctx context.Context, scope, id string) {
	startedAt := s.nowUTC()
	defer func() {
		if r := recover(); r != nil {
			s.failDictation(ctx, scope, id, fmt.Errorf("panic: %v", r), &startedAt)
		}
	}()

	d, err := s.Repo.GetByID(ctx, scope, id)
	if err != nil {
		telemetry.Error("dictation.process.lookup", map[string]any{
			"request_id":   requestIDFromContext(ctx),
			"scope":        scope,
			"dictation_id": id,
			"error":        sanitizeError(err),
		})
		return
	}
	if d.Terminal() {
		telemetry.Info("dictation.process.skip", map[string]any{
			"request_id":   requestIDFromContext(ctx),
			"scope":        scope,
			"dictation_id": id,
			"status":       d.Status,
		})
		return
	}

	d.Status = StatusProcessing
	if err := s.Repo.Overwrite(ctx, d); err != nil {
		s.failDictation(ctx, scope, id, fmt.Errorf("set processing failed: %w", err), &startedAt)
		return
	}
	metrics.IncDictationStarted()
	telemetry.Info("dictation.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"scope":             scope,
		"dictation_id":      id,
		"status":            StatusProcessing,
		"status_transition": "uploaded->processing",
	})

	if s.Store == nil {
		s.failDictation(ctx, scope, id, errors.New("missing object store dependency"), &startedAt)
		return
	}
	if s.LLM == nil {
		s.failDictation(ctx, scope, id, errors.New("missing llm client"), &startedAt)
		return
	}

	files, err := s.buildFileParts(ctx, d)
	if err != nil {
		s.failDictation(ctx, scope, id, err, &startedAt)
		return
	}

	procCtx, cancel := context.WithTimeout(ctx, s.processTimeout())
	defer cancel()

	llmClient := newRetryingLLM(s.LLM, d.ID, requestIDFromContext(ctx))
	out, err := llmClient.Generate(procCtx, llm.GenerateInput{
		Prompt: s.promptFor(d),
		Files:  files,
	})
	if err != nil {
		s.failDictation(ctx, scope, id, fmt.Errorf("llm generate: %w", err), &startedAt)
		return
	}

	summary, transcript := splitGeneration(out)
	d.Status = StatusCompleted
	d.Summary = summary
	d.Transcript = transcript
	if err := s.Repo.Overwrite(ctx, d); err != nil {
		s.failDictation(ctx, scope, id, fmt.Errorf("set result failed: %w", err), &startedAt)
		return
	}

	completedAt := s.nowUTC()
	metrics.IncDictationCompleted()
	metrics.ObserveDictationDurationMs(durationMs(&startedAt, &completedAt))
	telemetry.Info("dictation.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"scope":             scope,
		"dictation_id":      id,
		"status":            StatusCompleted,
		"status_transition": "processing->completed",
		"duration_ms":       durationMs(&startedAt, &completedAt),
	})
}

func (s *Service) buildFileParts(ctx context.Context, d Dictation) ([]llm.FilePart, error) {
	files := make([]llm.FilePart, 0, len(d.AudioKeys))
	for i, key := range d.AudioKeys {
		mimeType := ""
		if i < len(d.MimeTypes) {
			mimeType = d.MimeTypes[i]
		}
		if uri := s.Store.URI(key); uri != "" {
			files = append(files, llm.FilePart{URI: uri, MimeType: mimeType})
			continue
		}
		body, err := s.Store.Open(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("open asset %s: %w", key, err)
		}
		data, err := io.ReadAll(body)
		body.Close()
		if err != nil {
			return nil, fmt.Errorf("read asset %s: %w", key, err)
		}
		files = append(files, llm.FilePart{Data: data, MimeType: mimeType})
	}
	return files, nil
}

func (s *Service) promptFor(d Dictation) string {
	allDocuments := len(d.MimeTypes) > 0
	for _, m := range d.MimeTypes {
		if !extract.IsDocument(m) {
			allDocuments = false
			break
		}
	}
	if allDocuments {
		if s.DocumentPrompt != "" {
			return s.DocumentPrompt
		}
		return llm.DefaultDocumentPrompt
	}
	if s.AudioPrompt != "" {
		return s.AudioPrompt
	}
	return llm.DefaultAudioPrompt
}

// failDictation writes the terminal error state with a fresh context so a
// cancelled request cannot leave the record stuck in processing.
func (s *Service) failDictation(ctx context.Context, scope, id string, err error, startedAt *time.Time) {
	msg := sanitizeError(err)
	bg := context.Background()
	if d, getErr := s.Repo.GetByID(bg, scope, id); getErr == nil && !d.Terminal() {
		d.Status = StatusError
		d.Summary = "Processing failed: " + msg
		if updateErr := s.Repo.Overwrite(bg, d); updateErr != nil {
			telemetry.Error("dictation.fail.update", map[string]any{
				"scope":        scope,
				"dictation_id": id,
				"error":        sanitizeError(updateErr),
			})
		}
	}

	completedAt := s.nowUTC()
	metrics.IncDictationFailed()
	if startedAt != nil {
		metrics.ObserveDictationDurationMs(durationMs(startedAt, &completedAt))
	}
	telemetry.Info("dictation.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"scope":             scope,
		"dictation_id":      id,
		"status":            StatusError,
		"status_transition": "processing->error",
		"error":             msg,
		"duration_ms":       durationMs(startedAt, &completedAt),
	})
}

func (s *Service) deleteAssets(ctx context.Context, d Dictation) {
	for _, key := range d.AudioKeys {
		if err := s.Store.Delete(ctx, key); err != nil && !errors.Is(err, object.ErrNotFound) {
			telemetry.Warn("dictation.asset.delete", map[string]any{
				"scope":        d.Scope,
				"dictation_id": d.ID,
				"key":          key,
				"error":        sanitizeError(err),
			})
		}
	}
}

func (s *Service) cleanupKeys(ctx context.Context, keys []string) {
	for _, key := range keys {
		if err := s.Store.Delete(ctx, key); err != nil && !errors.Is(err, object.ErrNotFound) {
			telemetry.Warn("dictation.upload.cleanup", map[string]any{
				"key":   key,
				"error": sanitizeError(err),
			})
		}
	}
}

func (s *Service) nowUTC() time.Time {
	if s.now != nil {
		return s.now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) minPasswordLen() int {
	if s.MinPasswordLen > 0 {
		return s.MinPasswordLen
	}
	return defaultMinPasswordLen
}

func (s *Service) historyTTL() time.Duration {
	if s.HistoryTTL > 0 {
		return s.HistoryTTL
	}
	return defaultHistoryTTL
}

func (s *Service) historyMax() int {
	if s.HistoryMax > 0 {
		return s.HistoryMax
	}
	return defaultHistoryMax
}

func (s *Service) signedURLTTL() time.Duration {
	if s.SignedURLTTL > 0 {
		return s.SignedURLTTL
	}
	return time.Hour
}

func (s *Service) processTimeout() time.Duration {
	if s.ProcessTimeout > 0 {
		return s.ProcessTimeout
	}
	return defaultProcessTimeout
}

func normalizeScope(scope string) (string, error) {
	if strings.TrimSpace(scope) == "" {
		return DefaultScope, nil
	}
	clean, err := util.SanitizeScope(scope)
	if err != nil {
		return "", ErrInvalidScope
	}
	return clean, nil
}

func newDictationID(now time.Time) string {
	return strconv.FormatInt(now.UnixMilli(), 10) + "-" + uuid.NewString()[:8]
}

func uploadExt(fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	if ext == "" || strings.ContainsAny(ext, "/\\") || strings.Contains(ext, "..") {
		return ""
	}
	return ext
}

func splitGeneration(out string) (summary, transcript string) {
	idx := strings.Index(out, llm.TranscriptDelimiter)
	if idx < 0 {
		return strings.TrimSpace(out), ""
	}
	summary = strings.TrimSpace(out[:idx])
	transcript = normalizeTranscript(out[idx+len(llm.TranscriptDelimiter):])
	return summary, transcript
}

// speakerLabel matches a run-on speaker label, a token ending with a colon
// that follows other text on the same line.
var speakerLabel = regexp.MustCompile(`([^\n])([ \t　]+\S+?[：:])`)

func normalizeTranscript(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = speakerLabel.ReplaceAllString(s, "$1\n$2")
	return strings.TrimSpace(s)
}

func durationMs(startedAt, completedAt *time.Time) float64 {
	if startedAt == nil || completedAt == nil {
		return 0
	}
	return float64(completedAt.Sub(*startedAt).Microseconds()) / 1000.0
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	const maxLen = 500
	if len(msg) > maxLen {
		msg = msg[:maxLen]
	}
	return msg
}
