package dictations

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"scribe-backend/internal/llm"
	"scribe-backend/internal/queue"
	"scribe-backend/internal/shared/storage/object"
	"scribe-backend/internal/shared/storage/object/local"
)

type staticLLM struct {
	resp string
	err  error
}

func (s staticLLM) Generate(ctx context.Context, input llm.GenerateInput) (string, error) {
	_ = ctx
	_ = input
	return s.resp, s.err
}

type captureQueue struct {
	msgs []queue.Message
}

func (q *captureQueue) Send(ctx context.Context, msg queue.Message) error {
	_ = ctx
	q.msgs = append(q.msgs, msg)
	return nil
}

func setupService(t *testing.T, llmClient llm.Client) (*Service, *MemoryRepo, object.ObjectStore, *captureQueue) {
	t.Helper()
	store := local.New(t.TempDir())
	repo := NewMemoryRepo()
	q := &captureQueue{}
	svc := &Service{
		Repo:  repo,
		Store: store,
		LLM:   llmClient,
		Queue: q,
	}
	return svc, repo, store, q
}

func submitAudio(t *testing.T, svc *Service, scope, password string) Dictation {
	t.Helper()
	d, err := svc.Submit(context.Background(), SubmitInput{
		Scope:       scope,
		DisplayName: "morning round",
		Password:    password,
		Files: []SubmitFile{
			{FileName: "take1.webm", ContentType: "audio/webm", Body: strings.NewReader("audio-bytes-1")},
			{FileName: "take2.webm", ContentType: "audio/webm", Body: strings.NewReader("audio-bytes-2")},
		},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	return d
}

func TestSubmitCreatesUploadedRecordAndEnqueues(t *testing.T) {
	svc, repo, store, q := setupService(t, staticLLM{resp: "ok"})

	d := submitAudio(t, svc, "room-1", "")

	if d.Status != StatusUploaded {
		t.Fatalf("status = %q, want %q", d.Status, StatusUploaded)
	}
	if len(d.AudioKeys) != 2 || len(d.MimeTypes) != 2 {
		t.Fatalf("keys=%d mimes=%d, want 2 each", len(d.AudioKeys), len(d.MimeTypes))
	}
	for _, key := range d.AudioKeys {
		body, err := store.Open(context.Background(), key)
		if err != nil {
			t.Fatalf("open stored asset %s: %v", key, err)
		}
		body.Close()
	}

	got, err := repo.GetByID(context.Background(), "room-1", d.ID)
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if got.DisplayName != "morning round" {
		t.Fatalf("displayName = %q", got.DisplayName)
	}
	if got.HasPassword() {
		t.Fatalf("expected open record")
	}

	if len(q.msgs) != 1 {
		t.Fatalf("queued messages = %d, want 1", len(q.msgs))
	}
	if q.msgs[0].DictationID != d.ID || q.msgs[0].Scope != "room-1" {
		t.Fatalf("queued message = %+v", q.msgs[0])
	}
}

func TestSubmitValidation(t *testing.T) {
	svc, _, _, _ := setupService(t, staticLLM{resp: "ok"})

	file := func() []SubmitFile {
		return []SubmitFile{{FileName: "a.webm", ContentType: "audio/webm", Body: strings.NewReader("x")}}
	}

	cases := []struct {
		name  string
		input SubmitInput
		want  error
	}{
		{"no files", SubmitInput{Scope: "room-1"}, ErrNoAssets},
		{"short password", SubmitInput{Scope: "room-1", Password: "abc", Files: file()}, ErrPasswordTooShort},
		{"traversal scope", SubmitInput{Scope: "../etc", Files: file()}, ErrInvalidScope},
		{"unsupported media", SubmitInput{Scope: "room-1", Files: []SubmitFile{
			{FileName: "a.exe", ContentType: "application/octet-stream", Body: strings.NewReader("x")},
		}}, ErrUnsupportedMedia},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Submit(context.Background(), tc.input); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestSubmitDefaultsToGuestScope(t *testing.T) {
	svc, repo, _, _ := setupService(t, staticLLM{resp: "ok"})

	d, err := svc.Submit(context.Background(), SubmitInput{
		Files: []SubmitFile{{FileName: "a.webm", ContentType: "audio/webm", Body: strings.NewReader("x")}},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if d.Scope != DefaultScope {
		t.Fatalf("scope = %q, want %q", d.Scope, DefaultScope)
	}
	if _, err := repo.GetByID(context.Background(), DefaultScope, d.ID); err != nil {
		t.Fatalf("get guest record: %v", err)
	}
}

func TestSubmitDefaultsDisplayNameToTimestamp(t *testing.T) {
	svc, repo, _, _ := setupService(t, staticLLM{resp: "ok"})
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC) }

	d, err := svc.Submit(context.Background(), SubmitInput{
		Scope: "room-1",
		Files: []SubmitFile{
			{FileName: "take1.webm", ContentType: "audio/webm", Body: strings.NewReader("audio-bytes")},
		},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	got, err := repo.GetByID(context.Background(), "room-1", d.ID)
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if got.DisplayName != "2026-03-01 09:30" {
		t.Fatalf("displayName = %q, want submission timestamp", got.DisplayName)
	}
}

func TestProcessCompletes(t *testing.T) {
	out := "Patient stable overnight.\n--TRANSCRIPTION--\r\nline one\r\nline two"
	svc, repo, _, _ := setupService(t, staticLLM{resp: out})

	d := submitAudio(t, svc, "room-1", "")
	svc.Process(context.Background(), "room-1", d.ID)

	got, err := repo.GetByID(context.Background(), "room-1", d.ID)
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Fatalf("status = %q, want %q", got.Status, StatusCompleted)
	}
	if got.Summary != "Patient stable overnight." {
		t.Fatalf("summary = %q", got.Summary)
	}
	if got.Transcript != "line one\nline two" {
		t.Fatalf("transcript = %q", got.Transcript)
	}
}

func TestProcessWithoutDelimiterKeepsWholeOutputAsSummary(t *testing.T) {
	svc, repo, _, _ := setupService(t, staticLLM{resp: "  just a summary  "})

	d := submitAudio(t, svc, "room-1", "")
	svc.Process(context.Background(), "room-1", d.ID)

	got, _ := repo.GetByID(context.Background(), "room-1", d.ID)
	if got.Summary != "just a summary" {
		t.Fatalf("summary = %q", got.Summary)
	}
	if got.Transcript != "" {
		t.Fatalf("transcript = %q, want empty", got.Transcript)
	}
}

func TestNormalizeTranscriptSpeakerLabels(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "run-on labels get their own line",
			in:   "はじめます 施設：こんにちは。 Aさん：どうも。",
			want: "はじめます\n 施設：こんにちは。\n Aさん：どうも。",
		},
		{
			name: "labels already on own lines stay put",
			in:   "施設：はい\nAさん：了解です",
			want: "施設：はい\nAさん：了解です",
		},
		{
			name: "crlf converted and edges trimmed",
			in:   "\r\nAさん：はい\r\n",
			want: "Aさん：はい",
		},
		{
			name: "plain text untouched",
			in:   "line one\nline two",
			want: "line one\nline two",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := normalizeTranscript(tc.in); got != tc.want {
				t.Fatalf("normalizeTranscript(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestProcessLLMFailureWritesErrorState(t *testing.T) {
	svc, repo, _, _ := setupService(t, staticLLM{err: errors.New("model unavailable")})

	d := submitAudio(t, svc, "room-1", "")
	svc.Process(context.Background(), "room-1", d.ID)

	got, err := repo.GetByID(context.Background(), "room-1", d.ID)
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if got.Status != StatusError {
		t.Fatalf("status = %q, want %q", got.Status, StatusError)
	}
	if !strings.HasPrefix(got.Summary, "Processing failed:") {
		t.Fatalf("summary = %q", got.Summary)
	}
}

func TestProcessSkipsTerminalRecords(t *testing.T) {
	svc, repo, _, _ := setupService(t, staticLLM{err: errors.New("should not be called")})

	d := submitAudio(t, svc, "room-1", "")
	d.Status = StatusCompleted
	d.Summary = "already done"
	if err := repo.Overwrite(context.Background(), d); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	svc.Process(context.Background(), "room-1", d.ID)

	got, _ := repo.GetByID(context.Background(), "room-1", d.ID)
	if got.Status != StatusCompleted || got.Summary != "already done" {
		t.Fatalf("terminal record mutated: %+v", got)
	}
}

func TestGetEnforcesPasswordGate(t *testing.T) {
	svc, _, _, _ := setupService(t, staticLLM{resp: "ok"})

	gated := submitAudio(t, svc, "room-1", "s3cret")
	open := submitAudio(t, svc, "room-1", "")

	if _, err := svc.Get(context.Background(), "room-1", gated.ID, "s3cret"); err != nil {
		t.Fatalf("correct password rejected: %v", err)
	}
	if _, err := svc.Get(context.Background(), "room-1", gated.ID, "wrong"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("wrong password err = %v, want ErrUnauthorized", err)
	}
	if _, err := svc.Get(context.Background(), "room-1", gated.ID, ""); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("missing password err = %v, want ErrUnauthorized", err)
	}
	if _, err := svc.Get(context.Background(), "room-1", open.ID, ""); err != nil {
		t.Fatalf("open record rejected: %v", err)
	}
	if _, err := svc.Get(context.Background(), "room-1", "missing", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing record err = %v, want ErrNotFound", err)
	}
}

func TestSaveCorrectionDoesNotRequirePassword(t *testing.T) {
	svc, repo, _, _ := setupService(t, staticLLM{resp: "ok"})

	d := submitAudio(t, svc, "room-1", "s3cret")
	if _, err := svc.SaveCorrection(context.Background(), "room-1", d.ID, "edited summary"); err != nil {
		t.Fatalf("save correction: %v", err)
	}

	got, _ := repo.GetByID(context.Background(), "room-1", d.ID)
	if got.CorrectedSummary != "edited summary" {
		t.Fatalf("correctedSummary = %q", got.CorrectedSummary)
	}
}

func TestListHistory(t *testing.T) {
	svc, repo, _, _ := setupService(t, staticLLM{resp: "ok"})
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }
	svc.HistoryMax = 3

	mk := func(id string, age time.Duration) {
		t.Helper()
		err := repo.Create(context.Background(), Dictation{
			ID:        id,
			Scope:     "room-1",
			Status:    StatusCompleted,
			CreatedAt: base.Add(-age),
		})
		if err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}
	mk("a", 1*time.Hour)
	mk("b", 2*time.Hour)
	mk("c", 3*time.Hour)
	mk("d", 4*time.Hour)
	mk("expired", 30*time.Hour)

	items, err := svc.List(context.Background(), "room-1", false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("items = %d, want 3 (cap)", len(items))
	}
	if items[0].ID != "a" || items[1].ID != "b" || items[2].ID != "c" {
		t.Fatalf("unexpected order: %+v", items)
	}

	all, err := svc.List(context.Background(), "room-1", true)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("all items = %d, want 5", len(all))
	}

	guest, err := svc.List(context.Background(), "", false)
	if err != nil {
		t.Fatalf("guest list: %v", err)
	}
	if len(guest) != 0 {
		t.Fatalf("guest items = %d, want 0", len(guest))
	}
}

func TestDeleteCascadesToAssets(t *testing.T) {
	svc, repo, store, _ := setupService(t, staticLLM{resp: "ok"})

	d := submitAudio(t, svc, "room-1", "s3cret")

	if err := svc.Delete(context.Background(), "room-1", d.ID, "wrong"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("wrong password err = %v, want ErrUnauthorized", err)
	}
	if err := svc.Delete(context.Background(), "room-1", d.ID, "s3cret"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := repo.GetByID(context.Background(), "room-1", d.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("record still present: %v", err)
	}
	for _, key := range d.AudioKeys {
		if _, err := store.Open(context.Background(), key); !errors.Is(err, object.ErrNotFound) {
			t.Fatalf("asset %s still present: %v", key, err)
		}
	}
}

func TestCleanupExpired(t *testing.T) {
	svc, repo, _, _ := setupService(t, staticLLM{resp: "ok"})
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	fresh := submitAudio(t, svc, "room-1", "")
	stale := submitAudio(t, svc, "room-2", "")
	rec, _ := repo.GetByID(context.Background(), "room-2", stale.ID)
	rec.CreatedAt = base.Add(-48 * time.Hour)
	if err := repo.Overwrite(context.Background(), rec); err != nil {
		t.Fatalf("age record: %v", err)
	}

	removed, err := svc.CleanupExpired(context.Background())
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, err := repo.GetByID(context.Background(), "room-2", stale.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("stale record still present: %v", err)
	}
	if _, err := repo.GetByID(context.Background(), "room-1", fresh.ID); err != nil {
		t.Fatalf("fresh record removed: %v", err)
	}
}
