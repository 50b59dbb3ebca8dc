package config

import "testing"

func TestLoadReadsQueueURL(t *testing.T) {
	t.Setenv("SB_SQS_QUEUE_URL", " https://sqs.ap-northeast-1.amazonaws.com/123/scribe-jobs ")

	cfg := Load()
	if cfg.SQSQueueURL != "https://sqs.ap-northeast-1.amazonaws.com/123/scribe-jobs" {
		t.Fatalf("SQSQueueURL = %q", cfg.SQSQueueURL)
	}
}

func TestLoadQueueURLDefaultsEmpty(t *testing.T) {
	t.Setenv("SB_SQS_QUEUE_URL", "")

	cfg := Load()
	if cfg.SQSQueueURL != "" {
		t.Fatalf("SQSQueueURL = %q, want empty", cfg.SQSQueueURL)
	}
}
