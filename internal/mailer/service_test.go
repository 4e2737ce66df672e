package mailer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/librevious/deliverability-checker/internal/emaillog"
	"github.com/librevious/deliverability-checker/internal/tracking"
)

type fakeMailer struct {
	sent      []*Message
	messageID string
	err       error
}

func (f *fakeMailer) Send(_ context.Context, msg *Message) (string, error) {
	f.sent = append(f.sent, msg)
	if f.err != nil {
		return "", f.err
	}
	return f.messageID, nil
}

type fakeLogStore struct {
	nextID     int64
	attemptErr error
	failures   map[int64]string
}

func newFakeLogStore(nextID int64) *fakeLogStore {
	return &fakeLogStore{nextID: nextID, failures: map[int64]string{}}
}

func (f *fakeLogStore) RecordAttempt(_ context.Context, l *emaillog.EmailLog) (int64, error) {
	if f.attemptErr != nil {
		return 0, f.attemptErr
	}
	l.ID = f.nextID
	return f.nextID, nil
}

func (f *fakeLogStore) RecordFailure(_ context.Context, id int64, message string) error {
	f.failures[id] = message
	return nil
}

func testRewriter() *tracking.Rewriter {
	return tracking.NewRewriter(tracking.NewSigner("test-secret"), "https://tracker.example.com")
}

func TestSendServiceSuccess(t *testing.T) {
	fm := &fakeMailer{messageID: "msg-1"}
	store := newFakeLogStore(42)
	svc := NewSendService(fm, store, testRewriter())

	res, err := svc.Send(context.Background(), &Message{
		To:      []string{"user@example.com"},
		Subject: "Hello",
		Body:    "plain text",
	})
	require.NoError(t, err)

	assert.True(t, res.Sent)
	assert.Equal(t, int64(42), res.LogID)
	assert.Equal(t, "msg-1", res.MessageID)
	assert.Empty(t, store.failures)
}

func TestSendServiceInjectsTrackingForHTML(t *testing.T) {
	fm := &fakeMailer{messageID: "msg-1"}
	svc := NewSendService(fm, newFakeLogStore(7), testRewriter())

	_, err := svc.Send(context.Background(), &Message{
		To:      []string{"user@example.com"},
		Subject: "Hello",
		Body:    `<p><a href="https://example.com">link</a></p>`,
		Headers: []string{"Content-Type: text/html; charset=UTF-8"},
	})
	require.NoError(t, err)

	require.Len(t, fm.sent, 1)
	assert.Contains(t, fm.sent[0].Body, "edc_track=open")
	assert.Contains(t, fm.sent[0].Body, "edc_track=click")
	assert.Contains(t, fm.sent[0].Body, "id=7")
}

func TestSendServicePlainTextUntouched(t *testing.T) {
	fm := &fakeMailer{messageID: "msg-1"}
	svc := NewSendService(fm, newFakeLogStore(7), testRewriter())

	_, err := svc.Send(context.Background(), &Message{
		To:   []string{"user@example.com"},
		Body: "just text with https://example.com inside",
	})
	require.NoError(t, err)

	require.Len(t, fm.sent, 1)
	assert.Equal(t, "just text with https://example.com inside", fm.sent[0].Body)
}

func TestSendServiceRecordsFailureAgainstSameLog(t *testing.T) {
	fm := &fakeMailer{err: errors.New("smtp: connection refused")}
	store := newFakeLogStore(42)
	svc := NewSendService(fm, store, testRewriter())

	res, err := svc.Send(context.Background(), &Message{
		To:   []string{"user@example.com"},
		Body: "hi",
	})
	require.NoError(t, err)

	assert.False(t, res.Sent)
	assert.Equal(t, int64(42), res.LogID)
	assert.Contains(t, res.Error, "connection refused")
	assert.Equal(t, "smtp: connection refused", store.failures[42])
}

func TestSendServiceAbortsWhenAttemptLoggingFails(t *testing.T) {
	fm := &fakeMailer{messageID: "msg-1"}
	store := newFakeLogStore(0)
	store.attemptErr = errors.New("db down")
	svc := NewSendService(fm, store, testRewriter())

	_, err := svc.Send(context.Background(), &Message{To: []string{"user@example.com"}})
	assert.Error(t, err)
	assert.Empty(t, fm.sent, "nothing should be delivered when the attempt cannot be logged")
}
