package mailer

import (
	"context"
	"fmt"
	"strings"

	"github.com/librevious/deliverability-checker/internal/emaillog"
	"github.com/librevious/deliverability-checker/internal/pkg/logger"
	"github.com/librevious/deliverability-checker/internal/tracking"
)

// LogStore is the slice of the email log the send pipeline needs.
type LogStore interface {
	RecordAttempt(ctx context.Context, l *emaillog.EmailLog) (int64, error)
	RecordFailure(ctx context.Context, id int64, message string) error
}

// SendService runs the full send pipeline: log the attempt, instrument
// the body, deliver, and record the failure against the same log entry
// if delivery fails. The log ID is threaded explicitly from the attempt
// record to the failure record, so concurrent sends never cross wires.
type SendService struct {
	mailer   Mailer
	store    LogStore
	rewriter *tracking.Rewriter
}

// NewSendService wires the pipeline.
func NewSendService(mailer Mailer, store LogStore, rewriter *tracking.Rewriter) *SendService {
	return &SendService{mailer: mailer, store: store, rewriter: rewriter}
}

// SendResult reports what happened to a send.
type SendResult struct {
	LogID     int64  `json:"log_id"`
	MessageID string `json:"message_id,omitempty"`
	Sent      bool   `json:"sent"`
	Error     string `json:"error,omitempty"`
}

// Send executes the pipeline for one message. HTML messages get the
// tracking pixel and wrapped links; plain text goes out untouched.
// A delivery failure is recorded and returned; a logging failure aborts
// before any delivery is attempted, because an untracked send is worse
// than no send.
func (s *SendService) Send(ctx context.Context, msg *Message) (*SendResult, error) {
	recipients := strings.Join(msg.To, ", ")

	logID, err := s.store.RecordAttempt(ctx, &emaillog.EmailLog{
		Recipients:  recipients,
		Subject:     msg.Subject,
		Body:        msg.Body,
		Headers:     strings.Join(msg.Headers, "\n"),
		Attachments: strings.Join(msg.Attachments, "\n"),
	})
	if err != nil {
		return nil, fmt.Errorf("record attempt: %w", err)
	}

	out := *msg
	if tracking.IsHTML(msg.Headers) && s.rewriter != nil {
		out.Body = s.rewriter.InjectTracking(msg.Body, logID)
	}

	messageID, sendErr := s.mailer.Send(ctx, &out)
	if sendErr != nil {
		logger.Error("email send failed", "log_id", logID, "recipients", recipients, "error", sendErr.Error())
		if recErr := s.store.RecordFailure(ctx, logID, sendErr.Error()); recErr != nil {
			logger.Error("record failure failed", "log_id", logID, "error", recErr.Error())
		}
		return &SendResult{LogID: logID, Sent: false, Error: sendErr.Error()}, nil
	}

	logger.Info("email sent", "log_id", logID, "recipients", recipients, "message_id", messageID)
	return &SendResult{LogID: logID, MessageID: messageID, Sent: true}, nil
}
