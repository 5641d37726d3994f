// Package transcript exports a meeting's chat + Q&A history to object
// storage on end-meeting, grounded on the teacher's internal/worker
// recording-upload path (download-then-stream-to-S3) with the "download"
// half replaced by an in-process JSON assembly, since the transcript
// already lives in Postgres rather than behind a provider URL.
package transcript

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/gridmeet/sfu-backend/internal/chat"
	"github.com/gridmeet/sfu-backend/internal/models"
	"github.com/gridmeet/sfu-backend/internal/question"
	"github.com/gridmeet/sfu-backend/pkg/storage"
)

// Document is the exported shape written to transcripts/<meetingId>.json.
type Document struct {
	MeetingID   uuid.UUID             `json:"meeting_id"`
	ExportedAt  time.Time             `json:"exported_at"`
	Chat        []*models.ChatMessage `json:"chat"`
	Questions   []*models.Question    `json:"questions"`
}

// Exporter assembles and uploads the transcript document.
type Exporter struct {
	chatRepo     *chat.Repository
	questionRepo *question.Repository
	s3           *storage.S3
}

func NewExporter(chatRepo *chat.Repository, questionRepo *question.Repository, s3 *storage.S3) *Exporter {
	return &Exporter{chatRepo: chatRepo, questionRepo: questionRepo, s3: s3}
}

// Export builds the document and streams it straight into S3.Upload without
// materializing more than one JSON buffer — the teacher's no-double-buffer
// habit, scaled down from a video stream to a small JSON object.
func (e *Exporter) Export(ctx context.Context, meetingID uuid.UUID) error {
	chatLog, err := e.chatRepo.ListByMeeting(ctx, meetingID)
	if err != nil {
		return err
	}
	questions, err := e.questionRepo.ListByMeeting(ctx, meetingID)
	if err != nil {
		return err
	}

	doc := Document{MeetingID: meetingID, ExportedAt: time.Now(), Chat: chatLog, Questions: questions}
	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	key := storage.TranscriptKey(meetingID.String())
	return e.s3.Upload(ctx, key, "application/json", bytes.NewReader(body), int64(len(body)))
}

// PresignURL returns a time-limited download link for an already-exported
// transcript, mirroring the teacher's GenerateDownloadURL handler shape.
func (e *Exporter) PresignURL(ctx context.Context, meetingID uuid.UUID) (string, error) {
	return e.s3.PresignDownloadURL(ctx, storage.TranscriptKey(meetingID.String()))
}
