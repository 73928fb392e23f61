package session

import "github.com/google/uuid"

// Server -> client event names.
const (
	EventLessonState           = "lesson_state"
	EventAttendanceStarted     = "attendance_started"
	EventAttendanceUpdate      = "attendance_update"
	EventAttendanceEnded       = "attendance_ended"
	EventPresentationStarted   = "presentation_started"
	EventSlideChanged          = "slide_changed"
	EventPresentationPaused    = "presentation_paused"
	EventPresentationResumed   = "presentation_resumed"
	EventQuestionReceived      = "question_received"
	EventQuestionAnswered      = "question_answered"
	EventPresentationCompleted = "presentation_completed"
	EventQAModeStarted         = "qa_mode_started"
	EventLessonEnded           = "lesson_ended"
	EventError                 = "error"
)

// AttendanceUpdatePayload is broadcast for each student matched by a scan.
type AttendanceUpdatePayload struct {
	StudentID  uuid.UUID `json:"student_id"`
	Confidence float64   `json:"confidence"`
	Photo      string    `json:"photo,omitempty"`
}

// PresentationStartedPayload is broadcast when the presentation begins.
type PresentationStartedPayload struct {
	TotalSlides int `json:"total_slides"`
	Slide       int `json:"slide"`
}

// SlideChangedPayload is broadcast when the current slide changes.
// Content fields are empty when the slide store could not serve them.
type SlideChangedPayload struct {
	SlideNumber int    `json:"slide_number"`
	Text        string `json:"text,omitempty"`
	AudioRef    string `json:"audio_ref,omitempty"`
	ImageRef    string `json:"image_ref,omitempty"`
}

// QuestionReceivedPayload is broadcast when a question enters the pending slot.
type QuestionReceivedPayload struct {
	Question string `json:"question"`
}

// QuestionAnsweredPayload is broadcast when answer generation finishes.
// Found is false when the answer service failed, timed out or had nothing.
type QuestionAnsweredPayload struct {
	Question   string `json:"question"`
	AnswerText string `json:"answer_text"`
	AudioRef   string `json:"audio_ref,omitempty"`
	Found      bool   `json:"found"`
}

// ErrorPayload is sent to the issuing connection only.
type ErrorPayload struct {
	Message string `json:"message"`
}
