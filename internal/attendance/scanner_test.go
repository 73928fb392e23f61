package attendance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type fakeResolver struct {
	err error
}

func (f *fakeResolver) PresignGet(ctx context.Context, key string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "https://media.example.com/" + key, nil
}

func scanServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/scan" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}))
}

func TestScanResolvesPhotoURLs(t *testing.T) {
	lessonID := uuid.New()
	studentID := uuid.New()
	srv := scanServer(t, fmt.Sprintf(
		`{"matches":[{"student_id":%q,"confidence":0.91,"photo_key":"attendance/%s/capture.jpg"}]}`,
		studentID, lessonID))
	defer srv.Close()

	s := NewScanner(srv.URL, &fakeResolver{}, zap.NewNop())
	records, err := s.Scan(context.Background(), lessonID)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	rec := records[0]
	if rec.StudentID != studentID || rec.LessonID != lessonID {
		t.Errorf("record ids = %s/%s", rec.LessonID, rec.StudentID)
	}
	wantKey := fmt.Sprintf("attendance/%s/capture.jpg", lessonID)
	if rec.PhotoKey != wantKey {
		t.Errorf("PhotoKey = %q, want %q", rec.PhotoKey, wantKey)
	}
	if want := "https://media.example.com/" + wantKey; rec.PhotoURL != want {
		t.Errorf("PhotoURL = %q, want %q", rec.PhotoURL, want)
	}
}

func TestScanWithoutResolverKeepsKeyOnly(t *testing.T) {
	lessonID := uuid.New()
	srv := scanServer(t, fmt.Sprintf(
		`{"matches":[{"student_id":%q,"confidence":0.77,"photo_key":"attendance/raw.jpg"}]}`,
		uuid.New()))
	defer srv.Close()

	s := NewScanner(srv.URL, nil, zap.NewNop())
	records, err := s.Scan(context.Background(), lessonID)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if records[0].PhotoURL != "" {
		t.Errorf("PhotoURL = %q, want empty without a resolver", records[0].PhotoURL)
	}
	if records[0].PhotoKey != "attendance/raw.jpg" {
		t.Errorf("PhotoKey = %q", records[0].PhotoKey)
	}
}

func TestScanSurvivesResolverFailure(t *testing.T) {
	lessonID := uuid.New()
	srv := scanServer(t, fmt.Sprintf(
		`{"matches":[{"student_id":%q,"confidence":0.84,"photo_key":"attendance/raw.jpg"}]}`,
		uuid.New()))
	defer srv.Close()

	s := NewScanner(srv.URL, &fakeResolver{err: errors.New("presign: credentials expired")}, zap.NewNop())
	records, err := s.Scan(context.Background(), lessonID)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if records[0].PhotoURL != "" {
		t.Errorf("PhotoURL = %q, want empty on resolver failure", records[0].PhotoURL)
	}
	if records[0].PhotoKey != "attendance/raw.jpg" {
		t.Errorf("PhotoKey = %q, key must survive the failure", records[0].PhotoKey)
	}
}

func TestScanRejectsNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	s := NewScanner(srv.URL, nil, zap.NewNop())
	if _, err := s.Scan(context.Background(), uuid.New()); err == nil {
		t.Fatal("Scan returned nil error for a 502 response")
	}
}
