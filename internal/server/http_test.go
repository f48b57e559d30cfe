package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/slides-explainer/constants"
	"github.com/joseph-ayodele/slides-explainer/internal/common"
	"github.com/joseph-ayodele/slides-explainer/internal/entity"
	"github.com/joseph-ayodele/slides-explainer/internal/export"
	"github.com/joseph-ayodele/slides-explainer/internal/intake"
)

type fakeIntake struct {
	id        uuid.UUID
	err       error
	gotName   string
	gotOwner  string
	gotBody   string
	submitted []intake.SubmitRequest
}

func (f *fakeIntake) Submit(_ context.Context, req intake.SubmitRequest) (uuid.UUID, error) {
	f.submitted = append(f.submitted, req)
	return f.id, f.err
}

func (f *fakeIntake) Upload(_ context.Context, name, owner string, r io.Reader) (uuid.UUID, error) {
	b, _ := io.ReadAll(r)
	f.gotName, f.gotOwner, f.gotBody = name, owner, string(b)
	return f.id, f.err
}

type fakeStatus struct {
	views map[uuid.UUID]*entity.StatusView
	owner map[string]*entity.StatusView
	err   error
}

func (f *fakeStatus) ResolveByID(_ context.Context, id uuid.UUID) (*entity.StatusView, error) {
	if f.err != nil {
		return nil, f.err
	}
	v, ok := f.views[id]
	if !ok {
		return nil, common.NotFoundError("job not found")
	}
	return v, nil
}

func (f *fakeStatus) ResolveByOwner(_ context.Context, owner, source string) (*entity.StatusView, error) {
	v, ok := f.owner[owner+"|"+source]
	if !ok {
		return nil, common.NotFoundError("job not found")
	}
	return v, nil
}

type fakeExporter struct {
	data []byte
	err  error
}

func (f *fakeExporter) ExportJobXLSX(context.Context, uuid.UUID) ([]byte, error) {
	return f.data, f.err
}

func init() {
	gin.SetMode(gin.TestMode)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func completedView(id uuid.UUID) *entity.StatusView {
	text := "E1\nE2"
	done := time.Date(2024, 1, 1, 0, 1, 0, 0, time.UTC)
	return &entity.StatusView{
		JobID:       id,
		State:       constants.JobStateCompleted,
		SourceName:  "hall1_deck.pptx",
		HallName:    "hall1",
		SubmittedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		FinishedAt:  &done,
		Explanation: &text,
	}
}

func newTestRouter(in Intake, st StatusResolver, ex Exporter, cfg HTTPConfig) *gin.Engine {
	return NewRouter(NewJobHandler(in, st, ex, testLogger()), cfg)
}

func multipartUpload(t *testing.T, fields map[string]string, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = fw.Write([]byte(content))
	}
	_ = mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestUploadReturnsUID(t *testing.T) {
	id := uuid.New()
	in := &fakeIntake{id: id}
	r := newTestRouter(in, &fakeStatus{}, &fakeExporter{}, HTTPConfig{})

	body, ctype := multipartUpload(t, map[string]string{"email": "ada@example.com"}, "deck.pptx", "bytes")
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", ctype)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	var resp map[string]string
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["uid"] != id.String() {
		t.Fatalf("uid = %q", resp["uid"])
	}
	if in.gotName != "deck.pptx" || in.gotOwner != "ada@example.com" || in.gotBody != "bytes" {
		t.Fatalf("intake saw %q %q %q", in.gotName, in.gotOwner, in.gotBody)
	}
	if w.Header().Get(requestIDHeader) == "" {
		t.Fatal("missing request id header")
	}
}

func TestUploadWithoutFileIs400(t *testing.T) {
	r := newTestRouter(&fakeIntake{}, &fakeStatus{}, &fakeExporter{}, HTTPConfig{})
	body, ctype := multipartUpload(t, map[string]string{"email": "x"}, "", "")
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", ctype)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestUploadRejectedByIntakeIs400(t *testing.T) {
	in := &fakeIntake{err: common.InvalidInputError("unsupported document type")}
	r := newTestRouter(in, &fakeStatus{}, &fakeExporter{}, HTTPConfig{})
	body, ctype := multipartUpload(t, nil, "notes.txt", "x")
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", ctype)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestStatusEndpoints(t *testing.T) {
	id := uuid.New()
	st := &fakeStatus{
		views: map[uuid.UUID]*entity.StatusView{id: completedView(id)},
		owner: map[string]*entity.StatusView{"ada@example.com|hall1_deck.pptx": completedView(id)},
	}
	r := newTestRouter(&fakeIntake{}, st, &fakeExporter{}, HTTPConfig{})

	cases := []struct {
		name string
		url  string
		code int
	}{
		{"by id query", "/status?jobId=" + id.String(), http.StatusOK},
		{"by path", "/status/" + id.String(), http.StatusOK},
		{"by owner", "/status?ownerIdentifier=ada@example.com&sourceName=hall1_deck.pptx", http.StatusOK},
		{"by email alias", "/status?email=ada@example.com&sourceName=hall1_deck.pptx", http.StatusOK},
		{"unknown id", "/status/" + uuid.New().String(), http.StatusNotFound},
		{"unknown owner", "/status?ownerIdentifier=nobody&sourceName=x.pptx", http.StatusNotFound},
		{"bad id", "/status?jobId=not-a-uuid", http.StatusBadRequest},
		{"bad path id", "/status/not-a-uuid", http.StatusBadRequest},
		{"no params", "/status", http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tc.url, nil))
			if w.Code != tc.code {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tc.code, w.Body.String())
			}
			if tc.code != http.StatusOK {
				return
			}
			var v struct {
				State       string  `json:"state"`
				SourceName  string  `json:"sourceName"`
				Explanation *string `json:"explanation"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if v.State != "completed" || v.Explanation == nil || *v.Explanation != "E1\nE2" {
				t.Fatalf("unexpected body: %s", w.Body.String())
			}
		})
	}
}

func TestStatusStorageErrorIs503(t *testing.T) {
	st := &fakeStatus{err: common.StorageError("db down", fmt.Errorf("boom"))}
	r := newTestRouter(&fakeIntake{}, st, &fakeExporter{}, HTTPConfig{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status/"+uuid.New().String(), nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", w.Code)
	}
	if bytes.Contains(w.Body.Bytes(), []byte("boom")) {
		t.Fatalf("internal error leaked: %s", w.Body.String())
	}
}

func TestExportEndpoint(t *testing.T) {
	id := uuid.New()
	r := newTestRouter(&fakeIntake{}, &fakeStatus{}, &fakeExporter{data: []byte("xlsx")}, HTTPConfig{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status/"+id.String()+"/export.xlsx", nil))
	if w.Code != http.StatusOK || w.Body.String() != "xlsx" || w.Header().Get("Content-Type") != xlsxMIME {
		t.Fatalf("status = %d type=%q", w.Code, w.Header().Get("Content-Type"))
	}

	r = newTestRouter(&fakeIntake{}, &fakeStatus{}, &fakeExporter{err: fmt.Errorf("%w: pending", export.ErrNotCompleted)}, HTTPConfig{})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status/"+id.String()+"/export.xlsx", nil))
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
}

func TestUploadRateLimit(t *testing.T) {
	in := &fakeIntake{id: uuid.New()}
	r := newTestRouter(in, &fakeStatus{}, &fakeExporter{}, HTTPConfig{UploadRPS: 0.001})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		body, ctype := multipartUpload(t, nil, "deck.pptx", "x")
		req := httptest.NewRequest(http.MethodPost, "/upload", body)
		req.Header.Set("Content-Type", ctype)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	// burst of 2, then throttled
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("codes = %v", codes)
	}
}
