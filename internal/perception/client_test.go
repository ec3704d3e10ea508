package perception

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fpang/portrait-studio/internal/region"
)

func TestHTTPClientEstimateFace(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/v1/face" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("unexpected auth header: %q", got)
		}
		var req imageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.ImageRef != "s3://bucket/in.jpg" {
			t.Errorf("unexpected imageRef: %s", req.ImageRef)
		}
		json.NewEncoder(w).Encode(FaceEstimate{
			Landmarks:  []Point2D{{X: 1, Y: 2}},
			Confidence: 0.93,
			Box:        BoundingBox{Width: 10, Height: 20},
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL+"/", "secret", time.Second)
	face, err := client.EstimateFace(context.Background(), "s3://bucket/in.jpg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if face.Confidence != 0.93 {
		t.Errorf("expected confidence 0.93, got %v", face.Confidence)
	}
	if len(face.Landmarks) != 1 {
		t.Errorf("expected 1 landmark, got %d", len(face.Landmarks))
	}
}

func TestHTTPClientSegmentSendsFaceBox(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req imageRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.FaceBox == nil || req.FaceBox.Width != 300 {
			t.Errorf("face box not forwarded: %+v", req.FaceBox)
		}
		json.NewEncoder(w).Encode(Segmentation{Masks: map[region.Region]string{region.Hair: "mask://hair"}})
	}))
	defer server.Close()

	seg, err := NewHTTPClient(server.URL, "", 0).Segment(context.Background(), "in.jpg", BoundingBox{Width: 300, Height: 400})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seg.MaskRef(region.Hair) != "mask://hair" {
		t.Errorf("unexpected hair mask: %q", seg.MaskRef(region.Hair))
	}
}

func TestHTTPClientDecodesTypedError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(errorBody{
			Module:   "face",
			Code:     "no_face",
			Warnings: []string{"subject turned away"},
			Message:  "no face found",
		})
	}))
	defer server.Close()

	_, err := NewHTTPClient(server.URL, "", 0).EstimateFace(context.Background(), "in.jpg")
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsFatal(err) {
		t.Errorf("no_face should be fatal: %v", err)
	}
	pe, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	if len(pe.Warnings) != 1 || pe.Warnings[0] != "subject turned away" {
		t.Errorf("unexpected warnings: %v", pe.Warnings)
	}
}

func TestHTTPClientUntypedFailureIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := NewHTTPClient(server.URL, "", 0).EstimateBody(context.Background(), "in.jpg")
	if CodeOf(err) != CodeUnavailable {
		t.Errorf("expected unavailable, got %q (%v)", CodeOf(err), err)
	}
	if IsFatal(err) {
		t.Error("transport failures must not be fatal")
	}
}
