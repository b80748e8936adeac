package ollama

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestDescribeImage(t *testing.T) {
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost || req.URL.Path != "/api/generate" {
			http.NotFound(w, req)
			return
		}
		if err := json.NewDecoder(req.Body).Decode(&got); err != nil {
			t.Errorf("Unexpected error decoding request %s", err)
		}
		w.Write([]byte(`{"response":"a red bicycle leaning on a wall\n","done":true}`))
	}))
	defer srv.Close()

	o := Init("llava", srv.URL, srv.Client())
	caption, err := o.DescribeImage(t.Context(), []byte{0xff, 0xd8}, 50)
	if err != nil {
		t.Fatalf("Unexpected error %s", err)
	}
	if expected, actual := "a red bicycle leaning on a wall", caption; expected != actual {
		t.Errorf("Expected %q, got %q", expected, actual)
	}
	if expected, actual := "llava", got.Model; expected != actual {
		t.Errorf("Expected model %q, got %q", expected, actual)
	}
	if got.Stream {
		t.Errorf("Expected a non-streaming request")
	}
	if expected, actual := float64(50), got.Options["num_predict"]; expected != actual {
		t.Errorf("Expected num_predict %v, got %v", expected, actual)
	}
	if len(got.Images) != 1 || got.Images[0] != "/9g=" {
		t.Errorf("Expected one base64 image, got %v", got.Images)
	}
}

func TestDescribeImageError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"model \"llava\" not found, try pulling it first"}`))
	}))
	defer srv.Close()

	o := Init("llava", srv.URL, srv.Client())
	_, err := o.DescribeImage(t.Context(), []byte{0xff, 0xd8}, 50)
	if err == nil || !strings.Contains(err.Error(), "try pulling it first") {
		t.Errorf("Expected the ollama error message, got %v", err)
	}
}

func TestDescribeImageNonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.Error(w, "<html>bad gateway</html>", http.StatusBadGateway)
	}))
	defer srv.Close()

	o := Init("llava", srv.URL, srv.Client())
	_, err := o.DescribeImage(t.Context(), []byte{0xff, 0xd8}, 50)
	if err == nil || !strings.Contains(err.Error(), "502 Bad Gateway") {
		t.Errorf("Expected the HTTP status in the error, got %v", err)
	}
}

func TestIsHealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte("Ollama is running"))
	}))
	defer srv.Close()

	if !Init("llava", srv.URL, srv.Client()).IsHealthy(t.Context()) {
		t.Errorf("Expected healthy server")
	}
}
