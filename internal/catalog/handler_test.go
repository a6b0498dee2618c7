package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"testing"

	"github.com/asarvarbek/tgshop-backend/internal/domain"
	"github.com/asarvarbek/tgshop-backend/internal/image"
	"github.com/asarvarbek/tgshop-backend/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testStore(t *testing.T) *store.Store {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(store.Paths{
		DataDir: dir,
		Menu:    filepath.Join(dir, "menu.json"),
		Orders:  filepath.Join(dir, "orders.json"),
		Uploads: filepath.Join(dir, "uploads.json"),
	}, testLogger())
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	return st
}

type fakeMediaHost struct {
	url    string
	fileID string
	err    error
	calls  int
}

func (f *fakeMediaHost) UploadImage(_ context.Context, data []byte, filename string) (string, string, error) {
	f.calls++
	if f.err != nil {
		return "", "", f.err
	}
	return f.url, f.fileID, nil
}

func newHandler(st *store.Store, media MediaHost, client *http.Client) *Handler {
	return NewHandler(st, media, image.NewURLChecker(client), 5<<20, testLogger())
}

// productForm builds a multipart body with the given fields and an optional
// image part carrying an explicit content type.
func productForm(t *testing.T, fields map[string]string, imageName, imageType string, imageData []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	for key, value := range fields {
		if err := w.WriteField(key, value); err != nil {
			t.Fatal(err)
		}
	}

	if imageName != "" {
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, imageName))
		header.Set("Content-Type", imageType)
		part, err := w.CreatePart(header)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := part.Write(imageData); err != nil {
			t.Fatal(err)
		}
	}

	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return body, w.FormDataContentType()
}

func TestHandler_HandleCreate(t *testing.T) {
	t.Run("creates product without image using placeholder", func(t *testing.T) {
		st := testStore(t)
		h := newHandler(st, &fakeMediaHost{}, http.DefaultClient)

		body, contentType := productForm(t, map[string]string{
			"name": "Tea", "description": "Green tea", "price": "2.5",
		}, "", "", nil)
		req := httptest.NewRequest(http.MethodPost, "/admin/products", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()

		h.HandleCreate(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		items := st.Menu.Load()
		if len(items) != 1 {
			t.Fatalf("expected one product, got %d", len(items))
		}
		got := items[0]
		if got.ID != 1 || got.Name != "Tea" || got.Description != "Green tea" || got.Price != 2.5 {
			t.Errorf("unexpected product: %+v", got)
		}
		if got.Image != image.DefaultImageURL {
			t.Errorf("expected placeholder image, got %s", got.Image)
		}
	})

	t.Run("relays image and records upload", func(t *testing.T) {
		st := testStore(t)
		media := &fakeMediaHost{url: "https://files.example/photo.jpg", fileID: "file-1"}
		h := newHandler(st, media, http.DefaultClient)

		body, contentType := productForm(t, map[string]string{
			"name": "Tea", "description": "Green tea", "price": "2.5",
		}, "tea.png", "image/png", bytes.Repeat([]byte{1}, 1024))
		req := httptest.NewRequest(http.MethodPost, "/admin/products", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()

		h.HandleCreate(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if media.calls != 1 {
			t.Errorf("expected one relay call, got %d", media.calls)
		}

		items := st.Menu.Load()
		if len(items) != 1 || items[0].Image != media.url {
			t.Errorf("expected hosted image URL, got %+v", items)
		}

		uploads := st.Uploads.Load()
		if len(uploads) != 1 {
			t.Fatalf("expected upload record, got %d", len(uploads))
		}
		if uploads[0].ProductID != 1 || uploads[0].FileID != "file-1" || uploads[0].URL != media.url {
			t.Errorf("unexpected upload record: %+v", uploads[0])
		}
	})

	t.Run("falls back to placeholder on relay failure", func(t *testing.T) {
		st := testStore(t)
		media := &fakeMediaHost{err: errors.New("telegram down")}
		h := newHandler(st, media, http.DefaultClient)

		body, contentType := productForm(t, map[string]string{
			"name": "Tea", "description": "Green tea", "price": "2.5",
		}, "tea.png", "image/png", []byte{1, 2, 3})
		req := httptest.NewRequest(http.MethodPost, "/admin/products", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()

		h.HandleCreate(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 despite relay failure, got %d", rec.Code)
		}
		items := st.Menu.Load()
		if len(items) != 1 || items[0].Image != image.DefaultImageURL {
			t.Errorf("expected placeholder fallback, got %+v", items)
		}
	})

	t.Run("skips oversized image without failing", func(t *testing.T) {
		st := testStore(t)
		media := &fakeMediaHost{url: "https://files.example/x", fileID: "f"}
		h := newHandler(st, media, http.DefaultClient)

		body, contentType := productForm(t, map[string]string{
			"name": "Tea", "description": "Green tea", "price": "2.5",
		}, "big.png", "image/png", bytes.Repeat([]byte{1}, 6<<20))
		req := httptest.NewRequest(http.MethodPost, "/admin/products", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()

		h.HandleCreate(rec, req)

		if media.calls != 0 {
			t.Errorf("oversized image must not reach the relay")
		}
		items := st.Menu.Load()
		if len(items) != 1 || items[0].Image != image.DefaultImageURL {
			t.Errorf("expected placeholder, got %+v", items)
		}
	})

	t.Run("rejects missing fields", func(t *testing.T) {
		st := testStore(t)
		h := newHandler(st, &fakeMediaHost{}, http.DefaultClient)

		body, contentType := productForm(t, map[string]string{"name": "Tea"}, "", "", nil)
		req := httptest.NewRequest(http.MethodPost, "/admin/products", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()

		h.HandleCreate(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		if len(st.Menu.Load()) != 0 {
			t.Error("nothing should be persisted on validation failure")
		}
	})

	t.Run("rejects non-numeric price before any persistence", func(t *testing.T) {
		st := testStore(t)
		media := &fakeMediaHost{}
		h := newHandler(st, media, http.DefaultClient)

		body, contentType := productForm(t, map[string]string{
			"name": "Tea", "description": "Green tea", "price": "abc",
		}, "tea.png", "image/png", []byte{1})
		req := httptest.NewRequest(http.MethodPost, "/admin/products", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()

		h.HandleCreate(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		if media.calls != 0 {
			t.Error("relay must not be called for invalid input")
		}
		if len(st.Menu.Load()) != 0 {
			t.Error("nothing should be persisted")
		}
	})

	t.Run("assigns increasing ids", func(t *testing.T) {
		st := testStore(t)
		h := newHandler(st, &fakeMediaHost{}, http.DefaultClient)

		for i := 0; i < 3; i++ {
			body, contentType := productForm(t, map[string]string{
				"name": "Tea", "description": "Green tea", "price": "2.5",
			}, "", "", nil)
			req := httptest.NewRequest(http.MethodPost, "/admin/products", body)
			req.Header.Set("Content-Type", contentType)
			h.HandleCreate(httptest.NewRecorder(), req)
		}

		items := st.Menu.Load()
		if len(items) != 3 {
			t.Fatalf("expected three products, got %d", len(items))
		}
		for i, item := range items {
			if item.ID != i+1 {
				t.Errorf("expected id %d, got %d", i+1, item.ID)
			}
		}
	})
}

func TestHandler_HandleUpdate(t *testing.T) {
	seed := func(t *testing.T, st *store.Store, image string) {
		t.Helper()
		if !st.Menu.Save([]domain.Product{{ID: 1, Name: "Tea", Description: "Green tea", Price: 2.5, Image: image}}) {
			t.Fatal("failed to seed menu")
		}
	}

	updateReq := func(t *testing.T, fields map[string]string, imageName, imageType string, imageData []byte) *http.Request {
		t.Helper()
		body, contentType := productForm(t, fields, imageName, imageType, imageData)
		req := httptest.NewRequest(http.MethodPut, "/admin/products/1", body)
		req.Header.Set("Content-Type", contentType)
		req.SetPathValue("id", "1")
		return req
	}

	t.Run("replaces fields and revalidates existing image url", func(t *testing.T) {
		imageServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "image/jpeg")
		}))
		defer imageServer.Close()

		st := testStore(t)
		seed(t, st, imageServer.URL)
		h := newHandler(st, &fakeMediaHost{}, imageServer.Client())

		req := updateReq(t, map[string]string{
			"name": "Black tea", "description": "Strong", "price": "3", "imageUrl": imageServer.URL,
		}, "", "", nil)
		rec := httptest.NewRecorder()

		h.HandleUpdate(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		got := st.Menu.Load()[0]
		if got.Name != "Black tea" || got.Price != 3 || got.Image != imageServer.URL {
			t.Errorf("unexpected product: %+v", got)
		}
	})

	t.Run("replaces dead image url with placeholder", func(t *testing.T) {
		deadServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
		}))
		defer deadServer.Close()

		st := testStore(t)
		seed(t, st, deadServer.URL)
		h := newHandler(st, &fakeMediaHost{}, deadServer.Client())

		req := updateReq(t, map[string]string{
			"name": "Tea", "description": "Green tea", "price": "2.5", "imageUrl": deadServer.URL,
		}, "", "", nil)
		rec := httptest.NewRecorder()

		h.HandleUpdate(rec, req)

		if got := st.Menu.Load()[0]; got.Image != image.DefaultImageURL {
			t.Errorf("expected placeholder for dead URL, got %s", got.Image)
		}
	})

	t.Run("new image replaces old one", func(t *testing.T) {
		st := testStore(t)
		seed(t, st, "https://old.example/img.jpg")
		media := &fakeMediaHost{url: "https://files.example/new.jpg", fileID: "file-2"}
		h := newHandler(st, media, http.DefaultClient)

		req := updateReq(t, map[string]string{
			"name": "Tea", "description": "Green tea", "price": "2.5",
		}, "new.png", "image/png", []byte{1, 2})
		rec := httptest.NewRecorder()

		h.HandleUpdate(rec, req)

		if got := st.Menu.Load()[0]; got.Image != media.url {
			t.Errorf("expected new hosted image, got %s", got.Image)
		}
		if uploads := st.Uploads.Load(); len(uploads) != 1 || uploads[0].ProductID != 1 {
			t.Errorf("expected upload record for product 1, got %+v", uploads)
		}
	})

	t.Run("keeps previous image when relay fails", func(t *testing.T) {
		st := testStore(t)
		seed(t, st, "https://old.example/img.jpg")
		h := newHandler(st, &fakeMediaHost{err: errors.New("telegram down")}, http.DefaultClient)

		req := updateReq(t, map[string]string{
			"name": "Tea", "description": "Green tea", "price": "2.5",
		}, "new.png", "image/png", []byte{1, 2})
		rec := httptest.NewRecorder()

		h.HandleUpdate(rec, req)

		if got := st.Menu.Load()[0]; got.Image != "https://old.example/img.jpg" {
			t.Errorf("expected previous image to survive relay failure, got %s", got.Image)
		}
	})

	t.Run("returns 404 for unknown product", func(t *testing.T) {
		st := testStore(t)
		h := newHandler(st, &fakeMediaHost{}, http.DefaultClient)

		body, contentType := productForm(t, map[string]string{
			"name": "Tea", "description": "Green tea", "price": "2.5",
		}, "", "", nil)
		req := httptest.NewRequest(http.MethodPut, "/admin/products/99", body)
		req.Header.Set("Content-Type", contentType)
		req.SetPathValue("id", "99")
		rec := httptest.NewRecorder()

		h.HandleUpdate(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})
}

func TestHandler_HandleDelete(t *testing.T) {
	t.Run("removes product", func(t *testing.T) {
		st := testStore(t)
		st.Menu.Save([]domain.Product{
			{ID: 1, Name: "Tea"},
			{ID: 2, Name: "Coffee"},
		})
		h := newHandler(st, &fakeMediaHost{}, http.DefaultClient)

		req := httptest.NewRequest(http.MethodDelete, "/admin/products/1", nil)
		req.SetPathValue("id", "1")
		rec := httptest.NewRecorder()

		h.HandleDelete(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		items := st.Menu.Load()
		if len(items) != 1 || items[0].ID != 2 {
			t.Errorf("expected only product 2 to remain, got %+v", items)
		}
	})

	t.Run("returns 404 for unknown product", func(t *testing.T) {
		st := testStore(t)
		h := newHandler(st, &fakeMediaHost{}, http.DefaultClient)

		req := httptest.NewRequest(http.MethodDelete, "/admin/products/9", nil)
		req.SetPathValue("id", "9")
		rec := httptest.NewRecorder()

		h.HandleDelete(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("id is never reused after deletion", func(t *testing.T) {
		st := testStore(t)
		st.Menu.Save([]domain.Product{{ID: 1, Name: "Tea"}, {ID: 2, Name: "Coffee"}})
		h := newHandler(st, &fakeMediaHost{}, http.DefaultClient)

		req := httptest.NewRequest(http.MethodDelete, "/admin/products/1", nil)
		req.SetPathValue("id", "1")
		h.HandleDelete(httptest.NewRecorder(), req)

		body, contentType := productForm(t, map[string]string{
			"name": "Juice", "description": "Orange", "price": "1",
		}, "", "", nil)
		createReq := httptest.NewRequest(http.MethodPost, "/admin/products", body)
		createReq.Header.Set("Content-Type", contentType)
		h.HandleCreate(httptest.NewRecorder(), createReq)

		items := st.Menu.Load()
		if len(items) != 2 || items[1].ID != 3 {
			t.Errorf("expected new product to get id 3, got %+v", items)
		}
	})
}

func TestHandler_HandleList(t *testing.T) {
	st := testStore(t)
	st.Menu.Save([]domain.Product{{ID: 1, Name: "Tea", Price: 2.5, Image: "x"}})
	h := newHandler(st, &fakeMediaHost{}, http.DefaultClient)

	req := httptest.NewRequest(http.MethodGet, "/menu", nil)
	rec := httptest.NewRecorder()

	h.HandleList(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var items []domain.Product
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(items) != 1 || items[0].Name != "Tea" {
		t.Errorf("unexpected list: %+v", items)
	}

	// A second list without mutation returns the same sequence.
	rec2 := httptest.NewRecorder()
	h.HandleList(rec2, httptest.NewRequest(http.MethodGet, "/menu", nil))
	if rec.Body.String() != rec2.Body.String() {
		t.Error("expected identical responses for repeated list")
	}
}
