package server

import (
	"bytes"
	"context"
	"encoding/json"
	"iter"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shouni/gemini-image-studio/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeGenerator は受け取ったリクエストを記録し、固定のスナップショット列を返します。
type fakeGenerator struct {
	got       domain.GenerationRequest
	refExists []bool
	snapshots []domain.Snapshot
}

func (f *fakeGenerator) Generate(ctx context.Context, req domain.GenerationRequest) iter.Seq[domain.Snapshot] {
	return func(yield func(domain.Snapshot) bool) {
		f.got = req
		for _, p := range req.ReferenceImages {
			_, err := os.Stat(p)
			f.refExists = append(f.refExists, err == nil)
		}
		for _, s := range f.snapshots {
			if !yield(s) {
				return
			}
		}
	}
}

func newTestServer(t *testing.T, gen Generator, opts Options) *Server {
	t.Helper()
	if opts.OutputDir == "" {
		opts.OutputDir = t.TempDir()
	}
	if opts.UploadDir == "" {
		opts.UploadDir = t.TempDir()
	}
	s, err := New(gen, opts, zap.NewNop())
	require.NoError(t, err)
	return s
}

func multipartBody(t *testing.T, fields map[string]string, files map[string][]byte, order []string) (*bytes.Buffer, string) {
	t.Helper()
	body := new(bytes.Buffer)
	w := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, name := range order {
		fw, err := w.CreateFormFile("images", name)
		require.NoError(t, err)
		_, err = fw.Write(files[name])
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func parseEvents(t *testing.T, body string) []snapshotPayload {
	t.Helper()
	var out []snapshotPayload
	for _, line := range strings.Split(body, "\n") {
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		var p snapshotPayload
		require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(data)), &p))
		out = append(out, p)
	}
	return out
}

func TestNew(t *testing.T) {
	_, err := New(nil, Options{}, nil)
	assert.Error(t, err)
}

func TestHandleGenerate(t *testing.T) {
	t.Run("フォームを正規化してSSEでスナップショットを返す", func(t *testing.T) {
		gen := &fakeGenerator{snapshots: []domain.Snapshot{
			{RunID: "run-1", Phase: domain.PhaseValidating, Status: "⏳ 初期化中...", Log: []domain.ProgressEvent{{Message: "start"}}},
			{RunID: "run-1", Phase: domain.PhaseSuccess, Status: "🎉 生成に成功しました", Images: []string{"/out/a.png"}, History: []string{"/out/a.png"}},
		}}
		s := newTestServer(t, gen, Options{})

		body, ct := multipartBody(t,
			map[string]string{"api_key": " key ", "prompt": "city", "resolution": "4K", "aspect_ratio": "1:1"},
			map[string][]byte{"first.PNG": []byte("1"), "second.jpg": []byte("2")},
			[]string{"first.PNG", "second.jpg"},
		)
		req := httptest.NewRequest(http.MethodPost, "/api/generate", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()

		s.Handler().ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Type"), "text/event-stream")

		assert.Equal(t, "key", gen.got.APIKey)
		assert.Equal(t, "city", gen.got.Prompt)
		assert.Equal(t, domain.Resolution4K, gen.got.Resolution)
		assert.Equal(t, domain.AspectRatio("1:1"), gen.got.AspectRatio)
		require.Len(t, gen.got.ReferenceImages, 2)
		assert.Equal(t, "00.png", filepath.Base(gen.got.ReferenceImages[0]))
		assert.Equal(t, "01.jpg", filepath.Base(gen.got.ReferenceImages[1]))
		assert.Equal(t, []bool{true, true}, gen.refExists)
		for _, p := range gen.got.ReferenceImages {
			assert.NoFileExists(t, p, "uploads are removed after the run")
		}

		events := parseEvents(t, rec.Body.String())
		require.Len(t, events, 2)
		assert.Equal(t, domain.PhaseValidating, events[0].Phase)
		assert.Contains(t, events[0].LogText, "start")
		assert.Equal(t, domain.PhaseSuccess, events[1].Phase)
		assert.Equal(t, []string{"/out/a.png"}, events[1].Images)
		assert.Contains(t, rec.Body.String(), "id:run-1-2")
	})

	t.Run("既定値とサーバー側のAPIキーを使う", func(t *testing.T) {
		gen := &fakeGenerator{}
		s := newTestServer(t, gen, Options{APIKey: "server-key"})

		body, ct := multipartBody(t, map[string]string{"prompt": "p"}, nil, nil)
		req := httptest.NewRequest(http.MethodPost, "/api/generate", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()

		s.Handler().ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "server-key", gen.got.APIKey)
		assert.Equal(t, domain.DefaultResolution, gen.got.Resolution)
		assert.Equal(t, domain.DefaultAspectRatio, gen.got.AspectRatio)
		assert.Empty(t, gen.got.ReferenceImages)
	})

	t.Run("未定義の解像度は400", func(t *testing.T) {
		gen := &fakeGenerator{}
		s := newTestServer(t, gen, Options{})

		body, ct := multipartBody(t, map[string]string{"resolution": "8K"}, nil, nil)
		req := httptest.NewRequest(http.MethodPost, "/api/generate", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()

		s.Handler().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "invalid resolution")
	})

	t.Run("失敗スナップショットのエラーを含める", func(t *testing.T) {
		gen := &fakeGenerator{snapshots: []domain.Snapshot{
			{Phase: domain.PhaseFailure, Failure: domain.FailureRemote, Status: "❌ 失敗", Err: assert.AnError, History: []string{}},
		}}
		s := newTestServer(t, gen, Options{})

		body, ct := multipartBody(t, map[string]string{"api_key": "k"}, nil, nil)
		req := httptest.NewRequest(http.MethodPost, "/api/generate", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()

		s.Handler().ServeHTTP(rec, req)

		events := parseEvents(t, rec.Body.String())
		require.Len(t, events, 1)
		assert.Equal(t, domain.FailureRemote, events[0].Failure)
		assert.Equal(t, assert.AnError.Error(), events[0].Error)
	})
}

func TestHandleGenerate_OutputDir(t *testing.T) {
	out := t.TempDir()
	outside := t.TempDir()

	post := func(t *testing.T, gen *fakeGenerator, outputDir string) *httptest.ResponseRecorder {
		t.Helper()
		s := newTestServer(t, gen, Options{OutputDir: out})
		body, ct := multipartBody(t, map[string]string{"api_key": "k", "output_dir": outputDir}, nil, nil)
		req := httptest.NewRequest(http.MethodPost, "/api/generate", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		return rec
	}

	t.Run("出力フォルダ配下のサブフォルダは許可する", func(t *testing.T) {
		gen := &fakeGenerator{}
		rec := post(t, gen, "portraits")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, filepath.Join(out, "portraits"), gen.got.OutputDir)
	})

	for name, dir := range map[string]string{
		"親フォルダへの相対パス": "../escape",
		"別の絶対パス":      outside,
		"途中で外に出るパス":   filepath.Join(out, "a", "..", "..", "x"),
	} {
		t.Run(name+"は400", func(t *testing.T) {
			gen := &fakeGenerator{}
			rec := post(t, gen, dir)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), "outside the output folder")
			assert.Empty(t, gen.got.APIKey, "generation must not start")
			assert.NoDirExists(t, filepath.Join(filepath.Dir(out), "escape"))
		})
	}
}

func TestHandleHistory(t *testing.T) {
	out := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(out, "a.png"), []byte("x"), 0o644))
	s := newTestServer(t, &fakeGenerator{}, Options{OutputDir: out})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Images []string `json:"images"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{filepath.Join(out, "a.png")}, resp.Images)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history?dir="+url.QueryEscape(filepath.Join(out, "missing")), nil))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Images)

	for _, dir := range []string{"..", t.TempDir(), "/etc"} {
		rec = httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history?dir="+url.QueryEscape(dir), nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, "dir=%s", dir)
	}
}

func TestHandleOptions(t *testing.T) {
	s := newTestServer(t, &fakeGenerator{}, Options{DefaultResolution: "1K"})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/options", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "1K", resp["default_resolution"])
	assert.Equal(t, "16:9", resp["default_aspect_ratio"])
	assert.Len(t, resp["aspect_ratios"], 10)
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, &fakeGenerator{}, Options{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}
