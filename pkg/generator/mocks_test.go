package generator

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"google.golang.org/genai"
)

// --- Mocks ---

type mockModel struct {
	mu           sync.Mutex
	calls        int
	lastParts    []*genai.Part
	lastConfig   *genai.GenerateContentConfig
	generateFunc func(call int) ([]*genai.Part, error)
	checkErr     error
}

func (m *mockModel) GenerateImages(ctx context.Context, parts []*genai.Part, cfg *genai.GenerateContentConfig) ([]*genai.Part, error) {
	m.mu.Lock()
	m.calls++
	call := m.calls
	m.lastParts = parts
	m.lastConfig = cfg
	m.mu.Unlock()

	if m.generateFunc != nil {
		return m.generateFunc(call)
	}
	return nil, nil
}

func (m *mockModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// checkingModel は ConfigChecker も実装するモデルです。
type checkingModel struct {
	mockModel
}

func (m *checkingModel) CheckConfig(cfg *genai.GenerateContentConfig) error {
	return m.checkErr
}

type mockPreparer struct {
	prepared    []string
	prepareFunc func(path string) (*genai.Part, error)
}

func (m *mockPreparer) PrepareImagePart(ctx context.Context, path string) (*genai.Part, error) {
	m.prepared = append(m.prepared, path)
	if m.prepareFunc != nil {
		return m.prepareFunc(path)
	}
	return &genai.Part{InlineData: &genai.Blob{MIMEType: "image/jpeg", Data: []byte(path)}}, nil
}

// fakeTimer は待機せずに即座に発火し、要求された待機時間を記録します。
type fakeTimer struct {
	starts *[]time.Duration
	c      chan time.Time
}

func (f *fakeTimer) Start(d time.Duration) {
	*f.starts = append(*f.starts, d)
	f.c = make(chan time.Time, 1)
	f.c <- time.Now()
}

func (f *fakeTimer) Stop() {}

func (f *fakeTimer) C() <-chan time.Time { return f.c }

// blockingTimer は発火しないタイマーです。待機中のキャンセル検証に使います。
type blockingTimer struct {
	c chan time.Time
}

func (b *blockingTimer) Start(time.Duration) {}

func (b *blockingTimer) Stop() {}

func (b *blockingTimer) C() <-chan time.Time { return b.c }

// --- Helpers ---

func factoryFor(model ImageModel) ClientFactory {
	return func(ctx context.Context, apiKey string) (ImageModel, error) {
		return model, nil
	}
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.RGBA{0, 128, 255, 255})
		}
	}
	buf := new(bytes.Buffer)
	if err := png.Encode(buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

func imagePart(data []byte) *genai.Part {
	return &genai.Part{InlineData: &genai.Blob{MIMEType: "image/png", Data: data}}
}
