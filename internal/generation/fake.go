package generation

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"html"
	"strings"
	"time"
	"unicode/utf16"

	"simulation-server/internal/models"

	"go.uber.org/zap"
)

// FakeBackendName метка fake-бэкенда в логах, метриках и дескрипторах заданий.
const FakeBackendName = "fake"

// ColorScheme is the palette of a fake placeholder image.
type ColorScheme struct {
	Primary   string
	Secondary string
	Accent    string
	Text      string
}

var colorSchemes = []ColorScheme{
	{Primary: "#1e3a8a", Secondary: "#3b82f6", Accent: "#fbbf24", Text: "#ffffff"}, // синяя
	{Primary: "#7c2d12", Secondary: "#dc2626", Accent: "#f59e0b", Text: "#ffffff"}, // красная
	{Primary: "#14532d", Secondary: "#16a34a", Accent: "#84cc16", Text: "#ffffff"}, // зеленая
	{Primary: "#581c87", Secondary: "#9333ea", Accent: "#a855f7", Text: "#ffffff"}, // фиолетовая
	{Primary: "#7c2d12", Secondary: "#ea580c", Accent: "#f97316", Text: "#ffffff"}, // оранжевая
}

// PromptHash is the deterministic 32-bit rolling hash (h*31 + c over UTF-16 code units) of a prompt.
func PromptHash(s string) uint32 {
	var h int32
	for _, c := range utf16.Encode([]rune(s)) {
		h = (h << 5) - h + int32(c)
	}
	if h < 0 {
		return uint32(-int64(h))
	}
	return uint32(h)
}

// SchemeForPrompt выбирает цветовую схему по хэшу промпта.
func SchemeForPrompt(prompt string) ColorScheme {
	return colorSchemes[PromptHash(prompt)%uint32(len(colorSchemes))]
}

// --- Fake text ---

// FakeTextGenerator returns canned, deterministic text without any network access.
type FakeTextGenerator struct{}

var _ TextGenerator = FakeTextGenerator{}

func (FakeTextGenerator) Name() string { return FakeBackendName }

// GenerateText отвечает вариантами, если промпт просит их, иначе коротким продолжением сцены.
// Структурированный вывод (JSON) не поддерживается.
func (FakeTextGenerator) GenerateText(ctx context.Context, systemPrompt string, userInput string, params GenerationParams) (string, UsageInfo, error) {
	if err := ctx.Err(); err != nil {
		return "", UsageInfo{}, err
	}
	if params.JSON {
		return "", UsageInfo{}, fmt.Errorf("%w: fake backend does not support structured output", models.ErrFatalProvider)
	}
	if strings.Contains(systemPrompt, "action options") {
		return strings.Join([]string{
			"Follow the faint sound echoing from the corridor",
			"Search the nearby walls for hidden markings",
			"Ask your companion what they sense",
			"Step boldly into the unknown",
		}, "\n"), UsageInfo{}, nil
	}
	action := lastQuoted(userInput)
	if action == "" {
		action = "press on"
	}
	text := fmt.Sprintf("You decide to %s. The world around you answers: shadows stretch across the ancient stone, "+
		"a distant hum grows louder, and something that was hidden a moment ago now catches the light. "+
		"The path ahead splits, and the choice of where to go next is yours.", action)
	return text, UsageInfo{}, nil
}

// lastQuoted возвращает последнюю строку в кавычках (действие пользователя в промпте хода).
func lastQuoted(s string) string {
	end := strings.LastIndex(s, "\"")
	if end <= 0 {
		return ""
	}
	start := strings.LastIndex(s[:end], "\"")
	if start < 0 {
		return ""
	}
	return strings.TrimSpace(s[start+1 : end])
}

// --- Fake images ---

// FakeImageRenderer draws an SVG placeholder whose palette is a hash of the prompt.
type FakeImageRenderer struct {
	delay  time.Duration
	logger *zap.Logger
}

var _ ImageRenderer = (*FakeImageRenderer)(nil)

func NewFakeImageRenderer(delay time.Duration, logger *zap.Logger) *FakeImageRenderer {
	return &FakeImageRenderer{delay: delay, logger: logger.Named("FakeImageRenderer")}
}

func (r *FakeImageRenderer) Name() string { return FakeBackendName }

// RenderImage returns identical bytes for identical prompts.
func (r *FakeImageRenderer) RenderImage(ctx context.Context, prompt string) (*RenderedImage, error) {
	if err := wait(ctx, r.delay); err != nil {
		return nil, err
	}
	hash := PromptHash(prompt)
	colors := SchemeForPrompt(prompt)
	display := prompt
	if len([]rune(display)) > 100 {
		display = Excerpt(display, 100) + "..."
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, `<svg width="1024" height="1024" xmlns="http://www.w3.org/2000/svg">`)
	fmt.Fprintf(&b, `<defs><linearGradient id="bg" x1="0%%" y1="0%%" x2="100%%" y2="100%%">`)
	fmt.Fprintf(&b, `<stop offset="0%%" style="stop-color:%s;stop-opacity:1"/>`, colors.Primary)
	fmt.Fprintf(&b, `<stop offset="100%%" style="stop-color:%s;stop-opacity:1"/>`, colors.Secondary)
	fmt.Fprintf(&b, `</linearGradient></defs>`)
	fmt.Fprintf(&b, `<rect width="1024" height="1024" fill="url(#bg)"/>`)
	fmt.Fprintf(&b, `<rect x="50" y="50" width="924" height="924" fill="none" stroke="%s" stroke-width="4" rx="20"/>`, colors.Accent)
	fmt.Fprintf(&b, `<text x="512" y="200" font-family="Arial, sans-serif" font-size="48" font-weight="bold" text-anchor="middle" fill="%s">PLACEHOLDER SCENE</text>`, colors.Text)
	fmt.Fprintf(&b, `<text x="512" y="300" font-family="Arial, sans-serif" font-size="24" text-anchor="middle" fill="%s">Scene: %s</text>`, colors.Text, html.EscapeString(display))
	fmt.Fprintf(&b, `<circle cx="200" cy="400" r="80" fill="%s" opacity="0.3"/>`, colors.Accent)
	fmt.Fprintf(&b, `<circle cx="824" cy="600" r="60" fill="%s" opacity="0.3"/>`, colors.Accent)
	fmt.Fprintf(&b, `<text x="512" y="850" font-family="Arial, sans-serif" font-size="16" text-anchor="middle" fill="%s" opacity="0.5">Hash: %x</text>`, colors.Text, hash)
	b.WriteString(`</svg>`)

	r.logger.Debug("Fake image rendered", zap.Uint32("hash", hash))
	return &RenderedImage{Data: b.Bytes(), ContentType: "image/svg+xml"}, nil
}

// --- Fake video ---

// FakeVideoRenderer completes every job immediately after an artificial delay.
type FakeVideoRenderer struct {
	delay  time.Duration
	logger *zap.Logger
}

var _ VideoRenderer = (*FakeVideoRenderer)(nil)

func NewFakeVideoRenderer(delay time.Duration, logger *zap.Logger) *FakeVideoRenderer {
	return &FakeVideoRenderer{delay: delay, logger: logger.Named("FakeVideoRenderer")}
}

func (r *FakeVideoRenderer) Name() string { return FakeBackendName }

type fakeVideoPayload struct {
	PromptHash uint32 `json:"prompt_hash"`
}

// StartVideo returns an already-terminal handle.
func (r *FakeVideoRenderer) StartVideo(ctx context.Context, prompt string) (JobHandle, error) {
	if err := wait(ctx, r.delay); err != nil {
		return JobHandle{}, err
	}
	hash := PromptHash(prompt)
	payload, _ := json.Marshal(fakeVideoPayload{PromptHash: hash})
	r.logger.Info("Fake video job completed", zap.Uint32("hash", hash))
	return JobHandle{
		Provider: FakeBackendName,
		Payload:  payload,
		Done:     true,
		AssetRef: fmt.Sprintf("fake://videos/%08x.mp4", hash),
	}, nil
}

func (r *FakeVideoRenderer) PollVideo(ctx context.Context, handle JobHandle) (JobHandle, error) {
	return handle, ctx.Err()
}

// FetchVideo returns a minimal MP4 container (ftyp + free + empty mdat).
func (r *FakeVideoRenderer) FetchVideo(ctx context.Context, handle JobHandle) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !handle.IsDone() || handle.ResultAssetRef() == "" {
		return nil, fmt.Errorf("%w: fake video job has no asset", models.ErrFatalProvider)
	}
	return MinimalMP4(), nil
}

// MinimalMP4 builds the smallest structurally valid ISO BMFF file.
func MinimalMP4() []byte {
	var b bytes.Buffer
	writeBox(&b, "ftyp", append([]byte("isom\x00\x00\x02\x00"), []byte("isomiso2mp41")...))
	writeBox(&b, "free", nil)
	writeBox(&b, "mdat", nil)
	return b.Bytes()
}

func writeBox(b *bytes.Buffer, boxType string, payload []byte) {
	var size [4]byte
	binary.BigEndian.PutUint32(size[:], uint32(8+len(payload)))
	b.Write(size[:])
	b.WriteString(boxType)
	b.Write(payload)
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
