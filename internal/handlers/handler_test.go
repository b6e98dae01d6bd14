package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-mockup-studio/internal/catalog"
	"ai-mockup-studio/internal/mockup"
	"ai-mockup-studio/internal/session"
	"ai-mockup-studio/internal/synthesis"
	"ai-mockup-studio/internal/telegram"
)

const (
	testChat  = int64(100)
	testOwner = int64(7)
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

type sentFile struct {
	name    string
	caption string
	data    []byte
}

type fakeBot struct {
	mu        sync.Mutex
	texts     []string
	keyboards []telegram.Keyboard
	answers   []string
	alerts    []bool
	albums    [][][]byte
	photos    []sentFile
	documents []sentFile
	nextMsgID int
}

func (b *fakeBot) SendText(_ int64, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.texts = append(b.texts, text)
	return nil
}

func (b *fakeBot) SendTextWithKeyboard(_ int64, text string, kb telegram.Keyboard) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.texts = append(b.texts, text)
	b.keyboards = append(b.keyboards, kb)
	b.nextMsgID++
	return b.nextMsgID, nil
}

func (b *fakeBot) EditTextWithKeyboard(_ int64, _ int, text string, kb telegram.Keyboard) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.texts = append(b.texts, text)
	b.keyboards = append(b.keyboards, kb)
	return nil
}

func (b *fakeBot) AnswerCallback(_ string, text string, alert bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.answers = append(b.answers, text)
	b.alerts = append(b.alerts, alert)
	return nil
}

func (b *fakeBot) SendUploadingPhoto(int64) {}

func (b *fakeBot) SendAlbum(_ int64, photos [][]byte, _ string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.albums = append(b.albums, photos)
	return nil
}

func (b *fakeBot) SendPhotoBytes(_ int64, data []byte, name, caption string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.photos = append(b.photos, sentFile{name: name, caption: caption, data: data})
	return nil
}

func (b *fakeBot) SendDocumentBytes(_ int64, data []byte, name, caption string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.documents = append(b.documents, sentFile{name: name, caption: caption, data: data})
	return nil
}

func (b *fakeBot) DownloadFile(context.Context, string) ([]byte, string, error) {
	return pngBytes, "image/png", nil
}

func (b *fakeBot) lastText() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.texts) == 0 {
		return ""
	}
	return b.texts[len(b.texts)-1]
}

type stubSynth struct {
	mu             sync.Mutex
	compositeCalls int
	compositeErr   error
}

func (s *stubSynth) SynthesizeScenes(_ context.Context, _, _ string, count int) ([]synthesis.Image, error) {
	out := make([]synthesis.Image, count)
	for i := range out {
		out[i] = synthesis.Image{Data: []byte(fmt.Sprintf("scene-%d", i)), MimeType: "image/png"}
	}
	return out, nil
}

func (s *stubSynth) CompositeDesign(_ context.Context, scene, _ synthesis.Image, _ string) (synthesis.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.compositeCalls++
	if s.compositeErr != nil {
		return synthesis.Image{}, s.compositeErr
	}
	return synthesis.Image{Data: append([]byte("mockup:"), scene.Data...), MimeType: "image/png"}, nil
}

func (s *stubSynth) ApplyStyle(_ context.Context, img synthesis.Image, _ string) (synthesis.Image, error) {
	return img, nil
}

func newTestHandler(synth mockup.Synthesizer) (*Handler, *fakeBot) {
	bot := &fakeBot{}
	store := session.NewStore(session.Options{NewOrchestrator: func(id string) *mockup.Orchestrator {
		return mockup.New(mockup.Options{ID: id, Synthesizer: synth, ScenarioID: "SITTING_FRAME"})
	}})
	return New(Options{Telegram: bot, Sessions: store}), bot
}

func commandUpdate(text string) telegram.Update {
	cmd := strings.Fields(text)[0]
	return telegram.Update{Message: &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: testOwner, UserName: "tester"},
		Chat:      &tgbotapi.Chat{ID: testChat},
		Text:      text,
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}},
	}}
}

func photoUpdate() telegram.Update {
	return telegram.Update{Message: &tgbotapi.Message{
		MessageID: 2,
		From:      &tgbotapi.User{ID: testOwner},
		Chat:      &tgbotapi.Chat{ID: testChat},
		Photo:     []tgbotapi.PhotoSize{{FileID: "small"}, {FileID: "large"}},
	}}
}

func callbackUpdate(from int64, data string) telegram.Update {
	return telegram.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: from},
		Message: &tgbotapi.Message{MessageID: 10, Chat: &tgbotapi.Chat{ID: testChat}},
		Data:    data,
	}}
}

func keyboardData(kb telegram.Keyboard) []string {
	var out []string
	for _, row := range kb.InlineKeyboard {
		for _, btn := range row {
			if btn.CallbackData != nil {
				out = append(out, *btn.CallbackData)
			}
		}
	}
	return out
}

func TestFullWizardFlow(t *testing.T) {
	synth := &stubSynth{}
	h, bot := newTestHandler(synth)
	ctx := context.Background()

	require.NoError(t, h.HandleUpdate(ctx, commandUpdate("/mockup")))
	require.Len(t, bot.keyboards, 1)
	assert.Contains(t, keyboardData(bot.keyboards[0]), cb(testOwner, "gen"))

	require.NoError(t, h.HandleUpdate(ctx, callbackUpdate(testOwner, cb(testOwner, "gen"))))
	require.Len(t, bot.albums, 1)
	assert.Len(t, bot.albums[0], 3)

	require.NoError(t, h.HandleUpdate(ctx, photoUpdate()))
	assert.Contains(t, bot.texts, "✅ Design saved.")

	require.NoError(t, h.HandleUpdate(ctx, callbackUpdate(testOwner, cb(testOwner, "pick", "2"))))
	require.NoError(t, h.HandleUpdate(ctx, callbackUpdate(testOwner, cb(testOwner, "mock"))))

	assert.Equal(t, 1, synth.compositeCalls)
	require.Len(t, bot.photos, 1)
	require.Len(t, bot.documents, 1)
	assert.Equal(t, artifactName, bot.documents[0].name)
	assert.Equal(t, []byte("mockup:scene-2"), bot.documents[0].data)
}

func TestMockupWithoutDesignIsRejected(t *testing.T) {
	synth := &stubSynth{}
	h, bot := newTestHandler(synth)
	ctx := context.Background()

	require.NoError(t, h.HandleUpdate(ctx, callbackUpdate(testOwner, cb(testOwner, "gen"))))
	require.NoError(t, h.HandleUpdate(ctx, callbackUpdate(testOwner, cb(testOwner, "mock"))))

	assert.Zero(t, synth.compositeCalls)
	assert.Contains(t, bot.texts, "⚠️ Upload a frame design first.")
	assert.Empty(t, bot.documents)
}

func TestRefusalIsShownVerbatim(t *testing.T) {
	synth := &stubSynth{compositeErr: &synthesis.Error{Kind: synthesis.KindRefusal, Text: "I cannot do that."}}
	h, bot := newTestHandler(synth)
	ctx := context.Background()

	require.NoError(t, h.HandleUpdate(ctx, callbackUpdate(testOwner, cb(testOwner, "gen"))))
	require.NoError(t, h.HandleUpdate(ctx, photoUpdate()))
	require.NoError(t, h.HandleUpdate(ctx, callbackUpdate(testOwner, cb(testOwner, "mock"))))

	found := false
	for _, text := range bot.texts {
		if strings.HasSuffix(text, "I cannot do that.") {
			found = true
		}
	}
	assert.True(t, found, "refusal text should reach the chat")
}

func TestCallbackFromAnotherUserIsIgnored(t *testing.T) {
	synth := &stubSynth{}
	h, bot := newTestHandler(synth)

	require.NoError(t, h.HandleUpdate(context.Background(), callbackUpdate(99, cb(testOwner, "gen"))))

	assert.Empty(t, bot.albums)
	require.Len(t, bot.alerts, 1)
	assert.True(t, bot.alerts[0])
}

func TestSettingsCallbacks(t *testing.T) {
	h, _ := newTestHandler(&stubSynth{})
	ctx := context.Background()

	for _, data := range []string{
		cb(testOwner, "ar", ratioToken("16:9")),
		cb(testOwner, "n", "6"),
		cb(testOwner, "st", "noir"),
		cb(testOwner, "blur"),
		cb(testOwner, "hq"),
		cb(testOwner, "cat", string(catalog.DesignBillboard)),
	} {
		require.NoError(t, h.HandleUpdate(ctx, callbackUpdate(testOwner, data)), data)
	}

	sess, ok := h.sessions.Get(sessionKey(testChat, testOwner))
	require.True(t, ok)
	snap := sess.Orchestrator.Snapshot()
	assert.Equal(t, "16:9", snap.AspectRatio)
	assert.Equal(t, 6, snap.VariationCount)
	assert.Equal(t, "noir", snap.Style)
	assert.True(t, snap.BackgroundBlur)
	assert.True(t, snap.HighQuality)
	assert.Equal(t, "CITY_BILLBOARD", snap.ScenarioID)
	assert.Equal(t, menuScenario, sess.Menu)
}

func TestConcurrentCallbacksFromOneUser(t *testing.T) {
	h, bot := newTestHandler(&stubSynth{})
	ctx := context.Background()

	callbacks := []string{
		cb(testOwner, "menu", menuStyle),
		cb(testOwner, "menu", menuRatio),
		cb(testOwner, "blur"),
		cb(testOwner, "hq"),
		cb(testOwner, "menu", menuMain),
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		for _, data := range callbacks {
			wg.Add(1)
			go func(data string) {
				defer wg.Done()
				assert.NoError(t, h.HandleUpdate(ctx, callbackUpdate(testOwner, data)))
			}(data)
		}
	}
	wg.Wait()

	sess, ok := h.sessions.Get(sessionKey(testChat, testOwner))
	require.True(t, ok)
	assert.Contains(t, []string{menuStyle, menuRatio, menuMain}, sess.Menu)
	assert.Equal(t, 10, sess.MessageID)

	snap := sess.Orchestrator.Snapshot()
	assert.False(t, snap.BackgroundBlur, "four blur toggles cancel out")
	assert.False(t, snap.HighQuality, "four quality toggles cancel out")

	bot.mu.Lock()
	defer bot.mu.Unlock()
	assert.Len(t, bot.answers, 4*len(callbacks))
}

func TestInvalidSettingAnswersWithAlert(t *testing.T) {
	h, bot := newTestHandler(&stubSynth{})

	require.NoError(t, h.HandleUpdate(context.Background(), callbackUpdate(testOwner, cb(testOwner, "n", "42"))))

	require.NotEmpty(t, bot.alerts)
	assert.True(t, bot.alerts[len(bot.alerts)-1])
}

func TestParseCallback(t *testing.T) {
	c, ok := parseCallback(cb(42, "ar", "16x9"))
	require.True(t, ok)
	assert.Equal(t, int64(42), c.ownerID)
	assert.Equal(t, "ar", c.action)
	assert.Equal(t, "16:9", ratioFromToken(c.arg(0)))
	assert.Empty(t, c.arg(3))

	_, ok = parseCallback("pv:1:menu")
	assert.False(t, ok)
	_, ok = parseCallback("mk:abc:menu")
	assert.False(t, ok)
	_, ok = parseCallback("mk:1")
	assert.False(t, ok)
}

func TestCallbackDataFitsTelegramLimit(t *testing.T) {
	owner := int64(9_999_999_999)
	for _, sc := range catalog.Scenarios() {
		assert.LessOrEqual(t, len(cb(owner, "sc", sc.ID)), 64, sc.ID)
	}
	for _, st := range catalog.Styles() {
		assert.LessOrEqual(t, len(cb(owner, "st", st.ID)), 64, st.ID)
	}
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "🤖 The model replied instead of drawing:\n\nNope.",
		errorMessage(&synthesis.Error{Kind: synthesis.KindRefusal, Text: "Nope."}))
	assert.Contains(t, errorMessage(fmt.Errorf("wrap: %w", &synthesis.Error{Kind: synthesis.KindQuota})), "quota")
	assert.Contains(t, errorMessage(mockup.ErrBusy), "Still working")
	assert.Contains(t, errorMessage(errors.New("boom")), "Something went wrong")
	assert.Equal(t, "⚠️ Bad input.", errorMessage(synthesis.Validationf("op", "bad input")))
}

func TestWizardTextForSceneOnly(t *testing.T) {
	o := mockup.New(mockup.Options{ScenarioID: "EMPTY_LOFT"})

	text := wizardText(o.Snapshot())
	assert.Contains(t, text, "Scene Only")
	assert.Contains(t, text, "Design: not needed")
}

func TestPickKeyboardListsVariations(t *testing.T) {
	o := mockup.New(mockup.Options{Synthesizer: &stubSynth{}, ScenarioID: "SITTING_FRAME"})
	require.NoError(t, o.GenerateScenes(context.Background()))

	data := keyboardData(wizardKeyboard(testOwner, menuPick, o.Snapshot()))
	assert.Contains(t, data, cb(testOwner, "pick", "0"))
	assert.Contains(t, data, cb(testOwner, "pick", "2"))
	assert.Contains(t, data, cb(testOwner, "mock"))
}
