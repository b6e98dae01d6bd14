package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"ai-mockup-studio/internal/catalog"
	"ai-mockup-studio/internal/mockup"
	"ai-mockup-studio/internal/session"
	"ai-mockup-studio/internal/telegram"
)

const callbackPrefix = "mk"

const (
	menuMain     = "main"
	menuCategory = "category"
	menuScenario = "scenario"
	menuRatio    = "ratio"
	menuCount    = "count"
	menuStyle    = "style"
	menuPick     = "pick"
)

const artifactName = "ai-mockup.png"

type callback struct {
	ownerID int64
	action  string
	args    []string
}

func parseCallback(data string) (callback, bool) {
	parts := strings.Split(strings.TrimSpace(data), ":")
	if len(parts) < 3 || parts[0] != callbackPrefix {
		return callback{}, false
	}
	ownerID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return callback{}, false
	}
	return callback{ownerID: ownerID, action: parts[2], args: parts[3:]}, true
}

func (c callback) arg(i int) string {
	if i < len(c.args) {
		return c.args[i]
	}
	return ""
}

func cb(ownerID int64, parts ...string) string {
	return fmt.Sprintf("%s:%d:%s", callbackPrefix, ownerID, strings.Join(parts, ":"))
}

// Aspect ratios travel as "16x9" because ':' separates callback fields.
func ratioToken(ar string) string   { return strings.ReplaceAll(ar, ":", "x") }
func ratioFromToken(t string) string { return strings.ReplaceAll(t, "x", ":") }

func (h *Handler) handleCallback(ctx context.Context, q *telegram.CallbackQuery) error {
	if q == nil || q.Message == nil || q.From == nil {
		return nil
	}
	c, ok := parseCallback(q.Data)
	if !ok {
		return nil
	}
	if c.ownerID != q.From.ID {
		_ = h.tg.AnswerCallback(q.ID, "This menu belongs to someone else.", true)
		return nil
	}

	chatID := q.Message.Chat.ID
	msgID := q.Message.MessageID
	sess := h.session(chatID, c.ownerID, q.From.UserName)
	orch := sess.Orchestrator

	var (
		menu, notice string
		err          error
	)

	switch c.action {
	case "menu":
		menu = c.arg(0)
	case "cat":
		err = orch.SelectCategory(catalog.DesignType(c.arg(0)))
		menu = menuScenario
	case "sc":
		err = orch.SelectScenario(c.arg(0))
		menu = menuMain
	case "ar":
		err = orch.SetAspectRatio(ratioFromToken(c.arg(0)))
		menu = menuMain
	case "n":
		n, convErr := strconv.Atoi(c.arg(0))
		if convErr != nil {
			n = 0
		}
		err = orch.SetVariationCount(n)
		menu = menuMain
	case "st":
		err = orch.SetStyle(c.arg(0))
		menu = menuMain
	case "blur":
		notice = "Background blur " + onOff(orch.ToggleBackgroundBlur())
	case "hq":
		notice = "Quality enhance " + onOff(orch.ToggleHighQuality())
	case "pick":
		idx, convErr := strconv.Atoi(c.arg(0))
		if convErr != nil {
			idx = -1
		}
		err = orch.SelectScene(idx)
		if err == nil {
			notice = fmt.Sprintf("Scene %d selected", idx+1)
		}
		menu = menuMain
	case "reset":
		err = orch.SelectScenario(orch.Snapshot().ScenarioID)
		notice = "Session reset"
		menu = menuMain
	case "close":
		_ = h.tg.AnswerCallback(q.ID, "Closed", false)
		h.sessions.Update(sess.ID, func(s *session.Session) { s.Menu = menuMain })
		return h.tg.EditTextWithKeyboard(chatID, msgID, "Studio closed. Send /mockup to reopen it.", telegram.Keyboard{InlineKeyboard: [][]telegram.KeyboardButton{}})
	case "gen":
		return h.generateScenes(ctx, q, sess)
	case "mock":
		return h.generateMockup(ctx, q, sess)
	default:
		_ = h.tg.AnswerCallback(q.ID, "Unknown action", false)
		return nil
	}

	if err != nil {
		_ = h.tg.AnswerCallback(q.ID, truncate(errorMessage(err), 190), true)
	} else {
		if notice == "" {
			notice = "OK"
		}
		_ = h.tg.AnswerCallback(q.ID, notice, false)
	}

	h.sessions.Update(sess.ID, func(s *session.Session) {
		s.MessageID = msgID
		if menu != "" {
			s.Menu = menu
		}
	})
	return h.render(chatID, c.ownerID, msgID, true)
}

func (h *Handler) generateScenes(ctx context.Context, q *telegram.CallbackQuery, sess session.Session) error {
	chatID := q.Message.Chat.ID
	snap := sess.Orchestrator.Snapshot()

	_ = h.tg.AnswerCallback(q.ID, fmt.Sprintf("Generating %d scene(s)…", snap.VariationCount), false)
	h.tg.SendUploadingPhoto(chatID)

	err := sess.Orchestrator.GenerateScenes(ctx)
	switch {
	case errors.Is(err, mockup.ErrSuperseded):
		return nil
	case err != nil:
		h.logger.Warn("scene generation failed", "session", sess.ID, "err", err)
		if sendErr := h.tg.SendText(chatID, errorMessage(err)); sendErr != nil {
			return sendErr
		}
		return h.render(chatID, q.From.ID, 0, false)
	}

	snap = sess.Orchestrator.Snapshot()
	photos := make([][]byte, 0, len(snap.Variations))
	for _, v := range snap.Variations {
		photos = append(photos, v.Data)
	}
	sc, _ := snap.Scenario()
	caption := fmt.Sprintf("%s · %s · %d variation(s)", sc.Title, snap.AspectRatio, len(photos))
	if err := h.tg.SendAlbum(chatID, photos, caption); err != nil {
		return err
	}

	h.sessions.Update(sess.ID, func(s *session.Session) { s.Menu = menuPick })
	return h.render(chatID, q.From.ID, 0, false)
}

func (h *Handler) generateMockup(ctx context.Context, q *telegram.CallbackQuery, sess session.Session) error {
	chatID := q.Message.Chat.ID

	_ = h.tg.AnswerCallback(q.ID, "Creating your mockup…", false)
	h.tg.SendUploadingPhoto(chatID)

	err := sess.Orchestrator.GenerateMockup(ctx)
	switch {
	case errors.Is(err, mockup.ErrSuperseded):
		return nil
	case err != nil:
		h.logger.Warn("mockup failed", "session", sess.ID, "err", err)
		if sendErr := h.tg.SendText(chatID, errorMessage(err)); sendErr != nil {
			return sendErr
		}
		return h.render(chatID, q.From.ID, 0, false)
	}

	snap := sess.Orchestrator.Snapshot()
	if snap.Artifact == nil {
		return nil
	}
	caption := "✅ Your mockup is ready"
	if enh := enhancementLabel(snap); enh != "" {
		caption += " · " + enh
	}
	if err := h.tg.SendPhotoBytes(chatID, snap.Artifact.Data, artifactName, caption); err != nil {
		return err
	}
	if err := h.tg.SendDocumentBytes(chatID, snap.Artifact.Data, artifactName, "Full-resolution PNG"); err != nil {
		return err
	}

	h.sessions.Update(sess.ID, func(s *session.Session) { s.Menu = menuMain })
	return h.render(chatID, q.From.ID, 0, false)
}

// render edits the wizard message in place, or sends a new one when editing
// is not possible.
func (h *Handler) render(chatID, userID int64, messageID int, edit bool) error {
	sess := h.sessions.GetOrCreate(sessionKey(chatID, userID))
	snap := sess.Orchestrator.Snapshot()

	text := wizardText(snap)
	kb := wizardKeyboard(userID, sess.Menu, snap)

	if edit && messageID != 0 {
		if err := h.tg.EditTextWithKeyboard(chatID, messageID, text, kb); err == nil {
			return nil
		}
	}

	msgID, err := h.tg.SendTextWithKeyboard(chatID, text, kb)
	if err != nil {
		return err
	}
	h.sessions.Update(sess.ID, func(s *session.Session) { s.MessageID = msgID })
	return nil
}

func wizardText(snap mockup.Snapshot) string {
	sc, ok := snap.Scenario()
	category := "Unknown"
	if ok {
		if cat, found := catalog.LookupCategory(sc.Design); found {
			category = cat.Title
		}
	}

	var b strings.Builder
	b.WriteString("🖼 AI Mockup Studio\n\n")
	b.WriteString(fmt.Sprintf("Category: %s\n", category))
	if ok {
		b.WriteString(fmt.Sprintf("Scenario: %s\n", sc.Title))
		b.WriteString(sc.Description + "\n")
	} else {
		b.WriteString(fmt.Sprintf("Scenario: %s (unknown)\n", snap.ScenarioID))
	}
	b.WriteString(fmt.Sprintf("\nAspect ratio: %s, variations: %d\n", snap.AspectRatio, snap.VariationCount))
	b.WriteString(fmt.Sprintf("Style: %s, blur: %s, HQ: %s\n", styleName(snap.Style), onOff(snap.BackgroundBlur), onOff(snap.HighQuality)))

	switch {
	case ok && !sc.Design.RequiresAsset():
		b.WriteString("Design: not needed\n")
	case snap.Asset != nil:
		b.WriteString(fmt.Sprintf("Design: saved ✅ (%s, %s)\n", snap.Asset.MimeType, humanSize(snap.Asset.Size)))
	default:
		b.WriteString("Design: not uploaded\n")
	}

	b.WriteString("Status: " + stageText(snap) + "\n")

	switch {
	case snap.Stage.Pending():
		b.WriteString("\n⏳ Working on it…")
	case len(snap.Variations) == 0:
		b.WriteString("\n🎨 Tap Generate scenes to start.")
	case ok && sc.Design.RequiresAsset() && snap.Asset == nil:
		b.WriteString("\n📷 Send your design as a photo or image file.")
	default:
		b.WriteString("\n✨ Pick a scene and tap Create mockup.")
	}
	return b.String()
}

func stageText(snap mockup.Snapshot) string {
	switch snap.Stage {
	case mockup.StageIdle:
		return "idle"
	case mockup.StageScenesPending:
		return "generating scenes"
	case mockup.StageScenesReady:
		return fmt.Sprintf("%d scene(s) ready, #%d selected", len(snap.Variations), snap.SelectedIndex+1)
	case mockup.StageCompositePending:
		return "placing your design"
	case mockup.StageCompositeReady:
		return "design placed"
	case mockup.StageStylePending:
		return "applying finishing touches"
	case mockup.StageDone:
		return "mockup ready ✅"
	case mockup.StageError:
		return "failed, see the last message"
	default:
		return snap.Stage.String()
	}
}

func wizardKeyboard(ownerID int64, menu string, snap mockup.Snapshot) telegram.Keyboard {
	switch menu {
	case menuCategory:
		return categoryKeyboard(ownerID, snap)
	case menuScenario:
		return scenarioKeyboard(ownerID, snap)
	case menuRatio:
		return ratioKeyboard(ownerID, snap)
	case menuCount:
		return countKeyboard(ownerID, snap)
	case menuStyle:
		return styleKeyboard(ownerID, snap)
	case menuPick:
		if len(snap.Variations) > 0 {
			return pickKeyboard(ownerID, snap)
		}
	}
	return mainKeyboard(ownerID, snap)
}

func mainKeyboard(ownerID int64, snap mockup.Snapshot) telegram.Keyboard {
	rows := [][]telegram.KeyboardButton{
		{
			button("Category", cb(ownerID, "menu", menuCategory)),
			button("Scenario", cb(ownerID, "menu", menuScenario)),
		},
		{
			button("Ratio "+snap.AspectRatio, cb(ownerID, "menu", menuRatio)),
			button(fmt.Sprintf("Variations %d", snap.VariationCount), cb(ownerID, "menu", menuCount)),
		},
		{
			button("Style", cb(ownerID, "menu", menuStyle)),
			button("Blur: "+onOff(snap.BackgroundBlur), cb(ownerID, "blur")),
			button("HQ: "+onOff(snap.HighQuality), cb(ownerID, "hq")),
		},
		{button("🎨 Generate scenes", cb(ownerID, "gen"))},
	}
	if len(snap.Variations) > 0 {
		rows = append(rows, []telegram.KeyboardButton{
			button(fmt.Sprintf("🖼 Pick scene (%d)", len(snap.Variations)), cb(ownerID, "menu", menuPick)),
			button("✨ Create mockup", cb(ownerID, "mock")),
		})
	}
	rows = append(rows, []telegram.KeyboardButton{
		button("Reset", cb(ownerID, "reset")),
		button("Close", cb(ownerID, "close")),
	})
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func categoryKeyboard(ownerID int64, snap mockup.Snapshot) telegram.Keyboard {
	current := catalog.DesignType("")
	if sc, ok := snap.Scenario(); ok {
		current = sc.Design
	}

	var buttons []telegram.KeyboardButton
	for _, cat := range catalog.Categories() {
		buttons = append(buttons, button(mark(cat.Title, cat.Key == current), cb(ownerID, "cat", string(cat.Key))))
	}
	return gridKeyboard(ownerID, buttons, 2)
}

func scenarioKeyboard(ownerID int64, snap mockup.Snapshot) telegram.Keyboard {
	sc, ok := snap.Scenario()
	design := catalog.DesignFrame
	if ok {
		design = sc.Design
	}
	cat, _ := catalog.LookupCategory(design)

	var buttons []telegram.KeyboardButton
	for _, s := range cat.Scenarios {
		buttons = append(buttons, button(mark(s.Title, s.ID == snap.ScenarioID), cb(ownerID, "sc", s.ID)))
	}
	return gridKeyboard(ownerID, buttons, 1)
}

func ratioKeyboard(ownerID int64, snap mockup.Snapshot) telegram.Keyboard {
	var buttons []telegram.KeyboardButton
	for _, opt := range catalog.AspectRatios() {
		label := fmt.Sprintf("%s %s", opt.Key, opt.Name)
		buttons = append(buttons, button(mark(label, opt.Key == snap.AspectRatio), cb(ownerID, "ar", ratioToken(opt.Key))))
	}
	return gridKeyboard(ownerID, buttons, 2)
}

func countKeyboard(ownerID int64, snap mockup.Snapshot) telegram.Keyboard {
	counts := append([]int{1}, catalog.VariationPresets()...)
	var buttons []telegram.KeyboardButton
	for _, n := range counts {
		buttons = append(buttons, button(mark(strconv.Itoa(n), n == snap.VariationCount), cb(ownerID, "n", strconv.Itoa(n))))
	}
	return gridKeyboard(ownerID, buttons, 4)
}

func styleKeyboard(ownerID int64, snap mockup.Snapshot) telegram.Keyboard {
	var buttons []telegram.KeyboardButton
	for _, st := range catalog.Styles() {
		buttons = append(buttons, button(mark(st.Name, st.ID == snap.Style), cb(ownerID, "st", st.ID)))
	}
	return gridKeyboard(ownerID, buttons, 2)
}

func pickKeyboard(ownerID int64, snap mockup.Snapshot) telegram.Keyboard {
	var buttons []telegram.KeyboardButton
	for i := range snap.Variations {
		buttons = append(buttons, button(mark(strconv.Itoa(i+1), i == snap.SelectedIndex), cb(ownerID, "pick", strconv.Itoa(i))))
	}
	kb := gridKeyboard(ownerID, buttons, 3)
	kb.InlineKeyboard = append(kb.InlineKeyboard[:len(kb.InlineKeyboard)-1],
		[]telegram.KeyboardButton{
			button("✨ Create mockup", cb(ownerID, "mock")),
			button("⬅ Back", cb(ownerID, "menu", menuMain)),
		},
	)
	return kb
}

// gridKeyboard lays buttons out in rows of perRow and appends a Back row.
func gridKeyboard(ownerID int64, buttons []telegram.KeyboardButton, perRow int) telegram.Keyboard {
	var rows [][]telegram.KeyboardButton
	var row []telegram.KeyboardButton
	for _, b := range buttons {
		row = append(row, b)
		if len(row) == perRow {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, []telegram.KeyboardButton{button("⬅ Back", cb(ownerID, "menu", menuMain))})
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func button(label, data string) telegram.KeyboardButton {
	return tgbotapi.NewInlineKeyboardButtonData(label, data)
}

func mark(label string, selected bool) string {
	if selected {
		return "✅ " + label
	}
	return label
}

func enhancementLabel(snap mockup.Snapshot) string {
	switch {
	case snap.BackgroundBlur:
		return "background blur"
	case snap.Style != "" && snap.Style != catalog.StyleNone:
		return styleName(snap.Style)
	case snap.HighQuality:
		return "quality enhanced"
	default:
		return ""
	}
}

func styleName(id string) string {
	for _, st := range catalog.Styles() {
		if st.ID == id {
			return st.Name
		}
	}
	return id
}

func onOff(v bool) string {
	if v {
		return "ON"
	}
	return "OFF"
}

func humanSize(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%d KB", n>>10)
	default:
		return fmt.Sprintf("%d B", n)
	}
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return strings.TrimSpace(string(runes[:max])) + "…"
}
