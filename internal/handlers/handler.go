package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"ai-mockup-studio/internal/mediagroup"
	"ai-mockup-studio/internal/mockup"
	"ai-mockup-studio/internal/session"
	"ai-mockup-studio/internal/synthesis"
	"ai-mockup-studio/internal/telegram"
	"ai-mockup-studio/internal/upload"
)

// Bot is the part of the Telegram client the wizard needs.
type Bot interface {
	SendText(chatID int64, text string) error
	SendTextWithKeyboard(chatID int64, text string, kb telegram.Keyboard) (int, error)
	EditTextWithKeyboard(chatID int64, messageID int, text string, kb telegram.Keyboard) error
	AnswerCallback(callbackID, text string, alert bool) error
	SendUploadingPhoto(chatID int64)
	SendAlbum(chatID int64, photos [][]byte, caption string) error
	SendPhotoBytes(chatID int64, data []byte, name, caption string) error
	SendDocumentBytes(chatID int64, data []byte, name, caption string) error
	DownloadFile(ctx context.Context, fileID string) ([]byte, string, error)
}

type Options struct {
	Telegram  Bot
	Sessions  *session.Store
	Validator *upload.Validator
	Logger    *slog.Logger
}

type Handler struct {
	tg         Bot
	sessions   *session.Store
	validator  *upload.Validator
	logger     *slog.Logger
	aggregator *mediagroup.Aggregator
}

func New(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	validator := opts.Validator
	if validator == nil {
		validator = upload.NewValidator()
	}

	return &Handler{
		tg:        opts.Telegram,
		sessions:  opts.Sessions,
		validator: validator,
		logger:    logger,
	}
}

func (h *Handler) SetMediaGroupAggregator(ag *mediagroup.Aggregator) {
	h.aggregator = ag
}

func (h *Handler) HandleUpdate(ctx context.Context, update telegram.Update) error {
	if update.CallbackQuery != nil {
		return h.handleCallback(ctx, update.CallbackQuery)
	}
	if update.Message == nil || update.Message.From == nil {
		return nil
	}

	msg := update.Message
	chatID := msg.Chat.ID
	userID := msg.From.ID
	username := msg.From.UserName

	if msg.IsCommand() {
		return h.handleCommand(chatID, userID, username, msg)
	}

	file, ok := imageFile(msg)
	if !ok {
		if strings.TrimSpace(msg.Text) != "" {
			return h.tg.SendText(chatID, "Send /mockup to open the mockup studio, or send your design as a photo.")
		}
		return nil
	}

	if msg.MediaGroupID != "" && h.aggregator != nil {
		h.aggregator.Add(mediagroup.Item{
			ChatID:       chatID,
			UserID:       userID,
			Username:     username,
			MediaGroupID: msg.MediaGroupID,
			File:         file,
		})
		return nil
	}

	return h.attachDesign(ctx, chatID, userID, username, file)
}

// HandleMediaGroup uses the last image of an album as the design.
func (h *Handler) HandleMediaGroup(ctx context.Context, group mediagroup.Group) {
	file, ok := group.Last()
	if !ok {
		return
	}
	if len(group.Files) > 1 {
		_ = h.tg.SendText(group.ChatID, fmt.Sprintf("Received %d images; using the last one as your design.", len(group.Files)))
	}
	if err := h.attachDesign(ctx, group.ChatID, group.UserID, group.Username, file); err != nil {
		h.logger.Error("album design failed", "err", err)
	}
}

func (h *Handler) handleCommand(chatID, userID int64, username string, msg *telegram.Message) error {
	switch msg.Command() {
	case "start":
		if err := h.tg.SendText(chatID,
			"🖼 AI Mockup Studio\n\n"+
				"Pick a scenario, generate photo-realistic scenes, then drop your design into the one you like.\n\n"+
				"Commands:\n"+
				"/mockup - Open the studio\n"+
				"/reset - Start over with the current scenario\n"+
				"/help - How it works",
		); err != nil {
			return err
		}
		return h.openWizard(chatID, userID, username)
	case "help":
		return h.tg.SendText(chatID,
			"How it works\n\n"+
				"1. Choose a category and scenario.\n"+
				"2. Set the aspect ratio and number of variations, then tap Generate scenes.\n"+
				"3. Send your design as a photo or image file (PNG, JPEG, GIF or WEBP, up to 15 MB).\n"+
				"4. Pick a scene and tap Create mockup.\n\n"+
				"Optional: a style, background blur or quality enhancement is applied after compositing.",
		)
	case "mockup":
		return h.openWizard(chatID, userID, username)
	case "reset", "cancel":
		sess := h.session(chatID, userID, username)
		snap := sess.Orchestrator.Snapshot()
		_ = sess.Orchestrator.SelectScenario(snap.ScenarioID)
		h.sessions.Update(sess.ID, func(s *session.Session) { s.Menu = menuMain })
		if err := h.tg.SendText(chatID, "✅ Session reset."); err != nil {
			return err
		}
		return h.render(chatID, userID, 0, false)
	default:
		return h.tg.SendText(chatID, "❌ Unknown command. Use /help.")
	}
}

func (h *Handler) openWizard(chatID, userID int64, username string) error {
	sess := h.session(chatID, userID, username)
	h.sessions.Update(sess.ID, func(s *session.Session) { s.Menu = menuMain })
	return h.render(chatID, userID, 0, false)
}

func (h *Handler) attachDesign(ctx context.Context, chatID, userID int64, username string, file mediagroup.File) error {
	sess := h.session(chatID, userID, username)
	h.tg.SendUploadingPhoto(chatID)

	data, contentType, err := h.tg.DownloadFile(ctx, file.ID)
	if err != nil {
		h.logger.Error("design download failed", "err", err)
		return h.tg.SendText(chatID, "❌ Could not download your file. Please send it again.")
	}

	declared := file.MimeType
	if declared == "" {
		declared = contentType
	}
	asset, err := h.validator.Validate(data, declared)
	if err != nil {
		return h.tg.SendText(chatID, errorMessage(err))
	}

	sess.Orchestrator.AttachAsset(asset)
	h.logger.Info("design attached", "session", sess.ID, "mime", asset.MimeType, "bytes", asset.Size)

	note := "✅ Design saved."
	if sc, ok := sess.Orchestrator.Snapshot().Scenario(); ok && !sc.Design.RequiresAsset() {
		note += " The current scenario is scene-only, so it will not be used until you pick a design category."
	}
	if err := h.tg.SendText(chatID, note); err != nil {
		return err
	}
	return h.render(chatID, userID, 0, false)
}

// session returns a copy of the chat's session. UI fields in the copy are
// read-only; write them through the store's Update.
func (h *Handler) session(chatID, userID int64, username string) session.Session {
	id := sessionKey(chatID, userID)
	sess := h.sessions.GetOrCreate(id)
	h.sessions.Update(id, func(s *session.Session) {
		s.ChatID = chatID
		s.UserID = userID
		if username != "" {
			s.Username = username
		}
	})
	if fresh, ok := h.sessions.Get(id); ok {
		return fresh
	}
	return sess
}

func sessionKey(chatID, userID int64) string {
	return fmt.Sprintf("tg:%d:%d", chatID, userID)
}

// imageFile picks the upload from a photo or an image document.
func imageFile(msg *telegram.Message) (mediagroup.File, bool) {
	if len(msg.Photo) > 0 {
		largest := msg.Photo[len(msg.Photo)-1]
		return mediagroup.File{ID: largest.FileID, MimeType: "image/jpeg", Name: "photo.jpg"}, true
	}
	if msg.Document != nil && strings.HasPrefix(strings.ToLower(msg.Document.MimeType), "image/") {
		return mediagroup.File{ID: msg.Document.FileID, MimeType: msg.Document.MimeType, Name: msg.Document.FileName}, true
	}
	return mediagroup.File{}, false
}

// errorMessage renders an error for the chat. Refusals are shown verbatim.
func errorMessage(err error) string {
	if errors.Is(err, mockup.ErrBusy) {
		return "⏳ Still working on your previous request."
	}

	var se *synthesis.Error
	if !errors.As(err, &se) {
		return "❌ Something went wrong. Please try again."
	}

	switch se.Kind {
	case synthesis.KindValidation:
		return "⚠️ " + capitalize(se.Text) + "."
	case synthesis.KindAuth:
		return "🔑 The image service rejected the API key. Please contact the bot owner."
	case synthesis.KindQuota:
		return "⏳ The image service quota is exhausted. Please try again later."
	case synthesis.KindSafety:
		return "🚫 The request was blocked by the safety filter. Try another scenario or design."
	case synthesis.KindTimeout:
		return "⌛ The image service took too long to answer. Please try again."
	case synthesis.KindEmptyResponse:
		return "🤷 The model returned no image. Please try again."
	case synthesis.KindRefusal:
		return "🤖 The model replied instead of drawing:\n\n" + se.Text
	default:
		return "❌ Something went wrong while generating. Please try again."
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
