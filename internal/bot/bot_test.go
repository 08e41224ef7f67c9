package bot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"CineIndexBot/internal/index"
	"CineIndexBot/internal/models"
	"CineIndexBot/internal/resolver"
	"CineIndexBot/internal/scheduler"
	"CineIndexBot/internal/search"
	"CineIndexBot/internal/storage"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const (
	testChannel = int64(-1001234)
	testUser    = int64(42)
)

type fakeMessenger struct {
	mu        sync.Mutex
	sent      []tgbotapi.Chattable
	requests  []tgbotapi.Chattable
	raw       map[string]tgbotapi.Params
	nextID    int
	failSend  func(c tgbotapi.Chattable) bool
	member    tgbotapi.ChatMember
	memberErr error
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{raw: make(map[string]tgbotapi.Params), nextID: 100}
}

func (f *fakeMessenger) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	if f.failSend != nil && f.failSend(c) {
		return tgbotapi.Message{}, errors.New("bad request")
	}
	f.nextID++
	return tgbotapi.Message{MessageID: f.nextID}, nil
}

func (f *fakeMessenger) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeMessenger) GetChatMember(config tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error) {
	return f.member, f.memberErr
}

func (f *fakeMessenger) MakeRequest(endpoint string, params tgbotapi.Params) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.raw[endpoint] = params
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeMessenger) lastSent(t *testing.T) tgbotapi.Chattable {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		t.Fatal("nothing was sent")
	}
	return f.sent[len(f.sent)-1]
}

func (f *fakeMessenger) lastText(t *testing.T) string {
	t.Helper()
	msg, ok := f.lastSent(t).(tgbotapi.MessageConfig)
	if !ok {
		t.Fatalf("last sent is %T, want MessageConfig", f.lastSent(t))
	}
	return msg.Text
}

type fakeResolver struct {
	res   *resolver.Result
	err   error
	query resolver.Query
	panic bool
}

func (r *fakeResolver) Resolve(ctx context.Context, q resolver.Query) (*resolver.Result, error) {
	if r.panic {
		panic("boom")
	}
	r.query = q
	return r.res, r.err
}

type fakeSuggester struct {
	suggestions []search.Suggestion
	lang        string
}

func (s *fakeSuggester) Suggest(ctx context.Context, query, lang string, limit int) ([]search.Suggestion, error) {
	s.lang = lang
	if len(s.suggestions) > limit {
		return s.suggestions[:limit], nil
	}
	return s.suggestions, nil
}

type fakeAssistant struct {
	catalog []models.IndexEntry
}

func (a *fakeAssistant) AnswerQuestion(ctx context.Context, question string, catalog []models.IndexEntry) (string, error) {
	a.catalog = catalog
	return "Try Leon.", nil
}

type fakeScheduler struct {
	scheduled map[scheduler.Key]func(ctx context.Context)
	cancelled []scheduler.Key
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{scheduled: make(map[scheduler.Key]func(ctx context.Context))}
}

func (s *fakeScheduler) Schedule(key scheduler.Key, after time.Duration, then func(ctx context.Context)) {
	s.scheduled[key] = then
}

func (s *fakeScheduler) Cancel(key scheduler.Key) bool {
	s.cancelled = append(s.cancelled, key)
	_, ok := s.scheduled[key]
	delete(s.scheduled, key)
	return ok
}

type harness struct {
	bot   *Bot
	api   *fakeMessenger
	store *storage.MemoryStore
	res   *fakeResolver
	sched *fakeScheduler
	opts  Options
}

func newHarness(t *testing.T, tweak func(o *Options)) *harness {
	t.Helper()
	api := newFakeMessenger()
	store := storage.NewMemoryStore("")
	res := &fakeResolver{err: resolver.ErrNotFound}
	sched := newFakeScheduler()
	opts := Options{
		Resolver:        res,
		Indexer:         index.NewUpdater(store, testChannel, NewActions(api), nil, zap.NewNop()),
		Entries:         store,
		Preferences:     store,
		Scheduler:       sched,
		AutoDeleteAfter: 10 * time.Minute,
	}
	if tweak != nil {
		tweak(&opts)
	}
	return &harness{
		bot:   NewBot(api, opts, zap.NewNop()),
		api:   api,
		store: store,
		res:   res,
		sched: sched,
		opts:  opts,
	}
}

func privateText(id int, text string) tgbotapi.Update {
	msg := &tgbotapi.Message{
		MessageID: id,
		From:      &tgbotapi.User{ID: testUser},
		Chat:      &tgbotapi.Chat{ID: testUser, Type: "private"},
		Text:      text,
	}
	if strings.HasPrefix(text, "/") {
		cmd := strings.SplitN(text, " ", 2)[0]
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}}
	}
	return tgbotapi.Update{Message: msg}
}

func callback(data string, messageID int) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:   "cb",
		From: &tgbotapi.User{ID: testUser},
		Data: data,
		Message: &tgbotapi.Message{
			MessageID: messageID,
			Chat:      &tgbotapi.Chat{ID: testUser, Type: "private"},
		},
	}}
}

func keyboardOf(t *testing.T, markup interface{}) *tgbotapi.InlineKeyboardMarkup {
	t.Helper()
	switch kb := markup.(type) {
	case *tgbotapi.InlineKeyboardMarkup:
		return kb
	case tgbotapi.InlineKeyboardMarkup:
		return &kb
	}
	t.Fatalf("reply markup is %T", markup)
	return nil
}

func TestChannelPostsAreIndexed(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	h.bot.HandleUpdate(ctx, tgbotapi.Update{ChannelPost: &tgbotapi.Message{
		MessageID: 5,
		Chat:      &tgbotapi.Chat{ID: testChannel, Type: "channel"},
		Caption:   "#Title Leon\n#Lang fr\n[Watch](https://example.com/leon)",
		Photo: []tgbotapi.PhotoSize{
			{FileID: "small", Width: 90},
			{FileID: "large", Width: 1280},
		},
	}})

	entry, err := h.store.Get(ctx, "leon_fr")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if entry.MediaRef != "large" || entry.MediaKind != models.MediaPhoto {
		t.Errorf("media = %q/%q, want large/photo", entry.MediaRef, entry.MediaKind)
	}
	params, ok := h.api.raw["setMessageReaction"]
	if !ok {
		t.Fatal("post was not acknowledged")
	}
	if params["message_id"] != "5" || !strings.Contains(params["reaction"], ackEmoji) {
		t.Errorf("reaction params = %v", params)
	}

	// A caption-only edit keeps the photo.
	h.bot.HandleUpdate(ctx, tgbotapi.Update{EditedChannelPost: &tgbotapi.Message{
		MessageID: 5,
		Chat:      &tgbotapi.Chat{ID: testChannel, Type: "channel"},
		Caption:   "#Title Leon\n#Lang fr\nDirector's cut",
	}})
	entry, _ = h.store.Get(ctx, "leon_fr")
	if entry.MediaRef != "large" {
		t.Errorf("edit cleared media: %q", entry.MediaRef)
	}
	if !strings.Contains(entry.OriginalCaption, "Director's cut") {
		t.Errorf("caption not updated: %q", entry.OriginalCaption)
	}
}

func TestPostFromMessage(t *testing.T) {
	tests := []struct {
		name    string
		msg     *tgbotapi.Message
		caption string
		media   *index.Media
	}{
		{
			name:    "text post",
			msg:     &tgbotapi.Message{Text: "#Title A\n#Lang en"},
			caption: "#Title A\n#Lang en",
		},
		{
			name:    "video",
			msg:     &tgbotapi.Message{Caption: "c", Video: &tgbotapi.Video{FileID: "v1"}},
			caption: "c",
			media:   &index.Media{FileID: "v1", Kind: models.MediaVideo},
		},
		{
			name:    "document",
			msg:     &tgbotapi.Message{Caption: "c", Document: &tgbotapi.Document{FileID: "d1"}},
			caption: "c",
			media:   &index.Media{FileID: "d1", Kind: models.MediaDocument},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.msg.Chat = &tgbotapi.Chat{ID: testChannel}
			post := postFromMessage(tt.msg, true)
			if post.Caption != tt.caption || !post.IsEdit || post.ChatID != testChannel {
				t.Errorf("post = %+v", post)
			}
			switch {
			case tt.media == nil && post.Media != nil:
				t.Errorf("media = %+v, want none", post.Media)
			case tt.media != nil && (post.Media == nil || *post.Media != *tt.media):
				t.Errorf("media = %+v, want %+v", post.Media, tt.media)
			}
		})
	}
}

func TestIndexDeliverySchedulesCleanup(t *testing.T) {
	h := newHarness(t, nil)
	h.res.err = nil
	h.res.res = resolver.EntryResult(&models.IndexEntry{
		Key:             "leon_fr",
		Title:           "Leon",
		Lang:            "fr",
		MediaRef:        "file-1",
		MediaKind:       models.MediaPhoto,
		OriginalCaption: "#Title Leon\n#Lang fr\nA hitman.",
		Buttons:         []models.Button{{Label: "Watch", URL: "https://example.com/leon"}},
	})
	h.store.SetLanguage(context.Background(), testUser, "fr")

	h.bot.HandleUpdate(context.Background(), privateText(7, "Leon"))

	if h.res.query.Lang != "fr" || h.res.query.Text != "Leon" {
		t.Errorf("query = %+v", h.res.query)
	}
	photo, ok := h.api.lastSent(t).(tgbotapi.PhotoConfig)
	if !ok {
		t.Fatalf("sent %T, want PhotoConfig", h.api.lastSent(t))
	}
	if photo.File != tgbotapi.FileID("file-1") {
		t.Errorf("file = %v", photo.File)
	}
	if photo.Caption != "A hitman." {
		t.Errorf("caption = %q", photo.Caption)
	}
	kb := keyboardOf(t, photo.ReplyMarkup)
	if len(kb.InlineKeyboard) != 2 {
		t.Fatalf("rows = %d, want button row and close row", len(kb.InlineKeyboard))
	}
	if *kb.InlineKeyboard[0][0].URL != "https://example.com/leon" {
		t.Errorf("button url = %q", *kb.InlineKeyboard[0][0].URL)
	}
	if *kb.InlineKeyboard[1][0].CallbackData != closeData {
		t.Errorf("close data = %q", *kb.InlineKeyboard[1][0].CallbackData)
	}

	request := scheduler.Key{ChatID: testUser, MessageID: 7}
	reply := scheduler.Key{ChatID: testUser, MessageID: 101}
	if _, ok := h.sched.scheduled[request]; !ok {
		t.Error("request deletion not scheduled")
	}
	then, ok := h.sched.scheduled[reply]
	if !ok || then == nil {
		t.Fatal("reply deletion with notice not scheduled")
	}
	then(context.Background())
	if got := h.api.lastText(t); !strings.Contains(got, "10 minutes") {
		t.Errorf("notice = %q", got)
	}
}

func TestAutoDeleteDisabled(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.AutoDeleteAfter = 0 })
	h.res.err = nil
	h.res.res = resolver.EntryResult(&models.IndexEntry{Key: "a_en", Title: "A", Lang: "en", MediaKind: models.MediaText})

	h.bot.HandleUpdate(context.Background(), privateText(7, "a"))

	if len(h.sched.scheduled) != 0 {
		t.Errorf("scheduled %d deletions with auto-delete off", len(h.sched.scheduled))
	}
}

func TestProviderPosterFallsBackToText(t *testing.T) {
	h := newHarness(t, nil)
	h.api.failSend = func(c tgbotapi.Chattable) bool {
		_, isPhoto := c.(tgbotapi.PhotoConfig)
		return isPhoto
	}
	h.res.err = nil
	h.res.res = &resolver.Result{
		Source:  resolver.SourceTMDB,
		Kind:    models.MediaPhoto,
		Media:   "https://image.tmdb.org/t/p/w500/leon.jpg",
		Caption: "🎬 Leon (1994)",
		Buttons: []models.Button{{Label: "TMDB", URL: "https://www.themoviedb.org/movie/101"}},
	}

	h.bot.HandleUpdate(context.Background(), privateText(7, "leon"))

	msg, ok := h.api.lastSent(t).(tgbotapi.MessageConfig)
	if !ok {
		t.Fatalf("sent %T, want MessageConfig", h.api.lastSent(t))
	}
	if msg.Text != "🎬 Leon (1994)" {
		t.Errorf("text = %q", msg.Text)
	}
	if kb := keyboardOf(t, msg.ReplyMarkup); len(kb.InlineKeyboard) != 1 {
		t.Errorf("rows = %d, want only the provider button", len(kb.InlineKeyboard))
	}
	if len(h.sched.scheduled) != 0 {
		t.Error("provider results must not be auto-deleted")
	}
}

func TestFailedIndexDeliverySendsApology(t *testing.T) {
	h := newHarness(t, nil)
	h.api.failSend = func(c tgbotapi.Chattable) bool {
		_, isVideo := c.(tgbotapi.VideoConfig)
		return isVideo
	}
	h.res.err = nil
	h.res.res = resolver.EntryResult(&models.IndexEntry{Key: "a_en", Title: "A", Lang: "en", MediaRef: "vid", MediaKind: models.MediaVideo})

	h.bot.HandleUpdate(context.Background(), privateText(7, "a"))

	if got := h.api.lastText(t); got != apologyText {
		t.Errorf("last text = %q, want apology", got)
	}
	if len(h.sched.scheduled) != 0 {
		t.Error("failed delivery was scheduled for deletion")
	}
}

func TestNotFoundOffersSuggestions(t *testing.T) {
	sugg := &fakeSuggester{suggestions: []search.Suggestion{
		{Key: "leon_fr", Title: "Leon", Lang: "fr"},
		{Key: strings.Repeat("x", 70), Title: "Too long"},
		{Key: "lion_en", Title: "Lion", Lang: "en"},
	}}
	h := newHarness(t, func(o *Options) { o.Suggester = sugg })
	h.store.SetLanguage(context.Background(), testUser, "fr")

	h.bot.HandleUpdate(context.Background(), privateText(7, "leonn"))

	msg := h.api.lastSent(t).(tgbotapi.MessageConfig)
	if msg.Text != notFoundText {
		t.Errorf("text = %q", msg.Text)
	}
	if sugg.lang != "fr" {
		t.Errorf("suggestions filtered by %q, want fr", sugg.lang)
	}
	kb := keyboardOf(t, msg.ReplyMarkup)
	if len(kb.InlineKeyboard) != 2 {
		t.Fatalf("rows = %d, want 2", len(kb.InlineKeyboard))
	}
	if got := kb.InlineKeyboard[0][0]; got.Text != "🔎 Leon (French)" || *got.CallbackData != "q:leon_fr" {
		t.Errorf("first suggestion = %q / %q", got.Text, *got.CallbackData)
	}
}

func TestNotFoundWithoutSuggester(t *testing.T) {
	h := newHarness(t, nil)

	h.bot.HandleUpdate(context.Background(), privateText(7, "nothing"))

	msg := h.api.lastSent(t).(tgbotapi.MessageConfig)
	if msg.Text != notFoundText || msg.ReplyMarkup != nil {
		t.Errorf("reply = %q with markup %v", msg.Text, msg.ReplyMarkup)
	}
}

func TestSuggestionCallbackDeliversEntry(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.store.Put(ctx, &models.IndexEntry{Key: "leon_fr", Title: "Leon", Lang: "fr", MediaRef: "doc", MediaKind: models.MediaDocument})

	h.bot.HandleUpdate(ctx, callback("q:leon_fr", 50))

	doc, ok := h.api.lastSent(t).(tgbotapi.DocumentConfig)
	if !ok {
		t.Fatalf("sent %T, want DocumentConfig", h.api.lastSent(t))
	}
	if doc.File != tgbotapi.FileID("doc") {
		t.Errorf("file = %v", doc.File)
	}
	if len(h.sched.scheduled) != 1 {
		t.Errorf("scheduled %d deletions, want only the reply", len(h.sched.scheduled))
	}

	sent := len(h.api.sent)
	h.bot.HandleUpdate(ctx, callback("q:missing_en", 50))
	if len(h.api.sent) != sent {
		t.Error("missing entry should only answer the callback")
	}
}

func TestLanguageCallbacks(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	h.bot.HandleUpdate(ctx, callback("lang:ta", 9))
	if lang, _ := h.store.GetLanguage(ctx, testUser); lang != "ta" {
		t.Errorf("lang = %q, want ta", lang)
	}
	edit, ok := h.api.requests[len(h.api.requests)-1].(tgbotapi.EditMessageTextConfig)
	if !ok || !strings.Contains(edit.Text, "Tamil") {
		t.Errorf("menu not updated: %#v", h.api.requests[len(h.api.requests)-1])
	}

	h.bot.HandleUpdate(ctx, callback("lang:xx", 9))
	if lang, _ := h.store.GetLanguage(ctx, testUser); lang != "ta" {
		t.Errorf("unknown code changed preference to %q", lang)
	}

	h.bot.HandleUpdate(ctx, callback("lang:none", 9))
	if lang, _ := h.store.GetLanguage(ctx, testUser); lang != "" {
		t.Errorf("lang = %q, want cleared", lang)
	}
}

func TestLanguageMenuMarksCurrent(t *testing.T) {
	kb := languageKeyboard("fr")
	var marked []string
	rows := len(kb.InlineKeyboard)
	for _, row := range kb.InlineKeyboard {
		for _, btn := range row {
			if strings.HasPrefix(btn.Text, "✅") {
				marked = append(marked, *btn.CallbackData)
			}
		}
	}
	if len(marked) != 1 || marked[0] != "lang:fr" {
		t.Errorf("marked = %v", marked)
	}
	if want := (len(models.Languages)+1)/2 + 1; rows != want {
		t.Errorf("rows = %d, want %d", rows, want)
	}
}

func TestCloseDeletesAndCancels(t *testing.T) {
	h := newHarness(t, nil)
	key := scheduler.Key{ChatID: testUser, MessageID: 77}
	h.sched.scheduled[key] = nil

	h.bot.HandleUpdate(context.Background(), callback(closeData, 77))

	if len(h.sched.cancelled) != 1 || h.sched.cancelled[0] != key {
		t.Errorf("cancelled = %v", h.sched.cancelled)
	}
	var deleted bool
	for _, r := range h.api.requests {
		if d, ok := r.(tgbotapi.DeleteMessageConfig); ok && d.MessageID == 77 {
			deleted = true
		}
	}
	if !deleted {
		t.Error("closed message was not deleted")
	}
}

func TestForceSubscribe(t *testing.T) {
	tests := []struct {
		name      string
		status    string
		err       error
		wantQuery bool
	}{
		{name: "member", status: "member", wantQuery: true},
		{name: "creator", status: "creator", wantQuery: true},
		{name: "left", status: "left", wantQuery: false},
		{name: "lookup fails open", err: errors.New("chat not found"), wantQuery: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, func(o *Options) {
				o.ForceSubChannelID = -100999
				o.ForceSubInviteURL = "https://t.me/+invite"
			})
			h.api.member = tgbotapi.ChatMember{Status: tt.status}
			h.api.memberErr = tt.err

			h.bot.HandleUpdate(context.Background(), privateText(7, "leon"))

			got := h.api.lastText(t)
			if tt.wantQuery && got != notFoundText {
				t.Errorf("reply = %q, want lookup", got)
			}
			if !tt.wantQuery && !strings.Contains(got, "join") {
				t.Errorf("reply = %q, want join prompt", got)
			}
		})
	}
}

func TestAdminCommands(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, func(o *Options) {
		o.IsAdmin = func(id int64) bool { return id == testUser }
	})
	h.store.Put(ctx, &models.IndexEntry{Key: "a_en", Title: "A", Lang: "en", OriginalCaption: "#Title A\n#Lang en"})

	h.bot.HandleUpdate(ctx, privateText(1, "/stats"))
	if got := h.api.lastText(t); got != "📊 Indexed titles: 1" {
		t.Errorf("stats = %q", got)
	}
	h.bot.HandleUpdate(ctx, privateText(2, "/reindex"))
	if got := h.api.lastText(t); got != "🔁 Re-indexed 1 entries." {
		t.Errorf("reindex = %q", got)
	}

	other := newHarness(t, nil)
	other.bot.HandleUpdate(ctx, privateText(1, "/stats"))
	if got := other.api.lastText(t); !strings.Contains(got, "admins only") {
		t.Errorf("non-admin stats = %q", got)
	}
}

func TestAskCommand(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.bot.HandleUpdate(ctx, privateText(1, "/ask anything good?"))
	if got := h.api.lastText(t); !strings.Contains(got, "not available") {
		t.Errorf("ask without assistant = %q", got)
	}

	assistant := &fakeAssistant{}
	h = newHarness(t, func(o *Options) { o.Assistant = assistant })
	h.store.Put(ctx, &models.IndexEntry{Key: "leon_fr", Title: "Leon", Lang: "fr"})

	h.bot.HandleUpdate(ctx, privateText(1, "/ask"))
	if got := h.api.lastText(t); !strings.Contains(got, "provide a question") {
		t.Errorf("empty ask = %q", got)
	}
	h.bot.HandleUpdate(ctx, privateText(2, "/ask anything french?"))
	if got := h.api.lastText(t); got != "Try Leon." {
		t.Errorf("answer = %q", got)
	}
	if len(assistant.catalog) != 1 {
		t.Errorf("catalog size = %d", len(assistant.catalog))
	}
}

func TestGroupTextIsIgnored(t *testing.T) {
	h := newHarness(t, nil)
	update := privateText(7, "leon")
	update.Message.Chat.Type = "supergroup"

	h.bot.HandleUpdate(context.Background(), update)

	if len(h.api.sent) != 0 {
		t.Errorf("sent %d messages for group chatter", len(h.api.sent))
	}
}

func TestHandleUpdateRecoversPanic(t *testing.T) {
	h := newHarness(t, nil)
	h.res.panic = true

	h.bot.HandleUpdate(context.Background(), privateText(7, "leon"))
}

func TestClip(t *testing.T) {
	if got := clip("short", 10); got != "short" {
		t.Errorf("clip short = %q", got)
	}
	got := clip(strings.Repeat("é", 20), 10)
	if n := len([]rune(got)); n != 10 || !strings.HasSuffix(got, "…") {
		t.Errorf("clip = %q (%d runes)", got, n)
	}
}

func TestHumanDuration(t *testing.T) {
	tests := map[time.Duration]string{
		10 * time.Minute: "10 minutes",
		time.Minute:      "1 minute",
		2 * time.Hour:    "2 hours",
		90 * time.Second: "90 seconds",
	}
	for d, want := range tests {
		if got := humanDuration(d); got != want {
			t.Errorf("humanDuration(%v) = %q, want %q", d, got, want)
		}
	}
}
