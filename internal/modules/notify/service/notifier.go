package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"trade_desk/internal/models"
	"trade_desk/pkg/logger"
)

// Notifier — доставка алертов оператору. Реализует reconcile AlertSink.
type Notifier interface {
	Notify(ctx context.Context, a models.Alert) error
}

// SnapshotSource — откуда брать текущее состояние для /status и /positions.
type SnapshotSource interface {
	Snapshot() models.Snapshot
}

// Liquidator — команда закрытия всех позиций.
type Liquidator interface {
	Liquidate(ctx context.Context) (string, error)
}

// botAPI — то, что нужно от *tgbot.BotAPI.
type botAPI interface {
	Send(c tgbot.Chattable) (tgbot.Message, error)
	Request(c tgbot.Chattable) (*tgbot.APIResponse, error)
	GetUpdatesChan(cfg tgbot.UpdateConfig) tgbot.UpdatesChannel
	StopReceivingUpdates()
}

const confirmTimeout = 30 * time.Second

// Telegram — алерты в чат + команды /status, /positions, /liquidate (с подтверждением).
type Telegram struct {
	bot    botAPI
	chatID int64
	state  SnapshotSource
	liq    Liquidator

	mu       sync.Mutex
	pendings map[string]*pending
	cancel   context.CancelFunc
}

type pending struct {
	ch     chan bool
	msgID  int
	prompt string
}

func NewTelegram(token string, chatID int64) (*Telegram, error) {
	b, err := tgbot.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	return newTelegram(b, chatID), nil
}

func newTelegram(b botAPI, chatID int64) *Telegram {
	return &Telegram{
		bot:      b,
		chatID:   chatID,
		pendings: make(map[string]*pending),
	}
}

// Bind подключает состояние и команды. Стор сам зависит от Notifier, поэтому не через конструктор.
func (t *Telegram) Bind(state SnapshotSource, liq Liquidator) {
	t.mu.Lock()
	t.state, t.liq = state, liq
	t.mu.Unlock()
}

func (t *Telegram) deps() (SnapshotSource, Liquidator) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state, t.liq
}

func (t *Telegram) Notify(_ context.Context, a models.Alert) error {
	if _, err := t.bot.Send(tgbot.NewMessage(t.chatID, FormatAlert(a))); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

func (t *Telegram) send(text string) {
	if _, err := t.bot.Send(tgbot.NewMessage(t.chatID, text)); err != nil {
		logger.Error("telegram send: %v", err)
	}
}

// Start: long-polling для messages + callback_query, только из своего чата.
func (t *Telegram) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	t.mu.Lock()
	t.cancel = cancel
	t.mu.Unlock()

	u := tgbot.NewUpdate(0)
	u.Timeout = 30
	u.AllowedUpdates = []string{"message", "callback_query"}
	updates := t.bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case upd, ok := <-updates:
				if !ok {
					return
				}
				t.handleUpdate(ctx, upd)
			}
		}
	}()
}

func (t *Telegram) Stop() {
	t.mu.Lock()
	cancel := t.cancel
	t.cancel = nil
	t.mu.Unlock()
	if cancel != nil {
		cancel()
		t.bot.StopReceivingUpdates()
	}
}

func (t *Telegram) handleUpdate(ctx context.Context, upd tgbot.Update) {
	if upd.CallbackQuery != nil {
		t.handleCallback(upd.CallbackQuery)
		return
	}
	msg := upd.Message
	if msg == nil || msg.Chat == nil || msg.Chat.ID != t.chatID || !msg.IsCommand() {
		return
	}
	state, liq := t.deps()
	switch msg.Command() {
	case "status", "positions":
		if state == nil {
			t.send("❗️ Нет данных")
			return
		}
		if msg.Command() == "status" {
			t.send(FormatStatus(state.Snapshot()))
		} else {
			t.send(FormatPositions(state.Snapshot().Positions))
		}
	case "liquidate":
		go t.liquidate(ctx, liq)
	}
}

func (t *Telegram) liquidate(ctx context.Context, liq Liquidator) {
	if liq == nil {
		t.send("❗️ Команды недоступны")
		return
	}
	if !t.Confirm(ctx, "⚠️ Закрыть ВСЕ позиции?", confirmTimeout) {
		return
	}
	msg, err := liq.Liquidate(ctx)
	if err != nil {
		t.send(fmt.Sprintf("❗️ Ошибка ликвидации: %v", err))
		return
	}
	t.send("✅ " + msg)
}

// handleCallback ждёт data вида CONF::token / REJ::token.
func (t *Telegram) handleCallback(cb *tgbot.CallbackQuery) {
	_, _ = t.bot.Request(tgbot.NewCallback(cb.ID, ""))

	verb, token, ok := strings.Cut(cb.Data, "::")
	if !ok || token == "" {
		return
	}

	t.mu.Lock()
	p, found := t.pendings[token]
	delete(t.pendings, token)
	t.mu.Unlock()
	if !found {
		return
	}

	accepted := verb == "CONF"
	p.ch <- accepted

	status := "❌ Отклонено"
	if accepted {
		status = "✅ Подтверждено"
	}
	t.finish(p, status)
}

// Confirm — сообщение с кнопками и ожиданием ответа.
func (t *Telegram) Confirm(ctx context.Context, prompt string, timeout time.Duration) bool {
	token := fmt.Sprintf("%d", time.Now().UnixNano())
	p := &pending{ch: make(chan bool, 1), prompt: prompt}

	msg := tgbot.NewMessage(t.chatID, prompt)
	msg.ReplyMarkup = tgbot.NewInlineKeyboardMarkup(tgbot.NewInlineKeyboardRow(
		tgbot.NewInlineKeyboardButtonData("✅ Да", "CONF::"+token),
		tgbot.NewInlineKeyboardButtonData("❌ Нет", "REJ::"+token),
	))
	// регистрируем до отправки: ответ может прийти раньше, чем вернётся Send
	t.mu.Lock()
	t.pendings[token] = p
	t.mu.Unlock()

	sent, err := t.bot.Send(msg)
	if err != nil {
		t.drop(token)
		logger.Error("telegram confirm: %v", err)
		return false
	}
	t.mu.Lock()
	p.msgID = sent.MessageID
	t.mu.Unlock()

	tmr := time.NewTimer(timeout)
	defer tmr.Stop()

	select {
	case ok := <-p.ch:
		return ok
	case <-tmr.C:
		if t.drop(token) {
			t.finish(p, "⏳ Таймаут")
		}
		return false
	case <-ctx.Done():
		if t.drop(token) {
			t.finish(p, "⛔️ Отменено")
		}
		return false
	}
}

func (t *Telegram) drop(token string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.pendings[token]
	delete(t.pendings, token)
	return ok
}

func (t *Telegram) finish(p *pending, status string) {
	t.mu.Lock()
	msgID := p.msgID
	t.mu.Unlock()
	rm := tgbot.InlineKeyboardMarkup{InlineKeyboard: [][]tgbot.InlineKeyboardButton{}}
	_, _ = t.bot.Request(tgbot.NewEditMessageReplyMarkup(t.chatID, msgID, rm))
	_, _ = t.bot.Request(tgbot.NewEditMessageText(t.chatID, msgID, p.prompt+"\n\n"+status))
}

// Stdout — когда telegram не настроен: алерты просто в лог.
type Stdout struct{}

func NewStdout() *Stdout { return &Stdout{} }

func (s *Stdout) Notify(_ context.Context, a models.Alert) error {
	switch a.Level {
	case models.AlertCritical:
		logger.Error("ALERT %s", FormatAlert(a))
	case models.AlertWarning:
		logger.Warn("ALERT %s", FormatAlert(a))
	default:
		logger.Info("ALERT %s", FormatAlert(a))
	}
	return nil
}

func positionSymbols(set models.PositionSet) []string {
	out := make([]string, 0, len(set))
	for sym := range set {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}
