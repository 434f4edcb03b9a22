package service

import (
	"sync"

	"trade_desk/internal/models"
	transport "trade_desk/internal/modules/transport/service"
	"trade_desk/internal/wire"
	"trade_desk/pkg/logger"
)

// Имена push-событий бэкенда.
const (
	EventUpdate     = "update"
	EventAlert      = "alert"
	EventDataStatus = "data_status"
	EventDataUpdate = "data_update"
)

// EventSource — push-канал адаптера.
type EventSource interface {
	Subscribe(event string, h transport.Handler) (dispose func())
}

// Feed переводит push-сообщения в обновления стора.
type Feed struct {
	src   EventSource
	store *Store

	mu       sync.Mutex
	disposes []func()
}

func NewFeed(src EventSource, store *Store) *Feed {
	return &Feed{src: src, store: store}
}

// Init подписывается на события. Повторный вызов без Stop ничего не делает.
func (f *Feed) Init() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.disposes != nil {
		return
	}
	f.disposes = []func(){
		f.src.Subscribe(EventUpdate, f.onUpdate),
		f.src.Subscribe(EventDataUpdate, f.onStatus),
		f.src.Subscribe(EventDataStatus, f.onStatus),
		f.src.Subscribe(EventAlert, f.onAlert),
		f.src.Subscribe(transport.EventDisconnected, f.onDisconnected),
		f.src.Subscribe(transport.EventConnected, f.onConnected),
	}
}

// Stop снимает все подписки.
func (f *Feed) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.disposes {
		d()
	}
	f.disposes = nil
}

func (f *Feed) onUpdate(msg transport.Message) {
	upd, err := wire.DecodeUpdate(msg.Data)
	if err != nil {
		logger.Warn("push %s: %v", msg.Event, err)
		return
	}
	f.store.Apply(models.SourcePush, upd)
}

func (f *Feed) onStatus(msg transport.Message) {
	st, err := wire.DecodeStatus(msg.Data)
	if err != nil {
		logger.Warn("push %s: %v", msg.Event, err)
		return
	}
	if st.LastUpdate.IsZero() && st.State != nil {
		st.LastUpdate = msg.At
	}
	f.store.Apply(models.SourcePush, models.Update{Stream: &st})
}

func (f *Feed) onAlert(msg transport.Message) {
	a, err := wire.DecodeAlert(msg.Data, msg.At)
	if err != nil {
		logger.Warn("push %s: %v", msg.Event, err)
		return
	}
	f.store.Apply(models.SourcePush, models.Update{Alerts: []models.Alert{a}})
}

// onDisconnected — канал упал, о свежести статуса больше ничего не знаем.
func (f *Feed) onDisconnected(msg transport.Message) {
	f.store.Apply(models.SourcePush, models.Update{
		Stream: &models.StreamPatch{State: models.StreamStatePtr(models.StreamUnknown)},
	})
}

func (f *Feed) onConnected(msg transport.Message) {
	logger.Info("push channel connected")
}
