package channels

import (
	"context"

	"notifyhub_backend/internal/models"
)

// Delivery - содержимое одной отправки во внешний канал.
// Контент одинаков для всех каналов; форматирование под конкретный
// канал - забота транспорта, не движка.
type Delivery struct {
	Destination string // адрес из настроек пользователя: email, токен, номер
	Title       string
	Body        string
	ActionURL   string
	ActionLabel string
}

// Sender - транспорт одного канала доставки.
// Реализации не должны паниковать наружу: любая ошибка транспорта
// возвращается как error и превращается диспетчером в статус "failed".
type Sender interface {
	Kind() models.Channel
	Send(ctx context.Context, d *Delivery) error
}

// Registry - таблица транспортов по виду канала.
// Неизвестный канал не роняет dispatch: диспетчер помечает его skipped.
type Registry struct {
	senders map[models.Channel]Sender
}

func NewRegistry(senders ...Sender) *Registry {
	r := &Registry{senders: make(map[models.Channel]Sender, len(senders))}
	for _, s := range senders {
		r.senders[s.Kind()] = s
	}
	return r
}

func (r *Registry) Lookup(kind models.Channel) (Sender, bool) {
	s, ok := r.senders[kind]
	return s, ok
}

func (r *Registry) Register(s Sender) {
	r.senders[s.Kind()] = s
}
