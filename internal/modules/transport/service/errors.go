package service

import (
	"errors"
	"fmt"
)

// Kind — класс ошибки транспорта. Ретраев тут нет, решает вызывающий.
type Kind int

const (
	KindNetwork     Kind = iota + 1 // соединение, таймаут
	KindDecode                      // тело не разбирается
	KindServerError                 // не-2xx, Status заполнен
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindDecode:
		return "decode"
	case KindServerError:
		return "server_error"
	default:
		return "unknown"
	}
}

// Error — TransportError из контракта адаптера.
type Error struct {
	Kind     Kind
	Status   int
	Resource string
	Err      error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindServerError:
		return fmt.Sprintf("%s: http %d: %v", e.Resource, e.Status, e.Err)
	default:
		return fmt.Sprintf("%s: %s: %v", e.Resource, e.Kind, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func NewNetworkError(resource string, err error) *Error {
	return &Error{Kind: KindNetwork, Resource: resource, Err: err}
}

func NewDecodeError(resource string, err error) *Error {
	return &Error{Kind: KindDecode, Resource: resource, Err: err}
}

func NewServerError(resource string, status int, body string) *Error {
	return &Error{Kind: KindServerError, Resource: resource, Status: status, Err: errors.New(body)}
}

// KindOf достаёт Kind из цепочки; 0 — это не транспортная ошибка.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return 0
}
