package models

import "time"

// CheckoutState состояние попытки оформления покупки.
type CheckoutState string

const (
	StateIdle       CheckoutState = "idle"
	StateProcessing CheckoutState = "processing"
	StatePolling    CheckoutState = "polling"
	StateComplete   CheckoutState = "complete"
	StateError      CheckoutState = "error"
)

// Live сообщает, что попытка еще выполняется.
func (s CheckoutState) Live() bool {
	return s == StateProcessing || s == StatePolling
}

// Terminal сообщает, что попытка завершена.
func (s CheckoutState) Terminal() bool {
	return s == StateComplete || s == StateError
}

// ErrorKind тип ошибки, показываемой пользователю.
type ErrorKind string

const (
	ErrorKindNone               ErrorKind = ""
	ErrorKindNotLoaded          ErrorKind = "not_loaded"
	ErrorKindBuilderUnavailable ErrorKind = "builder_unavailable"
	ErrorKindUnknown            ErrorKind = "unknown"
	ErrorKindActivationTimeout  ErrorKind = "activation_timeout"
)

// CheckoutSession одна попытка оформления. Живет только в памяти сервиса.
type CheckoutSession struct {
	ID        string
	Owner     string
	UserUID   string
	Guest     bool
	Tier      Tier
	Duration  Duration
	State     CheckoutState
	ErrorKind ErrorKind
	Error     string
	Reference string
	Email     string
	Attempts  int
	StartedAt time.Time
	UpdatedAt time.Time
}

func (s *CheckoutSession) IsProcessing() bool { return s.State == StateProcessing }
func (s *CheckoutSession) IsPolling() bool    { return s.State == StatePolling }
func (s *CheckoutSession) IsComplete() bool   { return s.State == StateComplete }
