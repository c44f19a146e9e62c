package checkout

import (
	"errors"
	"fmt"

	"github.com/magabrotheeeer/curvecoach-checkout/internal/models"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/paymentprovider"
)

var (
	// ErrUnauthenticated пользователь не вошел, а гостевой checkout выключен.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrCheckoutInProgress у владельца уже есть выполняющаяся попытка.
	ErrCheckoutInProgress = errors.New("checkout already in progress")
	// ErrNoCheckout у владельца нет попытки оформления.
	ErrNoCheckout = errors.New("no checkout in progress")
	// ErrCanceled попытка отменена, пока открывалось окно оплаты.
	ErrCanceled = errors.New("checkout canceled")
	// ErrActivationTimeout оплата прошла, но доступ не активировался за отведенное время.
	ErrActivationTimeout = errors.New("activation is taking longer than expected")
	// ErrPaymentUnavailable общая ошибка недоступности платежной системы.
	ErrPaymentUnavailable = errors.New("payment system unavailable")
)

// PaymentError ошибка платежной системы до открытия окна оплаты.
type PaymentError struct {
	Kind models.ErrorKind
	Err  error
}

func (e *PaymentError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", ErrPaymentUnavailable, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", ErrPaymentUnavailable, e.Kind, e.Err)
}

func (e *PaymentError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrPaymentUnavailable}
	}
	return []error{ErrPaymentUnavailable, e.Err}
}

func classifyPaymentError(err error) *PaymentError {
	switch {
	case errors.Is(err, paymentprovider.ErrNotLoaded):
		return &PaymentError{Kind: models.ErrorKindNotLoaded, Err: err}
	case errors.Is(err, paymentprovider.ErrBuilderUnavailable):
		return &PaymentError{Kind: models.ErrorKindBuilderUnavailable, Err: err}
	default:
		return &PaymentError{Kind: models.ErrorKindUnknown, Err: err}
	}
}
