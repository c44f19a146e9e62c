package middlewarectx

import (
	"net/http"

	"github.com/magabrotheeeer/curvecoach-checkout/internal/services/checkout"
)

// HeaderCheckoutSession заголовок, которым гость указывает свою попытку оформления.
const HeaderCheckoutSession = "X-Checkout-Session"

// OwnerFromRequest определяет владельца попытки: вошедший пользователь из контекста
// или гость по заголовку X-Checkout-Session. Пустой Owner означает анонимный запрос
// без попытки.
func OwnerFromRequest(r *http.Request) checkout.Owner {
	if userUID, email := UserFromContext(r.Context()); userUID != "" {
		return checkout.UserOwner(userUID, email)
	}
	return checkout.GuestOwner(r.Header.Get(HeaderCheckoutSession))
}
