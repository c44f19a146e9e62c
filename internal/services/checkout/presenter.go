package checkout

import (
	"time"

	"github.com/magabrotheeeer/curvecoach-checkout/internal/models"
)

// Сообщения, которые фронтенд показывает пользователю.
const (
	MessageIdle               = ""
	MessageProcessing         = "Complete your purchase in the checkout window."
	MessagePolling            = "Payment received. Activating your plan..."
	MessageComplete           = "Your plan is active. Redirecting to the studio."
	MessageGuestComplete      = "Purchase complete. We sent you an e-mail with your account details, sign in to start using your plan."
	MessageNotLoaded          = "The payment system is still loading. Please refresh the page and try again."
	MessageBuilderUnavailable = "The payment system is unavailable right now. Please try again in a moment."
	MessageUnknown            = "Something went wrong while opening checkout. Please try again."
	MessageActivationTimeout  = "Your payment went through, but activation is taking longer than expected. Refresh the page in a minute instead of paying again."
)

var errorMessages = map[models.ErrorKind]string{
	models.ErrorKindNotLoaded:          MessageNotLoaded,
	models.ErrorKindBuilderUnavailable: MessageBuilderUnavailable,
	models.ErrorKindUnknown:            MessageUnknown,
	models.ErrorKindActivationTimeout:  MessageActivationTimeout,
}

// URLs адреса фронтенда для переходов после завершения попытки.
type URLs struct {
	SignIn string
	Studio string
}

// View состояние попытки в том виде, в котором его рисует фронтенд.
type View struct {
	SessionID    string               `json:"session_id,omitempty"`
	State        models.CheckoutState `json:"state"`
	IsProcessing bool                 `json:"is_processing"`
	IsPolling    bool                 `json:"is_polling"`
	IsComplete   bool                 `json:"is_complete"`
	Guest        bool                 `json:"guest"`
	Tier         models.Tier          `json:"tier,omitempty"`
	Duration     models.Duration      `json:"duration,omitempty"`
	Reference    string               `json:"reference,omitempty"`
	Attempts     int                  `json:"attempts,omitempty"`
	ErrorKind    models.ErrorKind     `json:"error_kind,omitempty"`
	Message      string               `json:"message,omitempty"`
	RedirectURL  string               `json:"redirect_url,omitempty"`
	SignInURL    string               `json:"sign_in_url,omitempty"`
	UpdatedAt    *time.Time           `json:"updated_at,omitempty"`
}

// Present отображает попытку в View. Без попытки возвращает idle.
func Present(s *models.CheckoutSession, urls URLs) View {
	if s == nil || s.State == "" || s.State == models.StateIdle {
		return View{State: models.StateIdle, Message: MessageIdle}
	}

	updated := s.UpdatedAt
	v := View{
		SessionID:    s.ID,
		State:        s.State,
		IsProcessing: s.IsProcessing(),
		IsPolling:    s.IsPolling(),
		IsComplete:   s.IsComplete(),
		Guest:        s.Guest,
		Tier:         s.Tier,
		Duration:     s.Duration,
		Reference:    s.Reference,
		Attempts:     s.Attempts,
		UpdatedAt:    &updated,
	}

	switch s.State {
	case models.StateProcessing:
		v.Message = MessageProcessing
	case models.StatePolling:
		v.Message = MessagePolling
	case models.StateComplete:
		if s.Guest {
			v.Message = MessageGuestComplete
			v.SignInURL = urls.SignIn
		} else {
			v.Message = MessageComplete
			v.RedirectURL = urls.Studio
		}
	case models.StateError:
		v.ErrorKind = s.ErrorKind
		msg, ok := errorMessages[s.ErrorKind]
		if !ok {
			msg = MessageUnknown
		}
		v.Message = msg
	}
	return v
}

// MessageFor возвращает сообщение для типа ошибки.
func MessageFor(kind models.ErrorKind) string {
	if msg, ok := errorMessages[kind]; ok {
		return msg
	}
	return MessageUnknown
}
