package models

// StatusActive значение статуса активной подписки во внешнем API аккаунтов.
const StatusActive = "active"

// SubscriptionStatus ответ внешнего API аккаунтов о подписке пользователя.
type SubscriptionStatus struct {
	Tier   Tier   `json:"tier"`
	Status string `json:"status"`
}

// Activated сообщает, что покупка превратилась в активный платный доступ.
func (s *SubscriptionStatus) Activated() bool {
	return s != nil && s.Status == StatusActive && s.Tier != "" && s.Tier != TierFree
}
