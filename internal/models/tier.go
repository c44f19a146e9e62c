// Package models содержит доменные типы checkout-сервиса: уровни продукта,
// длительности оплаты, состояние попытки оформления и заказы.
package models

import (
	"fmt"
	"strings"
)

// Tier уровень продукта, который покупает пользователь.
type Tier string

const (
	// TierFree бесплатный уровень, его возвращает API аккаунтов для пользователей без покупки.
	TierFree  Tier = "free"
	TierBasic Tier = "basic"
	TierPlus  Tier = "plus"
	TierUltra Tier = "ultra"
)

// PaidTiers перечисляет уровни, доступные для покупки, в порядке возрастания.
var PaidTiers = []Tier{TierBasic, TierPlus, TierUltra}

// ParseTier разбирает строку в платный уровень.
func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	for _, p := range PaidTiers {
		if t == p {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown tier %q", s)
}

// Duration период оплаты.
type Duration string

const (
	DurationDay   Duration = "day"
	DurationWeek  Duration = "week"
	DurationMonth Duration = "month"
)

// Durations перечисляет все периоды оплаты.
var Durations = []Duration{DurationDay, DurationWeek, DurationMonth}

// ParseDuration разбирает строку в период оплаты.
func ParseDuration(s string) (Duration, error) {
	d := Duration(strings.ToLower(strings.TrimSpace(s)))
	for _, p := range Durations {
		if d == p {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown duration %q", s)
}

// Recurring сообщает, продлевается ли период автоматически.
func (d Duration) Recurring() bool {
	return d == DurationMonth
}
