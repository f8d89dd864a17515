package subscription

import "github.com/magabrotheeeer/nextgig-subscriptions/internal/models"

// Transition — переход записи подписки между состояниями.
type Transition struct {
	From models.Status
	To   models.Status
}

// validTransitions — допустимые переходы. Из cancelled выхода нет.
var validTransitions = map[Transition]bool{
	{models.StatusTrial, models.StatusActive}:        true,
	{models.StatusTrial, models.StatusCancelled}:     true,
	{models.StatusTrial, models.StatusSuspended}:     true,
	{models.StatusActive, models.StatusCancelled}:    true,
	{models.StatusActive, models.StatusSuspended}:    true,
	{models.StatusSuspended, models.StatusActive}:    true,
	{models.StatusSuspended, models.StatusCancelled}: true,
}

// CanTransition проверяет, допустим ли переход from -> to.
func CanTransition(from, to models.Status) bool {
	return validTransitions[Transition{From: from, To: to}]
}
