package models

// Source — откуда пришло обновление. На приоритет не влияет: побеждает последний.
type Source string

const (
	SourcePush  Source = "push"
	SourcePoll  Source = "poll"
	SourceLocal Source = "local"
)

// Update — типизированный payload после декодирования. Отсутствующая группа = nil.
// Positions: nil — группы нет, пустая map — позиций нет (набор очищается).
type Update struct {
	Account   *AccountPatch
	Positions PositionSet
	Orders    []Order
	Stream    *StreamPatch
	Alerts    []Alert
}

func (u Update) Empty() bool {
	return (u.Account == nil || u.Account.Empty()) && u.Positions == nil &&
		u.Orders == nil && u.Stream == nil && len(u.Alerts) == 0
}
