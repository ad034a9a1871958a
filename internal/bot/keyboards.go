package bot

import (
	"strconv"

	kit "habitbot/internal/transport"
	"habitbot/pkg/tgui"
)

// callback namespace for all habit actions ("habit:done:42", ...).
const cbNS = "habit"

const (
	actionDone     = "done"
	actionEdit     = "edit"
	actionDelete   = "delete"
	actionEditName = "edit_name"
	actionEditTime = "edit_time"
)

func habitData(action string, habitID int64) string {
	return tgui.Data(cbNS, action, strconv.FormatInt(habitID, 10))
}

// HabitKeyboard builds the done/edit/delete action row for a habit.
// It satisfies habit.Keyboard.
func HabitKeyboard(habitID int64) any {
	return tgui.NewInline().Row(
		tgui.Btn(btnDone, habitData(actionDone, habitID)),
		tgui.Btn(btnEdit, habitData(actionEdit, habitID)),
		tgui.Btn(btnDelete, habitData(actionDelete, habitID)),
	).Markup()
}

func editMenuKeyboard(habitID int64) any {
	return tgui.NewInline().
		Row(tgui.Btn(btnEditName, habitData(actionEditName, habitID))).
		Row(tgui.Btn(btnEditTime, habitData(actionEditTime, habitID))).
		Markup()
}

func mainReplyKeyboard() any {
	return tgui.Reply([]string{"/add_habit"}, []string{"/list_habits"})
}

// Commands is the bot command menu surfaced via setMyCommands.
func Commands() []kit.BotCommand {
	return []kit.BotCommand{
		{Command: "/start", Description: "Начало работы"},
		{Command: "/add_habit", Description: "Добавить привычку"},
		{Command: "/list_habits", Description: "Список привычек"},
	}
}
