package bot

// User-facing strings. The bot speaks Russian.
const (
	msgStart = "Привет! Я помогу тебе формировать привычки. Добавь привычку: /add_habit"

	msgAddPrompt  = "Напиши привычку и время через запятую (пример: Чтение, 21:30)."
	msgBadTime    = "Неверный формат времени. Используй HH:MM (например 21:30)."
	msgAddFailed  = "Произошла ошибка при добавлении привычки."
	msgSaveFailed = "Произошла ошибка. Попробуй ещё раз."
	msgNoHabits   = "У тебя пока нет привычек."
	msgNotFound   = "Привычка не найдена."

	msgNewNamePrompt = "Напиши новое название привычки:"
	msgNewTimePrompt = "Напиши новое время в формате HH:MM:"
	msgEmptyName     = "Название не может быть пустым."

	cbDone        = "Отмечено!"
	cbDeleted     = "Удалено"
	cbError       = "Ошибка."
	cbDeleteError = "Ошибка при удалении."
)

const (
	btnDone     = "✅ Выполнено"
	btnEdit     = "✏️ Редактировать"
	btnDelete   = "🗑️ Удалить"
	btnEditName = "✏️ Изменить название"
	btnEditTime = "⏰ Изменить время"
)
